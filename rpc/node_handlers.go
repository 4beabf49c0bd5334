package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"curiochain/rpc/modules"
)

type balanceParams struct {
	Address string `json:"address"`
}

type transferUnitParams struct {
	Caller   string `json:"caller"`
	UnitID   string `json:"unitId"`
	NewOwner string `json:"newOwner"`
}

type fundAccountParams struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
	Amount string `json:"amount"`
}

type roleChangeParams struct {
	Caller string `json:"caller"`
	Role   string `json:"role"`
	Member string `json:"member"`
}

type roleMembersParams struct {
	Role string `json:"role"`
}

type recentEventsParams struct {
	Type  string  `json:"type,omitempty"`
	After *uint64 `json:"after,omitempty"`
	Limit *int    `json:"limit,omitempty"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params balanceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	account, err := s.node.AccountInfo(addr)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, BalanceResult{
		Address: formatAddress(addr),
		Balance: bigString(account.Balance),
		Nonce:   account.Nonce,
	})
}

func (s *Server) handleTransferUnit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params transferUnitParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	newOwner, err := parseAddress(params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid newOwner address", err.Error())
		return
	}
	ledger, err := s.node.TransferUnit(caller, strings.TrimSpace(params.UnitID), newOwner)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, map[string]string{
		"unitId": ledger.UnitID,
		"owner":  formatAddress(ledger.Owner),
	})
}

func (s *Server) handleFundAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params fundAccountParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	target, err := parseAddress(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid target address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	account, err := s.node.FundAccount(caller, target, amount)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, BalanceResult{
		Address: formatAddress(target),
		Balance: bigString(account.Balance),
		Nonce:   account.Nonce,
	})
}

func (s *Server) handleGrantRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleRoleChange(w, req, true)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleRoleChange(w, req, false)
}

func (s *Server) handleRoleChange(w http.ResponseWriter, req *RPCRequest, grant bool) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params roleChangeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	member, err := parseAddress(params.Member)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid member address", err.Error())
		return
	}
	role := strings.TrimSpace(params.Role)
	if grant {
		err = s.node.GrantRole(caller, role, member)
	} else {
		err = s.node.RevokeRole(caller, role, member)
	}
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"role":    role,
		"member":  formatAddress(member),
		"granted": grant,
	})
}

func (s *Server) handleRoleMembers(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params roleMembersParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	members, err := s.node.RoleHolders(strings.TrimSpace(params.Role))
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	encoded := make([]string, 0, len(members))
	for _, member := range members {
		encoded = append(encoded, formatAddress(member))
	}
	writeResult(w, req.ID, encoded)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params recentEventsParams
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
			return
		}
	}
	events := s.node.RecentEvents()
	if params.After != nil && *params.After > 0 {
		events = s.node.EventsAfter(*params.After)
	}
	results := eventResults(events)
	if wanted := strings.TrimSpace(params.Type); wanted != "" {
		filtered := results[:0]
		for _, evt := range results {
			if evt.Type == wanted {
				filtered = append(filtered, evt)
			}
		}
		results = filtered
	}
	if params.Limit != nil && *params.Limit > 0 && len(results) > *params.Limit {
		results = results[len(results)-*params.Limit:]
	}
	writeResult(w, req.ID, results)
}
