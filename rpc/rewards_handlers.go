package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"curiochain/rpc/modules"
)

type poolInfoParams struct {
	PoolID string `json:"poolId"`
}

type creatorInfoParams struct {
	Creator string `json:"creator"`
}

type treasuryInfoParams struct {
	TreasuryID string `json:"treasuryId"`
}

type settlementsParams struct {
	Treasury string `json:"treasury,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
}

type epochDurationParams struct {
	Caller  string `json:"caller"`
	Seconds int64  `json:"seconds"`
}

func (s *Server) handleRewardsClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest, scope modules.ClaimScope) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	outcome, modErr := s.rewards.ClaimUnit(scope, raw)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, ClaimResult{
		Scope:  string(outcome.Scope),
		UnitID: outcome.UnitID,
		Payee:  formatAddress(outcome.Payee),
		Amount: bigString(outcome.Amount),
	})
}

func (s *Server) handleRewardsClaimCreator(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	outcome, modErr := s.rewards.ClaimCreator(raw)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, ClaimResult{
		Scope:  string(outcome.Scope),
		Payee:  formatAddress(outcome.Payee),
		Amount: bigString(outcome.Amount),
	})
}

func (s *Server) handleRewardsPoolInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params poolInfoParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	pool, err := s.node.PoolInfo(strings.TrimSpace(params.PoolID))
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, poolResult(pool))
}

func (s *Server) handleRewardsCreatorInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params creatorInfoParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	view, err := s.node.CreatorInfo(creator)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, creatorResult(view))
}

func (s *Server) handleRewardsTreasuryInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params treasuryInfoParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	view, err := s.node.TreasuryInfo(strings.TrimSpace(params.TreasuryID))
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, treasuryResult(view))
}

func (s *Server) handleRewardsEpochInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	seconds, err := s.node.EpochDuration()
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, map[string]int64{"durationSeconds": seconds})
}

func (s *Server) handleRewardsSettlements(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params settlementsParams
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
	settlements, err := s.node.Settlements()
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	treasury := strings.TrimSpace(params.Treasury)
	results := make([]SettlementResult, 0, len(settlements))
	for _, settlement := range settlements {
		if settlement == nil {
			continue
		}
		if treasury != "" && settlement.Treasury != treasury {
			continue
		}
		results = append(results, settlementResult(settlement))
	}
	if params.Limit != nil && *params.Limit > 0 && len(results) > *params.Limit {
		results = results[len(results)-*params.Limit:]
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleRewardsSetEpochDuration(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params epochDurationParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if params.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "seconds must be positive", nil)
		return
	}
	if err := s.node.UpdateEpochDuration(caller, params.Seconds); err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, map[string]int64{"durationSeconds": params.Seconds})
}
