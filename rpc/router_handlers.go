package rpc

import (
	"encoding/json"
	"net/http"
	"strings"

	"curiochain/native/registry"
	"curiochain/rpc/modules"
)

type routerMintParams struct {
	Caller    string  `json:"caller"`
	Payer     string  `json:"payer"`
	UnitID    string  `json:"unitId"`
	ContentID string  `json:"contentId,omitempty"`
	BundleID  string  `json:"bundleId,omitempty"`
	Rarity    string  `json:"rarity,omitempty"`
	Roll      *uint32 `json:"roll,omitempty"`
}

type routerRentParams struct {
	Caller          string `json:"caller"`
	Renter          string `json:"renter"`
	ContentID       string `json:"contentId"`
	DurationSeconds int64  `json:"durationSeconds"`
}

type routerTickParams struct {
	Caller  string `json:"caller"`
	Payer   string `json:"payer"`
	Creator string `json:"creator,omitempty"`
	Amount  string `json:"amount"`
}

// resolveRarity accepts either an explicit tier name or a raw 32-bit roll.
// Exactly one of the two must be supplied; the roll is mapped through the
// configured odds table.
func (s *Server) resolveRarity(params *routerMintParams) (registry.Rarity, string) {
	name := strings.TrimSpace(params.Rarity)
	switch {
	case name != "" && params.Roll != nil:
		return 0, "rarity and roll are mutually exclusive"
	case name != "":
		rarity, err := registry.ParseRarity(name)
		if err != nil {
			return 0, err.Error()
		}
		return rarity, ""
	case params.Roll != nil:
		return s.node.RarityForRoll(*params.Roll), ""
	default:
		return 0, "rarity or roll required"
	}
}

func (s *Server) handleRouterMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params routerMintParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payer address", err.Error())
		return
	}
	rarity, problem := s.resolveRarity(&params)
	if problem != "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, problem, nil)
		return
	}

	minted, err := s.node.MintUnit(caller, payer, strings.TrimSpace(params.UnitID), strings.TrimSpace(params.ContentID), strings.TrimSpace(params.BundleID), rarity)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}

	result := MintResult{}
	if view, viewErr := s.node.UnitInfo(minted.Ledger.UnitID); viewErr == nil {
		result.Unit = unitResult(view)
	}
	if minted.Receipt != nil {
		result.Receipt = mintReceiptResult(minted.Receipt)
	} else if minted.BundleReceipt != nil {
		result.Receipt = bundleReceiptResult(minted.BundleReceipt)
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleRouterRent(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params routerRentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	renter, err := parseAddress(params.Renter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid renter address", err.Error())
		return
	}
	if params.DurationSeconds <= 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "durationSeconds must be positive", nil)
		return
	}

	rental, receipt, err := s.node.RentContent(caller, renter, strings.TrimSpace(params.ContentID), params.DurationSeconds)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	result := RentReceiptResult{
		Rental: RentalResult{
			ContentID: rental.ContentID,
			Renter:    formatAddress(rental.Renter),
			Fee:       bigString(rental.Fee),
			StartedAt: rental.StartedAt,
			ExpiresAt: rental.ExpiresAt,
			Active:    true,
		},
		Fee:          bigString(receipt.Fee),
		CreatorPaid:  bigString(receipt.CreatorPaid),
		PlatformFee:  bigString(receipt.PlatformFee),
		EcosystemFee: bigString(receipt.EcosystemFee),
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleRouterPatronTick(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params routerTickParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payer address", err.Error())
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	if err := s.node.PatronTick(caller, payer, creator, amount); err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "credited"})
}

func (s *Server) handleRouterEcosystemTick(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params routerTickParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payer address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	if err := s.node.EcosystemTick(caller, payer, amount); err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "credited"})
}
