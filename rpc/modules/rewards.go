package modules

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"curiochain/core"
	"curiochain/crypto"
)

// ClaimScope selects which accumulator a holder claim settles against.
type ClaimScope string

const (
	ClaimScopeContent ClaimScope = "content"
	ClaimScopeBundle  ClaimScope = "bundle"
	ClaimScopePatron  ClaimScope = "patron"
	ClaimScopeCreator ClaimScope = "creator"
)

// RewardsModule wraps the node's claim processor for RPC consumption.
type RewardsModule struct {
	node *core.Node
}

// NewRewardsModule constructs a rewards RPC helper module.
func NewRewardsModule(node *core.Node) *RewardsModule {
	return &RewardsModule{node: node}
}

type claimUnitParams struct {
	UnitID string `json:"unitId"`
}

type claimCreatorParams struct {
	Creator string `json:"creator"`
}

// ClaimOutcome reports a settled claim.
type ClaimOutcome struct {
	Scope  ClaimScope
	UnitID string
	Payee  [20]byte
	Amount *big.Int
}

var errRewardsOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "rewards module not initialised"}

// ClaimUnit settles the pending rewards of a unit in the requested scope and
// reports who was paid. The payout always goes to the recorded owner, so no
// caller identity is required.
func (m *RewardsModule) ClaimUnit(scope ClaimScope, raw json.RawMessage) (*ClaimOutcome, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errRewardsOffline
	}
	var params claimUnitParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	unitID := strings.TrimSpace(params.UnitID)
	if unitID == "" {
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "unitId required"}
	}

	var (
		amount *big.Int
		err    error
	)
	switch scope {
	case ClaimScopeContent:
		amount, err = m.node.ClaimContent(unitID)
	case ClaimScopeBundle:
		amount, err = m.node.ClaimBundle(unitID)
	case ClaimScopePatron:
		amount, err = m.node.ClaimPatron(unitID)
	default:
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "unknown claim scope"}
	}
	if err != nil {
		return nil, ErrorFor(err)
	}

	outcome := &ClaimOutcome{Scope: scope, UnitID: unitID, Amount: amount}
	if view, viewErr := m.node.UnitInfo(unitID); viewErr == nil && view.Ledger != nil {
		outcome.Payee = view.Ledger.Owner
	}
	return outcome, nil
}

// ClaimCreator settles a creator's pending payout from the creator
// distribution pool.
func (m *RewardsModule) ClaimCreator(raw json.RawMessage) (*ClaimOutcome, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errRewardsOffline
	}
	var params claimCreatorParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	trimmed := strings.TrimSpace(params.Creator)
	if trimmed == "" {
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "creator required"}
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil || decoded.Prefix() != crypto.CurioPrefix {
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "invalid creator address", Data: trimmed}
	}
	var creator [20]byte
	copy(creator[:], decoded.Bytes())

	amount, claimErr := m.node.ClaimCreator(creator)
	if claimErr != nil {
		return nil, ErrorFor(claimErr)
	}
	return &ClaimOutcome{Scope: ClaimScopeCreator, Payee: creator, Amount: amount}, nil
}
