package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"curiochain/core"
	"curiochain/core/types"
	"curiochain/crypto"
	"curiochain/native/registry"
	"curiochain/native/rewards"
	"curiochain/native/router"
)

// ContentResult is the catalogue entry shape returned over RPC. Addresses are
// bech32 strings and lamport amounts decimal strings so browser clients never
// touch raw byte arrays or 64-bit integers.
type ContentResult struct {
	ID          string `json:"id"`
	Creator     string `json:"creator"`
	Title       string `json:"title"`
	URI         string `json:"uri"`
	Fingerprint string `json:"fingerprint"`
	MintPrice   string `json:"mintPrice"`
	RentalFee   string `json:"rentalFee"`
	PublishedAt int64  `json:"publishedAt"`
	Minted      uint64 `json:"minted"`
}

type BundleResult struct {
	ID          string   `json:"id"`
	Creator     string   `json:"creator"`
	Title       string   `json:"title"`
	Members     []string `json:"members"`
	MintPrice   string   `json:"mintPrice"`
	PublishedAt int64    `json:"publishedAt"`
	Minted      uint64   `json:"minted"`
}

type UnitResult struct {
	ID        string         `json:"id"`
	ContentID string         `json:"contentId,omitempty"`
	BundleID  string         `json:"bundleId,omitempty"`
	Creator   string         `json:"creator"`
	Owner     string         `json:"owner"`
	Rarity    string         `json:"rarity"`
	Weight    string         `json:"weight"`
	MintedAt  int64          `json:"mintedAt"`
	Claimed   string         `json:"totalClaimed"`
	Pending   *PendingResult `json:"pending,omitempty"`
}

type PendingResult struct {
	Holder string `json:"holder"`
	Patron string `json:"patron"`
	Global string `json:"global"`
	Total  string `json:"total"`
}

type PoolResult struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	TotalWeight    string `json:"totalWeight"`
	TotalDeposited string `json:"totalDeposited"`
	TotalClaimed   string `json:"totalClaimed"`
	RewardPerShare string `json:"rewardPerShare"`
	Undistributed  string `json:"undistributed"`
	Balance        string `json:"balance"`
}

type CreatorResult struct {
	Creator      string `json:"creator"`
	TotalWeight  string `json:"totalWeight"`
	Accrued      string `json:"accrued"`
	TotalClaimed string `json:"totalClaimed"`
	Pending      string `json:"pending"`
}

type TreasuryResult struct {
	ID                 string `json:"id"`
	Creator            string `json:"creator,omitempty"`
	Balance            string `json:"balance"`
	Reserve            string `json:"reserve"`
	TotalInflow        string `json:"totalInflow"`
	TotalSwept         string `json:"totalSwept"`
	Epochs             uint64 `json:"epochs"`
	LastDistributionAt int64  `json:"lastDistributionAt"`
	NextDistributionAt int64  `json:"nextDistributionAt"`
	Due                bool   `json:"due"`
	Drainable          string `json:"drainable"`
}

type SettlementResult struct {
	Treasury      string `json:"treasury"`
	Sequence      uint64 `json:"sequence"`
	SettledAt     int64  `json:"settledAt"`
	Swept         string `json:"swept"`
	ToGlobal      string `json:"toGlobal"`
	ToCreatorDist string `json:"toCreatorDist"`
	ToPatron      string `json:"toPatron"`
}

type RentalResult struct {
	ContentID string `json:"contentId"`
	Renter    string `json:"renter"`
	Fee       string `json:"fee"`
	StartedAt int64  `json:"startedAt"`
	ExpiresAt int64  `json:"expiresAt"`
	Active    bool   `json:"active"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type EventResult struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type MintReceiptResult struct {
	Price           string `json:"price"`
	CreatorPaid     string `json:"creatorPaid"`
	HolderDeposited string `json:"holderDeposited,omitempty"`
	BundleDeposited string `json:"bundleDeposited,omitempty"`
	PlatformFee     string `json:"platformFee"`
	EcosystemFee    string `json:"ecosystemFee"`
}

type MintResult struct {
	Unit    UnitResult        `json:"unit"`
	Receipt MintReceiptResult `json:"receipt"`
}

type RentReceiptResult struct {
	Rental       RentalResult `json:"rental"`
	Fee          string       `json:"fee"`
	CreatorPaid  string       `json:"creatorPaid"`
	PlatformFee  string       `json:"platformFee"`
	EcosystemFee string       `json:"ecosystemFee"`
}

type ClaimResult struct {
	Scope  string `json:"scope"`
	UnitID string `json:"unitId,omitempty"`
	Payee  string `json:"payee,omitempty"`
	Amount string `json:"amount"`
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.CurioPrefix, addr[:]).String()
}

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	if decoded.Prefix() != crypto.CurioPrefix {
		return out, fmt.Errorf("address must carry the %s prefix", crypto.CurioPrefix)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a decimal lamport string")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func contentResult(content *registry.Content) ContentResult {
	return ContentResult{
		ID:          content.ID,
		Creator:     formatAddress(content.Creator),
		Title:       content.Title,
		URI:         content.URI,
		Fingerprint: hex.EncodeToString(content.Fingerprint[:]),
		MintPrice:   bigString(content.MintPrice),
		RentalFee:   bigString(content.RentalFee),
		PublishedAt: content.PublishedAt,
		Minted:      content.Minted,
	}
}

func bundleResult(bundle *registry.Bundle) BundleResult {
	return BundleResult{
		ID:          bundle.ID,
		Creator:     formatAddress(bundle.Creator),
		Title:       bundle.Title,
		Members:     append([]string(nil), bundle.Members...),
		MintPrice:   bigString(bundle.MintPrice),
		PublishedAt: bundle.PublishedAt,
		Minted:      bundle.Minted,
	}
}

func unitResult(view *core.UnitView) UnitResult {
	ledger := view.Ledger
	result := UnitResult{
		ID:        ledger.UnitID,
		ContentID: ledger.ContentID,
		BundleID:  ledger.BundleID,
		Creator:   formatAddress(ledger.Creator),
		Owner:     formatAddress(ledger.Owner),
		Weight:    bigString(ledger.Weight),
		MintedAt:  ledger.MintedAt,
		Claimed:   bigString(ledger.TotalClaimed),
	}
	if view.Unit != nil {
		result.Rarity = view.Unit.Rarity.String()
	}
	if view.Pending != nil {
		result.Pending = &PendingResult{
			Holder: bigString(view.Pending.Holder),
			Patron: bigString(view.Pending.Patron),
			Global: bigString(view.Pending.Global),
			Total:  bigString(view.Pending.Total),
		}
	}
	return result
}

func poolResult(pool *rewards.Pool) PoolResult {
	return PoolResult{
		ID:             pool.ID,
		Kind:           pool.Kind.String(),
		TotalWeight:    bigString(pool.TotalWeight),
		TotalDeposited: bigString(pool.TotalDeposited),
		TotalClaimed:   bigString(pool.TotalClaimed),
		RewardPerShare: bigString(pool.RewardPerShare),
		Undistributed:  bigString(pool.Undistributed),
		Balance:        bigString(pool.Balance),
	}
}

func creatorResult(view *core.CreatorView) CreatorResult {
	stats := view.Stats
	return CreatorResult{
		Creator:      formatAddress(stats.Creator),
		TotalWeight:  bigString(stats.TotalWeight),
		Accrued:      bigString(stats.Accrued),
		TotalClaimed: bigString(stats.TotalClaimed),
		Pending:      bigString(view.Pending),
	}
}

func treasuryResult(view *core.TreasuryView) TreasuryResult {
	treasury := view.Treasury
	result := TreasuryResult{
		ID:                 treasury.ID,
		Balance:            bigString(treasury.Balance),
		Reserve:            bigString(treasury.Reserve),
		TotalInflow:        bigString(treasury.TotalInflow),
		TotalSwept:         bigString(treasury.TotalSwept),
		Epochs:             treasury.Epochs,
		LastDistributionAt: treasury.LastDistributionAt,
	}
	if treasury.Creator != ([20]byte{}) {
		result.Creator = formatAddress(treasury.Creator)
	}
	if view.Status != nil {
		result.NextDistributionAt = view.Status.NextDistributionAt
		result.Due = view.Status.Due
		result.Drainable = bigString(view.Status.Drainable)
	}
	return result
}

func settlementResult(settlement *rewards.EpochSettlement) SettlementResult {
	return SettlementResult{
		Treasury:      settlement.Treasury,
		Sequence:      settlement.Sequence,
		SettledAt:     settlement.SettledAt,
		Swept:         bigString(settlement.Swept),
		ToGlobal:      bigString(settlement.ToGlobal),
		ToCreatorDist: bigString(settlement.ToCreatorDist),
		ToPatron:      bigString(settlement.ToPatron),
	}
}

func rentalResult(view *core.RentalView) RentalResult {
	rental := view.Rental
	return RentalResult{
		ContentID: rental.ContentID,
		Renter:    formatAddress(rental.Renter),
		Fee:       bigString(rental.Fee),
		StartedAt: rental.StartedAt,
		ExpiresAt: rental.ExpiresAt,
		Active:    view.Active,
	}
}

func eventResults(events []*types.Event) []EventResult {
	out := make([]EventResult, 0, len(events))
	for _, evt := range events {
		if evt == nil {
			continue
		}
		attrs := make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			attrs[k] = v
		}
		out = append(out, EventResult{Sequence: evt.Sequence, Type: evt.Type, Attributes: attrs})
	}
	return out
}

func mintReceiptResult(receipt *router.MintReceipt) MintReceiptResult {
	return MintReceiptResult{
		Price:           bigString(receipt.Price),
		CreatorPaid:     bigString(receipt.CreatorPaid),
		HolderDeposited: bigString(receipt.HolderDeposited),
		PlatformFee:     bigString(receipt.PlatformFee),
		EcosystemFee:    bigString(receipt.EcosystemFee),
	}
}

func bundleReceiptResult(receipt *router.BundleMintReceipt) MintReceiptResult {
	return MintReceiptResult{
		Price:           bigString(receipt.Price),
		CreatorPaid:     bigString(receipt.CreatorPaid),
		BundleDeposited: bigString(receipt.BundleDeposited),
		PlatformFee:     bigString(receipt.PlatformFee),
		EcosystemFee:    bigString(receipt.EcosystemFee),
	}
}
