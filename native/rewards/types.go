package rewards

import (
	"encoding/hex"
	"math/big"
	"strings"
)

// Kind identifies which reward stream a pool belongs to.
type Kind uint8

const (
	// KindContent pools pay holders of units minted against one piece of content.
	KindContent Kind = iota + 1
	// KindBundle pools pay holders of units minted against a bundle.
	KindBundle
	// KindPatron pools pay holders of a single creator's units from that
	// creator's patron subscription stream.
	KindPatron
	// KindCreatorDist is the ecosystem-wide pool paying creators weighted by
	// their aggregate minted weight.
	KindCreatorDist
	// KindGlobal is the ecosystem-wide pool paying every unit holder.
	KindGlobal
)

func (k Kind) Valid() bool {
	return k >= KindContent && k <= KindGlobal
}

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindBundle:
		return "bundle"
	case KindPatron:
		return "patron"
	case KindCreatorDist:
		return "creator-dist"
	case KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Pool identifiers. Content and bundle pools are keyed by registry id, patron
// pools by creator address, and the two ecosystem pools are singletons.
const (
	GlobalPoolID      = "global"
	CreatorDistPoolID = "creators"

	contentPoolPrefix = "content/"
	bundlePoolPrefix  = "bundle/"
	patronPoolPrefix  = "patron/"
)

func ContentPoolID(contentID string) string {
	return contentPoolPrefix + strings.TrimSpace(contentID)
}

func BundlePoolID(bundleID string) string {
	return bundlePoolPrefix + strings.TrimSpace(bundleID)
}

func PatronPoolID(creator [20]byte) string {
	return patronPoolPrefix + hex.EncodeToString(creator[:])
}

// KindOfPoolID derives the pool kind from its identifier.
func KindOfPoolID(id string) (Kind, bool) {
	switch {
	case id == GlobalPoolID:
		return KindGlobal, true
	case id == CreatorDistPoolID:
		return KindCreatorDist, true
	case strings.HasPrefix(id, contentPoolPrefix) && len(id) > len(contentPoolPrefix):
		return KindContent, true
	case strings.HasPrefix(id, bundlePoolPrefix) && len(id) > len(bundlePoolPrefix):
		return KindBundle, true
	case strings.HasPrefix(id, patronPoolPrefix) && len(id) > len(patronPoolPrefix):
		return KindPatron, true
	default:
		return 0, false
	}
}

// Pool is one reward accumulator. RewardPerShare is scaled by Precision and
// only ever grows; Undistributed holds deposits that arrived while the pool
// had zero weight, waiting to be folded into RewardPerShare.
type Pool struct {
	ID             string   `json:"id"`
	Kind           Kind     `json:"kind"`
	TotalWeight    *big.Int `json:"totalWeight"`
	TotalDeposited *big.Int `json:"totalDeposited"`
	TotalClaimed   *big.Int `json:"totalClaimed"`
	RewardPerShare *big.Int `json:"rewardPerShare"`
	Undistributed  *big.Int `json:"undistributed"`
	Balance        *big.Int `json:"balance"`
}

// NewPool returns an empty pool for the given identifier and kind.
func NewPool(id string, kind Kind) *Pool {
	return &Pool{
		ID:             id,
		Kind:           kind,
		TotalWeight:    big.NewInt(0),
		TotalDeposited: big.NewInt(0),
		TotalClaimed:   big.NewInt(0),
		RewardPerShare: big.NewInt(0),
		Undistributed:  big.NewInt(0),
		Balance:        big.NewInt(0),
	}
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalWeight = newBigInt(p.TotalWeight)
	clone.TotalDeposited = newBigInt(p.TotalDeposited)
	clone.TotalClaimed = newBigInt(p.TotalClaimed)
	clone.RewardPerShare = newBigInt(p.RewardPerShare)
	clone.Undistributed = newBigInt(p.Undistributed)
	clone.Balance = newBigInt(p.Balance)
	return &clone
}

func (p *Pool) normalize() {
	p.TotalWeight = newBigInt(p.TotalWeight)
	p.TotalDeposited = newBigInt(p.TotalDeposited)
	p.TotalClaimed = newBigInt(p.TotalClaimed)
	p.RewardPerShare = newBigInt(p.RewardPerShare)
	p.Undistributed = newBigInt(p.Undistributed)
	p.Balance = newBigInt(p.Balance)
}

// UnitLedger is the per-unit claim record. Weight is fixed at mint; the
// last-seen accumulator values advance only when the unit claims.
type UnitLedger struct {
	UnitID    string   `json:"unitId"`
	ContentID string   `json:"contentId,omitempty"`
	BundleID  string   `json:"bundleId,omitempty"`
	Creator   [20]byte `json:"creator"`
	Owner     [20]byte `json:"owner"`
	Weight    *big.Int `json:"weight"`
	MintedAt  int64    `json:"mintedAt"`

	HolderLastRPS *big.Int `json:"holderLastRps"`
	PatronLastRPS *big.Int `json:"patronLastRps"`
	GlobalLastRPS *big.Int `json:"globalLastRps"`

	TotalClaimed *big.Int `json:"totalClaimed"`
}

// HolderPoolID returns the content or bundle pool this unit earns from.
func (u *UnitLedger) HolderPoolID() string {
	if u == nil {
		return ""
	}
	if u.BundleID != "" {
		return BundlePoolID(u.BundleID)
	}
	if u.ContentID != "" {
		return ContentPoolID(u.ContentID)
	}
	return ""
}

// Clone returns a deep copy of the unit ledger.
func (u *UnitLedger) Clone() *UnitLedger {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Weight = newBigInt(u.Weight)
	clone.HolderLastRPS = newBigInt(u.HolderLastRPS)
	clone.PatronLastRPS = newBigInt(u.PatronLastRPS)
	clone.GlobalLastRPS = newBigInt(u.GlobalLastRPS)
	clone.TotalClaimed = newBigInt(u.TotalClaimed)
	return &clone
}

// CreatorStats tracks a creator's aggregate minted weight and their position
// in the creator distribution pool. The pool weight grows with every mint, so
// pending rewards settle into Accrued before the weight changes.
type CreatorStats struct {
	Creator      [20]byte `json:"creator"`
	TotalWeight  *big.Int `json:"totalWeight"`
	Accrued      *big.Int `json:"accrued"`
	LastRPS      *big.Int `json:"lastRps"`
	TotalClaimed *big.Int `json:"totalClaimed"`
}

func newCreatorStats(creator [20]byte) *CreatorStats {
	return &CreatorStats{
		Creator:      creator,
		TotalWeight:  big.NewInt(0),
		Accrued:      big.NewInt(0),
		LastRPS:      big.NewInt(0),
		TotalClaimed: big.NewInt(0),
	}
}

// Clone returns a deep copy of the creator stats.
func (c *CreatorStats) Clone() *CreatorStats {
	if c == nil {
		return nil
	}
	clone := *c
	clone.TotalWeight = newBigInt(c.TotalWeight)
	clone.Accrued = newBigInt(c.Accrued)
	clone.LastRPS = newBigInt(c.LastRPS)
	clone.TotalClaimed = newBigInt(c.TotalClaimed)
	return &clone
}

// Treasury identifiers. The ecosystem treasury is a singleton; patron
// treasuries are keyed by creator address.
const EcosystemTreasuryID = "ecosystem"

const patronTreasuryPrefix = "patron/"

func PatronTreasuryID(creator [20]byte) string {
	return patronTreasuryPrefix + hex.EncodeToString(creator[:])
}

// ValidTreasuryID reports whether the identifier names the ecosystem treasury
// or a well-formed patron treasury.
func ValidTreasuryID(id string) bool {
	if id == EcosystemTreasuryID {
		return true
	}
	if !strings.HasPrefix(id, patronTreasuryPrefix) {
		return false
	}
	suffix := id[len(patronTreasuryPrefix):]
	if len(suffix) != 40 {
		return false
	}
	_, err := hex.DecodeString(suffix)
	return err == nil
}

// StreamingTreasury accumulates subscription and fee inflows between epoch
// sweeps. Balance never drops below Reserve.
type StreamingTreasury struct {
	ID                 string   `json:"id"`
	Creator            [20]byte `json:"creator"`
	Balance            *big.Int `json:"balance"`
	Reserve            *big.Int `json:"reserve"`
	LastDistributionAt int64    `json:"lastDistributionAt"`
	TotalInflow        *big.Int `json:"totalInflow"`
	TotalSwept         *big.Int `json:"totalSwept"`
	Epochs             uint64   `json:"epochs"`
}

// Clone returns a deep copy of the treasury.
func (t *StreamingTreasury) Clone() *StreamingTreasury {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Balance = newBigInt(t.Balance)
	clone.Reserve = newBigInt(t.Reserve)
	clone.TotalInflow = newBigInt(t.TotalInflow)
	clone.TotalSwept = newBigInt(t.TotalSwept)
	return &clone
}

// EpochConfig is the runtime-adjustable epoch schedule.
type EpochConfig struct {
	DurationSeconds int64 `json:"durationSeconds"`
}

// Clone returns a copy of the epoch config.
func (c *EpochConfig) Clone() *EpochConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// EpochSettlement records one completed treasury sweep.
type EpochSettlement struct {
	Treasury      string   `json:"treasury"`
	Sequence      uint64   `json:"sequence"`
	SettledAt     int64    `json:"settledAt"`
	Swept         *big.Int `json:"swept"`
	ToGlobal      *big.Int `json:"toGlobal"`
	ToCreatorDist *big.Int `json:"toCreatorDist"`
	ToPatron      *big.Int `json:"toPatron"`
}

// Clone returns a deep copy of the settlement record.
func (s *EpochSettlement) Clone() *EpochSettlement {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Swept = newBigInt(s.Swept)
	clone.ToGlobal = newBigInt(s.ToGlobal)
	clone.ToCreatorDist = newBigInt(s.ToCreatorDist)
	clone.ToPatron = newBigInt(s.ToPatron)
	return &clone
}

// UnitPending is the computed claimable breakdown for one unit. Amounts do not
// include treasury balances that have not been swept yet.
type UnitPending struct {
	UnitID string   `json:"unitId"`
	Holder *big.Int `json:"holder"`
	Patron *big.Int `json:"patron"`
	Global *big.Int `json:"global"`
	Total  *big.Int `json:"total"`
}

// EpochStatus describes where a treasury sits in its epoch cycle.
type EpochStatus struct {
	Treasury           string   `json:"treasury"`
	DurationSeconds    int64    `json:"durationSeconds"`
	LastDistributionAt int64    `json:"lastDistributionAt"`
	NextDistributionAt int64    `json:"nextDistributionAt"`
	Due                bool     `json:"due"`
	Drainable          *big.Int `json:"drainable"`
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
