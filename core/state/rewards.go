package state

import (
	"fmt"
	"math/big"
	"strings"

	"curiochain/native/rewards"
)

const maxSettlementHistory = 128

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func rewardPoolKey(id string) []byte {
	buf := make([]byte, len(rewardPoolPrefix)+len(id))
	copy(buf, rewardPoolPrefix)
	copy(buf[len(rewardPoolPrefix):], id)
	return buf
}

func rewardUnitKey(unitID string) []byte {
	buf := make([]byte, len(rewardUnitPrefix)+len(unitID))
	copy(buf, rewardUnitPrefix)
	copy(buf[len(rewardUnitPrefix):], unitID)
	return buf
}

func rewardCreatorKey(creator [20]byte) []byte {
	buf := make([]byte, len(rewardCreatorPrefix)+len(creator))
	copy(buf, rewardCreatorPrefix)
	copy(buf[len(rewardCreatorPrefix):], creator[:])
	return buf
}

func rewardTreasuryKey(id string) []byte {
	buf := make([]byte, len(rewardTreasuryPrefix)+len(id))
	copy(buf, rewardTreasuryPrefix)
	copy(buf[len(rewardTreasuryPrefix):], id)
	return buf
}

type storedRewardPool struct {
	ID             string
	Kind           uint8
	TotalWeight    *big.Int
	TotalDeposited *big.Int
	TotalClaimed   *big.Int
	RewardPerShare *big.Int
	Undistributed  *big.Int
	Balance        *big.Int
}

func newStoredRewardPool(pool *rewards.Pool) *storedRewardPool {
	if pool == nil {
		return nil
	}
	return &storedRewardPool{
		ID:             pool.ID,
		Kind:           uint8(pool.Kind),
		TotalWeight:    copyBigInt(pool.TotalWeight),
		TotalDeposited: copyBigInt(pool.TotalDeposited),
		TotalClaimed:   copyBigInt(pool.TotalClaimed),
		RewardPerShare: copyBigInt(pool.RewardPerShare),
		Undistributed:  copyBigInt(pool.Undistributed),
		Balance:        copyBigInt(pool.Balance),
	}
}

func (s *storedRewardPool) toPool() (*rewards.Pool, error) {
	if s == nil {
		return nil, fmt.Errorf("rewards: nil pool record")
	}
	kind := rewards.Kind(s.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("rewards: pool %q has invalid kind %d", s.ID, s.Kind)
	}
	return &rewards.Pool{
		ID:             s.ID,
		Kind:           kind,
		TotalWeight:    copyBigInt(s.TotalWeight),
		TotalDeposited: copyBigInt(s.TotalDeposited),
		TotalClaimed:   copyBigInt(s.TotalClaimed),
		RewardPerShare: copyBigInt(s.RewardPerShare),
		Undistributed:  copyBigInt(s.Undistributed),
		Balance:        copyBigInt(s.Balance),
	}, nil
}

type storedUnitLedger struct {
	UnitID        string
	ContentID     string
	BundleID      string
	Creator       [20]byte
	Owner         [20]byte
	Weight        *big.Int
	MintedAt      *big.Int
	HolderLastRPS *big.Int
	PatronLastRPS *big.Int
	GlobalLastRPS *big.Int
	TotalClaimed  *big.Int
}

func newStoredUnitLedger(ledger *rewards.UnitLedger) *storedUnitLedger {
	if ledger == nil {
		return nil
	}
	return &storedUnitLedger{
		UnitID:        ledger.UnitID,
		ContentID:     ledger.ContentID,
		BundleID:      ledger.BundleID,
		Creator:       ledger.Creator,
		Owner:         ledger.Owner,
		Weight:        copyBigInt(ledger.Weight),
		MintedAt:      big.NewInt(ledger.MintedAt),
		HolderLastRPS: copyBigInt(ledger.HolderLastRPS),
		PatronLastRPS: copyBigInt(ledger.PatronLastRPS),
		GlobalLastRPS: copyBigInt(ledger.GlobalLastRPS),
		TotalClaimed:  copyBigInt(ledger.TotalClaimed),
	}
}

func (s *storedUnitLedger) toUnitLedger() (*rewards.UnitLedger, error) {
	if s == nil {
		return nil, fmt.Errorf("rewards: nil unit record")
	}
	out := &rewards.UnitLedger{
		UnitID:        s.UnitID,
		ContentID:     s.ContentID,
		BundleID:      s.BundleID,
		Creator:       s.Creator,
		Owner:         s.Owner,
		Weight:        copyBigInt(s.Weight),
		HolderLastRPS: copyBigInt(s.HolderLastRPS),
		PatronLastRPS: copyBigInt(s.PatronLastRPS),
		GlobalLastRPS: copyBigInt(s.GlobalLastRPS),
		TotalClaimed:  copyBigInt(s.TotalClaimed),
	}
	if s.MintedAt != nil {
		out.MintedAt = s.MintedAt.Int64()
	}
	return out, nil
}

type storedCreatorStats struct {
	Creator      [20]byte
	TotalWeight  *big.Int
	Accrued      *big.Int
	LastRPS      *big.Int
	TotalClaimed *big.Int
}

func newStoredCreatorStats(stats *rewards.CreatorStats) *storedCreatorStats {
	if stats == nil {
		return nil
	}
	return &storedCreatorStats{
		Creator:      stats.Creator,
		TotalWeight:  copyBigInt(stats.TotalWeight),
		Accrued:      copyBigInt(stats.Accrued),
		LastRPS:      copyBigInt(stats.LastRPS),
		TotalClaimed: copyBigInt(stats.TotalClaimed),
	}
}

func (s *storedCreatorStats) toCreatorStats() *rewards.CreatorStats {
	if s == nil {
		return nil
	}
	return &rewards.CreatorStats{
		Creator:      s.Creator,
		TotalWeight:  copyBigInt(s.TotalWeight),
		Accrued:      copyBigInt(s.Accrued),
		LastRPS:      copyBigInt(s.LastRPS),
		TotalClaimed: copyBigInt(s.TotalClaimed),
	}
}

type storedTreasury struct {
	ID                 string
	Creator            [20]byte
	Balance            *big.Int
	Reserve            *big.Int
	LastDistributionAt *big.Int
	TotalInflow        *big.Int
	TotalSwept         *big.Int
	Epochs             uint64
}

func newStoredTreasury(t *rewards.StreamingTreasury) *storedTreasury {
	if t == nil {
		return nil
	}
	return &storedTreasury{
		ID:                 t.ID,
		Creator:            t.Creator,
		Balance:            copyBigInt(t.Balance),
		Reserve:            copyBigInt(t.Reserve),
		LastDistributionAt: big.NewInt(t.LastDistributionAt),
		TotalInflow:        copyBigInt(t.TotalInflow),
		TotalSwept:         copyBigInt(t.TotalSwept),
		Epochs:             t.Epochs,
	}
}

func (s *storedTreasury) toTreasury() (*rewards.StreamingTreasury, error) {
	if s == nil {
		return nil, fmt.Errorf("rewards: nil treasury record")
	}
	out := &rewards.StreamingTreasury{
		ID:          s.ID,
		Creator:     s.Creator,
		Balance:     copyBigInt(s.Balance),
		Reserve:     copyBigInt(s.Reserve),
		TotalInflow: copyBigInt(s.TotalInflow),
		TotalSwept:  copyBigInt(s.TotalSwept),
		Epochs:      s.Epochs,
	}
	if s.LastDistributionAt != nil {
		out.LastDistributionAt = s.LastDistributionAt.Int64()
	}
	return out, nil
}

type storedEpochSettlement struct {
	Treasury      string
	Sequence      uint64
	SettledAt     *big.Int
	Swept         *big.Int
	ToGlobal      *big.Int
	ToCreatorDist *big.Int
	ToPatron      *big.Int
}

func newStoredEpochSettlement(s *rewards.EpochSettlement) *storedEpochSettlement {
	if s == nil {
		return nil
	}
	return &storedEpochSettlement{
		Treasury:      s.Treasury,
		Sequence:      s.Sequence,
		SettledAt:     big.NewInt(s.SettledAt),
		Swept:         copyBigInt(s.Swept),
		ToGlobal:      copyBigInt(s.ToGlobal),
		ToCreatorDist: copyBigInt(s.ToCreatorDist),
		ToPatron:      copyBigInt(s.ToPatron),
	}
}

func (s *storedEpochSettlement) toSettlement() *rewards.EpochSettlement {
	if s == nil {
		return nil
	}
	out := &rewards.EpochSettlement{
		Treasury:      s.Treasury,
		Sequence:      s.Sequence,
		Swept:         copyBigInt(s.Swept),
		ToGlobal:      copyBigInt(s.ToGlobal),
		ToCreatorDist: copyBigInt(s.ToCreatorDist),
		ToPatron:      copyBigInt(s.ToPatron),
	}
	if s.SettledAt != nil {
		out.SettledAt = s.SettledAt.Int64()
	}
	return out
}

// RewardPoolGet loads the reward pool stored under the provided identifier.
func (m *Manager) RewardPoolGet(id string) (*rewards.Pool, bool, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, false, fmt.Errorf("rewards: pool id must not be empty")
	}
	stored := new(storedRewardPool)
	ok, err := m.KVGet(rewardPoolKey(trimmed), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	pool, err := stored.toPool()
	if err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

// RewardPoolPut persists the provided reward pool.
func (m *Manager) RewardPoolPut(pool *rewards.Pool) error {
	if pool == nil {
		return fmt.Errorf("rewards: nil pool")
	}
	trimmed := strings.TrimSpace(pool.ID)
	if trimmed == "" {
		return fmt.Errorf("rewards: pool id must not be empty")
	}
	return m.KVPut(rewardPoolKey(trimmed), newStoredRewardPool(pool))
}

// UnitLedgerGet loads the reward ledger for a minted unit.
func (m *Manager) UnitLedgerGet(unitID string) (*rewards.UnitLedger, bool, error) {
	trimmed := strings.TrimSpace(unitID)
	if trimmed == "" {
		return nil, false, fmt.Errorf("rewards: unit id must not be empty")
	}
	stored := new(storedUnitLedger)
	ok, err := m.KVGet(rewardUnitKey(trimmed), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	ledger, err := stored.toUnitLedger()
	if err != nil {
		return nil, false, err
	}
	return ledger, true, nil
}

// UnitLedgerPut persists the reward ledger for a minted unit.
func (m *Manager) UnitLedgerPut(ledger *rewards.UnitLedger) error {
	if ledger == nil {
		return fmt.Errorf("rewards: nil unit ledger")
	}
	trimmed := strings.TrimSpace(ledger.UnitID)
	if trimmed == "" {
		return fmt.Errorf("rewards: unit id must not be empty")
	}
	return m.KVPut(rewardUnitKey(trimmed), newStoredUnitLedger(ledger))
}

// CreatorStatsGet loads the aggregate distribution stats for a creator.
func (m *Manager) CreatorStatsGet(creator [20]byte) (*rewards.CreatorStats, bool, error) {
	stored := new(storedCreatorStats)
	ok, err := m.KVGet(rewardCreatorKey(creator), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toCreatorStats(), true, nil
}

// CreatorStatsPut persists the aggregate distribution stats for a creator.
func (m *Manager) CreatorStatsPut(stats *rewards.CreatorStats) error {
	if stats == nil {
		return fmt.Errorf("rewards: nil creator stats")
	}
	return m.KVPut(rewardCreatorKey(stats.Creator), newStoredCreatorStats(stats))
}

// TreasuryGet loads the streaming treasury stored under the provided
// identifier.
func (m *Manager) TreasuryGet(id string) (*rewards.StreamingTreasury, bool, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, false, fmt.Errorf("rewards: treasury id must not be empty")
	}
	stored := new(storedTreasury)
	ok, err := m.KVGet(rewardTreasuryKey(trimmed), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	treasury, err := stored.toTreasury()
	if err != nil {
		return nil, false, err
	}
	return treasury, true, nil
}

// TreasuryPut persists the provided streaming treasury.
func (m *Manager) TreasuryPut(treasury *rewards.StreamingTreasury) error {
	if treasury == nil {
		return fmt.Errorf("rewards: nil treasury")
	}
	trimmed := strings.TrimSpace(treasury.ID)
	if trimmed == "" {
		return fmt.Errorf("rewards: treasury id must not be empty")
	}
	return m.KVPut(rewardTreasuryKey(trimmed), newStoredTreasury(treasury))
}

// EpochConfigGet loads the epoch schedule override, when one has been set.
func (m *Manager) EpochConfigGet() (*rewards.EpochConfig, bool, error) {
	var duration *big.Int
	ok, err := m.KVGet(rewardEpochConfigKey, &duration)
	if err != nil {
		return nil, false, err
	}
	if !ok || duration == nil {
		return nil, false, nil
	}
	return &rewards.EpochConfig{DurationSeconds: duration.Int64()}, true, nil
}

// EpochConfigPut persists the epoch schedule override.
func (m *Manager) EpochConfigPut(cfg *rewards.EpochConfig) error {
	if cfg == nil {
		return fmt.Errorf("rewards: nil epoch config")
	}
	if cfg.DurationSeconds <= 0 {
		return fmt.Errorf("rewards: epoch duration must be positive")
	}
	return m.KVPut(rewardEpochConfigKey, big.NewInt(cfg.DurationSeconds))
}

// SettlementAppend records one epoch settlement, keeping a bounded history of
// the most recent entries.
func (m *Manager) SettlementAppend(settlement *rewards.EpochSettlement) error {
	if settlement == nil {
		return fmt.Errorf("rewards: nil settlement")
	}
	var stored []*storedEpochSettlement
	if err := m.KVGetList(rewardSettlementsKey, &stored); err != nil {
		return err
	}
	stored = append(stored, newStoredEpochSettlement(settlement))
	if len(stored) > maxSettlementHistory {
		stored = stored[len(stored)-maxSettlementHistory:]
	}
	return m.KVPut(rewardSettlementsKey, stored)
}

// Settlements returns the retained epoch settlement history, oldest first.
func (m *Manager) Settlements() ([]*rewards.EpochSettlement, error) {
	var stored []*storedEpochSettlement
	if err := m.KVGetList(rewardSettlementsKey, &stored); err != nil {
		return nil, err
	}
	out := make([]*rewards.EpochSettlement, 0, len(stored))
	for _, record := range stored {
		if record == nil {
			continue
		}
		out = append(out, record.toSettlement())
	}
	return out, nil
}
