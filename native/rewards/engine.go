package rewards

import (
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"curiochain/core/events"
	"curiochain/core/types"
)

const (
	// DefaultEpochDurationSeconds is the sweep cadence used until an
	// operator overrides it.
	DefaultEpochDurationSeconds int64 = 86_400
	// DefaultTreasuryReserveLamports is kept behind in every streaming
	// treasury so the backing account stays rent exempt.
	DefaultTreasuryReserveLamports int64 = 890_880
	// DefaultSweepGlobalBps is the ecosystem sweep share routed to the
	// global holder pool; the rest goes to the creator distribution pool.
	DefaultSweepGlobalBps uint32 = 5_000

	bpsDenominator = 10_000
)

type engineState interface {
	RewardPoolGet(id string) (*Pool, bool, error)
	RewardPoolPut(pool *Pool) error
	UnitLedgerGet(unitID string) (*UnitLedger, bool, error)
	UnitLedgerPut(ledger *UnitLedger) error
	CreatorStatsGet(creator [20]byte) (*CreatorStats, bool, error)
	CreatorStatsPut(stats *CreatorStats) error
	TreasuryGet(id string) (*StreamingTreasury, bool, error)
	TreasuryPut(treasury *StreamingTreasury) error
	EpochConfigGet() (*EpochConfig, bool, error)
	EpochConfigPut(cfg *EpochConfig) error
	SettlementAppend(settlement *EpochSettlement) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine owns the reward accumulators: pool deposits, weight registration,
// lazy epoch sweeps and the four claim paths. Callers are expected to run
// every method inside one serialized ledger transaction.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64

	sweepGlobalBps  uint32
	treasuryReserve *big.Int
	defaultDuration int64
}

// NewEngine constructs a rewards engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		sweepGlobalBps:  DefaultSweepGlobalBps,
		treasuryReserve: big.NewInt(DefaultTreasuryReserveLamports),
		defaultDuration: DefaultEpochDurationSeconds,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetSweepGlobalBps configures how much of an ecosystem sweep lands in the
// global holder pool, in basis points. The remainder funds the creator
// distribution pool.
func (e *Engine) SetSweepGlobalBps(bps uint32) {
	if bps > bpsDenominator {
		bps = bpsDenominator
	}
	e.sweepGlobalBps = bps
}

// SetTreasuryReserve configures the rent-exempt floor left behind by sweeps.
func (e *Engine) SetTreasuryReserve(reserve *big.Int) {
	if reserve == nil || reserve.Sign() < 0 {
		e.treasuryReserve = big.NewInt(DefaultTreasuryReserveLamports)
		return
	}
	e.treasuryReserve = new(big.Int).Set(reserve)
}

// SetDefaultEpochDuration configures the fallback sweep cadence used before
// any on-ledger override is recorded.
func (e *Engine) SetDefaultEpochDuration(seconds int64) {
	if seconds <= 0 {
		e.defaultDuration = DefaultEpochDurationSeconds
		return
	}
	e.defaultDuration = seconds
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// EpochDuration returns the active sweep cadence in seconds.
func (e *Engine) EpochDuration() (int64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	cfg, ok, err := e.state.EpochConfigGet()
	if err != nil {
		return 0, err
	}
	if ok && cfg != nil && cfg.DurationSeconds > 0 {
		return cfg.DurationSeconds, nil
	}
	return e.defaultDuration, nil
}

// UpdateEpochDuration records a new sweep cadence. Authorisation is enforced
// by the caller.
func (e *Engine) UpdateEpochDuration(seconds int64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if seconds <= 0 {
		return errInvalidDuration
	}
	previous, err := e.EpochDuration()
	if err != nil {
		return err
	}
	if err := e.state.EpochConfigPut(&EpochConfig{DurationSeconds: seconds}); err != nil {
		return err
	}
	e.emit(EpochDurationUpdatedEvent(previous, seconds))
	return nil
}

func (e *Engine) loadOrCreatePool(id string) (*Pool, error) {
	kind, ok := KindOfPoolID(id)
	if !ok {
		return nil, errInvalidPoolID
	}
	pool, found, err := e.state.RewardPoolGet(id)
	if err != nil {
		return nil, err
	}
	if !found || pool == nil {
		return NewPool(id, kind), nil
	}
	pool.normalize()
	return pool, nil
}

func (e *Engine) requirePool(id string) (*Pool, error) {
	pool, found, err := e.state.RewardPoolGet(id)
	if err != nil {
		return nil, err
	}
	if !found || pool == nil {
		return nil, ErrPoolNotFound
	}
	pool.normalize()
	return pool, nil
}

// registerPoolWeight adds weight to a pool and returns the accumulator
// baseline for the new checkpoint. The baseline predates any fold of held
// undistributed funds, so the first registrant can claim the backlog.
func (e *Engine) registerPoolWeight(pool *Pool, weight *big.Int) (*big.Int, error) {
	baseline := newBigInt(pool.RewardPerShare)
	newTotal, err := checkedAdd(pool.TotalWeight, weight)
	if err != nil {
		return nil, err
	}
	firstWeight := pool.TotalWeight.Sign() == 0
	pool.TotalWeight = newTotal
	if firstWeight && pool.Undistributed.Sign() > 0 {
		delta, err := accrualPerShare(pool.Undistributed, pool.TotalWeight)
		if err != nil {
			return nil, err
		}
		pool.RewardPerShare, err = checkedAdd(pool.RewardPerShare, delta)
		if err != nil {
			return nil, err
		}
		pool.Undistributed = big.NewInt(0)
	}
	return baseline, nil
}

// depositToPool credits a pool, growing the accumulator when weight exists
// and parking the amount otherwise. Returns distributed and dust amounts.
func (e *Engine) depositToPool(pool *Pool, amount *big.Int) (*big.Int, *big.Int, error) {
	var err error
	pool.TotalDeposited, err = checkedAdd(pool.TotalDeposited, amount)
	if err != nil {
		return nil, nil, err
	}
	pool.Balance, err = checkedAdd(pool.Balance, amount)
	if err != nil {
		return nil, nil, err
	}
	if pool.TotalWeight.Sign() == 0 {
		pool.Undistributed, err = checkedAdd(pool.Undistributed, amount)
		if err != nil {
			return nil, nil, err
		}
		return big.NewInt(0), big.NewInt(0), nil
	}
	delta, err := accrualPerShare(amount, pool.TotalWeight)
	if err != nil {
		return nil, nil, err
	}
	pool.RewardPerShare, err = checkedAdd(pool.RewardPerShare, delta)
	if err != nil {
		return nil, nil, err
	}
	distributed, err := distributedOf(delta, pool.TotalWeight)
	if err != nil {
		return nil, nil, err
	}
	dust := new(big.Int).Sub(amount, distributed)
	if dust.Sign() < 0 {
		return nil, nil, ErrArithmeticOverflow
	}
	return distributed, dust, nil
}

// Deposit routes lamports into the identified pool. Deposits into a pool with
// zero registered weight are held until the first weight arrives.
func (e *Engine) Deposit(poolID string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadOrCreatePool(poolID)
	if err != nil {
		return err
	}
	distributed, dust, err := e.depositToPool(pool, amount)
	if err != nil {
		return err
	}
	if err := e.state.RewardPoolPut(pool); err != nil {
		return err
	}
	e.emit(PoolDepositEvent(pool.ID, amount.String(), distributed.String(), dust.String(), pool.Undistributed.String()))
	return nil
}

// PoolWeight reports a pool's registered weight and whether the pool exists.
// The router uses this to detect first-mint deposits that must fall back to
// the creator.
func (e *Engine) PoolWeight(poolID string) (*big.Int, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	pool, found, err := e.state.RewardPoolGet(poolID)
	if err != nil {
		return nil, false, err
	}
	if !found || pool == nil {
		return big.NewInt(0), false, nil
	}
	return newBigInt(pool.TotalWeight), true, nil
}

// RegisterUnit enters a freshly minted unit into its pools: the content or
// bundle pool it was minted against, its creator's patron pool, the global
// holder pool, plus the creator's aggregate in the creator distribution pool.
// The weight is immutable afterwards.
func (e *Engine) RegisterUnit(unit *UnitLedger) (*UnitLedger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if unit == nil || strings.TrimSpace(unit.UnitID) == "" {
		return nil, errMissingUnitID
	}
	if unit.Weight == nil || unit.Weight.Sign() <= 0 {
		return nil, ErrInvalidWeight
	}
	contentRef := strings.TrimSpace(unit.ContentID)
	bundleRef := strings.TrimSpace(unit.BundleID)
	if contentRef == "" && bundleRef == "" {
		return nil, errMissingPoolRef
	}
	if contentRef != "" && bundleRef != "" {
		return nil, errConflictingPoolRef
	}
	if isZeroAddress(unit.Creator) {
		return nil, errZeroCreator
	}
	if isZeroAddress(unit.Owner) {
		return nil, errZeroOwner
	}
	if _, found, err := e.state.UnitLedgerGet(strings.TrimSpace(unit.UnitID)); err != nil {
		return nil, err
	} else if found {
		return nil, errUnitExists
	}

	ledger := &UnitLedger{
		UnitID:       strings.TrimSpace(unit.UnitID),
		ContentID:    contentRef,
		BundleID:     bundleRef,
		Creator:      unit.Creator,
		Owner:        unit.Owner,
		Weight:       newBigInt(unit.Weight),
		MintedAt:     unit.MintedAt,
		TotalClaimed: big.NewInt(0),
	}
	if ledger.MintedAt == 0 {
		ledger.MintedAt = e.now()
	}

	holderPool, err := e.loadOrCreatePool(ledger.HolderPoolID())
	if err != nil {
		return nil, err
	}
	if ledger.HolderLastRPS, err = e.registerPoolWeight(holderPool, ledger.Weight); err != nil {
		return nil, err
	}
	if err := e.state.RewardPoolPut(holderPool); err != nil {
		return nil, err
	}

	patronPool, err := e.loadOrCreatePool(PatronPoolID(ledger.Creator))
	if err != nil {
		return nil, err
	}
	if ledger.PatronLastRPS, err = e.registerPoolWeight(patronPool, ledger.Weight); err != nil {
		return nil, err
	}
	if err := e.state.RewardPoolPut(patronPool); err != nil {
		return nil, err
	}

	globalPool, err := e.loadOrCreatePool(GlobalPoolID)
	if err != nil {
		return nil, err
	}
	if ledger.GlobalLastRPS, err = e.registerPoolWeight(globalPool, ledger.Weight); err != nil {
		return nil, err
	}
	if err := e.state.RewardPoolPut(globalPool); err != nil {
		return nil, err
	}

	if err := e.registerCreatorWeight(ledger.Creator, ledger.Weight); err != nil {
		return nil, err
	}

	if err := e.state.UnitLedgerPut(ledger); err != nil {
		return nil, err
	}
	e.emit(WeightRegisteredEvent(ledger.UnitID, ledger.HolderPoolID(), hexAddr(ledger.Creator), hexAddr(ledger.Owner), ledger.Weight.String()))
	return ledger.Clone(), nil
}

// registerCreatorWeight settles the creator's pending creator-dist rewards at
// the old weight, then grows both the creator aggregate and the pool total.
func (e *Engine) registerCreatorWeight(creator [20]byte, weight *big.Int) error {
	pool, err := e.loadOrCreatePool(CreatorDistPoolID)
	if err != nil {
		return err
	}
	stats, found, err := e.state.CreatorStatsGet(creator)
	if err != nil {
		return err
	}
	if !found || stats == nil {
		stats = newCreatorStats(creator)
	}
	if stats.TotalWeight.Sign() > 0 {
		pending, err := pendingAmount(stats.TotalWeight, pool.RewardPerShare, stats.LastRPS)
		if err != nil {
			return err
		}
		if pending.Sign() > 0 {
			stats.Accrued, err = checkedAdd(stats.Accrued, pending)
			if err != nil {
				return err
			}
		}
	}
	baseline, err := e.registerPoolWeight(pool, weight)
	if err != nil {
		return err
	}
	// A fold of held funds must remain claimable by this creator, so the
	// checkpoint stays at the pre-fold accumulator value.
	stats.LastRPS = baseline
	stats.TotalWeight, err = checkedAdd(stats.TotalWeight, weight)
	if err != nil {
		return err
	}
	if err := e.state.RewardPoolPut(pool); err != nil {
		return err
	}
	return e.state.CreatorStatsPut(stats)
}

// TransferUnit reassigns the claim payee for a unit. Unclaimed rewards travel
// with the unit.
func (e *Engine) TransferUnit(unitID string, newOwner [20]byte) (*UnitLedger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(newOwner) {
		return nil, errZeroOwner
	}
	unit, found, err := e.state.UnitLedgerGet(strings.TrimSpace(unitID))
	if err != nil {
		return nil, err
	}
	if !found || unit == nil {
		return nil, ErrUnregisteredUnit
	}
	if unit.Owner == newOwner {
		return unit.Clone(), nil
	}
	previous := unit.Owner
	unit.Owner = newOwner
	if err := e.state.UnitLedgerPut(unit); err != nil {
		return nil, err
	}
	e.emit(OwnerChangedEvent(unit.UnitID, hexAddr(previous), hexAddr(newOwner)))
	return unit.Clone(), nil
}

// CreditTreasury adds lamports to a streaming treasury, creating it on first
// use with the configured reserve floor.
func (e *Engine) CreditTreasury(id string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	treasury, err := e.loadOrCreateTreasury(id)
	if err != nil {
		return err
	}
	if treasury.Balance, err = checkedAdd(treasury.Balance, amount); err != nil {
		return err
	}
	if treasury.TotalInflow, err = checkedAdd(treasury.TotalInflow, amount); err != nil {
		return err
	}
	if err := e.state.TreasuryPut(treasury); err != nil {
		return err
	}
	e.emit(TreasuryCreditedEvent(treasury.ID, amount.String(), treasury.Balance.String()))
	return nil
}

func (e *Engine) loadOrCreateTreasury(id string) (*StreamingTreasury, error) {
	if !ValidTreasuryID(id) {
		return nil, errInvalidTreasuryID
	}
	treasury, found, err := e.state.TreasuryGet(id)
	if err != nil {
		return nil, err
	}
	if found && treasury != nil {
		treasury.Balance = newBigInt(treasury.Balance)
		treasury.Reserve = newBigInt(treasury.Reserve)
		treasury.TotalInflow = newBigInt(treasury.TotalInflow)
		treasury.TotalSwept = newBigInt(treasury.TotalSwept)
		return treasury, nil
	}
	fresh := &StreamingTreasury{
		ID:                 id,
		Balance:            big.NewInt(0),
		Reserve:            new(big.Int).Set(e.treasuryReserve),
		LastDistributionAt: e.now(),
		TotalInflow:        big.NewInt(0),
		TotalSwept:         big.NewInt(0),
	}
	if strings.HasPrefix(id, patronTreasuryPrefix) {
		raw, err := hex.DecodeString(id[len(patronTreasuryPrefix):])
		if err != nil || len(raw) != 20 {
			return nil, errInvalidTreasuryID
		}
		copy(fresh.Creator[:], raw)
	}
	return fresh, nil
}

// sweepTreasuryIfDue lazily settles one epoch for a treasury when its window
// has elapsed. The first caller after the boundary wins; everyone else is a
// no-op. Missing treasuries and empty windows are no-ops as well.
func (e *Engine) sweepTreasuryIfDue(id string, now int64) (*EpochSettlement, error) {
	treasury, found, err := e.state.TreasuryGet(id)
	if err != nil {
		return nil, err
	}
	if !found || treasury == nil {
		return nil, nil
	}
	treasury.Balance = newBigInt(treasury.Balance)
	treasury.Reserve = newBigInt(treasury.Reserve)
	treasury.TotalInflow = newBigInt(treasury.TotalInflow)
	treasury.TotalSwept = newBigInt(treasury.TotalSwept)

	duration, err := e.EpochDuration()
	if err != nil {
		return nil, err
	}
	if now < treasury.LastDistributionAt+duration {
		return nil, nil
	}

	drainable := new(big.Int).Sub(treasury.Balance, treasury.Reserve)
	if drainable.Sign() <= 0 {
		// The window still closes; an empty epoch is consumed without a
		// settlement record.
		treasury.LastDistributionAt = now
		if err := e.state.TreasuryPut(treasury); err != nil {
			return nil, err
		}
		return nil, nil
	}

	settlement := &EpochSettlement{
		Treasury:      treasury.ID,
		SettledAt:     now,
		Swept:         new(big.Int).Set(drainable),
		ToGlobal:      big.NewInt(0),
		ToCreatorDist: big.NewInt(0),
		ToPatron:      big.NewInt(0),
	}

	if id == EcosystemTreasuryID {
		toGlobal, err := mulDiv(drainable, big.NewInt(int64(e.sweepGlobalBps)), big.NewInt(bpsDenominator))
		if err != nil {
			return nil, err
		}
		toCreators := new(big.Int).Sub(drainable, toGlobal)
		if err := e.sweepInto(GlobalPoolID, toGlobal); err != nil {
			return nil, err
		}
		if err := e.sweepInto(CreatorDistPoolID, toCreators); err != nil {
			return nil, err
		}
		settlement.ToGlobal = toGlobal
		settlement.ToCreatorDist = toCreators
	} else {
		if err := e.sweepInto(PatronPoolID(treasury.Creator), drainable); err != nil {
			return nil, err
		}
		settlement.ToPatron = new(big.Int).Set(drainable)
	}

	treasury.Balance = new(big.Int).Set(treasury.Reserve)
	if treasury.TotalSwept, err = checkedAdd(treasury.TotalSwept, drainable); err != nil {
		return nil, err
	}
	treasury.Epochs++
	treasury.LastDistributionAt = now
	settlement.Sequence = treasury.Epochs
	if err := e.state.TreasuryPut(treasury); err != nil {
		return nil, err
	}
	if err := e.state.SettlementAppend(settlement.Clone()); err != nil {
		return nil, err
	}
	e.emit(EpochSettledEvent(settlement))
	return settlement, nil
}

func (e *Engine) sweepInto(poolID string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	pool, err := e.loadOrCreatePool(poolID)
	if err != nil {
		return err
	}
	distributed, dust, err := e.depositToPool(pool, amount)
	if err != nil {
		return err
	}
	if err := e.state.RewardPoolPut(pool); err != nil {
		return err
	}
	e.emit(PoolDepositEvent(pool.ID, amount.String(), distributed.String(), dust.String(), pool.Undistributed.String()))
	return nil
}

// payPools debits each pool by its pending share and credits the account with
// the sum. Pool order matches the breakdown order.
func (e *Engine) payPools(account [20]byte, pools []*Pool, shares []*big.Int) (*big.Int, error) {
	total := big.NewInt(0)
	var err error
	for i, pool := range pools {
		share := shares[i]
		if share.Sign() == 0 {
			continue
		}
		if pool.Balance.Cmp(share) < 0 {
			return nil, errPoolUnderfunded
		}
		pool.Balance = new(big.Int).Sub(pool.Balance, share)
		if pool.TotalClaimed, err = checkedAdd(pool.TotalClaimed, share); err != nil {
			return nil, err
		}
		if total, err = checkedAdd(total, share); err != nil {
			return nil, err
		}
	}
	if total.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	for _, pool := range pools {
		if err := e.state.RewardPoolPut(pool); err != nil {
			return nil, err
		}
	}
	acc, err := e.state.GetAccount(account[:])
	if err != nil {
		return nil, err
	}
	acc = ensureAccount(acc)
	if acc.Balance, err = checkedAdd(acc.Balance, total); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(account[:], acc); err != nil {
		return nil, err
	}
	return total, nil
}

func (e *Engine) loadUnit(unitID string) (*UnitLedger, error) {
	unit, found, err := e.state.UnitLedgerGet(strings.TrimSpace(unitID))
	if err != nil {
		return nil, err
	}
	if !found || unit == nil {
		return nil, ErrUnregisteredUnit
	}
	unit.Weight = newBigInt(unit.Weight)
	unit.HolderLastRPS = newBigInt(unit.HolderLastRPS)
	unit.PatronLastRPS = newBigInt(unit.PatronLastRPS)
	unit.GlobalLastRPS = newBigInt(unit.GlobalLastRPS)
	unit.TotalClaimed = newBigInt(unit.TotalClaimed)
	return unit, nil
}

// claimHolderRewards settles the unit's content-or-bundle pool plus its
// global pool share in one payout.
func (e *Engine) claimHolderRewards(unitID string, wantBundle bool) (*big.Int, error) {
	unit, err := e.loadUnit(unitID)
	if err != nil {
		return nil, err
	}
	if wantBundle && unit.BundleID == "" {
		return nil, errNotBundleUnit
	}
	if !wantBundle && unit.ContentID == "" {
		return nil, errNotContentUnit
	}

	if _, err := e.sweepTreasuryIfDue(EcosystemTreasuryID, e.now()); err != nil {
		return nil, err
	}

	holderPool, err := e.requirePool(unit.HolderPoolID())
	if err != nil {
		return nil, err
	}
	globalPool, err := e.requirePool(GlobalPoolID)
	if err != nil {
		return nil, err
	}

	holderShare, err := pendingAmount(unit.Weight, holderPool.RewardPerShare, unit.HolderLastRPS)
	if err != nil {
		return nil, err
	}
	globalShare, err := pendingAmount(unit.Weight, globalPool.RewardPerShare, unit.GlobalLastRPS)
	if err != nil {
		return nil, err
	}

	total, err := e.payPools(unit.Owner, []*Pool{holderPool, globalPool}, []*big.Int{holderShare, globalShare})
	if err != nil {
		return nil, err
	}

	unit.HolderLastRPS = newBigInt(holderPool.RewardPerShare)
	unit.GlobalLastRPS = newBigInt(globalPool.RewardPerShare)
	if unit.TotalClaimed, err = checkedAdd(unit.TotalClaimed, total); err != nil {
		return nil, err
	}
	if err := e.state.UnitLedgerPut(unit); err != nil {
		return nil, err
	}

	scope := "content"
	if wantBundle {
		scope = "bundle"
	}
	e.emit(ClaimPaidEvent(scope, unit.UnitID, hexAddr(unit.Owner), total.String(), map[string]string{
		"holderAmount": holderShare.String(),
		"globalAmount": globalShare.String(),
		"holderPool":   holderPool.ID,
	}))
	return total, nil
}

// ClaimContentRewards pays a content unit's pending content-pool and
// global-pool rewards to its owner, sweeping the ecosystem treasury first
// when an epoch is due.
func (e *Engine) ClaimContentRewards(unitID string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.claimHolderRewards(unitID, false)
}

// ClaimBundleRewards is the bundle-unit counterpart of ClaimContentRewards.
func (e *Engine) ClaimBundleRewards(unitID string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.claimHolderRewards(unitID, true)
}

// ClaimPatronRewards pays a unit's pending share of its creator's patron
// pool, sweeping that creator's patron treasury first when an epoch is due.
func (e *Engine) ClaimPatronRewards(unitID string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	unit, err := e.loadUnit(unitID)
	if err != nil {
		return nil, err
	}

	if _, err := e.sweepTreasuryIfDue(PatronTreasuryID(unit.Creator), e.now()); err != nil {
		return nil, err
	}

	pool, err := e.requirePool(PatronPoolID(unit.Creator))
	if err != nil {
		return nil, err
	}
	share, err := pendingAmount(unit.Weight, pool.RewardPerShare, unit.PatronLastRPS)
	if err != nil {
		return nil, err
	}
	total, err := e.payPools(unit.Owner, []*Pool{pool}, []*big.Int{share})
	if err != nil {
		return nil, err
	}

	unit.PatronLastRPS = newBigInt(pool.RewardPerShare)
	if unit.TotalClaimed, err = checkedAdd(unit.TotalClaimed, total); err != nil {
		return nil, err
	}
	if err := e.state.UnitLedgerPut(unit); err != nil {
		return nil, err
	}
	e.emit(ClaimPaidEvent("patron", unit.UnitID, hexAddr(unit.Owner), total.String(), map[string]string{
		"patronPool": pool.ID,
	}))
	return total, nil
}

// ClaimCreatorPayout pays a creator their accrued plus live share of the
// creator distribution pool, sweeping the ecosystem treasury first when an
// epoch is due.
func (e *Engine) ClaimCreatorPayout(creator [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(creator) {
		return nil, errZeroCreator
	}

	if _, err := e.sweepTreasuryIfDue(EcosystemTreasuryID, e.now()); err != nil {
		return nil, err
	}

	stats, found, err := e.state.CreatorStatsGet(creator)
	if err != nil {
		return nil, err
	}
	if !found || stats == nil {
		return nil, ErrNothingToClaim
	}
	stats.TotalWeight = newBigInt(stats.TotalWeight)
	stats.Accrued = newBigInt(stats.Accrued)
	stats.LastRPS = newBigInt(stats.LastRPS)
	stats.TotalClaimed = newBigInt(stats.TotalClaimed)

	pool, err := e.requirePool(CreatorDistPoolID)
	if err != nil {
		return nil, err
	}
	live, err := pendingAmount(stats.TotalWeight, pool.RewardPerShare, stats.LastRPS)
	if err != nil {
		return nil, err
	}
	share, err := checkedAdd(stats.Accrued, live)
	if err != nil {
		return nil, err
	}
	total, err := e.payPools(creator, []*Pool{pool}, []*big.Int{share})
	if err != nil {
		return nil, err
	}

	stats.Accrued = big.NewInt(0)
	stats.LastRPS = newBigInt(pool.RewardPerShare)
	if stats.TotalClaimed, err = checkedAdd(stats.TotalClaimed, total); err != nil {
		return nil, err
	}
	if err := e.state.CreatorStatsPut(stats); err != nil {
		return nil, err
	}
	e.emit(ClaimPaidEvent("creator", "", hexAddr(creator), total.String(), nil))
	return total, nil
}

// PoolInfo returns a copy of the pool record.
func (e *Engine) PoolInfo(poolID string) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.requirePool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// Unit returns a copy of the unit ledger.
func (e *Engine) Unit(unitID string) (*UnitLedger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	unit, err := e.loadUnit(unitID)
	if err != nil {
		return nil, err
	}
	return unit.Clone(), nil
}

// Creator returns a copy of the creator stats.
func (e *Engine) Creator(creator [20]byte) (*CreatorStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats, found, err := e.state.CreatorStatsGet(creator)
	if err != nil {
		return nil, err
	}
	if !found || stats == nil {
		return newCreatorStats(creator), nil
	}
	return stats.Clone(), nil
}

// Treasury returns a copy of the treasury record.
func (e *Engine) Treasury(id string) (*StreamingTreasury, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !ValidTreasuryID(id) {
		return nil, errInvalidTreasuryID
	}
	treasury, found, err := e.state.TreasuryGet(id)
	if err != nil {
		return nil, err
	}
	if !found || treasury == nil {
		return nil, ErrTreasuryNotFound
	}
	return treasury.Clone(), nil
}

// PendingUnit computes the unit's claimable amounts against the current
// accumulators without mutating state. Unswept treasury balances are not
// included.
func (e *Engine) PendingUnit(unitID string) (*UnitPending, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	unit, err := e.loadUnit(unitID)
	if err != nil {
		return nil, err
	}
	pending := &UnitPending{
		UnitID: unit.UnitID,
		Holder: big.NewInt(0),
		Patron: big.NewInt(0),
		Global: big.NewInt(0),
		Total:  big.NewInt(0),
	}
	if pool, found, err := e.state.RewardPoolGet(unit.HolderPoolID()); err != nil {
		return nil, err
	} else if found && pool != nil {
		if pending.Holder, err = pendingAmount(unit.Weight, pool.RewardPerShare, unit.HolderLastRPS); err != nil {
			return nil, err
		}
	}
	if pool, found, err := e.state.RewardPoolGet(PatronPoolID(unit.Creator)); err != nil {
		return nil, err
	} else if found && pool != nil {
		if pending.Patron, err = pendingAmount(unit.Weight, pool.RewardPerShare, unit.PatronLastRPS); err != nil {
			return nil, err
		}
	}
	if pool, found, err := e.state.RewardPoolGet(GlobalPoolID); err != nil {
		return nil, err
	} else if found && pool != nil {
		if pending.Global, err = pendingAmount(unit.Weight, pool.RewardPerShare, unit.GlobalLastRPS); err != nil {
			return nil, err
		}
	}
	total := new(big.Int).Add(pending.Holder, pending.Patron)
	pending.Total = total.Add(total, pending.Global)
	return pending, nil
}

// PendingCreator computes the creator's claimable creator-dist amount.
func (e *Engine) PendingCreator(creator [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats, found, err := e.state.CreatorStatsGet(creator)
	if err != nil {
		return nil, err
	}
	if !found || stats == nil {
		return big.NewInt(0), nil
	}
	total := newBigInt(stats.Accrued)
	pool, found, err := e.state.RewardPoolGet(CreatorDistPoolID)
	if err != nil {
		return nil, err
	}
	if found && pool != nil {
		live, err := pendingAmount(stats.TotalWeight, pool.RewardPerShare, stats.LastRPS)
		if err != nil {
			return nil, err
		}
		total = total.Add(total, live)
	}
	return total, nil
}

// EpochStatus reports where a treasury sits in its sweep cycle.
func (e *Engine) EpochStatus(treasuryID string) (*EpochStatus, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !ValidTreasuryID(treasuryID) {
		return nil, errInvalidTreasuryID
	}
	duration, err := e.EpochDuration()
	if err != nil {
		return nil, err
	}
	status := &EpochStatus{
		Treasury:        treasuryID,
		DurationSeconds: duration,
		Drainable:       big.NewInt(0),
	}
	treasury, found, err := e.state.TreasuryGet(treasuryID)
	if err != nil {
		return nil, err
	}
	if !found || treasury == nil {
		return status, nil
	}
	status.LastDistributionAt = treasury.LastDistributionAt
	status.NextDistributionAt = treasury.LastDistributionAt + duration
	status.Due = e.now() >= status.NextDistributionAt
	drainable := new(big.Int).Sub(newBigInt(treasury.Balance), newBigInt(treasury.Reserve))
	if drainable.Sign() > 0 {
		status.Drainable = drainable
	}
	return status, nil
}
