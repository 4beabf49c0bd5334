package router

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"curiochain/core/events"
	"curiochain/core/types"
	"curiochain/native/rewards"
)

var (
	errNilState              = errors.New("deposit router: state not configured")
	errNilLedger             = errors.New("deposit router: pool ledger not configured")
	errInvalidAmount         = errors.New("deposit router: amount must be positive")
	errMissingContentID      = errors.New("deposit router: content id required")
	errMissingBundleID       = errors.New("deposit router: bundle id required")
	errMissingMembers        = errors.New("deposit router: bundle has no members")
	errZeroPayer             = errors.New("deposit router: payer address required")
	errZeroCreator           = errors.New("deposit router: creator address required")
	errPlatformAccountNotSet = errors.New("deposit router: platform account not configured")
	errInvalidSplit          = errors.New("deposit router: invalid split")

	// ErrInsufficientFunds is returned when the payer cannot cover the
	// settled amount.
	ErrInsufficientFunds = errors.New("deposit router: insufficient funds")
)

// PoolLedger is the slice of the rewards engine the router needs: weight
// lookups for the first-mint fallback and the two credit paths.
type PoolLedger interface {
	PoolWeight(poolID string) (*big.Int, bool, error)
	Deposit(poolID string, amount *big.Int) error
	CreditTreasury(id string, amount *big.Int) error
}

type engineState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine settles payments by splitting them across creator accounts, holder
// reward pools, the platform fee account and the streaming treasuries.
type Engine struct {
	state           engineState
	ledger          PoolLedger
	emitter         events.Emitter
	nowFn           func() int64
	mintSplit       Split
	rentalSplit     Split
	platformAccount [20]byte
}

// NewEngine constructs a router engine with the default split policies.
func NewEngine() *Engine {
	return &Engine{
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
		mintSplit:   DefaultMintSplit(),
		rentalSplit: DefaultRentalSplit(),
	}
}

// SetState configures the account state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the reward pool ledger deposits are routed into.
func (e *Engine) SetLedger(ledger PoolLedger) { e.ledger = ledger }

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

// SetPlatformAccount configures the account credited with platform fees.
func (e *Engine) SetPlatformAccount(addr [20]byte) { e.platformAccount = addr }

// SetMintSplit overrides the mint revenue split.
func (e *Engine) SetMintSplit(split Split) error {
	if err := split.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidSplit, err)
	}
	e.mintSplit = split
	return nil
}

// SetRentalSplit overrides the rental fee split.
func (e *Engine) SetRentalSplit(split Split) error {
	if err := split.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidSplit, err)
	}
	if split.HolderBps != 0 {
		return fmt.Errorf("%w: rentals carry no holder share", errInvalidSplit)
	}
	e.rentalSplit = split
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
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

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func (e *Engine) debit(addr [20]byte, amount *big.Int) error {
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account = ensureAccount(account)
	if account.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	account.Balance = new(big.Int).Sub(account.Balance, amount)
	return e.state.PutAccount(addr[:], account)
}

func (e *Engine) credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account = ensureAccount(account)
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return e.state.PutAccount(addr[:], account)
}

// depositOrFallback sends amount to the pool unless it has no registered
// weight yet, in which case the amount is returned for the creator instead.
// The first mint against a piece of content always lands here: the minter's
// own unit is not registered until after the payment settles, so the holder
// share of mint number one belongs to the creator.
func (e *Engine) depositOrFallback(poolID string, amount *big.Int) (*big.Int, *big.Int, error) {
	if amount.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}
	weight, ok, err := e.ledger.PoolWeight(poolID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || weight.Sign() == 0 {
		return big.NewInt(0), new(big.Int).Set(amount), nil
	}
	if err := e.ledger.Deposit(poolID, amount); err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(amount), big.NewInt(0), nil
}

func (e *Engine) settleCommon(payer, creator [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if isZeroAddress(payer) {
		return errZeroPayer
	}
	if isZeroAddress(creator) {
		return errZeroCreator
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if isZeroAddress(e.platformAccount) {
		return errPlatformAccountNotSet
	}
	return nil
}

// MintReceipt reports where a settled mint payment went.
type MintReceipt struct {
	ContentID       string   `json:"contentId"`
	Price           *big.Int `json:"price"`
	CreatorPaid     *big.Int `json:"creatorPaid"`
	HolderDeposited *big.Int `json:"holderDeposited"`
	PlatformFee     *big.Int `json:"platformFee"`
	EcosystemFee    *big.Int `json:"ecosystemFee"`
}

// SettleMint debits the payer and splits a content mint payment. The holder
// share goes to the content's reward pool; when that pool has no weight yet
// it is paid to the creator instead.
func (e *Engine) SettleMint(payer, creator [20]byte, contentID string, price *big.Int) (*MintReceipt, error) {
	if err := e.settleCommon(payer, creator, price); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(contentID)
	if id == "" {
		return nil, errMissingContentID
	}
	if err := e.debit(payer, price); err != nil {
		return nil, err
	}

	split := e.mintSplit.apply(price)
	deposited, fallback, err := e.depositOrFallback(rewards.ContentPoolID(id), split.holder)
	if err != nil {
		return nil, err
	}
	creatorPaid := new(big.Int).Add(split.creator, fallback)
	if err := e.credit(creator, creatorPaid); err != nil {
		return nil, err
	}
	if err := e.credit(e.platformAccount, split.platform); err != nil {
		return nil, err
	}
	if split.ecosystem.Sign() > 0 {
		if err := e.ledger.CreditTreasury(rewards.EcosystemTreasuryID, split.ecosystem); err != nil {
			return nil, err
		}
	}

	receipt := &MintReceipt{
		ContentID:       id,
		Price:           new(big.Int).Set(price),
		CreatorPaid:     creatorPaid,
		HolderDeposited: deposited,
		PlatformFee:     split.platform,
		EcosystemFee:    split.ecosystem,
	}
	e.emit(MintSettledEvent(id, payer, creator, receipt))
	return receipt, nil
}

// MemberDeposit is one content pool's slice of a bundle mint.
type MemberDeposit struct {
	ContentID string   `json:"contentId"`
	Amount    *big.Int `json:"amount"`
}

// BundleMintReceipt reports where a settled bundle mint payment went.
type BundleMintReceipt struct {
	BundleID        string          `json:"bundleId"`
	Price           *big.Int        `json:"price"`
	CreatorPaid     *big.Int        `json:"creatorPaid"`
	BundleDeposited *big.Int        `json:"bundleDeposited"`
	MemberDeposits  []MemberDeposit `json:"memberDeposits"`
	PlatformFee     *big.Int        `json:"platformFee"`
	EcosystemFee    *big.Int        `json:"ecosystemFee"`
}

// SettleBundleMint debits the payer and splits a bundle mint payment. The
// holder share is halved: one half to the bundle's own pool, the other spread
// evenly across the member content pools in their canonical order, with the
// integer remainder credited to the first member. Pools without weight fall
// back to the creator, per pool.
func (e *Engine) SettleBundleMint(payer, creator [20]byte, bundleID string, members []string, price *big.Int) (*BundleMintReceipt, error) {
	if err := e.settleCommon(payer, creator, price); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(bundleID)
	if id == "" {
		return nil, errMissingBundleID
	}
	if len(members) == 0 {
		return nil, errMissingMembers
	}
	if err := e.debit(payer, price); err != nil {
		return nil, err
	}

	split := e.mintSplit.apply(price)
	memberHalf := new(big.Int).Quo(split.holder, big.NewInt(2))
	bundleHalf := new(big.Int).Sub(split.holder, memberHalf)

	fallbackTotal := big.NewInt(0)
	bundleDeposited, fallback, err := e.depositOrFallback(rewards.BundlePoolID(id), bundleHalf)
	if err != nil {
		return nil, err
	}
	fallbackTotal.Add(fallbackTotal, fallback)

	count := big.NewInt(int64(len(members)))
	each := new(big.Int).Quo(memberHalf, count)
	remainder := new(big.Int).Sub(memberHalf, new(big.Int).Mul(each, count))

	deposits := make([]MemberDeposit, 0, len(members))
	for i, member := range members {
		memberID := strings.TrimSpace(member)
		if memberID == "" {
			return nil, errMissingContentID
		}
		portion := new(big.Int).Set(each)
		if i == 0 {
			portion.Add(portion, remainder)
		}
		deposited, fb, err := e.depositOrFallback(rewards.ContentPoolID(memberID), portion)
		if err != nil {
			return nil, err
		}
		fallbackTotal.Add(fallbackTotal, fb)
		deposits = append(deposits, MemberDeposit{ContentID: memberID, Amount: deposited})
	}

	creatorPaid := new(big.Int).Add(split.creator, fallbackTotal)
	if err := e.credit(creator, creatorPaid); err != nil {
		return nil, err
	}
	if err := e.credit(e.platformAccount, split.platform); err != nil {
		return nil, err
	}
	if split.ecosystem.Sign() > 0 {
		if err := e.ledger.CreditTreasury(rewards.EcosystemTreasuryID, split.ecosystem); err != nil {
			return nil, err
		}
	}

	receipt := &BundleMintReceipt{
		BundleID:        id,
		Price:           new(big.Int).Set(price),
		CreatorPaid:     creatorPaid,
		BundleDeposited: bundleDeposited,
		MemberDeposits:  deposits,
		PlatformFee:     split.platform,
		EcosystemFee:    split.ecosystem,
	}
	e.emit(BundleSettledEvent(id, payer, creator, receipt))
	return receipt, nil
}

// RentalReceipt reports where a settled rental fee went.
type RentalReceipt struct {
	ContentID    string   `json:"contentId"`
	Fee          *big.Int `json:"fee"`
	CreatorPaid  *big.Int `json:"creatorPaid"`
	PlatformFee  *big.Int `json:"platformFee"`
	EcosystemFee *big.Int `json:"ecosystemFee"`
}

// SettleRental debits the payer and splits a rental fee. Rentals carry no
// holder share.
func (e *Engine) SettleRental(payer, creator [20]byte, contentID string, fee *big.Int) (*RentalReceipt, error) {
	if err := e.settleCommon(payer, creator, fee); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(contentID)
	if id == "" {
		return nil, errMissingContentID
	}
	if err := e.debit(payer, fee); err != nil {
		return nil, err
	}

	split := e.rentalSplit.apply(fee)
	if err := e.credit(creator, split.creator); err != nil {
		return nil, err
	}
	if err := e.credit(e.platformAccount, split.platform); err != nil {
		return nil, err
	}
	if split.ecosystem.Sign() > 0 {
		if err := e.ledger.CreditTreasury(rewards.EcosystemTreasuryID, split.ecosystem); err != nil {
			return nil, err
		}
	}

	receipt := &RentalReceipt{
		ContentID:    id,
		Fee:          new(big.Int).Set(fee),
		CreatorPaid:  split.creator,
		PlatformFee:  split.platform,
		EcosystemFee: split.ecosystem,
	}
	e.emit(RentalSettledEvent(id, payer, creator, receipt))
	return receipt, nil
}

// PatronTick debits the payer and streams a patron subscription payment into
// the creator's streaming treasury.
func (e *Engine) PatronTick(payer, creator [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if isZeroAddress(payer) {
		return errZeroPayer
	}
	if isZeroAddress(creator) {
		return errZeroCreator
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := e.debit(payer, amount); err != nil {
		return err
	}
	treasuryID := rewards.PatronTreasuryID(creator)
	if err := e.ledger.CreditTreasury(treasuryID, amount); err != nil {
		return err
	}
	e.emit(SubscriptionTickEvent(treasuryID, payer, amount))
	return nil
}

// EcosystemTick debits the payer and streams an ecosystem subscription
// payment into the ecosystem treasury.
func (e *Engine) EcosystemTick(payer [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if isZeroAddress(payer) {
		return errZeroPayer
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := e.debit(payer, amount); err != nil {
		return err
	}
	if err := e.ledger.CreditTreasury(rewards.EcosystemTreasuryID, amount); err != nil {
		return err
	}
	e.emit(SubscriptionTickEvent(rewards.EcosystemTreasuryID, payer, amount))
	return nil
}
