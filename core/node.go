package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"curiochain/core/events"
	curiostate "curiochain/core/state"
	"curiochain/core/types"
	"curiochain/native/registry"
	"curiochain/native/rewards"
	"curiochain/native/router"
	"curiochain/storage"
)

// Role names checked on the privileged node operations.
const (
	RoleAdmin     = "ROLE_ADMIN"
	RoleTreasurer = "ROLE_TREASURER"
	RoleMinter    = "ROLE_MINTER"
)

var (
	// ErrUnauthorized is returned when the submitting authority lacks the
	// role an operation requires.
	ErrUnauthorized = errors.New("core: authority lacks required role")
	// ErrNotRentable is returned when rental settlement is requested for
	// content published without a rental fee.
	ErrNotRentable = errors.New("core: content has no rental fee")
)

const recentEventCap = 512

// NodeConfig carries the runtime policy applied to the ledger engines.
// The config package maps the operator's TOML file onto this struct.
type NodeConfig struct {
	EpochDurationSeconds    int64
	SweepGlobalBps          uint32
	TreasuryReserveLamports uint64
	MintSplit               router.Split
	RentalSplit             router.Split
	WeightTable             registry.WeightTable
	RollTable               registry.RollTable
	PlatformAccount         [20]byte
	Genesis                 Genesis
}

// Node owns the ledger: it serializes every operation, runs it through the
// native engines against one state manager, and commits or discards the
// staged writes as a unit.
type Node struct {
	db      storage.Database
	manager *curiostate.Manager
	cfg     NodeConfig
	nowFn   func() int64
	stateMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[uint64]chan *types.Event
	nextSubID   uint64
	eventSeq    uint64
	recent      []*types.Event
}

// NewNode opens the ledger over the provided database, applying genesis on
// first start.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	node := &Node{
		db:          db,
		manager:     curiostate.NewManager(db),
		cfg:         cfg,
		nowFn:       func() int64 { return time.Now().Unix() },
		subscribers: make(map[uint64]chan *types.Event),
	}
	if err := node.applyGenesis(); err != nil {
		return nil, err
	}
	return node, nil
}

// SetNowFunc overrides the clock shared by the node and its engines.
func (n *Node) SetNowFunc(now func() int64) {
	if now != nil {
		n.nowFn = now
	}
}

func (n *Node) now() int64 {
	if n.nowFn == nil {
		return time.Now().Unix()
	}
	return n.nowFn()
}

type eventWithPayload interface {
	Event() *types.Event
}

// bufferedEmitter collects the events an operation produces. They are
// published only after the operation's writes commit.
type bufferedEmitter struct {
	events []*types.Event
}

func (b *bufferedEmitter) Emit(evt events.Event) {
	if b == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventWithPayload)
	if !ok {
		return
	}
	event := payload.Event()
	if event == nil {
		return
	}
	b.events = append(b.events, event)
}

func (n *Node) newRewardsEngine(emitter events.Emitter) *rewards.Engine {
	engine := rewards.NewEngine()
	engine.SetState(n.manager)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(n.nowFn)
	if n.cfg.EpochDurationSeconds > 0 {
		engine.SetDefaultEpochDuration(n.cfg.EpochDurationSeconds)
	}
	if n.cfg.SweepGlobalBps > 0 {
		engine.SetSweepGlobalBps(n.cfg.SweepGlobalBps)
	}
	if n.cfg.TreasuryReserveLamports > 0 {
		engine.SetTreasuryReserve(new(big.Int).SetUint64(n.cfg.TreasuryReserveLamports))
	}
	return engine
}

func (n *Node) newRouterEngine(emitter events.Emitter, ledger router.PoolLedger) (*router.Engine, error) {
	engine := router.NewEngine()
	engine.SetState(n.manager)
	engine.SetLedger(ledger)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(n.nowFn)
	engine.SetPlatformAccount(n.cfg.PlatformAccount)
	if err := engine.SetMintSplit(n.cfg.MintSplit); err != nil {
		return nil, err
	}
	if err := engine.SetRentalSplit(n.cfg.RentalSplit); err != nil {
		return nil, err
	}
	return engine, nil
}

func (n *Node) newRegistryEngine(emitter events.Emitter) (*registry.Engine, error) {
	engine := registry.NewEngine()
	engine.SetState(n.manager)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(n.nowFn)
	if err := engine.SetWeightTable(n.cfg.WeightTable); err != nil {
		return nil, err
	}
	if err := engine.SetRollTable(n.cfg.RollTable); err != nil {
		return nil, err
	}
	return engine, nil
}

// withState runs fn inside the state lock and commits its staged writes when
// it succeeds. Any error discards the whole overlay, events included.
func (n *Node) withState(fn func(emitter *bufferedEmitter) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	emitter := &bufferedEmitter{}
	if err := fn(emitter); err != nil {
		n.manager.Discard()
		return err
	}
	if err := n.manager.Commit(); err != nil {
		n.manager.Discard()
		return err
	}
	n.publish(emitter.events)
	return nil
}

func (n *Node) requireRole(role string, authority [20]byte) error {
	if n.manager.HasRole(role, authority[:]) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, role)
}

// PublishContent records new creator content in the catalogue.
func (n *Node) PublishContent(authority, creator [20]byte, id, title, uri string, fingerprint [32]byte, mintPrice, rentalFee *big.Int) (*registry.Content, error) {
	var content *registry.Content
	err := n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleMinter, authority); err != nil {
			return err
		}
		engine, err := n.newRegistryEngine(emitter)
		if err != nil {
			return err
		}
		content, err = engine.PublishContent(creator, id, title, uri, fingerprint, mintPrice, rentalFee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// CreateBundle groups published content into a mintable bundle.
func (n *Node) CreateBundle(authority, creator [20]byte, id, title string, members []string, mintPrice *big.Int) (*registry.Bundle, error) {
	var bundle *registry.Bundle
	err := n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleMinter, authority); err != nil {
			return err
		}
		engine, err := n.newRegistryEngine(emitter)
		if err != nil {
			return err
		}
		bundle, err = engine.CreateBundle(creator, id, title, members, mintPrice)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// MintResult reports everything one mint produced: the registry unit, its
// reward ledger and the money movement.
type MintResult struct {
	Unit          *registry.Unit            `json:"unit"`
	Ledger        *rewards.UnitLedger       `json:"ledger"`
	Receipt       *router.MintReceipt       `json:"receipt,omitempty"`
	BundleReceipt *router.BundleMintReceipt `json:"bundleReceipt,omitempty"`
}

// RarityForRoll maps raw randomness onto a rarity tier using the node's
// configured odds.
func (n *Node) RarityForRoll(roll uint32) registry.Rarity {
	return n.cfg.RollTable.TierForRoll(roll)
}

// MintUnit settles a unit mint end to end: the payment splits first, then the
// unit's weight registers, so the fresh unit never earns from its own mint
// payment. Exactly one of contentID and bundleID must be set.
func (n *Node) MintUnit(authority, payer [20]byte, unitID, contentID, bundleID string, rarity registry.Rarity) (*MintResult, error) {
	result := &MintResult{}
	err := n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleMinter, authority); err != nil {
			return err
		}
		registryEngine, err := n.newRegistryEngine(emitter)
		if err != nil {
			return err
		}
		rewardsEngine := n.newRewardsEngine(emitter)
		routerEngine, err := n.newRouterEngine(emitter, rewardsEngine)
		if err != nil {
			return err
		}

		weight, err := registryEngine.WeightForRarity(rarity)
		if err != nil {
			return err
		}

		var creator [20]byte
		switch {
		case contentID != "" && bundleID == "":
			content, err := registryEngine.Content(contentID)
			if err != nil {
				return err
			}
			creator = content.Creator
			result.Receipt, err = routerEngine.SettleMint(payer, creator, contentID, content.MintPrice)
			if err != nil {
				return err
			}
		case bundleID != "" && contentID == "":
			bundle, err := registryEngine.Bundle(bundleID)
			if err != nil {
				return err
			}
			creator = bundle.Creator
			result.BundleReceipt, err = routerEngine.SettleBundleMint(payer, creator, bundleID, bundle.Members, bundle.MintPrice)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("core: mint needs exactly one of content or bundle")
		}

		result.Ledger, err = rewardsEngine.RegisterUnit(&rewards.UnitLedger{
			UnitID:    unitID,
			ContentID: contentID,
			BundleID:  bundleID,
			Creator:   creator,
			Owner:     payer,
			Weight:    weight,
		})
		if err != nil {
			return err
		}
		result.Unit, err = registryEngine.RecordMint(unitID, contentID, bundleID, rarity, weight)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RentContent settles a rental fee and grants timed access.
func (n *Node) RentContent(authority, renter [20]byte, contentID string, durationSeconds int64) (*registry.Rental, *router.RentalReceipt, error) {
	var (
		rental  *registry.Rental
		receipt *router.RentalReceipt
	)
	err := n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleMinter, authority); err != nil {
			return err
		}
		registryEngine, err := n.newRegistryEngine(emitter)
		if err != nil {
			return err
		}
		rewardsEngine := n.newRewardsEngine(emitter)
		routerEngine, err := n.newRouterEngine(emitter, rewardsEngine)
		if err != nil {
			return err
		}

		content, err := registryEngine.Content(contentID)
		if err != nil {
			return err
		}
		if content.RentalFee == nil || content.RentalFee.Sign() <= 0 {
			return ErrNotRentable
		}
		receipt, err = routerEngine.SettleRental(renter, content.Creator, contentID, content.RentalFee)
		if err != nil {
			return err
		}
		rental, err = registryEngine.RecordRental(contentID, renter, content.RentalFee, durationSeconds)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return rental, receipt, nil
}

// PatronTick streams a patron subscription payment into the creator's
// treasury.
func (n *Node) PatronTick(authority, payer, creator [20]byte, amount *big.Int) error {
	return n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleMinter, authority); err != nil {
			return err
		}
		rewardsEngine := n.newRewardsEngine(emitter)
		routerEngine, err := n.newRouterEngine(emitter, rewardsEngine)
		if err != nil {
			return err
		}
		return routerEngine.PatronTick(payer, creator, amount)
	})
}

// EcosystemTick streams an ecosystem subscription payment into the ecosystem
// treasury.
func (n *Node) EcosystemTick(authority, payer [20]byte, amount *big.Int) error {
	return n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleMinter, authority); err != nil {
			return err
		}
		rewardsEngine := n.newRewardsEngine(emitter)
		routerEngine, err := n.newRouterEngine(emitter, rewardsEngine)
		if err != nil {
			return err
		}
		return routerEngine.EcosystemTick(payer, amount)
	})
}

// TransferUnit moves a unit's reward claim to a new owner.
func (n *Node) TransferUnit(authority [20]byte, unitID string, newOwner [20]byte) (*rewards.UnitLedger, error) {
	var ledger *rewards.UnitLedger
	err := n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleMinter, authority); err != nil {
			return err
		}
		var err error
		ledger, err = n.newRewardsEngine(emitter).TransferUnit(unitID, newOwner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// FundAccount credits a custodied account with lamports deposited on the
// payment side of the platform.
func (n *Node) FundAccount(authority, target [20]byte, amount *big.Int) (*types.Account, error) {
	var funded *types.Account
	err := n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleTreasurer, authority); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("core: funding amount must be positive")
		}
		var zero [20]byte
		if target == zero {
			return fmt.Errorf("core: funding target required")
		}
		account, err := n.manager.GetAccount(target[:])
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Add(account.Balance, amount)
		if err := n.manager.PutAccount(target[:], account); err != nil {
			return err
		}
		funded = account
		emitter.events = append(emitter.events, AccountFundedEvent(target, amount, account.Balance))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return funded, nil
}

// UpdateEpochDuration changes the epoch schedule for all future sweeps.
func (n *Node) UpdateEpochDuration(authority [20]byte, seconds int64) error {
	return n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleAdmin, authority); err != nil {
			return err
		}
		return n.newRewardsEngine(emitter).UpdateEpochDuration(seconds)
	})
}

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTreasurer, RoleMinter:
		return true
	}
	return false
}

// GrantRole adds an address to a role's member list.
func (n *Node) GrantRole(authority [20]byte, role string, member [20]byte) error {
	return n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleAdmin, authority); err != nil {
			return err
		}
		if !validRole(role) {
			return fmt.Errorf("core: unknown role %q", role)
		}
		if err := n.manager.SetRole(role, member[:]); err != nil {
			return err
		}
		emitter.events = append(emitter.events, RoleChangedEvent(role, member, true))
		return nil
	})
}

// RevokeRole removes an address from a role's member list. An admin cannot
// revoke their own admin role, so the ledger always keeps one reachable admin.
func (n *Node) RevokeRole(authority [20]byte, role string, member [20]byte) error {
	return n.withState(func(emitter *bufferedEmitter) error {
		if err := n.requireRole(RoleAdmin, authority); err != nil {
			return err
		}
		if !validRole(role) {
			return fmt.Errorf("core: unknown role %q", role)
		}
		if role == RoleAdmin && member == authority {
			return fmt.Errorf("core: admin cannot revoke own role")
		}
		if err := n.manager.UnsetRole(role, member[:]); err != nil {
			return err
		}
		emitter.events = append(emitter.events, RoleChangedEvent(role, member, false))
		return nil
	})
}

// ClaimContent pays out a unit's content-pool and global-pool rewards.
func (n *Node) ClaimContent(unitID string) (*big.Int, error) {
	var paid *big.Int
	err := n.withState(func(emitter *bufferedEmitter) error {
		var err error
		paid, err = n.newRewardsEngine(emitter).ClaimContentRewards(unitID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// ClaimBundle pays out a unit's bundle-pool and global-pool rewards.
func (n *Node) ClaimBundle(unitID string) (*big.Int, error) {
	var paid *big.Int
	err := n.withState(func(emitter *bufferedEmitter) error {
		var err error
		paid, err = n.newRewardsEngine(emitter).ClaimBundleRewards(unitID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// ClaimPatron pays out a unit's patron-pool rewards.
func (n *Node) ClaimPatron(unitID string) (*big.Int, error) {
	var paid *big.Int
	err := n.withState(func(emitter *bufferedEmitter) error {
		var err error
		paid, err = n.newRewardsEngine(emitter).ClaimPatronRewards(unitID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// ClaimCreator pays out a creator's share of the creator distribution pool.
func (n *Node) ClaimCreator(creator [20]byte) (*big.Int, error) {
	var paid *big.Int
	err := n.withState(func(emitter *bufferedEmitter) error {
		var err error
		paid, err = n.newRewardsEngine(emitter).ClaimCreatorPayout(creator)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

func (n *Node) publish(batch []*types.Event) {
	if len(batch) == 0 {
		return
	}
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for _, event := range batch {
		n.eventSeq++
		event.Sequence = n.eventSeq
	}
	n.recent = append(n.recent, batch...)
	if len(n.recent) > recentEventCap {
		n.recent = n.recent[len(n.recent)-recentEventCap:]
	}
	for _, event := range batch {
		for _, ch := range n.subscribers {
			select {
			case ch <- event:
			default:
				// Slow subscriber; the websocket layer resyncs from
				// RecentEvents when it falls behind.
			}
		}
	}
}

// SubscribeEvents registers an event subscriber. The returned channel is
// closed by Unsubscribe.
func (n *Node) SubscribeEvents(buffer int) (uint64, <-chan *types.Event) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)
	n.subMu.Lock()
	defer n.subMu.Unlock()
	id := n.nextSubID
	n.nextSubID++
	n.subscribers[id] = ch
	return id, ch
}

// UnsubscribeEvents removes a subscriber and closes its channel.
func (n *Node) UnsubscribeEvents(id uint64) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if ch, ok := n.subscribers[id]; ok {
		delete(n.subscribers, id)
		close(ch)
	}
}

// RecentEvents returns the retained tail of the event stream, oldest first.
func (n *Node) RecentEvents() []*types.Event {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	out := make([]*types.Event, len(n.recent))
	copy(out, n.recent)
	return out
}

// EventsAfter returns retained events with a sequence greater than seq,
// oldest first. A consumer that polls with its last-seen sequence misses
// events only if more than recentEventCap commits happened in between.
func (n *Node) EventsAfter(seq uint64) []*types.Event {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	out := make([]*types.Event, 0, len(n.recent))
	for _, evt := range n.recent {
		if evt.Sequence > seq {
			out = append(out, evt)
		}
	}
	return out
}
