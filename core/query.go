package core

import (
	"errors"
	"math/big"

	"curiochain/core/events"
	"curiochain/core/types"
	"curiochain/native/registry"
	"curiochain/native/rewards"
)

// UnitView joins a unit's catalogue record, its reward ledger and the
// lamports it could claim right now.
type UnitView struct {
	Unit    *registry.Unit       `json:"unit,omitempty"`
	Ledger  *rewards.UnitLedger  `json:"ledger"`
	Pending *rewards.UnitPending `json:"pending"`
}

// CreatorView joins a creator's lifetime stats with their claimable payout.
type CreatorView struct {
	Stats   *rewards.CreatorStats `json:"stats"`
	Pending *big.Int              `json:"pending"`
}

// TreasuryView joins a streaming treasury with its epoch schedule.
type TreasuryView struct {
	Treasury *rewards.StreamingTreasury `json:"treasury"`
	Status   *rewards.EpochStatus       `json:"status"`
}

// RentalView reports a rental record together with whether it still grants
// access at query time.
type RentalView struct {
	Rental *registry.Rental `json:"rental"`
	Active bool             `json:"active"`
}

func (n *Node) readRewards() *rewards.Engine {
	return n.newRewardsEngine(events.NoopEmitter{})
}

func (n *Node) readRegistry() (*registry.Engine, error) {
	return n.newRegistryEngine(events.NoopEmitter{})
}

// PoolInfo returns a reward pool snapshot.
func (n *Node) PoolInfo(poolID string) (*rewards.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.readRewards().PoolInfo(poolID)
}

// UnitInfo returns the combined catalogue and reward view of a unit.
func (n *Node) UnitInfo(unitID string) (*UnitView, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	engine := n.readRewards()
	ledger, err := engine.Unit(unitID)
	if err != nil {
		return nil, err
	}
	pending, err := engine.PendingUnit(unitID)
	if err != nil {
		return nil, err
	}
	view := &UnitView{Ledger: ledger, Pending: pending}

	registryEngine, err := n.readRegistry()
	if err != nil {
		return nil, err
	}
	unit, err := registryEngine.Unit(unitID)
	if err == nil {
		view.Unit = unit
	}
	return view, nil
}

// CreatorInfo returns a creator's stats and pending distribution payout.
func (n *Node) CreatorInfo(creator [20]byte) (*CreatorView, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	engine := n.readRewards()
	stats, err := engine.Creator(creator)
	if err != nil {
		return nil, err
	}
	pending, err := engine.PendingCreator(creator)
	if err != nil {
		if errors.Is(err, rewards.ErrPoolNotFound) {
			pending = big.NewInt(0)
		} else {
			return nil, err
		}
	}
	return &CreatorView{Stats: stats, Pending: pending}, nil
}

// TreasuryInfo returns a streaming treasury and its sweep schedule.
func (n *Node) TreasuryInfo(treasuryID string) (*TreasuryView, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	engine := n.readRewards()
	treasury, err := engine.Treasury(treasuryID)
	if err != nil {
		return nil, err
	}
	status, err := engine.EpochStatus(treasuryID)
	if err != nil {
		return nil, err
	}
	return &TreasuryView{Treasury: treasury, Status: status}, nil
}

// EpochDuration returns the active sweep cadence in seconds.
func (n *Node) EpochDuration() (int64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.readRewards().EpochDuration()
}

// Settlements returns the retained epoch settlement history, oldest first.
func (n *Node) Settlements() ([]*rewards.EpochSettlement, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.manager.Settlements()
}

// ContentInfo returns a published content record.
func (n *Node) ContentInfo(id string) (*registry.Content, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	engine, err := n.readRegistry()
	if err != nil {
		return nil, err
	}
	return engine.Content(id)
}

// BundleInfo returns a bundle record.
func (n *Node) BundleInfo(id string) (*registry.Bundle, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	engine, err := n.readRegistry()
	if err != nil {
		return nil, err
	}
	return engine.Bundle(id)
}

// RentalStatus reports a renter's access to a piece of content.
func (n *Node) RentalStatus(contentID string, renter [20]byte) (*RentalView, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	engine, err := n.readRegistry()
	if err != nil {
		return nil, err
	}
	rental, err := engine.Rental(contentID, renter)
	if err != nil {
		return nil, err
	}
	return &RentalView{Rental: rental, Active: rental.Active(n.now())}, nil
}

// AccountInfo returns the balance and nonce of a custody account.
func (n *Node) AccountInfo(addr [20]byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.manager.GetAccount(addr[:])
}

// RoleHolders lists the addresses holding a role.
func (n *Node) RoleHolders(role string) ([][20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	members, err := n.manager.RoleMembers(role)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		if len(member) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}
