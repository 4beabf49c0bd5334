package rewards

import (
	"strconv"

	"curiochain/core/events"
	"curiochain/core/types"
)

const (
	// EventTypeWeightRegistered is emitted when a minted unit's weight enters its pools.
	EventTypeWeightRegistered = "rewards.weight.registered"
	// EventTypePoolDeposit is emitted when lamports are routed into a pool.
	EventTypePoolDeposit = "rewards.pool.deposited"
	// EventTypeClaimPaid is emitted when a claim credits a holder or creator.
	EventTypeClaimPaid = "rewards.claim.paid"
	// EventTypeTreasuryCredited is emitted when a streaming treasury receives funds.
	EventTypeTreasuryCredited = "rewards.treasury.credited"
	// EventTypeEpochSettled is emitted when a treasury sweep distributes an epoch.
	EventTypeEpochSettled = "rewards.epoch.settled"
	// EventTypeEpochDurationUpdated is emitted when the epoch schedule changes.
	EventTypeEpochDurationUpdated = "rewards.epoch.duration_updated"
	// EventTypeOwnerChanged is emitted when a unit ledger changes hands.
	EventTypeOwnerChanged = "rewards.unit.owner_changed"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// WeightRegisteredEvent announces a freshly minted unit joining its pools.
func WeightRegisteredEvent(unitID, holderPool, creator, owner, weight string) *types.Event {
	return &types.Event{
		Type: EventTypeWeightRegistered,
		Attributes: map[string]string{
			"unitId":     unitID,
			"holderPool": holderPool,
			"creator":    creator,
			"owner":      owner,
			"weight":     weight,
		},
	}
}

// PoolDepositEvent announces lamports landing in a pool. Dust is the truncated
// remainder retained by the pool balance.
func PoolDepositEvent(poolID string, amount, distributed, dust, undistributed string) *types.Event {
	return &types.Event{
		Type: EventTypePoolDeposit,
		Attributes: map[string]string{
			"pool":          poolID,
			"amount":        amount,
			"distributed":   distributed,
			"dust":          dust,
			"undistributed": undistributed,
		},
	}
}

// ClaimPaidEvent announces a successful claim.
func ClaimPaidEvent(scope, unitID, account, amount string, breakdown map[string]string) *types.Event {
	attrs := map[string]string{
		"scope":   scope,
		"account": account,
		"amount":  amount,
	}
	if unitID != "" {
		attrs["unitId"] = unitID
	}
	for k, v := range breakdown {
		attrs[k] = v
	}
	return &types.Event{Type: EventTypeClaimPaid, Attributes: attrs}
}

// TreasuryCreditedEvent announces a streaming treasury inflow.
func TreasuryCreditedEvent(treasuryID, amount, balance string) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryCredited,
		Attributes: map[string]string{
			"treasury": treasuryID,
			"amount":   amount,
			"balance":  balance,
		},
	}
}

// EpochSettledEvent announces a completed treasury sweep.
func EpochSettledEvent(settlement *EpochSettlement) *types.Event {
	if settlement == nil {
		return &types.Event{Type: EventTypeEpochSettled, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: EventTypeEpochSettled,
		Attributes: map[string]string{
			"treasury":      settlement.Treasury,
			"sequence":      strconv.FormatUint(settlement.Sequence, 10),
			"settledAt":     strconv.FormatInt(settlement.SettledAt, 10),
			"swept":         settlement.Swept.String(),
			"toGlobal":      settlement.ToGlobal.String(),
			"toCreatorDist": settlement.ToCreatorDist.String(),
			"toPatron":      settlement.ToPatron.String(),
		},
	}
}

// EpochDurationUpdatedEvent announces a new epoch duration taking effect.
func EpochDurationUpdatedEvent(previous, current int64) *types.Event {
	return &types.Event{
		Type: EventTypeEpochDurationUpdated,
		Attributes: map[string]string{
			"previousSeconds": strconv.FormatInt(previous, 10),
			"currentSeconds":  strconv.FormatInt(current, 10),
		},
	}
}

// OwnerChangedEvent announces a unit ledger transfer.
func OwnerChangedEvent(unitID, previousOwner, newOwner string) *types.Event {
	return &types.Event{
		Type: EventTypeOwnerChanged,
		Attributes: map[string]string{
			"unitId":        unitID,
			"previousOwner": previousOwner,
			"newOwner":      newOwner,
		},
	}
}
