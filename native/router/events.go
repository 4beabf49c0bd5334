package router

import (
	"math/big"
	"strconv"

	"curiochain/core/events"
	"curiochain/core/types"
)

const (
	// EventTypeMintSettled is emitted when a content mint payment is split.
	EventTypeMintSettled = "router.mint.settled"
	// EventTypeBundleSettled is emitted when a bundle mint payment is split.
	EventTypeBundleSettled = "router.bundle.settled"
	// EventTypeRentalSettled is emitted when a rental fee is split.
	EventTypeRentalSettled = "router.rental.settled"
	// EventTypeSubscriptionTick is emitted when a subscription payment streams
	// into a treasury.
	EventTypeSubscriptionTick = "router.subscription.tick"
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

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// MintSettledEvent announces a routed content mint payment.
func MintSettledEvent(contentID string, payer, creator [20]byte, receipt *MintReceipt) *types.Event {
	return &types.Event{
		Type: EventTypeMintSettled,
		Attributes: map[string]string{
			"contentId":       contentID,
			"payer":           hexAddr(payer),
			"creator":         hexAddr(creator),
			"price":           bigString(receipt.Price),
			"creatorPaid":     bigString(receipt.CreatorPaid),
			"holderDeposited": bigString(receipt.HolderDeposited),
			"platformFee":     bigString(receipt.PlatformFee),
			"ecosystemFee":    bigString(receipt.EcosystemFee),
		},
	}
}

// BundleSettledEvent announces a routed bundle mint payment.
func BundleSettledEvent(bundleID string, payer, creator [20]byte, receipt *BundleMintReceipt) *types.Event {
	return &types.Event{
		Type: EventTypeBundleSettled,
		Attributes: map[string]string{
			"bundleId":        bundleID,
			"payer":           hexAddr(payer),
			"creator":         hexAddr(creator),
			"price":           bigString(receipt.Price),
			"creatorPaid":     bigString(receipt.CreatorPaid),
			"bundleDeposited": bigString(receipt.BundleDeposited),
			"members":         strconv.Itoa(len(receipt.MemberDeposits)),
			"platformFee":     bigString(receipt.PlatformFee),
			"ecosystemFee":    bigString(receipt.EcosystemFee),
		},
	}
}

// RentalSettledEvent announces a routed rental fee.
func RentalSettledEvent(contentID string, payer, creator [20]byte, receipt *RentalReceipt) *types.Event {
	return &types.Event{
		Type: EventTypeRentalSettled,
		Attributes: map[string]string{
			"contentId":    contentID,
			"payer":        hexAddr(payer),
			"creator":      hexAddr(creator),
			"fee":          bigString(receipt.Fee),
			"creatorPaid":  bigString(receipt.CreatorPaid),
			"platformFee":  bigString(receipt.PlatformFee),
			"ecosystemFee": bigString(receipt.EcosystemFee),
		},
	}
}

// SubscriptionTickEvent announces a subscription payment streamed into a
// treasury.
func SubscriptionTickEvent(treasuryID string, payer [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSubscriptionTick,
		Attributes: map[string]string{
			"treasury": treasuryID,
			"payer":    hexAddr(payer),
			"amount":   bigString(amount),
		},
	}
}
