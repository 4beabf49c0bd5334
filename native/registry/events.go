package registry

import (
	"encoding/hex"
	"strconv"

	"curiochain/core/events"
	"curiochain/core/types"
)

const (
	// EventTypeContentPublished is emitted when new content enters the catalogue.
	EventTypeContentPublished = "registry.content.published"
	// EventTypeBundleCreated is emitted when content is grouped into a bundle.
	EventTypeBundleCreated = "registry.bundle.created"
	// EventTypeUnitMinted is emitted when a unit's registry record is written.
	EventTypeUnitMinted = "registry.unit.minted"
	// EventTypeRentalRecorded is emitted when rental access is granted or extended.
	EventTypeRentalRecorded = "registry.rental.recorded"
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

// ContentPublishedEvent announces a new catalogue entry.
func ContentPublishedEvent(content *Content) *types.Event {
	return &types.Event{
		Type: EventTypeContentPublished,
		Attributes: map[string]string{
			"contentId":   content.ID,
			"creator":     hexAddr(content.Creator),
			"uri":         content.URI,
			"fingerprint": hex.EncodeToString(content.Fingerprint[:]),
			"mintPrice":   content.MintPrice.String(),
			"rentalFee":   content.RentalFee.String(),
		},
	}
}

// BundleCreatedEvent announces a new bundle.
func BundleCreatedEvent(bundle *Bundle) *types.Event {
	return &types.Event{
		Type: EventTypeBundleCreated,
		Attributes: map[string]string{
			"bundleId":  bundle.ID,
			"creator":   hexAddr(bundle.Creator),
			"members":   strconv.Itoa(len(bundle.Members)),
			"mintPrice": bundle.MintPrice.String(),
		},
	}
}

// UnitMintedEvent announces a minted unit's registry record.
func UnitMintedEvent(unit *Unit) *types.Event {
	attrs := map[string]string{
		"unitId":  unit.ID,
		"creator": hexAddr(unit.Creator),
		"rarity":  unit.Rarity.String(),
		"weight":  unit.Weight.String(),
	}
	if unit.ContentID != "" {
		attrs["contentId"] = unit.ContentID
	}
	if unit.BundleID != "" {
		attrs["bundleId"] = unit.BundleID
	}
	return &types.Event{Type: EventTypeUnitMinted, Attributes: attrs}
}

// RentalRecordedEvent announces rental access being granted or extended.
func RentalRecordedEvent(rental *Rental) *types.Event {
	return &types.Event{
		Type: EventTypeRentalRecorded,
		Attributes: map[string]string{
			"contentId": rental.ContentID,
			"renter":    hexAddr(rental.Renter),
			"fee":       rental.Fee.String(),
			"expiresAt": strconv.FormatInt(rental.ExpiresAt, 10),
		},
	}
}
