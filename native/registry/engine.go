package registry

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"curiochain/core/events"
	"curiochain/core/types"
)

var (
	errNilState         = errors.New("registry: state not configured")
	errContentExists    = errors.New("registry: content already exists")
	errBundleExists     = errors.New("registry: bundle already exists")
	errUnitExists       = errors.New("registry: unit already exists")
	errMissingID        = errors.New("registry: id required")
	errMissingURI       = errors.New("registry: uri required")
	errZeroCreator      = errors.New("registry: creator address required")
	errZeroRenter       = errors.New("registry: renter address required")
	errInvalidPrice     = errors.New("registry: price must be positive")
	errInvalidFee       = errors.New("registry: fee must be positive")
	errInvalidWeight    = errors.New("registry: weight must be positive")
	errNoMembers        = errors.New("registry: bundle needs at least one member")
	errDuplicateMember  = errors.New("registry: duplicate bundle member")
	errForeignMember    = errors.New("registry: bundle member belongs to another creator")
	errMissingRef       = errors.New("registry: unit needs a content or bundle reference")
	errConflictingRef   = errors.New("registry: unit cannot reference both content and bundle")
	errInvalidDuration  = errors.New("registry: rental duration must be positive")
	errInvalidTable     = errors.New("registry: invalid weight table")
	errInvalidRollTable = errors.New("registry: invalid roll table")

	// ErrContentNotFound is returned when a referenced content id is unknown.
	ErrContentNotFound = errors.New("registry: content not found")
	// ErrBundleNotFound is returned when a referenced bundle id is unknown.
	ErrBundleNotFound = errors.New("registry: bundle not found")
	// ErrUnitNotFound is returned when a unit has no registry record.
	ErrUnitNotFound = errors.New("registry: unit not found")
	// ErrRentalNotFound is returned when no rental exists for a content and renter pair.
	ErrRentalNotFound = errors.New("registry: rental not found")
)

type engineState interface {
	RegistryContentGet(id string) (*Content, bool, error)
	RegistryContentPut(content *Content) error
	RegistryBundleGet(id string) (*Bundle, bool, error)
	RegistryBundlePut(bundle *Bundle) error
	RegistryUnitGet(unitID string) (*Unit, bool, error)
	RegistryUnitPut(unit *Unit) error
	RegistryRentalGet(contentID string, renter [20]byte) (*Rental, bool, error)
	RegistryRentalPut(rental *Rental) error
}

// Engine maintains the content catalogue: published content, bundles, minted
// unit metadata and rental access records.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	nowFn     func() int64
	weights   WeightTable
	rollTable RollTable
}

// NewEngine constructs a registry engine with the default rarity tables.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		weights:   DefaultWeightTable(),
		rollTable: DefaultRollTable(),
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

// SetWeightTable overrides the rarity weight table.
func (e *Engine) SetWeightTable(table WeightTable) error {
	if err := table.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidTable, err)
	}
	e.weights = table
	return nil
}

// SetRollTable overrides the rarity roll odds.
func (e *Engine) SetRollTable(table RollTable) error {
	if err := table.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRollTable, err)
	}
	e.rollTable = table
	return nil
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

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Fingerprint digests a content payload for the on-ledger record.
func Fingerprint(payload []byte) [32]byte {
	return blake3.Sum256(payload)
}

// WeightForRarity returns the configured reward weight for a rarity tier.
func (e *Engine) WeightForRarity(r Rarity) (*big.Int, error) {
	return e.weights.WeightOf(r)
}

// RollRarity maps a raw 32-bit randomness draw onto a rarity tier using the
// configured odds.
func (e *Engine) RollRarity(roll uint32) Rarity {
	return e.rollTable.TierForRoll(roll)
}

// PublishContent records a new piece of creator content. The rental fee may
// be zero for content that is mint-only.
func (e *Engine) PublishContent(creator [20]byte, id, title, uri string, fingerprint [32]byte, mintPrice, rentalFee *big.Int) (*Content, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(creator) {
		return nil, errZeroCreator
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return nil, errMissingID
	}
	trimmedURI := strings.TrimSpace(uri)
	if trimmedURI == "" {
		return nil, errMissingURI
	}
	if mintPrice == nil || mintPrice.Sign() <= 0 {
		return nil, errInvalidPrice
	}
	if rentalFee != nil && rentalFee.Sign() < 0 {
		return nil, errInvalidFee
	}
	if _, exists, err := e.state.RegistryContentGet(trimmedID); err != nil {
		return nil, err
	} else if exists {
		return nil, errContentExists
	}

	content := &Content{
		ID:          trimmedID,
		Creator:     creator,
		Title:       normalizeTitle(strings.TrimSpace(title)),
		URI:         trimmedURI,
		Fingerprint: fingerprint,
		MintPrice:   new(big.Int).Set(mintPrice),
		RentalFee:   newBigInt(rentalFee),
		PublishedAt: e.now(),
	}
	if err := e.state.RegistryContentPut(content); err != nil {
		return nil, err
	}
	e.emit(ContentPublishedEvent(content))
	return content.Clone(), nil
}

// CreateBundle groups previously published content into one mintable bundle.
// Every member must exist and belong to the same creator; the member order is
// preserved and becomes the canonical settlement fan-out order.
func (e *Engine) CreateBundle(creator [20]byte, id, title string, members []string, mintPrice *big.Int) (*Bundle, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(creator) {
		return nil, errZeroCreator
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return nil, errMissingID
	}
	if mintPrice == nil || mintPrice.Sign() <= 0 {
		return nil, errInvalidPrice
	}
	if len(members) == 0 {
		return nil, errNoMembers
	}
	if _, exists, err := e.state.RegistryBundleGet(trimmedID); err != nil {
		return nil, err
	} else if exists {
		return nil, errBundleExists
	}

	seen := make(map[string]struct{}, len(members))
	ordered := make([]string, 0, len(members))
	for _, member := range members {
		memberID := strings.TrimSpace(member)
		if memberID == "" {
			return nil, errMissingID
		}
		if _, dup := seen[memberID]; dup {
			return nil, errDuplicateMember
		}
		seen[memberID] = struct{}{}
		content, exists, err := e.state.RegistryContentGet(memberID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrContentNotFound
		}
		if content.Creator != creator {
			return nil, errForeignMember
		}
		ordered = append(ordered, memberID)
	}

	bundle := &Bundle{
		ID:          trimmedID,
		Creator:     creator,
		Title:       normalizeTitle(strings.TrimSpace(title)),
		Members:     ordered,
		MintPrice:   new(big.Int).Set(mintPrice),
		PublishedAt: e.now(),
	}
	if err := e.state.RegistryBundlePut(bundle); err != nil {
		return nil, err
	}
	e.emit(BundleCreatedEvent(bundle))
	return bundle.Clone(), nil
}

// RecordMint stores the registry-side record of a freshly minted unit and
// bumps the mint counter on its content or bundle. Exactly one of contentID
// and bundleID must be set.
func (e *Engine) RecordMint(unitID, contentID, bundleID string, rarity Rarity, weight *big.Int) (*Unit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trimmedUnit := strings.TrimSpace(unitID)
	if trimmedUnit == "" {
		return nil, errMissingID
	}
	if !rarity.Valid() {
		return nil, errUnknownRarity
	}
	if weight == nil || weight.Sign() <= 0 {
		return nil, errInvalidWeight
	}
	trimmedContent := strings.TrimSpace(contentID)
	trimmedBundle := strings.TrimSpace(bundleID)
	if trimmedContent == "" && trimmedBundle == "" {
		return nil, errMissingRef
	}
	if trimmedContent != "" && trimmedBundle != "" {
		return nil, errConflictingRef
	}
	if _, exists, err := e.state.RegistryUnitGet(trimmedUnit); err != nil {
		return nil, err
	} else if exists {
		return nil, errUnitExists
	}

	var creator [20]byte
	if trimmedContent != "" {
		content, exists, err := e.state.RegistryContentGet(trimmedContent)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrContentNotFound
		}
		content.Minted++
		if err := e.state.RegistryContentPut(content); err != nil {
			return nil, err
		}
		creator = content.Creator
	} else {
		bundle, exists, err := e.state.RegistryBundleGet(trimmedBundle)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrBundleNotFound
		}
		bundle.Minted++
		if err := e.state.RegistryBundlePut(bundle); err != nil {
			return nil, err
		}
		creator = bundle.Creator
	}

	unit := &Unit{
		ID:        trimmedUnit,
		ContentID: trimmedContent,
		BundleID:  trimmedBundle,
		Creator:   creator,
		Rarity:    rarity,
		Weight:    new(big.Int).Set(weight),
		MintedAt:  e.now(),
	}
	if err := e.state.RegistryUnitPut(unit); err != nil {
		return nil, err
	}
	e.emit(UnitMintedEvent(unit))
	return unit.Clone(), nil
}

// RecordRental grants or extends timed access to content. An active rental is
// extended from its current expiry, an expired one restarts from now.
func (e *Engine) RecordRental(contentID string, renter [20]byte, fee *big.Int, durationSeconds int64) (*Rental, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trimmedID := strings.TrimSpace(contentID)
	if trimmedID == "" {
		return nil, errMissingID
	}
	if isZeroAddress(renter) {
		return nil, errZeroRenter
	}
	if fee == nil || fee.Sign() <= 0 {
		return nil, errInvalidFee
	}
	if durationSeconds <= 0 {
		return nil, errInvalidDuration
	}
	if _, exists, err := e.state.RegistryContentGet(trimmedID); err != nil {
		return nil, err
	} else if !exists {
		return nil, ErrContentNotFound
	}

	now := e.now()
	rental, exists, err := e.state.RegistryRentalGet(trimmedID, renter)
	if err != nil {
		return nil, err
	}
	if !exists || !rental.Active(now) {
		rental = &Rental{
			ContentID: trimmedID,
			Renter:    renter,
			Fee:       big.NewInt(0),
			StartedAt: now,
			ExpiresAt: now + durationSeconds,
		}
	} else {
		rental.ExpiresAt += durationSeconds
	}
	rental.Fee = new(big.Int).Add(newBigInt(rental.Fee), fee)
	if err := e.state.RegistryRentalPut(rental); err != nil {
		return nil, err
	}
	e.emit(RentalRecordedEvent(rental))
	return rental.Clone(), nil
}

// Content returns the published content record for the given id.
func (e *Engine) Content(id string) (*Content, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	content, exists, err := e.state.RegistryContentGet(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrContentNotFound
	}
	return content.Clone(), nil
}

// Bundle returns the bundle record for the given id.
func (e *Engine) Bundle(id string) (*Bundle, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	bundle, exists, err := e.state.RegistryBundleGet(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrBundleNotFound
	}
	return bundle.Clone(), nil
}

// Unit returns the registry record for a minted unit.
func (e *Engine) Unit(unitID string) (*Unit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	unit, exists, err := e.state.RegistryUnitGet(strings.TrimSpace(unitID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUnitNotFound
	}
	return unit.Clone(), nil
}

// Rental returns the rental record for a content/renter pair.
func (e *Engine) Rental(contentID string, renter [20]byte) (*Rental, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rental, exists, err := e.state.RegistryRentalGet(strings.TrimSpace(contentID), renter)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRentalNotFound
	}
	return rental.Clone(), nil
}
