package registry

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
)

type mockState struct {
	contents map[string]*Content
	bundles  map[string]*Bundle
	units    map[string]*Unit
	rentals  map[string]*Rental
}

func newMockState() *mockState {
	return &mockState{
		contents: make(map[string]*Content),
		bundles:  make(map[string]*Bundle),
		units:    make(map[string]*Unit),
		rentals:  make(map[string]*Rental),
	}
}

func (m *mockState) RegistryContentGet(id string) (*Content, bool, error) {
	content, ok := m.contents[id]
	if !ok {
		return nil, false, nil
	}
	return content.Clone(), true, nil
}

func (m *mockState) RegistryContentPut(content *Content) error {
	m.contents[content.ID] = content.Clone()
	return nil
}

func (m *mockState) RegistryBundleGet(id string) (*Bundle, bool, error) {
	bundle, ok := m.bundles[id]
	if !ok {
		return nil, false, nil
	}
	return bundle.Clone(), true, nil
}

func (m *mockState) RegistryBundlePut(bundle *Bundle) error {
	m.bundles[bundle.ID] = bundle.Clone()
	return nil
}

func (m *mockState) RegistryUnitGet(unitID string) (*Unit, bool, error) {
	unit, ok := m.units[unitID]
	if !ok {
		return nil, false, nil
	}
	return unit.Clone(), true, nil
}

func (m *mockState) RegistryUnitPut(unit *Unit) error {
	m.units[unit.ID] = unit.Clone()
	return nil
}

func rentalKey(contentID string, renter [20]byte) string {
	return contentID + "/" + hex.EncodeToString(renter[:])
}

func (m *mockState) RegistryRentalGet(contentID string, renter [20]byte) (*Rental, bool, error) {
	rental, ok := m.rentals[rentalKey(contentID, renter)]
	if !ok {
		return nil, false, nil
	}
	return rental.Clone(), true, nil
}

func (m *mockState) RegistryRentalPut(rental *Rental) error {
	m.rentals[rentalKey(rental.ContentID, rental.Renter)] = rental.Clone()
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestEngine(state *mockState, now *int64) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return *now })
	return engine
}

func publish(t *testing.T, engine *Engine, creator [20]byte, id string) *Content {
	t.Helper()
	content, err := engine.PublishContent(creator, id, "Title "+id, "ipfs://"+id, Fingerprint([]byte(id)), big.NewInt(1_000_000), big.NewInt(10_000))
	if err != nil {
		t.Fatalf("publish %s: %v", id, err)
	}
	return content
}

func TestPublishContent(t *testing.T) {
	state := newMockState()
	now := int64(10_000)
	engine := newTestEngine(state, &now)
	creator := addr(1)

	content := publish(t, engine, creator, "story-1")
	if content.PublishedAt != 10_000 {
		t.Fatalf("published-at: %d", content.PublishedAt)
	}
	if content.Fingerprint != Fingerprint([]byte("story-1")) {
		t.Fatalf("fingerprint mismatch")
	}

	loaded, err := engine.Content("story-1")
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if loaded.URI != "ipfs://story-1" || loaded.MintPrice.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected record: %+v", loaded)
	}

	if _, err := engine.PublishContent(creator, "story-1", "", "ipfs://dup", [32]byte{}, big.NewInt(1), nil); !errors.Is(err, errContentExists) {
		t.Fatalf("duplicate publish: %v", err)
	}
	if _, err := engine.Content("missing"); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("missing content: %v", err)
	}
}

func TestPublishNormalizesTitle(t *testing.T) {
	state := newMockState()
	now := int64(1)
	engine := newTestEngine(state, &now)

	// Decomposed e + combining acute accent folds into the precomposed rune.
	content, err := engine.PublishContent(addr(1), "story-1", "Café Stories", "ipfs://x", [32]byte{}, big.NewInt(1), nil)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if content.Title != "Café Stories" {
		t.Fatalf("title not normalized: %q", content.Title)
	}
}

func TestCreateBundleValidatesMembers(t *testing.T) {
	state := newMockState()
	now := int64(1)
	engine := newTestEngine(state, &now)
	creator := addr(1)
	rival := addr(2)

	publish(t, engine, creator, "story-a")
	publish(t, engine, creator, "story-b")
	publish(t, engine, rival, "story-c")

	if _, err := engine.CreateBundle(creator, "box-1", "", nil, big.NewInt(1)); !errors.Is(err, errNoMembers) {
		t.Fatalf("empty members: %v", err)
	}
	if _, err := engine.CreateBundle(creator, "box-1", "", []string{"story-a", "missing"}, big.NewInt(1)); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("unknown member: %v", err)
	}
	if _, err := engine.CreateBundle(creator, "box-1", "", []string{"story-a", "story-c"}, big.NewInt(1)); !errors.Is(err, errForeignMember) {
		t.Fatalf("foreign member: %v", err)
	}
	if _, err := engine.CreateBundle(creator, "box-1", "", []string{"story-a", "story-a"}, big.NewInt(1)); !errors.Is(err, errDuplicateMember) {
		t.Fatalf("duplicate member: %v", err)
	}

	bundle, err := engine.CreateBundle(creator, "box-1", "Season One", []string{"story-b", "story-a"}, big.NewInt(5_000_000))
	if err != nil {
		t.Fatalf("create bundle: %v", err)
	}
	if len(bundle.Members) != 2 || bundle.Members[0] != "story-b" || bundle.Members[1] != "story-a" {
		t.Fatalf("member order not preserved: %v", bundle.Members)
	}

	if _, err := engine.CreateBundle(creator, "box-1", "", []string{"story-a"}, big.NewInt(1)); !errors.Is(err, errBundleExists) {
		t.Fatalf("duplicate bundle: %v", err)
	}
}

func TestRecordMint(t *testing.T) {
	state := newMockState()
	now := int64(500)
	engine := newTestEngine(state, &now)
	creator := addr(1)
	publish(t, engine, creator, "story-1")

	unit, err := engine.RecordMint("unit-1", "story-1", "", RarityRare, big.NewInt(4))
	if err != nil {
		t.Fatalf("record mint: %v", err)
	}
	if unit.Creator != creator || unit.Rarity != RarityRare || unit.MintedAt != 500 {
		t.Fatalf("unexpected unit: %+v", unit)
	}

	if _, err := engine.RecordMint("unit-2", "story-1", "", RarityCommon, big.NewInt(1)); err != nil {
		t.Fatalf("second mint: %v", err)
	}
	content, err := engine.Content("story-1")
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if content.Minted != 2 {
		t.Fatalf("mint counter: %d", content.Minted)
	}

	if _, err := engine.RecordMint("unit-1", "story-1", "", RarityCommon, big.NewInt(1)); !errors.Is(err, errUnitExists) {
		t.Fatalf("duplicate unit: %v", err)
	}
	if _, err := engine.RecordMint("unit-3", "", "", RarityCommon, big.NewInt(1)); !errors.Is(err, errMissingRef) {
		t.Fatalf("missing ref: %v", err)
	}
	if _, err := engine.RecordMint("unit-3", "story-1", "box-1", RarityCommon, big.NewInt(1)); !errors.Is(err, errConflictingRef) {
		t.Fatalf("conflicting refs: %v", err)
	}
	if _, err := engine.RecordMint("unit-3", "missing", "", RarityCommon, big.NewInt(1)); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("unknown content: %v", err)
	}
	if _, err := engine.RecordMint("unit-3", "story-1", "", Rarity(99), big.NewInt(1)); !errors.Is(err, errUnknownRarity) {
		t.Fatalf("bad rarity: %v", err)
	}
	if _, err := engine.RecordMint("unit-3", "story-1", "", RarityCommon, big.NewInt(0)); !errors.Is(err, errInvalidWeight) {
		t.Fatalf("bad weight: %v", err)
	}
}

func TestRecordMintAgainstBundle(t *testing.T) {
	state := newMockState()
	now := int64(1)
	engine := newTestEngine(state, &now)
	creator := addr(1)
	publish(t, engine, creator, "story-a")
	if _, err := engine.CreateBundle(creator, "box-1", "", []string{"story-a"}, big.NewInt(100)); err != nil {
		t.Fatalf("create bundle: %v", err)
	}

	unit, err := engine.RecordMint("unit-1", "", "box-1", RarityLegendary, big.NewInt(16))
	if err != nil {
		t.Fatalf("record bundle mint: %v", err)
	}
	if unit.BundleID != "box-1" || unit.ContentID != "" {
		t.Fatalf("unexpected refs: %+v", unit)
	}
	bundle, err := engine.Bundle("box-1")
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	if bundle.Minted != 1 {
		t.Fatalf("bundle mint counter: %d", bundle.Minted)
	}
}

func TestRecordRentalExtendsActiveAccess(t *testing.T) {
	state := newMockState()
	now := int64(1_000)
	engine := newTestEngine(state, &now)
	creator := addr(1)
	renter := addr(9)
	publish(t, engine, creator, "story-1")

	rental, err := engine.RecordRental("story-1", renter, big.NewInt(10_000), 100)
	if err != nil {
		t.Fatalf("first rental: %v", err)
	}
	if rental.StartedAt != 1_000 || rental.ExpiresAt != 1_100 {
		t.Fatalf("unexpected window: %+v", rental)
	}
	if !rental.Active(1_099) || rental.Active(1_100) {
		t.Fatalf("activity window wrong")
	}

	now = 1_050
	rental, err = engine.RecordRental("story-1", renter, big.NewInt(10_000), 100)
	if err != nil {
		t.Fatalf("extend rental: %v", err)
	}
	if rental.ExpiresAt != 1_200 {
		t.Fatalf("active rental should extend from expiry, got %d", rental.ExpiresAt)
	}
	if rental.Fee.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("fee should accumulate, got %s", rental.Fee)
	}

	now = 5_000
	rental, err = engine.RecordRental("story-1", renter, big.NewInt(10_000), 100)
	if err != nil {
		t.Fatalf("restart rental: %v", err)
	}
	if rental.StartedAt != 5_000 || rental.ExpiresAt != 5_100 {
		t.Fatalf("expired rental should restart, got %+v", rental)
	}

	if _, err := engine.RecordRental("missing", renter, big.NewInt(1), 10); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("unknown content: %v", err)
	}
	if _, err := engine.Rental("story-1", addr(8)); !errors.Is(err, ErrRentalNotFound) {
		t.Fatalf("missing rental: %v", err)
	}
}
