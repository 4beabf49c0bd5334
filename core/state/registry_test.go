package state

import (
	"math/big"
	"testing"

	"curiochain/native/registry"
	"curiochain/storage"
)

func TestRegistryContentRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	var creator [20]byte
	creator[19] = 0x01
	content := &registry.Content{
		ID:          "story-1",
		Creator:     creator,
		Title:       "First Story",
		URI:         "ipfs://story-1",
		Fingerprint: registry.Fingerprint([]byte("payload")),
		MintPrice:   big.NewInt(1_000_000),
		RentalFee:   big.NewInt(10_000),
		PublishedAt: 1_700_000_000,
		Minted:      7,
	}
	if err := mgr.RegistryContentPut(content); err != nil {
		t.Fatalf("put content: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded, ok, err := NewManager(db).RegistryContentGet("story-1")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if !ok {
		t.Fatalf("content should exist")
	}
	if reloaded.Fingerprint != content.Fingerprint {
		t.Fatalf("fingerprint mismatch")
	}
	if reloaded.Title != "First Story" || reloaded.Minted != 7 || reloaded.PublishedAt != content.PublishedAt {
		t.Fatalf("unexpected record: %+v", reloaded)
	}
	if reloaded.RentalFee.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("rental fee mismatch: %s", reloaded.RentalFee)
	}
}

func TestRegistryBundlePreservesMemberOrder(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	bundle := &registry.Bundle{
		ID:          "box-1",
		Title:       "Season One",
		Members:     []string{"story-c", "story-a", "story-b"},
		MintPrice:   big.NewInt(5_000_000),
		PublishedAt: 42,
	}
	if err := mgr.RegistryBundlePut(bundle); err != nil {
		t.Fatalf("put bundle: %v", err)
	}

	reloaded, ok, err := mgr.RegistryBundleGet("box-1")
	if err != nil {
		t.Fatalf("get bundle: %v", err)
	}
	if !ok {
		t.Fatalf("bundle should exist")
	}
	want := []string{"story-c", "story-a", "story-b"}
	if len(reloaded.Members) != len(want) {
		t.Fatalf("member count: %d", len(reloaded.Members))
	}
	for i, member := range want {
		if reloaded.Members[i] != member {
			t.Fatalf("member %d: %q, want %q", i, reloaded.Members[i], member)
		}
	}
}

func TestRegistryUnitRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	unit := &registry.Unit{
		ID:       "unit-1",
		BundleID: "box-1",
		Rarity:   registry.RarityEpic,
		Weight:   big.NewInt(8),
		MintedAt: 99,
	}
	if err := mgr.RegistryUnitPut(unit); err != nil {
		t.Fatalf("put unit: %v", err)
	}

	reloaded, ok, err := mgr.RegistryUnitGet("unit-1")
	if err != nil {
		t.Fatalf("get unit: %v", err)
	}
	if !ok {
		t.Fatalf("unit should exist")
	}
	if reloaded.Rarity != registry.RarityEpic || reloaded.Weight.Cmp(big.NewInt(8)) != 0 {
		t.Fatalf("unexpected unit: %+v", reloaded)
	}
}

func TestRegistryRentalKeyedPerRenter(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	var alice, bob [20]byte
	alice[19] = 0x0a
	bob[19] = 0x0b

	if err := mgr.RegistryRentalPut(&registry.Rental{
		ContentID: "story-1",
		Renter:    alice,
		Fee:       big.NewInt(100),
		StartedAt: 10,
		ExpiresAt: 110,
	}); err != nil {
		t.Fatalf("put rental: %v", err)
	}

	_, ok, err := mgr.RegistryRentalGet("story-1", bob)
	if err != nil {
		t.Fatalf("get rental: %v", err)
	}
	if ok {
		t.Fatalf("bob has no rental")
	}

	rental, ok, err := mgr.RegistryRentalGet("story-1", alice)
	if err != nil {
		t.Fatalf("get rental: %v", err)
	}
	if !ok || rental.ExpiresAt != 110 {
		t.Fatalf("unexpected rental: ok=%v %+v", ok, rental)
	}
}
