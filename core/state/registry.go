package state

import (
	"fmt"
	"math/big"
	"strings"

	"curiochain/native/registry"
)

func registryContentKey(id string) []byte {
	buf := make([]byte, len(registryContentPrefix)+len(id))
	copy(buf, registryContentPrefix)
	copy(buf[len(registryContentPrefix):], id)
	return buf
}

func registryBundleKey(id string) []byte {
	buf := make([]byte, len(registryBundlePrefix)+len(id))
	copy(buf, registryBundlePrefix)
	copy(buf[len(registryBundlePrefix):], id)
	return buf
}

func registryUnitKey(id string) []byte {
	buf := make([]byte, len(registryUnitPrefix)+len(id))
	copy(buf, registryUnitPrefix)
	copy(buf[len(registryUnitPrefix):], id)
	return buf
}

func registryRentalKey(contentID string, renter [20]byte) []byte {
	buf := make([]byte, 0, len(registryRentalPrefix)+len(contentID)+1+len(renter))
	buf = append(buf, registryRentalPrefix...)
	buf = append(buf, contentID...)
	buf = append(buf, '/')
	buf = append(buf, renter[:]...)
	return buf
}

type storedContent struct {
	ID          string
	Creator     [20]byte
	Title       string
	URI         string
	Fingerprint [32]byte
	MintPrice   *big.Int
	RentalFee   *big.Int
	PublishedAt *big.Int
	Minted      uint64
}

func newStoredContent(c *registry.Content) *storedContent {
	if c == nil {
		return nil
	}
	return &storedContent{
		ID:          c.ID,
		Creator:     c.Creator,
		Title:       c.Title,
		URI:         c.URI,
		Fingerprint: c.Fingerprint,
		MintPrice:   copyBigInt(c.MintPrice),
		RentalFee:   copyBigInt(c.RentalFee),
		PublishedAt: big.NewInt(c.PublishedAt),
		Minted:      c.Minted,
	}
}

func (s *storedContent) toContent() *registry.Content {
	if s == nil {
		return nil
	}
	out := &registry.Content{
		ID:          s.ID,
		Creator:     s.Creator,
		Title:       s.Title,
		URI:         s.URI,
		Fingerprint: s.Fingerprint,
		MintPrice:   copyBigInt(s.MintPrice),
		RentalFee:   copyBigInt(s.RentalFee),
		Minted:      s.Minted,
	}
	if s.PublishedAt != nil {
		out.PublishedAt = s.PublishedAt.Int64()
	}
	return out
}

type storedBundle struct {
	ID          string
	Creator     [20]byte
	Title       string
	Members     []string
	MintPrice   *big.Int
	PublishedAt *big.Int
	Minted      uint64
}

func newStoredBundle(b *registry.Bundle) *storedBundle {
	if b == nil {
		return nil
	}
	return &storedBundle{
		ID:          b.ID,
		Creator:     b.Creator,
		Title:       b.Title,
		Members:     append([]string(nil), b.Members...),
		MintPrice:   copyBigInt(b.MintPrice),
		PublishedAt: big.NewInt(b.PublishedAt),
		Minted:      b.Minted,
	}
}

func (s *storedBundle) toBundle() *registry.Bundle {
	if s == nil {
		return nil
	}
	out := &registry.Bundle{
		ID:        s.ID,
		Creator:   s.Creator,
		Title:     s.Title,
		Members:   append([]string(nil), s.Members...),
		MintPrice: copyBigInt(s.MintPrice),
		Minted:    s.Minted,
	}
	if s.PublishedAt != nil {
		out.PublishedAt = s.PublishedAt.Int64()
	}
	return out
}

type storedRegistryUnit struct {
	ID        string
	ContentID string
	BundleID  string
	Creator   [20]byte
	Rarity    uint8
	Weight    *big.Int
	MintedAt  *big.Int
}

func newStoredRegistryUnit(u *registry.Unit) *storedRegistryUnit {
	if u == nil {
		return nil
	}
	return &storedRegistryUnit{
		ID:        u.ID,
		ContentID: u.ContentID,
		BundleID:  u.BundleID,
		Creator:   u.Creator,
		Rarity:    uint8(u.Rarity),
		Weight:    copyBigInt(u.Weight),
		MintedAt:  big.NewInt(u.MintedAt),
	}
}

func (s *storedRegistryUnit) toUnit() (*registry.Unit, error) {
	if s == nil {
		return nil, fmt.Errorf("registry: nil unit record")
	}
	rarity := registry.Rarity(s.Rarity)
	if !rarity.Valid() {
		return nil, fmt.Errorf("registry: unit %q has invalid rarity %d", s.ID, s.Rarity)
	}
	out := &registry.Unit{
		ID:        s.ID,
		ContentID: s.ContentID,
		BundleID:  s.BundleID,
		Creator:   s.Creator,
		Rarity:    rarity,
		Weight:    copyBigInt(s.Weight),
	}
	if s.MintedAt != nil {
		out.MintedAt = s.MintedAt.Int64()
	}
	return out, nil
}

type storedRental struct {
	ContentID string
	Renter    [20]byte
	Fee       *big.Int
	StartedAt *big.Int
	ExpiresAt *big.Int
}

func newStoredRental(r *registry.Rental) *storedRental {
	if r == nil {
		return nil
	}
	return &storedRental{
		ContentID: r.ContentID,
		Renter:    r.Renter,
		Fee:       copyBigInt(r.Fee),
		StartedAt: big.NewInt(r.StartedAt),
		ExpiresAt: big.NewInt(r.ExpiresAt),
	}
}

func (s *storedRental) toRental() *registry.Rental {
	if s == nil {
		return nil
	}
	out := &registry.Rental{
		ContentID: s.ContentID,
		Renter:    s.Renter,
		Fee:       copyBigInt(s.Fee),
	}
	if s.StartedAt != nil {
		out.StartedAt = s.StartedAt.Int64()
	}
	if s.ExpiresAt != nil {
		out.ExpiresAt = s.ExpiresAt.Int64()
	}
	return out
}

// RegistryContentGet loads a published content record.
func (m *Manager) RegistryContentGet(id string) (*registry.Content, bool, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, false, fmt.Errorf("registry: content id must not be empty")
	}
	stored := new(storedContent)
	ok, err := m.KVGet(registryContentKey(trimmed), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toContent(), true, nil
}

// RegistryContentPut persists a published content record.
func (m *Manager) RegistryContentPut(content *registry.Content) error {
	if content == nil {
		return fmt.Errorf("registry: nil content")
	}
	trimmed := strings.TrimSpace(content.ID)
	if trimmed == "" {
		return fmt.Errorf("registry: content id must not be empty")
	}
	return m.KVPut(registryContentKey(trimmed), newStoredContent(content))
}

// RegistryBundleGet loads a bundle record.
func (m *Manager) RegistryBundleGet(id string) (*registry.Bundle, bool, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, false, fmt.Errorf("registry: bundle id must not be empty")
	}
	stored := new(storedBundle)
	ok, err := m.KVGet(registryBundleKey(trimmed), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toBundle(), true, nil
}

// RegistryBundlePut persists a bundle record.
func (m *Manager) RegistryBundlePut(bundle *registry.Bundle) error {
	if bundle == nil {
		return fmt.Errorf("registry: nil bundle")
	}
	trimmed := strings.TrimSpace(bundle.ID)
	if trimmed == "" {
		return fmt.Errorf("registry: bundle id must not be empty")
	}
	return m.KVPut(registryBundleKey(trimmed), newStoredBundle(bundle))
}

// RegistryUnitGet loads the registry record of a minted unit.
func (m *Manager) RegistryUnitGet(unitID string) (*registry.Unit, bool, error) {
	trimmed := strings.TrimSpace(unitID)
	if trimmed == "" {
		return nil, false, fmt.Errorf("registry: unit id must not be empty")
	}
	stored := new(storedRegistryUnit)
	ok, err := m.KVGet(registryUnitKey(trimmed), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	unit, err := stored.toUnit()
	if err != nil {
		return nil, false, err
	}
	return unit, true, nil
}

// RegistryUnitPut persists the registry record of a minted unit.
func (m *Manager) RegistryUnitPut(unit *registry.Unit) error {
	if unit == nil {
		return fmt.Errorf("registry: nil unit")
	}
	trimmed := strings.TrimSpace(unit.ID)
	if trimmed == "" {
		return fmt.Errorf("registry: unit id must not be empty")
	}
	return m.KVPut(registryUnitKey(trimmed), newStoredRegistryUnit(unit))
}

// RegistryRentalGet loads the rental record for a content/renter pair.
func (m *Manager) RegistryRentalGet(contentID string, renter [20]byte) (*registry.Rental, bool, error) {
	trimmed := strings.TrimSpace(contentID)
	if trimmed == "" {
		return nil, false, fmt.Errorf("registry: content id must not be empty")
	}
	stored := new(storedRental)
	ok, err := m.KVGet(registryRentalKey(trimmed, renter), stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toRental(), true, nil
}

// RegistryRentalPut persists the rental record for a content/renter pair.
func (m *Manager) RegistryRentalPut(rental *registry.Rental) error {
	if rental == nil {
		return fmt.Errorf("registry: nil rental")
	}
	trimmed := strings.TrimSpace(rental.ContentID)
	if trimmed == "" {
		return fmt.Errorf("registry: content id must not be empty")
	}
	return m.KVPut(registryRentalKey(trimmed, rental.Renter), newStoredRental(rental))
}
