package registry

import (
	"math/big"

	"golang.org/x/text/unicode/norm"
)

// Content is a published piece of creator content units are minted against.
type Content struct {
	ID          string   `json:"id"`
	Creator     [20]byte `json:"creator"`
	Title       string   `json:"title"`
	URI         string   `json:"uri"`
	Fingerprint [32]byte `json:"fingerprint"`
	MintPrice   *big.Int `json:"mintPrice"`
	RentalFee   *big.Int `json:"rentalFee"`
	PublishedAt int64    `json:"publishedAt"`
	Minted      uint64   `json:"minted"`
}

// Clone returns a deep copy of the content record.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	clone := *c
	clone.MintPrice = newBigInt(c.MintPrice)
	clone.RentalFee = newBigInt(c.RentalFee)
	return &clone
}

// Bundle groups existing content under one mintable unit. Members keep their
// insertion order; that order is the canonical fan-out order for settlement.
type Bundle struct {
	ID          string   `json:"id"`
	Creator     [20]byte `json:"creator"`
	Title       string   `json:"title"`
	Members     []string `json:"members"`
	MintPrice   *big.Int `json:"mintPrice"`
	PublishedAt int64    `json:"publishedAt"`
	Minted      uint64   `json:"minted"`
}

// Clone returns a deep copy of the bundle record.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Members = append([]string(nil), b.Members...)
	clone.MintPrice = newBigInt(b.MintPrice)
	return &clone
}

// Unit is the registry-side record of one minted NFT: which content or bundle
// it was minted against and the rarity draw it received. The reward ledger
// keeps the money side.
type Unit struct {
	ID        string   `json:"id"`
	ContentID string   `json:"contentId,omitempty"`
	BundleID  string   `json:"bundleId,omitempty"`
	Creator   [20]byte `json:"creator"`
	Rarity    Rarity   `json:"rarity"`
	Weight    *big.Int `json:"weight"`
	MintedAt  int64    `json:"mintedAt"`
}

// Clone returns a deep copy of the unit record.
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Weight = newBigInt(u.Weight)
	return &clone
}

// Rental records paid access to content without a minted unit.
type Rental struct {
	ContentID string   `json:"contentId"`
	Renter    [20]byte `json:"renter"`
	Fee       *big.Int `json:"fee"`
	StartedAt int64    `json:"startedAt"`
	ExpiresAt int64    `json:"expiresAt"`
}

// Active reports whether the rental still grants access at the given time.
func (r *Rental) Active(now int64) bool {
	if r == nil {
		return false
	}
	return now < r.ExpiresAt
}

// Clone returns a deep copy of the rental record.
func (r *Rental) Clone() *Rental {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Fee = newBigInt(r.Fee)
	return &clone
}

func normalizeTitle(title string) string {
	return norm.NFC.String(title)
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
