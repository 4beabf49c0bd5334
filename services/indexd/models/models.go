package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Routed payment kinds recorded from router settlement events.
const (
	RoutedKindMint         = "mint"
	RoutedKindBundle       = "bundle"
	RoutedKindRental       = "rental"
	RoutedKindSubscription = "subscription"
)

// Content mirrors a published catalogue entry.
type Content struct {
	ID          string `gorm:"primaryKey;size:128"`
	Creator     string `gorm:"index;size:64"`
	URI         string `gorm:"size:512"`
	Fingerprint string `gorm:"size:64"`
	MintPrice   string `gorm:"size:80"`
	RentalFee   string `gorm:"size:80"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bundle mirrors a curated content bundle.
type Bundle struct {
	ID          string `gorm:"primaryKey;size:128"`
	Creator     string `gorm:"index;size:64"`
	MemberCount int
	MintPrice   string `gorm:"size:80"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Unit mirrors a minted unit and tracks its current owner. The owner is
// populated by the weight registration that follows the mint and updated on
// every ownership transfer.
type Unit struct {
	ID        string `gorm:"primaryKey;size:128"`
	ContentID string `gorm:"index;size:128"`
	BundleID  string `gorm:"index;size:128"`
	Creator   string `gorm:"index;size:64"`
	Owner     string `gorm:"index;size:64"`
	Rarity    string `gorm:"size:16"`
	Weight    string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rental tracks the latest rental window per content and renter.
type Rental struct {
	ContentID string `gorm:"primaryKey;size:128"`
	Renter    string `gorm:"primaryKey;size:64"`
	Fee       string `gorm:"size:80"`
	ExpiresAt int64  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Treasury tracks the running balance of a streaming treasury.
type Treasury struct {
	ID         string `gorm:"primaryKey;size:64"`
	Balance    string `gorm:"size:80"`
	TotalSwept string `gorm:"size:80"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Payout records a single claim settlement.
type Payout struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence uint64    `gorm:"uniqueIndex"`
	Scope    string    `gorm:"size:16;index"`
	Account  string    `gorm:"index;size:64"`
	UnitID   string    `gorm:"index;size:128"`
	Amount   string    `gorm:"size:80"`
	PaidAt   time.Time `gorm:"index"`
}

// PoolDeposit records lamports routed into a reward pool.
type PoolDeposit struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence      uint64    `gorm:"uniqueIndex"`
	Pool          string    `gorm:"index;size:128"`
	Amount        string    `gorm:"size:80"`
	Distributed   string    `gorm:"size:80"`
	Dust          string    `gorm:"size:80"`
	Undistributed string    `gorm:"size:80"`
	DepositedAt   time.Time `gorm:"index"`
}

// RoutedPayment records a router settlement split.
type RoutedPayment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence     uint64    `gorm:"uniqueIndex"`
	Kind         string    `gorm:"size:16;index"`
	SourceID     string    `gorm:"index;size:128"`
	Payer        string    `gorm:"index;size:64"`
	Creator      string    `gorm:"index;size:64"`
	Gross        string    `gorm:"size:80"`
	CreatorPaid  string    `gorm:"size:80"`
	PoolShare    string    `gorm:"size:80"`
	PlatformFee  string    `gorm:"size:80"`
	EcosystemFee string    `gorm:"size:80"`
	SettledAt    time.Time `gorm:"index"`
}

// EpochSettlement records a completed treasury sweep.
type EpochSettlement struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence      uint64    `gorm:"uniqueIndex"`
	Treasury      string    `gorm:"index;size:64"`
	EpochSequence uint64    `gorm:"index"`
	SettledAt     int64
	Swept         string `gorm:"size:80"`
	ToGlobal      string `gorm:"size:80"`
	ToCreatorDist string `gorm:"size:80"`
	ToPatron      string `gorm:"size:80"`
	CreatedAt     time.Time
}

// Checkpoint is the single-row consumer cursor. LastSequence is the highest
// event sequence folded into the read model.
type Checkpoint struct {
	ID                   uint `gorm:"primaryKey"`
	LastSequence         uint64
	EpochDurationSeconds int64
	UpdatedAt            time.Time
}

// AutoMigrate performs all schema migrations for the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Content{},
		&Bundle{},
		&Unit{},
		&Rental{},
		&Treasury{},
		&Payout{},
		&PoolDeposit{},
		&RoutedPayment{},
		&EpochSettlement{},
		&Checkpoint{},
	)
}
