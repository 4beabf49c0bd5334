package consumer

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"curiochain/native/registry"
	"curiochain/native/rewards"
	"curiochain/native/router"
	"curiochain/services/indexd/models"
)

func setupConsumer(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "indexd.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	c, err := New(Config{
		DB:           db,
		WebsocketURL: "ws://localhost:8545/ws/events",
		Now:          func() time.Time { return fixed },
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c, db
}

func testAddr(seed byte) string {
	return "0x" + strings.Repeat(string([]byte{'a' + seed%6, '0' + seed%10}), 20)
}

func TestNewRejectsPlainHTTPTarget(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "indexd.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	if _, err := New(Config{DB: db, WebsocketURL: "http://localhost:8545/ws/events"}); err == nil {
		t.Fatal("expected scheme error for http target")
	}
}

func TestApplyFoldsCatalogueLifecycle(t *testing.T) {
	c, db := setupConsumer(t)
	ctx := context.Background()
	creator := testAddr(1)
	frames := []Frame{
		{Sequence: 1, Type: registry.EventTypeContentPublished, Attributes: map[string]string{
			"contentId":   "content:alpha",
			"creator":     creator,
			"uri":         "ipfs://alpha",
			"fingerprint": "8f2a",
			"mintPrice":   "50000",
			"rentalFee":   "2500",
		}},
		{Sequence: 2, Type: registry.EventTypeUnitMinted, Attributes: map[string]string{
			"unitId":    "unit:alpha:1",
			"creator":   creator,
			"rarity":    "rare",
			"weight":    "4",
			"contentId": "content:alpha",
		}},
		{Sequence: 3, Type: rewards.EventTypeWeightRegistered, Attributes: map[string]string{
			"unitId":     "unit:alpha:1",
			"holderPool": "content:alpha",
			"creator":    creator,
			"owner":      testAddr(2),
			"weight":     "4",
		}},
		{Sequence: 4, Type: rewards.EventTypeOwnerChanged, Attributes: map[string]string{
			"unitId":        "unit:alpha:1",
			"previousOwner": testAddr(2),
			"newOwner":      testAddr(3),
		}},
	}
	for _, frame := range frames {
		if err := c.Apply(ctx, frame); err != nil {
			t.Fatalf("apply %s: %v", frame.Type, err)
		}
	}

	var content models.Content
	if err := db.First(&content, "id = ?", "content:alpha").Error; err != nil {
		t.Fatalf("load content: %v", err)
	}
	if content.Creator != creator || content.MintPrice != "50000" || content.RentalFee != "2500" {
		t.Fatalf("unexpected content row: %+v", content)
	}

	var unit models.Unit
	if err := db.First(&unit, "id = ?", "unit:alpha:1").Error; err != nil {
		t.Fatalf("load unit: %v", err)
	}
	if unit.ContentID != "content:alpha" || unit.Weight != "4" {
		t.Fatalf("unexpected unit row: %+v", unit)
	}
	if unit.Owner != testAddr(3) {
		t.Fatalf("owner not updated: %s", unit.Owner)
	}

	checkpoint, err := c.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if checkpoint.LastSequence != 4 {
		t.Fatalf("checkpoint at %d, want 4", checkpoint.LastSequence)
	}
}

func TestApplyReplayIsIdempotent(t *testing.T) {
	c, db := setupConsumer(t)
	ctx := context.Background()
	frame := Frame{Sequence: 7, Type: rewards.EventTypeClaimPaid, Attributes: map[string]string{
		"scope":   "content",
		"account": testAddr(4),
		"unitId":  "unit:alpha:1",
		"amount":  "1200",
	}}
	if err := c.Apply(ctx, frame); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := c.Apply(ctx, frame); err != nil {
		t.Fatalf("replayed apply: %v", err)
	}

	var count int64
	if err := db.Model(&models.Payout{}).Count(&count).Error; err != nil {
		t.Fatalf("count payouts: %v", err)
	}
	if count != 1 {
		t.Fatalf("replay duplicated payout: %d rows", count)
	}
	checkpoint, err := c.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if checkpoint.LastSequence != 7 {
		t.Fatalf("checkpoint at %d, want 7", checkpoint.LastSequence)
	}
}

func TestApplyTreasuryLifecycle(t *testing.T) {
	c, db := setupConsumer(t)
	ctx := context.Background()
	credit := Frame{Sequence: 10, Type: rewards.EventTypeTreasuryCredited, Attributes: map[string]string{
		"treasury": "treasury:patron",
		"amount":   "1000",
		"balance":  "1000",
	}}
	settle := Frame{Sequence: 11, Type: rewards.EventTypeEpochSettled, Attributes: map[string]string{
		"treasury":      "treasury:patron",
		"sequence":      "3",
		"settledAt":     "1767225600",
		"swept":         "900",
		"toGlobal":      "450",
		"toCreatorDist": "450",
		"toPatron":      "0",
	}}
	if err := c.Apply(ctx, credit); err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if err := c.Apply(ctx, settle); err != nil {
		t.Fatalf("apply settle: %v", err)
	}

	var treasury models.Treasury
	if err := db.First(&treasury, "id = ?", "treasury:patron").Error; err != nil {
		t.Fatalf("load treasury: %v", err)
	}
	if treasury.Balance != "100" {
		t.Fatalf("post-sweep balance %s, want 100", treasury.Balance)
	}
	if treasury.TotalSwept != "900" {
		t.Fatalf("total swept %s, want 900", treasury.TotalSwept)
	}

	var settlement models.EpochSettlement
	if err := db.First(&settlement, "sequence = ?", 11).Error; err != nil {
		t.Fatalf("load settlement: %v", err)
	}
	if settlement.EpochSequence != 3 || settlement.Swept != "900" || settlement.ToGlobal != "450" {
		t.Fatalf("unexpected settlement row: %+v", settlement)
	}
}

func TestApplyRecordsRoutedSettlements(t *testing.T) {
	c, db := setupConsumer(t)
	ctx := context.Background()
	frame := Frame{Sequence: 20, Type: router.EventTypeMintSettled, Attributes: map[string]string{
		"contentId":       "content:alpha",
		"payer":           testAddr(5),
		"creator":         testAddr(1),
		"price":           "100000",
		"creatorPaid":     "80000",
		"holderDeposited": "12000",
		"platformFee":     "5000",
		"ecosystemFee":    "3000",
	}}
	if err := c.Apply(ctx, frame); err != nil {
		t.Fatalf("apply mint settle: %v", err)
	}

	var payment models.RoutedPayment
	if err := db.First(&payment, "sequence = ?", 20).Error; err != nil {
		t.Fatalf("load routed payment: %v", err)
	}
	if payment.Kind != models.RoutedKindMint || payment.SourceID != "content:alpha" {
		t.Fatalf("unexpected payment target: %+v", payment)
	}
	if payment.Gross != "100000" || payment.CreatorPaid != "80000" || payment.PoolShare != "12000" {
		t.Fatalf("unexpected payment split: %+v", payment)
	}
}

func TestApplyIgnoresUnknownEventTypes(t *testing.T) {
	c, _ := setupConsumer(t)
	ctx := context.Background()
	frame := Frame{Sequence: 30, Type: "node.account.funded", Attributes: map[string]string{
		"account": testAddr(6),
		"amount":  "500",
	}}
	if err := c.Apply(ctx, frame); err != nil {
		t.Fatalf("apply unknown type: %v", err)
	}
	checkpoint, err := c.LoadCheckpoint(ctx)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if checkpoint.LastSequence != 30 {
		t.Fatalf("checkpoint at %d, want 30", checkpoint.LastSequence)
	}
}
