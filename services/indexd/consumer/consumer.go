// Package consumer tails the node's websocket event stream and folds every
// frame into the indexer's relational read model.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"nhooyr.io/websocket"

	"curiochain/native/registry"
	"curiochain/native/rewards"
	"curiochain/native/router"
	"curiochain/services/indexd/models"
)

// Frame mirrors the node's websocket event payload.
type Frame struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Config wires the consumer's dependencies.
type Config struct {
	DB           *gorm.DB
	WebsocketURL string
	DialTimeout  time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Consumer resumes from the checkpoint row on every (re)connect, so restarts
// and dropped connections never skip or double-apply an event.
type Consumer struct {
	db           *gorm.DB
	target       *url.URL
	dialTimeout  time.Duration
	reconnectMin time.Duration
	reconnectMax time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// New validates the stream target and constructs a consumer.
func New(cfg Config) (*Consumer, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("consumer requires a database handle")
	}
	parsed, err := url.Parse(strings.TrimSpace(cfg.WebsocketURL))
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("websocket url must use the ws or wss scheme")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	reconnectMin := cfg.ReconnectMin
	if reconnectMin <= 0 {
		reconnectMin = time.Second
	}
	reconnectMax := cfg.ReconnectMax
	if reconnectMax < reconnectMin {
		reconnectMax = time.Minute
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		db:           cfg.DB,
		target:       parsed,
		dialTimeout:  dialTimeout,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
		now:          nowFn,
		logger:       logger,
	}, nil
}

// Run tails the stream until the context is cancelled, reconnecting with
// exponential backoff. The backoff resets whenever a connection makes
// progress.
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.reconnectMin
	for ctx.Err() == nil {
		applied, err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if applied > 0 {
			backoff = c.reconnectMin
		}
		if err != nil {
			c.logger.Warn("event stream interrupted",
				"err", err,
				"applied", applied,
				"retry_in", backoff.String(),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.reconnectMax {
			backoff = c.reconnectMax
		}
	}
}

func (c *Consumer) stream(ctx context.Context) (int, error) {
	checkpoint, err := c.LoadCheckpoint(ctx)
	if err != nil {
		return 0, err
	}
	target := *c.target
	query := target.Query()
	query.Set("after", strconv.FormatUint(checkpoint.LastSequence, 10))
	target.RawQuery = query.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, target.String(), nil)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	c.logger.Info("event stream connected", "url", target.Redacted(), "after", checkpoint.LastSequence)
	applied := 0
	last := checkpoint.LastSequence
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return applied, err
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("skipping malformed event frame", "err", err)
			continue
		}
		if frame.Sequence <= last {
			continue
		}
		if err := c.Apply(ctx, frame); err != nil {
			return applied, fmt.Errorf("apply event %d (%s): %w", frame.Sequence, frame.Type, err)
		}
		last = frame.Sequence
		applied++
	}
}

// LoadCheckpoint returns the cursor row, creating it on first run.
func (c *Consumer) LoadCheckpoint(ctx context.Context) (models.Checkpoint, error) {
	var checkpoint models.Checkpoint
	err := c.db.WithContext(ctx).First(&checkpoint, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		checkpoint = models.Checkpoint{ID: 1, UpdatedAt: c.now().UTC()}
		if err := c.db.WithContext(ctx).Create(&checkpoint).Error; err != nil {
			return checkpoint, fmt.Errorf("create checkpoint: %w", err)
		}
		return checkpoint, nil
	}
	if err != nil {
		return checkpoint, fmt.Errorf("load checkpoint: %w", err)
	}
	return checkpoint, nil
}

// Apply folds a single frame into the read model and advances the checkpoint.
// The fold and the cursor update share one transaction so a crash never
// leaves a frame half applied. Frames at or below the checkpoint are no-ops.
func (c *Consumer) Apply(ctx context.Context, frame Frame) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var checkpoint models.Checkpoint
		created := false
		if err := tx.First(&checkpoint, 1).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("load checkpoint: %w", err)
			}
			checkpoint = models.Checkpoint{ID: 1}
			created = true
		}
		if frame.Sequence <= checkpoint.LastSequence {
			return nil
		}
		if err := c.fold(tx, frame, &checkpoint); err != nil {
			return err
		}
		checkpoint.LastSequence = frame.Sequence
		checkpoint.UpdatedAt = c.now().UTC()
		if created {
			return tx.Create(&checkpoint).Error
		}
		return tx.Save(&checkpoint).Error
	})
}

func (c *Consumer) fold(tx *gorm.DB, frame Frame, checkpoint *models.Checkpoint) error {
	attrs := frame.Attributes
	switch frame.Type {
	case registry.EventTypeContentPublished:
		return c.foldContent(tx, attrs)
	case registry.EventTypeBundleCreated:
		return c.foldBundle(tx, attrs)
	case registry.EventTypeUnitMinted:
		return c.foldUnitMinted(tx, attrs)
	case registry.EventTypeRentalRecorded:
		return c.foldRental(tx, attrs)
	case rewards.EventTypeWeightRegistered:
		return c.foldWeightRegistered(tx, attrs)
	case rewards.EventTypeOwnerChanged:
		return c.foldOwnerChanged(tx, attrs)
	case rewards.EventTypePoolDeposit:
		return c.foldPoolDeposit(tx, frame)
	case rewards.EventTypeClaimPaid:
		return c.foldClaimPaid(tx, frame)
	case rewards.EventTypeTreasuryCredited:
		return c.foldTreasuryCredited(tx, attrs)
	case rewards.EventTypeEpochSettled:
		return c.foldEpochSettled(tx, frame)
	case rewards.EventTypeEpochDurationUpdated:
		seconds, err := strconv.ParseInt(attrs["currentSeconds"], 10, 64)
		if err != nil {
			return fmt.Errorf("parse epoch duration: %w", err)
		}
		checkpoint.EpochDurationSeconds = seconds
		return nil
	case router.EventTypeMintSettled:
		return c.foldRouted(tx, frame, models.RoutedKindMint, attrs["contentId"], attrs["price"], attrs["holderDeposited"])
	case router.EventTypeBundleSettled:
		return c.foldRouted(tx, frame, models.RoutedKindBundle, attrs["bundleId"], attrs["price"], attrs["bundleDeposited"])
	case router.EventTypeRentalSettled:
		return c.foldRouted(tx, frame, models.RoutedKindRental, attrs["contentId"], attrs["fee"], "0")
	case router.EventTypeSubscriptionTick:
		return c.foldRouted(tx, frame, models.RoutedKindSubscription, attrs["treasury"], attrs["amount"], "0")
	default:
		// Node lifecycle events carry nothing the read model serves.
		c.logger.Debug("ignoring event", "type", frame.Type, "sequence", frame.Sequence)
		return nil
	}
}

func (c *Consumer) foldContent(tx *gorm.DB, attrs map[string]string) error {
	id := attrs["contentId"]
	if id == "" {
		return fmt.Errorf("content event missing contentId")
	}
	var content models.Content
	err := tx.First(&content, "id = ?", id).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	fresh := errors.Is(err, gorm.ErrRecordNotFound)
	content.ID = id
	content.Creator = attrs["creator"]
	content.URI = attrs["uri"]
	content.Fingerprint = attrs["fingerprint"]
	content.MintPrice = attrs["mintPrice"]
	content.RentalFee = attrs["rentalFee"]
	if fresh {
		return tx.Create(&content).Error
	}
	return tx.Save(&content).Error
}

func (c *Consumer) foldBundle(tx *gorm.DB, attrs map[string]string) error {
	id := attrs["bundleId"]
	if id == "" {
		return fmt.Errorf("bundle event missing bundleId")
	}
	members, err := strconv.Atoi(attrs["members"])
	if err != nil {
		return fmt.Errorf("parse bundle members: %w", err)
	}
	var bundle models.Bundle
	err = tx.First(&bundle, "id = ?", id).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	fresh := errors.Is(err, gorm.ErrRecordNotFound)
	bundle.ID = id
	bundle.Creator = attrs["creator"]
	bundle.MemberCount = members
	bundle.MintPrice = attrs["mintPrice"]
	if fresh {
		return tx.Create(&bundle).Error
	}
	return tx.Save(&bundle).Error
}

func (c *Consumer) foldUnitMinted(tx *gorm.DB, attrs map[string]string) error {
	id := attrs["unitId"]
	if id == "" {
		return fmt.Errorf("unit event missing unitId")
	}
	var unit models.Unit
	err := tx.First(&unit, "id = ?", id).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	fresh := errors.Is(err, gorm.ErrRecordNotFound)
	unit.ID = id
	unit.ContentID = attrs["contentId"]
	unit.BundleID = attrs["bundleId"]
	unit.Creator = attrs["creator"]
	unit.Rarity = attrs["rarity"]
	unit.Weight = attrs["weight"]
	if fresh {
		return tx.Create(&unit).Error
	}
	return tx.Save(&unit).Error
}

func (c *Consumer) foldRental(tx *gorm.DB, attrs map[string]string) error {
	contentID := attrs["contentId"]
	renter := attrs["renter"]
	if contentID == "" || renter == "" {
		return fmt.Errorf("rental event missing contentId or renter")
	}
	expires, err := strconv.ParseInt(attrs["expiresAt"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse rental expiry: %w", err)
	}
	var rental models.Rental
	err = tx.First(&rental, "content_id = ? AND renter = ?", contentID, renter).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	fresh := errors.Is(err, gorm.ErrRecordNotFound)
	rental.ContentID = contentID
	rental.Renter = renter
	rental.Fee = attrs["fee"]
	rental.ExpiresAt = expires
	if fresh {
		return tx.Create(&rental).Error
	}
	return tx.Save(&rental).Error
}

// foldWeightRegistered backfills the owner on the unit row. The mint event
// has no owner attribute; the weight registration that follows it does.
func (c *Consumer) foldWeightRegistered(tx *gorm.DB, attrs map[string]string) error {
	id := attrs["unitId"]
	if id == "" {
		return fmt.Errorf("weight event missing unitId")
	}
	var unit models.Unit
	err := tx.First(&unit, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Stream resumed past the mint frame. Record what we know.
		unit = models.Unit{ID: id, Creator: attrs["creator"], Weight: attrs["weight"], Owner: attrs["owner"]}
		return tx.Create(&unit).Error
	}
	if err != nil {
		return err
	}
	unit.Owner = attrs["owner"]
	if unit.Weight == "" {
		unit.Weight = attrs["weight"]
	}
	return tx.Save(&unit).Error
}

func (c *Consumer) foldOwnerChanged(tx *gorm.DB, attrs map[string]string) error {
	id := attrs["unitId"]
	if id == "" {
		return fmt.Errorf("owner event missing unitId")
	}
	var unit models.Unit
	err := tx.First(&unit, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		unit = models.Unit{ID: id, Owner: attrs["newOwner"]}
		return tx.Create(&unit).Error
	}
	if err != nil {
		return err
	}
	unit.Owner = attrs["newOwner"]
	return tx.Save(&unit).Error
}

func (c *Consumer) foldPoolDeposit(tx *gorm.DB, frame Frame) error {
	attrs := frame.Attributes
	deposit := models.PoolDeposit{
		ID:            uuid.New(),
		Sequence:      frame.Sequence,
		Pool:          attrs["pool"],
		Amount:        attrs["amount"],
		Distributed:   attrs["distributed"],
		Dust:          attrs["dust"],
		Undistributed: attrs["undistributed"],
		DepositedAt:   c.now().UTC(),
	}
	return tx.Create(&deposit).Error
}

func (c *Consumer) foldClaimPaid(tx *gorm.DB, frame Frame) error {
	attrs := frame.Attributes
	payout := models.Payout{
		ID:       uuid.New(),
		Sequence: frame.Sequence,
		Scope:    attrs["scope"],
		Account:  attrs["account"],
		UnitID:   attrs["unitId"],
		Amount:   attrs["amount"],
		PaidAt:   c.now().UTC(),
	}
	return tx.Create(&payout).Error
}

func (c *Consumer) foldTreasuryCredited(tx *gorm.DB, attrs map[string]string) error {
	id := attrs["treasury"]
	if id == "" {
		return fmt.Errorf("treasury event missing treasury")
	}
	var treasury models.Treasury
	err := tx.First(&treasury, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		treasury = models.Treasury{ID: id, Balance: attrs["balance"], TotalSwept: "0"}
		return tx.Create(&treasury).Error
	}
	if err != nil {
		return err
	}
	treasury.Balance = attrs["balance"]
	return tx.Save(&treasury).Error
}

// foldEpochSettled records the sweep and derives the post-sweep treasury
// balance. The settle event carries the swept amount, not the remainder.
func (c *Consumer) foldEpochSettled(tx *gorm.DB, frame Frame) error {
	attrs := frame.Attributes
	epochSeq, err := strconv.ParseUint(attrs["sequence"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse epoch sequence: %w", err)
	}
	settledAt, err := strconv.ParseInt(attrs["settledAt"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse epoch timestamp: %w", err)
	}
	settlement := models.EpochSettlement{
		ID:            uuid.New(),
		Sequence:      frame.Sequence,
		Treasury:      attrs["treasury"],
		EpochSequence: epochSeq,
		SettledAt:     settledAt,
		Swept:         attrs["swept"],
		ToGlobal:      attrs["toGlobal"],
		ToCreatorDist: attrs["toCreatorDist"],
		ToPatron:      attrs["toPatron"],
	}
	if err := tx.Create(&settlement).Error; err != nil {
		return err
	}

	var treasury models.Treasury
	err = tx.First(&treasury, "id = ?", settlement.Treasury).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		treasury = models.Treasury{ID: settlement.Treasury, Balance: "0", TotalSwept: settlement.Swept}
		return tx.Create(&treasury).Error
	}
	if err != nil {
		return err
	}
	treasury.Balance = subtractAmount(treasury.Balance, settlement.Swept)
	treasury.TotalSwept = addAmount(treasury.TotalSwept, settlement.Swept)
	return tx.Save(&treasury).Error
}

func (c *Consumer) foldRouted(tx *gorm.DB, frame Frame, kind, sourceID, gross, poolShare string) error {
	attrs := frame.Attributes
	payment := models.RoutedPayment{
		ID:           uuid.New(),
		Sequence:     frame.Sequence,
		Kind:         kind,
		SourceID:     sourceID,
		Payer:        attrs["payer"],
		Creator:      attrs["creator"],
		Gross:        gross,
		CreatorPaid:  attrs["creatorPaid"],
		PoolShare:    poolShare,
		PlatformFee:  attrs["platformFee"],
		EcosystemFee: attrs["ecosystemFee"],
		SettledAt:    c.now().UTC(),
	}
	if payment.CreatorPaid == "" {
		payment.CreatorPaid = "0"
	}
	if payment.PlatformFee == "" {
		payment.PlatformFee = "0"
	}
	if payment.EcosystemFee == "" {
		payment.EcosystemFee = "0"
	}
	return tx.Create(&payment).Error
}

func addAmount(current, delta string) string {
	return shiftAmount(current, delta, false)
}

func subtractAmount(current, delta string) string {
	return shiftAmount(current, delta, true)
}

// shiftAmount adjusts a decimal string balance, clamping subtraction at zero
// so a partial replay can never produce a negative read-model balance.
func shiftAmount(current, delta string, negate bool) string {
	base, ok := new(big.Int).SetString(strings.TrimSpace(current), 10)
	if !ok {
		base = big.NewInt(0)
	}
	change, ok := new(big.Int).SetString(strings.TrimSpace(delta), 10)
	if !ok {
		change = big.NewInt(0)
	}
	if negate {
		base.Sub(base, change)
		if base.Sign() < 0 {
			base.SetInt64(0)
		}
	} else {
		base.Add(base, change)
	}
	return base.String()
}
