package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"curiochain/gateway/store"
)

// SubscriptionStore is the slice of the gateway store the worker needs.
type SubscriptionStore interface {
	SubscriptionsForEvent(ctx context.Context, eventType string) ([]store.Subscription, error)
	GetSubscription(ctx context.Context, id string) (store.Subscription, error)
	InsertDeliveryAttempt(ctx context.Context, attempt store.DeliveryAttempt) error
}

// Worker drains the queue and posts signed payloads to subscribers. Failed
// deliveries are retried with exponential backoff up to maxAttempts; each
// subscription is additionally throttled to its per-minute rate limit.
type Worker struct {
	subs        SubscriptionStore
	queue       *Queue
	client      *http.Client
	logger      *slog.Logger
	nowFn       func() time.Time
	maxAttempts int

	rateMu sync.Mutex
	rate   map[string]rateWindow
}

type rateWindow struct {
	windowStart time.Time
	count       int
}

func NewWorker(subs SubscriptionStore, queue *Queue, logger *slog.Logger, maxAttempts int, deliveryTimeout time.Duration) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if deliveryTimeout <= 0 {
		deliveryTimeout = 10 * time.Second
	}
	return &Worker{
		subs:        subs,
		queue:       queue,
		client:      &http.Client{Timeout: deliveryTimeout},
		logger:      logger,
		nowFn:       time.Now,
		maxAttempts: maxAttempts,
		rate:        make(map[string]rateWindow),
	}
}

// Run processes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, ok := w.queue.Dequeue(ctx)
		if !ok {
			return
		}
		if task.SubscriptionID == "" {
			w.expand(ctx, task)
			continue
		}
		w.deliver(ctx, task)
	}
}

func (w *Worker) expand(ctx context.Context, task Task) {
	subs, err := w.subs.SubscriptionsForEvent(ctx, task.Event.Type)
	if err != nil {
		w.logger.Warn("list subscriptions failed", "eventType", task.Event.Type, "err", err)
		return
	}
	now := w.nowFn().UTC()
	for _, sub := range subs {
		clone := Task{
			Event:          task.Event,
			SubscriptionID: sub.ID,
			EnqueuedAt:     now,
		}
		if err := w.queue.Enqueue(clone); err != nil {
			w.logger.Error("enqueue delivery failed", "subscription", sub.ID, "err", err)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, task Task) {
	sub, err := w.subs.GetSubscription(ctx, task.SubscriptionID)
	if err != nil {
		if !errors.Is(err, store.ErrSubscriptionNotFound) {
			w.logger.Warn("load subscription failed", "subscription", task.SubscriptionID, "err", err)
		}
		return
	}
	if !sub.Active {
		return
	}
	now := w.nowFn()
	if !w.allow(sub.ID, sub.RateLimit, now) {
		task.NotBefore = w.rateReset(sub.ID)
		if err := w.queue.Enqueue(task); err != nil {
			w.logger.Error("requeue throttled delivery failed", "subscription", sub.ID, "err", err)
		}
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"id":         uuid.NewString(),
		"type":       task.Event.Type,
		"sequence":   task.Event.Sequence,
		"attributes": task.Event.Attributes,
		"timestamp":  now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		w.recordAttempt(ctx, task, "error", err.Error(), now, time.Time{})
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		w.recordAttempt(ctx, task, "error", err.Error(), now, time.Time{})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", SignPayload(sub.Secret, payload))

	resp, err := w.client.Do(req)
	if err != nil {
		w.retryLater(ctx, task, err.Error())
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.retryLater(ctx, task, resp.Status)
		return
	}
	w.recordAttempt(ctx, task, "success", "", now, time.Time{})
	w.logger.Debug("webhook delivered", "subscription", sub.ID, "sequence", task.Event.Sequence)
}

func (w *Worker) retryLater(ctx context.Context, task Task, errMsg string) {
	now := w.nowFn()
	attemptNum := task.Attempt + 1
	next := now.Add(backoffDuration(attemptNum))
	if attemptNum >= w.maxAttempts {
		w.recordAttempt(ctx, task, "dropped", errMsg, now, time.Time{})
		w.logger.Warn("webhook delivery abandoned",
			"subscription", task.SubscriptionID,
			"sequence", task.Event.Sequence,
			"attempts", attemptNum,
			"err", errMsg,
		)
		return
	}
	w.recordAttempt(ctx, task, "failed", errMsg, now, next)
	task.Attempt++
	task.NotBefore = next
	if err := w.queue.Enqueue(task); err != nil {
		w.logger.Error("requeue delivery failed", "subscription", task.SubscriptionID, "err", err)
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	d := time.Second * time.Duration(1<<uint(attempt-1))
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}

func (w *Worker) recordAttempt(ctx context.Context, task Task, status, errMsg string, now, next time.Time) {
	attempt := store.DeliveryAttempt{
		SubscriptionID: task.SubscriptionID,
		EventSequence:  task.Event.Sequence,
		Attempt:        task.Attempt + 1,
		Status:         status,
		Error:          errMsg,
		NextAttempt:    next,
		CreatedAt:      now.UTC(),
	}
	if err := w.subs.InsertDeliveryAttempt(ctx, attempt); err != nil {
		w.logger.Warn("record delivery attempt failed", "subscription", task.SubscriptionID, "err", err)
	}
}

func (w *Worker) allow(id string, limit int, now time.Time) bool {
	if limit <= 0 {
		limit = 60
	}
	w.rateMu.Lock()
	defer w.rateMu.Unlock()
	state := w.rate[id]
	if now.Sub(state.windowStart) >= time.Minute {
		state.windowStart = now
		state.count = 0
	}
	if state.count >= limit {
		w.rate[id] = state
		return false
	}
	state.count++
	w.rate[id] = state
	return true
}

func (w *Worker) rateReset(id string) time.Time {
	w.rateMu.Lock()
	defer w.rateMu.Unlock()
	state := w.rate[id]
	if state.windowStart.IsZero() {
		state.windowStart = w.nowFn()
	}
	reset := state.windowStart.Add(time.Minute)
	w.rate[id] = state
	return reset
}

// SignPayload computes the hex HMAC-SHA256 a consumer should verify against
// the X-Webhook-Signature header.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
