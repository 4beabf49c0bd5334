package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"curiochain/gateway/node"
	"curiochain/gateway/store"
)

type stubSubs struct {
	mu       sync.Mutex
	subs     map[string]store.Subscription
	attempts []store.DeliveryAttempt
}

func newStubSubs(subs ...store.Subscription) *stubSubs {
	byID := make(map[string]store.Subscription, len(subs))
	for _, sub := range subs {
		byID[sub.ID] = sub
	}
	return &stubSubs{subs: byID}
}

func (s *stubSubs) SubscriptionsForEvent(_ context.Context, eventType string) ([]store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Subscription
	for _, sub := range s.subs {
		if !sub.Active {
			continue
		}
		if sub.EventType == eventType || sub.EventType == "*" {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubSubs) GetSubscription(_ context.Context, id string) (store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return store.Subscription{}, store.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *stubSubs) InsertDeliveryAttempt(_ context.Context, attempt store.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *stubSubs) attemptStatuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.attempts))
	for i, attempt := range s.attempts {
		out[i] = attempt.Status
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestWorkerDeliversSignedPayload(t *testing.T) {
	type received struct {
		body      []byte
		signature string
	}
	deliveries := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read webhook body: %v", err)
		}
		deliveries <- received{body: body, signature: r.Header.Get("X-Webhook-Signature")}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	subs := newStubSubs(store.Subscription{
		ID:        "sub-1",
		URL:       srv.URL,
		Secret:    "hook-secret",
		EventType: "rewards.claim.paid",
		RateLimit: 60,
		Active:    true,
	})
	queue := openQueue(t, filepath.Join(t.TempDir(), "notify.db"))
	defer queue.Close()
	worker := NewWorker(subs, queue, nil, 5, time.Second)

	event := node.Event{
		Sequence:   11,
		Type:       "rewards.claim.paid",
		Attributes: map[string]string{"unitId": "unit-1", "amount": "5000"},
	}
	if err := queue.Enqueue(Task{Event: event, EnqueuedAt: time.Now()}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	select {
	case got := <-deliveries:
		if got.signature != SignPayload("hook-secret", got.body) {
			t.Fatalf("signature mismatch for body %s", got.body)
		}
		var payload struct {
			ID         string            `json:"id"`
			Type       string            `json:"type"`
			Sequence   uint64            `json:"sequence"`
			Attributes map[string]string `json:"attributes"`
		}
		if err := json.Unmarshal(got.body, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.ID == "" {
			t.Fatalf("expected delivery id in payload")
		}
		if payload.Type != "rewards.claim.paid" || payload.Sequence != 11 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if payload.Attributes["unitId"] != "unit-1" {
			t.Fatalf("attributes = %+v", payload.Attributes)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("webhook was not delivered")
	}

	waitFor(t, time.Second, func() bool {
		statuses := subs.attemptStatuses()
		return len(statuses) == 1 && statuses[0] == "success"
	})
}

func TestWorkerRetriesThenDrops(t *testing.T) {
	var hits int
	var hitsMu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsMu.Lock()
		hits++
		hitsMu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	subs := newStubSubs(store.Subscription{
		ID:        "sub-1",
		URL:       srv.URL,
		Secret:    "hook-secret",
		EventType: "*",
		RateLimit: 60,
		Active:    true,
	})
	queue := openQueue(t, filepath.Join(t.TempDir(), "notify.db"))
	defer queue.Close()
	worker := NewWorker(subs, queue, nil, 2, time.Second)

	task := Task{
		Event:          node.Event{Sequence: 3, Type: "rewards.claim.paid"},
		SubscriptionID: "sub-1",
		EnqueuedAt:     time.Now(),
	}
	if err := queue.Enqueue(task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	// First attempt fails and schedules a retry one second out; the retry
	// exhausts maxAttempts and the task is dropped.
	waitFor(t, 5*time.Second, func() bool {
		statuses := subs.attemptStatuses()
		return len(statuses) == 2 && statuses[0] == "failed" && statuses[1] == "dropped"
	})
	hitsMu.Lock()
	defer hitsMu.Unlock()
	if hits != 2 {
		t.Fatalf("expected 2 delivery attempts, got %d", hits)
	}
}

func TestWorkerSkipsInactiveSubscription(t *testing.T) {
	subs := newStubSubs(store.Subscription{
		ID:        "sub-1",
		URL:       "http://localhost:0",
		Secret:    "hook-secret",
		EventType: "*",
		Active:    false,
	})
	queue := openQueue(t, filepath.Join(t.TempDir(), "notify.db"))
	defer queue.Close()
	worker := NewWorker(subs, queue, nil, 5, time.Second)

	worker.deliver(context.Background(), Task{
		Event:          node.Event{Sequence: 1, Type: "rewards.claim.paid"},
		SubscriptionID: "sub-1",
	})
	if statuses := subs.attemptStatuses(); len(statuses) != 0 {
		t.Fatalf("inactive subscription should not be attempted, got %v", statuses)
	}
}

func TestBackoffDurationCurve(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 6, want: 32 * time.Second},
		{attempt: 12, want: 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := backoffDuration(tc.attempt); got != tc.want {
			t.Fatalf("backoff(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestWorkerRateWindow(t *testing.T) {
	queue := openQueue(t, filepath.Join(t.TempDir(), "notify.db"))
	defer queue.Close()
	worker := NewWorker(newStubSubs(), queue, nil, 5, time.Second)

	now := time.Unix(1700000000, 0)
	if !worker.allow("sub-1", 2, now) {
		t.Fatalf("first call should pass")
	}
	if !worker.allow("sub-1", 2, now.Add(time.Second)) {
		t.Fatalf("second call should pass")
	}
	if worker.allow("sub-1", 2, now.Add(2*time.Second)) {
		t.Fatalf("third call should be throttled")
	}
	if !worker.allow("sub-1", 2, now.Add(61*time.Second)) {
		t.Fatalf("new window should reset the counter")
	}
}
