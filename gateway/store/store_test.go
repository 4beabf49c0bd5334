package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "gateway.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestIdempotencyRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	cached, err := s.LookupIdempotency(ctx, "studio-backend", "key-1", "hash-a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if cached != nil {
		t.Fatalf("expected miss before save, got %+v", cached)
	}

	if err := s.SaveIdempotency(ctx, "studio-backend", "key-1", "hash-a", 201, []byte(`{"id":"content-1"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	cached, err = s.LookupIdempotency(ctx, "studio-backend", "key-1", "hash-a")
	if err != nil {
		t.Fatalf("lookup after save: %v", err)
	}
	if cached == nil || cached.Status != 201 || string(cached.Body) != `{"id":"content-1"}` {
		t.Fatalf("unexpected cached response: %+v", cached)
	}
}

func TestIdempotencyMismatch(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.SaveIdempotency(ctx, "studio-backend", "key-1", "hash-a", 201, []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.LookupIdempotency(ctx, "studio-backend", "key-1", "hash-b"); !errors.Is(err, ErrIdempotencyMismatch) {
		t.Fatalf("expected ErrIdempotencyMismatch, got %v", err)
	}
}

func TestIdempotencyScopedBySubject(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.SaveIdempotency(ctx, "studio-backend", "key-1", "hash-a", 201, []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	cached, err := s.LookupIdempotency(ctx, "another-service", "key-1", "hash-a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if cached != nil {
		t.Fatalf("keys should not leak across subjects, got %+v", cached)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created, err := s.CreateSubscription(ctx, Subscription{
		Subject:   "studio-backend",
		URL:       "https://hooks.example.com/curio",
		Secret:    "hook-secret",
		EventType: "rewards.claim.paid",
		Active:    true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated subscription id")
	}
	if created.RateLimit != 60 {
		t.Fatalf("rate limit default = %d, want 60", created.RateLimit)
	}

	fetched, err := s.GetSubscription(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.URL != created.URL || fetched.Secret != "hook-secret" || !fetched.Active {
		t.Fatalf("unexpected subscription: %+v", fetched)
	}

	if err := s.DeleteSubscription(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSubscription(ctx, created.ID); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := s.DeleteSubscription(ctx, created.ID); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestSubscriptionsForEvent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	mustCreate := func(eventType string, active bool) Subscription {
		sub, err := s.CreateSubscription(ctx, Subscription{
			Subject:   "studio-backend",
			URL:       "https://hooks.example.com/" + eventType,
			Secret:    "hook-secret",
			EventType: eventType,
			Active:    active,
		})
		if err != nil {
			t.Fatalf("create %s: %v", eventType, err)
		}
		return sub
	}

	claims := mustCreate("rewards.claim.paid", true)
	wildcard := mustCreate("*", true)
	mustCreate("registry.unit.minted", true)
	mustCreate("rewards.claim.paid", false)

	subs, err := s.SubscriptionsForEvent(ctx, "rewards.claim.paid")
	if err != nil {
		t.Fatalf("list for event: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected exact match plus wildcard, got %d", len(subs))
	}
	ids := map[string]bool{}
	for _, sub := range subs {
		ids[sub.ID] = true
	}
	if !ids[claims.ID] || !ids[wildcard.ID] {
		t.Fatalf("expected %s and %s, got %+v", claims.ID, wildcard.ID, ids)
	}
}
