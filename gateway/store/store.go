// Package store persists the gateway's idempotency keys, audit trail and
// webhook subscriptions in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrIdempotencyMismatch is returned when a key is reused with a
	// different payload.
	ErrIdempotencyMismatch = errors.New("idempotency key reuse with different request body")
	// ErrSubscriptionNotFound is returned for lookups of unknown webhook
	// subscription ids.
	ErrSubscriptionNotFound = errors.New("webhook subscription not found")
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
            subject TEXT NOT NULL,
            idempotency_key TEXT NOT NULL,
            request_hash TEXT NOT NULL,
            response_status INTEGER NOT NULL,
            response_body BLOB NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY(subject, idempotency_key)
        );`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            request_id TEXT NOT NULL,
            occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            subject TEXT,
            method TEXT NOT NULL,
            path TEXT NOT NULL,
            request_body BLOB,
            response_status INTEGER,
            response_body BLOB
        );`,
		`CREATE TABLE IF NOT EXISTS webhook_subscriptions (
            id TEXT PRIMARY KEY,
            subject TEXT NOT NULL,
            url TEXT NOT NULL,
            secret TEXT NOT NULL,
            event_type TEXT NOT NULL,
            rate_limit INTEGER NOT NULL DEFAULT 60,
            active INTEGER NOT NULL DEFAULT 1,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS delivery_attempts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            subscription_id TEXT NOT NULL,
            event_sequence INTEGER NOT NULL,
            attempt INTEGER NOT NULL,
            status TEXT NOT NULL,
            error TEXT,
            next_attempt TIMESTAMP,
            created_at TIMESTAMP NOT NULL
        );`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StoredResponse is a cached response for an idempotency key.
type StoredResponse struct {
	Status int
	Body   []byte
}

func (s *Store) LookupIdempotency(ctx context.Context, subject, key, requestHash string) (*StoredResponse, error) {
	const query = `SELECT response_status, response_body, request_hash FROM idempotency_keys WHERE subject = ? AND idempotency_key = ?`
	row := s.db.QueryRowContext(ctx, query, subject, key)
	var status int
	var body []byte
	var storedHash string
	err := row.Scan(&status, &body, &storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if storedHash != requestHash {
		return nil, ErrIdempotencyMismatch
	}
	return &StoredResponse{Status: status, Body: body}, nil
}

func (s *Store) SaveIdempotency(ctx context.Context, subject, key, requestHash string, status int, body []byte) error {
	const stmt = `INSERT OR REPLACE INTO idempotency_keys(subject, idempotency_key, request_hash, response_status, response_body, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, subject, key, requestHash, status, body, time.Now().UTC())
	return err
}

// AuditEntry is one audit log row.
type AuditEntry struct {
	RequestID      string
	Subject        string
	Method         string
	Path           string
	RequestBody    []byte
	ResponseStatus int
	ResponseBody   []byte
	Timestamp      time.Time
}

func (s *Store) InsertAuditLog(ctx context.Context, entry AuditEntry) error {
	const stmt = `INSERT INTO audit_log(request_id, subject, method, path, request_body, response_status, response_body, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, entry.RequestID, entry.Subject, entry.Method, entry.Path, entry.RequestBody, entry.ResponseStatus, entry.ResponseBody, entry.Timestamp)
	return err
}

// Subscription describes a registered webhook endpoint. EventType may be a
// concrete node event type or "*" to receive everything.
type Subscription struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject,omitempty"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	EventType string    `json:"eventType"`
	RateLimit int       `json:"rateLimit"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateSubscription persists a new subscription and assigns its id.
func (s *Store) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()
	if sub.RateLimit <= 0 {
		sub.RateLimit = 60
	}
	if strings.TrimSpace(sub.EventType) == "" {
		sub.EventType = "*"
	}
	const stmt = `INSERT INTO webhook_subscriptions(id, subject, url, secret, event_type, rate_limit, active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	active := 0
	if sub.Active {
		active = 1
	}
	if _, err := s.db.ExecContext(ctx, stmt, sub.ID, sub.Subject, sub.URL, sub.Secret, sub.EventType, sub.RateLimit, active, sub.CreatedAt); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// GetSubscription fetches a subscription by id.
func (s *Store) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	const query = `SELECT id, subject, url, secret, event_type, rate_limit, active, created_at FROM webhook_subscriptions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return sub, err
}

// ListSubscriptions returns the subject's subscriptions, newest first.
func (s *Store) ListSubscriptions(ctx context.Context, subject string) ([]Subscription, error) {
	const query = `SELECT id, subject, url, secret, event_type, rate_limit, active, created_at FROM webhook_subscriptions WHERE subject = ? ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// SubscriptionsForEvent returns active subscriptions matching the event type,
// including wildcard subscribers.
func (s *Store) SubscriptionsForEvent(ctx context.Context, eventType string) ([]Subscription, error) {
	const query = `SELECT id, subject, url, secret, event_type, rate_limit, active, created_at FROM webhook_subscriptions WHERE active = 1 AND (event_type = ? OR event_type = '*')`
	rows, err := s.db.QueryContext(ctx, query, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// DeleteSubscription removes a subscription by id.
func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	const stmt = `DELETE FROM webhook_subscriptions WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// DeliveryAttempt captures one webhook delivery try.
type DeliveryAttempt struct {
	SubscriptionID string
	EventSequence  uint64
	Attempt        int
	Status         string
	Error          string
	NextAttempt    time.Time
	CreatedAt      time.Time
}

func (s *Store) InsertDeliveryAttempt(ctx context.Context, attempt DeliveryAttempt) error {
	const stmt = `INSERT INTO delivery_attempts(subscription_id, event_sequence, attempt, status, error, next_attempt, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, attempt.SubscriptionID, attempt.EventSequence, attempt.Attempt, attempt.Status, attempt.Error, nullTime(attempt.NextAttempt), attempt.CreatedAt)
	return err
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var sub Subscription
	var active int
	if err := row.Scan(&sub.ID, &sub.Subject, &sub.URL, &sub.Secret, &sub.EventType, &sub.RateLimit, &active, &sub.CreatedAt); err != nil {
		return Subscription{}, err
	}
	sub.Active = active == 1
	if sub.RateLimit <= 0 {
		sub.RateLimit = 60
	}
	return sub, nil
}
