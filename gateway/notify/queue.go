// Package notify turns node events into signed webhook deliveries. A watcher
// polls curiod with a persisted cursor, a bbolt queue buffers tasks across
// restarts, and a worker fans tasks out to the stored subscriptions.
package notify

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"curiochain/gateway/node"
)

var (
	bucketPending = []byte("pending")
	bucketMeta    = []byte("meta")
	keyCursor     = []byte("cursor")
)

// Task is one queued unit of webhook work. A task without a SubscriptionID is
// a fan-out marker: the worker expands it into one delivery task per matching
// subscription. The subscription is re-read at delivery time so deactivations
// and secret changes take effect for queued work.
type Task struct {
	Event          node.Event `json:"event"`
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	Attempt        int        `json:"attempt"`
	NotBefore      time.Time  `json:"notBefore,omitempty"`
	EnqueuedAt     time.Time  `json:"enqueuedAt"`
}

// Queue is a persistent FIFO of webhook tasks backed by bbolt.
type Queue struct {
	db *bbolt.DB
}

func OpenQueue(path string) (*Queue, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPending); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Cursor returns the sequence of the last node event handed to the queue.
func (q *Queue) Cursor() (uint64, error) {
	var cursor uint64
	err := q.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keyCursor)
		if len(raw) == 8 {
			cursor = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	return cursor, err
}

// SetCursor records the last node event sequence pulled from the node.
func (q *Queue) SetCursor(seq uint64) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq)
		return tx.Bucket(bucketMeta).Put(keyCursor, buf)
	})
}

// Enqueue appends a task to the pending queue.
func (q *Queue) Enqueue(task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return q.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, payload)
	})
}

// Dequeue removes and returns the oldest task, blocking until one is
// available or the context is cancelled. When the head task carries a future
// NotBefore the call waits it out before returning the task.
func (q *Queue) Dequeue(ctx context.Context) (Task, bool) {
	for {
		task, found, err := q.pop()
		if err == nil && found {
			if delay := time.Until(task.NotBefore); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return Task{}, false
				case <-timer.C:
				}
			}
			return task, true
		}
		select {
		case <-ctx.Done():
			return Task{}, false
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (q *Queue) pop() (Task, bool, error) {
	var task Task
	found := false
	err := q.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		key, value := bucket.Cursor().First()
		if key == nil {
			return nil
		}
		if err := json.Unmarshal(value, &task); err != nil {
			// Drop undecodable entries rather than wedging the queue.
			return bucket.Delete(key)
		}
		found = true
		return bucket.Delete(key)
	})
	return task, found, err
}

// Len reports the number of pending tasks.
func (q *Queue) Len() (int, error) {
	count := 0
	err := q.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketPending).Stats().KeyN
		return nil
	})
	return count, err
}
