package notify

import (
	"context"
	"log/slog"
	"time"

	"curiochain/gateway/node"
)

// EventSource is the slice of the node client the watcher needs.
type EventSource interface {
	FetchEvents(ctx context.Context, after uint64, limit int) ([]node.Event, error)
}

// Watcher polls the node for committed events and feeds them into the queue.
// The cursor is persisted alongside the queue, so a restarted gateway resumes
// where it left off instead of replaying the node's whole retained window.
type Watcher struct {
	source       EventSource
	queue        *Queue
	logger       *slog.Logger
	pollInterval time.Duration
	fetchLimit   int
	nowFn        func() time.Time
}

func NewWatcher(source EventSource, queue *Queue, logger *slog.Logger, pollInterval time.Duration, fetchLimit int) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if fetchLimit <= 0 {
		fetchLimit = 100
	}
	return &Watcher{
		source:       source,
		queue:        queue,
		logger:       logger,
		pollInterval: pollInterval,
		fetchLimit:   fetchLimit,
		nowFn:        time.Now,
	}
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if w.source == nil || w.queue == nil {
		return
	}
	after, err := w.queue.Cursor()
	if err != nil {
		w.logger.Warn("load event cursor failed", "err", err)
	}
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			after = w.poll(ctx, after)
		}
	}
}

func (w *Watcher) poll(ctx context.Context, after uint64) uint64 {
	events, err := w.source.FetchEvents(ctx, after, w.fetchLimit)
	if err != nil {
		w.logger.Warn("fetch events failed", "after", after, "err", err)
		return after
	}
	if len(events) == 0 {
		return after
	}
	now := w.nowFn().UTC()
	last := after
	for _, evt := range events {
		if evt.Sequence <= last {
			continue
		}
		task := Task{Event: evt, EnqueuedAt: now}
		if err := w.queue.Enqueue(task); err != nil {
			w.logger.Error("enqueue event failed", "sequence", evt.Sequence, "err", err)
			break
		}
		last = evt.Sequence
	}
	if last != after {
		if err := w.queue.SetCursor(last); err != nil {
			w.logger.Error("persist event cursor failed", "sequence", last, "err", err)
		}
	}
	return last
}
