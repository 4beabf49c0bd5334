package notify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"curiochain/gateway/node"
)

type stubSource struct {
	events []node.Event
	calls  []uint64
}

func (s *stubSource) FetchEvents(_ context.Context, after uint64, _ int) ([]node.Event, error) {
	s.calls = append(s.calls, after)
	var out []node.Event
	for _, evt := range s.events {
		if evt.Sequence > after {
			out = append(out, evt)
		}
	}
	return out, nil
}

func TestWatcherEnqueuesAndAdvancesCursor(t *testing.T) {
	source := &stubSource{events: []node.Event{
		{Sequence: 1, Type: "registry.content.published"},
		{Sequence: 2, Type: "registry.unit.minted"},
		{Sequence: 3, Type: "rewards.claim.paid"},
	}}
	queue := openQueue(t, filepath.Join(t.TempDir(), "notify.db"))
	defer queue.Close()
	watcher := NewWatcher(source, queue, nil, time.Second, 100)

	last := watcher.poll(context.Background(), 0)
	if last != 3 {
		t.Fatalf("cursor after poll = %d, want 3", last)
	}
	pending, err := queue.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if pending != 3 {
		t.Fatalf("expected 3 fan-out tasks, got %d", pending)
	}
	cursor, err := queue.Cursor()
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != 3 {
		t.Fatalf("persisted cursor = %d, want 3", cursor)
	}

	// A second poll from the cursor sees nothing new.
	last = watcher.poll(context.Background(), last)
	if last != 3 {
		t.Fatalf("cursor advanced without new events: %d", last)
	}
	pending, _ = queue.Len()
	if pending != 3 {
		t.Fatalf("no new tasks expected, got %d", pending)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task, ok := queue.Dequeue(ctx)
	if !ok || task.SubscriptionID != "" {
		t.Fatalf("expected fan-out task, got ok=%v task=%+v", ok, task)
	}
	if task.Event.Sequence != 1 {
		t.Fatalf("tasks should dequeue oldest first, got %d", task.Event.Sequence)
	}
}
