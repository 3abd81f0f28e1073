package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

func newTestEngine() *Engine {
	adapter := store.NewMemoryStore()
	return New(adapter, eventlog.New(eventlog.DefaultRegistry()))
}

func TestAdvanceRejectsRegression(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if err := e.Advance(ctx, eventlog.StreamMailbox, "viper-1", "viper-1", 5); err != nil {
		t.Fatalf("advance: %v", err)
	}
	err := e.Advance(ctx, eventlog.StreamMailbox, "viper-1", "viper-1", 3)
	if ferr.KindOf(err) != ferr.CursorRegression {
		t.Fatalf("expected CursorRegression, got %v", err)
	}
}

func TestAdvanceAllowsEqualOrForwardPosition(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if err := e.Advance(ctx, eventlog.StreamMailbox, "viper-1", "viper-1", 5); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := e.Advance(ctx, eventlog.StreamMailbox, "viper-1", "viper-1", 5); err != nil {
		t.Fatalf("advance to same position should be allowed: %v", err)
	}
	if err := e.Advance(ctx, eventlog.StreamMailbox, "viper-1", "viper-1", 6); err != nil {
		t.Fatalf("advance forward: %v", err)
	}
	pos, err := e.Position(ctx, eventlog.StreamMailbox, "viper-1", "viper-1")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos != 6 {
		t.Fatalf("expected position 6, got %d", pos)
	}
}

func TestPostThenPollReturnsUndeliveredEvents(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if _, err := e.Post(ctx, "viper-1", "task_assignment", map[string]any{"work_order_id": "wo-1"}); err != nil {
		t.Fatalf("post: %v", err)
	}

	events, err := e.Poll(ctx, "viper-1", "viper-1", 10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != "task_assignment" {
		t.Fatalf("unexpected event type %q", events[0].EventType)
	}
}

func TestPollRedeliversUntilAdvanced(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	_, _ = e.Post(ctx, "viper-1", "task_assignment", map[string]any{"work_order_id": "wo-1"})

	first, err := e.Poll(ctx, "viper-1", "viper-1", 10, 5*time.Millisecond)
	if err != nil || len(first) != 1 {
		t.Fatalf("first poll: events=%v err=%v", first, err)
	}

	// Without Advance, at-least-once semantics mean the event is still
	// pending for this consumer.
	second, err := e.Poll(ctx, "viper-1", "viper-1", 10, 5*time.Millisecond)
	if err != nil || len(second) != 1 {
		t.Fatalf("second poll should redeliver: events=%v err=%v", second, err)
	}

	if err := e.Advance(ctx, eventlog.StreamMailbox, "viper-1", "viper-1", second[0].Sequence); err != nil {
		t.Fatalf("advance: %v", err)
	}

	third, err := e.Poll(ctx, "viper-1", "viper-1", 10, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("third poll: %v", err)
	}
	if len(third) != 0 {
		t.Fatalf("expected no pending events after advance, got %v", third)
	}
}

func TestPollWakesOnPost(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	done := make(chan []eventlog.Event, 1)
	go func() {
		events, err := e.Poll(ctx, "viper-1", "viper-1", 10, 2*time.Second)
		if err != nil {
			t.Error(err)
			return
		}
		done <- events
	}()

	// Give the poller time to register as a waiter before posting.
	time.Sleep(20 * time.Millisecond)
	if _, err := e.Post(ctx, "viper-1", "task_assignment", map[string]any{"work_order_id": "wo-1"}); err != nil {
		t.Fatalf("post: %v", err)
	}

	select {
	case events := <-done:
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not wake within timeout")
	}
}

func TestPollTimesOutWithNoEvents(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	events, err := e.Poll(ctx, "viper-1", "viper-1", 10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if events != nil {
		t.Fatalf("expected nil/empty result on timeout, got %v", events)
	}
}

func TestBroadcastRequiresExplicitSubscription(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if _, err := e.Broadcast(ctx, "context_broadcast", map[string]any{"note": "standdown"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	// A consumer that never subscribed to the broadcast stream still
	// has a valid (zero) cursor position and will see the event on
	// its first poll — "explicit subscription" means the consumer
	// must choose to poll this stream_id, not that delivery is
	// gated by a separate subscribe call.
	events, err := e.Poll(ctx, BroadcastMailboxID, "viper-2", 10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("poll broadcast: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected broadcast event visible to new consumer, got %d", len(events))
	}
}
