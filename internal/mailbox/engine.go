package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// BroadcastMailboxID is the pseudo-mailbox every consumer must
// subscribe to explicitly to receive broadcast events (spec §4.3).
const BroadcastMailboxID = "broadcast"

// Engine is the cursor/mailbox engine. It owns no long-lived
// transaction: Poll's wait is a select over a signal channel and a
// timer, never a held store.Tx, per spec §5's "must not hold a
// transaction across a long-poll" rule. The wake mechanism —
// a per-stream channel set signaled on write, drained by waiters —
// is the same split the teacher's Frontier uses to let a bounded
// channel provide the wake while a separate structure (there the
// heap, here the event log's own sequence) provides delivery order.
type Engine struct {
	adapter store.Adapter
	log     *eventlog.Log

	mu      sync.Mutex
	waiters map[string][]chan struct{}
}

func New(adapter store.Adapter, log *eventlog.Log) *Engine {
	return &Engine{
		adapter: adapter,
		log:     log,
		waiters: make(map[string][]chan struct{}),
	}
}

func waitKey(streamType eventlog.StreamType, streamID string) string {
	return string(streamType) + ":" + streamID
}

func (e *Engine) subscribe(streamType eventlog.StreamType, streamID string) chan struct{} {
	ch := make(chan struct{}, 1)
	key := waitKey(streamType, streamID)
	e.mu.Lock()
	e.waiters[key] = append(e.waiters[key], ch)
	e.mu.Unlock()
	return ch
}

func (e *Engine) unsubscribe(streamType eventlog.StreamType, streamID string, target chan struct{}) {
	key := waitKey(streamType, streamID)
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.waiters[key]
	for i, ch := range list {
		if ch == target {
			e.waiters[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(e.waiters[key]) == 0 {
		delete(e.waiters, key)
	}
}

func (e *Engine) signal(streamType eventlog.StreamType, streamID string) {
	key := waitKey(streamType, streamID)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.waiters[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Advance records newPosition as consumerID's acknowledged position
// in the stream. Regression is a caller bug, reported as
// ferr.CursorRegression.
func (e *Engine) Advance(ctx context.Context, streamType eventlog.StreamType, streamID, consumerID string, newPosition int64) error {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := advance(ctx, tx, streamType, streamID, consumerID, newPosition); err != nil {
		return err
	}
	return tx.Commit()
}

// Position reports consumerID's current position in the stream
// without modifying it.
func (e *Engine) Position(ctx context.Context, streamType eventlog.StreamType, streamID, consumerID string) (int64, error) {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	return position(ctx, tx, streamType, streamID, consumerID)
}

// Post appends event to mailboxID's stream and wakes any pending
// Poll for it.
func (e *Engine) Post(ctx context.Context, mailboxID, eventType string, data map[string]any, opts ...PostOption) (eventlog.Event, error) {
	return e.post(ctx, mailboxID, eventType, data, opts...)
}

// Broadcast posts to the shared broadcast mailbox; it is the
// consumer's responsibility to have subscribed a cursor against it.
func (e *Engine) Broadcast(ctx context.Context, eventType string, data map[string]any, opts ...PostOption) (eventlog.Event, error) {
	return e.post(ctx, BroadcastMailboxID, eventType, data, opts...)
}

// PostOption customizes an appended mailbox event.
type PostOption func(*eventlog.AppendInput)

func WithCausationID(id string) PostOption {
	return func(in *eventlog.AppendInput) { in.CausationID = id }
}

func WithCorrelationID(id string) PostOption {
	return func(in *eventlog.AppendInput) { in.CorrelationID = id }
}

func (e *Engine) post(ctx context.Context, mailboxID, eventType string, data map[string]any, opts ...PostOption) (eventlog.Event, error) {
	input := eventlog.AppendInput{
		StreamType: eventlog.StreamMailbox,
		StreamID:   mailboxID,
		EventType:  eventType,
		Data:       data,
	}
	for _, opt := range opts {
		opt(&input)
	}

	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return eventlog.Event{}, err
	}
	defer tx.Rollback()

	event, err := e.log.Append(ctx, tx, input)
	if err != nil {
		return eventlog.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return eventlog.Event{}, err
	}
	e.signal(eventlog.StreamMailbox, mailboxID)
	return event, nil
}

// Poll returns up to maxEvents events after consumerID's cursor
// position in mailboxID's stream, blocking up to timeout for new
// events to arrive if none are pending yet. A zero-length, nil-error
// result means the timeout elapsed with nothing to deliver — not an
// error, per spec §4.3. Poll never advances the cursor; callers
// consume then call Advance once progress is durable, preserving
// at-least-once delivery across a crash between the two.
func (e *Engine) Poll(ctx context.Context, mailboxID, consumerID string, maxEvents int, timeout time.Duration) ([]eventlog.Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		ch := e.subscribe(eventlog.StreamMailbox, mailboxID)

		events, err := e.fetchPending(ctx, mailboxID, consumerID, maxEvents)
		if err != nil {
			e.unsubscribe(eventlog.StreamMailbox, mailboxID, ch)
			return nil, err
		}
		if len(events) > 0 {
			e.unsubscribe(eventlog.StreamMailbox, mailboxID, ch)
			return events, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			e.unsubscribe(eventlog.StreamMailbox, mailboxID, ch)
			return nil, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.unsubscribe(eventlog.StreamMailbox, mailboxID, ch)
			return nil, ctx.Err()
		case <-ch:
			timer.Stop()
			e.unsubscribe(eventlog.StreamMailbox, mailboxID, ch)
		case <-timer.C:
			e.unsubscribe(eventlog.StreamMailbox, mailboxID, ch)
			return nil, nil
		}
	}
}

func (e *Engine) fetchPending(ctx context.Context, mailboxID, consumerID string, maxEvents int) ([]eventlog.Event, error) {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	pos, err := position(ctx, tx, eventlog.StreamMailbox, mailboxID, consumerID)
	if err != nil {
		return nil, err
	}
	return e.log.QueryByStream(ctx, tx, eventlog.StreamMailbox, mailboxID, pos, maxEvents)
}
