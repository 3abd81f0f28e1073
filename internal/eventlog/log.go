package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

const (
	tableEvents       = "events"
	tableEventsByType = "events_by_type"

	// globalTypeStream is the NextSequence stream used purely to order
	// the events_by_type secondary index; it carries no domain meaning
	// and is never surfaced to callers.
	globalTypeStream = "eventlog_global"
)

// Log is the append-only event store. All methods take an open
// transaction so callers can append alongside their own domain writes
// (e.g. the orchestrator creating a work order row and appending
// work_order_created atomically), per spec §5's "single request, one
// transaction" guarantee.
type Log struct {
	registry *Registry
}

func New(registry *Registry) *Log {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Log{registry: registry}
}

func streamKey(streamType StreamType, streamID string, sequence int64) string {
	return fmt.Sprintf("%s:%s:%020d", streamType, streamID, sequence)
}

func streamPrefix(streamType StreamType, streamID string) string {
	return fmt.Sprintf("%s:%s:", streamType, streamID)
}

// Append validates input against the schema registry, allocates the
// next per-stream sequence number, and persists the event. Concurrent
// appends to the same stream under the same store serialize through
// Tx.NextSequence, so sequences are gap-free and strictly increasing.
func (l *Log) Append(ctx context.Context, tx store.Tx, input AppendInput) (Event, error) {
	if err := l.registry.Validate(input.EventType, input.Data); err != nil {
		return Event{}, err
	}
	if input.StreamID == "" {
		return Event{}, ferr.New(ferr.InvalidInput, "stream_id is required")
	}

	sequence, err := tx.NextSequence(ctx, string(input.StreamType), input.StreamID)
	if err != nil {
		return Event{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	event := Event{
		EventID:       ids.Event(),
		StreamType:    input.StreamType,
		StreamID:      input.StreamID,
		Sequence:      sequence,
		EventType:     input.EventType,
		Data:          input.Data,
		OccurredAt:    occurredAt,
		RecordedAt:    time.Now().UTC(),
		CausationID:   input.CausationID,
		CorrelationID: input.CorrelationID,
		Metadata:      input.Metadata,
		SchemaVersion: store.SchemaVersion,
	}

	if err := tx.Put(ctx, tableEvents, streamKey(input.StreamType, input.StreamID, sequence), sequence, event); err != nil {
		return Event{}, err
	}

	globalSeq, err := tx.NextSequence(ctx, globalTypeStream, "by_type")
	if err != nil {
		return Event{}, err
	}
	typeKey := fmt.Sprintf("%s:%020d", input.EventType, globalSeq)
	if err := tx.Put(ctx, tableEventsByType, typeKey, globalSeq, event); err != nil {
		return Event{}, err
	}

	return event, nil
}

// QueryByStream returns events for (streamType, streamID) in sequence
// order, optionally after a given sequence and capped at limit (zero
// means unlimited).
func (l *Log) QueryByStream(ctx context.Context, tx store.Tx, streamType StreamType, streamID string, afterSequence int64, limit int) ([]Event, error) {
	rows, err := tx.Range(ctx, tableEvents, store.RangeOptions{
		KeyPrefix:    streamPrefix(streamType, streamID),
		AfterSortKey: afterSequence,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// GetLatest returns the highest-sequence event for the stream, or a
// NotFound error if the stream has no events.
func (l *Log) GetLatest(ctx context.Context, tx store.Tx, streamType StreamType, streamID string) (Event, error) {
	rows, err := tx.Range(ctx, tableEvents, store.RangeOptions{
		KeyPrefix:  streamPrefix(streamType, streamID),
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return Event{}, err
	}
	if len(rows) == 0 {
		return Event{}, ferr.New(ferr.NotFound, fmt.Sprintf("no events for stream %s/%s", streamType, streamID))
	}
	events, err := decodeRows(rows)
	if err != nil {
		return Event{}, err
	}
	return events[0], nil
}

// TypeFilter narrows QueryByType results beyond event_type.
type TypeFilter struct {
	StreamType StreamType // empty means any
	Limit      int        // zero means unlimited
}

// QueryByType returns events of the given type across every stream,
// in append order, via the events_by_type secondary index.
func (l *Log) QueryByType(ctx context.Context, tx store.Tx, eventType string, filter TypeFilter) ([]Event, error) {
	// The secondary index is unbounded per type, so when a StreamType
	// filter narrows results we over-fetch and trim rather than push
	// the filter into Range, which only matches on key prefix/sort key.
	fetchLimit := filter.Limit
	if filter.StreamType != "" && fetchLimit > 0 {
		fetchLimit = 0
	}
	rows, err := tx.Range(ctx, tableEventsByType, store.RangeOptions{
		KeyPrefix: eventType + ":",
		Limit:     fetchLimit,
	})
	if err != nil {
		return nil, err
	}
	events, err := decodeRows(rows)
	if err != nil {
		return nil, err
	}
	if filter.StreamType == "" {
		return events, nil
	}
	var out []Event
	for _, e := range events {
		if e.StreamType == filter.StreamType {
			out = append(out, e)
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func decodeRows(rows []store.Row) ([]Event, error) {
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		var e Event
		if err := json.Unmarshal(row.Value, &e); err != nil {
			return nil, ferr.Wrap(ferr.Internal, "decode event row", err)
		}
		out = append(out, e)
	}
	return out, nil
}
