package eventlog

import (
	"context"
	"testing"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

func newTestLog(t *testing.T) (*Log, store.Adapter) {
	t.Helper()
	return New(DefaultRegistry()), store.NewMemoryStore()
}

func TestAppendAllocatesGapFreeSequencePerStream(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()

	tx, err := adapter.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	var sequences []int64
	for i := 0; i < 4; i++ {
		event, err := log.Append(ctx, tx, AppendInput{
			StreamType: StreamMission,
			StreamID:   "msn-1",
			EventType:  "mission_created",
			Data:       map[string]any{"mission_id": "msn-1"},
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		sequences = append(sequences, event.Sequence)
	}
	for i, seq := range sequences {
		if seq != int64(i+1) {
			t.Fatalf("expected gap-free sequence starting at 1, got %v", sequences)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAppendRejectsUnregisteredEventType(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()
	tx, _ := adapter.Begin(ctx)
	defer tx.Rollback()

	_, err := log.Append(ctx, tx, AppendInput{
		StreamType: StreamMission,
		StreamID:   "msn-1",
		EventType:  "totally_unknown_event",
		Data:       map[string]any{},
	})
	if ferr.KindOf(err) != ferr.InvalidInput {
		t.Fatalf("expected InvalidInput for unregistered event type, got %v", err)
	}
}

func TestAppendRejectsMissingRequiredField(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()
	tx, _ := adapter.Begin(ctx)
	defer tx.Rollback()

	_, err := log.Append(ctx, tx, AppendInput{
		StreamType: StreamPilot,
		StreamID:   "plt-1",
		EventType:  "pilot_registered",
		Data:       map[string]any{"pilot_id": "plt-1"}, // missing callsign
	})
	if ferr.KindOf(err) != ferr.InvalidInput {
		t.Fatalf("expected InvalidInput for missing required field, got %v", err)
	}
}

func TestQueryByStreamOrderingAndAfterSequence(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()
	tx, _ := adapter.Begin(ctx)
	defer tx.Rollback()

	for i := 0; i < 3; i++ {
		if _, err := log.Append(ctx, tx, AppendInput{
			StreamType: StreamWorkOrder,
			StreamID:   "wo-1",
			EventType:  "work_order_created",
			Data:       map[string]any{"work_order_id": "wo-1"},
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := log.QueryByStream(ctx, tx, StreamWorkOrder, "wo-1", 0, 0)
	if err != nil {
		t.Fatalf("query by stream: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Sequence != int64(i+1) {
			t.Fatalf("expected strict sequence order, got %+v", events)
		}
	}

	after, err := log.QueryByStream(ctx, tx, StreamWorkOrder, "wo-1", 1, 0)
	if err != nil {
		t.Fatalf("query by stream after: %v", err)
	}
	if len(after) != 2 || after[0].Sequence != 2 {
		t.Fatalf("expected events after sequence 1, got %+v", after)
	}
}

func TestQueryByStreamDoesNotLeakOtherStreams(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()
	tx, _ := adapter.Begin(ctx)
	defer tx.Rollback()

	_, _ = log.Append(ctx, tx, AppendInput{StreamType: StreamWorkOrder, StreamID: "wo-1", EventType: "work_order_created", Data: map[string]any{"work_order_id": "wo-1"}})
	_, _ = log.Append(ctx, tx, AppendInput{StreamType: StreamWorkOrder, StreamID: "wo-2", EventType: "work_order_created", Data: map[string]any{"work_order_id": "wo-2"}})

	events, err := log.QueryByStream(ctx, tx, StreamWorkOrder, "wo-1", 0, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for wo-1, got %d", len(events))
	}
}

func TestGetLatest(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()
	tx, _ := adapter.Begin(ctx)
	defer tx.Rollback()

	for i := 0; i < 3; i++ {
		_, _ = log.Append(ctx, tx, AppendInput{
			StreamType: StreamMission, StreamID: "msn-1",
			EventType: "mission_created", Data: map[string]any{"mission_id": "msn-1"},
		})
	}
	latest, err := log.GetLatest(ctx, tx, StreamMission, "msn-1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.Sequence != 3 {
		t.Fatalf("expected latest sequence 3, got %d", latest.Sequence)
	}
}

func TestGetLatestEmptyStreamReturnsNotFound(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()
	tx, _ := adapter.Begin(ctx)
	defer tx.Rollback()

	_, err := log.GetLatest(ctx, tx, StreamMission, "msn-404")
	if ferr.KindOf(err) != ferr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestQueryByTypeAcrossStreams(t *testing.T) {
	log, adapter := newTestLog(t)
	ctx := context.Background()
	tx, _ := adapter.Begin(ctx)
	defer tx.Rollback()

	_, _ = log.Append(ctx, tx, AppendInput{StreamType: StreamMission, StreamID: "msn-1", EventType: "mission_completed", Data: map[string]any{"mission_id": "msn-1"}})
	_, _ = log.Append(ctx, tx, AppendInput{StreamType: StreamMission, StreamID: "msn-2", EventType: "mission_completed", Data: map[string]any{"mission_id": "msn-2"}})
	_, _ = log.Append(ctx, tx, AppendInput{StreamType: StreamMission, StreamID: "msn-3", EventType: "mission_created", Data: map[string]any{"mission_id": "msn-3"}})

	events, err := log.QueryByType(ctx, tx, "mission_completed", TypeFilter{})
	if err != nil {
		t.Fatalf("query by type: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 mission_completed events, got %d", len(events))
	}
}
