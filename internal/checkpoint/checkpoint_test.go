package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/mailbox"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
	"github.com/v1truv1us/fleettools-sub010/internal/pilot"
	"github.com/v1truv1us/fleettools-sub010/internal/reservation"
	"github.com/v1truv1us/fleettools-sub010/internal/scheduler"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

func newTestManager() (*Manager, *orchestrator.Manager, *reservation.Manager, *pilot.Registry) {
	adapter := store.NewMemoryStore()
	log := eventlog.New(eventlog.DefaultRegistry())
	pilots := pilot.New(adapter, log, nil, 3*time.Minute)
	sched := scheduler.New(adapter, log, pilots, nil)
	orch := orchestrator.New(adapter, log, sched, nil)
	res := reservation.New(adapter, log, nil)
	mailboxes := mailbox.New(adapter, log)
	return New(adapter, log, orch, res, pilots, mailboxes), orch, res, pilots
}

func TestCreateSnapshotsSortiesReservationsAndLocks(t *testing.T) {
	m, orch, res, pilots := newTestManager()
	ctx := context.Background()

	if _, err := pilots.Register(ctx, "viper-1", "backend", []pilot.Capability{{Name: "api", TriggerWords: []string{"api"}}}, 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	msn, _, err := orch.CreateMission(ctx, "ship it", "feature", "add the thing", orchestrator.PriorityHigh, []string{"backend"}, "implement")
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	if _, err := res.AcquireReservation(ctx, "/src/main.go", "viper-1", true, time.Minute, "editing", 0); err != nil {
		t.Fatalf("acquire reservation: %v", err)
	}
	if _, err := res.AcquireLock(ctx, "workspace", "viper-1", time.Minute, 0); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	cp, err := m.Create(ctx, msn.MissionID, "manual", RecoveryContext{MissionSummary: "making progress"}, nil, "", 0)
	if err != nil {
		t.Fatalf("create checkpoint: %v", err)
	}
	if len(cp.Sorties) != 1 {
		t.Fatalf("expected one sortie snapshotted, got %d", len(cp.Sorties))
	}
	if len(cp.Reservations) != 1 {
		t.Fatalf("expected one reservation snapshotted, got %d", len(cp.Reservations))
	}
	if len(cp.Locks) != 1 {
		t.Fatalf("expected one lock snapshotted, got %d", len(cp.Locks))
	}
	if cp.IdempotencyKey == "" {
		t.Fatalf("expected a non-empty idempotency key")
	}
}

func TestCreateIsIdempotentForUnchangedState(t *testing.T) {
	m, orch, _, _ := newTestManager()
	ctx := context.Background()

	msn, _, err := orch.CreateMission(ctx, "ship it", "feature", "add the thing", orchestrator.PriorityHigh, []string{"backend"}, "implement")
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}

	first, err := m.Create(ctx, msn.MissionID, "manual", RecoveryContext{MissionSummary: "x"}, nil, "", 0)
	if err != nil {
		t.Fatalf("first checkpoint: %v", err)
	}
	second, err := m.Create(ctx, msn.MissionID, "manual", RecoveryContext{MissionSummary: "x"}, nil, "", 0)
	if err != nil {
		t.Fatalf("second checkpoint: %v", err)
	}
	if first.CheckpointID != second.CheckpointID {
		t.Fatalf("expected identical state to dedup to the same checkpoint, got %s and %s", first.CheckpointID, second.CheckpointID)
	}
}

func TestResumeRejectsAlreadyConsumedCheckpoint(t *testing.T) {
	m, orch, _, _ := newTestManager()
	ctx := context.Background()

	msn, _, err := orch.CreateMission(ctx, "ship it", "feature", "add the thing", orchestrator.PriorityHigh, []string{"backend"}, "implement")
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	if err := orch.StartMission(ctx, msn.MissionID); err != nil {
		t.Fatalf("start mission: %v", err)
	}
	cp, err := m.Create(ctx, msn.MissionID, "manual", RecoveryContext{MissionSummary: "x"}, nil, "", 0)
	if err != nil {
		t.Fatalf("create checkpoint: %v", err)
	}

	if _, err := m.Resume(ctx, cp.CheckpointID, false); err != nil {
		t.Fatalf("first resume: %v", err)
	}
	if _, err := m.Resume(ctx, cp.CheckpointID, false); ferr.KindOf(err) != ferr.PreconditionFailed {
		t.Fatalf("expected PreconditionFailed resuming an already-consumed checkpoint, got %v", err)
	}
}

func TestResumeDryRunPerformsNoSideEffects(t *testing.T) {
	m, orch, _, _ := newTestManager()
	ctx := context.Background()

	msn, _, err := orch.CreateMission(ctx, "ship it", "feature", "add the thing", orchestrator.PriorityHigh, []string{"backend"}, "implement")
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	cp, err := m.Create(ctx, msn.MissionID, "manual", RecoveryContext{MissionSummary: "x"}, nil, "", 0)
	if err != nil {
		t.Fatalf("create checkpoint: %v", err)
	}

	plan, err := m.Resume(ctx, cp.CheckpointID, true)
	if err != nil {
		t.Fatalf("dry-run resume: %v", err)
	}
	if plan.SortiesToRestore != 1 {
		t.Fatalf("expected dry-run plan to report one sortie, got %d", plan.SortiesToRestore)
	}

	got, err := m.Get(ctx, cp.CheckpointID, "")
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if got.ConsumedAt != nil {
		t.Fatalf("dry-run must not mark the checkpoint consumed")
	}
}

func TestIdempotencyKeyIsDeterministicForSameSnapshot(t *testing.T) {
	sorties := []orchestrator.Sortie{{SortieID: "srt-a", Status: orchestrator.SortieOpen}}
	a, err := computeIdempotencyKey("msn-x", sorties, []string{"a"}, []string{"b"})
	if err != nil {
		t.Fatalf("compute key: %v", err)
	}
	b, err := computeIdempotencyKey("msn-x", sorties, []string{"a"}, []string{"b"})
	if err != nil {
		t.Fatalf("compute key: %v", err)
	}
	if a != b {
		t.Fatalf("expected deterministic idempotency key, got %s and %s", a, b)
	}
}
