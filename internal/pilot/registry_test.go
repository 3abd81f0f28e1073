package pilot

import (
	"context"
	"testing"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

func newTestRegistry(timeout time.Duration) *Registry {
	adapter := store.NewMemoryStore()
	log := eventlog.New(eventlog.DefaultRegistry())
	return New(adapter, log, nil, timeout)
}

func TestRegisterAndGetByCallsign(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)
	ctx := context.Background()

	p, err := r.Register(ctx, "alpha-1", "coder", []Capability{{Name: "go", TriggerWords: []string{"refactor", "bug"}}}, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := r.GetByCallsign(ctx, "alpha-1")
	if err != nil {
		t.Fatalf("get by callsign: %v", err)
	}
	if got.PilotID != p.PilotID {
		t.Fatalf("expected %s, got %s", p.PilotID, got.PilotID)
	}
}

func TestRegisterRejectsLiveCallsignCollision(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)
	ctx := context.Background()

	if _, err := r.Register(ctx, "alpha-1", "coder", nil, 5); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := r.Register(ctx, "alpha-1", "coder", nil, 5)
	if ferr.KindOf(err) != ferr.Conflict {
		t.Fatalf("expected Conflict on live collision, got %v", err)
	}
}

func TestRegisterEvictsStaleCallsign(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)
	ctx := context.Background()

	fixedNow := time.Now()
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = time.Now }()

	first, err := r.Register(ctx, "alpha-1", "coder", nil, 5)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	nowFunc = func() time.Time { return fixedNow.Add(4 * time.Minute) }
	second, err := r.Register(ctx, "alpha-1", "coder", nil, 5)
	if err != nil {
		t.Fatalf("re-register after stale timeout: %v", err)
	}
	if second.PilotID == first.PilotID {
		t.Fatalf("expected a fresh pilot id for the re-registered callsign")
	}
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	r := newTestRegistry(time.Minute)
	ctx := context.Background()

	fixedNow := time.Now()
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = time.Now }()

	p, err := r.Register(ctx, "alpha-1", "coder", nil, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	nowFunc = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	if err := r.Heartbeat(ctx, p.PilotID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	refreshed, err := r.GetByCallsign(ctx, "alpha-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.IsOffline(refreshed) {
		t.Fatalf("pilot should not be offline right after heartbeat")
	}
}

func TestUpdateWorkloadRejectsOutOfRange(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)
	ctx := context.Background()

	p, err := r.Register(ctx, "alpha-1", "coder", nil, 3)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.UpdateWorkload(ctx, p.PilotID, 2); err != nil {
		t.Fatalf("valid workload update: %v", err)
	}
	err = r.UpdateWorkload(ctx, p.PilotID, 4)
	if ferr.KindOf(err) != ferr.InvalidInput {
		t.Fatalf("expected InvalidInput for workload exceeding max, got %v", err)
	}
}

func TestDeregisterRemovesFromListAndFreesCallsignForReuse(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)
	ctx := context.Background()

	p, err := r.Register(ctx, "alpha-1", "coder", nil, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Deregister(ctx, p.PilotID, "operator_request"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, listed := range list {
		if listed.PilotID == p.PilotID {
			t.Fatalf("deregistered pilot should not appear in List")
		}
	}
	if _, err := r.GetByCallsign(ctx, "alpha-1"); ferr.KindOf(err) != ferr.NotFound {
		t.Fatalf("expected NotFound after deregister, got %v", err)
	}
	reregistered, err := r.Register(ctx, "alpha-1", "coder", nil, 5)
	if err != nil {
		t.Fatalf("re-register freed callsign: %v", err)
	}
	if reregistered.PilotID == p.PilotID {
		t.Fatalf("expected a fresh pilot id")
	}
}

func TestFindByCapabilityMatchesOverlappingTriggerWords(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)
	ctx := context.Background()

	_, err := r.Register(ctx, "alpha-1", "coder", []Capability{{Name: "go", TriggerWords: []string{"refactor", "bug"}}}, 5)
	if err != nil {
		t.Fatalf("register alpha: %v", err)
	}
	_, err = r.Register(ctx, "bravo-1", "writer", []Capability{{Name: "docs", TriggerWords: []string{"readme"}}}, 5)
	if err != nil {
		t.Fatalf("register bravo: %v", err)
	}

	matches, err := r.FindByCapability(ctx, []string{"bug", "typo"})
	if err != nil {
		t.Fatalf("find by capability: %v", err)
	}
	if len(matches) != 1 || matches[0].Callsign != "alpha-1" {
		t.Fatalf("expected only alpha-1 to match, got %+v", matches)
	}
}

func TestFindByCapabilityExcludesFullWorkload(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)
	ctx := context.Background()

	p, err := r.Register(ctx, "alpha-1", "coder", []Capability{{Name: "go", TriggerWords: []string{"bug"}}}, 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.UpdateWorkload(ctx, p.PilotID, 1); err != nil {
		t.Fatalf("update workload to full: %v", err)
	}
	matches, err := r.FindByCapability(ctx, []string{"bug"})
	if err != nil {
		t.Fatalf("find by capability: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches for a pilot at full workload, got %+v", matches)
	}
}

func TestHealthAggregation(t *testing.T) {
	r := newTestRegistry(3 * time.Minute)

	allOK := Health{HeartbeatOK: true, MemoryOK: true, CPUOK: true, CommunicationOK: true, TaskProcessingOK: true}
	if got := allOK.Aggregate(false); got != HealthHealthy {
		t.Fatalf("expected healthy, got %s", got)
	}

	oneBad := allOK
	oneBad.MemoryOK = false
	if got := oneBad.Aggregate(false); got != HealthDegraded {
		t.Fatalf("expected degraded, got %s", got)
	}

	twoBad := oneBad
	twoBad.CPUOK = false
	if got := twoBad.Aggregate(false); got != HealthUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got)
	}

	if got := allOK.Aggregate(true); got != HealthOffline {
		t.Fatalf("expected offline to override all-true health, got %s", got)
	}

	_ = r
}
