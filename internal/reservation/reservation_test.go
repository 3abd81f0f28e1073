package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

func newTestManager() *Manager {
	adapter := store.NewMemoryStore()
	log := eventlog.New(eventlog.DefaultRegistry())
	return New(adapter, log, nil)
}

func TestAcquireReservationGrantsWhenFree(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	r, err := m.AcquireReservation(ctx, "src/app.ts", "alpha", true, time.Minute, "edit", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if r.FilePath != "src/app.ts" || r.HolderCallsign != "alpha" {
		t.Fatalf("unexpected reservation: %+v", r)
	}
}

func TestAcquireReservationFailsFastOnConflict(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AcquireReservation(ctx, "src/app.ts", "alpha", true, time.Minute, "edit", 0); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	_, err := m.AcquireReservation(ctx, "src/app.ts", "bravo", true, time.Minute, "edit", 0)
	if ferr.KindOf(err) != ferr.Conflict {
		t.Fatalf("expected Conflict on fail-fast, got %v", err)
	}
}

func TestSharedReservationsDoNotConflict(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AcquireReservation(ctx, "src/app.ts", "alpha", false, time.Minute, "read", 0); err != nil {
		t.Fatalf("first shared acquire: %v", err)
	}
	if _, err := m.AcquireReservation(ctx, "src/app.ts", "bravo", false, time.Minute, "read", 0); err != nil {
		t.Fatalf("second shared acquire should not conflict: %v", err)
	}
}

func TestExclusiveConflictsWithShared(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AcquireReservation(ctx, "src/app.ts", "alpha", false, time.Minute, "read", 0); err != nil {
		t.Fatalf("shared acquire: %v", err)
	}
	_, err := m.AcquireReservation(ctx, "src/app.ts", "bravo", true, time.Minute, "write", 0)
	if ferr.KindOf(err) != ferr.Conflict {
		t.Fatalf("expected exclusive to conflict with existing shared, got %v", err)
	}
}

func TestTrailingWildcardOverlap(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AcquireReservation(ctx, "src/*", "alpha", true, time.Minute, "refactor", 0); err != nil {
		t.Fatalf("wildcard acquire: %v", err)
	}
	_, err := m.AcquireReservation(ctx, "src/app.ts", "bravo", true, time.Minute, "edit", 0)
	if ferr.KindOf(err) != ferr.Conflict {
		t.Fatalf("expected literal path under wildcard to conflict, got %v", err)
	}

	// A path outside the wildcard's prefix is unaffected.
	if _, err := m.AcquireReservation(ctx, "docs/readme.md", "bravo", true, time.Minute, "edit", 0); err != nil {
		t.Fatalf("unrelated path should not conflict: %v", err)
	}
}

func TestReleaseRequiresHolderWithoutAdmin(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	r, err := m.AcquireReservation(ctx, "src/app.ts", "alpha", true, time.Minute, "edit", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	err = m.ReleaseReservation(ctx, r.ReservationID, "bravo", false)
	if ferr.KindOf(err) != ferr.NotHolder {
		t.Fatalf("expected NotHolder, got %v", err)
	}
	if err := m.ReleaseReservation(ctx, r.ReservationID, "alpha", false); err != nil {
		t.Fatalf("release by holder: %v", err)
	}
}

func TestReleaseUnblocksWaiter(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	r, err := m.AcquireReservation(ctx, "src/app.ts", "alpha", true, time.Hour, "edit", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.AcquireReservation(ctx, "src/app.ts", "bravo", true, time.Minute, "edit", 2*time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := m.ReleaseReservation(ctx, r.ReservationID, "alpha", false); err != nil {
		t.Fatalf("release: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter should have been granted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not unblocked by release")
	}
}

func TestSweeperReleasesExpiredReservations(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	fixedNow := time.Now()
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = time.Now }()

	r, err := m.AcquireReservation(ctx, "src/app.ts", "alpha", true, time.Second, "edit", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	nowFunc = func() time.Time { return fixedNow.Add(2 * time.Second) }
	m.SweepOnce(ctx)

	active, err := m.ListActiveReservations(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, a := range active {
		if a.ReservationID == r.ReservationID {
			t.Fatalf("expected expired reservation to be swept")
		}
	}
}

func TestLockDeadlockAvoidanceRejectsOutOfOrder(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AcquireLock(ctx, "zzz", "alpha", time.Minute, 0); err != nil {
		t.Fatalf("acquire zzz: %v", err)
	}
	_, err := m.AcquireLock(ctx, "aaa", "alpha", time.Minute, 0)
	if ferr.KindOf(err) != ferr.Conflict {
		t.Fatalf("expected Conflict for out-of-order lock request, got %v", err)
	}
}

func TestLockDeadlockAvoidanceAllowsIncreasingOrder(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AcquireLock(ctx, "aaa", "alpha", time.Minute, 0); err != nil {
		t.Fatalf("acquire aaa: %v", err)
	}
	if _, err := m.AcquireLock(ctx, "zzz", "alpha", time.Minute, 0); err != nil {
		t.Fatalf("acquire zzz after aaa should be allowed: %v", err)
	}
}

func TestLockAcquireConflict(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.AcquireLock(ctx, "workspace", "alpha", time.Minute, 0); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_, err := m.AcquireLock(ctx, "workspace", "bravo", time.Minute, 0)
	if ferr.KindOf(err) != ferr.Conflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestForceReleaseLockIgnoresHolder(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	l, err := m.AcquireLock(ctx, "workspace", "alpha", time.Minute, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.ForceReleaseLock(ctx, l.LockID); err != nil {
		t.Fatalf("force release: %v", err)
	}
	if _, err := m.AcquireLock(ctx, "workspace", "bravo", time.Minute, 0); err != nil {
		t.Fatalf("lock should be free after forced release: %v", err)
	}
}
