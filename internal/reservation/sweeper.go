package reservation

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// SweepInterval is the spec §4.4 expiry-sweep cadence.
const SweepInterval = 30 * time.Second

// RunSweeper ticks every SweepInterval until ctx is cancelled,
// releasing expired reservations and locks. Each tick is bounded and
// idempotent — a row already released is simply skipped — matching
// the teacher's cooperative-background-worker guidance (Design Note
// §9): background workers never hold state across ticks and must
// never crash the process, so a failed tick logs nothing fatal and
// just waits for the next one.
func (m *Manager) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single expiry pass immediately, for tests and for
// an administrative "sweep now" trigger.
func (m *Manager) SweepOnce(ctx context.Context) {
	m.sweepOnce(ctx)
}

func (m *Manager) sweepOnce(ctx context.Context) {
	expiredReservations, expiredLocks := m.collectExpired(ctx)
	for _, r := range expiredReservations {
		_ = m.releaseReservation(ctx, r.ReservationID, "", true, reasonExpired)
	}
	for _, l := range expiredLocks {
		_ = m.releaseLock(ctx, l.LockID, "", true, reasonExpired)
	}
}

func (m *Manager) collectExpired(ctx context.Context) ([]Reservation, []Lock) {
	var reservations []Reservation
	var locks []Lock
	_ = m.withTx(ctx, func(tx store.Tx) error {
		now := nowFunc()

		rRows, err := tx.Range(ctx, tableReservations, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rRows {
			var r Reservation
			if err := decodeInto(row.Value, &r); err != nil {
				continue
			}
			if r.ReleasedAt == nil && !r.ExpiresAt.After(now) {
				reservations = append(reservations, r)
			}
		}

		lRows, err := tx.Range(ctx, tableLocks, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range lRows {
			var l Lock
			if err := decodeInto(row.Value, &l); err != nil {
				continue
			}
			if l.ReleasedAt == nil && !l.ExpiresAt.After(now) {
				locks = append(locks, l)
			}
		}
		return nil
	})
	return reservations, locks
}
