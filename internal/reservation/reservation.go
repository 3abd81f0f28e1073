package reservation

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// AcquireReservation grants a reservation on filePath if no active
// reservation conflicts, otherwise blocks up to timeout in FIFO order
// (timeout <= 0 fails fast with ferr.Conflict).
func (m *Manager) AcquireReservation(ctx context.Context, filePath, holderCallsign string, exclusive bool, ttl time.Duration, purpose string, timeout time.Duration) (Reservation, error) {
	result, err := acquire(ctx, m.reservationQueue, filePath, timeout, func() (Reservation, bool, error) {
		return m.tryGrantReservation(ctx, filePath, holderCallsign, exclusive, ttl, purpose)
	})
	if err != nil {
		if m.metrics != nil && ferr.KindOf(err) == ferr.Conflict {
			m.metrics.IncLockConflict("reservation")
		}
		return Reservation{}, err
	}
	return result, nil
}

func (m *Manager) tryGrantReservation(ctx context.Context, filePath, holderCallsign string, exclusive bool, ttl time.Duration, purpose string) (Reservation, bool, error) {
	var granted Reservation
	var conflict bool

	err := m.withTx(ctx, func(tx store.Tx) error {
		active, err := m.activeReservations(ctx, tx)
		if err != nil {
			return err
		}
		now := nowFunc()
		for _, r := range active {
			if !r.active(now) {
				continue
			}
			if patternsOverlap(filePath, r.FilePath) && (exclusive || r.Exclusive) {
				conflict = true
				return nil
			}
		}

		granted = Reservation{
			ReservationID:  ids.Reservation(),
			FilePath:       filePath,
			HolderCallsign: holderCallsign,
			Exclusive:      exclusive,
			CreatedAt:      now,
			ExpiresAt:      now.Add(ttl),
			Purpose:        purpose,
		}
		if err := tx.Put(ctx, tableReservations, granted.ReservationID, now.UnixNano(), granted); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamFile, filePath, "file_reserved", map[string]any{
			"file_path":      filePath,
			"pilot_id":       holderCallsign,
			"reservation_id": granted.ReservationID,
			"exclusive":      exclusive,
		})
	})
	if err != nil {
		return Reservation{}, false, err
	}
	return granted, !conflict, nil
}

// ReleaseReservation releases a held reservation. Non-admin callers
// must be the holder; admin releases regardless of holder. It emits
// file_released only; file_conflict is emitted by
// ForceReleaseReservation.
func (m *Manager) ReleaseReservation(ctx context.Context, reservationID, callerCallsign string, admin bool) error {
	return m.releaseReservation(ctx, reservationID, callerCallsign, admin, reasonNormal)
}

func (m *Manager) releaseReservation(ctx context.Context, reservationID, callerCallsign string, admin bool, reason string) error {
	var filePath string
	err := m.withTx(ctx, func(tx store.Tx) error {
		var r Reservation
		if err := tx.Get(ctx, tableReservations, reservationID, &r); err != nil {
			return err
		}
		if r.ReleasedAt != nil {
			return ferr.New(ferr.NotFound, "reservation already released: "+reservationID)
		}
		if !admin && r.HolderCallsign != callerCallsign {
			return ferr.New(ferr.NotHolder, "caller does not hold reservation "+reservationID)
		}
		now := nowFunc()
		r.ReleasedAt = &now
		if err := tx.Put(ctx, tableReservations, reservationID, now.UnixNano(), r); err != nil {
			return err
		}
		filePath = r.FilePath

		eventType := "file_released"
		if reason == reasonForced {
			if err := m.emit(ctx, tx, eventlog.StreamFile, r.FilePath, "file_conflict", map[string]any{
				"file_path":      r.FilePath,
				"reservation_id": reservationID,
				"reason":         reason,
			}); err != nil {
				return err
			}
		}
		return m.emit(ctx, tx, eventlog.StreamFile, r.FilePath, eventType, map[string]any{
			"file_path":      r.FilePath,
			"pilot_id":       r.HolderCallsign,
			"reservation_id": reservationID,
			"reason":         reason,
		})
	})
	if err != nil {
		return err
	}
	m.reservationQueue.wakeFront(filePath)
	return nil
}

// ForceReleaseReservation is the administrative override (spec
// §4.4's "forced release": admin only).
func (m *Manager) ForceReleaseReservation(ctx context.Context, reservationID string) error {
	return m.releaseReservation(ctx, reservationID, "", true, reasonForced)
}

// RenewReservation extends a held, unreleased reservation's TTL in
// place — used by checkpoint resume to reissue a still-live holder's
// reservation with a fresh expiry without releasing and re-contesting
// the file path.
func (m *Manager) RenewReservation(ctx context.Context, reservationID string, ttl time.Duration) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		var r Reservation
		if err := tx.Get(ctx, tableReservations, reservationID, &r); err != nil {
			return err
		}
		if r.ReleasedAt != nil {
			return ferr.New(ferr.NotFound, "reservation already released: "+reservationID)
		}
		now := nowFunc()
		r.ExpiresAt = now.Add(ttl)
		if err := tx.Put(ctx, tableReservations, reservationID, r.CreatedAt.UnixNano(), r); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamFile, r.FilePath, "file_reservation_renewed", map[string]any{
			"file_path":      r.FilePath,
			"reservation_id": reservationID,
		})
	})
}

// ListActiveReservations returns every currently active reservation,
// regardless of file path.
func (m *Manager) ListActiveReservations(ctx context.Context) ([]Reservation, error) {
	var out []Reservation
	err := m.withTx(ctx, func(tx store.Tx) error {
		active, err := m.activeReservations(ctx, tx)
		if err != nil {
			return err
		}
		out = active
		return nil
	})
	return out, err
}

func (m *Manager) activeReservations(ctx context.Context, tx store.Tx) ([]Reservation, error) {
	rows, err := tx.Range(ctx, tableReservations, store.RangeOptions{})
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	var out []Reservation
	for _, row := range rows {
		var r Reservation
		if err := decodeInto(row.Value, &r); err != nil {
			return nil, err
		}
		if r.active(now) {
			out = append(out, r)
		}
	}
	return out, nil
}
