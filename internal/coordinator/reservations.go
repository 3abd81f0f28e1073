package coordinator

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/reservation"
)

// ReserveFile acquires a coarse, path-pattern-level reservation (spec
// §6 Reservations/Reserve). A zero ttl applies the configured default.
func (s *Service) ReserveFile(ctx context.Context, filePath, holderCallsign string, exclusive bool, ttl time.Duration, purpose string) (reservation.Reservation, error) {
	if ttl <= 0 {
		ttl = s.Config.ReservationTTL
	}
	r, err := s.Locks.AcquireReservation(ctx, filePath, holderCallsign, exclusive, ttl, purpose, s.Config.OperationTimeout)
	if err != nil {
		return r, err
	}
	s.observe("reservation", "", holderCallsign, "file_reserved", map[string]any{"file_path": filePath, "exclusive": exclusive})
	return r, nil
}

// ReleaseFile releases a held reservation (spec §6 Reservations/Release).
func (s *Service) ReleaseFile(ctx context.Context, reservationID, callerCallsign string) error {
	return s.Locks.ReleaseReservation(ctx, reservationID, callerCallsign, false)
}

// ListReservations lists every currently active reservation (spec §6
// Reservations/List).
func (s *Service) ListReservations(ctx context.Context) ([]reservation.Reservation, error) {
	return s.Locks.ListActiveReservations(ctx)
}

// AcquireLock acquires a fine-grained keyed lock (spec §6 Locks/Acquire).
func (s *Service) AcquireLock(ctx context.Context, lockKey, holderID string, ttl time.Duration) (reservation.Lock, error) {
	if ttl <= 0 {
		ttl = s.Config.LockTTL
	}
	l, err := s.Locks.AcquireLock(ctx, lockKey, holderID, ttl, s.Config.OperationTimeout)
	if err != nil {
		return l, err
	}
	s.observe("reservation", "", holderID, "lock_acquired", map[string]any{"lock_key": lockKey})
	return l, nil
}

// ReleaseLock releases a held lock (spec §6 Locks/Release).
func (s *Service) ReleaseLock(ctx context.Context, lockID, callerID string) error {
	return s.Locks.ReleaseLock(ctx, lockID, callerID, false)
}

// ListLocks lists every currently active lock (spec §6 Locks/List).
func (s *Service) ListLocks(ctx context.Context) ([]reservation.Lock, error) {
	return s.Locks.ListActiveLocks(ctx)
}
