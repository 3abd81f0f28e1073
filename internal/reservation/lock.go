package reservation

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// AcquireLock grants an exclusive lock on lockKey if unheld, otherwise
// blocks up to timeout in FIFO order (timeout <= 0 fails fast).
//
// Deadlock avoidance (spec §4.4): a holder that already holds one or
// more locks may only request a lexicographically greater lock_key
// than every lock it currently holds — requesting out of canonical
// order is rejected rather than queued, since queueing would still
// risk an ABBA deadlock against another holder acquiring the same two
// keys in the opposite order.
func (m *Manager) AcquireLock(ctx context.Context, lockKey, holderID string, ttl, timeout time.Duration) (Lock, error) {
	if err := m.checkLockOrder(ctx, lockKey, holderID); err != nil {
		return Lock{}, err
	}
	result, err := acquire(ctx, m.lockQueue, lockKey, timeout, func() (Lock, bool, error) {
		return m.tryGrantLock(ctx, lockKey, holderID, ttl)
	})
	if err != nil {
		if m.metrics != nil && ferr.KindOf(err) == ferr.Conflict {
			m.metrics.IncLockConflict("lock")
		}
		return Lock{}, err
	}
	return result, nil
}

func (m *Manager) checkLockOrder(ctx context.Context, lockKey, holderID string) error {
	held, err := m.activeLocksForHolder(ctx, holderID)
	if err != nil {
		return err
	}
	for _, l := range held {
		if l.LockKey == lockKey {
			return ferr.New(ferr.Conflict, "lock already held by requester: "+lockKey)
		}
		if lockKey < l.LockKey {
			return ferr.New(ferr.Conflict,
				"deadlock avoidance: must request locks in lexicographic order; "+
					"holder already holds "+l.LockKey+" which sorts after "+lockKey)
		}
	}
	return nil
}

func (m *Manager) tryGrantLock(ctx context.Context, lockKey, holderID string, ttl time.Duration) (Lock, bool, error) {
	var granted Lock
	var conflict bool

	err := m.withTx(ctx, func(tx store.Tx) error {
		active, err := m.activeLocks(ctx, tx)
		if err != nil {
			return err
		}
		now := nowFunc()
		for _, l := range active {
			if l.active(now) && l.LockKey == lockKey {
				conflict = true
				return nil
			}
		}

		granted = Lock{
			LockID:     ids.Lock(),
			LockKey:    lockKey,
			HolderID:   holderID,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		}
		if err := tx.Put(ctx, tableLocks, granted.LockID, now.UnixNano(), granted); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamLock, lockKey, "lock_acquired", map[string]any{
			"lock_key": lockKey,
			"pilot_id": holderID,
			"lock_id":  granted.LockID,
		})
	})
	if err != nil {
		return Lock{}, false, err
	}
	return granted, !conflict, nil
}

// ReleaseLock releases a held lock; non-admin callers must be the
// holder.
func (m *Manager) ReleaseLock(ctx context.Context, lockID, callerID string, admin bool) error {
	return m.releaseLock(ctx, lockID, callerID, admin, reasonNormal)
}

// ForceReleaseLock is the administrative override.
func (m *Manager) ForceReleaseLock(ctx context.Context, lockID string) error {
	return m.releaseLock(ctx, lockID, "", true, reasonForced)
}

// RenewLock extends a held, unreleased lock's TTL in place — the
// lock analogue of RenewReservation, used by checkpoint resume.
func (m *Manager) RenewLock(ctx context.Context, lockID string, ttl time.Duration) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		var l Lock
		if err := tx.Get(ctx, tableLocks, lockID, &l); err != nil {
			return err
		}
		if l.ReleasedAt != nil {
			return ferr.New(ferr.NotFound, "lock already released: "+lockID)
		}
		now := nowFunc()
		l.ExpiresAt = now.Add(ttl)
		if err := tx.Put(ctx, tableLocks, lockID, l.AcquiredAt.UnixNano(), l); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamLock, l.LockKey, "lock_renewed", map[string]any{
			"lock_key": l.LockKey,
			"lock_id":  lockID,
		})
	})
}

func (m *Manager) releaseLock(ctx context.Context, lockID, callerID string, admin bool, reason string) error {
	var lockKey string
	err := m.withTx(ctx, func(tx store.Tx) error {
		var l Lock
		if err := tx.Get(ctx, tableLocks, lockID, &l); err != nil {
			return err
		}
		if l.ReleasedAt != nil {
			return ferr.New(ferr.NotFound, "lock already released: "+lockID)
		}
		if !admin && l.HolderID != callerID {
			return ferr.New(ferr.NotHolder, "caller does not hold lock "+lockID)
		}
		now := nowFunc()
		l.ReleasedAt = &now
		if err := tx.Put(ctx, tableLocks, lockID, now.UnixNano(), l); err != nil {
			return err
		}
		lockKey = l.LockKey
		return m.emit(ctx, tx, eventlog.StreamLock, l.LockKey, "lock_released", map[string]any{
			"lock_key": l.LockKey,
			"lock_id":  lockID,
			"reason":   reason,
		})
	})
	if err != nil {
		return err
	}
	m.lockQueue.wakeFront(lockKey)
	return nil
}

// ListActiveLocks returns every currently held (unreleased,
// unexpired) lock, for checkpoint snapshots and admin inspection.
func (m *Manager) ListActiveLocks(ctx context.Context) ([]Lock, error) {
	var out []Lock
	err := m.withTx(ctx, func(tx store.Tx) error {
		active, err := m.activeLocks(ctx, tx)
		if err != nil {
			return err
		}
		out = active
		return nil
	})
	return out, err
}

func (m *Manager) activeLocks(ctx context.Context, tx store.Tx) ([]Lock, error) {
	rows, err := tx.Range(ctx, tableLocks, store.RangeOptions{})
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	var out []Lock
	for _, row := range rows {
		var l Lock
		if err := decodeInto(row.Value, &l); err != nil {
			return nil, err
		}
		if l.active(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Manager) activeLocksForHolder(ctx context.Context, holderID string) ([]Lock, error) {
	var out []Lock
	err := m.withTx(ctx, func(tx store.Tx) error {
		active, err := m.activeLocks(ctx, tx)
		if err != nil {
			return err
		}
		for _, l := range active {
			if l.HolderID == holderID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}
