package checkpoint

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/mailbox"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
	"github.com/v1truv1us/fleettools-sub010/internal/pilot"
	"github.com/v1truv1us/fleettools-sub010/internal/reservation"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// nowFunc is overridable in tests needing deterministic timestamps.
var nowFunc = time.Now

// Manager owns checkpoint rows. It depends on the concrete
// orchestrator/reservation/pilot/mailbox components directly rather
// than through narrow interfaces, the same composition-root-owns-
// everything idiom the teacher's Engine uses for its store/emitter
// dependencies: a checkpoint snapshot is, by definition, a cross-
// section of every other subsystem's state.
type Manager struct {
	store        store.Adapter
	log          *eventlog.Log
	orchestrator *orchestrator.Manager
	reservations *reservation.Manager
	pilots       *pilot.Registry
	mailboxes    *mailbox.Engine
}

func New(adapter store.Adapter, log *eventlog.Log, orch *orchestrator.Manager, res *reservation.Manager, pilots *pilot.Registry, mailboxes *mailbox.Engine) *Manager {
	return &Manager{store: adapter, log: log, orchestrator: orch, reservations: res, pilots: pilots, mailboxes: mailboxes}
}

func (m *Manager) withTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) emit(ctx context.Context, tx store.Tx, streamType eventlog.StreamType, streamID, eventType string, data map[string]any) error {
	_, err := m.log.Append(ctx, tx, eventlog.AppendInput{
		StreamType: streamType,
		StreamID:   streamID,
		EventType:  eventType,
		Data:       data,
	})
	return err
}

// Create snapshots a mission (spec §4.8): every sortie's current
// state, every currently held reservation and lock (the model does
// not scope reservations/locks to a mission, so the full active set
// is captured — see DESIGN.md), each named pilot's mailbox cursor plus
// undelivered events, and the caller-supplied recovery context. The
// whole snapshot is written in one transaction.
func (m *Manager) Create(ctx context.Context, missionID, label string, recoveryCtx RecoveryContext, mailboxPilotIDs []string, patternID string, patternVersion int) (Checkpoint, error) {
	sorties, err := m.orchestrator.ListSorties(ctx, missionID)
	if err != nil {
		return Checkpoint{}, err
	}
	reservations, err := m.reservations.ListActiveReservations(ctx)
	if err != nil {
		return Checkpoint{}, err
	}
	locks, err := m.reservations.ListActiveLocks(ctx)
	if err != nil {
		return Checkpoint{}, err
	}

	reservationKeys := make([]string, len(reservations))
	for i, r := range reservations {
		reservationKeys[i] = r.FilePath
	}
	lockKeys := make([]string, len(locks))
	for i, l := range locks {
		lockKeys[i] = l.LockKey
	}
	idempotencyKey, err := computeIdempotencyKey(missionID, sorties, reservationKeys, lockKeys)
	if err != nil {
		return Checkpoint{}, err
	}

	var cursors []MailboxCursorSnapshot
	err = m.withTx(ctx, func(tx store.Tx) error {
		for _, pilotID := range mailboxPilotIDs {
			pos, err := m.mailboxes.Position(ctx, eventlog.StreamMailbox, pilotID, pilotID)
			if err != nil {
				return err
			}
			undelivered, err := m.log.QueryByStream(ctx, tx, eventlog.StreamMailbox, pilotID, pos, 0)
			if err != nil {
				return err
			}
			cursors = append(cursors, MailboxCursorSnapshot{PilotID: pilotID, Position: pos, Undelivered: undelivered})
		}
		return nil
	})
	if err != nil {
		return Checkpoint{}, err
	}

	cp := Checkpoint{
		CheckpointID:    ids.Checkpoint(),
		MissionID:       missionID,
		Label:           label,
		Sorties:         sorties,
		Reservations:    reservations,
		Locks:           locks,
		MailboxCursors:  cursors,
		RecoveryContext: recoveryCtx,
		PatternID:       patternID,
		PatternVersion:  patternVersion,
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       nowFunc(),
	}

	err = m.withTx(ctx, func(tx store.Tx) error {
		if existing, dup, err := m.findByIdempotencyKey(ctx, tx, idempotencyKey); err != nil {
			return err
		} else if dup {
			cp = existing
			return nil
		}
		if err := tx.Put(ctx, tableCheckpoints, cp.CheckpointID, cp.CreatedAt.UnixNano(), cp); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamCheckpoint, cp.CheckpointID, "checkpoint_created", map[string]any{
			"mission_id":      missionID,
			"checkpoint_id":   cp.CheckpointID,
			"idempotency_key": idempotencyKey,
		})
	})
	if err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

func (m *Manager) findByIdempotencyKey(ctx context.Context, tx store.Tx, key string) (Checkpoint, bool, error) {
	rows, err := tx.Range(ctx, tableCheckpoints, store.RangeOptions{})
	if err != nil {
		return Checkpoint{}, false, err
	}
	for _, row := range rows {
		var cp Checkpoint
		if err := decodeInto(row.Value, &cp); err != nil {
			return Checkpoint{}, false, err
		}
		if cp.IdempotencyKey == key {
			return cp, true, nil
		}
	}
	return Checkpoint{}, false, nil
}

// Get returns a checkpoint by ID, or the latest checkpoint for a
// mission if checkpointID is empty.
func (m *Manager) Get(ctx context.Context, checkpointID, missionID string) (Checkpoint, error) {
	var out Checkpoint
	err := m.withTx(ctx, func(tx store.Tx) error {
		if checkpointID != "" {
			var cp Checkpoint
			if err := tx.Get(ctx, tableCheckpoints, checkpointID, &cp); err != nil {
				return err
			}
			out = cp
			return nil
		}
		rows, err := tx.Range(ctx, tableCheckpoints, store.RangeOptions{})
		if err != nil {
			return err
		}
		var latest Checkpoint
		found := false
		for _, row := range rows {
			var cp Checkpoint
			if err := decodeInto(row.Value, &cp); err != nil {
				return err
			}
			if cp.MissionID != missionID {
				continue
			}
			if !found || cp.CreatedAt.After(latest.CreatedAt) {
				latest = cp
				found = true
			}
		}
		if !found {
			return ferr.New(ferr.NotFound, "no checkpoint found for mission "+missionID)
		}
		out = latest
		return nil
	})
	return out, err
}

func (m *Manager) putCheckpoint(ctx context.Context, tx store.Tx, cp Checkpoint) error {
	return tx.Put(ctx, tableCheckpoints, cp.CheckpointID, cp.CreatedAt.UnixNano(), cp)
}
