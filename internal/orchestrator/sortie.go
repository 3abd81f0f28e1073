package orchestrator

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// HandleWorkOrderTerminal records a child work order's terminal
// outcome against its sortie. A failing work order blocks the sortie
// immediately; a sortie closes once every child work order has
// reached a terminal state with no failures recorded. The caller must
// only report failed=true once the scheduler has exhausted retries for
// that work order (scheduler.Fail's terminal=true return) — a retry
// that still has attempts remaining is not yet terminal and must not
// be reported here.
func (m *Manager) HandleWorkOrderTerminal(ctx context.Context, sortieID, workOrderID string, failed bool) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		s, err := m.getSortie(ctx, tx, sortieID)
		if err != nil {
			return err
		}
		if s.WorkOrderFailed == nil {
			s.WorkOrderFailed = make(map[string]bool)
		}
		s.WorkOrderFailed[workOrderID] = failed

		switch {
		case failed:
			s.Status = SortieBlocked
			s.BlockedReason = "work order " + workOrderID + " failed"
		case s.allWorkOrdersTerminal() && !s.anyWorkOrderFailed():
			s.Status = SortieClosed
		case s.Status == SortieOpen:
			s.Status = SortieInProgress
		}

		if err := m.putSortie(ctx, tx, s); err != nil {
			return err
		}
		eventType := "sortie_work_order_completed"
		if failed {
			eventType = "sortie_work_order_failed"
		}
		if err := m.emit(ctx, tx, eventlog.StreamSortie, sortieID, eventType, map[string]any{"work_order_id": workOrderID}); err != nil {
			return err
		}
		if s.Status != SortieClosed && s.Status != SortieBlocked {
			return nil
		}
		return m.reconcileMissionLocked(ctx, tx, s.MissionID)
	})
}

// DeclareBlocker moves an open or in-progress sortie to blocked for a
// reason other than a failed work order (e.g. a pilot reporting an
// external blocker).
func (m *Manager) DeclareBlocker(ctx context.Context, sortieID, reason string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		s, err := m.getSortie(ctx, tx, sortieID)
		if err != nil {
			return err
		}
		if s.Status != SortieOpen && s.Status != SortieInProgress {
			return ferr.New(ferr.StateConflict, "sortie "+sortieID+" is "+string(s.Status)+", cannot block")
		}
		s.Status = SortieBlocked
		s.BlockedReason = reason
		if err := m.putSortie(ctx, tx, s); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamSortie, sortieID, "sortie_blocked", map[string]any{"reason": reason})
	})
}

// Unblock moves a blocked sortie back to in_progress once its blocker
// is resolved.
func (m *Manager) Unblock(ctx context.Context, sortieID string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		s, err := m.getSortie(ctx, tx, sortieID)
		if err != nil {
			return err
		}
		if s.Status != SortieBlocked {
			return ferr.New(ferr.StateConflict, "sortie "+sortieID+" is "+string(s.Status)+", expected blocked")
		}
		s.Status = SortieInProgress
		s.BlockedReason = ""
		if err := m.putSortie(ctx, tx, s); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamSortie, sortieID, "sortie_unblocked", nil)
	})
}

// reconcileMissionLocked checks whether a mission's sorties are all
// terminal and advances the mission state machine accordingly. Called
// with the same transaction that just changed a sortie's state so the
// mission never observes a stale sortie set.
func (m *Manager) reconcileMissionLocked(ctx context.Context, tx store.Tx, missionID string) error {
	if missionID == "" {
		return nil
	}
	msn, err := m.getMission(ctx, tx, missionID)
	if err != nil {
		return err
	}
	if msn.Status != MissionInProgress {
		return nil
	}

	rows, err := tx.Range(ctx, tableSorties, store.RangeOptions{})
	if err != nil {
		return err
	}
	allClosed := true
	anyBlocked := false
	found := false
	for _, row := range rows {
		var s Sortie
		if err := decodeInto(row.Value, &s); err != nil {
			return err
		}
		if s.MissionID != missionID {
			continue
		}
		found = true
		if s.Status == SortieBlocked {
			anyBlocked = true
		}
		if s.Status != SortieClosed {
			allClosed = false
		}
	}
	if !found {
		return nil
	}

	now := nowFunc()
	switch {
	case allClosed:
		msn.Status = MissionCompleted
		msn.CompletedAt = &now
		if err := m.putMission(ctx, tx, msn); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamMission, missionID, "mission_completed", map[string]any{"mission_id": missionID})
	case anyBlocked:
		msn.Status = MissionFailed
		msn.CompletedAt = &now
		if err := m.putMission(ctx, tx, msn); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamMission, missionID, "mission_failed", map[string]any{"mission_id": missionID})
	default:
		return nil
	}
}
