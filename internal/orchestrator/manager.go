package orchestrator

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/scheduler"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// nowFunc is overridable in tests needing deterministic timestamps.
var nowFunc = time.Now

// Manager owns mission and sortie rows and drives both state machines,
// creating scheduler work orders as each sortie's decomposition is
// expanded (spec §4.7).
type Manager struct {
	store     store.Adapter
	log       *eventlog.Log
	scheduler *scheduler.Scheduler
	matcher   PatternMatcher
}

func New(adapter store.Adapter, log *eventlog.Log, sched *scheduler.Scheduler, matcher PatternMatcher) *Manager {
	return &Manager{store: adapter, log: log, scheduler: sched, matcher: matcher}
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

// CreateMission decomposes a new mission into sorties (pattern-matched
// if matcher finds one, else one sortie per declared area) and submits
// one work order per sortie to the scheduler. The mission row, its
// sortie rows and their events are written in one transaction; the
// work orders are submitted before it, each in its own scheduler
// transaction, and remain stored if the mission write fails.
func (m *Manager) CreateMission(ctx context.Context, title, missionType, description string, priority Priority, areas []string, defaultWorkType string) (Mission, []Sortie, error) {
	now := nowFunc()
	mission := Mission{
		MissionID:   ids.Mission(),
		Title:       title,
		MissionType: missionType,
		Description: description,
		Status:      MissionPending,
		Priority:    priority,
		CreatedAt:   now,
	}

	plan := decompose(m.matcher, missionType, description, areas)
	mission.PatternID = plan.PatternID
	mission.PatternVer = plan.Version

	sorties := make([]Sortie, len(plan.Sorties))
	for i, tmpl := range plan.Sorties {
		sorties[i] = Sortie{
			SortieID:  ids.Sortie(),
			MissionID: mission.MissionID,
			Area:      tmpl.Area,
			Status:    SortieOpen,
			OrderKey:  computeOrderKey(description, plan.Version, i),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	for i, tmpl := range plan.Sorties {
		for _, dep := range tmpl.DependsOn {
			if dep < 0 || dep >= len(sorties) {
				continue
			}
			sorties[i].DependsOn = append(sorties[i].DependsOn, sorties[dep].SortieID)
		}
	}

	workType := defaultWorkType
	if workType == "" {
		workType = "implement"
	}
	for i := range sorties {
		wo, err := m.scheduler.SubmitWorkOrder(ctx, workType, sorties[i].Area, schedulerPriority(priority), "", sorties[i].SortieID, nil)
		if err != nil {
			return Mission{}, nil, err
		}
		sorties[i].WorkOrderIDs = append(sorties[i].WorkOrderIDs, wo.WorkOrderID)
	}

	err := m.withTx(ctx, func(tx store.Tx) error {
		if err := tx.Put(ctx, tableMissions, mission.MissionID, now.UnixNano(), mission); err != nil {
			return err
		}
		for _, s := range sorties {
			if err := tx.Put(ctx, tableSorties, s.SortieID, now.UnixNano(), s); err != nil {
				return err
			}
			if err := m.emit(ctx, tx, eventlog.StreamSortie, s.SortieID, "sortie_created", map[string]any{
				"sortie_id":  s.SortieID,
				"mission_id": mission.MissionID,
			}); err != nil {
				return err
			}
		}
		return m.emit(ctx, tx, eventlog.StreamMission, mission.MissionID, "mission_created", map[string]any{
			"mission_id":   mission.MissionID,
			"sortie_count": len(sorties),
		})
	})
	if err != nil {
		return Mission{}, nil, err
	}
	return mission, sorties, nil
}

func schedulerPriority(p Priority) scheduler.Priority {
	return scheduler.Priority(p)
}

// GetMission returns a mission by id.
func (m *Manager) GetMission(ctx context.Context, missionID string) (Mission, error) {
	var out Mission
	err := m.withTx(ctx, func(tx store.Tx) error {
		msn, err := m.getMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		out = msn
		return nil
	})
	return out, err
}

func (m *Manager) getMission(ctx context.Context, tx store.Tx, missionID string) (Mission, error) {
	var msn Mission
	if err := tx.Get(ctx, tableMissions, missionID, &msn); err != nil {
		return Mission{}, err
	}
	return msn, nil
}

func (m *Manager) putMission(ctx context.Context, tx store.Tx, msn Mission) error {
	return tx.Put(ctx, tableMissions, msn.MissionID, msn.CreatedAt.UnixNano(), msn)
}

// GetSortie returns a sortie by id.
func (m *Manager) GetSortie(ctx context.Context, sortieID string) (Sortie, error) {
	var out Sortie
	err := m.withTx(ctx, func(tx store.Tx) error {
		s, err := m.getSortie(ctx, tx, sortieID)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

func (m *Manager) getSortie(ctx context.Context, tx store.Tx, sortieID string) (Sortie, error) {
	var s Sortie
	if err := tx.Get(ctx, tableSorties, sortieID, &s); err != nil {
		return Sortie{}, err
	}
	return s, nil
}

func (m *Manager) putSortie(ctx context.Context, tx store.Tx, s Sortie) error {
	s.UpdatedAt = nowFunc()
	return tx.Put(ctx, tableSorties, s.SortieID, s.CreatedAt.UnixNano(), s)
}

func requireMissionStatus(msn Mission, want MissionStatus) error {
	if msn.Status != want {
		return ferr.New(ferr.StateConflict, "mission "+msn.MissionID+" is "+string(msn.Status)+", expected "+string(want))
	}
	return nil
}

// StartMission moves a pending mission to in_progress.
func (m *Manager) StartMission(ctx context.Context, missionID string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		msn, err := m.getMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if err := requireMissionStatus(msn, MissionPending); err != nil {
			return err
		}
		now := nowFunc()
		msn.Status = MissionInProgress
		msn.StartedAt = &now
		if err := m.putMission(ctx, tx, msn); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamMission, missionID, "mission_started", nil)
	})
}

// CancelMission moves a mission to cancelled from any non-terminal state.
func (m *Manager) CancelMission(ctx context.Context, missionID, reason string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		msn, err := m.getMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if msn.Status == MissionCompleted || msn.Status == MissionFailed || msn.Status == MissionCancelled || msn.Status == MissionArchived {
			return ferr.New(ferr.StateConflict, "mission "+missionID+" is already terminal: "+string(msn.Status))
		}
		msn.Status = MissionCancelled
		if err := m.putMission(ctx, tx, msn); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamMission, missionID, "mission_cancelled", map[string]any{"reason": reason})
	})
}

// ArchiveMission moves a terminal mission (completed/failed/cancelled) to archived.
func (m *Manager) ArchiveMission(ctx context.Context, missionID string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		msn, err := m.getMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if msn.Status != MissionCompleted && msn.Status != MissionFailed && msn.Status != MissionCancelled {
			return ferr.New(ferr.StateConflict, "mission "+missionID+" is "+string(msn.Status)+", must be completed, failed, or cancelled to archive")
		}
		msn.Status = MissionArchived
		if err := m.putMission(ctx, tx, msn); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamMission, missionID, "mission_archived", nil)
	})
}

// ReopenForResume returns an archived-ineligible mission to
// in_progress during checkpoint resume (spec §4.8 step 7); it refuses
// only missions that are already in a genuinely final state
// (cancelled or archived), since those should never be silently
// revived by a resume.
func (m *Manager) ReopenForResume(ctx context.Context, missionID string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		msn, err := m.getMission(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if msn.Status == MissionCancelled || msn.Status == MissionArchived {
			return ferr.New(ferr.StateConflict, "mission "+missionID+" is "+string(msn.Status)+", cannot resume")
		}
		msn.Status = MissionInProgress
		if err := m.putMission(ctx, tx, msn); err != nil {
			return err
		}
		return m.emit(ctx, tx, eventlog.StreamMission, missionID, "fleet_recovered", map[string]any{"mission_id": missionID})
	})
}

// RestoreSortie idempotently upserts a sortie snapshot, used by
// checkpoint resume to restore sortie states by ID rather than by
// reconstructing them from the event log.
func (m *Manager) RestoreSortie(ctx context.Context, s Sortie) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		return tx.Put(ctx, tableSorties, s.SortieID, s.CreatedAt.UnixNano(), s)
	})
}

// ListSorties returns every sortie belonging to a mission.
func (m *Manager) ListSorties(ctx context.Context, missionID string) ([]Sortie, error) {
	var out []Sortie
	err := m.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableSorties, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var s Sortie
			if err := decodeInto(row.Value, &s); err != nil {
				return err
			}
			if s.MissionID == missionID {
				out = append(out, s)
			}
		}
		return nil
	})
	return out, err
}

// ListByStatus returns every mission currently in the given status,
// used by the checkpoint inactivity monitor to find candidates.
func (m *Manager) ListByStatus(ctx context.Context, status MissionStatus) ([]Mission, error) {
	var out []Mission
	err := m.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableMissions, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var msn Mission
			if err := decodeInto(row.Value, &msn); err != nil {
				return err
			}
			if msn.Status == status {
				out = append(out, msn)
			}
		}
		return nil
	})
	return out, err
}
