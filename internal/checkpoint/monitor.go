package checkpoint

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// MonitorInterval is the cadence at which SweepInactivity should be
// driven by a background ticker.
const MonitorInterval = 30 * time.Second

// DefaultInactivityThreshold is T_inactive from spec §4.8.
const DefaultInactivityThreshold = 5 * time.Minute

// SweepInactivity scans every in_progress mission; for each whose
// newest event predates threshold and which has an existing
// checkpoint, it emits context_injected with a recovery-context
// summary, and — if autoResume is set — resumes from that checkpoint
// automatically. Errors are swallowed per mission, without logging or
// an event, matching reservation/scheduler's sweep-and-
// continue discipline: one stuck mission must not stop the sweep from
// reaching the rest.
func (m *Manager) SweepInactivity(ctx context.Context, threshold time.Duration, autoResume bool) {
	missions, err := m.orchestrator.ListByStatus(ctx, orchestrator.MissionInProgress)
	if err != nil {
		return
	}
	now := nowFunc()
	for _, msn := range missions {
		var latest eventlog.Event
		err := m.withTx(ctx, func(tx store.Tx) error {
			e, err := m.log.GetLatest(ctx, tx, eventlog.StreamMission, msn.MissionID)
			if err != nil {
				return err
			}
			latest = e
			return nil
		})
		if err != nil {
			continue
		}
		if now.Sub(latest.OccurredAt) <= threshold {
			continue
		}

		cp, err := m.Get(ctx, "", msn.MissionID)
		if err != nil {
			if ferr.KindOf(err) == ferr.NotFound {
				continue
			}
			continue
		}
		if cp.ConsumedAt != nil {
			continue
		}

		_ = m.withTx(ctx, func(tx store.Tx) error {
			return m.emit(ctx, tx, eventlog.StreamMission, msn.MissionID, "context_injected", map[string]any{
				"mission_id":      msn.MissionID,
				"checkpoint_id":   cp.CheckpointID,
				"mission_summary": cp.RecoveryContext.MissionSummary,
				"next_steps":      cp.RecoveryContext.NextSteps,
				"active_blockers": cp.RecoveryContext.Blockers,
			})
		})

		if autoResume {
			_, _ = m.Resume(ctx, cp.CheckpointID, false)
		}
	}
}
