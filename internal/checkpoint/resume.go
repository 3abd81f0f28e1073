package checkpoint

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// Resume runs the seven-step resume protocol (spec §4.8) against
// checkpointID, or performs the first three steps only and returns a
// plan without side effects when dryRun is true.
func (m *Manager) Resume(ctx context.Context, checkpointID string, dryRun bool) (ResumePlan, error) {
	plan := ResumePlan{CheckpointID: checkpointID}

	// Step 1: validate caller-provided checkpoint (or the latest for
	// the mission, if the caller omitted an ID — callers needing that
	// must resolve it via Get first since Resume requires an ID).
	cp, err := m.Get(ctx, checkpointID, "")
	if err != nil {
		return ResumePlan{}, err
	}
	plan.MissionID = cp.MissionID
	plan.StepsPerformed = append(plan.StepsPerformed, StepValidateCheckpoint)

	// Step 2: verify not already consumed.
	if cp.ConsumedAt != nil {
		return ResumePlan{}, ferr.New(ferr.PreconditionFailed, "checkpoint "+checkpointID+" was already consumed at "+cp.ConsumedAt.String())
	}
	plan.StepsPerformed = append(plan.StepsPerformed, StepVerifyUnconsumed)

	// Step 3: restore sortie/work-order states by idempotent upsert.
	plan.SortiesToRestore = len(cp.Sorties)
	if !dryRun {
		for _, s := range cp.Sorties {
			if err := m.orchestrator.RestoreSortie(ctx, s); err != nil {
				return ResumePlan{}, err
			}
		}
	}
	plan.StepsPerformed = append(plan.StepsPerformed, StepRestoreStates)

	if dryRun {
		plan.HoldsToReissue = m.planReissues(ctx, cp)
		plan.MailboxEventsToReplay = countUndelivered(cp)
		return plan, nil
	}

	// Step 4: reissue unreleased reservations/locks with fresh TTLs to
	// the original holders if still live; otherwise release them back
	// into contention for reassignment.
	outcomes, err := m.reissueHolds(ctx, cp)
	if err != nil {
		return ResumePlan{}, err
	}
	plan.HoldsToReissue = outcomes
	plan.StepsPerformed = append(plan.StepsPerformed, StepReissueHolds)

	// Step 5: replay pending mailbox events to the new pilots' cursors.
	// The events themselves are untouched in the log (they were never
	// consumed); this step is a no-op beyond reporting the count, since
	// the pilot's next Poll naturally resumes from its existing cursor.
	plan.MailboxEventsToReplay = countUndelivered(cp)
	plan.StepsPerformed = append(plan.StepsPerformed, StepReplayMailboxEvents)

	// Step 6: mark checkpoint consumed.
	now := nowFunc()
	cp.ConsumedAt = &now
	if err := m.withTx(ctx, func(tx store.Tx) error {
		return m.putCheckpoint(ctx, tx, cp)
	}); err != nil {
		return ResumePlan{}, err
	}
	plan.StepsPerformed = append(plan.StepsPerformed, StepMarkConsumed)

	// Step 7: emit fleet_recovered and return the mission to in_progress.
	if err := m.orchestrator.ReopenForResume(ctx, cp.MissionID); err != nil {
		return ResumePlan{}, err
	}
	plan.StepsPerformed = append(plan.StepsPerformed, StepEmitRecovered)

	return plan, nil
}

func countUndelivered(cp Checkpoint) int {
	total := 0
	for _, c := range cp.MailboxCursors {
		total += len(c.Undelivered)
	}
	return total
}

func (m *Manager) planReissues(ctx context.Context, cp Checkpoint) []ReissueOutcome {
	var out []ReissueOutcome
	for _, r := range cp.Reservations {
		out = append(out, ReissueOutcome{
			Kind:       "reservation",
			Key:        r.FilePath,
			HolderID:   r.HolderCallsign,
			Reissued:   m.holderLive(r.HolderCallsign),
			Reassigned: !m.holderLive(r.HolderCallsign),
		})
	}
	for _, l := range cp.Locks {
		out = append(out, ReissueOutcome{
			Kind:       "lock",
			Key:        l.LockKey,
			HolderID:   l.HolderID,
			Reissued:   m.holderLive(l.HolderID),
			Reassigned: !m.holderLive(l.HolderID),
		})
	}
	return out
}

func (m *Manager) holderLive(callsign string) bool {
	p, err := m.pilots.GetByCallsign(context.Background(), callsign)
	if err != nil {
		return false
	}
	return !m.pilots.IsOffline(p)
}

// reissueHolds renews every snapshotted reservation/lock in place
// with a fresh TTL (same duration as the snapshot) for holders still
// alive, and force-releases the rest so they re-enter contention for
// reassignment rather than sitting on a stale, unrenewable hold.
func (m *Manager) reissueHolds(ctx context.Context, cp Checkpoint) ([]ReissueOutcome, error) {
	var outcomes []ReissueOutcome
	for _, r := range cp.Reservations {
		ttl := r.ExpiresAt.Sub(r.CreatedAt)
		if m.holderLive(r.HolderCallsign) {
			if err := m.reservations.RenewReservation(ctx, r.ReservationID, ttl); err != nil {
				return nil, err
			}
			outcomes = append(outcomes, ReissueOutcome{Kind: "reservation", Key: r.FilePath, HolderID: r.HolderCallsign, Reissued: true})
			continue
		}
		if err := m.reservations.ForceReleaseReservation(ctx, r.ReservationID); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, ReissueOutcome{Kind: "reservation", Key: r.FilePath, HolderID: r.HolderCallsign, Reassigned: true})
	}
	for _, l := range cp.Locks {
		ttl := l.ExpiresAt.Sub(l.AcquiredAt)
		if m.holderLive(l.HolderID) {
			if err := m.reservations.RenewLock(ctx, l.LockID, ttl); err != nil {
				return nil, err
			}
			outcomes = append(outcomes, ReissueOutcome{Kind: "lock", Key: l.LockKey, HolderID: l.HolderID, Reissued: true})
			continue
		}
		if err := m.reservations.ForceReleaseLock(ctx, l.LockID); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, ReissueOutcome{Kind: "lock", Key: l.LockKey, HolderID: l.HolderID, Reassigned: true})
	}
	return outcomes, nil
}
