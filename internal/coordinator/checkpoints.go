package coordinator

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/checkpoint"
)

// CreateCheckpoint snapshots an in-flight mission (spec §6
// Checkpoints/Create).
func (s *Service) CreateCheckpoint(ctx context.Context, missionID, label string, recoveryCtx checkpoint.RecoveryContext, mailboxPilotIDs []string, patternID string, patternVersion int) (checkpoint.Checkpoint, error) {
	cp, err := s.checkpoints.Create(ctx, missionID, label, recoveryCtx, mailboxPilotIDs, patternID, patternVersion)
	if err != nil {
		return cp, err
	}
	s.observe("checkpoint", missionID, cp.CheckpointID, "checkpoint_created", map[string]any{"label": label})
	return cp, nil
}

// ListCheckpoints lists every checkpoint recorded for a mission (spec
// §6 Checkpoints/List).
func (s *Service) ListCheckpoints(ctx context.Context, missionID string) ([]checkpoint.Checkpoint, error) {
	return s.checkpoints.ListByMission(ctx, missionID)
}

// GetCheckpoint returns a checkpoint by id (spec §6 Checkpoints/Get).
func (s *Service) GetCheckpoint(ctx context.Context, checkpointID string) (checkpoint.Checkpoint, error) {
	return s.checkpoints.Get(ctx, checkpointID, "")
}

// GetLatestCheckpoint returns the most recent checkpoint for a mission
// (spec §6 Checkpoints/GetLatest).
func (s *Service) GetLatestCheckpoint(ctx context.Context, missionID string) (checkpoint.Checkpoint, error) {
	return s.checkpoints.Get(ctx, "", missionID)
}

// ResumeCheckpoint runs (or, with dryRun, merely plans) the seven-step
// resume protocol (spec §6 Checkpoints/Resume, spec §4.8).
func (s *Service) ResumeCheckpoint(ctx context.Context, checkpointID string, dryRun bool) (checkpoint.ResumePlan, error) {
	plan, err := s.checkpoints.Resume(ctx, checkpointID, dryRun)
	if err != nil {
		return plan, err
	}
	if !dryRun {
		s.observe("checkpoint", plan.MissionID, checkpointID, "checkpoint_resumed", map[string]any{"sorties_restored": plan.SortiesToRestore})
	}
	return plan, nil
}

// DeleteCheckpoint removes a checkpoint (spec §6 Checkpoints/Delete).
func (s *Service) DeleteCheckpoint(ctx context.Context, checkpointID string) error {
	return s.checkpoints.Delete(ctx, checkpointID)
}
