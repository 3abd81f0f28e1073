package coordinator

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
)

// Mission operations are not named as their own row in spec §6's
// table — StartCoordination (Pilots/agents) is the only mission
// lifecycle step the table calls out directly. A mission obviously has
// to exist and be decomposed before it can be coordinated, so these
// are carried as a supplemental group grounded on orchestrator.Manager,
// the same way Tech orders/Learning both front the same learning
// subsystem.

// CreateMission decomposes a new mission into sorties and work orders,
// reusing a learned pattern when one matches closely enough (spec
// §4.7, §4.9).
func (s *Service) CreateMission(ctx context.Context, title, missionType, description string, priority orchestrator.Priority, areas []string, defaultWorkType string) (orchestrator.Mission, []orchestrator.Sortie, error) {
	msn, sorties, err := s.Missions.CreateMission(ctx, title, missionType, description, priority, areas, defaultWorkType)
	if err != nil {
		return msn, sorties, err
	}
	s.observe("orchestrator", msn.MissionID, "", "mission_created", map[string]any{"mission_type": missionType})
	return msn, sorties, nil
}

// GetMission returns a mission by id.
func (s *Service) GetMission(ctx context.Context, missionID string) (orchestrator.Mission, error) {
	return s.Missions.GetMission(ctx, missionID)
}

// CancelMission cancels a mission that has not yet completed.
func (s *Service) CancelMission(ctx context.Context, missionID, reason string) error {
	return s.Missions.CancelMission(ctx, missionID, reason)
}

// ArchiveMission archives a mission that has reached a terminal state.
func (s *Service) ArchiveMission(ctx context.Context, missionID string) error {
	return s.Missions.ArchiveMission(ctx, missionID)
}

// ListMissionsByStatus lists missions in a given status.
func (s *Service) ListMissionsByStatus(ctx context.Context, status orchestrator.MissionStatus) ([]orchestrator.Mission, error) {
	return s.Missions.ListByStatus(ctx, status)
}

// ListSorties lists a mission's sorties.
func (s *Service) ListSorties(ctx context.Context, missionID string) ([]orchestrator.Sortie, error) {
	return s.Missions.ListSorties(ctx, missionID)
}

// DeclareSortieBlocker moves a sortie to blocked for an
// externally-reported reason.
func (s *Service) DeclareSortieBlocker(ctx context.Context, sortieID, reason string) error {
	return s.Missions.DeclareBlocker(ctx, sortieID, reason)
}

// UnblockSortie clears a sortie's blocker once resolved.
func (s *Service) UnblockSortie(ctx context.Context, sortieID string) error {
	return s.Missions.Unblock(ctx, sortieID)
}
