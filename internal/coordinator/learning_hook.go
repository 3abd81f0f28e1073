package coordinator

import (
	"context"
	"sort"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/learning"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
)

// learnFromMissionIfDone extracts a decomposition pattern once a
// mission reaches a terminal state (spec §4.9, §8 scenario 5).
// orchestrator has no reference to the learning package — it only
// consumes one through the PatternMatcher interface at decomposition
// time — so recording a mission's outcome back into a pattern has to
// happen here, the same way a terminal work order's effect on the
// scheduler has to cross from orchestrator back at the composition
// root.
func (s *Service) learnFromMissionIfDone(ctx context.Context, sortieID string) {
	if sortieID == "" {
		return
	}
	sortie, err := s.Missions.GetSortie(ctx, sortieID)
	if err != nil || sortie.MissionID == "" {
		return
	}
	msn, err := s.Missions.GetMission(ctx, sortie.MissionID)
	if err != nil {
		return
	}
	if msn.Status != orchestrator.MissionCompleted && msn.Status != orchestrator.MissionFailed {
		return
	}

	sorties, err := s.Missions.ListSorties(ctx, msn.MissionID)
	if err != nil {
		return
	}
	sort.Slice(sorties, func(i, j int) bool { return sorties[i].OrderKey < sorties[j].OrderKey })

	var workTypes, areas []string
	for _, srt := range sorties {
		areas = append(areas, srt.Area)
		for _, woID := range srt.WorkOrderIDs {
			wo, err := s.Scheduler.GetWorkOrder(ctx, woID)
			if err != nil {
				continue
			}
			workTypes = append(workTypes, wo.WorkType)
		}
	}
	if len(workTypes) == 0 {
		return
	}

	outcome := learning.OutcomeSuccess
	if msn.Status == orchestrator.MissionFailed {
		outcome = learning.OutcomeFailure
	}
	var duration time.Duration
	if msn.StartedAt != nil && msn.CompletedAt != nil {
		duration = msn.CompletedAt.Sub(*msn.StartedAt)
	}

	pattern, err := s.Learning.ExtractPattern(ctx, msn.MissionType, msn.MissionID, workTypes, areas, outcome, duration)
	if err != nil {
		return
	}
	s.observe("learning", msn.MissionID, "", "pattern_learned", map[string]any{"pattern_id": pattern.PatternID})
}
