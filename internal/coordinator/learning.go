package coordinator

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/learning"
)

// CreatePattern extracts (or reinforces, if the canonical sequence
// already matches a stored pattern) a learned pattern from one
// completed mission's work-type sequence (spec §6 Tech orders/Create
// and Learning/CreatePattern).
func (s *Service) CreatePattern(ctx context.Context, missionType, missionID string, workTypeSequence, sortieAreas []string, outcome learning.Outcome, duration time.Duration) (learning.Pattern, error) {
	p, err := s.Learning.ExtractPattern(ctx, missionType, missionID, workTypeSequence, sortieAreas, outcome, duration)
	if err != nil {
		return p, err
	}
	s.observe("learning", missionID, p.PatternID, "pattern_learned", map[string]any{"pattern_hash": p.PatternHash})
	return p, nil
}

// ListPatterns lists stored patterns, optionally filtered (spec §6
// Tech orders/List and Learning/ListPatterns).
func (s *Service) ListPatterns(ctx context.Context, filters learning.Filters) ([]learning.Pattern, error) {
	return s.Learning.ListPatterns(ctx, filters)
}

// GetPattern returns one pattern by id (spec §6 Tech orders/Get and
// Learning/GetPattern).
func (s *Service) GetPattern(ctx context.Context, patternID string) (learning.Pattern, error) {
	return s.Learning.GetPattern(ctx, patternID)
}

// DeletePattern removes a pattern (spec §6 Learning/DeletePattern).
func (s *Service) DeletePattern(ctx context.Context, patternID string) error {
	return s.Learning.DeletePattern(ctx, patternID)
}

// ApprovePattern marks a pattern reviewed and approved; supplemental
// to spec §6's table. The flag is recorded on the pattern only:
// MatchDecomposition does not consult it and reuses approved and
// unapproved patterns alike.
func (s *Service) ApprovePattern(ctx context.Context, patternID string) error {
	return s.Learning.ApprovePattern(ctx, patternID)
}

// RecordPatternOutcome records one application of a pattern to a
// mission, feeding back into its effectiveness and potential version
// bump (spec §4.9).
func (s *Service) RecordPatternOutcome(ctx context.Context, patternID, missionID string, outcome learning.Outcome, duration time.Duration) (learning.PatternOutcome, error) {
	return s.Learning.RecordOutcome(ctx, patternID, missionID, outcome, duration)
}

// GetLearningMetrics returns the aggregate pattern-effectiveness view
// (spec §6 Learning/GetMetrics).
func (s *Service) GetLearningMetrics(ctx context.Context) (learning.Metrics, error) {
	return s.Learning.GetMetrics(ctx)
}
