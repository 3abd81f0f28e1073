package learning

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// nowFunc is overridable in tests needing deterministic timestamps.
var nowFunc = time.Now

// Manager owns learned pattern and outcome rows. It implements
// orchestrator.PatternMatcher so the composition root can wire it
// directly into an orchestrator.Manager without that package ever
// importing this one.
type Manager struct {
	store store.Adapter
	log   *eventlog.Log
}

func New(adapter store.Adapter, log *eventlog.Log) *Manager {
	return &Manager{store: adapter, log: log}
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

func (m *Manager) emit(ctx context.Context, tx store.Tx, streamID, eventType string, data map[string]any) error {
	_, err := m.log.Append(ctx, tx, eventlog.AppendInput{
		StreamType: eventlog.StreamSystem,
		StreamID:   streamID,
		EventType:  eventType,
		Data:       data,
	})
	return err
}

// MatchDecomposition implements orchestrator.PatternMatcher: it looks
// for a learned pattern of patternType "decomposition" within
// missionType whose template is similar enough to the description's
// extracted keyword sequence, and if found, returns a
// DecompositionPlan with one sortie per recorded sortie area
// (SortieAreas) and no inter-sortie dependencies (dependency shape is
// not part of the learned pattern).
func (m *Manager) MatchDecomposition(missionType, description string) (orchestrator.DecompositionPlan, bool) {
	// PatternMatcher's interface carries no context.Context (it is
	// called synchronously from orchestrator.decompose, itself a pure
	// function); a background context is fine here since the only
	// blocking work is a local store read.
	canonical := canonicalSequence(extractKeywords(description))
	candidates, err := m.listCandidates(context.Background(), "decomposition", missionType)
	if err != nil || len(candidates) == 0 {
		return orchestrator.DecompositionPlan{}, false
	}
	match, ok := bestMatch(candidates, canonical)
	if !ok {
		return orchestrator.DecompositionPlan{}, false
	}
	sorties := make([]orchestrator.SortieTemplate, len(match.SortieAreas))
	for i, area := range match.SortieAreas {
		sorties[i] = orchestrator.SortieTemplate{Area: area}
	}
	return orchestrator.DecompositionPlan{PatternID: match.PatternID, Version: match.Version, Sorties: sorties}, true
}

// extractKeywords is the generic-decomposition fallback for
// candidate-sequence extraction when the caller has no declared
// sorties yet: it simply splits on whitespace, since a mission's
// description is the only signal available before decomposition runs.
func extractKeywords(description string) []string {
	var words []string
	start := -1
	for i, r := range description {
		if r == ' ' || r == '\t' || r == '\n' {
			if start >= 0 {
				words = append(words, description[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, description[start:])
	}
	return words
}

func (m *Manager) listCandidates(ctx context.Context, patternType, missionType string) ([]Pattern, error) {
	var out []Pattern
	err := m.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tablePatterns, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var p Pattern
			if err := decodeInto(row.Value, &p); err != nil {
				return err
			}
			if p.PatternType == patternType && p.MissionType == missionType {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// ExtractPattern is invoked when a mission reaches completed (spec
// §4.9): it canonicalizes the ordered list of work types the caller
// passes, computes the pattern hash, and either records outcome on the
// matching pattern or creates a new one with outcome recorded as its
// first.
func (m *Manager) ExtractPattern(ctx context.Context, missionType, missionID string, workTypeSequence []string, sortieAreas []string, outcome Outcome, duration time.Duration) (Pattern, error) {
	canonical := canonicalSequence(workTypeSequence)
	hash := computePatternHash("decomposition", missionType, canonical)

	var result Pattern
	err := m.withTx(ctx, func(tx store.Tx) error {
		existing, found, err := m.findByHash(ctx, tx, hash)
		if err != nil {
			return err
		}
		now := nowFunc()
		if !found {
			existing = Pattern{
				PatternID:   ids.Pattern(),
				PatternHash: hash,
				PatternType: "decomposition",
				MissionType: missionType,
				Template:    canonical,
				SortieAreas: sortieAreas,
				Version:     1,
				CreatedAt:   now,
			}
		}
		updated, err := m.commitOutcome(ctx, tx, existing, outcome, duration, now)
		if err != nil {
			return err
		}
		if err := m.emit(ctx, tx, updated.PatternID, "pattern_learned", map[string]any{
			"pattern_id":   updated.PatternID,
			"mission_id":   missionID,
			"pattern_hash": hash,
			"new":          !found,
		}); err != nil {
			return err
		}
		result = updated
		return nil
	})
	return result, err
}

// commitOutcome applies one outcome to p and persists the result: if
// the trailing-5-outcome drift condition fires, the prior version is
// archived in place and a fresh row is created one version higher with
// the drifted effectiveness carried over as its starting point but
// counters and history reset, per "Pattern version bump vs. archival"
// in DESIGN.md; otherwise p is updated and persisted as-is.
func (m *Manager) commitOutcome(ctx context.Context, tx store.Tx, p Pattern, outcome Outcome, duration time.Duration, now time.Time) (Pattern, error) {
	updated := applyOutcome(p, outcome, duration, now)
	if !driftExceeded(updated.RecentOutcomes) {
		if err := tx.Put(ctx, tablePatterns, updated.PatternID, updated.CreatedAt.UnixNano(), updated); err != nil {
			return Pattern{}, err
		}
		return updated, nil
	}

	archived := updated
	archived.Archived = true
	if err := tx.Put(ctx, tablePatterns, archived.PatternID, archived.CreatedAt.UnixNano(), archived); err != nil {
		return Pattern{}, err
	}

	next := Pattern{
		PatternID:   ids.Pattern(),
		PatternHash: updated.PatternHash,
		PatternType: updated.PatternType,
		MissionType: updated.MissionType,
		Template:    updated.Template,
		SortieAreas: updated.SortieAreas,
		Effectiveness: updated.Effectiveness,
		Version:     updated.Version + 1,
		CreatedAt:   now,
	}
	if err := tx.Put(ctx, tablePatterns, next.PatternID, next.CreatedAt.UnixNano(), next); err != nil {
		return Pattern{}, err
	}
	return next, nil
}

func (m *Manager) findByHash(ctx context.Context, tx store.Tx, hash string) (Pattern, bool, error) {
	rows, err := tx.Range(ctx, tablePatterns, store.RangeOptions{})
	if err != nil {
		return Pattern{}, false, err
	}
	for _, row := range rows {
		var p Pattern
		if err := decodeInto(row.Value, &p); err != nil {
			return Pattern{}, false, err
		}
		if p.PatternHash == hash && !p.Archived {
			return p, true, nil
		}
	}
	return Pattern{}, false, nil
}

// GetPattern returns a pattern by ID.
func (m *Manager) GetPattern(ctx context.Context, patternID string) (Pattern, error) {
	var p Pattern
	err := m.withTx(ctx, func(tx store.Tx) error {
		return tx.Get(ctx, tablePatterns, patternID, &p)
	})
	return p, err
}

// ListPatterns returns every pattern matching filters, defaulting to
// the highest non-archived version per pattern_hash family unless
// IncludeArchived is set.
func (m *Manager) ListPatterns(ctx context.Context, filters Filters) ([]Pattern, error) {
	var out []Pattern
	err := m.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tablePatterns, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var p Pattern
			if err := decodeInto(row.Value, &p); err != nil {
				return err
			}
			if filters.PatternType != "" && p.PatternType != filters.PatternType {
				continue
			}
			if filters.MissionType != "" && p.MissionType != filters.MissionType {
				continue
			}
			if p.Archived && !filters.IncludeArchived {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// DeletePattern removes a pattern permanently.
func (m *Manager) DeletePattern(ctx context.Context, patternID string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Get(ctx, tablePatterns, patternID, &Pattern{}); err != nil {
			return err
		}
		if err := tx.Delete(ctx, tablePatterns, patternID); err != nil {
			return err
		}
		return m.emit(ctx, tx, patternID, "pattern_deleted", nil)
	})
}

// ApprovePattern marks a pattern as administrator-approved, a
// precondition this module leaves advisory (spec §4.9 does not gate
// matching on approval; the flag exists for an external review
// workflow to record its decision).
func (m *Manager) ApprovePattern(ctx context.Context, patternID string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		var p Pattern
		if err := tx.Get(ctx, tablePatterns, patternID, &p); err != nil {
			return err
		}
		p.Approved = true
		if err := tx.Put(ctx, tablePatterns, p.PatternID, p.CreatedAt.UnixNano(), p); err != nil {
			return err
		}
		return m.emit(ctx, tx, patternID, "pattern_approved", nil)
	})
}

// RecordOutcome applies an outcome to an existing pattern without the
// ExtractPattern upsert-or-create path, used when an outcome is
// recorded against a pattern matched from an existing mission rather
// than a fresh extraction.
func (m *Manager) RecordOutcome(ctx context.Context, patternID, missionID string, outcome Outcome, duration time.Duration) (PatternOutcome, error) {
	var out PatternOutcome
	err := m.withTx(ctx, func(tx store.Tx) error {
		var p Pattern
		if err := tx.Get(ctx, tablePatterns, patternID, &p); err != nil {
			return err
		}
		now := nowFunc()
		updated, err := m.commitOutcome(ctx, tx, p, outcome, duration, now)
		if err != nil {
			return err
		}
		out = PatternOutcome{
			OutcomeID:  ids.New("out"),
			PatternID:  updated.PatternID,
			MissionID:  missionID,
			Outcome:    outcome,
			Duration:   duration,
			RecordedAt: now,
		}
		if err := tx.Put(ctx, tableOutcomes, out.OutcomeID, now.UnixNano(), out); err != nil {
			return err
		}
		return m.emit(ctx, tx, updated.PatternID, "pattern_outcome_recorded", map[string]any{
			"pattern_id":       updated.PatternID,
			"prior_pattern_id": patternID,
			"mission_id":       missionID,
			"outcome":          string(outcome),
		})
	})
	return out, err
}

// GetMetrics aggregates pattern counts, effectiveness, and usage,
// grouped by pattern_type for trend reporting.
func (m *Manager) GetMetrics(ctx context.Context) (Metrics, error) {
	var out Metrics
	out.TrendByPatternType = make(map[string]float64)
	err := m.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tablePatterns, store.RangeOptions{})
		if err != nil {
			return err
		}
		typeSum := make(map[string]float64)
		typeCount := make(map[string]int)
		var effSum float64
		for _, row := range rows {
			var p Pattern
			if err := decodeInto(row.Value, &p); err != nil {
				return err
			}
			if p.Archived {
				continue
			}
			out.PatternCount++
			out.TotalUsage += p.SuccessCount + p.FailureCount
			effSum += p.Effectiveness
			typeSum[p.PatternType] += p.Effectiveness
			typeCount[p.PatternType]++
		}
		if out.PatternCount > 0 {
			out.AverageEffectiveness = effSum / float64(out.PatternCount)
		}
		for t, sum := range typeSum {
			out.TrendByPatternType[t] = sum / float64(typeCount[t])
		}
		return nil
	})
	return out, err
}
