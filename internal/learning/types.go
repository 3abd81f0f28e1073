// Package learning implements the pattern-extraction and similarity-
// matching subsystem (spec §4.9): it observes completed missions,
// canonicalizes their work-type sequence into a pattern, and ranks
// stored patterns by Jaccard similarity for reuse in future mission
// decomposition.
package learning

import "time"

// Outcome classifies one recorded result of applying a pattern.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Pattern is a learned mission decomposition template, keyed uniquely
// by PatternHash within a (pattern_type, mission_type) family.
type Pattern struct {
	PatternID      string     `json:"pattern_id"`
	PatternHash    string     `json:"pattern_hash"`
	PatternType    string     `json:"pattern_type"`
	MissionType string `json:"mission_type"`
	// Template is the canonicalized work-type sequence the pattern
	// was extracted from (spec §4.9's canonical_sequence) — the basis
	// for both pattern_hash and Jaccard matching.
	Template []string `json:"template"`
	// SortieAreas is the ordered sortie-area list the decomposition
	// that produced this pattern actually used, replayed verbatim by
	// MatchDecomposition on a future match; it is a parallel list to
	// the mission's declared areas, not derived from Template.
	SortieAreas    []string   `json:"sortie_areas,omitempty"`
	SuccessCount   int        `json:"success_count"`
	FailureCount   int        `json:"failure_count"`
	AvgDuration    float64    `json:"avg_duration_seconds"`
	Effectiveness  float64    `json:"effectiveness"`
	Version        int        `json:"version"`
	Archived       bool       `json:"archived"`
	Approved       bool       `json:"approved"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	RecentOutcomes []recordedOutcome `json:"recent_outcomes,omitempty"`
}

// recordedOutcome is the minimal per-outcome history kept in-memory on
// the Pattern row to evaluate the Δ≥0.2-across-5-outcomes drift
// condition; it is persisted as part of the Pattern row's JSON.
type recordedOutcome struct {
	Outcome       Outcome   `json:"outcome"`
	Effectiveness float64   `json:"effectiveness_at_time"`
	At            time.Time `json:"at"`
}

// PatternOutcome records one application of a pattern to a mission.
type PatternOutcome struct {
	OutcomeID  string        `json:"outcome_id"`
	PatternID  string        `json:"pattern_id"`
	MissionID  string        `json:"mission_id"`
	Outcome    Outcome       `json:"outcome"`
	Duration   time.Duration `json:"duration"`
	Deviations []string      `json:"deviations,omitempty"`
	Lessons    string        `json:"lessons,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Metrics is the aggregate view returned by GetMetrics.
type Metrics struct {
	PatternCount         int                `json:"pattern_count"`
	AverageEffectiveness float64            `json:"average_effectiveness"`
	TotalUsage           int                `json:"total_usage"`
	TrendByPatternType   map[string]float64 `json:"trend_by_pattern_type"`
}

// Filters narrows ListPatterns.
type Filters struct {
	PatternType     string
	MissionType     string
	IncludeArchived bool
}

const tablePatterns = "patterns"
const tableOutcomes = "pattern_outcomes"

// jaccardThreshold and effectivenessThreshold are spec §4.9's match
// acceptance thresholds.
const jaccardThreshold = 0.6
const effectivenessThreshold = 0.5

// driftDelta and driftWindow are spec §4.9's version-bump trigger:
// a material Δ≥0.2 swing in effectiveness across the last 5 outcomes.
const driftDelta = 0.2
const driftWindow = 5

// halfLife is the recency-decay half-life for effectiveness (spec §4.9).
const halfLife = 30 * 24 * time.Hour

// epsilon avoids division by zero when success_count=failure_count=0.
const epsilon = 1e-9
