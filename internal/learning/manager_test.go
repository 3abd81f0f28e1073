package learning

import (
	"context"
	"testing"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

func newTestManager() *Manager {
	adapter := store.NewMemoryStore()
	log := eventlog.New(eventlog.DefaultRegistry())
	return New(adapter, log)
}

func TestCanonicalizeLowercasesAndTrimsPunctuation(t *testing.T) {
	if got := canonicalize("Implement,"); got != "implement" {
		t.Fatalf("expected 'implement', got %q", got)
	}
	if got := canonicalize("  Review  "); got != "review" {
		t.Fatalf("expected 'review', got %q", got)
	}
}

func TestJaccardSimilarityIdenticalSetsIsOne(t *testing.T) {
	sim := jaccardSimilarity([]string{"implement", "test", "review"}, []string{"implement", "test", "review"})
	if sim != 1.0 {
		t.Fatalf("expected similarity 1.0 for identical sets, got %v", sim)
	}
}

func TestJaccardSimilarityDisjointSetsIsZero(t *testing.T) {
	sim := jaccardSimilarity([]string{"implement"}, []string{"research"})
	if sim != 0 {
		t.Fatalf("expected similarity 0 for disjoint sets, got %v", sim)
	}
}

func TestExtractPatternCreatesNewPatternOnFirstOutcome(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	p, err := m.ExtractPattern(ctx, "bugfix", "msn-1", []string{"implement", "test"}, []string{"backend", "tests"}, OutcomeSuccess, 2*time.Minute)
	if err != nil {
		t.Fatalf("extract pattern: %v", err)
	}
	if p.SuccessCount != 1 || p.FailureCount != 0 {
		t.Fatalf("expected one success recorded, got %+v", p)
	}
	if p.Effectiveness <= 0 {
		t.Fatalf("expected positive effectiveness after a success, got %v", p.Effectiveness)
	}
}

func TestExtractPatternReusesExistingHashOnRepeatSequence(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	first, err := m.ExtractPattern(ctx, "bugfix", "msn-1", []string{"implement", "test"}, []string{"backend", "tests"}, OutcomeSuccess, time.Minute)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := m.ExtractPattern(ctx, "bugfix", "msn-2", []string{"Implement", "Test"}, []string{"backend", "tests"}, OutcomeSuccess, time.Minute)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if first.PatternID != second.PatternID {
		t.Fatalf("expected same pattern for the same canonical sequence, got %s and %s", first.PatternID, second.PatternID)
	}
	if second.SuccessCount != 2 {
		t.Fatalf("expected success count to accumulate, got %d", second.SuccessCount)
	}
}

func TestMatchDecompositionRequiresMissionTypeMatch(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := m.ExtractPattern(ctx, "bugfix", "msn-x", []string{"implement", "test"}, []string{"backend", "tests"}, OutcomeSuccess, time.Minute); err != nil {
			t.Fatalf("seed extract: %v", err)
		}
	}

	if _, ok := m.MatchDecomposition("research", "implement test"); ok {
		t.Fatalf("expected no match across a different mission type")
	}
	plan, ok := m.MatchDecomposition("bugfix", "implement test")
	if !ok {
		t.Fatalf("expected a match for the same mission type and a similar sequence")
	}
	if len(plan.Sorties) != 2 {
		t.Fatalf("expected two templated sorties, got %d", len(plan.Sorties))
	}
}

func TestMatchDecompositionRejectsBelowJaccardThreshold(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := m.ExtractPattern(ctx, "bugfix", "msn-x", []string{"implement", "test", "review", "deploy"}, []string{"a", "b", "c", "d"}, OutcomeSuccess, time.Minute); err != nil {
			t.Fatalf("seed extract: %v", err)
		}
	}
	if _, ok := m.MatchDecomposition("bugfix", "research"); ok {
		t.Fatalf("expected no match for an unrelated description")
	}
}

func TestGetMetricsAggregatesAcrossPatterns(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.ExtractPattern(ctx, "bugfix", "msn-1", []string{"implement"}, []string{"backend"}, OutcomeSuccess, time.Minute); err != nil {
		t.Fatalf("extract 1: %v", err)
	}
	if _, err := m.ExtractPattern(ctx, "research", "msn-2", []string{"investigate"}, []string{"docs"}, OutcomeSuccess, time.Minute); err != nil {
		t.Fatalf("extract 2: %v", err)
	}

	metrics, err := m.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	if metrics.PatternCount != 2 {
		t.Fatalf("expected 2 patterns, got %d", metrics.PatternCount)
	}
	if metrics.TotalUsage != 2 {
		t.Fatalf("expected total usage 2, got %d", metrics.TotalUsage)
	}
}

func TestDeletePatternRemovesRow(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	p, err := m.ExtractPattern(ctx, "bugfix", "msn-1", []string{"implement"}, []string{"backend"}, OutcomeSuccess, time.Minute)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if err := m.DeletePattern(ctx, p.PatternID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetPattern(ctx, p.PatternID); err == nil {
		t.Fatalf("expected error fetching a deleted pattern")
	}
}
