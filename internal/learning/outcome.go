package learning

import "time"

// applyOutcome updates a pattern's counters, running average duration,
// and recency-decayed effectiveness for one outcome, appending it to
// the trailing history driftExceeded inspects. It never touches
// Version or Archived — that decision belongs to the caller (see
// DESIGN.md's "Pattern version bump vs. archival").
func applyOutcome(p Pattern, outcome Outcome, duration time.Duration, now time.Time) Pattern {
	switch outcome {
	case OutcomeSuccess:
		p.SuccessCount++
	case OutcomeFailure:
		p.FailureCount++
	case OutcomePartial:
		p.SuccessCount++
		p.FailureCount++
	}

	if p.SuccessCount+p.FailureCount == 1 {
		p.AvgDuration = duration.Seconds()
	} else {
		n := float64(p.SuccessCount + p.FailureCount)
		p.AvgDuration = p.AvgDuration + (duration.Seconds()-p.AvgDuration)/n
	}

	decayedSum, successes := 0.0, 0
	for _, o := range p.RecentOutcomes {
		if o.Outcome == OutcomeSuccess || o.Outcome == OutcomePartial {
			decayedSum += decay(now.Sub(o.At).Hours())
			successes++
		}
	}
	if outcome == OutcomeSuccess || outcome == OutcomePartial {
		decayedSum += 1
		successes++
	}
	decayedWeight := 0.0
	if successes > 0 {
		decayedWeight = float64(p.SuccessCount) * decayedSum / float64(successes)
	}
	p.Effectiveness = computeEffectiveness(p.SuccessCount, p.FailureCount, decayedWeight)

	p.RecentOutcomes = append(p.RecentOutcomes, recordedOutcome{
		Outcome:       outcome,
		Effectiveness: p.Effectiveness,
		At:            now,
	})
	if len(p.RecentOutcomes) > driftWindow {
		p.RecentOutcomes = p.RecentOutcomes[len(p.RecentOutcomes)-driftWindow:]
	}

	p.LastUsedAt = &now
	return p
}
