package learning

import "math"

// decay applies exponential recency decay with the package half-life:
// an outcome age hours old contributes weight 0.5^(age/halfLife).
func decay(age float64) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp2(-age / halfLife.Hours())
}

// computeEffectiveness implements spec §4.9's
// effectiveness = (success_count · decay(recency)) / (success_count + failure_count + ε),
// where decay(recency) is the recency-weighted average of per-success
// decay factors rather than a single scalar applied to the raw count,
// so older successes count for less than a fresh one.
func computeEffectiveness(successCount, failureCount int, decayedSuccessWeight float64) float64 {
	denom := float64(successCount+failureCount) + epsilon
	return decayedSuccessWeight / denom
}

// driftExceeded reports whether the most recent driftWindow outcomes
// swing effectiveness by at least driftDelta relative to the oldest
// of that window, spec §4.9's version-bump trigger.
func driftExceeded(history []recordedOutcome) bool {
	if len(history) < driftWindow {
		return false
	}
	window := history[len(history)-driftWindow:]
	oldest := window[0].Effectiveness
	newest := window[len(window)-1].Effectiveness
	return math.Abs(newest-oldest) >= driftDelta
}
