package learning

// jaccardSimilarity compares two work-type multisets as sets (spec
// §4.9 specifies "Jaccard similarity of work-type multisets"; multiset
// membership still collapses to set membership for the ratio since
// Jaccard itself is a set measure — duplicate tokens in either
// sequence contribute no more than a single membership each).
func jaccardSimilarity(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA)
	for tok := range setB {
		if !setA[tok] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// rankedMatch is a candidate pattern scored against an incoming
// canonical sequence.
type rankedMatch struct {
	pattern    Pattern
	similarity float64
}

// bestMatch ranks candidates by Jaccard similarity (ties broken by
// effectiveness, per spec §4.9) and returns the winner, or false if
// none clears both the similarity and effectiveness thresholds.
func bestMatch(candidates []Pattern, canonical []string) (Pattern, bool) {
	var ranked []rankedMatch
	for _, p := range candidates {
		if p.Archived {
			continue
		}
		sim := jaccardSimilarity(p.Template, canonical)
		if sim < jaccardThreshold || p.Effectiveness < effectivenessThreshold {
			continue
		}
		ranked = append(ranked, rankedMatch{pattern: p, similarity: sim})
	}
	if len(ranked) == 0 {
		return Pattern{}, false
	}
	best := ranked[0]
	for _, r := range ranked[1:] {
		if r.similarity > best.similarity {
			best = r
			continue
		}
		if r.similarity == best.similarity && r.pattern.Effectiveness > best.pattern.Effectiveness {
			best = r
		}
	}
	return best.pattern, true
}
