package orchestrator

import (
	"crypto/sha256"
	"encoding/binary"
)

// computeOrderKey is the orchestrator's analogue of the scheduler's
// ComputeOrderKey: a deterministic sort key hashed from the mission
// description, the pattern version used for decomposition (0 for the
// generic fallback), and this sortie's index within the decomposition,
// so replaying the same (description, pattern version) always assigns
// sorties the same relative order regardless of goroutine scheduling.
func computeOrderKey(missionDescription string, patternVersion, index int) uint64 {
	h := sha256.New()
	h.Write([]byte(missionDescription))
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(patternVersion))
	binary.BigEndian.PutUint32(buf[4:], uint32(index))
	h.Write(buf[:])
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// SortieTemplate is one node of a pattern-matched decomposition plan:
// an area to expand into a sortie, plus the indices (within the same
// plan) of sorties it depends on.
type SortieTemplate struct {
	Area      string
	DependsOn []int
}

// DecompositionPlan is what a learned pattern (or the generic
// fallback) produces: an ordered list of sorties to create, with
// inter-sortie dependency edges expressed by index.
type DecompositionPlan struct {
	PatternID string
	Version   int
	Sorties   []SortieTemplate
}

// PatternMatcher is the subset of the learning subsystem's interface
// the orchestrator depends on, kept narrow so this package never
// imports internal/learning directly — the composition root wires a
// concrete implementation in.
type PatternMatcher interface {
	MatchDecomposition(missionType, missionDescription string) (DecompositionPlan, bool)
}

// decompose builds a DecompositionPlan for a mission: a pattern match
// if matcher is non-nil and finds one, else one sortie per declared
// area with no inter-sortie dependencies.
func decompose(matcher PatternMatcher, missionType, missionDescription string, areas []string) DecompositionPlan {
	if matcher != nil {
		if plan, ok := matcher.MatchDecomposition(missionType, missionDescription); ok {
			return plan
		}
	}
	plan := DecompositionPlan{Sorties: make([]SortieTemplate, len(areas))}
	for i, area := range areas {
		plan.Sorties[i] = SortieTemplate{Area: area}
	}
	return plan
}
