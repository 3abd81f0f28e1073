package scheduler

import (
	"container/heap"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/pilot"
)

// Scoring weights from spec §4.6: score = W_cap*capability_match +
// W_load*(1-workload_ratio) + W_pri*priority_weight.
const (
	weightCapability = 0.4
	weightWorkload   = 0.3
	weightPriority   = 0.3
)

// candidate is one scored, eligible pilot for a work order.
type candidate struct {
	pilotID       string
	callsign      string
	score         float64
	lastHeartbeat time.Time
}

// score computes spec §4.6's weighted score for p against a work
// order whose extracted keywords overlap p's capabilities by
// capabilityMatches (a raw overlap count, collapsed to a 0/1 hit
// below — see DESIGN.md's "Capability match scoring" decision).
func score(p pilot.Pilot, capabilityMatches int, priority Priority) float64 {
	normalizedCap := 1.0
	if capabilityMatches == 0 {
		normalizedCap = 0
	}
	workloadRatio := 0.0
	if p.MaxWorkload > 0 {
		workloadRatio = float64(p.CurrentWorkload) / float64(p.MaxWorkload)
	}
	return weightCapability*normalizedCap +
		weightWorkload*(1-workloadRatio) +
		weightPriority*priorityWeight[priority]
}

// candidateHeap is a min-heap keyed by negative score, so the
// highest-scoring candidate pops first — the same workHeap/Frontier
// shape the teacher uses for OrderKey ordering, here ordering by score
// instead of a deterministic hash. Ties break on most-recent heartbeat,
// then lexicographic callsign, per spec §4.6.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	if !h[i].lastHeartbeat.Equal(h[j].lastHeartbeat) {
		return h[i].lastHeartbeat.After(h[j].lastHeartbeat)
	}
	return h[i].callsign < h[j].callsign
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// selectBest returns the highest-priority eligible candidate among
// pilots, or ok=false if none qualify. penaltyFor scales a pilot's raw
// score (spec §4.6: a pilot that let an assignment for this work order
// time out unaccepted is penalized on subsequent selection attempts).
func selectBest(pilots []pilot.Pilot, keywords []string, preferredAgentType string, priority Priority, penaltyFor func(pilotID string) float64) (candidate, bool) {
	h := &candidateHeap{}
	heap.Init(h)
	wanted := make(map[string]bool, len(keywords))
	for _, w := range keywords {
		wanted[w] = true
	}
	for _, p := range pilots {
		if p.CurrentWorkload >= p.MaxWorkload {
			continue
		}
		if preferredAgentType != "" && p.AgentType != preferredAgentType {
			continue
		}
		matches := capabilityOverlap(p.Capabilities, wanted)
		if matches == 0 {
			continue
		}
		s := score(p, matches, priority)
		if penaltyFor != nil {
			s *= penaltyFor(p.PilotID)
		}
		heap.Push(h, candidate{
			pilotID:       p.PilotID,
			callsign:      p.Callsign,
			score:         s,
			lastHeartbeat: p.LastHeartbeat,
		})
	}
	if h.Len() == 0 {
		return candidate{}, false
	}
	return heap.Pop(h).(candidate), true
}

func capabilityOverlap(caps []pilot.Capability, wanted map[string]bool) int {
	count := 0
	for _, c := range caps {
		for _, w := range c.TriggerWords {
			if wanted[w] {
				count++
			}
		}
	}
	return count
}
