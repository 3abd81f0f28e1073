// Package orchestrator decomposes missions into sorties and work
// orders and drives their state machines. Decomposition either
// follows a learned pattern or falls through to a generic one sortie
// per declared area, and is deterministic given (mission description,
// pattern version) via the same order-key idiom the scheduler uses
// for retry seeding.
package orchestrator

import "time"

type MissionStatus string

const (
	MissionPending    MissionStatus = "pending"
	MissionInProgress MissionStatus = "in_progress"
	MissionCompleted  MissionStatus = "completed"
	MissionFailed     MissionStatus = "failed"
	MissionCancelled  MissionStatus = "cancelled"
	MissionArchived   MissionStatus = "archived"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type Mission struct {
	MissionID string        `json:"mission_id"`
	Title     string        `json:"title"`
	// MissionType classifies the mission for pattern reuse (spec
	// §4.9): patterns match only within the same mission type, never
	// across it, even when their work-type sequence is identical.
	MissionType string        `json:"mission_type,omitempty"`
	Description string        `json:"description,omitempty"`
	Status      MissionStatus `json:"status"`
	Priority    Priority      `json:"priority"`
	PatternID   string        `json:"pattern_id,omitempty"`
	PatternVer  int           `json:"pattern_version,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type SortieStatus string

const (
	SortieOpen       SortieStatus = "open"
	SortieInProgress SortieStatus = "in_progress"
	SortieBlocked    SortieStatus = "blocked"
	SortieClosed     SortieStatus = "closed"
)

type Sortie struct {
	SortieID      string       `json:"sortie_id"`
	MissionID     string       `json:"mission_id,omitempty"`
	Area          string       `json:"area"`
	Status        SortieStatus `json:"status"`
	AssignedTo    string       `json:"assigned_to,omitempty"`
	Files         []string     `json:"files,omitempty"`
	BlockedReason string       `json:"blocked_reason,omitempty"`
	OrderKey      uint64       `json:"order_key"`
	WorkOrderIDs  []string     `json:"work_order_ids,omitempty"`
	DependsOn     []string     `json:"depends_on,omitempty"`
	// WorkOrderFailed records, per work order ID, whether its terminal
	// outcome was a failure (true) or a completion (false). A work
	// order absent from this map has not yet reached a terminal state.
	WorkOrderFailed map[string]bool `json:"work_order_failed,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// anyWorkOrderFailed reports whether any child work order's recorded
// terminal outcome was a failure.
func (s Sortie) anyWorkOrderFailed() bool {
	for _, failed := range s.WorkOrderFailed {
		if failed {
			return true
		}
	}
	return false
}

// allWorkOrdersTerminal reports whether every child work order has a
// recorded terminal outcome.
func (s Sortie) allWorkOrdersTerminal() bool {
	for _, id := range s.WorkOrderIDs {
		if _, done := s.WorkOrderFailed[id]; !done {
			return false
		}
	}
	return true
}

const (
	tableMissions = "missions"
	tableSorties  = "sorties"
)
