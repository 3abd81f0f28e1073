// Package scheduler implements work order dispatch (spec §4.6):
// capability/workload/priority scoring over the pilot registry,
// dependency-gated eligibility, retry backoff, and the assignment
// state machine.
package scheduler

import "time"

// Priority mirrors spec §3's work order priority enum and drives the
// scoring weight table (spec §4.6).
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var priorityWeight = map[Priority]float64{
	PriorityCritical: 1.0,
	PriorityHigh:     0.75,
	PriorityMedium:   0.5,
	PriorityLow:      0.25,
}

// WorkOrderStatus is the spec §4.6 assignment state machine's label
// for the work order itself (as distinct from the Assignment record).
type WorkOrderStatus string

const (
	WorkOrderPending    WorkOrderStatus = "pending"
	WorkOrderAssigned   WorkOrderStatus = "assigned"
	WorkOrderAccepted   WorkOrderStatus = "accepted"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderFailed     WorkOrderStatus = "failed"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

// WorkOrder is one unit of dispatchable work (spec §3).
type WorkOrder struct {
	WorkOrderID        string          `json:"work_order_id"`
	SortieID           string          `json:"sortie_id,omitempty"`
	WorkType           string          `json:"work_type"`
	Description        string          `json:"description"`
	Status             WorkOrderStatus `json:"status"`
	AssignedTo         string          `json:"assigned_to,omitempty"`
	Priority           Priority        `json:"priority"`
	PreferredAgentType string          `json:"preferred_agent_type,omitempty"`
	RetryCount         int             `json:"retry_count"`
	LastError          string          `json:"last_error,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DependencyType is spec §3's Task Dependency type enum.
type DependencyType string

const (
	DependencyCompletion DependencyType = "completion"
	DependencySuccess    DependencyType = "success"
	DependencyData       DependencyType = "data"
	DependencyResource   DependencyType = "resource"
)

// DependencyStatus is spec §3's Task Dependency status enum.
type DependencyStatus string

const (
	DependencyPending  DependencyStatus = "pending"
	DependencyResolved DependencyStatus = "resolved"
)

// TaskDependency records that one work order depends on another
// reaching a terminal state of the given type before it is eligible.
type TaskDependency struct {
	TaskID          string           `json:"task_id"`
	DependsOnTaskID string           `json:"depends_on_task_id"`
	Type            DependencyType   `json:"type"`
	Status          DependencyStatus `json:"status"`
}

// Assignment binds a work order to a pilot (spec §3).
type Assignment struct {
	AssignmentID        string     `json:"assignment_id"`
	WorkOrderID         string     `json:"work_order_id"`
	PilotID             string     `json:"pilot_id"`
	AssignedAt          time.Time  `json:"assigned_at"`
	AcceptedAt          *time.Time `json:"accepted_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	ProgressPercent     int        `json:"progress_percent"`
	ErrorDetails        string     `json:"error_details,omitempty"`
	ReleasedAt          *time.Time `json:"released_at,omitempty"`
}

func (a Assignment) active() bool { return a.ReleasedAt == nil }

const (
	tableWorkOrders   = "work_orders"
	tableDependencies = "task_dependencies"
	tableAssignments  = "assignments"
)

// AcceptanceTimeout is spec §4.6's default pilot-ack window: an
// assignment not accepted within this window reverts to pending.
const AcceptanceTimeout = 30 * time.Second

// DefaultRetryLimit is spec §4.6's default give-up threshold.
const DefaultRetryLimit = 3

// DefaultBaseDelay and DefaultMaxDelay are spec §4.6's retry backoff
// bounds.
const (
	DefaultBaseDelay = 5 * time.Second
	DefaultMaxDelay  = 5 * time.Minute
)
