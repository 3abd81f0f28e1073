package coordinator

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/scheduler"
)

// Tasks (spec §6's Tasks group) addresses the dependency graph
// directly — Create/List/Get/PatchStatus over individual TaskDependency
// edges — distinct from the Work orders group's Create/Get/List/Patch/
// Delete over the work order entity itself. SubmitWorkOrder already
// accepts an initial dependency set; these operations are for
// declaring, inspecting, and amending dependencies afterward.

// CreateTask declares a dependency edge between two work orders (spec
// §6 Tasks/Create).
func (s *Service) CreateTask(ctx context.Context, taskID, dependsOnTaskID string, depType scheduler.DependencyType) (scheduler.TaskDependency, error) {
	return s.Scheduler.CreateTaskDependency(ctx, taskID, dependsOnTaskID, depType)
}

// ListTasks lists every dependency declared for a work order (spec §6
// Tasks/List).
func (s *Service) ListTasks(ctx context.Context, taskID string) ([]scheduler.TaskDependency, error) {
	return s.Scheduler.ListTaskDependencies(ctx, taskID)
}

// GetTask returns one dependency edge (spec §6 Tasks/Get).
func (s *Service) GetTask(ctx context.Context, taskID, dependsOnTaskID string) (scheduler.TaskDependency, error) {
	return s.Scheduler.GetTaskDependency(ctx, taskID, dependsOnTaskID)
}

// PatchTaskStatus amends a dependency edge's status directly (spec §6
// Tasks/PatchStatus); ResolveDependency is the normal, bulk path driven
// by a work order reaching a terminal state.
func (s *Service) PatchTaskStatus(ctx context.Context, taskID, dependsOnTaskID string, status scheduler.DependencyStatus) (scheduler.TaskDependency, error) {
	return s.Scheduler.PatchTaskDependencyStatus(ctx, taskID, dependsOnTaskID, status)
}
