package scheduler

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// CreateTaskDependency declares one dependency edge after SubmitWorkOrder,
// for a caller that learns about a cross-task dependency later (spec
// §6's Tasks group, layered over the same acyclic dependency graph
// SubmitWorkOrder checks at creation time).
func (s *Scheduler) CreateTaskDependency(ctx context.Context, taskID, dependsOnTaskID string, depType DependencyType) (TaskDependency, error) {
	d := TaskDependency{TaskID: taskID, DependsOnTaskID: dependsOnTaskID, Type: depType, Status: DependencyPending}
	var existing []TaskDependency
	if err := s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableDependencies, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var existingDep TaskDependency
			if err := decodeInto(row.Value, &existingDep); err != nil {
				return err
			}
			existing = append(existing, existingDep)
		}
		return nil
	}); err != nil {
		return TaskDependency{}, err
	}
	if err := checkAcyclic(append(existing, d), taskID); err != nil {
		return TaskDependency{}, err
	}
	err := s.withTx(ctx, func(tx store.Tx) error {
		return tx.Put(ctx, tableDependencies, d.TaskID+"|"+d.DependsOnTaskID, nowFunc().UnixNano(), d)
	})
	return d, err
}

// ListTaskDependencies returns every dependency declared for taskID.
func (s *Scheduler) ListTaskDependencies(ctx context.Context, taskID string) ([]TaskDependency, error) {
	var out []TaskDependency
	err := s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableDependencies, store.RangeOptions{KeyPrefix: taskID + "|"})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var d TaskDependency
			if err := decodeInto(row.Value, &d); err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// GetTaskDependency returns one dependency edge.
func (s *Scheduler) GetTaskDependency(ctx context.Context, taskID, dependsOnTaskID string) (TaskDependency, error) {
	var d TaskDependency
	err := s.withTx(ctx, func(tx store.Tx) error {
		return tx.Get(ctx, tableDependencies, taskID+"|"+dependsOnTaskID, &d)
	})
	return d, err
}

// PatchTaskDependencyStatus sets a dependency edge's status directly,
// for administrative override; ResolveDependency is the normal path
// driven by a work order reaching a terminal state.
func (s *Scheduler) PatchTaskDependencyStatus(ctx context.Context, taskID, dependsOnTaskID string, status DependencyStatus) (TaskDependency, error) {
	var d TaskDependency
	err := s.withTx(ctx, func(tx store.Tx) error {
		if err := tx.Get(ctx, tableDependencies, taskID+"|"+dependsOnTaskID, &d); err != nil {
			return err
		}
		if status == "" {
			return ferr.New(ferr.InvalidInput, "status is required")
		}
		d.Status = status
		return tx.Put(ctx, tableDependencies, taskID+"|"+dependsOnTaskID, nowFunc().UnixNano(), d)
	})
	return d, err
}
