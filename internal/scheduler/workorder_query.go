package scheduler

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// GetWorkOrder returns a single work order by id.
func (s *Scheduler) GetWorkOrder(ctx context.Context, workOrderID string) (WorkOrder, error) {
	var wo WorkOrder
	err := s.withTx(ctx, func(tx store.Tx) error {
		got, err := s.getWorkOrder(ctx, tx, workOrderID)
		if err != nil {
			return err
		}
		wo = got
		return nil
	})
	return wo, err
}

// ListWorkOrders returns every work order, optionally narrowed to a
// single sortie.
func (s *Scheduler) ListWorkOrders(ctx context.Context, sortieID string) ([]WorkOrder, error) {
	var out []WorkOrder
	err := s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableWorkOrders, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var wo WorkOrder
			if err := decodeInto(row.Value, &wo); err != nil {
				return err
			}
			if sortieID != "" && wo.SortieID != sortieID {
				continue
			}
			out = append(out, wo)
		}
		return nil
	})
	return out, err
}

// PatchWorkOrder applies a partial update to status, priority, and/or
// assignment (spec §6's Work orders Patch operation). A zero value for
// a field leaves it unchanged; callers wanting an explicit reset
// should use Dispatch/Accept/Complete/Fail instead, which run the
// assignment state machine.
func (s *Scheduler) PatchWorkOrder(ctx context.Context, workOrderID string, status WorkOrderStatus, priority Priority, assignedTo string) (WorkOrder, error) {
	var wo WorkOrder
	err := s.withTx(ctx, func(tx store.Tx) error {
		got, err := s.getWorkOrder(ctx, tx, workOrderID)
		if err != nil {
			return err
		}
		if status != "" {
			got.Status = status
		}
		if priority != "" {
			got.Priority = priority
		}
		if assignedTo != "" {
			got.AssignedTo = assignedTo
		}
		if err := s.putWorkOrder(ctx, tx, got); err != nil {
			return err
		}
		wo = got
		return s.emit(ctx, tx, workOrderID, "work_order_patched", map[string]any{"work_order_id": workOrderID})
	})
	return wo, err
}

// GetAssignment returns one assignment by id, for callers (the
// composition root) that need the work order it binds before driving
// a terminal Complete/Fail through to the orchestrator.
func (s *Scheduler) GetAssignment(ctx context.Context, assignmentID string) (Assignment, error) {
	var a Assignment
	err := s.withTx(ctx, func(tx store.Tx) error {
		return tx.Get(ctx, tableAssignments, assignmentID, &a)
	})
	return a, err
}

// DeleteWorkOrder removes a work order that has not been assigned;
// dispatching a caller's way to retract a submission made by mistake.
func (s *Scheduler) DeleteWorkOrder(ctx context.Context, workOrderID string) error {
	return s.withTx(ctx, func(tx store.Tx) error {
		wo, err := s.getWorkOrder(ctx, tx, workOrderID)
		if err != nil {
			return err
		}
		if wo.Status != WorkOrderPending {
			return ferr.New(ferr.Conflict, "work order "+workOrderID+" is "+string(wo.Status)+", cannot delete")
		}
		return tx.Delete(ctx, tableWorkOrders, workOrderID)
	})
}
