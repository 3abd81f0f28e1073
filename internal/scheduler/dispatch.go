package scheduler

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// Dispatch selects the best eligible pilot for workOrderID (spec
// §4.6's candidate filter + weighted score) and creates an Assignment,
// moving the work order pending → assigned. Returns Conflict if the
// work order has unresolved dependencies, StateConflict if it is not
// pending, and NotFound if no pilot qualifies (the caller is expected to retry
// later; the work order stays pending).
func (s *Scheduler) Dispatch(ctx context.Context, workOrderID string, keywords []string) (Assignment, error) {
	eligibleNow, err := s.IsEligible(ctx, workOrderID)
	if err != nil {
		return Assignment{}, err
	}
	if !eligibleNow {
		return Assignment{}, ferr.New(ferr.Conflict, "work order has unresolved dependencies: "+workOrderID)
	}

	var wo WorkOrder
	err = s.withTx(ctx, func(tx store.Tx) error {
		got, err := s.getWorkOrder(ctx, tx, workOrderID)
		if err != nil {
			return err
		}
		if err := requireStatus(got, WorkOrderPending); err != nil {
			return err
		}
		wo = got
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}

	candidates, err := s.pilots.FindByCapability(ctx, keywords)
	if err != nil {
		return Assignment{}, err
	}
	chosen, ok := selectBest(candidates, keywords, wo.PreferredAgentType, wo.Priority, func(pilotID string) float64 {
		return s.penaltyFor(workOrderID, pilotID)
	})
	if !ok {
		return Assignment{}, ferr.New(ferr.NotFound, "no eligible pilot for work order: "+workOrderID)
	}

	var assignment Assignment
	err = s.withTx(ctx, func(tx store.Tx) error {
		got, err := s.getWorkOrder(ctx, tx, workOrderID)
		if err != nil {
			return err
		}
		if err := requireStatus(got, WorkOrderPending); err != nil {
			return err
		}
		now := nowFunc()
		assignment = Assignment{
			AssignmentID: ids.New("asn"),
			WorkOrderID:  workOrderID,
			PilotID:      chosen.pilotID,
			AssignedAt:   now,
		}
		if err := tx.Put(ctx, tableAssignments, assignment.AssignmentID, now.UnixNano(), assignment); err != nil {
			return err
		}
		got.Status = WorkOrderAssigned
		got.AssignedTo = chosen.pilotID
		if err := s.putWorkOrder(ctx, tx, got); err != nil {
			return err
		}
		return s.emit(ctx, tx, workOrderID, "work_order_assigned", map[string]any{
			"work_order_id": workOrderID,
			"pilot_id":      chosen.pilotID,
		})
	})
	if err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

// Accept moves an assignment assigned → accepted, acknowledging
// within spec §4.6's AcceptanceTimeout window.
func (s *Scheduler) Accept(ctx context.Context, assignmentID string) error {
	return s.withTx(ctx, func(tx store.Tx) error {
		var a Assignment
		if err := tx.Get(ctx, tableAssignments, assignmentID, &a); err != nil {
			return err
		}
		var wo WorkOrder
		if err := tx.Get(ctx, tableWorkOrders, a.WorkOrderID, &wo); err != nil {
			return err
		}
		if err := requireStatus(wo, WorkOrderAssigned); err != nil {
			return err
		}
		now := nowFunc()
		a.AcceptedAt = &now
		if err := tx.Put(ctx, tableAssignments, assignmentID, a.AssignedAt.UnixNano(), a); err != nil {
			return err
		}
		wo.Status = WorkOrderAccepted
		return s.putWorkOrder(ctx, tx, wo)
	})
}

// RecordProgress moves an accepted assignment to in_progress on its
// first progress report and updates ProgressPercent thereafter.
func (s *Scheduler) RecordProgress(ctx context.Context, assignmentID string, percent int) error {
	if percent < 0 || percent > 100 {
		return ferr.New(ferr.InvalidInput, "progress_percent out of range")
	}
	return s.withTx(ctx, func(tx store.Tx) error {
		var a Assignment
		if err := tx.Get(ctx, tableAssignments, assignmentID, &a); err != nil {
			return err
		}
		var wo WorkOrder
		if err := tx.Get(ctx, tableWorkOrders, a.WorkOrderID, &wo); err != nil {
			return err
		}
		if wo.Status != WorkOrderAccepted && wo.Status != WorkOrderInProgress {
			return ferr.New(ferr.StateConflict, "work order not in an active state: "+string(wo.Status))
		}
		a.ProgressPercent = percent
		if err := tx.Put(ctx, tableAssignments, assignmentID, a.AssignedAt.UnixNano(), a); err != nil {
			return err
		}
		if wo.Status != WorkOrderInProgress {
			wo.Status = WorkOrderInProgress
			return s.putWorkOrder(ctx, tx, wo)
		}
		return nil
	})
}

// Complete marks a work order completed (in_progress → completed).
func (s *Scheduler) Complete(ctx context.Context, assignmentID string) error {
	return s.withTx(ctx, func(tx store.Tx) error {
		var a Assignment
		if err := tx.Get(ctx, tableAssignments, assignmentID, &a); err != nil {
			return err
		}
		var wo WorkOrder
		if err := tx.Get(ctx, tableWorkOrders, a.WorkOrderID, &wo); err != nil {
			return err
		}
		if err := requireStatus(wo, WorkOrderInProgress); err != nil {
			return err
		}
		now := nowFunc()
		a.CompletedAt = &now
		a.ProgressPercent = 100
		if err := tx.Put(ctx, tableAssignments, assignmentID, a.AssignedAt.UnixNano(), a); err != nil {
			return err
		}
		wo.Status = WorkOrderCompleted
		if err := s.putWorkOrder(ctx, tx, wo); err != nil {
			return err
		}
		return s.emit(ctx, tx, a.WorkOrderID, "work_order_completed", map[string]any{
			"work_order_id": a.WorkOrderID,
		})
	})
}

// Fail records a terminal failure on the current attempt. If
// retry_count is below retryLimit, the work order reverts to pending
// for rescheduling after the returned backoff delay and terminal is
// false; otherwise the work order is marked failed terminally and
// terminal is true.
func (s *Scheduler) Fail(ctx context.Context, assignmentID, errMsg string, retryLimit int) (delay time.Duration, terminal bool, err error) {
	err = s.withTx(ctx, func(tx store.Tx) error {
		var a Assignment
		if getErr := tx.Get(ctx, tableAssignments, assignmentID, &a); getErr != nil {
			return getErr
		}
		var wo WorkOrder
		if getErr := tx.Get(ctx, tableWorkOrders, a.WorkOrderID, &wo); getErr != nil {
			return getErr
		}
		now := nowFunc()
		a.CompletedAt = &now
		a.ErrorDetails = errMsg
		if putErr := tx.Put(ctx, tableAssignments, assignmentID, a.AssignedAt.UnixNano(), a); putErr != nil {
			return putErr
		}

		wo.LastError = errMsg
		if wo.RetryCount >= retryLimit {
			terminal = true
			wo.Status = WorkOrderFailed
			if putErr := s.putWorkOrder(ctx, tx, wo); putErr != nil {
				return putErr
			}
			return s.emit(ctx, tx, wo.WorkOrderID, "work_order_failed", map[string]any{
				"work_order_id": wo.WorkOrderID,
			})
		}

		wo.RetryCount++
		wo.Status = WorkOrderPending
		wo.AssignedTo = ""
		if putErr := s.putWorkOrder(ctx, tx, wo); putErr != nil {
			return putErr
		}
		delay = ComputeBackoff(wo.RetryCount-1, DefaultBaseDelay, DefaultMaxDelay, wo.WorkOrderID)
		return s.emit(ctx, tx, wo.WorkOrderID, "work_order_retried", map[string]any{
			"work_order_id": wo.WorkOrderID,
			"attempt":       wo.RetryCount,
		})
	})
	if err != nil {
		return 0, false, err
	}
	return delay, terminal, nil
}
