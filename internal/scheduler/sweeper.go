package scheduler

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// SweepInterval is the cadence at which SweepAcceptanceTimeouts should
// be driven by a background ticker (mirroring reservation.SweepInterval).
const SweepInterval = 10 * time.Second

// SweepAcceptanceTimeouts reverts every assignment still unaccepted
// past spec §4.6's AcceptanceTimeout back to pending, penalizing the
// unresponsive pilot for that work order's future selection attempts.
// Idempotent per call, never returns an error that should crash the
// caller's background loop — failures are swallowed per tick, matching
// reservation.sweepOnce's cooperative-worker discipline.
func (s *Scheduler) SweepAcceptanceTimeouts(ctx context.Context) {
	type stale struct {
		workOrderID string
		pilotID     string
	}
	var expired []stale

	_ = s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableAssignments, store.RangeOptions{})
		if err != nil {
			return err
		}
		now := nowFunc()
		for _, row := range rows {
			var a Assignment
			if err := decodeInto(row.Value, &a); err != nil {
				continue
			}
			if a.AcceptedAt != nil || a.CompletedAt != nil {
				continue
			}
			if now.Sub(a.AssignedAt) <= AcceptanceTimeout {
				continue
			}
			var wo WorkOrder
			if err := tx.Get(ctx, tableWorkOrders, a.WorkOrderID, &wo); err != nil {
				continue
			}
			if wo.Status != WorkOrderAssigned {
				continue
			}
			expired = append(expired, stale{workOrderID: a.WorkOrderID, pilotID: a.PilotID})
		}
		return nil
	})

	for _, e := range expired {
		_ = s.revertToPendingAfterTimeout(ctx, e.workOrderID)
		s.penalize(e.workOrderID, e.pilotID)
	}
}

func (s *Scheduler) revertToPendingAfterTimeout(ctx context.Context, workOrderID string) error {
	return s.withTx(ctx, func(tx store.Tx) error {
		wo, err := s.getWorkOrder(ctx, tx, workOrderID)
		if err != nil {
			return err
		}
		if wo.Status != WorkOrderAssigned {
			return nil
		}
		wo.Status = WorkOrderPending
		wo.AssignedTo = ""
		return s.putWorkOrder(ctx, tx, wo)
	})
}

// RevertAssignmentsForPilot reverts every work order still assigned,
// accepted, or in progress under pilotID back to pending, clearing the
// assignment so the next dispatch pass can hand it to someone else.
// Called when a pilot is deregistered out from under its work (spec
// §4.5's heartbeat timeout, §8 scenario 6) rather than by its own
// terminal report.
func (s *Scheduler) RevertAssignmentsForPilot(ctx context.Context, pilotID string) error {
	var workOrderIDs []string
	err := s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableWorkOrders, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var wo WorkOrder
			if err := decodeInto(row.Value, &wo); err != nil {
				continue
			}
			if wo.AssignedTo != pilotID {
				continue
			}
			switch wo.Status {
			case WorkOrderAssigned, WorkOrderAccepted, WorkOrderInProgress:
				workOrderIDs = append(workOrderIDs, wo.WorkOrderID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range workOrderIDs {
		if err := s.withTx(ctx, func(tx store.Tx) error {
			wo, err := s.getWorkOrder(ctx, tx, id)
			if err != nil {
				return err
			}
			wo.Status = WorkOrderPending
			wo.AssignedTo = ""
			if err := s.putWorkOrder(ctx, tx, wo); err != nil {
				return err
			}
			return s.emit(ctx, tx, wo.WorkOrderID, "work_order_retried", map[string]any{
				"work_order_id": wo.WorkOrderID,
				"attempt":       wo.RetryCount,
				"reason":        "pilot_timeout",
			})
		}); err != nil {
			return err
		}
	}
	return nil
}
