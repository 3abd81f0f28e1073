package scheduler

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// ListAssignments returns every assignment, optionally narrowed to one
// work order (spec §6 Pilots/agents ListAssignments).
func (s *Scheduler) ListAssignments(ctx context.Context, workOrderID string) ([]Assignment, error) {
	var out []Assignment
	err := s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableAssignments, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var a Assignment
			if err := decodeInto(row.Value, &a); err != nil {
				return err
			}
			if workOrderID != "" && a.WorkOrderID != workOrderID {
				continue
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}
