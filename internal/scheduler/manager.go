package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/metrics"
	"github.com/v1truv1us/fleettools-sub010/internal/pilot"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// nowFunc is overridable in tests that need to fast-forward past the
// acceptance timeout without sleeping.
var nowFunc = time.Now

// Scheduler dispatches work orders to pilots and drives the assignment
// state machine (spec §4.6).
type Scheduler struct {
	store   store.Adapter
	log     *eventlog.Log
	pilots  *pilot.Registry
	metrics *metrics.Metrics

	// penalties holds an in-memory, process-local multiplier applied
	// to a pilot's score for a specific work order after that pilot
	// let an assignment time out unaccepted (spec §4.6: "the pilot
	// penalized by a reduced score for this work order"). Lost on
	// restart like reservation's FIFO queues — only the store is the
	// durable source of truth for who holds what.
	mu        sync.Mutex
	penalties map[string]map[string]float64
}

func New(adapter store.Adapter, log *eventlog.Log, pilots *pilot.Registry, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		store:     adapter,
		log:       log,
		pilots:    pilots,
		metrics:   m,
		penalties: make(map[string]map[string]float64),
	}
}

func (s *Scheduler) penalize(workOrderID, pilotID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.penalties[workOrderID] == nil {
		s.penalties[workOrderID] = make(map[string]float64)
	}
	s.penalties[workOrderID][pilotID] = 0.5
}

func (s *Scheduler) penaltyFor(workOrderID, pilotID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.penalties[workOrderID]; ok {
		if p, ok := m[pilotID]; ok {
			return p
		}
	}
	return 1.0
}

func (s *Scheduler) withTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Scheduler) emit(ctx context.Context, tx store.Tx, streamID, eventType string, data map[string]any) error {
	_, err := s.log.Append(ctx, tx, eventlog.AppendInput{
		StreamType: eventlog.StreamWorkOrder,
		StreamID:   streamID,
		EventType:  eventType,
		Data:       data,
	})
	return err
}

// SubmitWorkOrder stores a new pending work order and its declared
// dependencies, rejecting the submission if they introduce a cycle.
func (s *Scheduler) SubmitWorkOrder(ctx context.Context, workType, description string, priority Priority, preferredAgentType, sortieID string, deps []TaskDependency) (WorkOrder, error) {
	wo := WorkOrder{
		WorkOrderID:        ids.WorkOrder(),
		SortieID:           sortieID,
		WorkType:           workType,
		Description:        description,
		Status:             WorkOrderPending,
		Priority:           priority,
		PreferredAgentType: preferredAgentType,
	}
	for i := range deps {
		deps[i].TaskID = wo.WorkOrderID
	}

	var existing []TaskDependency
	if err := s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableDependencies, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var d TaskDependency
			if err := decodeInto(row.Value, &d); err != nil {
				return err
			}
			existing = append(existing, d)
		}
		return nil
	}); err != nil {
		return WorkOrder{}, err
	}
	if err := checkAcyclic(append(existing, deps...), wo.WorkOrderID); err != nil {
		return WorkOrder{}, err
	}

	err := s.withTx(ctx, func(tx store.Tx) error {
		now := nowFunc()
		wo.CreatedAt = now
		wo.UpdatedAt = now
		if err := tx.Put(ctx, tableWorkOrders, wo.WorkOrderID, now.UnixNano(), wo); err != nil {
			return err
		}
		for _, d := range deps {
			if err := tx.Put(ctx, tableDependencies, d.TaskID+"|"+d.DependsOnTaskID, now.UnixNano(), d); err != nil {
				return err
			}
		}
		_, err := s.log.Append(ctx, tx, eventlog.AppendInput{
			StreamType:    eventlog.StreamWorkOrder,
			StreamID:      wo.WorkOrderID,
			EventType:     "work_order_created",
			Data:          map[string]any{"work_order_id": wo.WorkOrderID},
			CorrelationID: wo.WorkOrderID,
		})
		return err
	})
	if err != nil {
		return WorkOrder{}, err
	}
	return wo, nil
}

// IsEligible reports whether every dependency declared for
// workOrderID is resolved (spec §4.6).
func (s *Scheduler) IsEligible(ctx context.Context, workOrderID string) (bool, error) {
	var deps []TaskDependency
	err := s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableDependencies, store.RangeOptions{KeyPrefix: workOrderID + "|"})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var d TaskDependency
			if err := decodeInto(row.Value, &d); err != nil {
				return err
			}
			deps = append(deps, d)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return eligible(deps, workOrderID), nil
}

// ResolveDependency marks every dependency edge that names
// upstreamTaskID as satisfied, per depType, as resolved — called by
// the orchestrator when a work order reaches a terminal state.
func (s *Scheduler) ResolveDependency(ctx context.Context, upstreamTaskID string, depType DependencyType) error {
	return s.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableDependencies, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var d TaskDependency
			if err := decodeInto(row.Value, &d); err != nil {
				return err
			}
			if d.DependsOnTaskID == upstreamTaskID && d.Type == depType && d.Status != DependencyResolved {
				d.Status = DependencyResolved
				if err := tx.Put(ctx, tableDependencies, d.TaskID+"|"+d.DependsOnTaskID, row.SortKey, d); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Scheduler) getWorkOrder(ctx context.Context, tx store.Tx, workOrderID string) (WorkOrder, error) {
	var wo WorkOrder
	if err := tx.Get(ctx, tableWorkOrders, workOrderID, &wo); err != nil {
		return WorkOrder{}, err
	}
	return wo, nil
}

func (s *Scheduler) putWorkOrder(ctx context.Context, tx store.Tx, wo WorkOrder) error {
	wo.UpdatedAt = nowFunc()
	return tx.Put(ctx, tableWorkOrders, wo.WorkOrderID, wo.CreatedAt.UnixNano(), wo)
}

func requireStatus(wo WorkOrder, want WorkOrderStatus) error {
	if wo.Status != want {
		return ferr.New(ferr.StateConflict, "work order "+wo.WorkOrderID+" is "+string(wo.Status)+", expected "+string(want))
	}
	return nil
}
