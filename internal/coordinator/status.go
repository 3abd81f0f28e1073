package coordinator

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
	"github.com/v1truv1us/fleettools-sub010/internal/scheduler"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// CoordinatorStatus is the fleet-wide health summary (spec §6
// Coordinator/Status).
type CoordinatorStatus struct {
	Healthy           bool   `json:"healthy"`
	StorageError      string `json:"storage_error,omitempty"`
	ActivePilots      int    `json:"active_pilots"`
	PendingWorkOrders int    `json:"pending_work_orders"`
	MissionsInFlight  int    `json:"missions_in_flight"`
	SchemaVersion     int    `json:"schema_version"`
}

// Status reports overall fleet health: storage self-test plus a
// snapshot of in-flight load (spec §6 Coordinator/Status).
func (s *Service) Status(ctx context.Context) CoordinatorStatus {
	out := CoordinatorStatus{Healthy: true, SchemaVersion: store.SchemaVersion}
	if err := s.Store.SelfTest(ctx); err != nil {
		out.Healthy = false
		out.StorageError = err.Error()
		return out
	}

	pilots, err := s.Pilots.List(ctx)
	if err == nil {
		for _, p := range pilots {
			if !s.Pilots.IsOffline(p) {
				out.ActivePilots++
			}
		}
	}

	pending, err := s.Scheduler.ListWorkOrders(ctx, "")
	if err == nil {
		for _, wo := range pending {
			if wo.Status == scheduler.WorkOrderPending {
				out.PendingWorkOrders++
			}
		}
	}

	inFlight, err := s.Missions.ListByStatus(ctx, orchestrator.MissionInProgress)
	if err == nil {
		out.MissionsInFlight = len(inFlight)
	}

	return out
}
