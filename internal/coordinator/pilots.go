package coordinator

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/pilot"
	"github.com/v1truv1us/fleettools-sub010/internal/scheduler"
)

// RegisterPilot registers a new pilot (spec §6 Pilots/agents/Register).
func (s *Service) RegisterPilot(ctx context.Context, callsign, agentType string, capabilities []pilot.Capability, maxWorkload int) (pilot.Pilot, error) {
	p, err := s.Pilots.Register(ctx, callsign, agentType, capabilities, maxWorkload)
	if err != nil {
		return p, err
	}
	s.observe("pilot", "", p.PilotID, "pilot_registered", map[string]any{"callsign": callsign})
	return p, nil
}

// ListPilots lists every registered pilot (spec §6 Pilots/agents/List).
func (s *Service) ListPilots(ctx context.Context) ([]pilot.Pilot, error) {
	return s.Pilots.List(ctx)
}

// GetPilotByCallsign looks up a pilot by callsign (spec §6 Pilots/agents/GetByCallsign).
func (s *Service) GetPilotByCallsign(ctx context.Context, callsign string) (pilot.Pilot, error) {
	return s.Pilots.GetByCallsign(ctx, callsign)
}

// PatchPilotStatus updates a pilot's self-reported status (spec §6
// Pilots/agents/PatchStatus).
func (s *Service) PatchPilotStatus(ctx context.Context, pilotID string, status pilot.Status) error {
	return s.Pilots.UpdateStatus(ctx, pilotID, status)
}

// ListAssignments lists assignments, optionally scoped to one work
// order (spec §6 Pilots/agents/ListAssignments).
func (s *Service) ListAssignments(ctx context.Context, workOrderID string) ([]scheduler.Assignment, error) {
	return s.Scheduler.ListAssignments(ctx, workOrderID)
}

// CreateAssignment dispatches a pending work order to the best
// eligible pilot (spec §6 Pilots/agents/CreateAssignment); the
// selection itself is not caller-directed, matching the scheduler's
// scoring design (spec §4.6).
func (s *Service) CreateAssignment(ctx context.Context, workOrderID string) (scheduler.Assignment, error) {
	return s.DispatchWorkOrder(ctx, workOrderID)
}

// PatchAssignment drives the assignment state machine's intermediate
// steps: accept, and/or a progress update (spec §6 Pilots/agents/
// PatchAssignment). Completion and failure have their own richer
// operations (CompleteWorkOrder/FailWorkOrder) because both must
// reconcile the owning sortie.
func (s *Service) PatchAssignment(ctx context.Context, assignmentID string, accept bool, progressPercent *int) error {
	if accept {
		if err := s.Scheduler.Accept(ctx, assignmentID); err != nil {
			return err
		}
	}
	if progressPercent != nil {
		return s.Scheduler.RecordProgress(ctx, assignmentID, *progressPercent)
	}
	return nil
}

// StartCoordination begins active coordination of a pending mission,
// decomposing and dispatching its first sorties (spec §6 Pilots/
// agents/StartCoordination — named for the pilot-facing operation that
// kicks off a mission's work, distinct from CreateMission which only
// records intent).
func (s *Service) StartCoordination(ctx context.Context, missionID string) error {
	return s.Missions.StartMission(ctx, missionID)
}

// PilotFleetStats is the aggregate pilot health view (spec §6 Pilots/
// agents/Stats).
type PilotFleetStats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByHealth    map[string]int `json:"by_health"`
	Offline     int            `json:"offline"`
	Workload    int            `json:"current_workload_total"`
	MaxWorkload int            `json:"max_workload_total"`
}

// Stats aggregates fleet-wide pilot health and workload (spec §6
// Pilots/agents/Stats).
func (s *Service) Stats(ctx context.Context) (PilotFleetStats, error) {
	pilots, err := s.Pilots.List(ctx)
	if err != nil {
		return PilotFleetStats{}, err
	}
	out := PilotFleetStats{ByStatus: map[string]int{}, ByHealth: map[string]int{}}
	for _, p := range pilots {
		out.Total++
		out.ByStatus[string(p.Status)]++
		out.Workload += p.CurrentWorkload
		out.MaxWorkload += p.MaxWorkload
		offline := s.Pilots.IsOffline(p)
		if offline {
			out.Offline++
		}
		health := s.Pilots.GetHealth(p, pilot.Health{
			HeartbeatOK:      !offline,
			MemoryOK:         true,
			CPUOK:            true,
			CommunicationOK:  true,
			TaskProcessingOK: true,
		})
		out.ByHealth[string(health)]++
	}
	return out, nil
}
