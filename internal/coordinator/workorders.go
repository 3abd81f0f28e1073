package coordinator

import (
	"context"
	"strings"

	"github.com/v1truv1us/fleettools-sub010/internal/mailbox"
	"github.com/v1truv1us/fleettools-sub010/internal/scheduler"
)

// CreateWorkOrder submits a new work order (spec §6 Work orders/Create).
func (s *Service) CreateWorkOrder(ctx context.Context, workType, description string, priority scheduler.Priority, preferredAgentType, sortieID string, deps []scheduler.TaskDependency) (scheduler.WorkOrder, error) {
	wo, err := s.Scheduler.SubmitWorkOrder(ctx, workType, description, priority, preferredAgentType, sortieID, deps)
	if err != nil {
		return wo, err
	}
	s.observe("scheduler", "", wo.WorkOrderID, "work_order_created", map[string]any{"work_type": workType})
	return wo, nil
}

// GetWorkOrder returns a single work order (spec §6 Work orders/Get).
func (s *Service) GetWorkOrder(ctx context.Context, workOrderID string) (scheduler.WorkOrder, error) {
	return s.Scheduler.GetWorkOrder(ctx, workOrderID)
}

// ListWorkOrders lists every work order, optionally scoped to a sortie
// (spec §6 Work orders/List).
func (s *Service) ListWorkOrders(ctx context.Context, sortieID string) ([]scheduler.WorkOrder, error) {
	return s.Scheduler.ListWorkOrders(ctx, sortieID)
}

// PatchWorkOrder applies a partial status/priority/assignment update
// (spec §6 Work orders/Patch).
func (s *Service) PatchWorkOrder(ctx context.Context, workOrderID string, status scheduler.WorkOrderStatus, priority scheduler.Priority, assignedTo string) (scheduler.WorkOrder, error) {
	return s.Scheduler.PatchWorkOrder(ctx, workOrderID, status, priority, assignedTo)
}

// DeleteWorkOrder retracts a pending work order (spec §6 Work
// orders/Delete).
func (s *Service) DeleteWorkOrder(ctx context.Context, workOrderID string) error {
	return s.Scheduler.DeleteWorkOrder(ctx, workOrderID)
}

// dispatchKeywords derives the scoring keywords for a work order from
// its declared work type and description, matching FindByCapability's
// plain-token expectation.
func dispatchKeywords(workType, description string) []string {
	words := strings.Fields(strings.ToLower(workType + " " + description))
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// DispatchWorkOrder selects and assigns the best eligible pilot for a
// pending work order. It is not one of spec §6's table rows directly —
// it is how CreateAssignment (Pilots/agents group) is actually driven
// for a work order rather than a manually-chosen pilot.
func (s *Service) DispatchWorkOrder(ctx context.Context, workOrderID string) (scheduler.Assignment, error) {
	wo, err := s.Scheduler.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return scheduler.Assignment{}, err
	}
	assignment, err := s.Scheduler.Dispatch(ctx, workOrderID, dispatchKeywords(wo.WorkType, wo.Description))
	if err != nil {
		return assignment, err
	}
	if _, err := s.Mailboxes.Post(ctx, assignment.PilotID, "task_assignment", map[string]any{
		"work_order_id": workOrderID,
		"assignment_id": assignment.AssignmentID,
	}, mailbox.WithCorrelationID(workOrderID)); err != nil {
		return assignment, err
	}
	s.observe("scheduler", "", workOrderID, "work_order_assigned", map[string]any{"pilot_id": assignment.PilotID})
	return assignment, nil
}

// CompleteWorkOrder marks an assignment complete and reconciles the
// owning sortie/mission, closing the gap between the scheduler's
// assignment state machine and the orchestrator's sortie state
// machine — the two packages cannot reference each other directly
// (orchestrator already depends on scheduler for eligibility), so the
// composition root is where a terminal outcome crosses from one to
// the other.
func (s *Service) CompleteWorkOrder(ctx context.Context, assignmentID string) error {
	wo, assignment, err := s.workOrderForAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if err := s.Scheduler.Complete(ctx, assignmentID); err != nil {
		return err
	}
	if err := s.Scheduler.ResolveDependency(ctx, wo.WorkOrderID, scheduler.DependencyCompletion); err != nil {
		return err
	}
	if err := s.Scheduler.ResolveDependency(ctx, wo.WorkOrderID, scheduler.DependencySuccess); err != nil {
		return err
	}
	if wo.SortieID == "" {
		return nil
	}
	s.observe("scheduler", "", assignment.WorkOrderID, "work_order_completed", nil)
	if err := s.Missions.HandleWorkOrderTerminal(ctx, wo.SortieID, wo.WorkOrderID, false); err != nil {
		return err
	}
	s.learnFromMissionIfDone(ctx, wo.SortieID)
	return nil
}

// FailWorkOrder records a terminal or retryable failure. Only a
// terminal failure (retries exhausted) is reported to the orchestrator
// as a sortie blocker — a work order still eligible for retry stays
// pending and its sortie stays open.
func (s *Service) FailWorkOrder(ctx context.Context, assignmentID, errMsg string) (retryDelay string, terminal bool, err error) {
	wo, _, err := s.workOrderForAssignment(ctx, assignmentID)
	if err != nil {
		return "", false, err
	}
	delay, terminalFail, err := s.Scheduler.Fail(ctx, assignmentID, errMsg, s.Config.TaskRetryLimit)
	if err != nil {
		return "", false, err
	}
	if !terminalFail {
		return delay.String(), false, nil
	}
	if err := s.Scheduler.ResolveDependency(ctx, wo.WorkOrderID, scheduler.DependencyCompletion); err != nil {
		return delay.String(), true, err
	}
	if wo.SortieID == "" {
		return delay.String(), true, nil
	}
	s.observe("scheduler", "", wo.WorkOrderID, "work_order_failed", map[string]any{"error": errMsg})
	if err := s.Missions.HandleWorkOrderTerminal(ctx, wo.SortieID, wo.WorkOrderID, true); err != nil {
		return delay.String(), true, err
	}
	s.learnFromMissionIfDone(ctx, wo.SortieID)
	return delay.String(), true, nil
}

func (s *Service) workOrderForAssignment(ctx context.Context, assignmentID string) (scheduler.WorkOrder, scheduler.Assignment, error) {
	assignment, err := s.Scheduler.GetAssignment(ctx, assignmentID)
	if err != nil {
		return scheduler.WorkOrder{}, scheduler.Assignment{}, err
	}
	wo, err := s.Scheduler.GetWorkOrder(ctx, assignment.WorkOrderID)
	if err != nil {
		return scheduler.WorkOrder{}, scheduler.Assignment{}, err
	}
	return wo, assignment, nil
}
