package scheduler

import (
	"testing"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

func TestCheckAcyclicDetectsCycle(t *testing.T) {
	deps := []TaskDependency{
		{TaskID: "wo-a", DependsOnTaskID: "wo-b"},
		{TaskID: "wo-b", DependsOnTaskID: "wo-c"},
		{TaskID: "wo-c", DependsOnTaskID: "wo-a"},
	}
	err := checkAcyclic(deps, "wo-a")
	if ferr.KindOf(err) != ferr.InvalidInput {
		t.Fatalf("expected InvalidInput for a three-node cycle, got %v", err)
	}
}

func TestCheckAcyclicAllowsDiamondDependency(t *testing.T) {
	deps := []TaskDependency{
		{TaskID: "wo-a", DependsOnTaskID: "wo-b"},
		{TaskID: "wo-a", DependsOnTaskID: "wo-c"},
		{TaskID: "wo-b", DependsOnTaskID: "wo-d"},
		{TaskID: "wo-c", DependsOnTaskID: "wo-d"},
	}
	if err := checkAcyclic(deps, "wo-a"); err != nil {
		t.Fatalf("diamond dependency is acyclic, got %v", err)
	}
}

func TestEligibleRequiresAllDependenciesResolved(t *testing.T) {
	deps := []TaskDependency{
		{TaskID: "wo-a", DependsOnTaskID: "wo-b", Status: DependencyResolved},
		{TaskID: "wo-a", DependsOnTaskID: "wo-c", Status: DependencyPending},
	}
	if eligible(deps, "wo-a") {
		t.Fatalf("expected ineligible while one dependency is pending")
	}
	deps[1].Status = DependencyResolved
	if !eligible(deps, "wo-a") {
		t.Fatalf("expected eligible once all dependencies resolved")
	}
}
