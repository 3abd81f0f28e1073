package scheduler

import "github.com/v1truv1us/fleettools-sub010/internal/ferr"

// checkAcyclic runs a DFS over deps (spec §4.6: "cycles are rejected
// at submission time by a DFS check") and returns an InvalidInput
// error naming the cycle if one exists reachable from startTaskID —
// the submission itself is malformed, not a transient conflict with
// other in-flight state.
func checkAcyclic(deps []TaskDependency, startTaskID string) error {
	adjacency := make(map[string][]string, len(deps))
	for _, d := range deps {
		adjacency[d.TaskID] = append(adjacency[d.TaskID], d.DependsOnTaskID)
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int)
	var path []string

	var visit func(taskID string) error
	visit = func(taskID string) error {
		switch state[taskID] {
		case done:
			return nil
		case visiting:
			return ferr.New(ferr.InvalidInput, "dependency cycle detected").
				WithDetails(map[string]any{"cycle": append(append([]string{}, path...), taskID)})
		}
		state[taskID] = visiting
		path = append(path, taskID)
		for _, next := range adjacency[taskID] {
			if err := visit(next); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[taskID] = done
		return nil
	}

	return visit(startTaskID)
}

// eligible reports whether every dependency in deps for taskID is
// resolved (spec §4.6: "eligible only when every depends_on_task_id
// has status=completed (or success per dependency type)").
func eligible(deps []TaskDependency, taskID string) bool {
	for _, d := range deps {
		if d.TaskID == taskID && d.Status != DependencyResolved {
			return false
		}
	}
	return true
}
