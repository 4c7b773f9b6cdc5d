package scheduler

import (
	"sort"

	"github.com/gammazero/toposort"
)

// depGraph tracks dependency edges between task IDs. Both directions are
// stored so dependents and dependencies are O(1) lookups; the two adjacency
// maps are kept as exact mutual inverses.
//
// Edges may reference IDs with no live task behind them. Such dangling
// references are valid: they are excluded from ordering and simply never
// resolve.
type depGraph struct {
	dependsOn  map[string]map[string]struct{} // task -> IDs it depends on
	dependedBy map[string]map[string]struct{} // task -> IDs that depend on it
}

func newDepGraph() *depGraph {
	return &depGraph{
		dependsOn:  make(map[string]map[string]struct{}),
		dependedBy: make(map[string]map[string]struct{}),
	}
}

// setTask replaces the outgoing edges of a task with the given dependency
// list, updating reverse edges to match.
func (g *depGraph) setTask(id string, deps []Dependency) {
	g.clearTask(id)

	if len(deps) == 0 {
		return
	}
	set := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		set[dep.TaskID] = struct{}{}
		rev, ok := g.dependedBy[dep.TaskID]
		if !ok {
			rev = make(map[string]struct{})
			g.dependedBy[dep.TaskID] = rev
		}
		rev[id] = struct{}{}
	}
	g.dependsOn[id] = set
}

// clearTask removes the task's outgoing edges. Incoming edges from other
// tasks are kept: those dependencies become dangling references.
func (g *depGraph) clearTask(id string) {
	for depID := range g.dependsOn[id] {
		rev := g.dependedBy[depID]
		delete(rev, id)
		if len(rev) == 0 {
			delete(g.dependedBy, depID)
		}
	}
	delete(g.dependsOn, id)
}

// dependencies returns the sorted IDs the given task depends on.
func (g *depGraph) dependencies(id string) []string {
	return sortedKeys(g.dependsOn[id])
}

// dependents returns the sorted IDs that depend on the given task.
func (g *depGraph) dependents(id string) []string {
	return sortedKeys(g.dependedBy[id])
}

// order returns the task IDs in dependency-respecting order: a task's
// dependencies come before the task itself. Only live tasks participate;
// edges to dangling IDs are ignored for ordering purposes.
//
// When the graph contains a cycle a strict topological sort is impossible.
// Rather than fail, order falls back to grouping tasks by ascending count of
// direct dependencies, each group sorted by insertion time then ID. The
// fallback is deterministic and always terminates; it degrades ordering
// quality but never deadlocks scheduling.
func (g *depGraph) order(tasks map[string]*Task) []string {
	if len(tasks) == 0 {
		return nil
	}

	var edges []toposort.Edge
	for id := range tasks {
		deps := g.dependsOn[id]
		live := 0
		for depID := range deps {
			if _, ok := tasks[depID]; ok {
				edges = append(edges, toposort.Edge{depID, id})
				live++
			}
		}
		if live == 0 {
			// No live dependencies; anchor with a nil edge so the task is
			// still part of the sort.
			edges = append(edges, toposort.Edge{nil, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return g.fallbackOrder(tasks)
	}

	order := make([]string, 0, len(tasks))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order
}

// fallbackOrder is the cycle-tolerant ordering: ascending direct dependency
// count, ties broken by insertion time, then ID.
func (g *depGraph) fallbackOrder(tasks map[string]*Task) []string {
	order := make([]string, 0, len(tasks))
	for id := range tasks {
		order = append(order, id)
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := tasks[order[i]], tasks[order[j]]
		if len(a.Dependencies) != len(b.Dependencies) {
			return len(a.Dependencies) < len(b.Dependencies)
		}
		if !a.InsertedAt.Equal(b.InsertedAt) {
			return a.InsertedAt.Before(b.InsertedAt)
		}
		return a.ID < b.ID
	})
	return order
}

// checkInverse verifies the mutual-inverse invariant between the adjacency
// maps. Used by tests; returns false on the first inconsistency.
func (g *depGraph) checkInverse() bool {
	for id, deps := range g.dependsOn {
		for depID := range deps {
			if _, ok := g.dependedBy[depID][id]; !ok {
				return false
			}
		}
	}
	for id, revs := range g.dependedBy {
		for revID := range revs {
			if _, ok := g.dependsOn[revID][id]; !ok {
				return false
			}
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
