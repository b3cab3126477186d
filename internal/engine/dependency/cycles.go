package dependency

import (
	"strings"

	"planboard/internal/engine/graph"
)

const KindHard = "hard"

// CircularDependency is one dependency loop. Cycle lists the nodes in
// "waits on" order; the last node waits on the first.
type CircularDependency struct {
	Cycle []string
	Kind  string
}

// DetectCycles finds dependency loops over depends-on and blocks edges.
// Cycles that are rotations of one already found are reported once.
func (a *Analyzer) DetectCycles(edges []graph.Edge) []CircularDependency {
	g := newDepGraph(edges)

	type frame struct {
		id   string
		next int
	}

	var cycles []CircularDependency
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	onStack := make(map[string]int)

	for _, start := range g.ids {
		if visited[start] {
			continue
		}
		var path []string
		stack := []frame{{id: start}}
		visited[start] = true
		onStack[start] = 0
		path = append(path, start)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.deps[top.id]
			if top.next >= len(deps) {
				delete(onStack, top.id)
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
				continue
			}
			next := deps[top.next]
			top.next++

			if pos, ok := onStack[next]; ok {
				cycle := make([]string, len(path)-pos)
				copy(cycle, path[pos:])
				if key := rotationKey(cycle); !seen[key] {
					seen[key] = true
					cycles = append(cycles, CircularDependency{Cycle: cycle, Kind: KindHard})
				}
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			onStack[next] = len(path)
			path = append(path, next)
			stack = append(stack, frame{id: next})
		}
	}

	if len(cycles) > 0 {
		a.logger.Debug("dependency cycles detected", "count", len(cycles))
	}
	return cycles
}

// rotationKey is identical for every rotation of the same cycle.
func rotationKey(cycle []string) string {
	lo := 0
	for i := range cycle {
		if cycle[i] < cycle[lo] {
			lo = i
		}
	}
	rotated := make([]string, 0, len(cycle))
	rotated = append(rotated, cycle[lo:]...)
	rotated = append(rotated, cycle[:lo]...)
	return strings.Join(rotated, "\x00")
}

// WouldCreateCycle reports whether adding source -> target of the given kind
// would close a dependency loop. Only hard kinds can form cycles.
func (a *Analyzer) WouldCreateCycle(sourceID, targetID string, edges []graph.Edge, kind graph.RelationshipType) bool {
	if !kind.IsHard() {
		return false
	}
	if sourceID == targetID {
		return true
	}
	waiter, waitedOn := sourceID, targetID
	if kind == graph.RelBlocks {
		waiter, waitedOn = targetID, sourceID
	}
	// The new edge makes waiter wait on waitedOn; a loop exists if waitedOn
	// already waits on waiter.
	g := newDepGraph(edges)
	queue := []string{waitedOn}
	visited := map[string]bool{waitedOn: true}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, dep := range g.deps[curr] {
			if dep == waiter {
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return false
}
