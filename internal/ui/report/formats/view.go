package formats

import (
	"fmt"
	"sort"

	"planboard/internal/engine/graph"
)

// PlanView is everything a renderer needs about one analyzed plan.
type PlanView struct {
	Nodes []graph.Node
	Edges []graph.Edge
	// Cycles list node ids in wait order: Cycles[i][k] waits on Cycles[i][k+1].
	Cycles [][]string
	// CriticalPath is in execution order.
	CriticalPath []string
	Orphans      []string
}

// waitPair is (waiter, waitedOn) for a hard dependency edge.
type waitPair struct{ waiter, waitedOn string }

func pairOf(e graph.Edge) (waitPair, bool) {
	switch e.RelationshipType {
	case graph.RelDependsOn:
		return waitPair{e.Source, e.Target}, true
	case graph.RelBlocks:
		return waitPair{e.Target, e.Source}, true
	default:
		return waitPair{}, false
	}
}

func (v PlanView) cycleNodes() map[string]bool {
	out := make(map[string]bool)
	for _, c := range v.Cycles {
		for _, id := range c {
			out[id] = true
		}
	}
	return out
}

func (v PlanView) cyclePairs() map[waitPair]bool {
	out := make(map[waitPair]bool)
	for _, c := range v.Cycles {
		for i := range c {
			out[waitPair{c[i], c[(i+1)%len(c)]}] = true
		}
	}
	return out
}

func (v PlanView) criticalPairs() map[waitPair]bool {
	out := make(map[waitPair]bool)
	for i := 0; i+1 < len(v.CriticalPath); i++ {
		out[waitPair{v.CriticalPath[i+1], v.CriticalPath[i]}] = true
	}
	return out
}

func (v PlanView) isCycleEdge(e graph.Edge, pairs map[waitPair]bool) bool {
	p, ok := pairOf(e)
	return ok && pairs[p]
}

// ringGroups buckets nodes by ring in ascending order; nodes without a valid
// ring land in the graph.NoRing bucket, which sorts first.
func ringGroups(nodes []graph.Node) ([]int, map[int][]graph.Node) {
	groups := make(map[int][]graph.Node)
	for _, n := range nodes {
		ring := n.Ring
		if ring < graph.RingRoot || ring > graph.RingLeaf {
			ring = graph.NoRing
		}
		groups[ring] = append(groups[ring], n)
	}
	rings := make([]int, 0, len(groups))
	for r, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		rings = append(rings, r)
	}
	sort.Ints(rings)
	return rings, groups
}

func ringTitle(ring int) string {
	switch ring {
	case graph.RingRoot:
		return "Ring 0: Root"
	case graph.RingClassification:
		return "Ring 1: Classifications"
	case graph.RingDomainParent:
		return "Ring 2: Domain parents"
	case graph.RingLeaf:
		return "Ring 3: Work items"
	default:
		return "Unplaced"
	}
}

func ringKey(ring int) string {
	if ring == graph.NoRing {
		return "ring_none"
	}
	return fmt.Sprintf("ring_%d", ring)
}

func sortedEdges(edges []graph.Edge) []graph.Edge {
	out := append([]graph.Edge(nil), edges...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].RelationshipType < out[j].RelationshipType
	})
	return out
}

func nodeIDs(nodes []graph.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}
