package dependency

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"planboard/internal/engine/graph"
)

// ErrCyclicDependencies is returned when a critical path is requested over a
// dependency graph that contains a loop.
var ErrCyclicDependencies = errors.New("hard dependencies contain a cycle")

// CycleError carries the loops that prevented a critical-path computation.
type CycleError struct {
	Cycles []CircularDependency
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s (%d cycle(s))", ErrCyclicDependencies.Error(), len(e.Cycles))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependencies
}

// CriticalPath is the heaviest chain of work in execution order: each node is
// a dependency of the next.
type CriticalPath struct {
	Path        []string
	TotalWeight float64
}

type weightedEdge struct {
	to     string
	weight float64
}

// execGraph orients hard edges from dependency to dependent. Parallel edges
// keep the heaviest weight.
func execGraph(edges []graph.Edge) (ids []string, adj map[string][]weightedEdge, selfLoop bool) {
	weights := make(map[[2]string]float64)
	seen := make(map[string]bool)
	for _, e := range edges {
		var from, to string
		switch e.RelationshipType {
		case graph.RelDependsOn:
			from, to = e.Target, e.Source
		case graph.RelBlocks:
			from, to = e.Source, e.Target
		default:
			continue
		}
		if from == to {
			selfLoop = true
		}
		seen[from], seen[to] = true, true
		k := [2]string{from, to}
		if w, ok := weights[k]; !ok || e.EffectiveWeight() > w {
			weights[k] = e.EffectiveWeight()
		}
	}

	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	adj = make(map[string][]weightedEdge)
	for k, w := range weights {
		adj[k[0]] = append(adj[k[0]], weightedEdge{to: k[1], weight: w})
	}
	for id := range adj {
		sort.Slice(adj[id], func(i, j int) bool { return adj[id][i].to < adj[id][j].to })
	}
	return ids, adj, selfLoop
}

// acyclic orders the execution graph with gonum and reports whether it is a
// DAG.
func acyclic(ids []string, adj map[string][]weightedEdge) bool {
	idx := make(map[string]int64, len(ids))
	g := simple.NewDirectedGraph()
	for i, id := range ids {
		idx[id] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for from, out := range adj {
		for _, e := range out {
			g.SetEdge(g.NewEdge(simple.Node(idx[from]), simple.Node(idx[e.to])))
		}
	}
	_, err := topo.Sort(g)
	var unorderable topo.Unorderable
	return !errors.As(err, &unorderable)
}

// CriticalPath returns the maximum-weight chain through the hard-dependency
// graph. With a non-empty startID only paths beginning there are considered.
// It returns nil when no positive-weight path exists and a *CycleError when
// the graph is not acyclic.
func (a *Analyzer) CriticalPath(edges []graph.Edge, startID string) (*CriticalPath, error) {
	ids, adj, selfLoop := execGraph(edges)
	if len(ids) == 0 {
		return nil, nil
	}
	if selfLoop || !acyclic(ids, adj) {
		return nil, &CycleError{Cycles: a.DetectCycles(edges)}
	}

	var seeds []string
	if startID != "" {
		if _, ok := adj[startID]; !ok {
			return nil, nil
		}
		seeds = []string{startID}
	} else {
		indeg := make(map[string]int, len(ids))
		for _, out := range adj {
			for _, e := range out {
				indeg[e.to]++
			}
		}
		for _, id := range ids {
			if indeg[id] == 0 {
				seeds = append(seeds, id)
			}
		}
	}

	// Restrict in-degrees to the part reachable from the seeds so the
	// relaxation drains completely.
	reach := make(map[string]bool)
	stack := append([]string(nil), seeds...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[id] {
			continue
		}
		reach[id] = true
		for _, e := range adj[id] {
			stack = append(stack, e.to)
		}
	}
	indeg := make(map[string]int)
	for id := range reach {
		for _, e := range adj[id] {
			indeg[e.to]++
		}
	}

	dist := make(map[string]float64, len(reach))
	pred := make(map[string]string)
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		dist[s] = 0
		if indeg[s] == 0 {
			queue = append(queue, s)
		}
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range adj[u] {
			cand := dist[u] + e.weight
			best, known := dist[e.to]
			if !known || cand > best || (cand == best && u < pred[e.to]) {
				dist[e.to] = cand
				pred[e.to] = u
			}
			indeg[e.to]--
			if indeg[e.to] == 0 {
				queue = append(queue, e.to)
			}
		}
	}

	end, total := "", 0.0
	for _, id := range ids {
		d, ok := dist[id]
		if ok && d > total {
			end, total = id, d
		}
	}
	if end == "" {
		return nil, nil
	}

	path := []string{end}
	for cur := end; ; {
		p, ok := pred[cur]
		if !ok {
			break
		}
		path = append(path, p)
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	a.logger.Debug("critical path computed", "length", len(path), "weight", total)
	return &CriticalPath{Path: path, TotalWeight: total}, nil
}
