// Package dependency analyses the hard-dependency subgraph of a plan:
// dependency sets and chains, cycles, the weighted critical path and
// relationship statistics.
package dependency

import (
	"log/slog"
	"sort"

	"planboard/internal/engine/graph"
	"planboard/internal/shared/util"
)

const (
	DefaultMaxDepth       = 512
	DefaultMaxSuggestions = 10
)

type Options struct {
	// MaxDepth bounds chain expansion and depth computation.
	MaxDepth int
	// MaxSuggestions caps SuggestRelationships.
	MaxSuggestions int
}

func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth, MaxSuggestions: DefaultMaxSuggestions}
}

type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

func NewAnalyzer(opts Options, logger *slog.Logger) *Analyzer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{opts: opts, logger: logger}
}

// depGraph is the normalized hard-dependency view: deps[x] holds what x waits
// on, dependents[x] what waits on x. "A depends-on B" and "B blocks A" both
// produce deps[A] = {B}.
type depGraph struct {
	ids        []string
	deps       map[string][]string
	dependents map[string][]string
}

func newDepGraph(edges []graph.Edge) *depGraph {
	depSet := make(map[string]map[string]bool)
	revSet := make(map[string]map[string]bool)
	ids := make(map[string]bool)

	add := func(m map[string]map[string]bool, k, v string) {
		if m[k] == nil {
			m[k] = make(map[string]bool)
		}
		m[k][v] = true
	}

	for _, e := range edges {
		var waiter, waitedOn string
		switch e.RelationshipType {
		case graph.RelDependsOn:
			waiter, waitedOn = e.Source, e.Target
		case graph.RelBlocks:
			waiter, waitedOn = e.Target, e.Source
		default:
			continue
		}
		ids[waiter] = true
		ids[waitedOn] = true
		add(depSet, waiter, waitedOn)
		add(revSet, waitedOn, waiter)
	}

	g := &depGraph{
		deps:       make(map[string][]string, len(depSet)),
		dependents: make(map[string][]string, len(revSet)),
	}
	for id := range ids {
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)
	for k, set := range depSet {
		g.deps[k] = util.SortedStringKeys(set)
	}
	for k, set := range revSet {
		g.dependents[k] = util.SortedStringKeys(set)
	}
	return g
}

// Dependencies returns the nodes nodeID waits on directly.
func (a *Analyzer) Dependencies(nodeID string, edges []graph.Edge) []string {
	return append([]string(nil), newDepGraph(edges).deps[nodeID]...)
}

// Dependents returns the nodes waiting on nodeID directly.
func (a *Analyzer) Dependents(nodeID string, edges []graph.Edge) []string {
	return append([]string(nil), newDepGraph(edges).dependents[nodeID]...)
}

// DependencyChain returns every node nodeID transitively waits on, in
// depth-first discovery order.
func (a *Analyzer) DependencyChain(nodeID string, edges []graph.Edge) []string {
	return a.walk(nodeID, newDepGraph(edges).deps)
}

// DependentChain returns every node transitively waiting on nodeID.
func (a *Analyzer) DependentChain(nodeID string, edges []graph.Edge) []string {
	return a.walk(nodeID, newDepGraph(edges).dependents)
}

func (a *Analyzer) walk(start string, adj map[string][]string) []string {
	type frame struct {
		id    string
		depth int
	}
	visited := map[string]bool{start: true}
	var out []string
	stack := []frame{{id: start}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.id != start {
			out = append(out, f.id)
		}
		if f.depth >= a.opts.MaxDepth {
			continue
		}
		next := adj[f.id]
		// Push in reverse so the smallest id is expanded first.
		for i := len(next) - 1; i >= 0; i-- {
			if visited[next[i]] {
				continue
			}
			visited[next[i]] = true
			stack = append(stack, frame{id: next[i], depth: f.depth + 1})
		}
	}
	return out
}

// NodeDepth returns the length of the longest dependency chain below nodeID,
// 0 when it waits on nothing. Cyclic back-edges contribute nothing and the
// result is capped at MaxDepth. Inside a cycle the depth is the longest simple
// chain starting at nodeID, whatever order nodes are evaluated in.
func (a *Analyzer) NodeDepth(nodeID string, edges []graph.Edge) int {
	d, _ := a.depthOf(nodeID, newDepGraph(edges), make(map[string]int), make(map[string]bool), 0)
	return d
}

// depthOf reports whether the result is exact: no on-path ancestor was pruned
// and the depth cap was not hit below id. Only exact depths are memoized.
func (a *Analyzer) depthOf(id string, g *depGraph, memo map[string]int, onPath map[string]bool, level int) (int, bool) {
	if d, ok := memo[id]; ok {
		return d, true
	}
	if level >= a.opts.MaxDepth {
		return 0, false
	}
	onPath[id] = true
	best, exact := 0, true
	for _, dep := range g.deps[id] {
		if onPath[dep] {
			exact = false
			continue
		}
		d, ok := a.depthOf(dep, g, memo, onPath, level+1)
		exact = exact && ok
		if d+1 > best {
			best = d + 1
		}
	}
	onPath[id] = false
	if exact {
		memo[id] = best
	}
	return best, exact
}

// NodeDepthEntry pairs a node with its dependency depth.
type NodeDepthEntry struct {
	ID    string
	Depth int
}

// Depths computes the depth of every node taking part in a hard dependency,
// deepest first.
func (a *Analyzer) Depths(edges []graph.Edge) []NodeDepthEntry {
	g := newDepGraph(edges)
	memo := make(map[string]int)
	out := make([]NodeDepthEntry, 0, len(g.ids))
	for _, id := range g.ids {
		d, _ := a.depthOf(id, g, memo, make(map[string]bool), 0)
		out = append(out, NodeDepthEntry{ID: id, Depth: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth > out[j].Depth })
	return out
}
