package graph

import (
	"sort"
	"strings"
)

// Index is a read-only adjacency view over a node/edge snapshot. It copies
// nothing the caller owns and never mutates its inputs.
type Index struct {
	order []string
	nodes map[string]Node

	// Relationships
	outgoing map[string][]Edge // source -> edges
	incoming map[string][]Edge // target -> edges
	keys     map[EdgeKey]bool
	pairs    map[[2]string]bool
}

func NewIndex(nodes []Node, edges []Edge) *Index {
	ix := &Index{
		order:    make([]string, 0, len(nodes)),
		nodes:    make(map[string]Node, len(nodes)),
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
		keys:     make(map[EdgeKey]bool, len(edges)),
		pairs:    make(map[[2]string]bool, len(edges)),
	}

	for _, n := range nodes {
		if _, dup := ix.nodes[n.ID]; dup {
			continue
		}
		ix.order = append(ix.order, n.ID)
		ix.nodes[n.ID] = n
	}

	for _, e := range edges {
		ix.outgoing[e.Source] = append(ix.outgoing[e.Source], e)
		ix.incoming[e.Target] = append(ix.incoming[e.Target], e)
		ix.keys[e.Key()] = true
		ix.pairs[[2]string{e.Source, e.Target}] = true
	}

	return ix
}

func (ix *Index) Node(id string) (Node, bool) {
	n, ok := ix.nodes[id]
	return n, ok
}

func (ix *Index) Has(id string) bool {
	_, ok := ix.nodes[id]
	return ok
}

func (ix *Index) Len() int {
	return len(ix.order)
}

// Nodes returns the nodes in input order.
func (ix *Index) Nodes() []Node {
	out := make([]Node, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.nodes[id])
	}
	return out
}

func (ix *Index) SortedIDs() []string {
	ids := append([]string(nil), ix.order...)
	sort.Strings(ids)
	return ids
}

func (ix *Index) Outgoing(id string) []Edge {
	return ix.outgoing[id]
}

func (ix *Index) Incoming(id string) []Edge {
	return ix.incoming[id]
}

// StructuralParents returns the ids of the sources of id's incoming
// hierarchy edges, in edge order.
func (ix *Index) StructuralParents(id string) []string {
	var parents []string
	for _, e := range ix.incoming[id] {
		if e.RelationshipType.IsStructural() {
			parents = append(parents, e.Source)
		}
	}
	return parents
}

func (ix *Index) StructuralChildren(id string) []string {
	var children []string
	for _, e := range ix.outgoing[id] {
		if e.RelationshipType.IsStructural() {
			children = append(children, e.Target)
		}
	}
	return children
}

// HasStructuralParent reports whether id has at least one incoming hierarchy
// edge.
func (ix *Index) HasStructuralParent(id string) bool {
	for _, e := range ix.incoming[id] {
		if e.RelationshipType.IsStructural() {
			return true
		}
	}
	return false
}

// HasEdge reports whether an edge with the same endpoints and kind exists.
func (ix *Index) HasEdge(source, target string, kind RelationshipType) bool {
	return ix.keys[Edge{Source: source, Target: target, RelationshipType: kind}.Key()]
}

// Connected reports whether any edge links a and b in either direction.
func (ix *Index) Connected(a, b string) bool {
	return ix.pairs[[2]string{a, b}] || ix.pairs[[2]string{b, a}]
}

// Root returns the plan's ring-0 node. The conventional "center" id wins over
// a root-typed node, which wins over any other ring-0 node.
func (ix *Index) Root() (Node, bool) {
	if n, ok := ix.nodes[RootID]; ok {
		return n, true
	}
	for _, id := range ix.SortedIDs() {
		if n := ix.nodes[id]; n.Type == TypeRoot {
			return n, true
		}
	}
	for _, id := range ix.SortedIDs() {
		if n := ix.nodes[id]; n.Ring == RingRoot {
			return n, true
		}
	}
	return Node{}, false
}

// AtRing returns the nodes stored at ring r, sorted by id.
func (ix *Index) AtRing(r int) []Node {
	var out []Node
	for _, id := range ix.SortedIDs() {
		if n := ix.nodes[id]; n.Ring == r {
			out = append(out, n)
		}
	}
	return out
}

// FindByLabel returns every node whose label equals label case-insensitively,
// sorted by id.
func (ix *Index) FindByLabel(label string) []Node {
	want := strings.TrimSpace(label)
	if want == "" {
		return nil
	}
	var out []Node
	for _, id := range ix.SortedIDs() {
		n := ix.nodes[id]
		if strings.EqualFold(strings.TrimSpace(n.Label), want) {
			out = append(out, n)
		}
	}
	return out
}
