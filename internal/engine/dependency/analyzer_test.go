package dependency

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"planboard/internal/engine/graph"
)

func dep(src, dst string) graph.Edge {
	return graph.NewEdge(src, dst, graph.RelDependsOn)
}

func blocks(src, dst string) graph.Edge {
	return graph.NewEdge(src, dst, graph.RelBlocks)
}

func weighted(e graph.Edge, w float64) graph.Edge {
	e.Weight = graph.WeightOf(w)
	return e
}

func TestDependencies_BlocksIsInverse(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{
		dep("app", "db"),
		blocks("auth", "app"),
		graph.NewEdge("app", "docs", graph.RelDocuments),
		graph.NewStructuralEdge("root", "app"),
	}

	got := a.Dependencies("app", edges)
	if want := []string{"auth", "db"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Dependencies(app) = %v, want %v", got, want)
	}
	if got := a.Dependents("auth", edges); !reflect.DeepEqual(got, []string{"app"}) {
		t.Errorf("Dependents(auth) = %v", got)
	}
	if got := a.Dependents("docs", edges); len(got) != 0 {
		t.Errorf("soft edges must be ignored, got %v", got)
	}
}

func TestChains(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{dep("a", "b"), dep("b", "c"), dep("a", "d"), dep("c", "a")}

	chain := a.DependencyChain("a", edges)
	sort.Strings(chain)
	if want := []string{"b", "c", "d"}; !reflect.DeepEqual(chain, want) {
		t.Fatalf("DependencyChain(a) = %v, want %v", chain, want)
	}

	dependents := a.DependentChain("d", edges)
	sort.Strings(dependents)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(dependents, want) {
		t.Fatalf("DependentChain(d) = %v, want %v", dependents, want)
	}
}

func TestChains_DepthCap(t *testing.T) {
	a := NewAnalyzer(Options{MaxDepth: 2}, nil)
	edges := []graph.Edge{dep("a", "b"), dep("b", "c"), dep("c", "d"), dep("d", "e")}
	if got := a.DependencyChain("a", edges); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("capped chain = %v", got)
	}
	if got := a.NodeDepth("a", edges); got != 2 {
		t.Errorf("capped depth = %d, want 2", got)
	}
}

func TestNodeDepth(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{dep("a", "b"), dep("b", "c"), dep("a", "c"), blocks("x", "c")}
	tests := map[string]int{"a": 3, "b": 2, "c": 1, "x": 0, "missing": 0}
	for id, want := range tests {
		if got := a.NodeDepth(id, edges); got != want {
			t.Errorf("NodeDepth(%s) = %d, want %d", id, got, want)
		}
	}

	cyclic := []graph.Edge{dep("a", "b"), dep("b", "a")}
	if got := a.NodeDepth("a", cyclic); got != 1 {
		t.Errorf("NodeDepth on a cycle = %d, want 1", got)
	}
}

func TestDepths_CycleIndependentOfOrder(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{dep("a", "b"), dep("b", "c"), dep("c", "a"), dep("c", "d")}

	want := map[string]int{"a": 3, "b": 2, "c": 2, "d": 0}
	for _, entry := range a.Depths(edges) {
		if entry.Depth != want[entry.ID] {
			t.Errorf("Depths reported %s = %d, want %d", entry.ID, entry.Depth, want[entry.ID])
		}
		if single := a.NodeDepth(entry.ID, edges); single != entry.Depth {
			t.Errorf("NodeDepth(%s) = %d disagrees with Depths = %d", entry.ID, single, entry.Depth)
		}
	}
}

func TestDetectCycles(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)

	cycles := a.DetectCycles([]graph.Edge{dep("A", "B"), dep("B", "C"), dep("C", "A")})
	if len(cycles) != 1 {
		t.Fatalf("Expected exactly one cycle, got %v", cycles)
	}
	members := append([]string(nil), cycles[0].Cycle...)
	sort.Strings(members)
	if !reflect.DeepEqual(members, []string{"A", "B", "C"}) {
		t.Errorf("Unexpected cycle members: %v", cycles[0].Cycle)
	}
	if cycles[0].Kind != KindHard {
		t.Errorf("Expected kind %q, got %q", KindHard, cycles[0].Kind)
	}

	if got := a.DetectCycles([]graph.Edge{dep("A", "B"), dep("B", "C")}); len(got) != 0 {
		t.Errorf("Expected no cycles for an acyclic chain, got %v", got)
	}

	// A blocks B while A depends-on B forms a two-node loop.
	if got := a.DetectCycles([]graph.Edge{dep("A", "B"), blocks("A", "B")}); len(got) != 1 || len(got[0].Cycle) != 2 {
		t.Errorf("Expected one two-node cycle, got %v", got)
	}

	if got := a.DetectCycles([]graph.Edge{graph.NewEdge("A", "B", graph.RelRelatedTo), graph.NewEdge("B", "A", graph.RelRelatedTo)}); len(got) != 0 {
		t.Errorf("soft edges must not form cycles, got %v", got)
	}
}

func TestRotationKey(t *testing.T) {
	if rotationKey([]string{"b", "c", "a"}) != rotationKey([]string{"a", "b", "c"}) {
		t.Error("rotations must share a key")
	}
	if rotationKey([]string{"a", "c", "b"}) == rotationKey([]string{"a", "b", "c"}) {
		t.Error("reversed cycles are distinct")
	}
}

func TestCriticalPath(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{weighted(dep("A", "B"), 2), weighted(dep("B", "C"), 3)}

	cp, err := a.CriticalPath(edges, "C")
	if err != nil {
		t.Fatalf("CriticalPath failed: %v", err)
	}
	if cp == nil {
		t.Fatal("Expected a critical path")
	}
	if !reflect.DeepEqual(cp.Path, []string{"C", "B", "A"}) {
		t.Errorf("Path = %v, want [C B A]", cp.Path)
	}
	if cp.TotalWeight != 5 {
		t.Errorf("TotalWeight = %v, want 5", cp.TotalWeight)
	}

	all, err := a.CriticalPath(edges, "")
	if err != nil || all == nil || all.TotalWeight != 5 {
		t.Errorf("unseeded critical path = %+v, %v", all, err)
	}
}

func TestCriticalPath_PicksHeaviestBranch(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{
		blocks("design", "api"),
		weighted(blocks("design", "ui"), 4),
		blocks("api", "release"),
		blocks("ui", "release"),
		graph.NewEdge("release", "notes", graph.RelDocuments),
	}
	cp, err := a.CriticalPath(edges, "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cp.Path, []string{"design", "ui", "release"}) || cp.TotalWeight != 5 {
		t.Errorf("unexpected critical path %+v", cp)
	}
}

func TestCriticalPath_Empty(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	cp, err := a.CriticalPath([]graph.Edge{graph.NewEdge("a", "b", graph.RelReferences)}, "")
	if err != nil || cp != nil {
		t.Errorf("Expected nil path without hard edges, got %+v, %v", cp, err)
	}
	cp, err = a.CriticalPath([]graph.Edge{dep("a", "b")}, "a")
	if err != nil || cp != nil {
		t.Errorf("Expected nil path from a node nothing depends on, got %+v, %v", cp, err)
	}
}

func TestCriticalPath_ZeroWeights(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)

	cp, err := a.CriticalPath([]graph.Edge{weighted(dep("A", "B"), 0)}, "")
	if err != nil || cp != nil {
		t.Errorf("Expected nil path when every edge weighs 0, got %+v, %v", cp, err)
	}

	edges := []graph.Edge{weighted(dep("A", "B"), 0), dep("B", "C")}
	cp, err = a.CriticalPath(edges, "")
	if err != nil || cp == nil {
		t.Fatalf("Expected a path, got %+v, %v", cp, err)
	}
	if !reflect.DeepEqual(cp.Path, []string{"C", "B", "A"}) || cp.TotalWeight != 1 {
		t.Errorf("unexpected critical path %+v", cp)
	}

	_, err = a.CriticalPath([]graph.Edge{weighted(dep("A", "B"), 0), weighted(dep("B", "A"), 0)}, "")
	if !errors.Is(err, ErrCyclicDependencies) {
		t.Errorf("Expected zero-weight cycle to be rejected, got %v", err)
	}
}

func TestCriticalPath_RejectsCycles(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)

	for name, edges := range map[string][]graph.Edge{
		"loop":      {dep("A", "B"), dep("B", "C"), dep("C", "A")},
		"self-edge": {dep("A", "A")},
	} {
		t.Run(name, func(t *testing.T) {
			cp, err := a.CriticalPath(edges, "")
			if cp != nil {
				t.Errorf("Expected no path, got %+v", cp)
			}
			if !errors.Is(err, ErrCyclicDependencies) {
				t.Fatalf("Expected ErrCyclicDependencies, got %v", err)
			}
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) || len(cycleErr.Cycles) != 1 {
				t.Errorf("Expected the cycle to be attached, got %v", err)
			}
		})
	}
}

func TestWouldCreateCycle(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{dep("A", "B"), dep("B", "C")}

	tests := []struct {
		name     string
		src, dst string
		kind     graph.RelationshipType
		want     bool
	}{
		{"closing depends-on", "C", "A", graph.RelDependsOn, true},
		{"forward depends-on", "A", "C", graph.RelDependsOn, false},
		{"closing blocks", "A", "C", graph.RelBlocks, true},
		{"harmless blocks", "C", "A", graph.RelBlocks, false},
		{"self edge", "A", "A", graph.RelDependsOn, true},
		{"soft kind", "C", "A", graph.RelRelatedTo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.WouldCreateCycle(tt.src, tt.dst, edges, tt.kind); got != tt.want {
				t.Errorf("WouldCreateCycle(%s, %s, %s) = %v, want %v", tt.src, tt.dst, tt.kind, got, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := Stats([]graph.Edge{
		dep("a", "b"),
		blocks("b", "c"),
		graph.NewEdge("d", "a", graph.RelDocuments),
		graph.NewStructuralEdge("p", "a"),
		{Source: "p", Target: "b"},
	})
	if s.Total != 5 || s.Hard != 2 || s.Soft != 1 || s.Structural != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.ByType[graph.RelStructural] != 2 {
		t.Errorf("empty kinds should count as structural, got %v", s.ByType)
	}
}

func TestSuggestRelationships(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	nodes := []graph.Node{
		{ID: "ui", Type: graph.TypeFrontend},
		{ID: "api", Type: graph.TypeBackend},
		{ID: "req", Type: graph.TypeRequirement},
		{ID: "guide", Type: graph.TypeDoc},
		{ID: "tech", Type: graph.TypeClassification},
	}
	edges := []graph.Edge{graph.NewEdge("api", "req", graph.RelImplements)}

	got := a.SuggestRelationships(nodes, edges)
	want := []Suggestion{
		{Source: "guide", Target: "api", RelationshipType: graph.RelDocuments},
		{Source: "guide", Target: "req", RelationshipType: graph.RelDocuments},
		{Source: "guide", Target: "ui", RelationshipType: graph.RelDocuments},
		{Source: "ui", Target: "api", RelationshipType: graph.RelDependsOn},
		{Source: "ui", Target: "req", RelationshipType: graph.RelImplements},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d suggestions, got %+v", len(want), got)
	}
	for i := range want {
		if got[i].Source != want[i].Source || got[i].Target != want[i].Target || got[i].RelationshipType != want[i].RelationshipType {
			t.Errorf("suggestion %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	capped := NewAnalyzer(Options{MaxSuggestions: 2}, nil).SuggestRelationships(nodes, edges)
	if len(capped) != 2 {
		t.Errorf("Expected cap of 2, got %d", len(capped))
	}
}

func TestSummarize(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	edges := []graph.Edge{dep("a", "b"), dep("b", "a"), dep("c", "a")}
	s := a.Summarize(nil, edges)
	if len(s.Cycles) != 1 {
		t.Errorf("Expected 1 cycle, got %v", s.Cycles)
	}
	if !errors.Is(s.CriticalPathErr, ErrCyclicDependencies) {
		t.Errorf("Expected cyclic error, got %v", s.CriticalPathErr)
	}
	if len(s.Deepest) == 0 || s.Deepest[0].ID != "c" {
		t.Errorf("Expected c to be deepest, got %+v", s.Deepest)
	}
}
