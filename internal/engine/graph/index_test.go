package graph

import "testing"

func samplePlan() ([]Node, []Edge) {
	nodes := []Node{
		{ID: "center", Label: "Plan", Type: TypeRoot, Ring: 0},
		{ID: "classification-tech", Label: "Technology", Type: TypeClassification, Domain: DomainTech, Ring: 1},
		{ID: "backend-apis", Label: "Backend & APIs", Type: TypeDomainParent, Domain: DomainTech, Ring: 2},
		{ID: "express-server", Label: "Express Server", Type: TypeBackend, Domain: DomainTech, Ring: 3},
		{ID: "react-app", Label: "React App", Type: TypeFrontend, Domain: DomainTech, Ring: 3},
	}
	edges := []Edge{
		NewStructuralEdge("center", "classification-tech"),
		NewStructuralEdge("classification-tech", "backend-apis"),
		NewStructuralEdge("backend-apis", "express-server"),
		NewEdge("react-app", "express-server", RelDependsOn),
	}
	return nodes, edges
}

func TestIndex_Adjacency(t *testing.T) {
	nodes, edges := samplePlan()
	ix := NewIndex(nodes, edges)

	if ix.Len() != 5 {
		t.Fatalf("Expected 5 nodes, got %d", ix.Len())
	}
	if got := len(ix.Incoming("express-server")); got != 2 {
		t.Errorf("Expected 2 incoming edges for express-server, got %d", got)
	}
	parents := ix.StructuralParents("express-server")
	if len(parents) != 1 || parents[0] != "backend-apis" {
		t.Errorf("Unexpected structural parents: %v", parents)
	}
	if ix.HasStructuralParent("react-app") {
		t.Error("react-app has no hierarchy edge and should not report a structural parent")
	}
	if !ix.Connected("express-server", "react-app") {
		t.Error("Expected react-app and express-server to be connected")
	}
	if !ix.HasEdge("backend-apis", "express-server", "") {
		t.Error("An empty kind should match the structural kind")
	}
}

func TestIndex_RootPreference(t *testing.T) {
	ix := NewIndex([]Node{
		{ID: "a", Ring: 0},
		{ID: "b", Type: TypeRoot, Ring: 0},
	}, nil)
	root, ok := ix.Root()
	if !ok || root.ID != "b" {
		t.Fatalf("Expected root-typed node b, got %+v (ok=%v)", root, ok)
	}

	ix = NewIndex([]Node{{ID: "b", Type: TypeRoot}, {ID: RootID}}, nil)
	if root, _ := ix.Root(); root.ID != RootID {
		t.Errorf("Expected %q to win, got %q", RootID, root.ID)
	}
}

func TestIndex_DuplicateNodeKeepsFirst(t *testing.T) {
	ix := NewIndex([]Node{{ID: "x", Label: "first"}, {ID: "x", Label: "second"}}, nil)
	n, _ := ix.Node("x")
	if n.Label != "first" {
		t.Errorf("Expected first occurrence to win, got %q", n.Label)
	}
}

func TestEdgeID_Deterministic(t *testing.T) {
	a := EdgeID("p", "c", RelStructural)
	b := EdgeID("p", "c", RelStructural)
	if a != b {
		t.Fatalf("EdgeID is not stable: %s vs %s", a, b)
	}
	if a == EdgeID("c", "p", RelStructural) {
		t.Error("Reversed endpoints must produce a different id")
	}
	if a == EdgeID("p", "c", RelDependsOn) {
		t.Error("Different kinds must produce different ids")
	}
}

func TestRelationshipType_Classes(t *testing.T) {
	if !RelDependsOn.IsHard() || !RelBlocks.IsHard() {
		t.Error("depends-on and blocks are hard dependencies")
	}
	if RelStructural.IsHard() {
		t.Error("the structural kind must not count as a hard dependency")
	}
	if !RelationshipType("").IsStructural() {
		t.Error("empty kind is structural")
	}
	if RelationshipType("owns").Valid() {
		t.Error("unknown kinds are not valid")
	}
}

func TestEdge_EffectiveWeight(t *testing.T) {
	if w := (Edge{}).EffectiveWeight(); w != 1 {
		t.Errorf("Expected default weight 1, got %v", w)
	}
	if w := (Edge{Weight: WeightOf(2.5)}).EffectiveWeight(); w != 2.5 {
		t.Errorf("Expected 2.5, got %v", w)
	}
	if w := (Edge{Weight: WeightOf(0)}).EffectiveWeight(); w != 0 {
		t.Errorf("Expected an explicit zero weight to stay 0, got %v", w)
	}
}
