package formats

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/data/history"
	"planboard/internal/engine/dependency"
	"planboard/internal/engine/graph"
	"planboard/internal/engine/hierarchy"
	"planboard/internal/engine/rings"
)

func sampleView() PlanView {
	nodes := []graph.Node{
		{ID: "center", Label: "Plan", Type: graph.TypeRoot, Ring: 0},
		{ID: "tech", Label: "Technology", Type: graph.TypeClassification, Domain: graph.DomainTech, Ring: 1},
		{ID: "intermediate-backend-apis", Label: "Backend & APIs", Type: graph.TypeDomainParent, Ring: 2,
			Tags: []string{graph.TagAutoGenerated, graph.TagIntermediate}},
		{ID: "api", Label: "Orders \"v2\" API", Type: graph.TypeBackend, Ring: 3},
		{ID: "db", Label: "Orders DB", Type: graph.TypeData, Ring: 3},
		{ID: "ui", Label: "Checkout UI", Type: graph.TypeFrontend, Ring: 3},
		{ID: "loose", Label: "Loose idea", Type: graph.TypeFeature, Ring: graph.NoRing},
	}
	edges := []graph.Edge{
		graph.NewStructuralEdge("center", "tech"),
		graph.NewStructuralEdge("tech", "intermediate-backend-apis"),
		graph.NewStructuralEdge("intermediate-backend-apis", "api"),
		graph.NewEdge("api", "db", graph.RelDependsOn),
		graph.NewEdge("db", "api", graph.RelDependsOn),
		graph.NewEdge("ui", "api", graph.RelRelatedTo),
	}
	return PlanView{
		Nodes:   nodes,
		Edges:   edges,
		Cycles:  [][]string{{"api", "db"}},
		Orphans: []string{"ui"},
	}
}

func TestMermaidGenerator(t *testing.T) {
	out, err := NewMermaidGenerator(sampleView()).Generate()
	require.NoError(t, err)

	assert.Contains(t, out, "flowchart TB")
	assert.Contains(t, out, "subgraph ring_0[\"Ring 0: Root\"]")
	assert.Contains(t, out, "subgraph ring_none[\"Unplaced\"]")
	assert.Contains(t, out, "center((\"Plan\\n(root)\"))")
	assert.Contains(t, out, "api[\"Orders 'v2' API\\n(backend)\"]", "quotes must be escaped")
	assert.Contains(t, out, "tech --> intermediate_backend_apis")
	assert.Contains(t, out, "api -->|CYCLE depends-on| db")
	assert.Contains(t, out, "db -->|CYCLE depends-on| api")
	assert.Contains(t, out, "ui -.->|related-to| api")
	assert.Contains(t, out, "class api,db cycleNode;")
	assert.Contains(t, out, "class ui orphanNode;")
	assert.Contains(t, out, "class intermediate_backend_apis generatedNode;")
	assert.Contains(t, out, "stroke:#cc0000")

	again, err := NewMermaidGenerator(sampleView()).Generate()
	require.NoError(t, err)
	assert.Equal(t, out, again, "output must be deterministic")
}

func TestMermaidGenerator_CriticalPath(t *testing.T) {
	view := PlanView{
		Nodes: []graph.Node{{ID: "a", Ring: 3}, {ID: "b", Ring: 3}},
		Edges: []graph.Edge{graph.NewEdge("a", "b", graph.RelBlocks)},
		// a blocks b: b waits on a, so a runs first.
		CriticalPath: []string{"a", "b"},
	}
	out, err := NewMermaidGenerator(view).Generate()
	require.NoError(t, err)
	assert.Contains(t, out, "a -.->|blocks| b")
	assert.Contains(t, out, "linkStyle 0 stroke:#1f5fbf")
	assert.Contains(t, out, "class a,b criticalNode;")
}

func TestDOTGenerator(t *testing.T) {
	out, err := NewDOTGenerator(sampleView()).Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "digraph plan {"))
	assert.Contains(t, out, "subgraph cluster_ring_3 {")
	assert.Contains(t, out, `label="Ring 3: Work items";`)
	assert.Contains(t, out, `"api" -> "db" [color="red"`)
	assert.Contains(t, out, `"ui" -> "api" [style=dashed, label="related-to"]`)
	assert.Contains(t, out, `"center" -> "tech" [color="gray40", arrowhead=none]`)
	assert.Contains(t, out, `color="darkorange"`)
	assert.Contains(t, out, `shape=doublecircle`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestMarkdownGenerator(t *testing.T) {
	data := MarkdownReportData{
		NodeCount: 7,
		EdgeCount: 6,
		Rings: rings.Result{
			IsValid: false,
			Violations: []rings.Violation{
				{NodeID: "loose", Check: "missing-ring", Severity: rings.SeverityError, Message: "ring is missing"},
			},
		},
		Dependencies: dependency.Summary{
			Stats:           dependency.RelationshipStats{Total: 6, Hard: 2, Soft: 1, Structural: 3},
			Cycles:          []dependency.CircularDependency{{Cycle: []string{"api", "db"}, Kind: dependency.KindHard}},
			CriticalPathErr: &dependency.CycleError{Cycles: []dependency.CircularDependency{{Cycle: []string{"api", "db"}}}},
			Suggestions: []dependency.Suggestion{
				{Source: "ui", Target: "api", RelationshipType: graph.RelDependsOn, Reason: "frontend | backend"},
			},
		},
		Foundation: hierarchy.FoundationResult{
			EdgesToCreate: []graph.Edge{graph.NewStructuralEdge("intermediate-backend-apis", "db")},
			Report: hierarchy.FoundationReport{
				Orphans:       2,
				ProposedEdges: 1,
				Issues: []hierarchy.Issue{
					{NodeID: "ui", Kind: hierarchy.IssueUnresolvable, Message: "no parent", Remediation: "add a classification"},
				},
			},
		},
	}

	out, err := NewMarkdownGenerator().Generate(data, MarkdownReportOptions{
		ProjectName:     "roadmap",
		Version:         "1.2.3",
		GeneratedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Verbosity:       "detailed",
		TableOfContents: true,
		IncludeMermaid:  true,
		MermaidDiagram:  "flowchart TB\n  a --> b\n",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "project: roadmap")
	assert.Contains(t, out, "generated_at: 2026-03-01T00:00:00Z")
	assert.Contains(t, out, "| Ring Hierarchy Valid | false |")
	assert.Contains(t, out, "| Edges | 6 (3 structural, 2 hard, 1 soft) |")
	assert.Contains(t, out, "`api -> db -> api`")
	assert.Contains(t, out, "Critical path unavailable")
	assert.Contains(t, out, "| `intermediate-backend-apis` | `db` |")
	assert.Contains(t, out, "add a classification")
	assert.Contains(t, out, "frontend \\| backend")
	assert.Contains(t, out, "- [Plan Diagram](#plan-diagram)")
	assert.Contains(t, out, "```mermaid\nflowchart TB")
}

func TestMarkdownGenerator_CleanPlanSummary(t *testing.T) {
	out, err := NewMarkdownGenerator().Generate(MarkdownReportData{
		Rings: rings.Result{IsValid: true},
		Dependencies: dependency.Summary{
			CriticalPath: &dependency.CriticalPath{Path: []string{"a", "b"}, TotalWeight: 2},
		},
	}, MarkdownReportOptions{Verbosity: "summary"})
	require.NoError(t, err)

	assert.Contains(t, out, "No ring violations detected.")
	assert.Contains(t, out, "No dependency cycles detected.")
	assert.Contains(t, out, "`a -> b` (total weight 2.00)")
	assert.Contains(t, out, "Hierarchy is complete")
	assert.NotContains(t, out, "## Relationship Suggestions")
}

func TestRenderTrendTSV(t *testing.T) {
	report := history.TrendReport{
		SchemaVersion: 1,
		Window:        "24h0m0s",
		RunCount:      1,
		Points: []history.TrendPoint{
			{
				Timestamp:          time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
				SnapshotHash:       "0123456789abcdef",
				NodeCount:          10,
				EdgeCount:          15,
				ErrorCount:         1,
				WarningCount:       2,
				CycleCount:         0,
				OrphanCount:        3,
				CriticalPathWeight: 4.5,
				WindowHours:        24,
			},
		},
	}

	out, err := RenderTrendTSV(report)
	require.NoError(t, err)
	body := string(out)
	assert.Contains(t, body, "Timestamp\tSnapshot\tNodes")
	assert.Contains(t, body, "0123456789ab\t10\t15\t1\t2\t0\t3\t4.50")
}

func TestRenderTrendJSON(t *testing.T) {
	out, err := RenderTrendJSON(history.TrendReport{SchemaVersion: 1, RunCount: 2})
	require.NoError(t, err)
	assert.Contains(t, string(out), "\"run_count\": 2")
}

func TestMakeIDs(t *testing.T) {
	ids := makeIDs([]string{"a-b", "a_b", "1x", ""})
	assert.Equal(t, "a_b", ids["a-b"])
	assert.Equal(t, "a_b_2", ids["a_b"])
	assert.Equal(t, "n_1x", ids["1x"])
	assert.Equal(t, "n", ids[""])
}
