package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "planboard/internal/core/errors"
	"planboard/internal/engine/graph"
)

const planJSON = `{
  "nodes": [
    {"id": "center", "label": "Plan", "type": "root", "domain": "product", "ring": 0},
    {"id": "tech", "label": "Technology", "type": "classification", "domain": "tech", "ring": 1},
    {"id": "login", "label": "Login page", "type": "frontend", "domain": "tech"}
  ],
  "edges": [
    {"id": "e1", "source": "center", "target": "tech", "relationshipType": "depends_on"},
    {"source": "login", "target": "tech", "relationshipType": "blocks", "weight": 3}
  ]
}`

func TestDecode_JSON(t *testing.T) {
	snap, err := Decode([]byte(planJSON), FormatJSON)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 3)
	require.Len(t, snap.Edges, 2)

	assert.Equal(t, 0, snap.Nodes[0].Ring)
	assert.Equal(t, graph.NoRing, snap.Nodes[2].Ring, "missing ring decodes to NoRing")
	assert.Equal(t, graph.TypeFrontend, snap.Nodes[2].Type)

	assert.Equal(t, "e1", snap.Edges[0].ID)
	assert.Equal(t, graph.EdgeID("login", "tech", graph.RelBlocks), snap.Edges[1].ID, "missing edge id is derived")
	assert.Nil(t, snap.Edges[0].Weight, "absent weight stays unset")
	require.NotNil(t, snap.Edges[1].Weight)
	assert.Equal(t, 3.0, *snap.Edges[1].Weight)
}

func TestDecode_YAML(t *testing.T) {
	doc := `
nodes:
  - id: center
    label: Plan
    type: root
    domain: product
    ring: 0
  - id: api
    label: Orders API
    type: backend
    domain: tech
    ring: 3
    tags: [core]
edges:
  - source: api
    target: center
    relationshipType: related-to
`
	snap, err := Decode([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, 3, snap.Nodes[1].Ring)
	assert.Equal(t, []string{"core"}, snap.Nodes[1].Tags)
	assert.Equal(t, graph.RelRelatedTo, snap.Edges[0].RelationshipType)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing node id", `{"nodes":[{"label":"x"}]}`},
		{"negative ring", `{"nodes":[{"id":"a","ring":-2}]}`},
		{"duplicate node", `{"nodes":[{"id":"a"},{"id":"a"}]}`},
		{"unknown source", `{"nodes":[{"id":"a"}],"edges":[{"source":"zz","target":"a"}]}`},
		{"unknown target", `{"nodes":[{"id":"a"}],"edges":[{"source":"a","target":"zz"}]}`},
		{"negative weight", `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"source":"a","target":"b","weight":-1}]}`},
		{"unknown kind", `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"source":"a","target":"b","relationshipType":"owns"}]}`},
		{"duplicate edge", `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"id":"x","source":"a","target":"b"},{"id":"x","source":"b","target":"a"}]}`},
		{"malformed", `{"nodes":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			assert.True(t, domainErrors.IsCode(err, domainErrors.CodeValidationError), "got %v", err)
		})
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := Decode([]byte("{}"), Format("xml"))
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeNotSupported))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	snap, err := Decode([]byte(planJSON), FormatJSON)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"plan.json", "plan.yaml"} {
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, Save(path, snap))

		loaded, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, snap, loaded, name)
	}
}

func TestSaveLoad_ZeroWeightSurvives(t *testing.T) {
	snap := graph.Snapshot{
		Nodes: []graph.Node{
			{ID: "a", Label: "A", Type: graph.TypeFeature, Ring: 3},
			{ID: "b", Label: "B", Type: graph.TypeFeature, Ring: 3},
		},
		Edges: []graph.Edge{{ID: "e1", Source: "a", Target: "b", RelationshipType: graph.RelDependsOn, Weight: graph.WeightOf(0)}},
	}

	dir := t.TempDir()
	for _, name := range []string{"plan.json", "plan.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, snap))

		loaded, err := Load(path)
		require.NoError(t, err, name)
		require.Len(t, loaded.Edges, 1, name)
		require.NotNil(t, loaded.Edges[0].Weight, "%s: explicit zero weight dropped", name)
		assert.Equal(t, 0.0, *loaded.Edges[0].Weight, name)
		assert.Equal(t, 0.0, loaded.Edges[0].EffectiveWeight(), name)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, domainErrors.IsCode(err, domainErrors.CodeNotFound))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	first := graph.Snapshot{Nodes: []graph.Node{{ID: "center", Label: "Plan", Type: graph.TypeRoot, Ring: 0}}}
	second := graph.Snapshot{
		Nodes: []graph.Node{
			{ID: "center", Label: "Other", Type: graph.TypeRoot, Ring: 0},
			{ID: "tech", Label: "Technology", Type: graph.TypeClassification, Ring: 1},
		},
		Edges: []graph.Edge{graph.NewStructuralEdge("center", "tech")},
	}
	require.NoError(t, Save(filepath.Join(dir, "a.json"), first))
	require.NoError(t, Save(filepath.Join(dir, "b.yml"), second))

	merged, err := LoadAll([]string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.yml")})
	require.NoError(t, err)
	require.Len(t, merged.Nodes, 2)
	assert.Equal(t, "Plan", merged.Nodes[0].Label, "earlier files win")
	assert.Len(t, merged.Edges, 1)
}

func TestMerge(t *testing.T) {
	base := graph.Snapshot{
		Nodes: []graph.Node{{ID: "a"}, {ID: "b"}},
		Edges: []graph.Edge{{ID: "custom", Source: "a", Target: "b", RelationshipType: graph.RelStructural}},
	}
	proposal := graph.Snapshot{
		Nodes: []graph.Node{{ID: "b"}, {ID: "c"}},
		Edges: []graph.Edge{
			graph.NewStructuralEdge("a", "b"), // same triple, different id
			graph.NewStructuralEdge("b", "c"),
		},
	}

	merged, stats := Merge(base, proposal)
	assert.Equal(t, MergeStats{NodesAdded: 1, NodesSkipped: 1, EdgesAdded: 1, EdgesSkipped: 1}, stats)
	assert.Len(t, merged.Nodes, 3)
	assert.Len(t, merged.Edges, 2)
	assert.Len(t, base.Nodes, 2, "base must not be modified")

	again, stats := Merge(merged, proposal)
	assert.Equal(t, merged, again)
	assert.Equal(t, 0, stats.NodesAdded+stats.EdgesAdded)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("plan.YAML"))
	assert.Equal(t, FormatYAML, FormatForPath("x/plan.yml"))
	assert.Equal(t, FormatJSON, FormatForPath("plan.json"))
	assert.Equal(t, FormatJSON, FormatForPath("plan"))
}
