package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/core/config"
	"planboard/internal/core/errors"
	"planboard/internal/core/ports"
	"planboard/internal/data/history"
	"planboard/internal/data/snapshot"
	"planboard/internal/engine/dedupe"
	"planboard/internal/engine/graph"
)

func fixturePlan() graph.Snapshot {
	return graph.Snapshot{
		Nodes: []graph.Node{
			{ID: graph.RootID, Label: "Plan", Type: graph.TypeRoot, Ring: 0},
			{ID: "classification-tech", Label: "Technology", Type: graph.TypeClassification, Domain: graph.DomainTech, Ring: 1},
			{ID: "backend-apis", Label: "Backend & APIs", Type: graph.TypeDomainParent, Domain: graph.DomainTech, Ring: 2},
			{ID: "express-server", Label: "Express Server", Type: graph.TypeBackend, Domain: graph.DomainTech, Ring: 3},
			{ID: "react-app", Label: "React App", Type: graph.TypeFrontend, Domain: graph.DomainTech, Ring: 3},
		},
		Edges: []graph.Edge{
			graph.NewStructuralEdge(graph.RootID, "classification-tech"),
			graph.NewStructuralEdge("classification-tech", "backend-apis"),
			graph.NewStructuralEdge("backend-apis", "express-server"),
			{ID: "e-ui-api", Source: "react-app", Target: "express-server", RelationshipType: graph.RelDependsOn, Weight: graph.WeightOf(2)},
		},
	}
}

type memStore struct {
	mu   sync.Mutex
	runs map[string][]history.Run
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string][]history.Run)}
}

func (m *memStore) SaveRun(_ context.Context, project string, run history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[project] = append(m.runs[project], run)
	return nil
}

func (m *memStore) LoadRuns(_ context.Context, project string, since time.Time) ([]history.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Run
	for _, r := range m.runs[project] {
		if since.IsZero() || !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

var _ ports.HistoryStore = (*memStore)(nil)

func newTestService(t *testing.T, snap graph.Snapshot, opts ...Option) *Service {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, snapshot.Save(filepath.Join(dir, "plan.json"), snap))

	cfg := config.DefaultConfig()
	cfg.Output.Mermaid = "plan.mmd"
	cfg.Output.DOT = "plan.dot"
	cfg.Output.Markdown = "plan.md"
	cfg.Output.JSON = "plan.merged.json"
	cfg.Watch.Debounce = 20 * time.Millisecond
	cfg.Watch.MaxRunsPerSecond = 100

	paths, err := config.ResolvePaths(cfg, dir)
	require.NoError(t, err)
	svc, err := New(cfg, paths, opts...)
	require.NoError(t, err)
	return svc
}

func TestAnalyze(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	snap, err := svc.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 5)

	analysis, err := svc.Analyze(ctx, snap)
	require.NoError(t, err)

	assert.Len(t, analysis.SnapshotHash, 64)
	assert.Equal(t, []string{"react-app"}, analysis.Evaluation.Orphans)
	assert.Empty(t, analysis.Dependencies.Cycles)
	require.NotNil(t, analysis.Dependencies.CriticalPath)
	assert.Equal(t, []string{"express-server", "react-app"}, analysis.Dependencies.CriticalPath.Path)
	assert.Equal(t, 1, analysis.Dependencies.Stats.Hard)

	var created []string
	for _, n := range analysis.Foundation.NodesToCreate {
		created = append(created, n.ID)
	}
	assert.Equal(t, []string{"intermediate-frontend-ui"}, created)

	again, err := svc.Analyze(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, analysis.SnapshotHash, again.SnapshotHash)
	assert.Equal(t, 1, svc.cache.Len())
	assert.Equal(t, analysis.Dependencies.CriticalPath, again.Dependencies.CriticalPath)

	changed := snap.Clone()
	changed.Nodes = append(changed.Nodes, graph.Node{ID: "docs", Label: "Docs", Type: graph.TypeDoc, Domain: graph.DomainProcess, Ring: 3})
	third, err := svc.Analyze(ctx, changed)
	require.NoError(t, err)
	assert.NotEqual(t, analysis.SnapshotHash, third.SnapshotHash)
	assert.Equal(t, 2, svc.cache.Len())
}

func TestAnalyze_Cancelled(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, fixturePlan())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSnapshot_Missing(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	require.NoError(t, os.Remove(svc.Paths.Snapshots[0]))

	_, err := svc.LoadSnapshot(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)
}

func TestCriticalPath(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	t.Run("acyclic", func(t *testing.T) {
		path, err := svc.CriticalPath(ctx, fixturePlan(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{"express-server", "react-app"}, path.Path)
		assert.Equal(t, 2.0, path.TotalWeight)
	})

	t.Run("unknown start", func(t *testing.T) {
		_, err := svc.CriticalPath(ctx, fixturePlan(), "nope")
		assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	})

	t.Run("cyclic", func(t *testing.T) {
		snap := fixturePlan()
		snap.Edges = append(snap.Edges, graph.NewEdge("express-server", "react-app", graph.RelDependsOn))

		_, err := svc.CriticalPath(ctx, snap, "")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeConflict), "got %v", err)

		var de *errors.DomainError
		require.ErrorAs(t, err, &de)
		cycles, ok := de.Context[errors.CtxCycles].([][]string)
		require.True(t, ok)
		require.Len(t, cycles, 1)
		got := append([]string(nil), cycles[0]...)
		sort.Strings(got)
		assert.Equal(t, []string{"express-server", "react-app"}, got)
	})
}

func TestNodeDependencies(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	report, err := svc.NodeDependencies(ctx, fixturePlan(), ports.DependencyQuery{NodeID: "react-app"})
	require.NoError(t, err)
	assert.Equal(t, []string{"express-server"}, report.Dependencies)
	assert.Empty(t, report.Dependents)
	assert.Equal(t, 1, report.Depth)

	_, err = svc.NodeDependencies(ctx, fixturePlan(), ports.DependencyQuery{NodeID: "ghost"})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestWouldCreateCycle(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	closes, err := svc.WouldCreateCycle(ctx, fixturePlan(), ports.ProposedEdge{Source: "express-server", Target: "react-app", Kind: graph.RelDependsOn})
	require.NoError(t, err)
	assert.True(t, closes)

	closes, err = svc.WouldCreateCycle(ctx, fixturePlan(), ports.ProposedEdge{Source: "express-server", Target: "react-app", Kind: graph.RelRelatedTo})
	require.NoError(t, err)
	assert.False(t, closes)

	_, err = svc.WouldCreateCycle(ctx, fixturePlan(), ports.ProposedEdge{Source: "express-server", Target: "react-app", Kind: "owns"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestFindExisting(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	res, conflicts, err := svc.FindExisting(ctx, fixturePlan(), dedupe.Candidate{
		Label:  "express server",
		Type:   graph.TypeBackend,
		Domain: graph.DomainTech,
	})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "express-server", res.ExistingNode.ID)
	assert.NotEmpty(t, conflicts)

	_, _, err = svc.FindExisting(ctx, fixturePlan(), dedupe.Candidate{Label: " "})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestQueryNodes(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	rows, err := svc.QueryNodes(ctx, fixturePlan(), "SELECT nodes WHERE ring = 3 AND dependencies >= 1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "react-app", rows[0].Node.ID)
	assert.Equal(t, 1, rows[0].Dependencies)

	_, err = svc.QueryNodes(ctx, fixturePlan(), "SELECT modules", 0)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestApplyFoundation_Idempotent(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	analysis, err := svc.Analyze(ctx, fixturePlan())
	require.NoError(t, err)
	require.False(t, analysis.Foundation.Empty())

	applied, err := svc.ApplyFoundation(ctx, analysis.Snapshot, analysis.Foundation)
	require.NoError(t, err)
	assert.Equal(t, len(analysis.Foundation.NodesToCreate), applied.NodesAdded)
	assert.Equal(t, len(analysis.Foundation.EdgesToCreate), applied.EdgesAdded)

	second, err := svc.Analyze(ctx, applied.Snapshot)
	require.NoError(t, err)
	assert.True(t, second.Foundation.Empty(), "second pass proposed %+v", second.Foundation)
	assert.Empty(t, second.Evaluation.Orphans)

	again, err := svc.ApplyFoundation(ctx, applied.Snapshot, analysis.Foundation)
	require.NoError(t, err)
	assert.Zero(t, again.NodesAdded)
	assert.Zero(t, again.EdgesAdded)
	assert.Len(t, again.Snapshot.Nodes, len(applied.Snapshot.Nodes))
}

func TestWriteOutputs(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx := context.Background()

	analysis, err := svc.Analyze(ctx, fixturePlan())
	require.NoError(t, err)

	result, err := svc.WriteOutputs(ctx, analysis)
	require.NoError(t, err)
	require.Len(t, result.Written, 4)

	mermaid, err := os.ReadFile(svc.Paths.OutputFile("plan.mmd"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(mermaid), "flowchart TB"))

	dot, err := os.ReadFile(svc.Paths.OutputFile("plan.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph plan")

	md, err := os.ReadFile(svc.Paths.OutputFile("plan.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Plan Analysis Report")

	merged, err := snapshot.Load(svc.Paths.OutputFile("plan.merged.json"))
	require.NoError(t, err)
	assert.Len(t, merged.Nodes, len(analysis.Snapshot.Nodes)+len(analysis.Foundation.NodesToCreate))
}

func TestRender_UnknownFormat(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	_, err := svc.Render(ports.Analysis{}, "plantuml")
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, fixturePlan())
		assert.True(t, errors.IsCode(svc.RecordRun(ctx, ports.Analysis{}), errors.CodeNotSupported))
		_, err := svc.HistoryTrend(ctx, ports.HistoryTrendRequest{})
		assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
	})

	t.Run("record and trend", func(t *testing.T) {
		store := newMemStore()
		svc := newTestService(t, fixturePlan(), WithHistoryStore(store))

		first, err := svc.Analyze(ctx, fixturePlan())
		require.NoError(t, err)
		require.NoError(t, svc.RecordRun(ctx, first))

		applied, err := svc.ApplyFoundation(ctx, first.Snapshot, first.Foundation)
		require.NoError(t, err)
		second, err := svc.Analyze(ctx, applied.Snapshot)
		require.NoError(t, err)
		require.NoError(t, svc.RecordRun(ctx, second))

		report, err := svc.HistoryTrend(ctx, ports.HistoryTrendRequest{Window: time.Hour})
		require.NoError(t, err)
		require.Equal(t, 2, report.RunCount)
		assert.Equal(t, "default", report.Project)
		assert.Equal(t, 1, report.Points[0].OrphanCount)
		assert.Equal(t, -1, report.Points[1].DeltaOrphans)
		assert.Equal(t, len(first.Foundation.NodesToCreate), report.Points[1].DeltaNodes)
	})
}

func TestRunFromAnalysis(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	analysis, err := svc.Analyze(context.Background(), fixturePlan())
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	run := RunFromAnalysis(analysis, at)
	assert.Equal(t, history.SchemaVersion, run.SchemaVersion)
	assert.Equal(t, time.UTC, run.Timestamp.Location())
	assert.Equal(t, 5, run.NodeCount)
	assert.Equal(t, 1, run.OrphanCount)
	assert.Equal(t, 2, run.CriticalPathLength)
	assert.Equal(t, 2.0, run.CriticalPathWeight)
	assert.Equal(t, 1, run.MaxDepth)
}

func TestRunOnce(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, fixturePlan(), WithHistoryStore(store))

	update := svc.RunOnce(context.Background(), nil)
	require.NoError(t, update.Err)
	require.NotNil(t, update.Analysis)
	assert.Len(t, update.Written, 4)
	assert.Len(t, store.runs["default"], 1)

	require.NoError(t, os.WriteFile(svc.Paths.Snapshots[0], []byte("{nodes: ["), 0o644))
	update = svc.RunOnce(context.Background(), []string{svc.Paths.Snapshots[0]})
	assert.Error(t, update.Err)
	assert.Nil(t, update.Analysis)
}

func TestWatch(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan ports.WatchUpdate, 8)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(u ports.WatchUpdate) { updates <- u })
	}()

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		assert.Empty(t, u.Changed)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the initial run")
	}

	snap := fixturePlan()
	snap.Nodes = append(snap.Nodes, graph.Node{ID: "api-docs", Label: "API Docs", Type: graph.TypeDoc, Domain: graph.DomainProcess, Ring: 3})
	require.NoError(t, snapshot.Save(svc.Paths.Snapshots[0], snap))

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		assert.Contains(t, u.Changed, svc.Paths.Snapshots[0])
		require.NotNil(t, u.Analysis)
		assert.Len(t, u.Analysis.Snapshot.Nodes, 6)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the change run")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestHealthCheck(t *testing.T) {
	svc := newTestService(t, fixturePlan())
	health := NewHealthService(svc)

	status := health.Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "disabled", status.Components["history"])
	assert.NotEmpty(t, status.Components["heap_mb"])

	require.NoError(t, os.Remove(svc.Paths.Snapshots[0]))
	status = health.Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "1 of 1 missing", status.Components["snapshots"])

	svc.Config.History.Enabled = true
	status = health.Check(context.Background())
	assert.Equal(t, "missing but enabled in config", status.Components["history"])
}
