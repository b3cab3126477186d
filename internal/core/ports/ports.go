package ports

import (
	"context"
	"time"

	"planboard/internal/data/history"
	"planboard/internal/data/query"
	"planboard/internal/engine/dedupe"
	"planboard/internal/engine/dependency"
	"planboard/internal/engine/graph"
	"planboard/internal/engine/hierarchy"
	"planboard/internal/engine/rings"
)

// HistoryStore abstracts run persistence for trend/report workflows.
type HistoryStore interface {
	SaveRun(ctx context.Context, project string, run history.Run) error
	LoadRuns(ctx context.Context, project string, since time.Time) ([]history.Run, error)
	Close() error
}

// SnapshotSource yields the plan snapshot an analysis runs over.
type SnapshotSource interface {
	Load(ctx context.Context) (graph.Snapshot, error)
}

// Analysis is the full engine output for one snapshot.
type Analysis struct {
	Snapshot     graph.Snapshot
	SnapshotHash string
	Rings        rings.Result
	Dependencies dependency.Summary
	Evaluation   hierarchy.Evaluation
	Foundation   hierarchy.FoundationResult
	Duration     time.Duration
}

// DependencyQuery selects the per-node dependency report.
type DependencyQuery struct {
	NodeID string
}

// DependencyReport is the per-node dependency view.
type DependencyReport struct {
	NodeID          string
	Dependencies    []string
	Dependents      []string
	DependencyChain []string
	DependentChain  []string
	Depth           int
}

// ProposedEdge is an edge the caller wants to check before creating it.
type ProposedEdge struct {
	Source string
	Target string
	Kind   graph.RelationshipType
}

// ApplyResult describes a foundation proposal merged into a snapshot.
type ApplyResult struct {
	Snapshot     graph.Snapshot
	NodesAdded   int
	EdgesAdded   int
	NodesSkipped int
	EdgesSkipped int
}

// OutputsResult lists written artifacts.
type OutputsResult struct {
	Written []string
}

// HistoryTrendRequest selects the runs a trend report covers.
type HistoryTrendRequest struct {
	Since  time.Time
	Window time.Duration
}

// PlanService is the driving-port surface used by the CLI and dashboard.
type PlanService interface {
	LoadSnapshot(ctx context.Context) (graph.Snapshot, error)
	Analyze(ctx context.Context, snap graph.Snapshot) (Analysis, error)
	CriticalPath(ctx context.Context, snap graph.Snapshot, startID string) (*dependency.CriticalPath, error)
	NodeDependencies(ctx context.Context, snap graph.Snapshot, q DependencyQuery) (DependencyReport, error)
	WouldCreateCycle(ctx context.Context, snap graph.Snapshot, edge ProposedEdge) (bool, error)
	FindExisting(ctx context.Context, snap graph.Snapshot, c dedupe.Candidate) (dedupe.Result, []dedupe.Conflict, error)
	QueryNodes(ctx context.Context, snap graph.Snapshot, raw string, limit int) ([]query.Row, error)
	ApplyFoundation(ctx context.Context, snap graph.Snapshot, result hierarchy.FoundationResult) (ApplyResult, error)
	WriteOutputs(ctx context.Context, analysis Analysis) (OutputsResult, error)
	RecordRun(ctx context.Context, analysis Analysis) error
	HistoryTrend(ctx context.Context, req HistoryTrendRequest) (history.TrendReport, error)
}

// WatchUpdate is emitted to driving adapters after each watch-mode run.
type WatchUpdate struct {
	Changed  []string
	Analysis *Analysis
	Written  []string
	Err      error
	At       time.Time
}

// WatchService re-runs the analysis whenever a snapshot file changes. Watch
// blocks until ctx is cancelled.
type WatchService interface {
	Watch(ctx context.Context, handler func(WatchUpdate)) error
}
