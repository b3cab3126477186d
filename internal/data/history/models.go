package history

import "time"

const SchemaVersion = 1

// Run is the persisted summary of one analysis pass over a plan.
type Run struct {
	SchemaVersion      int       `json:"schema_version"`
	Timestamp          time.Time `json:"timestamp"`
	SnapshotHash       string    `json:"snapshot_hash,omitempty"`
	NodeCount          int       `json:"node_count"`
	EdgeCount          int       `json:"edge_count"`
	ErrorCount         int       `json:"error_count"`
	WarningCount       int       `json:"warning_count"`
	CycleCount         int       `json:"cycle_count"`
	OrphanCount        int       `json:"orphan_count"`
	ProposedEdgeCount  int       `json:"proposed_edge_count"`
	IntermediateCount  int       `json:"intermediate_count"`
	CriticalPathLength int       `json:"critical_path_length"`
	CriticalPathWeight float64   `json:"critical_path_weight"`
	MaxDepth           int       `json:"max_depth"`
}

type TrendPoint struct {
	Timestamp          time.Time `json:"timestamp"`
	SnapshotHash       string    `json:"snapshot_hash,omitempty"`
	NodeCount          int       `json:"node_count"`
	EdgeCount          int       `json:"edge_count"`
	ErrorCount         int       `json:"error_count"`
	WarningCount       int       `json:"warning_count"`
	CycleCount         int       `json:"cycle_count"`
	OrphanCount        int       `json:"orphan_count"`
	CriticalPathWeight float64   `json:"critical_path_weight"`
	DeltaNodes         int       `json:"delta_nodes"`
	DeltaEdges         int       `json:"delta_edges"`
	DeltaErrors        int       `json:"delta_errors"`
	DeltaWarnings      int       `json:"delta_warnings"`
	DeltaCycles        int       `json:"delta_cycles"`
	DeltaOrphans       int       `json:"delta_orphans"`
	DeltaCriticalPath  float64   `json:"delta_critical_path"`
	NodeGrowthPct      float64   `json:"node_growth_pct"`
	AvgErrors          float64   `json:"avg_errors"`
	AvgCycles          float64   `json:"avg_cycles"`
	WindowHours        float64   `json:"window_hours"`
}

type TrendReport struct {
	SchemaVersion int          `json:"schema_version"`
	Project       string       `json:"project"`
	Since         time.Time    `json:"since"`
	Until         time.Time    `json:"until"`
	Window        string       `json:"window"`
	RunCount      int          `json:"run_count"`
	Points        []TrendPoint `json:"points"`
}
