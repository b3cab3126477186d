package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	SnapshotLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planboard_snapshot_load_seconds",
		Help:    "Time spent decoding and merging plan snapshots.",
		Buckets: prometheus.DefBuckets,
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planboard_graph_nodes_total",
		Help: "Total number of nodes in the current plan graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planboard_graph_edges_total",
		Help: "Total number of edges in the current plan graph.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planboard_analysis_seconds",
		Help:    "Time spent on individual analysis passes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	AnalysisCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planboard_analysis_cache_hits_total",
		Help: "Total number of analyses served from the snapshot-hash cache.",
	})

	RingViolations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planboard_ring_violations",
		Help: "Ring hierarchy violations found by the last validation, by severity.",
	}, []string{"severity"})

	CyclesDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planboard_cycles_detected",
		Help: "Hard dependency cycles found by the last analysis.",
	})

	OrphansDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planboard_orphans_detected",
		Help: "Leaf nodes without a structural parent in the last analysis.",
	})

	FoundationEdgesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planboard_foundation_edges_created_total",
		Help: "Total number of structural edges proposed by foundation passes.",
	})

	FoundationNodesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planboard_foundation_nodes_created_total",
		Help: "Total number of intermediate nodes proposed by foundation passes.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planboard_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatchRunsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planboard_watch_runs_throttled_total",
		Help: "Total number of watch-triggered runs delayed by the rate limiter.",
	})

	HistoryWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planboard_history_writes_total",
		Help: "Total number of history run records written, by outcome.",
	}, []string{"outcome"})
)
