package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"planboard/internal/core/errors"
	"planboard/internal/core/ports"
	"planboard/internal/data/query"
	"planboard/internal/data/snapshot"
	"planboard/internal/engine/dedupe"
	"planboard/internal/engine/dependency"
	"planboard/internal/engine/graph"
	"planboard/internal/engine/hierarchy"
	"planboard/internal/engine/rings"
	"planboard/internal/shared/observability"
)

func (s *Service) LoadSnapshot(ctx context.Context) (graph.Snapshot, error) {
	ctx, span := observability.Tracer.Start(ctx, "planService.LoadSnapshot")
	defer span.End()

	snap, err := s.source.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return graph.Snapshot{}, errors.AddContext(err, errors.CtxOperation, "load_snapshot")
	}
	span.SetAttributes(
		attribute.Int("plan.nodes", len(snap.Nodes)),
		attribute.Int("plan.edges", len(snap.Edges)),
	)
	return snap, nil
}

// Analyze runs the ring validation, the dependency summary, the hierarchy
// evaluation and the foundation pass concurrently over one snapshot. The
// snapshot is shared read-only between the passes.
func (s *Service) Analyze(ctx context.Context, snap graph.Snapshot) (ports.Analysis, error) {
	ctx, span := observability.Tracer.Start(ctx, "planService.Analyze", trace.WithAttributes(
		attribute.Int("plan.nodes", len(snap.Nodes)),
		attribute.Int("plan.edges", len(snap.Edges)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.Analysis{}, err
	}

	start := time.Now()
	hash, err := SnapshotHash(snap)
	if err != nil {
		return ports.Analysis{}, errors.AddContext(err, errors.CtxOperation, "hash_snapshot")
	}
	if cached, ok := s.cache.Get(hash); ok {
		observability.AnalysisCacheHitsTotal.Inc()
		cached.Snapshot = snap
		return cached, nil
	}
	out := ports.Analysis{Snapshot: snap, SnapshotHash: hash}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pass(gctx, "rings", func() {
			out.Rings = s.validator.Validate(snap.Nodes, snap.Edges)
		})
	})
	g.Go(func() error {
		return s.pass(gctx, "dependencies", func() {
			out.Dependencies = s.analyzer.Summarize(snap.Nodes, snap.Edges)
		})
	})
	g.Go(func() error {
		return s.pass(gctx, "evaluate", func() {
			out.Evaluation = s.associator.EvaluateEdges(snap.Nodes, snap.Edges)
		})
	})
	g.Go(func() error {
		return s.pass(gctx, "foundation", func() {
			out.Foundation = s.associator.ProcessFoundationEdges(snap.Nodes, snap.Edges)
		})
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return ports.Analysis{}, err
	}

	out.Duration = time.Since(start)
	recordAnalysisMetrics(out)
	s.cache.Put(hash, out)

	s.logger.Debug("analysis finished",
		"nodes", len(snap.Nodes),
		"edges", len(snap.Edges),
		"errors", len(out.Rings.Errors()),
		"warnings", len(out.Rings.Warnings()),
		"cycles", len(out.Dependencies.Cycles),
		"orphans", len(out.Evaluation.Orphans),
		"duration", out.Duration,
	)
	return out, nil
}

func (s *Service) pass(ctx context.Context, name string, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := observability.Tracer.Start(ctx, "planService.Analyze."+name)
	defer span.End()

	start := time.Now()
	fn()
	observability.AnalysisDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return nil
}

func recordAnalysisMetrics(a ports.Analysis) {
	observability.GraphNodes.Set(float64(len(a.Snapshot.Nodes)))
	observability.GraphEdges.Set(float64(len(a.Snapshot.Edges)))
	observability.RingViolations.WithLabelValues(string(rings.SeverityError)).Set(float64(len(a.Rings.Errors())))
	observability.RingViolations.WithLabelValues(string(rings.SeverityWarning)).Set(float64(len(a.Rings.Warnings())))
	observability.CyclesDetected.Set(float64(len(a.Dependencies.Cycles)))
	observability.OrphansDetected.Set(float64(len(a.Evaluation.Orphans)))
	observability.FoundationEdgesCreated.Add(float64(len(a.Foundation.EdgesToCreate)))
	observability.FoundationNodesCreated.Add(float64(len(a.Foundation.NodesToCreate)))
}

// SnapshotHash is the hex sha256 of the canonical JSON encoding of snap.
func SnapshotHash(snap graph.Snapshot) (string, error) {
	data, err := snapshot.Encode(snap, snapshot.FormatJSON)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CriticalPath returns the heaviest execution chain. Cyclic input is
// reported as a CONFLICT carrying the offending loops.
func (s *Service) CriticalPath(ctx context.Context, snap graph.Snapshot, startID string) (*dependency.CriticalPath, error) {
	_, span := observability.Tracer.Start(ctx, "planService.CriticalPath")
	defer span.End()

	if startID != "" && !hasNode(snap, startID) {
		return nil, errors.AddContext(errors.Newf(errors.CodeNotFound, "start node %q not found", startID), errors.CtxNode, startID)
	}
	path, err := s.analyzer.CriticalPath(snap.Edges, startID)
	if err != nil {
		return nil, cycleConflict(err)
	}
	return path, nil
}

func cycleConflict(err error) error {
	var cycleErr *dependency.CycleError
	if !stderrors.As(err, &cycleErr) {
		return errors.Wrap(err, errors.CodeInternal, "critical path")
	}
	cycles := make([][]string, 0, len(cycleErr.Cycles))
	for _, c := range cycleErr.Cycles {
		cycles = append(cycles, append([]string(nil), c.Cycle...))
	}
	return errors.AddContext(
		errors.Wrap(err, errors.CodeConflict, "critical path is undefined for cyclic dependencies"),
		errors.CtxCycles, cycles,
	)
}

func (s *Service) NodeDependencies(ctx context.Context, snap graph.Snapshot, q ports.DependencyQuery) (ports.DependencyReport, error) {
	if err := ctx.Err(); err != nil {
		return ports.DependencyReport{}, err
	}
	if !hasNode(snap, q.NodeID) {
		return ports.DependencyReport{}, errors.AddContext(errors.Newf(errors.CodeNotFound, "node %q not found", q.NodeID), errors.CtxNode, q.NodeID)
	}
	return ports.DependencyReport{
		NodeID:          q.NodeID,
		Dependencies:    s.analyzer.Dependencies(q.NodeID, snap.Edges),
		Dependents:      s.analyzer.Dependents(q.NodeID, snap.Edges),
		DependencyChain: s.analyzer.DependencyChain(q.NodeID, snap.Edges),
		DependentChain:  s.analyzer.DependentChain(q.NodeID, snap.Edges),
		Depth:           s.analyzer.NodeDepth(q.NodeID, snap.Edges),
	}, nil
}

func (s *Service) WouldCreateCycle(ctx context.Context, snap graph.Snapshot, edge ports.ProposedEdge) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !edge.Kind.Valid() {
		return false, errors.AddContext(errors.Newf(errors.CodeValidationError, "unknown relationship type %q", edge.Kind), errors.CtxField, "kind")
	}
	for _, id := range []string{edge.Source, edge.Target} {
		if !hasNode(snap, id) {
			return false, errors.AddContext(errors.Newf(errors.CodeNotFound, "node %q not found", id), errors.CtxNode, id)
		}
	}
	return s.analyzer.WouldCreateCycle(edge.Source, edge.Target, snap.Edges, edge.Kind), nil
}

// FindExisting runs the deduplicator tiers and lists every node that would
// have matched.
func (s *Service) FindExisting(ctx context.Context, snap graph.Snapshot, c dedupe.Candidate) (dedupe.Result, []dedupe.Conflict, error) {
	if err := ctx.Err(); err != nil {
		return dedupe.Result{}, nil, err
	}
	if c.Malformed() {
		return dedupe.Result{}, nil, errors.New(errors.CodeValidationError, "candidate needs a label, a type and a domain")
	}
	return s.dedupe.FindExisting(c, snap.Nodes), s.dedupe.FindPotentialConflicts(c, snap.Nodes), nil
}

// QueryNodes runs a SELECT nodes query against snap.
func (s *Service) QueryNodes(ctx context.Context, snap graph.Snapshot, raw string, limit int) ([]query.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := query.ParseCQL(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "parse query")
	}
	return query.Execute(q, snap, s.analyzer, limit), nil
}

// ApplyFoundation merges a foundation proposal into snap. Applying the same
// proposal twice adds nothing the second time.
func (s *Service) ApplyFoundation(ctx context.Context, snap graph.Snapshot, result hierarchy.FoundationResult) (ports.ApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.ApplyResult{}, err
	}
	merged, stats := snapshot.Merge(snap, graph.Snapshot{Nodes: result.NodesToCreate, Edges: result.EdgesToCreate})
	s.logger.Info("foundation proposal merged",
		"nodes_added", stats.NodesAdded,
		"edges_added", stats.EdgesAdded,
		"nodes_skipped", stats.NodesSkipped,
		"edges_skipped", stats.EdgesSkipped,
	)
	return ports.ApplyResult{
		Snapshot:     merged,
		NodesAdded:   stats.NodesAdded,
		EdgesAdded:   stats.EdgesAdded,
		NodesSkipped: stats.NodesSkipped,
		EdgesSkipped: stats.EdgesSkipped,
	}, nil
}

func hasNode(snap graph.Snapshot, id string) bool {
	for _, n := range snap.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}
