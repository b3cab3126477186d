package app

import (
	"context"
	"time"

	"planboard/internal/core/errors"
	"planboard/internal/core/ports"
	"planboard/internal/data/history"
	"planboard/internal/shared/observability"
)

// RunFromAnalysis condenses an analysis into a history record.
func RunFromAnalysis(a ports.Analysis, at time.Time) history.Run {
	run := history.Run{
		SchemaVersion:     history.SchemaVersion,
		Timestamp:         at.UTC(),
		SnapshotHash:      a.SnapshotHash,
		NodeCount:         len(a.Snapshot.Nodes),
		EdgeCount:         len(a.Snapshot.Edges),
		ErrorCount:        len(a.Rings.Errors()),
		WarningCount:      len(a.Rings.Warnings()),
		CycleCount:        len(a.Dependencies.Cycles),
		OrphanCount:       len(a.Evaluation.Orphans),
		ProposedEdgeCount: len(a.Foundation.EdgesToCreate),
		IntermediateCount: len(a.Foundation.NodesToCreate),
	}
	if cp := a.Dependencies.CriticalPath; cp != nil {
		run.CriticalPathLength = len(cp.Path)
		run.CriticalPathWeight = cp.TotalWeight
	}
	if len(a.Dependencies.Deepest) > 0 {
		run.MaxDepth = a.Dependencies.Deepest[0].Depth
	}
	return run
}

func (s *Service) RecordRun(ctx context.Context, a ports.Analysis) error {
	if s.history == nil {
		return errors.New(errors.CodeNotSupported, "history is disabled")
	}
	ctx, span := observability.Tracer.Start(ctx, "planService.RecordRun")
	defer span.End()

	run := RunFromAnalysis(a, time.Now())
	if err := s.history.SaveRun(ctx, s.Config.History.Project, run); err != nil {
		observability.HistoryWritesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return errors.AddContext(err, errors.CtxOperation, "save_run")
	}
	observability.HistoryWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *Service) HistoryTrend(ctx context.Context, req ports.HistoryTrendRequest) (history.TrendReport, error) {
	if s.history == nil {
		return history.TrendReport{}, errors.New(errors.CodeNotSupported, "history is disabled")
	}
	ctx, span := observability.Tracer.Start(ctx, "planService.HistoryTrend")
	defer span.End()

	runs, err := s.history.LoadRuns(ctx, s.Config.History.Project, req.Since)
	if err != nil {
		return history.TrendReport{}, errors.AddContext(err, errors.CtxOperation, "load_runs")
	}
	report, err := history.BuildTrendReport(s.Config.History.Project, runs, req.Window)
	if err != nil {
		return history.TrendReport{}, errors.Wrap(err, errors.CodeNotFound, "build trend report")
	}
	return report, nil
}
