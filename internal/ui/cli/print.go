package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"planboard/internal/core/app"
	"planboard/internal/core/errors"
	"planboard/internal/core/ports"
	"planboard/internal/data/history"
	"planboard/internal/engine/dedupe"
	"planboard/internal/engine/dependency"
	"planboard/internal/engine/hierarchy"
	"planboard/internal/engine/rings"
)

func newHealthService(rt *runtime) *app.HealthService {
	return app.NewHealthService(rt.svc)
}

func printValidation(w io.Writer, result rings.Result) {
	if result.IsValid {
		fmt.Fprintf(w, "Rings: valid (%d nodes)\n", result.Stats.TotalNodes)
	} else {
		fmt.Fprintf(w, "Rings: %d of %d nodes invalid\n", result.Stats.InvalidNodes, result.Stats.TotalNodes)
	}
	for _, v := range result.Violations {
		fmt.Fprintf(w, "  [%s] %s %s: %s\n", v.Severity, v.Check, v.NodeID, v.Message)
	}
}

func printFoundation(w io.Writer, result hierarchy.FoundationResult) {
	r := result.Report
	fmt.Fprintf(w, "Foundation: %d orphans, %d proposed edges, %d intermediates created, %d wired\n",
		r.Orphans, r.ProposedEdges, r.CreatedIntermediates, r.WiredIntermediates)
	if r.CreatedClassifications > 0 {
		fmt.Fprintf(w, "  %d classifications created under the root\n", r.CreatedClassifications)
	}
	for _, n := range result.NodesToCreate {
		fmt.Fprintf(w, "  + node %s (%s, ring %d)\n", n.ID, n.Type, n.Ring)
	}
	for _, e := range result.EdgesToCreate {
		fmt.Fprintf(w, "  + edge %s -%s-> %s\n", e.Source, e.RelationshipType, e.Target)
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  ! %s %s: %s\n", issue.Kind, issue.NodeID, issue.Message)
		if issue.Remediation != "" {
			fmt.Fprintf(w, "    fix: %s\n", issue.Remediation)
		}
	}
	if result.Empty() {
		fmt.Fprintln(w, "  nothing to do")
	}
}

func printDependencies(w io.Writer, s dependency.Summary) {
	fmt.Fprintf(w, "Relationships: %d total (%d hard, %d soft, %d structural)\n",
		s.Stats.Total, s.Stats.Hard, s.Stats.Soft, s.Stats.Structural)

	if len(s.Cycles) == 0 {
		fmt.Fprintln(w, "Cycles: none")
	} else {
		fmt.Fprintf(w, "Cycles: %d\n", len(s.Cycles))
		for _, c := range s.Cycles {
			fmt.Fprintf(w, "  %s -> %s\n", strings.Join(c.Cycle, " -> "), c.Cycle[0])
		}
	}

	switch {
	case s.CriticalPathErr != nil:
		fmt.Fprintf(w, "Critical path: unavailable (%v)\n", s.CriticalPathErr)
		if cycles, ok := errorCycles(s.CriticalPathErr); ok {
			for _, c := range cycles {
				fmt.Fprintf(w, "  cycle: %s\n", strings.Join(c, " -> "))
			}
		}
	case s.CriticalPath == nil:
		fmt.Fprintln(w, "Critical path: none")
	default:
		fmt.Fprintf(w, "Critical path (weight %.1f): %s\n",
			s.CriticalPath.TotalWeight, strings.Join(s.CriticalPath.Path, " -> "))
	}

	for _, d := range s.Deepest {
		fmt.Fprintf(w, "  depth %d: %s\n", d.Depth, d.ID)
	}
	for _, sug := range s.Suggestions {
		fmt.Fprintf(w, "  suggest %s -%s-> %s (%s)\n", sug.Source, sug.RelationshipType, sug.Target, sug.Reason)
	}
}

func errorCycles(err error) ([][]string, bool) {
	var de *errors.DomainError
	if !stderrors.As(err, &de) || de.Context == nil {
		return nil, false
	}
	cycles, ok := de.Context[errors.CtxCycles].([][]string)
	return cycles, ok
}

func printNodeDependencies(w io.Writer, r ports.DependencyReport) {
	fmt.Fprintf(w, "Node %s (depth %d)\n", r.NodeID, r.Depth)
	fmt.Fprintf(w, "  waits on:      %s\n", listOrNone(r.Dependencies))
	fmt.Fprintf(w, "  waited on by:  %s\n", listOrNone(r.Dependents))
	fmt.Fprintf(w, "  all upstream:  %s\n", listOrNone(r.DependencyChain))
	fmt.Fprintf(w, "  all downstream: %s\n", listOrNone(r.DependentChain))
}

func printDedupe(w io.Writer, result dedupe.Result, conflicts []dedupe.Conflict) {
	if result.Found && result.ExistingNode != nil {
		fmt.Fprintf(w, "Existing node: %s (%s) matched by %s\n", result.ExistingNode.ID, result.ExistingNode.Label, result.Tier)
	} else {
		fmt.Fprintln(w, "Existing node: none")
	}
	for _, c := range conflicts {
		fmt.Fprintf(w, "  conflict %s (%s) via %s\n", c.Node.ID, c.Node.Label, c.Tier)
	}
}

func printWatchUpdate(w io.Writer, u ports.WatchUpdate) {
	stamp := u.At.Format(time.RFC3339)
	if u.Err != nil {
		fmt.Fprintf(w, "%s error: %v\n", stamp, u.Err)
		return
	}
	if u.Analysis == nil {
		return
	}
	a := u.Analysis
	fmt.Fprintf(w, "%s nodes=%d edges=%d errors=%d warnings=%d cycles=%d orphans=%d written=%d\n",
		stamp,
		len(a.Snapshot.Nodes),
		len(a.Snapshot.Edges),
		len(a.Rings.Errors()),
		len(a.Rings.Warnings()),
		len(a.Dependencies.Cycles),
		len(a.Evaluation.Orphans),
		len(u.Written),
	)
}

func printTrend(w io.Writer, report history.TrendReport) {
	fmt.Fprintf(w, "History: %d runs for %s (%s to %s, window %s)\n",
		report.RunCount, report.Project,
		report.Since.Format(time.RFC3339), report.Until.Format(time.RFC3339), report.Window)
	if len(report.Points) == 0 {
		return
	}
	last := report.Points[len(report.Points)-1]
	fmt.Fprintf(w, "  latest: nodes=%d (%+d, %.2f%%) errors=%d (%+d) cycles=%d (%+d) orphans=%d (%+d)\n",
		last.NodeCount, last.DeltaNodes, last.NodeGrowthPct,
		last.ErrorCount, last.DeltaErrors,
		last.CycleCount, last.DeltaCycles,
		last.OrphanCount, last.DeltaOrphans)
	fmt.Fprintf(w, "  critical path weight: %.1f (%+.1f)\n", last.CriticalPathWeight, last.DeltaCriticalPath)
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
