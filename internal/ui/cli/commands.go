package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"planboard/internal/core/errors"
	"planboard/internal/core/ports"
	"planboard/internal/data/snapshot"
	"planboard/internal/engine/dedupe"
	"planboard/internal/engine/graph"
	"planboard/internal/ui/report/formats"
)

// analyzeArgs loads the snapshots named by args (or the configured ones) and
// runs the full analysis.
func analyzeArgs(cmd *cobra.Command, args []string, opts runtimeOptions) (*runtime, ports.Analysis, error) {
	rt, err := newRuntime(cmd, args, opts)
	if err != nil {
		return nil, ports.Analysis{}, err
	}
	ctx := commandContext(cmd)
	snap, err := rt.svc.LoadSnapshot(ctx)
	if err != nil {
		rt.Close()
		return nil, ports.Analysis{}, err
	}
	analysis, err := rt.svc.Analyze(ctx, snap)
	if err != nil {
		rt.Close()
		return nil, ports.Analysis{}, err
	}
	return rt, analysis, nil
}

func RunValidate(cmd *cobra.Command, args []string) error {
	rt, analysis, err := analyzeArgs(cmd, args, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := writeJSON(out, analysis.Rings); err != nil {
			return err
		}
	} else {
		printValidation(out, analysis.Rings)
	}
	if !analysis.Rings.IsValid {
		return exitWith(1, "")
	}
	return nil
}

func RunFoundation(cmd *cobra.Command, args []string) error {
	rt, analysis, err := analyzeArgs(cmd, args, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := writeJSON(out, analysis.Foundation); err != nil {
			return err
		}
	} else {
		printFoundation(out, analysis.Foundation)
	}

	applyPath, _ := cmd.Flags().GetString("apply")
	if strings.TrimSpace(applyPath) == "" {
		return nil
	}
	applied, err := rt.svc.ApplyFoundation(commandContext(cmd), analysis.Snapshot, analysis.Foundation)
	if err != nil {
		return err
	}
	if err := snapshot.Save(applyPath, applied.Snapshot); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (+%d nodes, +%d edges)\n", applyPath, applied.NodesAdded, applied.EdgesAdded)
	return nil
}

func RunDeps(cmd *cobra.Command, args []string) error {
	node, _ := cmd.Flags().GetString("node")
	start, _ := cmd.Flags().GetString("start")
	wouldCycle, _ := cmd.Flags().GetString("would-cycle")

	var proposed ports.ProposedEdge
	if wouldCycle != "" {
		var err error
		if proposed, err = parseProposedEdge(wouldCycle); err != nil {
			return err
		}
	}

	rt, analysis, err := analyzeArgs(cmd, args, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()
	switch {
	case wouldCycle != "":
		closes, err := rt.svc.WouldCreateCycle(ctx, analysis.Snapshot, proposed)
		if err != nil {
			return err
		}
		verdict := "no"
		if closes {
			verdict = "yes"
		}
		fmt.Fprintf(out, "%s -%s-> %s would create a cycle: %s\n", proposed.Source, proposed.Kind, proposed.Target, verdict)
		return nil
	case node != "":
		report, err := rt.svc.NodeDependencies(ctx, analysis.Snapshot, ports.DependencyQuery{NodeID: node})
		if err != nil {
			return err
		}
		printNodeDependencies(out, report)
		return nil
	}

	summary := analysis.Dependencies
	if start != "" {
		path, err := rt.svc.CriticalPath(ctx, analysis.Snapshot, start)
		summary.CriticalPath, summary.CriticalPathErr = path, err
		if err != nil && !errors.IsCode(err, errors.CodeConflict) {
			return err
		}
	}
	printDependencies(out, summary)
	return nil
}

func parseProposedEdge(raw string) (ports.ProposedEdge, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return ports.ProposedEdge{}, fmt.Errorf("--would-cycle must be formatted as <source>:<target>:<kind>")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return ports.ProposedEdge{}, fmt.Errorf("--would-cycle must be formatted as <source>:<target>:<kind>")
		}
	}
	return ports.ProposedEdge{Source: parts[0], Target: parts[1], Kind: graph.RelationshipType(parts[2])}, nil
}

func RunDedupe(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	nodeType, _ := cmd.Flags().GetString("type")
	domain, _ := cmd.Flags().GetString("domain")
	keywords, _ := cmd.Flags().GetStringSlice("keyword")

	rt, err := newRuntime(cmd, args, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := commandContext(cmd)
	snap, err := rt.svc.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	result, conflicts, err := rt.svc.FindExisting(ctx, snap, dedupe.Candidate{
		Label:    label,
		Type:     graph.NodeType(strings.TrimSpace(nodeType)),
		Domain:   graph.Domain(strings.TrimSpace(domain)),
		Keywords: keywords,
	})
	if err != nil {
		return err
	}
	printDedupe(cmd.OutOrStdout(), result, conflicts)
	return nil
}

func RunQuery(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	rt, err := newRuntime(cmd, args[1:], runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := commandContext(cmd)
	snap, err := rt.svc.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	rows, err := rt.svc.QueryNodes(ctx, snap, args[0], limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "ring\tid\ttype\tdomain\tdeps\tdependents\tlabel")
	for _, r := range rows {
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.Node.Ring, r.Node.ID, r.Node.Type, r.Node.Domain, r.Dependencies, r.Dependents, r.Node.Label)
	}
	return nil
}

func RunExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	rt, analysis, err := analyzeArgs(cmd, args, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		applied, err := rt.svc.ApplyFoundation(commandContext(cmd), analysis.Snapshot, analysis.Foundation)
		if err != nil {
			return err
		}
		analysis.Snapshot = applied.Snapshot
	}
	content, err := rt.svc.Render(analysis, format)
	if err != nil {
		return err
	}
	if strings.TrimSpace(output) == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := writeBytes(output, []byte(content)); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}

func RunWatch(cmd *cobra.Command, args []string) error {
	uiMode, _ := cmd.Flags().GetBool("ui")
	once, _ := cmd.Flags().GetBool("once")

	rt, err := newRuntime(cmd, args, runtimeOptions{uiMode: uiMode})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if once {
		update := rt.svc.RunOnce(ctx, nil)
		printWatchUpdate(out, update)
		if update.Err != nil {
			return exitWith(1, "")
		}
		return nil
	}

	if addr := strings.TrimSpace(rt.cfg.Observability.MetricsAddr); addr != "" {
		server := NewObservabilityServer(addr, newHealthService(rt))
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: observability server shutdown: %v\n", err)
			}
		}()
	}

	if uiMode {
		return runUI(ctx, rt)
	}
	return rt.svc.Watch(ctx, func(update ports.WatchUpdate) {
		printWatchUpdate(out, update)
	})
}

func RunHistory(cmd *cobra.Command, args []string) error {
	sinceRaw, _ := cmd.Flags().GetString("since")
	windowRaw, _ := cmd.Flags().GetString("window")
	tsvPath, _ := cmd.Flags().GetString("tsv")
	jsonPath, _ := cmd.Flags().GetString("json")

	since, err := parseSince(sinceRaw)
	if err != nil {
		return err
	}
	window, err := parseHistoryWindow(windowRaw)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, nil, runtimeOptions{forceHistory: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	trend, err := rt.svc.HistoryTrend(commandContext(cmd), ports.HistoryTrendRequest{Since: since, Window: window})
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "History: no runs matched the requested time window.")
			return nil
		}
		return err
	}
	printTrend(cmd.OutOrStdout(), trend)

	if tsvPath != "" {
		tsv, err := formats.RenderTrendTSV(trend)
		if err != nil {
			return fmt.Errorf("render trend TSV: %w", err)
		}
		if err := writeBytes(tsvPath, tsv); err != nil {
			return fmt.Errorf("write trend TSV %q: %w", tsvPath, err)
		}
	}
	if jsonPath != "" {
		raw, err := formats.RenderTrendJSON(trend)
		if err != nil {
			return fmt.Errorf("render trend JSON: %w", err)
		}
		if err := writeBytes(jsonPath, raw); err != nil {
			return fmt.Errorf("write trend JSON %q: %w", jsonPath, err)
		}
	}
	return nil
}

func writeJSON(w interface{ Write([]byte) (int, error) }, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
