package cli

import (
	"fmt"
	"strings"

	"planboard/internal/data/history"
)

func renderHelp(m model) string {
	keys := "Keys: tab panel | / filter | enter details | esc back | t trend overlay | j/k dependency cursor | o follow dependency | q quit"
	if m.mode == panelIssues {
		keys = "Keys: tab panel | / filter | t trend overlay | q quit"
	}
	return statusStyle.Render(keys)
}

func renderNodePanel(m model) string {
	summary := m.nodeList.View()
	details := renderNodeSummary(m)
	if m.hasDetails || m.detailsErr != "" {
		details = renderNodeDetails(m)
	}
	return summary + "\n\n" + details
}

func renderNodeSummary(m model) string {
	if len(m.nodes) == 0 {
		return statusStyle.Render("No nodes available.")
	}
	idx := m.nodeList.Index()
	if idx < 0 || idx >= len(m.nodes) {
		idx = 0
	}
	selected := m.nodes[idx]
	return strings.Join([]string{
		"Selected Node",
		fmt.Sprintf("  ID: %s", selected.ID),
		fmt.Sprintf("  Label: %s", selected.Label),
		fmt.Sprintf("  Type: %s | Domain: %s | Ring: %d", selected.Type, selected.Domain, selected.Ring),
		"  Press enter for dependency drill-down.",
	}, "\n")
}

func renderNodeDetails(m model) string {
	if m.detailsErr != "" {
		return errorStyle.Render("Node details error: " + m.detailsErr)
	}
	d := m.details
	lines := []string{
		fmt.Sprintf("Node Detail: %s (depth %d)", d.NodeID, d.Depth),
		fmt.Sprintf("  Waited on by (%d): %s", len(d.Dependents), listOrNone(d.Dependents)),
		fmt.Sprintf("  Upstream (%d): %s", len(d.DependencyChain), listOrNone(d.DependencyChain)),
		fmt.Sprintf("  Downstream (%d): %s", len(d.DependentChain), listOrNone(d.DependentChain)),
		fmt.Sprintf("  Waits on (%d):", len(d.Dependencies)),
	}
	for i, dep := range d.Dependencies {
		prefix := "   "
		if i == m.selectedDepIndex {
			prefix = " ->"
		}
		lines = append(lines, fmt.Sprintf("%s %s", prefix, dep))
	}
	if len(d.Dependencies) == 0 {
		lines = append(lines, "   none")
	}
	lines = append(lines, "  Press esc to exit details, o to follow the highlighted dependency.")
	return strings.Join(lines, "\n")
}

func renderTrendOverlay(report *history.TrendReport) string {
	if report == nil || len(report.Points) == 0 {
		return statusStyle.Render("Trend overlay unavailable (enable [history] to record runs).")
	}
	last := report.Points[len(report.Points)-1]
	return strings.Join([]string{
		"Trend Overlay",
		fmt.Sprintf("  Window: %s | Runs: %d", report.Window, report.RunCount),
		fmt.Sprintf("  Node growth: %+d (%.2f%%)", last.DeltaNodes, last.NodeGrowthPct),
		fmt.Sprintf("  Errors delta: %+d (avg %.2f) | Warnings delta: %+d", last.DeltaErrors, last.AvgErrors, last.DeltaWarnings),
		fmt.Sprintf("  Cycles delta: %+d (avg %.2f) | Orphans delta: %+d", last.DeltaCycles, last.AvgCycles, last.DeltaOrphans),
		fmt.Sprintf("  Critical path drift: %+0.2f (now %.2f)", last.DeltaCriticalPath, last.CriticalPathWeight),
	}, "\n")
}
