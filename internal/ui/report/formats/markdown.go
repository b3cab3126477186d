package formats

import (
	"fmt"
	"strings"
	"time"

	"planboard/internal/engine/dependency"
	"planboard/internal/engine/hierarchy"
	"planboard/internal/engine/rings"
)

type MarkdownReportData struct {
	NodeCount    int
	EdgeCount    int
	Rings        rings.Result
	Dependencies dependency.Summary
	Foundation   hierarchy.FoundationResult
}

type MarkdownReportOptions struct {
	ProjectName         string
	Version             string
	GeneratedAt         time.Time
	Verbosity           string
	TableOfContents     bool
	CollapsibleSections bool
	IncludeMermaid      bool
	MermaidDiagram      string
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (m *MarkdownGenerator) Generate(data MarkdownReportData, opts MarkdownReportOptions) (string, error) {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}
	verbosity := normalizeReportVerbosity(opts.Verbosity)
	includeDiagram := opts.IncludeMermaid && strings.TrimSpace(opts.MermaidDiagram) != ""

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: Plan Analysis Report\n")
	b.WriteString("project: " + nonEmpty(opts.ProjectName, "unknown") + "\n")
	b.WriteString("generated_at: " + opts.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(opts.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# Plan Analysis Report\n\n")
	if opts.TableOfContents {
		b.WriteString("## Table of Contents\n")
		b.WriteString("- [Executive Summary](#executive-summary)\n")
		b.WriteString("- [Ring Violations](#ring-violations)\n")
		b.WriteString("- [Dependency Cycles](#dependency-cycles)\n")
		b.WriteString("- [Critical Path](#critical-path)\n")
		b.WriteString("- [Foundation Proposals](#foundation-proposals)\n")
		if verbosity != "summary" {
			b.WriteString("- [Relationship Suggestions](#relationship-suggestions)\n")
		}
		if includeDiagram {
			b.WriteString("- [Plan Diagram](#plan-diagram)\n")
		}
		b.WriteString("\n")
	}

	deps := data.Dependencies
	report := data.Foundation.Report
	b.WriteString("## Executive Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Nodes | %d |\n", data.NodeCount))
	b.WriteString(fmt.Sprintf("| Edges | %d (%d structural, %d hard, %d soft) |\n",
		data.EdgeCount, deps.Stats.Structural, deps.Stats.Hard, deps.Stats.Soft))
	b.WriteString(fmt.Sprintf("| Ring Hierarchy Valid | %t |\n", data.Rings.IsValid))
	b.WriteString(fmt.Sprintf("| Ring Errors | %d |\n", len(data.Rings.Errors())))
	b.WriteString(fmt.Sprintf("| Ring Warnings | %d |\n", len(data.Rings.Warnings())))
	b.WriteString(fmt.Sprintf("| Dependency Cycles | %d |\n", len(deps.Cycles)))
	b.WriteString(fmt.Sprintf("| Orphans | %d |\n", report.Orphans))
	b.WriteString(fmt.Sprintf("| Proposed Edges | %d |\n", report.ProposedEdges))
	b.WriteString(fmt.Sprintf("| Proposed Intermediates | %d |\n", report.CreatedIntermediates))
	if deps.CriticalPath != nil {
		b.WriteString(fmt.Sprintf("| Critical Path Weight | %.2f |\n", deps.CriticalPath.TotalWeight))
	}
	b.WriteString("\n")

	m.writeViolations(&b, data.Rings, opts.CollapsibleSections)
	m.writeCycles(&b, deps.Cycles, opts.CollapsibleSections)
	m.writeCriticalPath(&b, deps)
	m.writeFoundation(&b, data.Foundation, opts.CollapsibleSections, verbosity)
	if verbosity != "summary" {
		m.writeSuggestions(&b, deps.Suggestions, opts.CollapsibleSections)
	}

	if includeDiagram {
		b.WriteString("## Plan Diagram\n")
		b.WriteString("```mermaid\n")
		b.WriteString(strings.TrimSpace(opts.MermaidDiagram))
		b.WriteString("\n```\n")
	}

	return b.String(), nil
}

func (m *MarkdownGenerator) writeViolations(b *strings.Builder, result rings.Result, collapsible bool) {
	b.WriteString("## Ring Violations\n")
	if len(result.Violations) == 0 {
		b.WriteString("No ring violations detected.\n\n")
		return
	}
	rows := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		rows = append(rows, fmt.Sprintf("| %s | `%s` | `%s` | %s |\n", severityBadge(v.Severity), v.NodeID, v.Check, escapeCell(v.Message)))
	}
	m.writeTableWithCollapse(
		b,
		"Violation details",
		collapsible,
		len(rows) > 10,
		[]string{"| Severity | Node | Check | Message |\n", "| --- | --- | --- | --- |\n"},
		rows,
	)
}

func (m *MarkdownGenerator) writeCycles(b *strings.Builder, cycles []dependency.CircularDependency, collapsible bool) {
	b.WriteString("## Dependency Cycles\n")
	if len(cycles) == 0 {
		b.WriteString("No dependency cycles detected.\n\n")
		return
	}
	rows := make([]string, 0, len(cycles))
	for i, c := range cycles {
		path := append(append([]string(nil), c.Cycle...), c.Cycle[0])
		rows = append(rows, fmt.Sprintf("| %d | `%s` | %d |\n", i+1, strings.Join(path, " -> "), len(c.Cycle)))
	}
	m.writeTableWithCollapse(
		b,
		"Cycle details",
		collapsible,
		len(rows) > 10,
		[]string{"| # | Waits On | Length |\n", "| --- | --- | --- |\n"},
		rows,
	)
}

func (m *MarkdownGenerator) writeCriticalPath(b *strings.Builder, deps dependency.Summary) {
	b.WriteString("## Critical Path\n")
	switch {
	case deps.CriticalPathErr != nil:
		b.WriteString("Critical path unavailable: " + deps.CriticalPathErr.Error() + "\n\n")
	case deps.CriticalPath == nil || len(deps.CriticalPath.Path) == 0:
		b.WriteString("No hard dependencies recorded.\n\n")
	default:
		b.WriteString(fmt.Sprintf("`%s` (total weight %.2f)\n\n", strings.Join(deps.CriticalPath.Path, " -> "), deps.CriticalPath.TotalWeight))
	}
	if len(deps.Deepest) > 0 {
		b.WriteString("| Node | Depth |\n| --- | --- |\n")
		for _, d := range deps.Deepest {
			b.WriteString(fmt.Sprintf("| `%s` | %d |\n", d.ID, d.Depth))
		}
		b.WriteString("\n")
	}
}

func (m *MarkdownGenerator) writeFoundation(b *strings.Builder, result hierarchy.FoundationResult, collapsible bool, verbosity string) {
	b.WriteString("## Foundation Proposals\n")
	if result.Empty() && len(result.Report.Issues) == 0 {
		b.WriteString("Hierarchy is complete; nothing to propose.\n\n")
		return
	}

	if len(result.NodesToCreate) > 0 {
		b.WriteString("### Intermediate Nodes\n")
		rows := make([]string, 0, len(result.NodesToCreate))
		for _, n := range result.NodesToCreate {
			rows = append(rows, fmt.Sprintf("| `%s` | %s | %s | %d |\n", n.ID, escapeCell(n.Label), n.Domain, n.Ring))
		}
		m.writeTableWithCollapse(b, "Intermediate details", collapsible, len(rows) > 10,
			[]string{"| Id | Label | Domain | Ring |\n", "| --- | --- | --- | --- |\n"}, rows)
	}

	if len(result.EdgesToCreate) > 0 && verbosity != "summary" {
		b.WriteString("### Structural Edges\n")
		rows := make([]string, 0, len(result.EdgesToCreate))
		for _, e := range result.EdgesToCreate {
			rows = append(rows, fmt.Sprintf("| `%s` | `%s` |\n", e.Source, e.Target))
		}
		m.writeTableWithCollapse(b, "Edge details", collapsible, len(rows) > 10,
			[]string{"| Parent | Child |\n", "| --- | --- |\n"}, rows)
	}

	if len(result.Report.Issues) > 0 {
		b.WriteString("### Issues\n")
		rows := make([]string, 0, len(result.Report.Issues))
		for _, is := range result.Report.Issues {
			if verbosity == "detailed" {
				rows = append(rows, fmt.Sprintf("| `%s` | `%s` | %s | %s |\n", is.NodeID, is.Kind, escapeCell(is.Message), escapeCell(is.Remediation)))
				continue
			}
			rows = append(rows, fmt.Sprintf("| `%s` | `%s` | %s |\n", is.NodeID, is.Kind, escapeCell(is.Message)))
		}
		header := []string{"| Node | Kind | Message |\n", "| --- | --- | --- |\n"}
		if verbosity == "detailed" {
			header = []string{"| Node | Kind | Message | Remediation |\n", "| --- | --- | --- | --- |\n"}
		}
		m.writeTableWithCollapse(b, "Issue details", collapsible, len(rows) > 10, header, rows)
	}
}

func (m *MarkdownGenerator) writeSuggestions(b *strings.Builder, suggestions []dependency.Suggestion, collapsible bool) {
	b.WriteString("## Relationship Suggestions\n")
	if len(suggestions) == 0 {
		b.WriteString("No relationship suggestions.\n\n")
		return
	}
	rows := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, fmt.Sprintf("| `%s` | `%s` | `%s` | %s |\n", s.Source, s.RelationshipType, s.Target, escapeCell(s.Reason)))
	}
	m.writeTableWithCollapse(b, "Suggestion details", collapsible, len(rows) > 10,
		[]string{"| Source | Kind | Target | Reason |\n", "| --- | --- | --- | --- |\n"}, rows)
}

func (m *MarkdownGenerator) writeTableWithCollapse(
	b *strings.Builder,
	summary string,
	collapsible bool,
	collapse bool,
	header []string,
	rows []string,
) {
	if collapsible && collapse {
		b.WriteString("<details>\n")
		b.WriteString("<summary>")
		b.WriteString(summary)
		b.WriteString("</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapsible && collapse {
		b.WriteString("</details>\n\n")
	}
}

func severityBadge(s rings.Severity) string {
	if s == rings.SeverityError {
		return "🔴 error"
	}
	return "🟡 warning"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func normalizeReportVerbosity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "summary":
		return "summary"
	case "detailed":
		return "detailed"
	default:
		return "standard"
	}
}
