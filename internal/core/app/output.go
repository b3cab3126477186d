package app

import (
	"context"
	"fmt"
	"strings"

	"planboard/internal/core/errors"
	"planboard/internal/core/ports"
	"planboard/internal/data/snapshot"
	"planboard/internal/shared/observability"
	"planboard/internal/shared/util"
	"planboard/internal/shared/version"
	"planboard/internal/ui/report/formats"
)

const (
	FormatMermaid  = "mermaid"
	FormatDOT      = "dot"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// View projects an analysis onto what the diagram renderers draw.
func View(a ports.Analysis) formats.PlanView {
	view := formats.PlanView{
		Nodes:   a.Snapshot.Nodes,
		Edges:   a.Snapshot.Edges,
		Orphans: a.Evaluation.Orphans,
	}
	for _, c := range a.Dependencies.Cycles {
		view.Cycles = append(view.Cycles, c.Cycle)
	}
	if a.Dependencies.CriticalPath != nil {
		view.CriticalPath = a.Dependencies.CriticalPath.Path
	}
	return view
}

// Render produces one artifact for the analysis in the named format.
func (s *Service) Render(a ports.Analysis, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMermaid:
		return formats.NewMermaidGenerator(View(a)).Generate()
	case FormatDOT:
		return formats.NewDOTGenerator(View(a)).Generate()
	case FormatMarkdown:
		diagram, err := formats.NewMermaidGenerator(View(a)).Generate()
		if err != nil {
			return "", err
		}
		return formats.NewMarkdownGenerator().Generate(formats.MarkdownReportData{
			NodeCount:    len(a.Snapshot.Nodes),
			EdgeCount:    len(a.Snapshot.Edges),
			Rings:        a.Rings,
			Dependencies: a.Dependencies,
			Foundation:   a.Foundation,
		}, formats.MarkdownReportOptions{
			ProjectName:         s.Config.History.Project,
			Version:             version.Version,
			TableOfContents:     true,
			CollapsibleSections: true,
			IncludeMermaid:      true,
			MermaidDiagram:      diagram,
		})
	case FormatJSON:
		data, err := snapshot.Encode(a.Snapshot, snapshot.FormatJSON)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", errors.Newf(errors.CodeNotSupported, "unsupported output format %q", format)
	}
}

// WriteOutputs renders every configured artifact into the output directory.
// The JSON artifact is the snapshot with the foundation proposal merged in.
func (s *Service) WriteOutputs(ctx context.Context, a ports.Analysis) (ports.OutputsResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "planService.WriteOutputs")
	defer span.End()

	targets := []struct {
		format string
		path   string
	}{
		{FormatMermaid, s.Paths.OutputFile(s.Config.Output.Mermaid)},
		{FormatDOT, s.Paths.OutputFile(s.Config.Output.DOT)},
		{FormatMarkdown, s.Paths.OutputFile(s.Config.Output.Markdown)},
		{FormatJSON, s.Paths.OutputFile(s.Config.Output.JSON)},
	}

	var result ports.OutputsResult
	for _, target := range targets {
		if target.path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		artifact := a
		if target.format == FormatJSON {
			applied, err := s.ApplyFoundation(ctx, a.Snapshot, a.Foundation)
			if err != nil {
				return result, err
			}
			artifact.Snapshot = applied.Snapshot
		}
		content, err := s.Render(artifact, target.format)
		if err != nil {
			return result, errors.AddContext(err, errors.CtxOperation, fmt.Sprintf("render_%s", target.format))
		}
		if err := util.WriteStringWithDirs(target.path, content, 0o644); err != nil {
			return result, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write output"), errors.CtxPath, target.path)
		}
		s.logger.Info("wrote output", "format", target.format, "path", target.path)
		result.Written = append(result.Written, target.path)
	}
	return result, nil
}
