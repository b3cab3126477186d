package dependency

import (
	"sort"

	"planboard/internal/engine/graph"
)

type RelationshipStats struct {
	Total      int
	ByType     map[graph.RelationshipType]int
	Hard       int
	Soft       int
	Structural int
}

// Stats counts edges by relationship type. Structural edges are counted
// separately from the soft semantic kinds.
func Stats(edges []graph.Edge) RelationshipStats {
	s := RelationshipStats{ByType: make(map[graph.RelationshipType]int)}
	for _, e := range edges {
		kind := e.Key().Kind
		s.Total++
		s.ByType[kind]++
		switch {
		case kind.IsHard():
			s.Hard++
		case kind.IsStructural():
			s.Structural++
		default:
			s.Soft++
		}
	}
	return s
}

// Suggestion is a relationship the plan probably lacks.
type Suggestion struct {
	Source           string
	Target           string
	RelationshipType graph.RelationshipType
	Reason           string
}

func suggestKind(src, dst graph.Node) (graph.RelationshipType, string) {
	switch {
	case src.Type == graph.TypeFrontend && dst.Type == graph.TypeRequirement:
		return graph.RelImplements, "frontend work usually implements a requirement"
	case src.Type == graph.TypeBackend && dst.Type == graph.TypeRequirement:
		return graph.RelImplements, "backend work usually implements a requirement"
	case src.Type == graph.TypeDoc && dst.Type != graph.TypeDoc && !dst.Type.Structural():
		return graph.RelDocuments, "documentation should reference what it documents"
	case src.Type == graph.TypeFrontend && dst.Type == graph.TypeBackend:
		return graph.RelDependsOn, "frontends usually depend on a backend"
	}
	return "", ""
}

// SuggestRelationships proposes missing semantic edges between unconnected
// pairs, scanning nodes in id order, up to MaxSuggestions.
func (a *Analyzer) SuggestRelationships(nodes []graph.Node, edges []graph.Edge) []Suggestion {
	ix := graph.NewIndex(nodes, edges)
	sorted := ix.Nodes()
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var out []Suggestion
	paired := make(map[[2]string]bool)
	for _, src := range sorted {
		for _, dst := range sorted {
			if src.ID == dst.ID || ix.Connected(src.ID, dst.ID) {
				continue
			}
			kind, reason := suggestKind(src, dst)
			if kind == "" {
				continue
			}
			pair := [2]string{src.ID, dst.ID}
			if pair[0] > pair[1] {
				pair[0], pair[1] = pair[1], pair[0]
			}
			if paired[pair] {
				continue
			}
			paired[pair] = true
			out = append(out, Suggestion{Source: src.ID, Target: dst.ID, RelationshipType: kind, Reason: reason})
			if len(out) >= a.opts.MaxSuggestions {
				return out
			}
		}
	}
	return out
}

// Summary bundles every dependency report for one snapshot.
type Summary struct {
	Stats           RelationshipStats
	Cycles          []CircularDependency
	CriticalPath    *CriticalPath
	CriticalPathErr error
	Suggestions     []Suggestion
	Deepest         []NodeDepthEntry
}

const deepestLimit = 5

func (a *Analyzer) Summarize(nodes []graph.Node, edges []graph.Edge) Summary {
	s := Summary{
		Stats:       Stats(edges),
		Cycles:      a.DetectCycles(edges),
		Suggestions: a.SuggestRelationships(nodes, edges),
	}
	s.CriticalPath, s.CriticalPathErr = a.CriticalPath(edges, "")

	depths := a.Depths(edges)
	for _, d := range depths {
		if d.Depth == 0 || len(s.Deepest) == deepestLimit {
			break
		}
		s.Deepest = append(s.Deepest, d)
	}
	return s
}
