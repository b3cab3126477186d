package formats

import (
	"fmt"
	"sort"
	"strings"

	"planboard/internal/engine/graph"
)

const mermaidInit = "%%{init: {'theme': 'base', 'themeVariables': {'textColor': '#000000', 'primaryTextColor': '#000000', 'lineColor': '#333333'}, 'flowchart': {'nodeSpacing': 60, 'rankSpacing': 90, 'curve': 'basis'}}}%%\n"

type MermaidGenerator struct {
	view PlanView
}

func NewMermaidGenerator(view PlanView) *MermaidGenerator {
	return &MermaidGenerator{view: view}
}

// Generate renders the plan as a top-down flowchart with one subgraph per
// ring. Structural edges are solid, semantic edges dotted and labelled.
func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString(mermaidInit)
	b.WriteString("flowchart TB\n")

	ids := makeIDs(nodeIDs(m.view.Nodes))
	rings, groups := ringGroups(m.view.Nodes)
	for _, ring := range rings {
		b.WriteString(fmt.Sprintf("  subgraph %s[\"%s\"]\n", ringKey(ring), ringTitle(ring)))
		for _, n := range groups[ring] {
			b.WriteString(fmt.Sprintf("    %s%s\n", ids[n.ID], mermaidShape(n)))
		}
		b.WriteString("  end\n")
	}

	b.WriteString("\n")
	m.writeClasses(&b, ids)

	b.WriteString("\n")
	cyclePairs := m.view.cyclePairs()
	criticalPairs := m.view.criticalPairs()
	var cycleLinks, criticalLinks, semanticLinks []int
	link := 0
	for _, e := range sortedEdges(m.view.Edges) {
		from, okFrom := ids[e.Source]
		to, okTo := ids[e.Target]
		if !okFrom || !okTo {
			continue
		}
		switch {
		case m.view.isCycleEdge(e, cyclePairs):
			b.WriteString(fmt.Sprintf("  %s -->|CYCLE %s| %s\n", from, e.RelationshipType, to))
			cycleLinks = append(cycleLinks, link)
		case e.RelationshipType.IsStructural():
			b.WriteString(fmt.Sprintf("  %s --> %s\n", from, to))
		default:
			b.WriteString(fmt.Sprintf("  %s -.->|%s| %s\n", from, e.RelationshipType, to))
			semanticLinks = append(semanticLinks, link)
			if m.view.isCycleEdge(e, criticalPairs) {
				criticalLinks = append(criticalLinks, link)
			}
		}
		link++
	}

	if len(cycleLinks)+len(criticalLinks)+len(semanticLinks) > 0 {
		b.WriteString("\n")
	}
	if len(semanticLinks) > 0 {
		b.WriteString(fmt.Sprintf("  linkStyle %s stroke:#777777,stroke-dasharray:4 3;\n", joinInts(semanticLinks)))
	}
	if len(criticalLinks) > 0 {
		b.WriteString(fmt.Sprintf("  linkStyle %s stroke:#1f5fbf,stroke-width:3px;\n", joinInts(criticalLinks)))
	}
	if len(cycleLinks) > 0 {
		b.WriteString(fmt.Sprintf("  linkStyle %s stroke:#cc0000,stroke-width:3px;\n", joinInts(cycleLinks)))
	}
	return b.String(), nil
}

func mermaidShape(n graph.Node) string {
	label := escapeLabel(nonEmpty(n.Label, n.ID))
	if n.Type != "" {
		label += "\\n(" + string(n.Type) + ")"
	}
	switch n.Type {
	case graph.TypeRoot:
		return fmt.Sprintf("((\"%s\"))", label)
	case graph.TypeClassification:
		return fmt.Sprintf("{{\"%s\"}}", label)
	case graph.TypeDomainParent:
		return fmt.Sprintf("[[\"%s\"]]", label)
	default:
		return fmt.Sprintf("[\"%s\"]", label)
	}
}

func (m *MermaidGenerator) writeClasses(b *strings.Builder, ids map[string]string) {
	var generated []string
	for _, n := range m.view.Nodes {
		if n.HasTag(graph.TagAutoGenerated) {
			generated = append(generated, n.ID)
		}
	}
	sort.Strings(generated)

	cycleSet := m.view.cycleNodes()
	cycleNodes := make([]string, 0, len(cycleSet))
	for id := range cycleSet {
		cycleNodes = append(cycleNodes, id)
	}
	sort.Strings(cycleNodes)

	critical := append([]string(nil), m.view.CriticalPath...)
	sort.Strings(critical)

	orphans := append([]string(nil), m.view.Orphans...)
	sort.Strings(orphans)

	classes := []struct {
		name  string
		style string
		ids   []string
	}{
		{"generatedNode", "fill:#f4f0ff,stroke:#6a4fb3,stroke-dasharray:3 2,color:#000000", generated},
		{"criticalNode", "stroke:#1f5fbf,stroke-width:3px,color:#000000", critical},
		{"orphanNode", "fill:#fff4e5,stroke:#c77700,stroke-dasharray:5 3,color:#000000", orphans},
		{"cycleNode", "fill:#ffecec,stroke:#cc0000,stroke-width:2px,color:#000000", cycleNodes},
	}
	for _, c := range classes {
		members := toIDs(c.ids, ids)
		if len(members) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  classDef %s %s;\n", c.name, c.style))
		b.WriteString(fmt.Sprintf("  class %s %s;\n", strings.Join(members, ","), c.name))
	}
}
