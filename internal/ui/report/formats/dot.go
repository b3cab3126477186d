package formats

import (
	"fmt"
	"strings"

	"planboard/internal/engine/graph"
)

type DOTGenerator struct {
	view PlanView
}

func NewDOTGenerator(view PlanView) *DOTGenerator {
	return &DOTGenerator{view: view}
}

// Generate renders the plan as a Graphviz digraph with one cluster per ring.
func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph plan {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.5;\n")
	buf.WriteString("  overlap=false;\n\n")

	cycleNodes := d.view.cycleNodes()
	orphans := make(map[string]bool, len(d.view.Orphans))
	for _, id := range d.view.Orphans {
		orphans[id] = true
	}

	rings, groups := ringGroups(d.view.Nodes)
	for _, ring := range rings {
		buf.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n", ringKey(ring)))
		buf.WriteString(fmt.Sprintf("    label=%q;\n", ringTitle(ring)))
		buf.WriteString("    style=filled;\n")
		buf.WriteString("    color=\"whitesmoke\";\n")
		buf.WriteString("    node [fillcolor=\"white\", style=\"rounded,filled\"];\n")
		for _, n := range groups[ring] {
			buf.WriteString(fmt.Sprintf("    %q [%s];\n", n.ID, dotNodeAttrs(n, cycleNodes[n.ID], orphans[n.ID])))
		}
		buf.WriteString("  }\n\n")
	}

	cyclePairs := d.view.cyclePairs()
	criticalPairs := d.view.criticalPairs()
	for _, e := range sortedEdges(d.view.Edges) {
		var attrs []string
		switch {
		case d.view.isCycleEdge(e, cyclePairs):
			attrs = append(attrs, "color=\"red\"", "penwidth=2.5", fmt.Sprintf("label=%q", "CYCLE "+string(e.RelationshipType)))
		case e.RelationshipType.IsStructural():
			attrs = append(attrs, "color=\"gray40\"", "arrowhead=none")
		default:
			attrs = append(attrs, "style=dashed", fmt.Sprintf("label=%q", string(e.RelationshipType)))
			if d.view.isCycleEdge(e, criticalPairs) {
				attrs = append(attrs, "color=\"#1f5fbf\"", "penwidth=2.5")
			}
		}
		buf.WriteString(fmt.Sprintf("  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(attrs, ", ")))
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func dotNodeAttrs(n graph.Node, inCycle, orphan bool) string {
	label := nonEmpty(n.Label, n.ID)
	if n.Type != "" {
		label += "\n(" + string(n.Type) + ")"
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch n.Type {
	case graph.TypeRoot:
		attrs = append(attrs, "shape=doublecircle")
	case graph.TypeClassification:
		attrs = append(attrs, "shape=hexagon")
	}
	switch {
	case inCycle:
		attrs = append(attrs, "color=\"red\"", "fillcolor=\"mistyrose\"", "penwidth=2")
	case orphan:
		attrs = append(attrs, "color=\"darkorange\"", "style=\"rounded,filled,dashed\"")
	case n.HasTag(graph.TagAutoGenerated):
		attrs = append(attrs, "fillcolor=\"lavender\"")
	}
	return strings.Join(attrs, ", ")
}
