package hierarchy

import (
	"fmt"
	"strings"

	"planboard/internal/engine/graph"
)

// FoundationReport summarises one foundation pass.
type FoundationReport struct {
	Orphans                int
	ProposedEdges          int
	CreatedIntermediates   int
	CreatedClassifications int
	WiredIntermediates     int
	Issues                 []Issue
}

// FoundationResult is the proposal the caller merges into its plan.
type FoundationResult struct {
	NodesToCreate []graph.Node
	EdgesToCreate []graph.Edge
	Report        FoundationReport
}

// Empty reports whether the pass proposes no change.
func (r FoundationResult) Empty() bool {
	return len(r.NodesToCreate) == 0 && len(r.EdgesToCreate) == 0
}

// ProcessFoundationEdges evaluates the plan, synthesizes the missing
// intermediates, wires unattached intermediates to classifications and
// returns the union of new nodes and edges. A domain with no ring-1
// classification gets one under the root, so no proposed edge skips a ring. Running it again on the merged
// result proposes nothing.
func (a *Associator) ProcessFoundationEdges(nodes []graph.Node, edges []graph.Edge) FoundationResult {
	ix := graph.NewIndex(nodes, edges)
	ev := a.EvaluateEdges(nodes, edges)
	created := a.GenerateMissingIntermediateNodes(nodes, ev.SuggestedIntermediateNodes)

	report := FoundationReport{
		Orphans: len(ev.Orphans),
		Issues:  append([]Issue(nil), ev.Issues...),
	}

	createdIDs := make(map[string]bool, len(created))
	for _, n := range created {
		createdIDs[n.ID] = true
	}

	// Suggestions skipped during synthesis resolve to the node already
	// carrying their label.
	suggestions := make(map[string]bool, len(ev.SuggestedIntermediateNodes))
	remap := make(map[string]string)
	for _, s := range ev.SuggestedIntermediateNodes {
		suggestions[s.ID] = true
		if createdIDs[s.ID] {
			continue
		}
		if id, ok := existingAtRing(ix, s.Label, s.Ring); ok {
			remap[s.ID] = id
		}
	}

	var proposed []graph.Edge
	for _, e := range ev.OptimalEdges {
		if !suggestions[e.Source] || createdIDs[e.Source] {
			proposed = append(proposed, e)
			continue
		}
		if parent, ok := remap[e.Source]; ok {
			proposed = append(proposed, graph.NewStructuralEdge(parent, e.Target))
			continue
		}
		report.Issues = append(report.Issues, Issue{
			NodeID:      e.Target,
			Kind:        IssueUnresolvable,
			Message:     fmt.Sprintf("intermediate %s could not be created", e.Source),
			Remediation: "resolve the id conflict and re-run",
		})
	}

	toWire := append([]graph.Node(nil), created...)
	for _, n := range ix.Nodes() {
		if n.Ring == graph.RingDomainParent && !ix.HasStructuralParent(n.ID) {
			toWire = append(toWire, n)
		}
	}
	all := append(append([]graph.Node(nil), nodes...), created...)
	classes, classEdges := synthesizeClassifications(all, toWire)
	all = append(all, classes...)
	proposed = append(proposed, classEdges...)

	wiring, wiringIssues := a.ConnectIntermediateToClassifications(all, toWire)
	report.Issues = append(report.Issues, wiringIssues...)
	report.WiredIntermediates = len(wiring)
	proposed = append(proposed, wiring...)

	seen := make(map[graph.EdgeKey]bool, len(proposed))
	var out []graph.Edge
	for _, e := range proposed {
		k := e.Key()
		if seen[k] || ix.HasEdge(e.Source, e.Target, e.RelationshipType) {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}

	report.ProposedEdges = len(out)
	report.CreatedIntermediates = len(created)
	report.CreatedClassifications = len(classes)

	a.logger.Debug("foundation processed",
		"orphans", report.Orphans,
		"nodes", len(created)+len(classes),
		"edges", len(out),
		"issues", len(report.Issues),
	)

	return FoundationResult{
		NodesToCreate: append(created, classes...),
		EdgesToCreate: out,
		Report:        report,
	}
}

var domainClassificationLabels = map[graph.Domain]string{
	graph.DomainProduct:    "Product",
	graph.DomainTech:       "Technology",
	graph.DomainProcess:    "Process",
	graph.DomainPeople:     "People",
	graph.DomainResources:  "Resources",
	graph.DomainOperations: "Operations",
	graph.DomainBusiness:   "Business",
	graph.DomainDataAI:     "Data",
}

// classificationLabel names the classification synthesized for inter. Without
// a domain the intermediate's own label is used so that label matching finds it.
func classificationLabel(inter graph.Node) string {
	if inter.Domain == "" {
		return strings.TrimSpace(inter.Label)
	}
	if label, ok := domainClassificationLabels[inter.Domain]; ok {
		return label
	}
	return string(inter.Domain)
}

// synthesizeClassifications creates a root-attached ring-1 node for every
// intermediate in toWire that no classification in nodes would accept. It
// proposes nothing when the plan has no root or the id is already taken.
func synthesizeClassifications(nodes, toWire []graph.Node) ([]graph.Node, []graph.Edge) {
	ix := graph.NewIndex(nodes, nil)
	root, ok := ix.Root()
	if !ok {
		return nil, nil
	}
	classifications := ix.AtRing(graph.RingClassification)

	var created []graph.Node
	var edges []graph.Edge
	for _, inter := range toWire {
		if _, found := classificationFor(classifications, inter); found {
			continue
		}
		label := classificationLabel(inter)
		key := slug(label)
		if key == "" || ix.Has("classification-"+key) {
			continue
		}
		n := graph.Node{
			ID:     "classification-" + key,
			Label:  label,
			Type:   graph.TypeClassification,
			Domain: inter.Domain,
			Ring:   graph.RingClassification,
			Tags:   []string{graph.TagAutoGenerated},
		}
		created = append(created, n)
		classifications = append(classifications, n)
		edges = append(edges, graph.NewStructuralEdge(root.ID, n.ID))
	}
	return created, edges
}
