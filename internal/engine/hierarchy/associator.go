// Package hierarchy attaches orphaned plan nodes to the ring-leveled tree:
// it resolves ideal parents by rule, proposes missing ring-2 intermediates and
// wires them to ring-1 classifications.
package hierarchy

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"planboard/internal/engine/graph"
)

type IssueKind string

const (
	IssueMissingIntermediate IssueKind = "missing-intermediate"
	IssueUnresolvable        IssueKind = "unresolvable"
	IssueRingGap             IssueKind = "ring-gap"
	IssueRootFallback        IssueKind = "root-fallback"
)

// Issue is a named association problem surfaced to the caller.
type Issue struct {
	NodeID      string
	Kind        IssueKind
	Message     string
	Remediation string
}

// IntermediateSuggestion describes a parent that should exist but does not.
// No node is created for it until synthesis.
type IntermediateSuggestion struct {
	ID          string
	Label       string
	Type        graph.NodeType
	Domain      graph.Domain
	Ring        int
	Reason      string
	RequestedBy []string
}

type Resolution struct {
	ParentID             string
	NeedsNewIntermediate bool
	Suggested            *IntermediateSuggestion
	Rule                 string
}

// Resolved reports whether an existing parent was found.
func (r Resolution) Resolved() bool {
	return r.ParentID != ""
}

type Associator struct {
	rules  *RuleTable
	logger *slog.Logger
}

// NewAssociator returns an associator over rules. A nil table uses the
// built-in rules.
func NewAssociator(rules *RuleTable, logger *slog.Logger) *Associator {
	if rules == nil {
		rules = DefaultRuleTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Associator{rules: rules, logger: logger}
}

// IntermediateID is the synthetic id used for a suggested intermediate with
// the given label.
func IntermediateID(label string) string {
	return "intermediate-" + slug(label)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// FindOptimalParent resolves the parent of nodeID. nodeType overrides the
// node's stored type when non-empty.
func (a *Associator) FindOptimalParent(nodeID string, nodes []graph.Node, edges []graph.Edge, nodeType graph.NodeType) Resolution {
	return a.resolve(nodeID, graph.NewIndex(nodes, edges), nodeType)
}

func (a *Associator) resolve(nodeID string, ix *graph.Index, nodeType graph.NodeType) Resolution {
	node, ok := ix.Node(nodeID)
	if !ok {
		node = graph.Node{ID: nodeID, Type: nodeType}
	}
	if nodeType == "" {
		nodeType = node.Type
	}

	rule, ok := a.rules.Lookup(node, nodeType)
	if !ok {
		return Resolution{}
	}

	if id, ok := findParent(ix, rule.IdealParent, nodeID); ok {
		return Resolution{ParentID: id, Rule: rule.Name}
	}
	for _, fb := range rule.Fallbacks {
		if id, ok := findParent(ix, fb, nodeID); ok {
			a.logger.Debug("fallback parent selected", "node", nodeID, "parent", id, "rule", rule.Name)
			return Resolution{ParentID: id, Rule: rule.Name}
		}
	}
	if !rule.CreateIntermediateIfMissing {
		return Resolution{Rule: rule.Name}
	}

	ideal := rule.IdealParent
	return Resolution{
		NeedsNewIntermediate: true,
		Rule:                 rule.Name,
		Suggested: &IntermediateSuggestion{
			ID:          IntermediateID(ideal.Label),
			Label:       ideal.Label,
			Type:        ideal.Type,
			Domain:      ideal.Domain,
			Ring:        ideal.Ring,
			Reason:      fmt.Sprintf("no %q node exists to parent %s", ideal.Label, nodeID),
			RequestedBy: []string{nodeID},
		},
	}
}

// findParent returns the existing node matching spec by type and label,
// excluding the node being placed. Connected candidates are preferred, then
// the lowest id.
func findParent(ix *graph.Index, spec ParentSpec, excludeID string) (string, bool) {
	var fallback string
	for _, n := range ix.FindByLabel(spec.Label) {
		if n.ID == excludeID || n.Type != spec.Type {
			continue
		}
		if ix.HasStructuralParent(n.ID) {
			return n.ID, true
		}
		if fallback == "" {
			fallback = n.ID
		}
	}
	return fallback, fallback != ""
}

// Evaluation is the whole-graph association proposal.
type Evaluation struct {
	Orphans                    []string
	OptimalEdges               []graph.Edge
	SuggestedIntermediateNodes []IntermediateSuggestion
	Issues                     []Issue
}

// isOrphanLeaf reports whether n is a ring-3+ node without a hierarchy
// parent.
func isOrphanLeaf(ix *graph.Index, n graph.Node) bool {
	return n.Ring >= graph.RingLeaf && !ix.HasStructuralParent(n.ID)
}

// EvaluateEdges proposes a parent edge for every orphaned leaf. Edges are only
// proposed to parents exactly one ring above the orphan.
func (a *Associator) EvaluateEdges(nodes []graph.Node, edges []graph.Edge) Evaluation {
	ix := graph.NewIndex(nodes, edges)
	var ev Evaluation
	suggested := make(map[string]int)

	for _, n := range ix.Nodes() {
		if !isOrphanLeaf(ix, n) {
			continue
		}
		ev.Orphans = append(ev.Orphans, n.ID)
		res := a.resolve(n.ID, ix, "")

		switch {
		case res.Resolved():
			parent, _ := ix.Node(res.ParentID)
			if parent.Ring != n.Ring-1 {
				ev.Issues = append(ev.Issues, Issue{
					NodeID:      n.ID,
					Kind:        IssueRingGap,
					Message:     fmt.Sprintf("parent %s is at ring %d, %s is at ring %d", parent.ID, parent.Ring, n.ID, n.Ring),
					Remediation: fmt.Sprintf("set the ring of %s to %d or attach it manually", n.ID, parent.Ring+1),
				})
				continue
			}
			ev.OptimalEdges = append(ev.OptimalEdges, graph.NewStructuralEdge(parent.ID, n.ID))

		case res.NeedsNewIntermediate:
			s := *res.Suggested
			if s.Ring != n.Ring-1 {
				ev.Issues = append(ev.Issues, Issue{
					NodeID:      n.ID,
					Kind:        IssueRingGap,
					Message:     fmt.Sprintf("suggested parent %q would sit at ring %d, %s is at ring %d", s.Label, s.Ring, n.ID, n.Ring),
					Remediation: fmt.Sprintf("attach %s to a ring-%d node manually", n.ID, n.Ring-1),
				})
				continue
			}
			if i, ok := suggested[s.ID]; ok {
				ev.SuggestedIntermediateNodes[i].RequestedBy = append(ev.SuggestedIntermediateNodes[i].RequestedBy, n.ID)
			} else {
				suggested[s.ID] = len(ev.SuggestedIntermediateNodes)
				ev.SuggestedIntermediateNodes = append(ev.SuggestedIntermediateNodes, s)
			}
			ev.OptimalEdges = append(ev.OptimalEdges, graph.NewStructuralEdge(s.ID, n.ID))
			ev.Issues = append(ev.Issues, Issue{
				NodeID:      n.ID,
				Kind:        IssueMissingIntermediate,
				Message:     s.Reason,
				Remediation: fmt.Sprintf("create %q at ring %d", s.Label, s.Ring),
			})

		default:
			msg := fmt.Sprintf("no association rule applies to %s (type %q)", n.ID, n.Type)
			if res.Rule != "" {
				msg = fmt.Sprintf("rule %s found no parent for %s", res.Rule, n.ID)
			}
			ev.Issues = append(ev.Issues, Issue{
				NodeID:      n.ID,
				Kind:        IssueUnresolvable,
				Message:     msg,
				Remediation: "connect the node manually or add a hierarchy route for it",
			})
		}
	}

	a.logger.Debug("edges evaluated",
		"orphans", len(ev.Orphans),
		"edges", len(ev.OptimalEdges),
		"suggestions", len(ev.SuggestedIntermediateNodes),
		"issues", len(ev.Issues),
	)
	return ev
}

// GenerateMissingIntermediateNodes turns suggestions into nodes. Suggestions
// are deduplicated by label (first wins) and labels already present at the
// suggested ring are skipped.
func (a *Associator) GenerateMissingIntermediateNodes(nodes []graph.Node, suggestions []IntermediateSuggestion) []graph.Node {
	ix := graph.NewIndex(nodes, nil)
	seen := make(map[string]bool, len(suggestions))
	var out []graph.Node

	for _, s := range suggestions {
		key := strings.ToLower(strings.TrimSpace(s.Label))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, exists := existingAtRing(ix, s.Label, s.Ring); exists || ix.Has(s.ID) {
			continue
		}
		out = append(out, graph.Node{
			ID:     s.ID,
			Label:  s.Label,
			Type:   nodeTypeOr(s.Type, graph.TypeDomainParent),
			Domain: s.Domain,
			Ring:   s.Ring,
			Tags:   []string{graph.TagAutoGenerated, graph.TagIntermediate},
		})
	}
	return out
}

// existingAtRing returns the node carrying label at ring, preferring one that
// is already connected.
func existingAtRing(ix *graph.Index, label string, ring int) (string, bool) {
	var fallback string
	for _, n := range ix.FindByLabel(label) {
		if n.Ring != ring {
			continue
		}
		if ix.HasStructuralParent(n.ID) {
			return n.ID, true
		}
		if fallback == "" {
			fallback = n.ID
		}
	}
	return fallback, fallback != ""
}

// ConnectIntermediateToClassifications gives every intermediate one incoming
// edge: from the ring-1 node of the same domain, else from a ring-1 node whose
// label overlaps the intermediate's, else from the root.
func (a *Associator) ConnectIntermediateToClassifications(nodes []graph.Node, intermediates []graph.Node) ([]graph.Edge, []Issue) {
	ix := graph.NewIndex(nodes, nil)
	classifications := ix.AtRing(graph.RingClassification)
	root, hasRoot := ix.Root()

	var edges []graph.Edge
	var issues []Issue
	for _, inter := range intermediates {
		if parent, ok := classificationFor(classifications, inter); ok {
			edges = append(edges, graph.NewStructuralEdge(parent, inter.ID))
			continue
		}
		if !hasRoot {
			issues = append(issues, Issue{
				NodeID:      inter.ID,
				Kind:        IssueUnresolvable,
				Message:     fmt.Sprintf("no classification or root exists for %q", inter.Label),
				Remediation: "add a ring-0 root node",
			})
			continue
		}
		edges = append(edges, graph.NewStructuralEdge(root.ID, inter.ID))
		issues = append(issues, Issue{
			NodeID:      inter.ID,
			Kind:        IssueRootFallback,
			Message:     fmt.Sprintf("no classification matches %q (domain %q); attached to root", inter.Label, inter.Domain),
			Remediation: fmt.Sprintf("add a ring-1 classification for domain %q", inter.Domain),
		})
	}
	return edges, issues
}

func classificationFor(classifications []graph.Node, inter graph.Node) (string, bool) {
	if inter.Domain != "" {
		for _, c := range classifications {
			if c.ID != inter.ID && c.Domain == inter.Domain {
				return c.ID, true
			}
		}
	}
	label := strings.ToLower(strings.TrimSpace(inter.Label))
	for _, c := range classifications {
		cl := strings.ToLower(strings.TrimSpace(c.Label))
		if c.ID == inter.ID || cl == "" || label == "" {
			continue
		}
		if strings.Contains(cl, label) || strings.Contains(label, cl) {
			return c.ID, true
		}
	}
	return "", false
}

func nodeTypeOr(t, def graph.NodeType) graph.NodeType {
	if t == "" {
		return def
	}
	return t
}
