// Package dedupe finds existing plan nodes that already represent a concept
// before a new node is created for it.
package dedupe

import (
	"log/slog"
	"sort"
	"strings"

	"planboard/internal/engine/graph"
	"planboard/internal/engine/similarity"
)

// MatchTier identifies which matching stage recognised a node.
type MatchTier int

const (
	TierNone MatchTier = iota
	TierExactLabel
	TierTypeDomain
	TierFuzzyKeyword
)

func (t MatchTier) String() string {
	switch t {
	case TierExactLabel:
		return "exact-label"
	case TierTypeDomain:
		return "type-domain"
	case TierFuzzyKeyword:
		return "fuzzy-keyword"
	default:
		return "none"
	}
}

// Candidate describes a node the caller is about to create.
type Candidate struct {
	Label    string
	Type     graph.NodeType
	Domain   graph.Domain
	Keywords []string
}

// Malformed reports whether c lacks the data needed for matching.
func (c Candidate) Malformed() bool {
	return strings.TrimSpace(c.Label) == "" || c.Type == "" || c.Domain == ""
}

// keywords returns the tokens used by the fuzzy tier: the supplied keywords
// when present, otherwise the label's own tokens.
func (c Candidate) keywords() []string {
	if len(c.Keywords) == 0 {
		return similarity.Tokens(c.Label)
	}
	var out []string
	seen := make(map[string]bool)
	for _, kw := range c.Keywords {
		for _, tok := range similarity.Tokens(kw) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

type Result struct {
	Found        bool
	ExistingNode *graph.Node
	Tier         MatchTier
}

// Conflict is a node that would trigger one of the matching tiers.
type Conflict struct {
	Node graph.Node
	Tier MatchTier
}

type Deduplicator struct {
	matcher *similarity.Matcher
	logger  *slog.Logger
}

// New returns a deduplicator. A nil matcher uses the default threshold and a
// nil logger uses slog.Default().
func New(matcher *similarity.Matcher, logger *slog.Logger) *Deduplicator {
	if matcher == nil {
		matcher = similarity.NewMatcher(similarity.DefaultThreshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{matcher: matcher, logger: logger}
}

// tierOf returns the strongest tier at which n matches c.
func (d *Deduplicator) tierOf(c Candidate, keywords []string, n graph.Node) MatchTier {
	if strings.EqualFold(strings.TrimSpace(n.Label), strings.TrimSpace(c.Label)) {
		return TierExactLabel
	}
	if n.Type == c.Type && n.Domain == c.Domain {
		return TierTypeDomain
	}
	if d.matcher.AnyMatch(keywords, similarity.Tokens(n.Label)) {
		return TierFuzzyKeyword
	}
	return TierNone
}

func byID(nodes []graph.Node) []graph.Node {
	sorted := append([]graph.Node(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

// FindExisting returns the node that already represents c. Tiers are tried in
// order (exact label, type and domain, fuzzy keyword); within a tier the
// lowest id wins. Malformed candidates never match.
func (d *Deduplicator) FindExisting(c Candidate, nodes []graph.Node) Result {
	if c.Malformed() || len(nodes) == 0 {
		return Result{}
	}

	keywords := c.keywords()
	best := TierNone
	var match graph.Node
	for _, n := range byID(nodes) {
		tier := d.tierOf(c, keywords, n)
		if tier == TierNone {
			continue
		}
		if best == TierNone || tier < best {
			best, match = tier, n
		}
		if best == TierExactLabel {
			break
		}
	}

	if best == TierNone {
		return Result{}
	}
	d.logger.Debug("existing node matched",
		"label", c.Label,
		"node", match.ID,
		"tier", best.String(),
	)
	found := match.Clone()
	return Result{Found: true, ExistingNode: &found, Tier: best}
}

// FindPotentialConflicts lists every node that triggers any tier, each at its
// strongest tier, ordered by tier and then id.
func (d *Deduplicator) FindPotentialConflicts(c Candidate, nodes []graph.Node) []Conflict {
	if c.Malformed() {
		return nil
	}
	keywords := c.keywords()
	var conflicts []Conflict
	for _, n := range byID(nodes) {
		if tier := d.tierOf(c, keywords, n); tier != TierNone {
			conflicts = append(conflicts, Conflict{Node: n.Clone(), Tier: tier})
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Tier < conflicts[j].Tier
	})
	return conflicts
}

// CheckNodeOverlap reports whether a and b likely describe the same thing:
// they share a type and domain, their labels fuzzy-match, or at least two of
// their label keywords fuzzy-match.
func (d *Deduplicator) CheckNodeOverlap(a, b graph.Node) bool {
	if a.Type != "" && a.Domain != "" && a.Type == b.Type && a.Domain == b.Domain {
		return true
	}
	if d.matcher.IsFuzzyMatch(a.Label, b.Label) {
		return true
	}
	return d.matcher.SharedKeywords(similarity.Tokens(a.Label), similarity.Tokens(b.Label)) >= 2
}

// CreateAssociationsForExisting links a reused node under parentID instead of
// creating a duplicate.
func (d *Deduplicator) CreateAssociationsForExisting(node graph.Node, parentID string) graph.Edge {
	return graph.NewStructuralEdge(parentID, node.ID)
}
