// Package rings validates the ring invariants of a plan: a single ring-0
// root, and hierarchy edges that step down exactly one ring at a time.
package rings

import (
	"fmt"
	"log/slog"
	"strings"

	"planboard/internal/engine/graph"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check names.
const (
	CheckRootRing           = "root-ring"
	CheckMissingRing        = "missing-ring"
	CheckRingMismatch       = "ring-mismatch"
	CheckOrphaned           = "orphaned"
	CheckClassificationRing = "classification-ring"
	CheckDomainParentRing   = "domain-parent-ring"
	CheckRingReversion      = "ring-reversion"
	CheckMissingRoot        = "missing-root"
	CheckMultipleRoots      = "multiple-roots"
)

type Violation struct {
	NodeID   string
	Check    string
	Severity Severity
	Message  string
}

type Stats struct {
	TotalNodes   int
	ValidNodes   int
	InvalidNodes int
	NodesPerRing map[int]int
}

type Result struct {
	IsValid    bool
	Violations []Violation
	Stats      Stats
}

func (r Result) Errors() []Violation {
	return r.filter(SeverityError)
}

func (r Result) Warnings() []Violation {
	return r.filter(SeverityWarning)
}

func (r Result) filter(sev Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

var classificationLabels = map[string]bool{
	"product":    true,
	"technology": true,
	"tech":       true,
	"process":    true,
	"people":     true,
	"resources":  true,
	"operations": true,
	"business":   true,
	"data":       true,
}

var domainParentMarkers = []string{"& platform", "& ui", "& apis", "& ai"}

// IsClassification recognises top-level category nodes by id prefix, type or
// label.
func IsClassification(n graph.Node) bool {
	if n.IsRoot() {
		return false
	}
	id := strings.ToLower(n.ID)
	if strings.HasPrefix(id, "classification-") || strings.HasPrefix(id, "class-") {
		return true
	}
	if n.Type == graph.TypeClassification {
		return true
	}
	return classificationLabels[strings.ToLower(strings.TrimSpace(n.Label))]
}

// IsDomainParent recognises ring-2 grouping nodes by type or label.
func IsDomainParent(n graph.Node) bool {
	if n.Type == graph.TypeDomainParent {
		return true
	}
	label := strings.ToLower(n.Label)
	for _, m := range domainParentMarkers {
		if strings.Contains(label, m) {
			return true
		}
	}
	return false
}

type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// ValidateRingHierarchy validates with a default validator.
func ValidateRingHierarchy(nodes []graph.Node, edges []graph.Edge) Result {
	return NewValidator(nil).Validate(nodes, edges)
}

// Validate checks every node against the ring rules. Only hierarchy edges are
// considered; semantic edges may link nodes on any rings.
func (v *Validator) Validate(nodes []graph.Node, edges []graph.Edge) Result {
	var structural []graph.Edge
	for _, e := range edges {
		if e.RelationshipType.IsStructural() {
			structural = append(structural, e)
		}
	}
	ix := graph.NewIndex(nodes, structural)

	var out []Violation
	add := func(id, check string, sev Severity, format string, args ...any) {
		out = append(out, Violation{NodeID: id, Check: check, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	var roots []graph.Node
	for _, n := range ix.Nodes() {
		if n.IsRoot() {
			roots = append(roots, n)
		}
	}
	switch {
	case len(roots) == 0 && ix.Len() > 0:
		add("", CheckMissingRoot, SeverityError, "no root node found")
	case len(roots) > 1:
		for _, r := range roots[1:] {
			add(r.ID, CheckMultipleRoots, SeverityError, "additional root %s; only one ring-0 root is allowed", r.ID)
		}
	}

	for _, n := range ix.Nodes() {
		if n.IsRoot() {
			if n.Ring != graph.RingRoot {
				add(n.ID, CheckRootRing, SeverityError, "root must be at ring 0, found %d", n.Ring)
			}
			v.checkOutgoing(ix, n, add)
			continue
		}

		if !n.HasRing() {
			add(n.ID, CheckMissingRing, SeverityError, "ring is not set")
			continue
		}

		parents := ix.StructuralParents(n.ID)
		for _, pid := range parents {
			p, ok := ix.Node(pid)
			if !ok || !p.HasRing() {
				continue
			}
			if n.Ring != p.Ring+1 {
				add(n.ID, CheckRingMismatch, SeverityError, "ring should be %d (parent %s is at ring %d, found %d)", p.Ring+1, p.ID, p.Ring, n.Ring)
			}
		}

		classification := IsClassification(n)
		if len(parents) == 0 && !classification {
			add(n.ID, CheckOrphaned, SeverityWarning, "node has no parent")
		}
		if classification && n.Ring != graph.RingClassification {
			add(n.ID, CheckClassificationRing, SeverityError, "classification must be at ring 1, found %d", n.Ring)
		}
		if !classification && IsDomainParent(n) && n.Ring != graph.RingDomainParent {
			add(n.ID, CheckDomainParentRing, SeverityWarning, "domain parent should be at ring 2, found %d", n.Ring)
		}

		v.checkOutgoing(ix, n, add)
	}

	res := Result{Violations: out, Stats: stats(ix, out)}
	res.IsValid = len(res.Errors()) == 0
	v.logger.Debug("ring hierarchy validated",
		"nodes", res.Stats.TotalNodes,
		"violations", len(out),
		"valid", res.IsValid,
	)
	return res
}

func (v *Validator) checkOutgoing(ix *graph.Index, n graph.Node, add func(string, string, Severity, string, ...any)) {
	if !n.HasRing() {
		return
	}
	for _, cid := range ix.StructuralChildren(n.ID) {
		c, ok := ix.Node(cid)
		if !ok || !c.HasRing() {
			continue
		}
		if c.Ring <= n.Ring {
			add(n.ID, CheckRingReversion, SeverityError, "edge to %s goes from ring %d back to ring %d", c.ID, n.Ring, c.Ring)
		}
	}
}

func stats(ix *graph.Index, violations []Violation) Stats {
	invalid := make(map[string]bool)
	for _, v := range violations {
		if v.Severity == SeverityError && v.NodeID != "" {
			invalid[v.NodeID] = true
		}
	}
	s := Stats{TotalNodes: ix.Len(), NodesPerRing: make(map[int]int)}
	for _, n := range ix.Nodes() {
		if n.HasRing() {
			s.NodesPerRing[n.Ring]++
		}
		if invalid[n.ID] {
			s.InvalidNodes++
		}
	}
	s.ValidNodes = s.TotalNodes - s.InvalidNodes
	return s
}
