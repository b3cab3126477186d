package graph

import (
	"strings"

	"github.com/google/uuid"
)

// NodeType classifies a plan node. The set is closed for the engine; UI-only
// extension types pass through untouched and simply match no rule.
type NodeType string

const (
	TypeRoot           NodeType = "root"
	TypeClassification NodeType = "classification"
	TypeDomainParent   NodeType = "domain-parent"
	TypeFrontend       NodeType = "frontend"
	TypeBackend        NodeType = "backend"
	TypeData           NodeType = "data"
	TypeRequirement    NodeType = "requirement"
	TypeDoc            NodeType = "doc"
	TypeFeature        NodeType = "feature"
)

var knownNodeTypes = map[NodeType]bool{
	TypeRoot:           true,
	TypeClassification: true,
	TypeDomainParent:   true,
	TypeFrontend:       true,
	TypeBackend:        true,
	TypeData:           true,
	TypeRequirement:    true,
	TypeDoc:            true,
	TypeFeature:        true,
}

// Known reports whether t belongs to the engine's closed type set.
func (t NodeType) Known() bool {
	return knownNodeTypes[t]
}

// Structural reports whether nodes of this type exist to shape the hierarchy
// rather than to describe work.
func (t NodeType) Structural() bool {
	return t == TypeRoot || t == TypeClassification || t == TypeDomainParent
}

// Domain is the coarse routing classification of a node.
type Domain string

const (
	DomainProduct    Domain = "product"
	DomainTech       Domain = "tech"
	DomainProcess    Domain = "process"
	DomainPeople     Domain = "people"
	DomainResources  Domain = "resources"
	DomainOperations Domain = "operations"
	DomainBusiness   Domain = "business"
	DomainDataAI     Domain = "data-ai"
)

// RelationshipType is the kind of an edge.
type RelationshipType string

const (
	// RelStructural is the kind of every hierarchy edge.
	RelStructural RelationshipType = "depends_on"

	RelDependsOn  RelationshipType = "depends-on"
	RelBlocks     RelationshipType = "blocks"
	RelImplements RelationshipType = "implements"
	RelTests      RelationshipType = "tests"
	RelDocuments  RelationshipType = "documents"
	RelExtends    RelationshipType = "extends"
	RelReferences RelationshipType = "references"
	RelRelatedTo  RelationshipType = "related-to"
)

var semanticRelationships = map[RelationshipType]bool{
	RelDependsOn:  true,
	RelBlocks:     true,
	RelImplements: true,
	RelTests:      true,
	RelDocuments:  true,
	RelExtends:    true,
	RelReferences: true,
	RelRelatedTo:  true,
}

// IsHard reports whether the relationship takes part in dependency, cycle
// and critical-path analysis.
func (r RelationshipType) IsHard() bool {
	return r == RelDependsOn || r == RelBlocks
}

// IsStructural reports whether the edge is a hierarchy edge. An empty kind is
// treated as structural.
func (r RelationshipType) IsStructural() bool {
	return r == RelStructural || r == ""
}

// Valid reports whether r is the structural kind or one of the semantic kinds.
func (r RelationshipType) Valid() bool {
	return r.IsStructural() || semanticRelationships[r]
}

const (
	// RootID is the conventional id of the ring-0 node.
	RootID = "center"

	// NoRing marks a node whose ring was never stored.
	NoRing = -1

	RingRoot           = 0
	RingClassification = 1
	RingDomainParent   = 2
	RingLeaf           = 3

	// TagAutoGenerated marks nodes synthesized by the engine.
	TagAutoGenerated = "auto-generated"
	TagIntermediate  = "intermediate"
)

// Node is one diagram entity.
type Node struct {
	ID     string   `json:"id" yaml:"id"`
	Label  string   `json:"label" yaml:"label"`
	Type   NodeType `json:"type" yaml:"type"`
	Domain Domain   `json:"domain" yaml:"domain"`
	Ring   int      `json:"ring" yaml:"ring"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// IsRoot reports whether n is the ring-0 center of the plan.
func (n Node) IsRoot() bool {
	return n.ID == RootID || n.Type == TypeRoot
}

// HasRing reports whether a ring value was stored for n.
func (n Node) HasRing() bool {
	return n.Ring >= 0
}

// HasTag reports whether n carries tag (case-insensitive).
func (n Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (n Node) Clone() Node {
	c := n
	c.Tags = append([]string(nil), n.Tags...)
	return c
}

// Edge is a directed relationship from Source to Target.
type Edge struct {
	ID               string           `json:"id" yaml:"id"`
	Source           string           `json:"source" yaml:"source"`
	Target           string           `json:"target" yaml:"target"`
	RelationshipType RelationshipType `json:"relationshipType" yaml:"relationshipType"`
	// Weight is optional; nil counts as 1 and an explicit 0 stays 0.
	Weight *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// WeightOf returns a weight pointer for literals and decoders.
func WeightOf(w float64) *float64 {
	return &w
}

// EffectiveWeight returns the weight used for critical-path computation.
func (e Edge) EffectiveWeight() float64 {
	if e.Weight == nil {
		return 1
	}
	if *e.Weight < 0 {
		return 0
	}
	return *e.Weight
}

// EdgeKey identifies an edge by its endpoints and kind, ignoring its id.
type EdgeKey struct {
	Source string
	Target string
	Kind   RelationshipType
}

func (e Edge) Key() EdgeKey {
	kind := e.RelationshipType
	if kind == "" {
		kind = RelStructural
	}
	return EdgeKey{Source: e.Source, Target: e.Target, Kind: kind}
}

var edgeNamespace = uuid.MustParse("6f1c5d2e-8a3b-4c7d-9e0f-1a2b3c4d5e6f")

// EdgeID derives a stable id from the edge endpoints and kind so identical
// proposals always carry identical ids.
func EdgeID(source, target string, kind RelationshipType) string {
	name := source + "\x00" + target + "\x00" + string(kind)
	return "edge-" + uuid.NewSHA1(edgeNamespace, []byte(name)).String()
}

// NewEdge builds an edge with a derived id and no explicit weight.
func NewEdge(source, target string, kind RelationshipType) Edge {
	return Edge{
		ID:               EdgeID(source, target, kind),
		Source:           source,
		Target:           target,
		RelationshipType: kind,
	}
}

// NewStructuralEdge builds a hierarchy edge from parent to child.
func NewStructuralEdge(parentID, childID string) Edge {
	return NewEdge(parentID, childID, RelStructural)
}

// Snapshot is the immutable input of every engine call.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Nodes: make([]Node, 0, len(s.Nodes)),
		Edges: make([]Edge, 0, len(s.Edges)),
	}
	for _, n := range s.Nodes {
		c.Nodes = append(c.Nodes, n.Clone())
	}
	for _, e := range s.Edges {
		if e.Weight != nil {
			e.Weight = WeightOf(*e.Weight)
		}
		c.Edges = append(c.Edges, e)
	}
	return c
}
