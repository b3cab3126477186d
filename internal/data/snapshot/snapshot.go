// Package snapshot reads and writes plan snapshots and merges engine
// proposals back into them.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	domainErrors "planboard/internal/core/errors"
	"planboard/internal/engine/graph"
	"planboard/internal/shared/util"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the codec from the file extension; anything that is
// not .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type document struct {
	Nodes []nodeDoc `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges []edgeDoc `json:"edges" yaml:"edges" validate:"dive"`
}

type nodeDoc struct {
	ID     string   `json:"id" yaml:"id" validate:"required"`
	Label  string   `json:"label" yaml:"label"`
	Type   string   `json:"type" yaml:"type"`
	Domain string   `json:"domain" yaml:"domain"`
	Ring   *int     `json:"ring,omitempty" yaml:"ring,omitempty" validate:"omitempty,min=0"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type edgeDoc struct {
	ID               string   `json:"id,omitempty" yaml:"id,omitempty"`
	Source           string   `json:"source" yaml:"source" validate:"required"`
	Target           string   `json:"target" yaml:"target" validate:"required"`
	RelationshipType string   `json:"relationshipType,omitempty" yaml:"relationshipType,omitempty" validate:"relationship"`
	Weight           *float64 `json:"weight,omitempty" yaml:"weight,omitempty" validate:"omitempty,min=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("relationship", func(fl validator.FieldLevel) bool {
		return graph.RelationshipType(fl.Field().String()).Valid()
	})
	return v
}

// Decode parses and validates one snapshot document.
func Decode(data []byte, format Format) (graph.Snapshot, error) {
	var doc document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		return graph.Snapshot{}, domainErrors.Newf(domainErrors.CodeNotSupported, "unsupported snapshot format %q", format)
	}
	if err != nil {
		return graph.Snapshot{}, domainErrors.Wrap(err, domainErrors.CodeValidationError, "decode snapshot")
	}

	if err := validate.Struct(&doc); err != nil {
		return graph.Snapshot{}, formatValidationError(err)
	}
	return doc.toSnapshot()
}

func (doc document) toSnapshot() (graph.Snapshot, error) {
	snap := graph.Snapshot{
		Nodes: make([]graph.Node, 0, len(doc.Nodes)),
		Edges: make([]graph.Edge, 0, len(doc.Edges)),
	}

	nodeIDs := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if nodeIDs[n.ID] {
			return graph.Snapshot{}, domainErrors.AddContext(
				domainErrors.Newf(domainErrors.CodeValidationError, "duplicate node id %q", n.ID),
				domainErrors.CtxNode, n.ID)
		}
		nodeIDs[n.ID] = true

		ring := graph.NoRing
		if n.Ring != nil {
			ring = *n.Ring
		}
		snap.Nodes = append(snap.Nodes, graph.Node{
			ID:     n.ID,
			Label:  n.Label,
			Type:   graph.NodeType(n.Type),
			Domain: graph.Domain(n.Domain),
			Ring:   ring,
			Tags:   append([]string(nil), n.Tags...),
		})
	}

	edgeIDs := make(map[string]bool, len(doc.Edges))
	for i, e := range doc.Edges {
		ref := fmt.Sprintf("edges[%d]", i)
		if !nodeIDs[e.Source] {
			return graph.Snapshot{}, domainErrors.Newf(domainErrors.CodeValidationError, "%s: unknown source node %q", ref, e.Source)
		}
		if !nodeIDs[e.Target] {
			return graph.Snapshot{}, domainErrors.Newf(domainErrors.CodeValidationError, "%s: unknown target node %q", ref, e.Target)
		}

		kind := graph.RelationshipType(e.RelationshipType)
		id := e.ID
		if id == "" {
			id = graph.EdgeID(e.Source, e.Target, kind)
		}
		if edgeIDs[id] {
			return graph.Snapshot{}, domainErrors.Newf(domainErrors.CodeValidationError, "%s: duplicate edge id %q", ref, id)
		}
		edgeIDs[id] = true

		edge := graph.Edge{ID: id, Source: e.Source, Target: e.Target, RelationshipType: kind}
		if e.Weight != nil {
			edge.Weight = graph.WeightOf(*e.Weight)
		}
		snap.Edges = append(snap.Edges, edge)
	}
	return snap, nil
}

func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return domainErrors.Wrap(err, domainErrors.CodeValidationError, "invalid snapshot")
	}

	e := validationErrs[0]
	field := strings.TrimPrefix(e.Namespace(), "document.")
	var msg string
	switch e.Tag() {
	case "required":
		msg = fmt.Sprintf("%s: field is required", field)
	case "min":
		msg = fmt.Sprintf("%s: must be at least %s", field, e.Param())
	case "relationship":
		msg = fmt.Sprintf("%s: unknown relationship type %q", field, e.Value())
	default:
		msg = fmt.Sprintf("%s: validation failed (%s)", field, e.Tag())
	}
	return domainErrors.AddContext(domainErrors.New(domainErrors.CodeValidationError, msg), domainErrors.CtxField, field)
}

// Encode renders s in the given format. Nodes without a stored ring omit the
// field so the file round-trips.
func Encode(s graph.Snapshot, format Format) ([]byte, error) {
	doc := document{
		Nodes: make([]nodeDoc, 0, len(s.Nodes)),
		Edges: make([]edgeDoc, 0, len(s.Edges)),
	}
	for _, n := range s.Nodes {
		nd := nodeDoc{
			ID:     n.ID,
			Label:  n.Label,
			Type:   string(n.Type),
			Domain: string(n.Domain),
			Tags:   n.Tags,
		}
		if n.HasRing() {
			ring := n.Ring
			nd.Ring = &ring
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, e := range s.Edges {
		ed := edgeDoc{
			ID:               e.ID,
			Source:           e.Source,
			Target:           e.Target,
			RelationshipType: string(e.RelationshipType),
		}
		if e.Weight != nil {
			ed.Weight = graph.WeightOf(*e.Weight)
		}
		doc.Edges = append(doc.Edges, ed)
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, domainErrors.Newf(domainErrors.CodeNotSupported, "unsupported snapshot format %q", format)
	}
}

func Load(path string) (graph.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := domainErrors.CodeInternal
		if os.IsNotExist(err) {
			code = domainErrors.CodeNotFound
		}
		return graph.Snapshot{}, domainErrors.AddContext(domainErrors.Wrap(err, code, "read snapshot"), domainErrors.CtxPath, path)
	}
	snap, err := Decode(data, FormatForPath(path))
	if err != nil {
		return graph.Snapshot{}, domainErrors.AddContext(err, domainErrors.CtxPath, path)
	}
	return snap, nil
}

// LoadAll loads every path in order and merges them into one snapshot.
// Later files only contribute nodes and edges the earlier ones lack.
func LoadAll(paths []string) (graph.Snapshot, error) {
	var out graph.Snapshot
	for _, p := range paths {
		snap, err := Load(p)
		if err != nil {
			return graph.Snapshot{}, err
		}
		out, _ = Merge(out, snap)
	}
	return out, nil
}

func Save(path string, s graph.Snapshot) error {
	data, err := Encode(s, FormatForPath(path))
	if err != nil {
		return err
	}
	if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
		return domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeInternal, "write snapshot"), domainErrors.CtxPath, path)
	}
	return nil
}
