package hierarchy

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"planboard/internal/engine/graph"
)

// ParentSpec describes the parent a node should hang under.
type ParentSpec struct {
	Type   graph.NodeType
	Label  string
	Domain graph.Domain
	Ring   int
}

// Rule is the association policy for one node: an ideal parent, ordered
// fallbacks, and whether a missing ideal parent may be synthesized.
type Rule struct {
	Name                        string
	IdealParent                 ParentSpec
	Fallbacks                   []ParentSpec
	CreateIntermediateIfMissing bool
}

// Route sends nodes whose id or label matches one of Patterns to Parent.
// Patterns containing glob metacharacters are matched as globs against the
// lowercase id and label; plain patterns match as substrings.
type Route struct {
	Name             string
	NodeTypes        []graph.NodeType
	Patterns         []string
	Parent           ParentSpec
	SkipIntermediate bool
}

func domainParent(label string, domain graph.Domain) ParentSpec {
	return ParentSpec{Type: graph.TypeDomainParent, Label: label, Domain: domain, Ring: graph.RingDomainParent}
}

// Domain-parent catalog.
var (
	FrontendUI       = domainParent("Frontend & UI", graph.DomainTech)
	BackendAPIs      = domainParent("Backend & APIs", graph.DomainTech)
	DataAI           = domainParent("Data & AI", graph.DomainDataAI)
	Infrastructure   = domainParent("Infrastructure & Platform", graph.DomainOperations)
	Security         = domainParent("Security & Compliance", graph.DomainTech)
	Monitoring       = domainParent("Monitoring & Observability", graph.DomainOperations)
	RequirementsArea = domainParent("Requirements & Scope", graph.DomainProduct)
	Documentation    = domainParent("Documentation & Knowledge", graph.DomainProcess)
	FeaturesArea     = domainParent("Features & Roadmap", graph.DomainProduct)
)

func idRule(name string, ideal ParentSpec, fallbacks ...ParentSpec) Rule {
	return Rule{Name: name, IdealParent: ideal, Fallbacks: fallbacks, CreateIntermediateIfMissing: true}
}

// wellKnownIDs maps conventional node ids to their placement.
var wellKnownIDs = map[string]Rule{
	"react-app":     idRule("id:react-app", FrontendUI),
	"web-app":       idRule("id:web-app", FrontendUI),
	"mobile-app":    idRule("id:mobile-app", FrontendUI),
	"design-system": idRule("id:design-system", FrontendUI),

	"express-server": idRule("id:express-server", BackendAPIs),
	"api-gateway":    idRule("id:api-gateway", BackendAPIs),
	"graphql-api":    idRule("id:graphql-api", BackendAPIs),
	"rest-api":       idRule("id:rest-api", BackendAPIs),

	"postgres-db":    idRule("id:postgres-db", DataAI, BackendAPIs),
	"redis-cache":    idRule("id:redis-cache", DataAI, BackendAPIs),
	"data-warehouse": idRule("id:data-warehouse", DataAI, BackendAPIs),
	"ml-pipeline":    idRule("id:ml-pipeline", DataAI, BackendAPIs),

	"auth-service": idRule("id:auth-service", Security, BackendAPIs),
	"user-auth":    idRule("id:user-auth", Security, BackendAPIs),
	"sso":          idRule("id:sso", Security, BackendAPIs),

	"ci-cd-pipeline":     idRule("id:ci-cd-pipeline", Infrastructure),
	"kubernetes-cluster": idRule("id:kubernetes-cluster", Infrastructure),
	"docker-setup":       idRule("id:docker-setup", Infrastructure),

	"logging-stack":     idRule("id:logging-stack", Monitoring, Infrastructure),
	"metrics-dashboard": idRule("id:metrics-dashboard", Monitoring, Infrastructure),
	"alerting":          idRule("id:alerting", Monitoring, Infrastructure),

	"user-stories":        idRule("id:user-stories", RequirementsArea),
	"acceptance-criteria": idRule("id:acceptance-criteria", RequirementsArea),
	"mvp-scope":           idRule("id:mvp-scope", RequirementsArea),

	"api-docs":         idRule("id:api-docs", Documentation),
	"architecture-doc": idRule("id:architecture-doc", Documentation),
	"onboarding-guide": idRule("id:onboarding-guide", Documentation),
}

// typeDefaults is consulted when nothing more specific matched.
var typeDefaults = map[graph.NodeType]Rule{
	graph.TypeRequirement: idRule("type:requirement", RequirementsArea),
	graph.TypeDoc:         idRule("type:doc", Documentation),
	graph.TypeFeature:     idRule("type:feature", FeaturesArea),
	graph.TypeFrontend:    idRule("type:frontend", FrontendUI),
	graph.TypeBackend:     idRule("type:backend", BackendAPIs),
	graph.TypeData:        idRule("type:data", DataAI),
}

var genericTypes = []graph.NodeType{graph.TypeRequirement, graph.TypeDoc, graph.TypeFeature}

// builtinRoutes route generic nodes by keywords in their id or label. Order
// matters: the first matching route wins.
var builtinRoutes = []Route{
	{Name: "security", NodeTypes: genericTypes, Patterns: []string{"auth", "security", "compliance"}, Parent: Security},
	{Name: "frontend", NodeTypes: genericTypes, Patterns: []string{"frontend", "interface"}, Parent: FrontendUI},
	{Name: "data", NodeTypes: genericTypes, Patterns: []string{"data", "analytics"}, Parent: DataAI},
	{Name: "infrastructure", NodeTypes: genericTypes, Patterns: []string{"infra", "deploy", "platform"}, Parent: Infrastructure},
	{Name: "monitoring", NodeTypes: genericTypes, Patterns: []string{"monitoring", "observability", "logging"}, Parent: Monitoring},
	{Name: "backend", NodeTypes: genericTypes, Patterns: []string{"api", "backend"}, Parent: BackendAPIs},
}

type compiledPattern struct {
	raw  string
	glob glob.Glob
}

func (p compiledPattern) match(s string) bool {
	if p.glob != nil {
		return p.glob.Match(s)
	}
	return strings.Contains(s, p.raw)
}

type compiledRoute struct {
	route    Route
	types    map[graph.NodeType]bool
	patterns []compiledPattern
}

func compileRoute(r Route) (compiledRoute, error) {
	cr := compiledRoute{route: r}
	if len(r.NodeTypes) > 0 {
		cr.types = make(map[graph.NodeType]bool, len(r.NodeTypes))
		for _, t := range r.NodeTypes {
			cr.types[t] = true
		}
	}
	for _, raw := range r.Patterns {
		norm := strings.ToLower(strings.TrimSpace(raw))
		if norm == "" {
			continue
		}
		cp := compiledPattern{raw: norm}
		if strings.ContainsAny(norm, "*?[]{}") {
			g, err := glob.Compile(norm)
			if err != nil {
				return compiledRoute{}, fmt.Errorf("route %q: invalid pattern %q: %w", r.Name, raw, err)
			}
			cp.glob = g
		}
		cr.patterns = append(cr.patterns, cp)
	}
	return cr, nil
}

func (cr compiledRoute) matches(n graph.Node, nodeType graph.NodeType) bool {
	if cr.types != nil && !cr.types[nodeType] {
		return false
	}
	id, label := strings.ToLower(n.ID), strings.ToLower(n.Label)
	for _, p := range cr.patterns {
		if p.match(id) || (label != "" && p.match(label)) {
			return true
		}
	}
	return false
}

// RuleTable resolves the association rule for a node. Lookup stages are
// tried in a fixed order: well-known ids, configured routes, built-in
// keyword routes, then the per-type default.
type RuleTable struct {
	byID    map[string]Rule
	routes  []compiledRoute
	builtin []compiledRoute
	byType  map[graph.NodeType]Rule
}

// NewRuleTable builds the rule table, adding the configured routes ahead of
// the built-in keyword routes.
func NewRuleTable(routes []Route) (*RuleTable, error) {
	t := &RuleTable{byID: wellKnownIDs, byType: typeDefaults}
	for _, r := range routes {
		if strings.TrimSpace(r.Parent.Label) == "" {
			return nil, fmt.Errorf("route %q: parent label is required", r.Name)
		}
		if r.Parent.Type == "" {
			r.Parent.Type = graph.TypeDomainParent
		}
		if r.Parent.Ring == 0 {
			r.Parent.Ring = graph.RingDomainParent
		}
		cr, err := compileRoute(r)
		if err != nil {
			return nil, err
		}
		t.routes = append(t.routes, cr)
	}
	for _, r := range builtinRoutes {
		cr, err := compileRoute(r)
		if err != nil {
			return nil, err
		}
		t.builtin = append(t.builtin, cr)
	}
	return t, nil
}

// DefaultRuleTable returns the table without configured routes.
func DefaultRuleTable() *RuleTable {
	t, err := NewRuleTable(nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the rule for n treated as nodeType.
func (t *RuleTable) Lookup(n graph.Node, nodeType graph.NodeType) (Rule, bool) {
	if rule, ok := t.byID[n.ID]; ok {
		return rule, true
	}
	for _, stage := range [][]compiledRoute{t.routes, t.builtin} {
		for _, cr := range stage {
			if cr.matches(n, nodeType) {
				return t.routedRule(cr.route, nodeType), true
			}
		}
	}
	if rule, ok := t.byType[nodeType]; ok {
		return rule, true
	}
	return Rule{}, false
}

// routedRule falls back to the type default's parent when the routed parent
// is missing.
func (t *RuleTable) routedRule(r Route, nodeType graph.NodeType) Rule {
	rule := Rule{
		Name:                        "route:" + r.Name,
		IdealParent:                 r.Parent,
		CreateIntermediateIfMissing: !r.SkipIntermediate,
	}
	if def, ok := t.byType[nodeType]; ok && !strings.EqualFold(def.IdealParent.Label, r.Parent.Label) {
		rule.Fallbacks = []ParentSpec{def.IdealParent}
	}
	return rule
}
