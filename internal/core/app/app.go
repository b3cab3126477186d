package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"planboard/internal/core/config"
	"planboard/internal/core/ports"
	"planboard/internal/data/snapshot"
	"planboard/internal/engine/dedupe"
	"planboard/internal/engine/dependency"
	"planboard/internal/engine/graph"
	"planboard/internal/engine/hierarchy"
	"planboard/internal/engine/rings"
	"planboard/internal/engine/similarity"
	"planboard/internal/shared/observability"
	"planboard/internal/shared/util"
)

// Service is the caller of the graph engine: it loads snapshots, runs every
// analysis, merges proposals, writes artifacts and records history.
type Service struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	logger  *slog.Logger
	source  ports.SnapshotSource
	history ports.HistoryStore

	validator  *rings.Validator
	analyzer   *dependency.Analyzer
	associator *hierarchy.Associator
	dedupe     *dedupe.Deduplicator

	// completed analyses keyed by snapshot hash
	cache *util.LRUCache[string, ports.Analysis]
}

const analysisCacheSize = 8

var _ ports.PlanService = (*Service)(nil)

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistoryStore enables RecordRun and HistoryTrend.
func WithHistoryStore(store ports.HistoryStore) Option {
	return func(s *Service) { s.history = store }
}

// WithSnapshotSource replaces the file-backed source built from Paths.
func WithSnapshotSource(source ports.SnapshotSource) Option {
	return func(s *Service) { s.source = source }
}

func New(cfg *config.Config, paths config.ResolvedPaths, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Service{
		Config: cfg,
		Paths:  paths,
		logger: slog.Default(),
		cache:  util.NewLRUCache[string, ports.Analysis](analysisCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = NewFileSource(paths.Snapshots)
	}

	rules, err := hierarchy.NewRuleTable(routesFromConfig(cfg.Hierarchy.Routes))
	if err != nil {
		return nil, err
	}
	s.validator = rings.NewValidator(s.logger)
	s.analyzer = dependency.NewAnalyzer(dependency.Options{
		MaxDepth:       cfg.Engine.MaxDepth,
		MaxSuggestions: cfg.Engine.MaxSuggestions,
	}, s.logger)
	s.associator = hierarchy.NewAssociator(rules, s.logger)
	s.dedupe = dedupe.New(similarity.NewMatcher(cfg.Engine.SimilarityThreshold), s.logger)
	return s, nil
}

// Close releases the history store, if any.
func (s *Service) Close() error {
	if s == nil || s.history == nil {
		return nil
	}
	return s.history.Close()
}

// HistoryEnabled reports whether a history store is attached.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

func routesFromConfig(routes []config.Route) []hierarchy.Route {
	out := make([]hierarchy.Route, 0, len(routes))
	for _, r := range routes {
		types := make([]graph.NodeType, 0, len(r.NodeTypes))
		for _, t := range r.NodeTypes {
			types = append(types, graph.NodeType(strings.TrimSpace(t)))
		}
		out = append(out, hierarchy.Route{
			Name:      r.Name,
			NodeTypes: types,
			Patterns:  append([]string(nil), r.Patterns...),
			Parent: hierarchy.ParentSpec{
				Type:   graph.TypeDomainParent,
				Label:  strings.TrimSpace(r.Label),
				Domain: graph.Domain(strings.TrimSpace(r.Domain)),
				Ring:   graph.RingDomainParent,
			},
			SkipIntermediate: r.SkipIntermediate,
		})
	}
	return out
}

// FileSource reads and merges snapshot files; earlier files win on id clashes.
type FileSource struct {
	Paths []string
}

func NewFileSource(paths []string) *FileSource {
	return &FileSource{Paths: append([]string(nil), paths...)}
}

func (f *FileSource) Load(ctx context.Context) (graph.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return graph.Snapshot{}, err
	}
	start := time.Now()
	defer func() {
		observability.SnapshotLoadDuration.Observe(time.Since(start).Seconds())
	}()
	return snapshot.LoadAll(f.Paths)
}
