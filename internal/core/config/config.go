package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"planboard/internal/engine/graph"
)

type Config struct {
	Version       int           `toml:"version"`
	Engine        Engine        `toml:"engine"`
	Hierarchy     Hierarchy     `toml:"hierarchy"`
	Input         Input         `toml:"input"`
	Watch         Watch         `toml:"watch"`
	Output        Output        `toml:"output"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
}

type Engine struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	MaxSuggestions      int     `toml:"max_suggestions"`
	MaxDepth            int     `toml:"max_depth"`
}

type Hierarchy struct {
	Routes []Route `toml:"routes"`
}

// Route places nodes whose id or label matches Patterns under the domain
// parent named by Label.
type Route struct {
	Name             string   `toml:"name"`
	NodeTypes        []string `toml:"node_types"`
	Patterns         []string `toml:"patterns"`
	Label            string   `toml:"label"`
	Domain           string   `toml:"domain"`
	SkipIntermediate bool     `toml:"skip_intermediate"`
}

type Input struct {
	Snapshots []string `toml:"snapshots"`
	Exclude   []string `toml:"exclude"`
}

type Watch struct {
	Debounce         time.Duration `toml:"debounce"`
	MaxRunsPerSecond float64       `toml:"max_runs_per_second"`
	Burst            int           `toml:"burst"`
}

type Output struct {
	Dir      string `toml:"dir"`
	Mermaid  string `toml:"mermaid"`
	DOT      string `toml:"dot"`
	Markdown string `toml:"markdown"`
	JSON     string `toml:"json"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	Project     string        `toml:"project"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Observability struct {
	MetricsAddr   string  `toml:"metrics_addr"`
	TraceExporter string  `toml:"trace_exporter"`
	OTLPEndpoint  string  `toml:"otlp_endpoint"`
	ServiceName   string  `toml:"service_name"`
	SampleRatio   float64 `toml:"sample_ratio"`
}

const (
	TraceExporterNone = "none"
	TraceExporterOTLP = "otlp"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes, defaults and validates a TOML document.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateEngine(&cfg); err != nil {
		return nil, err
	}
	if err := validateHierarchy(&cfg); err != nil {
		return nil, err
	}
	if err := validateInput(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateHistory(&cfg); err != nil {
		return nil, err
	}
	if err := validateObservability(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Engine.SimilarityThreshold == 0 {
		cfg.Engine.SimilarityThreshold = 0.8
	}
	if cfg.Engine.MaxSuggestions == 0 {
		cfg.Engine.MaxSuggestions = 10
	}
	if cfg.Engine.MaxDepth == 0 {
		cfg.Engine.MaxDepth = 512
	}

	if len(cfg.Input.Snapshots) == 0 {
		cfg.Input.Snapshots = []string{"plan.json"}
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRunsPerSecond == 0 {
		cfg.Watch.MaxRunsPerSecond = 2
	}
	if cfg.Watch.Burst == 0 {
		cfg.Watch.Burst = 1
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = "out"
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "planboard-history.db"
	}
	if strings.TrimSpace(cfg.History.Project) == "" {
		cfg.History.Project = "default"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.TraceExporter) == "" {
		cfg.Observability.TraceExporter = TraceExporterNone
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "planboard"
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateEngine(cfg *Config) error {
	e := cfg.Engine
	if e.SimilarityThreshold <= 0 || e.SimilarityThreshold > 1 {
		return fmt.Errorf("engine.similarity_threshold must be in (0, 1], got %v", e.SimilarityThreshold)
	}
	if e.MaxSuggestions < 1 {
		return fmt.Errorf("engine.max_suggestions must be >= 1, got %d", e.MaxSuggestions)
	}
	if e.MaxDepth < 1 {
		return fmt.Errorf("engine.max_depth must be >= 1, got %d", e.MaxDepth)
	}
	return nil
}

func validateHierarchy(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Hierarchy.Routes))
	for i, route := range cfg.Hierarchy.Routes {
		ref := fmt.Sprintf("hierarchy.routes[%d]", i)
		name := strings.TrimSpace(route.Name)
		if name == "" {
			return fmt.Errorf("%s.name must not be empty", ref)
		}
		if seen[name] {
			return fmt.Errorf("duplicate hierarchy route name %q", name)
		}
		seen[name] = true

		if strings.TrimSpace(route.Label) == "" {
			return fmt.Errorf("%s (%s).label must not be empty", ref, name)
		}
		if len(route.Patterns) == 0 {
			return fmt.Errorf("%s (%s) must define at least one pattern", ref, name)
		}
		for _, p := range route.Patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				return fmt.Errorf("%s (%s) has an empty pattern", ref, name)
			}
			if hasWildcard(p) {
				if _, err := glob.Compile(strings.ToLower(p)); err != nil {
					return fmt.Errorf("%s (%s) pattern %q: %w", ref, name, p, err)
				}
			}
		}
		for _, t := range route.NodeTypes {
			if !graph.NodeType(t).Known() {
				return fmt.Errorf("%s (%s) references unknown node type %q", ref, name, t)
			}
		}
	}
	return nil
}

func validateInput(cfg *Config) error {
	for i, s := range cfg.Input.Snapshots {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("input.snapshots[%d] must not be empty", i)
		}
	}
	for _, p := range cfg.Input.Exclude {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("input.exclude pattern %q: %w", p, err)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxRunsPerSecond < 0 {
		return fmt.Errorf("watch.max_runs_per_second must not be negative")
	}
	if cfg.Watch.Burst < 1 {
		return fmt.Errorf("watch.burst must be >= 1")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	o := cfg.Observability
	switch strings.ToLower(strings.TrimSpace(o.TraceExporter)) {
	case TraceExporterNone:
	case TraceExporterOTLP:
		if strings.TrimSpace(o.OTLPEndpoint) == "" {
			return fmt.Errorf("observability.otlp_endpoint must be set when trace_exporter=otlp")
		}
	default:
		return fmt.Errorf("observability.trace_exporter must be one of: none, otlp")
	}
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		return fmt.Errorf("observability.sample_ratio must be in [0, 1]")
	}
	return nil
}

func hasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[]{}")
}
