package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PLANBOARD_[SECTION]_[KEY] (e.g., PLANBOARD_OBSERVABILITY_METRICS_ADDR).
func ApplyEnvOverrides(cfg *Config) {
	// Engine
	setEnvFloat64(&cfg.Engine.SimilarityThreshold, "PLANBOARD_ENGINE_SIMILARITY_THRESHOLD")
	setEnvInt(&cfg.Engine.MaxSuggestions, "PLANBOARD_ENGINE_MAX_SUGGESTIONS")
	setEnvInt(&cfg.Engine.MaxDepth, "PLANBOARD_ENGINE_MAX_DEPTH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "PLANBOARD_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRunsPerSecond, "PLANBOARD_WATCH_MAX_RUNS_PER_SECOND")

	// Output
	setEnvString(&cfg.Output.Dir, "PLANBOARD_OUTPUT_DIR")

	// History
	setEnvBool(&cfg.History.Enabled, "PLANBOARD_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "PLANBOARD_HISTORY_PATH")
	setEnvString(&cfg.History.Project, "PLANBOARD_HISTORY_PROJECT")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "PLANBOARD_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.TraceExporter, "PLANBOARD_OBSERVABILITY_TRACE_EXPORTER")
	setEnvString(&cfg.Observability.OTLPEndpoint, "PLANBOARD_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
