package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	coreapp "planboard/internal/core/app"
	"planboard/internal/core/config"
	"planboard/internal/data/history"
	"planboard/internal/shared/observability"
	"planboard/internal/shared/util"
	"planboard/internal/shared/version"
)

type runtimeOptions struct {
	uiMode       bool
	forceHistory bool
}

// runtime is everything a command needs once flags and config are resolved.
type runtime struct {
	cfg      *config.Config
	cfgPath  string
	paths    config.ResolvedPaths
	svc      *coreapp.Service
	cleanups []func()
}

func (r *runtime) Close() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

func newRuntime(cmd *cobra.Command, args []string, opts runtimeOptions) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	rt := &runtime{}
	rt.cleanups = append(rt.cleanups, configureLogging(opts.uiMode, verbose))

	cwd, err := os.Getwd()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("detect working directory: %w", err)
	}

	explicit := cmd.Flags().Changed("config")
	cfg, cfgPath, err := loadConfig(configPath, cwd, explicit)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt.cfg, rt.cfgPath = cfg, cfgPath

	base := cwd
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("resolve runtime paths: %w", err)
	}
	if len(args) > 0 {
		paths.Snapshots = paths.Snapshots[:0]
		for _, a := range args {
			paths.Snapshots = append(paths.Snapshots, config.ResolveRelative(cwd, a))
		}
	}
	rt.paths = paths

	shutdown, err := observability.InitTracing(commandContext(cmd), observability.TracingConfig{
		Exporter:       cfg.Observability.TraceExporter,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version.Version,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt.cleanups = append(rt.cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	})

	svcOpts := []coreapp.Option{coreapp.WithLogger(slog.Default())}
	var store *history.Store
	if cfg.History.Enabled || opts.forceHistory {
		store, err = history.Open(commandContext(cmd), paths.HistoryPath, cfg.History.BusyTimeout)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open history store: %w", err)
		}
		svcOpts = append(svcOpts, coreapp.WithHistoryStore(store))
	}

	svc, err := coreapp.New(cfg, paths, svcOpts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		rt.Close()
		return nil, fmt.Errorf("initialize service: %w", err)
	}
	rt.svc = svc
	rt.cleanups = append(rt.cleanups, func() {
		if err := svc.Close(); err != nil {
			slog.Warn("closing service failed", "error", err)
		}
	})

	slog.Debug("runtime ready", "config", cfgPath, "snapshots", paths.Snapshots, "output", paths.OutputDir)
	return rt, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig loads path. Without an explicit --config a missing default file
// falls back to the built-in defaults and an empty path.
func loadConfig(path, cwd string, explicit bool) (*config.Config, string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	resolved := config.ResolveRelative(cwd, path)
	cfg, err := config.Load(resolved)
	if err == nil {
		return cfg, resolved, nil
	}
	if !explicit && os.IsNotExist(err) {
		slog.Debug("no config file found, using defaults", "path", resolved)
		return config.DefaultConfig(), "", nil
	}
	return nil, "", err
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}

	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}

	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("--since must be RFC3339 or YYYY-MM-DD, got %q", value)
}

func parseHistoryWindow(value string) (time.Duration, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("--window must be a Go duration (example: 24h), got %q", value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--window must be > 0, got %q", value)
	}
	return d, nil
}

func writeBytes(path string, data []byte) error {
	return util.WriteFileWithDirs(path, data, 0o644)
}

func configureLogging(uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stderr
	var closeFn func() = func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "planboard", "planboard.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "planboard", "planboard.log")
	}

	return "planboard.log"
}
