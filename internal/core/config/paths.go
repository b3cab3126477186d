package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds the absolute locations derived from a config file.
type ResolvedPaths struct {
	BaseDir     string
	Snapshots   []string
	OutputDir   string
	HistoryPath string
}

// ResolvePaths anchors every relative path in cfg at baseDir, normally the
// directory holding the config file.
func ResolvePaths(cfg *Config, baseDir string) (ResolvedPaths, error) {
	if strings.TrimSpace(baseDir) == "" {
		return ResolvedPaths{}, fmt.Errorf("base dir must not be empty")
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return ResolvedPaths{}, err
	}

	out := ResolvedPaths{
		BaseDir:     base,
		OutputDir:   ResolveRelative(base, cfg.Output.Dir),
		HistoryPath: ResolveRelative(base, cfg.History.Path),
	}
	for _, s := range cfg.Input.Snapshots {
		out.Snapshots = append(out.Snapshots, ResolveRelative(base, s))
	}
	return out, nil
}

// OutputFile returns the path of an output artifact, or "" when name is unset.
func (p ResolvedPaths) OutputFile(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return ResolveRelative(p.OutputDir, name)
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
