package util

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// GlobSet is a compiled list of slash-separated path patterns.
type GlobSet struct {
	globs []glob.Glob
}

func CompileGlobs(patterns []string) (*GlobSet, error) {
	set := &GlobSet{globs: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(SlashPath(p), '/')
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		set.globs = append(set.globs, g)
	}
	return set, nil
}

// Match reports whether any pattern matches path or its base name.
func (s *GlobSet) Match(path string) bool {
	if s == nil {
		return false
	}
	p := SlashPath(path)
	base := p
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		base = p[idx+1:]
	}
	for _, g := range s.globs {
		if g.Match(p) || g.Match(base) {
			return true
		}
	}
	return false
}
