package config

import (
	"path/filepath"
	"strings"
)

// WatchRoots resolves Watch.Paths against base, the directory the
// configuration was loaded from.
func (c *Config) WatchRoots(base string) []string {
	roots := make([]string, 0, len(c.Watch.Paths))
	seen := make(map[string]bool, len(c.Watch.Paths))
	for _, p := range c.Watch.Paths {
		root := ResolveRelative(base, p)
		if seen[root] {
			continue
		}
		seen[root] = true
		roots = append(roots, root)
	}
	return roots
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
