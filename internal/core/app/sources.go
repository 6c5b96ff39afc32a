package app

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"resolvecore/internal/core/config"
	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"

	"github.com/gobwas/glob"
)

// DirSources is a source set read from directory trees. Paths rescans the
// roots so files created after start-up are picked up.
type DirSources struct {
	roots        []string
	extensions   map[string]bool
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func NewDirSources(cfg *config.Config, base string) (*DirSources, error) {
	s := &DirSources{
		roots:      cfg.WatchRoots(base),
		extensions: make(map[string]bool, len(cfg.Watch.Extensions)),
	}
	for _, ext := range cfg.Watch.Extensions {
		s.extensions[strings.ToLower(ext)] = true
	}
	var err error
	if s.excludeDirs, err = compileGlobs(cfg.Exclude.Dirs, "exclude dir"); err != nil {
		return nil, err
	}
	if s.excludeFiles, err = compileGlobs(cfg.Exclude.Files, "exclude file"); err != nil {
		return nil, err
	}
	return s, nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeValidationError, "invalid "+label+" pattern"), "pattern", pattern)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *DirSources) Paths() []string {
	var paths []string
	for _, root := range s.roots {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			base := filepath.Base(path)
			if d.IsDir() {
				if path != root && matchAny(s.excludeDirs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if s.extensions[strings.ToLower(filepath.Ext(base))] && !matchAny(s.excludeFiles, base) {
				paths = append(paths, path)
			}
			return nil
		})
	}
	sort.Strings(paths)
	return paths
}

func (s *DirSources) Source(path string) (tree.Source, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tree.Source{}, errors.AddContext(
				errors.Wrap(err, errors.CodeNotFound, "source file not found"), "path", path)
		}
		return tree.Source{}, err
	}
	return tree.Source{Path: path, Text: text}, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
