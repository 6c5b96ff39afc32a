// Package index keeps the per-module declaration index: built file trees
// keyed by path and package, class lookup by ID, member scopes and the
// reverse dependencies used for invalidation.
package index

import (
	"sort"
	"strings"
	"sync"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/scope"
	"resolvecore/internal/engine/tree"
	"resolvecore/internal/shared/observability"
)

type classEntry struct {
	class *tree.Class
	path  string
}

// Provider indexes the files of one module. Recording a file replaces every
// contribution of the previous tree for the same path.
type Provider struct {
	mu         sync.RWMutex
	module     string
	files      map[string]*tree.File
	packages   map[string]map[string]bool
	classes    map[tree.ClassID][]classEntry
	dependsOn  map[string]map[string]bool
	dependents map[string]map[string]bool
	scopes     *lruCache[tree.ClassID, *scope.MemberScope]
}

func NewProvider(module string, cacheCapacity int) *Provider {
	return &Provider{
		module:     module,
		files:      make(map[string]*tree.File),
		packages:   make(map[string]map[string]bool),
		classes:    make(map[tree.ClassID][]classEntry),
		dependsOn:  make(map[string]map[string]bool),
		dependents: make(map[string]map[string]bool),
		scopes:     newLRUCache[tree.ClassID, *scope.MemberScope](cacheCapacity, nil),
	}
}

func (p *Provider) Module() string { return p.module }

// RecordFile registers a freshly built file.
func (p *Provider) RecordFile(f *tree.File) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.files[f.Path]; exists {
		p.removeFileLocked(f.Path)
	}

	p.files[f.Path] = f
	if p.packages[f.Package] == nil {
		p.packages[f.Package] = make(map[string]bool)
	}
	p.packages[f.Package][f.Path] = true

	tree.Inspect(f, func(n tree.Node) bool {
		switch d := n.(type) {
		case *tree.File:
			return true
		case *tree.Class:
			if !d.ID.Local {
				p.classes[d.ID] = append(p.classes[d.ID], classEntry{class: d, path: f.Path})
			}
			return true
		}
		return false
	})
	observability.IndexFilesRecorded.WithLabelValues(p.module).Inc()
}

func (p *Provider) removeFileLocked(path string) {
	f, ok := p.files[path]
	if !ok {
		return
	}
	delete(p.files, path)
	if paths := p.packages[f.Package]; paths != nil {
		delete(paths, path)
		if len(paths) == 0 {
			delete(p.packages, f.Package)
		}
	}
	for id, entries := range p.classes {
		kept := entries[:0]
		for _, e := range entries {
			if e.path != path {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(p.classes, id)
		} else {
			p.classes[id] = kept
		}
	}
	p.scopes.evictWhere(func(_ tree.ClassID, s *scope.MemberScope) bool {
		return tree.FileOf(s.Class()) == f
	})
	for to := range p.dependsOn[path] {
		delete(p.dependents[to], path)
	}
	delete(p.dependsOn, path)
}

func (p *Provider) File(path string) (*tree.File, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.files[path]
	return f, ok
}

// Files returns every recorded file ordered by path.
func (p *Provider) Files() []*tree.File {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*tree.File, 0, len(p.files))
	for _, f := range p.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.files)
}

func (p *Provider) Classes(id tree.ClassID) []*tree.Class {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := p.classes[id]
	if len(entries) == 0 {
		return nil
	}
	out := make([]*tree.Class, len(entries))
	for i, e := range entries {
		out[i] = e.class
	}
	return out
}

// TopLevel returns the package-level declarations of pkg, in path order.
func (p *Provider) TopLevel(pkg string) []tree.Declaration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	paths := make([]string, 0, len(p.packages[pkg]))
	for path := range p.packages[pkg] {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var out []tree.Declaration
	for _, path := range paths {
		out = append(out, p.files[path].Decls...)
	}
	return out
}

// HasPackage reports whether pkg or one of its subpackages has files.
func (p *Provider) HasPackage(pkg string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.packages[pkg]; ok {
		return true
	}
	prefix := pkg + "."
	for name := range p.packages {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// ClassScope returns the cached member scope of a class.
func (p *Provider) ClassScope(id tree.ClassID) (*scope.MemberScope, error) {
	if s, ok := p.scopes.get(id); ok {
		observability.ClassScopeCache.WithLabelValues("hit").Inc()
		return s, nil
	}
	observability.ClassScopeCache.WithLabelValues("miss").Inc()

	c, err := singleClass(id, p.Classes(id))
	if err != nil {
		return nil, err
	}
	s := scope.NewMemberScope(c)
	p.scopes.put(id, s)
	return s, nil
}

func (p *Provider) TopLevelScope(pkg string) *scope.TopLevelScope {
	return scope.NewTopLevelScope(pkg, p)
}

// RecordDependency notes that resolving file from read declarations of file
// to.
func (p *Provider) RecordDependency(from, to string) {
	if from == to {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.files[to]; !ok {
		return
	}
	if p.dependsOn[from] == nil {
		p.dependsOn[from] = make(map[string]bool)
	}
	p.dependsOn[from][to] = true
	if p.dependents[to] == nil {
		p.dependents[to] = make(map[string]bool)
	}
	p.dependents[to][from] = true
}

// Dependents returns the files that recorded a dependency on path.
func (p *Provider) Dependents(path string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.dependents[path])
}

// Invalidate drops path and, transitively, every file depending on it. The
// evicted paths are returned in eviction order.
func (p *Provider) Invalidate(path string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var evicted []string
	seen := map[string]bool{path: true}
	queue := []string{path}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range sortedKeys(p.dependents[current]) {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
		if _, ok := p.files[current]; ok {
			p.removeFileLocked(current)
			evicted = append(evicted, current)
		}
		delete(p.dependents, current)
	}
	observability.IndexInvalidations.WithLabelValues(p.module).Add(float64(len(evicted)))
	return evicted
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func singleClass(id tree.ClassID, classes []*tree.Class) (*tree.Class, error) {
	switch len(classes) {
	case 0:
		return nil, errors.Newf(errors.CodeLookupFailure, "class %s not found", id).
			WithContext(errors.CtxSymbol, id.String()).
			WithContext(errors.CtxReason, errors.ReasonUnknown)
	case 1:
		return classes[0], nil
	}
	return nil, errors.Newf(errors.CodeLookupFailure, "class %s declared %d times", id, len(classes)).
		WithContext(errors.CtxSymbol, id.String()).
		WithContext(errors.CtxReason, errors.ReasonAmbiguous)
}
