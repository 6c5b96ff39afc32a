package scope

import (
	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"
)

// Tower is an ordered stack of scopes. Layers are pushed outermost first.
// With reversed priority, lookup starts from the most recently pushed layer
// so inner scopes shadow outer ones; otherwise it walks in insertion order.
type Tower struct {
	layers   []Scope
	reversed bool
}

func NewTower(reversed bool, layers ...Scope) *Tower {
	t := &Tower{reversed: reversed}
	t.Push(layers...)
	return t
}

func (t *Tower) Push(layers ...Scope) {
	for _, l := range layers {
		if l != nil {
			t.layers = append(t.layers, l)
		}
	}
}

func (t *Tower) Len() int { return len(t.layers) }

func (t *Tower) Reversed() bool { return t.reversed }

// Layers returns a copy of the layers in insertion order.
func (t *Tower) Layers() []Scope {
	out := make([]Scope, len(t.layers))
	copy(out, t.layers)
	return out
}

// Fork returns an independent tower with the same layers.
func (t *Tower) Fork() *Tower {
	return &Tower{layers: t.Layers(), reversed: t.reversed}
}

// WithScopeCleanup runs fn and afterwards drops every layer fn pushed. The
// truncation runs on every exit path, including a panic.
func (t *Tower) WithScopeCleanup(fn func() error) error {
	n := len(t.layers)
	defer func() {
		for i := n; i < len(t.layers); i++ {
			t.layers[i] = nil
		}
		t.layers = t.layers[:n]
	}()
	return fn()
}

// Each calls fn for every layer in lookup priority order until fn returns
// false.
func (t *Tower) Each(fn func(Scope) bool) {
	if t.reversed {
		for i := len(t.layers) - 1; i >= 0; i-- {
			if !fn(t.layers[i]) {
				return
			}
		}
		return
	}
	for _, l := range t.layers {
		if !fn(l) {
			return
		}
	}
}

// LookupClassifier returns the classifier visible under name.
func (t *Tower) LookupClassifier(name string) (tree.Declaration, error) {
	return t.lookup(name, "classifier", func(s Scope) []tree.Declaration {
		return s.Classifiers(name)
	}, nil)
}

// LookupCallable returns the callable visible under name that satisfies
// accept. A nil accept takes any candidate.
func (t *Tower) LookupCallable(name string, accept func(tree.Declaration) bool) (tree.Declaration, error) {
	return t.lookup(name, "callable", func(s Scope) []tree.Declaration {
		return s.Callables(name)
	}, accept)
}

func (t *Tower) lookup(name, what string, get func(Scope) []tree.Declaration, accept func(tree.Declaration) bool) (tree.Declaration, error) {
	var found []tree.Declaration
	var layer Scope
	t.Each(func(s Scope) bool {
		for _, d := range get(s) {
			if accept == nil || accept(d) {
				found = appendUnique(found, d)
			}
		}
		layer = s
		return len(found) == 0
	})

	switch len(found) {
	case 0:
		return nil, errors.Newf(errors.CodeLookupFailure, "unresolved %s %s", what, name).
			WithContext(errors.CtxSymbol, name).
			WithContext(errors.CtxReason, errors.ReasonUnknown)
	case 1:
		return found[0], nil
	}
	return nil, errors.Newf(errors.CodeLookupFailure, "ambiguous %s %s: %d candidates in %s", what, name, len(found), layer.Kind()).
		WithContext(errors.CtxSymbol, name).
		WithContext(errors.CtxReason, errors.ReasonAmbiguous)
}
