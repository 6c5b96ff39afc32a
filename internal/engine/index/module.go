package index

import (
	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/scope"
	"resolvecore/internal/engine/tree"
)

// Module is a node of the module dependency graph. Lookups see the module's
// own declarations first, then its dependencies breadth-first.
type Module struct {
	Name     string
	provider *Provider
	deps     []*Module
}

func NewModule(name string, cacheCapacity int) *Module {
	return &Module{Name: name, provider: NewProvider(name, cacheCapacity)}
}

func (m *Module) Provider() *Provider { return m.provider }

func (m *Module) AddDependency(deps ...*Module) {
	for _, d := range deps {
		if d == nil || d == m {
			continue
		}
		dup := false
		for _, existing := range m.deps {
			if existing == d {
				dup = true
				break
			}
		}
		if !dup {
			m.deps = append(m.deps, d)
		}
	}
}

func (m *Module) Dependencies() []*Module {
	out := make([]*Module, len(m.deps))
	copy(out, m.deps)
	return out
}

// Visible returns m followed by every module reachable through
// dependencies, without duplicates.
func (m *Module) Visible() []*Module {
	seen := map[*Module]bool{m: true}
	out := []*Module{m}
	for i := 0; i < len(out); i++ {
		for _, d := range out[i].deps {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// Classes returns the candidates from the first visible module declaring id.
func (m *Module) Classes(id tree.ClassID) []*tree.Class {
	for _, v := range m.Visible() {
		if found := v.provider.Classes(id); len(found) > 0 {
			return found
		}
	}
	return nil
}

func (m *Module) TopLevel(pkg string) []tree.Declaration {
	var out []tree.Declaration
	for _, v := range m.Visible() {
		out = append(out, v.provider.TopLevel(pkg)...)
	}
	return out
}

func (m *Module) HasPackage(pkg string) bool {
	for _, v := range m.Visible() {
		if v.provider.HasPackage(pkg) {
			return true
		}
	}
	return false
}

// OwnerOf returns the visible module whose index holds the file.
func (m *Module) OwnerOf(f *tree.File) (*Module, bool) {
	if f == nil {
		return nil, false
	}
	for _, v := range m.Visible() {
		if got, ok := v.provider.File(f.Path); ok && got == f {
			return v, true
		}
	}
	return nil, false
}

// Class resolves id to exactly one class.
func (m *Module) Class(id tree.ClassID) (*tree.Class, error) {
	return singleClass(id, m.Classes(id))
}

// ClassScope returns the member scope from the module that declares id.
func (m *Module) ClassScope(id tree.ClassID) (*scope.MemberScope, error) {
	for _, v := range m.Visible() {
		if len(v.provider.Classes(id)) > 0 {
			return v.provider.ClassScope(id)
		}
	}
	return nil, errors.Newf(errors.CodeLookupFailure, "class %s not found", id).
		WithContext(errors.CtxSymbol, id.String()).
		WithContext(errors.CtxReason, errors.ReasonUnknown)
}

func (m *Module) TopLevelScope(pkg string) *scope.TopLevelScope {
	return scope.NewTopLevelScope(pkg, m)
}

// LookupCallable finds the single callable named name at package level, or
// among the members of owner when owner is non-nil. kinds restricts the
// symbol kinds considered.
func (m *Module) LookupCallable(pkg string, owner *tree.ClassID, name string, kinds ...tree.SymbolKind) (tree.Declaration, error) {
	var s scope.Scope
	where := pkg
	if owner != nil {
		cs, err := m.ClassScope(*owner)
		if err != nil {
			return nil, err
		}
		s = cs
		where = owner.String()
	} else {
		s = m.TopLevelScope(pkg)
	}

	var found []tree.Declaration
	for _, d := range s.Callables(name) {
		if matchesKind(d, kinds) {
			found = append(found, d)
		}
	}
	switch len(found) {
	case 0:
		return nil, errors.Newf(errors.CodeLookupFailure, "no callable %s in %s", name, where).
			WithContext(errors.CtxSymbol, name).
			WithContext(errors.CtxReason, errors.ReasonUnknown)
	case 1:
		return found[0], nil
	}
	return nil, errors.Newf(errors.CodeLookupFailure, "callable %s is ambiguous in %s: %d candidates", name, where, len(found)).
		WithContext(errors.CtxSymbol, name).
		WithContext(errors.CtxReason, errors.ReasonAmbiguous)
}

func matchesKind(d tree.Declaration, kinds []tree.SymbolKind) bool {
	if len(kinds) == 0 {
		return true
	}
	sym := d.Symbol()
	if sym == nil {
		return false
	}
	for _, k := range kinds {
		if sym.Kind == k {
			return true
		}
	}
	return false
}
