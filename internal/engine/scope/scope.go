// Package scope implements the name lookup layers used during resolution
// and the tower that stacks them.
package scope

import (
	"resolvecore/internal/engine/tree"
)

// Provider is the declaration index view the scopes read from.
type Provider interface {
	Classes(id tree.ClassID) []*tree.Class
	TopLevel(pkg string) []tree.Declaration
	HasPackage(pkg string) bool
}

// Scope is one lookup layer. Classifiers returns classes, type aliases and
// type parameters; Callables returns functions and value-like declarations.
type Scope interface {
	Kind() string
	Classifiers(name string) []tree.Declaration
	Callables(name string) []tree.Declaration
}

func isClassifier(d tree.Declaration) bool {
	switch d.(type) {
	case *tree.Class, *tree.TypeAlias, *tree.TypeParameter:
		return true
	}
	return false
}

func isCallable(d tree.Declaration) bool {
	switch d.(type) {
	case *tree.Function, *tree.Property, *tree.Field, *tree.EnumEntry, *tree.ValueParameter, *tree.Variable:
		return true
	}
	return false
}

func filterNamed(decls []tree.Declaration, name string, keep func(tree.Declaration) bool) []tree.Declaration {
	var out []tree.Declaration
	for _, d := range decls {
		if keep(d) && d.Base().Name == name {
			out = append(out, d)
		}
	}
	return out
}

func classDecls(classes []*tree.Class) []tree.Declaration {
	if len(classes) == 0 {
		return nil
	}
	out := make([]tree.Declaration, len(classes))
	for i, c := range classes {
		out[i] = c
	}
	return out
}

// NestedClassifierScope exposes the classes and type aliases nested in a class.
type NestedClassifierScope struct {
	class *tree.Class
}

func NewNestedClassifierScope(c *tree.Class) *NestedClassifierScope {
	return &NestedClassifierScope{class: c}
}

func (s *NestedClassifierScope) Kind() string { return "nested:" + s.class.ID.String() }

func (s *NestedClassifierScope) Classifiers(name string) []tree.Declaration {
	return filterNamed(s.class.Members, name, func(d tree.Declaration) bool {
		switch d.(type) {
		case *tree.Class, *tree.TypeAlias:
			return true
		}
		return false
	})
}

func (s *NestedClassifierScope) Callables(string) []tree.Declaration { return nil }

// MemberScope exposes the members declared directly in a class. Inherited
// members are reached through the supertype member scopes in the tower.
type MemberScope struct {
	class  *tree.Class
	byName map[string][]tree.Declaration
}

func NewMemberScope(c *tree.Class) *MemberScope {
	s := &MemberScope{class: c, byName: make(map[string][]tree.Declaration)}
	for _, m := range c.Members {
		name := m.Base().Name
		s.byName[name] = append(s.byName[name], m)
	}
	return s
}

func (s *MemberScope) Class() *tree.Class { return s.class }

func (s *MemberScope) Kind() string { return "members:" + s.class.ID.String() }

func (s *MemberScope) Classifiers(name string) []tree.Declaration {
	return filterNamed(s.byName[name], name, isClassifier)
}

func (s *MemberScope) Callables(name string) []tree.Declaration {
	return filterNamed(s.byName[name], name, isCallable)
}

// Constructors returns the class constructors in declaration order.
func (s *MemberScope) Constructors() []*tree.Constructor {
	var out []*tree.Constructor
	for _, m := range s.class.Members {
		if ctor, ok := m.(*tree.Constructor); ok {
			out = append(out, ctor)
		}
	}
	return out
}

type TypeParameterScope struct {
	params []*tree.TypeParameter
}

func NewTypeParameterScope(params []*tree.TypeParameter) *TypeParameterScope {
	return &TypeParameterScope{params: params}
}

func (s *TypeParameterScope) Kind() string { return "type-parameters" }

func (s *TypeParameterScope) Classifiers(name string) []tree.Declaration {
	for _, tp := range s.params {
		if tp.Name == name {
			return []tree.Declaration{tp}
		}
	}
	return nil
}

func (s *TypeParameterScope) Callables(string) []tree.Declaration { return nil }

// LocalScope holds parameters and block-local declarations. A later value
// declaration shadows an earlier one with the same name; local functions
// overload.
type LocalScope struct {
	byName map[string][]tree.Declaration
}

func NewLocalScope(decls ...tree.Declaration) *LocalScope {
	s := &LocalScope{byName: make(map[string][]tree.Declaration)}
	for _, d := range decls {
		s.Add(d)
	}
	return s
}

func (s *LocalScope) Add(d tree.Declaration) {
	name := d.Base().Name
	s.byName[name] = append(s.byName[name], d)
}

func (s *LocalScope) Kind() string { return "local" }

func (s *LocalScope) Classifiers(name string) []tree.Declaration {
	decls := filterNamed(s.byName[name], name, isClassifier)
	if len(decls) > 1 {
		return decls[len(decls)-1:]
	}
	return decls
}

func (s *LocalScope) Callables(name string) []tree.Declaration {
	var funcs []tree.Declaration
	var last tree.Declaration
	for _, d := range s.byName[name] {
		switch d.(type) {
		case *tree.Function:
			funcs = append(funcs, d)
		default:
			if isCallable(d) {
				last = d
			}
		}
	}
	if last != nil {
		return []tree.Declaration{last}
	}
	return funcs
}

// TopLevelScope exposes the package-level declarations of one package
// across every file the provider knows.
type TopLevelScope struct {
	pkg      string
	provider Provider
}

func NewTopLevelScope(pkg string, p Provider) *TopLevelScope {
	return &TopLevelScope{pkg: pkg, provider: p}
}

func (s *TopLevelScope) Package() string { return s.pkg }

func (s *TopLevelScope) Kind() string { return "package:" + s.pkg }

func (s *TopLevelScope) Classifiers(name string) []tree.Declaration {
	return classifiersIn(s.provider, s.pkg, name)
}

func (s *TopLevelScope) Callables(name string) []tree.Declaration {
	return filterNamed(s.provider.TopLevel(s.pkg), name, isCallable)
}

func classifiersIn(p Provider, pkg, name string) []tree.Declaration {
	out := classDecls(p.Classes(tree.NewClassID(pkg, name)))
	for _, d := range p.TopLevel(pkg) {
		if alias, ok := d.(*tree.TypeAlias); ok && alias.Name == name {
			out = append(out, alias)
		}
	}
	return out
}
