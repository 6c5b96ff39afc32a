package scope

import (
	"fmt"
	"testing"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	files []*tree.File
}

func (p *fakeProvider) Classes(id tree.ClassID) []*tree.Class {
	var out []*tree.Class
	for _, f := range p.files {
		tree.Inspect(f, func(n tree.Node) bool {
			if c, ok := n.(*tree.Class); ok && c.ID == id {
				out = append(out, c)
			}
			_, isFunc := n.(*tree.Function)
			return !isFunc
		})
	}
	return out
}

func (p *fakeProvider) TopLevel(pkg string) []tree.Declaration {
	var out []tree.Declaration
	for _, f := range p.files {
		if f.Package == pkg {
			out = append(out, f.Decls...)
		}
	}
	return out
}

func (p *fakeProvider) HasPackage(pkg string) bool {
	for _, f := range p.files {
		if f.Package == pkg {
			return true
		}
	}
	return false
}

func class(name string, members ...tree.Declaration) *tree.Class {
	return &tree.Class{DeclBase: tree.DeclBase{Name: name}, Members: members}
}

func function(name string) *tree.Function {
	return &tree.Function{DeclBase: tree.DeclBase{Name: name}}
}

func file(pkg, path string, imports []*tree.Import, decls ...tree.Declaration) *tree.File {
	f := &tree.File{DeclBase: tree.DeclBase{Name: path}, Path: path, Package: pkg, Imports: imports, Decls: decls}
	tree.Link(f, nil)
	return f
}

func TestTower_ReversedPriority(t *testing.T) {
	outer := NewLocalScope(&tree.Variable{DeclBase: tree.DeclBase{Name: "x"}})
	innerX := &tree.Variable{DeclBase: tree.DeclBase{Name: "x"}}
	inner := NewLocalScope(innerX)

	reversed := NewTower(true, outer, inner)
	got, err := reversed.LookupCallable("x", nil)
	require.NoError(t, err)
	assert.Same(t, innerX, got)

	forward := NewTower(false, outer, inner)
	got, err = forward.LookupCallable("x", nil)
	require.NoError(t, err)
	assert.NotSame(t, innerX, got)
}

func TestTower_WithScopeCleanup(t *testing.T) {
	tower := NewTower(true, NewLocalScope())
	require.Equal(t, 1, tower.Len())

	err := tower.WithScopeCleanup(func() error {
		tower.Push(NewLocalScope(), NewTypeParameterScope(nil))
		assert.Equal(t, 3, tower.Len())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tower.Len())

	boom := fmt.Errorf("boom")
	err = tower.WithScopeCleanup(func() error {
		tower.Push(NewLocalScope())
		return tower.WithScopeCleanup(func() error {
			tower.Push(NewLocalScope())
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, tower.Len())

	assert.Panics(t, func() {
		_ = tower.WithScopeCleanup(func() error {
			tower.Push(NewLocalScope())
			panic("unexpected")
		})
	})
	assert.Equal(t, 1, tower.Len())
}

func TestTower_LookupFailures(t *testing.T) {
	a1 := function("m")
	a2 := function("m")
	tower := NewTower(true, NewLocalScope(a1, a2))

	_, err := tower.LookupCallable("m", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeLookupFailure))
	reason, _ := errors.ContextValue(err, errors.CtxReason)
	assert.Equal(t, errors.ReasonAmbiguous, reason)

	got, err := tower.LookupCallable("m", func(d tree.Declaration) bool { return d == a2 })
	require.NoError(t, err)
	assert.Same(t, a2, got)

	_, err = tower.LookupClassifier("Missing")
	require.Error(t, err)
	reason, _ = errors.ContextValue(err, errors.CtxReason)
	assert.Equal(t, errors.ReasonUnknown, reason)
}

func TestMemberScope_MostDerivedWins(t *testing.T) {
	bm := function("m")
	am := function("m")
	b := class("B", bm)
	a := class("A", am)
	file("p", "a.kt", nil, a, b)

	tower := NewTower(true, NewMemberScope(b), NewMemberScope(a))
	got, err := tower.LookupCallable("m", nil)
	require.NoError(t, err)
	assert.Same(t, am, got)
}

func TestImportingScope_Priority(t *testing.T) {
	langString := class("String")
	lang := file("lang", "lang.kt", nil, langString)

	libString := class("String")
	libHelper := function("helper")
	lib := file("lib", "lib.kt", nil, libString, libHelper, class("Other"))

	otherString := class("String")
	other := file("other", "other.kt", nil, otherString)

	localWidget := class("Widget")
	main := file("app", "main.kt", []*tree.Import{
		{Path: "lib.*", Star: true, Kind: tree.ImportPackage, Package: "lib"},
		{Path: "other.String", Kind: tree.ImportClass, Package: "other", Relative: "String"},
		{Path: "lib.helper", Alias: "h", Kind: tree.ImportCallable, Package: "lib", Relative: "helper"},
	}, localWidget)

	p := &fakeProvider{files: []*tree.File{lang, lib, other, main}}
	s := NewImportingScope(main, p, "lang")

	assert.Equal(t, []tree.Declaration{otherString}, s.Classifiers("String"))
	assert.Equal(t, []tree.Declaration{localWidget}, s.Classifiers("Widget"))
	assert.Len(t, s.Classifiers("Other"), 1)
	assert.Equal(t, []tree.Declaration{libHelper}, s.Callables("h"))
	assert.Equal(t, []tree.Declaration{libHelper}, s.Callables("helper"))
	assert.Nil(t, s.Classifiers("Nope"))

	plain := file("app2", "plain.kt", nil)
	p.files = append(p.files, plain)
	assert.Equal(t, []tree.Declaration{langString}, NewImportingScope(plain, p, "lang").Classifiers("String"))
}

func TestLocalScope_Shadowing(t *testing.T) {
	first := &tree.Variable{DeclBase: tree.DeclBase{Name: "x"}}
	second := &tree.Variable{DeclBase: tree.DeclBase{Name: "x"}}
	s := NewLocalScope(first, second)
	assert.Equal(t, []tree.Declaration{second}, s.Callables("x"))

	f1, f2 := function("f"), function("f")
	s = NewLocalScope(f1, f2)
	assert.Len(t, s.Callables("f"), 2)
}

func TestNestedAndTypeParameterScopes(t *testing.T) {
	nested := class("N")
	owner := class("Owner", nested, function("f"))
	file("p", "n.kt", nil, owner)

	ns := NewNestedClassifierScope(owner)
	assert.Equal(t, []tree.Declaration{nested}, ns.Classifiers("N"))
	assert.Nil(t, ns.Callables("f"))

	tp := &tree.TypeParameter{DeclBase: tree.DeclBase{Name: "T"}}
	tps := NewTypeParameterScope([]*tree.TypeParameter{tp})
	assert.Equal(t, []tree.Declaration{tp}, tps.Classifiers("T"))
	assert.Empty(t, tps.Classifiers("U"))
}
