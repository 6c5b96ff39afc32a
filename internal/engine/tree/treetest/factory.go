// Package treetest builds declaration trees for tests.
package treetest

import (
	"path/filepath"
	"strings"

	"resolvecore/internal/engine/tree"
)

// Factory mints declarations with bound symbols from one arena.
type Factory struct {
	Arena *tree.SymbolArena
}

func NewFactory(arena *tree.SymbolArena) *Factory {
	if arena == nil {
		arena = tree.NewSymbolArena()
	}
	return &Factory{Arena: arena}
}

func (f *Factory) base(name string, kind tree.SymbolKind) tree.DeclBase {
	return tree.DeclBase{Name: name, Sym: f.Arena.New(kind)}
}

func bind[D tree.Declaration](d D) D {
	if err := d.Symbol().Bind(d); err != nil {
		panic(err)
	}
	return d
}

// File links decls into a new file. Imports use source syntax:
// "a.b.C", "a.b.*" or "a.b.C as D".
func (f *Factory) File(path, pkg string, imports []string, decls ...tree.Declaration) *tree.File {
	file := bind(&tree.File{
		DeclBase: f.base(filepath.Base(path), tree.SymbolFile),
		Path:     path,
		Package:  pkg,
		Decls:    decls,
	})
	for _, raw := range imports {
		file.Imports = append(file.Imports, ParseImport(raw))
	}
	tree.Link(file, nil)
	return file
}

func ParseImport(raw string) *tree.Import {
	imp := &tree.Import{}
	if i := strings.Index(raw, " as "); i >= 0 {
		imp.Alias = strings.TrimSpace(raw[i+4:])
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, ".*") {
		imp.Star = true
		raw = strings.TrimSuffix(raw, ".*")
	}
	imp.Path = raw
	return imp
}

func (f *Factory) Class(name string, supers []tree.TypeRef, members ...tree.Declaration) *tree.Class {
	return bind(&tree.Class{
		DeclBase:   f.base(name, tree.SymbolClass),
		SuperTypes: supers,
		Members:    members,
	})
}

func (f *Factory) Interface(name string, supers []tree.TypeRef, members ...tree.Declaration) *tree.Class {
	c := f.Class(name, supers, members...)
	c.Kind = tree.ClassKindInterface
	return c
}

func (f *Factory) Object(name string, members ...tree.Declaration) *tree.Class {
	c := f.Class(name, nil, members...)
	c.Kind = tree.ClassKindObject
	return c
}

func (f *Factory) Companion(members ...tree.Declaration) *tree.Class {
	c := f.Object("Companion", members...)
	c.Companion = true
	return c
}

func (f *Factory) Enum(name string, entries ...string) *tree.Class {
	c := f.Class(name, nil)
	c.Kind = tree.ClassKindEnum
	for _, e := range entries {
		c.Members = append(c.Members, bind(&tree.EnumEntry{DeclBase: f.base(e, tree.SymbolEnumEntry)}))
	}
	return c
}

// Generic attaches type parameters to a class, function or type alias.
func Generic[D tree.Declaration](d D, params ...*tree.TypeParameter) D {
	for i, tp := range params {
		tp.Index = i
	}
	switch x := tree.Declaration(d).(type) {
	case *tree.Class:
		x.TypeParameters = params
	case *tree.Function:
		x.TypeParameters = params
	case *tree.TypeAlias:
		x.TypeParameters = params
	}
	return d
}

func (f *Factory) TypeParam(name string, bounds ...tree.TypeRef) *tree.TypeParameter {
	return bind(&tree.TypeParameter{DeclBase: f.base(name, tree.SymbolTypeParameter), Bounds: bounds})
}

// Fun builds a function. With no statements the function has no body.
func (f *Factory) Fun(name string, params []*tree.ValueParameter, ret tree.TypeRef, stmts ...tree.Expr) *tree.Function {
	fn := bind(&tree.Function{
		DeclBase:   f.base(name, tree.SymbolFunction),
		Params:     indexed(params),
		ReturnType: ret,
	})
	if len(stmts) > 0 {
		fn.Body = Block(stmts...)
	}
	return fn
}

func (f *Factory) Ctor(params ...*tree.ValueParameter) *tree.Constructor {
	return bind(&tree.Constructor{
		DeclBase: f.base("<init>", tree.SymbolConstructor),
		Primary:  true,
		Params:   indexed(params),
	})
}

// Init builds an init block.
func (f *Factory) Init(stmts ...tree.Expr) *tree.AnonymousInitializer {
	return bind(&tree.AnonymousInitializer{
		DeclBase: f.base("<anonymous-init>", tree.SymbolAnonymousInitializer),
		Body:     Block(stmts...),
	})
}

func indexed(params []*tree.ValueParameter) []*tree.ValueParameter {
	for i, p := range params {
		p.Index = i
	}
	return params
}

func (f *Factory) Param(name string, typ tree.TypeRef) *tree.ValueParameter {
	return bind(&tree.ValueParameter{DeclBase: f.base(name, tree.SymbolValueParameter), Type: typ})
}

func (f *Factory) VarargParam(name string, typ tree.TypeRef) *tree.ValueParameter {
	p := f.Param(name, typ)
	p.Vararg = true
	return p
}

func (f *Factory) Params(params ...*tree.ValueParameter) []*tree.ValueParameter {
	return params
}

func (f *Factory) Prop(name string, typ tree.TypeRef, init tree.Expr) *tree.Property {
	return bind(&tree.Property{DeclBase: f.base(name, tree.SymbolProperty), Type: typ, Initializer: init})
}

func (f *Factory) Field(name string, typ tree.TypeRef, init tree.Expr) *tree.Field {
	return bind(&tree.Field{DeclBase: f.base(name, tree.SymbolField), Type: typ, Initializer: init})
}

func (f *Factory) Local(name string, typ tree.TypeRef, init tree.Expr) *tree.Variable {
	return bind(&tree.Variable{DeclBase: f.base(name, tree.SymbolVariable), Type: typ, Initializer: init})
}

func (f *Factory) Alias(name string, expanded tree.TypeRef) *tree.TypeAlias {
	return bind(&tree.TypeAlias{DeclBase: f.base(name, tree.SymbolTypeAlias), Expanded: expanded})
}

// Type is a user type reference; dots separate qualifier parts and a
// trailing '?' marks it nullable. Args apply to the last part.
func Type(name string, args ...tree.TypeRef) *tree.UserTypeRef {
	ref := &tree.UserTypeRef{}
	if strings.HasSuffix(name, "?") {
		ref.Nullable = true
		name = strings.TrimSuffix(name, "?")
	}
	for _, part := range strings.Split(name, ".") {
		ref.Qualifier = append(ref.Qualifier, tree.QualifierPart{Name: part})
	}
	ref.Qualifier[len(ref.Qualifier)-1].Args = args
	return ref
}

func Types(refs ...tree.TypeRef) []tree.TypeRef { return refs }

func Implicit() *tree.ImplicitTypeRef { return &tree.ImplicitTypeRef{} }
