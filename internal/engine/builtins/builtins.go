// Package builtins provides the always-visible "lang" declarations.
package builtins

import (
	"resolvecore/internal/engine/tree"
)

const (
	Package  = "lang"
	FilePath = "<builtins>/lang.kt"
)

// Names of the builtin classes, in declaration order.
var ClassNames = []string{
	"Any", "Nothing", "Unit", "Boolean", "Char", "Int", "Long", "Double",
	"String", "Throwable", "Array", "Comparable",
}

// Builtins is a fully resolved file of builtin classes.
type Builtins struct {
	File    *tree.File
	classes map[string]*tree.Class
}

// New builds the builtin file with symbols from arena. Every declaration is
// already at StageExpressions.
func New(arena *tree.SymbolArena) *Builtins {
	b := &Builtins{classes: make(map[string]*tree.Class, len(ClassNames))}
	file := &tree.File{
		DeclBase: tree.DeclBase{Name: "lang.kt", Sym: arena.New(tree.SymbolFile)},
		Path:     FilePath,
		Package:  Package,
	}
	_ = file.Sym.Bind(file)

	for _, name := range ClassNames {
		c := &tree.Class{
			DeclBase: tree.DeclBase{Name: name, Sym: arena.New(tree.SymbolClass)},
			ID:       tree.NewClassID(Package, name),
			Status:   tree.Status{Visibility: tree.VisibilityPublic, Modality: tree.ModalityFinal},
		}
		_ = c.Sym.Bind(c)
		b.classes[name] = c
		file.Decls = append(file.Decls, c)
	}
	b.classes["Any"].Modality = tree.ModalityOpen
	b.classes["Throwable"].Modality = tree.ModalityOpen
	b.classes["Comparable"].Kind = tree.ClassKindInterface
	b.classes["Comparable"].Modality = tree.ModalityAbstract
	b.classes["Unit"].Kind = tree.ClassKindObject

	for _, generic := range []string{"Array", "Comparable"} {
		c := b.classes[generic]
		tp := &tree.TypeParameter{DeclBase: tree.DeclBase{Name: "T", Sym: arena.New(tree.SymbolTypeParameter)}}
		_ = tp.Sym.Bind(tp)
		tp.Bounds = []tree.TypeRef{&tree.ImplicitBuiltinTypeRef{Type: b.NullableAny()}}
		c.TypeParameters = []*tree.TypeParameter{tp}
	}

	for _, name := range ClassNames {
		c := b.classes[name]
		if name != "Any" {
			c.SuperTypes = []tree.TypeRef{&tree.ImplicitBuiltinTypeRef{Type: b.AnyType()}}
		}
	}
	// String and Int are comparable to themselves.
	for _, name := range []string{"Int", "Long", "Double", "Char", "String"} {
		c := b.classes[name]
		c.SuperTypes = append(c.SuperTypes, tree.Resolved(b.Comparable(b.Type(name))))
	}

	b.File = file
	tree.Link(file, nil)
	tree.Inspect(file, func(n tree.Node) bool {
		if d, ok := n.(tree.Declaration); ok {
			d.Advance(tree.StageExpressions)
		}
		return true
	})
	return b
}

// Class returns the builtin class with the given simple name.
func (b *Builtins) Class(name string) (*tree.Class, bool) {
	c, ok := b.classes[name]
	return c, ok
}

// Type is the non-generic class type for name; it panics on unknown names
// since the builtin set is fixed.
func (b *Builtins) Type(name string) *tree.ClassType {
	c, ok := b.classes[name]
	if !ok {
		panic("builtins: unknown class " + name)
	}
	return &tree.ClassType{Symbol: c.Sym, ID: c.ID}
}

func (b *Builtins) AnyType() *tree.ClassType { return b.Type("Any") }
func (b *Builtins) UnitType() *tree.ClassType { return b.Type("Unit") }
func (b *Builtins) NothingType() *tree.ClassType { return b.Type("Nothing") }
func (b *Builtins) BooleanType() *tree.ClassType { return b.Type("Boolean") }
func (b *Builtins) IntType() *tree.ClassType { return b.Type("Int") }
func (b *Builtins) StringType() *tree.ClassType { return b.Type("String") }

func (b *Builtins) NullableAny() *tree.ClassType {
	t := b.AnyType()
	t.Nullable = true
	return t
}

// ArrayOf is Array<elem>.
func (b *Builtins) ArrayOf(elem tree.Type) *tree.ClassType {
	t := b.Type("Array")
	t.Args = []tree.Type{elem}
	return t
}

func (b *Builtins) Comparable(arg tree.Type) *tree.ClassType {
	t := b.Type("Comparable")
	t.Args = []tree.Type{arg}
	return t
}

// ConstType maps a literal kind to its builtin type.
func (b *Builtins) ConstType(kind tree.ConstKind) tree.Type {
	switch kind {
	case tree.ConstBoolean:
		return b.BooleanType()
	case tree.ConstInt:
		return b.IntType()
	case tree.ConstLong:
		return b.Type("Long")
	case tree.ConstDouble:
		return b.Type("Double")
	case tree.ConstChar:
		return b.Type("Char")
	case tree.ConstString:
		return b.StringType()
	}
	t := b.NothingType()
	t.Nullable = true
	return t
}

// IsArray reports whether t is Array<...>.
func (b *Builtins) IsArray(t tree.Type) bool {
	ct, ok := t.(*tree.ClassType)
	return ok && ct.Symbol == b.classes["Array"].Sym
}
