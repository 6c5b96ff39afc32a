package tree

// Node is any element of a declaration tree.
type Node interface {
	node()
}

// Declaration is a named program entity. Ownership flows from container to
// member; Parent is a weak back-reference.
type Declaration interface {
	Node
	Base() *DeclBase
	Symbol() *Symbol
	Stage() Stage
	Advance(Stage) bool
	Parent() Declaration
	SetParent(Declaration)
}

type Annotation struct {
	Name string
	Args []string
}

// DeclBase carries the attributes shared by every declaration.
type DeclBase struct {
	Name        string
	Sym         *Symbol
	Annotations []Annotation
	Position    Position

	stage  Stage
	parent Declaration
}

func (b *DeclBase) node() {}
func (b *DeclBase) Base() *DeclBase { return b }
func (b *DeclBase) Symbol() *Symbol { return b.Sym }
func (b *DeclBase) Stage() Stage { return b.stage }
func (b *DeclBase) Parent() Declaration { return b.parent }
func (b *DeclBase) SetParent(p Declaration) { b.parent = p }

// Advance raises the stage to s. Lower stages are ignored so the stage never
// decreases; the result reports whether the stage changed.
func (b *DeclBase) Advance(s Stage) bool {
	if s <= b.stage {
		return false
	}
	b.stage = s
	return true
}

type Visibility int

const (
	VisibilityUnknown Visibility = iota
	VisibilityPublic
	VisibilityInternal
	VisibilityProtected
	VisibilityPrivate
	VisibilityLocal
)

type Modality int

const (
	ModalityUnknown Modality = iota
	ModalityFinal
	ModalityOpen
	ModalityAbstract
	ModalitySealed
)

// Status is the visibility/modality pair filled in by status resolution.
type Status struct {
	Visibility Visibility
	Modality   Modality
	Override   bool
}

type ImportKind int

const (
	ImportUnresolved ImportKind = iota
	ImportClass
	ImportCallable
	ImportPackage
	// ImportInvalid marks an import that was tried and matched nothing.
	ImportInvalid
)

type Import struct {
	Path  string
	Alias string
	Star  bool

	Kind     ImportKind
	Package  string
	Relative string
	Position Position
}

// ImportedName is the simple name an explicit import binds.
func (i *Import) ImportedName() string {
	if i.Alias != "" {
		return i.Alias
	}
	for j := len(i.Path) - 1; j >= 0; j-- {
		if i.Path[j] == '.' {
			return i.Path[j+1:]
		}
	}
	return i.Path
}

type File struct {
	DeclBase
	Path    string
	Package string
	Imports []*Import
	Decls   []Declaration
	Mode    BuildMode
}

type ClassKind int

const (
	ClassKindClass ClassKind = iota
	ClassKindInterface
	ClassKindObject
	ClassKindEnum
)

type Class struct {
	DeclBase
	Status
	ID             ClassID
	Kind           ClassKind
	Companion      bool
	TypeParameters []*TypeParameter
	SuperTypes     []TypeRef
	Members        []Declaration
}

// CompanionObject returns the class's companion, if any.
func (c *Class) CompanionObject() *Class {
	for _, m := range c.Members {
		if nested, ok := m.(*Class); ok && nested.Companion {
			return nested
		}
	}
	return nil
}

func (c *Class) NestedClasses() []*Class {
	var out []*Class
	for _, m := range c.Members {
		if nested, ok := m.(*Class); ok {
			out = append(out, nested)
		}
	}
	return out
}

// DefaultType is the class type applied to its own type parameters.
func (c *Class) DefaultType() *ClassType {
	args := make([]Type, len(c.TypeParameters))
	for i, tp := range c.TypeParameters {
		args[i] = &TypeParameterType{Symbol: tp.Sym, Name: tp.Name}
	}
	return &ClassType{Symbol: c.Sym, ID: c.ID, Args: args}
}

type Function struct {
	DeclBase
	Status
	TypeParameters []*TypeParameter
	Receiver       TypeRef
	Params         []*ValueParameter
	ReturnType     TypeRef
	Body           *Block
}

type Constructor struct {
	DeclBase
	Status
	Primary    bool
	Params     []*ValueParameter
	ReturnType TypeRef
	Body       *Block
}

// AnonymousInitializer is an init block; every constructor of the class
// runs it.
type AnonymousInitializer struct {
	DeclBase
	Body *Block
}

type Property struct {
	DeclBase
	Status
	Type        TypeRef
	Initializer Expr
	Mutable     bool
}

type Field struct {
	DeclBase
	Type        TypeRef
	Initializer Expr
	Static      bool
}

type TypeAlias struct {
	DeclBase
	Status
	TypeParameters []*TypeParameter
	Expanded       TypeRef
}

type ValueParameter struct {
	DeclBase
	Index   int
	Type    TypeRef
	Vararg  bool
	Default Expr
	// ElementType keeps the declared element type of a vararg parameter once
	// Type has been widened to an array.
	ElementType TypeRef
}

type TypeParameter struct {
	DeclBase
	Index  int
	Bounds []TypeRef
}

type Variable struct {
	DeclBase
	Type        TypeRef
	Initializer Expr
	Mutable     bool
}

type EnumEntry struct {
	DeclBase
	Args []Expr
}

// NameOf returns d's name, or "" for nil.
func NameOf(d Declaration) string {
	if d == nil {
		return ""
	}
	return d.Base().Name
}

// FileOf walks parents up to the owning file.
func FileOf(d Declaration) *File {
	for d != nil {
		if f, ok := d.(*File); ok {
			return f
		}
		d = d.Parent()
	}
	return nil
}

// ContainingClass returns the nearest enclosing class of d.
func ContainingClass(d Declaration) *Class {
	for p := d.Parent(); p != nil; p = p.Parent() {
		if c, ok := p.(*Class); ok {
			return c
		}
	}
	return nil
}

// TypeParametersOf returns the type parameters a declaration introduces.
func TypeParametersOf(d Declaration) []*TypeParameter {
	switch x := d.(type) {
	case *Class:
		return x.TypeParameters
	case *Function:
		return x.TypeParameters
	case *TypeAlias:
		return x.TypeParameters
	}
	return nil
}
