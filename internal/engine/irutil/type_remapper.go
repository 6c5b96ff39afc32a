package irutil

import (
	"resolvecore/internal/engine/tree"
)

// DeepCopyTypeRemapper rewrites types into the copied tree. Type parameter
// references resolve against the innermost scope entered with WithinScope
// before falling back to the symbol remapper.
type DeepCopyTypeRemapper struct {
	symbols  *DeepCopySymbolRemapper
	scopes   []map[*tree.Symbol]*tree.Symbol
	names    map[*tree.Symbol]string
	classIDs map[*tree.Symbol]tree.ClassID
}

func NewDeepCopyTypeRemapper(symbols *DeepCopySymbolRemapper) *DeepCopyTypeRemapper {
	return &DeepCopyTypeRemapper{
		symbols:  symbols,
		names:    make(map[*tree.Symbol]string),
		classIDs: make(map[*tree.Symbol]tree.ClassID),
	}
}

// WithinScope runs fn with the type parameters of container in scope. The
// scope is left on every exit path.
func (r *DeepCopyTypeRemapper) WithinScope(container tree.Declaration, fn func() error) error {
	frame := make(map[*tree.Symbol]*tree.Symbol)
	for _, tp := range tree.TypeParametersOf(container) {
		frame[tp.Sym] = r.symbols.Remap(tp.Sym)
	}
	r.scopes = append(r.scopes, frame)
	defer func() { r.scopes = r.scopes[:len(r.scopes)-1] }()
	return fn()
}

func (r *DeepCopyTypeRemapper) typeParameter(sym *tree.Symbol) *tree.Symbol {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if out, ok := r.scopes[i][sym]; ok {
			return out
		}
	}
	return r.symbols.Remap(sym)
}

// RemapType returns t with every symbol replaced by its copy.
func (r *DeepCopyTypeRemapper) RemapType(t tree.Type) tree.Type {
	switch x := t.(type) {
	case *tree.ClassType:
		sym := r.symbols.Remap(x.Symbol)
		id := x.ID
		if newID, ok := r.classIDs[sym]; ok {
			id = newID
		}
		out := &tree.ClassType{Symbol: sym, ID: id, Nullable: x.Nullable}
		for _, a := range x.Args {
			out.Args = append(out.Args, r.RemapType(a))
		}
		return out
	case *tree.TypeParameterType:
		sym := r.typeParameter(x.Symbol)
		name := x.Name
		if n, ok := r.names[sym]; ok {
			name = n
		}
		return &tree.TypeParameterType{Symbol: sym, Name: name, Nullable: x.Nullable}
	case *tree.ErrorType:
		return &tree.ErrorType{Reason: x.Reason}
	}
	return t
}

// RemapTypeRef copies ref, remapping the type behind it.
func (r *DeepCopyTypeRemapper) RemapTypeRef(ref tree.TypeRef) tree.TypeRef {
	switch x := ref.(type) {
	case *tree.ResolvedTypeRef:
		return &tree.ResolvedTypeRef{Type: r.RemapType(x.Type), Delegated: r.copyUserType(x.Delegated)}
	case *tree.ImplicitBuiltinTypeRef:
		return &tree.ImplicitBuiltinTypeRef{Type: r.RemapType(x.Type)}
	case *tree.ErrorTypeRef:
		return &tree.ErrorTypeRef{Reason: x.Reason, Delegated: r.copyUserType(x.Delegated)}
	case *tree.UserTypeRef:
		return r.copyUserType(x)
	case *tree.ImplicitTypeRef:
		return &tree.ImplicitTypeRef{Position: x.Position}
	}
	return ref
}

func (r *DeepCopyTypeRemapper) RemapTypeRefs(refs []tree.TypeRef) []tree.TypeRef {
	if refs == nil {
		return nil
	}
	out := make([]tree.TypeRef, len(refs))
	for i, ref := range refs {
		out[i] = r.RemapTypeRef(ref)
	}
	return out
}

func (r *DeepCopyTypeRemapper) copyUserType(u *tree.UserTypeRef) *tree.UserTypeRef {
	if u == nil {
		return nil
	}
	out := &tree.UserTypeRef{Nullable: u.Nullable, Position: u.Position}
	for _, q := range u.Qualifier {
		out.Qualifier = append(out.Qualifier, tree.QualifierPart{Name: q.Name, Args: r.RemapTypeRefs(q.Args)})
	}
	return out
}
