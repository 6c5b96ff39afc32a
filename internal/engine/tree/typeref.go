package tree

import "strings"

// TypeRef is a declaration-site reference to a type. The variants separate
// "pending inference" (ImplicitTypeRef) from "absent by design"
// (ImplicitBuiltinTypeRef), which is already resolved.
type TypeRef interface {
	typeRef()
}

// ImplicitTypeRef is a missing annotation whose type is inferred at
// StageImplicitTypes.
type ImplicitTypeRef struct {
	Position Position
}

// ImplicitBuiltinTypeRef stands for a type the language fixes without an
// annotation, such as Unit for a block-bodied function.
type ImplicitBuiltinTypeRef struct {
	Type Type
}

type QualifierPart struct {
	Name string
	Args []TypeRef
}

// UserTypeRef is a syntactic reference as written in source.
type UserTypeRef struct {
	Qualifier []QualifierPart
	Nullable  bool
	Position  Position
}

type ResolvedTypeRef struct {
	Type      Type
	Delegated *UserTypeRef
}

type ErrorTypeRef struct {
	Reason    string
	Delegated *UserTypeRef
}

func (*ImplicitTypeRef) typeRef() {}
func (*ImplicitBuiltinTypeRef) typeRef() {}
func (*UserTypeRef) typeRef() {}
func (*ResolvedTypeRef) typeRef() {}
func (*ErrorTypeRef) typeRef() {}

func (r *UserTypeRef) String() string {
	parts := make([]string, len(r.Qualifier))
	for i, q := range r.Qualifier {
		parts[i] = q.Name
	}
	s := strings.Join(parts, ".")
	if r.Nullable {
		s += "?"
	}
	return s
}

// IsResolved reports whether ref needs no further resolution work.
func IsResolved(ref TypeRef) bool {
	switch ref.(type) {
	case *ResolvedTypeRef, *ImplicitBuiltinTypeRef, *ErrorTypeRef:
		return true
	}
	return false
}

// TypeOf returns the resolved type behind ref, or nil while it is pending.
func TypeOf(ref TypeRef) Type {
	switch r := ref.(type) {
	case *ResolvedTypeRef:
		return r.Type
	case *ImplicitBuiltinTypeRef:
		return r.Type
	case *ErrorTypeRef:
		return &ErrorType{Reason: r.Reason}
	}
	return nil
}

func Resolved(t Type) *ResolvedTypeRef {
	return &ResolvedTypeRef{Type: t}
}
