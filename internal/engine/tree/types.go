package tree

import "strings"

// Type is a resolved type. Types are immutable once built.
type Type interface {
	String() string
	typeNode()
}

type ClassType struct {
	Symbol   *Symbol
	ID       ClassID
	Args     []Type
	Nullable bool
}

type TypeParameterType struct {
	Symbol   *Symbol
	Name     string
	Nullable bool
}

type ErrorType struct {
	Reason string
}

func (*ClassType) typeNode() {}
func (*TypeParameterType) typeNode() {}
func (*ErrorType) typeNode() {}

func (t *ClassType) String() string {
	var b strings.Builder
	b.WriteString(t.ID.FQName())
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(typeString(a))
		}
		b.WriteByte('>')
	}
	if t.Nullable {
		b.WriteByte('?')
	}
	return b.String()
}

func (t *TypeParameterType) String() string {
	if t.Nullable {
		return t.Name + "?"
	}
	return t.Name
}

func (t *ErrorType) String() string {
	return "<error: " + t.Reason + ">"
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// SameType compares two types structurally by symbol identity.
func SameType(a, b Type) bool {
	switch x := a.(type) {
	case *ClassType:
		y, ok := b.(*ClassType)
		if !ok || x.Symbol != y.Symbol || x.Nullable != y.Nullable || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !SameType(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case *TypeParameterType:
		y, ok := b.(*TypeParameterType)
		return ok && x.Symbol == y.Symbol && x.Nullable == y.Nullable
	case *ErrorType:
		_, ok := b.(*ErrorType)
		return ok
	}
	return a == nil && b == nil
}

// Substitute replaces type parameter references according to subst.
func Substitute(t Type, subst map[*Symbol]Type) Type {
	if len(subst) == 0 {
		return t
	}
	switch x := t.(type) {
	case *TypeParameterType:
		if r, ok := subst[x.Symbol]; ok {
			return r
		}
	case *ClassType:
		if len(x.Args) == 0 {
			return x
		}
		args := make([]Type, len(x.Args))
		for i, a := range x.Args {
			args[i] = Substitute(a, subst)
		}
		return &ClassType{Symbol: x.Symbol, ID: x.ID, Args: args, Nullable: x.Nullable}
	}
	return t
}
