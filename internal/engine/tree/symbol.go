package tree

import "fmt"

type SymbolKind int

const (
	SymbolFile SymbolKind = iota
	SymbolClass
	SymbolFunction
	SymbolConstructor
	SymbolProperty
	SymbolField
	SymbolTypeAlias
	SymbolValueParameter
	SymbolTypeParameter
	SymbolVariable
	SymbolEnumEntry
	SymbolAnonymousInitializer
)

var symbolKindNames = [...]string{
	SymbolFile:                 "file",
	SymbolClass:                "class",
	SymbolFunction:             "function",
	SymbolConstructor:          "constructor",
	SymbolProperty:             "property",
	SymbolField:                "field",
	SymbolTypeAlias:            "typealias",
	SymbolValueParameter:       "value-parameter",
	SymbolTypeParameter:        "type-parameter",
	SymbolVariable:             "variable",
	SymbolEnumEntry:            "enum-entry",
	SymbolAnonymousInitializer: "anonymous-initializer",
}

func (k SymbolKind) String() string {
	if k < 0 || int(k) >= len(symbolKindNames) {
		return fmt.Sprintf("SymbolKind(%d)", int(k))
	}
	return symbolKindNames[k]
}

type SymbolID uint64

// Symbol is the only handle expressions and types use to reach a declaration.
// It is bound to exactly one owner.
type Symbol struct {
	ID    SymbolID
	Kind  SymbolKind
	owner Declaration
}

func (s *Symbol) Owner() Declaration {
	if s == nil {
		return nil
	}
	return s.owner
}

func (s *Symbol) IsBound() bool {
	return s != nil && s.owner != nil
}

// Bind attaches the symbol to its owner. Binding the same owner twice is a
// no-op; binding a different owner fails.
func (s *Symbol) Bind(owner Declaration) error {
	if s.owner != nil && s.owner != owner {
		return fmt.Errorf("symbol %s is already bound to %s", s, NameOf(s.owner))
	}
	s.owner = owner
	return nil
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", s.Kind, s.ID)
}

// SymbolArena mints symbols for one session. IDs are never reused.
type SymbolArena struct {
	next SymbolID
}

func NewSymbolArena() *SymbolArena {
	return &SymbolArena{}
}

func (a *SymbolArena) New(kind SymbolKind) *Symbol {
	a.next++
	return &Symbol{ID: a.next, Kind: kind}
}

func (a *SymbolArena) Len() int {
	return int(a.next)
}
