package irutil

import (
	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"
)

// RemapperState tracks the progress of one deep copy. States only move
// forward.
type RemapperState int

const (
	NotStarted RemapperState = iota
	SymbolsDeclared
	TypesRemapped
	TreeCopied
)

var stateNames = [...]string{"NOT_STARTED", "SYMBOLS_DECLARED", "TYPES_REMAPPED", "TREE_COPIED"}

func (s RemapperState) String() string {
	if s < NotStarted || s > TreeCopied {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// DeepCopySymbolRemapper maps the symbols declared in a subtree to fresh
// ones. Symbols declared outside the subtree map to themselves.
type DeepCopySymbolRemapper struct {
	state   RemapperState
	arena   *tree.SymbolArena
	symbols map[*tree.Symbol]*tree.Symbol
	loops   map[tree.Loop]tree.Loop
}

func NewDeepCopySymbolRemapper(arena *tree.SymbolArena) *DeepCopySymbolRemapper {
	if arena == nil {
		arena = tree.NewSymbolArena()
	}
	return &DeepCopySymbolRemapper{
		arena:   arena,
		symbols: make(map[*tree.Symbol]*tree.Symbol),
		loops:   make(map[tree.Loop]tree.Loop),
	}
}

func (m *DeepCopySymbolRemapper) State() RemapperState { return m.state }

func (m *DeepCopySymbolRemapper) advance(from, to RemapperState) error {
	if m.state != from {
		return errors.Newf(errors.CodeInternal, "symbol remapper cannot move to %s from %s", to, m.state).
			WithContext(errors.CtxOperation, "deep-copy")
	}
	m.state = to
	return nil
}

// Declare mints a fresh symbol for every declaration below root, root
// included. It must run before any reference is remapped.
func (m *DeepCopySymbolRemapper) Declare(root tree.Node) error {
	if err := m.advance(NotStarted, SymbolsDeclared); err != nil {
		return err
	}
	tree.Inspect(root, func(n tree.Node) bool {
		d, ok := n.(tree.Declaration)
		if !ok || d.Symbol() == nil {
			return true
		}
		if _, seen := m.symbols[d.Symbol()]; !seen {
			m.symbols[d.Symbol()] = m.arena.New(d.Symbol().Kind)
		}
		return true
	})
	return nil
}

// Declared reports whether sym belongs to the copied subtree.
func (m *DeepCopySymbolRemapper) Declared(sym *tree.Symbol) bool {
	_, ok := m.symbols[sym]
	return ok
}

// Remap returns the copy of sym, or sym itself for external symbols.
func (m *DeepCopySymbolRemapper) Remap(sym *tree.Symbol) *tree.Symbol {
	if sym == nil {
		return nil
	}
	if out, ok := m.symbols[sym]; ok {
		return out
	}
	return sym
}

// RemapRef remaps a bound reference. An unbound reference cannot be copied.
func (m *DeepCopySymbolRemapper) RemapRef(ref tree.Ref) (tree.Ref, error) {
	if !ref.Bound() {
		return ref, errors.Newf(errors.CodeUnsupportedElement, "reference %s is not bound to a symbol", ref.Name).
			WithContext(errors.CtxSymbol, ref.Name)
	}
	return tree.Ref{Name: ref.Name, Symbol: m.Remap(ref.Symbol)}, nil
}

// Symbols returns the old to new symbol mapping.
func (m *DeepCopySymbolRemapper) Symbols() map[*tree.Symbol]*tree.Symbol {
	out := make(map[*tree.Symbol]*tree.Symbol, len(m.symbols))
	for k, v := range m.symbols {
		out[k] = v
	}
	return out
}

func (m *DeepCopySymbolRemapper) registerLoop(old, copied tree.Loop) {
	m.loops[old] = copied
}

// loop returns the copy of a jump's target loop.
func (m *DeepCopySymbolRemapper) loop(old tree.Loop) (tree.Loop, error) {
	if old != nil {
		if copied, ok := m.loops[old]; ok {
			return copied, nil
		}
	}
	return nil, errors.New(errors.CodeDanglingLoopTarget, "jump targets a loop outside the copied tree")
}
