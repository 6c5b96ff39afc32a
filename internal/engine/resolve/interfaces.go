package resolve

import (
	"resolvecore/internal/engine/tree"
)

// Builder turns raw source into an initial declaration tree. Symbols for the
// new declarations come from arena.
type Builder interface {
	BuildFile(src tree.Source, mode tree.BuildMode, arena *tree.SymbolArena) (*tree.File, error)
}

// SourceSet lists the source files of the session's module.
type SourceSet interface {
	Paths() []string
	Source(path string) (tree.Source, error)
}

// PositionMapper maps declarations to source positions for diagnostics.
type PositionMapper interface {
	Position(d tree.Declaration) (tree.Position, bool)
}

type declPositions struct{}

func (declPositions) Position(d tree.Declaration) (tree.Position, bool) {
	if d == nil {
		return tree.Position{}, false
	}
	pos := d.Base().Position
	return pos, pos != tree.Position{}
}
