package resolve

import (
	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"
)

// Guard phases separate independent activities on the same declaration.
const (
	phaseFile       = "file"
	phaseSupertypes = "supertypes"
	phaseHeader     = "header"
	phaseAlias      = "alias"
	phaseImplicit   = "implicit"
	phaseDesignated = "designated"
)

type guardKey struct {
	node  tree.Declaration
	stage tree.Stage
	phase string
}

// stageGuard tracks the declarations currently being resolved. Entering a
// declaration that is already in progress for the same stage is a cycle.
type stageGuard struct {
	active map[guardKey]bool
}

func newStageGuard() *stageGuard {
	return &stageGuard{active: make(map[guardKey]bool)}
}

func (g *stageGuard) enter(d tree.Declaration, stage tree.Stage, phase string) error {
	key := guardKey{node: d, stage: stage, phase: phase}
	if g.active[key] {
		return errors.Newf(errors.CodeStageViolation, "%s is already being resolved to %s", describe(d), stage).
			WithContext(errors.CtxSymbol, describe(d)).
			WithContext(errors.CtxStage, stage.String()).
			WithContext(errors.CtxOperation, phase)
	}
	g.active[key] = true
	return nil
}

func (g *stageGuard) exit(d tree.Declaration, stage tree.Stage, phase string) {
	delete(g.active, guardKey{node: d, stage: stage, phase: phase})
}

func (g *stageGuard) inProgress(d tree.Declaration, stage tree.Stage, phase string) bool {
	return g.active[guardKey{node: d, stage: stage, phase: phase}]
}

func (g *stageGuard) depth() int {
	return len(g.active)
}

func describe(d tree.Declaration) string {
	switch x := d.(type) {
	case *tree.File:
		return x.Path
	case *tree.Class:
		return x.ID.String()
	case nil:
		return "<nil>"
	}
	if c := tree.ContainingClass(d); c != nil {
		return c.ID.String() + "." + tree.NameOf(d)
	}
	return tree.NameOf(d)
}
