package resolve

import (
	"context"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"
	"resolvecore/internal/shared/observability"
)

// designatedTarget maps d to the declaration the designated path resolves:
// parameters and body-local declarations resolve through their nearest
// container declared directly in a file or class.
func designatedTarget(d tree.Declaration) tree.Declaration {
	target := d
	for {
		p := target.Parent()
		switch p.(type) {
		case nil, *tree.File:
			return target
		case *tree.Class:
			if _, isTP := target.(*tree.TypeParameter); !isTP {
				return target
			}
		}
		target = p
	}
}

// resolveDesignated resolves d to stage along its ancestor chain only: the
// file's imports, the supertypes and headers of the enclosing classes, then
// the target's own subtree. Siblings and the file's aggregate stage are left
// untouched. It returns the declaration actually resolved, which differs
// from d when a stub tree had to be rebuilt with bodies.
func (s *Session) resolveDesignated(ctx context.Context, d tree.Declaration, stage tree.Stage) (tree.Declaration, error) {
	if !stage.Valid() {
		return d, nil
	}
	if f, ok := d.(*tree.File); ok {
		return f, s.drive(ctx, f, stage)
	}

	file := tree.FileOf(d)
	if !s.owns(file) {
		return nil, errors.Newf(errors.CodeLookupFailure, "%s does not belong to a live tree", describe(d)).
			WithContext(errors.CtxSymbol, describe(d)).
			WithContext(errors.CtxReason, errors.ReasonStale)
	}
	if file.Mode == tree.BuildStub && stage >= tree.StageImplicitTypes {
		path := indexPath(d)
		rebuilt, err := s.rebuild(file.Path)
		if err != nil {
			return nil, err
		}
		relocated, ok := followIndexPath(rebuilt, path)
		if !ok {
			return nil, errors.Newf(errors.CodeLookupFailure, "%s is missing from the rebuilt tree", describe(d)).
				WithContext(errors.CtxPath, file.Path).
				WithContext(errors.CtxReason, errors.ReasonStale)
		}
		d, file = relocated, rebuilt
	}

	if d.Stage() >= stage {
		return d, nil
	}

	target := designatedTarget(d)
	if err := s.guard.enter(target, stage, phaseDesignated); err != nil {
		return nil, err
	}
	defer s.guard.exit(target, stage, phaseDesignated)

	s.resolveImports(file)
	chain := enclosingClasses(target)
	if c, ok := target.(*tree.Class); ok {
		chain = append(chain, c)
	}
	for _, c := range chain {
		if err := s.ensureSupertypes(ctx, c); err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, file.Path)
		}
	}
	if err := s.resolveSubtree(ctx, target, stage); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, file.Path)
	}

	observability.DesignatedResolves.WithLabelValues(stage.String()).Inc()
	s.logger.Debug("resolved designated path", "target", describe(target), "stage", stage.String())
	return d, nil
}

// resolveSubtree brings root and everything declared below it to stage.
func (s *Session) resolveSubtree(ctx context.Context, root tree.Declaration, stage tree.Stage) error {
	if root.Stage() >= stage {
		return nil
	}
	if c, ok := root.(*tree.Class); ok {
		if err := s.ensureSupertypes(ctx, c); err != nil {
			return err
		}
	}
	if stage >= tree.StageDeclarations {
		if err := s.ensureHeader(ctx, root); err != nil {
			return err
		}
		resolveStatus(root)
	}

	var err error
	eachMember(root, func(d tree.Declaration) {
		if err != nil {
			return
		}
		switch {
		case stage >= tree.StageExpressions:
			err = s.resolveBodyOf(ctx, d)
		case stage >= tree.StageImplicitTypes:
			err = s.ensureImplicitType(ctx, d)
		case stage >= tree.StageDeclarations:
			err = s.ensureHeader(ctx, d)
			resolveStatus(d)
		case stage >= tree.StageSuperTypes:
			if c, ok := d.(*tree.Class); ok {
				err = s.ensureSupertypes(ctx, c)
			}
		}
	})
	if err != nil {
		return err
	}
	switch {
	case stage >= tree.StageExpressions:
		err = s.resolveBodyOf(ctx, root)
	case stage >= tree.StageImplicitTypes:
		err = s.ensureImplicitType(ctx, root)
	}
	if err != nil {
		return err
	}
	s.stampTree(root, stage)
	return nil
}

// indexPath records the child positions leading from d's file down to d.
func indexPath(d tree.Declaration) []int {
	var path []int
	for cur := d; cur.Parent() != nil; cur = cur.Parent() {
		for i, child := range tree.Children(cur.Parent()) {
			if child == tree.Node(cur) {
				path = append([]int{i}, path...)
				break
			}
		}
	}
	return path
}

func followIndexPath(root tree.Declaration, path []int) (tree.Declaration, bool) {
	cur := root
	for _, i := range path {
		children := tree.Children(cur)
		if i >= len(children) {
			return nil, false
		}
		next, ok := children[i].(tree.Declaration)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
