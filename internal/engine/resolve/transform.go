package resolve

import (
	"context"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/scope"
	"resolvecore/internal/engine/tree"
)

type importResolveTransformer struct{ s *Session }

func (t *importResolveTransformer) Name() string      { return "imports" }
func (t *importResolveTransformer) Stage() tree.Stage { return tree.StageSuperTypes }

func (t *importResolveTransformer) Transform(_ context.Context, f *tree.File) (*tree.File, error) {
	t.s.resolveImports(f)
	return f, nil
}

type supertypeResolveTransformer struct{ s *Session }

func (t *supertypeResolveTransformer) Name() string      { return "supertypes" }
func (t *supertypeResolveTransformer) Stage() tree.Stage { return tree.StageSuperTypes }

func (t *supertypeResolveTransformer) Transform(ctx context.Context, f *tree.File) (*tree.File, error) {
	var err error
	eachMember(f, func(d tree.Declaration) {
		if c, ok := d.(*tree.Class); ok && err == nil {
			err = t.s.ensureSupertypes(ctx, c)
		}
	})
	if err != nil {
		return nil, err
	}
	t.s.stampTree(f, tree.StageSuperTypes)
	return f, nil
}

type typeResolveTransformer struct{ s *Session }

func (t *typeResolveTransformer) Name() string      { return "types" }
func (t *typeResolveTransformer) Stage() tree.Stage { return tree.StageDeclarations }

func (t *typeResolveTransformer) Transform(ctx context.Context, f *tree.File) (*tree.File, error) {
	tower := scope.NewTower(true, t.s.importScope(f))
	if err := t.s.resolveHeaders(ctx, tower, f.Decls); err != nil {
		return nil, err
	}
	return f, nil
}

type statusResolveTransformer struct{ s *Session }

func (t *statusResolveTransformer) Name() string      { return "status" }
func (t *statusResolveTransformer) Stage() tree.Stage { return tree.StageDeclarations }

func (t *statusResolveTransformer) Transform(_ context.Context, f *tree.File) (*tree.File, error) {
	eachMember(f, resolveStatus)
	t.s.stampTree(f, tree.StageDeclarations)
	return f, nil
}

type implicitTypeTransformer struct{ s *Session }

func (t *implicitTypeTransformer) Name() string      { return "implicit-types" }
func (t *implicitTypeTransformer) Stage() tree.Stage { return tree.StageImplicitTypes }

func (t *implicitTypeTransformer) Transform(ctx context.Context, f *tree.File) (*tree.File, error) {
	var err error
	eachMember(f, func(d tree.Declaration) {
		if err == nil {
			err = t.s.ensureImplicitType(ctx, d)
		}
	})
	if err != nil {
		return nil, err
	}
	t.s.stampTree(f, tree.StageImplicitTypes)
	return f, nil
}

type bodyResolveTransformer struct{ s *Session }

func (t *bodyResolveTransformer) Name() string      { return "bodies" }
func (t *bodyResolveTransformer) Stage() tree.Stage { return tree.StageExpressions }

func (t *bodyResolveTransformer) Transform(ctx context.Context, f *tree.File) (*tree.File, error) {
	var err error
	eachMember(f, func(d tree.Declaration) {
		if err == nil {
			err = t.s.resolveBodyOf(ctx, d)
		}
	})
	if err != nil {
		return nil, err
	}
	t.s.stampTree(f, tree.StageExpressions)
	return f, nil
}

// resolveImports classifies every unresolved import of f as a package, class
// or callable import. Imports matching nothing are marked invalid and
// reported once.
func (s *Session) resolveImports(f *tree.File) {
	for _, imp := range f.Imports {
		if imp.Kind != tree.ImportUnresolved {
			continue
		}
		names := splitQualified(imp.Path)
		if imp.Star && s.module.HasPackage(imp.Path) && len(s.module.TopLevel(imp.Path)) > 0 {
			imp.Kind, imp.Package = tree.ImportPackage, imp.Path
			continue
		}
		if pkg, rel, c := s.classByPrefix(names); c != nil {
			imp.Kind, imp.Package, imp.Relative = tree.ImportClass, pkg, rel
			s.recordDependency(f, c)
			continue
		}
		if imp.Star && s.module.HasPackage(imp.Path) {
			imp.Kind, imp.Package = tree.ImportPackage, imp.Path
			continue
		}
		if !imp.Star && len(names) > 1 {
			pkg := joinQualified(names[:len(names)-1])
			name := names[len(names)-1]
			for _, d := range s.module.TopLevel(pkg) {
				if d.Base().Name == name {
					if _, isClass := d.(*tree.Class); !isClass {
						imp.Kind, imp.Package, imp.Relative = tree.ImportCallable, pkg, name
						s.recordDependency(f, d)
						break
					}
				}
			}
			if imp.Kind == tree.ImportCallable {
				continue
			}
		}
		imp.Kind = tree.ImportInvalid
		s.report(f, errors.CodeLookupFailure, "unresolved import %s", imp.Path)
	}
}

// classByPrefix finds the class named by names, trying the longest package
// prefix first.
func (s *Session) classByPrefix(names []string) (string, string, *tree.Class) {
	for i := len(names) - 1; i >= 0; i-- {
		pkg := joinQualified(names[:i])
		id := tree.NewClassID(pkg, names[i:]...)
		if classes := s.module.Classes(id); len(classes) == 1 {
			return pkg, id.Relative, classes[0]
		}
	}
	return "", "", nil
}

// resolveHeaders resolves the signatures of decls and, for classes, of their
// members. Each declaration's layers are dropped before its next sibling.
func (s *Session) resolveHeaders(ctx context.Context, tower *scope.Tower, decls []tree.Declaration) error {
	for _, d := range decls {
		err := tower.WithScopeCleanup(func() error {
			c, ok := d.(*tree.Class)
			if !ok {
				return s.resolveHeader(ctx, tower, d)
			}
			if err := s.ensureClassHeader(ctx, c); err != nil {
				return err
			}
			layers, err := s.classScopes(ctx, c, false)
			if err != nil {
				return err
			}
			tower.Push(layers...)
			return s.resolveHeaders(ctx, tower, c.Members)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveHeader resolves the type references in the signature of a
// non-class declaration and stamps it DECLARATIONS.
func (s *Session) resolveHeader(ctx context.Context, tower *scope.Tower, d tree.Declaration) error {
	if d.Stage() >= tree.StageDeclarations {
		return nil
	}
	err := tower.WithScopeCleanup(func() error {
		params := tree.TypeParametersOf(d)
		tower.Push(scope.NewTypeParameterScope(params))
		s.resolveBounds(ctx, tower, params)

		switch x := d.(type) {
		case *tree.Function:
			if x.Receiver != nil {
				x.Receiver = s.resolveTypeRef(ctx, tower, x.Receiver, x)
			}
			s.resolveParams(ctx, tower, x.Params)
			if x.ReturnType == nil {
				x.ReturnType = &tree.ImplicitTypeRef{Position: x.Position}
			}
			x.ReturnType = s.resolveTypeRef(ctx, tower, x.ReturnType, x)
		case *tree.Constructor:
			s.resolveParams(ctx, tower, x.Params)
			if c := tree.ContainingClass(x); c != nil && !tree.IsResolved(x.ReturnType) {
				x.ReturnType = &tree.ImplicitBuiltinTypeRef{Type: c.DefaultType()}
			}
		case *tree.Property:
			x.Type = s.resolveValueType(ctx, tower, x.Type, x)
		case *tree.Field:
			x.Type = s.resolveValueType(ctx, tower, x.Type, x)
		case *tree.Variable:
			x.Type = s.resolveValueType(ctx, tower, x.Type, x)
		case *tree.ValueParameter:
			s.resolveParams(ctx, tower, []*tree.ValueParameter{x})
		case *tree.TypeAlias:
			if _, err := s.expandAlias(ctx, x, nil); err != nil {
				s.report(x, errors.CodeLookupFailure, "cannot expand type alias %s: %v", x.Name, err)
				x.Expanded = &tree.ErrorTypeRef{Reason: err.Error(), Delegated: delegatedOf(x.Expanded)}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.stamp(d, tree.StageDeclarations)
	return nil
}

func (s *Session) resolveValueType(ctx context.Context, tower *scope.Tower, ref tree.TypeRef, site tree.Declaration) tree.TypeRef {
	if ref == nil {
		return &tree.ImplicitTypeRef{Position: site.Base().Position}
	}
	return s.resolveTypeRef(ctx, tower, ref, site)
}

// resolveParams resolves parameter types. A vararg parameter's type becomes
// an array of its declared element type.
func (s *Session) resolveParams(ctx context.Context, tower *scope.Tower, params []*tree.ValueParameter) {
	for _, p := range params {
		if p.Stage() >= tree.StageDeclarations {
			continue
		}
		declared := p.Type
		p.Type = s.resolveValueType(ctx, tower, p.Type, p)
		if p.Vararg && p.ElementType == nil {
			p.ElementType = p.Type
			if elem := tree.TypeOf(p.Type); elem != nil {
				p.Type = &tree.ResolvedTypeRef{Type: s.builtins.ArrayOf(elem), Delegated: delegatedOf(declared)}
			}
		}
		s.stamp(p, tree.StageDeclarations)
	}
}

// ensureHeader resolves d's signature on its own when the file pass has not
// reached it yet.
func (s *Session) ensureHeader(ctx context.Context, d tree.Declaration) error {
	if d.Stage() >= tree.StageDeclarations {
		return nil
	}
	switch x := d.(type) {
	case *tree.Class:
		return s.ensureClassHeader(ctx, x)
	case *tree.ValueParameter, *tree.TypeParameter:
		if p := d.Parent(); p != nil {
			if _, isFile := p.(*tree.File); !isFile {
				return s.ensureHeader(ctx, p)
			}
		}
	case *tree.File:
		return nil
	}
	if f := tree.FileOf(d); f != nil {
		s.resolveImports(f)
	}
	tower, err := s.towerFor(ctx, d, false)
	if err != nil {
		return err
	}
	if err := s.resolveHeader(ctx, tower, d); err != nil {
		return err
	}
	resolveStatus(d)
	return nil
}

// resolveStatus fills in the visibility and modality left unspecified in
// source.
func resolveStatus(d tree.Declaration) {
	var st *tree.Status
	hasBody := false
	switch x := d.(type) {
	case *tree.Class:
		st = &x.Status
		if st.Modality == tree.ModalityUnknown {
			if x.Kind == tree.ClassKindInterface {
				st.Modality = tree.ModalityAbstract
			} else {
				st.Modality = tree.ModalityFinal
			}
		}
	case *tree.Function:
		st, hasBody = &x.Status, x.Body != nil || inStubFile(x)
	case *tree.Property:
		st, hasBody = &x.Status, x.Initializer != nil || !inInterface(x) || inStubFile(x)
	case *tree.Constructor:
		st, hasBody = &x.Status, true
	case *tree.TypeAlias:
		st, hasBody = &x.Status, true
	default:
		return
	}

	if st.Visibility == tree.VisibilityUnknown {
		st.Visibility = tree.VisibilityPublic
		if isLocal(d) {
			st.Visibility = tree.VisibilityLocal
		}
	}
	if st.Modality == tree.ModalityUnknown {
		owner, _ := d.Parent().(*tree.Class)
		switch {
		case owner != nil && owner.Kind == tree.ClassKindInterface && hasBody:
			st.Modality = tree.ModalityOpen
		case owner != nil && !hasBody:
			st.Modality = tree.ModalityAbstract
		default:
			st.Modality = tree.ModalityFinal
		}
	}
	for _, a := range d.Base().Annotations {
		if a.Name == "override" {
			st.Override = true
		}
	}
}

func inInterface(d tree.Declaration) bool {
	c, ok := d.Parent().(*tree.Class)
	return ok && c.Kind == tree.ClassKindInterface
}

func inStubFile(d tree.Declaration) bool {
	f := tree.FileOf(d)
	return f != nil && f.Mode == tree.BuildStub
}

// isLocal reports whether d is declared inside a body or signature rather
// than directly in a file or class.
func isLocal(d tree.Declaration) bool {
	if c, ok := d.(*tree.Class); ok && c.ID.Local {
		return true
	}
	switch d.Parent().(type) {
	case *tree.File, *tree.Class, nil:
		return false
	}
	return true
}
