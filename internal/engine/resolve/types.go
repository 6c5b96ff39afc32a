package resolve

import (
	"context"
	"strings"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/builtins"
	"resolvecore/internal/engine/scope"
	"resolvecore/internal/engine/tree"
)

func (s *Session) importScope(f *tree.File) *scope.ImportingScope {
	return scope.NewImportingScope(f, s.module, builtins.Package)
}

// resolveTypeRef resolves ref against tower. Refs that are already resolved
// and pending implicit refs come back unchanged; failures become an
// ErrorTypeRef plus a diagnostic on site.
func (s *Session) resolveTypeRef(ctx context.Context, tower *scope.Tower, ref tree.TypeRef, site tree.Declaration) tree.TypeRef {
	user, ok := ref.(*tree.UserTypeRef)
	if !ok {
		return ref
	}
	t, err := s.resolveUserType(ctx, tower, user, site)
	if err != nil {
		s.report(site, errors.CodeLookupFailure, "cannot resolve type %s: %v", user, err)
		return &tree.ErrorTypeRef{Reason: err.Error(), Delegated: user}
	}
	return &tree.ResolvedTypeRef{Type: t, Delegated: user}
}

func (s *Session) resolveUserType(ctx context.Context, tower *scope.Tower, ref *tree.UserTypeRef, site tree.Declaration) (tree.Type, error) {
	if len(ref.Qualifier) == 0 {
		return nil, errors.New(errors.CodeLookupFailure, "empty type reference")
	}

	decl, err := s.lookupQualified(tower, ref.Qualifier)
	if err != nil {
		return nil, err
	}

	var args []tree.Type
	for _, part := range ref.Qualifier {
		for _, a := range part.Args {
			resolved := s.resolveTypeRef(ctx, tower, a, site)
			t := tree.TypeOf(resolved)
			if t == nil {
				return nil, errors.Newf(errors.CodeLookupFailure, "type argument of %s is not resolved", ref)
			}
			args = append(args, t)
		}
	}
	s.recordDependency(site, decl)

	switch d := decl.(type) {
	case *tree.TypeParameter:
		if len(args) > 0 {
			return nil, errors.Newf(errors.CodeLookupFailure, "type parameter %s takes no type arguments", d.Name)
		}
		return &tree.TypeParameterType{Symbol: d.Sym, Name: d.Name, Nullable: ref.Nullable}, nil
	case *tree.Class:
		if len(args) > 0 && len(args) != len(d.TypeParameters) {
			return nil, errors.Newf(errors.CodeLookupFailure, "%s expects %d type arguments, got %d", d.ID, len(d.TypeParameters), len(args))
		}
		return &tree.ClassType{Symbol: d.Sym, ID: d.ID, Args: args, Nullable: ref.Nullable}, nil
	case *tree.TypeAlias:
		expanded, err := s.expandAlias(ctx, d, args)
		if err != nil {
			return nil, err
		}
		if ref.Nullable {
			expanded = withNullability(expanded)
		}
		return expanded, nil
	}
	return nil, errors.Newf(errors.CodeLookupFailure, "%s is not a type", tree.NameOf(decl))
}

// lookupQualified resolves the classifier named by parts: the first part
// through the tower, the rest as nested classes. When the first part is not
// a classifier, the longest known package prefix is tried instead.
func (s *Session) lookupQualified(tower *scope.Tower, parts []tree.QualifierPart) (tree.Declaration, error) {
	first, err := tower.LookupClassifier(parts[0].Name)
	if err == nil {
		decl := first
		for i := 1; i < len(parts); i++ {
			c, ok := decl.(*tree.Class)
			if !ok {
				return nil, errors.Newf(errors.CodeLookupFailure, "%s has no nested classifiers", tree.NameOf(decl))
			}
			nested, err := scope.NewTower(true, scope.NewNestedClassifierScope(c)).LookupClassifier(parts[i].Name)
			if err != nil {
				return nil, err
			}
			decl = nested
		}
		return decl, nil
	}
	if reason, _ := errors.ContextValue(err, errors.CtxReason); reason == errors.ReasonAmbiguous || len(parts) == 1 {
		return nil, err
	}

	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.Name
	}
	for i := len(names) - 1; i >= 1; i-- {
		pkg := strings.Join(names[:i], ".")
		if !s.module.HasPackage(pkg) {
			continue
		}
		c, classErr := s.module.Class(tree.NewClassID(pkg, names[i:]...))
		if classErr == nil {
			return c, nil
		}
		if reason, _ := errors.ContextValue(classErr, errors.CtxReason); reason == errors.ReasonAmbiguous {
			return nil, classErr
		}
	}
	return nil, err
}

// expandAlias resolves the alias's right-hand side on demand and applies args.
func (s *Session) expandAlias(ctx context.Context, alias *tree.TypeAlias, args []tree.Type) (tree.Type, error) {
	if !tree.IsResolved(alias.Expanded) {
		if err := s.guard.enter(alias, tree.StageDeclarations, phaseAlias); err != nil {
			return nil, errors.Newf(errors.CodeStageViolation, "type alias %s expands to itself", alias.Name)
		}
		tower, err := s.towerFor(ctx, alias, false)
		if err != nil {
			s.guard.exit(alias, tree.StageDeclarations, phaseAlias)
			return nil, err
		}
		tower.Push(scope.NewTypeParameterScope(alias.TypeParameters))
		alias.Expanded = s.resolveTypeRef(ctx, tower, alias.Expanded, alias)
		s.guard.exit(alias, tree.StageDeclarations, phaseAlias)
	}
	t := tree.TypeOf(alias.Expanded)
	if t == nil {
		return nil, errors.Newf(errors.CodeLookupFailure, "type alias %s is not resolved", alias.Name)
	}
	if len(args) == 0 {
		return t, nil
	}
	if len(args) != len(alias.TypeParameters) {
		return nil, errors.Newf(errors.CodeLookupFailure, "type alias %s expects %d type arguments, got %d", alias.Name, len(alias.TypeParameters), len(args))
	}
	subst := make(map[*tree.Symbol]tree.Type, len(args))
	for i, tp := range alias.TypeParameters {
		subst[tp.Sym] = args[i]
	}
	return tree.Substitute(t, subst), nil
}

func withNullability(t tree.Type) tree.Type {
	switch x := t.(type) {
	case *tree.ClassType:
		c := *x
		c.Nullable = true
		return &c
	case *tree.TypeParameterType:
		c := *x
		c.Nullable = true
		return &c
	}
	return t
}

// resolveBounds resolves type parameter bounds; a parameter without bounds
// is bounded by Any?.
func (s *Session) resolveBounds(ctx context.Context, tower *scope.Tower, params []*tree.TypeParameter) {
	for _, tp := range params {
		if tp.Stage() >= tree.StageDeclarations {
			continue
		}
		if len(tp.Bounds) == 0 {
			tp.Bounds = []tree.TypeRef{&tree.ImplicitBuiltinTypeRef{Type: s.builtins.NullableAny()}}
		}
		for i, b := range tp.Bounds {
			tp.Bounds[i] = s.resolveTypeRef(ctx, tower, b, tp)
		}
		s.stamp(tp, tree.StageDeclarations)
	}
}

// towerFor builds the lookup tower seen by the members of d's enclosing
// classes: the file's imports followed by the scopes of each class on the
// ancestor chain, outermost first. body selects member scopes instead of
// classifier-only scopes.
func (s *Session) towerFor(ctx context.Context, d tree.Declaration, body bool) (*scope.Tower, error) {
	file := tree.FileOf(d)
	if file == nil {
		return nil, errors.Newf(errors.CodeLookupFailure, "%s is not attached to a file", describe(d)).
			WithContext(errors.CtxSymbol, describe(d))
	}
	tower := scope.NewTower(true, s.importScope(file))
	for _, c := range enclosingClasses(d) {
		if err := s.ensureClassHeader(ctx, c); err != nil {
			return nil, err
		}
		layers, err := s.classScopes(ctx, c, body)
		if err != nil {
			return nil, err
		}
		tower.Push(layers...)
	}
	return tower, nil
}

// enclosingClasses lists the classes containing d, outermost first.
func enclosingClasses(d tree.Declaration) []*tree.Class {
	var chain []*tree.Class
	for p := d.Parent(); p != nil; p = p.Parent() {
		if c, ok := p.(*tree.Class); ok {
			chain = append([]*tree.Class{c}, chain...)
		}
	}
	return chain
}

// classScopes returns the layers a class contributes, in push order:
// supertype scopes reversed so the most derived is innermost, companion
// scopes, the class's own scope, then its type parameters.
func (s *Session) classScopes(ctx context.Context, c *tree.Class, body bool) ([]scope.Scope, error) {
	supers, err := s.supertypeClosure(ctx, c)
	if err != nil {
		return nil, err
	}
	layerOf := func(k *tree.Class) scope.Scope {
		if body {
			return s.memberScope(k)
		}
		return scope.NewNestedClassifierScope(k)
	}

	var layers []scope.Scope
	for i := len(supers) - 1; i >= 0; i-- {
		layers = append(layers, layerOf(supers[i]))
	}
	for i := len(supers) - 1; i >= 0; i-- {
		if comp := supers[i].CompanionObject(); comp != nil {
			layers = append(layers, layerOf(comp))
		}
	}
	if comp := c.CompanionObject(); comp != nil {
		layers = append(layers, layerOf(comp))
	}
	layers = append(layers, layerOf(c), scope.NewTypeParameterScope(c.TypeParameters))
	return layers, nil
}

func (s *Session) memberScope(c *tree.Class) scope.Scope {
	if !c.ID.Local {
		if ms, err := s.module.ClassScope(c.ID); err == nil && ms.Class() == c {
			return ms
		}
	}
	return scope.NewMemberScope(c)
}

// supertypeClosure returns every transitive supertype class of c, most
// derived first, without duplicates.
func (s *Session) supertypeClosure(ctx context.Context, c *tree.Class) ([]*tree.Class, error) {
	var out []*tree.Class
	seen := map[*tree.Class]bool{c: true}
	var visit func(k *tree.Class) error
	visit = func(k *tree.Class) error {
		if err := s.ensureSupertypes(ctx, k); err != nil {
			return err
		}
		for _, ref := range k.SuperTypes {
			sup := classOf(tree.TypeOf(ref))
			if sup == nil || seen[sup] {
				continue
			}
			seen[sup] = true
			out = append(out, sup)
			if err := visit(sup); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(c); err != nil {
		return nil, err
	}
	return out, nil
}

func classOf(t tree.Type) *tree.Class {
	ct, ok := t.(*tree.ClassType)
	if !ok {
		return nil
	}
	c, _ := ct.Symbol.Owner().(*tree.Class)
	return c
}

// ensureSupertypes makes sure c's supertypes are resolved. Classes are
// resolved one at a time, so reaching into another file never raises that
// file's stage.
func (s *Session) ensureSupertypes(ctx context.Context, c *tree.Class) error {
	if c.Stage() >= tree.StageSuperTypes {
		return nil
	}
	return s.resolveSupertypes(ctx, c)
}

// resolveSupertypes resolves the declared supertypes of c against its file's
// imports and outer classes. A supertype that leads back to c is replaced by
// an error type.
func (s *Session) resolveSupertypes(ctx context.Context, c *tree.Class) error {
	if c.Stage() >= tree.StageSuperTypes {
		return nil
	}
	if err := s.guard.enter(c, tree.StageSuperTypes, phaseSupertypes); err != nil {
		return err
	}
	defer s.guard.exit(c, tree.StageSuperTypes, phaseSupertypes)

	if f := tree.FileOf(c); f != nil {
		s.resolveImports(f)
	}
	tower, err := s.towerFor(ctx, c, false)
	if err != nil {
		return err
	}
	tower.Push(scope.NewTypeParameterScope(c.TypeParameters))

	resolved := make([]tree.TypeRef, 0, len(c.SuperTypes))
	for _, ref := range c.SuperTypes {
		r := s.resolveTypeRef(ctx, tower, ref, c)
		if sup := classOf(tree.TypeOf(r)); sup != nil {
			if err := s.ensureSupertypes(ctx, sup); err != nil {
				if !errors.IsCode(err, errors.CodeStageViolation) {
					return err
				}
				s.report(c, errors.CodeStageViolation, "cyclic supertype %s", sup.ID)
				r = &tree.ErrorTypeRef{Reason: "cyclic supertype " + sup.ID.String(), Delegated: delegatedOf(ref)}
			}
		}
		resolved = append(resolved, r)
	}
	if len(resolved) == 0 && c.Sym != s.builtins.AnyType().Symbol {
		resolved = append(resolved, &tree.ImplicitBuiltinTypeRef{Type: s.builtins.AnyType()})
	}
	c.SuperTypes = resolved
	s.stamp(c, tree.StageSuperTypes)
	return nil
}

func delegatedOf(ref tree.TypeRef) *tree.UserTypeRef {
	switch r := ref.(type) {
	case *tree.UserTypeRef:
		return r
	case *tree.ResolvedTypeRef:
		return r.Delegated
	}
	return nil
}

// ensureClassHeader brings a class header (type parameters and supertypes)
// to DECLARATIONS without touching its members.
func (s *Session) ensureClassHeader(ctx context.Context, c *tree.Class) error {
	if c.Stage() >= tree.StageDeclarations {
		return nil
	}
	if err := s.guard.enter(c, tree.StageDeclarations, phaseHeader); err != nil {
		return err
	}
	defer s.guard.exit(c, tree.StageDeclarations, phaseHeader)

	if err := s.ensureSupertypes(ctx, c); err != nil {
		return err
	}
	tower, err := s.towerFor(ctx, c, false)
	if err != nil {
		return err
	}
	tower.Push(scope.NewTypeParameterScope(c.TypeParameters))
	s.resolveBounds(ctx, tower, c.TypeParameters)
	s.stamp(c, tree.StageDeclarations)
	return nil
}

func splitQualified(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

func joinQualified(names []string) string {
	return strings.Join(names, ".")
}
