package resolve

import (
	"context"
	"strings"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/scope"
	"resolvecore/internal/engine/tree"
)

// pendingType returns the type reference of d still awaiting inference.
func pendingType(d tree.Declaration) (tree.TypeRef, bool) {
	var ref tree.TypeRef
	switch x := d.(type) {
	case *tree.Function:
		ref = x.ReturnType
	case *tree.Property:
		ref = x.Type
	case *tree.Field:
		ref = x.Type
	case *tree.Variable:
		ref = x.Type
	default:
		return nil, false
	}
	_, pending := ref.(*tree.ImplicitTypeRef)
	return ref, pending
}

// ensureImplicitType infers d's type from its body when d has no annotated
// type. Re-entering the same declaration fails with STAGE_VIOLATION.
func (s *Session) ensureImplicitType(ctx context.Context, d tree.Declaration) error {
	if err := s.ensureHeader(ctx, d); err != nil {
		return err
	}
	if _, pending := pendingType(d); !pending {
		return nil
	}
	return s.resolveBodyOf(ctx, d)
}

// resolveBodyOf resolves the body of a non-local declaration, infers its
// implicit type and stamps it EXPRESSIONS. Classes and files only get their
// headers ensured; their members are resolved separately.
func (s *Session) resolveBodyOf(ctx context.Context, d tree.Declaration) error {
	if d.Stage() >= tree.StageExpressions {
		return nil
	}
	switch d.(type) {
	case *tree.File, *tree.ValueParameter, *tree.TypeParameter:
		return nil
	case *tree.Class:
		return s.ensureHeader(ctx, d)
	}
	if err := s.ensureHeader(ctx, d); err != nil {
		return err
	}

	if err := s.guard.enter(d, tree.StageImplicitTypes, phaseImplicit); err != nil {
		return err
	}
	defer s.guard.exit(d, tree.StageImplicitTypes, phaseImplicit)

	tower, err := s.towerFor(ctx, d, true)
	if err != nil {
		return err
	}
	tower.Push(scope.NewTypeParameterScope(tree.TypeParametersOf(d)))

	r := &bodyResolver{ctx: ctx, s: s, tower: tower, site: d}
	r.declaration(d)
	if r.err != nil {
		return r.err
	}
	s.stampTree(d, tree.StageExpressions)
	return nil
}

type frame struct {
	owner   tree.Declaration
	returns []tree.Type
}

// bodyResolver binds references in one declaration's body. The tower grows
// with local scopes while walking and is cut back on the way out.
type bodyResolver struct {
	ctx    context.Context
	s      *Session
	tower  *scope.Tower
	site   tree.Declaration
	frames []*frame
	loops  []tree.Loop
	err    error
}

func (r *bodyResolver) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *bodyResolver) report(format string, args ...interface{}) {
	r.s.report(r.site, errors.CodeLookupFailure, format, args...)
}

func (r *bodyResolver) declaration(d tree.Declaration) {
	switch x := d.(type) {
	case *tree.Function:
		r.function(x)
	case *tree.Constructor:
		r.withFrame(x, x.Params, func() {
			if x.Body != nil {
				r.expr(x.Body)
			}
		})
	case *tree.AnonymousInitializer:
		r.withFrame(x, nil, func() {
			if x.Body != nil {
				r.expr(x.Body)
			}
		})
	case *tree.Property:
		x.Initializer = r.optional(x.Initializer)
		x.Type = r.inferValue(x, x.Type, x.Initializer)
	case *tree.Field:
		x.Initializer = r.optional(x.Initializer)
		x.Type = r.inferValue(x, x.Type, x.Initializer)
	case *tree.EnumEntry:
		for i, a := range x.Args {
			x.Args[i] = r.expr(a)
		}
	}
}

func (r *bodyResolver) function(fn *tree.Function) {
	fr := r.withFrame(fn, fn.Params, func() {
		if fn.Body != nil {
			r.expr(fn.Body)
		}
	})
	if _, pending := fn.ReturnType.(*tree.ImplicitTypeRef); !pending {
		return
	}
	switch {
	case fn.Body == nil && inStubFile(fn):
		r.report("body of %s is not available in a stub build", fn.Name)
		fn.ReturnType = &tree.ErrorTypeRef{Reason: "body not built"}
	case len(fr.returns) == 0:
		fn.ReturnType = &tree.ImplicitBuiltinTypeRef{Type: r.s.builtins.UnitType()}
	default:
		fn.ReturnType = tree.Resolved(r.commonType(fr.returns...))
	}
}

// withFrame resolves parameter defaults and runs body with the parameters
// in scope and a return frame for owner.
func (r *bodyResolver) withFrame(owner tree.Declaration, params []*tree.ValueParameter, body func()) *frame {
	fr := &frame{owner: owner}
	r.frames = append(r.frames, fr)
	defer func() { r.frames = r.frames[:len(r.frames)-1] }()

	_ = r.tower.WithScopeCleanup(func() error {
		locals := scope.NewLocalScope()
		r.tower.Push(locals)
		for _, p := range params {
			p.Default = r.optional(p.Default)
			locals.Add(p)
			r.s.stamp(p, tree.StageExpressions)
		}
		body()
		return nil
	})
	return fr
}

func (r *bodyResolver) inferValue(d tree.Declaration, ref tree.TypeRef, init tree.Expr) tree.TypeRef {
	if _, pending := ref.(*tree.ImplicitTypeRef); !pending {
		return ref
	}
	if init == nil {
		if inStubFile(d) {
			r.report("initializer of %s is not available in a stub build", tree.NameOf(d))
		} else {
			r.report("cannot infer the type of %s without an initializer", tree.NameOf(d))
		}
		return &tree.ErrorTypeRef{Reason: "no initializer"}
	}
	return tree.Resolved(r.typeOf(init))
}

func (r *bodyResolver) optional(e tree.Expr) tree.Expr {
	if e == nil {
		return nil
	}
	return r.expr(e)
}

func (r *bodyResolver) typeOf(e tree.Expr) tree.Type {
	if e == nil {
		return r.s.builtins.UnitType()
	}
	if t := tree.TypeOf(e.Info().Type); t != nil {
		return t
	}
	return r.s.builtins.UnitType()
}

func (r *bodyResolver) setType(e tree.Expr, t tree.Type) {
	e.Info().Type = tree.Resolved(t)
}

// commonType is the shared type of ts, or Any when they differ.
func (r *bodyResolver) commonType(ts ...tree.Type) tree.Type {
	var out tree.Type
	for _, t := range ts {
		if ct, ok := t.(*tree.ClassType); ok && ct.Symbol == r.s.builtins.NothingType().Symbol && !ct.Nullable {
			continue
		}
		if out == nil {
			out = t
			continue
		}
		if !tree.SameType(out, t) {
			return r.s.builtins.AnyType()
		}
	}
	if out == nil {
		if len(ts) > 0 {
			return ts[0]
		}
		return r.s.builtins.UnitType()
	}
	return out
}

func (r *bodyResolver) errorExpr(e tree.Expr, reason string) *tree.ErrorExpr {
	out := &tree.ErrorExpr{Reason: reason}
	out.Position = e.Info().Position
	out.Type = &tree.ErrorTypeRef{Reason: reason}
	return out
}

// expr resolves e and returns the node that replaces it in the tree.
func (r *bodyResolver) expr(e tree.Expr) tree.Expr {
	b := r.s.builtins
	switch x := e.(type) {
	case *tree.Const:
		r.setType(x, b.ConstType(x.Kind))
	case *tree.GetValue:
		d, err := r.tower.LookupCallable(x.Name, isValue)
		if err != nil {
			if obj := r.objectNamed(x.Name); obj != nil {
				out := &tree.GetObjectValue{ExprBase: x.ExprBase, Ref: tree.Ref{Name: x.Name, Symbol: obj.Sym}}
				r.setType(out, obj.DefaultType())
				return out
			}
			r.report("unresolved reference %s: %v", x.Name, err)
			return r.errorExpr(x, "unresolved reference "+x.Name)
		}
		x.Symbol = d.Symbol()
		r.setType(x, r.declaredType(d))
	case *tree.SetVariable:
		x.Value = r.expr(x.Value)
		d, err := r.tower.LookupCallable(x.Name, isValue)
		if err != nil {
			r.report("unresolved assignment target %s: %v", x.Name, err)
			return r.errorExpr(x, "unresolved reference "+x.Name)
		}
		x.Symbol = d.Symbol()
		r.setType(x, b.UnitType())
	case *tree.Call:
		return r.call(x)
	case *tree.ConstructorCall:
		for i, a := range x.Args {
			x.Args[i] = r.expr(a)
		}
		return r.constructorCall(x, x.Name, x.TypeArgs, x.Args)
	case *tree.DelegatingConstructorCall:
		for i, a := range x.Args {
			x.Args[i] = r.expr(a)
		}
		return r.delegatingCall(x)
	case *tree.GetField:
		return r.fieldAccess(x, &x.Ref, x.Receiver, func(recv tree.Expr) { x.Receiver = recv }, false)
	case *tree.SetField:
		x.Value = r.expr(x.Value)
		return r.fieldAccess(x, &x.Ref, x.Receiver, func(recv tree.Expr) { x.Receiver = recv }, true)
	case *tree.FunctionReference:
		d, err := r.tower.LookupCallable(x.Name, isFunction)
		if err != nil {
			r.report("unresolved function reference %s: %v", x.Name, err)
			return r.errorExpr(x, "unresolved reference "+x.Name)
		}
		x.Symbol = d.Symbol()
		r.setType(x, b.AnyType())
	case *tree.PropertyReference:
		d, err := r.tower.LookupCallable(x.Name, isValue)
		if err != nil {
			r.report("unresolved property reference %s: %v", x.Name, err)
			return r.errorExpr(x, "unresolved reference "+x.Name)
		}
		x.Symbol = d.Symbol()
		r.setType(x, b.AnyType())
	case *tree.ClassReference:
		decl, err := r.s.lookupQualified(r.tower, qualifierParts(x.Name))
		c, ok := decl.(*tree.Class)
		if err != nil || !ok {
			r.report("unresolved class reference %s", x.Name)
			return r.errorExpr(x, "unresolved class "+x.Name)
		}
		x.Symbol = c.Sym
		r.s.recordDependency(r.site, c)
		r.setType(x, b.AnyType())
	case *tree.GetEnumValue:
		return r.enumValue(x)
	case *tree.GetObjectValue:
		obj := r.objectNamed(x.Name)
		if obj == nil {
			r.report("unresolved object %s", x.Name)
			return r.errorExpr(x, "unresolved object "+x.Name)
		}
		x.Symbol = obj.Sym
		r.setType(x, obj.DefaultType())
	case *tree.Block:
		r.block(x)
	case *tree.DeclStmt:
		r.local(x.Decl)
		r.setType(x, b.UnitType())
	case *tree.Return:
		r.ret(x)
	case *tree.WhileLoop:
		r.loop(x)
	case *tree.DoWhileLoop:
		r.loop(x)
	case *tree.Break:
		x.Loop = r.jumpTarget(x.Loop, x.Label, "break")
		r.setType(x, b.NothingType())
	case *tree.Continue:
		x.Loop = r.jumpTarget(x.Loop, x.Label, "continue")
		r.setType(x, b.NothingType())
	case *tree.When:
		x.Subject = r.optional(x.Subject)
		var results []tree.Type
		exhaustive := false
		for _, br := range x.Branches {
			if br.Condition == nil {
				exhaustive = true
			} else {
				br.Condition = r.expr(br.Condition)
			}
			br.Result = r.optional(br.Result)
			results = append(results, r.typeOf(br.Result))
		}
		if exhaustive {
			r.setType(x, r.commonType(results...))
		} else {
			r.setType(x, b.UnitType())
		}
	case *tree.TypeOperator:
		x.Arg = r.expr(x.Arg)
		x.Operand = r.s.resolveTypeRef(r.ctx, r.tower, x.Operand, r.site)
		operand := tree.TypeOf(x.Operand)
		switch x.Op {
		case tree.TypeOpCast:
			r.setType(x, operand)
		case tree.TypeOpSafeCast:
			r.setType(x, withNullability(operand))
		default:
			r.setType(x, b.BooleanType())
		}
	case *tree.StringConcat:
		for i, a := range x.Args {
			x.Args[i] = r.expr(a)
		}
		r.setType(x, b.StringType())
	case *tree.Vararg:
		var elems []tree.Type
		for i, el := range x.Elements {
			x.Elements[i] = r.expr(el)
			t := r.typeOf(x.Elements[i])
			if _, spread := x.Elements[i].(*tree.SpreadElement); spread {
				if ct, ok := t.(*tree.ClassType); ok && ct.Symbol == b.Type("Array").Symbol && len(ct.Args) == 1 {
					t = ct.Args[0]
				}
			}
			elems = append(elems, t)
		}
		elem := tree.Type(b.AnyType())
		if len(elems) > 0 {
			elem = r.commonType(elems...)
		}
		r.setType(x, b.ArrayOf(elem))
	case *tree.SpreadElement:
		x.Value = r.expr(x.Value)
		r.setType(x, r.typeOf(x.Value))
	case *tree.Throw:
		x.Value = r.expr(x.Value)
		r.setType(x, b.NothingType())
	case *tree.Try:
		x.Body = r.expr(x.Body)
		results := []tree.Type{r.typeOf(x.Body)}
		for _, c := range x.Catches {
			_ = r.tower.WithScopeCleanup(func() error {
				if c.Param != nil {
					r.local(c.Param)
				}
				c.Result = r.expr(c.Result)
				return nil
			})
			results = append(results, r.typeOf(c.Result))
		}
		x.Finally = r.optional(x.Finally)
		r.setType(x, r.commonType(results...))
	case *tree.FunctionExpression:
		if x.Function != nil {
			r.localFunction(x.Function)
		}
		r.setType(x, b.AnyType())
	case *tree.ErrorExpr:
		x.Type = &tree.ErrorTypeRef{Reason: x.Reason}
	default:
		r.fail(errors.Newf(errors.CodeUnsupportedElement, "unsupported expression %T in %s", e, describe(r.site)).
			WithContext(errors.CtxSymbol, describe(r.site)))
	}
	return e
}

func (r *bodyResolver) block(x *tree.Block) {
	_ = r.tower.WithScopeCleanup(func() error {
		r.tower.Push(scope.NewLocalScope())
		for i, st := range x.Statements {
			x.Statements[i] = r.expr(st)
		}
		return nil
	})
	if n := len(x.Statements); n > 0 {
		r.setType(x, r.typeOf(x.Statements[n-1]))
	} else {
		r.setType(x, r.s.builtins.UnitType())
	}
}

// locals returns the innermost local scope, pushing one when the tower has
// none on top.
func (r *bodyResolver) locals() *scope.LocalScope {
	layers := r.tower.Layers()
	if n := len(layers); n > 0 {
		if ls, ok := layers[n-1].(*scope.LocalScope); ok {
			return ls
		}
	}
	ls := scope.NewLocalScope()
	r.tower.Push(ls)
	return ls
}

// local resolves a declaration introduced in a body and makes it visible to
// the statements after it.
func (r *bodyResolver) local(d tree.Declaration) {
	switch x := d.(type) {
	case *tree.Variable:
		if x.Type != nil {
			x.Type = r.s.resolveTypeRef(r.ctx, r.tower, x.Type, x)
		} else {
			x.Type = &tree.ImplicitTypeRef{Position: x.Position}
		}
		x.Initializer = r.optional(x.Initializer)
		x.Type = r.inferValue(x, x.Type, x.Initializer)
		r.locals().Add(x)
	case *tree.Function:
		r.locals().Add(x)
		r.localFunction(x)
	case *tree.Class:
		r.locals().Add(x)
		if err := r.s.resolveSubtree(r.ctx, x, tree.StageExpressions); err != nil {
			r.fail(err)
		}
	default:
		r.fail(errors.Newf(errors.CodeUnsupportedElement, "unsupported local declaration %T in %s", d, describe(r.site)))
		return
	}
	resolveStatus(d)
	r.s.stamp(d, tree.StageExpressions)
}

// localFunction resolves a function declared in a body against the
// enclosing tower, locals included.
func (r *bodyResolver) localFunction(fn *tree.Function) {
	if fn.Stage() >= tree.StageExpressions {
		return
	}
	if err := r.s.guard.enter(fn, tree.StageImplicitTypes, phaseImplicit); err != nil {
		r.fail(err)
		return
	}
	defer r.s.guard.exit(fn, tree.StageImplicitTypes, phaseImplicit)

	_ = r.tower.WithScopeCleanup(func() error {
		if err := r.s.resolveHeader(r.ctx, r.tower, fn); err != nil {
			r.fail(err)
			return nil
		}
		r.tower.Push(scope.NewTypeParameterScope(fn.TypeParameters))
		r.function(fn)
		return nil
	})
	r.s.stampTree(fn, tree.StageExpressions)
}

func (r *bodyResolver) ret(x *tree.Return) {
	x.Value = r.optional(x.Value)
	r.setType(x, r.s.builtins.NothingType())
	if len(r.frames) == 0 {
		r.report("return outside of a function")
		return
	}
	fr := r.frames[len(r.frames)-1]
	if x.Target.Name != "" {
		fr = nil
		for i := len(r.frames) - 1; i >= 0; i-- {
			if tree.NameOf(r.frames[i].owner) == x.Target.Name {
				fr = r.frames[i]
				break
			}
		}
		if fr == nil {
			r.report("unresolved return label %s", x.Target.Name)
			return
		}
	}
	x.Target = tree.Ref{Name: tree.NameOf(fr.owner), Symbol: fr.owner.Symbol()}
	var t tree.Type = r.s.builtins.UnitType()
	if x.Value != nil {
		t = r.typeOf(x.Value)
	}
	fr.returns = append(fr.returns, t)
}

func (r *bodyResolver) loop(l tree.Loop) {
	info := l.LoopInfo()
	info.Condition = r.optional(info.Condition)
	r.loops = append(r.loops, l)
	info.Body = r.optional(info.Body)
	r.loops = r.loops[:len(r.loops)-1]
	r.setType(l, r.s.builtins.UnitType())
}

// jumpTarget binds a break or continue to its loop: an explicit target is
// kept, a label picks the innermost loop with that label, otherwise the
// innermost loop.
func (r *bodyResolver) jumpTarget(current tree.Loop, label, what string) tree.Loop {
	if current != nil {
		return current
	}
	for i := len(r.loops) - 1; i >= 0; i-- {
		if label == "" || r.loops[i].LoopInfo().Label == label {
			return r.loops[i]
		}
	}
	if label != "" {
		r.report("%s@%s has no enclosing loop with that label", what, label)
	} else {
		r.report("%s outside of a loop", what)
	}
	return nil
}

func (r *bodyResolver) call(x *tree.Call) tree.Expr {
	if x.Receiver != nil {
		x.Receiver = r.expr(x.Receiver)
	}
	for i, a := range x.Args {
		x.Args[i] = r.expr(a)
	}
	accept := acceptsArity(len(x.Args))

	var (
		d   tree.Declaration
		err error
	)
	if x.Receiver != nil {
		d, err = r.memberLookup(r.typeOf(x.Receiver), x.Name, accept)
	} else {
		d, err = r.tower.LookupCallable(x.Name, accept)
		if err != nil && !isAmbiguous(err) {
			if _, classErr := r.tower.LookupClassifier(x.Name); classErr == nil {
				return r.constructorCall(x, x.Name, x.TypeArgs, x.Args)
			}
		}
	}
	if err != nil {
		r.report("unresolved call %s: %v", x.Name, err)
		return r.errorExpr(x, "unresolved call "+x.Name)
	}

	fn := d.(*tree.Function)
	x.Symbol = fn.Sym
	ret := r.declaredType(fn)
	if len(x.TypeArgs) > 0 {
		subst := make(map[*tree.Symbol]tree.Type)
		for i, ta := range x.TypeArgs {
			x.TypeArgs[i] = r.s.resolveTypeRef(r.ctx, r.tower, ta, r.site)
			if i < len(fn.TypeParameters) {
				if t := tree.TypeOf(x.TypeArgs[i]); t != nil {
					subst[fn.TypeParameters[i].Sym] = t
				}
			}
		}
		ret = tree.Substitute(ret, subst)
	}
	r.setType(x, ret)
	return x
}

// constructorCall binds a call of a class name to the constructor taking
// len(args) arguments.
func (r *bodyResolver) constructorCall(e tree.Expr, name string, typeArgs []tree.TypeRef, args []tree.Expr) tree.Expr {
	decl, err := r.s.lookupQualified(r.tower, qualifierParts(name))
	c, isClass := decl.(*tree.Class)
	if err != nil || !isClass {
		r.report("unresolved constructor %s", name)
		return r.errorExpr(e, "unresolved constructor "+name)
	}
	if err := r.s.ensureClassHeader(r.ctx, c); err != nil {
		r.fail(err)
	}
	r.s.recordDependency(r.site, c)

	out, ok := e.(*tree.ConstructorCall)
	if !ok {
		out = &tree.ConstructorCall{ExprBase: *e.Info(), TypeArgs: typeArgs, Args: args}
	}
	out.Name = name

	sym, ok := r.constructorOf(c, len(args), nil)
	if !ok {
		return r.errorExpr(e, "unresolved constructor "+name)
	}
	out.Symbol = sym

	t := c.DefaultType()
	if len(typeArgs) > 0 {
		t.Args = nil
		for i, ta := range typeArgs {
			typeArgs[i] = r.s.resolveTypeRef(r.ctx, r.tower, ta, r.site)
			t.Args = append(t.Args, tree.TypeOf(typeArgs[i]))
		}
		out.TypeArgs = typeArgs
	}
	r.setType(out, t)
	return out
}

// constructorOf picks the constructor of c taking n arguments, never skip.
// A class declaring no constructor accepts only zero arguments and is bound
// through its own symbol.
func (r *bodyResolver) constructorOf(c *tree.Class, n int, skip tree.Declaration) (*tree.Symbol, bool) {
	ctors := scope.NewMemberScope(c).Constructors()
	if len(ctors) == 0 {
		if n > 0 {
			r.report("%s has no constructor taking %d arguments", c.ID, n)
			return nil, false
		}
		return c.Sym, true
	}
	var matched []*tree.Constructor
	for _, ctor := range ctors {
		if tree.Declaration(ctor) != skip && acceptsArity(n)(ctor) {
			matched = append(matched, ctor)
		}
	}
	if len(matched) != 1 {
		r.report("no single constructor of %s takes %d arguments", c.ID, n)
		return nil, false
	}
	return matched[0].Sym, true
}

// delegatingCall binds this(...) to another constructor of the enclosing
// class and super(...) to a constructor of its superclass.
func (r *bodyResolver) delegatingCall(x *tree.DelegatingConstructorCall) tree.Expr {
	ctor, ok := r.site.(*tree.Constructor)
	c := tree.ContainingClass(r.site)
	if !ok || c == nil {
		r.report("%s(...) outside of a constructor", x.Name)
		return r.errorExpr(x, "misplaced delegating call")
	}
	var skip tree.Declaration = ctor
	if x.Super {
		c, skip = r.superclass(c), nil
	}
	if err := r.s.ensureClassHeader(r.ctx, c); err != nil {
		r.fail(err)
		return x
	}
	r.s.recordDependency(r.site, c)

	sym, found := r.constructorOf(c, len(x.Args), skip)
	if !found {
		return r.errorExpr(x, "unresolved delegating call "+x.Name)
	}
	x.Symbol = sym
	r.setType(x, r.s.builtins.UnitType())
	return x
}

// superclass is the one non-interface class among c's supertypes, or Any.
func (r *bodyResolver) superclass(c *tree.Class) *tree.Class {
	for _, ref := range c.SuperTypes {
		if super := classOf(tree.TypeOf(ref)); super != nil && super.Kind != tree.ClassKindInterface {
			return super
		}
	}
	anyClass, _ := r.s.builtins.Class("Any")
	return anyClass
}

func (r *bodyResolver) fieldAccess(e tree.Expr, ref *tree.Ref, receiver tree.Expr, setReceiver func(tree.Expr), write bool) tree.Expr {
	var (
		d   tree.Declaration
		err error
	)
	if receiver != nil {
		receiver = r.expr(receiver)
		setReceiver(receiver)
		d, err = r.memberLookup(r.typeOf(receiver), ref.Name, isValue)
	} else {
		d, err = r.tower.LookupCallable(ref.Name, isValue)
	}
	if err != nil {
		r.report("unresolved member %s: %v", ref.Name, err)
		return r.errorExpr(e, "unresolved member "+ref.Name)
	}
	ref.Symbol = d.Symbol()
	if write {
		r.setType(e, r.s.builtins.UnitType())
	} else {
		r.setType(e, r.declaredType(d))
	}
	return e
}

func (r *bodyResolver) enumValue(x *tree.GetEnumValue) tree.Expr {
	i := strings.LastIndex(x.Name, ".")
	if i < 0 {
		r.report("enum value %s has no enum class", x.Name)
		return r.errorExpr(x, "unresolved enum value "+x.Name)
	}
	decl, err := r.s.lookupQualified(r.tower, qualifierParts(x.Name[:i]))
	enum, ok := decl.(*tree.Class)
	if err != nil || !ok {
		r.report("unresolved enum class %s", x.Name[:i])
		return r.errorExpr(x, "unresolved enum value "+x.Name)
	}
	for _, m := range enum.Members {
		if entry, ok := m.(*tree.EnumEntry); ok && entry.Name == x.Name[i+1:] {
			x.Symbol = entry.Sym
			r.s.recordDependency(r.site, enum)
			r.setType(x, enum.DefaultType())
			return x
		}
	}
	r.report("enum %s has no entry %s", enum.ID, x.Name[i+1:])
	return r.errorExpr(x, "unresolved enum value "+x.Name)
}

// objectNamed returns the object declaration visible under name, if any.
func (r *bodyResolver) objectNamed(name string) *tree.Class {
	decl, err := r.s.lookupQualified(r.tower, qualifierParts(name))
	if err != nil {
		return nil
	}
	if c, ok := decl.(*tree.Class); ok && c.Kind == tree.ClassKindObject {
		r.s.recordDependency(r.site, c)
		return c
	}
	return nil
}

// memberLookup finds name among the members of t's class and its
// supertypes, most derived first.
func (r *bodyResolver) memberLookup(t tree.Type, name string, accept func(tree.Declaration) bool) (tree.Declaration, error) {
	c := classOf(t)
	if tp, ok := t.(*tree.TypeParameterType); ok {
		if owner, ok := tp.Symbol.Owner().(*tree.TypeParameter); ok && len(owner.Bounds) > 0 {
			c = classOf(tree.TypeOf(owner.Bounds[0]))
		}
	}
	if c == nil {
		return nil, errors.Newf(errors.CodeLookupFailure, "%s has no members", typeString(t)).
			WithContext(errors.CtxSymbol, name).
			WithContext(errors.CtxReason, errors.ReasonUnknown)
	}
	layers, err := r.s.classScopes(r.ctx, c, true)
	if err != nil {
		return nil, err
	}
	d, err := scope.NewTower(true, layers...).LookupCallable(name, accept)
	if err == nil {
		r.s.recordDependency(r.site, d)
	}
	return d, err
}

// declaredType returns the type a reference to d evaluates to, inferring it
// first when it is still implicit.
func (r *bodyResolver) declaredType(d tree.Declaration) tree.Type {
	r.s.recordDependency(r.site, d)
	if !isLocal(d) {
		if err := r.s.ensureImplicitType(r.ctx, d); err != nil {
			if !errors.IsCode(err, errors.CodeStageViolation) {
				r.fail(err)
				return &tree.ErrorType{Reason: err.Error()}
			}
			r.s.report(r.site, errors.CodeStageViolation, "type of %s depends on itself", describe(d))
			return &tree.ErrorType{Reason: "recursive implicit type"}
		}
	}

	var ref tree.TypeRef
	switch x := d.(type) {
	case *tree.Function:
		ref = x.ReturnType
	case *tree.Property:
		ref = x.Type
	case *tree.Field:
		ref = x.Type
	case *tree.Variable:
		ref = x.Type
	case *tree.ValueParameter:
		ref = x.Type
	case *tree.EnumEntry:
		if c := tree.ContainingClass(x); c != nil {
			return c.DefaultType()
		}
	}
	if t := tree.TypeOf(ref); t != nil {
		return t
	}
	if isLocal(d) {
		r.s.report(r.site, errors.CodeStageViolation, "type of %s depends on itself", describe(d))
		return &tree.ErrorType{Reason: "recursive implicit type"}
	}
	return &tree.ErrorType{Reason: "unresolved type of " + tree.NameOf(d)}
}

func isValue(d tree.Declaration) bool {
	_, fn := d.(*tree.Function)
	return !fn
}

func isFunction(d tree.Declaration) bool {
	_, fn := d.(*tree.Function)
	return fn
}

// acceptsArity matches functions and constructors callable with n
// arguments, counting defaults and a trailing vararg.
func acceptsArity(n int) func(tree.Declaration) bool {
	return func(d tree.Declaration) bool {
		var params []*tree.ValueParameter
		switch x := d.(type) {
		case *tree.Function:
			params = x.Params
		case *tree.Constructor:
			params = x.Params
		default:
			return false
		}
		required, vararg := 0, false
		for _, p := range params {
			switch {
			case p.Vararg:
				vararg = true
			case p.Default == nil:
				required++
			}
		}
		if n < required {
			return false
		}
		return vararg || n <= len(params)
	}
}

func isAmbiguous(err error) bool {
	reason, _ := errors.ContextValue(err, errors.CtxReason)
	return reason == errors.ReasonAmbiguous
}

func qualifierParts(name string) []tree.QualifierPart {
	names := splitQualified(name)
	parts := make([]tree.QualifierPart, len(names))
	for i, n := range names {
		parts[i] = tree.QualifierPart{Name: n}
	}
	return parts
}

func typeString(t tree.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
