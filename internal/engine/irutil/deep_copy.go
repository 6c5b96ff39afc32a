// Package irutil copies resolved declaration trees with fresh symbols.
package irutil

import (
	"context"
	"path"

	"resolvecore/internal/core/errors"
	"resolvecore/internal/engine/tree"
	"resolvecore/internal/shared/observability"

	"go.opentelemetry.io/otel/trace"
)

type options struct {
	arena *tree.SymbolArena
}

type Option func(*options)

// WithArena mints the copied symbols from arena instead of a private one.
func WithArena(arena *tree.SymbolArena) Option {
	return func(o *options) { o.arena = arena }
}

// DeepCopy returns a structurally identical copy of root in which every
// declaration has a fresh symbol and every reference into root points at
// the copy. References to declarations outside root are kept. The copy's
// root has the same parent as root. The returned map takes each symbol
// declared in root to its replacement.
func DeepCopy(ctx context.Context, root tree.Declaration, policy NamingPolicy, opts ...Option) (tree.Declaration, map[*tree.Symbol]*tree.Symbol, error) {
	_, span := observability.Tracer.Start(ctx, "irutil.DeepCopy", trace.WithAttributes(
		observability.AttrDecl.String(root.Base().Name),
	))
	defer span.End()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if policy == nil {
		policy = KeepNames{}
	}

	symbols := NewDeepCopySymbolRemapper(o.arena)
	if err := symbols.Declare(root); err != nil {
		return nil, nil, err
	}
	c := &copier{
		symbols: symbols,
		types:   NewDeepCopyTypeRemapper(symbols),
		policy:  policy,
		params:  make(map[*tree.TypeParameter]*tree.TypeParameter),
	}
	c.precomputeClassIDs(root)
	if err := c.copyTypeParameters(root); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if err := symbols.advance(SymbolsDeclared, TypesRemapped); err != nil {
		return nil, nil, err
	}

	out := c.decl(root)
	if c.err != nil {
		span.RecordError(c.err)
		return nil, nil, c.err
	}
	if err := symbols.advance(TypesRemapped, TreeCopied); err != nil {
		return nil, nil, err
	}
	tree.Link(out, root.Parent())
	observability.DeepCopyDeclarations.Add(float64(c.copied))
	return out, symbols.Symbols(), nil
}

type copier struct {
	symbols *DeepCopySymbolRemapper
	types   *DeepCopyTypeRemapper
	policy  NamingPolicy
	params  map[*tree.TypeParameter]*tree.TypeParameter
	copied  int
	err     error
}

func (c *copier) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// precomputeClassIDs derives the ID of every copied class from its new
// name, so types can refer to classes that are not copied yet.
func (c *copier) precomputeClassIDs(root tree.Declaration) {
	var visit func(d tree.Declaration, outer *tree.ClassID)
	visit = func(d tree.Declaration, outer *tree.ClassID) {
		if cls, ok := d.(*tree.Class); ok {
			name := c.policy.ClassName(cls)
			id := cls.ID
			switch {
			case outer != nil:
				id = outer.Nested(name)
				id.Local = cls.ID.Local
			case cls.ID.Relative != "":
				if parent, ok := cls.ID.Outer(); ok {
					id = parent.Nested(name)
					id.Local = cls.ID.Local
				} else {
					id = tree.ClassID{Package: cls.ID.Package, Relative: name, Local: cls.ID.Local}
				}
			}
			c.types.classIDs[c.symbols.Remap(cls.Sym)] = id
			for _, m := range cls.Members {
				visit(m, &id)
			}
			return
		}
		tree.Inspect(d, func(n tree.Node) bool {
			if n == tree.Node(d) {
				return true
			}
			if inner, ok := n.(tree.Declaration); ok {
				visit(inner, nil)
				return false
			}
			return true
		})
	}
	visit(root, nil)
}

// copyTypeParameters creates the copies of all type parameters first, then
// remaps their bounds inside the scope of their container so bounds such
// as T : Comparable<T> refer to the new T.
func (c *copier) copyTypeParameters(root tree.Declaration) error {
	var containers []tree.Declaration
	tree.Inspect(root, func(n tree.Node) bool {
		d, ok := n.(tree.Declaration)
		if !ok {
			return true
		}
		params := tree.TypeParametersOf(d)
		if len(params) == 0 {
			return true
		}
		containers = append(containers, d)
		for _, tp := range params {
			c.typeParameter(tp)
		}
		return true
	})
	// A type parameter copied on its own has no container in the subtree;
	// its own symbol is declared, so self references in bounds still remap.
	if tp, ok := root.(*tree.TypeParameter); ok {
		c.typeParameter(tp).Bounds = c.types.RemapTypeRefs(tp.Bounds)
	}
	for _, d := range containers {
		err := c.types.WithinScope(d, func() error {
			for _, tp := range tree.TypeParametersOf(d) {
				c.params[tp].Bounds = c.types.RemapTypeRefs(tp.Bounds)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return c.err
}

func (c *copier) typeParameter(tp *tree.TypeParameter) *tree.TypeParameter {
	copied := &tree.TypeParameter{
		DeclBase: c.base(tp, c.policy.TypeParameterName(tp)),
		Index:    tp.Index,
	}
	c.finish(tp, copied)
	c.params[tp] = copied
	c.types.names[copied.Sym] = copied.Name
	return copied
}

func (c *copier) base(d tree.Declaration, name string) tree.DeclBase {
	b := d.Base()
	out := tree.DeclBase{
		Name:     name,
		Sym:      c.symbols.Remap(b.Sym),
		Position: b.Position,
	}
	if b.Annotations != nil {
		out.Annotations = make([]tree.Annotation, len(b.Annotations))
		for i, a := range b.Annotations {
			out.Annotations[i] = tree.Annotation{Name: a.Name, Args: append([]string(nil), a.Args...)}
		}
	}
	return out
}

// finish binds the new symbol to its declaration and carries the stage over.
func (c *copier) finish(old, copied tree.Declaration) {
	copied.Advance(old.Stage())
	if sym := copied.Symbol(); sym != nil && sym != old.Symbol() {
		if err := sym.Bind(copied); err != nil {
			c.fail(errors.Wrap(err, errors.CodeInternal, "bind copied symbol"))
		}
	}
	c.copied++
}

func (c *copier) typeParams(params []*tree.TypeParameter) []*tree.TypeParameter {
	if params == nil {
		return nil
	}
	out := make([]*tree.TypeParameter, len(params))
	for i, tp := range params {
		out[i] = c.params[tp]
	}
	return out
}

func (c *copier) decls(ds []tree.Declaration) []tree.Declaration {
	if ds == nil {
		return nil
	}
	out := make([]tree.Declaration, len(ds))
	for i, d := range ds {
		out[i] = c.decl(d)
	}
	return out
}

func (c *copier) valueParams(ps []*tree.ValueParameter) []*tree.ValueParameter {
	if ps == nil {
		return nil
	}
	out := make([]*tree.ValueParameter, len(ps))
	for i, p := range ps {
		out[i] = c.decl(p).(*tree.ValueParameter)
	}
	return out
}

func (c *copier) within(container tree.Declaration, fn func()) {
	_ = c.types.WithinScope(container, func() error {
		fn()
		return nil
	})
}

func (c *copier) decl(d tree.Declaration) tree.Declaration {
	t := c.types
	switch x := d.(type) {
	case *tree.File:
		out := &tree.File{Package: x.Package, Mode: x.Mode, Path: x.Path}
		out.DeclBase = c.base(x, c.policy.FileName(x))
		if out.Name != x.Name {
			out.Path = path.Join(path.Dir(x.Path), out.Name)
		}
		for _, imp := range x.Imports {
			cp := *imp
			out.Imports = append(out.Imports, &cp)
		}
		out.Decls = c.decls(x.Decls)
		c.finish(x, out)
		return out
	case *tree.Class:
		out := &tree.Class{
			Status:    x.Status,
			ID:        t.classIDs[c.symbols.Remap(x.Sym)],
			Kind:      x.Kind,
			Companion: x.Companion,
		}
		out.DeclBase = c.base(x, c.policy.ClassName(x))
		out.TypeParameters = c.typeParams(x.TypeParameters)
		c.within(x, func() {
			out.SuperTypes = t.RemapTypeRefs(x.SuperTypes)
			out.Members = c.decls(x.Members)
		})
		c.finish(x, out)
		return out
	case *tree.Function:
		out := &tree.Function{Status: x.Status}
		out.DeclBase = c.base(x, c.policy.FunctionName(x))
		out.TypeParameters = c.typeParams(x.TypeParameters)
		c.within(x, func() {
			out.Receiver = t.RemapTypeRef(x.Receiver)
			out.Params = c.valueParams(x.Params)
			out.ReturnType = t.RemapTypeRef(x.ReturnType)
			out.Body = c.block(x.Body)
		})
		c.finish(x, out)
		return out
	case *tree.Constructor:
		out := &tree.Constructor{Status: x.Status, Primary: x.Primary}
		out.DeclBase = c.base(x, x.Name)
		out.Params = c.valueParams(x.Params)
		out.ReturnType = t.RemapTypeRef(x.ReturnType)
		out.Body = c.block(x.Body)
		c.finish(x, out)
		return out
	case *tree.AnonymousInitializer:
		out := &tree.AnonymousInitializer{}
		out.DeclBase = c.base(x, x.Name)
		out.Body = c.block(x.Body)
		c.finish(x, out)
		return out
	case *tree.Property:
		out := &tree.Property{Status: x.Status, Mutable: x.Mutable}
		out.DeclBase = c.base(x, c.policy.FieldName(x))
		out.Type = t.RemapTypeRef(x.Type)
		out.Initializer = c.optional(x.Initializer)
		c.finish(x, out)
		return out
	case *tree.Field:
		out := &tree.Field{Static: x.Static}
		out.DeclBase = c.base(x, c.policy.FieldName(x))
		out.Type = t.RemapTypeRef(x.Type)
		out.Initializer = c.optional(x.Initializer)
		c.finish(x, out)
		return out
	case *tree.TypeAlias:
		out := &tree.TypeAlias{Status: x.Status}
		out.DeclBase = c.base(x, x.Name)
		out.TypeParameters = c.typeParams(x.TypeParameters)
		c.within(x, func() {
			out.Expanded = t.RemapTypeRef(x.Expanded)
		})
		c.finish(x, out)
		return out
	case *tree.ValueParameter:
		out := &tree.ValueParameter{Index: x.Index, Vararg: x.Vararg}
		out.DeclBase = c.base(x, c.policy.ValueParameterName(x))
		out.Type = t.RemapTypeRef(x.Type)
		out.ElementType = t.RemapTypeRef(x.ElementType)
		out.Default = c.optional(x.Default)
		c.finish(x, out)
		return out
	case *tree.TypeParameter:
		if copied, ok := c.params[x]; ok {
			return copied
		}
	case *tree.Variable:
		return c.variable(x)
	case *tree.EnumEntry:
		out := &tree.EnumEntry{Args: c.exprs(x.Args)}
		out.DeclBase = c.base(x, c.policy.EnumEntryName(x))
		c.finish(x, out)
		return out
	}
	c.fail(errors.Newf(errors.CodeUnsupportedElement, "cannot copy declaration %T", d).
		WithContext(errors.CtxSymbol, tree.NameOf(d)))
	return d
}

func (c *copier) variable(x *tree.Variable) *tree.Variable {
	if x == nil {
		return nil
	}
	out := &tree.Variable{Mutable: x.Mutable}
	out.DeclBase = c.base(x, c.policy.VariableName(x))
	out.Type = c.types.RemapTypeRef(x.Type)
	out.Initializer = c.optional(x.Initializer)
	c.finish(x, out)
	return out
}

func (c *copier) ref(r tree.Ref) tree.Ref {
	out, err := c.symbols.RemapRef(r)
	if err != nil {
		c.fail(err)
	}
	return out
}

func (c *copier) info(e tree.Expr) tree.ExprBase {
	b := e.Info()
	return tree.ExprBase{Type: c.types.RemapTypeRef(b.Type), Position: b.Position}
}

func (c *copier) optional(e tree.Expr) tree.Expr {
	if e == nil {
		return nil
	}
	return c.expr(e)
}

func (c *copier) exprs(es []tree.Expr) []tree.Expr {
	if es == nil {
		return nil
	}
	out := make([]tree.Expr, len(es))
	for i, e := range es {
		out[i] = c.expr(e)
	}
	return out
}

func (c *copier) block(b *tree.Block) *tree.Block {
	if b == nil {
		return nil
	}
	return c.expr(b).(*tree.Block)
}

func (c *copier) loopBody(old, copied tree.Loop) {
	c.symbols.registerLoop(old, copied)
	info := copied.LoopInfo()
	info.Condition = c.optional(old.LoopInfo().Condition)
	info.Body = c.optional(old.LoopInfo().Body)
}

func (c *copier) jumpTarget(old tree.Loop) tree.Loop {
	if old == nil {
		c.fail(errors.New(errors.CodeDanglingLoopTarget, "jump without a target loop"))
		return nil
	}
	copied, err := c.symbols.loop(old)
	if err != nil {
		c.fail(err)
	}
	return copied
}

// expr copies one expression. Every reference is remapped; loops are
// registered before their bodies so jumps inside find the copy.
func (c *copier) expr(e tree.Expr) tree.Expr {
	t := c.types
	switch x := e.(type) {
	case *tree.Const:
		return &tree.Const{ExprBase: c.info(x), Kind: x.Kind, Value: x.Value}
	case *tree.GetValue:
		return &tree.GetValue{ExprBase: c.info(x), Ref: c.ref(x.Ref)}
	case *tree.SetVariable:
		return &tree.SetVariable{ExprBase: c.info(x), Ref: c.ref(x.Ref), Value: c.optional(x.Value)}
	case *tree.Call:
		return &tree.Call{
			ExprBase: c.info(x),
			Ref:      c.ref(x.Ref),
			Receiver: c.optional(x.Receiver),
			TypeArgs: t.RemapTypeRefs(x.TypeArgs),
			Args:     c.exprs(x.Args),
		}
	case *tree.ConstructorCall:
		return &tree.ConstructorCall{
			ExprBase: c.info(x),
			Ref:      c.ref(x.Ref),
			TypeArgs: t.RemapTypeRefs(x.TypeArgs),
			Args:     c.exprs(x.Args),
		}
	case *tree.DelegatingConstructorCall:
		return &tree.DelegatingConstructorCall{ExprBase: c.info(x), Ref: c.ref(x.Ref), Super: x.Super, Args: c.exprs(x.Args)}
	case *tree.ClassReference:
		return &tree.ClassReference{ExprBase: c.info(x), Ref: c.ref(x.Ref)}
	case *tree.GetField:
		return &tree.GetField{ExprBase: c.info(x), Ref: c.ref(x.Ref), Receiver: c.optional(x.Receiver)}
	case *tree.SetField:
		return &tree.SetField{
			ExprBase: c.info(x),
			Ref:      c.ref(x.Ref),
			Receiver: c.optional(x.Receiver),
			Value:    c.optional(x.Value),
		}
	case *tree.FunctionReference:
		return &tree.FunctionReference{ExprBase: c.info(x), Ref: c.ref(x.Ref)}
	case *tree.PropertyReference:
		return &tree.PropertyReference{ExprBase: c.info(x), Ref: c.ref(x.Ref)}
	case *tree.GetEnumValue:
		return &tree.GetEnumValue{ExprBase: c.info(x), Ref: c.ref(x.Ref)}
	case *tree.GetObjectValue:
		return &tree.GetObjectValue{ExprBase: c.info(x), Ref: c.ref(x.Ref)}
	case *tree.Block:
		return &tree.Block{ExprBase: c.info(x), Statements: c.exprs(x.Statements)}
	case *tree.DeclStmt:
		return &tree.DeclStmt{ExprBase: c.info(x), Decl: c.decl(x.Decl)}
	case *tree.Return:
		return &tree.Return{ExprBase: c.info(x), Target: c.ref(x.Target), Value: c.optional(x.Value)}
	case *tree.WhileLoop:
		out := &tree.WhileLoop{LoopBase: tree.LoopBase{ExprBase: c.info(x), Label: x.Label}}
		c.loopBody(x, out)
		return out
	case *tree.DoWhileLoop:
		out := &tree.DoWhileLoop{LoopBase: tree.LoopBase{ExprBase: c.info(x), Label: x.Label}}
		c.loopBody(x, out)
		return out
	case *tree.Break:
		return &tree.Break{ExprBase: c.info(x), Loop: c.jumpTarget(x.Loop), Label: x.Label}
	case *tree.Continue:
		return &tree.Continue{ExprBase: c.info(x), Loop: c.jumpTarget(x.Loop), Label: x.Label}
	case *tree.When:
		out := &tree.When{ExprBase: c.info(x), Subject: c.optional(x.Subject)}
		for _, b := range x.Branches {
			out.Branches = append(out.Branches, &tree.Branch{Condition: c.optional(b.Condition), Result: c.optional(b.Result)})
		}
		return out
	case *tree.TypeOperator:
		return &tree.TypeOperator{ExprBase: c.info(x), Op: x.Op, Arg: c.optional(x.Arg), Operand: t.RemapTypeRef(x.Operand)}
	case *tree.StringConcat:
		return &tree.StringConcat{ExprBase: c.info(x), Args: c.exprs(x.Args)}
	case *tree.Vararg:
		return &tree.Vararg{ExprBase: c.info(x), Elements: c.exprs(x.Elements)}
	case *tree.SpreadElement:
		return &tree.SpreadElement{ExprBase: c.info(x), Value: c.optional(x.Value)}
	case *tree.Throw:
		return &tree.Throw{ExprBase: c.info(x), Value: c.optional(x.Value)}
	case *tree.Try:
		out := &tree.Try{ExprBase: c.info(x), Body: c.optional(x.Body)}
		for _, cat := range x.Catches {
			out.Catches = append(out.Catches, &tree.Catch{Param: c.variable(cat.Param), Result: c.optional(cat.Result)})
		}
		out.Finally = c.optional(x.Finally)
		return out
	case *tree.FunctionExpression:
		out := &tree.FunctionExpression{ExprBase: c.info(x)}
		if x.Function != nil {
			out.Function = c.decl(x.Function).(*tree.Function)
		}
		return out
	case *tree.ErrorExpr:
		return &tree.ErrorExpr{ExprBase: c.info(x), Reason: x.Reason}
	}
	c.fail(errors.Newf(errors.CodeUnsupportedElement, "cannot copy expression %T", e))
	return e
}
