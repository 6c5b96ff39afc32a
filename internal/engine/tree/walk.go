package tree

// Inspect traverses the tree rooted at n in depth-first order, calling fn for
// each node. If fn returns false the children of that node are skipped.
// Unknown node kinds are visited but not descended into.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range Children(n) {
		Inspect(child, fn)
	}
}

// Children lists the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c != nil && !isNilNode(c) {
			out = append(out, c)
		}
	}
	addExprs := func(es []Expr) {
		for _, e := range es {
			add(e)
		}
	}
	switch x := n.(type) {
	case *File:
		for _, d := range x.Decls {
			add(d)
		}
	case *Class:
		for _, tp := range x.TypeParameters {
			add(tp)
		}
		for _, m := range x.Members {
			add(m)
		}
	case *Function:
		for _, tp := range x.TypeParameters {
			add(tp)
		}
		for _, p := range x.Params {
			add(p)
		}
		add(blockNode(x.Body))
	case *Constructor:
		for _, p := range x.Params {
			add(p)
		}
		add(blockNode(x.Body))
	case *AnonymousInitializer:
		add(blockNode(x.Body))
	case *Property:
		add(x.Initializer)
	case *Field:
		add(x.Initializer)
	case *TypeAlias:
		for _, tp := range x.TypeParameters {
			add(tp)
		}
	case *ValueParameter:
		add(x.Default)
	case *Variable:
		add(x.Initializer)
	case *EnumEntry:
		addExprs(x.Args)
	case *SetVariable:
		add(x.Value)
	case *Call:
		add(x.Receiver)
		addExprs(x.Args)
	case *ConstructorCall:
		addExprs(x.Args)
	case *DelegatingConstructorCall:
		addExprs(x.Args)
	case *GetField:
		add(x.Receiver)
	case *SetField:
		add(x.Receiver)
		add(x.Value)
	case *Block:
		addExprs(x.Statements)
	case *DeclStmt:
		add(x.Decl)
	case *Return:
		add(x.Value)
	case *WhileLoop:
		add(x.Condition)
		add(x.Body)
	case *DoWhileLoop:
		add(x.Body)
		add(x.Condition)
	case *When:
		add(x.Subject)
		for _, b := range x.Branches {
			add(b.Condition)
			add(b.Result)
		}
	case *TypeOperator:
		add(x.Arg)
	case *StringConcat:
		addExprs(x.Args)
	case *Vararg:
		addExprs(x.Elements)
	case *SpreadElement:
		add(x.Value)
	case *Throw:
		add(x.Value)
	case *Try:
		add(x.Body)
		for _, c := range x.Catches {
			add(c.Param)
			add(c.Result)
		}
		add(x.Finally)
	case *FunctionExpression:
		add(x.Function)
	}
	return out
}

func blockNode(b *Block) Node {
	if b == nil {
		return nil
	}
	return b
}

// isNilNode catches typed nil pointers stored in interfaces.
func isNilNode(n Node) bool {
	switch x := n.(type) {
	case *Variable:
		return x == nil
	case *Function:
		return x == nil
	case *Block:
		return x == nil
	}
	return false
}

// Link sets parent back-references below root, with root's parent set to
// parent, and fills in class IDs that the builder left empty.
func Link(root Declaration, parent Declaration) {
	root.SetParent(parent)
	linkChildren(root)
}

func linkChildren(d Declaration) {
	if c, ok := d.(*Class); ok && c.ID.IsZero() {
		c.ID = classIDFor(c)
	}
	Inspect(d, func(n Node) bool {
		if n == Node(d) {
			return true
		}
		if child, ok := n.(Declaration); ok {
			child.SetParent(d)
			linkChildren(child)
			return false
		}
		return true
	})
}

func classIDFor(c *Class) ClassID {
	switch p := c.Parent().(type) {
	case *File:
		return NewClassID(p.Package, c.Name)
	case *Class:
		if p.ID.IsZero() {
			p.ID = classIDFor(p)
		}
		return p.ID.Nested(c.Name)
	case nil:
		return ClassID{Relative: c.Name}
	}
	// Declared inside a body.
	pkg := ""
	if f := FileOf(c); f != nil {
		pkg = f.Package
	}
	return ClassID{Package: pkg, Relative: c.Name, Local: true}
}
