package treetest

import "resolvecore/internal/engine/tree"

func Int(v int) *tree.Const { return &tree.Const{Kind: tree.ConstInt, Value: v} }

func Str(s string) *tree.Const { return &tree.Const{Kind: tree.ConstString, Value: s} }

func Bool(b bool) *tree.Const { return &tree.Const{Kind: tree.ConstBoolean, Value: b} }

func Get(name string) *tree.GetValue { return &tree.GetValue{Ref: tree.Ref{Name: name}} }

func Set(name string, v tree.Expr) *tree.SetVariable {
	return &tree.SetVariable{Ref: tree.Ref{Name: name}, Value: v}
}

func Call(name string, args ...tree.Expr) *tree.Call {
	return &tree.Call{Ref: tree.Ref{Name: name}, Args: args}
}

func MemberCall(receiver tree.Expr, name string, args ...tree.Expr) *tree.Call {
	return &tree.Call{Ref: tree.Ref{Name: name}, Receiver: receiver, Args: args}
}

func This(args ...tree.Expr) *tree.DelegatingConstructorCall {
	return &tree.DelegatingConstructorCall{Ref: tree.Ref{Name: "this"}, Args: args}
}

func Super(args ...tree.Expr) *tree.DelegatingConstructorCall {
	return &tree.DelegatingConstructorCall{Ref: tree.Ref{Name: "super"}, Super: true, Args: args}
}

func Spread(v tree.Expr) *tree.SpreadElement { return &tree.SpreadElement{Value: v} }

func ClassRef(name string) *tree.ClassReference {
	return &tree.ClassReference{Ref: tree.Ref{Name: name}}
}

func Ret(v tree.Expr) *tree.Return { return &tree.Return{Value: v} }

func Block(stmts ...tree.Expr) *tree.Block { return &tree.Block{Statements: stmts} }

func Decl(d tree.Declaration) *tree.DeclStmt { return &tree.DeclStmt{Decl: d} }

func While(cond tree.Expr, body ...tree.Expr) *tree.WhileLoop {
	return &tree.WhileLoop{LoopBase: tree.LoopBase{Condition: cond, Body: Block(body...)}}
}

func Break(loop tree.Loop) *tree.Break { return &tree.Break{Loop: loop} }

func Continue(loop tree.Loop) *tree.Continue { return &tree.Continue{Loop: loop} }

func If(cond, then, otherwise tree.Expr) *tree.When {
	return &tree.When{Branches: []*tree.Branch{
		{Condition: cond, Result: then},
		{Result: otherwise},
	}}
}
