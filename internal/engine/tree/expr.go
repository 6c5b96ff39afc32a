package tree

// Expr is an expression or statement inside a body.
type Expr interface {
	Node
	Info() *ExprBase
}

// ExprBase holds the attributes every expression carries. Embedding it is
// how a type becomes an Expr.
type ExprBase struct {
	Type     TypeRef
	Position Position
}

func (e *ExprBase) node() {}
func (e *ExprBase) Info() *ExprBase { return e }

// Ref is a by-name reference bound to a symbol during body resolution.
type Ref struct {
	Name   string
	Symbol *Symbol
}

func (r Ref) Bound() bool {
	return r.Symbol != nil
}

type ConstKind int

const (
	ConstNull ConstKind = iota
	ConstBoolean
	ConstInt
	ConstLong
	ConstDouble
	ConstChar
	ConstString
)

type Const struct {
	ExprBase
	Kind  ConstKind
	Value interface{}
}

// GetValue reads a variable, parameter, property or object.
type GetValue struct {
	ExprBase
	Ref
}

type SetVariable struct {
	ExprBase
	Ref
	Value Expr
}

type Call struct {
	ExprBase
	Ref
	Receiver Expr
	TypeArgs []TypeRef
	Args     []Expr
}

type ConstructorCall struct {
	ExprBase
	Ref
	TypeArgs []TypeRef
	Args     []Expr
}

// DelegatingConstructorCall is this(...) or super(...) heading a
// constructor. Symbol is the target constructor, or the target class when it
// declares none.
type DelegatingConstructorCall struct {
	ExprBase
	Ref
	Super bool
	Args  []Expr
}

type GetField struct {
	ExprBase
	Ref
	Receiver Expr
}

type SetField struct {
	ExprBase
	Ref
	Receiver Expr
	Value    Expr
}

type FunctionReference struct {
	ExprBase
	Ref
}

type PropertyReference struct {
	ExprBase
	Ref
}

// GetEnumValue references an entry; Ref.Name is "Enum.ENTRY" until bound.
type GetEnumValue struct {
	ExprBase
	Ref
}

type GetObjectValue struct {
	ExprBase
	Ref
}

type Block struct {
	ExprBase
	Statements []Expr
}

// DeclStmt introduces a local declaration inside a block.
type DeclStmt struct {
	ExprBase
	Decl Declaration
}

// Return exits the function referenced by Target.
type Return struct {
	ExprBase
	Target Ref
	Value  Expr
}

// Loop is implemented by loop nodes that break and continue can target.
type Loop interface {
	Expr
	LoopInfo() *LoopBase
}

type LoopBase struct {
	ExprBase
	Label     string
	Condition Expr
	Body      Expr
}

func (l *LoopBase) LoopInfo() *LoopBase { return l }

type WhileLoop struct {
	LoopBase
}

type DoWhileLoop struct {
	LoopBase
}

// Break and Continue point at their loop node directly. Label is kept for
// resolution of labelled jumps.
type Break struct {
	ExprBase
	Loop  Loop
	Label string
}

type Continue struct {
	ExprBase
	Loop  Loop
	Label string
}

type Branch struct {
	// Condition is nil for the else branch.
	Condition Expr
	Result    Expr
}

type When struct {
	ExprBase
	Subject  Expr
	Branches []*Branch
}

type TypeOp int

const (
	TypeOpCast TypeOp = iota
	TypeOpSafeCast
	TypeOpInstanceOf
	TypeOpNotInstanceOf
)

type TypeOperator struct {
	ExprBase
	Op      TypeOp
	Arg     Expr
	Operand TypeRef
}

type StringConcat struct {
	ExprBase
	Args []Expr
}

type Vararg struct {
	ExprBase
	Elements []Expr
}

// SpreadElement passes the elements of an array where a vararg is expected.
type SpreadElement struct {
	ExprBase
	Value Expr
}

// ClassReference is Name::class; Ref.Symbol is the class.
type ClassReference struct {
	ExprBase
	Ref
}

type Throw struct {
	ExprBase
	Value Expr
}

type Catch struct {
	Param  *Variable
	Result Expr
}

type Try struct {
	ExprBase
	Body    Expr
	Catches []*Catch
	Finally Expr
}

type FunctionExpression struct {
	ExprBase
	Function *Function
}

// ErrorExpr replaces an expression that failed to resolve.
type ErrorExpr struct {
	ExprBase
	Reason string
}
