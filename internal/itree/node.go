package itree

import "github.com/roach88/qplan/internal/ir"

// Node is any operator of the internal tree.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	ID() NodeID
	node() // Marker method - seals interface to this package
}

// RelNode is a relational operator producing rows of Vars.
type RelNode interface {
	Node
	relNode()
}

// Scalar is an expression evaluated per row.
type Scalar interface {
	Node
	Type() Type
	scalar()
}

type nodeBase struct {
	id NodeID
}

func (b nodeBase) ID() NodeID { return b.id }
func (nodeBase) node()        {}

// ---------------------------------------------------------------------------
// Relational operators
// ---------------------------------------------------------------------------

// Scan reads a catalog table. Vars lists the columns still in use, in
// column order; Cols is the same set as a VarSet.
type Scan struct {
	nodeBase
	Table *Table
	Alias string
	Vars  []*Var
	Cols  *VarSet
}

func (*Scan) relNode() {}

// Filter keeps rows for which Predicate is true.
type Filter struct {
	nodeBase
	Input     RelNode
	Predicate Scalar
}

func (*Filter) relNode() {}

// VarDef defines a computed var.
type VarDef struct {
	Var  *Var
	Expr Scalar
}

// Project passes through a subset of its input's vars and defines new ones.
type Project struct {
	nodeBase
	Input       RelNode
	Passthrough *VarSet
	Defs        []VarDef
}

func (*Project) relNode() {}

// JoinKind is the flavor of a Join.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
	CrossJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "inner"
	case LeftOuterJoin:
		return "left-outer"
	case CrossJoin:
		return "cross"
	}
	return "unknown"
}

// Join combines two inputs. On is nil for a cross join.
type Join struct {
	nodeBase
	Kind  JoinKind
	Left  RelNode
	Right RelNode
	On    Scalar
}

func (*Join) relNode() {}

// SortKey is one ordering column.
type SortKey struct {
	Var  *Var
	Desc bool
}

// Sort orders its input.
type Sort struct {
	nodeBase
	Input RelNode
	Keys  []SortKey
}

func (*Sort) relNode() {}

// LimitForm is the SQL construct a Limit is rendered with. It is chosen
// during TOP lowering; bound trees carry LimitUnlowered.
type LimitForm int

const (
	LimitUnlowered LimitForm = iota
	LimitTop
	LimitLimit
	LimitFetch
)

func (f LimitForm) String() string {
	switch f {
	case LimitTop:
		return "top"
	case LimitLimit:
		return "limit"
	case LimitFetch:
		return "fetch"
	}
	return "unlowered"
}

// Limit keeps the first Count rows of its input. Count is a *Const or a
// *Param. WithTies also keeps rows that tie with the last one under the
// input's ordering.
type Limit struct {
	nodeBase
	Input    RelNode
	Count    Scalar
	WithTies bool
	Form     LimitForm
}

func (*Limit) relNode() {}

// Distinct removes duplicate rows.
type Distinct struct {
	nodeBase
	Input RelNode
}

func (*Distinct) relNode() {}

// ---------------------------------------------------------------------------
// Scalar operators
// ---------------------------------------------------------------------------

// VarRef reads a var.
type VarRef struct {
	nodeBase
	Var *Var
}

func (*VarRef) scalar()      {}
func (r *VarRef) Type() Type { return r.Var.Type() }

// Const is a literal. A NULL literal holds ir.Null{}.
type Const struct {
	nodeBase
	Value ir.Value
	Typ   Type
}

func (*Const) scalar()      {}
func (c *Const) Type() Type { return c.Typ }

// IsNull reports whether the constant is the NULL literal.
func (c *Const) IsNull() bool {
	_, ok := c.Value.(ir.Null)
	return ok
}

// Param is a named query parameter.
type Param struct {
	nodeBase
	Name string
	Typ  Type
}

func (*Param) scalar()      {}
func (p *Param) Type() Type { return p.Typ }

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var compareOpNames = [...]string{"=", "<>", "<", "<=", ">", ">="}

func (op CompareOp) String() string { return compareOpNames[op] }

// Negate returns the operator whose result is the two-valued negation.
func (op CompareOp) Negate() CompareOp {
	switch op {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	default:
		return OpLt
	}
}

// Commute returns the operator for swapped operands.
func (op CompareOp) Commute() CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

// Compare compares two operands. NullsHandled marks comparisons whose NULL
// behavior has already been made explicit.
type Compare struct {
	nodeBase
	Op           CompareOp
	Left         Scalar
	Right        Scalar
	NullsHandled bool
}

func (*Compare) scalar() {}
func (c *Compare) Type() Type {
	return BoolType.WithNullable(c.Left.Type().Nullable || c.Right.Type().Nullable)
}

// And is the conjunction of two or more operands.
type And struct {
	nodeBase
	Args []Scalar
}

func (*And) scalar()      {}
func (a *And) Type() Type { return BoolType.WithNullable(anyNullable(a.Args)) }

// Or is the disjunction of two or more operands.
type Or struct {
	nodeBase
	Args []Scalar
}

func (*Or) scalar()      {}
func (o *Or) Type() Type { return BoolType.WithNullable(anyNullable(o.Args)) }

// Not negates its operand.
type Not struct {
	nodeBase
	Operand Scalar
}

func (*Not) scalar()      {}
func (n *Not) Type() Type { return n.Operand.Type() }

// IsNull tests an operand for NULL, or for non-NULL when Negated.
type IsNull struct {
	nodeBase
	Operand Scalar
	Negated bool
}

func (*IsNull) scalar()    {}
func (*IsNull) Type() Type { return BoolType }

// ArithOp is an arithmetic or string operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpConcat
)

var arithOpNames = [...]string{"+", "-", "*", "/", "||"}

func (op ArithOp) String() string { return arithOpNames[op] }

// Arith applies a binary arithmetic or concatenation operator.
type Arith struct {
	nodeBase
	Op    ArithOp
	Left  Scalar
	Right Scalar
	typ   Type
}

func (*Arith) scalar()      {}
func (a *Arith) Type() Type { return a.typ }

// Func calls a named function. Volatile functions may return a different
// value on each evaluation.
type Func struct {
	nodeBase
	Name     string
	Args     []Scalar
	Volatile bool
	typ      Type
}

func (*Func) scalar()      {}
func (f *Func) Type() Type { return f.typ }

func anyNullable(args []Scalar) bool {
	for _, a := range args {
		if a.Type().Nullable {
			return true
		}
	}
	return false
}
