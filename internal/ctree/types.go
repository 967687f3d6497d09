package ctree

import "github.com/roach88/qplan/internal/ir"

// Tree is one compilation unit.
type Tree struct {
	Catalog []TableDef
	Query   Query

	// Shape describes the result columns. Nil means every output column of
	// Query, in order, under its own name.
	Shape *Shape
}

// TableDef declares a catalog table.
type TableDef struct {
	Name        string
	Columns     []ColumnDef
	Key         []string
	ForeignKeys []ForeignKeyDef
}

// ColumnDef declares a column. Type is a primitive type name ("int",
// "string", ...). A non-empty Enum makes the column an enum of that name
// stored as Type.
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
	Enum     string
}

// ForeignKeyDef declares that Columns reference the key RefColumns of
// RefTable.
type ForeignKeyDef struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Table returns the named table definition.
func (t *Tree) Table(name string) (*TableDef, bool) {
	for i := range t.Catalog {
		if t.Catalog[i].Name == name {
			return &t.Catalog[i], true
		}
	}
	return nil, false
}

// Query is a relational operator of the command tree.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Scan reads a catalog table. As names the source for column references
// and defaults to the table name.
type Scan struct {
	Table string
	As    string
}

// Source returns the name column references use for this scan.
func (s *Scan) Source() string {
	if s.As != "" {
		return s.As
	}
	return s.Table
}

func (*Scan) queryNode() {}

// Filter keeps rows where Where is true.
type Filter struct {
	Input Query
	Where Expr
}

func (*Filter) queryNode() {}

// ProjectColumn is one output column of a Project.
type ProjectColumn struct {
	Name string
	Expr Expr
}

// Project replaces its input's columns with Columns. After a Project,
// columns are referenced by their Name, qualified with As when set.
type Project struct {
	Input   Query
	As      string
	Columns []ProjectColumn
}

func (*Project) queryNode() {}

// JoinKind values.
const (
	JoinInner = "inner"
	JoinLeft  = "left"
	JoinCross = "cross"
)

// Join combines two inputs. On is nil for a cross join.
type Join struct {
	Kind  string
	Left  Query
	Right Query
	On    Expr
}

func (*Join) queryNode() {}

// SortKey is one ordering column.
type SortKey struct {
	Column *ColumnRef
	Desc   bool
}

// Sort orders its input.
type Sort struct {
	Input Query
	Keys  []SortKey
}

func (*Sort) queryNode() {}

// Limit keeps the first Count rows. Count is a *Literal or a *Param.
type Limit struct {
	Input    Query
	Count    Expr
	WithTies bool
}

func (*Limit) queryNode() {}

// Distinct removes duplicate rows.
type Distinct struct {
	Input Query
}

func (*Distinct) queryNode() {}

// Expr is a scalar expression of the command tree.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// ColumnRef references a column of the current input. An empty Source
// matches any source, provided the column name is unambiguous.
type ColumnRef struct {
	Source string
	Column string
}

// Ref is shorthand for a ColumnRef.
func Ref(source, column string) *ColumnRef {
	return &ColumnRef{Source: source, Column: column}
}

func (r *ColumnRef) String() string {
	if r.Source == "" {
		return r.Column
	}
	return r.Source + "." + r.Column
}

func (*ColumnRef) exprNode() {}

// Literal is a constant. Type is required for a NULL literal and optional
// otherwise.
type Literal struct {
	Value ir.Value
	Type  string
}

func (*Literal) exprNode() {}

// Param is a named query parameter of the given type.
type Param struct {
	Name string
	Type string
}

func (*Param) exprNode() {}

// Comparison operators.
const (
	OpEq = "="
	OpNe = "<>"
	OpLt = "<"
	OpLe = "<="
	OpGt = ">"
	OpGe = ">="
)

// Compare compares two expressions.
type Compare struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*Compare) exprNode() {}

// And is true when every argument is true.
type And struct {
	Args []Expr
}

func (*And) exprNode() {}

// Or is true when any argument is true.
type Or struct {
	Args []Expr
}

func (*Or) exprNode() {}

// Not negates its argument.
type Not struct {
	Arg Expr
}

func (*Not) exprNode() {}

// IsNull tests its argument for NULL, or for non-NULL when Negated.
type IsNull struct {
	Arg     Expr
	Negated bool
}

func (*IsNull) exprNode() {}

// Arithmetic operators.
const (
	OpAdd    = "+"
	OpSub    = "-"
	OpMul    = "*"
	OpDiv    = "/"
	OpConcat = "||"
)

// Arith applies a binary arithmetic or concatenation operator.
type Arith struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*Arith) exprNode() {}

// Call invokes a function returning Type. Volatile calls may return a
// different value each time they are evaluated.
type Call struct {
	Func     string
	Args     []Expr
	Type     string
	Volatile bool
}

func (*Call) exprNode() {}

// Shape describes the materialized result.
type Shape struct {
	// Name of the row collection; defaults to "rows".
	Name    string
	Columns []ShapeColumn

	// Keys identify rows; optional.
	Keys []*ColumnRef
}

// ShapeColumn is a result column: either a column reference or a record of
// nested Fields. Record names the record type of a column with Fields.
type ShapeColumn struct {
	Name   string
	Column *ColumnRef
	Fields []ShapeColumn
	Record string
}
