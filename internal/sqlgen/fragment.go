package sqlgen

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
)

// Fragment is a piece of SQL that renders itself for a dialect.
//
// A fragment that returns an error must leave the Writer as it found it
// or be rendered into a scratch Writer; Generate discards all text when
// any fragment fails.
type Fragment interface {
	WriteSQL(w *Writer, d *dialect.Dialect) error
}

// Operator precedence, loosest first.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precAtom = 10
)

type precedencer interface {
	precedence() int
}

func precedenceOf(f Fragment) int {
	if p, ok := f.(precedencer); ok {
		return p.precedence()
	}
	return precAtom
}

func writeParen(w *Writer, d *dialect.Dialect, f Fragment, paren bool) error {
	if !paren {
		return f.WriteSQL(w, d)
	}
	w.Write("(")
	if err := f.WriteSQL(w, d); err != nil {
		return err
	}
	w.Write(")")
	return nil
}

// Render returns f's text for d.
func Render(f Fragment, d *dialect.Dialect) (string, error) {
	w := NewWriter()
	if err := f.WriteSQL(w, d); err != nil {
		return "", err
	}
	return w.String(), nil
}

// Raw is verbatim SQL text.
type Raw string

func (r Raw) WriteSQL(w *Writer, _ *dialect.Dialect) error {
	w.Write(string(r))
	return nil
}

// ColumnRef is a qualified column reference.
type ColumnRef struct {
	Table  string
	Column string
}

func (c *ColumnRef) WriteSQL(w *Writer, d *dialect.Dialect) error {
	if c.Table != "" {
		w.Write(d.QuoteIdent(c.Table))
		w.Write(".")
	}
	w.Write(d.QuoteIdent(c.Column))
	return nil
}

// TableRef names a catalog table in a FROM clause.
type TableRef struct {
	Name  string
	Alias string
}

func (t *TableRef) WriteSQL(w *Writer, d *dialect.Dialect) error {
	w.Write(d.QuoteIdent(t.Name))
	if t.Alias != "" && t.Alias != t.Name {
		w.Write(" AS ")
		w.Write(d.QuoteIdent(t.Alias))
	}
	return nil
}

// Literal is a constant value. Booleans render as values.
type Literal struct {
	Value ir.Value
}

func (l *Literal) WriteSQL(w *Writer, d *dialect.Dialect) error {
	switch v := l.Value.(type) {
	case ir.Null:
		w.Write("NULL")
	case ir.Int:
		w.Write(strconv.FormatInt(int64(v), 10))
	case ir.Decimal:
		w.Write(string(v))
	case ir.String:
		w.Write(d.QuoteString(string(v)))
	case ir.Bool:
		w.Write(d.BoolLiteral(bool(v)))
	case ir.List:
		return d.Unsupported("list literal", "")
	case ir.Object:
		return d.Unsupported("object literal", "")
	default:
		return errors.AssertionFailedf("unexpected literal %T", l.Value)
	}
	return nil
}

// Placeholder references a named query parameter.
type Placeholder struct {
	Name string
}

func (p *Placeholder) WriteSQL(w *Writer, d *dialect.Dialect) error {
	w.Write(d.Placeholder(p.Name, w.Param(p.Name)))
	return nil
}

// Binary is an infix operator.
type Binary struct {
	Op    string
	Prec  int
	Left  Fragment
	Right Fragment
	// Assoc allows an equal-precedence right operand without parentheses.
	Assoc bool
}

func (b *Binary) precedence() int { return b.Prec }

func (b *Binary) WriteSQL(w *Writer, d *dialect.Dialect) error {
	lp := precedenceOf(b.Left)
	// Comparisons do not chain.
	if err := writeParen(w, d, b.Left, lp < b.Prec || (lp == b.Prec && b.Prec == precCompare)); err != nil {
		return err
	}
	w.Write(" " + b.Op + " ")
	rp := precedenceOf(b.Right)
	return writeParen(w, d, b.Right, rp < b.Prec || (rp == b.Prec && !b.Assoc))
}

// Logic is an n-ary AND or OR. A nested Logic of the other connective is
// always parenthesized.
type Logic struct {
	Or   bool
	Args []Fragment
}

func (l *Logic) precedence() int {
	if len(l.Args) == 1 {
		return precedenceOf(l.Args[0])
	}
	if l.Or {
		return precOr
	}
	return precAnd
}

func (l *Logic) WriteSQL(w *Writer, d *dialect.Dialect) error {
	op := " AND "
	if l.Or {
		op = " OR "
	}
	prec := l.precedence()
	for i, a := range l.Args {
		if i > 0 {
			w.Write(op)
		}
		paren := precedenceOf(a) < prec
		if inner, ok := a.(*Logic); ok && len(inner.Args) > 1 && inner.Or != l.Or {
			paren = true
		}
		if err := writeParen(w, d, a, paren && len(l.Args) > 1); err != nil {
			return err
		}
	}
	return nil
}

// Not negates a predicate. Anything but an atom is parenthesized.
type Not struct {
	Arg Fragment
}

func (*Not) precedence() int { return precNot }

func (n *Not) WriteSQL(w *Writer, d *dialect.Dialect) error {
	w.Write("NOT ")
	return writeParen(w, d, n.Arg, precedenceOf(n.Arg) < precAtom)
}

// IsNull tests an operand against NULL.
type IsNull struct {
	Arg     Fragment
	Negated bool
}

func (*IsNull) precedence() int { return precCompare }

func (n *IsNull) WriteSQL(w *Writer, d *dialect.Dialect) error {
	if err := writeParen(w, d, n.Arg, precedenceOf(n.Arg) < precAdd); err != nil {
		return err
	}
	if n.Negated {
		w.Write(" IS NOT NULL")
	} else {
		w.Write(" IS NULL")
	}
	return nil
}

// Call is a function call.
type Call struct {
	Name string
	Args []Fragment
}

func (c *Call) WriteSQL(w *Writer, d *dialect.Dialect) error {
	w.Write(c.Name)
	w.Write("(")
	for i, a := range c.Args {
		if i > 0 {
			w.Write(", ")
		}
		if err := a.WriteSQL(w, d); err != nil {
			return err
		}
	}
	w.Write(")")
	return nil
}

// Case turns a predicate into a value.
type Case struct {
	When Fragment
	Then Fragment
	Else Fragment
}

func (c *Case) WriteSQL(w *Writer, d *dialect.Dialect) error {
	w.Write("CASE WHEN ")
	if err := c.When.WriteSQL(w, d); err != nil {
		return err
	}
	w.Write(" THEN ")
	if err := c.Then.WriteSQL(w, d); err != nil {
		return err
	}
	w.Write(" ELSE ")
	if err := c.Else.WriteSQL(w, d); err != nil {
		return err
	}
	w.Write(" END")
	return nil
}

// TopClause is the SQL Server row-limiting modifier. It renders with a
// trailing space so it can sit directly before the select list.
type TopClause struct {
	Count    Fragment
	WithTies bool
}

func (t *TopClause) WriteSQL(w *Writer, d *dialect.Dialect) error {
	if !d.UsesTop() {
		return d.Unsupported("TOP", "")
	}
	if t.WithTies && !d.SupportsWithTies() {
		return d.Unsupported("WITH TIES", "")
	}
	// The count goes to a scratch writer so a failure leaves w untouched
	// and WITH TIES is only written after a count that rendered.
	count := w.Scratch()
	if err := t.Count.WriteSQL(count, d); err != nil {
		return err
	}
	text := count.String()
	if strings.TrimSpace(text) == "" {
		return errors.AssertionFailedf("TOP count rendered empty")
	}
	w.Write("TOP ")
	if d.TopParenthesized() {
		w.Write("(" + text + ") ")
	} else {
		w.Write(text + " ")
	}
	if t.WithTies {
		w.Write("WITH TIES ")
	}
	return nil
}

// LimitClause is the LIMIT row-limiting clause.
type LimitClause struct {
	Count Fragment
}

func (l *LimitClause) WriteSQL(w *Writer, d *dialect.Dialect) error {
	if d.UsesTop() {
		return d.Unsupported("LIMIT", "")
	}
	count := w.Scratch()
	if err := l.Count.WriteSQL(count, d); err != nil {
		return err
	}
	w.Write("LIMIT " + count.String())
	return nil
}

// FetchClause is the standard FETCH FIRST clause.
type FetchClause struct {
	Count    Fragment
	WithTies bool
}

func (f *FetchClause) WriteSQL(w *Writer, d *dialect.Dialect) error {
	if d.UsesTop() {
		return d.Unsupported("FETCH FIRST", "")
	}
	if f.WithTies && !d.SupportsWithTies() {
		return d.Unsupported("WITH TIES", "")
	}
	count := w.Scratch()
	if err := f.Count.WriteSQL(count, d); err != nil {
		return err
	}
	w.Write("FETCH FIRST " + count.String() + " ROWS ")
	if f.WithTies {
		w.Write("WITH TIES")
	} else {
		w.Write("ONLY")
	}
	return nil
}
