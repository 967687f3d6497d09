package sqlgen

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
)

// Column describes one column of the generated result set.
type Column struct {
	Name string
	Type itree.Type
}

// Statement is generated SQL with its result columns and the names of the
// parameters it references, in placeholder ordinal order.
type Statement struct {
	SQL     string
	Columns []Column
	Params  []string
}

// Generate renders the tree rooted at root as one SELECT statement whose
// select list follows the leaves of shape. Limits must already be lowered
// to a form d supports. On error no text is returned.
func Generate(cmd *itree.Command, root itree.RelNode, shape colmap.ColumnMap, d *dialect.Dialect) (*Statement, error) {
	g := &generator{cmd: cmd, d: d, aliases: nameSet{}}
	b, err := g.rel(root)
	if err != nil {
		return nil, err
	}

	leaves := colmap.Leaves(shape)
	if len(leaves) == 0 {
		return nil, errors.AssertionFailedf("result shape %q has no columns", shape.Name())
	}
	if b.distinct && !coversOutputs(leaves, b.outputs) {
		// DISTINCT applies to the select list, so extra outputs need an
		// outer query to drop them.
		if b, err = g.wrap(b); err != nil {
			return nil, err
		}
	}

	names := nameSet{}
	items := make([]SelectItem, 0, len(leaves))
	cols := make([]Column, 0, len(leaves))
	for _, leaf := range leaves {
		expr, ok := b.scope[leaf.Var().ID()]
		if !ok {
			return nil, errors.AssertionFailedf("result column %q reads %s, which is not in scope", leaf.Name(), leaf.Var())
		}
		alias := names.add(leaf.Name())
		items = append(items, SelectItem{Expr: expr, Alias: alias})
		cols = append(cols, Column{Name: alias, Type: leaf.Type()})
	}
	sel, err := g.finish(b, items)
	if err != nil {
		return nil, err
	}

	w := NewWriter()
	if err := sel.WriteSQL(w, d); err != nil {
		return nil, err
	}
	return &Statement{SQL: w.String(), Columns: cols, Params: w.Params()}, nil
}

func coversOutputs(leaves []*colmap.VarRef, outputs []*itree.Var) bool {
	seen := make(map[itree.VarID]bool, len(leaves))
	for _, l := range leaves {
		seen[l.Var().ID()] = true
	}
	for _, v := range outputs {
		if !seen[v.ID()] {
			return false
		}
	}
	return true
}

// block is a SELECT under construction. scope maps each var visible in
// the block to the fragment that reads it.
type block struct {
	distinct bool
	from     []FromItem
	where    []Fragment
	order    []itree.SortKey
	limit    *itree.Limit
	outputs  []*itree.Var
	scope    map[itree.VarID]Fragment
	computed map[itree.VarID]bool
	volatile map[itree.VarID]bool
}

func newBlock() *block {
	return &block{
		scope:    map[itree.VarID]Fragment{},
		computed: map[itree.VarID]bool{},
		volatile: map[itree.VarID]bool{},
	}
}

// refsVolatile reports whether vars reads a volatile computed var of b.
// Inlining such a var a second time would evaluate it twice.
func (b *block) refsVolatile(vars *itree.VarSet) bool {
	for _, v := range vars.Vars() {
		if b.volatile[v.ID()] {
			return true
		}
	}
	return false
}

func (b *block) plainTable() bool {
	if len(b.from) != 1 || b.distinct || b.limit != nil || len(b.computed) > 0 {
		return false
	}
	_, ok := b.from[0].Source.(*TableRef)
	return ok
}

type generator struct {
	cmd     *itree.Command
	d       *dialect.Dialect
	aliases nameSet
	derived int
}

func (g *generator) rel(n itree.RelNode) (*block, error) {
	switch n := n.(type) {
	case *itree.Scan:
		b := newBlock()
		alias := g.aliases.add(n.Alias)
		b.from = []FromItem{{Source: &TableRef{Name: n.Table.Name, Alias: alias}}}
		for _, v := range n.Vars {
			b.scope[v.ID()] = &ColumnRef{Table: alias, Column: v.ColumnName()}
		}
		b.outputs = itree.Outputs(n).Vars()
		return b, nil

	case *itree.Filter:
		b, err := g.rel(n.Input)
		if err != nil {
			return nil, err
		}
		if b.limit != nil || b.distinct || b.refsVolatile(g.cmd.ScalarVars(n.Predicate)) {
			if b, err = g.wrap(b); err != nil {
				return nil, err
			}
		}
		p, err := g.pred(n.Predicate, b.scope)
		if err != nil {
			return nil, err
		}
		b.where = append(b.where, p)
		return b, nil

	case *itree.Project:
		b, err := g.rel(n.Input)
		if err != nil {
			return nil, err
		}
		refs := g.cmd.NewVarSet()
		for _, d := range n.Defs {
			refs.UnionWith(g.cmd.ScalarVars(d.Expr))
		}
		if b.distinct || b.refsVolatile(refs) {
			if b, err = g.wrap(b); err != nil {
				return nil, err
			}
		}
		for _, d := range n.Defs {
			f, err := g.value(d.Expr, b.scope)
			if err != nil {
				return nil, err
			}
			b.scope[d.Var.ID()] = f
			b.computed[d.Var.ID()] = true
			if itree.IsVolatile(d.Expr) {
				b.volatile[d.Var.ID()] = true
			}
		}
		b.outputs = itree.Outputs(n).Vars()
		return b, nil

	case *itree.Join:
		return g.join(n)

	case *itree.Sort:
		b, err := g.rel(n.Input)
		if err != nil {
			return nil, err
		}
		keys := g.cmd.NewVarSet()
		for _, k := range n.Keys {
			keys.Set(k.Var)
		}
		if b.limit != nil || b.refsVolatile(keys) {
			if b, err = g.wrap(b); err != nil {
				return nil, err
			}
		}
		b.order = n.Keys
		return b, nil

	case *itree.Limit:
		b, err := g.rel(n.Input)
		if err != nil {
			return nil, err
		}
		if b.limit != nil {
			if b, err = g.wrap(b); err != nil {
				return nil, err
			}
		}
		b.limit = n
		return b, nil

	case *itree.Distinct:
		b, err := g.rel(n.Input)
		if err != nil {
			return nil, err
		}
		if b.limit != nil || b.distinct {
			if b, err = g.wrap(b); err != nil {
				return nil, err
			}
		}
		b.distinct = true
		b.order = nil
		return b, nil
	}
	return nil, errors.AssertionFailedf("unexpected relational node %T", n)
}

func (g *generator) join(n *itree.Join) (*block, error) {
	onVars := g.cmd.NewVarSet()
	if n.On != nil {
		onVars = g.cmd.ScalarVars(n.On)
	}

	b, err := g.rel(n.Left)
	if err != nil {
		return nil, err
	}
	if b.limit != nil || b.distinct || b.refsVolatile(onVars) {
		if b, err = g.wrap(b); err != nil {
			return nil, err
		}
	}
	b.order = nil

	right, err := g.rel(n.Right)
	if err != nil {
		return nil, err
	}
	var extra []Fragment
	if right.plainTable() {
		extra = right.where
	} else if right, err = g.wrap(right); err != nil {
		return nil, err
	}
	for id, f := range right.scope {
		b.scope[id] = f
	}

	item := FromItem{Source: right.from[0].Source}
	switch n.Kind {
	case itree.InnerJoin:
		item.Join = "INNER JOIN"
	case itree.LeftOuterJoin:
		item.Join = "LEFT JOIN"
	case itree.CrossJoin:
		item.Join = "CROSS JOIN"
		// A cross join has no ON clause; filtering its right input
		// before or after the join is the same.
		b.where = append(b.where, extra...)
		extra = nil
	}
	if n.On != nil {
		on, err := g.pred(n.On, b.scope)
		if err != nil {
			return nil, err
		}
		if len(extra) > 0 {
			on = &Logic{Args: append([]Fragment{on}, extra...)}
		}
		item.On = on
	}
	b.from = append(b.from, item)
	b.outputs = itree.Outputs(n).Vars()
	return b, nil
}

// wrap turns b into a derived table and returns a block selecting from it.
// Ordering keys that are not outputs are carried as extra columns so the
// outer block can keep ordering by them.
func (g *generator) wrap(b *block) (*block, error) {
	alias := g.derivedAlias()
	vars := append([]*itree.Var(nil), b.outputs...)
	for _, k := range b.order {
		if !containsVar(vars, k.Var) {
			vars = append(vars, k.Var)
		}
	}

	outer := newBlock()
	names := nameSet{}
	items := make([]SelectItem, 0, len(vars))
	for _, v := range vars {
		expr, ok := b.scope[v.ID()]
		if !ok {
			return nil, errors.AssertionFailedf("%s is not in scope", v)
		}
		col := names.add(v.Name())
		items = append(items, SelectItem{Expr: expr, Alias: col})
		outer.scope[v.ID()] = &ColumnRef{Table: alias, Column: col}
	}

	inner := *b
	if inner.limit == nil {
		// An ORDER BY without a row limit means nothing inside a derived
		// table, and SQL Server rejects it.
		inner.order = nil
	}
	sel, err := g.finish(&inner, items)
	if err != nil {
		return nil, err
	}
	outer.from = []FromItem{{Source: &Derived{Query: sel, Alias: alias}}}
	outer.order = b.order
	outer.outputs = b.outputs
	return outer, nil
}

func containsVar(vars []*itree.Var, v *itree.Var) bool {
	for _, x := range vars {
		if x.ID() == v.ID() {
			return true
		}
	}
	return false
}

func (g *generator) derivedAlias() string {
	for {
		a := fmt.Sprintf("t%d", g.derived)
		g.derived++
		if !g.aliases.has(a) {
			return g.aliases.add(a)
		}
	}
}

// finish builds the Select for b with the given select list.
func (g *generator) finish(b *block, items []SelectItem) (*Select, error) {
	sel := &Select{
		Distinct: b.distinct,
		Items:    items,
		From:     b.from,
		Where:    b.where,
	}
	for _, k := range b.order {
		expr, ok := b.scope[k.Var.ID()]
		if !ok {
			return nil, errors.AssertionFailedf("sort key %s is not in scope", k.Var)
		}
		sel.OrderBy = append(sel.OrderBy, OrderItem{Expr: expr, Desc: k.Desc})
	}
	if b.limit != nil {
		l, err := g.limitClause(b.limit, len(sel.OrderBy) > 0)
		if err != nil {
			return nil, err
		}
		sel.Limit = l
	}
	return sel, nil
}

func (g *generator) limitClause(l *itree.Limit, ordered bool) (Fragment, error) {
	var count Fragment
	switch c := l.Count.(type) {
	case *itree.Const:
		count = &Literal{Value: c.Value}
	case *itree.Param:
		count = &Placeholder{Name: c.Name}
	default:
		return nil, errors.AssertionFailedf("limit count is %T", l.Count)
	}
	if l.WithTies && !ordered {
		return nil, errors.AssertionFailedf("WITH TIES limit has no ordering")
	}
	switch l.Form {
	case itree.LimitTop:
		return &TopClause{Count: count, WithTies: l.WithTies}, nil
	case itree.LimitLimit:
		if l.WithTies {
			return nil, g.d.Unsupported("WITH TIES", "LIMIT cannot keep ties")
		}
		return &LimitClause{Count: count}, nil
	case itree.LimitFetch:
		return &FetchClause{Count: count, WithTies: l.WithTies}, nil
	}
	return nil, errors.AssertionFailedf("limit %s has not been lowered", l.Form)
}

// value renders s where a value is expected.
func (g *generator) value(s itree.Scalar, scope map[itree.VarID]Fragment) (Fragment, error) {
	switch s := s.(type) {
	case *itree.VarRef:
		f, ok := scope[s.Var.ID()]
		if !ok {
			return nil, errors.AssertionFailedf("%s is not in scope", s.Var)
		}
		return f, nil
	case *itree.Const:
		return &Literal{Value: s.Value}, nil
	case *itree.Param:
		return &Placeholder{Name: s.Name}, nil
	case *itree.Arith:
		l, err := g.value(s.Left, scope)
		if err != nil {
			return nil, err
		}
		r, err := g.value(s.Right, scope)
		if err != nil {
			return nil, err
		}
		b := &Binary{Op: s.Op.String(), Prec: precAdd, Left: l, Right: r}
		switch s.Op {
		case itree.OpAdd:
			b.Assoc = true
		case itree.OpMul:
			b.Prec, b.Assoc = precMul, true
		case itree.OpDiv:
			b.Prec = precMul
		case itree.OpConcat:
			b.Op, b.Assoc = g.d.ConcatOp(), true
		}
		return b, nil
	case *itree.Func:
		args := make([]Fragment, len(s.Args))
		for i, a := range s.Args {
			f, err := g.value(a, scope)
			if err != nil {
				return nil, err
			}
			args[i] = f
		}
		return &Call{Name: s.Name, Args: args}, nil
	case *itree.Compare, *itree.And, *itree.Or, *itree.Not, *itree.IsNull:
		p, err := g.pred(s, scope)
		if err != nil {
			return nil, err
		}
		if g.d.HasBooleanValues() {
			return p, nil
		}
		return &Case{When: p, Then: Raw(g.d.BoolLiteral(true)), Else: Raw(g.d.BoolLiteral(false))}, nil
	}
	return nil, errors.AssertionFailedf("unexpected scalar %T", s)
}

// pred renders s where a predicate is expected.
func (g *generator) pred(s itree.Scalar, scope map[itree.VarID]Fragment) (Fragment, error) {
	switch s := s.(type) {
	case *itree.Compare:
		l, err := g.value(s.Left, scope)
		if err != nil {
			return nil, err
		}
		r, err := g.value(s.Right, scope)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: s.Op.String(), Prec: precCompare, Left: l, Right: r}, nil
	case *itree.And:
		return g.logic(false, s.Args, scope)
	case *itree.Or:
		return g.logic(true, s.Args, scope)
	case *itree.Not:
		a, err := g.pred(s.Operand, scope)
		if err != nil {
			return nil, err
		}
		return &Not{Arg: a}, nil
	case *itree.IsNull:
		a, err := g.value(s.Operand, scope)
		if err != nil {
			return nil, err
		}
		return &IsNull{Arg: a, Negated: s.Negated}, nil
	case *itree.Const:
		if b, ok := s.Value.(ir.Bool); ok && !g.d.HasBooleanValues() {
			right := Raw("0")
			if b {
				right = Raw("1")
			}
			return &Binary{Op: "=", Prec: precCompare, Left: Raw("1"), Right: right}, nil
		}
	}
	v, err := g.value(s, scope)
	if err != nil {
		return nil, err
	}
	if g.d.HasBooleanValues() {
		return v, nil
	}
	return &Binary{Op: "=", Prec: precCompare, Left: v, Right: Raw("1")}, nil
}

func (g *generator) logic(or bool, args []itree.Scalar, scope map[itree.VarID]Fragment) (Fragment, error) {
	out := make([]Fragment, len(args))
	for i, a := range args {
		f, err := g.pred(a, scope)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return &Logic{Or: or, Args: out}, nil
}

// nameSet hands out unique names, suffixing repeats with _2, _3 and so on.
type nameSet map[string]bool

func (s nameSet) has(name string) bool { return s[name] }

func (s nameSet) add(name string) string {
	if !s[name] {
		s[name] = true
		return name
	}
	for i := 2; ; i++ {
		c := fmt.Sprintf("%s_%d", name, i)
		if !s[c] {
			s[c] = true
			return c
		}
	}
}
