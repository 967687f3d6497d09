package plan

import (
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
)

// normalizeNulls makes the NULL behavior of filter and join predicates
// explicit. Negations are pushed down to the leaves (De Morgan, comparison
// negation), then comparisons over nullable operands are expanded so that
// the predicate treats NULL like a value:
//
//	a = b    (both nullable)  →  a = b OR (a IS NULL AND b IS NULL)
//	a <> b   (both nullable)  →  (a <> b OR a IS NULL OR b IS NULL) AND (a IS NOT NULL OR b IS NOT NULL)
//	a <> 5   (a nullable)     →  a <> 5 OR a IS NULL
//	NOT a < 5 (a nullable)    →  a >= 5 OR a IS NULL
//	a = NULL                  →  a IS NULL
//
// An operand duplicated by an expansion is evaluated once: volatile
// operands are hoisted into a computed var of a Project below the filter
// (or below the join input that supplies their vars).
func normalizeNulls(st *state) (bool, error) {
	ns := &nullNormalizer{cmd: st.cmd}
	root, err := ns.rel(st.root)
	if err != nil {
		return false, err
	}
	changed := root != st.root
	st.root = root
	return changed, nil
}

type nullNormalizer struct {
	cmd *itree.Command
}

func (ns *nullNormalizer) rel(n itree.RelNode) (itree.RelNode, error) {
	inputs := itree.Inputs(n)
	next := make([]itree.RelNode, len(inputs))
	for i, in := range inputs {
		out, err := ns.rel(in)
		if err != nil {
			return nil, err
		}
		next[i] = out
	}
	n = ns.cmd.WithInputs(n, next...)

	switch n := n.(type) {
	case *itree.Filter:
		return ns.filter(n), nil
	case *itree.Join:
		if n.On != nil {
			return ns.join(n)
		}
	}
	return n, nil
}

func (ns *nullNormalizer) filter(f *itree.Filter) itree.RelNode {
	h := newHoister(ns.cmd, itree.Outputs(f.Input))
	pred := ns.normalize(f.Predicate, false, itree.NullableVars(f.Input), h)
	if pred == f.Predicate {
		return f
	}
	if len(h.defs[0]) == 0 {
		return ns.cmd.NewFilter(f.Input, pred)
	}
	outs := itree.Outputs(f.Input)
	inner := ns.cmd.NewProject(f.Input, outs, h.defs[0])
	return ns.cmd.NewProject(ns.cmd.NewFilter(inner, pred), outs, nil)
}

func (ns *nullNormalizer) join(j *itree.Join) (itree.RelNode, error) {
	nullable := itree.NullableVars(j.Left)
	nullable.UnionWith(itree.NullableVars(j.Right))

	h := newHoister(ns.cmd, itree.Outputs(j.Left), itree.Outputs(j.Right))
	on := ns.normalize(j.On, false, nullable, h)
	if h.err != nil {
		return nil, h.err
	}
	if on == j.On {
		return j, nil
	}
	if len(h.defs[0]) == 0 && len(h.defs[1]) == 0 {
		return ns.cmd.NewJoin(j.Kind, j.Left, j.Right, on), nil
	}

	left, right := j.Left, j.Right
	if len(h.defs[0]) > 0 {
		left = ns.cmd.NewProject(left, itree.Outputs(left), h.defs[0])
	}
	if len(h.defs[1]) > 0 {
		right = ns.cmd.NewProject(right, itree.Outputs(right), h.defs[1])
	}
	joined := ns.cmd.NewJoin(j.Kind, left, right, on)
	return ns.cmd.NewProject(joined, itree.Outputs(j), nil), nil
}

// normalize returns s with negations pushed to the leaves and nullable
// comparisons expanded. It returns s itself when nothing changes.
func (ns *nullNormalizer) normalize(s itree.Scalar, negated bool, nullable *itree.VarSet, h *hoister) itree.Scalar {
	switch e := s.(type) {
	case *itree.Not:
		return ns.normalize(e.Operand, !negated, nullable, h)

	case *itree.And:
		args, same := ns.normalizeAll(e.Args, negated, nullable, h)
		if negated {
			return ns.cmd.NewOr(args...)
		}
		if same {
			return e
		}
		return ns.cmd.NewAnd(args...)

	case *itree.Or:
		args, same := ns.normalizeAll(e.Args, negated, nullable, h)
		if negated {
			return ns.cmd.NewAnd(args...)
		}
		if same {
			return e
		}
		return ns.cmd.NewOr(args...)

	case *itree.Compare:
		return ns.compare(e, negated, nullable, h)

	case *itree.IsNull:
		if negated {
			return ns.cmd.NewIsNull(e.Operand, !e.Negated)
		}
		return e

	case *itree.Const:
		if b, ok := e.Value.(ir.Bool); ok && negated {
			return ns.cmd.NewConst(ir.Bool(!b), itree.BoolType)
		}
		if negated && !e.IsNull() {
			return ns.cmd.NewNot(e)
		}
		return e
	}

	if negated {
		return ns.cmd.NewNot(s)
	}
	return s
}

func (ns *nullNormalizer) normalizeAll(args []itree.Scalar, negated bool, nullable *itree.VarSet, h *hoister) ([]itree.Scalar, bool) {
	out := make([]itree.Scalar, len(args))
	same := true
	for i, a := range args {
		out[i] = ns.normalize(a, negated, nullable, h)
		if out[i] != a {
			same = false
		}
	}
	return out, same
}

func (ns *nullNormalizer) compare(c *itree.Compare, negated bool, nullable *itree.VarSet, h *hoister) itree.Scalar {
	op := c.Op
	if negated {
		op = op.Negate()
	}
	if c.NullsHandled {
		if !negated {
			return c
		}
		return ns.cmd.NewCompare(op, c.Left, c.Right, true)
	}

	l, r := c.Left, c.Right
	lnull, rnull := isNullConst(l), isNullConst(r)
	if lnull || rnull {
		return ns.compareNull(op, l, r, lnull, rnull, negated)
	}

	ln, rn := ns.nullable(l, nullable), ns.nullable(r, nullable)
	switch {
	case !ln && !rn:
		if op == c.Op {
			return c
		}
		return ns.cmd.NewCompare(op, l, r, false)

	case op == itree.OpEq && ln && rn:
		l, r = h.hoist(l, true), h.hoist(r, true)
		return ns.cmd.NewOr(
			ns.cmd.NewCompare(itree.OpEq, l, r, true),
			ns.cmd.NewAnd(ns.cmd.NewIsNull(l, false), ns.cmd.NewIsNull(r, false)),
		)

	case op == itree.OpEq:
		// NULL = x is never true, which already matches two-valued equality.
		if op == c.Op {
			return c
		}
		return ns.cmd.NewCompare(op, l, r, false)

	case op == itree.OpNe && ln && rn:
		l, r = h.hoist(l, true), h.hoist(r, true)
		return ns.cmd.NewAnd(
			ns.cmd.NewOr(
				ns.cmd.NewCompare(itree.OpNe, l, r, true),
				ns.cmd.NewIsNull(l, false),
				ns.cmd.NewIsNull(r, false),
			),
			ns.cmd.NewOr(ns.cmd.NewIsNull(l, true), ns.cmd.NewIsNull(r, true)),
		)

	case op == itree.OpNe:
		if ln {
			l = h.hoist(l, true)
			return ns.cmd.NewOr(ns.cmd.NewCompare(op, l, r, true), ns.cmd.NewIsNull(l, false))
		}
		r = h.hoist(r, true)
		return ns.cmd.NewOr(ns.cmd.NewCompare(op, l, r, true), ns.cmd.NewIsNull(r, false))
	}

	// Ordering comparison. Without negation NULL already behaves as false.
	if !negated {
		return c
	}
	args := []itree.Scalar{nil}
	if ln {
		l = h.hoist(l, true)
		args = append(args, ns.cmd.NewIsNull(l, false))
	}
	if rn {
		r = h.hoist(r, true)
		args = append(args, ns.cmd.NewIsNull(r, false))
	}
	args[0] = ns.cmd.NewCompare(op, l, r, true)
	return ns.cmd.NewOr(args...)
}

// compareNull rewrites a comparison against the NULL literal.
func (ns *nullNormalizer) compareNull(op itree.CompareOp, l, r itree.Scalar, lnull, rnull, negated bool) itree.Scalar {
	other := l
	if lnull {
		other = r
	}
	switch {
	case lnull && rnull && op == itree.OpEq:
		return ns.cmd.NewConst(ir.Bool(true), itree.BoolType)
	case lnull && rnull && op == itree.OpNe:
		return ns.cmd.NewConst(ir.Bool(false), itree.BoolType)
	case lnull && rnull:
	case op == itree.OpEq:
		return ns.cmd.NewIsNull(other, false)
	case op == itree.OpNe:
		return ns.cmd.NewIsNull(other, true)
	}
	// Ordering against NULL is false, so its negation is true.
	return ns.cmd.NewConst(ir.Bool(negated), itree.BoolType)
}

func isNullConst(s itree.Scalar) bool {
	c, ok := s.(*itree.Const)
	return ok && c.IsNull()
}

func (ns *nullNormalizer) nullable(s itree.Scalar, nullable *itree.VarSet) bool {
	if s.Type().Nullable {
		return true
	}
	return ns.cmd.ScalarVars(s).Intersects(nullable)
}

// hoister moves volatile operands into computed vars defined below the
// predicate. sides holds the outputs of each input the predicate sees.
type hoister struct {
	cmd   *itree.Command
	sides []*itree.VarSet
	defs  [][]itree.VarDef
	err   error
}

func newHoister(cmd *itree.Command, sides ...*itree.VarSet) *hoister {
	return &hoister{cmd: cmd, sides: sides, defs: make([][]itree.VarDef, len(sides))}
}

func (h *hoister) hoist(s itree.Scalar, nullable bool) itree.Scalar {
	if !itree.IsVolatile(s) || h.err != nil {
		return s
	}
	vars := h.cmd.ScalarVars(s)
	side := -1
	for i, outs := range h.sides {
		if outs.Subsumes(vars) {
			side = i
			break
		}
	}
	if side < 0 {
		h.err = inputErrorf(ErrVolatileJoinOperand, "", "volatile operand %s references both join inputs", itree.FormatScalar(s))
		return s
	}
	v := h.cmd.NewComputedVar("hoisted", s.Type().WithNullable(nullable))
	h.defs[side] = append(h.defs[side], itree.VarDef{Var: v, Expr: s})
	return h.cmd.NewVarRef(v)
}
