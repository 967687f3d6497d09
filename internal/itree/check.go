package itree

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/qplan/internal/ir"
)

// Check verifies the structural invariants of the tree rooted at root:
//   - every var belongs to cmd
//   - every var a node references is produced by its input
//   - Project passthrough vars come from the input and definitions are new
//   - Limit counts are non-negative integer constants or parameters
//   - Sort has at least one key and a lowered WITH TIES limit is ordered
//
// On failure it returns the offending node and an assertion failure.
func Check(cmd *Command, root RelNode) (Node, error) {
	ck := checker{cmd: cmd, defined: cmd.NewVarSet()}
	if _, err := ck.rel(root); err != nil {
		return ck.bad, err
	}
	return nil, nil
}

type checker struct {
	cmd     *Command
	defined *VarSet
	bad     Node
}

func (ck *checker) fail(n Node, format string, args ...any) error {
	ck.bad = n
	return errors.AssertionFailedf(format, args...)
}

// rel checks n and returns its outputs.
func (ck *checker) rel(n RelNode) (*VarSet, error) {
	if n == nil {
		return nil, errors.AssertionFailedf("nil relational node")
	}
	switch n := n.(type) {
	case *Scan:
		if len(n.Vars) == 0 {
			return nil, ck.fail(n, "scan of %s reads no columns", n.Table.Name)
		}
		for _, v := range n.Vars {
			if !ck.cmd.Owns(v) {
				return nil, ck.fail(n, "scan var %s belongs to a different command", v)
			}
			if v.table != n.Table {
				return nil, ck.fail(n, "scan var %s is not a column of %s", v, n.Table.Name)
			}
			if err := ck.define(n, v); err != nil {
				return nil, err
			}
		}
		if n.Cols.Len() != len(n.Vars) {
			return nil, ck.fail(n, "scan column set out of sync with vars")
		}
		return n.Cols.Copy(), nil

	case *Filter:
		in, err := ck.rel(n.Input)
		if err != nil {
			return nil, err
		}
		if err := ck.scalar(n, n.Predicate, in); err != nil {
			return nil, err
		}
		return in, nil

	case *Project:
		in, err := ck.rel(n.Input)
		if err != nil {
			return nil, err
		}
		if n.Passthrough.Command() != ck.cmd {
			return nil, ck.fail(n, "passthrough set belongs to a different command")
		}
		if !in.Subsumes(n.Passthrough) {
			return nil, ck.fail(n, "passthrough %s not produced by input %s", n.Passthrough, in)
		}
		out := n.Passthrough.Copy()
		for _, d := range n.Defs {
			if !ck.cmd.Owns(d.Var) {
				return nil, ck.fail(n, "defined var %s belongs to a different command", d.Var)
			}
			if err := ck.scalar(n, d.Expr, in); err != nil {
				return nil, err
			}
			if err := ck.define(n, d.Var); err != nil {
				return nil, err
			}
			out.Set(d.Var)
		}
		if out.Empty() {
			return nil, ck.fail(n, "project produces no vars")
		}
		return out, nil

	case *Join:
		left, err := ck.rel(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := ck.rel(n.Right)
		if err != nil {
			return nil, err
		}
		if left.Intersects(right) {
			return nil, ck.fail(n, "join inputs share vars %s", left.Intersection(right))
		}
		both := left.Union(right)
		if n.Kind == CrossJoin {
			if n.On != nil {
				return nil, ck.fail(n, "cross join with a condition")
			}
		} else if n.On == nil {
			return nil, ck.fail(n, "%s join without a condition", n.Kind)
		} else if err := ck.scalar(n, n.On, both); err != nil {
			return nil, err
		}
		return both, nil

	case *Sort:
		in, err := ck.rel(n.Input)
		if err != nil {
			return nil, err
		}
		if len(n.Keys) == 0 {
			return nil, ck.fail(n, "sort without keys")
		}
		for _, k := range n.Keys {
			if !ck.cmd.Owns(k.Var) || !in.Contains(k.Var) {
				return nil, ck.fail(n, "sort key %s not produced by input", k.Var)
			}
		}
		return in, nil

	case *Limit:
		in, err := ck.rel(n.Input)
		if err != nil {
			return nil, err
		}
		switch c := n.Count.(type) {
		case *Const:
			i, ok := c.Value.(ir.Int)
			if !ok || i < 0 {
				return nil, ck.fail(n, "limit count %s is not a non-negative integer", ir.Describe(c.Value))
			}
		case *Param:
		default:
			return nil, ck.fail(n, "limit count must be a constant or parameter, got %T", n.Count)
		}
		if n.WithTies && n.Form != LimitUnlowered && Ordering(n.Input) == nil {
			return nil, ck.fail(n, "WITH TIES over an unordered input")
		}
		return in, nil

	case *Distinct:
		return ck.rel(n.Input)
	}
	return nil, ck.fail(n, "unhandled relational node %T", n)
}

func (ck *checker) define(n Node, v *Var) error {
	if ck.defined.Contains(v) {
		return ck.fail(n, "var %s defined more than once", v)
	}
	ck.defined.Set(v)
	return nil
}

func (ck *checker) scalar(owner Node, s Scalar, scope *VarSet) error {
	if s == nil {
		return ck.fail(owner, "nil scalar")
	}
	var err error
	WalkScalar(s, func(e Scalar) bool {
		if err != nil {
			return false
		}
		if ref, ok := e.(*VarRef); ok {
			if !ck.cmd.Owns(ref.Var) {
				err = ck.fail(owner, "reference to %s from a different command", ref.Var)
			} else if !scope.Contains(ref.Var) {
				err = ck.fail(owner, "reference to %s not produced by input %s", ref.Var, scope)
			}
		}
		return true
	})
	return err
}
