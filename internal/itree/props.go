package itree

import "github.com/cockroachdb/errors"

// Outputs returns the vars n produces. The result is a fresh set the caller
// may modify.
func Outputs(n RelNode) *VarSet {
	switch n := n.(type) {
	case *Scan:
		return n.Cols.Copy()
	case *Filter:
		return Outputs(n.Input)
	case *Project:
		out := n.Passthrough.Copy()
		for _, d := range n.Defs {
			out.Set(d.Var)
		}
		return out
	case *Join:
		out := Outputs(n.Left)
		out.UnionWith(Outputs(n.Right))
		return out
	case *Sort:
		return Outputs(n.Input)
	case *Limit:
		return Outputs(n.Input)
	case *Distinct:
		return Outputs(n.Input)
	}
	panic(errors.AssertionFailedf("unhandled relational node %T", n))
}

// NullableVars returns the output vars of n that may hold NULL: vars of a
// nullable declared type, plus every var from the right side of a left
// outer join.
func NullableVars(n RelNode) *VarSet {
	switch n := n.(type) {
	case *Scan:
		out := n.Cols.Command().NewVarSet()
		for _, v := range n.Vars {
			if v.typ.Nullable {
				out.Set(v)
			}
		}
		return out
	case *Filter:
		return NullableVars(n.Input)
	case *Project:
		in := NullableVars(n.Input)
		out := in.Intersection(n.Passthrough)
		cmd := n.Passthrough.Command()
		for _, d := range n.Defs {
			if d.Var.typ.Nullable || d.Expr.Type().Nullable || cmd.ScalarVars(d.Expr).Intersects(in) {
				out.Set(d.Var)
			}
		}
		return out
	case *Join:
		out := NullableVars(n.Left)
		if n.Kind == LeftOuterJoin {
			out.UnionWith(Outputs(n.Right))
		} else {
			out.UnionWith(NullableVars(n.Right))
		}
		return out
	case *Sort:
		return NullableVars(n.Input)
	case *Limit:
		return NullableVars(n.Input)
	case *Distinct:
		return NullableVars(n.Input)
	}
	panic(errors.AssertionFailedf("unhandled relational node %T", n))
}

// ScalarVars returns the vars referenced anywhere in s.
func (c *Command) ScalarVars(s Scalar) *VarSet {
	out := c.NewVarSet()
	if s != nil {
		WalkScalar(s, func(e Scalar) bool {
			if ref, ok := e.(*VarRef); ok {
				out.Set(ref.Var)
			}
			return true
		})
	}
	return out
}

// WalkScalar visits s and its descendants in pre-order. Returning false
// from fn skips the children of the visited expression.
func WalkScalar(s Scalar, fn func(Scalar) bool) {
	if !fn(s) {
		return
	}
	for _, a := range ScalarArgs(s) {
		WalkScalar(a, fn)
	}
}

// IsVolatile reports whether s calls a volatile function.
func IsVolatile(s Scalar) bool {
	volatile := false
	WalkScalar(s, func(e Scalar) bool {
		if f, ok := e.(*Func); ok && f.Volatile {
			volatile = true
		}
		return !volatile
	})
	return volatile
}

// IsSimple reports whether s is a var reference, a constant or a parameter.
func IsSimple(s Scalar) bool {
	switch s.(type) {
	case *VarRef, *Const, *Param:
		return true
	}
	return false
}

// Walk visits n and its relational descendants in pre-order.
func Walk(n RelNode, fn func(RelNode) bool) {
	if !fn(n) {
		return
	}
	for _, in := range Inputs(n) {
		Walk(in, fn)
	}
}

// Ordering returns the Sort that orders the rows of n, looking through
// operators that preserve row order, or nil when n is unordered.
func Ordering(n RelNode) *Sort {
	for {
		switch t := n.(type) {
		case *Sort:
			return t
		case *Filter:
			n = t.Input
		case *Project:
			n = t.Input
		case *Limit:
			n = t.Input
		default:
			return nil
		}
	}
}
