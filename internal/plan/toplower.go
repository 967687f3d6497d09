package plan

import (
	"fmt"

	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
)

// lowerTop prepares row limits and orderings for emission:
//
//   - each Limit gets the form the dialect writes it in: TOP, LIMIT, or
//     FETCH FIRST when ties must be kept outside SQL Server
//   - literal counts become parameters when the dialect allows it and
//     ParameterizeLimits is set; parameter counts are rejected where the
//     dialect needs a literal
//   - a Sort whose order cannot be observed (below a join, a distinct, or
//     another sort, without a limit in between) is dropped
//   - an ordered Distinct over a Sort becomes a Sort over the Distinct, so
//     the ordering is applied last
func lowerTop(st *state) (bool, error) {
	tl := &topLowerer{st: st, d: st.dialect}
	root, err := tl.rel(st.root, true)
	if err != nil {
		return false, err
	}
	changed := root != st.root
	st.root = root
	return changed, nil
}

type topLowerer struct {
	st *state
	d  *dialect.Dialect
}

// rel lowers n. ordered reports whether the row order of n is observable.
func (tl *topLowerer) rel(n itree.RelNode, ordered bool) (itree.RelNode, error) {
	cmd := tl.st.cmd
	switch n := n.(type) {
	case *itree.Scan:
		return n, nil

	case *itree.Filter, *itree.Project:
		in, err := tl.rel(itree.Inputs(n)[0], ordered)
		if err != nil {
			return nil, err
		}
		return cmd.WithInputs(n, in), nil

	case *itree.Join:
		left, err := tl.rel(n.Left, false)
		if err != nil {
			return nil, err
		}
		right, err := tl.rel(n.Right, false)
		if err != nil {
			return nil, err
		}
		return cmd.WithInputs(n, left, right), nil

	case *itree.Sort:
		in, err := tl.rel(n.Input, false)
		if err != nil {
			return nil, err
		}
		if !ordered {
			return in, nil
		}
		return cmd.WithInputs(n, in), nil

	case *itree.Distinct:
		if s, ok := n.Input.(*itree.Sort); ok && ordered {
			swapped := cmd.NewSort(cmd.NewDistinct(s.Input), s.Keys)
			return tl.rel(swapped, ordered)
		}
		in, err := tl.rel(n.Input, false)
		if err != nil {
			return nil, err
		}
		return cmd.WithInputs(n, in), nil

	case *itree.Limit:
		return tl.limit(n)
	}
	return n, nil
}

func (tl *topLowerer) limit(n *itree.Limit) (itree.RelNode, error) {
	cmd := tl.st.cmd
	in, err := tl.rel(n.Input, true)
	if err != nil {
		return nil, err
	}
	if n.WithTies && itree.Ordering(in) == nil {
		return nil, inputErrorf(ErrTiesWithoutOrder, "", "WITH TIES requires an ordered input")
	}

	var form itree.LimitForm
	switch {
	case tl.d.UsesTop():
		form = itree.LimitTop
	case n.WithTies && tl.d.SupportsWithTies():
		form = itree.LimitFetch
	case n.WithTies:
		return nil, tl.d.Unsupported("WITH TIES", "")
	default:
		form = itree.LimitLimit
	}

	count := n.Count
	switch c := n.Count.(type) {
	case *itree.Param:
		if !tl.d.SupportsParameterizedLimit() {
			return nil, tl.d.Unsupported("parameterized row limit", fmt.Sprintf("parameter %q must be a literal", c.Name))
		}
	case *itree.Const:
		if tl.d.ParameterizeLimits && tl.d.SupportsParameterizedLimit() {
			count = tl.st.addParam("limit", itree.IntType, c.Value)
		}
	}

	if in == n.Input && count == n.Count && form == n.Form {
		return n, nil
	}
	return cmd.NewLimit(in, count, n.WithTies, form), nil
}

// addParam registers a generated parameter with a fixed value and returns
// a reference to it. Names are made unique against existing parameters.
func (st *state) addParam(base string, typ itree.Type, value ir.Value) *itree.Param {
	name := base
	for i := 2; st.hasParam(name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	st.params = append(st.params, Param{Name: name, Type: typ, Value: value})
	return st.cmd.NewParam(name, typ)
}

func (st *state) hasParam(name string) bool {
	for _, p := range st.params {
		if p.Name == name {
			return true
		}
	}
	return false
}
