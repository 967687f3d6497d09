package itree

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/qplan/internal/ir"
)

// NewScan builds a scan of tab reading vars, which must be column vars of
// tab.
func (c *Command) NewScan(tab *Table, alias string, vars []*Var) *Scan {
	for _, v := range vars {
		c.mustOwn(v)
		if v.table != tab {
			panic(errors.AssertionFailedf("var %s does not belong to table %s", v, tab.Name))
		}
	}
	return &Scan{
		nodeBase: nodeBase{id: c.nextNodeID()},
		Table:    tab,
		Alias:    alias,
		Vars:     append([]*Var(nil), vars...),
		Cols:     c.NewVarSet(vars...),
	}
}

func (c *Command) NewFilter(input RelNode, pred Scalar) *Filter {
	return &Filter{nodeBase: nodeBase{id: c.nextNodeID()}, Input: input, Predicate: pred}
}

func (c *Command) NewProject(input RelNode, passthrough *VarSet, defs []VarDef) *Project {
	for _, d := range defs {
		c.mustOwn(d.Var)
	}
	return &Project{
		nodeBase:    nodeBase{id: c.nextNodeID()},
		Input:       input,
		Passthrough: passthrough.Copy(),
		Defs:        append([]VarDef(nil), defs...),
	}
}

func (c *Command) NewJoin(kind JoinKind, left, right RelNode, on Scalar) *Join {
	return &Join{nodeBase: nodeBase{id: c.nextNodeID()}, Kind: kind, Left: left, Right: right, On: on}
}

func (c *Command) NewSort(input RelNode, keys []SortKey) *Sort {
	return &Sort{nodeBase: nodeBase{id: c.nextNodeID()}, Input: input, Keys: append([]SortKey(nil), keys...)}
}

func (c *Command) NewLimit(input RelNode, count Scalar, withTies bool, form LimitForm) *Limit {
	return &Limit{nodeBase: nodeBase{id: c.nextNodeID()}, Input: input, Count: count, WithTies: withTies, Form: form}
}

func (c *Command) NewDistinct(input RelNode) *Distinct {
	return &Distinct{nodeBase: nodeBase{id: c.nextNodeID()}, Input: input}
}

func (c *Command) NewVarRef(v *Var) *VarRef {
	c.mustOwn(v)
	return &VarRef{nodeBase: nodeBase{id: c.nextNodeID()}, Var: v}
}

func (c *Command) NewConst(v ir.Value, typ Type) *Const {
	if _, ok := v.(ir.Null); ok {
		typ.Nullable = true
	}
	return &Const{nodeBase: nodeBase{id: c.nextNodeID()}, Value: v, Typ: typ}
}

// NewNull returns a NULL literal of the given type.
func (c *Command) NewNull(typ Type) *Const {
	return c.NewConst(ir.Null{}, typ)
}

func (c *Command) NewParam(name string, typ Type) *Param {
	return &Param{nodeBase: nodeBase{id: c.nextNodeID()}, Name: name, Typ: typ}
}

func (c *Command) NewCompare(op CompareOp, left, right Scalar, nullsHandled bool) *Compare {
	return &Compare{nodeBase: nodeBase{id: c.nextNodeID()}, Op: op, Left: left, Right: right, NullsHandled: nullsHandled}
}

// NewAnd conjoins args, flattening nested conjunctions. A single operand is
// returned as is.
func (c *Command) NewAnd(args ...Scalar) Scalar {
	flat := make([]Scalar, 0, len(args))
	for _, a := range args {
		if and, ok := a.(*And); ok {
			flat = append(flat, and.Args...)
			continue
		}
		flat = append(flat, a)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &And{nodeBase: nodeBase{id: c.nextNodeID()}, Args: flat}
}

// NewOr disjoins args, flattening nested disjunctions. A single operand is
// returned as is.
func (c *Command) NewOr(args ...Scalar) Scalar {
	flat := make([]Scalar, 0, len(args))
	for _, a := range args {
		if or, ok := a.(*Or); ok {
			flat = append(flat, or.Args...)
			continue
		}
		flat = append(flat, a)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Or{nodeBase: nodeBase{id: c.nextNodeID()}, Args: flat}
}

func (c *Command) NewNot(operand Scalar) *Not {
	return &Not{nodeBase: nodeBase{id: c.nextNodeID()}, Operand: operand}
}

func (c *Command) NewIsNull(operand Scalar, negated bool) *IsNull {
	return &IsNull{nodeBase: nodeBase{id: c.nextNodeID()}, Operand: operand, Negated: negated}
}

func (c *Command) NewArith(op ArithOp, left, right Scalar, typ Type) *Arith {
	return &Arith{nodeBase: nodeBase{id: c.nextNodeID()}, Op: op, Left: left, Right: right, typ: typ}
}

func (c *Command) NewFunc(name string, args []Scalar, volatile bool, typ Type) *Func {
	return &Func{
		nodeBase: nodeBase{id: c.nextNodeID()},
		Name:     name,
		Args:     append([]Scalar(nil), args...),
		Volatile: volatile,
		typ:      typ,
	}
}

// Inputs returns the relational children of n.
func Inputs(n RelNode) []RelNode {
	switch n := n.(type) {
	case *Scan:
		return nil
	case *Filter:
		return []RelNode{n.Input}
	case *Project:
		return []RelNode{n.Input}
	case *Join:
		return []RelNode{n.Left, n.Right}
	case *Sort:
		return []RelNode{n.Input}
	case *Limit:
		return []RelNode{n.Input}
	case *Distinct:
		return []RelNode{n.Input}
	}
	panic(errors.AssertionFailedf("unhandled relational node %T", n))
}

// WithInputs returns n over new inputs. When every input is unchanged n
// itself is returned; otherwise a copy with a fresh NodeID.
func (c *Command) WithInputs(n RelNode, inputs ...RelNode) RelNode {
	old := Inputs(n)
	if len(old) != len(inputs) {
		panic(errors.AssertionFailedf("%T takes %d inputs, got %d", n, len(old), len(inputs)))
	}
	same := true
	for i := range old {
		if old[i] != inputs[i] {
			same = false
		}
	}
	if same {
		return n
	}
	switch n := n.(type) {
	case *Filter:
		return c.NewFilter(inputs[0], n.Predicate)
	case *Project:
		return c.NewProject(inputs[0], n.Passthrough, n.Defs)
	case *Join:
		return c.NewJoin(n.Kind, inputs[0], inputs[1], n.On)
	case *Sort:
		return c.NewSort(inputs[0], n.Keys)
	case *Limit:
		return c.NewLimit(inputs[0], n.Count, n.WithTies, n.Form)
	case *Distinct:
		return c.NewDistinct(inputs[0])
	}
	panic(errors.AssertionFailedf("unhandled relational node %T", n))
}

// ScalarArgs returns the scalar children of s.
func ScalarArgs(s Scalar) []Scalar {
	switch s := s.(type) {
	case *VarRef, *Const, *Param:
		return nil
	case *Compare:
		return []Scalar{s.Left, s.Right}
	case *And:
		return s.Args
	case *Or:
		return s.Args
	case *Not:
		return []Scalar{s.Operand}
	case *IsNull:
		return []Scalar{s.Operand}
	case *Arith:
		return []Scalar{s.Left, s.Right}
	case *Func:
		return s.Args
	}
	panic(errors.AssertionFailedf("unhandled scalar %T", s))
}

// WithScalarArgs returns s over new children, or s itself when nothing
// changed.
func (c *Command) WithScalarArgs(s Scalar, args ...Scalar) Scalar {
	old := ScalarArgs(s)
	if len(old) != len(args) {
		panic(errors.AssertionFailedf("%T takes %d args, got %d", s, len(old), len(args)))
	}
	same := true
	for i := range old {
		if old[i] != args[i] {
			same = false
		}
	}
	if same {
		return s
	}
	switch s := s.(type) {
	case *Compare:
		return c.NewCompare(s.Op, args[0], args[1], s.NullsHandled)
	case *And:
		return c.NewAnd(args...)
	case *Or:
		return c.NewOr(args...)
	case *Not:
		return c.NewNot(args[0])
	case *IsNull:
		return c.NewIsNull(args[0], s.Negated)
	case *Arith:
		return c.NewArith(s.Op, args[0], args[1], s.typ)
	case *Func:
		return c.NewFunc(s.Name, args, s.Volatile, s.typ)
	}
	panic(errors.AssertionFailedf("unhandled scalar %T", s))
}

// ReplaceVars rewrites every VarRef whose var is in subst. The result shares
// all unaffected subtrees with s.
func (c *Command) ReplaceVars(s Scalar, subst map[VarID]*Var) Scalar {
	if s == nil || len(subst) == 0 {
		return s
	}
	if ref, ok := s.(*VarRef); ok {
		if to, ok := subst[ref.Var.id]; ok {
			return c.NewVarRef(to)
		}
		return ref
	}
	args := ScalarArgs(s)
	if len(args) == 0 {
		return s
	}
	next := make([]Scalar, len(args))
	for i, a := range args {
		next[i] = c.ReplaceVars(a, subst)
	}
	return c.WithScalarArgs(s, next...)
}
