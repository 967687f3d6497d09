package plan

import (
	"fmt"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
)

// Param is a parameter of the compiled statement. Value is set for
// parameters qplan introduced itself, such as a parameterized row limit.
type Param struct {
	Name  string
	Type  itree.Type
	Value ir.Value
}

// Bound is a command tree resolved into the internal tree.
type Bound struct {
	Cmd    *itree.Command
	Root   itree.RelNode
	Shape  colmap.ColumnMap
	Params []Param
}

// Bind resolves the names of tree against its catalog and builds the
// internal tree and root column map. Problems are reported as *InputError.
func Bind(tree *ctree.Tree) (*Bound, error) {
	if issues := ctree.Validate(tree); len(issues) > 0 {
		msg := issues[0].Message
		if len(issues) > 1 {
			msg = fmt.Sprintf("%s (and %d more)", msg, len(issues)-1)
		}
		return nil, &InputError{Code: ErrInvalidTree, Path: issues[0].Path, Message: msg}
	}

	b := &binder{
		tree:       tree,
		cmd:        itree.NewCommand(),
		tables:     make(map[string]*itree.Table),
		paramTypes: make(map[string]itree.Type),
	}
	root, sc, err := b.bindQuery("query", tree.Query)
	if err != nil {
		return nil, err
	}
	shape, err := b.bindShape(tree.Shape, sc)
	if err != nil {
		return nil, err
	}

	params := make([]Param, len(b.paramOrder))
	for i, name := range b.paramOrder {
		params[i] = Param{Name: name, Type: b.paramTypes[name]}
	}
	return &Bound{Cmd: b.cmd, Root: root, Shape: shape, Params: params}, nil
}

type binder struct {
	tree       *ctree.Tree
	cmd        *itree.Command
	tables     map[string]*itree.Table
	paramTypes map[string]itree.Type
	paramOrder []string
}

// scopeCol is a column visible to expressions: a source-qualified name
// bound to a var.
type scopeCol struct {
	source string
	name   string
	v      *itree.Var
}

type scope []scopeCol

func (sc scope) resolve(path string, ref *ctree.ColumnRef) (*itree.Var, error) {
	var found *itree.Var
	matches := 0
	for _, c := range sc {
		if c.name != ref.Column || (ref.Source != "" && c.source != ref.Source) {
			continue
		}
		if found != c.v {
			matches++
		}
		found = c.v
	}
	switch {
	case matches == 0:
		return nil, inputErrorf(ErrUnknownColumn, path, "unknown column %s", ref)
	case matches > 1:
		return nil, inputErrorf(ErrAmbiguousColumn, path, "column %s is ambiguous", ref)
	}
	return found, nil
}

func columnType(c ctree.ColumnDef) itree.Type {
	kind, _ := itree.ParseTypeKind(c.Type)
	if c.Enum != "" {
		return itree.Type{Kind: itree.KindEnum, Name: c.Enum, Underlying: kind, Nullable: c.Nullable}
	}
	return itree.Type{Kind: kind, Nullable: c.Nullable}
}

func ordinals(def *ctree.TableDef, names []string) []int {
	out := make([]int, 0, len(names))
	for _, n := range names {
		for i, c := range def.Columns {
			if c.Name == n {
				out = append(out, i)
			}
		}
	}
	return out
}

// table returns the resolved catalog table. Every scan of a table shares
// one *itree.Table.
func (b *binder) table(path, name string) (*itree.Table, error) {
	if t, ok := b.tables[name]; ok {
		return t, nil
	}
	def, ok := b.tree.Table(name)
	if !ok {
		return nil, inputErrorf(ErrUnknownTable, path, "unknown table %q", name)
	}
	t := &itree.Table{Name: def.Name, Key: ordinals(def, def.Key)}
	for _, c := range def.Columns {
		t.Columns = append(t.Columns, itree.Column{Name: c.Name, Type: columnType(c)})
	}
	for _, fk := range def.ForeignKeys {
		ref, _ := b.tree.Table(fk.RefTable)
		t.ForeignKeys = append(t.ForeignKeys, itree.ForeignKey{
			Columns:    ordinals(def, fk.Columns),
			RefTable:   fk.RefTable,
			RefColumns: ordinals(ref, fk.RefColumns),
		})
	}
	b.tables[name] = t
	return t, nil
}

func (b *binder) bindQuery(path string, q ctree.Query) (itree.RelNode, scope, error) {
	switch q := q.(type) {
	case *ctree.Scan:
		tab, err := b.table(path+".scan", q.Table)
		if err != nil {
			return nil, nil, err
		}
		vars := make([]*itree.Var, len(tab.Columns))
		sc := make(scope, len(tab.Columns))
		for i := range tab.Columns {
			vars[i] = b.cmd.NewColumnVar(tab, i)
			sc[i] = scopeCol{source: q.Source(), name: tab.Columns[i].Name, v: vars[i]}
		}
		return b.cmd.NewScan(tab, q.Source(), vars), sc, nil

	case *ctree.Filter:
		in, sc, err := b.bindQuery(path+".filter.input", q.Input)
		if err != nil {
			return nil, nil, err
		}
		pred, err := b.bindPredicate(path+".filter.where", q.Where, sc)
		if err != nil {
			return nil, nil, err
		}
		return b.cmd.NewFilter(in, pred), sc, nil

	case *ctree.Project:
		in, sc, err := b.bindQuery(path+".project.input", q.Input)
		if err != nil {
			return nil, nil, err
		}
		passthrough := b.cmd.NewVarSet()
		var defs []itree.VarDef
		out := make(scope, 0, len(q.Columns))
		for _, c := range q.Columns {
			e, err := b.bindExpr(path+".project."+c.Name, c.Expr, sc)
			if err != nil {
				return nil, nil, err
			}
			var v *itree.Var
			if ref, ok := e.(*itree.VarRef); ok {
				v = ref.Var
				passthrough.Set(v)
			} else {
				v = b.cmd.NewComputedVar(c.Name, e.Type())
				defs = append(defs, itree.VarDef{Var: v, Expr: e})
			}
			out = append(out, scopeCol{source: q.As, name: c.Name, v: v})
		}
		return b.cmd.NewProject(in, passthrough, defs), out, nil

	case *ctree.Join:
		left, lsc, err := b.bindQuery(path+".join.left", q.Left)
		if err != nil {
			return nil, nil, err
		}
		right, rsc, err := b.bindQuery(path+".join.right", q.Right)
		if err != nil {
			return nil, nil, err
		}
		sc := append(append(scope{}, lsc...), rsc...)
		kind := itree.InnerJoin
		switch q.Kind {
		case ctree.JoinLeft:
			kind = itree.LeftOuterJoin
		case ctree.JoinCross:
			return b.cmd.NewJoin(itree.CrossJoin, left, right, nil), sc, nil
		}
		on, err := b.bindPredicate(path+".join.on", q.On, sc)
		if err != nil {
			return nil, nil, err
		}
		return b.cmd.NewJoin(kind, left, right, on), sc, nil

	case *ctree.Sort:
		in, sc, err := b.bindQuery(path+".sort.input", q.Input)
		if err != nil {
			return nil, nil, err
		}
		keys := make([]itree.SortKey, len(q.Keys))
		for i, k := range q.Keys {
			v, err := sc.resolve(fmt.Sprintf("%s.sort.keys[%d]", path, i), k.Column)
			if err != nil {
				return nil, nil, err
			}
			keys[i] = itree.SortKey{Var: v, Desc: k.Desc}
		}
		return b.cmd.NewSort(in, keys), sc, nil

	case *ctree.Limit:
		in, sc, err := b.bindQuery(path+".limit.input", q.Input)
		if err != nil {
			return nil, nil, err
		}
		count, err := b.bindExpr(path+".limit.count", q.Count, sc)
		if err != nil {
			return nil, nil, err
		}
		if count.Type().Primitive().Kind != itree.KindInt {
			return nil, nil, inputErrorf(ErrTypeMismatch, path+".limit.count", "count must be an int, got %s", count.Type())
		}
		if q.WithTies && itree.Ordering(in) == nil {
			return nil, nil, inputErrorf(ErrTiesWithoutOrder, path+".limit", "WITH TIES requires an ordered input")
		}
		return b.cmd.NewLimit(in, count, q.WithTies, itree.LimitUnlowered), sc, nil

	case *ctree.Distinct:
		in, sc, err := b.bindQuery(path+".distinct.input", q.Input)
		if err != nil {
			return nil, nil, err
		}
		return b.cmd.NewDistinct(in), sc, nil
	}
	return nil, nil, inputErrorf(ErrInvalidTree, path, "unknown query node %T", q)
}

func (b *binder) bindPredicate(path string, e ctree.Expr, sc scope) (itree.Scalar, error) {
	s, err := b.bindExpr(path, e, sc)
	if err != nil {
		return nil, err
	}
	if err := wantBool(path, s); err != nil {
		return nil, err
	}
	return s, nil
}

func wantBool(path string, s itree.Scalar) error {
	if k := s.Type().Primitive().Kind; k != itree.KindBool && k != itree.KindUnknown {
		return inputErrorf(ErrTypeMismatch, path, "expected a boolean, got %s", s.Type())
	}
	return nil
}

var compareOps = map[string]itree.CompareOp{
	ctree.OpEq: itree.OpEq,
	ctree.OpNe: itree.OpNe,
	ctree.OpLt: itree.OpLt,
	ctree.OpLe: itree.OpLe,
	ctree.OpGt: itree.OpGt,
	ctree.OpGe: itree.OpGe,
}

var arithOps = map[string]itree.ArithOp{
	ctree.OpAdd:    itree.OpAdd,
	ctree.OpSub:    itree.OpSub,
	ctree.OpMul:    itree.OpMul,
	ctree.OpDiv:    itree.OpDiv,
	ctree.OpConcat: itree.OpConcat,
}

func (b *binder) bindExpr(path string, e ctree.Expr, sc scope) (itree.Scalar, error) {
	switch e := e.(type) {
	case *ctree.ColumnRef:
		v, err := sc.resolve(path, e)
		if err != nil {
			return nil, err
		}
		return b.cmd.NewVarRef(v), nil

	case *ctree.Literal:
		typ, err := literalType(path, e)
		if err != nil {
			return nil, err
		}
		return b.cmd.NewConst(e.Value, typ), nil

	case *ctree.Param:
		kind, _ := itree.ParseTypeKind(e.Type)
		typ := itree.Type{Kind: kind}
		if prev, ok := b.paramTypes[e.Name]; ok {
			if prev != typ {
				return nil, inputErrorf(ErrParamRedeclared, path, "parameter %q used as %s and %s", e.Name, prev, typ)
			}
		} else {
			b.paramTypes[e.Name] = typ
			b.paramOrder = append(b.paramOrder, e.Name)
		}
		return b.cmd.NewParam(e.Name, typ), nil

	case *ctree.Compare:
		l, err := b.bindExpr(path+".left", e.Left, sc)
		if err != nil {
			return nil, err
		}
		r, err := b.bindExpr(path+".right", e.Right, sc)
		if err != nil {
			return nil, err
		}
		if !l.Type().Comparable(r.Type()) {
			return nil, inputErrorf(ErrTypeMismatch, path, "cannot compare %s with %s", l.Type(), r.Type())
		}
		return b.cmd.NewCompare(compareOps[e.Op], l, r, false), nil

	case *ctree.And:
		args, err := b.bindBoolArgs(path+".and", e.Args, sc)
		if err != nil {
			return nil, err
		}
		return b.cmd.NewAnd(args...), nil

	case *ctree.Or:
		args, err := b.bindBoolArgs(path+".or", e.Args, sc)
		if err != nil {
			return nil, err
		}
		return b.cmd.NewOr(args...), nil

	case *ctree.Not:
		arg, err := b.bindPredicate(path+".not", e.Arg, sc)
		if err != nil {
			return nil, err
		}
		return b.cmd.NewNot(arg), nil

	case *ctree.IsNull:
		arg, err := b.bindExpr(path+".is_null", e.Arg, sc)
		if err != nil {
			return nil, err
		}
		return b.cmd.NewIsNull(arg, e.Negated), nil

	case *ctree.Arith:
		l, err := b.bindExpr(path+".left", e.Left, sc)
		if err != nil {
			return nil, err
		}
		r, err := b.bindExpr(path+".right", e.Right, sc)
		if err != nil {
			return nil, err
		}
		typ, err := arithType(path, e.Op, l.Type(), r.Type())
		if err != nil {
			return nil, err
		}
		return b.cmd.NewArith(arithOps[e.Op], l, r, typ), nil

	case *ctree.Call:
		args := make([]itree.Scalar, len(e.Args))
		nullable := false
		for i, a := range e.Args {
			s, err := b.bindExpr(fmt.Sprintf("%s.args[%d]", path, i), a, sc)
			if err != nil {
				return nil, err
			}
			args[i] = s
			nullable = nullable || s.Type().Nullable
		}
		kind, _ := itree.ParseTypeKind(e.Type)
		return b.cmd.NewFunc(e.Func, args, e.Volatile, itree.Type{Kind: kind, Nullable: nullable}), nil
	}
	return nil, inputErrorf(ErrInvalidTree, path, "unknown expression %T", e)
}

func (b *binder) bindBoolArgs(path string, args []ctree.Expr, sc scope) ([]itree.Scalar, error) {
	out := make([]itree.Scalar, len(args))
	for i, a := range args {
		s, err := b.bindPredicate(fmt.Sprintf("%s[%d]", path, i), a, sc)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func literalType(path string, l *ctree.Literal) (itree.Type, error) {
	if l.Type != "" {
		kind, err := itree.ParseTypeKind(l.Type)
		if err != nil {
			return itree.Type{}, inputErrorf(ErrTypeMismatch, path, "%v", err)
		}
		return itree.Type{Kind: kind}, nil
	}
	switch l.Value.(type) {
	case ir.Int:
		return itree.IntType, nil
	case ir.String:
		return itree.StringType, nil
	case ir.Bool:
		return itree.BoolType, nil
	case ir.Decimal:
		return itree.Type{Kind: itree.KindDecimal}, nil
	}
	return itree.Type{}, inputErrorf(ErrTypeMismatch, path, "unsupported literal %s", ir.Describe(l.Value))
}

func arithType(path, op string, l, r itree.Type) (itree.Type, error) {
	nullable := l.Nullable || r.Nullable
	if op == ctree.OpConcat {
		if l.Primitive().Kind != itree.KindString || r.Primitive().Kind != itree.KindString {
			return itree.Type{}, inputErrorf(ErrTypeMismatch, path, "cannot concatenate %s and %s", l, r)
		}
		return itree.StringType.WithNullable(nullable), nil
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return itree.Type{}, inputErrorf(ErrTypeMismatch, path, "operator %s needs numbers, got %s and %s", op, l, r)
	}
	kind := itree.KindInt
	for _, k := range []itree.TypeKind{l.Primitive().Kind, r.Primitive().Kind} {
		if k == itree.KindFloat || (k == itree.KindDecimal && kind != itree.KindFloat) {
			kind = k
		}
	}
	return itree.Type{Kind: kind, Nullable: nullable}, nil
}

func (b *binder) bindShape(s *ctree.Shape, sc scope) (colmap.ColumnMap, error) {
	rowType := itree.Type{Kind: itree.KindRecord}
	listType := itree.Type{Kind: itree.KindCollection}
	if s == nil {
		props := make([]colmap.ColumnMap, len(sc))
		for i, c := range sc {
			props[i] = colmap.NewVarRef(c.v, c.name, c.v.Type())
		}
		return colmap.NewCollection("rows", listType, colmap.NewRecord("row", rowType, props...)), nil
	}

	props, err := b.bindShapeColumns("shape", s.Columns, sc)
	if err != nil {
		return nil, err
	}
	keys := make([]colmap.ColumnMap, len(s.Keys))
	for i, k := range s.Keys {
		v, err := sc.resolve(fmt.Sprintf("shape.keys[%d]", i), k)
		if err != nil {
			return nil, err
		}
		keys[i] = colmap.NewVarRef(v, k.Column, v.Type())
	}
	name := s.Name
	if name == "" {
		name = "rows"
	}
	return colmap.NewCollection(name, listType, colmap.NewRecord("row", rowType, props...), keys...), nil
}

func (b *binder) bindShapeColumns(path string, cols []ctree.ShapeColumn, sc scope) ([]colmap.ColumnMap, error) {
	out := make([]colmap.ColumnMap, len(cols))
	for i, c := range cols {
		p := path + "." + c.Name
		if len(c.Fields) > 0 {
			fields, err := b.bindShapeColumns(p, c.Fields, sc)
			if err != nil {
				return nil, err
			}
			out[i] = colmap.NewRecord(c.Name, itree.Type{Kind: itree.KindRecord, Name: c.Record}, fields...)
			continue
		}
		v, err := sc.resolve(p, c.Column)
		if err != nil {
			return nil, err
		}
		out[i] = colmap.NewVarRef(v, c.Name, v.Type())
	}
	return out, nil
}
