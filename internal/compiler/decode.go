package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/ir"
)

// queryKinds lists the operator keys of a query node, in the order they are
// reported in error messages.
var queryKinds = []string{"scan", "filter", "project", "join", "sort", "limit", "distinct"}

var compareOps = map[string]string{
	"=":  ctree.OpEq,
	"==": ctree.OpEq,
	"<>": ctree.OpNe,
	"!=": ctree.OpNe,
	"<":  ctree.OpLt,
	"<=": ctree.OpLe,
	">":  ctree.OpGt,
	">=": ctree.OpGe,
}

var arithOps = map[string]string{
	"+":  ctree.OpAdd,
	"-":  ctree.OpSub,
	"*":  ctree.OpMul,
	"/":  ctree.OpDiv,
	"||": ctree.OpConcat,
}

// lookup returns the field name of v, resolved to its default if it has one.
func lookup(v cue.Value, name string) (cue.Value, bool) {
	f := v.LookupPath(cue.MakePath(cue.Str(name)))
	if !f.Exists() {
		return f, false
	}
	f, _ = f.Default()
	return f, true
}

func requiredString(v cue.Value, name string) (string, error) {
	f, ok := lookup(v, name)
	if !ok {
		return "", missing(v, name)
	}
	s, err := f.String()
	if err != nil {
		return "", errorAt(f, "must be a string")
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	f, ok := lookup(v, name)
	if !ok || f.Kind() == cue.NullKind {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", errorAt(f, "must be a string")
	}
	return s, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	f, ok := lookup(v, name)
	if !ok || f.Kind() == cue.NullKind {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, errorAt(f, "must be a boolean")
	}
	return b, nil
}

// elements returns the items of the list field name, or nil when the field
// is absent.
func elements(v cue.Value, name string) ([]cue.Value, error) {
	f, ok := lookup(v, name)
	if !ok || f.Kind() == cue.NullKind {
		return nil, nil
	}
	return listOf(f)
}

func listOf(v cue.Value) ([]cue.Value, error) {
	if v.Kind() != cue.ListKind {
		return nil, errorAt(v, "must be a list")
	}
	it, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []cue.Value
	for it.Next() {
		item, _ := it.Value().Default()
		out = append(out, item)
	}
	return out, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	items, err := elements(v, name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, item := range items {
		s, err := item.String()
		if err != nil {
			return nil, errorAt(item, "must be a string")
		}
		out = append(out, s)
	}
	return out, nil
}

func requireStruct(v cue.Value, what string) error {
	if v.Kind() != cue.StructKind {
		return errorAt(v, "%s must be a struct", what)
	}
	return nil
}

// fieldNames returns the regular field labels of a struct in source order.
func fieldNames(v cue.Value) ([]string, error) {
	it, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var names []string
	for it.Next() {
		names = append(names, it.Selector().Unquoted())
	}
	return names, nil
}

// parseColumnRef splits "source.column"; a name without a dot is an
// unqualified reference.
func parseColumnRef(v cue.Value) (*ctree.ColumnRef, error) {
	s, err := v.String()
	if err != nil {
		return nil, errorAt(v, "column reference must be a string")
	}
	source, column, ok := strings.Cut(s, ".")
	if !ok {
		source, column = "", s
	}
	if column == "" || (ok && source == "") {
		return nil, errorAt(v, "malformed column reference %q", s)
	}
	return ctree.Ref(source, column), nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func decodeCatalog(doc cue.Value) ([]ctree.TableDef, error) {
	tables, err := elements(doc, "catalog")
	if err != nil {
		return nil, err
	}
	var out []ctree.TableDef
	for _, tv := range tables {
		t, err := decodeTable(tv)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTable(v cue.Value) (ctree.TableDef, error) {
	var t ctree.TableDef
	if err := requireStruct(v, "table"); err != nil {
		return t, err
	}
	var err error
	if t.Name, err = requiredString(v, "name"); err != nil {
		return t, err
	}

	cols, err := elements(v, "columns")
	if err != nil {
		return t, err
	}
	for _, cv := range cols {
		if err := requireStruct(cv, "column"); err != nil {
			return t, err
		}
		var c ctree.ColumnDef
		if c.Name, err = requiredString(cv, "name"); err != nil {
			return t, err
		}
		if c.Type, err = requiredString(cv, "type"); err != nil {
			return t, err
		}
		if c.Nullable, err = optionalBool(cv, "nullable"); err != nil {
			return t, err
		}
		if c.Enum, err = optionalString(cv, "enum"); err != nil {
			return t, err
		}
		t.Columns = append(t.Columns, c)
	}

	if t.Key, err = stringList(v, "key"); err != nil {
		return t, err
	}

	fks, err := elements(v, "foreign_keys")
	if err != nil {
		return t, err
	}
	for _, fv := range fks {
		if err := requireStruct(fv, "foreign key"); err != nil {
			return t, err
		}
		var fk ctree.ForeignKeyDef
		if fk.Columns, err = stringList(fv, "columns"); err != nil {
			return t, err
		}
		if fk.RefTable, err = requiredString(fv, "ref_table"); err != nil {
			return t, err
		}
		if fk.RefColumns, err = stringList(fv, "ref_columns"); err != nil {
			return t, err
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// decodeQuery decodes a query node: a struct with exactly one operator key.
func decodeQuery(v cue.Value) (ctree.Query, error) {
	if err := requireStruct(v, "query node"); err != nil {
		return nil, err
	}
	names, err := fieldNames(v)
	if err != nil {
		return nil, err
	}
	if len(names) != 1 {
		return nil, errorAt(v, "query node must have exactly one of %s", strings.Join(queryKinds, ", "))
	}
	body, _ := lookup(v, names[0])

	switch names[0] {
	case "scan":
		return decodeScan(body)
	case "filter":
		return decodeFilter(body)
	case "project":
		return decodeProject(body)
	case "join":
		return decodeJoin(body)
	case "sort":
		return decodeSort(body)
	case "limit":
		return decodeLimit(body)
	case "distinct":
		in, err := decodeInput(body, "input")
		if err != nil {
			return nil, err
		}
		return &ctree.Distinct{Input: in}, nil
	}
	return nil, errorAt(body, "unknown query operator %q (want one of %s)", names[0], strings.Join(queryKinds, ", "))
}

func decodeInput(v cue.Value, name string) (ctree.Query, error) {
	if err := requireStruct(v, "operator"); err != nil {
		return nil, err
	}
	in, ok := lookup(v, name)
	if !ok {
		return nil, missing(v, name)
	}
	return decodeQuery(in)
}

func decodeScan(v cue.Value) (ctree.Query, error) {
	// scan: customers
	if s, err := v.String(); err == nil {
		return &ctree.Scan{Table: s}, nil
	}
	if err := requireStruct(v, "scan"); err != nil {
		return nil, err
	}
	table, err := requiredString(v, "table")
	if err != nil {
		return nil, err
	}
	as, err := optionalString(v, "as")
	if err != nil {
		return nil, err
	}
	return &ctree.Scan{Table: table, As: as}, nil
}

func decodeFilter(v cue.Value) (ctree.Query, error) {
	in, err := decodeInput(v, "input")
	if err != nil {
		return nil, err
	}
	wv, ok := lookup(v, "where")
	if !ok {
		return nil, missing(v, "where")
	}
	where, err := decodeExpr(wv)
	if err != nil {
		return nil, err
	}
	return &ctree.Filter{Input: in, Where: where}, nil
}

func decodeProject(v cue.Value) (ctree.Query, error) {
	in, err := decodeInput(v, "input")
	if err != nil {
		return nil, err
	}
	as, err := optionalString(v, "as")
	if err != nil {
		return nil, err
	}
	cols, err := elements(v, "columns")
	if err != nil {
		return nil, err
	}
	p := &ctree.Project{Input: in, As: as}
	for _, cv := range cols {
		if err := requireStruct(cv, "project column"); err != nil {
			return nil, err
		}
		name, err := requiredString(cv, "name")
		if err != nil {
			return nil, err
		}
		ev, ok := lookup(cv, "expr")
		if !ok {
			return nil, missing(cv, "expr")
		}
		e, err := decodeExpr(ev)
		if err != nil {
			return nil, err
		}
		p.Columns = append(p.Columns, ctree.ProjectColumn{Name: name, Expr: e})
	}
	return p, nil
}

func decodeJoin(v cue.Value) (ctree.Query, error) {
	if err := requireStruct(v, "join"); err != nil {
		return nil, err
	}
	kind, err := optionalString(v, "kind")
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = ctree.JoinInner
	}
	left, err := decodeInput(v, "left")
	if err != nil {
		return nil, err
	}
	right, err := decodeInput(v, "right")
	if err != nil {
		return nil, err
	}
	j := &ctree.Join{Kind: kind, Left: left, Right: right}
	if ov, ok := lookup(v, "on"); ok && ov.Kind() != cue.NullKind {
		if j.On, err = decodeExpr(ov); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func decodeSort(v cue.Value) (ctree.Query, error) {
	in, err := decodeInput(v, "input")
	if err != nil {
		return nil, err
	}
	keys, err := elements(v, "keys")
	if err != nil {
		return nil, err
	}
	s := &ctree.Sort{Input: in}
	for _, kv := range keys {
		// keys: ["c.name", {col: "c.id", desc: true}]
		if kv.Kind() == cue.StringKind {
			ref, err := parseColumnRef(kv)
			if err != nil {
				return nil, err
			}
			s.Keys = append(s.Keys, ctree.SortKey{Column: ref})
			continue
		}
		if err := requireStruct(kv, "sort key"); err != nil {
			return nil, err
		}
		cv, ok := lookup(kv, "col")
		if !ok {
			return nil, missing(kv, "col")
		}
		ref, err := parseColumnRef(cv)
		if err != nil {
			return nil, err
		}
		desc, err := optionalBool(kv, "desc")
		if err != nil {
			return nil, err
		}
		s.Keys = append(s.Keys, ctree.SortKey{Column: ref, Desc: desc})
	}
	return s, nil
}

func decodeLimit(v cue.Value) (ctree.Query, error) {
	in, err := decodeInput(v, "input")
	if err != nil {
		return nil, err
	}
	cv, ok := lookup(v, "count")
	if !ok {
		return nil, missing(v, "count")
	}
	count, err := decodeExpr(cv)
	if err != nil {
		return nil, err
	}
	switch count.(type) {
	case *ctree.Literal, *ctree.Param:
	default:
		return nil, errorAt(cv, "limit count must be a literal or a parameter")
	}
	ties, err := optionalBool(v, "with_ties")
	if err != nil {
		return nil, err
	}
	return &ctree.Limit{Input: in, Count: count, WithTies: ties}, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// decodeExpr decodes an expression. A struct is keyed by its form (col,
// lit, param, op, and, or, not, is_null, call); any other concrete value
// is shorthand for a literal.
func decodeExpr(v cue.Value) (ctree.Expr, error) {
	if v.Kind() != cue.StructKind {
		if v.Kind() == cue.ListKind {
			return nil, errorAt(v, "expression must be a struct or a scalar literal")
		}
		val, err := literalValue(v, "")
		if err != nil {
			return nil, err
		}
		return &ctree.Literal{Value: val}, nil
	}

	if cv, ok := lookup(v, "col"); ok {
		return parseColumnRef(cv)
	}
	if lv, ok := lookup(v, "lit"); ok {
		typ, err := optionalString(v, "type")
		if err != nil {
			return nil, err
		}
		val, err := literalValue(lv, typ)
		if err != nil {
			return nil, err
		}
		return &ctree.Literal{Value: val, Type: typ}, nil
	}
	if _, ok := lookup(v, "param"); ok {
		name, err := requiredString(v, "param")
		if err != nil {
			return nil, err
		}
		typ, err := requiredString(v, "type")
		if err != nil {
			return nil, err
		}
		return &ctree.Param{Name: name, Type: typ}, nil
	}
	if _, ok := lookup(v, "op"); ok {
		return decodeBinary(v)
	}
	if _, ok := lookup(v, "and"); ok {
		args, err := exprList(v, "and")
		if err != nil {
			return nil, err
		}
		return &ctree.And{Args: args}, nil
	}
	if _, ok := lookup(v, "or"); ok {
		args, err := exprList(v, "or")
		if err != nil {
			return nil, err
		}
		return &ctree.Or{Args: args}, nil
	}
	if nv, ok := lookup(v, "not"); ok {
		arg, err := decodeExpr(nv)
		if err != nil {
			return nil, err
		}
		return &ctree.Not{Arg: arg}, nil
	}
	if nv, ok := lookup(v, "is_null"); ok {
		arg, err := decodeExpr(nv)
		if err != nil {
			return nil, err
		}
		neg, err := optionalBool(v, "negated")
		if err != nil {
			return nil, err
		}
		return &ctree.IsNull{Arg: arg, Negated: neg}, nil
	}
	if _, ok := lookup(v, "call"); ok {
		return decodeCall(v)
	}
	return nil, errorAt(v, "unrecognized expression (want one of col, lit, param, op, and, or, not, is_null, call)")
}

func exprList(v cue.Value, name string) ([]ctree.Expr, error) {
	items, err := elements(v, name)
	if err != nil {
		return nil, err
	}
	out := make([]ctree.Expr, 0, len(items))
	for _, item := range items {
		e, err := decodeExpr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeBinary(v cue.Value) (ctree.Expr, error) {
	op, err := requiredString(v, "op")
	if err != nil {
		return nil, err
	}
	args, err := exprList(v, "args")
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		av, _ := lookup(v, "args")
		if !av.Exists() {
			av = v
		}
		return nil, errorAt(av, "operator %q takes 2 arguments, got %d", op, len(args))
	}
	if c, ok := compareOps[op]; ok {
		return &ctree.Compare{Op: c, Left: args[0], Right: args[1]}, nil
	}
	if a, ok := arithOps[op]; ok {
		return &ctree.Arith{Op: a, Left: args[0], Right: args[1]}, nil
	}
	ov, _ := lookup(v, "op")
	return nil, errorAt(ov, "unknown operator %q", op)
}

func decodeCall(v cue.Value) (ctree.Expr, error) {
	name, err := requiredString(v, "call")
	if err != nil {
		return nil, err
	}
	args, err := exprList(v, "args")
	if err != nil {
		return nil, err
	}
	typ, err := requiredString(v, "type")
	if err != nil {
		return nil, err
	}
	volatile, err := optionalBool(v, "volatile")
	if err != nil {
		return nil, err
	}
	return &ctree.Call{Func: name, Args: args, Type: typ, Volatile: volatile}, nil
}

// literalValue converts a concrete scalar. Non-integral numbers, and
// strings declared as decimal, become exact decimals.
func literalValue(v cue.Value, typ string) (ir.Value, error) {
	decimal := strings.EqualFold(typ, "decimal") || strings.EqualFold(typ, "numeric")
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, errorAt(v, "integer literal out of range")
		}
		return ir.Int(i), nil
	case cue.FloatKind:
		d, err := ir.ParseDecimal(fmt.Sprint(v))
		if err != nil {
			return nil, errorAt(v, "%v", err)
		}
		return d, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if decimal {
			d, err := ir.ParseDecimal(s)
			if err != nil {
				return nil, errorAt(v, "%v", err)
			}
			return d, nil
		}
		return ir.String(s), nil
	}
	return nil, errorAt(v, "literal must be null, a boolean, a number or a string")
}

// ---------------------------------------------------------------------------
// Shape
// ---------------------------------------------------------------------------

func decodeShape(v cue.Value) (*ctree.Shape, error) {
	if err := requireStruct(v, "shape"); err != nil {
		return nil, err
	}
	name, err := optionalString(v, "name")
	if err != nil {
		return nil, err
	}
	cols, err := decodeShapeColumns(v, "columns")
	if err != nil {
		return nil, err
	}
	s := &ctree.Shape{Name: name, Columns: cols}
	keys, err := elements(v, "keys")
	if err != nil {
		return nil, err
	}
	for _, kv := range keys {
		ref, err := parseColumnRef(kv)
		if err != nil {
			return nil, err
		}
		s.Keys = append(s.Keys, ref)
	}
	return s, nil
}

func decodeShapeColumns(v cue.Value, name string) ([]ctree.ShapeColumn, error) {
	items, err := elements(v, name)
	if err != nil {
		return nil, err
	}
	var out []ctree.ShapeColumn
	for _, cv := range items {
		if err := requireStruct(cv, "shape column"); err != nil {
			return nil, err
		}
		var c ctree.ShapeColumn
		if c.Name, err = requiredString(cv, "name"); err != nil {
			return nil, err
		}
		if c.Record, err = optionalString(cv, "record"); err != nil {
			return nil, err
		}
		if rv, ok := lookup(cv, "col"); ok {
			if c.Column, err = parseColumnRef(rv); err != nil {
				return nil, err
			}
		}
		if c.Fields, err = decodeShapeColumns(cv, "fields"); err != nil {
			return nil, err
		}
		if c.Column == nil && len(c.Fields) == 0 {
			return nil, errorAt(cv, "shape column %q needs col or fields", c.Name)
		}
		out = append(out, c)
	}
	return out, nil
}
