package ctree

import (
	"fmt"

	"github.com/roach88/qplan/internal/ir"
)

// Fingerprint returns a stable content hash of the tree. Trees that differ
// only in the document format they were loaded from share a fingerprint,
// so a driver can key a plan cache on it.
func Fingerprint(t *Tree) (string, error) {
	v, err := ToValue(t)
	if err != nil {
		return "", err
	}
	return ir.Fingerprint(ir.DomainTree, v)
}

// ToValue converts the tree to a canonical ir.Value.
func ToValue(t *Tree) (ir.Value, error) {
	q, err := queryValue(t.Query)
	if err != nil {
		return nil, err
	}
	catalog := make(ir.List, len(t.Catalog))
	for i, tab := range t.Catalog {
		catalog[i] = tableValue(tab)
	}
	out := ir.Object{"catalog": catalog, "query": q}
	if t.Shape != nil {
		out["shape"] = shapeValue(t.Shape)
	}
	return out, nil
}

func stringList(ss []string) ir.List {
	out := make(ir.List, len(ss))
	for i, s := range ss {
		out[i] = ir.String(s)
	}
	return out
}

func tableValue(t TableDef) ir.Value {
	cols := make(ir.List, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ir.Object{
			"name":     ir.String(c.Name),
			"type":     ir.String(c.Type),
			"nullable": ir.Bool(c.Nullable),
			"enum":     ir.String(c.Enum),
		}
	}
	fks := make(ir.List, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		fks[i] = ir.Object{
			"columns":     stringList(fk.Columns),
			"ref_table":   ir.String(fk.RefTable),
			"ref_columns": stringList(fk.RefColumns),
		}
	}
	return ir.Object{
		"name":         ir.String(t.Name),
		"columns":      cols,
		"key":          stringList(t.Key),
		"foreign_keys": fks,
	}
}

func queryValue(q Query) (ir.Value, error) {
	switch q := q.(type) {
	case *Scan:
		return ir.Object{"scan": ir.Object{"table": ir.String(q.Table), "as": ir.String(q.As)}}, nil
	case *Filter:
		in, err := queryValue(q.Input)
		if err != nil {
			return nil, err
		}
		where, err := exprValue(q.Where)
		if err != nil {
			return nil, err
		}
		return ir.Object{"filter": ir.Object{"input": in, "where": where}}, nil
	case *Project:
		in, err := queryValue(q.Input)
		if err != nil {
			return nil, err
		}
		cols := make(ir.List, len(q.Columns))
		for i, c := range q.Columns {
			e, err := exprValue(c.Expr)
			if err != nil {
				return nil, err
			}
			cols[i] = ir.Object{"name": ir.String(c.Name), "expr": e}
		}
		return ir.Object{"project": ir.Object{"input": in, "as": ir.String(q.As), "columns": cols}}, nil
	case *Join:
		l, err := queryValue(q.Left)
		if err != nil {
			return nil, err
		}
		r, err := queryValue(q.Right)
		if err != nil {
			return nil, err
		}
		var on ir.Value = ir.Null{}
		if q.On != nil {
			if on, err = exprValue(q.On); err != nil {
				return nil, err
			}
		}
		return ir.Object{"join": ir.Object{"kind": ir.String(q.Kind), "left": l, "right": r, "on": on}}, nil
	case *Sort:
		in, err := queryValue(q.Input)
		if err != nil {
			return nil, err
		}
		keys := make(ir.List, len(q.Keys))
		for i, k := range q.Keys {
			if k.Column == nil {
				return nil, fmt.Errorf("sort key %d has no column", i)
			}
			keys[i] = ir.Object{"col": ir.String(k.Column.String()), "desc": ir.Bool(k.Desc)}
		}
		return ir.Object{"sort": ir.Object{"input": in, "keys": keys}}, nil
	case *Limit:
		in, err := queryValue(q.Input)
		if err != nil {
			return nil, err
		}
		count, err := exprValue(q.Count)
		if err != nil {
			return nil, err
		}
		return ir.Object{"limit": ir.Object{"input": in, "count": count, "with_ties": ir.Bool(q.WithTies)}}, nil
	case *Distinct:
		in, err := queryValue(q.Input)
		if err != nil {
			return nil, err
		}
		return ir.Object{"distinct": ir.Object{"input": in}}, nil
	}
	return nil, fmt.Errorf("unknown query node %T", q)
}

func exprValue(e Expr) (ir.Value, error) {
	switch e := e.(type) {
	case *ColumnRef:
		return ir.Object{"col": ir.String(e.String())}, nil
	case *Literal:
		if e.Value == nil {
			return nil, fmt.Errorf("literal without a value")
		}
		return ir.Object{"lit": e.Value, "type": ir.String(e.Type)}, nil
	case *Param:
		return ir.Object{"param": ir.String(e.Name), "type": ir.String(e.Type)}, nil
	case *Compare:
		return binaryValue(e.Op, e.Left, e.Right)
	case *Arith:
		return binaryValue(e.Op, e.Left, e.Right)
	case *And:
		return listValue("and", e.Args)
	case *Or:
		return listValue("or", e.Args)
	case *Not:
		arg, err := exprValue(e.Arg)
		if err != nil {
			return nil, err
		}
		return ir.Object{"not": arg}, nil
	case *IsNull:
		arg, err := exprValue(e.Arg)
		if err != nil {
			return nil, err
		}
		return ir.Object{"is_null": arg, "negated": ir.Bool(e.Negated)}, nil
	case *Call:
		args, err := exprList(e.Args)
		if err != nil {
			return nil, err
		}
		return ir.Object{"call": ir.String(e.Func), "args": args, "type": ir.String(e.Type), "volatile": ir.Bool(e.Volatile)}, nil
	}
	return nil, fmt.Errorf("unknown expression %T", e)
}

func binaryValue(op string, l, r Expr) (ir.Value, error) {
	lv, err := exprValue(l)
	if err != nil {
		return nil, err
	}
	rv, err := exprValue(r)
	if err != nil {
		return nil, err
	}
	return ir.Object{"op": ir.String(op), "args": ir.List{lv, rv}}, nil
}

func listValue(key string, args []Expr) (ir.Value, error) {
	list, err := exprList(args)
	if err != nil {
		return nil, err
	}
	return ir.Object{key: list}, nil
}

func exprList(args []Expr) (ir.List, error) {
	out := make(ir.List, len(args))
	for i, a := range args {
		v, err := exprValue(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func shapeValue(s *Shape) ir.Value {
	keys := make(ir.List, len(s.Keys))
	for i, k := range s.Keys {
		keys[i] = ir.String(k.String())
	}
	return ir.Object{"name": ir.String(s.Name), "columns": shapeColumns(s.Columns), "keys": keys}
}

func shapeColumns(cols []ShapeColumn) ir.List {
	out := make(ir.List, len(cols))
	for i, c := range cols {
		obj := ir.Object{"name": ir.String(c.Name), "record": ir.String(c.Record)}
		if c.Column != nil {
			obj["col"] = ir.String(c.Column.String())
		}
		if len(c.Fields) > 0 {
			obj["fields"] = shapeColumns(c.Fields)
		}
		out[i] = obj
	}
	return out
}
