package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
	"github.com/roach88/qplan/internal/plan"
	"github.com/roach88/qplan/internal/sqlgen"
)

// Rows is the result of running a statement. Values are in select-list
// order, converted to the declared column types.
type Rows struct {
	Columns []sqlgen.Column
	Values  [][]ir.Value
}

// Objects returns each row keyed by column name.
func (r *Rows) Objects() []ir.Object {
	out := make([]ir.Object, len(r.Values))
	for i, row := range r.Values {
		obj := make(ir.Object, len(row))
		for j, v := range row {
			obj[r.Columns[j].Name] = v
		}
		out[i] = obj
	}
	return out
}

// Run executes a compiled SQLite statement. args supplies the declared
// parameters; generated parameters carry their own value. The run is
// recorded in the run log.
func (s *Sandbox) Run(ctx context.Context, res *plan.Result, args map[string]ir.Value) (*Rows, error) {
	if res.Dialect == nil || res.Dialect.Name != dialect.SQLite {
		return nil, fmt.Errorf("run: sandbox executes %s statements, got %v", dialect.SQLite, res.Dialect)
	}

	bound := make(ir.Object, len(res.Params))
	named := make([]any, 0, len(res.Params))
	for _, p := range res.Params {
		v, ok := args[p.Name]
		if !ok {
			v = p.Value
		}
		if v == nil {
			return nil, fmt.Errorf("run: no value for parameter %q", p.Name)
		}
		arg, err := ir.ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("run: parameter %q: %w", p.Name, err)
		}
		bound[p.Name] = v
		named = append(named, sql.Named(p.Name, arg))
	}

	rows, err := s.db.QueryContext(ctx, res.SQL, named...)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	defer rows.Close()

	out := &Rows{Columns: res.Columns, Values: [][]ir.Value{}}
	for rows.Next() {
		raw := make([]any, len(res.Columns))
		dest := make([]any, len(raw))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("run: scan: %w", err)
		}
		row := make([]ir.Value, len(raw))
		for i, v := range raw {
			if row[i], err = fromDriver(v, res.Columns[i].Type); err != nil {
				return nil, fmt.Errorf("run: column %s: %w", res.Columns[i].Name, err)
			}
		}
		out.Values = append(out.Values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run: iterate rows: %w", err)
	}

	if err := s.record(ctx, res, bound, len(out.Values)); err != nil {
		return nil, err
	}
	return out, nil
}

// fromDriver converts a scanned SQLite value to the column's type.
func fromDriver(v any, typ itree.Type) (ir.Value, error) {
	if v == nil {
		return ir.Null{}, nil
	}
	switch typ.Primitive().Kind {
	case itree.KindBool:
		switch b := v.(type) {
		case bool:
			return ir.Bool(b), nil
		case int64:
			return ir.Bool(b != 0), nil
		}
	case itree.KindInt:
		switch n := v.(type) {
		case int64:
			return ir.Int(n), nil
		case float64:
			if n == float64(int64(n)) {
				return ir.Int(int64(n)), nil
			}
		}
	case itree.KindDecimal, itree.KindFloat:
		switch n := v.(type) {
		case int64:
			return ir.Decimal(strconv.FormatInt(n, 10)), nil
		case float64:
			return ir.ParseDecimal(strconv.FormatFloat(n, 'f', -1, 64))
		case string:
			return ir.ParseDecimal(n)
		case []byte:
			return ir.ParseDecimal(string(n))
		}
	case itree.KindString, itree.KindDateTime:
		switch s := v.(type) {
		case string:
			return ir.String(s), nil
		case []byte:
			return ir.String(s), nil
		case time.Time:
			return ir.String(s.UTC().Format(time.RFC3339)), nil
		}
	}
	return nil, fmt.Errorf("cannot read %T as %s", v, typ)
}

// Materialize builds the value described by shape from rows. Result
// columns follow the shape's leaves in order, so each row fills one
// element of the root collection.
func Materialize(shape colmap.ColumnMap, rows *Rows) (ir.Value, error) {
	if c, ok := shape.(*colmap.Collection); ok {
		list := make(ir.List, len(rows.Values))
		for i, row := range rows.Values {
			next := 0
			v, err := materialize(c.Element, row, &next)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	}
	if len(rows.Values) != 1 {
		return nil, fmt.Errorf("materialize: %s is not a collection but the statement returned %d rows", shape.Name(), len(rows.Values))
	}
	next := 0
	return materialize(shape, rows.Values[0], &next)
}

func materialize(m colmap.ColumnMap, row []ir.Value, next *int) (ir.Value, error) {
	switch m := m.(type) {
	case *colmap.VarRef:
		if *next >= len(row) {
			return nil, fmt.Errorf("materialize: row has %d columns, shape needs more", len(row))
		}
		v := row[*next]
		*next++
		return v, nil
	case *colmap.Record:
		obj := make(ir.Object, len(m.Properties))
		for _, p := range m.Properties {
			v, err := materialize(p, row, next)
			if err != nil {
				return nil, err
			}
			obj[p.Name()] = v
		}
		return obj, nil
	}
	return nil, fmt.Errorf("materialize: nested %T %s is not supported", m, m.Name())
}
