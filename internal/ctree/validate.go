package ctree

import (
	"fmt"

	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
)

// Issue is one structural problem found by Validate.
type Issue struct {
	// Path locates the problem, e.g. "catalog.orders.key" or
	// "query.limit.input.filter.where".
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Validate checks the tree for structural problems that do not need name
// resolution: catalog consistency, missing operator inputs and operator
// spellings. Name resolution and type checking happen during binding.
//
// Validate is a pure function with no side effects.
func Validate(t *Tree) []Issue {
	v := &validator{issues: []Issue{}}
	v.validateCatalog(t)
	if t.Query == nil {
		v.add("query", "missing query")
	} else {
		v.validateQuery("query", t.Query)
	}
	if t.Shape != nil {
		v.validateShape("shape", t.Shape)
	}
	return v.issues
}

// validator accumulates issues during traversal.
type validator struct {
	issues []Issue
}

func (v *validator) add(path, format string, args ...any) {
	v.issues = append(v.issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validateCatalog(t *Tree) {
	seen := make(map[string]bool)
	for _, tab := range t.Catalog {
		path := "catalog." + tab.Name
		if tab.Name == "" {
			v.add("catalog", "table without a name")
			continue
		}
		if seen[tab.Name] {
			v.add(path, "duplicate table")
		}
		seen[tab.Name] = true
		if len(tab.Columns) == 0 {
			v.add(path, "table has no columns")
		}

		cols := make(map[string]bool)
		nullable := make(map[string]bool)
		for _, c := range tab.Columns {
			nullable[c.Name] = c.Nullable
			if cols[c.Name] {
				v.add(path+".columns", "duplicate column %q", c.Name)
			}
			cols[c.Name] = true
			if _, err := itree.ParseTypeKind(c.Type); err != nil {
				v.add(path+".columns."+c.Name, "%v", err)
			}
		}
		for _, k := range tab.Key {
			if !cols[k] {
				v.add(path+".key", "unknown key column %q", k)
			} else if nullable[k] {
				v.add(path+".key", "key column %q is nullable", k)
			}
		}
		for i, fk := range tab.ForeignKeys {
			fkPath := fmt.Sprintf("%s.foreign_keys[%d]", path, i)
			for _, c := range fk.Columns {
				if !cols[c] {
					v.add(fkPath, "unknown column %q", c)
				}
			}
			if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) {
				v.add(fkPath, "column count mismatch (%d vs %d)", len(fk.Columns), len(fk.RefColumns))
			}
			ref, ok := t.Table(fk.RefTable)
			if !ok {
				v.add(fkPath, "unknown referenced table %q", fk.RefTable)
				continue
			}
			if !sameNames(ref.Key, fk.RefColumns) {
				v.add(fkPath, "referenced columns %v are not the key of %s", fk.RefColumns, ref.Name)
			}
		}
	}
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

func (v *validator) validateQuery(path string, q Query) {
	switch q := q.(type) {
	case *Scan:
		if q.Table == "" {
			v.add(path+".scan", "missing table")
		}
	case *Filter:
		v.input(path+".filter", q.Input)
		v.validateExpr(path+".filter.where", q.Where)
	case *Project:
		v.input(path+".project", q.Input)
		if len(q.Columns) == 0 {
			v.add(path+".project", "no columns")
		}
		names := make(map[string]bool)
		for _, c := range q.Columns {
			if c.Name == "" {
				v.add(path+".project", "column without a name")
			} else if names[c.Name] {
				v.add(path+".project", "duplicate column %q", c.Name)
			}
			names[c.Name] = true
			v.validateExpr(path+".project."+c.Name, c.Expr)
		}
	case *Join:
		p := path + ".join"
		switch q.Kind {
		case JoinInner, JoinLeft:
			if q.On == nil {
				v.add(p, "%s join without a condition", q.Kind)
			} else {
				v.validateExpr(p+".on", q.On)
			}
		case JoinCross:
			if q.On != nil {
				v.add(p, "cross join with a condition")
			}
		default:
			v.add(p, "unknown join kind %q", q.Kind)
		}
		if q.Left == nil || q.Right == nil {
			v.add(p, "join needs two inputs")
			return
		}
		v.validateQuery(p+".left", q.Left)
		v.validateQuery(p+".right", q.Right)
	case *Sort:
		v.input(path+".sort", q.Input)
		if len(q.Keys) == 0 {
			v.add(path+".sort", "no keys")
		}
		for _, k := range q.Keys {
			if k.Column == nil {
				v.add(path+".sort", "key without a column")
			}
		}
	case *Limit:
		v.input(path+".limit", q.Input)
		switch c := q.Count.(type) {
		case *Literal:
			if n, ok := c.Value.(ir.Int); !ok || n < 0 {
				v.add(path+".limit.count", "count must be a non-negative integer, got %s", ir.Describe(c.Value))
			}
		case *Param:
		case nil:
			v.add(path+".limit", "missing count")
		default:
			v.add(path+".limit.count", "count must be a literal or a parameter")
		}
	case *Distinct:
		v.input(path+".distinct", q.Input)
	case nil:
		v.add(path, "missing query")
	default:
		v.add(path, "unknown query node %T", q)
	}
}

func (v *validator) input(path string, in Query) {
	if in == nil {
		v.add(path, "missing input")
		return
	}
	v.validateQuery(path+".input", in)
}

var compareOps = map[string]bool{OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true}
var arithOps = map[string]bool{OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpConcat: true}

func (v *validator) validateExpr(path string, e Expr) {
	switch e := e.(type) {
	case *ColumnRef:
		if e.Column == "" {
			v.add(path, "column reference without a column")
		}
	case *Literal:
		if e.Value == nil {
			v.add(path, "literal without a value")
		}
		if _, isNull := e.Value.(ir.Null); isNull && e.Type == "" {
			v.add(path, "NULL literal needs a type")
		}
	case *Param:
		if e.Name == "" {
			v.add(path, "parameter without a name")
		}
		if _, err := itree.ParseTypeKind(e.Type); err != nil {
			v.add(path, "parameter %q: %v", e.Name, err)
		}
	case *Compare:
		if !compareOps[e.Op] {
			v.add(path, "unknown comparison %q", e.Op)
		}
		v.validateExpr(path+".left", e.Left)
		v.validateExpr(path+".right", e.Right)
	case *And:
		v.validateArgs(path+".and", e.Args)
	case *Or:
		v.validateArgs(path+".or", e.Args)
	case *Not:
		v.validateExpr(path+".not", e.Arg)
	case *IsNull:
		v.validateExpr(path+".is_null", e.Arg)
	case *Arith:
		if !arithOps[e.Op] {
			v.add(path, "unknown operator %q", e.Op)
		}
		v.validateExpr(path+".left", e.Left)
		v.validateExpr(path+".right", e.Right)
	case *Call:
		if e.Func == "" {
			v.add(path, "call without a function name")
		}
		if _, err := itree.ParseTypeKind(e.Type); err != nil {
			v.add(path, "call %s: %v", e.Func, err)
		}
		for i, a := range e.Args {
			v.validateExpr(fmt.Sprintf("%s.args[%d]", path, i), a)
		}
	case nil:
		v.add(path, "missing expression")
	default:
		v.add(path, "unknown expression %T", e)
	}
}

func (v *validator) validateArgs(path string, args []Expr) {
	if len(args) == 0 {
		v.add(path, "no arguments")
	}
	for i, a := range args {
		v.validateExpr(fmt.Sprintf("%s[%d]", path, i), a)
	}
}

func (v *validator) validateShape(path string, s *Shape) {
	if len(s.Columns) == 0 {
		v.add(path, "no columns")
	}
	v.validateShapeColumns(path, s.Columns)
}

func (v *validator) validateShapeColumns(path string, cols []ShapeColumn) {
	names := make(map[string]bool)
	for _, c := range cols {
		p := path + "." + c.Name
		if c.Name == "" {
			v.add(path, "column without a name")
		} else if names[c.Name] {
			v.add(path, "duplicate column %q", c.Name)
		}
		names[c.Name] = true
		switch {
		case c.Column != nil && len(c.Fields) > 0:
			v.add(p, "column has both a reference and fields")
		case c.Column == nil && len(c.Fields) == 0:
			v.add(p, "column needs a reference or fields")
		case len(c.Fields) > 0:
			v.validateShapeColumns(p, c.Fields)
		}
	}
}
