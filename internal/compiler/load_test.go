package compiler

import (
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/testutil"
)

func topCustomers() *ctree.Tree {
	join := &ctree.Join{
		Kind:  ctree.JoinLeft,
		Left:  &ctree.Scan{Table: "customers", As: "c"},
		Right: &ctree.Scan{Table: "orders", As: "o"},
		On:    &ctree.Compare{Op: ctree.OpEq, Left: ctree.Ref("o", "customer_id"), Right: ctree.Ref("c", "id")},
	}
	filter := &ctree.Filter{
		Input: join,
		Where: &ctree.And{Args: []ctree.Expr{
			&ctree.Compare{Op: ctree.OpEq, Left: ctree.Ref("c", "city"), Right: &ctree.Literal{Value: ir.String("Paris")}},
			ctree.Ref("c", "active"),
			&ctree.Compare{Op: ctree.OpGt, Left: ctree.Ref("o", "total"), Right: &ctree.Literal{Value: ir.Decimal("10.50"), Type: "decimal"}},
		}},
	}
	return &ctree.Tree{
		Catalog: testutil.Catalog()[:2],
		Query: &ctree.Limit{
			Count:    &ctree.Literal{Value: ir.Int(3)},
			WithTies: true,
			Input: &ctree.Sort{
				Keys:  []ctree.SortKey{{Column: ctree.Ref("c", "name"), Desc: true}},
				Input: filter,
			},
		},
		Shape: &ctree.Shape{
			Name: "customers",
			Columns: []ctree.ShapeColumn{
				{Name: "id", Column: ctree.Ref("c", "id")},
				{Name: "info", Record: "info", Fields: []ctree.ShapeColumn{
					{Name: "name", Column: ctree.Ref("c", "name")},
					{Name: "total", Column: ctree.Ref("o", "total")},
				}},
			},
			Keys: []*ctree.ColumnRef{ctree.Ref("c", "id")},
		},
	}
}

func TestLoad_AllFormats(t *testing.T) {
	want := topCustomers()
	wantFP, err := ctree.Fingerprint(want)
	require.NoError(t, err)

	for _, name := range []string{"top_customers.cue", "top_customers.yaml", "top_customers.json"} {
		t.Run(name, func(t *testing.T) {
			tree, err := Load(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, want, tree)

			fp, err := ctree.Fingerprint(tree)
			require.NoError(t, err)
			assert.Equal(t, wantFP, fp)
			assert.Empty(t, ctree.Validate(tree))
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.cue", FormatCUE},
		{"dir/b.yaml", FormatYAML},
		{"c.YML", FormatYAML},
		{"d.json", FormatJSON},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := FormatOf("query.sql")
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "file", ce.Field)
	assert.Contains(t, ce.Message, "unsupported document extension")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "file", ce.Field)
}

func TestParse_Shorthands(t *testing.T) {
	doc := `
catalog:
  - name: customers
    columns: [{name: id, type: int}, {name: name, type: string}]
query:
  limit:
    count: {param: n, type: int}
    input:
      sort:
        keys: [name, {col: id, desc: true}]
        input:
          distinct:
            input:
              filter:
                where: {is_null: {col: name}, negated: true}
                input: {scan: customers}
`
	tree, err := Parse("short.yaml", []byte(doc), FormatYAML)
	require.NoError(t, err)

	want := &ctree.Limit{
		Count: &ctree.Param{Name: "n", Type: "int"},
		Input: &ctree.Sort{
			Keys: []ctree.SortKey{
				{Column: ctree.Ref("", "name")},
				{Column: ctree.Ref("", "id"), Desc: true},
			},
			Input: &ctree.Distinct{Input: &ctree.Filter{
				Where: &ctree.IsNull{Arg: ctree.Ref("", "name"), Negated: true},
				Input: &ctree.Scan{Table: "customers"},
			}},
		},
	}
	assert.Equal(t, want, tree.Query)
	assert.Nil(t, tree.Shape)
}

func TestParse_Expressions(t *testing.T) {
	doc := `{
  "catalog": [],
  "query": {"project": {
    "input": {"scan": {"table": "orders", "as": "o"}},
    "as": "p",
    "columns": [
      {"name": "label", "expr": {"op": "||", "args": [{"col": "o.note"}, "!"]}},
      {"name": "double", "expr": {"op": "*", "args": [{"col": "o.total"}, 2.5]}},
      {"name": "seen", "expr": {"call": "now", "args": [], "type": "datetime", "volatile": true}},
      {"name": "flag", "expr": {"or": [{"not": {"col": "o.id"}}, {"lit": null, "type": "bool"}]}},
      {"name": "other", "expr": {"op": "!=", "args": [1, false]}}
    ]
  }}
}`
	tree, err := Parse("exprs.json", []byte(doc), FormatJSON)
	require.NoError(t, err)

	p, ok := tree.Query.(*ctree.Project)
	require.True(t, ok)
	assert.Equal(t, "p", p.As)
	require.Len(t, p.Columns, 5)

	assert.Equal(t, &ctree.Arith{Op: ctree.OpConcat, Left: ctree.Ref("o", "note"), Right: &ctree.Literal{Value: ir.String("!")}}, p.Columns[0].Expr)
	assert.Equal(t, &ctree.Arith{Op: ctree.OpMul, Left: ctree.Ref("o", "total"), Right: &ctree.Literal{Value: ir.Decimal("2.5")}}, p.Columns[1].Expr)
	assert.Equal(t, &ctree.Call{Func: "now", Args: []ctree.Expr{}, Type: "datetime", Volatile: true}, p.Columns[2].Expr)
	assert.Equal(t, &ctree.Or{Args: []ctree.Expr{
		&ctree.Not{Arg: ctree.Ref("o", "id")},
		&ctree.Literal{Value: ir.Null{}, Type: "bool"},
	}}, p.Columns[3].Expr)
	assert.Equal(t, &ctree.Compare{Op: ctree.OpNe, Left: &ctree.Literal{Value: ir.Int(1)}, Right: &ctree.Literal{Value: ir.Bool(false)}}, p.Columns[4].Expr)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		field  string
		substr string
	}{
		{
			name:   "missing query",
			doc:    `catalog: []`,
			field:  "query",
			substr: "field is required",
		},
		{
			name:   "two operators",
			doc:    `query: {scan: "a", distinct: {input: {scan: "a"}}}`,
			field:  "query",
			substr: "exactly one of scan, filter",
		},
		{
			name:   "unknown operator",
			doc:    `query: {union: {}}`,
			field:  "query.union",
			substr: `unknown query operator "union"`,
		},
		{
			name:   "missing filter input",
			doc:    `query: filter: where: {col: "a"}`,
			field:  "query.filter.input",
			substr: "field is required",
		},
		{
			name:   "bad column type",
			doc:    `catalog: [{name: "t", columns: [{name: "a", type: 3}]}], query: scan: "t"`,
			field:  "catalog[0].columns[0].type",
			substr: "must be a string",
		},
		{
			name:   "unknown expression",
			doc:    `query: filter: {input: scan: "t", where: {column: "a"}}`,
			field:  "query.filter.where",
			substr: "unrecognized expression",
		},
		{
			name:   "operator arity",
			doc:    `query: filter: {input: scan: "t", where: {op: "=", args: [1]}}`,
			field:  "query.filter.where.args",
			substr: "takes 2 arguments, got 1",
		},
		{
			name:   "unknown operator symbol",
			doc:    `query: filter: {input: scan: "t", where: {op: "%", args: [1, 2]}}`,
			field:  "query.filter.where.op",
			substr: `unknown operator "%"`,
		},
		{
			name:   "computed limit count",
			doc:    `query: limit: {input: scan: "t", count: {op: "+", args: [1, 2]}}`,
			field:  "query.limit.count",
			substr: "literal or a parameter",
		},
		{
			name:   "malformed column reference",
			doc:    `query: sort: {input: scan: "t", keys: [".a"]}`,
			field:  "query.sort.keys[0]",
			substr: "malformed column reference",
		},
		{
			name:   "shape column without source",
			doc:    `query: scan: "t", shape: columns: [{name: "x"}]`,
			field:  "shape.columns[0]",
			substr: `"x" needs col or fields`,
		},
		{
			name:   "param without type",
			doc:    `query: limit: {input: scan: "t", count: {param: "n"}}`,
			field:  "query.limit.count.type",
			substr: "field is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("doc.cue", []byte(tt.doc), FormatCUE)
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.substr)
		})
	}
}

func TestParse_ErrorPositions(t *testing.T) {
	doc := "query:\n  limit:\n    input: {scan: t}\n    count: 1\n    with_ties: maybe\n"
	_, err := Parse("pos.yaml", []byte(doc), FormatYAML)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "query.limit.with_ties", ce.Field)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, "pos.yaml", ce.Pos.Filename())
	assert.Equal(t, 5, ce.Pos.Line())
	assert.Contains(t, err.Error(), "pos.yaml:5:")
}

func TestParse_IncompleteCUE(t *testing.T) {
	doc := `
query: scan: table: string
`
	_, err := Parse("incomplete.cue", []byte(doc), FormatCUE)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Field, "query.scan.table")
	assert.True(t, ce.Pos.IsValid())
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse("broken.json", []byte(`{"query": `), FormatJSON)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
}

func TestDecode_NotAStruct(t *testing.T) {
	v := cuecontext.New().CompileString(`[1, 2]`)
	_, err := Decode(v)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "document", ce.Field)
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "query.scan", Message: "bad"}
	assert.Equal(t, "query.scan: bad", err.Error())
}
