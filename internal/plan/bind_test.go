package plan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
	"github.com/roach88/qplan/internal/testutil"
)

func TestBind_ScanDefaultShape(t *testing.T) {
	b, err := Bind(testutil.Tree(scan("customers", "c")))
	require.NoError(t, err)

	assert.Equal(t, "scan customers as c [id#1 name#2 city#3 active#4]\n", itree.Format(b.Root))
	assert.Equal(t, "rows{id: id#1, name: name#2, city: city#3, active: active#4}", colmap.Format(b.Shape))

	leaves := colmap.Leaves(b.Shape)
	require.Len(t, leaves, 4)
	assert.True(t, leaves[2].Type().Nullable, "city is nullable")
	assert.False(t, leaves[0].Type().Nullable)
}

func TestBind_ScansShareTable(t *testing.T) {
	b, err := Bind(testutil.Tree(&ctree.Join{
		Kind: ctree.JoinInner, Left: scan("employees", "e"), Right: scan("employees", "m"),
		On: cmp("=", ref("e", "manager_id"), ref("m", "id")),
	}))
	require.NoError(t, err)

	join := b.Root.(*itree.Join)
	assert.Same(t, join.Left.(*itree.Scan).Table, join.Right.(*itree.Scan).Table)
}

func TestBind_EnumColumn(t *testing.T) {
	b, err := Bind(testutil.Tree(scan("orders", "")))
	require.NoError(t, err)

	status := b.Root.(*itree.Scan).Vars[2]
	assert.Equal(t, itree.KindEnum, status.Type().Kind)
	assert.Equal(t, "order_status", status.Type().Name)
	assert.Equal(t, itree.KindInt, status.Type().Primitive().Kind)
}

func TestBind_ProjectComputedVar(t *testing.T) {
	b, err := Bind(testutil.Tree(&ctree.Project{
		Input: scan("customers", "c"),
		Columns: []ctree.ProjectColumn{
			{Name: "id", Expr: ref("c", "id")},
			{Name: "label", Expr: &ctree.Arith{Op: ctree.OpConcat, Left: ref("c", "name"), Right: lit(ir.String("!"))}},
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, "project [id#1] label#5 := (name#2 || \"!\")\n"+
		"  scan customers as c [id#1 name#2 city#3 active#4]\n", itree.Format(b.Root))
	assert.Equal(t, "rows{id: id#1, label: label#5}", colmap.Format(b.Shape))
}

func TestBind_ShapeWithRecordAndKeys(t *testing.T) {
	tree := testutil.Tree(scan("customers", "c"))
	tree.Shape = &ctree.Shape{
		Name: "customers",
		Columns: []ctree.ShapeColumn{
			{Name: "key", Column: ref("c", "id")},
			{Name: "info", Record: "Info", Fields: []ctree.ShapeColumn{
				{Name: "name", Column: ref("c", "name")},
				{Name: "city", Column: ref("", "city")},
			}},
		},
		Keys: []*ctree.ColumnRef{ref("c", "id")},
	}
	b, err := Bind(tree)
	require.NoError(t, err)

	assert.Equal(t, "customers{key: id#1, info: {name: name#2, city: city#3}} keys(id#1)", colmap.Format(b.Shape))
}

func TestBind_ParamsInFirstUseOrder(t *testing.T) {
	b, err := Bind(testutil.Tree(&ctree.Filter{
		Input: scan("customers", "c"),
		Where: &ctree.And{Args: []ctree.Expr{
			cmp("<=", ref("c", "id"), &ctree.Param{Name: "max", Type: "int"}),
			cmp(">=", ref("c", "id"), &ctree.Param{Name: "min", Type: "int"}),
			cmp("<>", ref("c", "id"), &ctree.Param{Name: "max", Type: "int"}),
		}},
	}))
	require.NoError(t, err)

	require.Len(t, b.Params, 2)
	assert.Equal(t, "max", b.Params[0].Name)
	assert.Equal(t, "min", b.Params[1].Name)
	assert.Equal(t, itree.IntType, b.Params[0].Type)
}

func TestBind_Errors(t *testing.T) {
	customers := scan("customers", "c")
	tests := []struct {
		name  string
		query ctree.Query
		code  string
		path  string
	}{
		{
			name:  "unknown table",
			query: scan("nope", ""),
			code:  ErrUnknownTable,
			path:  "query.scan",
		},
		{
			name:  "unknown column",
			query: &ctree.Filter{Input: customers, Where: cmp("=", ref("", "zip"), lit(ir.Int(1)))},
			code:  ErrUnknownColumn,
			path:  "query.filter.where.left",
		},
		{
			name: "ambiguous column",
			query: &ctree.Filter{
				Input: &ctree.Join{
					Kind: ctree.JoinInner, Left: customers, Right: scan("orders", "o"),
					On: cmp("=", ref("c", "id"), ref("o", "customer_id")),
				},
				Where: cmp("=", ref("", "id"), lit(ir.Int(1))),
			},
			code: ErrAmbiguousColumn,
			path: "query.filter.where.left",
		},
		{
			name:  "incomparable types",
			query: &ctree.Filter{Input: customers, Where: cmp("=", ref("c", "name"), lit(ir.Int(1)))},
			code:  ErrTypeMismatch,
			path:  "query.filter.where",
		},
		{
			name:  "non-boolean predicate",
			query: &ctree.Filter{Input: customers, Where: ref("c", "name")},
			code:  ErrTypeMismatch,
			path:  "query.filter.where",
		},
		{
			name: "parameter with two types",
			query: &ctree.Filter{Input: customers, Where: &ctree.And{Args: []ctree.Expr{
				cmp("=", ref("c", "id"), &ctree.Param{Name: "p", Type: "int"}),
				cmp("=", ref("c", "name"), &ctree.Param{Name: "p", Type: "string"}),
			}}},
			code: ErrParamRedeclared,
			path: "query.filter.where.and[1].right",
		},
		{
			name:  "ties without ordering",
			query: &ctree.Limit{Input: customers, Count: lit(ir.Int(5)), WithTies: true},
			code:  ErrTiesWithoutOrder,
			path:  "query.limit",
		},
		{
			name:  "negative count",
			query: &ctree.Limit{Input: customers, Count: lit(ir.Int(-1))},
			code:  ErrInvalidTree,
			path:  "query.limit.count",
		},
		{
			name:  "concatenating numbers",
			query: &ctree.Project{Input: customers, Columns: []ctree.ProjectColumn{{Name: "x", Expr: &ctree.Arith{Op: ctree.OpConcat, Left: ref("c", "id"), Right: ref("c", "id")}}}},
			code:  ErrTypeMismatch,
			path:  "query.project.x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(testutil.Tree(tt.query))
			require.Error(t, err)
			var ie *InputError
			require.True(t, errors.As(err, &ie), "got %v", err)
			assert.Equal(t, tt.code, ie.Code, ie.Error())
			assert.Equal(t, tt.path, ie.Path)
			assert.False(t, IsInternalError(err))
		})
	}
}

func TestBind_InvalidTreeCountsIssues(t *testing.T) {
	tree := &ctree.Tree{Query: &ctree.Limit{Input: &ctree.Sort{}, Count: lit(ir.Int(-1))}}
	_, err := Bind(tree)
	require.True(t, IsInputError(err))
	assert.Contains(t, err.Error(), "more)")
}

func TestInputError_Format(t *testing.T) {
	err := &InputError{Code: ErrUnknownColumn, Path: "query.filter", Message: "unknown column c.zip"}
	assert.Equal(t, "[E203] query.filter: unknown column c.zip", err.Error())

	err.Path = ""
	assert.Equal(t, "[E203] unknown column c.zip", err.Error())
}
