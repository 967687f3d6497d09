package ctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qplan/internal/ir"
)

func shopCatalog() []TableDef {
	return []TableDef{
		{
			Name: "customers",
			Columns: []ColumnDef{
				{Name: "id", Type: "int"},
				{Name: "name", Type: "string"},
			},
			Key: []string{"id"},
		},
		{
			Name: "orders",
			Columns: []ColumnDef{
				{Name: "id", Type: "int"},
				{Name: "customer_id", Type: "int"},
				{Name: "status", Type: "int", Enum: "Status"},
			},
			Key: []string{"id"},
			ForeignKeys: []ForeignKeyDef{
				{Columns: []string{"customer_id"}, RefTable: "customers", RefColumns: []string{"id"}},
			},
		},
	}
}

func topCustomers() *Tree {
	return &Tree{
		Catalog: shopCatalog(),
		Query: &Limit{
			Count: &Literal{Value: ir.Int(5)},
			Input: &Sort{
				Keys: []SortKey{{Column: Ref("c", "name")}},
				Input: &Filter{
					Where: &Compare{Op: OpGt, Left: Ref("c", "id"), Right: &Param{Name: "min_id", Type: "int"}},
					Input: &Scan{Table: "customers", As: "c"},
				},
			},
		},
	}
}

func TestValidate_ValidTree(t *testing.T) {
	assert.Empty(t, Validate(topCustomers()))
}

func TestValidate_CatalogProblems(t *testing.T) {
	tree := topCustomers()
	tree.Catalog = append(tree.Catalog, TableDef{
		Name:    "lines",
		Columns: []ColumnDef{{Name: "order_id", Type: "int"}, {Name: "qty", Type: "quaternion"}},
		Key:     []string{"line_no"},
		ForeignKeys: []ForeignKeyDef{
			{Columns: []string{"order_id"}, RefTable: "orders", RefColumns: []string{"customer_id"}},
		},
	})

	issues := Validate(tree)
	require.Len(t, issues, 3)
	assert.Equal(t, "catalog.lines.columns.qty", issues[0].Path)
	assert.Contains(t, issues[1].String(), "unknown key column \"line_no\"")
	assert.Contains(t, issues[2].Message, "not the key of orders")
}

func TestValidate_QueryProblems(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		path  string
		want  string
	}{
		{
			name:  "missing input",
			query: &Filter{Where: Ref("", "id")},
			path:  "query.filter",
			want:  "missing input",
		},
		{
			name:  "negative limit",
			query: &Limit{Input: &Scan{Table: "customers"}, Count: &Literal{Value: ir.Int(-2)}},
			path:  "query.limit.count",
			want:  "non-negative",
		},
		{
			name:  "limit count expression",
			query: &Limit{Input: &Scan{Table: "customers"}, Count: Ref("", "id")},
			path:  "query.limit.count",
			want:  "literal or a parameter",
		},
		{
			name:  "inner join without condition",
			query: &Join{Kind: JoinInner, Left: &Scan{Table: "customers"}, Right: &Scan{Table: "orders"}},
			path:  "query.join",
			want:  "without a condition",
		},
		{
			name:  "untyped null",
			query: &Filter{Input: &Scan{Table: "customers"}, Where: &Compare{Op: OpEq, Left: Ref("", "id"), Right: &Literal{Value: ir.Null{}}}},
			path:  "query.filter.where.right",
			want:  "needs a type",
		},
		{
			name:  "unknown comparison",
			query: &Filter{Input: &Scan{Table: "customers"}, Where: &Compare{Op: "~", Left: Ref("", "id"), Right: Ref("", "id")}},
			path:  "query.filter.where",
			want:  "unknown comparison",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Validate(&Tree{Catalog: shopCatalog(), Query: tt.query})
			require.Len(t, issues, 1)
			assert.Equal(t, tt.path, issues[0].Path)
			assert.Contains(t, issues[0].Message, tt.want)
		})
	}
}

func TestValidate_Shape(t *testing.T) {
	tree := topCustomers()
	tree.Shape = &Shape{Columns: []ShapeColumn{
		{Name: "Name", Column: Ref("c", "name")},
		{Name: "Name", Column: Ref("c", "id")},
		{Name: "Empty"},
	}}

	issues := Validate(tree)
	require.Len(t, issues, 2)
	assert.Contains(t, issues[0].Message, "duplicate column")
	assert.Contains(t, issues[1].Message, "reference or fields")
}

func TestFingerprint_Stable(t *testing.T) {
	a, err := Fingerprint(topCustomers())
	require.NoError(t, err)
	b, err := Fingerprint(topCustomers())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := topCustomers()
	changed.Query.(*Limit).WithTies = true
	c, err := Fingerprint(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
