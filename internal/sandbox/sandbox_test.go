package sandbox

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/plan"
	"github.com/roach88/qplan/internal/testutil"
)

// createTestSandbox opens an in-memory sandbox over the test catalog.
func createTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	s, err := Open(":memory:", testutil.Catalog())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPeople(t *testing.T, s *Sandbox) {
	t.Helper()
	data, err := ParseData([]byte(`
customers:
  - {id: 1, name: Ann, city: Paris, active: true}
  - {id: 2, name: Bob, city: null, active: true}
  - {id: 3, name: Cid, city: Lyon, active: false}
orders:
  - {id: 10, customer_id: 1, status: 1, total: "12.50"}
  - {id: 11, customer_id: 2, status: 2, total: "7", note: gift}
`))
	require.NoError(t, err)
	require.NoError(t, s.Seed(context.Background(), data))
}

func compile(t *testing.T, tree *ctree.Tree, opts ...plan.Option) *plan.Result {
	t.Helper()
	opts = append([]plan.Option{
		plan.WithIDGenerator(testutil.NewFixedIDGenerator("")),
		plan.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	res, err := plan.Compile(context.Background(), tree, dialect.MustNew(dialect.SQLite, 3), opts...)
	require.NoError(t, err)
	return res
}

func notParis() ctree.Query {
	return &ctree.Limit{
		Count: &ctree.Literal{Value: ir.Int(10)},
		Input: &ctree.Sort{
			Keys: []ctree.SortKey{{Column: ctree.Ref("c", "name")}},
			Input: &ctree.Filter{
				Input: &ctree.Scan{Table: "customers", As: "c"},
				Where: &ctree.Not{Arg: &ctree.Compare{Op: ctree.OpEq, Left: ctree.Ref("c", "city"), Right: &ctree.Literal{Value: ir.String("Paris")}}},
			},
		},
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox.db")
	s, err := Open(path, testutil.Catalog())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening keeps existing tables.
	s, err = Open(path, testutil.Catalog())
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM "customers"`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestOpen_ReservedTableName(t *testing.T) {
	_, err := Open(":memory:", []ctree.TableDef{{Name: "qplan_runs", Columns: []ctree.ColumnDef{{Name: "id", Type: "int"}}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestOpen_UnknownColumnType(t *testing.T) {
	_, err := Open(":memory:", []ctree.TableDef{{Name: "t", Columns: []ctree.ColumnDef{{Name: "x", Type: "blob"}}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table t column x")
}

func TestCreateTableSQL(t *testing.T) {
	ddl, err := createTableSQL(&testutil.Catalog()[1])
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "orders" (`+"\n"+
		`    "id" INTEGER NOT NULL,`+"\n"+
		`    "customer_id" INTEGER NOT NULL,`+"\n"+
		`    "status" INTEGER NOT NULL,`+"\n"+
		`    "total" NUMERIC NOT NULL,`+"\n"+
		`    "note" TEXT,`+"\n"+
		`    PRIMARY KEY ("id"),`+"\n"+
		`    FOREIGN KEY ("customer_id") REFERENCES "customers" ("id")`+"\n"+
		`)`, ddl)
}

func TestSeed_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown table", `nope: [{id: 1}]`, `unknown table "nope"`},
		{"unknown column", `customers: [{id: 1, name: A, active: true, zip: 1}]`, "unknown column"},
		{"missing not null", `customers: [{id: 1}]`, "customers[0]"},
		{"dangling foreign key", `orders: [{id: 1, customer_id: 99, status: 1, total: "1"}]`, "seed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestSandbox(t)
			data, err := ParseData([]byte(tt.data))
			require.NoError(t, err)
			err = s.Seed(context.Background(), data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseData_RejectsFractionalNumbers(t *testing.T) {
	_, err := ParseData([]byte(`orders: [{total: 1.5}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders[0]")
}

func TestRun_NullSemantics(t *testing.T) {
	s := createTestSandbox(t)
	seedPeople(t, s)

	rows, err := s.Run(context.Background(), compile(t, testutil.Tree(notParis())), nil)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.Value{
		{ir.Int(2), ir.String("Bob"), ir.Null{}, ir.Bool(true)},
		{ir.Int(3), ir.String("Cid"), ir.String("Lyon"), ir.Bool(false)},
	}, rows.Values)
	assert.Equal(t, ir.Object{"id": ir.Int(2), "name": ir.String("Bob"), "city": ir.Null{}, "active": ir.Bool(true)}, rows.Objects()[0])
}

func TestRun_Parameters(t *testing.T) {
	s := createTestSandbox(t)
	seedPeople(t, s)

	tree := testutil.Tree(&ctree.Limit{
		Count: &ctree.Literal{Value: ir.Int(1)},
		Input: &ctree.Sort{
			Keys: []ctree.SortKey{{Column: ctree.Ref("c", "id")}},
			Input: &ctree.Filter{
				Input: &ctree.Scan{Table: "customers", As: "c"},
				Where: &ctree.Compare{Op: ctree.OpGt, Left: ctree.Ref("c", "id"), Right: &ctree.Param{Name: "min", Type: "int"}},
			},
		},
	})
	tree.Shape = &ctree.Shape{Columns: []ctree.ShapeColumn{{Name: "id", Column: ctree.Ref("c", "id")}}}

	d := dialect.MustNew(dialect.SQLite, 3)
	d.ParameterizeLimits = true
	res, err := plan.Compile(context.Background(), tree, d,
		plan.WithIDGenerator(testutil.NewFixedIDGenerator("")),
		plan.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.Len(t, res.Params, 2)

	rows, err := s.Run(context.Background(), res, map[string]ir.Value{"min": ir.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Value{{ir.Int(2)}}, rows.Values)

	_, err = s.Run(context.Background(), res, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no value for parameter "min"`)
}

func TestRun_JoinAndMaterialize(t *testing.T) {
	s := createTestSandbox(t)
	seedPeople(t, s)

	tree := testutil.Tree(&ctree.Sort{
		Keys: []ctree.SortKey{{Column: ctree.Ref("o", "id")}},
		Input: &ctree.Join{
			Kind:  ctree.JoinLeft,
			Left:  &ctree.Scan{Table: "orders", As: "o"},
			Right: &ctree.Scan{Table: "customers", As: "c"},
			On:    &ctree.Compare{Op: ctree.OpEq, Left: ctree.Ref("o", "customer_id"), Right: ctree.Ref("c", "id")},
		},
	})
	tree.Shape = &ctree.Shape{
		Name: "orders",
		Columns: []ctree.ShapeColumn{
			{Name: "order", Column: ctree.Ref("o", "id")},
			{Name: "total", Column: ctree.Ref("o", "total")},
			{Name: "customer", Record: "customer", Fields: []ctree.ShapeColumn{
				{Name: "name", Column: ctree.Ref("c", "name")},
				{Name: "city", Column: ctree.Ref("c", "city")},
			}},
		},
	}
	res := compile(t, tree)

	rows, err := s.Run(context.Background(), res, nil)
	require.NoError(t, err)

	got, err := Materialize(res.Shape, rows)
	require.NoError(t, err)
	assert.Equal(t, ir.List{
		ir.Object{
			"order": ir.Int(10), "total": ir.Decimal("12.5"),
			"customer": ir.Object{"name": ir.String("Ann"), "city": ir.String("Paris")},
		},
		ir.Object{
			"order": ir.Int(11), "total": ir.Decimal("7"),
			"customer": ir.Object{"name": ir.String("Bob"), "city": ir.Null{}},
		},
	}, got)
}

func TestRun_RejectsOtherDialects(t *testing.T) {
	s := createTestSandbox(t)
	res, err := plan.Compile(context.Background(), testutil.Tree(notParis()), dialect.MustNew(dialect.Postgres, 16),
		plan.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), res, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox executes sqlite statements")
}

func TestRuns_Log(t *testing.T) {
	s := createTestSandbox(t)
	seedPeople(t, s)
	ctx := context.Background()

	ids := testutil.NewSequenceIDGenerator()
	first := compile(t, testutil.Tree(notParis()), plan.WithIDGenerator(ids))
	second := compile(t, testutil.Tree(notParis()), plan.WithIDGenerator(ids))

	for _, res := range []*plan.Result{first, first, second} {
		_, err := s.Run(ctx, res, nil)
		require.NoError(t, err)
	}

	runs, err := s.Runs(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 2, "rerunning a compilation is not logged twice")
	assert.Equal(t, "compilation-1", runs[0].ID)
	assert.Equal(t, "compilation-2", runs[1].ID)
	assert.Equal(t, "sqlite/3", runs[0].Dialect)
	assert.Equal(t, 2, runs[0].RowCount)
	assert.Equal(t, "{}", runs[0].Params)
	assert.Equal(t, first.SQL, runs[0].SQL)

	byFP, err := s.Runs(ctx, first.Fingerprint)
	require.NoError(t, err)
	assert.Len(t, byFP, 2)

	none, err := s.Runs(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
