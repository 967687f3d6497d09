package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/testutil"
)

func ref(source, column string) *ctree.ColumnRef { return ctree.Ref(source, column) }

func lit(v ir.Value) *ctree.Literal { return &ctree.Literal{Value: v} }

func scan(table, as string) *ctree.Scan { return &ctree.Scan{Table: table, As: as} }

func cmp(op string, l, r ctree.Expr) *ctree.Compare { return &ctree.Compare{Op: op, Left: l, Right: r} }

func columns(refs ...*ctree.ColumnRef) *ctree.Shape {
	s := &ctree.Shape{}
	for _, r := range refs {
		s.Columns = append(s.Columns, ctree.ShapeColumn{Name: r.Column, Column: r})
	}
	return s
}

// bindState binds q over the test catalog into a phase state.
func bindState(t *testing.T, q ctree.Query, shape *ctree.Shape, d *dialect.Dialect) *state {
	t.Helper()
	tree := testutil.Tree(q)
	tree.Shape = shape
	b, err := Bind(tree)
	require.NoError(t, err)
	return &state{cmd: b.Cmd, root: b.Root, shape: b.Shape, params: b.Params, dialect: d}
}

// runPhases runs the phases up to and including last, checking the state
// after each one, and reports whether last changed the tree.
func runPhases(t *testing.T, st *state, last string) bool {
	t.Helper()
	for _, p := range phases {
		changed, err := p.run(st)
		require.NoError(t, err, p.name)
		require.NoError(t, checkState(p.name, st))
		if p.name == last {
			return changed
		}
	}
	t.Fatalf("unknown phase %q", last)
	return false
}
