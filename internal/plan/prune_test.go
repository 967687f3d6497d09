package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
)

func TestPrune(t *testing.T) {
	customers := scan("customers", "c")
	tests := []struct {
		name    string
		query   ctree.Query
		want    string
		changed bool
	}{
		{
			name:    "unused scan columns",
			query:   &ctree.Project{Input: customers, Columns: []ctree.ProjectColumn{{Name: "name", Expr: ref("c", "name")}}},
			want:    "project [name#2]\n  scan customers as c [name#2]\n",
			changed: true,
		},
		{
			name: "predicate columns stay",
			query: &ctree.Project{
				Input:   &ctree.Filter{Input: customers, Where: cmp(">", ref("c", "id"), lit(ir.Int(1)))},
				Columns: []ctree.ProjectColumn{{Name: "name", Expr: ref("c", "name")}},
			},
			want:    "project [name#2]\n  filter (id#1 > 1)\n    scan customers as c [id#1 name#2]\n",
			changed: true,
		},
		{
			name: "distinct needs every column",
			query: &ctree.Project{
				Input:   &ctree.Distinct{Input: customers},
				Columns: []ctree.ProjectColumn{{Name: "name", Expr: ref("c", "name")}},
			},
			want: "project [name#2]\n  distinct\n    scan customers as c [id#1 name#2 city#3 active#4]\n",
		},
		{
			name:    "scan keeps one column",
			query:   &ctree.Project{Input: customers, Columns: []ctree.ProjectColumn{{Name: "one", Expr: lit(ir.Int(1))}}},
			want:    "project [] one#5 := 1\n  scan customers as c [id#1]\n",
			changed: true,
		},
		{
			name:  "already minimal",
			query: customers,
			want:  "scan customers as c [id#1 name#2 city#3 active#4]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := bindState(t, tt.query, nil, postgres)
			assert.Equal(t, tt.changed, runPhases(t, st, "prune"))
			assert.Equal(t, tt.want, itree.Format(st.root))
		})
	}
}

func TestPrune_Idempotent(t *testing.T) {
	st := bindState(t, &ctree.Project{
		Input: &ctree.Join{
			Kind: ctree.JoinLeft, Left: scan("orders", "o"), Right: scan("customers", "c"),
			On: cmp("=", ref("o", "customer_id"), ref("c", "id")),
		},
		Columns: []ctree.ProjectColumn{{Name: "total", Expr: ref("o", "total")}, {Name: "name", Expr: ref("c", "name")}},
	}, nil, postgres)

	assert.True(t, runPhases(t, st, "prune"))
	first := st.root

	changed, err := pruneProjections(st)
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, first, st.root)
}
