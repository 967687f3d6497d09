package plan

import (
	"sort"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/itree"
)

// eliminateJoins removes joins whose right input contributes nothing but
// values already known on the left:
//
//   - a self-join of one table on its full key collapses into a single
//     scan; right vars map to the left vars of the same column
//   - a left outer join to a table on its key, where nothing above uses
//     the right side, becomes its left input
//   - a join over a declared foreign key to the referenced table's key,
//     where only the right key columns are used, becomes its left input
//     and the right key vars map to the foreign key vars. An inner join
//     additionally needs the foreign key to be non-nullable.
//
// Var substitutions are applied to every operator above the join and to
// the result shape through the column map translator.
func eliminateJoins(st *state) (bool, error) {
	je := &joinEliminator{cmd: st.cmd, subst: make(map[itree.VarID]*itree.Var)}
	root := je.rel(st.root, colmap.Vars(st.cmd, st.shape))
	if root == st.root {
		return false, nil
	}
	st.root = root
	st.shape = colmap.Translate(st.shape, colmap.VarMapping(je.subst))
	return true, nil
}

type joinEliminator struct {
	cmd *itree.Command

	// subst maps eliminated vars to their replacements. It is kept flat:
	// no replacement is itself a key.
	subst map[itree.VarID]*itree.Var
}

func (je *joinEliminator) addSubst(from, to *itree.Var) {
	if next, ok := je.subst[to.ID()]; ok {
		to = next
	}
	for id, v := range je.subst {
		if v == from {
			je.subst[id] = to
		}
	}
	je.subst[from.ID()] = to
}

func (je *joinEliminator) resolve(v *itree.Var) *itree.Var {
	if to, ok := je.subst[v.ID()]; ok {
		return to
	}
	return v
}

// rel rewrites n bottom-up. needed holds the vars the operators above n
// reference.
func (je *joinEliminator) rel(n itree.RelNode, needed *itree.VarSet) itree.RelNode {
	childNeeded := je.childNeeded(n, needed)
	inputs := itree.Inputs(n)
	next := make([]itree.RelNode, len(inputs))
	for i, in := range inputs {
		next[i] = je.rel(in, childNeeded)
	}
	n = je.substitute(je.cmd.WithInputs(n, next...))

	if j, ok := n.(*itree.Join); ok {
		if out, ok := je.eliminate(j, needed); ok {
			return out
		}
	}
	return n
}

func (je *joinEliminator) childNeeded(n itree.RelNode, needed *itree.VarSet) *itree.VarSet {
	switch n := n.(type) {
	case *itree.Filter:
		return needed.Union(je.cmd.ScalarVars(n.Predicate))
	case *itree.Project:
		out := n.Passthrough.Copy()
		for _, d := range n.Defs {
			out.UnionWith(je.cmd.ScalarVars(d.Expr))
		}
		return out
	case *itree.Join:
		return needed.Union(je.cmd.ScalarVars(n.On))
	case *itree.Sort:
		out := needed.Copy()
		for _, k := range n.Keys {
			out.Set(k.Var)
		}
		return out
	case *itree.Distinct:
		return itree.Outputs(n.Input)
	}
	return needed
}

// substitute applies the current var substitution to the scalars of n.
func (je *joinEliminator) substitute(n itree.RelNode) itree.RelNode {
	if len(je.subst) == 0 {
		return n
	}
	switch n := n.(type) {
	case *itree.Filter:
		pred := je.cmd.ReplaceVars(n.Predicate, je.subst)
		if pred == n.Predicate {
			return n
		}
		return je.cmd.NewFilter(n.Input, pred)

	case *itree.Project:
		changed := false
		passthrough := je.cmd.NewVarSet()
		for _, v := range n.Passthrough.Vars() {
			to := je.resolve(v)
			changed = changed || to != v
			passthrough.Set(to)
		}
		defs := make([]itree.VarDef, len(n.Defs))
		for i, d := range n.Defs {
			expr := je.cmd.ReplaceVars(d.Expr, je.subst)
			changed = changed || expr != d.Expr
			defs[i] = itree.VarDef{Var: d.Var, Expr: expr}
		}
		if !changed {
			return n
		}
		return je.cmd.NewProject(n.Input, passthrough, defs)

	case *itree.Join:
		if n.On == nil {
			return n
		}
		on := je.cmd.ReplaceVars(n.On, je.subst)
		if on == n.On {
			return n
		}
		return je.cmd.NewJoin(n.Kind, n.Left, n.Right, on)

	case *itree.Sort:
		changed := false
		seen := je.cmd.NewVarSet()
		keys := make([]itree.SortKey, 0, len(n.Keys))
		for _, k := range n.Keys {
			to := je.resolve(k.Var)
			changed = changed || to != k.Var
			if seen.Contains(to) {
				changed = true
				continue
			}
			seen.Set(to)
			keys = append(keys, itree.SortKey{Var: to, Desc: k.Desc})
		}
		if !changed {
			return n
		}
		return je.cmd.NewSort(n.Input, keys)
	}
	return n
}

// varPair is one conjunct left = right of a join condition.
type varPair struct {
	left, right *itree.Var
}

// equiPairs splits a join condition into var equalities between the two
// inputs. It fails when any conjunct is something else.
func (je *joinEliminator) equiPairs(j *itree.Join, right *itree.Scan) ([]varPair, bool) {
	conjuncts := []itree.Scalar{j.On}
	if and, ok := j.On.(*itree.And); ok {
		conjuncts = and.Args
	}
	leftOuts := itree.Outputs(j.Left)
	pairs := make([]varPair, 0, len(conjuncts))
	for _, c := range conjuncts {
		cmp, ok := c.(*itree.Compare)
		if !ok || cmp.Op != itree.OpEq {
			return nil, false
		}
		a, aok := cmp.Left.(*itree.VarRef)
		b, bok := cmp.Right.(*itree.VarRef)
		if !aok || !bok {
			return nil, false
		}
		switch {
		case leftOuts.Contains(a.Var) && right.Cols.Contains(b.Var):
			pairs = append(pairs, varPair{left: a.Var, right: b.Var})
		case leftOuts.Contains(b.Var) && right.Cols.Contains(a.Var):
			pairs = append(pairs, varPair{left: b.Var, right: a.Var})
		default:
			return nil, false
		}
	}
	return pairs, true
}

func (je *joinEliminator) eliminate(j *itree.Join, needed *itree.VarSet) (itree.RelNode, bool) {
	if j.Kind == itree.CrossJoin {
		return nil, false
	}
	right, ok := j.Right.(*itree.Scan)
	if !ok {
		return nil, false
	}
	pairs, ok := je.equiPairs(j, right)
	if !ok {
		return nil, false
	}

	rightCols := make([]int, len(pairs))
	for i, p := range pairs {
		rightCols[i] = p.right.Column()
	}
	if !right.Table.IsKey(rightCols) {
		return nil, false
	}

	if left, ok := j.Left.(*itree.Scan); ok && left.Table == right.Table && sameColumns(pairs) {
		return je.mergeScans(left, right), true
	}

	usedRight := right.Cols.Intersection(needed)
	if j.Kind == itree.LeftOuterJoin && usedRight.Empty() {
		return j.Left, true
	}

	paired := je.cmd.NewVarSet()
	for _, p := range pairs {
		paired.Set(p.right)
	}
	if !paired.Subsumes(usedRight) || !foreignKeyJoin(pairs, right.Table) {
		return nil, false
	}
	if j.Kind == itree.InnerJoin {
		nullable := itree.NullableVars(j.Left)
		for _, p := range pairs {
			if nullable.Contains(p.left) {
				return nil, false
			}
		}
	}
	for _, p := range pairs {
		je.addSubst(p.right, p.left)
	}
	return j.Left, true
}

func sameColumns(pairs []varPair) bool {
	for _, p := range pairs {
		if p.left.Table() != p.right.Table() || p.left.Column() != p.right.Column() {
			return false
		}
	}
	return true
}

// mergeScans folds a key self-join into one scan. Right vars for columns
// the left scan already reads are substituted; the rest join the scan.
func (je *joinEliminator) mergeScans(left, right *itree.Scan) *itree.Scan {
	vars := append([]*itree.Var(nil), left.Vars...)
	byColumn := make(map[int]*itree.Var, len(vars))
	for _, v := range vars {
		byColumn[v.Column()] = v
	}
	for _, r := range right.Vars {
		if l, ok := byColumn[r.Column()]; ok {
			je.addSubst(r, l)
			continue
		}
		vars = append(vars, r)
		byColumn[r.Column()] = r
	}
	sort.SliceStable(vars, func(i, k int) bool { return vars[i].Column() < vars[k].Column() })
	return je.cmd.NewScan(left.Table, left.Alias, vars)
}

// foreignKeyJoin reports whether pairs equate exactly the columns of a
// foreign key declared on the left vars' table with the key of ref.
func foreignKeyJoin(pairs []varPair, ref *itree.Table) bool {
	tab := pairs[0].left.Table()
	if tab == nil {
		return false
	}
	for _, p := range pairs {
		if p.left.Table() != tab {
			return false
		}
	}
	for _, fk := range tab.ForeignKeys {
		if fk.RefTable != ref.Name || len(fk.Columns) != len(pairs) {
			continue
		}
		matched := 0
		for _, p := range pairs {
			for i := range fk.Columns {
				if fk.Columns[i] == p.left.Column() && fk.RefColumns[i] == p.right.Column() {
					matched++
					break
				}
			}
		}
		if matched == len(pairs) {
			return true
		}
	}
	return false
}
