package plan

import (
	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/itree"
)

// pruneProjections removes Scan columns and Project outputs nothing above
// consumes. The set of needed vars flows top-down from the result shape;
// a subtree whose outputs are already covered by the needed set is left
// as is. Running the phase on its own output changes nothing.
func pruneProjections(st *state) (bool, error) {
	p := &pruner{cmd: st.cmd}
	root := p.prune(st.root, colmap.Vars(st.cmd, st.shape))
	changed := root != st.root
	st.root = root
	return changed, nil
}

type pruner struct {
	cmd *itree.Command
}

func (p *pruner) prune(n itree.RelNode, needed *itree.VarSet) itree.RelNode {
	switch n := n.(type) {
	case *itree.Scan:
		if needed.Subsumes(n.Cols) {
			return n
		}
		var kept []*itree.Var
		for _, v := range n.Vars {
			if needed.Contains(v) {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			// A scan must read something to produce its rows.
			kept = n.Vars[:1]
		}
		if len(kept) == len(n.Vars) {
			return n
		}
		return p.cmd.NewScan(n.Table, n.Alias, kept)

	case *itree.Filter:
		in := p.prune(n.Input, needed.Union(p.cmd.ScalarVars(n.Predicate)))
		return p.cmd.WithInputs(n, in)

	case *itree.Project:
		return p.project(n, needed)

	case *itree.Join:
		childNeeded := needed.Union(p.cmd.ScalarVars(n.On))
		return p.cmd.WithInputs(n, p.prune(n.Left, childNeeded), p.prune(n.Right, childNeeded))

	case *itree.Sort:
		childNeeded := needed.Copy()
		for _, k := range n.Keys {
			childNeeded.Set(k.Var)
		}
		return p.cmd.WithInputs(n, p.prune(n.Input, childNeeded))

	case *itree.Limit:
		return p.cmd.WithInputs(n, p.prune(n.Input, needed.Union(p.cmd.ScalarVars(n.Count))))

	case *itree.Distinct:
		// Every column takes part in duplicate elimination.
		return p.cmd.WithInputs(n, p.prune(n.Input, itree.Outputs(n.Input)))
	}
	return n
}

func (p *pruner) project(n *itree.Project, needed *itree.VarSet) itree.RelNode {
	passthrough, defs := n.Passthrough, n.Defs
	if !needed.Subsumes(itree.Outputs(n)) {
		passthrough = n.Passthrough.Intersection(needed)
		defs = nil
		for _, d := range n.Defs {
			if needed.Contains(d.Var) {
				defs = append(defs, d)
			}
		}
		if passthrough.Empty() && len(defs) == 0 {
			if first := n.Passthrough.First(); first != nil {
				passthrough.Set(first)
			} else {
				defs = n.Defs[:1]
			}
		}
	}

	childNeeded := passthrough.Copy()
	for _, d := range defs {
		childNeeded.UnionWith(p.cmd.ScalarVars(d.Expr))
	}
	in := p.prune(n.Input, childNeeded)
	if in == n.Input && len(defs) == len(n.Defs) && passthrough.Equals(n.Passthrough) {
		return n
	}
	return p.cmd.NewProject(in, passthrough, defs)
}
