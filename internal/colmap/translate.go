package colmap

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/qplan/internal/itree"
)

// Translate rewrites m under a var substitution. Every VarRef whose var is
// a key of mapping is replaced by the mapped ColumnMap; the replacement
// keeps the name of the node it replaces and the type of the substitute.
// Subtrees containing no mapped var are returned by reference, so an empty
// mapping returns m itself.
func Translate(m ColumnMap, mapping map[itree.VarID]ColumnMap) ColumnMap {
	if len(mapping) == 0 {
		return m
	}
	return translate(m, mapping)
}

func translate(m ColumnMap, mapping map[itree.VarID]ColumnMap) ColumnMap {
	switch m := m.(type) {
	case *VarRef:
		sub, ok := mapping[m.v.ID()]
		if !ok {
			return m
		}
		return rename(sub, m.name)

	case *Record:
		props, changed := translateAll(m.Properties, mapping)
		if !changed {
			return m
		}
		return &Record{name: m.name, typ: m.typ, Properties: props}

	case *Collection:
		elem := translate(m.Element, mapping)
		keys, keysChanged := translateAll(m.Keys, mapping)
		if elem == m.Element && !keysChanged {
			return m
		}
		return &Collection{name: m.name, typ: m.typ, Element: elem, Keys: keys}
	}
	panic(errors.AssertionFailedf("unhandled column map %T", m))
}

func translateAll(ms []ColumnMap, mapping map[itree.VarID]ColumnMap) ([]ColumnMap, bool) {
	var out []ColumnMap
	for i, child := range ms {
		next := translate(child, mapping)
		if next != child && out == nil {
			out = make([]ColumnMap, len(ms))
			copy(out, ms[:i])
		}
		if out != nil {
			out[i] = next
		}
	}
	if out == nil {
		return ms, false
	}
	return out, true
}

// VarMapping turns a var-to-var substitution into a translator mapping.
// Each substitute keeps its own type.
func VarMapping(subst map[itree.VarID]*itree.Var) map[itree.VarID]ColumnMap {
	if len(subst) == 0 {
		return nil
	}
	out := make(map[itree.VarID]ColumnMap, len(subst))
	for id, v := range subst {
		out[id] = ForVar(v)
	}
	return out
}
