// Package colmap describes how result columns are derived from plan
// variables, and rewrites those descriptions when variables are
// substituted.
//
// A ColumnMap is either a VarRef (one var, with a display name and declared
// type) or a composite: a Record of named properties or a Collection with
// an element map and key maps. Column maps are immutable; Translate builds
// a new map and shares every subtree the substitution does not touch.
package colmap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/qplan/internal/itree"
)

// ColumnMap is a node of the result shape.
//
// This is a sealed interface - only types in this package implement it.
type ColumnMap interface {
	Name() string
	Type() itree.Type
	columnMap() // Marker method - seals interface to this package
}

// VarRef reads one var.
type VarRef struct {
	name string
	typ  itree.Type
	v    *itree.Var
}

// NewVarRef returns a map reading v, displayed as name with the declared
// type typ.
func NewVarRef(v *itree.Var, name string, typ itree.Type) *VarRef {
	return &VarRef{name: name, typ: typ, v: v}
}

// ForVar returns a map reading v under its own name and type.
func ForVar(v *itree.Var) *VarRef {
	return NewVarRef(v, v.Name(), v.Type())
}

func (r *VarRef) Name() string     { return r.name }
func (r *VarRef) Type() itree.Type { return r.typ }
func (r *VarRef) Var() *itree.Var  { return r.v }
func (*VarRef) columnMap()         {}

// Record is a structured value built from named properties.
type Record struct {
	name       string
	typ        itree.Type
	Properties []ColumnMap
}

// NewRecord returns a record map. typ is normally of KindRecord.
func NewRecord(name string, typ itree.Type, props ...ColumnMap) *Record {
	return &Record{name: name, typ: typ, Properties: props}
}

func (r *Record) Name() string     { return r.name }
func (r *Record) Type() itree.Type { return r.typ }
func (*Record) columnMap()         {}

// Collection is a set of rows. Element describes one row; Keys identify
// rows for materialization.
type Collection struct {
	name    string
	typ     itree.Type
	Element ColumnMap
	Keys    []ColumnMap
}

// NewCollection returns a collection map.
func NewCollection(name string, typ itree.Type, element ColumnMap, keys ...ColumnMap) *Collection {
	return &Collection{name: name, typ: typ, Element: element, Keys: keys}
}

func (c *Collection) Name() string     { return c.name }
func (c *Collection) Type() itree.Type { return c.typ }
func (*Collection) columnMap()         {}

// rename returns m under a new name, keeping m's type and structure.
func rename(m ColumnMap, name string) ColumnMap {
	if m.Name() == name {
		return m
	}
	switch m := m.(type) {
	case *VarRef:
		return &VarRef{name: name, typ: m.typ, v: m.v}
	case *Record:
		return &Record{name: name, typ: m.typ, Properties: m.Properties}
	case *Collection:
		return &Collection{name: name, typ: m.typ, Element: m.Element, Keys: m.Keys}
	}
	panic(errors.AssertionFailedf("unhandled column map %T", m))
}

// Leaves returns the VarRef maps of m in depth-first order. For a
// collection only the element is visited.
func Leaves(m ColumnMap) []*VarRef {
	var out []*VarRef
	var walk func(ColumnMap)
	walk = func(m ColumnMap) {
		switch m := m.(type) {
		case *VarRef:
			out = append(out, m)
		case *Record:
			for _, p := range m.Properties {
				walk(p)
			}
		case *Collection:
			walk(m.Element)
		}
	}
	walk(m)
	return out
}

// Vars returns every var m references, keys included.
func Vars(cmd *itree.Command, m ColumnMap) *itree.VarSet {
	out := cmd.NewVarSet()
	var walk func(ColumnMap)
	walk = func(m ColumnMap) {
		switch m := m.(type) {
		case *VarRef:
			out.Set(m.v)
		case *Record:
			for _, p := range m.Properties {
				walk(p)
			}
		case *Collection:
			walk(m.Element)
			for _, k := range m.Keys {
				walk(k)
			}
		}
	}
	walk(m)
	return out
}

// Check verifies that every var m references is in produced and that each
// VarRef's declared type agrees with its var's type. Disagreement is an
// assertion failure.
func Check(m ColumnMap, produced *itree.VarSet) error {
	var err error
	var walk func(ColumnMap)
	walk = func(m ColumnMap) {
		if err != nil {
			return
		}
		switch m := m.(type) {
		case *VarRef:
			if !produced.Command().Owns(m.v) {
				err = errors.AssertionFailedf("column %q references %s from a different command", m.name, m.v)
				return
			}
			if !produced.Contains(m.v) {
				err = errors.AssertionFailedf("column %q references %s, which the plan does not produce", m.name, m.v)
				return
			}
			if !typesAgree(m.typ, m.v.Type()) {
				err = errors.AssertionFailedf("column %q declared %s but %s is %s", m.name, m.typ, m.v, m.v.Type())
			}
		case *Record:
			for _, p := range m.Properties {
				walk(p)
			}
		case *Collection:
			walk(m.Element)
			for _, k := range m.Keys {
				walk(k)
			}
		}
	}
	walk(m)
	return err
}

// typesAgree compares storage kinds. An enum column over an int var agrees,
// as does a nullable declaration over a non-nullable var.
func typesAgree(declared, actual itree.Type) bool {
	d, a := declared.Primitive(), actual.Primitive()
	if d.Kind == itree.KindUnknown || a.Kind == itree.KindUnknown {
		return true
	}
	if a.Nullable && !d.Nullable {
		return false
	}
	return d.Kind == a.Kind
}

// Format renders m on one line, e.g. "rows{id: id#1, name: name#2}".
func Format(m ColumnMap) string {
	var b strings.Builder
	format(&b, m)
	return b.String()
}

func format(b *strings.Builder, m ColumnMap) {
	switch m := m.(type) {
	case *VarRef:
		b.WriteString(m.v.String())
	case *Record:
		b.WriteByte('{')
		for i, p := range m.Properties {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: ", p.Name())
			format(b, p)
		}
		b.WriteByte('}')
	case *Collection:
		fmt.Fprintf(b, "%s", m.name)
		format(b, m.Element)
		if len(m.Keys) > 0 {
			b.WriteString(" keys(")
			for i, k := range m.Keys {
				if i > 0 {
					b.WriteString(", ")
				}
				format(b, k)
			}
			b.WriteByte(')')
		}
	}
}

// JSON is the wire form of a ColumnMap. It decodes back into itself, so
// tools reading compiler output need no Command.
type JSON struct {
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Var        int     `json:"var,omitempty"`
	Properties []*JSON `json:"properties,omitempty"`
	Element    *JSON   `json:"element,omitempty"`
	Keys       []*JSON `json:"keys,omitempty"`
}

// ToJSON converts m to its wire form. A nil map gives nil.
func ToJSON(m ColumnMap) *JSON {
	if m == nil {
		return nil
	}
	out := &JSON{Name: m.Name(), Type: m.Type().String()}
	switch m := m.(type) {
	case *VarRef:
		out.Kind = "var"
		out.Var = int(m.v.ID())
	case *Record:
		out.Kind = "record"
		for _, p := range m.Properties {
			out.Properties = append(out.Properties, ToJSON(p))
		}
	case *Collection:
		out.Kind = "collection"
		out.Element = ToJSON(m.Element)
		for _, k := range m.Keys {
			out.Keys = append(out.Keys, ToJSON(k))
		}
	}
	return out
}

func (r *VarRef) MarshalJSON() ([]byte, error)     { return json.Marshal(ToJSON(r)) }
func (r *Record) MarshalJSON() ([]byte, error)     { return json.Marshal(ToJSON(r)) }
func (c *Collection) MarshalJSON() ([]byte, error) { return json.Marshal(ToJSON(c)) }
