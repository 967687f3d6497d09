package itree

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// VarSet is a set of Vars of one Command, stored as a bitset over VarIDs.
// The zero value is not usable; create sets with Command.NewVarSet.
type VarSet struct {
	cmd  *Command
	bits *bitset.BitSet
}

// NewVarSet returns a set holding vars.
func (c *Command) NewVarSet(vars ...*Var) *VarSet {
	s := &VarSet{cmd: c, bits: bitset.New(uint(len(c.vars) + 1))}
	for _, v := range vars {
		s.Set(v)
	}
	return s
}

// Command returns the arena the set belongs to.
func (s *VarSet) Command() *Command { return s.cmd }

// Set adds v.
func (s *VarSet) Set(v *Var) {
	s.cmd.mustOwn(v)
	s.bits.Set(uint(v.id))
}

// Clear removes v.
func (s *VarSet) Clear(v *Var) {
	s.cmd.mustOwn(v)
	s.bits.Clear(uint(v.id))
}

// Contains reports whether v is in the set.
func (s *VarSet) Contains(v *Var) bool {
	s.cmd.mustOwn(v)
	return s.bits.Test(uint(v.id))
}

// Len returns the number of vars in the set.
func (s *VarSet) Len() int {
	return int(s.bits.Count())
}

// Empty reports whether the set holds no vars.
func (s *VarSet) Empty() bool {
	return s.bits.None()
}

// Copy returns an independent copy.
func (s *VarSet) Copy() *VarSet {
	return &VarSet{cmd: s.cmd, bits: s.bits.Clone()}
}

// Union returns s ∪ o as a new set.
func (s *VarSet) Union(o *VarSet) *VarSet {
	s.sameCommand(o)
	return &VarSet{cmd: s.cmd, bits: s.bits.Union(o.bits)}
}

// UnionWith adds every var of o to s.
func (s *VarSet) UnionWith(o *VarSet) {
	s.sameCommand(o)
	s.bits.InPlaceUnion(o.bits)
}

// Intersection returns s ∩ o as a new set.
func (s *VarSet) Intersection(o *VarSet) *VarSet {
	s.sameCommand(o)
	return &VarSet{cmd: s.cmd, bits: s.bits.Intersection(o.bits)}
}

// Difference returns s \ o as a new set.
func (s *VarSet) Difference(o *VarSet) *VarSet {
	s.sameCommand(o)
	return &VarSet{cmd: s.cmd, bits: s.bits.Difference(o.bits)}
}

// Intersects reports whether s and o share a var.
func (s *VarSet) Intersects(o *VarSet) bool {
	s.sameCommand(o)
	return s.bits.IntersectionCardinality(o.bits) > 0
}

// Subsumes reports whether every var of o is also in s. The cost is
// proportional to the number of bitset words, not the number of vars.
func (s *VarSet) Subsumes(o *VarSet) bool {
	s.sameCommand(o)
	return o.bits.DifferenceCardinality(s.bits) == 0
}

// Equals reports whether s and o hold the same vars.
func (s *VarSet) Equals(o *VarSet) bool {
	s.sameCommand(o)
	// bitset.Equal also compares capacities, which differ when one set was
	// created before later vars were registered.
	return s.bits.SymmetricDifferenceCardinality(o.bits) == 0
}

// Vars returns the members in ascending VarID order.
func (s *VarSet) Vars() []*Var {
	out := make([]*Var, 0, s.Len())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, s.cmd.Var(VarID(i)))
	}
	return out
}

// First returns the member with the lowest VarID, or nil when empty.
func (s *VarSet) First() *Var {
	if i, ok := s.bits.NextSet(0); ok {
		return s.cmd.Var(VarID(i))
	}
	return nil
}

// Iter returns a cursor over the set in ascending VarID order. The cursor
// reflects the set as it is when Advance is called.
func (s *VarSet) Iter() *VarIter {
	return &VarIter{set: s}
}

func (s *VarSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range s.Vars() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte('}')
	return b.String()
}

func (s *VarSet) sameCommand(o *VarSet) {
	if o == nil || o.cmd != s.cmd {
		panic(errors.AssertionFailedf("var sets belong to different commands"))
	}
}

// VarIter is a restartable cursor over a VarSet.
//
//	it := set.Iter()
//	for it.Advance() {
//	    v := it.Current()
//	}
type VarIter struct {
	set     *VarSet
	next    uint
	current *Var
	done    bool
}

// Advance moves to the next member and reports whether there is one.
func (it *VarIter) Advance() bool {
	if it.done {
		return false
	}
	i, ok := it.set.bits.NextSet(it.next)
	if !ok {
		it.current = nil
		it.done = true
		return false
	}
	it.current = it.set.cmd.Var(VarID(i))
	it.next = i + 1
	return true
}

// Current returns the member the cursor is on: nil before the first
// Advance and after exhaustion.
func (it *VarIter) Current() *Var {
	return it.current
}

// Reset rewinds the cursor to before the first member.
func (it *VarIter) Reset() {
	it.next = 0
	it.current = nil
	it.done = false
}
