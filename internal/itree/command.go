package itree

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// VarID is the stable identity of a Var within its Command. IDs start at 1.
type VarID int

// NodeID is the stable identity of a node within its Command.
type NodeID int

// VarKind says where a Var's values come from.
type VarKind int

const (
	// ColumnVar reads a column of a scanned table.
	ColumnVar VarKind = iota
	// ComputedVar is defined by an expression in a Project.
	ComputedVar
)

// Var is an immutable handle for one column or value in the plan.
type Var struct {
	id     VarID
	name   string
	typ    Type
	kind   VarKind
	table  *Table
	column int
	owner  *Command
}

// ID returns the var's stable identity.
func (v *Var) ID() VarID { return v.id }

// Name returns the var's preferred column name.
func (v *Var) Name() string { return v.name }

// Type returns the declared type.
func (v *Var) Type() Type { return v.typ }

// Kind returns the var's provenance.
func (v *Var) Kind() VarKind { return v.kind }

// Table returns the scanned table of a ColumnVar, nil otherwise.
func (v *Var) Table() *Table { return v.table }

// Column returns the column ordinal of a ColumnVar.
func (v *Var) Column() int { return v.column }

// ColumnName returns the underlying catalog column name of a ColumnVar.
func (v *Var) ColumnName() string {
	if v.table == nil {
		return v.name
	}
	return v.table.Columns[v.column].Name
}

func (v *Var) String() string {
	return fmt.Sprintf("%s#%d", v.name, v.id)
}

// Command is the compilation-scoped arena that owns all Vars and node
// identities of one query. A Command is not safe for concurrent use.
type Command struct {
	vars     []*Var
	lastNode NodeID
}

// NewCommand returns an empty Command.
func NewCommand() *Command {
	return &Command{}
}

// NewColumnVar registers a var reading column ord of tab.
func (c *Command) NewColumnVar(tab *Table, ord int) *Var {
	col := tab.Columns[ord]
	return c.add(&Var{name: col.Name, typ: col.Type, kind: ColumnVar, table: tab, column: ord})
}

// NewComputedVar registers a var defined by an expression.
func (c *Command) NewComputedVar(name string, typ Type) *Var {
	return c.add(&Var{name: name, typ: typ, kind: ComputedVar, column: -1})
}

func (c *Command) add(v *Var) *Var {
	v.id = VarID(len(c.vars) + 1)
	v.owner = c
	c.vars = append(c.vars, v)
	return v
}

// Var returns the var with the given id. Asking for an id the Command never
// issued is a programming error.
func (c *Command) Var(id VarID) *Var {
	if id < 1 || int(id) > len(c.vars) {
		panic(errors.AssertionFailedf("var %d not in command (have %d)", id, len(c.vars)))
	}
	return c.vars[id-1]
}

// NumVars returns the number of vars registered so far.
func (c *Command) NumVars() int {
	return len(c.vars)
}

// Owns reports whether v was created by c.
func (c *Command) Owns(v *Var) bool {
	return v != nil && v.owner == c
}

func (c *Command) nextNodeID() NodeID {
	c.lastNode++
	return c.lastNode
}

func (c *Command) mustOwn(v *Var) {
	if v == nil {
		panic(errors.AssertionFailedf("nil var"))
	}
	if v.owner != c {
		panic(errors.AssertionFailedf("var %s belongs to a different command", v))
	}
}
