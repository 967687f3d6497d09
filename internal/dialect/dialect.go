// Package dialect describes the SQL variants qplan can emit.
//
// A Dialect is read-only input to a compilation: it names the target
// database and version and answers capability questions (is the TOP count
// parenthesized, is WITH TIES available, may a row limit be a parameter).
// Rendering helpers for identifiers, literals and placeholders live here
// so that SQL fragments never branch on dialect names themselves.
package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Name identifies a SQL variant.
type Name string

const (
	SQLServer Name = "sqlserver"
	Postgres  Name = "postgres"
	SQLite    Name = "sqlite"
)

// Names lists the supported dialects.
var Names = []Name{SQLServer, Postgres, SQLite}

// defaultVersions are used when a dialect is given without a version.
var defaultVersions = map[Name]int{
	SQLServer: 16,
	Postgres:  16,
	SQLite:    3,
}

// Dialect is a target SQL variant and version.
type Dialect struct {
	Name    Name `yaml:"name" json:"name"`
	Version int  `yaml:"version" json:"version"`

	// ParameterizeLimits emits literal row-limit counts as parameters where
	// the dialect allows it, so plans differing only in the count share
	// SQL text.
	ParameterizeLimits bool `yaml:"parameterize_limits" json:"parameterize_limits"`
}

// New returns the dialect name at version, or at its default version when
// version is zero.
func New(name Name, version int) (*Dialect, error) {
	d := &Dialect{Name: name, Version: version}
	if err := d.normalize(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustNew is New for statically known dialects.
func MustNew(name Name, version int) *Dialect {
	d, err := New(name, version)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dialect) normalize() error {
	d.Name = Name(strings.ToLower(strings.TrimSpace(string(d.Name))))
	def, ok := defaultVersions[d.Name]
	if !ok {
		return fmt.Errorf("unknown dialect %q (want one of %s)", d.Name, joinNames())
	}
	if d.Version == 0 {
		d.Version = def
	}
	if d.Version < 0 {
		return fmt.Errorf("dialect %s: invalid version %d", d.Name, d.Version)
	}
	return nil
}

// ParseRef parses the "name" or "name/version" form printed by String.
func ParseRef(ref string) (*Dialect, error) {
	name, ver, ok := strings.Cut(ref, "/")
	version := 0
	if ok {
		n, err := strconv.Atoi(ver)
		if err != nil {
			return nil, fmt.Errorf("dialect %q: invalid version %q", ref, ver)
		}
		version = n
	}
	return New(Name(name), version)
}

func joinNames() string {
	parts := make([]string, len(Names))
	for i, n := range Names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

func (d *Dialect) String() string {
	return fmt.Sprintf("%s/%d", d.Name, d.Version)
}

// UsesTop reports whether row limits are written as a TOP modifier.
func (d *Dialect) UsesTop() bool {
	return d.Name == SQLServer
}

// TopParenthesized reports whether the TOP count is wrapped in parentheses.
// SQL Server 2000 (version 8) accepts only the bare literal form.
func (d *Dialect) TopParenthesized() bool {
	return d.Name == SQLServer && d.Version >= 9
}

// SupportsWithTies reports whether a row limit can keep ties.
func (d *Dialect) SupportsWithTies() bool {
	switch d.Name {
	case SQLServer:
		return true
	case Postgres:
		return d.Version >= 13
	}
	return false
}

// SupportsParameterizedLimit reports whether a row-limit count may be a
// parameter rather than a literal.
func (d *Dialect) SupportsParameterizedLimit() bool {
	if d.Name == SQLServer {
		return d.Version >= 9
	}
	return true
}

// HasBooleanValues reports whether predicates can be used as values and
// boolean literals stand on their own in a WHERE clause.
func (d *Dialect) HasBooleanValues() bool {
	return d.Name != SQLServer
}

// QuoteIdent quotes an identifier.
func (d *Dialect) QuoteIdent(s string) string {
	if d.Name == SQLServer {
		return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
	}
	return pq.QuoteIdentifier(s)
}

// QuoteString renders a string literal.
func (d *Dialect) QuoteString(s string) string {
	switch d.Name {
	case SQLServer:
		return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
	case Postgres:
		// pq prefixes literals containing backslashes with " E".
		return strings.TrimPrefix(pq.QuoteLiteral(s), " ")
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// BoolLiteral renders a boolean constant used as a value.
func (d *Dialect) BoolLiteral(b bool) string {
	switch d.Name {
	case SQLServer:
		if b {
			return "CAST(1 AS bit)"
		}
		return "CAST(0 AS bit)"
	case SQLite:
		if b {
			return "1"
		}
		return "0"
	}
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Placeholder renders the reference to a query parameter. ordinal is the
// 1-based position of the parameter in the statement's parameter list.
func (d *Dialect) Placeholder(name string, ordinal int) string {
	switch d.Name {
	case SQLServer:
		return "@" + name
	case Postgres:
		return "$" + strconv.Itoa(ordinal)
	}
	return ":" + name
}

// ConcatOp is the string concatenation operator.
func (d *Dialect) ConcatOp() string {
	if d.Name == SQLServer {
		return "+"
	}
	return "||"
}
