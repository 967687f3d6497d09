package itree

// Column is a column of a catalog table.
type Column struct {
	Name string
	Type Type
}

// ForeignKey declares that Columns of the owning table reference RefColumns
// (ordinals) of RefTable, which must be that table's key. Referential
// integrity is assumed: a non-NULL foreign key always has a match.
type ForeignKey struct {
	Columns    []int
	RefTable   string
	RefColumns []int
}

// Table is resolved catalog metadata shared by every scan of the table.
type Table struct {
	Name        string
	Columns     []Column
	Key         []int
	ForeignKeys []ForeignKey
}

// ColumnOrdinal returns the ordinal of the named column.
func (t *Table) ColumnOrdinal(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// IsKey reports whether ords is exactly the table's key, in any order.
func (t *Table) IsKey(ords []int) bool {
	if len(t.Key) == 0 || len(ords) != len(t.Key) {
		return false
	}
	seen := make(map[int]bool, len(ords))
	for _, o := range ords {
		seen[o] = true
	}
	for _, k := range t.Key {
		if !seen[k] {
			return false
		}
	}
	return len(seen) == len(t.Key)
}
