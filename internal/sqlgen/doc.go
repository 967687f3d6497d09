// Package sqlgen renders a lowered internal tree as dialect-specific SQL.
//
// The emission side is a small tree of Fragments (column references,
// literals, operators, TopClause, Select) that render themselves through a
// Writer. The Writer handles indentation of derived tables and reserved
// slots: the SELECT modifiers (DISTINCT, TOP) are written into a slot that
// is filled only after the rest of the statement rendered.
//
// Generate walks the tree bottom-up, merging operators into one SELECT
// block while SQL allows it and turning the block into a derived table
// when it does not (a filter above a row limit, DISTINCT under a
// projection, a volatile computed column read twice).
package sqlgen
