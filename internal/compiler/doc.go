// Package compiler loads command tree documents.
//
// A document is a struct with three top-level fields:
//
//	catalog: list of tables {name, columns: [{name, type, nullable, enum}], key, foreign_keys}
//	query:   one query node
//	shape:   optional result shape {name, columns: [{name, col | record, fields}], keys}
//
// A query node has exactly one operator key:
//
//	scan:     {table, as} or just the table name
//	filter:   {input, where}
//	project:  {input, as, columns: [{name, expr}]}
//	join:     {kind: inner|left|cross, left, right, on}
//	sort:     {input, keys: ["c.name" | {col, desc}]}
//	limit:    {input, count, with_ties}
//	distinct: {input}
//
// Expressions are keyed by form: {col: "c.id"}, {lit: v, type}, {param, type},
// {op, args: [l, r]}, {and: [...]}, {or: [...]}, {not: e},
// {is_null: e, negated}, {call, args, type, volatile}. A bare scalar is a
// literal.
//
// CUE, YAML and JSON documents are all evaluated as CUE values, so errors
// carry a file position and the path of the offending field.
package compiler
