// Package plan compiles a canonical command tree into dialect SQL.
//
// ARCHITECTURE:
//
//	ctree.Tree
//	    │ Bind: resolve names, build the internal tree and result shape
//	    ▼
//	[itree.Command + RelNode + colmap.ColumnMap]
//	    │ nullsem → prune → joinelim → toplower
//	    ▼
//	sqlgen.Generate → SQL text + result columns
//
// The phase list is fixed and runs once, in order. Each phase reads the
// state left by the previous one and may replace the root node, the
// result shape and the parameter list; nodes themselves are never
// modified. After every phase the tree and shape are checked for internal
// consistency. A failed check is an *InternalError naming the phase and
// the offending node.
//
// ERRORS:
//
//   - *InputError: the command tree violates the input contract. Raised by
//     Bind, before any phase runs.
//   - *InternalError: a phase produced an inconsistent tree. Always a bug.
//   - *dialect.UnsupportedError: the target dialect cannot express the
//     query. No SQL text is returned.
//
// Nothing is retried. A compilation owns its Command exclusively, so
// separate compilations may run concurrently.
package plan
