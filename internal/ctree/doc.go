// Package ctree defines the canonical command tree qplan compiles.
//
// A Tree is an already-authored relational query over a catalog of
// tables, plus an optional description of the result shape. It is the
// input contract of the plan compiler: names are still strings (tables,
// column references, parameters) and are resolved by the binder.
//
// Query and Expr are sealed interfaces using the marker method pattern,
// like the internal tree they are bound into:
//
//	Limit{Count: Literal{Value: ir.Int(5)}, Input:
//	  Sort{Keys: []SortKey{{Column: Ref("c", "name")}}, Input:
//	    Filter{Where: Compare{Op: "=", ...}, Input:
//	      Scan{Table: "customers", As: "c"}}}}
//
// Trees are plain values. The compiler package builds them from CUE, YAML
// or JSON documents; tests usually build them directly.
package ctree
