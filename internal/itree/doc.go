// Package itree provides the internal tree used between binding and SQL
// emission.
//
// ARCHITECTURE:
//
// A Command is the arena for one compilation. It owns every Var and hands
// out NodeIDs; nothing in this package is shared between Commands.
//
//	[ctree.Tree] → bind → [Command + RelNode] → phases → [RelNode] → sqlgen
//
// Node and Scalar are sealed sum types using the marker method pattern.
// Only this package declares operators, so type switches in the rewrite
// phases and the SQL generator can be exhaustive:
//
//	switch n := node.(type) {
//	case *Scan:
//	case *Filter:
//	...
//	default:
//	    // unreachable: report an assertion failure
//	}
//
// VARIABLES:
//
// A Var names one column or computed value flowing through the plan. Vars
// are created by the Command, carry a stable VarID and a declared Type,
// and are referenced (never copied) by nodes, VarSets and column maps.
//
// VarSet is a bitset over VarIDs (github.com/bits-and-blooms/bitset).
// Iteration is in ascending VarID order. Using a Var that belongs to a
// different Command is a programming error and panics with an assertion
// failure.
//
// IMMUTABILITY:
//
// Nodes are never modified after construction. A rewrite that changes a
// subtree builds new nodes for the changed spine and reuses the untouched
// subtrees, so a node observed by one phase is never altered behind its
// back by a later one.
package itree
