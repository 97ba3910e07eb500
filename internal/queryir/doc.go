// Package queryir provides the query plan produced by the specification
// compiler and consumed by execution backends.
//
// ARCHITECTURE:
//
// The plan sits between the specification compiler and the SQL backends:
//
//	[specification document] → [compiler] → [Plan] → [querysql: sqlite]
//	                                               → [querysql: postgres]
//
// A Plan is built once per request, never mutated after Compile returns, and
// never shared across requests. It holds no handle to any resource.
//
// PLAN CONTENTS:
//
//   - Entity and root table, with the root primary key column
//   - Joins: ordered, at most one per relationship path, all of one kind
//   - Predicate: a boolean tree of Leaf, And and Or nodes (nil = always true)
//   - Sort: ordered sort keys, optionally with a custom value order
//   - Projection: resolved field paths to return
//   - Group: optional group key with time granularity and timezone
//   - Window: limit and offset
//   - Keys: primary keys that tell fetched records apart
//
// SEALED INTERFACES:
//
// Node is a sealed interface using the marker method pattern. Only Leaf, And
// and Or implement it, which lets backends use exhaustive type switches:
//
//	switch n := node.(type) {
//	case Leaf:
//	    // Render one condition
//	case And:
//	    // Conjunction of children
//	case Or:
//	    // Disjunction of children
//	}
//
// OPERANDS:
//
// All literal operands are ir.Value. Temporal operands have already been
// coerced to ir.Time by the compiler (or passed through as ir.String when
// they could not be parsed and strict mode is off).
package queryir
