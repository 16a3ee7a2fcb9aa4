// Package plan is the boundary between the query engine and whatever
// storage executes a request: a deferred, composable query over one
// resource collection.
//
// ARCHITECTURE:
//
//	[query string] → [AST] → [compile] → [plan.Query] → [memsource]
//	                                                  → [store (SQLite)]
//
// A Query names a collection, a filter lambda, orderings, a page window,
// a projection and nested include queries. Providers execute it; nothing
// in this package refers to AST types, so parsers can change without
// touching providers.
//
// SEALED INTERFACES:
//
// Expr is sealed with a marker method. Providers switch exhaustively over
// the node kinds:
//
//	Param        lambda variable bound to one resource object
//	Const        scalar constant (Null included)
//	Member       attribute or relationship access on an object
//	Compare      ==, !=, >, >=, <, <=
//	Logical      && and ||
//	Not          negation
//	StringMatch  contains, startsWith, endsWith
//	In           membership in a constant list
//	Aggregate    any, count or sum over a to-many relationship
//	TypeIs       concrete type test for inheritance
//	Call         upper, lower, length
//	Lambda       parameter plus body
//
// NULL SEMANTICS:
//
// Compare with a Null constant on either side tests nullness (== and !=
// only). Any other comparison that sees a null operand is false. Nulls
// sort first in ascending order. Ties keep source (insertion) order.
//
// Queries and expressions are immutable once built. Builder methods on
// Query return modified copies.
package plan
