// Package resource is the schema registry consulted by the parser and the
// compiler: resource types, their attributes and relationships, the
// capabilities that govern which query string operations each field supports,
// and single inheritance between resource types.
//
// A registry is assembled with a Graph and then frozen. Freezing validates the
// whole graph, resolves relationship targets and base types, and precomputes
// every type's effective field set (own fields plus inherited ones) so that
// lookups during parsing are flat map accesses. A frozen Registry is immutable
// and safe for concurrent use.
//
// Definitions can be loaded from YAML or CUE files; see Load.
package resource
