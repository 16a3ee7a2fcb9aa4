// Package value provides the typed scalar values that flow through the
// constraint engine: literal constants in filter expressions, attribute values
// in datasets, and parameters handed to query providers.
//
// This package contains value definitions only. Every other internal package
// may import value; value imports nothing internal.
//
// Key design constraints:
//   - Value is a sealed interface (marker method pattern). Only Null, String,
//     Int, Float, Bool, Time and Duration implement it.
//   - Text values are NFC normalised on construction so that equality and
//     ordering do not depend on the composition form of the input.
//   - Time values are always held in UTC.
//   - Format produces canonical text that Parse accepts back unchanged:
//     Parse(Format(v), v.Type()) equals v for every non-null v.
package value
