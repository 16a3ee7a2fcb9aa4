// Package engine runs query strings end to end.
//
// ARCHITECTURE:
//
// Pipeline:
// 1. constraint.ParseQuery splits the raw query string into parameters
// 2. constraint.Reader parses each parameter and groups the results by scope
// 3. compile.Compiler turns the constraint set into a plan.Query
// 4. a plan.Provider (memsource or store) executes the plan
//
// Steps 1 to 3 are pure. An Engine holds a frozen registry, a parser and a
// compiler, all immutable, so one Engine serves concurrent requests.
//
// Request errors surface as *constraint.ErrorList. Anything else is a
// defect or a provider failure.
package engine
