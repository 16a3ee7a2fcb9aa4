// Package store provides a SQLite-backed plan.Provider.
//
// Tables are generated from a resource registry (see package querysql for
// the layout). Import replaces the stored objects with a dataset; Execute
// compiles a plan to SQL and scans the result into rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - One open connection. Includes are loaded after the parent rows are
//     closed, so a query never waits on its own connection.
//
// Every connection registers the scalar functions querysql.FuncUpper and
// querysql.FuncLower, which case-map the full Unicode range the way the
// in-memory provider does.
package store
