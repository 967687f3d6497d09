// Package sandbox executes compiled SQLite statements against seeded data.
//
// A Sandbox is a SQLite database whose tables are created from a command
// tree catalog. Tests and the run command seed rows, execute a compiled
// plan.Result and compare the rows, or the result materialized into the
// requested shape, against expectations.
//
// # Storage
//
//   - Catalog columns map to SQLite declared types: int INTEGER, bool
//     BOOLEAN, float REAL, decimal NUMERIC, string and datetime TEXT. Enums
//     use their storage type.
//   - Keys become PRIMARY KEY constraints and foreign keys are enforced.
//     Seeding defers foreign key checks to commit, so tables may be seeded
//     in any order within one call.
//   - Every run is appended to the qplan_runs log, keyed by compilation ID.
//     Recording the same compilation twice is a no-op.
//
// # Database Configuration
//
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - a single connection, so ":memory:" databases survive between calls
package sandbox
