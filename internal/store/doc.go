// Package store provides the SQLite storage collaborator that executes
// query plans.
//
// The store holds:
//   - Expenses: one row per recorded expense, amounts in minor units
//   - Expense Companions: who an expense was shared with
//
// # Critical Patterns
//
// One read per plan:
//   - Execute compiles the plan with querysql and runs it in a single
//     read-only transaction
//   - The reconciliation pipeline never writes; InsertExpense exists for
//     seeding only
//
// Deterministic results:
//   - Every multi-row query ends in ORDER BY ... COLLATE BINARY with an id
//     tiebreaker, so a given plan over given data always returns the same rows
//
// No floats:
//   - Aggregates are integer minor units, averages included
//   - An aggregate that is undefined over zero rows is reported as absent,
//     never as zero
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
