// Package store keeps run history in SQLite: one row per run, one per
// verdict and one per trace event.
//
// The store is append-only. Events are keyed by (run_id, seq), so writing
// the same event twice is a no-op and a trace can be re-imported safely.
//
// # Ordering
//
//   - Events are always read ORDER BY seq ASC, the engine's logical clock,
//     never wall time.
//   - Verdicts are read in execution order (position ASC).
//   - Runs are read in the order they were started.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Failures are stored as canonical JSON (see internal/canon) so the same
// verdict always produces the same bytes.
package store
