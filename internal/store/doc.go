// Package store provides the SQLite-backed solve log.
//
// The log is append-only:
//   - Sessions: one run of the solver over a program, identified by a
//     UUIDv7 and stamped with the fuel budget used
//   - Solve events: one record per solved goal in a session
//
// # Invariants
//
// Goal-level idempotency:
//   - UNIQUE(session_id, goal_key) constraint
//   - Logging the same obligation twice in one session keeps the first
//     record
//
// Logical time:
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//   - Every query orders by seq ASC, id ASC COLLATE BINARY
//
// Goal keys and solution hashes come from internal/ir/hash.go: canonical
// JSON and SHA-256 with domain separation. Replay re-solves each logged
// goal and compares solution hashes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
