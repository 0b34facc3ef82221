// Package store provides the SQLite journal of engine sessions.
//
// The journal is append-only:
//   - Sessions: one row per engine run, with the config hash and versions
//   - Inputs: every event the engine dispatched, as canonical JSON
//   - Transitions: every decision a behavior instance made
//
// Inputs and transitions share one logical seq per session, so reading
// both tables ordered by seq reproduces the interleaving. All queries
// order by seq ASC; timestamps are never used for ordering.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
