// Package store provides a SQLite-backed journal for the endog engine.
//
// Store implements journal.Journal on a single append-only table:
//
//	records(seq INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT, appended_at TEXT)
//
// # Ordering
//
// seq is assigned by SQLite in insertion order and never reused, so
// Replay (ORDER BY seq ASC) returns records in exactly the order they were
// appended.
//
// # Durability
//
// Each Append call is one transaction. A batch is either fully visible or
// not visible at all after a crash.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: A committed Append survives power loss
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// The pool is limited to one connection. Do not Append while ranging over
// Replay on the same Store.
package store
