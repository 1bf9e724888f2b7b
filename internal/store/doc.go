// Package store provides SQLite-backed durable storage for the ledger.
//
// The store holds two tables:
//   - accounts: balance, opening balance and version per account
//   - transfers: the append-only transfer log
//
// # Critical Patterns
//
// Atomic units of work
//   - Atomically wraps one BEGIN IMMEDIATE transaction
//   - Any error inside the unit rolls back every write it made
//
// Optimistic concurrency
//   - UPDATE ... WHERE id = ? AND version = ?
//   - Zero rows affected on an existing account is a version conflict
//
// Idempotency
//   - Partial UNIQUE index on idempotency_key for committed records
//   - A duplicate committed key surfaces as a version conflict so the
//     engine re-reads and replays the original record
//
// Append-only log
//   - UPDATE and DELETE on transfers abort via triggers
//
// Deterministic history
//   - ORDER BY timestamp DESC, seq DESC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Amounts are stored as int64 minor units and times as unix nanoseconds.
package store
