// Package ledger defines the account ledger's data model, error taxonomy and
// the storage contract shared by every backend.
//
// # Model
//
//   - Account: id, unique email, non-negative balance, version counter.
//   - TransferRecord: immutable log entry moving Amount from sender to
//     recipient, keyed for idempotency.
//
// # Reconciliation
//
// For every account, at all times:
//
//	Balance == OpeningBalance + Σ SignedAmountFor(account) over committed records
//
// # Storage
//
// Store implementations (internal/store for SQLite, internal/pgstore for
// PostgreSQL, internal/memstore in-process) provide Atomically, a scoped
// unit of work whose writes become visible together or not at all, and
// CompareAndUpdateBalance, the version-checked write that prevents lost
// updates between concurrent transfers.
package ledger
