package ledger

import (
	"context"
	"iter"
	"time"

	"github.com/mangobank/ledger/internal/money"
)

// Reader is the read path over accounts and the transfer log. Reads outside
// a unit of work observe only committed state.
type Reader interface {
	// AccountByEmail returns the account with the given normalized email,
	// or an ErrAccountNotFound error.
	AccountByEmail(ctx context.Context, email string) (Account, error)

	// AccountByID returns the account with the given id, or an
	// ErrAccountNotFound error.
	AccountByID(ctx context.Context, id string) (Account, error)

	// Accounts returns every account ordered by id.
	Accounts(ctx context.Context) ([]Account, error)

	// TransferByKey returns the committed record carrying the idempotency
	// key. found is false when no committed record has it.
	TransferByKey(ctx context.Context, key string) (rec TransferRecord, found bool, err error)

	// Transfers lazily yields committed records referencing accountID with
	// Timestamp >= since, newest first. A zero since yields everything.
	// Each range over the returned sequence runs a fresh query.
	Transfers(ctx context.Context, accountID string, since time.Time) iter.Seq2[TransferRecord, error]
}

// Unit is the view of the ledger inside a single atomic unit of work.
// Nothing written through a Unit is visible outside it until the unit
// commits, and nothing is visible at all if it rolls back.
type Unit interface {
	// Account reads an account as of this unit.
	Account(ctx context.Context, id string) (Account, error)

	// TransferByKey is Reader.TransferByKey as of this unit.
	TransferByKey(ctx context.Context, key string) (rec TransferRecord, found bool, err error)

	// CompareAndUpdateBalance sets the balance of id to newBalance and its
	// UpdatedAt to at, provided the account is still at expectedVersion.
	// On success the version becomes expectedVersion+1. Returns an
	// ErrVersionConflict error if another writer got there first and an
	// ErrAccountNotFound error if id does not exist.
	CompareAndUpdateBalance(ctx context.Context, id string, expectedVersion int64, newBalance money.Amount, at time.Time) error

	// AppendTransfer appends rec to the log and returns it with Seq set.
	// A second committed record with the same idempotency key is rejected
	// with an ErrVersionConflict error.
	AppendTransfer(ctx context.Context, rec TransferRecord) (TransferRecord, error)
}

// Store is the durable ledger: accounts plus the append-only transfer log.
type Store interface {
	Reader

	// Atomically runs fn inside a unit of work. If fn returns nil the
	// unit commits; any error from fn, or from the commit itself, discards
	// every write fn made.
	Atomically(ctx context.Context, fn func(Unit) error) error

	// CreateAccount inserts a new account at version 0. Returns an
	// ErrAccountExists error when the email or id is taken.
	CreateAccount(ctx context.Context, acct Account) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
