package store

import (
	"context"
	"iter"
	"time"

	"github.com/mangobank/ledger/internal/ledger"
)

// AccountByEmail returns the account registered under email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (ledger.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = ?
	`, email)

	a, err := scanAccount(row)
	return accountOrNotFound(a, err, "email", email)
}

// AccountByID returns the account with the given id.
func (s *Store) AccountByID(ctx context.Context, id string) (ledger.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?
	`, id)

	a, err := scanAccount(row)
	return accountOrNotFound(a, err, "id", id)
}

// Accounts returns every account ordered by id.
// Returns an empty slice (not nil) when there are none.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, ledger.Unavailable("query accounts", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, ledger.Unavailable("scan account", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, ledger.Unavailable("iterate accounts", err)
	}

	return accounts, nil
}

// TransferByKey returns the committed record with the idempotency key.
func (s *Store) TransferByKey(ctx context.Context, key string) (ledger.TransferRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE idempotency_key = ? AND status = 'committed'
	`, key)

	r, err := scanTransfer(row)
	return transferOrMissing(r, err)
}

// Transfers lazily yields committed records touching accountID, newest
// first, ties broken by append order.
//
// The query runs when the sequence is ranged over and its connection is
// held until iteration stops. Do not issue other store calls from inside
// the loop on a single-connection (":memory:") store.
func (s *Store) Transfers(ctx context.Context, accountID string, since time.Time) iter.Seq2[ledger.TransferRecord, error] {
	return func(yield func(ledger.TransferRecord, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+transferColumns+`
			FROM transfers
			WHERE status = 'committed'
			  AND (sender_account_id = ? OR recipient_account_id = ?)
			  AND timestamp >= ?
			ORDER BY timestamp DESC, seq DESC
		`, accountID, accountID, toNanos(since))
		if err != nil {
			yield(ledger.TransferRecord{}, ledger.Unavailable("query transfers", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanTransfer(rows)
			if err != nil {
				yield(ledger.TransferRecord{}, ledger.Unavailable("scan transfer", err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(ledger.TransferRecord{}, ledger.Unavailable("iterate transfers", err))
		}
	}
}
