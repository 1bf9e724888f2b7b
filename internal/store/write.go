package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

// CreateAccount inserts acct at version 0.
// A duplicate id or email is reported as ledger.ErrAccountExists.
func (s *Store) CreateAccount(ctx context.Context, acct ledger.Account) error {
	if acct.Balance.IsNegative() || acct.OpeningBalance.IsNegative() {
		return ledger.WrapError(ledger.CodeInvalidAmount, "opening balance must not be negative", nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts
		(id, email, balance_cents, opening_balance_cents, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`,
		acct.ID,
		acct.Email,
		acct.Balance.Cents(),
		acct.OpeningBalance.Cents(),
		acct.CreatedAt.UnixNano(),
		acct.UpdatedAt.UnixNano(),
	)
	if isUniqueViolation(err) {
		return &ledger.Error{
			Code:    ledger.CodeAccountExists,
			Message: fmt.Sprintf("account %q already exists", acct.Email),
			Details: map[string]string{"email": acct.Email, "id": acct.ID},
			Err:     err,
		}
	}
	if err != nil {
		return ledger.Unavailable("create account", err)
	}
	return nil
}

// Atomically runs fn inside one SQLite transaction.
//
// The transaction is opened with BEGIN IMMEDIATE (see Open), so reads made
// through the Unit are consistent with the writes that follow them. Any
// error from fn rolls everything back.
func (s *Store) Atomically(ctx context.Context, fn func(ledger.Unit) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(ctx, "begin unit", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&unit{tx: tx}); err != nil {
		s.logger.Debug("unit rolled back", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(ctx, "commit unit", err)
	}
	return nil
}

// classify turns driver errors into ledger errors. Context cancellation is
// passed through untouched so the caller can tell a deadline from a fault.
func classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isBusy(err) {
		return ledger.WrapError(ledger.CodeVersionConflict, op+": database busy", err)
	}
	return ledger.Unavailable(op, err)
}

// unit implements ledger.Unit over a *sql.Tx.
type unit struct {
	tx *sql.Tx
}

func (u *unit) Account(ctx context.Context, id string) (ledger.Account, error) {
	row := u.tx.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?
	`, id)

	a, err := scanAccount(row)
	return accountOrNotFound(a, err, "id", id)
}

func (u *unit) TransferByKey(ctx context.Context, key string) (ledger.TransferRecord, bool, error) {
	row := u.tx.QueryRowContext(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE idempotency_key = ? AND status = 'committed'
	`, key)

	r, err := scanTransfer(row)
	return transferOrMissing(r, err)
}

// CompareAndUpdateBalance updates id only if it is still at expectedVersion.
func (u *unit) CompareAndUpdateBalance(ctx context.Context, id string, expectedVersion int64, newBalance money.Amount, at time.Time) error {
	if newBalance.IsNegative() {
		return &ledger.Error{
			Code:    ledger.CodeInsufficientFunds,
			Message: fmt.Sprintf("balance of %s would become %s", id, newBalance),
			Details: map[string]string{"account_id": id},
		}
	}

	result, err := u.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, newBalance.Cents(), at.UnixNano(), id, expectedVersion)
	if err != nil {
		return classify(ctx, "update balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return ledger.Unavailable("update balance: rows affected", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	// Nothing matched: either the account is gone or its version moved.
	var exists int
	err = u.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return classify(ctx, "update balance: check account", err)
	}
	if exists == 0 {
		return ledger.NotFound("id", id)
	}
	return ledger.Conflict(id, expectedVersion)
}

// AppendTransfer inserts rec and returns it with Seq assigned.
func (u *unit) AppendTransfer(ctx context.Context, rec ledger.TransferRecord) (ledger.TransferRecord, error) {
	result, err := u.tx.ExecContext(ctx, `
		INSERT INTO transfers
		(id, idempotency_key, sender_account_id, recipient_account_id,
		 amount_cents, note, timestamp, status, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.IdempotencyKey,
		rec.SenderAccountID,
		rec.RecipientAccountID,
		rec.Amount.Cents(),
		rec.Note,
		rec.Timestamp.UnixNano(),
		string(rec.Status),
		rec.Digest,
	)
	if isUniqueViolation(err) {
		return ledger.TransferRecord{}, &ledger.Error{
			Code:    ledger.CodeVersionConflict,
			Message: fmt.Sprintf("transfer key %q already committed", rec.IdempotencyKey),
			Details: map[string]string{"idempotency_key": rec.IdempotencyKey},
			Err:     err,
		}
	}
	if err != nil {
		return ledger.TransferRecord{}, classify(ctx, "append transfer", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return ledger.TransferRecord{}, ledger.Unavailable("append transfer: last insert id", err)
	}
	rec.Seq = seq
	return rec, nil
}
