package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

const accountColumns = `id, email, balance_cents, opening_balance_cents, version, created_at, updated_at`

const transferColumns = `seq, id, idempotency_key, sender_account_id, recipient_account_id,
	amount_cents, note, timestamp, status, digest`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// toNanos stores times as unix nanoseconds. The zero time maps to
// math.MinInt64 so "since zero" matches everything.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return math.MinInt64
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func scanAccount(row scanner) (ledger.Account, error) {
	var a ledger.Account
	var balance, opening, created, updated int64

	if err := row.Scan(&a.ID, &a.Email, &balance, &opening, &a.Version, &created, &updated); err != nil {
		return ledger.Account{}, err
	}

	a.Balance = money.FromCents(balance)
	a.OpeningBalance = money.FromCents(opening)
	a.CreatedAt = fromNanos(created)
	a.UpdatedAt = fromNanos(updated)
	return a, nil
}

func scanTransfer(row scanner) (ledger.TransferRecord, error) {
	var r ledger.TransferRecord
	var amount, ts int64
	var status string

	if err := row.Scan(
		&r.Seq, &r.ID, &r.IdempotencyKey, &r.SenderAccountID, &r.RecipientAccountID,
		&amount, &r.Note, &ts, &status, &r.Digest,
	); err != nil {
		return ledger.TransferRecord{}, err
	}

	r.Amount = money.FromCents(amount)
	r.Timestamp = fromNanos(ts)
	r.Status = ledger.Status(status)
	return r, nil
}

// accountOrNotFound maps sql.ErrNoRows to the ledger's not-found error.
func accountOrNotFound(a ledger.Account, err error, field, value string) (ledger.Account, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.NotFound(field, value)
	}
	if err != nil {
		return ledger.Account{}, ledger.Unavailable(fmt.Sprintf("read account by %s", field), err)
	}
	return a, nil
}

// transferOrMissing maps sql.ErrNoRows to found=false.
func transferOrMissing(r ledger.TransferRecord, err error) (ledger.TransferRecord, bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.TransferRecord{}, false, nil
	}
	if err != nil {
		return ledger.TransferRecord{}, false, ledger.Unavailable("read transfer by key", err)
	}
	return r, true, nil
}
