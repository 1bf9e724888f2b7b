package ledger

import (
	"time"

	"github.com/mangobank/ledger/internal/money"
)

// Account is a balance holder in the ledger.
//
// Balance is never negative. Version increases by exactly one on every
// balance mutation and is the optimistic-concurrency token for
// CompareAndUpdateBalance.
type Account struct {
	ID             string       `json:"id"`
	Email          string       `json:"email"`
	Balance        money.Amount `json:"balance"`
	OpeningBalance money.Amount `json:"opening_balance"`
	Version        int64        `json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Status is the outcome recorded on a TransferRecord.
type Status string

const (
	// StatusCommitted marks a record that moved money.
	StatusCommitted Status = "committed"

	// StatusFailed marks an audited attempt that moved nothing.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusCommitted || s == StatusFailed
}

// TransferRecord is an immutable entry in the transfer log.
type TransferRecord struct {
	ID                 string       `json:"transfer_id"`
	IdempotencyKey     string       `json:"idempotency_key"`
	SenderAccountID    string       `json:"sender_account_id"`
	RecipientAccountID string       `json:"recipient_account_id"`
	Amount             money.Amount `json:"amount"`
	Note               string       `json:"note,omitempty"`
	Timestamp          time.Time    `json:"timestamp"`
	Status             Status       `json:"status"`
	Digest             string       `json:"digest"`

	// Seq is assigned by the store on append and breaks timestamp ties.
	Seq int64 `json:"seq"`
}

// SignedAmountFor returns the effect of r on accountID's balance: negative
// for the sender, positive for the recipient, zero otherwise or when r did
// not commit.
func (r TransferRecord) SignedAmountFor(accountID string) money.Amount {
	if r.Status != StatusCommitted {
		return money.Zero
	}
	switch accountID {
	case r.SenderAccountID:
		return r.Amount.Neg()
	case r.RecipientAccountID:
		return r.Amount
	default:
		return money.Zero
	}
}

// Touches reports whether r references accountID.
func (r TransferRecord) Touches(accountID string) bool {
	return r.SenderAccountID == accountID || r.RecipientAccountID == accountID
}
