// Package history answers "what happened to this account" from the
// transfer log. It only reads; nothing here mutates the ledger.
package history

import (
	"context"
	"iter"
	"time"

	"github.com/mangobank/ledger/internal/account"
	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

// Service is the Transaction History Service.
type Service struct {
	reader ledger.Reader
}

// New creates a Service over reader.
func New(reader ledger.Reader) *Service {
	return &Service{reader: reader}
}

// HistoryFor lazily yields the committed records touching accountID with a
// timestamp at or after since, newest first. A zero since means all
// history.
//
// The sequence holds no cursor between ranges: ranging it again re-reads
// the log from the newest record.
func (s *Service) HistoryFor(ctx context.Context, accountID string, since time.Time) iter.Seq2[ledger.TransferRecord, error] {
	return s.reader.Transfers(ctx, accountID, since)
}

// HistoryForEmail resolves email first, then behaves like HistoryFor. An
// unknown email yields a single ACCOUNT_NOT_FOUND error.
func (s *Service) HistoryForEmail(ctx context.Context, email string, since time.Time) iter.Seq2[ledger.TransferRecord, error] {
	return func(yield func(ledger.TransferRecord, error) bool) {
		acct, err := s.reader.AccountByEmail(ctx, account.NormalizeEmail(email))
		if err != nil {
			yield(ledger.TransferRecord{}, err)
			return
		}
		for rec, err := range s.HistoryFor(ctx, acct.ID, since) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// Entry is a record seen from one account's side.
type Entry struct {
	ledger.TransferRecord

	// Direction is "debit" when the account sent money, "credit" otherwise.
	Direction string `json:"direction"`

	// Counterparty is the other account's id.
	Counterparty string `json:"counterparty_account_id"`

	// Signed is the effect on the account's balance.
	Signed money.Amount `json:"signed_amount"`
}

// Entries is HistoryFor with each record annotated from accountID's side.
func (s *Service) Entries(ctx context.Context, accountID string, since time.Time) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for rec, err := range s.HistoryFor(ctx, accountID, since) {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(entryFor(rec, accountID), nil) {
				return
			}
		}
	}
}

func entryFor(rec ledger.TransferRecord, accountID string) Entry {
	e := Entry{TransferRecord: rec, Signed: rec.SignedAmountFor(accountID)}
	if rec.SenderAccountID == accountID {
		e.Direction = "debit"
		e.Counterparty = rec.RecipientAccountID
	} else {
		e.Direction = "credit"
		e.Counterparty = rec.SenderAccountID
	}
	return e
}

// Collect drains seq into a slice, stopping at the first error. Returns an
// empty slice (not nil) when seq yields nothing.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
