package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAccount inserts an account with the given balance.
func createTestAccount(t *testing.T, s *Store, id, email, balance string) ledger.Account {
	t.Helper()
	amt := money.MustParse(balance)
	acct := ledger.Account{
		ID:             id,
		Email:          email,
		Balance:        amt,
		OpeningBalance: amt,
		CreatedAt:      testEpoch,
		UpdatedAt:      testEpoch,
	}
	if err := s.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("CreateAccount(%s) failed: %v", id, err)
	}
	return acct
}

// createTestTransfer creates a committed record with minimal required fields.
func createTestTransfer(id, key, from, to, amount string, ts time.Time) ledger.TransferRecord {
	return ledger.TransferRecord{
		ID:                 id,
		IdempotencyKey:     key,
		SenderAccountID:    from,
		RecipientAccountID: to,
		Amount:             money.MustParse(amount),
		Timestamp:          ts,
		Status:             ledger.StatusCommitted,
		Digest:             "test-digest",
	}
}

// appendTestTransfer appends rec in its own unit.
func appendTestTransfer(t *testing.T, s *Store, rec ledger.TransferRecord) ledger.TransferRecord {
	t.Helper()
	var out ledger.TransferRecord
	err := s.Atomically(context.Background(), func(u ledger.Unit) error {
		var err error
		out, err = u.AppendTransfer(context.Background(), rec)
		return err
	})
	if err != nil {
		t.Fatalf("AppendTransfer(%s) failed: %v", rec.ID, err)
	}
	return out
}

// collectTransfers drains a history sequence.
func collectTransfers(t *testing.T, s *Store, accountID string, since time.Time) []ledger.TransferRecord {
	t.Helper()
	var out []ledger.TransferRecord
	for rec, err := range s.Transfers(context.Background(), accountID, since) {
		if err != nil {
			t.Fatalf("Transfers(%s) failed: %v", accountID, err)
		}
		out = append(out, rec)
	}
	return out
}
