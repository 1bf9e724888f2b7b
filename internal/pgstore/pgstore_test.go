package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

// Set LEDGER_TEST_POSTGRES_DSN to run these against a scratch database.
// The tests truncate both ledger tables.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn, WithMaxConns(4))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// TRUNCATE does not fire the row-level append-only trigger.
	_, err = s.Pool().Exec(ctx, `TRUNCATE transfers, accounts RESTART IDENTITY`)
	require.NoError(t, err)
	return s
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, id, balance string) {
	t.Helper()
	amt := money.MustParse(balance)
	require.NoError(t, s.CreateAccount(context.Background(), ledger.Account{
		ID:             id,
		Email:          id + "@example.com",
		Balance:        amt,
		OpeningBalance: amt,
		CreatedAt:      epoch,
		UpdatedAt:      epoch,
	}))
}

func TestOpen_Idempotent(t *testing.T) {
	s := setupTestStore(t)

	// Re-applying the schema must not fail.
	_, err := s.Pool().Exec(context.Background(), schemaSQL)
	assert.NoError(t, err)
}

func TestCreateAccount_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s, "a", "1.00")

	err := s.CreateAccount(context.Background(), ledger.Account{
		ID: "b", Email: "a@example.com", CreatedAt: epoch, UpdatedAt: epoch,
	})
	assert.ErrorIs(t, err, ledger.ErrAccountExists)
}

func TestAtomically_TransferAndRollback(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s, "a", "100.00")
	seed(t, s, "b", "50.00")
	ctx := context.Background()

	rec := ledger.TransferRecord{
		ID: "t1", IdempotencyKey: "k1",
		SenderAccountID: "a", RecipientAccountID: "b",
		Amount: money.MustParse("30.00"), Timestamp: epoch,
		Status: ledger.StatusCommitted, Digest: "d",
	}

	require.NoError(t, s.Atomically(ctx, func(u ledger.Unit) error {
		a, err := u.Account(ctx, "a")
		require.NoError(t, err)
		b, err := u.Account(ctx, "b")
		require.NoError(t, err)
		require.NoError(t, u.CompareAndUpdateBalance(ctx, "a", a.Version, a.Balance.Sub(rec.Amount), epoch))
		require.NoError(t, u.CompareAndUpdateBalance(ctx, "b", b.Version, b.Balance.Add(rec.Amount), epoch))
		out, err := u.AppendTransfer(ctx, rec)
		require.NoError(t, err)
		assert.Positive(t, out.Seq)
		return nil
	}))

	a, _ := s.AccountByID(ctx, "a")
	b, _ := s.AccountByID(ctx, "b")
	assert.Equal(t, "70.00", a.Balance.String())
	assert.Equal(t, "80.00", b.Balance.String())

	// Duplicate committed key conflicts and leaves balances alone.
	err := s.Atomically(ctx, func(u ledger.Unit) error {
		if err := u.CompareAndUpdateBalance(ctx, "a", 1, money.MustParse("0.00"), epoch); err != nil {
			return err
		}
		dup := rec
		dup.ID = "t2"
		_, err := u.AppendTransfer(ctx, dup)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)

	a, _ = s.AccountByID(ctx, "a")
	assert.Equal(t, "70.00", a.Balance.String())
	assert.Equal(t, int64(1), a.Version)
}

func TestCompareAndUpdateBalance_Stale(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s, "a", "10.00")
	ctx := context.Background()

	err := s.Atomically(ctx, func(u ledger.Unit) error {
		return u.CompareAndUpdateBalance(ctx, "a", 5, money.MustParse("1.00"), epoch)
	})
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)

	err = s.Atomically(ctx, func(u ledger.Unit) error {
		return u.CompareAndUpdateBalance(ctx, "ghost", 0, money.MustParse("1.00"), epoch)
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestTransfers_Order(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s, "a", "100.00")
	seed(t, s, "b", "100.00")
	ctx := context.Background()

	for i, id := range []string{"t1", "t2", "t3"} {
		rec := ledger.TransferRecord{
			ID: id, IdempotencyKey: id,
			SenderAccountID: "a", RecipientAccountID: "b",
			Amount: money.MustParse("1.00"), Timestamp: epoch.Add(time.Duration(i) * time.Second),
			Status: ledger.StatusCommitted, Digest: "d",
		}
		require.NoError(t, s.Atomically(ctx, func(u ledger.Unit) error {
			_, err := u.AppendTransfer(ctx, rec)
			return err
		}))
	}

	var got []string
	for rec, err := range s.Transfers(ctx, "b", epoch.Add(time.Second)) {
		require.NoError(t, err)
		got = append(got, rec.ID)
	}
	assert.Equal(t, []string{"t3", "t2"}, got)
}
