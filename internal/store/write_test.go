package store

import (
	"context"
	"errors"
	"testing"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "1.00")

	err := s.CreateAccount(context.Background(), ledger.Account{
		ID:    "acct-b",
		Email: "a@example.com",
	})
	if !errors.Is(err, ledger.ErrAccountExists) {
		t.Fatalf("CreateAccount() error = %v, want ErrAccountExists", err)
	}
}

func TestCreateAccount_StartsAtVersionZero(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "12.34")

	acct, err := s.AccountByID(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("AccountByID() failed: %v", err)
	}
	if acct.Version != 0 {
		t.Errorf("Version = %d, want 0", acct.Version)
	}
	if !acct.OpeningBalance.Equal(money.MustParse("12.34")) {
		t.Errorf("OpeningBalance = %s, want 12.34", acct.OpeningBalance)
	}
	if !acct.CreatedAt.Equal(testEpoch) {
		t.Errorf("CreatedAt = %v, want %v", acct.CreatedAt, testEpoch)
	}
}

func TestCompareAndUpdateBalance_Success(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "100.00")
	ctx := context.Background()

	at := testEpoch.Add(1e9)
	err := s.Atomically(ctx, func(u ledger.Unit) error {
		return u.CompareAndUpdateBalance(ctx, "acct-a", 0, money.MustParse("70.00"), at)
	})
	if err != nil {
		t.Fatalf("CompareAndUpdateBalance() failed: %v", err)
	}

	acct, _ := s.AccountByID(ctx, "acct-a")
	if acct.Balance.String() != "70.00" {
		t.Errorf("Balance = %s, want 70.00", acct.Balance)
	}
	if acct.Version != 1 {
		t.Errorf("Version = %d, want 1", acct.Version)
	}
	if !acct.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", acct.UpdatedAt, at)
	}
}

func TestCompareAndUpdateBalance_StaleVersion(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "100.00")
	ctx := context.Background()

	err := s.Atomically(ctx, func(u ledger.Unit) error {
		return u.CompareAndUpdateBalance(ctx, "acct-a", 7, money.MustParse("1.00"), testEpoch)
	})
	if !errors.Is(err, ledger.ErrVersionConflict) {
		t.Fatalf("error = %v, want ErrVersionConflict", err)
	}

	acct, _ := s.AccountByID(ctx, "acct-a")
	if acct.Balance.String() != "100.00" || acct.Version != 0 {
		t.Errorf("account changed after conflict: %+v", acct)
	}
}

func TestCompareAndUpdateBalance_MissingAccount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Atomically(ctx, func(u ledger.Unit) error {
		return u.CompareAndUpdateBalance(ctx, "ghost", 0, money.MustParse("1.00"), testEpoch)
	})
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestCompareAndUpdateBalance_NegativeBalance(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "1.00")
	ctx := context.Background()

	err := s.Atomically(ctx, func(u ledger.Unit) error {
		return u.CompareAndUpdateBalance(ctx, "acct-a", 0, money.MustParse("-0.01"), testEpoch)
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
}

func TestAtomically_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "100.00")
	createTestAccount(t, s, "acct-b", "b@example.com", "50.00")
	ctx := context.Background()

	injected := errors.New("injected after debit")
	err := s.Atomically(ctx, func(u ledger.Unit) error {
		if err := u.CompareAndUpdateBalance(ctx, "acct-a", 0, money.MustParse("70.00"), testEpoch); err != nil {
			return err
		}
		if err := u.CompareAndUpdateBalance(ctx, "acct-b", 0, money.MustParse("80.00"), testEpoch); err != nil {
			return err
		}
		if _, err := u.AppendTransfer(ctx, createTestTransfer("t1", "k1", "acct-a", "acct-b", "30.00", testEpoch)); err != nil {
			return err
		}
		return injected
	})
	if !errors.Is(err, injected) {
		t.Fatalf("Atomically() error = %v, want injected error", err)
	}

	a, _ := s.AccountByID(ctx, "acct-a")
	b, _ := s.AccountByID(ctx, "acct-b")
	if a.Balance.String() != "100.00" || b.Balance.String() != "50.00" {
		t.Errorf("balances after rollback = %s/%s, want 100.00/50.00", a.Balance, b.Balance)
	}
	if a.Version != 0 || b.Version != 0 {
		t.Errorf("versions after rollback = %d/%d, want 0/0", a.Version, b.Version)
	}
	if _, found, _ := s.TransferByKey(ctx, "k1"); found {
		t.Error("transfer record visible after rollback")
	}
}

func TestAtomically_ReadsOwnWrites(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "10.00")
	ctx := context.Background()

	err := s.Atomically(ctx, func(u ledger.Unit) error {
		if err := u.CompareAndUpdateBalance(ctx, "acct-a", 0, money.MustParse("4.00"), testEpoch); err != nil {
			return err
		}
		acct, err := u.Account(ctx, "acct-a")
		if err != nil {
			return err
		}
		if acct.Balance.String() != "4.00" || acct.Version != 1 {
			t.Errorf("in-unit read = %s v%d, want 4.00 v1", acct.Balance, acct.Version)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomically() failed: %v", err)
	}
}

func TestAtomically_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Atomically(ctx, func(u ledger.Unit) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Atomically() error = %v, want context.Canceled", err)
	}
}

func TestAppendTransfer_AssignsSeq(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "10.00")
	createTestAccount(t, s, "acct-b", "b@example.com", "10.00")

	r1 := appendTestTransfer(t, s, createTestTransfer("t1", "k1", "acct-a", "acct-b", "1.00", testEpoch))
	r2 := appendTestTransfer(t, s, createTestTransfer("t2", "k2", "acct-b", "acct-a", "1.00", testEpoch))

	if r1.Seq <= 0 || r2.Seq <= r1.Seq {
		t.Errorf("Seq = %d, %d; want positive and increasing", r1.Seq, r2.Seq)
	}
}

func TestAppendTransfer_DuplicateCommittedKey(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "10.00")
	createTestAccount(t, s, "acct-b", "b@example.com", "10.00")
	ctx := context.Background()

	appendTestTransfer(t, s, createTestTransfer("t1", "same-key", "acct-a", "acct-b", "1.00", testEpoch))

	err := s.Atomically(ctx, func(u ledger.Unit) error {
		_, err := u.AppendTransfer(ctx, createTestTransfer("t2", "same-key", "acct-a", "acct-b", "1.00", testEpoch))
		return err
	})
	if !errors.Is(err, ledger.ErrVersionConflict) {
		t.Fatalf("duplicate key error = %v, want ErrVersionConflict", err)
	}
}

func TestAppendTransfer_FailedRecordsMayShareKey(t *testing.T) {
	s := createTestStore(t)
	createTestAccount(t, s, "acct-a", "a@example.com", "10.00")
	createTestAccount(t, s, "acct-b", "b@example.com", "10.00")

	failed := createTestTransfer("t1", "k1", "acct-a", "acct-b", "99.00", testEpoch)
	failed.Status = ledger.StatusFailed
	appendTestTransfer(t, s, failed)

	failed.ID = "t2"
	appendTestTransfer(t, s, failed)

	appendTestTransfer(t, s, createTestTransfer("t3", "k1", "acct-a", "acct-b", "1.00", testEpoch))

	rec, found, err := s.TransferByKey(context.Background(), "k1")
	if err != nil || !found {
		t.Fatalf("TransferByKey() = found %v, err %v", found, err)
	}
	if rec.ID != "t3" {
		t.Errorf("TransferByKey() returned %s, want the committed record t3", rec.ID)
	}
}
