package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mangobank/ledger/internal/money"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFound("email", "a@example.com")

	assert.True(t, errors.Is(err, ErrAccountNotFound))
	assert.False(t, errors.Is(err, ErrInsufficientFunds))

	wrapped := fmt.Errorf("transfer: %w", err)
	assert.True(t, errors.Is(wrapped, ErrAccountNotFound))
	assert.Equal(t, CodeAccountNotFound, CodeOf(wrapped))
}

func TestError_Message(t *testing.T) {
	err := Conflict("acct-1", 3)
	assert.Equal(t, "VERSION_CONFLICT: account acct-1 is no longer at version 3", err.Error())
	assert.Equal(t, "3", err.Details["expected_version"])

	cause := errors.New("disk full")
	un := Unavailable("append transfer", cause)
	assert.Equal(t, "STORE_UNAVAILABLE: append transfer: disk full", un.Error())
	assert.ErrorIs(t, un, cause)
}

func TestError_Retriable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrInvalidAmount, false},
		{ErrSameAccount, false},
		{ErrAccountNotFound, false},
		{ErrInsufficientFunds, false},
		{ErrVersionConflict, true},
		{ErrContention, true},
		{ErrStoreUnavailable, true},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetriable(tt.err))
		})
	}
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(fmt.Errorf("commit: %w", Conflict("x", 1))))
	assert.False(t, IsConflict(ErrContention))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestSignedAmountFor(t *testing.T) {
	rec := TransferRecord{
		SenderAccountID:    "a",
		RecipientAccountID: "b",
		Amount:             money.MustParse("30.00"),
		Status:             StatusCommitted,
	}

	assert.Equal(t, "-30.00", rec.SignedAmountFor("a").String())
	assert.Equal(t, "30.00", rec.SignedAmountFor("b").String())
	assert.True(t, rec.SignedAmountFor("c").IsZero())
	assert.True(t, rec.Touches("a"))
	assert.False(t, rec.Touches("c"))

	rec.Status = StatusFailed
	assert.True(t, rec.SignedAmountFor("a").IsZero())
}
