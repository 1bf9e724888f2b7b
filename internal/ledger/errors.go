package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// CodeInvalidAmount indicates a non-positive or malformed amount.
	CodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// CodeSameAccount indicates sender and recipient are the same account.
	CodeSameAccount ErrorCode = "SAME_ACCOUNT"

	// CodeAccountNotFound indicates a referenced account does not exist.
	CodeAccountNotFound ErrorCode = "ACCOUNT_NOT_FOUND"

	// CodeInvalidEmail indicates an email that cannot identify an account.
	CodeInvalidEmail ErrorCode = "INVALID_EMAIL"

	// CodeAccountExists indicates an account with the same email already exists.
	CodeAccountExists ErrorCode = "ACCOUNT_EXISTS"

	// CodeInsufficientFunds indicates the sender balance is below the amount.
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// CodeVersionConflict indicates a concurrent writer changed an account
	// after it was read. Retried internally by the transfer engine.
	CodeVersionConflict ErrorCode = "VERSION_CONFLICT"

	// CodeContention indicates the retry budget or deadline ran out.
	CodeContention ErrorCode = "CONTENTION"

	// CodeStoreUnavailable indicates the underlying storage failed.
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error is the structured error returned by every ledger component.
//
// Errors compare equal under errors.Is when their codes match, so callers
// can test against the sentinels below regardless of message or details.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is.
var (
	ErrInvalidAmount     = &Error{Code: CodeInvalidAmount, Message: "amount must be a positive decimal with at most two places"}
	ErrSameAccount       = &Error{Code: CodeSameAccount, Message: "sender and recipient must differ"}
	ErrAccountNotFound   = &Error{Code: CodeAccountNotFound, Message: "account not found"}
	ErrInvalidEmail      = &Error{Code: CodeInvalidEmail, Message: "invalid email"}
	ErrAccountExists     = &Error{Code: CodeAccountExists, Message: "account already exists"}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrVersionConflict   = &Error{Code: CodeVersionConflict, Message: "account changed concurrently"}
	ErrContention        = &Error{Code: CodeContention, Message: "transfer could not commit under contention"}
	ErrStoreUnavailable  = &Error{Code: CodeStoreUnavailable, Message: "ledger store unavailable"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Retriable reports whether the caller may safely retry the same request
// (with the same idempotency key).
func (e *Error) Retriable() bool {
	switch e.Code {
	case CodeVersionConflict, CodeContention, CodeStoreUnavailable:
		return true
	default:
		return false
	}
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error with the given code that wraps cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// NotFound reports a missing account, keyed by how it was looked up.
func NotFound(field, value string) *Error {
	return &Error{
		Code:    CodeAccountNotFound,
		Message: fmt.Sprintf("no account with %s %q", field, value),
		Details: map[string]string{field: value},
	}
}

// Conflict reports a failed compare-and-update on accountID.
func Conflict(accountID string, expectedVersion int64) *Error {
	return &Error{
		Code:    CodeVersionConflict,
		Message: fmt.Sprintf("account %s is no longer at version %d", accountID, expectedVersion),
		Details: map[string]string{
			"account_id":       accountID,
			"expected_version": fmt.Sprintf("%d", expectedVersion),
		},
	}
}

// Unavailable wraps a storage failure.
func Unavailable(op string, cause error) *Error {
	return &Error{
		Code:    CodeStoreUnavailable,
		Message: op,
		Err:     cause,
	}
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a ledger error.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsRetriable reports whether err is a ledger error the caller may retry.
func IsRetriable(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Retriable()
	}
	return false
}

// IsConflict reports whether err is a version conflict.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	return CodeOf(err) == CodeVersionConflict
}
