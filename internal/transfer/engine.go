// Package transfer implements the Transfer Engine: one funds movement
// between two accounts as a single atomic unit of work.
//
// # Algorithm
//
// For each attempt, inside one ledger unit:
//  1. Read both accounts in ascending id order
//  2. If the idempotency key already committed, return that record
//  3. Reject when the sender balance is below the amount
//  4. Debit, credit and append the sealed record
//
// A version conflict anywhere in the unit discards it and the attempt is
// retried with fresh reads after a jittered backoff. When the retry budget
// or the call deadline runs out the transfer fails with CONTENTION and no
// money has moved.
//
// # Idempotency
//
// A retried request carrying the same key always returns the original
// committed record. Calls without a key get the transfer id as key, so
// they are never de-duplicated against each other.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mangobank/ledger/internal/account"
	"github.com/mangobank/ledger/internal/audit"
	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

// Request describes one transfer as received from the caller.
type Request struct {
	SenderEmail    string
	RecipientEmail string
	Amount         money.Amount
	Note           string
	IdempotencyKey string
}

// Engine executes transfers against a ledger.Store.
//
// Engine is safe for concurrent use. It holds no locks of its own; all
// coordination happens in the store's units of work.
type Engine struct {
	store    ledger.Store
	accounts *account.Repository

	maxRetries   int
	timeout      time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	clock        ledger.Clock
	ids          ledger.IDGenerator
	failureAudit bool
	logger       *slog.Logger
}

// New creates an Engine over store.
func New(store ledger.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		maxRetries:  DefaultMaxRetries,
		timeout:     DefaultTimeout,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
		clock:       ledger.SystemClock{},
		ids:         ledger.UUIDv7Generator{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.accounts = account.NewRepository(store, account.WithLogger(e.logger))
	return e
}

// plan is a validated request resolved to account ids.
type plan struct {
	transferID  string
	key         string
	senderID    string
	recipientID string
	amount      money.Amount
	note        string
}

// Transfer moves req.Amount from the sender to the recipient and returns
// the committed record.
//
// Errors are *ledger.Error values:
//   - INVALID_AMOUNT, SAME_ACCOUNT, ACCOUNT_NOT_FOUND, INSUFFICIENT_FUNDS are final
//   - CONTENTION and STORE_UNAVAILABLE may be retried with the same key
//
// No error path leaves a partial transfer behind.
func (e *Engine) Transfer(ctx context.Context, req Request) (ledger.TransferRecord, error) {
	if !req.Amount.IsPositive() {
		return ledger.TransferRecord{}, &ledger.Error{
			Code:    ledger.CodeInvalidAmount,
			Message: fmt.Sprintf("amount %s must be positive", req.Amount),
			Details: map[string]string{"amount": req.Amount.String()},
		}
	}

	senderEmail := account.NormalizeEmail(req.SenderEmail)
	recipientEmail := account.NormalizeEmail(req.RecipientEmail)
	if senderEmail == recipientEmail {
		return ledger.TransferRecord{}, sameAccount(senderEmail)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	sender, err := e.accounts.GetByEmail(ctx, senderEmail)
	if err != nil {
		return ledger.TransferRecord{}, e.boundary(ctx, err, 0, req.IdempotencyKey)
	}
	recipient, err := e.accounts.GetByEmail(ctx, recipientEmail)
	if err != nil {
		return ledger.TransferRecord{}, e.boundary(ctx, err, 0, req.IdempotencyKey)
	}
	if sender.ID == recipient.ID {
		return ledger.TransferRecord{}, sameAccount(senderEmail)
	}

	p := plan{
		transferID:  e.ids.Generate(),
		key:         req.IdempotencyKey,
		senderID:    sender.ID,
		recipientID: recipient.ID,
		amount:      req.Amount,
		note:        req.Note,
	}
	if p.key == "" {
		p.key = p.transferID
	}

	log := e.logger.With("transfer_id", p.transferID, "idempotency_key", p.key)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ledger.TransferRecord{}, e.contention(ctx.Err(), attempt, p.key)
		}

		log.Debug("transfer attempt", "attempt", attempt+1, "sender_id", p.senderID, "recipient_id", p.recipientID, "amount", p.amount.String())

		rec, replayed, err := e.attempt(ctx, p, log)
		if err == nil {
			if replayed {
				log.Info("transfer replayed", "original_transfer_id", rec.ID)
			} else {
				log.Info("transfer committed", "seq", rec.Seq, "amount", rec.Amount.String(), "attempts", attempt+1)
			}
			return rec, nil
		}

		if !ledger.IsConflict(err) {
			return ledger.TransferRecord{}, e.boundary(ctx, err, attempt+1, p.key)
		}

		lastErr = err
		if attempt == e.maxRetries {
			break
		}
		log.Warn("transfer conflict, retrying", "attempt", attempt+1, "error", err)
		if err := sleep(ctx, backoff(e.backoffBase, e.backoffMax, attempt)); err != nil {
			return ledger.TransferRecord{}, e.contention(err, attempt+1, p.key)
		}
	}

	return ledger.TransferRecord{}, e.contention(lastErr, e.maxRetries+1, p.key)
}

// attempt runs one unit of work. replayed reports that the key had already
// committed and rec is the original record.
func (e *Engine) attempt(ctx context.Context, p plan, log *slog.Logger) (rec ledger.TransferRecord, replayed bool, err error) {
	var rejected error

	err = e.store.Atomically(ctx, func(u ledger.Unit) error {
		sender, recipient, err := readOrdered(ctx, u, p.senderID, p.recipientID)
		if err != nil {
			return err
		}

		prior, found, err := u.TransferByKey(ctx, p.key)
		if err != nil {
			return err
		}
		if found {
			if !matches(prior, p) {
				log.Warn("idempotency key reused with a different request",
					"original_transfer_id", prior.ID,
					"original_amount", prior.Amount.String(),
					"requested_amount", p.amount.String())
			}
			rec, replayed = prior, true
			return nil
		}

		ts := timestamp(e.clock.Now(), sender.UpdatedAt, recipient.UpdatedAt)

		if sender.Balance.LessThan(p.amount) {
			rejected = insufficientFunds(sender, p.amount)
			if !e.failureAudit {
				return rejected
			}
			// The unit still commits, carrying only the failed record.
			failed, err := audit.Seal(p.record(ts, ledger.StatusFailed))
			if err != nil {
				return err
			}
			_, err = u.AppendTransfer(ctx, failed)
			return err
		}

		if err := u.CompareAndUpdateBalance(ctx, sender.ID, sender.Version, sender.Balance.Sub(p.amount), ts); err != nil {
			return err
		}
		if err := u.CompareAndUpdateBalance(ctx, recipient.ID, recipient.Version, recipient.Balance.Add(p.amount), ts); err != nil {
			return err
		}

		sealed, err := audit.Seal(p.record(ts, ledger.StatusCommitted))
		if err != nil {
			return err
		}
		rec, err = u.AppendTransfer(ctx, sealed)
		return err
	})
	if err != nil {
		return ledger.TransferRecord{}, false, err
	}
	if rejected != nil {
		return ledger.TransferRecord{}, false, rejected
	}
	return rec, replayed, nil
}

// readOrdered reads both accounts in ascending id order so that two units
// touching the same pair always acquire it the same way round.
func readOrdered(ctx context.Context, u ledger.Unit, senderID, recipientID string) (sender, recipient ledger.Account, err error) {
	first, second := senderID, recipientID
	if second < first {
		first, second = second, first
	}

	a, err := u.Account(ctx, first)
	if err != nil {
		return ledger.Account{}, ledger.Account{}, err
	}
	b, err := u.Account(ctx, second)
	if err != nil {
		return ledger.Account{}, ledger.Account{}, err
	}

	if a.ID == senderID {
		return a, b, nil
	}
	return b, a, nil
}

// timestamp is now, or the latest update on either account if that is
// later, so each account's history is non-decreasing in commit order.
func timestamp(now time.Time, updated ...time.Time) time.Time {
	ts := now.UTC().Truncate(ledger.TimeResolution)
	for _, u := range updated {
		if u.After(ts) {
			ts = u.UTC()
		}
	}
	return ts
}

func (p plan) record(ts time.Time, status ledger.Status) ledger.TransferRecord {
	return ledger.TransferRecord{
		ID:                 p.transferID,
		IdempotencyKey:     p.key,
		SenderAccountID:    p.senderID,
		RecipientAccountID: p.recipientID,
		Amount:             p.amount,
		Note:               p.note,
		Timestamp:          ts,
		Status:             status,
	}
}

func matches(rec ledger.TransferRecord, p plan) bool {
	return rec.SenderAccountID == p.senderID &&
		rec.RecipientAccountID == p.recipientID &&
		rec.Amount.Equal(p.amount) &&
		rec.Note == p.note
}

// boundary converts whatever reached the engine's edge into a ledger
// error. Context expiry while waiting on the store counts as contention.
func (e *Engine) boundary(ctx context.Context, err error, attempts int, key string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return e.contention(err, attempts, key)
	}
	var le *ledger.Error
	if errors.As(err, &le) {
		return err
	}
	if ctx.Err() != nil {
		return e.contention(err, attempts, key)
	}
	return ledger.Unavailable("transfer", err)
}

func (e *Engine) contention(cause error, attempts int, key string) error {
	e.logger.Warn("transfer abandoned", "idempotency_key", key, "attempts", attempts, "error", cause)
	return &ledger.Error{
		Code:    ledger.CodeContention,
		Message: fmt.Sprintf("no commit after %d attempt(s)", attempts),
		Details: map[string]string{
			"attempts":        fmt.Sprintf("%d", attempts),
			"idempotency_key": key,
		},
		Err: cause,
	}
}

func sameAccount(email string) error {
	return &ledger.Error{
		Code:    ledger.CodeSameAccount,
		Message: fmt.Sprintf("cannot transfer from %q to itself", email),
		Details: map[string]string{"email": email},
	}
}

func insufficientFunds(sender ledger.Account, amount money.Amount) error {
	return &ledger.Error{
		Code:    ledger.CodeInsufficientFunds,
		Message: fmt.Sprintf("balance %s is less than %s", sender.Balance, amount),
		Details: map[string]string{
			"account_id": sender.ID,
			"balance":    sender.Balance.String(),
			"amount":     amount.String(),
		},
	}
}
