// Package account is the Account Repository: lookups by email or id,
// registration of new accounts, and the compare-and-update primitive the
// transfer engine builds on.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

// DefaultOpeningBalance is credited to accounts opened without an explicit
// amount.
var DefaultOpeningBalance = money.MustParse("1000.00")

// Repository reads and mutates accounts through a ledger.Store.
type Repository struct {
	store  ledger.Store
	clock  ledger.Clock
	ids    ledger.IDGenerator
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock sets the clock used to stamp new accounts.
func WithClock(c ledger.Clock) Option {
	return func(r *Repository) {
		r.clock = c
	}
}

// WithIDGenerator sets the generator for new account ids.
func WithIDGenerator(g ledger.IDGenerator) Option {
	return func(r *Repository) {
		r.ids = g
	}
}

// WithLogger sets the repository logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// NewRepository creates a Repository over store.
func NewRepository(store ledger.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		clock:  ledger.SystemClock{},
		ids:    ledger.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeEmail trims, NFC-normalizes and lowercases email so lookups do
// not depend on how the address was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}

// GetByEmail returns the account registered under email. The returned
// Account carries the version to pass to CompareAndUpdateBalance.
func (r *Repository) GetByEmail(ctx context.Context, email string) (ledger.Account, error) {
	key := NormalizeEmail(email)
	if key == "" {
		return ledger.Account{}, ledger.NotFound("email", email)
	}
	return r.store.AccountByEmail(ctx, key)
}

// GetByID returns the account with the given id.
func (r *Repository) GetByID(ctx context.Context, id string) (ledger.Account, error) {
	return r.store.AccountByID(ctx, id)
}

// List returns every account ordered by id.
func (r *Repository) List(ctx context.Context) ([]ledger.Account, error) {
	return r.store.Accounts(ctx)
}

// Open registers a new account with the given opening balance.
func (r *Repository) Open(ctx context.Context, email string, opening money.Amount) (ledger.Account, error) {
	key := NormalizeEmail(email)
	if key == "" || !strings.Contains(key, "@") {
		return ledger.Account{}, &ledger.Error{
			Code:    ledger.CodeInvalidEmail,
			Message: fmt.Sprintf("invalid email %q", email),
			Details: map[string]string{"email": email},
		}
	}
	if opening.IsNegative() {
		return ledger.Account{}, &ledger.Error{
			Code:    ledger.CodeInvalidAmount,
			Message: fmt.Sprintf("opening balance %s is negative", opening),
			Details: map[string]string{"amount": opening.String()},
		}
	}

	now := r.clock.Now().UTC().Truncate(ledger.TimeResolution)
	acct := ledger.Account{
		ID:             r.ids.Generate(),
		Email:          key,
		Balance:        opening,
		OpeningBalance: opening,
		Version:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.CreateAccount(ctx, acct); err != nil {
		return ledger.Account{}, err
	}

	r.logger.Info("account opened", "account_id", acct.ID, "email", acct.Email, "balance", acct.Balance.String())
	return acct, nil
}

// CompareAndUpdateBalance sets the balance of id in its own unit of work,
// provided the account is still at expectedVersion. Inside an existing
// unit, call ledger.Unit.CompareAndUpdateBalance directly.
func (r *Repository) CompareAndUpdateBalance(ctx context.Context, id string, expectedVersion int64, newBalance money.Amount) error {
	at := r.clock.Now().UTC().Truncate(ledger.TimeResolution)
	return r.store.Atomically(ctx, func(u ledger.Unit) error {
		return u.CompareAndUpdateBalance(ctx, id, expectedVersion, newBalance, at)
	})
}
