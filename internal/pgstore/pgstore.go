// Package pgstore is a PostgreSQL ledger.Store built on pgxpool.
//
// Units of work run in READ COMMITTED transactions. Account reads inside a
// unit take row locks (SELECT ... FOR UPDATE); since the transfer engine
// always reads its pair in ascending id order, lock acquisition is
// ordered and two transfers over the same accounts cannot deadlock. The
// version column is still compared on every update so callers outside
// the engine get the same optimistic semantics as the other backends.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

//go:embed schema.sql
var schemaSQL string

// Postgres error codes the store classifies.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Store is the PostgreSQL-backed ledger.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// Option configures Open.
type Option func(*options)

type options struct {
	maxConns int32
	logger   *slog.Logger
}

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(o *options) {
		o.maxConns = n
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Open connects to dsn and applies the schema. The schema is idempotent.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := options{maxConns: 10, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	config.MaxConns = o.maxConns
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	o.logger.Debug("postgres ledger ready", "max_conns", o.maxConns)
	return &Store{pool: pool, logger: o.logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return ledger.Unavailable("ping", err)
	}
	return nil
}

// Pool exposes the underlying pool for maintenance and tests.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

const accountColumns = `id, email, balance_cents, opening_balance_cents, version, created_at, updated_at`

const transferColumns = `seq, id, idempotency_key, sender_account_id, recipient_account_id,
	amount_cents, note, timestamp, status, digest`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var balance, opening int64
	if err := row.Scan(&a.ID, &a.Email, &balance, &opening, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return ledger.Account{}, err
	}
	a.Balance = money.FromCents(balance)
	a.OpeningBalance = money.FromCents(opening)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func scanTransfer(row pgx.Row) (ledger.TransferRecord, error) {
	var r ledger.TransferRecord
	var amount int64
	var status string
	if err := row.Scan(
		&r.Seq, &r.ID, &r.IdempotencyKey, &r.SenderAccountID, &r.RecipientAccountID,
		&amount, &r.Note, &r.Timestamp, &status, &r.Digest,
	); err != nil {
		return ledger.TransferRecord{}, err
	}
	r.Amount = money.FromCents(amount)
	r.Timestamp = r.Timestamp.UTC()
	r.Status = ledger.Status(status)
	return r, nil
}

func accountResult(a ledger.Account, err error, field, value string) (ledger.Account, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, ledger.NotFound(field, value)
	}
	if err != nil {
		return ledger.Account{}, ledger.Unavailable("read account by "+field, err)
	}
	return a, nil
}

func transferResult(r ledger.TransferRecord, err error) (ledger.TransferRecord, bool, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.TransferRecord{}, false, nil
	}
	if err != nil {
		return ledger.TransferRecord{}, false, ledger.Unavailable("read transfer by key", err)
	}
	return r, true, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// classify maps driver errors onto the ledger taxonomy. Context errors
// pass through so the engine can distinguish its own deadline.
func classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return ledger.WrapError(ledger.CodeVersionConflict, op+": concurrent update", err)
	}
	return ledger.Unavailable(op, err)
}

// AccountByEmail returns the account registered under email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	a, err := scanAccount(row)
	return accountResult(a, err, "email", email)
}

// AccountByID returns the account with the given id.
func (s *Store) AccountByID(ctx context.Context, id string) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	return accountResult(a, err, "id", id)
}

// Accounts returns every account ordered by id.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id COLLATE "C"`)
	if err != nil {
		return nil, ledger.Unavailable("query accounts", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, ledger.Unavailable("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Unavailable("iterate accounts", err)
	}
	return accounts, nil
}

// TransferByKey returns the committed record with the idempotency key.
func (s *Store) TransferByKey(ctx context.Context, key string) (ledger.TransferRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE idempotency_key = $1 AND status = 'committed'
	`, key)
	r, err := scanTransfer(row)
	return transferResult(r, err)
}

// Transfers lazily yields committed records touching accountID, newest
// first. The query runs when the sequence is ranged over.
func (s *Store) Transfers(ctx context.Context, accountID string, since time.Time) iter.Seq2[ledger.TransferRecord, error] {
	return func(yield func(ledger.TransferRecord, error) bool) {
		var rows pgx.Rows
		var err error
		if since.IsZero() {
			rows, err = s.pool.Query(ctx, `
				SELECT `+transferColumns+`
				FROM transfers
				WHERE status = 'committed'
				  AND (sender_account_id = $1 OR recipient_account_id = $1)
				ORDER BY timestamp DESC, seq DESC
			`, accountID)
		} else {
			rows, err = s.pool.Query(ctx, `
				SELECT `+transferColumns+`
				FROM transfers
				WHERE status = 'committed'
				  AND (sender_account_id = $1 OR recipient_account_id = $1)
				  AND timestamp >= $2
				ORDER BY timestamp DESC, seq DESC
			`, accountID, since)
		}
		if err != nil {
			yield(ledger.TransferRecord{}, ledger.Unavailable("query transfers", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanTransfer(rows)
			if err != nil {
				yield(ledger.TransferRecord{}, ledger.Unavailable("scan transfer", err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ledger.TransferRecord{}, ledger.Unavailable("iterate transfers", err))
		}
	}
}

// CreateAccount inserts acct at version 0.
func (s *Store) CreateAccount(ctx context.Context, acct ledger.Account) error {
	if acct.Balance.IsNegative() || acct.OpeningBalance.IsNegative() {
		return ledger.WrapError(ledger.CodeInvalidAmount, "opening balance must not be negative", nil)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts
		(id, email, balance_cents, opening_balance_cents, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`, acct.ID, acct.Email, acct.Balance.Cents(), acct.OpeningBalance.Cents(), acct.CreatedAt, acct.UpdatedAt)
	if pgCode(err) == pgUniqueViolation {
		return &ledger.Error{
			Code:    ledger.CodeAccountExists,
			Message: fmt.Sprintf("account %q already exists", acct.Email),
			Details: map[string]string{"email": acct.Email, "id": acct.ID},
			Err:     err,
		}
	}
	if err != nil {
		return ledger.Unavailable("create account", err)
	}
	return nil
}

// Atomically runs fn in one transaction.
func (s *Store) Atomically(ctx context.Context, fn func(ledger.Unit) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(ctx, "begin unit", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	if err := fn(&unit{tx: tx}); err != nil {
		s.logger.Debug("unit rolled back", "error", err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ledger.WrapError(ledger.CodeVersionConflict, "commit unit: duplicate key", err)
		}
		return classify(ctx, "commit unit", err)
	}
	return nil
}

type unit struct {
	tx pgx.Tx
}

func (u *unit) Account(ctx context.Context, id string) (ledger.Account, error) {
	row := u.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAccount(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, classify(ctx, "read account by id", err)
	}
	return accountResult(a, err, "id", id)
}

func (u *unit) TransferByKey(ctx context.Context, key string) (ledger.TransferRecord, bool, error) {
	row := u.tx.QueryRow(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE idempotency_key = $1 AND status = 'committed'
	`, key)
	r, err := scanTransfer(row)
	return transferResult(r, err)
}

func (u *unit) CompareAndUpdateBalance(ctx context.Context, id string, expectedVersion int64, newBalance money.Amount, at time.Time) error {
	if newBalance.IsNegative() {
		return &ledger.Error{
			Code:    ledger.CodeInsufficientFunds,
			Message: fmt.Sprintf("balance of %s would become %s", id, newBalance),
			Details: map[string]string{"account_id": id},
		}
	}

	tag, err := u.tx.Exec(ctx, `
		UPDATE accounts
		SET balance_cents = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`, newBalance.Cents(), at, id, expectedVersion)
	if err != nil {
		return classify(ctx, "update balance", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := u.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return classify(ctx, "update balance: check account", err)
	}
	if !exists {
		return ledger.NotFound("id", id)
	}
	return ledger.Conflict(id, expectedVersion)
}

func (u *unit) AppendTransfer(ctx context.Context, rec ledger.TransferRecord) (ledger.TransferRecord, error) {
	err := u.tx.QueryRow(ctx, `
		INSERT INTO transfers
		(id, idempotency_key, sender_account_id, recipient_account_id,
		 amount_cents, note, timestamp, status, digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`,
		rec.ID,
		rec.IdempotencyKey,
		rec.SenderAccountID,
		rec.RecipientAccountID,
		rec.Amount.Cents(),
		rec.Note,
		rec.Timestamp,
		string(rec.Status),
		rec.Digest,
	).Scan(&rec.Seq)
	if pgCode(err) == pgUniqueViolation {
		return ledger.TransferRecord{}, &ledger.Error{
			Code:    ledger.CodeVersionConflict,
			Message: fmt.Sprintf("transfer key %q already committed", rec.IdempotencyKey),
			Details: map[string]string{"idempotency_key": rec.IdempotencyKey},
			Err:     err,
		}
	}
	if err != nil {
		return ledger.TransferRecord{}, classify(ctx, "append transfer", err)
	}
	return rec, nil
}
