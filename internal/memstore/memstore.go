// Package memstore is an in-process ledger.Store.
//
// Accounts carry their own lock. A unit of work reads committed state,
// buffers its writes, and validates them at commit: the account locks it
// touches are taken in ascending id order, every compare-and-update is
// re-checked against the live version, and only then are the writes and
// log appends applied together. A failed check discards the whole unit.
//
// memstore backs the scenario harness and engine tests. It keeps nothing
// across process restarts.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
)

type account struct {
	mu    sync.Mutex
	state ledger.Account
}

func (a *account) snapshot() ledger.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Store is the in-memory ledger.
type Store struct {
	mu       sync.RWMutex // guards accounts and byEmail
	accounts map[string]*account
	byEmail  map[string]string

	logMu sync.RWMutex // guards log and keys
	log   []ledger.TransferRecord
	keys  map[string]int // committed idempotency key -> index into log

	seq    atomic.Int64
	closed atomic.Bool
	logger *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// Option configures New.
type Option func(*Store)

// WithLogger sets the logger used for commit diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		keys:     make(map[string]int),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errClosed = errors.New("memstore: closed")

func (s *Store) checkOpen(op string) error {
	if s.closed.Load() {
		return ledger.Unavailable(op, errClosed)
	}
	return nil
}

func (s *Store) lookup(id string) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// CreateAccount inserts acct at version 0.
func (s *Store) CreateAccount(ctx context.Context, acct ledger.Account) error {
	if err := s.checkOpen("create account"); err != nil {
		return err
	}
	if acct.Balance.IsNegative() || acct.OpeningBalance.IsNegative() {
		return ledger.WrapError(ledger.CodeInvalidAmount, "opening balance must not be negative", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, idTaken := s.accounts[acct.ID]
	_, emailTaken := s.byEmail[acct.Email]
	if idTaken || emailTaken {
		return &ledger.Error{
			Code:    ledger.CodeAccountExists,
			Message: fmt.Sprintf("account %q already exists", acct.Email),
			Details: map[string]string{"email": acct.Email, "id": acct.ID},
		}
	}

	acct.Version = 0
	s.accounts[acct.ID] = &account{state: acct}
	s.byEmail[acct.Email] = acct.ID
	return nil
}

// AccountByEmail returns the account registered under email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (ledger.Account, error) {
	if err := s.checkOpen("read account by email"); err != nil {
		return ledger.Account{}, err
	}
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return ledger.Account{}, ledger.NotFound("email", email)
	}
	return s.AccountByID(ctx, id)
}

// AccountByID returns the account with the given id.
func (s *Store) AccountByID(ctx context.Context, id string) (ledger.Account, error) {
	if err := s.checkOpen("read account by id"); err != nil {
		return ledger.Account{}, err
	}
	a, ok := s.lookup(id)
	if !ok {
		return ledger.Account{}, ledger.NotFound("id", id)
	}
	return a.snapshot(), nil
}

// Accounts returns every account ordered by id.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	if err := s.checkOpen("list accounts"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*account, 0, len(s.accounts))
	for _, a := range s.accounts {
		entries = append(entries, a)
	}
	s.mu.RUnlock()

	out := make([]ledger.Account, 0, len(entries))
	for _, a := range entries {
		out = append(out, a.snapshot())
	}
	slices.SortFunc(out, func(x, y ledger.Account) int {
		return strings.Compare(x.ID, y.ID)
	})
	return out, nil
}

// TransferByKey returns the committed record with the idempotency key.
func (s *Store) TransferByKey(ctx context.Context, key string) (ledger.TransferRecord, bool, error) {
	if err := s.checkOpen("read transfer by key"); err != nil {
		return ledger.TransferRecord{}, false, err
	}
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	i, ok := s.keys[key]
	if !ok {
		return ledger.TransferRecord{}, false, nil
	}
	return s.log[i], true, nil
}

// Transfers yields committed records touching accountID, newest first.
// Each range takes a snapshot of the matching records when it starts.
func (s *Store) Transfers(ctx context.Context, accountID string, since time.Time) iter.Seq2[ledger.TransferRecord, error] {
	return func(yield func(ledger.TransferRecord, error) bool) {
		if err := s.checkOpen("query transfers"); err != nil {
			yield(ledger.TransferRecord{}, err)
			return
		}

		s.logMu.RLock()
		var matched []ledger.TransferRecord
		for _, r := range s.log {
			if r.Status != ledger.StatusCommitted || !r.Touches(accountID) {
				continue
			}
			if !since.IsZero() && r.Timestamp.Before(since) {
				continue
			}
			matched = append(matched, r)
		}
		s.logMu.RUnlock()

		slices.SortFunc(matched, newestFirst)

		for _, r := range matched {
			if err := ctx.Err(); err != nil {
				yield(ledger.TransferRecord{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func newestFirst(a, b ledger.TransferRecord) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.Seq > b.Seq:
		return -1
	case a.Seq < b.Seq:
		return 1
	}
	return 0
}

// Ping reports whether the store is still open.
func (s *Store) Ping(ctx context.Context) error {
	return s.checkOpen("ping")
}

// Close marks the store closed. Later calls fail with a store-unavailable
// error.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Atomically runs fn against a buffered unit and commits it if fn succeeds.
func (s *Store) Atomically(ctx context.Context, fn func(ledger.Unit) error) error {
	if err := s.checkOpen("begin unit"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	u := &unit{store: s, writes: make(map[string]*pendingWrite)}
	if err := fn(u); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(u)
}

// commit validates and applies u. Account locks are taken in ascending id
// order so two commits touching the same pair cannot deadlock.
func (s *Store) commit(u *unit) error {
	ids := make([]string, 0, len(u.writes))
	for id := range u.writes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	locked := make([]*account, 0, len(ids))
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}()

	for _, id := range ids {
		a, ok := s.lookup(id)
		if !ok {
			return ledger.NotFound("id", id)
		}
		a.mu.Lock()
		locked = append(locked, a)

		w := u.writes[id]
		if a.state.Version != w.baseVersion {
			s.logger.Debug("memstore commit conflict",
				"account_id", id,
				"expected_version", w.baseVersion,
				"actual_version", a.state.Version)
			return ledger.Conflict(id, w.baseVersion)
		}
	}

	s.logMu.Lock()
	defer s.logMu.Unlock()

	for _, r := range u.appends {
		if r.Status != ledger.StatusCommitted {
			continue
		}
		if _, dup := s.keys[r.IdempotencyKey]; dup {
			return &ledger.Error{
				Code:    ledger.CodeVersionConflict,
				Message: fmt.Sprintf("transfer key %q already committed", r.IdempotencyKey),
				Details: map[string]string{"idempotency_key": r.IdempotencyKey},
			}
		}
	}

	for i, id := range ids {
		w := u.writes[id]
		st := &locked[i].state
		st.Balance = w.balance
		st.Version = w.version
		st.UpdatedAt = w.at
	}
	for _, r := range u.appends {
		s.log = append(s.log, r)
		if r.Status == ledger.StatusCommitted {
			s.keys[r.IdempotencyKey] = len(s.log) - 1
		}
	}
	return nil
}

type pendingWrite struct {
	baseVersion int64 // version observed by the first write in the unit
	version     int64
	balance     money.Amount
	at          time.Time
}

type unit struct {
	store   *Store
	writes  map[string]*pendingWrite
	appends []ledger.TransferRecord
}

func (u *unit) Account(ctx context.Context, id string) (ledger.Account, error) {
	acct, err := u.store.AccountByID(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	if w, ok := u.writes[id]; ok {
		acct.Balance = w.balance
		acct.Version = w.version
		acct.UpdatedAt = w.at
	}
	return acct, nil
}

func (u *unit) TransferByKey(ctx context.Context, key string) (ledger.TransferRecord, bool, error) {
	for _, r := range u.appends {
		if r.Status == ledger.StatusCommitted && r.IdempotencyKey == key {
			return r, true, nil
		}
	}
	return u.store.TransferByKey(ctx, key)
}

func (u *unit) CompareAndUpdateBalance(ctx context.Context, id string, expectedVersion int64, newBalance money.Amount, at time.Time) error {
	if newBalance.IsNegative() {
		return &ledger.Error{
			Code:    ledger.CodeInsufficientFunds,
			Message: fmt.Sprintf("balance of %s would become %s", id, newBalance),
			Details: map[string]string{"account_id": id},
		}
	}

	if w, ok := u.writes[id]; ok {
		if w.version != expectedVersion {
			return ledger.Conflict(id, expectedVersion)
		}
		w.version++
		w.balance = newBalance
		w.at = at
		return nil
	}

	current, err := u.store.AccountByID(ctx, id)
	if err != nil {
		return err
	}
	// Fail fast; commit re-checks under the account lock.
	if current.Version != expectedVersion {
		return ledger.Conflict(id, expectedVersion)
	}

	u.writes[id] = &pendingWrite{
		baseVersion: expectedVersion,
		version:     expectedVersion + 1,
		balance:     newBalance,
		at:          at,
	}
	return nil
}

func (u *unit) AppendTransfer(ctx context.Context, rec ledger.TransferRecord) (ledger.TransferRecord, error) {
	for _, id := range []string{rec.SenderAccountID, rec.RecipientAccountID} {
		if _, ok := u.store.lookup(id); !ok {
			return ledger.TransferRecord{}, ledger.NotFound("id", id)
		}
	}

	if rec.Status == ledger.StatusCommitted {
		if _, found, err := u.TransferByKey(ctx, rec.IdempotencyKey); err != nil {
			return ledger.TransferRecord{}, err
		} else if found {
			return ledger.TransferRecord{}, &ledger.Error{
				Code:    ledger.CodeVersionConflict,
				Message: fmt.Sprintf("transfer key %q already committed", rec.IdempotencyKey),
				Details: map[string]string{"idempotency_key": rec.IdempotencyKey},
			}
		}
	}

	rec.Seq = u.store.seq.Add(1)
	u.appends = append(u.appends, rec)
	return rec, nil
}
