package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mangobank/ledger/internal/account"
	"github.com/mangobank/ledger/internal/history"
	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/memstore"
	"github.com/mangobank/ledger/internal/money"
	"github.com/mangobank/ledger/internal/reconcile"
	"github.com/mangobank/ledger/internal/testutil"
	"github.com/mangobank/ledger/internal/transfer"
)

// Harness executes scenarios against a fresh in-memory ledger.
type Harness struct {
	store    *memstore.Store
	accounts *account.Repository
	engine   *transfer.Engine
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh memory store, a deterministic clock starting at
// testutil.DefaultEpoch and sequential ids ("acct-0001", "tx-0001"), so
// the same scenario always produces the same trace.
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations and assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h := newHarness()
	defer h.store.Close()

	result := NewResult()

	if err := h.openAccounts(ctx, scenario.Accounts, result); err != nil {
		return nil, fmt.Errorf("failed to open accounts: %w", err)
	}

	h.executeSteps(ctx, scenario.Steps, result)

	if err := h.captureState(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to capture final state: %w", err)
	}

	for _, msg := range evaluateAssertions(scenario.Assertions, result) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness() *Harness {
	// Scenario runs are quiet; the trace is the output.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewDeterministicClock()

	st := memstore.New(memstore.WithLogger(logger))
	return &Harness{
		store: st,
		accounts: account.NewRepository(st,
			account.WithClock(clock),
			account.WithIDGenerator(testutil.NewSequentialIDGenerator("acct")),
			account.WithLogger(logger),
		),
		engine: transfer.New(st,
			transfer.WithClock(clock),
			transfer.WithIDGenerator(testutil.NewSequentialIDGenerator("tx")),
			transfer.WithBackoff(0),
			transfer.WithLogger(logger),
		),
	}
}

// openAccounts registers every seed account. Seeds are trusted input, so
// any failure aborts the run.
func (h *Harness) openAccounts(ctx context.Context, seeds []AccountSeed, result *Result) error {
	for i, seed := range seeds {
		balance, err := money.Parse(seed.Balance)
		if err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}

		acct, err := h.accounts.Open(ctx, seed.Email, balance)
		if err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}

		result.Trace = append(result.Trace, TraceEvent{
			Type:      EventOpen,
			Step:      i + 1,
			Email:     acct.Email,
			AccountID: acct.ID,
			Balance:   acct.Balance.String(),
		})
	}
	return nil
}

// executeSteps runs the transfers sequentially. Every step runs even after
// an unexpected outcome so the trace shows the whole run.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		event := h.executeTransfer(ctx, step.Transfer)
		event.Step = i + 1
		result.Trace = append(result.Trace, event)

		if step.Expect != nil && step.Expect.Outcome != event.Outcome {
			result.AddError(fmt.Sprintf("step %d: expected outcome %s, got %s",
				i+1, step.Expect.Outcome, event.Outcome))
		}
	}
}

func (h *Harness) executeTransfer(ctx context.Context, ts TransferStep) TraceEvent {
	event := TraceEvent{
		Type:   EventTransfer,
		From:   ts.From,
		To:     ts.To,
		Amount: ts.Amount,
		Key:    ts.Key,
	}

	amount, err := money.Parse(ts.Amount)
	if err != nil {
		event.Outcome = string(ledger.CodeInvalidAmount)
		return event
	}

	rec, err := h.engine.Transfer(ctx, transfer.Request{
		SenderEmail:    ts.From,
		RecipientEmail: ts.To,
		Amount:         amount,
		Note:           ts.Note,
		IdempotencyKey: ts.Key,
	})
	if err != nil {
		event.Outcome = outcomeOf(err)
		return event
	}

	event.Outcome = OutcomeCommitted
	event.TransferID = rec.ID
	event.Timestamp = rec.Timestamp.UTC().Format(time.RFC3339Nano)
	event.Seq = rec.Seq
	return event
}

// outcomeOf reports the ledger error code, or the raw message for errors
// outside the taxonomy.
func outcomeOf(err error) string {
	if code := ledger.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

// captureState records final balances, the committed record count and the
// reconciliation verdict.
func (h *Harness) captureState(ctx context.Context, result *Result) error {
	accts, err := h.accounts.List(ctx)
	if err != nil {
		return err
	}

	hist := history.New(h.store)
	seen := make(map[string]bool)
	for _, a := range accts {
		result.Accounts = append(result.Accounts, AccountState{
			Email:   a.Email,
			ID:      a.ID,
			Balance: a.Balance.String(),
			Version: a.Version,
		})

		for rec, err := range hist.HistoryFor(ctx, a.ID, time.Time{}) {
			if err != nil {
				return err
			}
			seen[rec.ID] = true
		}
	}
	slices.SortFunc(result.Accounts, func(a, b AccountState) int {
		return strings.Compare(a.Email, b.Email)
	})
	result.Committed = len(seen)

	report, err := reconcile.Check(ctx, h.store)
	if err != nil {
		return err
	}
	result.Reconciled = report.OK()
	return nil
}
