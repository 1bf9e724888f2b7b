package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/mangobank/ledger/internal/history"
	"github.com/mangobank/ledger/internal/ledger"
	"github.com/mangobank/ledger/internal/money"
	"github.com/mangobank/ledger/internal/reconcile"
)

// Views are what commands print. Each renders itself as JSON through its
// tags and as text through String.

type accountView struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Balance   money.Amount `json:"balance"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func newAccountView(a ledger.Account) accountView {
	return accountView{
		ID:        a.ID,
		Email:     a.Email,
		Balance:   a.Balance,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt,
	}
}

func (v accountView) String() string {
	return fmt.Sprintf("%s (%s)\n  balance: %s\n  version: %d", v.Email, v.ID, v.Balance, v.Version)
}

type transferView struct {
	ledger.TransferRecord
	From string `json:"from"`
	To   string `json:"to"`
}

func (v transferView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", v.Status, v.ID)
	fmt.Fprintf(&b, "  %s -> %s: %s\n", v.From, v.To, v.Amount)
	fmt.Fprintf(&b, "  key: %s\n", v.IdempotencyKey)
	if v.Note != "" {
		fmt.Fprintf(&b, "  note: %s\n", v.Note)
	}
	fmt.Fprintf(&b, "  at: %s (seq %d)", v.Timestamp.Format(time.RFC3339Nano), v.Seq)
	return b.String()
}

type historyView struct {
	Email   string          `json:"email"`
	Entries []history.Entry `json:"entries"`
}

func (v historyView) String() string {
	if len(v.Entries) == 0 {
		return fmt.Sprintf("No transfers for %s.", v.Email)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "History for %s (newest first):", v.Email)
	for _, e := range v.Entries {
		fmt.Fprintf(&b, "\n  %s  %-6s %10s  %s  %s",
			e.Timestamp.Format(time.RFC3339), e.Direction, e.Signed, e.Counterparty, e.ID)
		if e.Note != "" {
			fmt.Fprintf(&b, "  %q", e.Note)
		}
	}
	return b.String()
}

type reportView struct {
	reconcile.Report
	Reconciled bool `json:"ok"`
}

func (v reportView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "accounts: %d  records: %d  total: %s\n", v.Accounts, v.Records, v.Total)
	for _, m := range v.Mismatches {
		fmt.Fprintf(&b, "  mismatch %s (%s): balance %s, log says %s\n", m.Email, m.AccountID, m.Balance, m.Expected)
	}
	for _, id := range v.BadDigests {
		fmt.Fprintf(&b, "  digest mismatch on %s\n", id)
	}
	for _, id := range v.NegativeBalances {
		fmt.Fprintf(&b, "  negative balance on %s\n", id)
	}
	if v.Reconciled {
		b.WriteString("✓ ledger reconciles")
	} else {
		b.WriteString("✗ ledger does not reconcile")
	}
	return b.String()
}

type healthView struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
}

func (v healthView) String() string {
	return fmt.Sprintf("%s: %s", v.Backend, v.Status)
}
