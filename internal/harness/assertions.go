package harness

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mangobank/ledger/internal/account"
	"github.com/mangobank/ledger/internal/money"
)

// AssertionError describes one failed assertion.
type AssertionError struct {
	Type     string // "balance", "version", "committed" or "reconciled"
	Subject  string // account email, empty for ledger-wide assertions
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("assertion %s failed for %s: expected %s, got %s", e.Type, e.Subject, e.Expected, e.Actual)
	}
	return fmt.Sprintf("assertion %s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluateAssertions checks a against the final state in result and
// returns one message per failure. Accounts are checked in email order so
// the messages are stable.
func evaluateAssertions(a Assertions, result *Result) []string {
	var errs []string
	fail := func(e *AssertionError) {
		errs = append(errs, e.Error())
	}

	for _, email := range slices.Sorted(maps.Keys(a.Balances)) {
		want := a.Balances[email]
		got, ok := result.Account(account.NormalizeEmail(email))
		if !ok {
			fail(&AssertionError{Type: "balance", Subject: email, Expected: want, Actual: "no such account"})
			continue
		}
		if !sameAmount(want, got.Balance) {
			fail(&AssertionError{Type: "balance", Subject: email, Expected: want, Actual: got.Balance})
		}
	}

	for _, email := range slices.Sorted(maps.Keys(a.Versions)) {
		want := a.Versions[email]
		got, ok := result.Account(account.NormalizeEmail(email))
		if !ok {
			fail(&AssertionError{Type: "version", Subject: email, Expected: fmt.Sprint(want), Actual: "no such account"})
			continue
		}
		if got.Version != want {
			fail(&AssertionError{Type: "version", Subject: email, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got.Version)})
		}
	}

	if a.Committed != nil && *a.Committed != result.Committed {
		fail(&AssertionError{Type: "committed", Expected: fmt.Sprint(*a.Committed), Actual: fmt.Sprint(result.Committed)})
	}

	if a.Reconciled != nil && *a.Reconciled != result.Reconciled {
		fail(&AssertionError{Type: "reconciled", Expected: fmt.Sprint(*a.Reconciled), Actual: fmt.Sprint(result.Reconciled)})
	}

	return errs
}

// sameAmount compares decimal strings by value, so "70" matches "70.00".
func sameAmount(want, got string) bool {
	w, err := money.Parse(want)
	if err != nil {
		return false
	}
	g, err := money.Parse(got)
	if err != nil {
		return false
	}
	return w.Equal(g)
}
