package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func twoAccounts(steps ...Step) *Scenario {
	return &Scenario{
		Name:        "two_accounts",
		Description: "alice and bob",
		Accounts: []AccountSeed{
			{Email: "alice@example.com", Balance: "100.00"},
			{Email: "bob@example.com", Balance: "50.00"},
		},
		Steps: steps,
	}
}

func move(from, to, amount string, outcome string) Step {
	return Step{
		Transfer: TransferStep{From: from, To: to, Amount: amount},
		Expect:   &ExpectClause{Outcome: outcome},
	}
}

func TestRun_SingleTransfer(t *testing.T) {
	scenario := twoAccounts(move("alice@example.com", "bob@example.com", "30.00", OutcomeCommitted))
	scenario.Assertions = Assertions{
		Balances:   map[string]string{"alice@example.com": "70.00", "bob@example.com": "80"},
		Versions:   map[string]int64{"alice@example.com": 1, "bob@example.com": 1},
		Committed:  intPtr(1),
		Reconciled: boolPtr(true),
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 3)

	assert.Equal(t, EventOpen, result.Trace[0].Type)
	assert.Equal(t, "acct-0001", result.Trace[0].AccountID)
	assert.Equal(t, EventOpen, result.Trace[1].Type)
	assert.Equal(t, "acct-0002", result.Trace[1].AccountID)

	tr := result.Trace[2]
	assert.Equal(t, EventTransfer, tr.Type)
	assert.Equal(t, OutcomeCommitted, tr.Outcome)
	assert.Equal(t, "tx-0001", tr.TransferID)
	assert.Equal(t, "2024-01-01T00:00:02Z", tr.Timestamp)
	assert.Equal(t, int64(1), tr.Seq)
}

func TestRun_Deterministic(t *testing.T) {
	scenario := twoAccounts(
		move("alice@example.com", "bob@example.com", "10", OutcomeCommitted),
		move("bob@example.com", "alice@example.com", "5", OutcomeCommitted),
	)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Accounts, second.Accounts)
}

func TestRun_UnexpectedOutcome(t *testing.T) {
	scenario := twoAccounts(
		move("alice@example.com", "bob@example.com", "500.00", OutcomeCommitted),
		move("alice@example.com", "bob@example.com", "1.00", OutcomeCommitted),
	)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1")
	assert.Contains(t, result.Errors[0], "INSUFFICIENT_FUNDS")

	// Later steps still run.
	assert.Equal(t, OutcomeCommitted, result.Trace[3].Outcome)
}

func TestRun_StepWithoutExpectIsNotChecked(t *testing.T) {
	scenario := twoAccounts(Step{
		Transfer: TransferStep{From: "alice@example.com", To: "nobody@example.com", Amount: "1"},
	})

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", result.Trace[2].Outcome)
}

func TestRun_MalformedAmount(t *testing.T) {
	scenario := twoAccounts(move("alice@example.com", "bob@example.com", "ten", "INVALID_AMOUNT"))

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_IdempotentReplay(t *testing.T) {
	step := Step{
		Transfer: TransferStep{From: "alice@example.com", To: "bob@example.com", Amount: "20", Key: "k-1"},
		Expect:   &ExpectClause{Outcome: OutcomeCommitted},
	}
	scenario := twoAccounts(step, step)
	scenario.Assertions = Assertions{
		Balances:  map[string]string{"alice@example.com": "80.00", "bob@example.com": "70.00"},
		Committed: intPtr(1),
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, result.Trace[2].TransferID, result.Trace[3].TransferID)
	assert.Equal(t, result.Trace[2].Seq, result.Trace[3].Seq)
}

func TestRun_FailedAssertions(t *testing.T) {
	scenario := twoAccounts(move("alice@example.com", "bob@example.com", "30.00", OutcomeCommitted))
	scenario.Assertions = Assertions{
		Balances:   map[string]string{"alice@example.com": "99.00"},
		Versions:   map[string]int64{"bob@example.com": 7},
		Committed:  intPtr(2),
		Reconciled: boolPtr(false),
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "balance")
	assert.Contains(t, result.Errors[1], "version")
	assert.Contains(t, result.Errors[2], "committed")
	assert.Contains(t, result.Errors[3], "reconciled")
}

func TestRun_BadSeedAborts(t *testing.T) {
	scenario := &Scenario{
		Name: "bad_seed",
		Accounts: []AccountSeed{
			{Email: "alice@example.com", Balance: "1.00"},
			{Email: "alice@example.com", Balance: "2.00"},
		},
		Steps: []Step{move("alice@example.com", "bob@example.com", "1", OutcomeCommitted)},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accounts[1]")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
