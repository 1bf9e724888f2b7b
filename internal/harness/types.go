package harness

// Trace event types.
const (
	EventOpen     = "open"
	EventTransfer = "transfer"
)

// OutcomeCommitted is the outcome of a transfer step that returned a record.
// Failed steps report their ledger error code instead.
const OutcomeCommitted = "committed"

// TraceEvent records one step of a scenario run.
//
// Open events fill Email, AccountID and Balance. Transfer events fill From,
// To, Amount and Outcome, plus TransferID, Timestamp and Seq when the
// outcome is committed.
type TraceEvent struct {
	Type string `json:"type"` // "open" or "transfer"
	Step int    `json:"step"`

	Email     string `json:"email,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Balance   string `json:"balance,omitempty"`

	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Key     string `json:"key,omitempty"`
	Outcome string `json:"outcome,omitempty"`

	TransferID string `json:"transfer_id,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Seq        int64  `json:"seq,omitempty"`
}

// AccountState is an account as it stood when the scenario finished.
type AccountState struct {
	Email   string `json:"email"`
	ID      string `json:"id"`
	Balance string `json:"balance"`
	Version int64  `json:"version"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the opens and transfers in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Accounts is the final state, ordered by email.
	Accounts []AccountState `json:"accounts"`

	// Committed counts distinct committed records in the log.
	Committed int `json:"committed"`

	// Reconciled reports whether the final ledger passed reconciliation.
	Reconciled bool `json:"reconciled"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Accounts: []AccountState{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Account returns the final state of the account registered under email.
func (r *Result) Account(email string) (AccountState, bool) {
	for _, a := range r.Accounts {
		if a.Email == email {
			return a, true
		}
	}
	return AccountState{}, false
}
