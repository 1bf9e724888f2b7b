package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/mangobank/ledger/internal/audit"
)

// TraceSnapshot captures the trace and final state of a scenario run.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Accounts     []AccountState
	Committed    int
	Reconciled   bool
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Accounts:     result.Accounts,
		Committed:    result.Committed,
		Reconciled:   result.Reconciled,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// Empty fields are omitted so open and transfer events keep their own shape.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"step": event.Step,
		}
		for k, v := range map[string]string{
			"email":       event.Email,
			"account_id":  event.AccountID,
			"balance":     event.Balance,
			"from":        event.From,
			"to":          event.To,
			"amount":      event.Amount,
			"key":         event.Key,
			"outcome":     event.Outcome,
			"transfer_id": event.TransferID,
			"timestamp":   event.Timestamp,
		} {
			if v != "" {
				eventMap[k] = v
			}
		}
		if event.Seq != 0 {
			eventMap["seq"] = event.Seq
		}
		traceList[i] = eventMap
	}

	accountList := make([]any, len(s.Accounts))
	for i, a := range s.Accounts {
		accountList[i] = map[string]any{
			"email":   a.Email,
			"id":      a.ID,
			"balance": a.Balance,
			"version": a.Version,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"accounts":      accountList,
		"committed":     s.Committed,
		"reconciled":    s.Reconciled,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return audit.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
