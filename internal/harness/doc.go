// Package harness runs ledger scenarios and compares their traces against
// golden files.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	accounts:
//	  - email: alice@example.com
//	    balance: "100.00"
//	steps:
//	  - transfer:
//	      from: alice@example.com
//	      to: bob@example.com
//	      amount: "30.00"
//	      note: lunch
//	      key: order-1
//	    expect:
//	      outcome: committed
//	assertions:
//	  balances: { alice@example.com: "70.00" }
//	  versions: { alice@example.com: 1 }
//	  committed: 1
//	  reconciled: true
//
// Amounts and balances are quoted strings. A document is checked against
// the embedded CUE schema (schema.cue) and then decoded strictly, so
// unknown fields are rejected.
//
// # Outcomes
//
// A step's outcome is "committed" when the engine returned a record,
// including a replayed one, and the ledger error code otherwise
// (INVALID_AMOUNT, SAME_ACCOUNT, ACCOUNT_NOT_FOUND, INSUFFICIENT_FUNDS,
// CONTENTION, STORE_UNAVAILABLE).
//
// # Deterministic Testing
//
// Every run uses:
//   - A fresh in-memory store (memstore)
//   - testutil.DeterministicClock starting at 2024-01-01T00:00:00Z, one
//     second per reading
//   - Sequential ids: acct-0001... for accounts, tx-0001... for transfers
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/basic_transfer.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
