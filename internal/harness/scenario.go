package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mangobank/ledger/internal/account"
)

// Scenario defines a ledger test scenario: accounts to open, transfers to
// run in order, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Accounts are opened before the first step, in order.
	Accounts []AccountSeed `yaml:"accounts"`

	// Steps are transfers executed sequentially.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state. Optional.
	Assertions Assertions `yaml:"assertions,omitempty"`
}

// AccountSeed is an account opened before the steps run.
type AccountSeed struct {
	Email string `yaml:"email"`

	// Balance is a decimal string such as "100.00".
	Balance string `yaml:"balance"`
}

// Step is one transfer and its expected outcome.
type Step struct {
	Transfer TransferStep `yaml:"transfer"`

	// Expect is optional; a step without one is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// TransferStep is the request a step submits to the engine.
type TransferStep struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
	Note   string `yaml:"note,omitempty"`
	Key    string `yaml:"key,omitempty"`
}

// ExpectClause specifies the expected result of a step.
type ExpectClause struct {
	// Outcome is "committed" or a ledger error code such as
	// "INSUFFICIENT_FUNDS".
	Outcome string `yaml:"outcome"`
}

// Assertions validate the final state. Unset fields are not checked.
type Assertions struct {
	// Balances maps email to expected balance.
	Balances map[string]string `yaml:"balances,omitempty"`

	// Versions maps email to expected version.
	Versions map[string]int64 `yaml:"versions,omitempty"`

	// Committed is the expected number of committed records.
	Committed *int `yaml:"committed,omitempty"`

	// Reconciled is the expected reconciliation verdict.
	Reconciled *bool `yaml:"reconciled,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or violates the scenario schema.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML already in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// The schema sees the raw document so that an amount written as a bare
	// float is caught before it can be coerced into a string.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks what the schema cannot express: references
// between sections.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Accounts))
	for i, a := range s.Accounts {
		key := account.NormalizeEmail(a.Email)
		if seen[key] {
			return fmt.Errorf("accounts[%d]: duplicate email %q", i, a.Email)
		}
		seen[key] = true
	}

	for email := range s.Assertions.Balances {
		if !seen[account.NormalizeEmail(email)] {
			return fmt.Errorf("assertions.balances: unknown account %q", email)
		}
	}
	for email := range s.Assertions.Versions {
		if !seen[account.NormalizeEmail(email)] {
			return fmt.Errorf("assertions.versions: unknown account %q", email)
		}
	}

	return nil
}
