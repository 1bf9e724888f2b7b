package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its snapshot with testdata/golden. Regenerate with -update.
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	result, err := Run(twoAccounts(move("alice@example.com", "bob@example.com", "1", OutcomeCommitted)))
	require.NoError(t, err)

	snapshot := Snapshot("canonical", result)
	data, err := snapshot.MarshalCanonical()
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, `{"accounts":[`), s)
	assert.NotContains(t, s, " ")
	assert.NotContains(t, s, "\n")
	assert.Contains(t, s, `"scenario_name":"canonical"`)
	// Open events carry no transfer fields.
	assert.Contains(t, s, `{"account_id":"acct-0001","balance":"100.00","email":"alice@example.com","step":1,"type":"open"}`)
}

func TestGoldenFiles_HaveNoTrailingNewline(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "golden", "*.golden"))
	require.NoError(t, err)

	for _, file := range files {
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.False(t, strings.HasSuffix(string(data), "\n"), file)
	}
}
