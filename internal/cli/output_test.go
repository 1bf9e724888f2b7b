package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangobank/ledger/internal/ledger"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("INSUFFICIENT_FUNDS", "insufficient funds", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_FUNDS", resp.Error.Code)
	assert.Equal(t, "insufficient funds", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"account_id": "acct-1", "amount": "30.00"}
	err := formatter.Error("ACCOUNT_NOT_FOUND", "account not found", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("alice@example.com: ok")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "alice@example.com: ok")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("INSUFFICIENT_FUNDS", "insufficient funds", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [INSUFFICIENT_FUNDS]")
	assert.Contains(t, buf.String(), "insufficient funds")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"email": "carol@example.com"}
	err := formatter.Error("INSUFFICIENT_FUNDS", "insufficient funds", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [INSUFFICIENT_FUNDS]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("opening %s", "ledger.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "opening ledger.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "STORE_UNAVAILABLE",
		Message: "ping failed",
		Details: map[string]string{"op": "ping"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "STORE_UNAVAILABLE", decoded.Code)
	assert.Equal(t, "ping failed", decoded.Message)
}

func TestOutputFormatter_FailLedgerError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(&ledger.Error{
		Code:    ledger.CodeInsufficientFunds,
		Message: "balance 10.00 is below 30.00",
		Details: map[string]string{"account_id": "acct-1"},
	})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitFailure, exitErr.Code)
	assert.True(t, exitErr.Reported)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientFunds))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", resp.Error.Code)
	assert.Equal(t, "balance 10.00 is below 30.00", resp.Error.Message)
}

func TestOutputFormatter_FailPlainError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(errors.New("disk on fire"))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [ERROR]: disk on fire")
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code ledger.ErrorCode
		want int
	}{
		{ledger.CodeInvalidAmount, ExitFailure},
		{ledger.CodeSameAccount, ExitFailure},
		{ledger.CodeAccountNotFound, ExitFailure},
		{ledger.CodeInsufficientFunds, ExitFailure},
		{ledger.CodeContention, ExitTransient},
		{ledger.CodeStoreUnavailable, ExitTransient},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(ledger.NewError(tt.code, "x")))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitTransient, GetExitCode(NewExitError(ExitTransient, "busy")))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New(`unknown flag: --nope`)))
}
