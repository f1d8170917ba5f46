package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroryan/shopledger/internal/model"
	"github.com/retroryan/shopledger/internal/result"
)

func TestOutputFormatter_ResultJSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Result(result.OK(model.StatusOf(model.InventoryRecord{ProductID: "widget", Stock: 5, Reserved: 2})))
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(3), data["available"])
}

func TestOutputFormatter_ResultJSONFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	rej := model.Rejectf(model.CodeInsufficientStock, "insufficient stock for widget").With("available_stock", 2)
	err := formatter.Result(result.Fail(rej))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, Reported(err))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "failed", resp["status"])
	assert.Equal(t, "INSUFFICIENT_STOCK", resp["code"])
	assert.Equal(t, float64(2), resp["details"].(map[string]any)["available_stock"])
}

func TestOutputFormatter_ResultText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Result(result.OK(map[string]any{"total": model.Money(17500), "items": 2}))
	require.NoError(t, err)
	assert.Equal(t, "items: 2\ntotal: 175.00\n", buf.String())
}

func TestOutputFormatter_ResultTextFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	rej := model.Rejectf(model.CodeInvalidTransition, "cannot move order from delivered to cancelled").
		With("requested_status", "cancelled").
		With("current_status", "delivered")
	err := formatter.Result(result.Fail(rej))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "Error [INVALID_TRANSITION]: cannot move order from delivered to cancelled")
	// Details are sorted by key
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("current_status")), bytes.Index(buf.Bytes(), []byte("requested_status")))
	assert.NotContains(t, out, "retryable")
}

func TestOutputFormatter_ResultTextRetryable(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Result(result.Fail(errors.New("database is locked")))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Error [STORE_ERROR]: database is locked")
	assert.Contains(t, buf.String(), "(retryable)")
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
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("seeding %d products", 3)

			// Diagnostics never touch stdout
			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "seeding 3 products")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	wrapped := WrapExitError(ExitCommandError, "failed to open database", errors.New("disk full"))
	assert.Equal(t, "failed to open database: disk full", wrapped.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.False(t, Reported(wrapped))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.False(t, Reported(errors.New("plain")))
	assert.True(t, Reported(&ExitError{Code: ExitFailure}))
}
