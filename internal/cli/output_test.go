package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/a11yharness/internal/audit"
	"github.com/roach88/a11yharness/internal/fixture"
	"github.com/roach88/a11yharness/internal/harness"
	"github.com/roach88/a11yharness/internal/report"
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

	err := formatter.Error("E_PARSE_MALFORMED_JSON", "auditor output unreadable", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E_PARSE_MALFORMED_JSON", resp.Error.Code)
	assert.Equal(t, "auditor output unreadable", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"stage": "result_parsed", "run_id": "run-1"}
	err := formatter.Error("E_AUDIT_TIMEOUT", "auditor timed out", details)
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

	err := formatter.Success("doc 1 failures")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "doc 1 failures")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E_PARSE_MALFORMED_JSON", "auditor output unreadable", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_PARSE_MALFORMED_JSON]")
	assert.Contains(t, buf.String(), "auditor output unreadable")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"stage": "result_parsed"}
	err := formatter.Error("E_PARSE_MALFORMED_JSON", "auditor output unreadable", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_PARSE_MALFORMED_JSON]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		wantLog  bool
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

			formatter.VerboseLog("Running scenario %s", "h1-then-h3")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Running scenario h1-then-h3")
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
		Code:    "E_FIXTURE_CREATE_FAILED",
		Message: "fixture not created",
		Details: []string{"permission denied"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E_FIXTURE_CREATE_FAILED", decoded.Code)
	assert.Equal(t, "fixture not created", decoded.Message)
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"plain", NewExitError(ExitCommandError, "bad flag"), ExitCommandError, "bad flag"},
		{"wrapped", WrapExitError(ExitFailure, "run failed", cause), ExitFailure, "run failed: boom"},
		{"nested", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "x")), ExitCommandError, "outer: x"},
		{"non exit error", cause, ExitFailure, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, GetExitCode(tt.err))
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}

	assert.ErrorIs(t, WrapExitError(ExitFailure, "run failed", cause), cause)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"fixture", &fixture.FixtureError{Code: fixture.ErrCodeCreateFailed}, "E_FIXTURE_CREATE_FAILED"},
		{"audit", &audit.InvokeError{Code: audit.ErrCodeTimeout}, "E_AUDIT_TIMEOUT"},
		{"parse", &report.ParseError{Code: report.ErrCodeMalformedJSON}, "E_PARSE_MALFORMED_JSON"},
		{"wrapped in stage", &harness.StageError{Stage: harness.StageResultParsed, Err: &report.ParseError{Code: report.ErrCodeEmptySequence}}, "E_PARSE_EMPTY_SEQUENCE"},
		{"other", errors.New("x"), "E_RUN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestStatusMarks(t *testing.T) {
	assert.Contains(t, passMark(), "✓")
	assert.Contains(t, failMark(), "✗")
}

func TestOutputFormatter_RunID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf, RunID: "run-1"}

	require.NoError(t, formatter.Success("doc 1 failures"))
	require.NoError(t, formatter.Error("E_RUN", "boom", nil))

	dec := json.NewDecoder(buf)
	for _, want := range []string{"ok", "error"} {
		var resp CLIResponse
		require.NoError(t, dec.Decode(&resp))
		assert.Equal(t, want, resp.Status)
		assert.Equal(t, "run-1", resp.RunID)
	}
}
