package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"schema": "schema.yaml"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeSchema, "loading schema", map[string]string{"file": "schema.yaml"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
	assert.Equal(t, "loading schema", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("Schema valid"))
	assert.Equal(t, "Schema valid\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			err := formatter.Error(ErrCodeConfig, "loading configuration", []string{"options.maxPageSize"})
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Error [E002]: loading configuration")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
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

			formatter.VerboseLog("Loading schema %s", "schema.yaml")

			assert.Empty(t, out.String(), "verbose output must not corrupt JSON")
			if tt.wantLog {
				assert.Equal(t, "Loading schema schema.yaml\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_DocumentText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	doc := map[string]any{"data": []any{
		map[string]any{"type": "blogs", "id": "b1", "attributes": map[string]any{"title": "<Tech & Co>"}},
	}}
	require.NoError(t, formatter.Document(doc))

	want := `{
  "data": [
    {
      "attributes": {
        "title": "<Tech & Co>"
      },
      "id": "b1",
      "type": "blogs"
    }
  ]
}
`
	assert.Equal(t, want, buf.String())
}

func TestOutputFormatter_DocumentJSON(t *testing.T) {
	tests := []struct {
		name       string
		doc        map[string]any
		wantStatus string
	}{
		{"data", map[string]any{"data": []any{}}, "ok"},
		{"errors", map[string]any{"errors": []any{map[string]any{"title": "x"}}}, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}
			require.NoError(t, formatter.Document(tt.doc))

			var resp struct {
				Status string         `json:"status"`
				Data   map[string]any `json:"data"`
			}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Contains(t, resp.Data, tt.name)
		})
	}
}

func TestOutputFormatter_DocumentRejectsUnsupportedValues(t *testing.T) {
	formatter := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}}
	assert.Error(t, formatter.Document(map[string]any{"data": struct{}{}}))
}

func TestGetExitCode(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit_failure", NewExitError(ExitFailure, "rejected"), ExitFailure},
		{"command_error", WrapExitError(ExitCommandError, "loading schema", cause), ExitCommandError},
		{"plain_error", cause, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestCommandError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	cause := errors.New("file not found")

	err := commandError(formatter, ErrCodeNotFound, "resolving endpoint", cause)

	assert.Equal(t, "Error [E005]: resolving endpoint: file not found\n", buf.String())
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "E005: resolving endpoint: file not found", err.Error())
}
