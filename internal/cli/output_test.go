package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barryels/Spark/internal/client"
	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/objects"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(Message{Message: "bound"}))

	var resp struct {
		Status string  `json:"status"`
		Data   Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "bound", resp.Data.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success(Message{Message: "bound"}))
	assert.Equal(t, "bound\n", buf.String())
}

func TestOutputFormatter_JSONFail(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}

	err := WrapExitError(ExitFailure, "bind failed", &entryset.ConflictError{
		Existing: ir.NewEntry(5, 1, 0),
		Incoming: ir.NewEntry(9, 1, 0),
	})
	require.NoError(t, f.Fail(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeConflict, resp.Error.Code)
	assert.Equal(t, ExitFailure, resp.Error.ExitCode)
	assert.Contains(t, resp.Error.Message, "bind failed")
	assert.Empty(t, diag.String())
}

func TestOutputFormatter_TextFail(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: out, ErrWriter: diag}

	require.NoError(t, f.Fail(NewExitError(ExitCommandError, `invalid trigger id "x"`)))
	assert.Equal(t, "spark: [COMMAND_ERROR] invalid trigger id \"x\"\n", diag.String())
	assert.Empty(t, out.String())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"conflict", fmt.Errorf("add: %w", entryset.ErrConflict), CodeConflict},
		{"entry not found", entryset.ErrNotFound, CodeNotFound},
		{"object not found", objects.ErrNotFound, CodeNotFound},
		{"save", WrapExitError(ExitFailure, "bind failed", &library.SaveError{Path: "p", Err: errors.New("disk full")}), CodeSaveError},
		{"load", &library.LoadError{Path: "p", Reason: library.ReasonChecksum}, CodeLoadError},
		{"version", &client.VersionMismatchError{Client: 0x0200, Server: 0x0100}, CodeVersionMismatch},
		{"no daemon", WrapExitError(ExitCommandError, "failed to connect to daemon", &client.ConnectionError{Op: "dial", Err: errors.New("refused")}), CodeNoDaemon},
		{"command", NewExitError(ExitCommandError, "bad id"), CodeCommandError},
		{"other", errors.New("boom"), CodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	isolate(t)
	assert.Equal(t, ExitCommandError, Execute(context.Background(), []string{"--format", "xml", "version"}))
	assert.Equal(t, ExitCommandError, Execute(context.Background(), []string{"--socket", socketPath(t), "list"}))
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	inner := errors.New("inner")
	wrapped := WrapExitError(ExitFailure, "refused", inner)
	assert.Equal(t, "refused: inner", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)
}
