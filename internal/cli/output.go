package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/barryels/Spark/internal/client"
	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/objects"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the library refused the operation, or scenarios failed
	ExitCommandError = 2 // the command could not run at all
)

// Error codes reported by failed commands.
const (
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
	CodeSaveError       = "SAVE_ERROR"
	CodeLoadError       = "LOAD_ERROR"
	CodeNoDaemon        = "NO_DAEMON"
	CodeVersionMismatch = "VERSION_MISMATCH"
	CodeFailed          = "FAILED"
	CodeCommandError    = "COMMAND_ERROR"
)

// ExitError carries the exit code a failed command ends the process with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not an *ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err by the refusal or failure behind it.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, entryset.ErrConflict):
		return CodeConflict
	case errors.Is(err, entryset.ErrNotFound), errors.Is(err, objects.ErrNotFound):
		return CodeNotFound
	case library.IsSaveError(err):
		return CodeSaveError
	case library.IsLoadError(err):
		return CodeLoadError
	case errors.Is(err, client.ErrVersionMismatch):
		return CodeVersionMismatch
	case client.IsConnectionError(err):
		return CodeNoDaemon
	case GetExitCode(err) == ExitCommandError:
		return CodeCommandError
	}
	return CodeFailed
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
	// ErrWriter receives text-mode failures. JSON failures go to Writer so
	// a consumer reads one document either way.
	ErrWriter io.Writer
}

// CLIResponse is the JSON document every command prints.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	ExitCode int    `json:"exit_code"`
}

// Success outputs a result. Text output prints data with fmt, so result
// types implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail reports a failed command.
func (f *OutputFormatter) Fail(err error) error {
	code := ErrorCode(err)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error(), ExitCode: GetExitCode(err)},
		})
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	_, werr := fmt.Fprintf(w, "spark: [%s] %v\n", code, err)
	return werr
}
