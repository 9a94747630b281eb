package rpc

import (
	"errors"
	"fmt"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/objects"
)

// Code categorizes a remote failure.
type Code string

const (
	CodeConflict      Code = "CONFLICT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeLoadError     Code = "LOAD_ERROR"
	CodeSaveError     Code = "SAVE_ERROR"
	CodeBadRequest    Code = "BAD_REQUEST"
	CodeUnknownMethod Code = "UNKNOWN_METHOD"
	CodeInternal      Code = "INTERNAL"
)

// Error is a failure reported by the daemon.
type Error struct {
	Code    Code   `cbor:"code"`
	Message string `cbor:"message"`

	// Path and Reason detail LOAD_ERROR and SAVE_ERROR.
	Path   string `cbor:"path,omitempty"`
	Reason string `cbor:"reason,omitempty"`

	// Existing and Incoming detail CONFLICT.
	Existing *ir.Entry `cbor:"existing,omitempty"`
	Incoming *ir.Entry `cbor:"incoming,omitempty"`
}

// NewError creates an Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches the local sentinels for CONFLICT and NOT_FOUND.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeConflict:
		return target == entryset.ErrConflict
	case CodeNotFound:
		return target == entryset.ErrNotFound || target == objects.ErrNotFound
	}
	return false
}

// FromError converts a daemon-side error into its wire form.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var (
		re       *Error
		le       *library.LoadError
		se       *library.SaveError
		conflict *entryset.ConflictError
	)
	switch {
	case errors.As(err, &re):
		return re
	case errors.As(err, &le):
		return &Error{Code: CodeLoadError, Message: cause(le.Err, err), Path: le.Path, Reason: string(le.Reason)}
	case errors.As(err, &se):
		return &Error{Code: CodeSaveError, Message: cause(se.Err, err), Path: se.Path}
	case errors.As(err, &conflict):
		existing, incoming := conflict.Existing, conflict.Incoming
		return &Error{Code: CodeConflict, Message: err.Error(), Existing: &existing, Incoming: &incoming}
	case errors.Is(err, entryset.ErrConflict):
		return &Error{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, entryset.ErrNotFound), errors.Is(err, objects.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, library.ErrUnknownSpace), errors.Is(err, objects.ErrInvalidID),
		errors.Is(err, objects.ErrInvalidText):
		return &Error{Code: CodeBadRequest, Message: err.Error()}
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

func cause(inner, outer error) string {
	if inner != nil {
		return inner.Error()
	}
	return outer.Error()
}

// Err converts a wire error back into the error a local call would return.
// Load and save failures become *library.LoadError and *library.SaveError,
// a detailed conflict becomes *entryset.ConflictError.
func (e *Error) Err() error {
	switch e.Code {
	case CodeLoadError:
		return &library.LoadError{Path: e.Path, Reason: library.Reason(e.Reason), Err: errors.New(e.Message)}
	case CodeSaveError:
		return &library.SaveError{Path: e.Path, Err: errors.New(e.Message)}
	case CodeConflict:
		if e.Existing != nil && e.Incoming != nil {
			return &entryset.ConflictError{Existing: *e.Existing, Incoming: *e.Incoming}
		}
	}
	return e
}
