package library

import (
	"errors"
	"fmt"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
)

// Reason categorizes load failures.
type Reason string

const (
	// ReasonMissing indicates the file does not exist.
	ReasonMissing Reason = "missing"
	// ReasonUnreadable indicates an I/O error while reading.
	ReasonUnreadable Reason = "unreadable"
	// ReasonMalformed indicates content that does not decode or is inconsistent.
	ReasonMalformed Reason = "malformed"
	// ReasonChecksum indicates a missing or mismatched checksum.
	ReasonChecksum Reason = "checksum"
	// ReasonDanglingReference indicates an entry naming an unknown object.
	ReasonDanglingReference Reason = "dangling-reference"
	// ReasonUnsupportedVersion indicates a document newer than this build.
	ReasonUnsupportedVersion Reason = "unsupported-version"
)

// ErrNoPath is returned when a library without a path is synchronized.
var ErrNoPath = errors.New("library has no path")

// LoadError reports why a library could not be loaded.
type LoadError struct {
	Path   string
	Reason Reason
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load library: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("load library %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SaveError reports why a library could not be saved.
type SaveError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *SaveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("save library: %v", e.Err)
	}
	return fmt.Sprintf("save library %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// ReferenceError reports an entry naming an object that does not exist.
// It matches entryset.ErrNotFound.
type ReferenceError struct {
	Space ir.Space
	ID    uint32
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s id %d", e.Space, e.ID)
}

// Is matches entryset.ErrNotFound.
func (e *ReferenceError) Is(target error) bool {
	return target == entryset.ErrNotFound
}

// IsLoadError returns true if err is, or wraps, a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsMissing returns true if err is a *LoadError for a file that does not exist.
func IsMissing(err error) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Reason == ReasonMissing
	}
	return false
}

// IsSaveError returns true if err is, or wraps, a *SaveError.
func IsSaveError(err error) bool {
	var se *SaveError
	return errors.As(err, &se)
}
