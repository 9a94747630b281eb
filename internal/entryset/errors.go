package entryset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/barryels/Spark/internal/ir"
)

var (
	// ErrConflict indicates the trigger is already bound and neither entry
	// permits overwrite.
	ErrConflict = errors.New("trigger already bound")

	// ErrNotFound indicates a replace or remove target is not in the set.
	ErrNotFound = errors.New("entry not found")
)

// ConflictError describes a rejected add.
type ConflictError struct {
	Existing ir.Entry
	Incoming ir.Entry
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: trigger %d is bound to action %d, cannot bind action %d",
		ErrConflict, e.Incoming.Trigger, e.Existing.Action, e.Incoming.Action)
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// MergeError reports the conflicts skipped by a best-effort bulk merge.
type MergeError struct {
	// Added is the number of entries that were added or replaced.
	Added int
	// Conflicts lists every skipped element in input order.
	Conflicts []*ConflictError
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	triggers := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		triggers[i] = fmt.Sprintf("%d", c.Incoming.Trigger)
	}
	return fmt.Sprintf("merge: %d added, %d skipped (triggers %s)",
		e.Added, len(e.Conflicts), strings.Join(triggers, ", "))
}

// Is matches ErrConflict so callers can treat a partial merge like any
// other conflict.
func (e *MergeError) Is(target error) bool {
	return target == ErrConflict
}

// IsConflict returns true if err is, or wraps, a conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound returns true if err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
