package harness

import (
	"fmt"
	"maps"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func (h *Harness) check(a Assertion) error {
	switch a.Type {
	case AssertCount:
		if n := h.lib.Count(); n != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprint(n)}
		}

	case AssertBindings:
		got := h.lib.TriggersForApplication(a.Application)
		if !maps.Equal(got, a.Bindings) {
			return &AssertionError{
				Type:     a.Type,
				Expected: a.Application.String() + " " + formatBindings(a.Bindings),
				Actual:   formatBindings(got),
			}
		}

	case AssertBound:
		got, ok := h.lib.EntryForTrigger(a.Entry.Trigger)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: a.Entry.String(), Actual: "unbound"}
		}
		if got != *a.Entry {
			return &AssertionError{Type: a.Type, Expected: a.Entry.String(), Actual: got.String()}
		}

	case AssertUnbound:
		if got, ok := h.lib.EntryForTrigger(a.Trigger); ok {
			return &AssertionError{Type: a.Type, Expected: a.Trigger.String() + " unbound", Actual: got.String()}
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
