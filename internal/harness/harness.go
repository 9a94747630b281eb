package harness

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/objects"
)

// Harness executes one scenario against a library.
type Harness struct {
	lib *library.Library
}

// Run executes scenario against a fresh in-memory library.
//
// Seeding failures are returned as errors. Step and assertion failures are
// reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	lib, err := seed(scenario.Objects)
	if err != nil {
		return nil, fmt.Errorf("seed objects: %w", err)
	}
	h := &Harness{lib: lib}

	result := NewResult()
	for i, step := range scenario.Flow {
		ev := h.execute(step)
		result.addTrace(ev)

		want := step.Expect
		if want == "" {
			want = CaseOK
		}
		if ev.Case != want {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %q, got %q", i, step.Op, want, ev.Case))
		}
	}

	for _, a := range scenario.Assertions {
		if err := h.check(a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

// Library returns the library the harness operates on.
func (h *Harness) Library() *library.Library { return h.lib }

func seed(objs Objects) (*library.Library, error) {
	lib := library.New("")
	for _, id := range slices.Sorted(maps.Keys(objs.Actions)) {
		if err := lib.Actions().Put(id, objs.Actions[id]); err != nil {
			return nil, err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(objs.Triggers)) {
		if err := lib.Triggers().Put(id, objs.Triggers[id]); err != nil {
			return nil, err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(objs.Applications)) {
		if err := lib.Applications().Put(id, objs.Applications[id]); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func (h *Harness) execute(st Step) TraceEvent {
	ev := TraceEvent{Op: st.Op}
	var err error

	switch st.Op {
	case OpAddEntry:
		ev.Args = st.Entry.String()
		err = h.lib.AddEntry(*st.Entry)

	case OpReplaceEntry:
		ev.Args = st.Entry.String() + " => " + st.Replacement.String()
		err = h.lib.ReplaceEntry(*st.Entry, *st.Replacement)

	case OpRemoveEntry:
		ev.Args = st.Entry.String()
		err = h.lib.RemoveEntry(*st.Entry)

	case OpRemoveTrigger:
		ev.Args = st.Trigger.String()
		var removed ir.Entry
		removed, err = h.lib.RemoveTrigger(st.Trigger)
		if err == nil {
			ev.Result = removed.String()
		}

	case OpRemoveAllEntries:
		h.lib.RemoveAllEntries()

	case OpAddEntries:
		ev.Args = formatEntries(st.Entries)
		var added int
		added, err = h.lib.AddEntries(st.Entries)
		ev.Result = fmt.Sprintf("added=%d", added)
		var merr *entryset.MergeError
		if errors.As(err, &merr) {
			skipped := make([]string, len(merr.Conflicts))
			for i, c := range merr.Conflicts {
				skipped[i] = fmt.Sprintf("%d", c.Incoming.Trigger)
			}
			ev.Result += " skipped=" + strings.Join(skipped, ",")
		}

	case OpRemoveObject:
		ev.Args = fmt.Sprintf("%s:%d", st.Space, st.ID)
		var dropped []ir.Entry
		dropped, err = h.lib.RemoveObject(st.Space, st.ID)
		if err == nil {
			ev.Result = "dropped=" + formatEntries(dropped)
		}

	case OpQuery:
		ev.Args = st.Application.String()
		ev.Result = formatBindings(h.lib.TriggersForApplication(st.Application))

	case OpReload:
		err = h.reload()
		if err == nil {
			ev.Result = fmt.Sprintf("count=%d", h.lib.Count())
		}

	default:
		err = fmt.Errorf("unknown op %q", st.Op)
	}

	ev.Case = caseOf(err)
	return ev
}

// reload serializes the library and reads it into a fresh one.
func (h *Harness) reload() error {
	w, err := h.lib.FileWrapper()
	if err != nil {
		return err
	}
	fresh := library.New("")
	if err := fresh.ReadFromFileWrapper(w); err != nil {
		return err
	}
	h.lib = fresh
	return nil
}

func caseOf(err error) string {
	switch {
	case err == nil:
		return CaseOK
	case library.IsSaveError(err):
		return CaseSaveError
	case library.IsLoadError(err):
		return CaseLoadError
	case errors.Is(err, entryset.ErrConflict):
		return CaseConflict
	case errors.Is(err, entryset.ErrNotFound), errors.Is(err, objects.ErrNotFound):
		return CaseNotFound
	}
	return CaseError
}

func formatEntries(entries []ir.Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// formatBindings renders trigger:action pairs ordered by trigger.
func formatBindings(b map[ir.TriggerID]ir.ActionID) string {
	if len(b) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(b))
	for _, t := range slices.Sorted(maps.Keys(b)) {
		parts = append(parts, fmt.Sprintf("%d:%d", t, b[t]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
