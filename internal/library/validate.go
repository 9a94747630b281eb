package library

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/objects"
)

// state is everything a load replaces at once.
type state struct {
	actions      *objects.Table[ir.ActionID]
	triggers     *objects.Table[ir.TriggerID]
	applications *objects.Table[ir.ApplicationID]
	relations    *entryset.Set
}

func newState() *state {
	return &state{
		actions:      objects.New[ir.ActionID](ir.SpaceActions),
		triggers:     objects.New[ir.TriggerID](ir.SpaceTriggers),
		applications: objects.New[ir.ApplicationID](ir.SpaceApplications),
		relations:    entryset.New(),
	}
}

// validationError carries the load reason for a rejected document.
type validationError struct {
	reason Reason
	err    error
}

func (e *validationError) Error() string { return e.err.Error() }
func (e *validationError) Unwrap() error { return e.err }

func invalid(reason Reason, format string, args ...any) error {
	return &validationError{reason: reason, err: fmt.Errorf(format, args...)}
}

// reasonOf extracts the load reason of a decode or validation failure.
func reasonOf(err error) Reason {
	var ve *validationError
	if errors.As(err, &ve) {
		return ve.reason
	}
	return ReasonMalformed
}

// buildState validates doc and builds the state it describes.
func buildState(doc *document, format Format) (*state, error) {
	if doc.Magic != documentMagic {
		return nil, invalid(ReasonMalformed, "bad format marker %q", doc.Magic)
	}
	if doc.Version < 1 || doc.Version > ir.LibraryVersion {
		return nil, invalid(ReasonUnsupportedVersion, "version %d, this build reads up to %d", doc.Version, ir.LibraryVersion)
	}
	if doc.Checksum == "" {
		return nil, invalid(ReasonChecksum, "checksum missing")
	}
	if format != FormatText || doc.Checksum != uncheckedSum {
		sum, err := doc.checksum()
		if err != nil {
			return nil, invalid(ReasonMalformed, "%v", err)
		}
		if sum != doc.Checksum {
			return nil, invalid(ReasonChecksum, "checksum mismatch")
		}
	}

	st := newState()
	if err := restore(st.actions, doc.Actions); err != nil {
		return nil, err
	}
	if err := restore(st.triggers, doc.Triggers); err != nil {
		return nil, err
	}
	if err := restore(st.applications, doc.Applications); err != nil {
		return nil, err
	}

	if err := checkReferences(st, doc.Entries); err != nil {
		return nil, err
	}
	relations, err := entryset.FromEntries(doc.Entries)
	if err != nil {
		return nil, invalid(ReasonMalformed, "%v", err)
	}
	st.relations = relations
	return st, nil
}

func restore[K ~uint32](t *objects.Table[K], recs []objectRecord) error {
	for _, r := range recs {
		if err := t.Put(K(r.ID), r.object()); err != nil {
			return invalid(ReasonMalformed, "%v", err)
		}
	}
	return nil
}

// idSet collects the ids of a table for reference checks.
func idSet[K ~uint32](t *objects.Table[K]) mapset.Set[uint32] {
	set := mapset.NewThreadUnsafeSetWithSize[uint32](t.Len())
	for _, id := range t.IDs() {
		set.Add(uint32(id))
	}
	return set
}

// checkReferences verifies that every entry names existing objects.
func checkReferences(st *state, entries []ir.Entry) error {
	actions := idSet(st.actions)
	triggers := idSet(st.triggers)
	applications := idSet(st.applications)

	for i, e := range entries {
		var ref *ReferenceError
		switch {
		case !actions.Contains(uint32(e.Action)):
			ref = &ReferenceError{Space: ir.SpaceActions, ID: uint32(e.Action)}
		case !triggers.Contains(uint32(e.Trigger)):
			ref = &ReferenceError{Space: ir.SpaceTriggers, ID: uint32(e.Trigger)}
		case !e.IsGlobal() && !applications.Contains(uint32(e.Application)):
			ref = &ReferenceError{Space: ir.SpaceApplications, ID: uint32(e.Application)}
		}
		if ref != nil {
			return &validationError{reason: ReasonDanglingReference, err: fmt.Errorf("entry %d: %w", i, ref)}
		}
	}
	return nil
}
