package library

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/objects"
)

const (
	// FileExtension is the extension of library files.
	FileExtension = "splib"
	// ArchiveExtension is the extension of library archives.
	ArchiveExtension = "splar"
	// FileType is the four-character type code of library files.
	FileType = "SpLi"
	// ArchiveFileType is the four-character type code of library archives.
	ArchiveFileType = "SpAr"
	// DefaultFileName is the file name of the shared library.
	DefaultFileName = "SparkLibrary." + FileExtension
)

// ErrUnknownSpace is returned for an id-space name that is not one of the three.
var ErrUnknownSpace = errors.New("unknown id space")

// Folder returns the per-user folder holding the shared library.
func Folder() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate library folder: %w", err)
	}
	return filepath.Join(base, "Spark"), nil
}

// SharedLibraryPath returns the location of the shared library file.
func SharedLibraryPath() (string, error) {
	dir, err := Folder()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultFileName), nil
}

// Shared returns an empty library bound to the shared library path.
// Nothing is read until Read is called.
func Shared() (*Library, error) {
	path, err := SharedLibraryPath()
	if err != nil {
		return nil, err
	}
	return New(path), nil
}

// Library owns the three object tables and the entry relation set.
type Library struct {
	path string
	st   *state
}

// New constructs an empty library bound to path. No I/O is performed.
// An empty path makes an in-memory library.
func New(path string) *Library {
	return &Library{path: path, st: newState()}
}

// Path returns the file location the library synchronizes to.
func (l *Library) Path() string { return l.path }

// SetPath changes the file location the library synchronizes to.
func (l *Library) SetPath(path string) { l.path = path }

// Actions returns the action table.
func (l *Library) Actions() *objects.Table[ir.ActionID] { return l.st.actions }

// Triggers returns the trigger table.
func (l *Library) Triggers() *objects.Table[ir.TriggerID] { return l.st.triggers }

// Applications returns the application table.
func (l *Library) Applications() *objects.Table[ir.ApplicationID] { return l.st.applications }

// Count returns the number of entries.
func (l *Library) Count() int { return l.st.relations.Count() }

// ContainsTrigger reports whether trigger is bound.
func (l *Library) ContainsTrigger(trigger ir.TriggerID) bool {
	return l.st.relations.ContainsTrigger(trigger)
}

// EntryForTrigger returns the entry bound to trigger.
func (l *Library) EntryForTrigger(trigger ir.TriggerID) (ir.Entry, bool) {
	return l.st.relations.EntryForTrigger(trigger)
}

// ActionForTrigger returns the action bound to trigger.
func (l *Library) ActionForTrigger(trigger ir.TriggerID) (ir.ActionID, bool) {
	return l.st.relations.ActionForTrigger(trigger)
}

// Entries returns a snapshot of the entries in insertion order.
func (l *Library) Entries() []ir.Entry { return l.st.relations.Entries() }

// All returns a restartable sequence over a snapshot of the entries.
func (l *Library) All() iter.Seq[ir.Entry] { return l.st.relations.All() }

// EntrySet returns an independent copy of the entry relation set.
func (l *Library) EntrySet() *entryset.Set { return l.st.relations.Clone() }

// checkEntry returns a *ReferenceError if e names an object not in the tables.
func (l *Library) checkEntry(e ir.Entry) error {
	switch {
	case !l.st.actions.Contains(e.Action):
		return &ReferenceError{Space: ir.SpaceActions, ID: uint32(e.Action)}
	case !l.st.triggers.Contains(e.Trigger):
		return &ReferenceError{Space: ir.SpaceTriggers, ID: uint32(e.Trigger)}
	case !e.IsGlobal() && !l.st.applications.Contains(e.Application):
		return &ReferenceError{Space: ir.SpaceApplications, ID: uint32(e.Application)}
	}
	return nil
}

// AddEntry binds e after checking its references.
// See entryset.Set.AddEntry for the conflict rule.
func (l *Library) AddEntry(e ir.Entry) error {
	if err := l.checkEntry(e); err != nil {
		return err
	}
	return l.st.relations.AddEntry(e)
}

// ReplaceEntry swaps old for replacement after checking replacement's references.
func (l *Library) ReplaceEntry(old, replacement ir.Entry) error {
	if err := l.checkEntry(replacement); err != nil {
		return err
	}
	return l.st.relations.ReplaceEntry(old, replacement)
}

// RemoveEntry unbinds e.
func (l *Library) RemoveEntry(e ir.Entry) error {
	return l.st.relations.RemoveEntry(e)
}

// RemoveTrigger unbinds whatever entry holds trigger.
func (l *Library) RemoveTrigger(trigger ir.TriggerID) (ir.Entry, error) {
	return l.st.relations.RemoveTrigger(trigger)
}

// RemoveAllEntries clears the entry relation set. Object tables are kept.
func (l *Library) RemoveAllEntries() { l.st.relations.RemoveAllEntries() }

// AddEntries merges entries best-effort.
//
// References are checked first: if any element names an unknown object the
// call fails with a *ReferenceError and nothing is added. Otherwise
// conflicting elements are skipped and reported in a *entryset.MergeError.
func (l *Library) AddEntries(entries []ir.Entry) (int, error) {
	for _, e := range entries {
		if err := l.checkEntry(e); err != nil {
			return 0, err
		}
	}
	return l.st.relations.AddEntries(entries)
}

// AddEntriesFromSet merges every entry of other, like AddEntries.
func (l *Library) AddEntriesFromSet(other *entryset.Set) (int, error) {
	return l.AddEntries(other.Entries())
}

// TriggersForApplication maps every trigger bound for app, or bound for any
// application, to its action.
func (l *Library) TriggersForApplication(app ir.ApplicationID) map[ir.TriggerID]ir.ActionID {
	out := make(map[ir.TriggerID]ir.ActionID)
	for e := range l.st.relations.All() {
		if e.Application == app || e.IsGlobal() {
			out[e.Trigger] = e.Action
		}
	}
	return out
}

// AddObject stores obj in the table for space under a fresh id.
func (l *Library) AddObject(space ir.Space, obj ir.Object) (uint32, error) {
	switch space {
	case ir.SpaceActions:
		id, err := l.st.actions.Insert(obj)
		return uint32(id), err
	case ir.SpaceTriggers:
		id, err := l.st.triggers.Insert(obj)
		return uint32(id), err
	case ir.SpaceApplications:
		id, err := l.st.applications.Insert(obj)
		return uint32(id), err
	}
	return 0, fmt.Errorf("%q: %w", space, ErrUnknownSpace)
}

// Object returns the object stored under id in space.
func (l *Library) Object(space ir.Space, id uint32) (ir.Object, error) {
	var (
		obj ir.Object
		ok  bool
	)
	switch space {
	case ir.SpaceActions:
		obj, ok = l.st.actions.Get(ir.ActionID(id))
	case ir.SpaceTriggers:
		obj, ok = l.st.triggers.Get(ir.TriggerID(id))
	case ir.SpaceApplications:
		obj, ok = l.st.applications.Get(ir.ApplicationID(id))
	default:
		return ir.Object{}, fmt.Errorf("%q: %w", space, ErrUnknownSpace)
	}
	if !ok {
		return ir.Object{}, fmt.Errorf("%s %d: %w", space, id, objects.ErrNotFound)
	}
	return obj, nil
}

// UpdateObject replaces the object stored under id in space.
func (l *Library) UpdateObject(space ir.Space, id uint32, obj ir.Object) error {
	switch space {
	case ir.SpaceActions:
		return l.st.actions.Update(ir.ActionID(id), obj)
	case ir.SpaceTriggers:
		return l.st.triggers.Update(ir.TriggerID(id), obj)
	case ir.SpaceApplications:
		return l.st.applications.Update(ir.ApplicationID(id), obj)
	}
	return fmt.Errorf("%q: %w", space, ErrUnknownSpace)
}

// Records returns every object of space ordered by id.
func (l *Library) Records(space ir.Space) ([]objects.Record[uint32], error) {
	switch space {
	case ir.SpaceActions:
		return widen(l.st.actions.All()), nil
	case ir.SpaceTriggers:
		return widen(l.st.triggers.All()), nil
	case ir.SpaceApplications:
		return widen(l.st.applications.All()), nil
	}
	return nil, fmt.Errorf("%q: %w", space, ErrUnknownSpace)
}

func widen[K ~uint32](recs []objects.Record[K]) []objects.Record[uint32] {
	out := make([]objects.Record[uint32], len(recs))
	for i, r := range recs {
		out[i] = objects.Record[uint32]{ID: uint32(r.ID), Object: r.Object}
	}
	return out
}

// RemoveObject deletes the object stored under id in space, together with
// every entry that references it. It returns the removed entries.
func (l *Library) RemoveObject(space ir.Space, id uint32) ([]ir.Entry, error) {
	var (
		removed bool
		refers  func(ir.Entry) bool
	)
	switch space {
	case ir.SpaceActions:
		removed = l.st.actions.Remove(ir.ActionID(id))
		refers = func(e ir.Entry) bool { return uint32(e.Action) == id }
	case ir.SpaceTriggers:
		removed = l.st.triggers.Remove(ir.TriggerID(id))
		refers = func(e ir.Entry) bool { return uint32(e.Trigger) == id }
	case ir.SpaceApplications:
		removed = l.st.applications.Remove(ir.ApplicationID(id))
		refers = func(e ir.Entry) bool { return !e.IsGlobal() && uint32(e.Application) == id }
	default:
		return nil, fmt.Errorf("%q: %w", space, ErrUnknownSpace)
	}
	if !removed {
		return nil, fmt.Errorf("%s %d: %w", space, id, objects.ErrNotFound)
	}

	var dropped []ir.Entry
	for e := range l.st.relations.All() {
		if refers(e) {
			// The snapshot entry is the current holder, so removal cannot fail.
			_ = l.st.relations.RemoveEntry(e)
			dropped = append(dropped, e)
		}
	}
	return dropped, nil
}

// Digest returns the checksum the library would be written with.
func (l *Library) Digest() (string, error) {
	doc, err := newDocument(l.st)
	if err != nil {
		return "", err
	}
	return doc.Checksum, nil
}
