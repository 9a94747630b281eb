package entryset

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/barryels/Spark/internal/ir"
)

// Set is the entry relation set.
type Set struct {
	byTrigger map[ir.TriggerID]ir.Entry
	entries   []ir.Entry // insertion order, mirrors byTrigger
}

// New creates an empty set.
func New() *Set {
	return &Set{
		byTrigger: make(map[ir.TriggerID]ir.Entry),
		entries:   make([]ir.Entry, 0, 16),
	}
}

// FromEntries builds a set from entries, rejecting any trigger that occurs
// twice. Used by loaders that must not silently drop persisted entries.
func FromEntries(entries []ir.Entry) (*Set, error) {
	s := New()
	for i, e := range entries {
		if existing, ok := s.byTrigger[e.Trigger]; ok {
			return nil, fmt.Errorf("entry %d: %w", i, &ConflictError{Existing: existing, Incoming: e})
		}
		s.append(e)
	}
	return s, nil
}

// Count returns the number of entries.
func (s *Set) Count() int {
	return len(s.entries)
}

// ContainsTrigger reports whether trigger is bound.
func (s *Set) ContainsTrigger(trigger ir.TriggerID) bool {
	_, ok := s.byTrigger[trigger]
	return ok
}

// EntryForTrigger returns the entry bound to trigger.
func (s *Set) EntryForTrigger(trigger ir.TriggerID) (ir.Entry, bool) {
	e, ok := s.byTrigger[trigger]
	return e, ok
}

// ActionForTrigger returns the action bound to trigger.
func (s *Set) ActionForTrigger(trigger ir.TriggerID) (ir.ActionID, bool) {
	e, ok := s.byTrigger[trigger]
	if !ok {
		return 0, false
	}
	return e.Action, true
}

// AddEntry inserts e.
//
// Adding an entry equal to the current holder of its trigger is a no-op.
// A different holder is replaced in place (keeping its position) only when
// either entry has Overwrite set; otherwise a *ConflictError is returned and
// the set is unchanged.
func (s *Set) AddEntry(e ir.Entry) error {
	existing, ok := s.byTrigger[e.Trigger]
	if !ok {
		s.append(e)
		return nil
	}
	if existing == e {
		return nil
	}
	if !existing.Overwrite && !e.Overwrite {
		return &ConflictError{Existing: existing, Incoming: e}
	}
	s.entries[s.indexOf(e.Trigger)] = e
	s.byTrigger[e.Trigger] = e
	return nil
}

// ReplaceEntry removes old and inserts replacement in its position.
//
// old must equal the entry currently bound to old.Trigger, otherwise
// ErrNotFound is returned and the set is unchanged. The replacement is
// inserted without an overwrite check: if its trigger differs from old's and
// is already bound, that binding is dropped.
func (s *Set) ReplaceEntry(old, replacement ir.Entry) error {
	current, ok := s.byTrigger[old.Trigger]
	if !ok || current != old {
		return fmt.Errorf("replace %s: %w", old, ErrNotFound)
	}

	idx := s.indexOf(old.Trigger)
	delete(s.byTrigger, old.Trigger)

	if replacement.Trigger != old.Trigger {
		if _, taken := s.byTrigger[replacement.Trigger]; taken {
			other := s.indexOf(replacement.Trigger)
			s.entries = slices.Delete(s.entries, other, other+1)
			if other < idx {
				idx--
			}
		}
	}

	s.entries[idx] = replacement
	s.byTrigger[replacement.Trigger] = replacement
	return nil
}

// RemoveEntry removes e. e must equal the entry bound to e.Trigger,
// otherwise ErrNotFound is returned.
func (s *Set) RemoveEntry(e ir.Entry) error {
	current, ok := s.byTrigger[e.Trigger]
	if !ok || current != e {
		return fmt.Errorf("remove %s: %w", e, ErrNotFound)
	}
	idx := s.indexOf(e.Trigger)
	s.entries = slices.Delete(s.entries, idx, idx+1)
	delete(s.byTrigger, e.Trigger)
	return nil
}

// RemoveTrigger removes whatever entry is bound to trigger.
func (s *Set) RemoveTrigger(trigger ir.TriggerID) (ir.Entry, error) {
	e, ok := s.byTrigger[trigger]
	if !ok {
		return ir.Entry{}, fmt.Errorf("remove %s: %w", trigger, ErrNotFound)
	}
	return e, s.RemoveEntry(e)
}

// RemoveAllEntries clears the set. Calling it on an empty set is a no-op.
func (s *Set) RemoveAllEntries() {
	clear(s.byTrigger)
	s.entries = s.entries[:0]
}

// AddEntries merges entries with the AddEntry rule, best-effort.
//
// Returns the number of entries added or replaced. When any element
// conflicts the error is a *MergeError listing the skipped elements.
func (s *Set) AddEntries(entries []ir.Entry) (int, error) {
	merr := &MergeError{}
	for _, e := range entries {
		if existing, ok := s.byTrigger[e.Trigger]; ok && existing == e {
			continue
		}
		if err := s.AddEntry(e); err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				merr.Conflicts = append(merr.Conflicts, conflict)
				continue
			}
			return merr.Added, err
		}
		merr.Added++
	}
	if len(merr.Conflicts) > 0 {
		return merr.Added, merr
	}
	return merr.Added, nil
}

// AddEntriesFromSet merges every entry of other, in other's order.
func (s *Set) AddEntriesFromSet(other *Set) (int, error) {
	if other == s {
		return 0, nil
	}
	return s.AddEntries(other.Entries())
}

// Entries returns a snapshot of all entries in insertion order.
func (s *Set) Entries() []ir.Entry {
	return slices.Clone(s.entries)
}

// All returns a lazy sequence over a snapshot of the entries taken now.
// The sequence can be ranged over any number of times; each traversal
// starts from the beginning of that snapshot.
func (s *Set) All() iter.Seq[ir.Entry] {
	snapshot := s.Entries()
	return func(yield func(ir.Entry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{
		byTrigger: make(map[ir.TriggerID]ir.Entry, len(s.byTrigger)),
		entries:   slices.Clone(s.entries),
	}
	for k, v := range s.byTrigger {
		c.byTrigger[k] = v
	}
	return c
}

func (s *Set) append(e ir.Entry) {
	s.entries = append(s.entries, e)
	s.byTrigger[e.Trigger] = e
}

// indexOf returns the slice position of the entry bound to trigger.
// The caller must know the trigger is bound.
func (s *Set) indexOf(trigger ir.TriggerID) int {
	idx := slices.IndexFunc(s.entries, func(e ir.Entry) bool { return e.Trigger == trigger })
	if idx < 0 {
		panic(fmt.Sprintf("entryset: index out of sync for %s", trigger))
	}
	return idx
}
