// Package entryset implements the entry relation set: the index of
// trigger -> action -> application bindings.
//
// # Invariant
//
// At most one entry is bound to a trigger id at any time. The set keeps a
// hash index keyed by trigger plus an insertion-ordered slice mirroring it;
// every operation maintains both or neither.
//
// # Conflict rule
//
// Adding an entry whose trigger is held by a different entry replaces the
// holder only when either entry has Overwrite set. Otherwise the add fails
// with ErrConflict and the set is unchanged.
//
// # Bulk merge
//
// AddEntries and AddEntriesFromSet are best-effort. Each element is added
// with the AddEntry rule; conflicting elements are skipped and reported in a
// *MergeError while successfully added elements remain.
//
// # Concurrency
//
// A Set is not safe for concurrent use. Entries and All work over a
// snapshot taken at call time, so iteration never observes a later mutation.
package entryset
