// Package objects implements the identified object table: one per id-space.
//
// A Table owns identity. Insert allocates a fresh id from a monotonic
// counter that never hands out the same id twice in a session, even after
// the object holding it has been removed. Entries may outlive the object an
// id once pointed to, so reusing an id would silently rebind them.
//
// Ids 1..ir.ReservedIDs are never allocated by Insert; built-in objects are
// placed there with Put.
package objects
