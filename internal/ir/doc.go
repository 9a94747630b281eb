// Package ir provides the shared value types of the Spark library.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - The three id-spaces (actions, triggers, applications) are distinct
//     types; an ActionID never compares equal to a TriggerID at compile time.
//   - ApplicationID 0 (AnyApplication) scopes an entry to every application.
//   - Ids 1..ReservedIDs are held back for built-in objects.
//   - Entries are plain values: two entries with equal fields are the same entry.
package ir
