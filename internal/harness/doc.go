// Package harness runs library scenarios written in YAML and compares the
// resulting operation trace against golden files.
//
// # Scenario Format
//
//	name: scoped_bindings
//	description: "What this scenario validates"
//	objects:
//	  actions:      { 5: { kind: launch, name: Terminal } }
//	  triggers:     { 1: { kind: hotkey, name: F1 } }
//	  applications: { 42: { kind: application, name: Mail } }
//	flow:
//	  - op: add_entry
//	    entry: { action: 5, trigger: 1, application: 42 }
//	  - op: add_entry
//	    entry: { action: 5, trigger: 1, application: 0 }
//	    expect: conflict
//	assertions:
//	  - type: bindings
//	    application: 42
//	    expect: { 1: 5 }
//
// # Operations
//
//   - add_entry, remove_entry: entry
//   - replace_entry: entry and replacement
//   - add_entries: entries
//   - remove_trigger: trigger
//   - remove_all_entries
//   - remove_object: space and id
//   - query: application (TriggersForApplication)
//   - reload: serialize the library and read it back
//
// Each step expects the case "ok" unless expect names another: conflict,
// not_found, load_error, save_error or error.
//
// # Assertion Types
//
//   - count: the number of entries
//   - bindings: the TriggersForApplication result for an application
//   - bound: entry is the holder of its trigger
//   - unbound: trigger has no entry
//
// Every scenario runs against a fresh in-memory library, so traces are
// identical across runs.
package harness
