// Package archive exports and imports Spark libraries as single-file SQLite
// archives (extension "splar").
//
// An archive holds the three object tables in one objects table keyed by
// (space, id), object attributes, the entries in insertion order, and a meta
// table carrying the library version and checksum. Import rebuilds a
// library through the same reference checks as a live edit and verifies the
// checksum against the rebuilt content.
//
// # Database Configuration
//
//   - journal_mode=DELETE: the archive stays a single file
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: attributes follow their objects
package archive
