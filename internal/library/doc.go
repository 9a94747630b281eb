// Package library implements the Spark library store: the three identified
// object tables plus the entry relation set, and their persistence.
//
// # File format
//
// A library file is one document holding a format marker, a version, the
// action, trigger and application tables (objects tagged with their ids),
// the entry list and a checksum. Two physical encodings exist:
//
//   - FormatBinary: the 8-byte marker "bspark00" followed by a CBOR document
//   - FormatText: a YAML document
//
// FileFormat selects the encoding used when writing; reading detects it.
//
// # Validation
//
// Loading is all-or-nothing. The document is decoded into fresh tables,
// its checksum verified, and every entry's ids checked against the tables
// (application 0 means "any application"). A text file may be edited by
// hand if its checksum is set to "none"; the next write stores the real
// digest again. A missing checksum is always rejected, so a truncated text
// file does not load. Only a fully valid document
// replaces the library's state; otherwise the prior state is untouched and
// a *LoadError says why.
//
// # Durability
//
// WriteToFile with atomic set writes a temporary file next to the target,
// syncs it and renames it into place. A non-atomic write truncates the
// target first and may leave a partial file if the process dies mid-write.
//
// A Library is not safe for concurrent use.
package library
