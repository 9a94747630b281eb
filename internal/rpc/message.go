package rpc

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/barryels/Spark/internal/ir"
)

// Request is one call from a client.
type Request struct {
	ID     string          `cbor:"id,omitempty"`
	Method Method          `cbor:"method"`
	Params cbor.RawMessage `cbor:"params,omitempty"`
}

// Response answers the Request with the same ID.
type Response[T any] struct {
	ID     string `cbor:"id,omitempty"`
	Error  *Error `cbor:"error,omitempty"`
	Result *T     `cbor:"result,omitempty"`
}

// VersionResult answers MethodVersion.
type VersionResult struct {
	Protocol uint32 `cbor:"protocol"`
	App      string `cbor:"app"`
}

// LibraryInfo answers MethodLibrary and describes the shared library.
type LibraryInfo struct {
	Path     string `cbor:"path"`
	Count    int    `cbor:"count"`
	Checksum string `cbor:"checksum"`
}

type TriggerParams struct {
	Trigger ir.TriggerID `cbor:"trigger"`
}

type ApplicationParams struct {
	Application ir.ApplicationID `cbor:"application"`
}

type EntryParams struct {
	Entry ir.Entry `cbor:"entry"`
}

type ReplaceParams struct {
	Old ir.Entry `cbor:"old"`
	New ir.Entry `cbor:"new"`
}

type EntriesParams struct {
	Entries []ir.Entry `cbor:"entries"`
}

type WriteParams struct {
	Path   string `cbor:"path"`
	Atomic bool   `cbor:"atomic"`
}

// Wrapper carries an in-memory library file.
type Wrapper struct {
	Filename string `cbor:"filename"`
	Format   string `cbor:"format"`
	Contents []byte `cbor:"contents"`
}

type SpaceParams struct {
	Space ir.Space `cbor:"space"`
}

type ObjectParams struct {
	Space  ir.Space  `cbor:"space"`
	ID     uint32    `cbor:"id,omitempty"`
	Object ir.Object `cbor:"object"`
}

type CountResult struct {
	Count int `cbor:"count"`
}

type BoolResult struct {
	Value bool `cbor:"value"`
}

type EntryResult struct {
	Entry ir.Entry `cbor:"entry"`
	Found bool     `cbor:"found"`
}

type ActionResult struct {
	Action ir.ActionID `cbor:"action"`
	Found  bool        `cbor:"found"`
}

type EntriesResult struct {
	Entries []ir.Entry `cbor:"entries"`
}

// Conflict is one element skipped by a bulk merge.
type Conflict struct {
	Existing ir.Entry `cbor:"existing"`
	Incoming ir.Entry `cbor:"incoming"`
}

// MergeResult answers MethodAddEntries. Conflicts are reported here rather
// than as an Error so the added count survives.
type MergeResult struct {
	Added     int        `cbor:"added"`
	Conflicts []Conflict `cbor:"conflicts,omitempty"`
}

type BindingsResult struct {
	Bindings map[ir.TriggerID]ir.ActionID `cbor:"bindings"`
}

type IDResult struct {
	ID uint32 `cbor:"id"`
}

type ObjectResult struct {
	Object ir.Object `cbor:"object"`
}

// Record is an object with its id.
type Record struct {
	ID     uint32    `cbor:"id"`
	Object ir.Object `cbor:"object"`
}

type RecordsResult struct {
	Records []Record `cbor:"records"`
}
