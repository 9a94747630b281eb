package library

import (
	"bytes"
	"path/filepath"
)

// Wrapper is an in-memory library file, for callers that do their own I/O.
type Wrapper struct {
	Filename string
	Format   Format
	Contents []byte
}

// FileWrapper serializes the library with FileFormat.
// Errors are *SaveError.
func (l *Library) FileWrapper() (*Wrapper, error) {
	data, err := l.marshal()
	if err != nil {
		return nil, &SaveError{Path: l.path, Err: err}
	}
	name := DefaultFileName
	if l.path != "" {
		name = filepath.Base(l.path)
	}
	return &Wrapper{Filename: name, Format: FileFormat, Contents: data}, nil
}

// ReadFromFileWrapper loads the library from w, replacing the current state.
// Errors are *LoadError and leave the state untouched.
func (l *Library) ReadFromFileWrapper(w *Wrapper) error {
	if w == nil {
		return &LoadError{Reason: ReasonMissing, Err: errEmpty}
	}
	return l.load(w.Filename, bytes.Clone(w.Contents))
}
