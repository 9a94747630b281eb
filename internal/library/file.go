package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const filePerm = 0o644

// Read loads the library from its path, replacing the current state.
// On failure the current state is untouched and the error is a *LoadError.
func (l *Library) Read() error {
	if l.path == "" {
		return &LoadError{Reason: ReasonMissing, Err: ErrNoPath}
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		reason := ReasonUnreadable
		if errors.Is(err, fs.ErrNotExist) {
			reason = ReasonMissing
		}
		return &LoadError{Path: l.path, Reason: reason, Err: err}
	}
	return l.load(l.path, data)
}

// load decodes and validates data, then swaps it in.
func (l *Library) load(name string, data []byte) error {
	doc, format, err := decode(data)
	if err != nil {
		return &LoadError{Path: name, Reason: ReasonMalformed, Err: err}
	}
	st, err := buildState(doc, format)
	if err != nil {
		return &LoadError{Path: name, Reason: reasonOf(err), Err: err}
	}
	l.st = st
	return nil
}

// marshal encodes the current state with FileFormat.
// A state with dangling references is refused so an unloadable file is
// never produced.
func (l *Library) marshal() ([]byte, error) {
	if err := checkReferences(l.st, l.st.relations.Entries()); err != nil {
		return nil, err
	}
	doc, err := newDocument(l.st)
	if err != nil {
		return nil, err
	}
	return encode(doc, FileFormat)
}

// WriteToFile serializes the library to path. With atomic set the data is
// written to a temporary file in the same directory, synced, and renamed
// over path. Without it path is truncated and written in place.
// Errors are *SaveError.
func (l *Library) WriteToFile(path string, atomic bool) error {
	if path == "" {
		return &SaveError{Err: ErrNoPath}
	}
	data, err := l.marshal()
	if err != nil {
		return &SaveError{Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	if !atomic {
		if err := os.WriteFile(path, data, filePerm); err != nil {
			return &SaveError{Path: path, Err: err}
		}
		return nil
	}
	if err := writeAtomic(path, data); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	return nil
}

// Synchronize writes the library atomically to its own path.
func (l *Library) Synchronize() error {
	return l.WriteToFile(l.path, true)
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
