package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/barryels/Spark/internal/library"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// ErrChecksum is returned when an archive's content does not match its checksum.
var ErrChecksum = errors.New("archive checksum mismatch")

// ErrSchemaVersion is returned for archives written by a newer schema.
var ErrSchemaVersion = errors.New("unsupported archive schema version")

// Archive is an open library archive.
type Archive struct {
	db *sql.DB
}

// Create opens the archive at path for writing, creating it if needed.
// Applies pragmas and the schema.
func Create(path string) (*Archive, error) {
	dsn, err := fileURI(path, "rwc")
	if err != nil {
		return nil, err
	}
	db, err := open(dsn, writePragmas)
	if err != nil {
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// OpenReadOnly opens an existing archive. The file is never created.
func OpenReadOnly(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	dsn, err := fileURI(path, "ro")
	if err != nil {
		return nil, err
	}
	db, err := open(dsn, readPragmas)
	if err != nil {
		return nil, err
	}
	version, err := schemaVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if version == 0 || version > currentSchemaVersion {
		db.Close()
		return nil, fmt.Errorf("%w: %d", ErrSchemaVersion, version)
	}
	return &Archive{db: db}, nil
}

// fileURI builds an SQLite URI for path. Characters such as '?' and '#'
// in the path are escaped so they are not read as URI syntax.
func fileURI(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: url.Values{"mode": {mode}}.Encode(),
	}
	return u.String(), nil
}

func open(dsn string, pragmas []string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to archive: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

var (
	writePragmas = []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	readPragmas = []string{
		"PRAGMA busy_timeout = 5000",
	}
)

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, pragmas []string) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and records the version.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("%w: %d", ErrSchemaVersion, version)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// Export writes lib to a new archive at path, replacing any existing file
// only once the archive is complete.
func Export(ctx context.Context, lib *library.Library, path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	a, err := Create(tmpPath)
	if err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	if err := a.WriteLibrary(ctx, lib); err != nil {
		a.Close()
		return fmt.Errorf("export archive: %w", err)
	}
	if err := a.Close(); err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	return nil
}

// Import reads the archive at path into a new library without a path.
func Import(ctx context.Context, path string) (*library.Library, error) {
	a, err := OpenReadOnly(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &library.LoadError{Path: path, Reason: library.ReasonMissing, Err: err}
		}
		return nil, &library.LoadError{Path: path, Reason: library.ReasonUnreadable, Err: err}
	}
	defer a.Close()

	lib, err := a.ReadLibrary(ctx)
	if err != nil {
		return nil, fmt.Errorf("import archive %s: %w", path, err)
	}
	return lib, nil
}
