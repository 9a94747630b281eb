package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
)

// ReadLibrary rebuilds the archived library. Entries go through the
// library's reference checks, and the result must match the stored checksum.
func (a *Archive) ReadLibrary(ctx context.Context) (*library.Library, error) {
	meta, err := a.readMeta(ctx)
	if err != nil {
		return nil, err
	}
	version, err := strconv.Atoi(meta[metaVersion])
	if err != nil {
		return nil, &library.LoadError{Reason: library.ReasonMalformed, Err: fmt.Errorf("library version %q", meta[metaVersion])}
	}
	if version < 1 || version > ir.LibraryVersion {
		return nil, &library.LoadError{Reason: library.ReasonUnsupportedVersion, Err: fmt.Errorf("library version %d", version)}
	}

	lib := library.New("")
	if err := a.readObjects(ctx, lib); err != nil {
		return nil, &library.LoadError{Reason: library.ReasonMalformed, Err: err}
	}
	if err := a.readEntries(ctx, lib); err != nil {
		reason := library.ReasonMalformed
		var ref *library.ReferenceError
		if errors.As(err, &ref) {
			reason = library.ReasonDanglingReference
		}
		return nil, &library.LoadError{Reason: reason, Err: err}
	}

	sum, err := lib.Digest()
	if err != nil {
		return nil, &library.LoadError{Reason: library.ReasonMalformed, Err: err}
	}
	if sum != meta[metaChecksum] {
		return nil, &library.LoadError{Reason: library.ReasonChecksum, Err: ErrChecksum}
	}
	return lib, nil
}

func (a *Archive) readMeta(ctx context.Context) (map[string]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT key, value FROM meta ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("read meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// readObjects restores every object under its archived id.
func (a *Archive) readObjects(ctx context.Context, lib *library.Library) error {
	attrs, err := a.readAttributes(ctx)
	if err != nil {
		return err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT space, id, kind, name FROM objects ORDER BY space ASC, id ASC
	`)
	if err != nil {
		return fmt.Errorf("read objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			space string
			id    uint32
			obj   ir.Object
		)
		if err := rows.Scan(&space, &id, &obj.Kind, &obj.Name); err != nil {
			return fmt.Errorf("read objects: %w", err)
		}
		obj.Attributes = attrs[objectKey{space, id}]
		if err := put(lib, ir.Space(space), id, obj); err != nil {
			return err
		}
	}
	return rows.Err()
}

type objectKey struct {
	space string
	id    uint32
}

func (a *Archive) readAttributes(ctx context.Context) (map[objectKey]map[string]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT space, id, key, value FROM attributes`)
	if err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}
	defer rows.Close()

	out := make(map[objectKey]map[string]string)
	for rows.Next() {
		var (
			k      objectKey
			key, v string
		)
		if err := rows.Scan(&k.space, &k.id, &key, &v); err != nil {
			return nil, fmt.Errorf("read attributes: %w", err)
		}
		if out[k] == nil {
			out[k] = make(map[string]string)
		}
		out[k][key] = v
	}
	return out, rows.Err()
}

func put(lib *library.Library, space ir.Space, id uint32, obj ir.Object) error {
	switch space {
	case ir.SpaceActions:
		return lib.Actions().Put(ir.ActionID(id), obj)
	case ir.SpaceTriggers:
		return lib.Triggers().Put(ir.TriggerID(id), obj)
	case ir.SpaceApplications:
		return lib.Applications().Put(ir.ApplicationID(id), obj)
	}
	return fmt.Errorf("%q: %w", space, library.ErrUnknownSpace)
}

func (a *Archive) readEntries(ctx context.Context, lib *library.Library) error {
	rows, err := a.db.QueryContext(ctx, `
		SELECT action_id, trigger_id, application, overwrite FROM entries ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scanEntry(rows, lib); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanEntry(rows *sql.Rows, lib *library.Library) error {
	var (
		action, trigger, app uint32
		overwrite            bool
	)
	if err := rows.Scan(&action, &trigger, &app, &overwrite); err != nil {
		return fmt.Errorf("read entries: %w", err)
	}
	e := ir.NewEntry(ir.ActionID(action), ir.TriggerID(trigger), ir.ApplicationID(app)).WithOverwrite(overwrite)
	return lib.AddEntry(e)
}
