package archive

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
)

// Meta keys.
const (
	metaVersion  = "library_version"
	metaChecksum = "checksum"
	metaCreated  = "created"
	metaApp      = "app_version"
)

// WriteLibrary replaces the archive content with lib in one transaction.
func (a *Archive) WriteLibrary(ctx context.Context, lib *library.Library) error {
	sum, err := lib.Digest()
	if err != nil {
		return fmt.Errorf("write library: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write library: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"entries", "attributes", "objects", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("write library: clear %s: %w", table, err)
		}
	}

	for _, space := range []ir.Space{ir.SpaceActions, ir.SpaceTriggers, ir.SpaceApplications} {
		recs, err := lib.Records(space)
		if err != nil {
			return fmt.Errorf("write library: %w", err)
		}
		for _, r := range recs {
			if err := writeObject(ctx, tx, space, r.ID, r.Object); err != nil {
				return fmt.Errorf("write library: %w", err)
			}
		}
	}

	for i, e := range lib.Entries() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (seq, trigger_id, action_id, application, overwrite)
			VALUES (?, ?, ?, ?, ?)
		`, i, uint32(e.Trigger), uint32(e.Action), uint32(e.Application), e.Overwrite)
		if err != nil {
			return fmt.Errorf("write library: entry %s: %w", e, err)
		}
	}

	meta := map[string]string{
		metaVersion:  fmt.Sprint(ir.LibraryVersion),
		metaChecksum: sum,
		metaCreated:  time.Now().UTC().Format(time.RFC3339),
		metaApp:      ir.AppVersion,
	}
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, meta[k]); err != nil {
			return fmt.Errorf("write library: meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write library: %w", err)
	}
	return nil
}

func writeObject(ctx context.Context, tx *sql.Tx, space ir.Space, id uint32, obj ir.Object) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO objects (space, id, kind, name) VALUES (?, ?, ?, ?)
	`, string(space), id, obj.Kind, obj.Name)
	if err != nil {
		return fmt.Errorf("%s %d: %w", space, id, err)
	}
	for _, k := range slices.Sorted(maps.Keys(obj.Attributes)) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attributes (space, id, key, value) VALUES (?, ?, ?, ?)
		`, string(space), id, k, obj.Attributes[k])
		if err != nil {
			return fmt.Errorf("%s %d attribute %q: %w", space, id, k, err)
		}
	}
	return nil
}
