package client

import (
	"context"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/objects"
	"github.com/barryels/Spark/internal/rpc"
)

// RemoteLibrary is a handle to the daemon's shared library.
// Mutations return once the daemon has synchronized the change to disk.
type RemoteLibrary struct {
	c    *Client
	info rpc.LibraryInfo
}

// Path returns the shared library's file location as of Library or Refresh.
func (r *RemoteLibrary) Path() string { return r.info.Path }

// Refresh re-reads the library summary.
func (r *RemoteLibrary) Refresh(ctx context.Context) (rpc.LibraryInfo, error) {
	var info rpc.LibraryInfo
	if err := r.c.call(ctx, rpc.MethodLibrary, nil, &info); err != nil {
		return rpc.LibraryInfo{}, err
	}
	r.info = info
	return info, nil
}

func (r *RemoteLibrary) Count(ctx context.Context) (int, error) {
	var res rpc.CountResult
	err := r.c.call(ctx, rpc.MethodCount, nil, &res)
	return res.Count, err
}

func (r *RemoteLibrary) ContainsTrigger(ctx context.Context, trigger ir.TriggerID) (bool, error) {
	var res rpc.BoolResult
	err := r.c.call(ctx, rpc.MethodContainsTrigger, rpc.TriggerParams{Trigger: trigger}, &res)
	return res.Value, err
}

func (r *RemoteLibrary) EntryForTrigger(ctx context.Context, trigger ir.TriggerID) (ir.Entry, bool, error) {
	var res rpc.EntryResult
	err := r.c.call(ctx, rpc.MethodEntryForTrigger, rpc.TriggerParams{Trigger: trigger}, &res)
	return res.Entry, res.Found, err
}

func (r *RemoteLibrary) ActionForTrigger(ctx context.Context, trigger ir.TriggerID) (ir.ActionID, bool, error) {
	var res rpc.ActionResult
	err := r.c.call(ctx, rpc.MethodActionForTrigger, rpc.TriggerParams{Trigger: trigger}, &res)
	return res.Action, res.Found, err
}

// Entries returns a snapshot of the entries in insertion order.
func (r *RemoteLibrary) Entries(ctx context.Context) ([]ir.Entry, error) {
	var res rpc.EntriesResult
	err := r.c.call(ctx, rpc.MethodEntries, nil, &res)
	return res.Entries, err
}

func (r *RemoteLibrary) AddEntry(ctx context.Context, e ir.Entry) error {
	return r.c.call(ctx, rpc.MethodAddEntry, rpc.EntryParams{Entry: e}, nil)
}

func (r *RemoteLibrary) ReplaceEntry(ctx context.Context, old, replacement ir.Entry) error {
	return r.c.call(ctx, rpc.MethodReplaceEntry, rpc.ReplaceParams{Old: old, New: replacement}, nil)
}

func (r *RemoteLibrary) RemoveEntry(ctx context.Context, e ir.Entry) error {
	return r.c.call(ctx, rpc.MethodRemoveEntry, rpc.EntryParams{Entry: e}, nil)
}

func (r *RemoteLibrary) RemoveTrigger(ctx context.Context, trigger ir.TriggerID) (ir.Entry, error) {
	var res rpc.EntryResult
	err := r.c.call(ctx, rpc.MethodRemoveTrigger, rpc.TriggerParams{Trigger: trigger}, &res)
	return res.Entry, err
}

func (r *RemoteLibrary) RemoveAllEntries(ctx context.Context) error {
	return r.c.call(ctx, rpc.MethodRemoveAllEntries, nil, nil)
}

// AddEntries merges entries best-effort, like library.Library.AddEntries.
// Skipped elements come back as a *entryset.MergeError.
func (r *RemoteLibrary) AddEntries(ctx context.Context, entries []ir.Entry) (int, error) {
	var res rpc.MergeResult
	if err := r.c.call(ctx, rpc.MethodAddEntries, rpc.EntriesParams{Entries: entries}, &res); err != nil {
		return 0, err
	}
	if len(res.Conflicts) == 0 {
		return res.Added, nil
	}
	merr := &entryset.MergeError{Added: res.Added}
	for _, c := range res.Conflicts {
		merr.Conflicts = append(merr.Conflicts, &entryset.ConflictError{Existing: c.Existing, Incoming: c.Incoming})
	}
	return res.Added, merr
}

// AddEntriesFromSet merges every entry of set.
func (r *RemoteLibrary) AddEntriesFromSet(ctx context.Context, set *entryset.Set) (int, error) {
	return r.AddEntries(ctx, set.Entries())
}

func (r *RemoteLibrary) TriggersForApplication(ctx context.Context, app ir.ApplicationID) (map[ir.TriggerID]ir.ActionID, error) {
	var res rpc.BindingsResult
	if err := r.c.call(ctx, rpc.MethodTriggersForApplication, rpc.ApplicationParams{Application: app}, &res); err != nil {
		return nil, err
	}
	if res.Bindings == nil {
		res.Bindings = map[ir.TriggerID]ir.ActionID{}
	}
	return res.Bindings, nil
}

func (r *RemoteLibrary) Synchronize(ctx context.Context) error {
	return r.c.call(ctx, rpc.MethodSynchronize, nil, nil)
}

// Read makes the daemon reload the library from its file.
func (r *RemoteLibrary) Read(ctx context.Context) error {
	return r.c.call(ctx, rpc.MethodRead, nil, nil)
}

// WriteToFile makes the daemon write the library to path on its side.
func (r *RemoteLibrary) WriteToFile(ctx context.Context, path string, atomic bool) error {
	return r.c.call(ctx, rpc.MethodWriteToFile, rpc.WriteParams{Path: path, Atomic: atomic}, nil)
}

func (r *RemoteLibrary) FileWrapper(ctx context.Context) (*library.Wrapper, error) {
	var res rpc.Wrapper
	if err := r.c.call(ctx, rpc.MethodFileWrapper, nil, &res); err != nil {
		return nil, err
	}
	return &library.Wrapper{Filename: res.Filename, Format: library.Format(res.Format), Contents: res.Contents}, nil
}

func (r *RemoteLibrary) ReadFromFileWrapper(ctx context.Context, w *library.Wrapper) error {
	return r.c.call(ctx, rpc.MethodReadFromFileWrapper, rpc.Wrapper{
		Filename: w.Filename,
		Format:   string(w.Format),
		Contents: w.Contents,
	}, nil)
}

// Objects lists every object of space ordered by id.
func (r *RemoteLibrary) Objects(ctx context.Context, space ir.Space) ([]objects.Record[uint32], error) {
	var res rpc.RecordsResult
	if err := r.c.call(ctx, rpc.MethodObjects, rpc.SpaceParams{Space: space}, &res); err != nil {
		return nil, err
	}
	out := make([]objects.Record[uint32], len(res.Records))
	for i, rec := range res.Records {
		out[i] = objects.Record[uint32]{ID: rec.ID, Object: rec.Object}
	}
	return out, nil
}

func (r *RemoteLibrary) Object(ctx context.Context, space ir.Space, id uint32) (ir.Object, error) {
	var res rpc.ObjectResult
	err := r.c.call(ctx, rpc.MethodObject, rpc.ObjectParams{Space: space, ID: id}, &res)
	return res.Object, err
}

func (r *RemoteLibrary) AddObject(ctx context.Context, space ir.Space, obj ir.Object) (uint32, error) {
	var res rpc.IDResult
	err := r.c.call(ctx, rpc.MethodAddObject, rpc.ObjectParams{Space: space, Object: obj}, &res)
	return res.ID, err
}

func (r *RemoteLibrary) UpdateObject(ctx context.Context, space ir.Space, id uint32, obj ir.Object) error {
	return r.c.call(ctx, rpc.MethodUpdateObject, rpc.ObjectParams{Space: space, ID: id, Object: obj}, nil)
}

// RemoveObject deletes an object and returns the entries removed with it.
func (r *RemoteLibrary) RemoveObject(ctx context.Context, space ir.Space, id uint32) ([]ir.Entry, error) {
	var res rpc.EntriesResult
	err := r.c.call(ctx, rpc.MethodRemoveObject, rpc.ObjectParams{Space: space, ID: id}, &res)
	return res.Entries, err
}
