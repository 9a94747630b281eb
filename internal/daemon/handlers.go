package daemon

import (
	"errors"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/rpc"
)

// handler executes one method against the library.
// CRITICAL: Called only from the Run loop.
type handler func(req *rpc.Request) (any, error)

func (d *Daemon) newHandlers() map[rpc.Method]handler {
	return map[rpc.Method]handler{
		rpc.MethodVersion:  d.version,
		rpc.MethodLibrary:  d.libraryInfo,
		rpc.MethodShutdown: d.shutdown,

		rpc.MethodCount:                  d.count,
		rpc.MethodContainsTrigger:        d.containsTrigger,
		rpc.MethodEntryForTrigger:        d.entryForTrigger,
		rpc.MethodActionForTrigger:       d.actionForTrigger,
		rpc.MethodEntries:                d.entries,
		rpc.MethodAddEntry:               d.addEntry,
		rpc.MethodReplaceEntry:           d.replaceEntry,
		rpc.MethodRemoveEntry:            d.removeEntry,
		rpc.MethodRemoveTrigger:          d.removeTrigger,
		rpc.MethodRemoveAllEntries:       d.removeAllEntries,
		rpc.MethodAddEntries:             d.addEntries,
		rpc.MethodTriggersForApplication: d.triggersForApplication,
		rpc.MethodSynchronize:            d.synchronize,
		rpc.MethodRead:                   d.read,
		rpc.MethodWriteToFile:            d.writeToFile,
		rpc.MethodFileWrapper:            d.fileWrapper,
		rpc.MethodReadFromFileWrapper:    d.readFromFileWrapper,
		rpc.MethodObjects:                d.objects,
		rpc.MethodObject:                 d.object,
		rpc.MethodAddObject:              d.addObject,
		rpc.MethodUpdateObject:           d.updateObject,
		rpc.MethodRemoveObject:           d.removeObject,
	}
}

func (d *Daemon) version(*rpc.Request) (any, error) {
	return rpc.VersionResult{Protocol: ir.ProtocolVersion, App: ir.AppVersion}, nil
}

func (d *Daemon) libraryInfo(*rpc.Request) (any, error) {
	sum, err := d.lib.Digest()
	if err != nil {
		return nil, err
	}
	return rpc.LibraryInfo{Path: d.lib.Path(), Count: d.lib.Count(), Checksum: sum}, nil
}

func (d *Daemon) shutdown(req *rpc.Request) (any, error) {
	d.log.Info("shutdown requested", "id", req.ID)
	d.Stop()
	return nil, nil
}

func (d *Daemon) count(*rpc.Request) (any, error) {
	return rpc.CountResult{Count: d.lib.Count()}, nil
}

func (d *Daemon) containsTrigger(req *rpc.Request) (any, error) {
	var p rpc.TriggerParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return rpc.BoolResult{Value: d.lib.ContainsTrigger(p.Trigger)}, nil
}

func (d *Daemon) entryForTrigger(req *rpc.Request) (any, error) {
	var p rpc.TriggerParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	e, ok := d.lib.EntryForTrigger(p.Trigger)
	return rpc.EntryResult{Entry: e, Found: ok}, nil
}

func (d *Daemon) actionForTrigger(req *rpc.Request) (any, error) {
	var p rpc.TriggerParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	a, ok := d.lib.ActionForTrigger(p.Trigger)
	return rpc.ActionResult{Action: a, Found: ok}, nil
}

func (d *Daemon) entries(*rpc.Request) (any, error) {
	return rpc.EntriesResult{Entries: d.lib.Entries()}, nil
}

func (d *Daemon) addEntry(req *rpc.Request) (any, error) {
	var p rpc.EntryParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return nil, d.lib.AddEntry(p.Entry)
}

func (d *Daemon) replaceEntry(req *rpc.Request) (any, error) {
	var p rpc.ReplaceParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return nil, d.lib.ReplaceEntry(p.Old, p.New)
}

func (d *Daemon) removeEntry(req *rpc.Request) (any, error) {
	var p rpc.EntryParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return nil, d.lib.RemoveEntry(p.Entry)
}

func (d *Daemon) removeTrigger(req *rpc.Request) (any, error) {
	var p rpc.TriggerParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	e, err := d.lib.RemoveTrigger(p.Trigger)
	if err != nil {
		return nil, err
	}
	return rpc.EntryResult{Entry: e, Found: true}, nil
}

func (d *Daemon) removeAllEntries(*rpc.Request) (any, error) {
	d.lib.RemoveAllEntries()
	return nil, nil
}

// addEntries reports merge conflicts in the result so the added count
// reaches the client.
func (d *Daemon) addEntries(req *rpc.Request) (any, error) {
	var p rpc.EntriesParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	added, err := d.lib.AddEntries(p.Entries)
	res := rpc.MergeResult{Added: added}
	var merr *entryset.MergeError
	switch {
	case errors.As(err, &merr):
		for _, c := range merr.Conflicts {
			res.Conflicts = append(res.Conflicts, rpc.Conflict{Existing: c.Existing, Incoming: c.Incoming})
		}
	case err != nil:
		return nil, err
	}
	return res, nil
}

func (d *Daemon) triggersForApplication(req *rpc.Request) (any, error) {
	var p rpc.ApplicationParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return rpc.BindingsResult{Bindings: d.cache.Get(p.Application, d.lib.TriggersForApplication)}, nil
}

func (d *Daemon) synchronize(*rpc.Request) (any, error) {
	if err := d.lib.Synchronize(); err != nil {
		d.metrics.saveErrors.Inc()
		return nil, err
	}
	return nil, nil
}

func (d *Daemon) read(*rpc.Request) (any, error) {
	if err := d.lib.Read(); err != nil {
		return nil, err
	}
	d.cache.Purge()
	d.log.Info("library reloaded", "path", d.lib.Path(), "entries", d.lib.Count())
	return nil, nil
}

func (d *Daemon) writeToFile(req *rpc.Request) (any, error) {
	var p rpc.WriteParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return nil, d.lib.WriteToFile(p.Path, p.Atomic)
}

func (d *Daemon) fileWrapper(*rpc.Request) (any, error) {
	w, err := d.lib.FileWrapper()
	if err != nil {
		return nil, err
	}
	return rpc.Wrapper{Filename: w.Filename, Format: string(w.Format), Contents: w.Contents}, nil
}

func (d *Daemon) readFromFileWrapper(req *rpc.Request) (any, error) {
	var p rpc.Wrapper
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return nil, d.lib.ReadFromFileWrapper(&library.Wrapper{
		Filename: p.Filename,
		Format:   library.Format(p.Format),
		Contents: p.Contents,
	})
}

func (d *Daemon) objects(req *rpc.Request) (any, error) {
	var p rpc.SpaceParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	recs, err := d.lib.Records(p.Space)
	if err != nil {
		return nil, err
	}
	out := make([]rpc.Record, len(recs))
	for i, r := range recs {
		out[i] = rpc.Record{ID: r.ID, Object: r.Object}
	}
	return rpc.RecordsResult{Records: out}, nil
}

func (d *Daemon) object(req *rpc.Request) (any, error) {
	var p rpc.ObjectParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	obj, err := d.lib.Object(p.Space, p.ID)
	if err != nil {
		return nil, err
	}
	return rpc.ObjectResult{Object: obj}, nil
}

func (d *Daemon) addObject(req *rpc.Request) (any, error) {
	var p rpc.ObjectParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	id, err := d.lib.AddObject(p.Space, p.Object)
	if err != nil {
		return nil, err
	}
	return rpc.IDResult{ID: id}, nil
}

func (d *Daemon) updateObject(req *rpc.Request) (any, error) {
	var p rpc.ObjectParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	return nil, d.lib.UpdateObject(p.Space, p.ID, p.Object)
}

func (d *Daemon) removeObject(req *rpc.Request) (any, error) {
	var p rpc.ObjectParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	removed, err := d.lib.RemoveObject(p.Space, p.ID)
	if err != nil {
		return nil, err
	}
	return rpc.EntriesResult{Entries: removed}, nil
}
