package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/rpc"
)

// socketDir returns a short directory for unix sockets, whose paths are
// length-limited.
func socketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "spk")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureLibrary(t *testing.T, path string) *library.Library {
	t.Helper()
	lib := library.New(path)
	require.NoError(t, lib.Actions().Put(5, ir.Object{Kind: "launch", Name: "Terminal"}))
	require.NoError(t, lib.Actions().Put(9, ir.Object{Kind: "text", Name: "Signature"}))
	require.NoError(t, lib.Triggers().Put(1, ir.Object{Kind: "hotkey", Name: "F1"}))
	require.NoError(t, lib.Triggers().Put(2, ir.Object{Kind: "hotkey", Name: "F2"}))
	require.NoError(t, lib.Applications().Put(42, ir.Object{Kind: "application", Name: "Mail"}))
	return lib
}

// run tracks a daemon started by startDaemon.
type run struct {
	stopped chan struct{}
	err     error
}

// startDaemon runs a daemon until the test ends.
func startDaemon(t *testing.T, lib *library.Library) (*Daemon, *run) {
	t.Helper()
	d, err := New(Options{
		Library: lib,
		Socket:  rpc.SocketPath(socketDir(t), true),
		Logger:  quietLogger(),
		IDs:     &SequenceGenerator{Prefix: "session"},
	})
	require.NoError(t, err)
	require.NoError(t, d.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{stopped: make(chan struct{})}
	go func() {
		r.err = d.Run(ctx)
		close(r.stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-r.stopped:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})
	return d, r
}

func invoke(t *testing.T, d *Daemon, method rpc.Method, params any) rpc.Response[any] {
	t.Helper()
	req, err := rpc.NewRequest("test", method, params)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.Call(ctx, req)
}

func TestNew_RequiresLibraryAndSocket(t *testing.T) {
	_, err := New(Options{Socket: "/tmp/x.sock"})
	assert.Error(t, err)
	_, err = New(Options{Library: library.New("")})
	assert.Error(t, err)
}

func TestDaemon_Version(t *testing.T) {
	d, _ := startDaemon(t, library.New(""))
	res := invoke(t, d, rpc.MethodVersion, nil)
	require.Nil(t, res.Error)
	assert.Equal(t, "test", res.ID)
	assert.Equal(t, rpc.VersionResult{Protocol: ir.ProtocolVersion, App: ir.AppVersion}, *res.Result)
}

func TestDaemon_UnknownMethod(t *testing.T) {
	d, _ := startDaemon(t, library.New(""))
	res := invoke(t, d, "library.frobnicate", nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, rpc.CodeUnknownMethod, res.Error.Code)
}

func TestDaemon_BadParams(t *testing.T) {
	d, _ := startDaemon(t, library.New(""))
	res := invoke(t, d, rpc.MethodAddEntry, nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, rpc.CodeBadRequest, res.Error.Code)
}

func TestDaemon_MutationIsDurableBeforeReply(t *testing.T) {
	path := filepath.Join(t.TempDir(), library.DefaultFileName)
	lib := fixtureLibrary(t, path)
	d, _ := startDaemon(t, lib)

	res := invoke(t, d, rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(5, 1, 0)})
	require.Nil(t, res.Error)

	// The reply has arrived, so the file must already hold the entry.
	onDisk := library.New(path)
	require.NoError(t, onDisk.Read())
	assert.Equal(t, []ir.Entry{ir.NewEntry(5, 1, 0)}, onDisk.Entries())
}

// dialSession opens a raw websocket session to d.
func dialSession(t *testing.T, d *Daemon) *websocket.Conn {
	t.Helper()
	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, "unix", d.Socket())
		},
		Subprotocols: []string{"cbor"},
	}
	conn, _, err := dialer.Dial("ws://spark/rpc", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDaemon_SessionRequestsRunInOrder(t *testing.T) {
	d, _ := startDaemon(t, fixtureLibrary(t, filepath.Join(t.TempDir(), library.DefaultFileName)))
	conn := dialSession(t, d)

	// Each bind only succeeds after the preceding unbind, and each unbind
	// only after the preceding bind.
	const rounds = 40
	for i := range rounds {
		action := ir.ActionID(5)
		if i%2 == 1 {
			action = 9
		}
		bind, err := rpc.NewRequest(fmt.Sprintf("bind-%d", i), rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(action, 1, 0)})
		require.NoError(t, err)
		unbind, err := rpc.NewRequest(fmt.Sprintf("unbind-%d", i), rpc.MethodRemoveTrigger, rpc.TriggerParams{Trigger: 1})
		require.NoError(t, err)
		for _, req := range []*rpc.Request{bind, unbind} {
			data, err := rpc.Marshal(req)
			require.NoError(t, err)
			require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))
		}
	}
	last, err := rpc.NewRequest("last", rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(9, 1, 0)})
	require.NoError(t, err)
	data, err := rpc.Marshal(last)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for range 2*rounds + 1 {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var res rpc.Response[any]
		require.NoError(t, rpc.Unmarshal(data, &res))
		assert.Nil(t, res.Error, "request %s", res.ID)
	}

	res := invoke(t, d, rpc.MethodActionForTrigger, rpc.TriggerParams{Trigger: 1})
	require.Nil(t, res.Error)
	assert.Equal(t, rpc.ActionResult{Action: 9, Found: true}, *res.Result)
}

func TestDaemon_ConflictLeavesStateAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), library.DefaultFileName)
	d, _ := startDaemon(t, fixtureLibrary(t, path))

	require.Nil(t, invoke(t, d, rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(5, 1, 0)}).Error)
	res := invoke(t, d, rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(9, 1, 0)})
	require.NotNil(t, res.Error)
	assert.Equal(t, rpc.CodeConflict, res.Error.Code)
	assert.ErrorIs(t, res.Error.Err(), entryset.ErrConflict)

	res = invoke(t, d, rpc.MethodActionForTrigger, rpc.TriggerParams{Trigger: 1})
	require.Nil(t, res.Error)
	assert.Equal(t, rpc.ActionResult{Action: 5, Found: true}, *res.Result)
}

func TestDaemon_SaveFailureKeepsChange(t *testing.T) {
	dir := t.TempDir()
	// A directory where the library file should be makes every save fail.
	path := filepath.Join(dir, "blocked")
	require.NoError(t, os.Mkdir(path, 0o755))
	d, _ := startDaemon(t, fixtureLibrary(t, path))

	res := invoke(t, d, rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(5, 1, 0)})
	require.NotNil(t, res.Error)
	assert.Equal(t, rpc.CodeSaveError, res.Error.Code)

	res = invoke(t, d, rpc.MethodCount, nil)
	require.Nil(t, res.Error)
	assert.Equal(t, rpc.CountResult{Count: 1}, *res.Result)
}

func TestDaemon_AddEntriesReportsConflicts(t *testing.T) {
	d, _ := startDaemon(t, fixtureLibrary(t, ""))
	require.Nil(t, invoke(t, d, rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(5, 1, 0)}).Error)

	res := invoke(t, d, rpc.MethodAddEntries, rpc.EntriesParams{Entries: []ir.Entry{
		ir.NewEntry(9, 2, 42),
		ir.NewEntry(9, 1, 0),
	}})
	require.Nil(t, res.Error)
	merge := (*res.Result).(rpc.MergeResult)
	assert.Equal(t, 1, merge.Added)
	require.Len(t, merge.Conflicts, 1)
	assert.Equal(t, ir.NewEntry(5, 1, 0), merge.Conflicts[0].Existing)
}

func TestDaemon_TriggersForApplicationCachedAndPurged(t *testing.T) {
	lib := fixtureLibrary(t, "")
	require.NoError(t, lib.AddEntry(ir.NewEntry(5, 1, 0)))
	d, _ := startDaemon(t, lib)
	ctx := context.Background()

	got, err := d.TriggersForApplication(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, map[ir.TriggerID]ir.ActionID{1: 5}, got)

	// Mutating the returned map must not leak into the cache.
	got[99] = 99
	again, err := d.TriggersForApplication(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, map[ir.TriggerID]ir.ActionID{1: 5}, again)

	require.Nil(t, invoke(t, d, rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(9, 2, 42)}).Error)
	got, err = d.TriggersForApplication(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, map[ir.TriggerID]ir.ActionID{1: 5, 2: 9}, got)
}

func TestDaemon_ObjectLifecycle(t *testing.T) {
	d, _ := startDaemon(t, fixtureLibrary(t, ""))

	res := invoke(t, d, rpc.MethodAddObject, rpc.ObjectParams{Space: ir.SpaceTriggers, Object: ir.Object{Kind: "hotkey", Name: "F9"}})
	require.Nil(t, res.Error)
	id := (*res.Result).(rpc.IDResult).ID
	assert.Greater(t, id, uint32(ir.ReservedIDs))

	require.Nil(t, invoke(t, d, rpc.MethodAddEntry, rpc.EntryParams{Entry: ir.NewEntry(5, ir.TriggerID(id), 0)}).Error)

	res = invoke(t, d, rpc.MethodRemoveObject, rpc.ObjectParams{Space: ir.SpaceTriggers, ID: id})
	require.Nil(t, res.Error)
	assert.Equal(t, rpc.EntriesResult{Entries: []ir.Entry{ir.NewEntry(5, ir.TriggerID(id), 0)}}, *res.Result)

	res = invoke(t, d, rpc.MethodObject, rpc.ObjectParams{Space: ir.SpaceTriggers, ID: id})
	require.NotNil(t, res.Error)
	assert.Equal(t, rpc.CodeNotFound, res.Error.Code)
}

func TestDaemon_ShutdownStopsRun(t *testing.T) {
	d, r := startDaemon(t, library.New(""))

	req, err := rpc.NewRequest("", rpc.MethodShutdown, nil)
	require.NoError(t, err)
	require.True(t, d.submit(context.Background(), req))

	select {
	case <-r.stopped:
		assert.NoError(t, r.err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after shutdown")
	}

	_, statErr := os.Stat(d.Socket())
	assert.True(t, os.IsNotExist(statErr), "socket should be removed")

	res := invoke(t, d, rpc.MethodVersion, nil)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, ErrStopped.Error())
}

func TestListen_RefusesSecondDaemon(t *testing.T) {
	d, _ := startDaemon(t, library.New(""))
	other, err := New(Options{Library: library.New(""), Socket: d.Socket(), Logger: quietLogger()})
	require.NoError(t, err)
	assert.ErrorIs(t, other.Listen(), ErrAlreadyRunning)
}

func TestListen_ReplacesStaleSocket(t *testing.T) {
	path := rpc.SocketPath(socketDir(t), false)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	d, err := New(Options{Library: library.New(""), Socket: path, Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, d.Listen())
	d.ln.Close()
}

func TestDaemon_Metrics(t *testing.T) {
	d, _ := startDaemon(t, library.New(""))
	require.Nil(t, invoke(t, d, rpc.MethodVersion, nil).Error)

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", d.Socket())
		},
	}}
	resp, err := client.Get("http://spark/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `spark_daemon_requests_total{code="OK",method="version"} 1`)
}
