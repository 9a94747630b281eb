package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barryels/Spark/internal/daemon"
	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
)

func TestRemoteCommands(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), library.DefaultFileName)
	socket := serve(t, writeFixture(t, path))

	out, err := execute(t, "--socket", socket, "bind", "5", "1")
	require.NoError(t, err)
	assert.Equal(t, "bound trigger 1 to action 5\n", out)

	_, err = execute(t, "--socket", socket, "bind", "9", "2", "--app", "42")
	require.NoError(t, err)

	out, err = execute(t, "--socket", socket, "--format", "json", "query", "42")
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   BindingList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []Binding{{Trigger: 1, Action: 5}, {Trigger: 2, Action: 9}}, resp.Data.Bindings)

	out, err = execute(t, "--socket", socket, "query", "7")
	require.NoError(t, err)
	assert.Equal(t, "application 7: 1 bindings\n  trigger 1 -> action 5\n", out)

	out, err = execute(t, "--socket", socket, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2 entries")
	assert.Contains(t, out, "trigger 1 -> action 5 (global)")
	assert.Contains(t, out, "trigger 2 -> action 9 (app 42)")

	// Each change was saved before the command returned.
	onDisk := library.New(path)
	require.NoError(t, onDisk.Read())
	assert.Equal(t, 2, onDisk.Count())

	_, err = execute(t, "--socket", socket, "bind", "9", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "trigger 1 is bound to action 5")
	assert.ErrorIs(t, err, entryset.ErrConflict)

	_, err = execute(t, "--socket", socket, "bind", "9", "1", "--overwrite")
	require.NoError(t, err)

	_, err = execute(t, "--socket", socket, "bind", "77", "3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err = execute(t, "--socket", socket, "unbind", "1")
	require.NoError(t, err)
	assert.Equal(t, "unbound trigger 1 from action 9\n", out)

	_, err = execute(t, "--socket", socket, "unbind", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, "--socket", socket, "unbind", "one")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRemoteCommands_NoDaemon(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--socket", socketPath(t), "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to connect to daemon")
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "spark "+ir.AppVersion+" (protocol 0x0200, library v1)\n", out)

	socket := serve(t, library.New(""))
	out, err = execute(t, "--socket", socket, "--format", "json", "version", "--remote")
	require.NoError(t, err)
	var resp struct {
		Data VersionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ir.AppVersion, resp.Data.DaemonApp)
	assert.Equal(t, ir.ProtocolVersion, resp.Data.DaemonProtocol)
}

func TestDaemonCommand_ServesUntilShutdown(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), library.DefaultFileName)
	writeFixture(t, path)
	socket := socketPath(t)

	ready := make(chan *daemon.Daemon, 1)
	opts := &DaemonOptions{
		RootOptions: &RootOptions{Format: "text", Library: path, Socket: socket},
		IDs:         &daemon.SequenceGenerator{Prefix: "session"},
		Ready:       func(d *daemon.Daemon) { ready <- d },
	}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	done := make(chan error, 1)
	go func() { done <- runDaemon(opts, cmd) }()

	select {
	case d := <-ready:
		assert.Equal(t, socket, d.Socket())
	case err := <-done:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not start")
	}

	_, err := execute(t, "--socket", socket, "bind", "5", "1")
	require.NoError(t, err)

	out, err := execute(t, "--socket", socket, "shutdown")
	require.NoError(t, err)
	assert.Equal(t, "shutdown requested\n", out)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	onDisk := library.New(path)
	require.NoError(t, onDisk.Read())
	assert.True(t, onDisk.ContainsTrigger(1))
}

func TestDaemonCommand_CorruptLibrary(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), library.DefaultFileName)
	writeFixture(t, path)
	require.NoError(t, os.WriteFile(path, []byte("bspark00 not cbor"), 0o644))

	opts := &DaemonOptions{RootOptions: &RootOptions{Format: "text", Library: path, Socket: socketPath(t)}}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	err := runDaemon(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, library.IsLoadError(err))
}
