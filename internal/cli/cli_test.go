package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barryels/Spark/internal/daemon"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/rpc"
)

// isolate points the Spark folder at a temp dir so no user configuration
// or library is read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	saved := library.FileFormat
	t.Cleanup(func() { library.FileFormat = saved })
	return home
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeFixture saves a library with two actions, three triggers and two
// applications at path.
func writeFixture(t *testing.T, path string) *library.Library {
	t.Helper()
	lib := library.New(path)
	require.NoError(t, lib.Actions().Put(5, ir.Object{Kind: "launch", Name: "Terminal"}))
	require.NoError(t, lib.Actions().Put(9, ir.Object{Kind: "text", Name: "Signature"}))
	require.NoError(t, lib.Triggers().Put(1, ir.Object{Kind: "hotkey", Name: "F1"}))
	require.NoError(t, lib.Triggers().Put(2, ir.Object{Kind: "hotkey", Name: "F2"}))
	require.NoError(t, lib.Triggers().Put(3, ir.Object{Kind: "hotkey", Name: "F3"}))
	require.NoError(t, lib.Applications().Put(7, ir.Object{Kind: "application", Name: "Safari"}))
	require.NoError(t, lib.Applications().Put(42, ir.Object{Kind: "application", Name: "Mail"}))
	require.NoError(t, lib.WriteToFile(path, true))
	return lib
}

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "spk")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return rpc.SocketPath(dir, true)
}

// serve runs a daemon over lib until the test ends.
func serve(t *testing.T, lib *library.Library) string {
	t.Helper()
	d, err := daemon.New(daemon.Options{
		Library: lib,
		Socket:  socketPath(t),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, d.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return d.Socket()
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "spark", cmd.Use)

	for _, name := range []string{"daemon", "version", "list", "bind", "unbind", "query", "shutdown", "convert", "archive", "inspect", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, name := range []string{"export", "import"} {
		sub, _, err := cmd.Find([]string{"archive", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	for _, name := range []string{"config", "socket", "library"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--format", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestBadConfig(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "spark.cue")
	require.NoError(t, os.WriteFile(path, []byte(`library: format: "xml"`), 0o644))

	_, err := execute(t, "--config", path, "version")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigAppliesFormat(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := filepath.Join(dir, "spark.cue")
	require.NoError(t, os.WriteFile(cfg, []byte(`library: format: "text"`), 0o644))
	in := filepath.Join(dir, "in.splib")
	writeFixture(t, in)

	out := filepath.Join(dir, "out.splib")
	_, err := execute(t, "--config", cfg, "convert", in, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, library.FormatText, library.DetectFormat(data))
}
