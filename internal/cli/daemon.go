package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barryels/Spark/internal/daemon"
	"github.com/barryels/Spark/internal/library"
)

// DaemonOptions holds flags for the daemon command.
type DaemonOptions struct {
	*RootOptions

	// IDs overrides session id generation (for testing).
	IDs daemon.IDGenerator
	// Ready, if set, is called once the socket is listening.
	Ready func(d *daemon.Daemon)
}

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DaemonOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Serve the shared library",
		Long: `Load the shared library and serve it to clients over a unix socket.

The daemon is the only process that writes the library file. Every change a
client makes is saved before the client is answered.

Example:
  spark daemon
  spark daemon --library ./SparkLibrary.splib --socket /tmp/spark.sock -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}
	return cmd
}

func runDaemon(opts *DaemonOptions, cmd *cobra.Command) error {
	cfg, err := opts.configuration()
	if err != nil {
		return err
	}
	path, err := opts.libraryPath()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve library path", err)
	}
	socket, err := opts.socketPath()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve socket", err)
	}

	lib := library.New(path)
	switch err := lib.Read(); {
	case err == nil:
		slog.Info("library loaded", "path", path, "entries", lib.Count())
	case library.IsMissing(err):
		slog.Info("no library file, starting empty", "path", path)
	default:
		return WrapExitError(ExitCommandError, "failed to load library", err)
	}

	d, err := daemon.New(daemon.Options{
		Library:   lib,
		Socket:    socket,
		Logger:    slog.Default(),
		CacheSize: cfg.Server.CacheSize,
		IDs:       opts.IDs,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create daemon", err)
	}
	if err := d.Listen(); err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Spark daemon listening on %s\n", d.Socket())
	if opts.Ready != nil {
		opts.Ready(d)
	}

	if err := d.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "daemon error", err)
	}
	return nil
}
