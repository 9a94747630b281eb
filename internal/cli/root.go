package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/barryels/Spark/internal/client"
	"github.com/barryels/Spark/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is an explicit configuration file.
	Config string
	// Socket and Library override the configured paths.
	Socket  string
	Library string

	// settings is loaded before any subcommand runs.
	settings *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Execute runs the Spark CLI with args and reports a failure in the
// selected output format. It returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if ferr := opts.formatter(cmd).Fail(err); ferr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "spark:", err)
	}
	return GetExitCode(err)
}

// NewRootCommand creates the root command for the Spark CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {

	cmd := &cobra.Command{
		Use:   "spark",
		Short: "Spark - hotkey dispatcher",
		Long:  "Spark binds hotkeys to actions, globally or per application, through a shared library served by the Spark daemon.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "configuration file (default <spark folder>/spark.cue)")
	cmd.PersistentFlags().StringVar(&opts.Socket, "socket", "", "daemon socket path")
	cmd.PersistentFlags().StringVar(&opts.Library, "library", "", "library file path")

	cmd.AddCommand(NewDaemonCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewBindCommand(opts))
	cmd.AddCommand(NewUnbindCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewShutdownCommand(opts))
	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// load reads the configuration and sets up logging.
func (o *RootOptions) load() error {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if err := cfg.Apply(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.settings = cfg
	setupLogging(o.Verbose, cfg)
	return nil
}

// configuration returns the loaded settings, or the defaults when a subcommand runs
// without the root command.
func (o *RootOptions) configuration() (*config.Config, error) {
	if o.settings != nil {
		return o.settings, nil
	}
	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}
	o.settings = cfg
	return cfg, nil
}

func (o *RootOptions) socketPath() (string, error) {
	if o.Socket != "" {
		return o.Socket, nil
	}
	cfg, err := o.configuration()
	if err != nil {
		return "", err
	}
	return cfg.SocketPath()
}

func (o *RootOptions) libraryPath() (string, error) {
	if o.Library != "" {
		return o.Library, nil
	}
	cfg, err := o.configuration()
	if err != nil {
		return "", err
	}
	return cfg.LibraryPath()
}

// dial connects to the daemon. Failures are command errors.
func (o *RootOptions) dial(ctx context.Context) (*client.Client, error) {
	socket, err := o.socketPath()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve socket", err)
	}
	cfg, err := o.configuration()
	if err != nil {
		return nil, err
	}
	c, err := client.Dial(ctx, client.Options{Socket: socket, Timeout: cfg.Timeout()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect to daemon", err)
	}
	return c, nil
}

// remote dials the daemon and opens the shared library handle.
func (o *RootOptions) remote(ctx context.Context) (*client.Client, *client.RemoteLibrary, error) {
	c, err := o.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	lib, err := c.Library(ctx)
	if err != nil {
		c.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to open library", err)
	}
	return c, lib, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
