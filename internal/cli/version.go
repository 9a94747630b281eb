package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barryels/Spark/internal/ir"
)

// VersionResult is the output of the version command.
type VersionResult struct {
	App      string `json:"app"`
	Protocol uint32 `json:"protocol"`
	Library  int    `json:"library_version"`

	// Daemon fields are set with --remote.
	DaemonApp      string `json:"daemon_app,omitempty"`
	DaemonProtocol uint32 `json:"daemon_protocol,omitempty"`
}

func (r VersionResult) String() string {
	s := fmt.Sprintf("spark %s (protocol 0x%04x, library v%d)", r.App, r.Protocol, r.Library)
	if r.DaemonApp != "" {
		s += fmt.Sprintf("\ndaemon %s (protocol 0x%04x)", r.DaemonApp, r.DaemonProtocol)
	}
	return s
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:           "version",
		Short:         "Print version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := VersionResult{App: ir.AppVersion, Protocol: ir.ProtocolVersion, Library: ir.LibraryVersion}
			if remote {
				c, err := rootOpts.dial(commandContext(cmd))
				if err != nil {
					return err
				}
				defer c.Close()
				res.DaemonApp = c.Server().App
				res.DaemonProtocol = c.Server().Protocol
			}
			return rootOpts.formatter(cmd).Success(res)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also ask the running daemon")
	return cmd
}
