package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/barryels/Spark/internal/archive"
	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/library"
	"github.com/barryels/Spark/internal/objects"
)

// readLibrary loads the library file at path. Failures are command errors.
func readLibrary(path string) (*library.Library, error) {
	lib := library.New(path)
	if err := lib.Read(); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read library", err)
	}
	return lib, nil
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Rewrite a library file in another encoding",
		Long: `Read a library file in either encoding and write it in the one named
by --to (default: the configured library.format).

Example:
  spark convert SparkLibrary.splib SparkLibrary.txt.splib --to text`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := library.FileFormat
			if to != "" {
				f, err := library.ParseFormat(to)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --to", err)
				}
				format = f
			}

			lib, err := readLibrary(args[0])
			if err != nil {
				return err
			}

			saved := library.FileFormat
			library.FileFormat = format
			defer func() { library.FileFormat = saved }()

			if err := lib.WriteToFile(args[1], true); err != nil {
				return WrapExitError(ExitCommandError, "failed to write library", err)
			}
			return rootOpts.formatter(cmd).Success(Message{
				Message: fmt.Sprintf("wrote %d entries to %s (%s)", lib.Count(), args[1], format),
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target encoding (binary|text)")
	return cmd
}

// NewArchiveCommand creates the archive command group.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export or import library archives",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "export <library> <archive>",
		Short:         "Write a library file to an archive",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := readLibrary(args[0])
			if err != nil {
				return err
			}
			if err := archive.Export(commandContext(cmd), lib, args[1]); err != nil {
				return WrapExitError(ExitCommandError, "failed to export archive", err)
			}
			return rootOpts.formatter(cmd).Success(Message{
				Message: fmt.Sprintf("archived %d entries to %s", lib.Count(), args[1]),
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "import <archive> <library>",
		Short:         "Restore a library file from an archive",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := archive.Import(commandContext(cmd), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to import archive", err)
			}
			if err := lib.WriteToFile(args[1], true); err != nil {
				return WrapExitError(ExitCommandError, "failed to write library", err)
			}
			return rootOpts.formatter(cmd).Success(Message{
				Message: fmt.Sprintf("restored %d entries to %s", lib.Count(), args[1]),
			})
		},
	})

	return cmd
}

// Dump is the structure printed by the inspect command.
type Dump struct {
	Path         string                   `json:"path"`
	Format       string                   `json:"format"`
	Checksum     string                   `json:"checksum"`
	Actions      []objects.Record[uint32] `json:"actions"`
	Triggers     []objects.Record[uint32] `json:"triggers"`
	Applications []objects.Record[uint32] `json:"applications"`
	Entries      []ir.Entry               `json:"entries"`
}

func (d Dump) String() string {
	return litter.Options{HideZeroValues: true, StripPackageNames: true}.Sdump(d)
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Dump the contents of a library file or archive",
		Long: `Dump every object and entry of a library file or archive.

Files ending in .` + library.ArchiveExtension + ` are read as archives.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			d := Dump{Path: path}

			var lib *library.Library
			if strings.EqualFold(strings.TrimPrefix(filepath.Ext(path), "."), library.ArchiveExtension) {
				var err error
				lib, err = archive.Import(commandContext(cmd), path)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read archive", err)
				}
				d.Format = "archive"
			} else {
				data, err := os.ReadFile(path)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read library", err)
				}
				d.Format = string(library.DetectFormat(data))
				lib, err = readLibrary(path)
				if err != nil {
					return err
				}
			}

			sum, err := lib.Digest()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to compute checksum", err)
			}
			d.Checksum = sum
			d.Actions, _ = lib.Records(ir.SpaceActions)
			d.Triggers, _ = lib.Records(ir.SpaceTriggers)
			d.Applications, _ = lib.Records(ir.SpaceApplications)
			d.Entries = lib.Entries()
			return rootOpts.formatter(cmd).Success(d)
		},
	}
}
