package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barryels/Spark/internal/entryset"
	"github.com/barryels/Spark/internal/ir"
)

// EntryList is the output of the list command.
type EntryList struct {
	Path    string     `json:"path"`
	Entries []ir.Entry `json:"entries"`
}

func (l EntryList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d entries", l.Path, len(l.Entries))
	for _, e := range l.Entries {
		scope := "global"
		if !e.IsGlobal() {
			scope = fmt.Sprintf("app %d", e.Application)
		}
		fmt.Fprintf(&b, "\n  trigger %d -> action %d (%s)", e.Trigger, e.Action, scope)
	}
	return b.String()
}

// Binding is one row of the query command output.
type Binding struct {
	Trigger ir.TriggerID `json:"trigger"`
	Action  ir.ActionID  `json:"action"`
}

// BindingList is the output of the query command.
type BindingList struct {
	Application ir.ApplicationID `json:"application"`
	Bindings    []Binding        `json:"bindings"`
}

func (l BindingList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "application %d: %d bindings", l.Application, len(l.Bindings))
	for _, x := range l.Bindings {
		fmt.Fprintf(&b, "\n  trigger %d -> action %d", x.Trigger, x.Action)
	}
	return b.String()
}

// Message is plain confirmation output.
type Message struct {
	Message string `json:"message"`
}

func (m Message) String() string { return m.Message }

// parseID accepts decimal or 0x-prefixed ids.
func parseID(kind, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s id %q", kind, s))
	}
	return uint32(v), nil
}

// refused maps library refusals to ExitFailure and everything else to
// ExitCommandError.
func refused(message string, err error) error {
	switch ErrorCode(err) {
	case CodeConflict, CodeNotFound:
		return WrapExitError(ExitFailure, message, err)
	case CodeSaveError:
		return WrapExitError(ExitFailure, message+" (change kept in memory)", err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List every entry of the shared library",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			c, lib, err := rootOpts.remote(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := lib.Entries(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list entries", err)
			}
			if entries == nil {
				entries = []ir.Entry{}
			}
			return rootOpts.formatter(cmd).Success(EntryList{Path: lib.Path(), Entries: entries})
		},
	}
}

// NewBindCommand creates the bind command.
func NewBindCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		app       string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "bind <action> <trigger>",
		Short: "Bind a trigger to an action",
		Long: `Bind a trigger to an action, globally or for one application.

A trigger already bound to another action is only replaced with --overwrite.

Exit codes:
  0 - Bound
  1 - Refused (trigger taken, unknown object, or save failed)
  2 - Command error

Example:
  spark bind 5 1
  spark bind 0x105 0x101 --app 42 --overwrite`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := parseID("action", args[0])
			if err != nil {
				return err
			}
			trigger, err := parseID("trigger", args[1])
			if err != nil {
				return err
			}
			application, err := parseID("application", app)
			if err != nil {
				return err
			}
			e := ir.NewEntry(ir.ActionID(action), ir.TriggerID(trigger), ir.ApplicationID(application)).WithOverwrite(overwrite)

			ctx := commandContext(cmd)
			c, lib, err := rootOpts.remote(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := lib.AddEntry(ctx, e); err != nil {
				var ce *entryset.ConflictError
				if errors.As(err, &ce) {
					return WrapExitError(ExitFailure,
						fmt.Sprintf("trigger %d is bound to action %d", ce.Existing.Trigger, ce.Existing.Action), err)
				}
				return refused("bind failed", err)
			}
			return rootOpts.formatter(cmd).Success(Message{Message: fmt.Sprintf("bound trigger %d to action %d", trigger, action)})
		},
	}
	cmd.Flags().StringVar(&app, "app", "0", "application id (0 binds globally)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing binding of the trigger")
	return cmd
}

// NewUnbindCommand creates the unbind command.
func NewUnbindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unbind <trigger>",
		Short:         "Remove the entry bound to a trigger",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger, err := parseID("trigger", args[0])
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			c, lib, err := rootOpts.remote(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			removed, err := lib.RemoveTrigger(ctx, ir.TriggerID(trigger))
			if err != nil {
				return refused("unbind failed", err)
			}
			return rootOpts.formatter(cmd).Success(Message{
				Message: fmt.Sprintf("unbound trigger %d from action %d", removed.Trigger, removed.Action),
			})
		},
	}
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <application>",
		Short: "Show what each trigger fires in an application",
		Long: `Show the action each trigger fires while an application is frontmost.

Global entries apply to every application. Use 0 to list global entries only.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := parseID("application", args[0])
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			c, lib, err := rootOpts.remote(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			bindings, err := lib.TriggersForApplication(ctx, ir.ApplicationID(app))
			if err != nil {
				return WrapExitError(ExitCommandError, "query failed", err)
			}
			out := BindingList{Application: ir.ApplicationID(app), Bindings: []Binding{}}
			for _, t := range slices.Sorted(maps.Keys(bindings)) {
				out.Bindings = append(out.Bindings, Binding{Trigger: t, Action: bindings[t]})
			}
			return rootOpts.formatter(cmd).Success(out)
		},
	}
}

// NewShutdownCommand creates the shutdown command.
func NewShutdownCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "shutdown",
		Short:         "Ask the daemon to stop",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			c, err := rootOpts.dial(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Shutdown(ctx); err != nil {
				return WrapExitError(ExitCommandError, "shutdown failed", err)
			}
			return rootOpts.formatter(cmd).Success(Message{Message: "shutdown requested"})
		},
	}
}
