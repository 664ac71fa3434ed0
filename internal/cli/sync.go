package cli

import (
	"github.com/spf13/cobra"

	lmssync "github.com/nhle/studysync/internal/sync"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull courses, assignments, announcements and grades from the LMS",
		Long: `Run one full LMS ingestion for the owner.

Failures of single courses or items are listed in the report and do not
stop the run; the command then exits with status 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.load()
			if err != nil {
				return err
			}
			defer closeApp(a, cmd.ErrOrStderr())

			report, err := a.Ingestor.SyncAll(cmd.Context(), rootOpts.Owner)
			if err != nil {
				return WrapExitError(ExitCommandError, "lms sync failed", err)
			}
			out := Output{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if err := out.EmitReport(report, "LMS sync", ingestRows(report), report.Errors); err != nil {
				return err
			}
			if len(report.Errors) > 0 {
				return NewExitError(ExitFailure, "lms sync finished with errors")
			}
			return nil
		},
	}
}

// BridgeOptions holds flags for the bridge command.
type BridgeOptions struct {
	*RootOptions
	IDs         []string
	IncludePast bool
}

// NewBridgeCommand creates the bridge command.
func NewBridgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BridgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Turn mirrored assignments into tasks",
		Long: `Create one task per mirrored assignment not yet converted.

Example:
  studysync bridge
  studysync bridge --id 3f2c... --include-past`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer closeApp(a, cmd.ErrOrStderr())

			report, err := a.Bridge.SyncToTasks(cmd.Context(), opts.Owner, lmssync.BridgeOptions{
				AssignmentIDs: opts.IDs,
				IncludePast:   opts.IncludePast,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "converting assignments failed", err)
			}
			out := Output{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if err := out.EmitReport(report, "Assignments to tasks", bridgeRows(report), report.Errors); err != nil {
				return err
			}
			if len(report.Errors) > 0 {
				return NewExitError(ExitFailure, "some assignments could not be converted")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "only convert these assignment ids")
	cmd.Flags().BoolVar(&opts.IncludePast, "include-past", false, "also convert assignments already due")

	return cmd
}

// NewResyncCommand creates the resync command.
func NewResyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Reconcile every task with the connected calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.load()
			if err != nil {
				return err
			}
			defer closeApp(a, cmd.ErrOrStderr())

			report, err := a.Calendar.ResyncAll(cmd.Context(), rootOpts.Owner)
			if err != nil {
				return WrapExitError(ExitCommandError, "calendar resync failed", err)
			}
			out := Output{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if err := out.EmitReport(report, "Calendar resync", resyncRows(report), report.Errors); err != nil {
				return err
			}
			if len(report.Errors) > 0 {
				return NewExitError(ExitFailure, "calendar resync finished with errors")
			}
			return nil
		},
	}
}
