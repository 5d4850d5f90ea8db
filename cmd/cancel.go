package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/session"
	"github.com/zhubert/para/ui"
)

func newCancelCmd(opts *globalOptions) *cobra.Command {
	var force, noArchive, yes bool

	cmd := &cobra.Command{
		Use:   "cancel [name]",
		Short: "Cancel a session, archiving its branch",
		Long: `Cancel a session and delete its record. The branch is moved to
<prefix>/archived/<timestamp>/<name> so 'para recover' can bring it back.

The worktree is kept unless --force is given, so uncommitted work survives.
Without a name, the session whose worktree holds the current directory is
cancelled. The name must match exactly.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeSessions(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				sess, err := sessionFor(cmd.Context(), a, opts, args)
				if err != nil {
					return err
				}
				name := sess.Name

				if force {
					ok, err := confirmAction(yes, fmt.Sprintf("Remove the worktree of %s, discarding uncommitted changes?", name))
					if err != nil {
						return err
					}
					if !ok {
						ui.Info("Aborted.")
						return nil
					}
				}

				result, err := a.manager.Cancel(cmd.Context(), name, session.CancelOptions{
					Force:   force,
					Archive: !noArchive,
				})
				if err != nil {
					return err
				}

				ui.Success("Cancelled session %s", ui.Bold(name))
				if result.Checkpointed {
					ui.Dim("  committed uncommitted changes before archiving")
				}
				if result.ArchivedBranch != "" {
					ui.Dim("  archived as %s (para recover %s)", result.ArchivedBranch, name)
				}
				if result.WorktreeRemoved {
					ui.Dim("  removed worktree %s", result.Session.WorktreePath)
				} else {
					ui.Dim("  worktree kept at %s", result.Session.WorktreePath)
				}
				if result.ContainerRemoved {
					ui.Dim("  removed container")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Remove the worktree even with uncommitted changes")
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "Leave the branch in place instead of archiving it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}
