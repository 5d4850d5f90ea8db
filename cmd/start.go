package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/session"
	"github.com/zhubert/para/ui"
)

func newStartCmd(opts *globalOptions) *cobra.Command {
	var createOpts session.CreateOptions

	cmd := &cobra.Command{
		Use:   "start [name]",
		Short: "Create a session with its own branch and worktree",
		Long: `Create a new session. Without a name a friendly one is generated. When a
session with the name already exists, the new one gets a timestamp suffix.

The worktree path is printed on stdout so it can be used as:
  cd "$(para start feature-x)"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return withApp(cmd, opts, func(a *app) error {
				sess, err := a.manager.Create(cmd.Context(), name, createOpts)
				if err != nil {
					return err
				}
				ui.Success("Created session %s", ui.Bold(sess.Name))
				ui.Dim("  branch:   %s (from %s)", sess.Branch, sess.ParentBranch)
				ui.Dim("  worktree: %s", sess.WorktreePath)
				fmt.Fprintln(cmd.OutOrStdout(), sess.WorktreePath)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&createOpts.BaseBranch, "base", "", "Branch to start from (default: the repository's default branch)")
	cmd.Flags().StringVar(&createOpts.TaskDescription, "task", "", "Describe what the session is for")
	cmd.Flags().BoolVar(&createOpts.SkipPermissions, "dangerously-skip-permissions", false, "Record that agent permission prompts are bypassed")
	cmd.Flags().StringVar(&createOpts.SandboxProfile, "sandbox", "", "Sandbox profile to record for the session")
	return cmd
}
