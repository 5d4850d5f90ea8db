package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/resolve"
	"github.com/zhubert/para/ui"
)

func newResumeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [query]",
		Short: "Print the worktree path of a session",
		Long: `Find a session by exact name, name prefix, or a branch or directory that
contains the query, and print its worktree path:
  cd "$(para resume feat)"

A session whose worktree has moved is repaired to point at it. Without a
query, the session the current directory belongs to is used.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeSessions(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if len(args) == 0 {
					sess, err := sessionFor(cmd.Context(), a, opts, nil)
					if err != nil {
						return err
					}
					ui.Info("Resuming %s", ui.Bold(sess.Name))
					fmt.Fprintln(cmd.OutOrStdout(), sess.WorktreePath)
					return nil
				}

				res, err := resolve.New(a.manager).Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				switch {
				case res.Session == nil:
					ui.Warn("Worktree %s has no session record", res.WorktreePath)
				case res.Repaired:
					ui.Warn("Session %s pointed at a missing worktree; now using %s", res.Name, res.WorktreePath)
				default:
					ui.Info("Resuming %s", ui.Bold(res.Name))
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.WorktreePath)
				return nil
			})
		},
	}
}
