package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/state"
	"github.com/zhubert/para/ui"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [name] [active|review]",
		Short: "Show or change a session's status",
		Long: `Print a session's status, or set it when a new status follows the name.
Without arguments, the status of the session whose worktree holds the
current directory is printed. The name must match exactly.`,
		Args: cobra.RangeArgs(0, 2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 1 {
				return []string{"active", "review"}, cobra.ShellCompDirectiveNoFileComp
			}
			return completeSessions(opts)(cmd, args, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				cur, err := sessionFor(cmd.Context(), a, opts, args)
				if err != nil {
					return err
				}

				if len(args) < 2 {
					fmt.Fprintln(cmd.OutOrStdout(), cur.Status)
					return nil
				}

				next, err := state.ParseStatus(args[1])
				if err != nil {
					return err
				}
				if next == state.StatusCancelled {
					return fmt.Errorf("use 'para cancel %s' to cancel a session", cur.Name)
				}
				sess, err := a.manager.UpdateStatus(cur.Name, next)
				if err != nil {
					return err
				}
				ui.Success("Session %s is now %s", ui.Bold(sess.Name), ui.StatusColor(string(sess.Status)))
				return nil
			})
		},
	}
}
