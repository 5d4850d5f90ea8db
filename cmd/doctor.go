package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/cli"
	"github.com/zhubert/para/config"
	"github.com/zhubert/para/git"
	"github.com/zhubert/para/migrate"
	"github.com/zhubert/para/ui"
)

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites and repository setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			checker := cli.NewChecker()
			prereqs := cli.DefaultPrerequisites()
			fmt.Fprint(out, cli.FormatCheckResults(checker.CheckAll(cmd.Context(), prereqs)))
			if err := checker.ValidateRequired(cmd.Context(), prereqs); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nConfig: %s\n", cfg.FilePath())

			dir := opts.dir
			if dir == "" {
				dir = "."
			}
			if !git.NewGitService().IsRepository(cmd.Context(), dir) {
				fmt.Fprintln(out, "Repository: (not inside a git repository)")
				return nil
			}

			return withApp(cmd, opts, func(a *app) error {
				m := a.manager
				fmt.Fprintf(out, "Repository: %s\n", m.RepoRoot())
				fmt.Fprintf(out, "State:      %s\n", m.Store().Dir())
				fmt.Fprintf(out, "Worktrees:  %s\n", m.SubtreesDir())

				sessions, err := m.List()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Sessions:   %d\n", len(sessions))

				needed, err := migrate.NewMigrator(m.Store(), m.RepoRoot(), m.Clock()).NeedsMigration()
				if err != nil {
					return err
				}
				if needed {
					ui.Warn("Legacy session state found; run 'para migrate'")
				}
				return nil
			})
		},
	}
}
