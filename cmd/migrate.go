package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/migrate"
	"github.com/zhubert/para/ui"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	var validate bool
	var rollback string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert session state written by older versions",
		Long: `Convert legacy session files in the state directory to the current
format. The state directory is backed up to migration/ first, and each
step is appended to migration/migration.log.

--validate checks the current records without changing anything.
--rollback restores the state directory from a migration backup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				m := migrate.NewMigrator(a.manager.Store(), a.manager.RepoRoot(), a.manager.Clock())
				switch {
				case rollback != "":
					if err := m.Rollback(rollback); err != nil {
						return err
					}
					ui.Success("Restored state directory from %s", rollback)
					return nil
				case validate:
					return printValidation(cmd, m)
				}

				needed, err := m.NeedsMigration()
				if err != nil {
					return err
				}
				if !needed {
					ui.Info("Session state is up to date.")
					return nil
				}

				report, err := m.Migrate()
				if err != nil {
					return err
				}
				ui.Dim("  backup: %s", report.BackupPath)
				for _, name := range report.Migrated {
					ui.Success("Migrated %s", name)
				}
				for _, f := range report.Failed {
					ui.Fail("%s", f)
				}
				ui.Info("%d migrated, %d failed, %d legacy file(s) removed. Log: %s",
					len(report.Migrated), len(report.Failed), len(report.LegacyFilesRemoved), m.LogPath())
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d legacy file(s) could not be migrated", len(report.Failed))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Check current records without migrating")
	cmd.Flags().StringVar(&rollback, "rollback", "", "Restore the state directory from backup `path`")
	cmd.MarkFlagsMutuallyExclusive("validate", "rollback")
	return cmd
}

func printValidation(cmd *cobra.Command, m *migrate.Migrator) error {
	report, err := m.Validate()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d record(s), %d valid\n", report.Total, report.Valid)
	for _, inv := range report.Invalid {
		ui.Fail("%s", inv)
	}
	for _, w := range report.Warnings {
		ui.Warn("%s", w)
	}
	if len(report.Invalid) > 0 {
		return fmt.Errorf("%d invalid record(s)", len(report.Invalid))
	}
	return nil
}
