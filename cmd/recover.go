package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/recovery"
	"github.com/zhubert/para/ui"
)

func newRecoverCmd(opts *globalOptions) *cobra.Command {
	var force, rename, withBackup bool

	cmd := &cobra.Command{
		Use:   "recover [name]",
		Short: "Restore an archived session, or list archives",
		Long: `Without a name, list archived sessions newest first. With a session name
the most recent archive of that session is restored; a full archived
branch name selects a specific one.

A session or directory already occupying the target blocks recovery
unless --force is given. --backup saves what --force replaces.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeArchives(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				svc := recovery.NewService(a.manager)
				if len(args) == 0 {
					return listArchives(cmd, svc)
				}

				ropts := recovery.DefaultOptions()
				ropts.ForceOverwrite = force
				ropts.PreserveOriginalName = !rename
				ropts.CreateBackup = withBackup

				result, err := svc.Recover(cmd.Context(), args[0], ropts)
				var conflict *recovery.ConflictError
				if errors.As(err, &conflict) {
					for _, c := range conflict.Conflicts {
						ui.Fail("%s", c)
					}
					return fmt.Errorf("recovery of %s blocked; use --force to overwrite or --rename to recover under a new name", conflict.Name)
				}
				if err != nil {
					return err
				}

				for _, w := range result.Warnings {
					ui.Warn("%s", w)
				}
				if result.BackupPath != "" {
					ui.Dim("  backup written to %s", result.BackupPath)
				}
				ui.Success("Recovered %s from %s", ui.Bold(result.Session.Name), result.SourceArchive)
				ui.Dim("  branch:   %s", result.Session.Branch)
				fmt.Fprintln(cmd.OutOrStdout(), result.Session.WorktreePath)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing session or directory")
	cmd.Flags().BoolVar(&rename, "rename", false, "Recover under <name>_<timestamp> instead of the original name")
	cmd.Flags().BoolVar(&withBackup, "backup", false, "Back up what --force overwrites")
	return cmd
}

func listArchives(cmd *cobra.Command, svc *recovery.Service) error {
	infos, err := svc.ListRecoverable(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		ui.Info("No archived sessions.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tARCHIVED\tCOMMIT\tBRANCH")
	for _, info := range infos {
		commit := info.CommitHash
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			info.OriginalName, info.Timestamp.Local().Format(time.DateTime), commit, info.ArchivedBranch)
	}
	return w.Flush()
}
