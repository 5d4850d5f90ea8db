package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/cleanup"
	"github.com/zhubert/para/recovery"
	"github.com/zhubert/para/ui"
)

func newCleanCmd(opts *globalOptions) *cobra.Command {
	var archives, yes bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove orphaned worktrees and containers, or old archives",
		Long: `Remove worktrees under the subtrees directory and containers that no
session record refers to. Orphaned worktrees with uncommitted changes are
kept.

With --archives, delete archived branches older than
session.auto_cleanup_days and beyond archive.max_archives instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if archives {
					return cleanArchives(cmd, a, yes)
				}
				return cleanOrphans(cmd, a, yes)
			})
		},
	}

	cmd.Flags().BoolVar(&archives, "archives", false, "Delete old archived branches")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

func cleanOrphans(cmd *cobra.Command, a *app, yes bool) error {
	ok, err := confirmAction(yes, "Remove orphaned worktrees and containers?")
	if err != nil || !ok {
		if err == nil {
			ui.Info("Aborted.")
		}
		return err
	}

	var containers cleanup.Containers
	if a.containers != nil {
		containers = a.containers
	}
	res, err := cleanup.New(a.manager, containers).Run(cmd.Context())
	if err != nil {
		ui.Warn("cleanup incomplete: %v", err)
	}

	removed := len(res.ContainersRemoved) + len(res.WorktreesRemoved) + len(res.StalePruned)
	for _, p := range res.WorktreesRemoved {
		ui.Dim("  removed worktree %s", p)
	}
	for _, p := range res.StalePruned {
		ui.Dim("  pruned stale worktree %s", p)
	}
	for _, c := range res.ContainersRemoved {
		ui.Dim("  removed container %s", c)
	}
	for _, p := range res.WorktreesSkipped {
		ui.Warn("Kept %s: it has uncommitted changes", p)
	}
	if removed == 0 {
		ui.Info("Nothing to clean.")
		return nil
	}
	ui.Success("Removed %d orphaned item(s)", removed)
	return nil
}

func cleanArchives(cmd *cobra.Command, a *app, yes bool) error {
	cfg := a.manager.Config()
	if cfg.ArchiveRetention() == 0 && cfg.Archive.MaxArchives == 0 {
		ui.Info("Archive cleanup is disabled (auto_cleanup_days and max_archives are 0).")
		return nil
	}

	prompt := fmt.Sprintf("Delete archives older than %d day(s) and beyond the newest %d?",
		cfg.Session.AutoCleanupDays, cfg.Archive.MaxArchives)
	ok, err := confirmAction(yes, prompt)
	if err != nil || !ok {
		if err == nil {
			ui.Info("Aborted.")
		}
		return err
	}

	aged, limited, err := recovery.NewService(a.manager).AutoCleanup(cmd.Context())
	if err != nil {
		return err
	}
	if aged+limited == 0 {
		ui.Info("No archives to delete.")
		return nil
	}
	ui.Success("Deleted %d archive(s): %d expired, %d over the limit", aged+limited, aged, limited)
	return nil
}
