// Package cmd implements the para command line.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zhubert/para/logger"
)

var version, commit, date = "dev", "none", "unknown"

// SetVersionInfo sets version information from ldflags.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	debug bool
	dir   string
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "para",
		Short: "Parallel development sessions in isolated git worktrees",
		Long: `para runs several lines of work on one repository at once. Each session
gets its own branch and worktree under .para/worktrees. Cancelled sessions
are archived as branches and can be recovered later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				logger.SetDebug(true)
			}
		},
	}
	root.Version = version
	root.SetVersionTemplate(versionTemplate())

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "Run as if para was started in `path`")

	root.SetGlobalNormalizationFunc(normalizeFlagName)

	root.AddCommand(
		newStartCmd(opts),
		newListCmd(opts),
		newCancelCmd(opts),
		newStatusCmd(opts),
		newResumeCmd(opts),
		newRecoverCmd(opts),
		newCleanCmd(opts),
		newMigrateCmd(opts),
		newDoctorCmd(opts),
		newCompleteCmd(opts),
	)
	return root
}

// normalizeFlagName accepts underscores in long flags, so --no_archive
// and --no-archive are the same flag.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute runs the root command.
func Execute() error {
	defer logger.Close()
	return NewRootCmd().Execute()
}

func versionTemplate() string {
	if commit != "none" && commit != "" {
		return fmt.Sprintf("para %s\n  commit: %s\n  built:  %s\n", version, commit, date)
	}
	return fmt.Sprintf("para %s\n", version)
}
