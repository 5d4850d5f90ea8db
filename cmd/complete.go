package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/completion"
)

func newCompleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "_complete sessions|archives",
		Short:     "Print completion candidates",
		Hidden:    true,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"sessions", "archives"},
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := candidates(cmd, opts, args[0])
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// candidates never fails on repository problems so shells stay quiet
// outside a repository.
func candidates(cmd *cobra.Command, opts *globalOptions, kind string) ([]string, error) {
	if kind != "sessions" && kind != "archives" {
		return nil, fmt.Errorf("unknown completion kind %q", kind)
	}
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return nil, nil
	}
	defer a.Close()

	c := completion.New(a.manager)
	if kind == "archives" {
		return c.ArchivedNames(cmd.Context()), nil
	}
	return c.SessionNames(cmd.Context()), nil
}

func completeSessions(opts *globalOptions) cobra.CompletionFunc {
	return completeKind(opts, "sessions")
}

func completeArchives(opts *globalOptions) cobra.CompletionFunc {
	return completeKind(opts, "archives")
}

func completeKind(opts *globalOptions, kind string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		names, _ := candidates(cmd, opts, kind)
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
