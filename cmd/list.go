package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/state"
	"github.com/zhubert/para/ui"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				sessions, err := a.manager.List()
				if err != nil {
					return err
				}
				if asJSON {
					if sessions == nil {
						sessions = []*state.Session{}
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(sessions)
				}
				if len(sessions) == 0 {
					ui.Info("No sessions. Start one with 'para start'.")
					return nil
				}
				return printSessions(cmd, sessions)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")
	return cmd
}

// printSessions aligns plain text first and colors the status afterwards,
// since tabwriter counts escape sequences as cell width.
func printSessions(cmd *cobra.Command, sessions []*state.Session) error {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tBRANCH\tCREATED\tWORKTREE")
	for _, s := range sessions {
		path := s.WorktreePath
		if _, err := os.Stat(path); err != nil {
			path += " (missing)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Status, s.Branch, s.CreatedAt.Local().Format(time.DateTime), path)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	lines := strings.SplitAfter(buf.String(), "\n")
	col := strings.Index(lines[0], "STATUS")
	for i, s := range sessions {
		line, status := lines[i+1], string(s.Status)
		if col >= 0 && len(line) >= col && strings.HasPrefix(line[col:], status) {
			lines[i+1] = line[:col] + ui.StatusColor(status) + line[col+len(status):]
		}
	}
	_, err := io.WriteString(cmd.OutOrStdout(), strings.Join(lines, ""))
	return err
}
