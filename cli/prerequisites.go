// Package cli checks the external tools para shells out to.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	pexec "github.com/zhubert/para/exec"
)

// versionTimeout bounds each version probe.
const versionTimeout = 5 * time.Second

// Prerequisite is an external command para uses.
type Prerequisite struct {
	Name        string   // command name, e.g. "git"
	Required    bool     // whether para can run without it
	Description string
	InstallURL  string
	VersionArgs []string // arguments that print a version; defaults to --version
}

// DefaultPrerequisites returns the tools para looks for. Docker is only
// needed for container-typed sessions.
func DefaultPrerequisites() []Prerequisite {
	return []Prerequisite{
		{
			Name:        "git",
			Required:    true,
			Description: "Git version control (2.17+ for worktree move/remove)",
			InstallURL:  "https://git-scm.com/downloads",
		},
		{
			Name:        "docker",
			Required:    false,
			Description: "Docker (optional, for container sessions)",
			InstallURL:  "https://docs.docker.com/get-docker/",
			VersionArgs: []string{"version", "--format", "{{.Client.Version}}"},
		},
	}
}

// CheckResult is the outcome of checking one prerequisite.
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string
	Version      string
	Error        error
}

// Checker looks tools up on PATH and asks them for their version.
type Checker struct {
	executor pexec.CommandExecutor
	lookPath func(string) (string, error)
}

// NewChecker returns a Checker using the real PATH and executor.
func NewChecker() *Checker {
	return &Checker{executor: pexec.NewRealExecutor(), lookPath: exec.LookPath}
}

// NewCheckerWithExecutor returns a Checker with injected lookups.
func NewCheckerWithExecutor(executor pexec.CommandExecutor, lookPath func(string) (string, error)) *Checker {
	return &Checker{executor: executor, lookPath: lookPath}
}

// Check verifies that a tool is on PATH and records its version.
func (c *Checker) Check(ctx context.Context, prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := c.lookPath(prereq.Name)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", prereq.Name)
		return result
	}
	result.Found = true
	result.Path = path
	result.Version = c.version(ctx, prereq)
	return result
}

// CheckAll checks every prerequisite in order.
func (c *Checker) CheckAll(ctx context.Context, prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = c.Check(ctx, prereq)
	}
	return results
}

// ValidateRequired returns an error naming every missing required tool.
func (c *Checker) ValidateRequired(ctx context.Context, prereqs []Prerequisite) error {
	var missing []string
	for _, prereq := range prereqs {
		if !prereq.Required {
			continue
		}
		if _, err := c.lookPath(prereq.Name); err != nil {
			missing = append(missing, fmt.Sprintf("  - %s (%s)\n    Install: %s",
				prereq.Name, prereq.Description, prereq.InstallURL))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools:\n%s", strings.Join(missing, "\n"))
	}
	return nil
}

// version returns the first line of the tool's version output, or ""
// when the probe fails.
func (c *Checker) version(ctx context.Context, prereq Prerequisite) string {
	args := prereq.VersionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := c.executor.Output(ctx, "", prereq.Name, args...)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if len(line) > 100 {
		line = line[:100] + "..."
	}
	return line
}

// FormatCheckResults renders results for `para doctor`.
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.Found {
			status = "○"
			if r.Prerequisite.Required {
				status = "✗"
			}
		}

		fmt.Fprintf(&sb, "  %s %s", status, r.Prerequisite.Name)
		switch {
		case r.Found && r.Version != "":
			fmt.Fprintf(&sb, " (%s)", r.Version)
		case !r.Found && r.Prerequisite.Required:
			sb.WriteString(" [REQUIRED]")
		case !r.Found:
			sb.WriteString(" [optional]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
