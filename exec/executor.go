// Package exec runs external commands behind an interface so the git
// adapter can be driven by canned responses in tests.
package exec

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// CommandExecutor runs a named program in a working directory.
type CommandExecutor interface {
	// Run returns stdout and stderr separately along with the exit error.
	Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error)

	// Output returns stdout only.
	Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// CombinedOutput returns stdout and stderr interleaved.
	CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// RealExecutor runs commands with os/exec. Env entries are appended to
// the parent environment.
type RealExecutor struct {
	Env []string
}

// NewRealExecutor returns a RealExecutor that never lets git block on a
// credential or editor prompt.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{Env: []string{"GIT_TERMINAL_PROMPT=0", "GIT_EDITOR=true"}}
}

func (e *RealExecutor) command(ctx context.Context, dir, name string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd
}

// Run executes a command and returns stdout, stderr, and any error.
func (e *RealExecutor) Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error) {
	cmd := e.command(ctx, dir, name, args)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Output executes a command and returns its stdout.
func (e *RealExecutor) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	return e.command(ctx, dir, name, args).Output()
}

// CombinedOutput executes a command and returns stdout and stderr together.
func (e *RealExecutor) CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	return e.command(ctx, dir, name, args).CombinedOutput()
}

var _ CommandExecutor = (*RealExecutor)(nil)
