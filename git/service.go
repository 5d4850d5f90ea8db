package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhubert/para/clock"
	pexec "github.com/zhubert/para/exec"
)

var (
	// ErrRepositoryNotFound is returned when a directory is not inside a git repository.
	ErrRepositoryNotFound = errors.New("git repository not found")

	// ErrBranchNotFound is returned when a named branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrInvalidBranchName is returned for names git would reject.
	ErrInvalidBranchName = errors.New("invalid branch name")
)

// VcsError reports a failed git invocation with git's stderr verbatim.
type VcsError struct {
	Args   []string
	Dir    string
	Stderr string
	Err    error
}

func (e *VcsError) Error() string {
	cmd := "git"
	if len(e.Args) > 0 {
		cmd = "git " + e.Args[0]
	}
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed in %s: %v", cmd, e.Dir, e.Err)
	}
	return fmt.Sprintf("%s failed in %s: %s: %v", cmd, e.Dir, e.Stderr, e.Err)
}

func (e *VcsError) Unwrap() error { return e.Err }

// GitService runs git commands through an injected executor.
type GitService struct {
	executor pexec.CommandExecutor
	clock    clock.Clock
}

// NewGitService creates a GitService backed by the real executor.
func NewGitService() *GitService {
	return &GitService{executor: pexec.NewRealExecutor(), clock: clock.Real()}
}

// NewGitServiceWithExecutor creates a GitService with a custom executor.
func NewGitServiceWithExecutor(exec pexec.CommandExecutor) *GitService {
	return &GitService{executor: exec, clock: clock.Real()}
}

// WithClock sets the clock used for archive timestamps and returns s.
func (s *GitService) WithClock(c clock.Clock) *GitService {
	s.clock = c
	return s
}

// run executes git in dir and returns stdout with surrounding
// whitespace trimmed.
func (s *GitService) run(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := s.runRaw(ctx, dir, args...)
	return strings.TrimSpace(out), err
}

// runRaw executes git in dir and returns stdout untouched.
func (s *GitService) runRaw(ctx context.Context, dir string, args ...string) (string, error) {
	stdout, stderr, err := s.executor.Run(ctx, dir, "git", args...)
	if err != nil {
		return "", &VcsError{
			Args:   args,
			Dir:    dir,
			Stderr: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
	}
	return string(stdout), nil
}

// succeeds runs a git predicate such as rev-parse --verify.
func (s *GitService) succeeds(ctx context.Context, dir string, args ...string) bool {
	_, _, err := s.executor.Run(ctx, dir, "git", args...)
	return err == nil
}
