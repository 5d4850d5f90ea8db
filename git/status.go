package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhubert/para/logger"
)

// ErrEmptyCommitMessage is returned when a commit message is blank after trimming.
var ErrEmptyCommitMessage = errors.New("commit message cannot be empty")

// ChangedFiles returns the paths reported by `git status --porcelain`.
func (s *GitService) ChangedFiles(ctx context.Context, worktreePath string) ([]string, error) {
	out, err := s.runRaw(ctx, worktreePath, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	var files []string
	// Leading spaces are part of the porcelain status code, so only the
	// line ending is trimmed.
	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) <= 3 {
			continue
		}
		name := line[3:]
		if _, to, ok := strings.Cut(name, " -> "); ok {
			name = to
		}
		files = append(files, strings.Trim(name, `"`))
	}
	return files, nil
}

// HasUncommittedChanges reports staged, unstaged or untracked changes.
func (s *GitService) HasUncommittedChanges(ctx context.Context, worktreePath string) (bool, error) {
	files, err := s.ChangedFiles(ctx, worktreePath)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// IsCleanWorkingTree reports whether the worktree has no changes at all,
// checking status as well as the index and working-tree diffs.
func (s *GitService) IsCleanWorkingTree(ctx context.Context, worktreePath string) (bool, error) {
	dirty, err := s.HasUncommittedChanges(ctx, worktreePath)
	if err != nil {
		return false, err
	}
	if dirty {
		return false, nil
	}
	if !s.succeeds(ctx, worktreePath, "diff", "--quiet") {
		return false, nil
	}
	if !s.succeeds(ctx, worktreePath, "diff", "--cached", "--quiet") {
		return false, nil
	}
	return true, nil
}

// StageAllChanges stages every change, including deletions and untracked files.
func (s *GitService) StageAllChanges(ctx context.Context, worktreePath string) error {
	if _, err := s.run(ctx, worktreePath, "add", "-A"); err != nil {
		var vcsErr *VcsError
		if errors.As(err, &vcsErr) && strings.Contains(vcsErr.Stderr, "does not have a commit checked out") {
			return fmt.Errorf("%w (a nested git repository inside the worktree cannot be staged)", err)
		}
		return err
	}
	return nil
}

// Commit records the staged changes. Each message line is trimmed and
// surrounding blank lines dropped.
func (s *GitService) Commit(ctx context.Context, worktreePath, message string) error {
	message = SanitizeCommitMessage(message)
	if message == "" {
		return ErrEmptyCommitMessage
	}
	if _, err := s.run(ctx, worktreePath, "commit", "-m", message); err != nil {
		return err
	}
	logger.WithComponent("git").Info("committed changes", "worktree", worktreePath)
	return nil
}

// SanitizeCommitMessage trims whitespace from each line and from the
// message as a whole.
func SanitizeCommitMessage(message string) string {
	lines := strings.Split(message, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
