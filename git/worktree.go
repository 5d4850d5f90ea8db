package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhubert/para/logger"
)

// Worktree is one entry of `git worktree list`.
type Worktree struct {
	Path      string
	Branch    string // short branch name, or "HEAD" when detached
	Commit    string
	IsCurrent bool // the worktree the listing was requested from
	IsBare    bool
	Prunable  bool // git considers the administrative entry stale
}

// CreateWorktree checks branch out into a new worktree at path. An
// existing branch is reused; otherwise it is created from startPoint
// (HEAD when empty). It fails if path already exists.
func (s *GitService) CreateWorktree(ctx context.Context, repoPath, branch, path, startPoint string) error {
	log := logger.WithComponent("git")
	if err := ValidateBranchName(branch); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("worktree path already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create worktree parent directory: %w", err)
	}

	args := []string{"worktree", "add", path, branch}
	if !s.BranchExists(ctx, repoPath, branch) {
		if startPoint == "" {
			startPoint = "HEAD"
		}
		args = []string{"worktree", "add", "-b", branch, path, startPoint}
	}

	start := time.Now()
	log.Info("creating git worktree", "branch", branch, "path", path, "startPoint", startPoint)
	if _, err := s.run(ctx, repoPath, args...); err != nil {
		log.Error("failed to create worktree", "branch", branch, "path", path, "error", err)
		return err
	}

	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return fmt.Errorf("worktree at %s is missing its .git file after creation", path)
	}
	log.Debug("git worktree created", "path", path, "duration", time.Since(start))
	return nil
}

// RemoveWorktree removes the worktree at path. With force, uncommitted
// changes and untracked files are discarded.
func (s *GitService) RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	if _, err := s.run(ctx, repoPath, args...); err != nil {
		return err
	}
	logger.WithComponent("git").Info("removed worktree", "path", path, "force", force)
	return nil
}

// PruneWorktrees drops administrative entries for worktrees whose
// directories are gone.
func (s *GitService) PruneWorktrees(ctx context.Context, repoPath string) error {
	_, err := s.run(ctx, repoPath, "worktree", "prune")
	return err
}

// ListWorktrees returns every worktree of the repository containing dir.
func (s *GitService) ListWorktrees(ctx context.Context, dir string) ([]Worktree, error) {
	out, err := s.runRaw(ctx, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	worktrees := parseWorktreeList(out)

	if top, err := s.DiscoverRepository(ctx, dir); err == nil {
		for i := range worktrees {
			worktrees[i].IsCurrent = SamePath(worktrees[i].Path, top)
		}
	}
	return worktrees, nil
}

func parseWorktreeList(out string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "":
			flush()
		case "worktree":
			flush()
			current = &Worktree{Path: filepath.Clean(value)}
		case "HEAD":
			if current != nil {
				current.Commit = value
			}
		case "branch":
			if current != nil {
				current.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		case "detached":
			if current != nil {
				current.Branch = "HEAD"
			}
		case "bare":
			if current != nil {
				current.IsBare = true
			}
		case "prunable":
			if current != nil {
				current.Prunable = true
			}
		}
	}
	flush()
	return worktrees
}

// CleanupStaleWorktrees removes worktrees whose directory is missing or
// no longer holds a .git file, then prunes git's bookkeeping. It returns
// the removed paths.
func (s *GitService) CleanupStaleWorktrees(ctx context.Context, repoPath string) ([]string, error) {
	log := logger.WithComponent("git")

	worktrees, err := s.ListWorktrees(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	var removed []string
	for i, wt := range worktrees {
		// The first entry is the main worktree.
		if i == 0 || wt.IsBare {
			continue
		}
		if !wt.Prunable && isValidWorktree(wt.Path) {
			continue
		}
		if _, err := s.run(ctx, repoPath, "worktree", "remove", "--force", wt.Path); err != nil {
			log.Debug("worktree remove failed, relying on prune", "path", wt.Path, "error", err)
		}
		removed = append(removed, wt.Path)
	}

	if err := s.PruneWorktrees(ctx, repoPath); err != nil {
		return removed, err
	}
	if len(removed) > 0 {
		log.Info("cleaned up stale worktrees", "count", len(removed))
	}
	return removed, nil
}

func isValidWorktree(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// SamePath reports whether two paths refer to the same location, after
// cleaning and resolving symlinks where possible.
func SamePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(infoA, infoB)
	}
	return resolvePath(a) == resolvePath(b)
}

func resolvePath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}
