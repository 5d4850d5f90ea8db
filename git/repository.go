package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zhubert/para/logger"
)

// DiscoverRepository returns the top-level directory of the working tree
// containing dir. Inside a linked worktree this is the worktree root.
func (s *GitService) DiscoverRepository(ctx context.Context, dir string) (string, error) {
	root, err := s.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w at %s: %w", ErrRepositoryNotFound, dir, err)
	}
	if root == "" {
		return "", fmt.Errorf("%w at %s", ErrRepositoryNotFound, dir)
	}
	return filepath.Clean(root), nil
}

// MainRepositoryRoot returns the root of the primary worktree, even when
// dir is inside a linked worktree. Session state and worktrees hang off
// this directory.
func (s *GitService) MainRepositoryRoot(ctx context.Context, dir string) (string, error) {
	top, err := s.DiscoverRepository(ctx, dir)
	if err != nil {
		return "", err
	}

	common, err := s.run(ctx, top, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", fmt.Errorf("%w at %s: %w", ErrRepositoryNotFound, dir, err)
	}
	if !filepath.IsAbs(common) {
		common = filepath.Join(top, common)
	}
	common = filepath.Clean(common)

	if filepath.Base(common) != ".git" {
		// Bare repository or separate git dir: the toplevel is the best we have.
		return top, nil
	}
	return filepath.Dir(common), nil
}

// IsRepository reports whether dir is inside a git working tree.
func (s *GitService) IsRepository(ctx context.Context, dir string) bool {
	out, err := s.run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// DefaultBranch returns the repository's main line of development:
// origin's HEAD when a remote is configured, otherwise the first of
// main, master or develop that exists locally.
func (s *GitService) DefaultBranch(ctx context.Context, repoPath string) (string, error) {
	if ref, err := s.run(ctx, repoPath, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		if after, ok := strings.CutPrefix(ref, "refs/remotes/origin/"); ok && after != "" {
			return after, nil
		}
	}

	for _, candidate := range []string{"main", "master", "develop"} {
		if s.BranchExists(ctx, repoPath, candidate) {
			return candidate, nil
		}
	}

	logger.WithComponent("git").Debug("no default branch found", "repoPath", repoPath)
	return "", fmt.Errorf("%w: no default branch in %s", ErrBranchNotFound, repoPath)
}

// CurrentBranch returns the checked-out branch in dir, or "HEAD" when
// detached.
func (s *GitService) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return s.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// CommitHash resolves ref to a full commit hash.
func (s *GitService) CommitHash(ctx context.Context, repoPath, ref string) (string, error) {
	hash, err := s.run(ctx, repoPath, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		var vcsErr *VcsError
		if errors.As(err, &vcsErr) && vcsErr.Stderr == "" {
			return "", fmt.Errorf("%w: %s", ErrBranchNotFound, ref)
		}
		return "", err
	}
	return hash, nil
}
