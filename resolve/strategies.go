package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/para/git"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/session"
	"github.com/zhubert/para/state"
)

var errNoMatch = errors.New("no match")

// ExactStrategy matches a record by its full name. When the recorded
// worktree is gone it looks for a live worktree on the session's branch,
// then for one whose directory name starts with the session name, and
// saves the repaired path.
type ExactStrategy struct {
	manager *session.Manager
}

func (s *ExactStrategy) Name() string { return "exact" }

func (s *ExactStrategy) TryResolve(ctx context.Context, query string) (*Resolution, error) {
	sess, err := s.manager.Get(query)
	if err != nil {
		return nil, err
	}
	res := &Resolution{
		Name:         sess.Name,
		Session:      sess,
		WorktreePath: sess.WorktreePath,
		Branch:       sess.Branch,
		Strategy:     s.Name(),
	}
	if isDir(sess.WorktreePath) {
		return res, nil
	}

	path, err := s.findLiveWorktree(ctx, sess)
	if err != nil {
		return nil, err
	}
	logger.WithSession(sess.Name).Info("repairing worktree path", "old", sess.WorktreePath, "new", path)
	sess.WorktreePath = path
	if err := s.manager.Store().Save(sess); err != nil {
		return nil, err
	}
	res.WorktreePath = path
	res.Repaired = true
	return res, nil
}

func (s *ExactStrategy) findLiveWorktree(ctx context.Context, sess *state.Session) (string, error) {
	worktrees, err := s.manager.Git().ListWorktrees(ctx, s.manager.RepoRoot())
	if err != nil {
		return "", err
	}
	live := liveWorktrees(worktrees, s.manager.RepoRoot())

	for _, wt := range live {
		if wt.Branch == sess.Branch {
			return wt.Path, nil
		}
	}
	for _, wt := range live {
		if strings.HasPrefix(filepath.Base(wt.Path), sess.Name) {
			return wt.Path, nil
		}
	}
	return "", fmt.Errorf("%w: worktree for session %s is missing", state.ErrSessionNotFound, sess.Name)
}

// PartialStrategy matches the newest record whose name starts with the
// query and then resolves it exactly.
type PartialStrategy struct {
	manager *session.Manager
	exact   *ExactStrategy
}

func (s *PartialStrategy) Name() string { return "partial" }

func (s *PartialStrategy) TryResolve(ctx context.Context, query string) (*Resolution, error) {
	sessions, err := s.manager.List()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.Name == query || !strings.HasPrefix(sess.Name, query) {
			continue
		}
		res, err := s.exact.TryResolve(ctx, sess.Name)
		if err != nil {
			logger.WithComponent("resolve").Debug("skipping prefix match", "query", query, "name", sess.Name, "error", err)
			continue
		}
		res.Strategy = s.Name()
		return res, nil
	}
	return nil, errNoMatch
}

// WorktreeStrategy scans live worktrees for a branch or directory name
// containing the query.
type WorktreeStrategy struct {
	manager *session.Manager
}

func (s *WorktreeStrategy) Name() string { return "worktree" }

func (s *WorktreeStrategy) TryResolve(ctx context.Context, query string) (*Resolution, error) {
	worktrees, err := s.manager.Git().ListWorktrees(ctx, s.manager.RepoRoot())
	if err != nil {
		return nil, err
	}

	for _, wt := range liveWorktrees(worktrees, s.manager.RepoRoot()) {
		if !strings.Contains(wt.Branch, query) && !strings.Contains(filepath.Base(wt.Path), query) {
			continue
		}
		res := &Resolution{
			Name:         query,
			WorktreePath: wt.Path,
			Branch:       wt.Branch,
			Strategy:     s.Name(),
		}
		sess, err := s.manager.FindByPath(wt.Path)
		if err != nil {
			logger.WithComponent("resolve").Debug("lookup by path failed", "path", wt.Path, "error", err)
		}
		if sess == nil {
			if sess, err = s.manager.FindByBranch(wt.Branch); err != nil {
				logger.WithComponent("resolve").Debug("lookup by branch failed", "branch", wt.Branch, "error", err)
			}
		}
		if sess != nil {
			res.Name = sess.Name
			res.Session = sess
		}
		return res, nil
	}
	return nil, errNoMatch
}

// liveWorktrees drops the main worktree and entries whose directory is
// gone.
func liveWorktrees(worktrees []git.Worktree, repoRoot string) []git.Worktree {
	var live []git.Worktree
	for _, wt := range worktrees {
		if wt.IsBare || wt.Prunable || git.SamePath(wt.Path, repoRoot) || !isDir(wt.Path) {
			continue
		}
		live = append(live, wt)
	}
	return live
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
