// Package cleanup removes resources left behind by sessions whose record
// is gone: containers named after them and their worktrees under the
// subtrees directory. It runs at most once an hour, in the background of
// an ordinary command.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhubert/para/container"
	"github.com/zhubert/para/git"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/session"
	"github.com/zhubert/para/state"
)

const (
	// MarkerFileName records when cleanup last ran, in the state dir.
	MarkerFileName = ".last_container_cleanup"

	// Interval is how long a marker stays fresh.
	Interval = time.Hour
)

// Containers lists and removes session containers.
type Containers interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, name string, force bool) error
}

// Result lists what a run removed and what it left alone.
type Result struct {
	ContainersRemoved []string
	WorktreesRemoved  []string
	// WorktreesSkipped holds orphaned worktrees kept because they have
	// uncommitted changes.
	WorktreesSkipped []string
	StalePruned      []string
}

// Cleaner finds and removes orphans for one repository.
type Cleaner struct {
	manager    *session.Manager
	containers Containers
}

// New returns a Cleaner. containers may be nil, which skips container
// cleanup.
func New(m *session.Manager, containers Containers) *Cleaner {
	return &Cleaner{manager: m, containers: containers}
}

// MarkerPath returns the marker file path.
func (c *Cleaner) MarkerPath() string {
	return filepath.Join(c.manager.Store().Dir(), MarkerFileName)
}

// ShouldRun reports whether the marker is missing or older than Interval.
func (c *Cleaner) ShouldRun() bool {
	info, err := os.Stat(c.MarkerPath())
	if err != nil {
		return true
	}
	return c.manager.Clock().Now().Sub(info.ModTime()) >= Interval
}

func (c *Cleaner) touch() error {
	path := c.MarkerPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	now := c.manager.Clock().Now()
	if err := os.WriteFile(path, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return err
	}
	return os.Chtimes(path, now, now)
}

// StartBackground runs cleanup on its own goroutine when it is due. The
// marker is touched before the goroutine starts so concurrent invocations
// do not pile up. It returns nil when cleanup was not due, otherwise a
// channel that yields the result once and is then closed.
func (c *Cleaner) StartBackground(ctx context.Context) <-chan *Result {
	log := logger.WithComponent("cleanup")
	if !c.ShouldRun() {
		return nil
	}
	if err := c.touch(); err != nil {
		log.Debug("cannot write cleanup marker", "error", err)
		return nil
	}

	done := make(chan *Result, 1)
	go func() {
		defer close(done)
		res, err := c.Run(ctx)
		if err != nil {
			log.Warn("background cleanup failed", "error", err)
		}
		done <- res
	}()
	return done
}

// Run removes orphaned containers and orphaned clean worktrees
// concurrently. Individual removals are best-effort; only a failure to
// enumerate is returned.
func (c *Cleaner) Run(ctx context.Context) (*Result, error) {
	sessions, err := c.manager.Store().List()
	if err != nil {
		return &Result{}, err
	}

	// The sweeps are independent; one failing must not cancel the other.
	res := &Result{}
	var containerErr, worktreeErr error
	var g errgroup.Group
	g.Go(func() error {
		res.ContainersRemoved, containerErr = c.cleanContainers(ctx)
		return nil
	})
	g.Go(func() error {
		worktreeErr = c.cleanWorktrees(ctx, sessions, res)
		return nil
	})
	g.Wait()
	return res, errors.Join(containerErr, worktreeErr)
}

func (c *Cleaner) cleanContainers(ctx context.Context) ([]string, error) {
	if c.containers == nil {
		return nil, nil
	}
	log := logger.WithComponent("cleanup")
	prefix := c.manager.Config().Docker.ContainerPrefix

	names, err := c.containers.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, name := range names {
		sessionName, ok := container.SessionName(prefix, name)
		if !ok || c.manager.Store().Exists(sessionName) {
			continue
		}
		log.Info("removing orphaned container", "container", name)
		if err := c.containers.Remove(ctx, name, true); err != nil {
			log.Warn("failed to remove orphaned container", "container", name, "error", err)
			continue
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// cleanWorktrees prunes stale worktree entries, then removes worktrees
// under the subtrees directory that no record points at. Dirty ones are
// kept.
func (c *Cleaner) cleanWorktrees(ctx context.Context, sessions []*state.Session, res *Result) error {
	log := logger.WithComponent("cleanup")
	gitSvc := c.manager.Git()
	repo := c.manager.RepoRoot()

	stale, err := gitSvc.CleanupStaleWorktrees(ctx, repo)
	if err != nil {
		log.Debug("stale worktree cleanup failed", "error", err)
	}
	res.StalePruned = stale

	orphans, err := c.findOrphanedWorktrees(ctx, sessions)
	if err != nil {
		return err
	}
	for _, path := range orphans {
		clean, err := gitSvc.IsCleanWorkingTree(ctx, path)
		if err != nil || !clean {
			log.Info("keeping orphaned worktree with local changes", "path", path)
			res.WorktreesSkipped = append(res.WorktreesSkipped, path)
			continue
		}
		log.Info("removing orphaned worktree", "path", path)
		if err := gitSvc.RemoveWorktree(ctx, repo, path, false); err != nil {
			log.Warn("failed to remove orphaned worktree", "path", path, "error", err)
			continue
		}
		res.WorktreesRemoved = append(res.WorktreesRemoved, path)
	}
	return nil
}

// findOrphanedWorktrees returns registered worktrees inside the subtrees
// directory whose path and branch belong to no record.
func (c *Cleaner) findOrphanedWorktrees(ctx context.Context, sessions []*state.Session) ([]string, error) {
	subtrees := c.manager.SubtreesDir()
	if _, err := os.Stat(subtrees); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	worktrees, err := c.manager.Git().ListWorktrees(ctx, c.manager.RepoRoot())
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	branches := make(map[string]bool, len(sessions))
	for _, sess := range sessions {
		branches[sess.Branch] = true
	}

	var orphans []string
	for i, wt := range worktrees {
		if i == 0 || wt.IsBare || wt.Prunable {
			continue
		}
		if !git.SamePath(filepath.Dir(wt.Path), subtrees) {
			continue
		}
		if branches[wt.Branch] || recorded(sessions, wt.Path) {
			continue
		}
		orphans = append(orphans, wt.Path)
	}
	return orphans, nil
}

func recorded(sessions []*state.Session, path string) bool {
	for _, sess := range sessions {
		if git.SamePath(sess.WorktreePath, path) {
			return true
		}
	}
	return false
}
