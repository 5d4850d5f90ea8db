package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/state"
)

// Get loads the record for name.
func (m *Manager) Get(name string) (*state.Session, error) {
	return m.store.Load(name)
}

// Exists reports whether a record for name exists.
func (m *Manager) Exists(name string) bool {
	return m.store.Exists(name)
}

// List returns every readable record, newest first.
func (m *Manager) List() ([]*state.Session, error) {
	sessions, err := m.store.List()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(sessions, func(a, b *state.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sessions, nil
}

// UpdateStatus moves a session to status. Moving to the current status is
// a no-op; moves the lifecycle forbids fail with ErrInvalidTransition, as
// does Cancelled, which only Cancel reaches.
// Concurrent updates of one session race last-writer-wins.
func (m *Manager) UpdateStatus(name string, status state.Status) (*state.Session, error) {
	sess, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	if sess.Status == status {
		return sess, nil
	}
	if status == state.StatusCancelled {
		return nil, fmt.Errorf("%w: cancelled records are deleted, cancel %s instead", ErrInvalidTransition, name)
	}
	if !sess.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, name, sess.Status, status)
	}

	now := m.clock.Now().UTC()
	sess.Status = status
	sess.LastActivity = &now
	if err := m.store.Save(sess); err != nil {
		return nil, err
	}
	logger.WithSession(name).Info("session status updated", "status", status)
	return sess, nil
}

// CancelOptions controls what Cancel tears down besides the record.
type CancelOptions struct {
	// Force removes the worktree even when it holds uncommitted work.
	Force bool
	// Archive renames the branch into the archive namespace so the
	// session can be recovered later.
	Archive bool
}

// CancelResult describes what Cancel did.
type CancelResult struct {
	Session          *state.Session
	ArchivedBranch   string
	WorktreeRemoved  bool
	ContainerRemoved bool
	// Checkpointed is set when uncommitted work was committed to the
	// branch before it was archived.
	Checkpointed bool
}

// Cancel ends a session and deletes its record. The worktree is removed
// only when opts.Force is set or the session is container-typed.
func (m *Manager) Cancel(ctx context.Context, name string, opts CancelOptions) (*CancelResult, error) {
	sess, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	log := logger.WithSession(name)
	log.Info("cancelling session", "force", opts.Force, "archive", opts.Archive, "container", sess.IsContainer())

	result := &CancelResult{Session: sess}

	if opts.Force && opts.Archive && dirExists(sess.WorktreePath) {
		if result.Checkpointed, err = m.checkpoint(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to save uncommitted work for session %s: %w", name, err)
		}
	}

	if (opts.Force || sess.IsContainer()) && dirExists(sess.WorktreePath) {
		if err := m.git.RemoveWorktree(ctx, m.repoRoot, sess.WorktreePath, true); err != nil {
			return nil, fmt.Errorf("failed to remove worktree for session %s: %w", name, err)
		}
		result.WorktreeRemoved = true
	}

	if opts.Archive && m.git.BranchExists(ctx, m.repoRoot, sess.Branch) {
		archived, err := m.git.ArchiveBranch(ctx, m.repoRoot, sess.Branch, m.BranchPrefix(), sess.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to archive branch for session %s: %w", name, err)
		}
		result.ArchivedBranch = archived
	}

	if sess.IsContainer() && m.containers != nil {
		container := m.cfg.Docker.ContainerPrefix + sess.Name
		if err := m.containers.Remove(ctx, container, true); err != nil {
			log.Warn("failed to remove container", "container", container, "error", err)
		} else {
			result.ContainerRemoved = true
		}
	}

	if err := m.store.Delete(name); err != nil {
		return nil, err
	}
	sess.Status = state.StatusCancelled
	log.Info("session cancelled", "archived", result.ArchivedBranch, "worktreeRemoved", result.WorktreeRemoved)
	return result, nil
}

// checkpoint commits everything in the session's worktree so a forced
// cancel does not drop work the archive could have kept. It is a no-op
// unless both git.auto_stage and git.auto_commit are enabled.
func (m *Manager) checkpoint(ctx context.Context, sess *state.Session) (bool, error) {
	if !m.cfg.Git.AutoStage || !m.cfg.Git.AutoCommit {
		return false, nil
	}
	dirty, err := m.git.HasUncommittedChanges(ctx, sess.WorktreePath)
	if err != nil || !dirty {
		return false, err
	}
	if err := m.git.StageAllChanges(ctx, sess.WorktreePath); err != nil {
		return false, err
	}
	msg := fmt.Sprintf("para: checkpoint before cancelling %s\n\n%s", sess.Name, sess.TaskDescription)
	if err := m.git.Commit(ctx, sess.WorktreePath, msg); err != nil {
		return false, err
	}
	logger.WithSession(sess.Name).Info("checkpointed uncommitted work", "branch", sess.Branch)
	return true, nil
}

// FindByPath returns the session whose worktree contains path. When path
// lies above any worktree, a session whose worktree is under path is
// returned instead. It returns nil, nil when nothing matches.
func (m *Manager) FindByPath(path string) (*state.Session, error) {
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	target := canonicalPath(path)

	for _, sess := range sessions {
		if isWithin(target, canonicalPath(sess.WorktreePath)) {
			return sess, nil
		}
	}
	for _, sess := range sessions {
		if isWithin(canonicalPath(sess.WorktreePath), target) {
			return sess, nil
		}
	}
	return nil, nil
}

// FindContaining returns the session whose worktree is path or an
// ancestor of it, or nil, nil. Unlike FindByPath it never matches a
// directory above a worktree.
func (m *Manager) FindContaining(path string) (*state.Session, error) {
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	target := canonicalPath(path)
	for _, sess := range sessions {
		if isWithin(target, canonicalPath(sess.WorktreePath)) {
			return sess, nil
		}
	}
	return nil, nil
}

// Detect finds the session a command run in dir is working on: the one
// whose worktree holds dir, otherwise the Active session on dir's
// checked-out branch. It fails with ErrNoCurrentSession when neither
// matches.
func (m *Manager) Detect(ctx context.Context, dir string) (*state.Session, error) {
	sess, err := m.FindContaining(dir)
	if err != nil || sess != nil {
		return sess, err
	}
	if branch, err := m.git.CurrentBranch(ctx, dir); err == nil {
		if sess, err = m.FindByBranch(branch); err != nil || sess != nil {
			return sess, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoCurrentSession, dir)
}

// FindByBranch returns the Active session on branch, or nil, nil.
func (m *Manager) FindByBranch(branch string) (*state.Session, error) {
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.Branch == branch && sess.Status == state.StatusActive {
			return sess, nil
		}
	}
	return nil, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// canonicalPath resolves symlinks where possible so that /tmp and
// /private/tmp compare equal on macOS.
func canonicalPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// isWithin reports whether path equals dir or lies beneath it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
