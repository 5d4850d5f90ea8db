package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/zhubert/para/clock"
	"github.com/zhubert/para/config"
	"github.com/zhubert/para/git"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/names"
	"github.com/zhubert/para/state"
)

var (
	// ErrSessionExists is returned when a name and its timestamped
	// fallback are both taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrPathExists is returned when the target worktree path is occupied.
	ErrPathExists = errors.New("worktree path already exists")

	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoCurrentSession is returned by Detect outside any session.
	ErrNoCurrentSession = errors.New("not inside a session worktree")
)

const gitignoreContent = "# Ignore all para contents except configuration\n*\n!.gitignore\n"

// ContainerRemover removes the container backing a container-typed
// session. Removing a missing container must succeed.
type ContainerRemover interface {
	Remove(ctx context.Context, name string, force bool) error
}

// Manager owns the session lifecycle for one repository. It keeps no
// in-memory session state; every call reads and writes the store.
type Manager struct {
	git        *git.GitService
	store      *state.Store
	cfg        *config.Config
	clock      clock.Clock
	rand       *rand.Rand
	repoRoot   string
	containers ContainerRemover
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for creation times and name fallbacks.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRand sets the source for generated session names.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rand = r }
}

// WithContainers enables container removal on cancel.
func WithContainers(c ContainerRemover) Option {
	return func(m *Manager) { m.containers = c }
}

// WithStore replaces the state store derived from the config.
func WithStore(s *state.Store) Option {
	return func(m *Manager) { m.store = s }
}

// NewManager returns a Manager for the repository whose main worktree is
// repoRoot.
func NewManager(gitSvc *git.GitService, cfg *config.Config, repoRoot string, opts ...Option) *Manager {
	m := &Manager{
		git:      gitSvc,
		cfg:      cfg,
		clock:    clock.Real(),
		repoRoot: repoRoot,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = state.NewStore(cfg.StateDir(repoRoot))
	}
	if m.rand == nil {
		seed := uint64(time.Now().UnixNano())
		m.rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return m
}

// Open discovers the main repository root from dir, which may be inside a
// session worktree, and returns a Manager for it.
func Open(ctx context.Context, gitSvc *git.GitService, cfg *config.Config, dir string, opts ...Option) (*Manager, error) {
	root, err := gitSvc.MainRepositoryRoot(ctx, dir)
	if err != nil {
		return nil, err
	}
	return NewManager(gitSvc, cfg, root, opts...), nil
}

// RepoRoot returns the main repository root.
func (m *Manager) RepoRoot() string { return m.repoRoot }

func (m *Manager) Store() *state.Store { return m.store }

func (m *Manager) Git() *git.GitService { return m.git }

func (m *Manager) Config() *config.Config { return m.cfg }

func (m *Manager) Clock() clock.Clock { return m.clock }

// BranchPrefix returns the configured branch namespace.
func (m *Manager) BranchPrefix() string { return m.cfg.Git.BranchPrefix }

// SubtreesDir returns the directory holding session worktrees.
func (m *Manager) SubtreesDir() string { return m.cfg.SubtreesDir(m.repoRoot) }

// BranchFor returns the friendly branch name for a session.
func (m *Manager) BranchFor(name string) string {
	return names.BranchName(m.BranchPrefix(), name)
}

// WorktreePath returns where the worktree for name lives.
func (m *Manager) WorktreePath(name string) string {
	return filepath.Join(m.SubtreesDir(), name)
}

// CreateOptions carries the optional inputs to Create.
type CreateOptions struct {
	BaseBranch      string // defaults to the repository's default branch, then "main"
	TaskDescription string
	SkipPermissions bool
	SandboxProfile  string
}

// Create provisions a new Active session. An empty name gets a generated
// friendly name. When a record named name already exists the session is
// created as name_<timestamp> instead; if that is also taken Create fails
// with ErrSessionExists. The record is written only after the worktree
// exists.
func (m *Manager) Create(ctx context.Context, name string, opts CreateOptions) (*state.Session, error) {
	log := logger.WithComponent("session")
	startTime := time.Now()

	if _, err := m.git.DiscoverRepository(ctx, m.repoRoot); err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC()
	if name == "" {
		name = names.Unique(func(n string) bool { return m.nameTaken(ctx, n) }, m.rand, now)
		log.Debug("generated session name", "name", name)
	}
	if err := names.Validate(name); err != nil {
		return nil, err
	}
	if m.store.Exists(name) {
		alt := names.Disambiguate(name, now)
		if m.store.Exists(alt) {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, alt)
		}
		log.Info("session name taken, using timestamped name", "requested", name, "name", alt)
		name = alt
	}

	base := opts.BaseBranch
	if base == "" {
		var err error
		if base, err = m.git.DefaultBranch(ctx, m.repoRoot); err != nil {
			base = "main"
		}
	}

	branch := m.BranchFor(name)
	if err := git.ValidateBranchName(branch); err != nil {
		return nil, err
	}

	if err := m.ensureSubtreesDir(); err != nil {
		return nil, err
	}
	worktreePath := m.WorktreePath(name)
	if _, err := os.Lstat(worktreePath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrPathExists, worktreePath)
	}

	log.Info("creating new session", "name", name, "branch", branch, "baseBranch", base, "path", worktreePath)
	branchExisted := m.git.BranchExists(ctx, m.repoRoot, branch)
	if err := m.git.CreateWorktree(ctx, m.repoRoot, branch, worktreePath, base); err != nil {
		return nil, fmt.Errorf("failed to create worktree for session %s: %w", name, err)
	}

	sess := &state.Session{
		ID:                         names.SessionID(m.repoRoot, name, now),
		Name:                       name,
		Branch:                     branch,
		WorktreePath:               worktreePath,
		CreatedAt:                  now,
		Status:                     state.StatusActive,
		ParentBranch:               base,
		TaskDescription:            opts.TaskDescription,
		DangerouslySkipPermissions: opts.SkipPermissions,
		SandboxProfile:             opts.SandboxProfile,
	}
	if err := m.store.Save(sess); err != nil {
		m.rollbackCreate(ctx, sess, !branchExisted)
		return nil, err
	}

	log.Info("session created successfully", "name", name, "duration", time.Since(startTime))
	return sess, nil
}

// nameTaken reports whether a generated name would collide with a record,
// a branch or a directory.
func (m *Manager) nameTaken(ctx context.Context, name string) bool {
	if m.store.Exists(name) || m.git.BranchExists(ctx, m.repoRoot, m.BranchFor(name)) {
		return true
	}
	_, err := os.Lstat(m.WorktreePath(name))
	return err == nil
}

// ensureSubtreesDir creates the subtrees directory and, when it sits in a
// .para directory, the .gitignore that keeps worktrees out of the parent
// repository's status.
func (m *Manager) ensureSubtreesDir() error {
	dir := m.SubtreesDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create subtrees directory %s: %w", dir, err)
	}

	paraDir := filepath.Dir(dir)
	if filepath.Base(paraDir) != ".para" {
		return nil
	}
	ignore := filepath.Join(paraDir, ".gitignore")
	if _, err := os.Stat(ignore); err == nil {
		return nil
	}
	if err := os.WriteFile(ignore, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ignore, err)
	}
	return nil
}

// rollbackCreate undoes a worktree whose record could not be written.
func (m *Manager) rollbackCreate(ctx context.Context, sess *state.Session, deleteBranch bool) {
	log := logger.WithSession(sess.Name)
	log.Warn("rolling back session creation", "path", sess.WorktreePath)

	if err := m.git.RemoveWorktree(ctx, m.repoRoot, sess.WorktreePath, true); err != nil {
		log.Warn("failed to remove worktree during rollback", "error", err)
		return
	}
	if deleteBranch {
		if err := m.git.DeleteBranch(ctx, m.repoRoot, sess.Branch, true); err != nil {
			log.Warn("failed to delete branch during rollback", "branch", sess.Branch, "error", err)
		}
	}
}
