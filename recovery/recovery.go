// Package recovery lists, validates and restores sessions whose branches
// were archived on cancel, and prunes old archives.
//
// An archive is nothing more than a branch named
// <prefix>/archived/<YYYYMMDD-HHMMSS>/<session>. Recovery renames it back,
// checks it out into a fresh worktree and writes a brand-new session
// record; it never edits an existing record in place.
package recovery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zhubert/para/backup"
	"github.com/zhubert/para/git"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/names"
	"github.com/zhubert/para/session"
	"github.com/zhubert/para/state"
)

// ErrArchiveNotFound is returned when no archive matches a query.
var ErrArchiveNotFound = errors.New("archived session not found")

// ConflictError lists the problems that block a recovery.
type ConflictError struct {
	Name      string
	Conflicts []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot recover session %s: %s", e.Name, strings.Join(e.Conflicts, "; "))
}

// Info describes one recoverable archive.
type Info struct {
	ArchivedBranch string
	OriginalName   string
	Timestamp      time.Time
	CommitHash     string
}

// Validation is the outcome of checking a recovery target. Conflicts
// block recovery unless it is forced; warnings do not.
type Validation struct {
	CanRecover bool
	Conflicts  []string
	Warnings   []string
}

// Options controls Recover.
type Options struct {
	// ForceOverwrite replaces a session record or directory occupying
	// the target.
	ForceOverwrite bool
	// PreserveOriginalName recovers under the archived session name.
	// Otherwise the session is named <name>_<timestamp>.
	PreserveOriginalName bool
	// CreateBackup archives whatever ForceOverwrite replaces.
	CreateBackup bool
}

// DefaultOptions recovers under the original name without forcing.
func DefaultOptions() Options {
	return Options{PreserveOriginalName: true}
}

// Result describes a completed recovery.
type Result struct {
	Session       *state.Session
	SourceArchive string
	BackupPath    string
	Warnings      []string
}

// Service performs archive operations for one repository.
type Service struct {
	manager *session.Manager
}

// NewService returns a Service sharing m's repository, store and config.
func NewService(m *session.Manager) *Service {
	return &Service{manager: m}
}

// ListRecoverable returns every well-formed archive, newest first.
// Branches under the archive namespace that do not parse are skipped.
func (s *Service) ListRecoverable(ctx context.Context) ([]Info, error) {
	g := s.manager.Git()
	root := s.manager.RepoRoot()
	prefix := s.manager.BranchPrefix()

	branches, err := g.ListArchivedBranches(ctx, root, prefix)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("recovery")
	infos := make([]Info, 0, len(branches))
	for _, branch := range branches {
		parsed, err := git.ParseArchivedBranch(branch, prefix)
		if err != nil {
			log.Debug("skipping malformed archive branch", "branch", branch, "error", err)
			continue
		}
		hash, err := g.CommitHash(ctx, root, branch)
		if err != nil {
			log.Debug("skipping unresolvable archive branch", "branch", branch, "error", err)
			continue
		}
		infos = append(infos, Info{
			ArchivedBranch: branch,
			OriginalName:   parsed.SessionName,
			Timestamp:      parsed.Timestamp,
			CommitHash:     hash,
		})
	}

	slices.SortStableFunc(infos, func(a, b Info) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ArchivedBranch, a.ArchivedBranch)
	})
	return infos, nil
}

// Find returns the archive for query, which is either a full archive
// branch name or an original session name. For a session name the most
// recent archive wins.
func (s *Service) Find(ctx context.Context, query string) (*Info, error) {
	infos, err := s.ListRecoverable(ctx)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].ArchivedBranch == query || infos[i].OriginalName == query {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, query)
}

// Validate checks whether the archive matching query can be recovered
// under its original name.
func (s *Service) Validate(ctx context.Context, query string) (*Validation, error) {
	info, err := s.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.validateTarget(ctx, info.OriginalName), nil
}

func (s *Service) validateTarget(ctx context.Context, name string) *Validation {
	v := &Validation{}

	if s.manager.Exists(name) {
		v.Conflicts = append(v.Conflicts, fmt.Sprintf("session %q already exists", name))
	}
	path := s.manager.WorktreePath(name)
	if _, err := os.Lstat(path); err == nil {
		v.Conflicts = append(v.Conflicts, fmt.Sprintf("worktree directory already exists: %s", path))
	}
	branch := s.manager.BranchFor(name)
	if s.manager.Git().BranchExists(ctx, s.manager.RepoRoot(), branch) {
		v.Warnings = append(v.Warnings, fmt.Sprintf("branch %s already exists, the archive will be restored under a unique name", branch))
	}

	v.CanRecover = len(v.Conflicts) == 0
	return v
}

// Recover restores the archive matching query as a new Active session.
func (s *Service) Recover(ctx context.Context, query string, opts Options) (*Result, error) {
	m := s.manager
	g := m.Git()
	root := m.RepoRoot()

	info, err := s.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	now := m.Clock().Now().UTC()

	name := info.OriginalName
	if !opts.PreserveOriginalName {
		name = names.Disambiguate(name, now)
	}
	log := logger.WithSession(name)

	v := s.validateTarget(ctx, name)
	if !v.CanRecover && !opts.ForceOverwrite {
		return nil, &ConflictError{Name: name, Conflicts: v.Conflicts}
	}

	result := &Result{SourceArchive: info.ArchivedBranch, Warnings: v.Warnings}
	worktreePath := m.WorktreePath(name)

	if !v.CanRecover {
		log.Warn("overwriting recovery target", "conflicts", v.Conflicts)
		if opts.CreateBackup {
			path, err := s.backupTarget(name, worktreePath, now)
			if err != nil {
				return nil, err
			}
			result.BackupPath = path
		}
		if err := os.RemoveAll(worktreePath); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", worktreePath, err)
		}
		if err := g.PruneWorktrees(ctx, root); err != nil {
			log.Warn("worktree prune failed", "error", err)
		}
	}

	branch, err := s.restoreBranch(ctx, info, name, opts.PreserveOriginalName)
	if err != nil {
		return nil, err
	}

	if err := g.CreateWorktree(ctx, root, branch, worktreePath, ""); err != nil {
		if rerr := g.RenameBranch(ctx, root, branch, info.ArchivedBranch); rerr != nil {
			log.Error("failed to return branch to the archive", "branch", branch, "error", rerr)
		}
		return nil, fmt.Errorf("failed to create worktree for recovered session %s: %w", name, err)
	}

	parent, err := g.DefaultBranch(ctx, root)
	if err != nil {
		parent = "main"
	}
	sess := &state.Session{
		ID:           names.SessionID(root, name, now),
		Name:         name,
		Branch:       branch,
		WorktreePath: worktreePath,
		CreatedAt:    now,
		Status:       state.StatusActive,
		ParentBranch: parent,
	}
	if err := m.Store().Save(sess); err != nil {
		return nil, err
	}

	log.Info("recovered session", "archive", info.ArchivedBranch, "branch", branch, "path", worktreePath)
	result.Session = sess
	return result, nil
}

// restoreBranch moves the archived branch back out of the archive. Under
// the original name it goes to prefix/<original>; a renamed recovery
// gets the branch matching its new session name.
func (s *Service) restoreBranch(ctx context.Context, info *Info, name string, original bool) (string, error) {
	m := s.manager
	g := m.Git()
	root := m.RepoRoot()

	if original {
		return g.RestoreArchivedBranch(ctx, root, info.ArchivedBranch, m.BranchPrefix())
	}
	branch, err := g.UniqueBranchName(ctx, root, m.BranchFor(name))
	if err != nil {
		return "", err
	}
	if err := g.RenameBranch(ctx, root, info.ArchivedBranch, branch); err != nil {
		return "", err
	}
	return branch, nil
}

// backupTarget archives an existing worktree directory and record before
// a forced recovery replaces them.
func (s *Service) backupTarget(name, worktreePath string, now time.Time) (string, error) {
	store := s.manager.Store()
	dest := filepath.Join(store.Dir(), "backups", name+"-"+names.Timestamp(now)+backup.Extension)

	base := commonDir(worktreePath, store.Dir())
	var entries []string
	for _, p := range []string{worktreePath, store.Path(name)} {
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return "", err
		}
		entries = append(entries, rel)
	}

	if _, err := backup.Create(dest, base, entries); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", name, err)
	}
	logger.WithSession(name).Info("backed up recovery target", "backup", dest)
	return dest, nil
}

// commonDir returns the deepest directory containing both a and b.
func commonDir(a, b string) string {
	a, b = filepath.Clean(a), filepath.Clean(b)
	for {
		rel, err := filepath.Rel(a, b)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return a
		}
		parent := filepath.Dir(a)
		if parent == a {
			return a
		}
		a = parent
	}
}

// CleanupOldArchives deletes archives older than maxAge and returns how
// many were removed. A non-positive maxAge disables cleanup.
func (s *Service) CleanupOldArchives(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	infos, err := s.ListRecoverable(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.manager.Clock().Now().Add(-maxAge)

	var stale []Info
	for _, info := range infos {
		if info.Timestamp.Before(cutoff) {
			stale = append(stale, info)
		}
	}
	return s.deleteArchives(ctx, stale), nil
}

// EnforceArchiveLimit keeps the newest limit archives and deletes the
// rest. A non-positive limit disables the check.
func (s *Service) EnforceArchiveLimit(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	infos, err := s.ListRecoverable(ctx)
	if err != nil {
		return 0, err
	}
	if len(infos) <= limit {
		return 0, nil
	}
	return s.deleteArchives(ctx, infos[limit:]), nil
}

// AutoCleanup applies the configured age and count limits.
func (s *Service) AutoCleanup(ctx context.Context) (aged, limited int, err error) {
	cfg := s.manager.Config()
	if aged, err = s.CleanupOldArchives(ctx, cfg.ArchiveRetention()); err != nil {
		return 0, 0, err
	}
	limited, err = s.EnforceArchiveLimit(ctx, cfg.Archive.MaxArchives)
	return aged, limited, err
}

func (s *Service) deleteArchives(ctx context.Context, infos []Info) int {
	log := logger.WithComponent("recovery")
	removed := 0
	for _, info := range infos {
		if err := s.manager.Git().DeleteBranch(ctx, s.manager.RepoRoot(), info.ArchivedBranch, true); err != nil {
			log.Warn("failed to delete archive", "branch", info.ArchivedBranch, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info("deleted archives", "count", removed)
	}
	return removed
}
