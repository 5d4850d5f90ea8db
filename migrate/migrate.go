// Package migrate converts session state left behind by older releases
// into current records.
//
// Three legacy shapes are recognised in the state directory:
//
//   - .state records that still carry is_docker, session_type,
//     updated_at, a retired status name or a non-RFC3339 created_at;
//     these are rewritten in place
//   - dispatch records, <id>.json, from the prompt-dispatch workflow
//   - shell files (current_session, session_info, para_session) holding
//     KEY=VALUE lines
//
// JSON and shell sources are removed once their record has been written.
// Every run first snapshots the state directory into migration/.
package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zhubert/para/backup"
	"github.com/zhubert/para/clock"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/names"
	"github.com/zhubert/para/state"
)

const (
	// MigrationDir holds pre-migration backups and the migration log.
	MigrationDir = "migration"

	// LogFileName is appended to on every migration run.
	LogFileName = "migration.log"

	backupPrefix = "pre_migration_backup-"

	// backupsDir is where recovery writes its own backups; never part of
	// a migration snapshot.
	backupsDir = "backups"
)

// ShellStateFiles are the file names the shell implementation used.
var ShellStateFiles = []string{"current_session", "session_info", "para_session"}

// timestampLayouts are tried in order for legacy timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05 UTC",
}

// Kind identifies a legacy artifact's format.
type Kind string

const (
	KindState    Kind = "state"
	KindDispatch Kind = "dispatch"
	KindShell    Kind = "shell"
)

// Artifact is one legacy file found in the state directory.
type Artifact struct {
	Path string
	Kind Kind
}

// Report summarises a migration run.
type Report struct {
	Migrated           []string // session names written
	Failed             []string // "<file>: <reason>"
	BackupPath         string
	LegacyFilesRemoved []string
}

// ValidationReport summarises the records currently in the store.
type ValidationReport struct {
	Total    int
	Valid    int
	Invalid  []string
	Warnings []string
}

// Migrator converts legacy artifacts in one store's directory.
type Migrator struct {
	store    *state.Store
	repoRoot string
	clock    clock.Clock
	log      *slog.Logger
}

// NewMigrator returns a Migrator for store. repoRoot seeds the session
// IDs of records that never had one.
func NewMigrator(store *state.Store, repoRoot string, c clock.Clock) *Migrator {
	if c == nil {
		c = clock.Real()
	}
	return &Migrator{
		store:    store,
		repoRoot: repoRoot,
		clock:    c,
		log:      logger.WithComponent("migrate"),
	}
}

func (m *Migrator) migrationDir() string {
	return filepath.Join(m.store.Dir(), MigrationDir)
}

// LogPath returns the migration log path.
func (m *Migrator) LogPath() string {
	return filepath.Join(m.migrationDir(), LogFileName)
}

// Scan lists the legacy artifacts in the state directory, sorted by path.
func (m *Migrator) Scan() ([]Artifact, error) {
	entries, err := os.ReadDir(m.store.Dir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory %s: %w", m.store.Dir(), err)
	}

	var found []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(m.store.Dir(), name)
		switch {
		case strings.HasSuffix(name, state.FileExtension):
			if isLegacyState(path) {
				found = append(found, Artifact{Path: path, Kind: KindState})
			}
		case strings.HasSuffix(name, ".json"):
			found = append(found, Artifact{Path: path, Kind: KindDispatch})
		case slices.Contains(ShellStateFiles, name):
			found = append(found, Artifact{Path: path, Kind: KindShell})
		}
	}
	return found, nil
}

// NeedsMigration reports whether Scan finds anything.
func (m *Migrator) NeedsMigration() (bool, error) {
	found, err := m.Scan()
	return len(found) > 0, err
}

// Migrate backs up the state directory and converts every legacy
// artifact. A failure on one artifact is recorded in the report and does
// not stop the others. The returned error covers only the backup and
// directory scan.
func (m *Migrator) Migrate() (*Report, error) {
	artifacts, err := m.Scan()
	if err != nil {
		return nil, err
	}
	report := &Report{}
	if len(artifacts) == 0 {
		return report, nil
	}

	if report.BackupPath, err = m.Backup(); err != nil {
		return nil, err
	}
	m.appendLog("backup %s", report.BackupPath)

	for _, a := range artifacts {
		sess, err := m.convert(a)
		if err == nil {
			err = m.save(a, sess)
		}
		if err != nil {
			m.log.Warn("legacy state not migrated", "file", a.Path, "error", err)
			m.appendLog("failed %s: %v", a.Path, err)
			report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", filepath.Base(a.Path), err))
			continue
		}
		report.Migrated = append(report.Migrated, sess.Name)
		m.appendLog("migrated %s (%s) -> %s", a.Path, a.Kind, sess.Name)

		if a.Kind == KindState {
			continue
		}
		if err := os.Remove(a.Path); err != nil {
			m.log.Warn("failed to remove legacy file", "file", a.Path, "error", err)
			continue
		}
		report.LegacyFilesRemoved = append(report.LegacyFilesRemoved, a.Path)
		m.appendLog("removed %s", a.Path)
	}

	m.appendLog("done: %d migrated, %d failed, %d removed",
		len(report.Migrated), len(report.Failed), len(report.LegacyFilesRemoved))
	m.log.Info("migration finished", "migrated", len(report.Migrated), "failed", len(report.Failed))
	return report, nil
}

// save writes sess. A rewritten .state record may replace itself; any
// other source must not clobber an existing record.
func (m *Migrator) save(a Artifact, sess *state.Session) error {
	if err := names.Validate(sess.Name); err != nil {
		return err
	}
	if a.Kind != KindState && m.store.Exists(sess.Name) {
		return fmt.Errorf("session %s already exists", sess.Name)
	}
	if a.Kind == KindState && m.store.Path(sess.Name) != a.Path {
		return fmt.Errorf("record name %q does not match file name", sess.Name)
	}
	return m.store.Save(sess)
}

func (m *Migrator) convert(a Artifact) (*state.Session, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	switch a.Kind {
	case KindState:
		return m.convertState(data)
	case KindDispatch:
		return m.convertDispatch(data)
	case KindShell:
		return m.convertShell(data)
	}
	return nil, fmt.Errorf("unknown artifact kind %q", a.Kind)
}

// Backup snapshots the state directory, minus the migration and backup
// subdirectories, into migration/pre_migration_backup-<ts>.tar.zst.
func (m *Migrator) Backup() (string, error) {
	entries, err := os.ReadDir(m.store.Dir())
	if err != nil {
		return "", fmt.Errorf("failed to read state directory %s: %w", m.store.Dir(), err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.Name() == MigrationDir || entry.Name() == backupsDir {
			continue
		}
		paths = append(paths, entry.Name())
	}

	if err := os.MkdirAll(m.migrationDir(), 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(m.migrationDir(), backupPrefix+m.clock.Now().UTC().Format("20060102-150405")+backup.Extension)
	n, err := backup.Create(dest, m.store.Dir(), paths)
	if err != nil {
		return "", fmt.Errorf("failed to back up state directory: %w", err)
	}
	m.log.Info("state directory backed up", "path", dest, "entries", n)
	return dest, nil
}

// Rollback replaces the state directory's contents with a backup made by
// Backup. The migration and backup subdirectories are left alone.
func (m *Migrator) Rollback(backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup %s: %w", backupPath, err)
	}
	if _, err := backup.List(backupPath); err != nil {
		return fmt.Errorf("backup %s is unreadable: %w", backupPath, err)
	}

	entries, err := os.ReadDir(m.store.Dir())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == MigrationDir || entry.Name() == backupsDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.store.Dir(), entry.Name())); err != nil {
			return fmt.Errorf("failed to clear state directory: %w", err)
		}
	}

	if err := backup.Extract(backupPath, m.store.Dir()); err != nil {
		return fmt.Errorf("failed to restore %s: %w", backupPath, err)
	}
	m.appendLog("rolled back from %s", backupPath)
	m.log.Info("state directory restored", "backup", backupPath)
	return nil
}

// Validate checks every record in the store. Undecodable records count
// as invalid; records with a missing worktree or no branch are valid but
// produce warnings.
func (m *Migrator) Validate() (*ValidationReport, error) {
	names, err := m.store.Names()
	if err != nil {
		return nil, err
	}
	report := &ValidationReport{}
	for _, name := range names {
		report.Total++
		sess, err := m.store.Load(name)
		if err != nil {
			report.Invalid = append(report.Invalid, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		report.Valid++
		if sess.Branch == "" {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: no branch recorded", name))
		}
		if sess.IsLive() {
			if _, err := os.Stat(sess.WorktreePath); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: worktree %s is missing", name, sess.WorktreePath))
			}
		}
	}
	return report, nil
}

// appendLog writes one timestamped line to the migration log. Failures
// only reach the debug log.
func (m *Migrator) appendLog(format string, args ...any) {
	if err := os.MkdirAll(m.migrationDir(), 0755); err != nil {
		m.log.Debug("cannot create migration dir", "error", err)
		return
	}
	f, err := os.OpenFile(m.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		m.log.Debug("cannot open migration log", "error", err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %s\n", m.clock.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

// parseTimestamp accepts each of timestampLayouts.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
