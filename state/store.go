package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/para/logger"
)

// FileExtension is the suffix of session record files.
const FileExtension = ".state"

var (
	// ErrSessionNotFound is returned by Load for a missing record.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStateCorruption is wrapped by CorruptionError.
	ErrStateCorruption = errors.New("session state is corrupt")
)

// CorruptionError reports a record that exists but cannot be decoded.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrStateCorruption, e.Path, e.Err)
}

func (e *CorruptionError) Is(target error) bool { return target == ErrStateCorruption }

func (e *CorruptionError) Unwrap() error { return e.Err }

// Store reads and writes session records in one directory. It holds no
// in-memory state, so concurrent writers race last-writer-wins.
type Store struct {
	dir string
	log *slog.Logger
}

// NewStore returns a Store rooted at dir. The directory is created on
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, log: logger.WithComponent("state")}
}

// SetLogger replaces the logger that receives skipped-record reports.
func (s *Store) SetLogger(l *slog.Logger) {
	s.log = l
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record path for a session name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+FileExtension)
}

// Save writes the full record, replacing any existing one.
func (s *Store) Save(sess *Session) error {
	if sess.Name == "" {
		return fmt.Errorf("cannot save session with empty name")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.Name, err)
	}

	path := s.Path(sess.Name)
	tmp, err := os.CreateTemp(s.dir, "."+sess.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write session %s: %w", sess.Name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session %s: %w", sess.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session %s: %w", sess.Name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write session %s: %w", sess.Name, err)
	}
	return nil
}

// Load reads one record. A missing record yields ErrSessionNotFound and
// an undecodable one a *CorruptionError.
func (s *Store) Load(name string) (*Session, error) {
	return s.loadFile(s.Path(name), name)
}

func (s *Store) loadFile(path, name string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", name, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if sess.Name == "" {
		return nil, &CorruptionError{Path: path, Err: errors.New("record has no name")}
	}
	return &sess, nil
}

// Exists reports whether a record file exists for name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// List loads every record in the directory. A missing directory yields
// an empty list. Records that fail to load are skipped and logged so one
// bad file never hides the rest. Order is unspecified.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory %s: %w", s.dir, err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), FileExtension)
		sess, err := s.loadFile(filepath.Join(s.dir, entry.Name()), name)
		if err != nil {
			s.log.Warn("skipping unreadable session record", "file", entry.Name(), "error", err)
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Names returns the names of all records without decoding them.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), FileExtension) {
			names = append(names, strings.TrimSuffix(entry.Name(), FileExtension))
		}
	}
	return names, nil
}

// Delete removes a record. Deleting a missing record succeeds.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete session %s: %w", name, err)
	}
	return nil
}
