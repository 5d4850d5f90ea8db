// Package logger holds para's process-wide slog logger. Output goes to a
// log file so it never interleaves with command output on the terminal.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhubert/para/paths"
)

// LogFileName is the name of the main log file inside the logs directory.
const LogFileName = "para.log"

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	logFile  *os.File
	mu       sync.Mutex
	logPath  string
	initDone bool
)

// DefaultLogPath returns <logs dir>/para.log.
func DefaultLogPath() (string, error) {
	dir, err := paths.LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogFileName), nil
}

// Path returns the file currently being logged to, if any.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// SetDebug switches between debug and info level.
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init opens path for appending and makes it the log destination. Later
// calls are no-ops until Reset.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}
	return openLocked(path)
}

// InitWriter logs to w instead of a file.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	root = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
	initDone = true
}

// openLocked must be called with mu held.
func openLocked(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	logFile = f
	logPath = path
	root = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar}))
	initDone = true

	root.Debug("logger initialized", "path", path)
	return nil
}

// ensureInit opens the default log file on first use. Failures are
// reported once on stderr and logging falls back to slog.Default.
// Caller must hold mu.
func ensureInit() {
	if initDone {
		return
	}
	initDone = true

	path, err := DefaultLogPath()
	if err == nil {
		err = openLocked(path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	if root == nil {
		return slog.Default()
	}
	return root
}

// Get returns the root logger.
func Get() *slog.Logger {
	return current()
}

// WithSession returns a logger tagged with a session name.
//
//	log := logger.WithSession(sess.Name)
//	log.Info("worktree created", "path", sess.WorktreePath)
//	// level=INFO msg="worktree created" session=demo path=/repo/.para/worktrees/demo
func WithSession(name string) *slog.Logger {
	return current().With("session", name)
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(component string) *slog.Logger {
	return current().With("component", component)
}

// closeLocked must be called with mu held.
func closeLocked() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	root = nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

// Reset returns the package to its uninitialized state. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	initDone = false
	logPath = ""
	levelVar = new(slog.LevelVar)
}

// ClearLogs removes para.log and any rotated para-*.log files, returning
// how many were deleted.
func ClearLogs() (int, error) {
	path, err := DefaultLogPath()
	if err != nil {
		return 0, fmt.Errorf("failed to get default log path: %w", err)
	}

	rotated, err := filepath.Glob(filepath.Join(filepath.Dir(path), "para-*.log"))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range append([]string{path}, rotated...) {
		if err := os.Remove(p); err == nil {
			count++
		} else if !os.IsNotExist(err) {
			return count, err
		}
	}
	return count, nil
}
