// Package paths resolves where para keeps its user-level files, namely
// the config file and logs. Per-repository session state lives next to
// the repository and is resolved by config.
//
// Resolution order:
//  1. $PARA_HOME, when set, holds everything in a flat layout
//  2. ~/.para/ exists → flat layout under ~/.para/
//  3. any XDG variable set → $XDG_CONFIG_HOME/para and $XDG_STATE_HOME/para
//  4. otherwise → ~/.para/
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

// HomeEnv overrides the base directory for all user-level files.
const HomeEnv = "PARA_HOME"

var (
	mu       sync.Mutex
	resolved *layout
)

type layout struct {
	configDir string
	stateDir  string
	flat      bool
}

func resolve() (*layout, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != nil {
		return resolved, nil
	}

	if override := os.Getenv(HomeEnv); override != "" {
		resolved = flatLayout(override)
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	legacyDir := filepath.Join(home, ".para")

	if info, err := os.Stat(legacyDir); err == nil && info.IsDir() {
		resolved = flatLayout(legacyDir)
		return resolved, nil
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	xdgState := os.Getenv("XDG_STATE_HOME")
	if xdgConfig != "" || xdgState != "" || os.Getenv("XDG_DATA_HOME") != "" {
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		if xdgState == "" {
			xdgState = filepath.Join(home, ".local", "state")
		}
		resolved = &layout{
			configDir: filepath.Join(xdgConfig, "para"),
			stateDir:  filepath.Join(xdgState, "para"),
		}
		return resolved, nil
	}

	resolved = flatLayout(legacyDir)
	return resolved, nil
}

func flatLayout(dir string) *layout {
	return &layout{configDir: dir, stateDir: dir, flat: true}
}

// ConfigDir returns the directory holding config.yaml.
func ConfigDir() (string, error) {
	l, err := resolve()
	if err != nil {
		return "", err
	}
	return l.configDir, nil
}

// StateDir returns the directory for logs and other transient files.
func StateDir() (string, error) {
	l, err := resolve()
	if err != nil {
		return "", err
	}
	return l.stateDir, nil
}

// ConfigFilePath returns the path of config.yaml.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LegacyConfigFilePath returns the path of the older config.json.
func LegacyConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// IsFlatLayout reports whether config and state share one directory.
func IsFlatLayout() bool {
	l, err := resolve()
	if err != nil {
		return true
	}
	return l.flat
}

// Reset clears the cached resolution. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = nil
}
