// Package config loads para's user configuration from config.yaml, falling
// back to an older config.json and then to built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/zhubert/para/git"
	"github.com/zhubert/para/paths"
)

// Config holds the application configuration
type Config struct {
	Git         GitConfig        `yaml:"git" json:"git"`
	Directories DirectoryConfig  `yaml:"directories" json:"directories"`
	Session     SessionConfig    `yaml:"session" json:"session"`
	Archive     ArchiveConfig    `yaml:"archive" json:"archive"`
	Docker      DockerConfig     `yaml:"docker" json:"docker"`
	Completion  CompletionConfig `yaml:"completion" json:"completion"`

	mu       sync.RWMutex
	filePath string
}

type GitConfig struct {
	BranchPrefix string `yaml:"branch_prefix" json:"branch_prefix"`
	AutoStage    bool   `yaml:"auto_stage" json:"auto_stage"`
	AutoCommit   bool   `yaml:"auto_commit" json:"auto_commit"`
}

// DirectoryConfig locates per-repository directories. Relative paths
// resolve against the main repository root.
type DirectoryConfig struct {
	SubtreesDir string `yaml:"subtrees_dir" json:"subtrees_dir"`
	StateDir    string `yaml:"state_dir" json:"state_dir"`
}

type SessionConfig struct {
	DefaultNameFormat string `yaml:"default_name_format" json:"default_name_format"`
	PreserveOnFinish  bool   `yaml:"preserve_on_finish" json:"preserve_on_finish"`
	AutoCleanupDays   int    `yaml:"auto_cleanup_days" json:"auto_cleanup_days"` // 0 disables
}

type ArchiveConfig struct {
	MaxArchives int `yaml:"max_archives" json:"max_archives"` // 0 disables
}

type DockerConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	ContainerPrefix string `yaml:"container_prefix" json:"container_prefix"`
}

type CompletionConfig struct {
	Timeout string `yaml:"timeout" json:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Git: GitConfig{
			BranchPrefix: "para",
			AutoStage:    true,
			AutoCommit:   true,
		},
		Directories: DirectoryConfig{
			SubtreesDir: ".para/worktrees",
			StateDir:    ".para/state",
		},
		Session: SessionConfig{
			DefaultNameFormat: "%Y%m%d-%H%M%S",
			AutoCleanupDays:   30,
		},
		Archive:    ArchiveConfig{MaxArchives: 50},
		Docker:     DockerConfig{ContainerPrefix: "para-"},
		Completion: CompletionConfig{Timeout: "500ms"},
	}
}

// Load reads config.yaml from the config directory. When it is absent the
// older config.json is read instead, and when neither exists the defaults
// are returned. Save always writes config.yaml.
func Load() (*Config, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFile(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	legacy, err := paths.LegacyConfigFilePath()
	if err != nil {
		return nil, err
	}
	cfg, err = LoadFile(legacy)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}
	cfg.filePath = path
	return cfg, nil
}

// LoadFile reads one config file over the defaults. Files ending in .json
// are parsed as JSON with comments and trailing commas allowed; anything
// else is YAML. A missing file yields an error wrapping fs.ErrNotExist.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.filePath = path
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Git.BranchPrefix == "" {
		return fmt.Errorf("git.branch_prefix cannot be empty")
	}
	if err := git.ValidateBranchName(c.Git.BranchPrefix); err != nil {
		return fmt.Errorf("git.branch_prefix: %w", err)
	}

	for key, dir := range map[string]string{
		"directories.subtrees_dir": c.Directories.SubtreesDir,
		"directories.state_dir":    c.Directories.StateDir,
	} {
		if err := validateDir(dir); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if c.Session.AutoCleanupDays < 0 || c.Session.AutoCleanupDays > 365 {
		return fmt.Errorf("session.auto_cleanup_days must be between 0 and 365, got %d", c.Session.AutoCleanupDays)
	}
	if c.Archive.MaxArchives < 0 {
		return fmt.Errorf("archive.max_archives cannot be negative")
	}
	if c.Docker.Enabled && c.Docker.ContainerPrefix == "" {
		return fmt.Errorf("docker.container_prefix cannot be empty when docker is enabled")
	}
	if c.Completion.Timeout != "" {
		d, err := time.ParseDuration(c.Completion.Timeout)
		if err != nil {
			return fmt.Errorf("completion.timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("completion.timeout must be positive")
		}
	}
	return nil
}

// validateDir accepts absolute paths and relative paths that stay inside
// the repository.
func validateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("cannot be empty")
	}
	if strings.ContainsRune(dir, 0) {
		return fmt.Errorf("contains a NUL byte")
	}
	if filepath.IsAbs(dir) {
		return nil
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("relative path %q must not contain '..'", dir)
		}
	}
	return nil
}

// Save writes the config to disk as YAML.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		path, err := paths.ConfigFilePath()
		if err != nil {
			return err
		}
		c.filePath = path
	}
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.filePath, data, 0644)
}

// FilePath returns where Save will write.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// SetFilePath sets the config file path (for testing).
func (c *Config) SetFilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filePath = path
}

// StateDir returns the session state directory for a repository.
func (c *Config) StateDir(repoRoot string) string {
	return resolveDir(repoRoot, c.Directories.StateDir)
}

// SubtreesDir returns the directory that holds session worktrees.
func (c *Config) SubtreesDir(repoRoot string) string {
	return resolveDir(repoRoot, c.Directories.SubtreesDir)
}

// CompletionTimeout returns the bound on completion enumeration. An
// unset or unparsable value yields 500ms.
func (c *Config) CompletionTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Completion.Timeout); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

// ArchiveRetention returns how long archived branches are kept, or zero
// when age-based cleanup is disabled.
func (c *Config) ArchiveRetention() time.Duration {
	return time.Duration(c.Session.AutoCleanupDays) * 24 * time.Hour
}

func resolveDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}
