package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhubert/para/paths"
)

// setupHome points the paths package at a fresh flat layout.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(paths.HomeEnv, home)
	paths.Reset()
	t.Cleanup(paths.Reset)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Git.BranchPrefix != "para" {
		t.Errorf("BranchPrefix = %q, want para", cfg.Git.BranchPrefix)
	}
	if !cfg.Git.AutoStage || !cfg.Git.AutoCommit {
		t.Error("auto_stage and auto_commit should default to true")
	}
	if cfg.Directories.SubtreesDir != ".para/worktrees" || cfg.Directories.StateDir != ".para/state" {
		t.Errorf("Directories = %+v", cfg.Directories)
	}
	if cfg.Session.AutoCleanupDays != 30 || cfg.Archive.MaxArchives != 50 {
		t.Errorf("AutoCleanupDays = %d, MaxArchives = %d", cfg.Session.AutoCleanupDays, cfg.Archive.MaxArchives)
	}
	if cfg.Docker.Enabled || cfg.Docker.ContainerPrefix != "para-" {
		t.Errorf("Docker = %+v", cfg.Docker)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFilesGiveDefaults(t *testing.T) {
	home := setupHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Git.BranchPrefix != "para" {
		t.Errorf("BranchPrefix = %q, want default", cfg.Git.BranchPrefix)
	}
	if want := filepath.Join(home, "config.yaml"); cfg.FilePath() != want {
		t.Errorf("FilePath() = %q, want %q", cfg.FilePath(), want)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	home := setupHome(t)
	writeFile(t, filepath.Join(home, "config.yaml"), `
git:
  branch_prefix: work
  auto_commit: false
archive:
  max_archives: 5
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Git.BranchPrefix != "work" {
		t.Errorf("BranchPrefix = %q, want work", cfg.Git.BranchPrefix)
	}
	if cfg.Git.AutoCommit {
		t.Error("AutoCommit should be false")
	}
	if !cfg.Git.AutoStage {
		t.Error("unset AutoStage should keep its default")
	}
	if cfg.Archive.MaxArchives != 5 {
		t.Errorf("MaxArchives = %d, want 5", cfg.Archive.MaxArchives)
	}
	if cfg.Directories.StateDir != ".para/state" {
		t.Errorf("StateDir = %q, want default", cfg.Directories.StateDir)
	}
}

func TestLoad_LegacyJSON(t *testing.T) {
	home := setupHome(t)
	writeFile(t, filepath.Join(home, "config.json"), `{
  // written by an older release
  "git": {"branch_prefix": "legacy", "auto_stage": true, "auto_commit": true,},
  "directories": {"subtrees_dir": "subtrees/para", "state_dir": ".para_state"},
  "ide": {"name": "claude", "command": "claude"},
}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Git.BranchPrefix != "legacy" {
		t.Errorf("BranchPrefix = %q, want legacy", cfg.Git.BranchPrefix)
	}
	if cfg.Directories.SubtreesDir != "subtrees/para" {
		t.Errorf("SubtreesDir = %q", cfg.Directories.SubtreesDir)
	}
	if want := filepath.Join(home, "config.yaml"); cfg.FilePath() != want {
		t.Errorf("legacy config should save to %q, got %q", want, cfg.FilePath())
	}
}

func TestLoad_YAMLWinsOverJSON(t *testing.T) {
	home := setupHome(t)
	writeFile(t, filepath.Join(home, "config.yaml"), "git:\n  branch_prefix: yaml\n")
	writeFile(t, filepath.Join(home, "config.json"), `{"git": {"branch_prefix": "json"}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Git.BranchPrefix != "yaml" {
		t.Errorf("BranchPrefix = %q, want yaml", cfg.Git.BranchPrefix)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "git: [unclosed", "failed to parse"},
		{"bad prefix", "git:\n  branch_prefix: 'has space'\n", "branch_prefix"},
		{"escaping dir", "directories:\n  state_dir: ../outside\n", "state_dir"},
		{"negative archives", "archive:\n  max_archives: -1\n", "max_archives"},
		{"too many days", "session:\n  auto_cleanup_days: 400\n", "auto_cleanup_days"},
		{"bad timeout", "completion:\n  timeout: soon\n", "completion.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := setupHome(t)
			writeFile(t, filepath.Join(home, "config.yaml"), tt.content)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	setupHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.SetFilePath(path)
	cfg.Git.BranchPrefix = "team/para"
	cfg.Docker.Enabled = true
	cfg.Completion.Timeout = "2s"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Git.BranchPrefix != "team/para" || !loaded.Docker.Enabled {
		t.Errorf("loaded = %+v %+v", loaded.Git, loaded.Docker)
	}
	if loaded.CompletionTimeout() != 2*time.Second {
		t.Errorf("CompletionTimeout() = %v, want 2s", loaded.CompletionTimeout())
	}
}

func TestSave_DefaultPath(t *testing.T) {
	home := setupHome(t)
	cfg := Default()
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); err != nil {
		t.Errorf("config.yaml not written: %v", err)
	}
}

func TestDirectories(t *testing.T) {
	cfg := Default()
	root := "/repo"

	if got := cfg.StateDir(root); got != filepath.Join(root, ".para", "state") {
		t.Errorf("StateDir = %q", got)
	}
	if got := cfg.SubtreesDir(root); got != filepath.Join(root, ".para", "worktrees") {
		t.Errorf("SubtreesDir = %q", got)
	}

	cfg.Directories.StateDir = "/var/lib/para/"
	if got := cfg.StateDir(root); got != "/var/lib/para" {
		t.Errorf("absolute StateDir = %q, want /var/lib/para", got)
	}
}

func TestCompletionTimeout_Fallback(t *testing.T) {
	cfg := Default()
	cfg.Completion.Timeout = ""
	if cfg.CompletionTimeout() != 500*time.Millisecond {
		t.Errorf("CompletionTimeout() = %v, want 500ms", cfg.CompletionTimeout())
	}
}

func TestArchiveRetention(t *testing.T) {
	cfg := Default()
	if cfg.ArchiveRetention() != 30*24*time.Hour {
		t.Errorf("ArchiveRetention() = %v", cfg.ArchiveRetention())
	}
	cfg.Session.AutoCleanupDays = 0
	if cfg.ArchiveRetention() != 0 {
		t.Error("zero days should disable retention")
	}
}
