// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// NewRepo creates a repository in a temp directory with one commit on
// branch main and returns its path.
func NewRepo(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	// Resolve symlinked temp roots so paths compare equal to git's output.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	Run(t, dir, "init")
	Run(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "user.name", "Test User")
	Run(t, dir, "config", "commit.gpgsign", "false")
	Commit(t, dir, "test.txt", "test content", "Initial commit")
	return dir
}

// Run executes git in dir and returns trimmed stdout, failing the test
// on error.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Commit writes content to file under dir and commits it.
func Commit(t testing.TB, dir, file, content, message string) string {
	t.Helper()

	path := filepath.Join(dir, file)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	Run(t, dir, "add", file)
	Run(t, dir, "commit", "-m", message)
	return Run(t, dir, "rev-parse", "HEAD")
}

// Head returns the commit hash a ref points at.
func Head(t testing.TB, dir, ref string) string {
	t.Helper()
	return Run(t, dir, "rev-parse", ref)
}
