package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zhubert/para/gittest"
)

func TestCreateWorktree_NewBranch(t *testing.T) {
	repo := gittest.NewRepo(t)
	path := filepath.Join(repo, ".para", "worktrees", "demo")

	if err := svc.CreateWorktree(ctx, repo, "para/demo", path, "main"); err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}

	if _, err := os.Stat(filepath.Join(path, "test.txt")); err != nil {
		t.Errorf("worktree should contain repo files: %v", err)
	}
	branch, err := svc.CurrentBranch(ctx, path)
	if err != nil || branch != "para/demo" {
		t.Errorf("worktree branch = %q, %v; want para/demo", branch, err)
	}
	if gittest.Head(t, repo, "para/demo") != gittest.Head(t, repo, "main") {
		t.Error("new branch should start at main")
	}
}

func TestCreateWorktree_ExistingBranch(t *testing.T) {
	repo := gittest.NewRepo(t)
	gittest.Run(t, repo, "checkout", "-q", "-b", "para/existing")
	want := gittest.Commit(t, repo, "feature.txt", "feature", "feature work")
	gittest.Run(t, repo, "checkout", "-q", "main")

	path := filepath.Join(t.TempDir(), "existing")
	if err := svc.CreateWorktree(ctx, repo, "para/existing", path, "main"); err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	if got := gittest.Head(t, path, "HEAD"); got != want {
		t.Errorf("worktree HEAD = %s, want existing branch tip %s", got, want)
	}
}

func TestCreateWorktree_PathExists(t *testing.T) {
	repo := gittest.NewRepo(t)
	path := t.TempDir()

	err := svc.CreateWorktree(ctx, repo, "para/x", path, "")
	if err == nil {
		t.Fatal("expected error for existing path")
	}
	if svc.BranchExists(ctx, repo, "para/x") {
		t.Error("no branch should be created when the path exists")
	}
}

func TestCreateWorktree_GitFailure(t *testing.T) {
	repo := gittest.NewRepo(t)
	path := filepath.Join(t.TempDir(), "wt")

	err := svc.CreateWorktree(ctx, repo, "para/x", path, "no-such-start-point")
	var vcsErr *VcsError
	if !errors.As(err, &vcsErr) {
		t.Fatalf("error = %v, want *VcsError", err)
	}
	if vcsErr.Stderr == "" {
		t.Error("VcsError should carry git's stderr")
	}
}

func TestListWorktrees(t *testing.T) {
	repo := gittest.NewRepo(t)
	path := filepath.Join(t.TempDir(), "listed")
	if err := svc.CreateWorktree(ctx, repo, "para/listed", path, ""); err != nil {
		t.Fatal(err)
	}

	worktrees, err := svc.ListWorktrees(ctx, repo)
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	if len(worktrees) != 2 {
		t.Fatalf("len(worktrees) = %d, want 2", len(worktrees))
	}

	if !SamePath(worktrees[0].Path, repo) || worktrees[0].Branch != "main" || !worktrees[0].IsCurrent {
		t.Errorf("main worktree = %+v", worktrees[0])
	}
	if !SamePath(worktrees[1].Path, path) || worktrees[1].Branch != "para/listed" || worktrees[1].IsCurrent {
		t.Errorf("linked worktree = %+v", worktrees[1])
	}

	// From inside the linked worktree, it becomes the current one.
	fromLinked, err := svc.ListWorktrees(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if fromLinked[0].IsCurrent || !fromLinked[1].IsCurrent {
		t.Errorf("IsCurrent flags from linked worktree = %v, %v", fromLinked[0].IsCurrent, fromLinked[1].IsCurrent)
	}
}

func TestParseWorktreeList(t *testing.T) {
	out := "worktree /repo\nHEAD aaa\nbranch refs/heads/main\n\n" +
		"worktree /repo/.para/worktrees/x\nHEAD bbb\ndetached\n\n" +
		"worktree /gone\nHEAD ccc\nbranch refs/heads/para/gone\nprunable gitdir file points to non-existent location\n\n" +
		"worktree /bare.git\nbare\n"

	got := parseWorktreeList(out)
	want := []Worktree{
		{Path: "/repo", Branch: "main", Commit: "aaa"},
		{Path: "/repo/.para/worktrees/x", Branch: "HEAD", Commit: "bbb"},
		{Path: "/gone", Branch: "para/gone", Commit: "ccc", Prunable: true},
		{Path: "/bare.git", IsBare: true},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("worktree[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRemoveWorktree(t *testing.T) {
	repo := gittest.NewRepo(t)
	path := filepath.Join(t.TempDir(), "rm")
	if err := svc.CreateWorktree(ctx, repo, "para/rm", path, ""); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "dirty.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err := svc.RemoveWorktree(ctx, repo, path, false)
	var vcsErr *VcsError
	if !errors.As(err, &vcsErr) {
		t.Fatalf("removing a dirty worktree without force: error = %v, want *VcsError", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatal("worktree should survive a failed remove")
	}

	if err := svc.RemoveWorktree(ctx, repo, path, true); err != nil {
		t.Fatalf("forced RemoveWorktree: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("worktree directory should be gone")
	}
	if !svc.BranchExists(ctx, repo, "para/rm") {
		t.Error("removing a worktree must keep its branch")
	}
}

func TestCleanupStaleWorktrees(t *testing.T) {
	repo := gittest.NewRepo(t)
	keep := filepath.Join(t.TempDir(), "keep")
	stale := filepath.Join(t.TempDir(), "stale")
	for branch, path := range map[string]string{"para/keep": keep, "para/stale": stale} {
		if err := svc.CreateWorktree(ctx, repo, branch, path, ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.RemoveAll(stale); err != nil {
		t.Fatal(err)
	}

	removed, err := svc.CleanupStaleWorktrees(ctx, repo)
	if err != nil {
		t.Fatalf("CleanupStaleWorktrees: %v", err)
	}
	if len(removed) != 1 || !SamePath(removed[0], stale) {
		t.Errorf("removed = %v, want [%s]", removed, stale)
	}

	worktrees, err := svc.ListWorktrees(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if len(worktrees) != 2 {
		t.Errorf("len(worktrees) after cleanup = %d, want 2", len(worktrees))
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("valid worktree should be kept")
	}
}

func TestSamePath(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	tests := []struct {
		a, b string
		want bool
	}{
		{dir, dir, true},
		{dir, dir + "/", true},
		{dir, link, true},
		{dir, filepath.Join(dir, "x"), false},
		{"/does/not/exist", "/does/not/exist/../exist", true},
		{"/does/not/a", "/does/not/b", false},
	}
	for _, tt := range tests {
		if got := SamePath(tt.a, tt.b); got != tt.want {
			t.Errorf("SamePath(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
