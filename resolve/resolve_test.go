package resolve

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zhubert/para/clock"
	"github.com/zhubert/para/config"
	"github.com/zhubert/para/git"
	"github.com/zhubert/para/gittest"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/session"
	"github.com/zhubert/para/state"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "para-resolve-test-*")
	if err == nil {
		logger.Init(filepath.Join(dir, "test.log"))
	}
	code := m.Run()
	logger.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestManager(t *testing.T) (*session.Manager, string) {
	t.Helper()
	repo := gittest.NewRepo(t)
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := session.NewManager(git.NewGitService().WithClock(fake), config.Default(), repo,
		session.WithClock(fake), session.WithRand(rand.New(rand.NewPCG(1, 2))))
	return m, repo
}

func create(t *testing.T, m *session.Manager, name string) *state.Session {
	t.Helper()
	sess, err := m.Create(ctx, name, session.CreateOptions{})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return sess
}

func TestResolve_ExactWinsOverPrefix(t *testing.T) {
	m, _ := newTestManager(t)
	create(t, m, "feat")
	dup := create(t, m, "feat")
	if dup.Name != "feat_20240101-000000" {
		t.Fatalf("duplicate name = %q", dup.Name)
	}

	r := New(m)

	res, err := r.Resolve(ctx, "feat")
	if err != nil {
		t.Fatalf("Resolve(feat): %v", err)
	}
	if res.Name != "feat" || res.Strategy != "exact" {
		t.Errorf("Resolve(feat) = %s via %s, want feat via exact", res.Name, res.Strategy)
	}

	res, err = r.Resolve(ctx, "feat_2024")
	if err != nil {
		t.Fatalf("Resolve(feat_2024): %v", err)
	}
	if res.Name != dup.Name || res.Strategy != "partial" {
		t.Errorf("Resolve(feat_2024) = %s via %s, want %s via partial", res.Name, res.Strategy, dup.Name)
	}
	if res.Session == nil || res.WorktreePath != dup.WorktreePath {
		t.Errorf("partial match should carry the record and its worktree, got %+v", res)
	}
}

func TestResolve_Partial(t *testing.T) {
	m, _ := newTestManager(t)
	sess := create(t, m, "authentication")

	res, err := New(m).Resolve(ctx, "auth")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Name != sess.Name || res.Branch != "para/authentication" {
		t.Errorf("got %+v", res)
	}
}

func TestResolve_RepairsMovedWorktree(t *testing.T) {
	m, repo := newTestManager(t)
	sess := create(t, m, "demo")

	moved := filepath.Join(t.TempDir(), "demo-moved")
	gittest.Run(t, repo, "worktree", "move", sess.WorktreePath, moved)

	res, err := New(m).Resolve(ctx, "demo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Repaired || res.Strategy != "exact" {
		t.Errorf("expected exact repaired match, got %+v", res)
	}
	if !git.SamePath(res.WorktreePath, moved) {
		t.Errorf("WorktreePath = %s, want %s", res.WorktreePath, moved)
	}

	saved, err := m.Get("demo")
	if err != nil {
		t.Fatal(err)
	}
	if !git.SamePath(saved.WorktreePath, moved) {
		t.Errorf("repaired path not saved: %s", saved.WorktreePath)
	}
}

func TestResolve_RepairByDirectoryName(t *testing.T) {
	m, repo := newTestManager(t)
	sess := create(t, m, "demo")

	// The record points at a branch no worktree has any more, but a
	// worktree directory named after the session exists.
	gittest.Run(t, repo, "worktree", "remove", "--force", sess.WorktreePath)
	elsewhere := filepath.Join(t.TempDir(), "demo-copy")
	gittest.Run(t, repo, "worktree", "add", "-b", "other/branch", elsewhere)

	res, err := New(m).Resolve(ctx, "demo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Repaired || !git.SamePath(res.WorktreePath, elsewhere) {
		t.Errorf("expected repair to %s, got %+v", elsewhere, res)
	}
}

func TestResolve_MissingWorktreeNotRepairable(t *testing.T) {
	m, repo := newTestManager(t)
	sess := create(t, m, "demo")
	gittest.Run(t, repo, "worktree", "remove", "--force", sess.WorktreePath)

	_, err := New(m).Resolve(ctx, "demo")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve error = %v, want ErrNotFound", err)
	}
}

func TestResolve_PartialSkipsUnrepairableMatch(t *testing.T) {
	repo := gittest.NewRepo(t)
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := session.NewManager(git.NewGitService().WithClock(fake), config.Default(), repo, session.WithClock(fake))

	older := create(t, m, "auth-login")
	fake.Advance(time.Hour)
	newer := create(t, m, "auth-tokens")
	gittest.Run(t, repo, "worktree", "remove", "--force", newer.WorktreePath)

	res, err := New(m).Resolve(ctx, "auth")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Name != older.Name || res.Strategy != "partial" {
		t.Errorf("Resolve(auth) = %s via %s, want %s via partial", res.Name, res.Strategy, older.Name)
	}
}

func TestResolve_WorktreeHeuristic(t *testing.T) {
	m, repo := newTestManager(t)
	sess := create(t, m, "login-page")

	unmanaged := filepath.Join(t.TempDir(), "scratch")
	gittest.Run(t, repo, "worktree", "add", "-b", "feature/xyz-spike", unmanaged)

	tests := []struct {
		name        string
		query       string
		wantName    string
		wantSession bool
		wantPath    string
	}{
		{"branch substring maps back to record", "page", sess.Name, true, sess.WorktreePath},
		{"unmanaged worktree by branch", "xyz", "xyz", false, unmanaged},
		{"unmanaged worktree by directory", "scra", "scra", false, unmanaged},
	}

	r := New(m)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(ctx, tt.query)
			if err != nil {
				t.Fatalf("Resolve(%s): %v", tt.query, err)
			}
			if res.Strategy != "worktree" {
				t.Errorf("Strategy = %s, want worktree", res.Strategy)
			}
			if res.Name != tt.wantName {
				t.Errorf("Name = %s, want %s", res.Name, tt.wantName)
			}
			if (res.Session != nil) != tt.wantSession {
				t.Errorf("Session = %v, want present=%v", res.Session, tt.wantSession)
			}
			if !git.SamePath(res.WorktreePath, tt.wantPath) {
				t.Errorf("WorktreePath = %s, want %s", res.WorktreePath, tt.wantPath)
			}
		})
	}
}

func TestResolve_MainWorktreeNeverMatches(t *testing.T) {
	m, repo := newTestManager(t)

	_, err := New(m).Resolve(ctx, filepath.Base(repo))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve error = %v, want ErrNotFound", err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	m, _ := newTestManager(t)
	create(t, m, "demo")

	for _, q := range []string{"", "nothing"} {
		if _, err := New(m).Resolve(ctx, q); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q) error = %v, want ErrNotFound", q, err)
		}
	}
}

type stubStrategy struct {
	name  string
	res   *Resolution
	calls *[]string
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) TryResolve(_ context.Context, _ string) (*Resolution, error) {
	*s.calls = append(*s.calls, s.name)
	if s.res == nil {
		return nil, errNoMatch
	}
	return s.res, nil
}

func TestResolver_StopsAtFirstMatch(t *testing.T) {
	var calls []string
	r := NewResolver(
		stubStrategy{name: "a", calls: &calls},
		stubStrategy{name: "b", res: &Resolution{Name: "hit"}, calls: &calls},
		stubStrategy{name: "c", res: &Resolution{Name: "late"}, calls: &calls},
	)

	res, err := r.Resolve(ctx, "q")
	if err != nil {
		t.Fatal(err)
	}
	if res.Name != "hit" {
		t.Errorf("Name = %s, want hit", res.Name)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}
