package cleanup

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zhubert/para/clock"
	"github.com/zhubert/para/config"
	"github.com/zhubert/para/git"
	"github.com/zhubert/para/gittest"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/session"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "para-cleanup-test-*")
	if err == nil {
		logger.Init(filepath.Join(dir, "test.log"))
	}
	code := m.Run()
	logger.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

type fakeContainers struct {
	mu      sync.Mutex
	names   []string
	listErr error
	removed []string
}

func (f *fakeContainers) List(_ context.Context, prefix string) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeContainers) Remove(_ context.Context, name string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	return nil
}

func newTestManager(t *testing.T) (*session.Manager, *clock.Fake) {
	t.Helper()
	repo := gittest.NewRepo(t)
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := session.NewManager(git.NewGitService().WithClock(fake), config.Default(), repo,
		session.WithClock(fake), session.WithRand(rand.New(rand.NewPCG(1, 2))))
	return m, fake
}

// orphan creates a session and deletes its record, leaving the worktree.
func orphan(t *testing.T, m *session.Manager, name string) string {
	t.Helper()
	sess, err := m.Create(ctx, name, session.CreateOptions{})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	if err := m.Store().Delete(name); err != nil {
		t.Fatal(err)
	}
	return sess.WorktreePath
}

func TestShouldRun(t *testing.T) {
	m, fake := newTestManager(t)
	c := New(m, nil)

	if !c.ShouldRun() {
		t.Fatal("ShouldRun should be true without a marker")
	}
	if err := c.touch(); err != nil {
		t.Fatal(err)
	}
	if c.ShouldRun() {
		t.Error("ShouldRun should be false right after touch")
	}
	fake.Advance(59 * time.Minute)
	if c.ShouldRun() {
		t.Error("ShouldRun should be false within the interval")
	}
	fake.Advance(time.Minute)
	if !c.ShouldRun() {
		t.Error("ShouldRun should be true once the interval has passed")
	}
}

func TestRun(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Create(ctx, "alpha", session.CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	cleanPath := orphan(t, m, "beta")
	dirtyPath := orphan(t, m, "gamma")
	if err := os.WriteFile(filepath.Join(dirtyPath, "wip.txt"), []byte("unsaved"), 0644); err != nil {
		t.Fatal(err)
	}

	containers := &fakeContainers{names: []string{"para-alpha", "para-ghost", "para-"}}
	res, err := New(m, containers).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !slices.Equal(res.ContainersRemoved, []string{"para-ghost"}) {
		t.Errorf("ContainersRemoved = %v, want [para-ghost]", res.ContainersRemoved)
	}
	if len(res.WorktreesRemoved) != 1 || !git.SamePath(res.WorktreesRemoved[0], cleanPath) {
		t.Errorf("WorktreesRemoved = %v, want [%s]", res.WorktreesRemoved, cleanPath)
	}
	if len(res.WorktreesSkipped) != 1 || !git.SamePath(res.WorktreesSkipped[0], dirtyPath) {
		t.Errorf("WorktreesSkipped = %v, want [%s]", res.WorktreesSkipped, dirtyPath)
	}

	if _, err := os.Stat(cleanPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("clean orphan should be removed")
	}
	if _, err := os.Stat(filepath.Join(dirtyPath, "wip.txt")); err != nil {
		t.Error("dirty orphan should keep its work")
	}
	if _, err := os.Stat(m.WorktreePath("alpha")); err != nil {
		t.Error("recorded session worktree should be untouched")
	}
}

func TestRun_ListErrorReported(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := New(m, &fakeContainers{listErr: errors.New("daemon down")}).Run(ctx)
	if err == nil {
		t.Error("Run should report a container enumeration failure")
	}
}

func TestRun_ContainerFailureStillCleansWorktrees(t *testing.T) {
	m, _ := newTestManager(t)
	orphanPath := orphan(t, m, "beta")

	res, err := New(m, &fakeContainers{listErr: errors.New("daemon down")}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "daemon down") {
		t.Errorf("Run error = %v, want the container failure", err)
	}
	if len(res.WorktreesRemoved) != 1 || !git.SamePath(res.WorktreesRemoved[0], orphanPath) {
		t.Errorf("WorktreesRemoved = %v, want [%s]", res.WorktreesRemoved, orphanPath)
	}
	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Error("orphaned worktree should be removed even when docker is down")
	}
}

func TestRun_NothingToDo(t *testing.T) {
	m, _ := newTestManager(t)
	res, err := New(m, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.ContainersRemoved)+len(res.WorktreesRemoved)+len(res.WorktreesSkipped) != 0 {
		t.Errorf("expected no work, got %+v", res)
	}
}

func TestStartBackground(t *testing.T) {
	m, _ := newTestManager(t)
	orphanPath := orphan(t, m, "beta")
	c := New(m, nil)

	done := c.StartBackground(ctx)
	if done == nil {
		t.Fatal("first StartBackground should start a run")
	}
	if _, err := os.Stat(c.MarkerPath()); err != nil {
		t.Errorf("marker should be written before the run: %v", err)
	}

	select {
	case res := <-done:
		if len(res.WorktreesRemoved) != 1 || !git.SamePath(res.WorktreesRemoved[0], orphanPath) {
			t.Errorf("WorktreesRemoved = %v", res.WorktreesRemoved)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("background cleanup did not finish")
	}

	if c.StartBackground(ctx) != nil {
		t.Error("second StartBackground within the interval should do nothing")
	}
}
