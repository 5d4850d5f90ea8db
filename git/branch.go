package git

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/zhubert/para/logger"
)

// MaxBranchNameLength is the longest branch name accepted by ValidateBranchName.
const MaxBranchNameLength = 250

// Branch is a local branch and the commit it points to.
type Branch struct {
	Name      string
	Commit    string
	IsCurrent bool
}

// ValidateBranchName applies git's ref naming rules to a branch name.
func ValidateBranchName(name string) error {
	fail := func(reason string) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidBranchName, name, reason)
	}

	switch {
	case name == "":
		return fail("name cannot be empty")
	case len(name) > MaxBranchNameLength:
		return fail(fmt.Sprintf("longer than %d characters", MaxBranchNameLength))
	case name == "@":
		return fail("cannot be '@'")
	case strings.HasPrefix(name, "-"):
		return fail("cannot start with '-'")
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fail("cannot start or end with '/'")
	case strings.HasSuffix(name, ".") || strings.HasSuffix(name, ".lock"):
		return fail("cannot end with '.' or '.lock'")
	case strings.HasPrefix(name, "refs/"):
		return fail("cannot start with 'refs/'")
	case strings.Contains(name, ".."):
		return fail("cannot contain '..'")
	case strings.Contains(name, "//"):
		return fail("cannot contain '//'")
	case strings.Contains(name, "/.") || strings.HasPrefix(name, "."):
		return fail("path components cannot start with '.'")
	case strings.Contains(name, "@{"):
		return fail("cannot contain '@{'")
	}

	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fail("cannot contain whitespace or control characters")
		}
		if strings.ContainsRune(`~^:\*?[`, r) {
			return fail(fmt.Sprintf("cannot contain %q", r))
		}
	}
	return nil
}

// BranchExists reports whether a local branch exists.
func (s *GitService) BranchExists(ctx context.Context, repoPath, branch string) bool {
	return s.succeeds(ctx, repoPath, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
}

// CreateBranch creates branch at startPoint without checking it out.
func (s *GitService) CreateBranch(ctx context.Context, repoPath, branch, startPoint string) error {
	if err := ValidateBranchName(branch); err != nil {
		return err
	}
	if startPoint == "" {
		startPoint = "HEAD"
	}
	if _, err := s.run(ctx, repoPath, "branch", branch, startPoint); err != nil {
		return err
	}
	logger.WithComponent("git").Info("created branch", "branch", branch, "startPoint", startPoint)
	return nil
}

// DeleteBranch deletes a local branch. Without force git refuses to drop
// unmerged work. The branch checked out in repoPath cannot be deleted.
func (s *GitService) DeleteBranch(ctx context.Context, repoPath, branch string, force bool) error {
	if !s.BranchExists(ctx, repoPath, branch) {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	}
	if current, err := s.CurrentBranch(ctx, repoPath); err == nil && current == branch {
		return fmt.Errorf("cannot delete branch %s: it is currently checked out", branch)
	}

	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := s.run(ctx, repoPath, "branch", flag, branch); err != nil {
		return err
	}
	logger.WithComponent("git").Info("deleted branch", "branch", branch, "force", force)
	return nil
}

// RenameBranch renames oldName to newName. Worktrees that have oldName
// checked out follow the rename.
func (s *GitService) RenameBranch(ctx context.Context, repoPath, oldName, newName string) error {
	if err := ValidateBranchName(newName); err != nil {
		return err
	}
	if !s.BranchExists(ctx, repoPath, oldName) {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, oldName)
	}
	if _, err := s.run(ctx, repoPath, "branch", "-m", oldName, newName); err != nil {
		return err
	}
	return nil
}

// ListBranches returns all local branches.
func (s *GitService) ListBranches(ctx context.Context, repoPath string) ([]Branch, error) {
	return s.listBranches(ctx, repoPath, "refs/heads/")
}

func (s *GitService) listBranches(ctx context.Context, repoPath, refPrefix string) ([]Branch, error) {
	out, err := s.run(ctx, repoPath, "for-each-ref",
		"--format=%(refname:short)%00%(objectname)%00%(HEAD)", refPrefix)
	if err != nil {
		return nil, err
	}
	return parseBranchList(out), nil
}

func parseBranchList(out string) []Branch {
	var branches []Branch
	for line := range strings.SplitSeq(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\x00")
		if len(fields) != 3 {
			continue
		}
		branches = append(branches, Branch{
			Name:      fields[0],
			Commit:    fields[1],
			IsCurrent: fields[2] == "*",
		})
	}
	return branches
}

// UniqueBranchName returns base if no branch by that name exists,
// otherwise the first free base-N for N in 1..999.
func (s *GitService) UniqueBranchName(ctx context.Context, repoPath, base string) (string, error) {
	if !s.BranchExists(ctx, repoPath, base) {
		return base, nil
	}
	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !s.BranchExists(ctx, repoPath, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free branch name for %s after 999 attempts", base)
}
