package git

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/names"
)

const archiveSegment = "archived"

// ArchivedBranch is a parsed <prefix>/archived/<timestamp>/<session> name.
type ArchivedBranch struct {
	Branch      string
	SessionName string
	Timestamp   time.Time
}

// ArchivePrefix returns the ref namespace holding archived branches.
func ArchivePrefix(prefix string) string {
	return names.BranchName(prefix, archiveSegment) + "/"
}

// ArchivedBranchName encodes a session's archive branch.
func ArchivedBranchName(prefix, sessionName string, at time.Time) string {
	return ArchivePrefix(prefix) + names.Timestamp(at) + "/" + sessionName
}

// ParseArchivedBranch decodes an archive branch name. Exactly two
// segments, a timestamp and a session name, must follow the archive
// prefix; anything else is rejected.
func ParseArchivedBranch(branch, prefix string) (*ArchivedBranch, error) {
	rest, ok := strings.CutPrefix(branch, ArchivePrefix(prefix))
	if !ok {
		return nil, fmt.Errorf("%s is not under %s", branch, ArchivePrefix(prefix))
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed archive branch %s: want %s<timestamp>/<session>", branch, ArchivePrefix(prefix))
	}

	ts, err := names.ParseTimestamp(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed archive branch %s: %w", branch, err)
	}

	return &ArchivedBranch{
		Branch:      branch,
		SessionName: parts[1],
		Timestamp:   ts,
	}, nil
}

// ArchiveBranch renames branch into the archive namespace instead of
// deleting it, so the work stays recoverable. It returns the new name.
func (s *GitService) ArchiveBranch(ctx context.Context, repoPath, branch, prefix, sessionName string) (string, error) {
	archived := ArchivedBranchName(prefix, sessionName, s.clock.Now())
	if err := s.RenameBranch(ctx, repoPath, branch, archived); err != nil {
		return "", err
	}
	logger.WithComponent("git").Info("archived branch", "branch", branch, "archived", archived)
	return archived, nil
}

// RestoreArchivedBranch renames an archived branch back to
// <prefix>/<session>, or to a -N variant when that name is taken. It
// returns the restored name.
func (s *GitService) RestoreArchivedBranch(ctx context.Context, repoPath, archived, prefix string) (string, error) {
	parsed, err := ParseArchivedBranch(archived, prefix)
	if err != nil {
		return "", err
	}
	if !s.BranchExists(ctx, repoPath, archived) {
		return "", fmt.Errorf("%w: %s", ErrBranchNotFound, archived)
	}

	target, err := s.UniqueBranchName(ctx, repoPath, names.BranchName(prefix, parsed.SessionName))
	if err != nil {
		return "", err
	}
	if err := s.RenameBranch(ctx, repoPath, archived, target); err != nil {
		return "", err
	}
	logger.WithComponent("git").Info("restored archived branch", "archived", archived, "branch", target)
	return target, nil
}

// ListArchivedBranches returns the names of all branches under the
// archive namespace, newest first by name.
func (s *GitService) ListArchivedBranches(ctx context.Context, repoPath, prefix string) ([]string, error) {
	branches, err := s.listBranches(ctx, repoPath, "refs/heads/"+ArchivePrefix(prefix))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(branches))
	for _, b := range branches {
		out = append(out, b.Name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}
