// Package git is the version-control adapter for para. Every operation
// shells out to the git CLI through an exec.CommandExecutor and fails
// with a *VcsError carrying git's own stderr on non-zero exit. Nothing
// is retried.
//
// The package is organized into focused modules:
//   - service.go: GitService, VcsError and the command helpers
//   - repository.go: repository discovery and default branch detection
//   - worktree.go: worktree create/remove/list and stale cleanup
//   - branch.go: branch create/delete/rename/list and name validation
//   - archive.go: archive branch encoding, archive and restore
//   - status.go: dirty detection, staging and committing
package git
