// Package session manages para sessions: named units of isolated work,
// each bound to its own branch and git worktree.
//
// # Lifecycle
//
// 1. Create: the Manager picks a collision-free name, provisions a worktree
// under the subtrees directory on branch <prefix>/<name>, and only then
// writes the session record. A failed worktree leaves nothing behind.
//
// 2. Status: sessions move between Active and Review; Cancelled is
// terminal. Illegal moves fail with ErrInvalidTransition.
//
// 3. Cancel: the record is deleted and the branch optionally archived
// under <prefix>/archived/<timestamp>/<name>. The worktree is removed only
// when forced or when the session is container-typed, so uncommitted work
// in a plain worktree is never dropped silently.
//
// # Layout
//
// With the default configuration a repository holds:
//
//	<repo>/.para/.gitignore
//	<repo>/.para/state/<name>.state
//	<repo>/.para/worktrees/<name>/
//
// Relative directories are always resolved against the main repository
// root, even when para runs inside one of its worktrees.
package session
