// Package resolve maps an approximate session name, as typed on the
// command line, to a session and its worktree.
//
// Strategies run in a fixed order and the first match wins:
//
//  1. exact: a record with exactly that name, repairing a moved worktree
//  2. partial: a record whose name starts with the query, such as a
//     timestamp-suffixed duplicate
//  3. worktree: any live worktree whose branch or directory contains the
//     query, with or without a record
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/session"
	"github.com/zhubert/para/state"
)

// ErrNotFound is returned when every strategy fails.
var ErrNotFound = errors.New("no matching session found")

// Resolution is a resolved session. Session is nil when the worktree
// heuristic matched a worktree that has no record.
type Resolution struct {
	Name         string
	Session      *state.Session
	WorktreePath string
	Branch       string
	Strategy     string
	// Repaired is set when the record's worktree path was stale and has
	// been rewritten to a live worktree.
	Repaired bool
}

// Strategy is one way of resolving a query. TryResolve returns an error
// when it finds nothing; the Resolver then moves on to the next strategy.
type Strategy interface {
	Name() string
	TryResolve(ctx context.Context, query string) (*Resolution, error)
}

// Resolver runs strategies in order.
type Resolver struct {
	strategies []Strategy
}

// NewResolver returns a Resolver over the given strategies.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// New returns the standard exact, partial, worktree resolver for m.
func New(m *session.Manager) *Resolver {
	exact := &ExactStrategy{manager: m}
	return NewResolver(
		exact,
		&PartialStrategy{manager: m, exact: exact},
		&WorktreeStrategy{manager: m},
	)
}

// Resolve returns the first strategy's match for query.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Resolution, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrNotFound)
	}
	log := logger.WithComponent("resolve")

	for _, s := range r.strategies {
		res, err := s.TryResolve(ctx, query)
		if err != nil {
			log.Debug("strategy did not match", "strategy", s.Name(), "query", query, "error", err)
			continue
		}
		log.Debug("resolved session", "strategy", s.Name(), "query", query, "name", res.Name, "repaired", res.Repaired)
		return res, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, query)
}
