// Package completion enumerates session and archive names for shell
// completion. Enumeration is bounded by the configured timeout so a slow
// repository never stalls the shell; on timeout or error the result is
// empty.
package completion

import (
	"context"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/recovery"
	"github.com/zhubert/para/session"
)

// Completer serves completion candidates for one repository.
type Completer struct {
	manager  *session.Manager
	recovery *recovery.Service
	group    singleflight.Group
}

// New returns a Completer for m.
func New(m *session.Manager) *Completer {
	return &Completer{manager: m, recovery: recovery.NewService(m)}
}

// SessionNames returns the names of all readable session records,
// sorted.
func (c *Completer) SessionNames(ctx context.Context) []string {
	return c.bounded(ctx, "sessions", func() ([]string, error) {
		names, err := c.manager.Store().Names()
		if err != nil {
			return nil, err
		}
		slices.Sort(names)
		return names, nil
	})
}

// ArchivedNames returns the distinct original session names that have an
// archive, newest archive first.
func (c *Completer) ArchivedNames(ctx context.Context) []string {
	return c.bounded(ctx, "archives", func() ([]string, error) {
		infos, err := c.recovery.ListRecoverable(ctx)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, info := range infos {
			if !slices.Contains(names, info.OriginalName) {
				names = append(names, info.OriginalName)
			}
		}
		return names, nil
	})
}

// bounded runs fn once per key at a time and waits for it no longer than
// the completion timeout.
func (c *Completer) bounded(ctx context.Context, key string, fn func() ([]string, error)) []string {
	log := logger.WithComponent("completion")
	timeout := c.manager.Config().CompletionTimeout()

	ch := c.group.DoChan(key, func() (any, error) {
		return fn()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			log.Debug("completion enumeration failed", "kind", key, "error", res.Err)
			return []string{}
		}
		names, _ := res.Val.([]string)
		if names == nil {
			return []string{}
		}
		return slices.Clone(names)
	case <-c.manager.Clock().After(timeout):
		log.Debug("completion timed out", "kind", key, "timeout", timeout)
		return []string{}
	case <-ctx.Done():
		return []string{}
	}
}
