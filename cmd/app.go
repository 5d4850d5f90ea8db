package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubert/para/cleanup"
	"github.com/zhubert/para/config"
	"github.com/zhubert/para/container"
	"github.com/zhubert/para/git"
	"github.com/zhubert/para/logger"
	"github.com/zhubert/para/session"
	"github.com/zhubert/para/state"
	"github.com/zhubert/para/ui"
)

// cleanupGrace is how long a command waits on exit for background
// cleanup it started.
const cleanupGrace = 2 * time.Second

// isInteractive is swapped in tests.
var isInteractive = ui.IsInteractive

// app is what most commands need: config plus a manager bound to the
// repository containing --dir or the working directory.
type app struct {
	cfg        *config.Config
	manager    *session.Manager
	containers *container.Client
	cleanup    <-chan *cleanup.Result
}

func openApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	dir, err := opts.workDir()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	var mopts []session.Option
	if cfg.Docker.Enabled {
		c, err := container.NewClient()
		if err != nil {
			logger.WithComponent("cmd").Warn("docker unavailable", "error", err)
		} else {
			a.containers = c
			mopts = append(mopts, session.WithContainers(c))
		}
	}

	a.manager, err = session.Open(ctx, git.NewGitService(), cfg, dir, mopts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Docker.Enabled {
		var containers cleanup.Containers
		if a.containers != nil {
			containers = a.containers
		}
		a.cleanup = cleanup.New(a.manager, containers).StartBackground(context.WithoutCancel(ctx))
	}
	return a, nil
}

// Close waits briefly for background cleanup and releases the Docker
// client.
func (a *app) Close() {
	if a.cleanup != nil {
		select {
		case <-a.cleanup:
		case <-time.After(cleanupGrace):
			logger.WithComponent("cmd").Debug("background cleanup still running at exit")
		}
	}
	if a.containers != nil {
		a.containers.Close()
	}
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(*app) error) error {
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// workDir is --dir when given, otherwise the working directory.
func (o *globalOptions) workDir() (string, error) {
	if o.dir != "" {
		return o.dir, nil
	}
	return os.Getwd()
}

// sessionFor returns the record named exactly by args[0]. With no name it
// falls back to the session the working directory belongs to.
func sessionFor(ctx context.Context, a *app, opts *globalOptions, args []string) (*state.Session, error) {
	if len(args) > 0 {
		return a.manager.Get(args[0])
	}
	dir, err := opts.workDir()
	if err != nil {
		return nil, err
	}
	sess, err := a.manager.Detect(ctx, dir)
	if errors.Is(err, session.ErrNoCurrentSession) {
		return nil, fmt.Errorf("%w; pass a session name", err)
	}
	return sess, err
}

// confirmAction asks before destructive work. Without a terminal it
// refuses unless --yes was given.
func confirmAction(yes bool, prompt string) (bool, error) {
	if yes {
		return true, nil
	}
	if !isInteractive() {
		return false, errors.New("refusing to continue without --yes when stdin is not a terminal")
	}
	return ui.Confirm(prompt, false), nil
}
