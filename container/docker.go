// Package container talks to the Docker daemon about the containers that
// back container-typed sessions.
package container

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/zhubert/para/logger"
)

// api is the subset of the Docker client used here.
type api interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// Client wraps the Docker client with the operations para needs.
type Client struct {
	cli api
}

// NewClient connects using the standard DOCKER_* environment and
// negotiates the API version with the daemon.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Close closes the underlying Docker client.
func (c *Client) Close() error {
	return c.cli.Close()
}

// Name returns the container name for a session.
func Name(prefix, session string) string {
	return prefix + session
}

// SessionName returns the session a container belongs to, or false when
// the container name does not carry prefix.
func SessionName(prefix, containerName string) (string, bool) {
	name := strings.TrimPrefix(containerName, "/")
	if prefix == "" || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return "", false
	}
	return name[len(prefix):], true
}

// List returns the names of all containers, running or stopped, whose
// name starts with prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var names []string
	for _, ctr := range containers {
		for _, name := range ctr.Names {
			// Docker container names start with "/"
			name = strings.TrimPrefix(name, "/")
			// The name filter is a substring match.
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
				break
			}
		}
	}
	return names, nil
}

// Remove removes a container. A container that does not exist counts as
// removed.
func (c *Client) Remove(ctx context.Context, name string, force bool) error {
	err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}
	if err == nil {
		logger.WithComponent("container").Info("removed container", "container", name)
	}
	return nil
}
