package container

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/errdefs"

	"github.com/zhubert/para/logger"
)

func TestMain(m *testing.M) {
	logger.InitWriter(io.Discard)
	os.Exit(m.Run())
}

type fakeAPI struct {
	containers []types.Container
	listErr    error
	removeErr  error
	removed    []string
	lastForce  bool
	closed     bool
}

func (f *fakeAPI) ContainerList(_ context.Context, opts container.ListOptions) ([]types.Container, error) {
	if !opts.All {
		return nil, errors.New("expected All to be set")
	}
	return f.containers, f.listErr
}

func (f *fakeAPI) ContainerRemove(_ context.Context, id string, opts container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	f.lastForce = opts.Force
	return f.removeErr
}

func (f *fakeAPI) Close() error {
	f.closed = true
	return nil
}

func TestList(t *testing.T) {
	fake := &fakeAPI{containers: []types.Container{
		{Names: []string{"/para-demo"}},
		{Names: []string{"/other", "/para-alias"}},
		{Names: []string{"/x-para-embedded"}},
		{Names: []string{"/unrelated"}},
	}}
	c := &Client{cli: fake}

	got, err := c.List(context.Background(), "para-")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"para-demo", "para-alias"}
	if !slices.Equal(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}

func TestList_Error(t *testing.T) {
	c := &Client{cli: &fakeAPI{listErr: errors.New("daemon down")}}
	if _, err := c.List(context.Background(), "para-"); err == nil {
		t.Error("List should fail when the daemon does")
	}
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"removed", nil, false},
		{"missing is success", errdefs.NotFound(errors.New("no such container")), false},
		{"daemon error", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAPI{removeErr: tt.err}
			c := &Client{cli: fake}
			err := c.Remove(context.Background(), "para-demo", true)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Remove error = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(fake.removed, []string{"para-demo"}) || !fake.lastForce {
				t.Errorf("removed = %v force = %v", fake.removed, fake.lastForce)
			}
		})
	}
}

func TestClose(t *testing.T) {
	fake := &fakeAPI{}
	if err := (&Client{cli: fake}).Close(); err != nil || !fake.closed {
		t.Errorf("Close = %v, closed = %v", err, fake.closed)
	}
}

func TestSessionName(t *testing.T) {
	tests := []struct {
		prefix, container string
		want              string
		ok                bool
	}{
		{"para-", "para-demo", "demo", true},
		{"para-", "/para-demo", "demo", true},
		{"para-", "para-", "", false},
		{"para-", "other", "", false},
		{"", "demo", "", false},
	}
	for _, tt := range tests {
		got, ok := SessionName(tt.prefix, tt.container)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SessionName(%q, %q) = %q, %v; want %q, %v", tt.prefix, tt.container, got, ok, tt.want, tt.ok)
		}
	}
	if Name("para-", "demo") != "para-demo" {
		t.Errorf("Name = %q", Name("para-", "demo"))
	}
}
