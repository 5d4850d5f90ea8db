// Package state persists one JSON record per session under the state
// directory and owns the record's schema, including decoding of older
// on-disk shapes.
package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "Active"
	StatusReview    Status = "Review"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus parses a status name case-insensitively. The retired
// "Finished" status reads as Review.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "review", "finished":
		return StatusReview, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown session status %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Active and Review move freely between each other and into Cancelled;
// nothing leaves Cancelled. Staying in place is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusActive:
		return next == StatusReview || next == StatusCancelled
	case StatusReview:
		return next == StatusActive || next == StatusCancelled
	}
	return false
}

// ContainerRef marks a session that runs inside a container. ID may be
// empty when the container has not been created yet or the record
// predates container IDs.
type ContainerRef struct {
	ID string `json:"id,omitempty"`
}

// GitStats is a snapshot of a session's diff against its parent branch.
type GitStats struct {
	FilesChanged int `json:"files_changed"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
}

// Session is the durable record of one session.
type Session struct {
	ID              string        `json:"id,omitempty"`
	Name            string        `json:"name"`
	Branch          string        `json:"branch"`
	WorktreePath    string        `json:"worktree_path"`
	CreatedAt       time.Time     `json:"created_at"`
	Status          Status        `json:"status"`
	ParentBranch    string        `json:"parent_branch,omitempty"`
	TaskDescription string        `json:"task_description,omitempty"`
	LastActivity    *time.Time    `json:"last_activity,omitempty"`
	GitStats        *GitStats     `json:"git_stats,omitempty"`
	Container       *ContainerRef `json:"container,omitempty"`

	DangerouslySkipPermissions bool   `json:"dangerously_skip_permissions,omitempty"`
	SandboxProfile             string `json:"sandbox_profile,omitempty"`
}

// IsContainer reports whether the session is container-typed.
func (s *Session) IsContainer() bool {
	return s.Container != nil
}

// IsLive reports whether the session should have a working worktree.
func (s *Session) IsLive() bool {
	return s.Status == StatusActive || s.Status == StatusReview
}

// legacySessionType is the older tagged form: "Worktree" or
// {"Container": {"container_id": "..."}}.
type legacySessionType struct {
	Container *struct {
		ContainerID *string `json:"container_id"`
	} `json:"Container"`
}

// UnmarshalJSON decodes a record, folding the legacy is_docker flag and
// session_type tag into Container. Neither legacy field is written back.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var raw struct {
		plain
		IsDocker    *bool           `json:"is_docker"`
		SessionType json.RawMessage `json:"session_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Session(raw.plain)

	if s.Status == "" {
		s.Status = StatusActive
	}

	if s.Container == nil && len(raw.SessionType) > 0 && raw.SessionType[0] == '{' {
		var st legacySessionType
		if err := json.Unmarshal(raw.SessionType, &st); err != nil {
			return fmt.Errorf("session_type: %w", err)
		}
		if st.Container != nil {
			s.Container = &ContainerRef{}
			if st.Container.ContainerID != nil {
				s.Container.ID = *st.Container.ContainerID
			}
		}
	}

	if s.Container == nil && raw.IsDocker != nil && *raw.IsDocker {
		s.Container = &ContainerRef{}
	}
	return nil
}
