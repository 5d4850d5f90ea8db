package migrate

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/zhubert/para/names"
	"github.com/zhubert/para/state"
)

// isLegacyState reports whether a .state file needs rewriting. Files that
// cannot be read or decoded at all are left to the store's corruption
// handling.
func isLegacyState(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return false
	}
	for _, key := range []string{"is_docker", "session_type", "updated_at"} {
		if _, ok := raw[key]; ok {
			return true
		}
	}
	if status, ok := raw["status"].(string); ok {
		if parsed, err := state.ParseStatus(status); err == nil && string(parsed) != status {
			return true
		}
	}
	if created, ok := raw["created_at"].(string); ok {
		if _, err := time.Parse(time.RFC3339, created); err != nil {
			return true
		}
	}
	return false
}

// convertState normalises the legacy timestamp and lets Session's own
// decoder fold the legacy container fields. Marshalling the result drops
// them.
func (m *Migrator) convertState(data []byte) (*state.Session, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	delete(raw, "updated_at")

	created := m.clock.Now().UTC()
	if v, ok := raw["created_at"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if t, err := parseTimestamp(s); err == nil {
				created = t
			}
		}
	}
	stamp, _ := json.Marshal(created.Format(time.RFC3339))
	raw["created_at"] = stamp

	normalised, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var sess state.Session
	if err := json.Unmarshal(normalised, &sess); err != nil {
		return nil, err
	}
	if sess.Name == "" {
		return nil, errors.New("record has no name")
	}
	if sess.ID == "" {
		sess.ID = names.SessionID(m.repoRoot, sess.Name, sess.CreatedAt)
	}
	return &sess, nil
}

// dispatchRecord is the <id>.json shape written by the dispatch flow.
type dispatchRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Branch    string `json:"branch"`
	Path      string `json:"path"`
	Prompt    string `json:"prompt"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
}

func (m *Migrator) convertDispatch(data []byte) (*state.Session, error) {
	var rec dispatchRecord
	if err := json.Unmarshal(jsonc.ToJSON(data), &rec); err != nil {
		return nil, fmt.Errorf("unrecognised JSON format: %w", err)
	}
	if rec.Name == "" || rec.Branch == "" || rec.Path == "" {
		return nil, errors.New("dispatch record needs name, branch and path")
	}

	status := state.StatusActive
	if rec.Status != "" {
		var err error
		if status, err = state.ParseStatus(rec.Status); err != nil {
			return nil, err
		}
	}
	created, err := parseTimestamp(rec.CreatedAt)
	if err != nil {
		created = m.clock.Now().UTC()
	}
	sess := &state.Session{
		ID:              rec.ID,
		Name:            rec.Name,
		Branch:          rec.Branch,
		WorktreePath:    rec.Path,
		CreatedAt:       created,
		Status:          status,
		TaskDescription: rec.Prompt,
	}
	if sess.ID == "" {
		sess.ID = names.SessionID(m.repoRoot, sess.Name, created)
	}
	return sess, nil
}

// convertShell reads KEY=VALUE lines. Blank lines, comments and an
// "export " prefix are tolerated; values may be quoted.
func (m *Migrator) convertShell(data []byte) (*state.Session, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := values[k]; v != "" {
				return v
			}
		}
		return ""
	}

	name := first("SESSION_NAME")
	if name == "" {
		return nil, errors.New("missing SESSION_NAME")
	}
	branch := first("BRANCH_NAME", "SESSION_BRANCH")
	if branch == "" {
		return nil, errors.New("missing branch name")
	}
	path := first("WORKTREE_PATH", "SESSION_PATH")
	if path == "" {
		return nil, errors.New("missing worktree path")
	}

	created, err := parseTimestamp(first("CREATED_AT"))
	if err != nil {
		created = m.clock.Now().UTC()
	}
	return &state.Session{
		ID:              names.SessionID(m.repoRoot, name, created),
		Name:            name,
		Branch:          branch,
		WorktreePath:    path,
		CreatedAt:       created,
		Status:          state.StatusActive,
		ParentBranch:    first("BASE_BRANCH"),
		TaskDescription: first("PROMPT"),
	}, nil
}
