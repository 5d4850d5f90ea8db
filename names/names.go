// Package names derives session names, branch names and session IDs.
package names

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampFormat is the UTC layout used for name disambiguation and
// archive branches.
const TimestampFormat = "20060102-150405"

// MaxNameLength bounds session names.
const MaxNameLength = 100

// ErrInvalidName is returned for session names that fail validation.
var ErrInvalidName = errors.New("invalid session name")

var validNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]*[a-zA-Z0-9])?$`)

// sessionNamespace scopes deterministic session IDs.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/zhubert/para/session"))

// Timestamp formats t in UTC as YYYYMMDD-HHMMSS.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp parses a Timestamp string back into a UTC time.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) != len(TimestampFormat) {
		return time.Time{}, fmt.Errorf("timestamp %q: want format YYYYMMDD-HHMMSS", s)
	}
	t, err := time.ParseInLocation(TimestampFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}

// BranchName returns the friendly branch for a session: prefix/name.
func BranchName(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Disambiguate appends a UTC timestamp to name.
func Disambiguate(name string, t time.Time) string {
	return name + "_" + Timestamp(t)
}

// Validate checks that name is usable as a session name, a state file
// name and a single branch path segment.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	}
	if !validNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must start and end with a letter or digit and contain only letters, digits, '-' and '_'", ErrInvalidName, name)
	}
	if strings.Contains(name, "__") || strings.Contains(name, "--") {
		return fmt.Errorf("%w: %q cannot contain consecutive '_' or '-'", ErrInvalidName, name)
	}
	return nil
}

// SessionID returns a stable UUID for a session created in repoRoot
// under name at createdAt.
func SessionID(repoRoot, name string, createdAt time.Time) string {
	data := repoRoot + "\x00" + name + "\x00" + createdAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(sessionNamespace, []byte(data)).String()
}

var adjectives = []string{
	"agile", "bold", "brave", "bright", "calm", "clever", "cosmic", "crisp",
	"eager", "fancy", "gentle", "happy", "jolly", "keen", "lucky", "mellow",
	"nimble", "proud", "quick", "quiet", "rapid", "shiny", "snappy", "steady",
	"sunny", "swift", "tidy", "vivid", "witty", "zesty",
}

var nouns = []string{
	"badger", "beacon", "comet", "falcon", "forest", "galaxy", "harbor", "island",
	"lantern", "maple", "meadow", "nebula", "otter", "panda", "phoenix", "pixel",
	"quasar", "raven", "river", "rocket", "summit", "tiger", "tundra", "walrus",
	"willow", "wizard", "zephyr",
}

// Friendly returns a random adjective_noun name.
func Friendly(r *rand.Rand) string {
	return adjectives[r.IntN(len(adjectives))] + "_" + nouns[r.IntN(len(nouns))]
}

// Unique returns a friendly name for which exists reports false. It
// tries random names first, then numbered variants of one, then falls
// back to a timestamped name.
func Unique(exists func(string) bool, r *rand.Rand, now time.Time) string {
	for range 50 {
		name := Friendly(r)
		if !exists(name) {
			return name
		}
	}

	base := Friendly(r)
	for i := 1; i < 100; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !exists(name) {
			return name
		}
	}

	return Disambiguate(base, now)
}
