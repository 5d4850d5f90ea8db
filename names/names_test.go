package names

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"
)

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2024, 3, 9, 14, 5, 7, 0, loc)

	got := Timestamp(in)
	if got != "20240309-120507" {
		t.Errorf("Timestamp() = %q, want %q", got, "20240309-120507")
	}

	parsed, err := ParseTimestamp(got)
	if err != nil {
		t.Fatalf("ParseTimestamp(%q) error: %v", got, err)
	}
	if !parsed.Equal(in) {
		t.Errorf("ParseTimestamp() = %v, want %v", parsed, in)
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-01-01", "20240101_000000", "20241301-000000", "20240101-0000000"} {
		if _, err := ParseTimestamp(s); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", s)
		}
	}
}

func TestBranchName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"para", "demo", "para/demo"},
		{"para/", "demo", "para/demo"},
		{"team/para", "demo", "team/para/demo"},
		{"", "demo", "demo"},
	}
	for _, tt := range tests {
		if got := BranchName(tt.prefix, tt.name); got != tt.want {
			t.Errorf("BranchName(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestDisambiguate(t *testing.T) {
	got := Disambiguate("feat", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if got != "feat_20240101-000000" {
		t.Errorf("Disambiguate() = %q", got)
	}
	if err := Validate(got); err != nil {
		t.Errorf("disambiguated name should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"demo", false},
		{"a", false},
		{"feature-123", false},
		{"my_session", false},
		{"A1", false},
		{"", true},
		{"-demo", true},
		{"demo-", true},
		{"_demo", true},
		{"has space", true},
		{"slash/name", true},
		{"dot.name", true},
		{"double--dash", true},
		{"double__underscore", true},
		{strings.Repeat("a", MaxNameLength), false},
		{strings.Repeat("a", MaxNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("Validate(%q) error should wrap ErrInvalidName", tt.name)
			}
		})
	}
}

func TestSessionID(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	a := SessionID("/repo", "demo", at)
	b := SessionID("/repo", "demo", at)
	if a != b {
		t.Errorf("SessionID not deterministic: %q vs %q", a, b)
	}
	if len(a) != 36 {
		t.Errorf("SessionID length = %d, want 36", len(a))
	}

	if SessionID("/repo", "other", at) == a {
		t.Error("different names should give different IDs")
	}
	if SessionID("/repo", "demo", at.Add(time.Second)) == a {
		t.Error("different creation times should give different IDs")
	}
}

func TestFriendly(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 100 {
		name := Friendly(r)
		if err := Validate(name); err != nil {
			t.Fatalf("Friendly() produced invalid name %q: %v", name, err)
		}
	}
}

func TestUnique(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("first free name", func(t *testing.T) {
		r := rand.New(rand.NewPCG(7, 7))
		name := Unique(func(string) bool { return false }, r, now)
		if err := Validate(name); err != nil {
			t.Errorf("Unique() = %q invalid: %v", name, err)
		}
	})

	t.Run("numbered fallback", func(t *testing.T) {
		r := rand.New(rand.NewPCG(7, 7))
		name := Unique(func(n string) bool { return !strings.HasSuffix(n, "_3") }, r, now)
		if !strings.HasSuffix(name, "_3") {
			t.Errorf("Unique() = %q, want numbered suffix _3", name)
		}
	})

	t.Run("timestamp fallback", func(t *testing.T) {
		r := rand.New(rand.NewPCG(7, 7))
		name := Unique(func(string) bool { return true }, r, now)
		if !strings.HasSuffix(name, "_20240101-000000") {
			t.Errorf("Unique() = %q, want timestamp suffix", name)
		}
	})
}
