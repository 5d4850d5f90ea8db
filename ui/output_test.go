package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevNoColor := Out, color.NoColor
	Out = &buf
	color.NoColor = true
	t.Cleanup(func() {
		Out = prevOut
		color.NoColor = prevNoColor
	})
	return &buf
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name  string
		print func(string, ...any)
		want  string
	}{
		{"info", Info, "→ created demo\n"},
		{"success", Success, "✔ created demo\n"},
		{"warn", Warn, "○ created demo\n"},
		{"fail", Fail, "✘ created demo\n"},
		{"dim", Dim, "created demo\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t)
			tt.print("created %s", "demo")
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestStatusColor(t *testing.T) {
	capture(t)
	for _, s := range []string{"Active", "Review", "Cancelled", "Other"} {
		if got := StatusColor(s); got != s {
			t.Errorf("StatusColor(%q) without color = %q", s, got)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"", false, false},
		{"maybe\n", true, false},
	}
	for _, tt := range tests {
		buf := capture(t)
		prevIn := In
		In = strings.NewReader(tt.input)
		got := Confirm("Delete?", tt.defaultYes)
		In = prevIn
		if got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
		if !strings.HasPrefix(buf.String(), "Delete? [") {
			t.Errorf("prompt = %q", buf.String())
		}
	}
}
