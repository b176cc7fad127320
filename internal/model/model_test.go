package model

import (
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusGenerating, true},
		{StatusPending, StatusFailed, true},
		{StatusGenerating, StatusCompleted, true},
		{StatusGenerating, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusGenerating, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusGenerating, false},
		{"bogus", StatusFailed, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatus(t *testing.T) {
	for _, s := range []string{StatusCompleted, StatusFailed} {
		if !TerminalStatus(s) {
			t.Errorf("TerminalStatus(%q) = false, want true", s)
		}
	}
	for _, s := range []string{StatusPending, StatusGenerating, ""} {
		if TerminalStatus(s) {
			t.Errorf("TerminalStatus(%q) = true, want false", s)
		}
	}
}

func TestEventTerminal(t *testing.T) {
	if !(Event{Kind: KindDone}).Terminal() {
		t.Error("done event should be terminal")
	}
	if !(Event{Kind: KindError, Step: "search"}).Terminal() {
		t.Error("error event should be terminal-capable")
	}
	for _, k := range []string{KindSectionStart, KindSectionEnd, KindLog, KindResult, KindToken} {
		if (Event{Kind: k}).Terminal() {
			t.Errorf("%s event should not be terminal", k)
		}
	}
}
