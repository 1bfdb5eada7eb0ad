package model

import "testing"

func TestParseStatus(t *testing.T) {
	t.Parallel()
	cases := map[string]TaskStatus{
		"pending":   StatusPending,
		"running":   StatusRunning,
		"completed": StatusCompleted,
		"failed":    StatusFailed,
		"":          StatusUnknown,
		"archived":  StatusUnknown,
	}
	for in, want := range cases {
		if got := ParseStatus(in); got != want {
			t.Fatalf("ParseStatus(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()
	for _, s := range []TaskStatus{StatusCompleted, StatusFailed} {
		if !s.Terminal() {
			t.Fatalf("%q must be terminal", s)
		}
	}
	for _, s := range []TaskStatus{StatusPending, StatusRunning, StatusUnknown} {
		if s.Terminal() {
			t.Fatalf("%q must not be terminal", s)
		}
	}
}

func TestTextMessage(t *testing.T) {
	t.Parallel()
	m := TextMessage("user", "hi")
	if m.Role != "user" || len(m.Content) != 1 || m.Content[0].Type != "text" || m.Content[0].Text != "hi" {
		t.Fatalf("m=%+v", m)
	}
	if m.Timestamp.IsZero() {
		t.Fatalf("timestamp must be set")
	}
}
