package app

import (
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestPrettyHandlerRendersAttrs(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	log := slog.New(h)

	log.Info("http.request", "method", "GET", "path", "/me", "status", 401, "note", "two words")

	out := sb.String()
	for _, want := range []string{"[INFO]", "http.request", "method=GET", "path=/me", "status=401", `note="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but output has escapes: %q", out)
	}
}

func TestPrettyHandlerGroups(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	log := slog.New(newPrettyHandler(&sb, nil, false)).WithGroup("req").With("id", "abc")

	log.Info("event")

	if !strings.Contains(sb.String(), "req.id=abc") {
		t.Fatalf("expected grouped key, got %q", sb.String())
	}
}
