package app

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TICKETD_TEST_STR", "  value  ")
	t.Setenv("TICKETD_TEST_BOOL", "true")
	t.Setenv("TICKETD_TEST_INT", "42")
	t.Setenv("TICKETD_TEST_DUR", "90s")

	if got := EnvString("TICKETD_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString: %q", got)
	}
	if got := EnvString("TICKETD_TEST_UNSET", "def"); got != "def" {
		t.Fatalf("EnvString default: %q", got)
	}
	if !EnvBool("TICKETD_TEST_BOOL", false) {
		t.Fatalf("EnvBool: expected true")
	}
	if got := EnvInt("TICKETD_TEST_INT", 1); got != 42 {
		t.Fatalf("EnvInt: %d", got)
	}
	if got := EnvDuration("TICKETD_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration: %v", got)
	}
}

func TestEnvHelpersRejectGarbage(t *testing.T) {
	t.Setenv("TICKETD_TEST_BOOL", "maybe")
	t.Setenv("TICKETD_TEST_INT", "-3")
	t.Setenv("TICKETD_TEST_DUR", "soon")

	if EnvBool("TICKETD_TEST_BOOL", false) {
		t.Fatalf("EnvBool must fall back on parse failure")
	}
	if got := EnvInt("TICKETD_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt must reject non-positive values, got %d", got)
	}
	if got := EnvDuration("TICKETD_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration must fall back on parse failure, got %v", got)
	}
}
