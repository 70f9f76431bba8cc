package db

import (
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no migrations embedded")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %q", name)
		}
	}

	for base := range ups {
		if !downs[base] {
			t.Fatalf("migration %q has no down file", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Fatalf("migration %q has no up file", base)
		}
	}
}

func TestNewMigrateRejectsEmptyURL(t *testing.T) {
	if err := MigrateUp(""); err == nil {
		t.Fatalf("expected error for empty database URL")
	}
}
