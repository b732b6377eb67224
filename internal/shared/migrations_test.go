package shared

import (
	"path/filepath"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}

	if len(migrations) == 0 {
		t.Fatal("no migrations found")
	}

	for i, m := range migrations {
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d is missing up or down SQL", m.Version)
		}
		if i > 0 && migrations[i-1].Version >= m.Version {
			t.Error("migrations are not sorted by version")
		}
	}
}

func TestRunMigrations(t *testing.T) {
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	// The run-log schema is usable.
	_, err = db.Exec(
		"INSERT INTO runs (id, action, source, destination, started_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)",
		"run-1", "transfer", "alice", "bob",
	)
	if err != nil {
		t.Fatalf("insert into runs failed: %v", err)
	}

	_, err = db.Exec(
		"INSERT INTO run_failures (run_id, category, item, error) VALUES (?, ?, ?, ?)",
		"run-1", "subscriptions", "/r/golang", "403",
	)
	if err != nil {
		t.Fatalf("insert into run_failures failed: %v", err)
	}

	// Running again is a no-op, not an error.
	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() second run error = %v", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if applied != len(mustLoadMigrations(t)) {
		t.Errorf("applied %d migrations, want %d", applied, len(mustLoadMigrations(t)))
	}
}

func mustLoadMigrations(t *testing.T) []Migration {
	t.Helper()
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	return migrations
}
