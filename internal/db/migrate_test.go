package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0644); err != nil {
		t.Fatalf("Failed to write migration file: %v", err)
	}
}

func TestMigratorUpAppliesInOrder(t *testing.T) {
	database := setupTestDB(t)
	dir := t.TempDir()
	writeMigration(t, dir, "V2__add_note.up.sql", "ALTER TABLE widgets ADD COLUMN note TEXT;")
	writeMigration(t, dir, "V1__widgets.up.sql", "CREATE TABLE widgets (id TEXT PRIMARY KEY);")

	m := NewMigrator(database, dir)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("Failed to read current version: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}

	// re-running with no new files is a no-op
	if err := m.Up(); err != nil {
		t.Fatalf("Second Up failed: %v", err)
	}
}

func TestMigratorRejectsChangedMigration(t *testing.T) {
	database := setupTestDB(t)
	dir := t.TempDir()
	writeMigration(t, dir, "V1__widgets.up.sql", "CREATE TABLE widgets (id TEXT PRIMARY KEY);")

	m := NewMigrator(database, dir)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Failed to apply migration: %v", err)
	}

	writeMigration(t, dir, "V1__widgets.up.sql", "CREATE TABLE widgets (id TEXT PRIMARY KEY, extra TEXT);")
	if err := m.Up(); err == nil {
		t.Error("Expected checksum mismatch error, got nil")
	}
}

func TestMigratorDown(t *testing.T) {
	database := setupTestDB(t)
	dir := t.TempDir()
	writeMigration(t, dir, "V1__widgets.up.sql", "CREATE TABLE widgets (id TEXT PRIMARY KEY);")
	writeMigration(t, dir, "V1__widgets.down.sql", "DROP TABLE widgets;")

	m := NewMigrator(database, dir)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Failed to apply migration: %v", err)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("Failed to roll back migration: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("Failed to read current version: %v", err)
	}
	if version != 0 {
		t.Errorf("Expected version 0 after rollback, got %d", version)
	}
}
