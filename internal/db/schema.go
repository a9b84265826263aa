package db

import (
	"fmt"
	"strings"
)

// column is one tracked business field of an entity table. Each tracked
// field materializes as four columns: the value plus the three provenance
// shadows (<name>_updated_at, <name>_updated_by, <name>_updated_by_device_id).
type column struct {
	name string
	typ  string
}

// entityTableDDL builds the CREATE TABLE statement for a syncable entity.
// refs are plain reference columns (foreign keys kept as bare TEXT; integrity
// across hard deletes is enforced by the dependency checker, not the engine).
func entityTableDDL(table string, refs []string, fields []column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	b.WriteString("    id TEXT PRIMARY KEY,\n")
	for _, r := range refs {
		fmt.Fprintf(&b, "    %s TEXT,\n", r)
	}
	for _, f := range fields {
		fmt.Fprintf(&b, "    %s %s,\n", f.name, f.typ)
		fmt.Fprintf(&b, "    %s_updated_at INTEGER,\n", f.name)
		fmt.Fprintf(&b, "    %s_updated_by TEXT,\n", f.name)
		fmt.Fprintf(&b, "    %s_updated_by_device_id TEXT,\n", f.name)
	}
	b.WriteString("    created_at INTEGER NOT NULL,\n")
	b.WriteString("    updated_at INTEGER NOT NULL,\n")
	b.WriteString("    created_by TEXT,\n")
	b.WriteString("    created_by_device_id TEXT,\n")
	b.WriteString("    updated_by TEXT,\n")
	b.WriteString("    updated_by_device_id TEXT,\n")
	b.WriteString("    deleted_at INTEGER,\n")
	b.WriteString("    deleted_by TEXT,\n")
	b.WriteString("    deleted_by_device_id TEXT\n")
	b.WriteString(");")
	return b.String()
}

const changeLogDDL = `
CREATE TABLE IF NOT EXISTS change_log (
    operation_id TEXT PRIMARY KEY,
    entity_table TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    operation_type TEXT NOT NULL CHECK (operation_type IN ('create', 'update', 'delete', 'hard_delete')),
    field_name TEXT,
    old_value TEXT,
    new_value TEXT,
    timestamp INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    device_id TEXT,
    sync_batch_id TEXT,
    processed_at INTEGER,
    sync_error TEXT
);
CREATE INDEX IF NOT EXISTS idx_change_log_entity ON change_log(entity_table, entity_id);
CREATE INDEX IF NOT EXISTS idx_change_log_unsynced ON change_log(timestamp) WHERE sync_batch_id IS NULL;
`

const tombstonesDDL = `
CREATE TABLE IF NOT EXISTS tombstones (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL UNIQUE,
    entity_type TEXT NOT NULL,
    deleted_by TEXT NOT NULL,
    deleted_by_device_id TEXT,
    deleted_at INTEGER NOT NULL,
    operation_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tombstones_type ON tombstones(entity_type);
`

const conflictLogDDL = `
CREATE TABLE IF NOT EXISTS conflict_log (
    id TEXT PRIMARY KEY,
    entity_table TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    local_version INTEGER NOT NULL,
    remote_version INTEGER NOT NULL,
    remote_user_id TEXT,
    remote_device_id TEXT,
    resolution TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conflict_log_entity ON conflict_log(entity_table, entity_id);
`

// entityTables declares the schema of every syncable entity in one place.
var entityTables = []struct {
	table  string
	refs   []string
	fields []column
}{
	{"strategic_goals", nil, []column{
		{"objective_code", "TEXT NOT NULL"},
		{"outcome", "TEXT NOT NULL DEFAULT ''"},
		{"kpi", "TEXT NOT NULL DEFAULT ''"},
		{"target_value", "REAL NOT NULL DEFAULT 0"},
		{"actual_value", "REAL NOT NULL DEFAULT 0"},
		{"responsible_team", "TEXT NOT NULL DEFAULT ''"},
	}},
	{"projects", []string{"strategic_goal_id"}, []column{
		{"name", "TEXT NOT NULL"},
		{"objective", "TEXT NOT NULL DEFAULT ''"},
		{"outcome", "TEXT NOT NULL DEFAULT ''"},
		{"timeline", "TEXT NOT NULL DEFAULT ''"},
		{"responsible_team", "TEXT NOT NULL DEFAULT ''"},
	}},
	{"activities", []string{"project_id"}, []column{
		{"description", "TEXT NOT NULL"},
		{"kpi", "TEXT NOT NULL DEFAULT ''"},
		{"target_value", "REAL NOT NULL DEFAULT 0"},
		{"actual_value", "REAL NOT NULL DEFAULT 0"},
	}},
	{"donors", nil, []column{
		{"name", "TEXT NOT NULL"},
		{"donor_type", "TEXT NOT NULL DEFAULT ''"},
		{"contact_person", "TEXT NOT NULL DEFAULT ''"},
		{"email", "TEXT NOT NULL DEFAULT ''"},
		{"phone", "TEXT NOT NULL DEFAULT ''"},
		{"country", "TEXT NOT NULL DEFAULT ''"},
	}},
	{"participants", nil, []column{
		{"name", "TEXT NOT NULL"},
		{"gender", "TEXT NOT NULL DEFAULT ''"},
		{"age_group", "TEXT NOT NULL DEFAULT ''"},
		{"location", "TEXT NOT NULL DEFAULT ''"},
		{"disability", "INTEGER NOT NULL DEFAULT 0"},
	}},
	{"workshops", []string{"project_id"}, []column{
		{"purpose", "TEXT NOT NULL"},
		{"event_date", "TEXT NOT NULL DEFAULT ''"},
		{"location", "TEXT NOT NULL DEFAULT ''"},
		{"budget", "REAL NOT NULL DEFAULT 0"},
	}},
	{"livelihoods", []string{"participant_id", "project_id"}, []column{
		{"grant_amount", "REAL NOT NULL DEFAULT 0"},
		{"purpose", "TEXT NOT NULL DEFAULT ''"},
		{"outcome", "TEXT NOT NULL DEFAULT ''"},
	}},
	{"project_funding", []string{"project_id", "donor_id"}, []column{
		{"grant_id", "TEXT NOT NULL DEFAULT ''"},
		{"amount", "REAL NOT NULL DEFAULT 0"},
		{"currency", "TEXT NOT NULL DEFAULT ''"},
	}},
}

// InitSchema creates the sync infrastructure tables and all entity tables.
// Every statement is idempotent, so re-running on an existing database is a
// no-op.
func (db *DB) InitSchema() error {
	stmts := []string{changeLogDDL, tombstonesDDL, conflictLogDDL}
	for _, t := range entityTables {
		stmts = append(stmts, entityTableDDL(t.table, t.refs, t.fields))
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
