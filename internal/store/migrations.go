package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "mory_nodes: versioned memory snapshots",
		SQL: `
CREATE TABLE mory_nodes (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    path             TEXT NOT NULL,
    memory_type      TEXT NOT NULL CHECK (memory_type IN ('user_preference', 'user_fact', 'skill', 'event', 'task', 'world_knowledge')),
    subject          TEXT NOT NULL,
    title            TEXT,
    value            TEXT NOT NULL,
    detail           TEXT,

    -- Scoring inputs
    confidence       REAL NOT NULL DEFAULT 0.7,
    importance       REAL NOT NULL DEFAULT 0.6,
    utility          REAL,
    access_count     INTEGER NOT NULL DEFAULT 0,

    -- Versioning / conflict history
    version          INTEGER NOT NULL DEFAULT 1,
    supersedes       TEXT,
    conflict_flag    INTEGER NOT NULL DEFAULT 0,

    -- Provenance
    source           TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    last_accessed_at TEXT,
    archived_at      TEXT
);

CREATE INDEX idx_mory_nodes_user_path ON mory_nodes(user_id, path);
CREATE INDEX idx_mory_nodes_user_type ON mory_nodes(user_id, memory_type);
CREATE INDEX idx_mory_nodes_archived  ON mory_nodes(user_id, archived_at);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
