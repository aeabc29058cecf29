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
		Description: "kv: namespaced JSON documents (preferences, conservative period)",
		SQL: `
CREATE TABLE kv (
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, key)
);
`,
	},
	{
		Version:     2,
		Description: "learned_strategies: last-known-good learned layer",
		SQL: `
CREATE TABLE learned_strategies (
    app_id       TEXT PRIMARY KEY,
    version      TEXT NOT NULL,
    validated_at INTEGER,
    payload      TEXT NOT NULL,
    saved_at     INTEGER NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "learning_records: accepted optimization outcomes",
		SQL: `
CREATE TABLE learning_records (
    id                 TEXT PRIMARY KEY,
    app_id             TEXT NOT NULL,
    strategy           TEXT NOT NULL CHECK (strategy IN ('conservative', 'balanced', 'aggressive')),
    memory_freed_mb    REAL NOT NULL DEFAULT 0,
    speed_gain_percent REAL NOT NULL DEFAULT 0,
    effectiveness      REAL NOT NULL DEFAULT 0,
    user_id            TEXT,
    payload            TEXT NOT NULL,
    created_at         INTEGER NOT NULL
);

CREATE INDEX idx_records_app     ON learning_records(app_id);
CREATE INDEX idx_records_created ON learning_records(created_at DESC);
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
