package store

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT NOT NULL,
			duration_seconds REAL NOT NULL DEFAULT 0,
			baseline_count INTEGER NOT NULL DEFAULT 0,
			last_counter INTEGER NOT NULL DEFAULT 0,
			last_reconciled_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS play_facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			played_at INTEGER NOT NULL,
			source TEXT NOT NULL,
			listened_seconds REAL,
			duration_seconds REAL,
			completion_ratio REAL
		);

		CREATE INDEX IF NOT EXISTS idx_play_facts_track ON play_facts(track_id);
		CREATE INDEX IF NOT EXISTS idx_play_facts_played_at ON play_facts(played_at);

		CREATE TABLE IF NOT EXISTS track_ranks (
			track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			view TEXT NOT NULL,
			rank INTEGER NOT NULL,
			PRIMARY KEY (track_id, view)
		);

		CREATE TABLE IF NOT EXISTS engine_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_full_sync_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS pending_scrobbles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			album TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
