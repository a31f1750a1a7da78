package store

import (
	"database/sql"
	"fmt"

	"github.com/pmorales/segmint/schema"
)

// Table names for the activity store.
const (
	snapshotsTable = "activity_snapshots"
	segmentsTable  = "activity_segments"
	blocksTable    = "proposed_blocks"
	catalogTable   = "wbs_catalog"
	calendarTable  = "calendar_events"
	catalogFTS     = "wbs_catalog_fts"
)

// createTables ensures the store schema exists for the given backend.
// Timestamps are stored as unix milliseconds so ordering is portable.
func createTables(db *sql.DB, backend schema.DatabaseBackend) error {
	for _, query := range createTableQueries(backend) {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	if backend == schema.SQLiteBackend {
		// Full-text index over the catalog; SQLite only. Other backends
		// fall back to LIKE-based candidate scoring.
		query := fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(code, description, tokens)`, catalogFTS)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create catalog FTS table: %w", err)
		}
	}
	return nil
}

// createTableQueries returns the CREATE TABLE statements for the backend.
func createTableQueries(backend schema.DatabaseBackend) []string {
	// Type spellings that differ across backends.
	text := "TEXT"
	key := "TEXT"
	bigText := "TEXT"
	double := "DOUBLE PRECISION"
	if backend == schema.MySQLBackend {
		key = "VARCHAR(64)"
		bigText = "MEDIUMTEXT"
		double = "DOUBLE"
	}

	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s PRIMARY KEY,
				ts BIGINT NOT NULL,
				app %s NOT NULL,
				window_title %s,
				url %s,
				document_path %s,
				idle BOOLEAN NOT NULL
			);
		`, snapshotsTable, key, text, text, text, text),

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s PRIMARY KEY,
				start_ts BIGINT NOT NULL,
				end_ts BIGINT NOT NULL,
				app %s NOT NULL,
				context_key %s NOT NULL,
				sample_count INTEGER NOT NULL,
				snapshot_ids %s,
				idle_ratio %s NOT NULL,
				signals %s,
				processed BOOLEAN NOT NULL
			);
		`, segmentsTable, key, text, text, bigText, double, bigText),

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s PRIMARY KEY,
				start_ts BIGINT NOT NULL,
				end_ts BIGINT NOT NULL,
				status %s NOT NULL,
				flagged BOOLEAN NOT NULL,
				payload %s NOT NULL
			);
		`, blocksTable, key, key, bigText),

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				code %s PRIMARY KEY,
				description %s NOT NULL,
				tokens %s,
				active BOOLEAN NOT NULL,
				match_count BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			);
		`, catalogTable, key, text, text),

		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s PRIMARY KEY,
				title %s NOT NULL,
				start_ts BIGINT NOT NULL,
				end_ts BIGINT NOT NULL,
				attendees %s,
				platform %s,
				recurring BOOLEAN NOT NULL,
				online BOOLEAN NOT NULL
			);
		`, calendarTable, key, text, text, key),
	}
}
