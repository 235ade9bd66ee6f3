package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createBuildRunsTable(tx); err != nil {
			return err
		}
		if err := createFrequencyRecordsTable(tx); err != nil {
			return err
		}
		if err := createObservationCacheTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Debug("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version == 0 {
		// Created but never initialized, e.g. an interrupted first open.
		return db.initializeSchema()
	}

	db.logger.Info("Running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createBuildRunsTable creates build_runs. Exactly one run is active; its
// records are the published store.
func createBuildRunsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS build_runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL,
			head_commit TEXT NOT NULL DEFAULT '',
			repo_state_id TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			commits INTEGER NOT NULL DEFAULT 0,
			files INTEGER NOT NULL DEFAULT 0,
			records INTEGER NOT NULL DEFAULT 0,
			observations INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("failed to create build_runs table: %w", err)
	}
	if _, err := tx.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_build_runs_active
		ON build_runs(active) WHERE active = 1
	`); err != nil {
		return fmt.Errorf("failed to create build_runs index: %w", err)
	}
	return nil
}

func createFrequencyRecordsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS frequency_records (
			run_id TEXT NOT NULL REFERENCES build_runs(id) ON DELETE CASCADE,
			detector TEXT NOT NULL CHECK (detector <> ''),
			context INTEGER NOT NULL CHECK (context >= 0 AND context < 48),
			n INTEGER NOT NULL CHECK (n >= 0),
			k INTEGER NOT NULL CHECK (k >= 0 AND k <= n),
			PRIMARY KEY (run_id, detector, context)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create frequency_records table: %w", err)
	}
	return nil
}

// createObservationCacheTable creates the per-file observation cache used
// by history replay. Entries are keyed by content hash and invalidated when
// the detector signature changes.
func createObservationCacheTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS observation_cache (
			content_hash TEXT NOT NULL,
			signature TEXT NOT NULL,
			value_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (content_hash, signature)
		)
	`); err != nil {
		return fmt.Errorf("failed to create observation_cache table: %w", err)
	}
	return nil
}
