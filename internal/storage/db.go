package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"ppde/internal/errors"
	"ppde/internal/paths"
	"ppde/internal/slogutil"
)

// DB represents a database connection with transaction helpers
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// Open opens or creates the SQLite database at .ppde/ppde.db.
// If the database doesn't exist, it is created along with all tables.
func Open(repoRoot string, logger *slog.Logger) (*DB, error) {
	if _, err := paths.EnsureRepoDataDir(repoRoot); err != nil {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to create .ppde directory", err, nil)
	}
	return OpenPath(paths.GetDatabasePath(repoRoot), logger)
}

// OpenExisting opens the database only if it already exists. A missing
// file is STORE_UNAVAILABLE.
func OpenExisting(repoRoot string, logger *slog.Logger) (*DB, error) {
	dbPath := paths.GetDatabasePath(repoRoot)
	if !fileExists(dbPath) {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "no baseline store at "+dbPath, nil, nil)
	}
	return OpenPath(dbPath, logger)
}

// OpenPath opens or creates a database file at an explicit path.
func OpenPath(dbPath string, logger *slog.Logger) (*DB, error) {
	logger = slogutil.OrDiscard(logger)
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to open database", err, nil)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to set pragma", err, nil)
		}
	}

	db := &DB{
		conn:   conn,
		logger: logger,
		dbPath: dbPath,
	}

	if !dbExists {
		logger.Info("Creating new database", "path", dbPath)
		if err := db.initializeSchema(); err != nil {
			_ = conn.Close()
			return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to initialize schema", err, nil)
		}
	} else {
		logger.Debug("Running database migrations", "path", dbPath)
		if err := db.runMigrations(); err != nil {
			_ = conn.Close()
			return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to run migrations", err, nil)
		}
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.dbPath
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// WithTx executes a function within a transaction
// If the function returns an error, the transaction is rolled back
// Otherwise, the transaction is committed
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction",
				"error", err.Error(),
				"rollback_error", rbErr.Error(),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// QueryRowContext executes a query that returns at most one row
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
