package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"
)

// ObservationCache maps file content hashes to the JSON-encoded detector
// observations computed for that content. Entries are scoped by a signature
// that changes whenever the detector set does, so stale entries are never
// read.
type ObservationCache struct {
	db        *DB
	signature string
}

// NewObservationCache creates a cache view for one detector signature.
func NewObservationCache(db *DB, signature string) *ObservationCache {
	return &ObservationCache{db: db, signature: signature}
}

// Get returns the cached value for a content hash.
func (c *ObservationCache) Get(ctx context.Context, contentHash string) (string, bool, error) {
	var valueJSON string
	err := c.db.QueryRowContext(ctx, `
		SELECT value_json FROM observation_cache
		WHERE content_hash = ? AND signature = ?
	`, contentHash, c.signature).Scan(&valueJSON)

	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("observation cache lookup failed: %w", err)
	}
	return valueJSON, true, nil
}

// PutAll stores entries in one transaction.
func (c *ObservationCache) PutAll(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	return c.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO observation_cache (content_hash, signature, value_json, created_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare cache insert: %w", err)
		}
		defer stmt.Close()

		for hash, value := range entries {
			if _, err := stmt.ExecContext(ctx, hash, c.signature, value, now); err != nil {
				return fmt.Errorf("failed to set observation cache: %w", err)
			}
		}
		return nil
	})
}

// Prune deletes entries written under any other signature.
func (c *ObservationCache) Prune(ctx context.Context) (int64, error) {
	var removed int64
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM observation_cache WHERE signature <> ?", c.signature)
		if err != nil {
			return fmt.Errorf("failed to prune observation cache: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Len returns the number of entries for this signature.
func (c *ObservationCache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM observation_cache WHERE signature = ?", c.signature,
	).Scan(&n)
	return n, err
}
