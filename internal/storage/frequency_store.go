package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ppde/internal/classify"
	"ppde/internal/errors"
	"ppde/internal/frequency"
	"ppde/internal/slogutil"
)

// Run sources.
const (
	SourceBuild  = "build"
	SourceImport = "import"
)

// BuildRun describes one published frequency table.
type BuildRun struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"createdAt"`
	HeadCommit   string    `json:"headCommit,omitempty"`
	RepoStateID  string    `json:"repoStateId,omitempty"`
	Author       string    `json:"author,omitempty"`
	Commits      int       `json:"commits"`
	Files        int       `json:"files"`
	Records      int       `json:"records"`
	Observations int       `json:"observations"`
	Active       bool      `json:"active"`
}

// RunMeta is the caller-supplied provenance of a table being published.
type RunMeta struct {
	Source      string
	HeadCommit  string
	RepoStateID string
	Author      string
	Commits     int
	Files       int
}

// Publish stores table as a new run and makes it the active one in a single
// transaction. Records of superseded runs are removed; their run rows stay
// as history. Readers see either the old table or the new one.
func (db *DB) Publish(ctx context.Context, table *frequency.Table, meta RunMeta) (*BuildRun, error) {
	if meta.Source == "" {
		meta.Source = SourceBuild
	}

	run := &BuildRun{
		ID:          uuid.New().String(),
		Source:      meta.Source,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		HeadCommit:  meta.HeadCommit,
		RepoStateID: meta.RepoStateID,
		Author:      meta.Author,
		Commits:     meta.Commits,
		Files:       meta.Files,
		Records:     table.Len(),
		Active:      true,
	}
	for _, e := range table.Records() {
		run.Observations += e.N
	}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE build_runs SET active = 0 WHERE active = 1"); err != nil {
			return fmt.Errorf("failed to deactivate previous run: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO build_runs (
				id, source, created_at, head_commit, repo_state_id, author,
				commits, files, records, observations, active
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		`, run.ID, run.Source, run.CreatedAt.Format(time.RFC3339), run.HeadCommit, run.RepoStateID,
			run.Author, run.Commits, run.Files, run.Records, run.Observations); err != nil {
			return fmt.Errorf("failed to insert build run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO frequency_records (run_id, detector, context, n, k)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare record insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range table.Records() {
			if _, err := stmt.ExecContext(ctx, run.ID, e.Detector, int(e.Context), e.N, e.K); err != nil {
				return fmt.Errorf("failed to insert record %s: %w", e.Key, err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM frequency_records WHERE run_id <> ?", run.ID); err != nil {
			return fmt.Errorf("failed to prune superseded records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to publish frequency table", err, nil)
	}

	db.logger.Info("Published frequency table",
		"run", run.ID,
		"source", run.Source,
		"records", run.Records,
		"observations", run.Observations,
	)
	return run, nil
}

const buildRunColumns = `id, source, created_at, head_commit, repo_state_id, author,
	commits, files, records, observations, active`

func scanBuildRun(scan func(dest ...interface{}) error) (*BuildRun, error) {
	var run BuildRun
	var createdAt string
	var active int
	if err := scan(&run.ID, &run.Source, &createdAt, &run.HeadCommit, &run.RepoStateID, &run.Author,
		&run.Commits, &run.Files, &run.Records, &run.Observations, &active); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = t
	run.Active = active == 1
	return &run, nil
}

// ActiveRun returns the currently published run, or nil when nothing has
// been published yet.
func (db *DB) ActiveRun(ctx context.Context) (*BuildRun, error) {
	row := db.QueryRowContext(ctx, "SELECT "+buildRunColumns+" FROM build_runs WHERE active = 1")
	run, err := scanBuildRun(row.Scan)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]BuildRun, error) {
	query := "SELECT " + buildRunColumns + " FROM build_runs ORDER BY created_at DESC, rowid DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []BuildRun
	for rows.Next() {
		run, err := scanBuildRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LoadTable reads the records of one run into a validated table.
func (db *DB) LoadTable(ctx context.Context, runID string) (*frequency.Table, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT detector, context, n, k FROM frequency_records WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to read frequency records", err, nil)
	}
	defer rows.Close()

	records := make(map[frequency.Key]frequency.Record)
	for rows.Next() {
		var detector string
		var ctxID, n, k int
		if err := rows.Scan(&detector, &ctxID, &n, &k); err != nil {
			return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to scan frequency record", err, nil)
		}
		if ctxID < 0 || ctxID >= classify.NumContexts {
			return nil, errors.NewPpdeError(errors.StoreInvariant,
				fmt.Sprintf("record %s has context id %d outside [0,%d)", detector, ctxID, classify.NumContexts), nil, nil)
		}
		records[frequency.Key{Detector: detector, Context: classify.Context(ctxID)}] = frequency.Record{N: n, K: k}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to read frequency records", err, nil)
	}
	return frequency.NewTable(records)
}

// LoadActive returns the active table and its run. With nothing published
// it returns the empty table and a nil run.
func (db *DB) LoadActive(ctx context.Context) (*frequency.Table, *BuildRun, error) {
	run, err := db.ActiveRun(ctx)
	if err != nil {
		return nil, nil, errors.NewPpdeError(errors.StoreUnavailable, "failed to read active run", err, nil)
	}
	if run == nil {
		return frequency.Empty(), nil, nil
	}
	table, err := db.LoadTable(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return table, run, nil
}

// FrequencySource loads the active table from a repository's store.
type FrequencySource struct {
	RepoRoot string
	Logger   *slog.Logger
}

// Optional implements frequency.Optional: a repository without a built
// baseline is analyzed as a cold start.
func (FrequencySource) Optional() bool { return true }

// Load implements frequency.Source.
func (s FrequencySource) Load(ctx context.Context) (*frequency.Table, error) {
	logger := slogutil.OrDiscard(s.Logger)

	db, err := OpenExisting(s.RepoRoot, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	table, run, err := db.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	if run != nil {
		logger.Debug("Loaded frequency table",
			"run", run.ID,
			"records", table.Len(),
		)
	}
	return table, nil
}

var _ frequency.Source = FrequencySource{}
