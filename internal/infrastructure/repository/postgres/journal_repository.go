package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

const (
	runStatusRunning  = "running"
	runStatusFinished = "finished"

	eventSkip    = "skip"
	eventFailure = "failure"
)

var errRunNotFound = errors.New("ingest run not found")

// JournalRepository records ingestion runs and the pages and chunks each run
// could not index.
type JournalRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JournalRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	status TEXT NOT NULL,
	batches INTEGER NOT NULL DEFAULT 0,
	pages_seen INTEGER NOT NULL DEFAULT 0,
	pages_indexed INTEGER NOT NULL DEFAULT 0,
	pages_skipped INTEGER NOT NULL DEFAULT 0,
	chunks_indexed INTEGER NOT NULL DEFAULT 0,
	chunks_failed INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ingest_events (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES ingest_runs(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	page_id TEXT NOT NULL,
	title TEXT NOT NULL,
	chunk INTEGER,
	reason TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_events_run ON ingest_events(run_id);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JournalRepository) StartRun(ctx context.Context, collection string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_runs (id, collection, status, started_at)
VALUES ($1, $2, $3, $4)
`, id, collection, runStatusRunning, r.now())
	if err != nil {
		return "", fmt.Errorf("insert ingest run: %w", err)
	}
	return id, nil
}

func (r *JournalRepository) RecordSkip(ctx context.Context, runID string, page domain.Page, reason domain.SkipReason) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_events (run_id, kind, page_id, title, chunk, reason, created_at)
VALUES ($1, $2, $3, $4, NULL, $5, $6)
`, runID, eventSkip, page.ID.String(), page.Title, string(reason), r.now())
	if err != nil {
		return fmt.Errorf("insert skip event: %w", err)
	}
	return nil
}

func (r *JournalRepository) RecordFailure(ctx context.Context, runID string, failure domain.ChunkFailure) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_events (run_id, kind, page_id, title, chunk, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, runID, eventFailure, failure.PageID.String(), failure.Title, failure.Chunk, failure.Reason, r.now())
	if err != nil {
		return fmt.Errorf("insert failure event: %w", err)
	}
	return nil
}

func (r *JournalRepository) FinishRun(ctx context.Context, runID string, report domain.IngestReport) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_runs
SET status = $2, batches = $3, pages_seen = $4, pages_indexed = $5, pages_skipped = $6,
	chunks_indexed = $7, chunks_failed = $8, finished_at = $9
WHERE id = $1
`, runID, runStatusFinished, report.Batches, report.PagesSeen, report.PagesIndexed, report.PagesSkipped,
		report.ChunksIndexed, report.ChunksFailed, r.now())
	if err != nil {
		return fmt.Errorf("update ingest run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ingest run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run %s: %w", runID, errRunNotFound)
	}
	return nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID         string
	Collection string
	Status     string
	Report     domain.IngestReport
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

func (r *JournalRepository) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, collection, status, batches, pages_seen, pages_indexed, pages_skipped, chunks_indexed, chunks_failed, started_at, finished_at
FROM ingest_runs
ORDER BY started_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(
			&s.ID, &s.Collection, &s.Status,
			&s.Report.Batches, &s.Report.PagesSeen, &s.Report.PagesIndexed, &s.Report.PagesSkipped,
			&s.Report.ChunksIndexed, &s.Report.ChunksFailed, &s.StartedAt, &s.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs: %w", err)
	}
	return out, nil
}
