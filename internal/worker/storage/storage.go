package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fabseal/fabseal/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

const schema = `
	CREATE TABLE IF NOT EXISTS conversion_jobs (
		request_id    TEXT PRIMARY KEY,
		entry_id      TEXT NOT NULL,
		consumer      TEXT NOT NULL,
		status        TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		result_size   BIGINT NOT NULL DEFAULT 0,
		duration_ms   BIGINT NOT NULL DEFAULT 0,
		finished_at   TIMESTAMPTZ NOT NULL
	)
`

// Storage records job outcomes in PostgreSQL
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the outcome table if it does not exist
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create %s table: %w", domain.OutcomeTable, err)
	}
	return nil
}

// RecordOutcome upserts the outcome of a job. A redelivered entry for the
// same request id overwrites the earlier row.
func (s *Storage) RecordOutcome(ctx context.Context, outcome domain.Outcome) error {
	query := `
		INSERT INTO conversion_jobs
			(request_id, entry_id, consumer, status, error_message, result_size, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO UPDATE
		SET entry_id = EXCLUDED.entry_id,
		    consumer = EXCLUDED.consumer,
		    status = EXCLUDED.status,
		    error_message = EXCLUDED.error_message,
		    result_size = EXCLUDED.result_size,
		    duration_ms = EXCLUDED.duration_ms,
		    finished_at = EXCLUDED.finished_at
	`

	_, err := s.db.ExecContext(ctx, query,
		outcome.RequestID.String(),
		outcome.EntryID,
		outcome.Consumer,
		string(outcome.Status),
		outcome.ErrorMessage(),
		int64(outcome.ResultSize),
		outcome.Duration.Milliseconds(),
		outcome.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record job outcome: %w", err)
	}

	s.logger.Debug("Job outcome recorded",
		slog.String("request_id", outcome.RequestID.String()),
		slog.String("status", string(outcome.Status)),
	)

	return nil
}

// Report implements worker.Reporter
func (s *Storage) Report(ctx context.Context, outcome domain.Outcome) error {
	return s.RecordOutcome(ctx, outcome)
}
