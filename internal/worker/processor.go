package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fabseal/fabseal/internal/keyspace"
	"github.com/fabseal/fabseal/internal/queue"
	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/fabseal/fabseal/internal/store"
	"github.com/fabseal/fabseal/internal/worker/domain"
)

// handle resolves one delivered entry. Whatever happens the entry is
// acknowledged exactly once; no error leaves this function.
func (w *Worker) handle(ctx context.Context, entry queue.Entry) {
	// the job always completes, even when shutdown cancels ctx mid-flight
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	id, err := entry.RequestID()
	if err != nil {
		w.logger.Error("Protocol violation",
			slog.String("entry_id", entry.ID),
			slog.Any("error", fmt.Errorf("%w: %w", domain.ErrProtocolViolation, err)),
		)
		w.ack(ctx, entry.ID, "")
		return
	}

	logger := w.logger.With(
		slog.String("request_id", id.String()),
		slog.String("entry_id", entry.ID),
	)
	logger.Info("Processing job")

	size, err := w.process(ctx, id)

	outcome := domain.Outcome{
		Job: domain.Job{
			RequestID: id,
			EntryID:   entry.ID,
			Consumer:  w.consumer,
		},
		Err:        err,
		ResultSize: size,
	}

	switch {
	case err == nil:
		outcome.Status = domain.StatusSucceeded
		logger.Info("Job completed successfully",
			slog.Int("result_size", size),
			slog.Duration("duration", time.Since(start)),
		)
	case errors.Is(err, domain.ErrImageExpired):
		outcome.Status = domain.StatusExpired
		logger.Warn("Image expired before processing")
	case domain.IsConversionFailure(err):
		outcome.Status = domain.StatusFailed
		attrs := []any{slog.Any("error", err)}
		var convErr *domain.ConversionError
		if errors.As(err, &convErr) {
			attrs = append(attrs,
				slog.Int("exit_code", convErr.ExitCode),
				slog.String("output", convErr.Output),
			)
		}
		logger.Error("Conversion failed", attrs...)
	default:
		outcome.Status = domain.StatusFailed
		logger.Error("Job processing failed", slog.Any("error", err))
	}

	w.ack(ctx, entry.ID, id.String())

	outcome.Duration = time.Since(start)
	outcome.FinishedAt = time.Now().UTC()
	w.report(ctx, outcome)
}

// process fetches the image, converts it and stores the result, returning
// the result size.
func (w *Worker) process(ctx context.Context, id requestid.ID) (int, error) {
	image, err := w.store.Get(ctx, keyspace.Image, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: %w", domain.ErrImageExpired, err)
		}
		return 0, fmt.Errorf("failed to fetch image: %w", err)
	}

	staging, err := NewStaging(w.tempDir, image)
	if err != nil {
		return 0, err
	}

	if err := w.engine.Convert(ctx, staging.InputPath(), staging.OutputPath()); err != nil {
		if abortErr := staging.Abort(); abortErr != nil {
			w.logger.Warn("Failed to clean up staging files", slog.Any("error", abortErr))
		}
		return 0, err
	}

	result, err := staging.Finish()
	if err != nil {
		return 0, err
	}

	if err := w.store.Put(ctx, keyspace.Result, id, result); err != nil {
		return 0, fmt.Errorf("failed to store result: %w", err)
	}

	if w.archiver != nil {
		if err := w.archiver.Archive(ctx, id, result); err != nil {
			w.logger.Warn("Failed to archive result",
				slog.String("request_id", id.String()),
				slog.Any("error", err),
			)
		}
	}

	return len(result), nil
}

func (w *Worker) ack(ctx context.Context, entryID, requestID string) {
	err := w.queue.Ack(ctx, entryID)
	if err == nil {
		w.logger.Debug("Entry acknowledged",
			slog.String("entry_id", entryID),
			slog.String("request_id", requestID),
		)
		return
	}

	if errors.Is(err, queue.ErrAckMismatch) {
		w.logger.Error("Unexpected acknowledgement count",
			slog.String("entry_id", entryID),
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)
		return
	}

	w.logger.Error("Failed to acknowledge entry",
		slog.String("entry_id", entryID),
		slog.String("request_id", requestID),
		slog.Any("error", err),
	)
}

func (w *Worker) report(ctx context.Context, outcome domain.Outcome) {
	for _, r := range w.reporters {
		if err := r.Report(ctx, outcome); err != nil {
			w.logger.Warn("Failed to report job outcome",
				slog.String("request_id", outcome.RequestID.String()),
				slog.String("status", string(outcome.Status)),
				slog.Any("error", err),
			)
		}
	}
}
