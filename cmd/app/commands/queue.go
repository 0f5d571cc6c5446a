package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/mailqueue/internal/mail/http/dto"
	mailUsecase "github.com/allisson/mailqueue/internal/mail/usecase"
)

// RunProcessQueue runs a single processor pass and prints its summary.
func RunProcessQueue(
	ctx context.Context,
	processor mailUsecase.QueueProcessorUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	summary, err := processor.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to process queue: %w", err)
	}

	logger.Info("queue run completed",
		slog.Int("claimed", summary.Claimed),
		slog.Int("processed", summary.Processed()),
	)

	if format == "json" {
		return writeJSON(writer, dto.MapRunSummaryToResponse(summary))
	}

	_, err = fmt.Fprintf(writer,
		"Claimed %d job(s): %d sent, %d requeued, %d dead-lettered, %d interrupted, %d error(s); reclaimed %d stale job(s)\n",
		summary.Claimed,
		summary.Sent,
		summary.Requeued,
		summary.DeadLettered,
		summary.Interrupted,
		summary.Errors,
		summary.Reclaimed,
	)
	return err
}

// RunRequeueJob moves a failed or dead job back to the queue. With reset the retry count
// starts over, otherwise the job keeps its spent retries.
func RunRequeueJob(
	ctx context.Context,
	emailJobUseCase mailUsecase.EmailJobUseCase,
	logger *slog.Logger,
	writer io.Writer,
	jobIDStr string,
	reset bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return fmt.Errorf("invalid job ID format: %w", err)
	}

	job, err := emailJobUseCase.Requeue(ctx, jobID, reset)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	logger.Info("job requeued",
		slog.String("job_id", job.ID.String()),
		slog.Int("retry_count", job.RetryCount),
	)

	if format == "json" {
		return writeJSON(writer, dto.MapEmailJobToResponse(job))
	}

	_, err = fmt.Fprintf(writer, "Job %s requeued (retry count %d)\n", job.ID, job.RetryCount)
	return err
}

// RunReclaimStale moves processing jobs untouched for the given number of minutes back to
// the queue. Used to recover jobs left behind by a crashed processor.
func RunReclaimStale(
	ctx context.Context,
	emailJobUseCase mailUsecase.EmailJobUseCase,
	logger *slog.Logger,
	writer io.Writer,
	minutes int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if minutes <= 0 {
		return fmt.Errorf("minutes must be a positive number, got: %d", minutes)
	}

	olderThan := time.Duration(minutes) * time.Minute
	count, err := emailJobUseCase.ReclaimStale(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}

	logger.Info("stale jobs reclaimed",
		slog.Int64("count", count),
		slog.Int("minutes", minutes),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"count":   count,
			"minutes": minutes,
		})
	}

	_, err = fmt.Fprintf(writer, "Reclaimed %d job(s) stuck in processing for more than %d minute(s)\n", count, minutes)
	return err
}
