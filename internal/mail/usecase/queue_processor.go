package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	"github.com/allisson/mailqueue/internal/metrics"
)

// Config holds queue processor configuration.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	MaxRetries  int
	// StaleAfter reclaims processing jobs untouched for this long before each claim. Zero disables it.
	StaleAfter time.Duration
}

// QueueProcessor claims due jobs, dispatches them and applies the retry policy to failures.
type QueueProcessor struct {
	config     Config
	repo       EmailJobRepository
	dispatcher Dispatcher
	policy     mailDomain.RetryPolicy
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
}

// NewQueueProcessor creates a QueueProcessor. Missing sizes fall back to the domain defaults
// and concurrency defaults to the batch size. MaxRetries of zero dead-letters on the first
// failure; only a negative value takes the default.
func NewQueueProcessor(
	config Config,
	repo EmailJobRepository,
	dispatcher Dispatcher,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *QueueProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = mailDomain.DefaultBatchSize
	}
	if config.Concurrency <= 0 || config.Concurrency > config.BatchSize {
		config.Concurrency = config.BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &QueueProcessor{
		config:     config,
		repo:       repo,
		dispatcher: dispatcher,
		policy:     mailDomain.NewRetryPolicy(config.MaxRetries),
		metrics:    businessMetrics,
		logger:     logger,
	}
}

// Start runs the processor on a fixed interval until ctx is done. Run errors are logged
// and never stop the loop.
func (q *QueueProcessor) Start(ctx context.Context) error {
	q.logger.Info("starting email queue processor",
		slog.Duration("interval", q.config.Interval),
		slog.Int("batch_size", q.config.BatchSize),
		slog.Int("concurrency", q.config.Concurrency),
	)

	ticker := time.NewTicker(q.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("stopping email queue processor")
			return ctx.Err()
		case <-ticker.C:
			if _, err := q.Run(ctx); err != nil {
				q.logger.Error("failed to process email queue", slog.Any("error", err))
			}
		}
	}
}

// Run processes one batch. Each claimed job is dispatched concurrently and ends the run as
// sent, requeued with retry_count+1, or dead-lettered. Per-job failures are counted in the
// summary. Only a claim failure is returned.
func (q *QueueProcessor) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	if q.config.StaleAfter > 0 {
		reclaimed, err := q.repo.ReclaimStale(ctx, time.Now().UTC().Add(-q.config.StaleAfter))
		if err != nil {
			q.logger.WarnContext(ctx, "failed to reclaim stale email jobs", slog.Any("error", err))
		} else {
			summary.Reclaimed = reclaimed
		}
	}

	jobs, err := q.repo.ClaimQueued(ctx, q.config.BatchSize)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim email jobs")
	}
	summary.Claimed = len(jobs)
	q.metrics.RecordBatchSize(ctx, len(jobs))

	if len(jobs) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(q.config.Concurrency)

	for _, job := range jobs {
		g.Go(func() error {
			outcome := q.processJob(ctx, job)
			q.metrics.RecordJobOutcome(ctx, outcome)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case metrics.JobOutcomeSent:
				summary.Sent++
			case metrics.JobOutcomeRequeued:
				summary.Requeued++
			case metrics.JobOutcomeDeadLettered:
				summary.DeadLettered++
			case metrics.JobOutcomeInterrupted:
				summary.Interrupted++
			default:
				summary.Errors++
			}
			return nil
		})
	}
	_ = g.Wait()

	q.logger.InfoContext(ctx, "email queue run finished",
		slog.Int("claimed", summary.Claimed),
		slog.Int("sent", summary.Sent),
		slog.Int("requeued", summary.Requeued),
		slog.Int("dead_lettered", summary.DeadLettered),
		slog.Int("interrupted", summary.Interrupted),
		slog.Int("errors", summary.Errors),
	)
	return summary, nil
}

// processJob dispatches one claimed job and records its next state. State writes use a
// context detached from cancellation so a shutdown mid-send still records the outcome.
func (q *QueueProcessor) processJob(ctx context.Context, job *mailDomain.EmailJob) string {
	logger := q.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.Int("retry_count", job.RetryCount),
	)
	writeCtx := context.WithoutCancel(ctx)

	sendErr := q.dispatcher.Send(ctx, job)
	if sendErr == nil {
		if err := q.repo.UpdateStatus(writeCtx, job.ID, mailDomain.StatusSent); err != nil {
			logger.ErrorContext(ctx, "failed to mark email job sent", slog.Any("error", err))
			return metrics.JobOutcomeError
		}
		return metrics.JobOutcomeSent
	}

	// A send cut short by cancellation says nothing about the provider, so the job goes back
	// to queued without spending a retry.
	if ctx.Err() != nil {
		if err := q.repo.ApplyRetry(writeCtx, job.ID, job.RetryCount, sendErr.Error()); err != nil {
			logger.ErrorContext(ctx, "failed to requeue interrupted email job", slog.Any("error", err))
			return metrics.JobOutcomeError
		}
		logger.WarnContext(ctx, "email dispatch interrupted, requeued", slog.Any("error", sendErr))
		return metrics.JobOutcomeInterrupted
	}

	decision := q.policy.Decide(job.RetryCount)
	switch decision.Action {
	case mailDomain.RetryActionRequeue:
		if err := q.repo.ApplyRetry(writeCtx, job.ID, decision.RetryCount, sendErr.Error()); err != nil {
			logger.ErrorContext(ctx, "failed to requeue email job", slog.Any("error", err))
			return metrics.JobOutcomeError
		}
		logger.WarnContext(ctx, "email dispatch failed, requeued",
			slog.Int("next_retry_count", decision.RetryCount),
			slog.Any("error", sendErr),
		)
		return metrics.JobOutcomeRequeued
	default:
		if err := q.repo.MarkDead(writeCtx, job.ID, sendErr.Error()); err != nil {
			logger.ErrorContext(ctx, "failed to dead-letter email job", slog.Any("error", err))
			return metrics.JobOutcomeError
		}
		logger.ErrorContext(ctx, "email dispatch failed, dead-lettered", slog.Any("error", sendErr))
		return metrics.JobOutcomeDeadLettered
	}
}
