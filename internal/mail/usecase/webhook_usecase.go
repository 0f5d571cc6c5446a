package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

const defaultWebhookConcurrency = 8

// webhookUseCase implements WebhookUseCase.
type webhookUseCase struct {
	repo        EmailJobRepository
	concurrency int
	logger      *slog.Logger
}

type webhookUpdate struct {
	event  mailDomain.WebhookEventType
	status mailDomain.EmailJobStatus
}

// Ingest applies delivery events to their jobs. Events for the same job are applied in
// delivery order; different jobs are updated concurrently. Individual failures are logged
// and counted, never returned.
func (w *webhookUseCase) Ingest(ctx context.Context, events []mailDomain.WebhookEvent) *IngestSummary {
	summary := &IngestSummary{Received: len(events)}

	order := make([]uuid.UUID, 0, len(events))
	updates := make(map[uuid.UUID][]webhookUpdate)
	for _, event := range events {
		eventType := mailDomain.ParseWebhookEventType(event.Event)
		status, ok := eventType.TargetStatus()
		if !ok {
			summary.Ignored++
			w.logger.DebugContext(ctx, "webhook event ignored", slog.String("event", event.Event))
			continue
		}

		id, ok := event.JobID()
		if !ok {
			summary.Skipped++
			w.logger.WarnContext(ctx, "webhook event without a valid job id",
				slog.String("event", event.Event),
				slog.String("custom_id", event.CustomID),
			)
			continue
		}

		if _, seen := updates[id]; !seen {
			order = append(order, id)
		}
		updates[id] = append(updates[id], webhookUpdate{event: eventType, status: status})
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(w.concurrency)

	for _, id := range order {
		g.Go(func() error {
			applied, skipped, failed := w.applyAll(ctx, id, updates[id])

			mu.Lock()
			defer mu.Unlock()
			summary.Applied += applied
			summary.Skipped += skipped
			summary.Failed += failed
			return nil
		})
	}
	_ = g.Wait()

	return summary
}

func (w *webhookUseCase) applyAll(
	ctx context.Context,
	id uuid.UUID,
	updates []webhookUpdate,
) (applied, skipped, failed int) {
	for _, u := range updates {
		err := w.repo.UpdateStatus(ctx, id, u.status)
		switch {
		case err == nil:
			applied++
			w.logger.InfoContext(ctx, "webhook event applied",
				slog.String("job_id", id.String()),
				slog.String("event", u.event.String()),
				slog.String("status", u.status.String()),
			)
		case apperrors.Is(err, apperrors.ErrNotFound):
			skipped++
			w.logger.WarnContext(ctx, "webhook event for unknown job",
				slog.String("job_id", id.String()),
				slog.String("event", u.event.String()),
			)
		default:
			failed++
			w.logger.ErrorContext(ctx, "failed to apply webhook event",
				slog.String("job_id", id.String()),
				slog.String("event", u.event.String()),
				slog.Any("error", err),
			)
		}
	}
	return applied, skipped, failed
}

// NewWebhookUseCase creates a new WebhookUseCase.
func NewWebhookUseCase(repo EmailJobRepository, concurrency int, logger *slog.Logger) WebhookUseCase {
	if concurrency <= 0 {
		concurrency = defaultWebhookConcurrency
	}
	return &webhookUseCase{
		repo:        repo,
		concurrency: concurrency,
		logger:      logger,
	}
}
