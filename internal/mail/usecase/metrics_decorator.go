package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	"github.com/allisson/mailqueue/internal/metrics"
)

func operationStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// emailJobUseCaseWithMetrics decorates EmailJobUseCase with metrics instrumentation.
type emailJobUseCaseWithMetrics struct {
	next    EmailJobUseCase
	metrics metrics.BusinessMetrics
}

// NewEmailJobUseCaseWithMetrics wraps an EmailJobUseCase with metrics recording.
func NewEmailJobUseCaseWithMetrics(useCase EmailJobUseCase, m metrics.BusinessMetrics) EmailJobUseCase {
	return &emailJobUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (e *emailJobUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	e.metrics.ObserveOperation(ctx, "mail", operation, operationStatus(err), time.Since(start))
}

// Submit records metrics for email submissions.
func (e *emailJobUseCaseWithMetrics) Submit(
	ctx context.Context,
	messages []mailDomain.EmailMessage,
) ([]*mailDomain.EmailJob, error) {
	start := time.Now()
	jobs, err := e.next.Submit(ctx, messages)
	e.record(ctx, "email_submit", start, err)
	return jobs, err
}

// SubmitBulk records metrics for bulk submissions.
func (e *emailJobUseCaseWithMetrics) SubmitBulk(
	ctx context.Context,
	recipients []string,
	subject, body string,
) ([]*mailDomain.EmailJob, error) {
	start := time.Now()
	jobs, err := e.next.SubmitBulk(ctx, recipients, subject, body)
	e.record(ctx, "email_submit_bulk", start, err)
	return jobs, err
}

// Get records metrics for job lookups.
func (e *emailJobUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error) {
	start := time.Now()
	job, err := e.next.Get(ctx, id)
	e.record(ctx, "email_get", start, err)
	return job, err
}

// List records metrics for job listings.
func (e *emailJobUseCaseWithMetrics) List(
	ctx context.Context,
	filter mailDomain.ListFilter,
) (*ListResult, error) {
	start := time.Now()
	result, err := e.next.List(ctx, filter)
	e.record(ctx, "email_list", start, err)
	return result, err
}

// CountByStatus records metrics for queue statistics.
func (e *emailJobUseCaseWithMetrics) CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error) {
	start := time.Now()
	counts, err := e.next.CountByStatus(ctx)
	e.record(ctx, "email_stats", start, err)
	return counts, err
}

// Requeue records metrics for operator requeues.
func (e *emailJobUseCaseWithMetrics) Requeue(
	ctx context.Context,
	id uuid.UUID,
	resetRetryCount bool,
) (*mailDomain.EmailJob, error) {
	start := time.Now()
	job, err := e.next.Requeue(ctx, id, resetRetryCount)
	e.record(ctx, "email_requeue", start, err)
	return job, err
}

// ReclaimStale records metrics for stale job reclaims.
func (e *emailJobUseCaseWithMetrics) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	start := time.Now()
	reclaimed, err := e.next.ReclaimStale(ctx, olderThan)
	e.record(ctx, "email_reclaim_stale", start, err)
	return reclaimed, err
}

// queueProcessorWithMetrics decorates QueueProcessorUseCase with metrics instrumentation.
type queueProcessorWithMetrics struct {
	next    QueueProcessorUseCase
	metrics metrics.BusinessMetrics
}

// NewQueueProcessorWithMetrics wraps a QueueProcessorUseCase with metrics recording.
func NewQueueProcessorWithMetrics(processor QueueProcessorUseCase, m metrics.BusinessMetrics) QueueProcessorUseCase {
	return &queueProcessorWithMetrics{
		next:    processor,
		metrics: m,
	}
}

// Run records metrics for a single processor run.
func (q *queueProcessorWithMetrics) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary, err := q.next.Run(ctx)

	q.metrics.ObserveOperation(ctx, "queue", "queue_run", operationStatus(err), time.Since(start))

	return summary, err
}

// Start delegates to the wrapped processor. The ticker loop reaches Run on the inner
// processor, whose job outcomes are recorded there.
func (q *queueProcessorWithMetrics) Start(ctx context.Context) error {
	return q.next.Start(ctx)
}

// webhookUseCaseWithMetrics decorates WebhookUseCase with metrics instrumentation.
type webhookUseCaseWithMetrics struct {
	next    WebhookUseCase
	metrics metrics.BusinessMetrics
}

// NewWebhookUseCaseWithMetrics wraps a WebhookUseCase with metrics recording.
func NewWebhookUseCaseWithMetrics(useCase WebhookUseCase, m metrics.BusinessMetrics) WebhookUseCase {
	return &webhookUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Ingest records one operation per delivery plus per-result event counts. The status is
// "partial" when any event failed.
func (w *webhookUseCaseWithMetrics) Ingest(
	ctx context.Context,
	events []mailDomain.WebhookEvent,
) *IngestSummary {
	start := time.Now()
	summary := w.next.Ingest(ctx, events)

	status := "success"
	if summary != nil {
		if summary.Failed > 0 {
			status = "partial"
		}
		w.metrics.RecordWebhookEvents(ctx, metrics.WebhookResultApplied, summary.Applied)
		w.metrics.RecordWebhookEvents(ctx, metrics.WebhookResultIgnored, summary.Ignored)
		w.metrics.RecordWebhookEvents(ctx, metrics.WebhookResultSkipped, summary.Skipped)
		w.metrics.RecordWebhookEvents(ctx, metrics.WebhookResultFailed, summary.Failed)
	}
	w.metrics.ObserveOperation(ctx, "webhook", "webhook_ingest", status, time.Since(start))

	return summary
}
