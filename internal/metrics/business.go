package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Job outcomes reported by the queue processor.
const (
	JobOutcomeSent         = "sent"
	JobOutcomeRequeued     = "requeued"
	JobOutcomeDeadLettered = "dead_lettered"
	JobOutcomeInterrupted  = "interrupted"
	JobOutcomeError        = "error"
)

// Webhook event results, matching the IngestSummary buckets.
const (
	WebhookResultApplied = "applied"
	WebhookResultIgnored = "ignored"
	WebhookResultSkipped = "skipped"
	WebhookResultFailed  = "failed"
)

// BusinessMetrics records mail queue activity.
type BusinessMetrics interface {
	// ObserveOperation counts one use case call and records its latency. Domain is one of
	// "mail", "queue" or "webhook"; status is "success", "error" or "partial".
	ObserveOperation(ctx context.Context, domain, operation, status string, duration time.Duration)

	// RecordJobOutcome counts one processed job by its outcome.
	RecordJobOutcome(ctx context.Context, outcome string)

	// RecordBatchSize records how many jobs a processor run claimed.
	RecordBatchSize(ctx context.Context, size int)

	// RecordWebhookEvents adds count provider events that ended with result.
	RecordWebhookEvents(ctx context.Context, result string, count int)
}

type businessMetrics struct {
	operations     metric.Int64Counter
	latency        metric.Float64Histogram
	jobOutcomes    metric.Int64Counter
	batchSizes     metric.Int64Histogram
	webhookResults metric.Int64Counter
}

// NewBusinessMetrics creates the instruments on meterProvider, each name prefixed with
// namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	name := func(suffix string) string { return fmt.Sprintf("%s_%s", namespace, suffix) }

	b := &businessMetrics{}
	var err error

	if b.operations, err = meter.Int64Counter(
		name("operations_total"),
		metric.WithDescription("Total number of use case operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	if b.latency, err = meter.Float64Histogram(
		name("operation_duration_seconds"),
		metric.WithDescription("Duration of use case operations in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if b.jobOutcomes, err = meter.Int64Counter(
		name("email_jobs_processed_total"),
		metric.WithDescription("Total number of email jobs processed by outcome"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create job outcome counter: %w", err)
	}

	if b.batchSizes, err = meter.Int64Histogram(
		name("queue_batch_size"),
		metric.WithDescription("Number of email jobs claimed per processor run"),
		metric.WithUnit("{job}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100, 250, 500, 1000),
	); err != nil {
		return nil, fmt.Errorf("failed to create batch size histogram: %w", err)
	}

	if b.webhookResults, err = meter.Int64Counter(
		name("webhook_events_total"),
		metric.WithDescription("Total number of provider webhook events by result"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create webhook event counter: %w", err)
	}

	return b, nil
}

func (b *businessMetrics) ObserveOperation(
	ctx context.Context,
	domain, operation, status string,
	duration time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	b.operations.Add(ctx, 1, attrs)
	b.latency.Record(ctx, duration.Seconds(), attrs)
}

func (b *businessMetrics) RecordJobOutcome(ctx context.Context, outcome string) {
	b.jobOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (b *businessMetrics) RecordBatchSize(ctx context.Context, size int) {
	b.batchSizes.Record(ctx, int64(size))
}

func (b *businessMetrics) RecordWebhookEvents(ctx context.Context, result string, count int) {
	if count <= 0 {
		return
	}
	b.webhookResults.Add(ctx, int64(count), metric.WithAttributes(attribute.String("result", result)))
}

// NoOpBusinessMetrics is used when METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

func NewNoOpBusinessMetrics() BusinessMetrics {
	return NoOpBusinessMetrics{}
}

func (NoOpBusinessMetrics) ObserveOperation(context.Context, string, string, string, time.Duration) {}

func (NoOpBusinessMetrics) RecordJobOutcome(context.Context, string) {}

func (NoOpBusinessMetrics) RecordBatchSize(context.Context, int) {}

func (NoOpBusinessMetrics) RecordWebhookEvents(context.Context, string, int) {}
