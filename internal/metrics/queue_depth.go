package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StatusCounter returns the number of jobs per status name.
type StatusCounter func(ctx context.Context) (map[string]int, error)

// RegisterQueueDepth publishes a <namespace>_email_jobs gauge labeled by status. The
// counter runs on every scrape; a failing counter skips the observation for that scrape.
func RegisterQueueDepth(
	meterProvider metric.MeterProvider,
	namespace string,
	counter StatusCounter,
) (metric.Registration, error) {
	meter := meterProvider.Meter(namespace)

	gauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_email_jobs", namespace),
		metric.WithDescription("Number of email jobs currently in each status"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue depth gauge: %w", err)
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := counter(ctx)
		if err != nil {
			return nil
		}
		for status, count := range counts {
			o.ObserveInt64(gauge, int64(count), metric.WithAttributes(attribute.String("status", status)))
		}
		return nil
	}, gauge)
}
