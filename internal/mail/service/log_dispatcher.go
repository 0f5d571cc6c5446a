package service

import (
	"context"
	"log/slog"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

// LogDispatcher logs each job instead of sending it. Meant for local development.
type LogDispatcher struct {
	logger *slog.Logger
}

// Send always succeeds.
func (d *LogDispatcher) Send(ctx context.Context, job *mailDomain.EmailJob) error {
	d.logger.InfoContext(ctx, "email dispatched",
		slog.String("job_id", job.ID.String()),
		slog.String("recipient", job.Recipient),
		slog.String("subject", job.Subject),
		slog.Int("retry_count", job.RetryCount),
	)
	return nil
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With(slog.String("provider", "log"))}
}
