package usecase

import (
	"context"
	"log/slog"

	cronlib "github.com/robfig/cron/v3"

	apperrors "github.com/allisson/mailqueue/internal/errors"
)

// DefaultSchedule runs the processor once a minute.
const DefaultSchedule = "@every 1m"

// scheduleParser accepts standard 5-field cron expressions and descriptors like "@every 30s".
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule validates a cron expression or descriptor.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid queue schedule %q: %v", expr, err)
	}
	return schedule, nil
}

// QueueScheduler triggers processor runs on a cron schedule. Runs may overlap when one takes
// longer than the interval; the claim keeps overlapping runs from sharing jobs.
type QueueScheduler struct {
	spec      string
	processor QueueProcessorUseCase
	logger    *slog.Logger
}

// NewQueueScheduler creates a scheduler for spec, which must parse with ParseSchedule.
func NewQueueScheduler(spec string, processor QueueProcessorUseCase, logger *slog.Logger) (*QueueScheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := ParseSchedule(spec); err != nil {
		return nil, err
	}
	return &QueueScheduler{
		spec:      spec,
		processor: processor,
		logger:    logger,
	}, nil
}

// Start blocks until ctx is done, then waits for in-flight runs before returning ctx.Err().
func (s *QueueScheduler) Start(ctx context.Context) error {
	c := cronlib.New(cronlib.WithParser(scheduleParser))

	_, err := c.AddFunc(s.spec, func() {
		if ctx.Err() != nil {
			return
		}
		summary, err := s.processor.Run(ctx)
		if err != nil {
			s.logger.Error("scheduled email queue run failed", slog.Any("error", err))
			return
		}
		if summary.Claimed > 0 || summary.Reclaimed > 0 {
			s.logger.Debug("scheduled email queue run finished",
				slog.Int("processed", summary.Processed()),
				slog.Int64("reclaimed", summary.Reclaimed),
			)
		}
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to register queue schedule")
	}

	s.logger.Info("starting email queue scheduler", slog.String("schedule", s.spec))
	c.Start()

	<-ctx.Done()

	s.logger.Info("stopping email queue scheduler")
	<-c.Stop().Done()
	return ctx.Err()
}
