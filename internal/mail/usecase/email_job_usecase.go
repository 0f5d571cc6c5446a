package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/mailqueue/internal/database"
	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	customValidation "github.com/allisson/mailqueue/internal/validation"
)

// emailJobUseCase implements EmailJobUseCase.
type emailJobUseCase struct {
	txManager database.TxManager
	repo      EmailJobRepository
	maxBatch  int
	logger    *slog.Logger
}

// Submit validates every message and stores one queued job per message in a single batch.
// Either every job is created or none is.
func (e *emailJobUseCase) Submit(
	ctx context.Context,
	messages []mailDomain.EmailMessage,
) ([]*mailDomain.EmailJob, error) {
	if len(messages) == 0 {
		return nil, mailDomain.ErrEmptySubmission
	}
	if len(messages) > e.maxBatch {
		return nil, mailDomain.ErrSubmissionTooLarge
	}

	for i := range messages {
		if err := validateMessage(&messages[i]); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "emails[%d]: %v", i, err)
		}
	}

	now := time.Now().UTC()
	jobs := make([]*mailDomain.EmailJob, 0, len(messages))
	for _, msg := range messages {
		jobs = append(jobs, mailDomain.NewEmailJob(msg, now))
	}

	if err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		return e.repo.CreateBatch(ctx, jobs)
	}); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "email jobs queued", slog.Int("count", len(jobs)))
	return jobs, nil
}

// SubmitBulk fans one subject/body template out to every recipient.
func (e *emailJobUseCase) SubmitBulk(
	ctx context.Context,
	recipients []string,
	subject, body string,
) ([]*mailDomain.EmailJob, error) {
	messages := make([]mailDomain.EmailMessage, 0, len(recipients))
	for _, recipient := range recipients {
		messages = append(messages, mailDomain.EmailMessage{
			Recipient: recipient,
			Subject:   subject,
			Body:      body,
		})
	}
	return e.Submit(ctx, messages)
}

// Get retrieves a job by ID.
func (e *emailJobUseCase) Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error) {
	return e.repo.Get(ctx, id)
}

// List returns one page of jobs together with the total matching the filter.
func (e *emailJobUseCase) List(ctx context.Context, filter mailDomain.ListFilter) (*ListResult, error) {
	filter = filter.Normalize()
	if filter.Status != nil {
		if err := filter.Status.Validate(); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "status %q: %v", filter.Status.String(), err)
		}
	}

	jobs, err := e.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := e.repo.Count(ctx, filter.Status)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Jobs:    jobs,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: filter.Offset+len(jobs) < total,
	}, nil
}

// CountByStatus returns the number of jobs per status.
func (e *emailJobUseCase) CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error) {
	return e.repo.CountByStatus(ctx)
}

// Requeue moves a failed or dead job back to the queue.
func (e *emailJobUseCase) Requeue(
	ctx context.Context,
	id uuid.UUID,
	resetRetryCount bool,
) (*mailDomain.EmailJob, error) {
	job, err := e.repo.Requeue(ctx, id, resetRetryCount)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "email job requeued",
		slog.String("job_id", job.ID.String()),
		slog.Int("retry_count", job.RetryCount),
		slog.Bool("reset", resetRetryCount),
	)
	return job, nil
}

// ReclaimStale returns jobs stuck in processing for longer than olderThan to the queue.
func (e *emailJobUseCase) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "stale threshold must be positive")
	}

	reclaimed, err := e.repo.ReclaimStale(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		e.logger.WarnContext(ctx, "stale email jobs reclaimed",
			slog.Int64("count", reclaimed),
			slog.Duration("older_than", olderThan),
		)
	}
	return reclaimed, nil
}

func validateMessage(msg *mailDomain.EmailMessage) error {
	return validation.ValidateStruct(msg,
		validation.Field(&msg.Recipient, customValidation.RecipientRules()...),
		validation.Field(&msg.Subject, customValidation.SubjectRules(mailDomain.MaxSubjectLength)...),
		validation.Field(&msg.Body, customValidation.BodyRules()...),
	)
}

// NewEmailJobUseCase creates a new EmailJobUseCase. maxBatch bounds a single submission and
// is capped at MaxBulkRecipients.
func NewEmailJobUseCase(
	txManager database.TxManager,
	repo EmailJobRepository,
	maxBatch int,
	logger *slog.Logger,
) EmailJobUseCase {
	if maxBatch <= 0 || maxBatch > mailDomain.MaxBulkRecipients {
		maxBatch = mailDomain.MaxBulkRecipients
	}
	return &emailJobUseCase{
		txManager: txManager,
		repo:      repo,
		maxBatch:  maxBatch,
		logger:    logger,
	}
}
