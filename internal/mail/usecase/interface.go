// Package usecase implements the mail queue business logic: accepting submissions,
// running the claim/dispatch/retry cycle, ingesting provider webhooks and operator requeues.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

// EmailJobRepository defines the persistence operations of the job store.
type EmailJobRepository interface {
	// CreateBatch inserts every job or none of them.
	CreateBatch(ctx context.Context, jobs []*mailDomain.EmailJob) error
	// ClaimQueued atomically moves up to limit queued jobs to processing and returns
	// only the jobs this caller flipped. Jobs taken by a concurrent caller are excluded.
	ClaimQueued(ctx context.Context, limit int) ([]*mailDomain.EmailJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status mailDomain.EmailJobStatus) error
	ApplyRetry(ctx context.Context, id uuid.UUID, retryCount int, lastError string) error
	MarkDead(ctx context.Context, id uuid.UUID, lastError string) error
	Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error)
	List(ctx context.Context, filter mailDomain.ListFilter) ([]*mailDomain.EmailJob, error)
	Count(ctx context.Context, status *mailDomain.EmailJobStatus) (int, error)
	CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error)
	// Requeue moves a failed or dead job back to queued, optionally resetting its retry count.
	// Returns ErrEmailJobNotFound or ErrEmailJobNotEligible without touching the row otherwise.
	Requeue(ctx context.Context, id uuid.UUID, resetRetryCount bool) (*mailDomain.EmailJob, error)
	// ReclaimStale moves processing jobs last updated before olderThan back to queued.
	ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// Dispatcher hands a single job to an email provider.
// Implementations must not retry; the retry policy owns that decision.
type Dispatcher interface {
	Send(ctx context.Context, job *mailDomain.EmailJob) error
}

// ListResult is a page of jobs plus the total matching the filter.
type ListResult struct {
	Jobs    []*mailDomain.EmailJob
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// RunSummary describes the outcome of one processor run.
type RunSummary struct {
	Reclaimed    int64
	Claimed      int
	Sent         int
	Requeued     int
	DeadLettered int
	Interrupted  int
	Errors       int
}

// Processed is the number of jobs claimed by the run.
func (s *RunSummary) Processed() int {
	return s.Claimed
}

// IngestSummary describes the outcome of one webhook delivery.
type IngestSummary struct {
	Received int
	Applied  int
	Ignored  int
	Skipped  int
	Failed   int
}

// EmailJobUseCase defines the submission, query and operator operations.
type EmailJobUseCase interface {
	Submit(ctx context.Context, messages []mailDomain.EmailMessage) ([]*mailDomain.EmailJob, error)
	SubmitBulk(
		ctx context.Context,
		recipients []string,
		subject, body string,
	) ([]*mailDomain.EmailJob, error)
	Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error)
	List(ctx context.Context, filter mailDomain.ListFilter) (*ListResult, error)
	CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error)
	Requeue(ctx context.Context, id uuid.UUID, resetRetryCount bool) (*mailDomain.EmailJob, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// QueueProcessorUseCase defines the periodic claim and dispatch cycle.
type QueueProcessorUseCase interface {
	// Run processes one batch. Only a claim failure is returned; per-job failures are
	// recorded in the summary.
	Run(ctx context.Context) (*RunSummary, error)
	Start(ctx context.Context) error
}

// WebhookUseCase defines provider event ingestion. It never fails the delivery as a whole.
type WebhookUseCase interface {
	Ingest(ctx context.Context, events []mailDomain.WebhookEvent) *IngestSummary
}
