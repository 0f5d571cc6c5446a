package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

// MemoryEmailJobRepository is an in-process job store for development and tests.
// Jobs are copied on the way in and out so callers never share state with the store.
type MemoryEmailJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*mailDomain.EmailJob
	now  func() time.Time
}

// CreateBatch inserts all jobs or none when any ID already exists.
func (r *MemoryEmailJobRepository) CreateBatch(ctx context.Context, jobs []*mailDomain.EmailJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(jobs))
	for _, job := range jobs {
		if _, exists := r.jobs[job.ID]; exists {
			return apperrors.Wrap(apperrors.ErrConflict, "email job already exists")
		}
		if _, dup := seen[job.ID]; dup {
			return apperrors.Wrap(apperrors.ErrConflict, "duplicate email job in batch")
		}
		seen[job.ID] = struct{}{}
	}

	for _, job := range jobs {
		r.jobs[job.ID] = job.Clone()
	}
	return nil
}

// ClaimQueued flips up to limit queued jobs, oldest first, under the write lock.
func (r *MemoryEmailJobRepository) ClaimQueued(ctx context.Context, limit int) ([]*mailDomain.EmailJob, error) {
	if limit <= 0 {
		return []*mailDomain.EmailJob{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	queued := make([]*mailDomain.EmailJob, 0)
	for _, job := range r.jobs {
		if job.Status == mailDomain.StatusQueued {
			queued = append(queued, job)
		}
	}
	sortJobs(queued, mailDomain.OrderByCreatedAt, mailDomain.OrderAsc)

	if len(queued) > limit {
		queued = queued[:limit]
	}

	now := r.now()
	claimed := make([]*mailDomain.EmailJob, 0, len(queued))
	for _, job := range queued {
		job.Status = mailDomain.StatusProcessing
		job.UpdatedAt = now
		claimed = append(claimed, job.Clone())
	}
	return claimed, nil
}

// UpdateStatus sets the status of a job unconditionally.
func (r *MemoryEmailJobRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status mailDomain.EmailJobStatus,
) error {
	return r.mutate(id, func(job *mailDomain.EmailJob) {
		job.Status = status
	})
}

// ApplyRetry puts a job back in the queue with the given retry count.
func (r *MemoryEmailJobRepository) ApplyRetry(
	ctx context.Context,
	id uuid.UUID,
	retryCount int,
	lastError string,
) error {
	return r.mutate(id, func(job *mailDomain.EmailJob) {
		job.Status = mailDomain.StatusQueued
		job.RetryCount = retryCount
		job.LastError = &lastError
	})
}

// MarkDead moves a job to the dead state, keeping its retry count.
func (r *MemoryEmailJobRepository) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.mutate(id, func(job *mailDomain.EmailJob) {
		job.Status = mailDomain.StatusDead
		job.LastError = &lastError
	})
}

// Get retrieves a job by ID.
func (r *MemoryEmailJobRepository) Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, mailDomain.ErrEmailJobNotFound
	}
	return job.Clone(), nil
}

// List retrieves a page of jobs, optionally filtered by status.
func (r *MemoryEmailJobRepository) List(
	ctx context.Context,
	filter mailDomain.ListFilter,
) ([]*mailDomain.EmailJob, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*mailDomain.EmailJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.Status == nil || job.Status == *filter.Status {
			matched = append(matched, job)
		}
	}
	sortJobs(matched, filter.OrderBy, filter.Order)

	if filter.Offset >= len(matched) {
		return []*mailDomain.EmailJob{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*mailDomain.EmailJob, 0, end-filter.Offset)
	for _, job := range matched[filter.Offset:end] {
		page = append(page, job.Clone())
	}
	return page, nil
}

// Count returns the number of jobs, optionally restricted to one status.
func (r *MemoryEmailJobRepository) Count(ctx context.Context, status *mailDomain.EmailJobStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if status == nil {
		return len(r.jobs), nil
	}
	count := 0
	for _, job := range r.jobs {
		if job.Status == *status {
			count++
		}
	}
	return count, nil
}

// CountByStatus returns the number of jobs in every status, including empty ones.
func (r *MemoryEmailJobRepository) CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[mailDomain.EmailJobStatus]int, len(mailDomain.AllStatuses()))
	for _, status := range mailDomain.AllStatuses() {
		counts[status] = 0
	}
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// Requeue moves a failed or dead job back to queued.
func (r *MemoryEmailJobRepository) Requeue(
	ctx context.Context,
	id uuid.UUID,
	resetRetryCount bool,
) (*mailDomain.EmailJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, mailDomain.ErrEmailJobNotFound
	}
	if !job.Status.IsRequeueable() {
		return nil, mailDomain.ErrEmailJobNotEligible
	}

	job.Status = mailDomain.StatusQueued
	if resetRetryCount {
		job.RetryCount = 0
	}
	job.UpdatedAt = r.now()
	return job.Clone(), nil
}

// ReclaimStale returns processing jobs untouched since olderThan to the queue.
func (r *MemoryEmailJobRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var reclaimed int64
	for _, job := range r.jobs {
		if job.Status == mailDomain.StatusProcessing && job.UpdatedAt.Before(olderThan) {
			job.Status = mailDomain.StatusQueued
			job.UpdatedAt = now
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (r *MemoryEmailJobRepository) mutate(id uuid.UUID, fn func(job *mailDomain.EmailJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return mailDomain.ErrEmailJobNotFound
	}
	fn(job)
	job.UpdatedAt = r.now()
	return nil
}

func sortJobs(jobs []*mailDomain.EmailJob, orderBy, order string) {
	key := func(j *mailDomain.EmailJob) time.Time {
		if orderBy == mailDomain.OrderByUpdatedAt {
			return j.UpdatedAt
		}
		return j.CreatedAt
	}
	sort.Slice(jobs, func(i, j int) bool {
		a, b := key(jobs[i]), key(jobs[j])
		if a.Equal(b) {
			a, b := jobs[i].ID.String(), jobs[j].ID.String()
			if order == mailDomain.OrderDesc {
				return a > b
			}
			return a < b
		}
		if order == mailDomain.OrderDesc {
			return a.After(b)
		}
		return a.Before(b)
	})
}

// NewMemoryEmailJobRepository creates an empty in-memory EmailJob repository.
func NewMemoryEmailJobRepository() *MemoryEmailJobRepository {
	return &MemoryEmailJobRepository{
		jobs: make(map[uuid.UUID]*mailDomain.EmailJob),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}
