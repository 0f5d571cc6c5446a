package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

func newTestJobs(t *testing.T, n int) []*mailDomain.EmailJob {
	t.Helper()

	base := time.Now().UTC().Add(-time.Hour)
	jobs := make([]*mailDomain.EmailJob, 0, n)
	for i := 0; i < n; i++ {
		job := mailDomain.NewEmailJob(mailDomain.EmailMessage{
			Recipient: "user@example.com",
			Subject:   "Subject",
			Body:      "Body",
		}, base.Add(time.Duration(i)*time.Second))
		jobs = append(jobs, job)
	}
	return jobs
}

func TestMemoryEmailJobRepository_CreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AllJobsVisible", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		jobs := newTestJobs(t, 3)

		require.NoError(t, repo.CreateBatch(ctx, jobs))

		count, err := repo.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("Error_DuplicateLeavesNothingBehind", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		existing := newTestJobs(t, 1)
		require.NoError(t, repo.CreateBatch(ctx, existing))

		batch := append(newTestJobs(t, 2), existing[0])
		err := repo.CreateBatch(ctx, batch)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

		count, err := repo.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Success_StoredCopyIsIsolated", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		jobs := newTestJobs(t, 1)
		require.NoError(t, repo.CreateBatch(ctx, jobs))

		jobs[0].Status = mailDomain.StatusDead

		stored, err := repo.Get(ctx, jobs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, mailDomain.StatusQueued, stored.Status)
	})
}

func TestMemoryEmailJobRepository_ClaimQueued(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ClaimsOldestFirstUpToLimit", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		jobs := newTestJobs(t, 5)
		require.NoError(t, repo.CreateBatch(ctx, jobs))

		claimed, err := repo.ClaimQueued(ctx, 3)
		require.NoError(t, err)
		require.Len(t, claimed, 3)
		for i, job := range claimed {
			assert.Equal(t, jobs[i].ID, job.ID)
			assert.Equal(t, mailDomain.StatusProcessing, job.Status)
		}

		processing := mailDomain.StatusProcessing
		count, err := repo.Count(ctx, &processing)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("Success_EmptyQueue", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()

		claimed, err := repo.ClaimQueued(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("Success_NonPositiveLimitClaimsNothing", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		require.NoError(t, repo.CreateBatch(ctx, newTestJobs(t, 2)))

		for _, limit := range []int{0, -1} {
			claimed, err := repo.ClaimQueued(ctx, limit)
			require.NoError(t, err)
			assert.NotNil(t, claimed)
			assert.Empty(t, claimed)
		}

		queued := mailDomain.StatusQueued
		count, err := repo.Count(ctx, &queued)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Success_SkipsNonQueued", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		jobs := newTestJobs(t, 2)
		jobs[0].Status = mailDomain.StatusSent
		require.NoError(t, repo.CreateBatch(ctx, jobs))

		claimed, err := repo.ClaimQueued(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, jobs[1].ID, claimed[0].ID)
	})

	t.Run("Success_ConcurrentClaimsAreDisjoint", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		require.NoError(t, repo.CreateBatch(ctx, newTestJobs(t, 100)))

		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			seen = make(map[uuid.UUID]int)
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := repo.ClaimQueued(ctx, 10)
				assert.NoError(t, err)

				mu.Lock()
				defer mu.Unlock()
				for _, job := range claimed {
					seen[job.ID]++
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 100)
		for id, n := range seen {
			assert.Equal(t, 1, n, "job %s claimed more than once", id)
		}
	})
}

func TestMemoryEmailJobRepository_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEmailJobRepository()
	jobs := newTestJobs(t, 1)
	require.NoError(t, repo.CreateBatch(ctx, jobs))
	id := jobs[0].ID

	require.NoError(t, repo.ApplyRetry(ctx, id, 1, "timeout"))
	job, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, mailDomain.StatusQueued, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "timeout", *job.LastError)
	assert.True(t, job.UpdatedAt.After(job.CreatedAt))

	require.NoError(t, repo.MarkDead(ctx, id, "rejected"))
	job, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, mailDomain.StatusDead, job.Status)
	assert.Equal(t, 1, job.RetryCount)

	require.NoError(t, repo.UpdateStatus(ctx, id, mailDomain.StatusSent))
	job, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, mailDomain.StatusSent, job.Status)

	missing := uuid.Must(uuid.NewV7())
	assert.ErrorIs(t, repo.UpdateStatus(ctx, missing, mailDomain.StatusSent), mailDomain.ErrEmailJobNotFound)
	assert.ErrorIs(t, repo.ApplyRetry(ctx, missing, 1, "x"), mailDomain.ErrEmailJobNotFound)
	assert.ErrorIs(t, repo.MarkDead(ctx, missing, "x"), mailDomain.ErrEmailJobNotFound)
	_, err = repo.Get(ctx, missing)
	assert.ErrorIs(t, err, mailDomain.ErrEmailJobNotFound)
}

func TestMemoryEmailJobRepository_Requeue(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		status        mailDomain.EmailJobStatus
		reset         bool
		expectedErr   error
		expectedCount int
	}{
		{name: "Dead_KeepCount", status: mailDomain.StatusDead, expectedCount: 3},
		{name: "Dead_ResetCount", status: mailDomain.StatusDead, reset: true, expectedCount: 0},
		{name: "Failed_KeepCount", status: mailDomain.StatusFailed, expectedCount: 3},
		{name: "Sent_NotEligible", status: mailDomain.StatusSent, expectedErr: mailDomain.ErrEmailJobNotEligible},
		{name: "Queued_NotEligible", status: mailDomain.StatusQueued, expectedErr: mailDomain.ErrEmailJobNotEligible},
		{
			name:        "Processing_NotEligible",
			status:      mailDomain.StatusProcessing,
			expectedErr: mailDomain.ErrEmailJobNotEligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemoryEmailJobRepository()
			jobs := newTestJobs(t, 1)
			jobs[0].Status = tt.status
			jobs[0].RetryCount = 3
			require.NoError(t, repo.CreateBatch(ctx, jobs))

			job, err := repo.Requeue(ctx, jobs[0].ID, tt.reset)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				stored, getErr := repo.Get(ctx, jobs[0].ID)
				require.NoError(t, getErr)
				assert.Equal(t, tt.status, stored.Status)
				assert.Equal(t, 3, stored.RetryCount)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, mailDomain.StatusQueued, job.Status)
			assert.Equal(t, tt.expectedCount, job.RetryCount)
		})
	}

	t.Run("NotFound", func(t *testing.T) {
		repo := NewMemoryEmailJobRepository()
		_, err := repo.Requeue(ctx, uuid.Must(uuid.NewV7()), false)
		assert.ErrorIs(t, err, mailDomain.ErrEmailJobNotFound)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}

func TestMemoryEmailJobRepository_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEmailJobRepository()
	jobs := newTestJobs(t, 5)
	jobs[0].Status = mailDomain.StatusSent
	jobs[1].Status = mailDomain.StatusDead
	require.NoError(t, repo.CreateBatch(ctx, jobs))

	t.Run("NewestFirstByDefault", func(t *testing.T) {
		page, err := repo.List(ctx, mailDomain.ListFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, jobs[4].ID, page[0].ID)
		assert.Equal(t, jobs[3].ID, page[1].ID)
	})

	t.Run("OffsetPastEnd", func(t *testing.T) {
		page, err := repo.List(ctx, mailDomain.ListFilter{Limit: 10, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("StatusFilterAscending", func(t *testing.T) {
		queued := mailDomain.StatusQueued
		page, err := repo.List(ctx, mailDomain.ListFilter{
			Status: &queued,
			Limit:  10,
			Order:  mailDomain.OrderAsc,
		})
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, jobs[2].ID, page[0].ID)
	})

	t.Run("CountByStatusIncludesZeroes", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[mailDomain.StatusQueued])
		assert.Equal(t, 1, counts[mailDomain.StatusSent])
		assert.Equal(t, 1, counts[mailDomain.StatusDead])
		assert.Equal(t, 0, counts[mailDomain.StatusFailed])
		_, ok := counts[mailDomain.StatusProcessing]
		assert.True(t, ok)
	})
}

func TestMemoryEmailJobRepository_ReclaimStale(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEmailJobRepository()
	require.NoError(t, repo.CreateBatch(ctx, newTestJobs(t, 3)))

	claimed, err := repo.ClaimQueued(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	reclaimed, err := repo.ReclaimStale(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), reclaimed)

	reclaimed, err = repo.ReclaimStale(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), reclaimed)

	job, err := repo.Get(ctx, claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, mailDomain.StatusQueued, job.Status)
	assert.Equal(t, 0, job.RetryCount)
}
