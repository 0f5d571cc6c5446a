package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	databaseMocks "github.com/allisson/mailqueue/internal/database/mocks"
	apperrors "github.com/allisson/mailqueue/internal/errors"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	mailUsecaseMocks "github.com/allisson/mailqueue/internal/mail/usecase/mocks"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validMessage(recipient string) mailDomain.EmailMessage {
	return mailDomain.EmailMessage{
		Recipient: recipient,
		Subject:   "Your receipt",
		Body:      "<p>Thanks</p>",
	}
}

func TestEmailJobUseCase_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AllJobsQueuedInOneBatch", func(t *testing.T) {
		mockTxManager := &databaseMocks.MockTxManager{}
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}

		mockTxManager.On("WithTx", ctx, mock.AnythingOfType("func(context.Context) error")).Return(nil).Once()
		mockRepo.On("CreateBatch", ctx, mock.MatchedBy(func(jobs []*mailDomain.EmailJob) bool {
			if len(jobs) != 2 {
				return false
			}
			for _, job := range jobs {
				if job.Status != mailDomain.StatusQueued || job.RetryCount != 0 || job.ID == uuid.Nil {
					return false
				}
			}
			return jobs[0].Recipient == "a@example.com" && jobs[1].Recipient == "b@example.com"
		})).Return(nil).Once()

		uc := NewEmailJobUseCase(mockTxManager, mockRepo, 0, newTestLogger())
		jobs, err := uc.Submit(ctx, []mailDomain.EmailMessage{
			validMessage("a@example.com"),
			validMessage("b@example.com"),
		})

		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.NotEqual(t, jobs[0].ID, jobs[1].ID)
		mockTxManager.AssertExpectations(t)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error_EmptySubmission", func(t *testing.T) {
		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, &mailUsecaseMocks.MockEmailJobRepository{}, 0, newTestLogger())

		_, err := uc.Submit(ctx, nil)
		assert.ErrorIs(t, err, mailDomain.ErrEmptySubmission)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})

	t.Run("Error_TooManyMessages", func(t *testing.T) {
		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, &mailUsecaseMocks.MockEmailJobRepository{}, 2, newTestLogger())

		_, err := uc.Submit(ctx, []mailDomain.EmailMessage{
			validMessage("a@example.com"),
			validMessage("b@example.com"),
			validMessage("c@example.com"),
		})
		assert.ErrorIs(t, err, mailDomain.ErrSubmissionTooLarge)
	})

	t.Run("Error_InvalidMessageStoresNothing", func(t *testing.T) {
		mockTxManager := &databaseMocks.MockTxManager{}
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}
		uc := NewEmailJobUseCase(mockTxManager, mockRepo, 0, newTestLogger())

		tests := []struct {
			name string
			msg  mailDomain.EmailMessage
		}{
			{name: "bad recipient", msg: mailDomain.EmailMessage{Recipient: "nope", Subject: "s", Body: "b"}},
			{name: "empty subject", msg: mailDomain.EmailMessage{Recipient: "a@example.com", Body: "b"}},
			{name: "blank subject", msg: mailDomain.EmailMessage{Recipient: "a@example.com", Subject: "  ", Body: "b"}},
			{
				name: "header injection",
				msg:  mailDomain.EmailMessage{Recipient: "a@example.com", Subject: "hi\r\nBcc: x@example.com", Body: "b"},
			},
			{
				name: "subject too long",
				msg: mailDomain.EmailMessage{
					Recipient: "a@example.com",
					Subject:   strings.Repeat("x", mailDomain.MaxSubjectLength+1),
					Body:      "b",
				},
			},
			{name: "empty body", msg: mailDomain.EmailMessage{Recipient: "a@example.com", Subject: "s"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := uc.Submit(ctx, []mailDomain.EmailMessage{validMessage("ok@example.com"), tt.msg})
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
				assert.Contains(t, err.Error(), "emails[1]")
			})
		}

		mockTxManager.AssertNotCalled(t, "WithTx", mock.Anything, mock.Anything)
		mockRepo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	})

	t.Run("Error_StorageFailure", func(t *testing.T) {
		mockTxManager := &databaseMocks.MockTxManager{}
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}
		storageErr := errors.New("connection refused")

		mockTxManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		mockRepo.On("CreateBatch", ctx, mock.Anything).Return(storageErr).Once()

		uc := NewEmailJobUseCase(mockTxManager, mockRepo, 0, newTestLogger())
		jobs, err := uc.Submit(ctx, []mailDomain.EmailMessage{validMessage("a@example.com")})

		assert.Nil(t, jobs)
		assert.ErrorIs(t, err, storageErr)
	})
}

func TestEmailJobUseCase_SubmitBulk(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_OneJobPerRecipient", func(t *testing.T) {
		mockTxManager := &databaseMocks.MockTxManager{}
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}

		mockTxManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		mockRepo.On("CreateBatch", ctx, mock.MatchedBy(func(jobs []*mailDomain.EmailJob) bool {
			return len(jobs) == 3 && jobs[2].Recipient == "c@example.com" && jobs[2].Subject == "Launch"
		})).Return(nil).Once()

		uc := NewEmailJobUseCase(mockTxManager, mockRepo, 0, newTestLogger())
		jobs, err := uc.SubmitBulk(ctx, []string{"a@example.com", "b@example.com", "c@example.com"}, "Launch", "Body")

		require.NoError(t, err)
		assert.Len(t, jobs, 3)
	})

	t.Run("Error_TooManyRecipients", func(t *testing.T) {
		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, &mailUsecaseMocks.MockEmailJobRepository{}, 0, newTestLogger())

		recipients := make([]string, mailDomain.MaxBulkRecipients+1)
		for i := range recipients {
			recipients[i] = "user@example.com"
		}

		_, err := uc.SubmitBulk(ctx, recipients, "s", "b")
		assert.ErrorIs(t, err, mailDomain.ErrSubmissionTooLarge)
	})

	t.Run("Error_NoRecipients", func(t *testing.T) {
		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, &mailUsecaseMocks.MockEmailJobRepository{}, 0, newTestLogger())

		_, err := uc.SubmitBulk(ctx, []string{}, "s", "b")
		assert.ErrorIs(t, err, mailDomain.ErrEmptySubmission)
	})
}

func TestEmailJobUseCase_List(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ComputesHasMore", func(t *testing.T) {
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}
		jobs := []*mailDomain.EmailJob{
			mailDomain.NewEmailJob(validMessage("a@example.com"), time.Now()),
			mailDomain.NewEmailJob(validMessage("b@example.com"), time.Now()),
		}
		dead := mailDomain.StatusDead

		mockRepo.On("List", ctx, mock.MatchedBy(func(f mailDomain.ListFilter) bool {
			return f.Limit == 2 && f.Offset == 2 && f.OrderBy == mailDomain.OrderByCreatedAt && f.Order == mailDomain.OrderDesc
		})).Return(jobs, nil).Once()
		mockRepo.On("Count", ctx, &dead).Return(5, nil).Once()

		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, mockRepo, 0, newTestLogger())
		result, err := uc.List(ctx, mailDomain.ListFilter{Status: &dead, Limit: 2, Offset: 2})

		require.NoError(t, err)
		assert.Equal(t, 5, result.Total)
		assert.Equal(t, 2, result.Limit)
		assert.Equal(t, 2, result.Offset)
		assert.True(t, result.HasMore)
		assert.Len(t, result.Jobs, 2)
	})

	t.Run("Success_LastPage", func(t *testing.T) {
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}
		mockRepo.On("List", ctx, mock.Anything).Return([]*mailDomain.EmailJob{}, nil).Once()
		mockRepo.On("Count", ctx, (*mailDomain.EmailJobStatus)(nil)).Return(3, nil).Once()

		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, mockRepo, 0, newTestLogger())
		result, err := uc.List(ctx, mailDomain.ListFilter{Offset: 10})

		require.NoError(t, err)
		assert.False(t, result.HasMore)
		assert.Equal(t, 50, result.Limit)
	})

	t.Run("Error_UnknownStatus", func(t *testing.T) {
		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, &mailUsecaseMocks.MockEmailJobRepository{}, 0, newTestLogger())
		bogus := mailDomain.EmailJobStatus("bogus")

		_, err := uc.List(ctx, mailDomain.ListFilter{Status: &bogus})
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})
}

func TestEmailJobUseCase_Requeue(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}
		job := &mailDomain.EmailJob{ID: id, Status: mailDomain.StatusQueued}
		mockRepo.On("Requeue", ctx, id, true).Return(job, nil).Once()

		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, mockRepo, 0, newTestLogger())
		result, err := uc.Requeue(ctx, id, true)

		require.NoError(t, err)
		assert.Equal(t, job, result)
	})

	t.Run("Error_NotEligible", func(t *testing.T) {
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}
		mockRepo.On("Requeue", ctx, id, false).Return(nil, mailDomain.ErrEmailJobNotEligible).Once()

		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, mockRepo, 0, newTestLogger())
		_, err := uc.Requeue(ctx, id, false)

		assert.ErrorIs(t, err, mailDomain.ErrEmailJobNotEligible)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	})
}

func TestEmailJobUseCase_ReclaimStale(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_CutoffInThePast", func(t *testing.T) {
		mockRepo := &mailUsecaseMocks.MockEmailJobRepository{}
		before := time.Now().UTC()
		mockRepo.On("ReclaimStale", ctx, mock.MatchedBy(func(cutoff time.Time) bool {
			return cutoff.Before(before.Add(-9*time.Minute)) && cutoff.After(before.Add(-11*time.Minute))
		})).Return(int64(4), nil).Once()

		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, mockRepo, 0, newTestLogger())
		n, err := uc.ReclaimStale(ctx, 10*time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("Error_NonPositiveThreshold", func(t *testing.T) {
		uc := NewEmailJobUseCase(&databaseMocks.MockTxManager{}, &mailUsecaseMocks.MockEmailJobRepository{}, 0, newTestLogger())

		_, err := uc.ReclaimStale(ctx, 0)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})
}
