// Package mocks provides mock implementations of the mail use cases for testing HTTP handlers.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	mailUsecase "github.com/allisson/mailqueue/internal/mail/usecase"
)

// MockEmailJobUseCase is a mock implementation of EmailJobUseCase.
type MockEmailJobUseCase struct {
	mock.Mock
}

func (m *MockEmailJobUseCase) Submit(
	ctx context.Context,
	messages []mailDomain.EmailMessage,
) ([]*mailDomain.EmailJob, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mailDomain.EmailJob), args.Error(1)
}

func (m *MockEmailJobUseCase) SubmitBulk(
	ctx context.Context,
	recipients []string,
	subject, body string,
) ([]*mailDomain.EmailJob, error) {
	args := m.Called(ctx, recipients, subject, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mailDomain.EmailJob), args.Error(1)
}

func (m *MockEmailJobUseCase) Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailDomain.EmailJob), args.Error(1)
}

func (m *MockEmailJobUseCase) List(
	ctx context.Context,
	filter mailDomain.ListFilter,
) (*mailUsecase.ListResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailUsecase.ListResult), args.Error(1)
}

func (m *MockEmailJobUseCase) CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[mailDomain.EmailJobStatus]int), args.Error(1)
}

func (m *MockEmailJobUseCase) Requeue(
	ctx context.Context,
	id uuid.UUID,
	resetRetryCount bool,
) (*mailDomain.EmailJob, error) {
	args := m.Called(ctx, id, resetRetryCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailDomain.EmailJob), args.Error(1)
}

func (m *MockEmailJobUseCase) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockQueueProcessorUseCase is a mock implementation of QueueProcessorUseCase.
type MockQueueProcessorUseCase struct {
	mock.Mock
}

func (m *MockQueueProcessorUseCase) Run(ctx context.Context) (*mailUsecase.RunSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailUsecase.RunSummary), args.Error(1)
}

func (m *MockQueueProcessorUseCase) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockWebhookUseCase is a mock implementation of WebhookUseCase.
type MockWebhookUseCase struct {
	mock.Mock
}

func (m *MockWebhookUseCase) Ingest(
	ctx context.Context,
	events []mailDomain.WebhookEvent,
) *mailUsecase.IngestSummary {
	args := m.Called(ctx, events)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*mailUsecase.IngestSummary)
}
