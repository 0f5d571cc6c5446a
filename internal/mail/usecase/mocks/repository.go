// Package mocks provides mock implementations of the mail use case dependencies for testing.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
)

// MockEmailJobRepository is a mock implementation of EmailJobRepository.
type MockEmailJobRepository struct {
	mock.Mock
}

func (m *MockEmailJobRepository) CreateBatch(ctx context.Context, jobs []*mailDomain.EmailJob) error {
	args := m.Called(ctx, jobs)
	return args.Error(0)
}

func (m *MockEmailJobRepository) ClaimQueued(ctx context.Context, limit int) ([]*mailDomain.EmailJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mailDomain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status mailDomain.EmailJobStatus,
) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockEmailJobRepository) ApplyRetry(
	ctx context.Context,
	id uuid.UUID,
	retryCount int,
	lastError string,
) error {
	args := m.Called(ctx, id, retryCount, lastError)
	return args.Error(0)
}

func (m *MockEmailJobRepository) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *MockEmailJobRepository) Get(ctx context.Context, id uuid.UUID) (*mailDomain.EmailJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailDomain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) List(
	ctx context.Context,
	filter mailDomain.ListFilter,
) ([]*mailDomain.EmailJob, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mailDomain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) Count(ctx context.Context, status *mailDomain.EmailJobStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *MockEmailJobRepository) CountByStatus(ctx context.Context) (map[mailDomain.EmailJobStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[mailDomain.EmailJobStatus]int), args.Error(1)
}

func (m *MockEmailJobRepository) Requeue(
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

func (m *MockEmailJobRepository) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockDispatcher is a mock implementation of Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, job *mailDomain.EmailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}
