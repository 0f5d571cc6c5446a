// Package mocks provides mock implementations of the database package interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTxManager is a mock implementation of database.TxManager. When the expectation
// returns a nil error the callback is executed, so the wrapped work still runs.
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks the WithTx method of TxManager.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}
