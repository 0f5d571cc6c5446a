package domain

import (
	"fmt"

	"github.com/allisson/mailqueue/internal/errors"
)

// Mail queue errors.
var (
	// ErrEmailJobNotFound indicates no job exists with the given ID.
	ErrEmailJobNotFound = errors.Wrap(errors.ErrNotFound, "email job not found")

	// ErrEmailJobNotEligible indicates the job exists but is not in a state that allows the operation.
	ErrEmailJobNotEligible = errors.Wrap(errors.ErrConflict, "email job is not failed or dead")

	// ErrEmptySubmission indicates a submission without any message.
	ErrEmptySubmission = errors.Wrap(errors.ErrInvalidInput, "at least one email is required")

	// ErrSubmissionTooLarge indicates a submission above MaxBulkRecipients messages.
	ErrSubmissionTooLarge = errors.Wrap(
		errors.ErrInvalidInput,
		fmt.Sprintf("at most %d emails can be submitted at once", MaxBulkRecipients),
	)
)

// DispatchError reports a provider rejection or transport failure for one job.
// StatusCode is zero when no HTTP response was received.
type DispatchError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s dispatch failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s dispatch failed: %v", e.Provider, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError wraps err as a DispatchError for provider.
func NewDispatchError(provider string, statusCode int, err error) *DispatchError {
	return &DispatchError{Provider: provider, StatusCode: statusCode, Err: err}
}
