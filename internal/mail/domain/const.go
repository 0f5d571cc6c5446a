// Package domain defines the email job model of the mail queue.
// A job moves through a small state machine: queued, processing, then sent, queued again
// for a retry, or dead once its retry budget is spent. Webhooks and operators may move it further.
package domain

import (
	"errors"
)

// EmailJobStatus is the lifecycle state of an email job.
type EmailJobStatus string

const (
	// StatusQueued marks a job waiting to be claimed by the queue processor.
	StatusQueued EmailJobStatus = "queued"

	// StatusProcessing marks a job claimed by a processor run and awaiting a dispatch outcome.
	StatusProcessing EmailJobStatus = "processing"

	// StatusSent marks a job accepted by the provider or confirmed delivered by a webhook.
	StatusSent EmailJobStatus = "sent"

	// StatusFailed marks a job reported undeliverable by a provider webhook.
	StatusFailed EmailJobStatus = "failed"

	// StatusDead marks a job whose retry budget was exhausted.
	StatusDead EmailJobStatus = "dead"
)

// Queue defaults.
const (
	// DefaultMaxRetries is the number of retries granted before a job is dead-lettered.
	DefaultMaxRetries = 3

	// DefaultBatchSize is the number of jobs claimed by a single processor run.
	DefaultBatchSize = 10

	// MaxBulkRecipients bounds a single bulk submission.
	MaxBulkRecipients = 1000

	// MaxSubjectLength bounds the subject line accepted on submission.
	MaxSubjectLength = 998
)

var allStatuses = []EmailJobStatus{StatusQueued, StatusProcessing, StatusSent, StatusFailed, StatusDead}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []EmailJobStatus {
	out := make([]EmailJobStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseEmailJobStatus converts a string to an EmailJobStatus.
func ParseEmailJobStatus(s string) (EmailJobStatus, error) {
	status := EmailJobStatus(s)
	if err := status.Validate(); err != nil {
		return "", err
	}
	return status, nil
}

// Validate checks if the status is one of the known lifecycle states.
func (s EmailJobStatus) Validate() error {
	switch s {
	case StatusQueued, StatusProcessing, StatusSent, StatusFailed, StatusDead:
		return nil
	default:
		return errors.New("invalid email job status")
	}
}

// IsRequeueable reports whether an operator may move a job in this state back to queued.
func (s EmailJobStatus) IsRequeueable() bool {
	return s == StatusFailed || s == StatusDead
}

// CanTransitionTo reports whether the automatic queue cycle may move a job from s to next.
// Webhook and operator writes are authoritative and are not checked against this table.
func (s EmailJobStatus) CanTransitionTo(next EmailJobStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusSent || next == StatusQueued || next == StatusDead
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s EmailJobStatus) String() string {
	return string(s)
}
