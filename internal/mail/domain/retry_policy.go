package domain

// RetryAction is the outcome of a retry decision.
type RetryAction int

const (
	// RetryActionRequeue puts the job back in the queue with an incremented retry count.
	RetryActionRequeue RetryAction = iota + 1

	// RetryActionDeadLetter moves the job to the dead state.
	RetryActionDeadLetter
)

// String returns the string representation of the action.
func (a RetryAction) String() string {
	switch a {
	case RetryActionRequeue:
		return "requeue"
	case RetryActionDeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// RetryDecision tells the processor what to do with a job whose dispatch failed.
// RetryCount is the value the job must carry after the decision is applied.
type RetryDecision struct {
	Action     RetryAction
	RetryCount int
}

// RetryPolicy bounds how many times a failed dispatch is retried.
type RetryPolicy struct {
	MaxRetries int
}

// NewRetryPolicy returns a policy allowing maxRetries retries. Zero dead-letters a job on
// its first failure; a negative value falls back to DefaultMaxRetries.
func NewRetryPolicy(maxRetries int) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return RetryPolicy{MaxRetries: maxRetries}
}

// Decide returns the action for a job that has already been retried currentRetryCount times.
// The count is never incremented on the dead-letter branch.
func (p RetryPolicy) Decide(currentRetryCount int) RetryDecision {
	if currentRetryCount >= p.MaxRetries {
		return RetryDecision{Action: RetryActionDeadLetter, RetryCount: currentRetryCount}
	}
	return RetryDecision{Action: RetryActionRequeue, RetryCount: currentRetryCount + 1}
}
