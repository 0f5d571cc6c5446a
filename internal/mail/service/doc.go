// Package service provides the outbound email dispatchers used by the queue processor.
//
// Every dispatcher performs exactly one delivery attempt per call and reports failure
// as a *domain.DispatchError. Retrying is the queue processor's job, never the dispatcher's.
// The job ID travels with each message as the provider correlation id so delivery
// webhooks can be matched back to the job.
package service
