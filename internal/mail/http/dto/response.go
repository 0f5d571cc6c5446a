package dto

import (
	"time"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	mailUsecase "github.com/allisson/mailqueue/internal/mail/usecase"
)

// SubmitResponse lists the ids of the queued jobs, in submission order.
type SubmitResponse struct {
	IDs []string `json:"ids"`
}

// MapJobsToSubmitResponse converts created jobs to a submission response.
func MapJobsToSubmitResponse(jobs []*mailDomain.EmailJob) SubmitResponse {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID.String())
	}
	return SubmitResponse{IDs: ids}
}

// EmailJobResponse represents a job in API responses.
type EmailJobResponse struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	LastError  *string   `json:"last_error"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MapEmailJobToResponse converts a domain job to an API response.
func MapEmailJobToResponse(job *mailDomain.EmailJob) EmailJobResponse {
	return EmailJobResponse{
		ID:         job.ID.String(),
		Recipient:  job.Recipient,
		Subject:    job.Subject,
		Body:       job.Body,
		Status:     job.Status.String(),
		RetryCount: job.RetryCount,
		LastError:  job.LastError,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}

// PaginationResponse describes the page returned by a listing.
type PaginationResponse struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListEmailJobsResponse represents a paginated list of jobs in API responses.
type ListEmailJobsResponse struct {
	Data       []EmailJobResponse `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// MapListResultToResponse converts a listing result to an API response.
func MapListResultToResponse(result *mailUsecase.ListResult) ListEmailJobsResponse {
	data := make([]EmailJobResponse, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		data = append(data, MapEmailJobToResponse(job))
	}
	return ListEmailJobsResponse{
		Data: data,
		Pagination: PaginationResponse{
			Total:   result.Total,
			Limit:   result.Limit,
			Offset:  result.Offset,
			HasMore: result.HasMore,
		},
	}
}

// StatsResponse holds the number of jobs per status. Every status is present.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// MapCountsToStatsResponse converts per-status counts to an API response.
func MapCountsToStatsResponse(counts map[mailDomain.EmailJobStatus]int) StatsResponse {
	resp := StatsResponse{Counts: make(map[string]int, len(counts))}
	for _, status := range mailDomain.AllStatuses() {
		n := counts[status]
		resp.Counts[status.String()] = n
		resp.Total += n
	}
	return resp
}

// WebhookResponse summarizes a webhook delivery.
type WebhookResponse struct {
	Received int `json:"received"`
	Applied  int `json:"applied"`
	Ignored  int `json:"ignored"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// MapIngestSummaryToResponse converts an ingest summary to an API response.
func MapIngestSummaryToResponse(summary *mailUsecase.IngestSummary) WebhookResponse {
	if summary == nil {
		return WebhookResponse{}
	}
	return WebhookResponse{
		Received: summary.Received,
		Applied:  summary.Applied,
		Ignored:  summary.Ignored,
		Skipped:  summary.Skipped,
		Failed:   summary.Failed,
	}
}

// RunSummaryResponse summarizes a manual processor run.
type RunSummaryResponse struct {
	Reclaimed    int64 `json:"reclaimed"`
	Claimed      int   `json:"claimed"`
	Sent         int   `json:"sent"`
	Requeued     int   `json:"requeued"`
	DeadLettered int   `json:"dead_lettered"`
	Interrupted  int   `json:"interrupted"`
	Errors       int   `json:"errors"`
}

// MapRunSummaryToResponse converts a run summary to an API response.
func MapRunSummaryToResponse(summary *mailUsecase.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		Reclaimed:    summary.Reclaimed,
		Claimed:      summary.Claimed,
		Sent:         summary.Sent,
		Requeued:     summary.Requeued,
		DeadLettered: summary.DeadLettered,
		Interrupted:  summary.Interrupted,
		Errors:       summary.Errors,
	}
}
