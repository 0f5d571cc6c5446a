package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailJob is a single outbound email and its delivery state.
// ID doubles as the correlation identifier sent to the provider, so webhook
// events can be matched back to the job without a lookup table.
type EmailJob struct {
	ID         uuid.UUID
	Recipient  string
	Subject    string
	Body       string
	Status     EmailJobStatus
	RetryCount int
	LastError  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EmailMessage is the caller-provided content of a job.
type EmailMessage struct {
	Recipient string
	Subject   string
	Body      string
}

// NewEmailJob builds a queued job for msg with a time-ordered identifier.
func NewEmailJob(msg EmailMessage, now time.Time) *EmailJob {
	now = now.UTC()
	return &EmailJob{
		ID:         uuid.Must(uuid.NewV7()),
		Recipient:  msg.Recipient,
		Subject:    msg.Subject,
		Body:       msg.Body,
		Status:     StatusQueued,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CorrelationID returns the identifier handed to the provider with the message.
func (j *EmailJob) CorrelationID() string {
	return j.ID.String()
}

// Clone returns a deep copy of the job.
func (j *EmailJob) Clone() *EmailJob {
	c := *j
	if j.LastError != nil {
		msg := *j.LastError
		c.LastError = &msg
	}
	return &c
}

// ListFilter narrows and pages a job listing.
type ListFilter struct {
	Status  *EmailJobStatus
	Limit   int
	Offset  int
	OrderBy string
	Order   string
}

// Page size bounds for listings.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Allowed sort columns and directions for listings.
const (
	OrderByCreatedAt = "created_at"
	OrderByUpdatedAt = "updated_at"
	OrderAsc         = "asc"
	OrderDesc        = "desc"
)

// Normalize fills defaults and replaces unknown sort options so the filter can
// be rendered into SQL without interpolating caller input.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.OrderBy != OrderByCreatedAt && f.OrderBy != OrderByUpdatedAt {
		f.OrderBy = OrderByCreatedAt
	}
	if f.Order != OrderAsc && f.Order != OrderDesc {
		f.Order = OrderDesc
	}
	return f
}
