// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	customValidation "github.com/allisson/mailqueue/internal/validation"
)

// EmailRequest is a single email in a submission.
type EmailRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// SubmitEmailsRequest contains one or more emails to queue.
type SubmitEmailsRequest struct {
	Emails []EmailRequest `json:"emails"`
}

// Validate checks the shape of the submission. Per-message content rules are enforced by
// the use case so the CLI and the API share them.
func (r *SubmitEmailsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Emails,
			validation.Required,
			validation.Length(1, mailDomain.MaxBulkRecipients),
		),
	)
}

// ToMessages converts the request to domain messages.
func (r *SubmitEmailsRequest) ToMessages() []mailDomain.EmailMessage {
	messages := make([]mailDomain.EmailMessage, 0, len(r.Emails))
	for _, e := range r.Emails {
		messages = append(messages, mailDomain.EmailMessage{
			Recipient: e.Recipient,
			Subject:   e.Subject,
			Body:      e.Body,
		})
	}
	return messages
}

// TemplateRequest is the subject and body shared by every recipient of a bulk submission.
type TemplateRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// BulkSubmitRequest fans one template out to many recipients.
type BulkSubmitRequest struct {
	Recipients []string        `json:"recipients"`
	Template   TemplateRequest `json:"template"`
}

// Validate checks if the bulk submission is valid.
func (r *BulkSubmitRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Recipients,
			validation.Required,
			validation.Length(1, mailDomain.MaxBulkRecipients),
			validation.Each(customValidation.RecipientRules()...),
		),
		validation.Field(&r.Template),
	)
}

// Validate checks if the template is valid.
func (t TemplateRequest) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Subject, customValidation.SubjectRules(mailDomain.MaxSubjectLength)...),
		validation.Field(&t.Body, customValidation.BodyRules()...),
	)
}

// WebhookEventRequest is one Mailjet event. Fields other than the event name and the
// custom id are accepted and ignored.
type WebhookEventRequest struct {
	Event     string `json:"event"`
	CustomID  string `json:"CustomID"`
	MessageID int64  `json:"MessageID,omitempty"`
	Email     string `json:"email,omitempty"`
	Time      int64  `json:"time,omitempty"`
}

// ToDomain converts the request to a domain event.
func (r WebhookEventRequest) ToDomain() mailDomain.WebhookEvent {
	return mailDomain.WebhookEvent{
		Event:    r.Event,
		CustomID: r.CustomID,
	}
}

// ListEmailsQuery holds the filters accepted by the listing endpoint.
type ListEmailsQuery struct {
	Status  string
	OrderBy string
	Order   string
}

// Validate checks if the listing filters are valid.
func (q *ListEmailsQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Status, validation.In(
			string(mailDomain.StatusQueued),
			string(mailDomain.StatusProcessing),
			string(mailDomain.StatusSent),
			string(mailDomain.StatusFailed),
			string(mailDomain.StatusDead),
		)),
		validation.Field(&q.OrderBy, validation.In(mailDomain.OrderByCreatedAt, mailDomain.OrderByUpdatedAt)),
		validation.Field(&q.Order, validation.In(mailDomain.OrderAsc, mailDomain.OrderDesc)),
	)
}

// ToFilter converts the query into a domain filter for the given page.
func (q *ListEmailsQuery) ToFilter(offset, limit int) mailDomain.ListFilter {
	filter := mailDomain.ListFilter{
		Limit:   limit,
		Offset:  offset,
		OrderBy: q.OrderBy,
		Order:   q.Order,
	}
	if q.Status != "" {
		status := mailDomain.EmailJobStatus(q.Status)
		filter.Status = &status
	}
	return filter
}
