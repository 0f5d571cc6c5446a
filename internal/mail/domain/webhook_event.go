package domain

import (
	"strings"

	"github.com/google/uuid"
)

// WebhookEventType is the closed set of provider events the ingestor understands.
type WebhookEventType int

const (
	// WebhookEventIgnored covers every event type that does not change job state.
	WebhookEventIgnored WebhookEventType = iota
	WebhookEventSent
	WebhookEventOpen
	WebhookEventClick
	WebhookEventBounce
	WebhookEventSpam
	WebhookEventBlocked
)

var webhookEventNames = map[string]WebhookEventType{
	"sent":    WebhookEventSent,
	"open":    WebhookEventOpen,
	"click":   WebhookEventClick,
	"bounce":  WebhookEventBounce,
	"spam":    WebhookEventSpam,
	"blocked": WebhookEventBlocked,
}

// ParseWebhookEventType maps a provider event name to its type.
// Unknown names map to WebhookEventIgnored.
func ParseWebhookEventType(name string) WebhookEventType {
	if t, ok := webhookEventNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t
	}
	return WebhookEventIgnored
}

// TargetStatus returns the job status this event implies, or false for ignored events.
func (t WebhookEventType) TargetStatus() (EmailJobStatus, bool) {
	switch t {
	case WebhookEventSent, WebhookEventOpen, WebhookEventClick:
		return StatusSent, true
	case WebhookEventBounce, WebhookEventSpam, WebhookEventBlocked:
		return StatusFailed, true
	default:
		return "", false
	}
}

// String returns the provider event name.
func (t WebhookEventType) String() string {
	for name, v := range webhookEventNames {
		if v == t {
			return name
		}
	}
	return "ignored"
}

// WebhookEvent is a delivery notification pushed by the provider.
// CustomID carries the job identifier that was attached at dispatch time.
type WebhookEvent struct {
	Event    string
	CustomID string
}

// JobID parses CustomID. It returns false when the id is empty or malformed.
func (e WebhookEvent) JobID() (uuid.UUID, bool) {
	raw := strings.TrimSpace(e.CustomID)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
