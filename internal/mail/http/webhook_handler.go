package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	"github.com/allisson/mailqueue/internal/mail/http/dto"
	mailUsecase "github.com/allisson/mailqueue/internal/mail/usecase"
)

// maxWebhookBodyBytes bounds a single webhook delivery.
const maxWebhookBodyBytes = 5 << 20

// WebhookHandler handles delivery events pushed by the email provider.
type WebhookHandler struct {
	webhookUseCase mailUsecase.WebhookUseCase
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with required dependencies.
func NewWebhookHandler(webhookUseCase mailUsecase.WebhookUseCase, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookUseCase: webhookUseCase,
		logger:         logger,
	}
}

// MailjetHandler ingests a Mailjet event delivery. Mailjet posts either a single event
// object or, with grouping enabled, an array of events.
// POST /v1/webhooks/mailjet - Always returns 200 OK so the provider does not redeliver.
func (h *WebhookHandler) MailjetHandler(c *gin.Context) {
	events, err := decodeWebhookEvents(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "discarding malformed webhook delivery", slog.Any("error", err))
		c.JSON(http.StatusOK, dto.WebhookResponse{})
		return
	}

	summary := h.webhookUseCase.Ingest(c.Request.Context(), events)
	c.JSON(http.StatusOK, dto.MapIngestSummaryToResponse(summary))
}

func decodeWebhookEvents(r io.Reader) ([]mailDomain.WebhookEvent, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var requests []dto.WebhookEventRequest
	if body[0] == '[' {
		if err := json.Unmarshal(body, &requests); err != nil {
			return nil, err
		}
	} else {
		var single dto.WebhookEventRequest
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, err
		}
		requests = append(requests, single)
	}

	events := make([]mailDomain.WebhookEvent, 0, len(requests))
	for _, req := range requests {
		events = append(events, req.ToDomain())
	}
	return events, nil
}
