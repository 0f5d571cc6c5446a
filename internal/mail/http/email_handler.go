// Package http provides HTTP handlers for email submission, queue inspection,
// provider webhooks and operator actions.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/mailqueue/internal/httputil"
	mailDomain "github.com/allisson/mailqueue/internal/mail/domain"
	"github.com/allisson/mailqueue/internal/mail/http/dto"
	mailUsecase "github.com/allisson/mailqueue/internal/mail/usecase"
	customValidation "github.com/allisson/mailqueue/internal/validation"
)

var listPageBounds = httputil.PageBounds{
	Default: mailDomain.DefaultListLimit,
	Max:     mailDomain.MaxListLimit,
}

// EmailHandler handles HTTP requests for email submission and queue inspection.
type EmailHandler struct {
	emailJobUseCase mailUsecase.EmailJobUseCase
	logger          *slog.Logger
}

// NewEmailHandler creates a new email handler with required dependencies.
func NewEmailHandler(emailJobUseCase mailUsecase.EmailJobUseCase, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		emailJobUseCase: emailJobUseCase,
		logger:          logger,
	}
}

// SubmitHandler queues one job per email.
// POST /v1/emails - Returns 202 Accepted with the job ids in submission order.
func (h *EmailHandler) SubmitHandler(c *gin.Context) {
	var req dto.SubmitEmailsRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	jobs, err := h.emailJobUseCase.Submit(c.Request.Context(), req.ToMessages())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MapJobsToSubmitResponse(jobs))
}

// BulkSubmitHandler queues one job per recipient from a shared template.
// POST /v1/emails/bulk - Returns 202 Accepted with the job ids in recipient order.
func (h *EmailHandler) BulkSubmitHandler(c *gin.Context) {
	var req dto.BulkSubmitRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	jobs, err := h.emailJobUseCase.SubmitBulk(
		c.Request.Context(),
		req.Recipients,
		req.Template.Subject,
		req.Template.Body,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MapJobsToSubmitResponse(jobs))
}

// ListHandler lists jobs with optional status filter and pagination.
// GET /v1/emails?status=&offset=&limit=&order_by=&order= - Returns 200 OK.
func (h *EmailHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c, listPageBounds)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	query := dto.ListEmailsQuery{
		Status:  c.Query("status"),
		OrderBy: c.Query("order_by"),
		Order:   c.Query("order"),
	}
	if err := query.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.emailJobUseCase.List(c.Request.Context(), query.ToFilter(offset, limit))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapListResultToResponse(result))
}

// GetHandler retrieves a job by ID.
// GET /v1/emails/:id - Returns 200 OK or 404 Not Found.
func (h *EmailHandler) GetHandler(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid email ID format: must be a valid UUID"),
			h.logger)
		return
	}

	job, err := h.emailJobUseCase.Get(c.Request.Context(), jobID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEmailJobToResponse(job))
}

// StatsHandler returns the number of jobs per status.
// GET /v1/emails/stats - Returns 200 OK.
func (h *EmailHandler) StatsHandler(c *gin.Context) {
	counts, err := h.emailJobUseCase.CountByStatus(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCountsToStatsResponse(counts))
}
