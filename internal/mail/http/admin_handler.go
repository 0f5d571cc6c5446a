package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/mailqueue/internal/httputil"
	"github.com/allisson/mailqueue/internal/mail/http/dto"
	mailUsecase "github.com/allisson/mailqueue/internal/mail/usecase"
)

// AdminHandler handles operator actions on the queue.
type AdminHandler struct {
	emailJobUseCase mailUsecase.EmailJobUseCase
	processor       mailUsecase.QueueProcessorUseCase
	logger          *slog.Logger
}

// NewAdminHandler creates a new admin handler with required dependencies.
func NewAdminHandler(
	emailJobUseCase mailUsecase.EmailJobUseCase,
	processor mailUsecase.QueueProcessorUseCase,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		emailJobUseCase: emailJobUseCase,
		processor:       processor,
		logger:          logger,
	}
}

// RequeueHandler moves a failed or dead job back to the queue.
// POST /v1/admin/emails/:id/requeue?reset=true - Returns 200 OK with the job,
// 404 Not Found for unknown ids, or 409 Conflict when the job is not failed or dead.
func (h *AdminHandler) RequeueHandler(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid email ID format: must be a valid UUID"),
			h.logger)
		return
	}

	reset, err := strconv.ParseBool(c.DefaultQuery("reset", "true"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid reset parameter: must be true or false"),
			h.logger)
		return
	}

	job, err := h.emailJobUseCase.Requeue(c.Request.Context(), jobID, reset)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEmailJobToResponse(job))
}

// ProcessQueueHandler runs one processor pass synchronously.
// POST /v1/admin/queue/process - Returns 200 OK with the run summary.
func (h *AdminHandler) ProcessQueueHandler(c *gin.Context) {
	summary, err := h.processor.Run(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRunSummaryToResponse(summary))
}
