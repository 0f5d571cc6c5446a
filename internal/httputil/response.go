// Package httputil maps apperrors sentinels to JSON error responses for gin handlers.
package httputil

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/mailqueue/internal/errors"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorMapping ties a sentinel to its response. An empty message echoes err.Error().
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is checked in order; the first sentinel found in the chain wins.
var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "The requested resource was not found"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "The resource is not in a state that allows this operation"},
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", ""},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication is required"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden", "You don't have permission to access this resource"},
	{apperrors.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "A dependency is temporarily unavailable, retry later"},
}

func resolve(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !apperrors.Is(err, m.target) {
			continue
		}
		message := m.message
		if message == "" {
			message = err.Error()
		}
		return m.status, ErrorResponse{Error: m.code, Message: message}
	}
	// Unknown errors may carry driver or provider details.
	return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "An internal error occurred"}
}

// HandleErrorGin writes the response mapped from err's sentinel. 5xx responses are logged
// at error level and 4xx at warn, always with the full wrapped error.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	status, body := resolve(err)

	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			slog.Int("status_code", status),
			slog.String("error_code", body.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(status, body)
}

// HandleBadRequestGin writes 400 for bodies or parameters that could not be decoded.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
}

// HandleValidationErrorGin writes 422 for decoded input that failed validation.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_error", Message: err.Error()})
}

// HandleRateLimitedGin writes 429 with a Retry-After header rounded up to whole seconds
// (minimum one).
func HandleRateLimitedGin(c *gin.Context, retryAfter time.Duration) {
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusTooManyRequests, ErrorResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests, retry after the delay in the Retry-After header",
	})
}
