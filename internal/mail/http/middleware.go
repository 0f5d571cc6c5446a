package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/mailqueue/internal/errors"
	"github.com/allisson/mailqueue/internal/httputil"
	mailService "github.com/allisson/mailqueue/internal/mail/service"
)

// AdminAuthMiddleware guards operator routes with a bearer admin key.
//
// Error handling:
//   - No admin key hash configured → 403 Forbidden (admin routes disabled)
//   - Missing or malformed Authorization header → 401 Unauthorized
//   - Key does not match the configured hash → 401 Unauthorized
func AdminAuthMiddleware(keyService mailService.AdminKeyService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !keyService.Enabled() {
			logger.Debug("admin request rejected: admin key not configured")
			httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrForbidden, "admin routes disabled"), logger)
			c.Abort()
			return
		}

		plainKey, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("admin request rejected: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !keyService.Verify(plainKey) {
			logger.Warn("admin request rejected: invalid admin key",
				slog.String("client_ip", c.ClientIP()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

// bearerToken extracts the token of a "Bearer <token>" header, case-insensitively.
func bearerToken(header string) (string, bool) {
	const bearerPrefix = "bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
