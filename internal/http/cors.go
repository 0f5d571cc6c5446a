package http

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// newCORSMiddleware returns nil unless CORS is enabled with at least one usable origin.
// The API is fed by backend services; CORS only matters for a browser dashboard
// reading the queue. A single "*" allows every origin.
func newCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins, rejected := splitOrigins(allowOrigins)
	for _, origin := range rejected {
		logger.Warn("ignoring invalid CORS origin", slog.String("origin", origin))
	}
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no valid origins configured, CORS will not be applied")
		return nil
	}

	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))
	return cors.New(config)
}

// splitOrigins parses a comma-separated origin list. Entries that are not "*" or an
// http(s) scheme plus host are returned as rejected.
func splitOrigins(raw string) (origins, rejected []string) {
	for part := range strings.SplitSeq(raw, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if origin == "*" {
			origins = append(origins, origin)
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			rejected = append(rejected, origin)
			continue
		}
		origins = append(origins, strings.TrimSuffix(origin, "/"))
	}
	return origins, rejected
}
