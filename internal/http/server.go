// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/mailqueue/internal/config"
	mailHTTP "github.com/allisson/mailqueue/internal/mail/http"
	mailService "github.com/allisson/mailqueue/internal/mail/service"
	"github.com/allisson/mailqueue/internal/metrics"
)

// Server represents the HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	logger *slog.Logger
	router *gin.Engine

	// withoutDatabase marks the in-memory store, where readiness does not need a database.
	withoutDatabase bool
}

// NewServer creates a new HTTP server. A nil db reports not ready unless the
// router is set up for the in-memory store.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter configures the Gin router with all routes and middleware.
// ctx bounds background goroutines started by middleware, such as rate limiter cleanup.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	emailHandler *mailHTTP.EmailHandler,
	webhookHandler *mailHTTP.WebhookHandler,
	adminHandler *mailHTTP.AdminHandler,
	adminKeyService mailService.AdminKeyService,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	gin.SetMode(cfg.GetGinMode())
	s.withoutDatabase = cfg.IsMemoryStore()

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := newCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	router.GET("/health", healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	{
		var submitLimit gin.HandlerFunc
		if cfg.RateLimitEnabled {
			submitLimit = mailHTTP.IPRateLimitMiddleware(
				ctx,
				cfg.RateLimitRequestsPerSec,
				cfg.RateLimitBurst,
				s.logger,
			)
		}
		limited := func(handler gin.HandlerFunc) []gin.HandlerFunc {
			if submitLimit == nil {
				return []gin.HandlerFunc{handler}
			}
			return []gin.HandlerFunc{submitLimit, handler}
		}

		emails := v1.Group("/emails")
		{
			emails.POST("", limited(emailHandler.SubmitHandler)...)
			emails.POST("/bulk", limited(emailHandler.BulkSubmitHandler)...)
			emails.GET("", emailHandler.ListHandler)
			emails.GET("/stats", emailHandler.StatsHandler)
			emails.GET("/:id", emailHandler.GetHandler)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/mailjet", webhookHandler.MailjetHandler)
		}

		admin := v1.Group("/admin")
		admin.Use(mailHTTP.AdminAuthMiddleware(adminKeyService, s.logger))
		{
			admin.POST("/emails/:id/requeue", adminHandler.RequeueHandler)
			admin.POST("/queue/process", adminHandler.ProcessQueueHandler)
		}
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not initialized, call SetupRouter first")
	}

	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness. It never touches dependencies.
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can accept traffic.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}

	switch {
	case s.withoutDatabase:
		components["database"] = "skipped"
	case s.db == nil:
		components["database"] = "error"
	default:
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			components["database"] = "error"
		} else {
			components["database"] = "ok"
		}
	}

	if components["database"] == "error" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
