package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/mailqueue/internal/config"
	"github.com/allisson/mailqueue/internal/database"
	mailRepository "github.com/allisson/mailqueue/internal/mail/repository"
	mailService "github.com/allisson/mailqueue/internal/mail/service"
	"github.com/allisson/mailqueue/internal/metrics"
)

// memoryConfig returns a configuration that needs no external services.
func memoryConfig() *config.Config {
	return &config.Config{
		LogLevel:           "error",
		ServerHost:         "localhost",
		ServerPort:         8080,
		DBDriver:           config.DBDriverMemory,
		DispatchProvider:   config.DispatchProviderLog,
		DispatchFromEmail:  "no-reply@example.com",
		QueueSchedule:      "@every 1m",
		QueueInterval:      time.Minute,
		QueueBatchSize:     10,
		QueueConcurrency:   5,
		QueueMaxRetries:    3,
		SubmitMaxBatch:     1000,
		WebhookConcurrency: 4,
	}
}

func TestNewContainer(t *testing.T) {
	cfg := memoryConfig()

	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Same(t, cfg, container.Config())
}

func TestContainerLogger(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "debug"})

	logger := container.Logger()
	require.NotNil(t, logger)
	assert.Same(t, logger, container.Logger())
}

func TestContainerLoggerDefaultLevel(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "invalid"})
	assert.NotNil(t, container.Logger())
}

func TestContainerInitializationErrors(t *testing.T) {
	cfg := &config.Config{
		DBDriver:           "invalid_driver",
		DBConnectionString: "",
	}

	container := NewContainer(cfg)

	_, err := container.DB()
	require.Error(t, err)

	// The stored error is returned on later calls.
	_, err2 := container.DB()
	require.Error(t, err2)

	_, err = container.EmailJobRepository()
	require.Error(t, err)
}

func TestContainerLazyInitialization(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "info"})

	assert.Nil(t, container.logger)
	require.NotNil(t, container.Logger())
	assert.NotNil(t, container.logger)
}

func TestContainer_MemoryStore(t *testing.T) {
	container := NewContainer(memoryConfig())
	container.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := container.DB()
	require.NoError(t, err)
	assert.Nil(t, db)

	txManager, err := container.TxManager()
	require.NoError(t, err)
	assert.IsType(t, database.NewPassthroughTxManager(), txManager)

	repo, err := container.EmailJobRepository()
	require.NoError(t, err)
	assert.IsType(t, &mailRepository.MemoryEmailJobRepository{}, repo)

	_, err = container.EmailJobUseCase()
	require.NoError(t, err)

	_, err = container.QueueProcessor()
	require.NoError(t, err)

	scheduler, err := container.QueueScheduler()
	require.NoError(t, err)
	assert.NotNil(t, scheduler)

	_, err = container.WebhookUseCase()
	require.NoError(t, err)

	businessMetrics, err := container.BusinessMetrics()
	require.NoError(t, err)
	assert.IsType(t, &metrics.NoOpBusinessMetrics{}, businessMetrics)

	metricsServer, err := container.MetricsServer()
	require.NoError(t, err)
	assert.Nil(t, metricsServer)

	assert.False(t, container.AdminKeyService().Enabled())

	require.NoError(t, container.Shutdown(context.Background()))
}

func TestContainer_HTTPServer(t *testing.T) {
	cfg := memoryConfig()
	cfg.MetricsEnabled = true
	cfg.MetricsNamespace = "mailqueue_test"
	cfg.MetricsPort = 8081

	container := NewContainer(cfg)
	container.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := container.HTTPServer(ctx)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/emails/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	metricsServer, err := container.MetricsServer()
	require.NoError(t, err)
	require.NotNil(t, metricsServer)

	require.NoError(t, container.Shutdown(context.Background()))
}

func TestContainer_Dispatcher(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *config.Config)
		wantType  any
		wantError bool
	}{
		{
			name:     "log provider",
			mutate:   func(cfg *config.Config) {},
			wantType: &mailService.LogDispatcher{},
		},
		{
			name: "smtp provider",
			mutate: func(cfg *config.Config) {
				cfg.DispatchProvider = config.DispatchProviderSMTP
				cfg.SMTPHost = "localhost"
				cfg.SMTPPort = 2525
			},
			wantType: &mailService.SMTPDispatcher{},
		},
		{
			name: "mailjet provider",
			mutate: func(cfg *config.Config) {
				cfg.DispatchProvider = config.DispatchProviderMailjet
				cfg.MailjetAPIKey = "key"
				cfg.MailjetAPISecret = "secret"
			},
			wantType: &mailService.MailjetDispatcher{},
		},
		{
			name: "rate limited",
			mutate: func(cfg *config.Config) {
				cfg.DispatchRateLimitPerSec = 5
				cfg.DispatchRateLimitBurst = 2
			},
			wantType: &mailService.RateLimitedDispatcher{},
		},
		{
			name:      "unknown provider",
			mutate:    func(cfg *config.Config) { cfg.DispatchProvider = "pigeon" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)

			container := NewContainer(cfg)
			container.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

			dispatcher, err := container.Dispatcher()
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, dispatcher)
		})
	}
}

func TestContainerShutdown(t *testing.T) {
	container := NewContainer(&config.Config{LogLevel: "info"})
	assert.NoError(t, container.Shutdown(context.TODO()))
}
