package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/mailqueue/internal/app"
	"github.com/allisson/mailqueue/internal/config"
)

// RunServer starts the HTTP API with graceful shutdown support. When QUEUE_RUN_IN_SERVER
// is set, the queue processor also runs in-process on QUEUE_INTERVAL.
// Blocks until receiving SIGINT/SIGTERM or encountering a fatal error. On shutdown
// signal, gracefully stops the servers within DBConnMaxLifetime timeout.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	serverErr := make(chan error, 3)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	processorDone := make(chan struct{})
	if cfg.QueueRunInServer {
		processor, err := container.QueueProcessor()
		if err != nil {
			return fmt.Errorf("failed to initialize queue processor: %w", err)
		}
		go func() {
			defer close(processorDone)
			if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				serverErr <- fmt.Errorf("queue processor error: %w", err)
			}
		}()
	} else {
		close(processorDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", runErr))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	defer shutdownCancel()

	shutdownErrors := []error{runErr}

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// In-flight dispatches finish before the database is closed.
	select {
	case <-processorDone:
	case <-shutdownCtx.Done():
		shutdownErrors = append(shutdownErrors, fmt.Errorf("queue processor did not stop in time"))
	}

	return errors.Join(shutdownErrors...)
}

// RunWorker runs the queue processor on QUEUE_SCHEDULE until SIGINT/SIGTERM. Runs in
// progress when the signal arrives are allowed to finish.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	scheduler, err := container.QueueScheduler()
	if err != nil {
		return fmt.Errorf("failed to initialize queue scheduler: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsErr := make(chan error, 1)
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				metricsErr <- fmt.Errorf("metrics server error: %w", err)
				cancel()
			}
		}()
	}

	err = scheduler.Start(ctx)
	logger.Info("worker stopped")

	var shutdownErrors []error
	if err != nil && !errors.Is(err, context.Canceled) {
		shutdownErrors = append(shutdownErrors, err)
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	select {
	case err := <-metricsErr:
		shutdownErrors = append(shutdownErrors, err)
	default:
	}

	return errors.Join(shutdownErrors...)
}
