package app

import (
	"fmt"

	"github.com/allisson/mailqueue/internal/config"
	mailHTTP "github.com/allisson/mailqueue/internal/mail/http"
	mailRepository "github.com/allisson/mailqueue/internal/mail/repository"
	mailService "github.com/allisson/mailqueue/internal/mail/service"
	mailUsecase "github.com/allisson/mailqueue/internal/mail/usecase"
)

// EmailJobRepository returns the job store selected by DB_DRIVER.
func (c *Container) EmailJobRepository() (mailUsecase.EmailJobRepository, error) {
	var err error
	c.emailJobRepoInit.Do(func() {
		c.emailJobRepo, err = c.initEmailJobRepository()
		if err != nil {
			c.initErrors["emailJobRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["emailJobRepo"]; exists {
		return nil, storedErr
	}
	return c.emailJobRepo, nil
}

// Dispatcher returns the provider dispatcher selected by DISPATCH_PROVIDER, throttled when
// DISPATCH_RATE_LIMIT_PER_SEC is set.
func (c *Container) Dispatcher() (mailUsecase.Dispatcher, error) {
	var err error
	c.dispatcherInit.Do(func() {
		c.dispatcher, err = c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// AdminKeyService returns the admin key verifier.
func (c *Container) AdminKeyService() mailService.AdminKeyService {
	c.adminKeyServiceInit.Do(func() {
		c.adminKeyService = mailService.NewAdminKeyService(c.config.AdminAPIKeyHash)
	})
	return c.adminKeyService
}

// EmailJobUseCase returns the submission and query use case.
func (c *Container) EmailJobUseCase() (mailUsecase.EmailJobUseCase, error) {
	var err error
	c.emailJobUseCaseInit.Do(func() {
		c.emailJobUseCase, err = c.initEmailJobUseCase()
		if err != nil {
			c.initErrors["emailJobUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["emailJobUseCase"]; exists {
		return nil, storedErr
	}
	return c.emailJobUseCase, nil
}

// QueueProcessor returns the claim/dispatch/retry processor.
func (c *Container) QueueProcessor() (mailUsecase.QueueProcessorUseCase, error) {
	var err error
	c.queueProcessorInit.Do(func() {
		c.queueProcessor, err = c.initQueueProcessor()
		if err != nil {
			c.initErrors["queueProcessor"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["queueProcessor"]; exists {
		return nil, storedErr
	}
	return c.queueProcessor, nil
}

// QueueScheduler returns the cron scheduler that drives the processor in worker mode.
func (c *Container) QueueScheduler() (*mailUsecase.QueueScheduler, error) {
	var err error
	c.queueSchedulerInit.Do(func() {
		c.queueScheduler, err = c.initQueueScheduler()
		if err != nil {
			c.initErrors["queueScheduler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["queueScheduler"]; exists {
		return nil, storedErr
	}
	return c.queueScheduler, nil
}

// WebhookUseCase returns the delivery event ingestion use case.
func (c *Container) WebhookUseCase() (mailUsecase.WebhookUseCase, error) {
	var err error
	c.webhookUseCaseInit.Do(func() {
		c.webhookUseCase, err = c.initWebhookUseCase()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["webhookUseCase"]; exists {
		return nil, storedErr
	}
	return c.webhookUseCase, nil
}

// EmailHandler returns the HTTP handler for submission and query endpoints.
func (c *Container) EmailHandler() (*mailHTTP.EmailHandler, error) {
	var err error
	c.emailHandlerInit.Do(func() {
		var useCase mailUsecase.EmailJobUseCase
		useCase, err = c.EmailJobUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get email job use case for email handler: %w", err)
			c.initErrors["emailHandler"] = err
			return
		}
		c.emailHandler = mailHTTP.NewEmailHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["emailHandler"]; exists {
		return nil, storedErr
	}
	return c.emailHandler, nil
}

// WebhookHandler returns the HTTP handler for provider webhooks.
func (c *Container) WebhookHandler() (*mailHTTP.WebhookHandler, error) {
	var err error
	c.webhookHandlerInit.Do(func() {
		var useCase mailUsecase.WebhookUseCase
		useCase, err = c.WebhookUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get webhook use case for webhook handler: %w", err)
			c.initErrors["webhookHandler"] = err
			return
		}
		c.webhookHandler = mailHTTP.NewWebhookHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["webhookHandler"]; exists {
		return nil, storedErr
	}
	return c.webhookHandler, nil
}

// AdminHandler returns the HTTP handler for operator endpoints.
func (c *Container) AdminHandler() (*mailHTTP.AdminHandler, error) {
	var err error
	c.adminHandlerInit.Do(func() {
		c.adminHandler, err = c.initAdminHandler()
		if err != nil {
			c.initErrors["adminHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["adminHandler"]; exists {
		return nil, storedErr
	}
	return c.adminHandler, nil
}

// initEmailJobRepository creates the repository matching the configured driver.
func (c *Container) initEmailJobRepository() (mailUsecase.EmailJobRepository, error) {
	if c.config.IsMemoryStore() {
		return mailRepository.NewMemoryEmailJobRepository(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for email job repository: %w", err)
	}

	switch c.config.DBDriver {
	case config.DBDriverMySQL:
		return mailRepository.NewMySQLEmailJobRepository(db), nil
	case config.DBDriverPostgres, config.DBDriverPgx:
		return mailRepository.NewPostgreSQLEmailJobRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initDispatcher creates the provider dispatcher.
func (c *Container) initDispatcher() (mailUsecase.Dispatcher, error) {
	logger := c.Logger()

	var dispatcher mailService.Dispatcher
	switch c.config.DispatchProvider {
	case config.DispatchProviderMailjet:
		dispatcher = mailService.NewMailjetDispatcher(mailService.MailjetConfig{
			BaseURL:   c.config.MailjetBaseURL,
			APIKey:    c.config.MailjetAPIKey,
			APISecret: c.config.MailjetAPISecret,
			FromEmail: c.config.DispatchFromEmail,
			FromName:  c.config.DispatchFromName,
			Timeout:   c.config.DispatchTimeout,
		}, nil, logger)
	case config.DispatchProviderSMTP:
		dispatcher = mailService.NewSMTPDispatcher(mailService.SMTPConfig{
			Host:      c.config.SMTPHost,
			Port:      c.config.SMTPPort,
			Username:  c.config.SMTPUsername,
			Password:  c.config.SMTPPassword,
			FromEmail: c.config.DispatchFromEmail,
			FromName:  c.config.DispatchFromName,
		}, logger)
	case config.DispatchProviderLog:
		dispatcher = mailService.NewLogDispatcher(logger)
	default:
		return nil, fmt.Errorf("unsupported dispatch provider: %s", c.config.DispatchProvider)
	}

	return mailService.NewRateLimitedDispatcher(
		dispatcher,
		c.config.DispatchRateLimitPerSec,
		c.config.DispatchRateLimitBurst,
	), nil
}

// initEmailJobUseCase creates the email job use case wrapped with business metrics.
func (c *Container) initEmailJobUseCase() (mailUsecase.EmailJobUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for email job use case: %w", err)
	}

	repo, err := c.EmailJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job repository for email job use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for email job use case: %w", err)
	}

	useCase := mailUsecase.NewEmailJobUseCase(txManager, repo, c.config.SubmitMaxBatch, c.Logger())
	return mailUsecase.NewEmailJobUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initQueueProcessor creates the queue processor wrapped with business metrics.
func (c *Container) initQueueProcessor() (mailUsecase.QueueProcessorUseCase, error) {
	repo, err := c.EmailJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job repository for queue processor: %w", err)
	}

	dispatcher, err := c.Dispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher for queue processor: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for queue processor: %w", err)
	}

	processorConfig := mailUsecase.Config{
		Interval:    c.config.QueueInterval,
		BatchSize:   c.config.QueueBatchSize,
		Concurrency: c.config.QueueConcurrency,
		MaxRetries:  c.config.QueueMaxRetries,
		StaleAfter:  c.config.QueueStaleAfter,
	}

	processor := mailUsecase.NewQueueProcessor(processorConfig, repo, dispatcher, businessMetrics, c.Logger())
	return mailUsecase.NewQueueProcessorWithMetrics(processor, businessMetrics), nil
}

// initQueueScheduler creates the cron scheduler for the configured schedule.
func (c *Container) initQueueScheduler() (*mailUsecase.QueueScheduler, error) {
	processor, err := c.QueueProcessor()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue processor for scheduler: %w", err)
	}

	scheduler, err := mailUsecase.NewQueueScheduler(c.config.QueueSchedule, processor, c.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create queue scheduler: %w", err)
	}
	return scheduler, nil
}

// initWebhookUseCase creates the webhook use case wrapped with business metrics.
func (c *Container) initWebhookUseCase() (mailUsecase.WebhookUseCase, error) {
	repo, err := c.EmailJobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job repository for webhook use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for webhook use case: %w", err)
	}

	useCase := mailUsecase.NewWebhookUseCase(repo, c.config.WebhookConcurrency, c.Logger())
	return mailUsecase.NewWebhookUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initAdminHandler creates the admin handler.
func (c *Container) initAdminHandler() (*mailHTTP.AdminHandler, error) {
	emailJobUseCase, err := c.EmailJobUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get email job use case for admin handler: %w", err)
	}

	processor, err := c.QueueProcessor()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue processor for admin handler: %w", err)
	}

	return mailHTTP.NewAdminHandler(emailJobUseCase, processor, c.Logger()), nil
}
