package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/cassiomorais/invoicing/internal/controller"
	"github.com/cassiomorais/invoicing/internal/infrastructure/config"
	"github.com/cassiomorais/invoicing/internal/infrastructure/observability"
	"github.com/cassiomorais/invoicing/internal/infrastructure/redis"
	"github.com/cassiomorais/invoicing/internal/notification"
	"github.com/cassiomorais/invoicing/internal/processor"
	"github.com/cassiomorais/invoicing/internal/repository/postgres"
	"github.com/cassiomorais/invoicing/internal/service"
	"github.com/cassiomorais/invoicing/pkg/retry"
)

// App holds the wired application and its closable resources.
type App struct {
	Config  *config.Config
	Handler http.Handler

	pool           *pgxpool.Pool
	redisClient    *goredis.Client
	tracerShutdown func(context.Context) error
}

// lockAdapter narrows *redis.Lock to the service.Lock interface.
type lockAdapter struct {
	locks *redis.LockManager
}

func (a lockAdapter) Acquire(ctx context.Context, key string) (service.Lock, error) {
	return a.locks.Acquire(ctx, key)
}

// New wires every component from configuration. The caller owns the returned
// App and must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	observability.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Environment, cfg.Observability.ServiceName)
	logger := log.Logger

	app := &App{Config: cfg}

	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.InitTracer(cfg.Observability.ServiceName,
			cfg.Observability.Environment, cfg.Observability.JaegerEndpoint)
		if err != nil {
			return nil, fmt.Errorf("initializing tracer: %w", err)
		}
		app.tracerShutdown = shutdown
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	app.pool = pool

	redisClient, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	app.redisClient = redisClient

	txManager := postgres.NewTxManager(pool, cfg.Reconcile.TransactionTimeout)
	locks := lockAdapter{locks: redis.NewLockManager(redisClient, cfg.Reconcile.LockTTL)}

	customerRepo := postgres.NewCustomerRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	cardRepo := postgres.NewCardRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)

	var procClient processor.Client
	switch cfg.Processor.Mode {
	case "live":
		procClient = processor.NewLiveClient(cfg.Processor.APIKey, cfg.Processor.RequestTimeout)
	default:
		logger.Warn().Msg("running against the simulated payment processor")
		procClient = processor.NewSimulatedClient()
	}
	procClient = processor.NewBreakerClient(procClient, processor.BreakerSettings{
		MaxRequests:  cfg.Processor.BreakerMaxRequests,
		Interval:     cfg.Processor.BreakerInterval,
		Timeout:      cfg.Processor.BreakerTimeout,
		MinRequests:  cfg.Processor.BreakerMinRequests,
		FailureRatio: cfg.Processor.BreakerFailureRatio,
	})

	sender := notification.NewSendGridSender(cfg.Notification.SendGridAPIKey,
		cfg.Notification.FromName, cfg.Notification.FromEmail)
	notifier := notification.NewNotifier(sender, logger,
		notification.WithRetryConfig(retry.Config{
			Attempts: cfg.Notification.MaxAttempts,
			Delay:    cfg.Notification.RetryDelay,
			MaxDelay: cfg.Notification.RetryMaxDelay,
		}),
		notification.WithTimeout(cfg.Notification.SendTimeout),
		notification.WithCounters(
			func() { metrics.NotificationsSent.Inc() },
			func() { metrics.NotificationsFailed.Inc() },
		),
	)

	invoiceSvc := service.NewInvoiceService(invoiceRepo, customerRepo, paymentRepo, txManager, logger)
	reconcileSvc := service.NewReconcileService(
		invoiceRepo, customerRepo, paymentRepo, cardRepo, eventRepo,
		txManager, locks, procClient, notifier, metrics, logger,
		cfg.Reconcile.ReplayBatchSize,
	)

	app.Handler = controller.NewRouter(controller.RouterConfig{
		Invoices:        controller.NewInvoiceController(invoiceSvc),
		Payments:        controller.NewPaymentController(reconcileSvc),
		Webhooks:        controller.NewWebhookController(reconcileSvc, cfg.Processor.WebhookSecret, cfg.Processor.WebhookTolerance, logger),
		Health:          controller.NewHealthController(pool, redisClient),
		Metrics:         metrics,
		Registry:        registry,
		Logger:          logger,
		JWTSecret:       cfg.Auth.JWTSecret,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow,
		CORSOrigins:     cfg.Server.CORSOrigins,
		TracingEnabled:  cfg.Observability.TracingEnabled,
	})

	return app, nil
}

// Close releases every resource the app holds. Safe to call on a partially
// constructed app.
func (a *App) Close(ctx context.Context) {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis client")
		}
	}
	if a.tracerShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutting down tracer")
		}
	}
}
