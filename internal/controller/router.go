package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cassiomorais/invoicing/internal/infrastructure/observability"
	"github.com/cassiomorais/invoicing/internal/middleware"
)

// RouterConfig carries everything the router needs.
type RouterConfig struct {
	Invoices  *InvoiceController
	Payments  *PaymentController
	Webhooks  *WebhookController
	Health    *HealthController
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
	Logger    zerolog.Logger
	JWTSecret string

	RateLimit       int
	RateLimitWindow time.Duration
	CORSOrigins     []string
	TracingEnabled  bool
}

// NewRouter wires all routes and middleware
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.TracingEnabled {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "http.server")
		})
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Processor-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	// processor callbacks, authenticated by signature rather than JWT
	r.Post("/webhooks/processor", cfg.Webhooks.Handle)

	// public payment-page endpoints
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateLimitWindow))
		r.Post("/api/v1/payments/advance", cfg.Payments.InitiateAdvance)
		r.Post("/api/v1/payments/confirm", cfg.Payments.Confirm)
	})

	// admin surface
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.JWTSecret))

		r.Post("/api/v1/invoices", cfg.Invoices.Create)
		r.Get("/api/v1/invoices", cfg.Invoices.List)
		r.Get("/api/v1/invoices/{id}", cfg.Invoices.Get)
		r.Post("/api/v1/invoices/{id}/overdue", cfg.Invoices.MarkOverdue)
		r.Get("/api/v1/stats", cfg.Invoices.Stats)

		r.Get("/api/v1/payments", cfg.Payments.List)
		r.Get("/api/v1/payments/{id}", cfg.Payments.Get)
		r.Post("/api/v1/payments/remaining", cfg.Payments.InitiateRemaining)
		r.Post("/api/v1/reconciliation/retry", cfg.Payments.RetryReconciliation)
	})

	return r
}
