package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	githubcontroller "github.com/m-mizutani/alertsync/pkg/controller/github"
	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
)

// config holds internal HTTP server configuration
type config struct {
	addr           string
	webhookSecret  string
	requestTimeout time.Duration
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the webhook secret
func WithWebhookSecret(secret string) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// WithRequestTimeout bounds the handling time of one request
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) {
		c.requestTimeout = d
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	webhookUC interfaces.WebhookUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr:           "localhost:8080",
		requestTimeout: 30 * time.Second,
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.requestTimeout))

	// Health check
	router.Get("/health", newHealthHandler(time.Now()))

	// Webhook endpoint: security-check dispatches schedule a reconciliation run
	webhookHandler := NewWebhookHandler(cfg.webhookSecret, githubcontroller.NewEventProcessor(webhookUC))
	router.Route("/hooks/github", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/app", webhookHandler.Handle)
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
