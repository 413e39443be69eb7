// Package server wires the auction handlers into an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/reverse-auction/internal/auth"
	"github.com/vyrodovalexey/reverse-auction/internal/config"
	"github.com/vyrodovalexey/reverse-auction/internal/handler"
	"github.com/vyrodovalexey/reverse-auction/internal/middleware"
)

// auctioneerPrefix is the path prefix guarded by the authenticator.
const auctioneerPrefix = "/auction"

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
	hub        *handler.EventHub
	registry   *prometheus.Registry
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithEventHub serves the event stream at /ws.
func WithEventHub(hub *handler.EventHub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithRegistry exposes reg at /metrics and records HTTP metrics into it.
// It only takes effect when metrics are enabled in the config.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a new Server instance. A nil authenticator leaves the
// auctioneer routes open.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	service handler.AuctionService,
	authenticator auth.Authenticator,
	opts ...Option,
) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware(authenticator)
	s.setupRoutes(service)
	s.setupHTTPServer()

	return s
}

func (s *Server) setupMiddleware(authenticator auth.Authenticator) {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		auth.APIKeyHeader,
		middleware.RequestIDHeader,
	}

	// First registered is outermost.
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.metricsEnabled() {
		s.router.Use(mux.MiddlewareFunc(middleware.NewHTTPMetrics(s.registry).Middleware()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.CORS(s.config.CORSOrigins, allowedMethods, allowedHeaders)))
	s.router.Use(mux.MiddlewareFunc(middleware.Guard(authenticator, s.logger, auctioneerPrefix)))
}

func (s *Server) setupRoutes(service handler.AuctionService) {
	handler.NewRESTHandler(service, s.logger).RegisterRoutes(s.router)

	if s.hub != nil && s.config.WSEnabled {
		s.hub.RegisterRoutes(s.router)
	}

	if s.metricsEnabled() {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
			Registry: s.registry,
		})).Methods(http.MethodGet)
	}
}

func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

func (s *Server) metricsEnabled() bool {
	return s.config.MetricsEnabled && s.registry != nil
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.metricsEnabled()),
		zap.Bool("events_enabled", s.hub != nil && s.config.WSEnabled),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown closes event subscribers and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.hub != nil {
		s.hub.CloseAllConnections()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router.
func (s *Server) Router() *mux.Router {
	return s.router
}
