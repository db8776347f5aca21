// Package server wires the restaurant handlers into an HTTP server with
// request ids, rate limiting, panic recovery, metrics, CORS and graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"foodfinder/config"
	"foodfinder/database"
	"foodfinder/handlers"
)

const (
	name = "foodfinder-api"

	// readinessTimeout bounds the store ping behind /ready.
	readinessTimeout = 2 * time.Second
)

// Server is the API server.
type Server struct {
	config      *config.Config
	store       database.Store
	classifier  handlers.Classifier
	httpServer  *http.Server
	rateLimiter *rate.Limiter

	mu    sync.RWMutex
	ready bool
}

// New builds the server. Nothing is listening until Run is called.
func New(cfg *config.Config, store database.Store, classifier handlers.Classifier) *Server {
	s := &Server{
		config:      cfg,
		store:       store,
		classifier:  classifier,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateLimitBurst),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	opts := handlers.Options{
		MaxPageSize:    s.config.Limits.MaxPageSize,
		MaxResults:     s.config.Limits.MaxResults,
		UploadDir:      s.config.Upload.Dir,
		MaxUploadBytes: s.config.Upload.MaxBytes,
	}

	mux := http.NewServeMux()

	// System endpoints (no rate limiting)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	getByID := handlers.GetRestaurantHandler(s.store)
	mux.HandleFunc("GET /api/restaurantss/{id}", s.api(getByID))
	mux.HandleFunc("GET /api/restaurants/{id}", s.api(getByID))
	mux.HandleFunc("GET /api/restaurants", s.api(handlers.ListRestaurantsHandler(s.store, opts)))
	mux.HandleFunc("GET /api/nearby", s.api(handlers.NearbyHandler(s.store, opts)))
	mux.HandleFunc("POST /api/image-search", s.api(handlers.ImageSearchHandler(s.store, s.classifier, opts)))

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "X-Request-Id", "Authorization"},
		ExposedHeaders: []string{"X-Request-Id"},
	})
	return c.Handler(mux)
}

// SetReady marks the server as ready to serve traffic.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Run serves until ctx is canceled or the listener fails, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server",
		"name", name,
		"address", s.httpServer.Addr,
		"rateLimit", s.config.Server.RateLimit,
		"rateLimitBurst", s.config.Server.RateLimitBurst,
		"maxResults", s.config.Limits.MaxResults,
		"classifierTimeout", s.config.Classifier.Timeout.String(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.SetReady(true)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// Shutdown stops accepting requests and waits up to the configured timeout
// for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down server")
	return s.httpServer.Shutdown(shutdownCtx)
}
