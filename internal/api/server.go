package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/engine"
	"github.com/seantiz/qexec/internal/pool"
	"github.com/seantiz/qexec/internal/store"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxResultWait   = 30 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Options tunes the HTTP server.
type Options struct {
	Addr string

	// SubmitRate and SubmitBurst bound job submissions across all clients.
	// A non-positive rate disables the limit.
	SubmitRate  float64
	SubmitBurst int

	// MaxResultWait caps how long a result request may block.
	MaxResultWait time.Duration

	ShutdownTimeout time.Duration
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router   *chi.Mux
	store    store.Store
	registry *backend.Registry
	engine   *engine.Engine
	pool     *pool.Pool
	logger   *slog.Logger
	opts     Options
	limiter  *rate.Limiter
}

// NewServer creates and configures a new HTTP server.
func NewServer(opts Options, s store.Store, reg *backend.Registry, eng *engine.Engine, p *pool.Pool, logger *slog.Logger) *Server {
	if opts.MaxResultWait <= 0 {
		opts.MaxResultWait = defaultMaxResultWait
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	srv := &Server{
		router:   chi.NewRouter(),
		store:    s,
		registry: reg,
		engine:   eng,
		pool:     p,
		logger:   logger,
		opts:     opts,
		limiter:  newSubmitLimiter(opts.SubmitRate, opts.SubmitBurst),
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/v1/stats", s.handleGetStats)

	s.router.Route("/v1/backends", func(r chi.Router) {
		r.Get("/", s.handleListBackends)
		r.Get("/{name}", s.handleGetBackend)
		r.With(s.submitRateLimit).Post("/{name}/jobs", s.handleSubmitJob)
	})

	s.router.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/{id}", s.handleGetJob)
		r.Get("/{id}/result", s.handleGetResult)
		r.Get("/{id}/events", s.handleStreamEvents)
		r.Delete("/{id}", s.handleCancelJob)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		// Result waits are bounded by MaxResultWait; event streams clear
		// their own deadline.
		WriteTimeout: s.opts.MaxResultWait + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
