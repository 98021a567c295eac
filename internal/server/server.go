// Package server exposes the pipeline over HTTP: the analyze stream, record
// lookups, the embedded kernel's control surface, health, and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/moplabs/mopd/internal/domain"
	"github.com/moplabs/mopd/internal/kernel"
	"github.com/moplabs/mopd/internal/metrics"
	"github.com/moplabs/mopd/internal/recorder"
	"github.com/moplabs/mopd/internal/storage"
)

const defaultRequestTimeout = 30 * time.Second

// Analyzer starts pipeline runs. *pipeline.Runner satisfies it directly;
// the daemon wraps it so config reloads can swap the runner under the
// server without restarting listeners.
type Analyzer interface {
	Run(problem string) (string, <-chan domain.Update, error)
}

// Config wires a Server. Runner, Recorder, and Store are required; Kernel
// and Metrics mount their surfaces when present.
type Config struct {
	Port     int
	Runner   Analyzer
	Recorder *recorder.Recorder

	// Store is probed by the health endpoint.
	Store storage.SessionStore

	// Kernel mounts the embedded oracle's handlers under /kernel.
	Kernel *kernel.Handler

	// Metrics serves the Prometheus exposition at /metrics.
	Metrics *metrics.Metrics

	Logger *slog.Logger

	// RequestTimeout bounds the JSON routes. The analyze stream is exempt.
	RequestTimeout time.Duration
}

// Server is the HTTP front of the daemon.
type Server struct {
	router         *chi.Mux
	httpServer     *http.Server
	runner         Analyzer
	recorder       *recorder.Recorder
	store          storage.SessionStore
	logger         *slog.Logger
	requestTimeout time.Duration
}

// New builds the router and the underlying http.Server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	s := &Server{
		router:         chi.NewRouter(),
		runner:         cfg.Runner,
		recorder:       cfg.Recorder,
		store:          cfg.Store,
		logger:         cfg.Logger.With("component", "server"),
		requestTimeout: cfg.RequestTimeout,
	}
	s.routes(cfg)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: the update stream stays open for the life of a run.
	}
	return s
}

func (s *Server) routes(cfg Config) {
	r := s.router

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "mopd")
	})

	// Registered outside the timeout group: a run may outlive any fixed
	// request deadline, and the stream must not be cut out from under it.
	r.Post("/analyze", s.handleAnalyze)

	r.Group(func(jr chi.Router) {
		jr.Use(TimeoutMiddleware(s.requestTimeout))

		jr.Get("/", s.handleRoot)
		jr.Get("/health", s.handleHealth)
		jr.Get("/analyses", s.handleListAnalyses)
		jr.Get("/analyses/{id}", s.handleGetAnalysis)

		if cfg.Kernel != nil {
			jr.Mount("/kernel", cfg.Kernel)
		}
		if cfg.Metrics != nil {
			jr.Handle("/metrics", cfg.Metrics.Handler())
		}
	})
}

// ServeHTTP implements http.Handler, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests. Detached runs keep executing and
// persist through the recorder regardless.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
