package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/dicomfn/internal/config"
	"github.com/me/dicomfn/internal/orchestration"
	"github.com/me/dicomfn/internal/scheduler"
	"github.com/me/dicomfn/internal/store"
)

// Version is reported by the health and discovery endpoints.
const Version = "0.1.0"

// Preemptor is the scheduler surface the server drives.
type Preemptor interface {
	scheduler.Scheduler
	Run(ctx context.Context) (scheduler.Result, error)
}

// Server is the dicomfn admin API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	client    orchestration.Client
	store     store.Store
	scheduler Preemptor // optional; tick endpoint answers 409 without it
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithScheduler sets the preemptive scheduler exposed by the tick endpoint.
func WithScheduler(p Preemptor) Option {
	return func(s *Server) {
		s.scheduler = p
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, client orchestration.Client, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		client:    client,
		store:     st,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(tracingMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Orchestrations. On POST the path segment is the orchestration name,
		// everywhere else it is an instance id.
		r.Route("/orchestrations", func(r chi.Router) {
			r.Get("/", s.handleListOrchestrations)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetOrchestration)
				r.Post("/", s.handleStartOrchestration)
				r.Post("/events/{event}", s.handleRaiseEvent)
			})
		})

		// Preemption
		r.Route("/preemption", func(r chi.Router) {
			r.Get("/paused", s.handleListPaused)
			r.Post("/tick", s.handleTick)
		})
	})
}
