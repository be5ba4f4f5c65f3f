// Package api is the HTTP management surface: agent CRUD under /v1 plus an
// SSE event stream. Every handler goes through the manage facade; the API
// holds no agent state of its own.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/muster-io/muster/internal/config"
	"github.com/muster-io/muster/internal/events"
	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/manage"
	"github.com/muster-io/muster/internal/profile"
)

// Server is the HTTP API server.
type Server struct {
	cfg         config.APIConfig
	facade      *manage.Facade
	hub         *events.Hub
	registry    *profile.Registry
	fingerprint string
	startedAt   time.Time
	logger      *slog.Logger
	server      *http.Server
}

// New creates an API server over the facade. fingerprint is the loaded
// config's hash, reported by healthz so operators can confirm what a running
// controller was started with.
func New(cfg config.APIConfig, facade *manage.Facade, hub *events.Hub, registry *profile.Registry, fingerprint string) *Server {
	return &Server{
		cfg:         cfg,
		facade:      facade,
		hub:         hub,
		registry:    registry,
		fingerprint: fingerprint,
		startedAt:   time.Now(),
		logger:      log.WithComponent("api"),
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.cfg.Listen,
		Handler:     s.Routes(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /v1/events streams indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("api server starting", "listen", s.cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Routes builds the chi router. Exposed for httptest.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/v1/agents", s.handleDispatch)
		r.Get("/v1/agents", s.handleList)
		r.Get("/v1/agents/{agentID}", s.handleStatus)
		r.Post("/v1/agents/{agentID}/kill", s.handleKill)
		r.Post("/v1/agents/{agentID}/restart", s.handleRestart)
		r.Delete("/v1/agents/{agentID}", s.handleRemove)
		r.Get("/v1/agents/{agentID}/history", s.handleHistory)
		r.Get("/v1/events", s.handleEvents)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
