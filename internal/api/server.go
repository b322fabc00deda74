// Package api provides the HTTP API server for mailmatch.
package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gadievron/mailmatch/internal/config"
	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/resolver"
	"github.com/gadievron/mailmatch/internal/store"
)

// OutcomeStore defines the store operations the API needs.
type OutcomeStore interface {
	GetOutcome(ctx context.Context, name string) (*store.Outcome, error)
	ListOutcomes(ctx context.Context, limit int) ([]store.Outcome, error)
	CountOutcomes(ctx context.Context) (int64, error)
	SaveOutcome(ctx context.Context, name string, o store.Outcome) error
}

// NameResolver runs the resolution cascade for one name. It is nil when
// the server is started without an authorized account; the resolve
// endpoint then returns 503.
type NameResolver interface {
	Resolve(ctx context.Context, q namequery.NameQuery) (*resolver.PhaseResult, error)
}

// Server represents the HTTP API server.
type Server struct {
	cfg         *config.Config
	store       OutcomeStore
	resolver    NameResolver
	logger      *slog.Logger
	router   chi.Router
	server   *http.Server
	throttle *throttle
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, st OutcomeStore, res NameResolver, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		resolver: res,
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(120 * time.Second))

	// 10 req/sec per client with a burst of 20
	s.throttle = newThrottle(10, 20)
	r.Use(s.throttle.middleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// API routes (auth required)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/stats", s.handleStats)
		r.Get("/outcomes", s.handleListOutcomes)
		r.Get("/outcomes/{name}", s.handleGetOutcome)
		r.Post("/resolve", s.handleResolve)
	})

	return r
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.Server.APIPort))

	if s.cfg.Server.APIKey == "" {
		s.logger.Warn("API server running without authentication — set [server] api_key in config.toml")
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware validates the API key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key configured
		if s.cfg.Server.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			authHeader = r.Header.Get("X-API-Key")
		}
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			authHeader = authHeader[7:]
		}

		if subtle.ConstantTimeCompare([]byte(authHeader), []byte(s.cfg.Server.APIKey)) != 1 {
			s.logger.Warn("unauthorized API request",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
