// Package http exposes the ledger over a small JSON API so callers other than
// the chat bot can issue commands and read monthly summaries.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerbot/internal/core"
	"ledgerbot/internal/log"
	"ledgerbot/internal/middleware/ratelimit"
	"ledgerbot/internal/middleware/security"
	"ledgerbot/internal/middleware/trace"
)

// Dispatcher is the part of the ledger service the API needs.
type Dispatcher interface {
	Handle(ctx context.Context, text string) (string, bool)
	Summary(ctx context.Context, p core.Period) (core.Summary, error)
	Now() time.Time
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	service Dispatcher
	ready   Pinger
	logger  *log.Logger
	ips     *security.ClientIPExtractor
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithReadiness makes /readyz ping p.
func WithReadiness(p Pinger) Option {
	return func(s *Server) { s.ready = p }
}

// WithRateLimit caps commands per sender per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: perMinute})
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, svc Dispatcher, opts ...Option) *Server {
	s := &Server{
		service: svc,
		ips:     security.NewClientIPExtractor(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.ips.ExtractClientIP).Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(security.APIHeaders)
		r.Post("/messages", s.handleMessage)
		r.With(s.limiter.Middleware(s.ips.ExtractClientIP, nil)).Get("/summary", s.handleSummary)
	})
	return r
}

// Shutdown stops the limiter and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
