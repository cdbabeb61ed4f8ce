// Package server hosts chart sessions over HTTP.
//
// A client opens a chart with POST /sessions, draws GET
// /sessions/{id}/chart.svg and posts interaction events to
// /sessions/{id}/events. Each request loads its own copy of the chart state
// from the session store, applies the event through a [chart.Dispatcher] and
// writes the state back:
//
//	POST   /sessions                 open a chart around a person
//	GET    /sessions/{id}            chart summary
//	GET    /sessions/{id}/chart.svg  current document
//	POST   /sessions/{id}/events     apply one event
//	DELETE /sessions/{id}            close the chart
//	GET    /healthz
//	GET    /metrics                  when a metrics handler is configured
//
// Errors are JSON bodies {"code", "error"} with the status from
// [errors.HTTPStatus]; an event for a chart that is still expanding gets
// 409.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/famtree/pkg/chart"
	"github.com/matzehuels/famtree/pkg/session"
)

// Config configures a Server.
type Config struct {
	Addr string

	// TTL is the session lifetime, renewed on every event.
	TTL time.Duration

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// CleanupInterval is how often expired sessions are purged; zero means
	// every 10 minutes.
	CleanupInterval time.Duration

	Logger *log.Logger
}

// Server is the chart session HTTP server.
type Server struct {
	dispatcher *chart.Dispatcher
	store      session.Store
	cfg        Config
	logger     *log.Logger
	router     chi.Router
}

// New returns a server applying events with d and keeping charts in store.
func New(d *chart.Dispatcher, store session.Store, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:8080"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{dispatcher: d, store: store, cfg: cfg, logger: logger}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleOpen)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleSummary)
			r.Delete("/", s.handleClose)
			r.Get("/chart.svg", s.handleDocument)
			r.Post("/events", s.handleEvent)
		})
	})
	return r
}

// logRequests logs one line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
// Expired sessions are purged in the background while the server runs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go s.cleanupLoop(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("serving charts", "addr", s.cfg.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.Cleanup(ctx); err != nil {
				s.logger.Warn("session cleanup failed", "error", err)
			}
		}
	}
}
