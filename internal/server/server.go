// Package server exposes the daemon's local HTTP API: connector snapshot
// ingestion, per-session control verbs, aggregate active-song endpoints,
// daemon status and a server-sent event stream.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/stylus/stylus/internal/events"
	"github.com/stylus/stylus/internal/scrobbler"
	"github.com/stylus/stylus/internal/store"
)

// Counters accumulates daemon-lifetime submission tallies for the status
// endpoint.
type Counters struct {
	scrobbles atomic.Uint64
	errors    atomic.Uint64
}

// AddScrobble records one accepted scrobble.
func (c *Counters) AddScrobble() { c.scrobbles.Add(1) }

// AddError records one failed submission round.
func (c *Counters) AddError() { c.errors.Add(1) }

// Scrobbles returns the accepted scrobble count.
func (c *Counters) Scrobbles() uint64 { return c.scrobbles.Load() }

// Errors returns the failed submission count.
func (c *Counters) Errors() uint64 { return c.errors.Load() }

// Config holds the HTTP server parameters.
type Config struct {
	// Addr is the listen address. The API is unauthenticated, so this
	// should stay on loopback.
	Addr string

	// Version is reported by the status endpoint.
	Version string

	// Log is the base logger.
	Log zerolog.Logger
}

// Deps wires the server's collaborators.
type Deps struct {
	Registry   *Registry
	Store      *store.Store
	Bus        *events.Bus
	Scrobblers *scrobbler.Manager
	Counters   *Counters
}

// Server is the daemon's HTTP API surface.
type Server struct {
	log    zerolog.Logger
	router *chi.Mux
	srv    *http.Server

	registry *Registry
	store    *store.Store
	bus      *events.Bus
	manager  *scrobbler.Manager
	counters *Counters

	version string
	started time.Time
}

// New assembles the router and the underlying http.Server.
func New(cfg Config, deps Deps) *Server {
	counters := deps.Counters
	if counters == nil {
		counters = &Counters{}
	}

	s := &Server{
		log:      cfg.Log.With().Str("component", "server").Logger(),
		router:   chi.NewRouter(),
		registry: deps.Registry,
		store:    deps.Store,
		bus:      deps.Bus,
		manager:  deps.Scrobblers,
		counters: counters,
		version:  cfg.Version,
		started:  time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE stream stays open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Get("/history", s.handleHistory)
		api.Get("/events", s.handleEvents)

		api.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Post("/state", s.handleState)
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/song", s.handleGetSong)
				r.Post("/edit", s.handleEdit)
				r.Post("/reset-data", s.handleResetData)
				r.Post("/love", s.handleLove)
				r.Post("/skip", s.handleSkip)
				r.Post("/enabled", s.handleEnabled)
				r.Post("/reset", s.handleReset)
			})
		})

		api.Route("/song", func(r chi.Router) {
			r.Get("/", s.handleActiveSong)
			r.Post("/love", s.handleActiveLove)
			r.Post("/skip", s.handleActiveSkip)
			r.Post("/edit", s.handleActiveEdit)
			r.Post("/reset-data", s.handleActiveResetData)
		})
	})
}

// Handler returns the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving the API until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP API listening")
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// requestLogger emits one debug event per handled request. Snapshot posts
// arrive about once a second per tab, so this stays below info.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("Request handled")
		})
	}
}
