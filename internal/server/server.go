package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/strategist/internal/dedup"
	"github.com/lazypower/strategist/internal/engine"
	"github.com/lazypower/strategist/internal/selector"
	"github.com/lazypower/strategist/internal/store"
	"github.com/rs/zerolog"
)

// Server is the strategist HTTP API server.
type Server struct {
	db       *store.DB
	engine   *engine.Engine
	selector *selector.Selector
	filter   *dedup.Filter
	log      zerolog.Logger
	now      func() time.Time

	conservativeDays int

	router  chi.Router
	version string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithEngine serves strategies and preferences from e.
func WithEngine(e *engine.Engine) Option {
	return func(s *Server) { s.engine = e }
}

// WithSelector serves selection, levels and compatibility from sel.
func WithSelector(sel *selector.Selector) Option {
	return func(s *Server) { s.selector = sel }
}

// WithFilter screens submitted records through f.
func WithFilter(f *dedup.Filter) Option {
	return func(s *Server) { s.filter = f }
}

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithConservativeDays sets the length of the conservative period started
// for an upgraded machine.
func WithConservativeDays(days int) Option {
	return func(s *Server) { s.conservativeDays = days }
}

// New creates a new Server with the given database and version string.
// Routes whose subsystem was not supplied answer 503.
func New(db *store.DB, version string, opts ...Option) *Server {
	s := &Server{
		db:      db,
		version: version,
		log:     zerolog.Nop(),
		now:     time.Now,

		conservativeDays: 7,
	}
	for _, o := range opts {
		o(s)
	}
	s.started = s.now()
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(s.require("engine", func() bool { return s.engine != nil }))
			r.Get("/strategies", s.handleListStrategies)
			r.Get("/strategies/{appID}", s.handleGetStrategy)
			r.Put("/strategies/{appID}/preference", s.handleSetPreference)
			r.Post("/refresh/{layer}", s.handleRefresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require("selector", func() bool { return s.selector != nil }))
			r.Post("/select", s.handleSelect)
			r.Post("/levels", s.handleLevels)
			r.Post("/compatibility", s.handleCompatibility)
		})

		r.Put("/conservative-period", s.handleStartConservativePeriod)

		r.Group(func(r chi.Router) {
			r.Use(s.require("filter", func() bool { return s.filter != nil }))
			r.Post("/records", s.handleSubmitRecord)
		})
		r.Get("/records", s.handleListRecords)
	})

	s.router = r
}

// require answers 503 when a subsystem is not configured.
func (s *Server) require(name string, ok func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ok() {
				writeError(w, http.StatusServiceUnavailable, name+" not configured")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  s.now().Sub(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
