// Package server provides the read-only HTTP API for pivotscope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/patterns"
	"github.com/aristath/pivotscope/internal/modules/snapshots"
	"github.com/aristath/pivotscope/internal/modules/universe"
	"github.com/aristath/pivotscope/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	UniverseDB *database.DB
	HistoryDB  *database.DB
	AnalysisDB *database.DB
	Port       int
	DevMode    bool
	DataDir    string

	SecurityRepo   *universe.SecurityRepository
	BreakpointRepo *universe.BreakpointRepository
	PriceRepo      *history.PriceRepository
	SubpatternRepo *patterns.SubpatternRepository
	PredictionRepo *patterns.PredictionRepository
	SnapshotRepo   *snapshots.Repository
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	handlers       *Handlers
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		handlers: NewHandlers(
			cfg.SecurityRepo,
			cfg.BreakpointRepo,
			cfg.PriceRepo,
			cfg.SubpatternRepo,
			cfg.PredictionRepo,
			cfg.SnapshotRepo,
			cfg.Log,
		),
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.DataDir,
			cfg.UniverseDB,
			cfg.HistoryDB,
			cfg.AnalysisDB,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers job instances for manual triggering via the API
func (s *Server) SetJobs(sched *scheduler.Scheduler, jobs ...scheduler.Job) {
	s.systemHandlers.SetJobs(sched, jobs...)
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/securities", func(r chi.Router) {
			r.Get("/", s.handlers.HandleListSecurities)
			r.Get("/{symbol}", s.handlers.HandleGetSecurity)
			r.Get("/{symbol}/breakpoints", s.handlers.HandleGetBreakpoints)
			r.Get("/{symbol}/prices", s.handlers.HandleGetPrices)
			r.Get("/{symbol}/snapshots", s.handlers.HandleGetSnapshots)
		})

		r.Route("/predictions", func(r chi.Router) {
			r.Get("/", s.handlers.HandleListPredictions)
			r.Get("/{symbol}", s.handlers.HandleGetPrediction)
		})

		r.Get("/subpatterns", s.handlers.HandleListSubpatterns)
		r.Get("/snapshots/{month}", s.handlers.HandleGetMonthSnapshots)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
			r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
