// Package api serves the breeding engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
	"github.com/MJE43/mogwai-breed-go/internal/store"
	"github.com/MJE43/mogwai-breed-go/internal/telemetry"
)

// Options tunes request handling.
type Options struct {
	Scheme        engine.Scheme // default entropy scheme when a request names none
	ScanTimeout   time.Duration // default and ceiling for scan timeouts
	MaxNonceRange uint64
	Workers       int // 0 = GOMAXPROCS
}

func (o Options) withDefaults() Options {
	if o.Scheme == "" {
		o.Scheme = engine.SchemeHMAC
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = 60 * time.Second
	}
	if o.MaxNonceRange == 0 {
		o.MaxNonceRange = defaultMaxNonceRange
	}
	return o
}

// Server handles HTTP requests
type Server struct {
	db             store.DB // nil when persistence is disabled
	scanner        *scan.Scanner
	streaks        *scan.StreakScanner
	metrics        *telemetry.Metrics
	errorHandler   *ErrorHandler
	logger         zerolog.Logger
	securityLogger *SecurityLogger
	opts           Options
	startTime      time.Time
}

// NewServer creates a new API server. A nil db disables the run history
// endpoints and scan persistence.
func NewServer(db store.DB, logger zerolog.Logger, metrics *telemetry.Metrics, opts Options) *Server {
	opts = opts.withDefaults()
	if metrics == nil {
		metrics = telemetry.New()
	}
	logger = logger.With().Str("component", "api").Logger()
	securityLogger := NewSecurityLogger(logger)

	scanner := scan.NewScanner()
	if opts.Workers > 0 {
		scanner = scan.NewScannerWithWorkers(opts.Workers)
	}

	server := &Server{
		db:             db,
		scanner:        scanner,
		streaks:        scan.NewStreakScanner(),
		metrics:        metrics,
		errorHandler:   NewErrorHandler(logger, securityLogger),
		logger:         logger,
		securityLogger: securityLogger,
		opts:           opts,
		startTime:      time.Now(),
	}

	securityLogger.LogSystemStartup("", map[string]any{
		"traits_available": len(breed.ListTraits()),
		"scan_workers":     scanner.Workers(),
		"database_enabled": db != nil,
		"entropy_scheme":   string(opts.Scheme),
	})

	return server
}

// Uptime reports how long the server has existed.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// SecurityLogger returns the logger used for audit and startup events.
func (s *Server) SecurityLogger() *SecurityLogger {
	return s.securityLogger
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.opts.ScanTimeout + 10*time.Second))
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/traits", s.handleListTraits)
		r.Get("/version", s.handleVersion)
		r.Post("/pair", s.handlePair)
		r.Post("/breed", s.handleBreed)
		r.Post("/genesis", s.handleGenesis)
		r.Post("/scan", s.handleScan)
		r.Post("/scan/streaks", s.handleStreaks)
		r.Post("/seed/hash", s.handleSeedHash)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/hits", s.handleGetRunHits)
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}
