package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
	"github.com/MJE43/mogwai-breed-go/internal/store"
	"github.com/MJE43/mogwai-breed-go/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body, rejecting unknown fields. On failure it has
// already written the error response.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "Invalid JSON format: "+err.Error())
		return false
	}
	return true
}

// rejectInvalid writes a validation error when err is non-nil.
func (s *Server) rejectInvalid(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	s.errorHandler.HandleFieldError(w, r, asFieldError(err))
	return true
}

func (s *Server) scheme(requested engine.Scheme) engine.Scheme {
	if requested == "" {
		return s.opts.Scheme
	}
	return requested
}

// timeoutMs fills in the default scan timeout and caps it at the server's.
func (s *Server) timeoutMs(requested int) int {
	ceiling := int(s.opts.ScanTimeout / time.Millisecond)
	if requested == 0 || requested > ceiling {
		return ceiling
	}
	return requested
}

// handleListTraits returns the scannable traits
func (s *Server) handleListTraits(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, TraitsResponse{
		Traits:        breed.ListTraits(),
		EngineVersion: EngineVersion,
	})
}

// handleVersion returns build information
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

// handlePair lays out two parent segments without crossing them
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req PairRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.rejectInvalid(w, r, ValidatePairRequest(&req)) {
		return
	}

	s.writeJSON(w, http.StatusOK, PairResponse{
		Genome:        genetic.Pair(req.BreedType, req.Parent1, req.Parent2),
		EngineVersion: EngineVersion,
		Echo:          req,
	})
}

// handleBreed runs a single breeding event
func (s *Server) handleBreed(w http.ResponseWriter, r *http.Request) {
	var req BreedRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.rejectInvalid(w, r, ValidateBreedRequest(&req)) {
		return
	}

	var entropy genetic.Entropy
	if req.Entropy != nil {
		entropy = *req.Entropy
	} else {
		req.Scheme = s.scheme(req.Scheme)
		entropy = engine.Entropy(req.Scheme, *req.Seeds, req.Nonce)
	}

	bt := genetic.BreedTypeForNonce(req.Nonce)
	if req.BreedType != nil {
		bt = *req.BreedType
	}

	offspring := breed.Breed(bt, req.Parent1, req.Parent2, entropy)
	s.metrics.ObserveBreed(bt)
	s.securityLogger.LogBreedOperation(middleware.GetReqID(r.Context()), req.Seeds, req.Nonce, bt, offspring.Generation)

	s.writeJSON(w, http.StatusOK, BreedResponse{
		Offspring:     offspring,
		Entropy:       entropy,
		Traits:        breed.MeasureAll(offspring),
		EngineVersion: EngineVersion,
	})
}

// handleGenesis derives a parentless gene buffer from seeds
func (s *Server) handleGenesis(w http.ResponseWriter, r *http.Request) {
	var req GenesisRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.rejectInvalid(w, r, ValidateGenesisRequest(&req)) {
		return
	}
	scheme := s.scheme(req.Scheme)

	s.writeJSON(w, http.StatusOK, GenesisResponse{
		DNA:           engine.GenesisSegment(scheme, req.Seeds, req.Nonce),
		Nonce:         req.Nonce,
		Scheme:        scheme,
		EngineVersion: EngineVersion,
	})
}

// handleScan processes scan requests with full validation and error handling
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scan.ScanRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.rejectInvalid(w, r, ValidateScanRequest(&req, s.opts.MaxNonceRange)) {
		return
	}
	req.Scheme = s.scheme(req.Scheme)
	req.TimeoutMs = s.timeoutMs(req.TimeoutMs)

	requestID := middleware.GetReqID(r.Context())
	s.securityLogger.LogScanOperation(requestID, "scan", req.Criteria, req.Limit, req.TimeoutMs)

	start := time.Now()
	result, err := s.scanner.Scan(r.Context(), req)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, scan.ErrTimeout) {
			s.metrics.ObserveScan(req.Trait, telemetry.OutcomeTimeout, duration, 0, 0)
			s.errorHandler.HandleTimeoutError(w, r, "scan", req.TimeoutMs)
			return
		}
		s.metrics.ObserveScan(req.Trait, telemetry.OutcomeError, duration, 0, 0)
		s.errorHandler.HandleError(w, r, err)
		return
	}

	outcome := telemetry.OutcomeOK
	if result.Summary.TimedOut {
		outcome = telemetry.OutcomeTimeout
	}
	s.metrics.ObserveScan(req.Trait, outcome, duration, result.Summary.TotalEvaluated, result.Summary.HitsFound)
	s.securityLogger.LogPerformanceMetrics(requestID, "scan", duration, result.Summary.TotalEvaluated, true)

	response := ScanResponse{
		Hits:          result.Hits,
		Summary:       result.Summary,
		EngineVersion: EngineVersion,
		Echo:          req,
	}
	if response.Hits == nil {
		response.Hits = []scan.Hit{}
	}
	response.RunID = s.persistScan(requestID, result)

	s.writeJSON(w, http.StatusOK, response)
}

// persistScan stores a finished scan and returns its run ID. A store failure
// is logged and leaves the scan response intact.
func (s *Server) persistScan(requestID string, result *scan.ScanResult) string {
	if s.db == nil {
		return ""
	}
	run := store.RunFromScan(result, EngineVersion)
	if err := s.db.SaveRun(run); err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Msg("persist scan run")
		return ""
	}
	if err := s.db.SaveHits(run.ID, store.HitsFromScan(result.Hits)); err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Str("run_id", run.ID).Msg("persist scan hits")
		return ""
	}
	return run.ID
}

// handleStreaks finds runs of consecutive hits
func (s *Server) handleStreaks(w http.ResponseWriter, r *http.Request) {
	var req scan.StreakRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.rejectInvalid(w, r, ValidateStreakRequest(&req, s.opts.MaxNonceRange)) {
		return
	}
	req.Scheme = s.scheme(req.Scheme)

	requestID := middleware.GetReqID(r.Context())
	s.securityLogger.LogScanOperation(requestID, "streak", req.Criteria, req.TopN, 0)

	start := time.Now()
	result, err := s.streaks.Scan(r.Context(), req)
	duration := time.Since(start)
	if err != nil {
		s.metrics.ObserveScan(req.Trait, telemetry.OutcomeError, duration, 0, 0)
		s.errorHandler.HandleError(w, r, err)
		return
	}
	outcome := telemetry.OutcomeOK
	if result.Cancelled {
		outcome = telemetry.OutcomeTimeout
	}
	s.metrics.ObserveScan(req.Trait, outcome, duration, result.TotalEvaluated, result.TotalFound)

	s.writeJSON(w, http.StatusOK, StreakResponse{
		StreakResult:  *result,
		EngineVersion: EngineVersion,
	})
}

// handleSeedHash returns SHA256 hash of server seed with security logging
func (s *Server) handleSeedHash(w http.ResponseWriter, r *http.Request) {
	var req SeedHashRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.rejectInvalid(w, r, ValidateSeedHashRequest(&req)) {
		return
	}

	hash := engine.HashSeed(req.ServerSeed)
	s.securityLogger.LogSeedHashOperation(middleware.GetReqID(r.Context()), req.ServerSeed, hash)

	s.writeJSON(w, http.StatusOK, SeedHashResponse{
		Hash:          hash,
		EngineVersion: EngineVersion,
	})
}

// requireStore reports the run history as unavailable when persistence is off.
func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.db == nil {
		s.errorHandler.HandleUnavailable(w, r, "run history")
		return false
	}
	return true
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fieldErr(key, "%s must be a positive integer", key)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// handleListRuns lists stored runs newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	page, err := queryInt(r, "page", 1, math.MaxInt)
	if s.rejectInvalid(w, r, err) {
		return
	}
	perPage, err := queryInt(r, "per_page", defaultRunsPerPage, maxRunsPerPage)
	if s.rejectInvalid(w, r, err) {
		return
	}

	q := r.URL.Query()
	list, err := s.db.ListRuns(store.RunsQuery{
		Trait:          q.Get("trait"),
		ServerSeedHash: q.Get("server_seed_hash"),
		ClientSeed:     q.Get("client_seed"),
		Page:           page,
		PerPage:        perPage,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// handleGetRun returns one stored run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	run, err := s.db.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleGetRunHits pages through a run's hits with nonce deltas
func (s *Server) handleGetRunHits(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.db.GetRun(id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1, math.MaxInt)
	if s.rejectInvalid(w, r, err) {
		return
	}
	perPage, err := queryInt(r, "per_page", defaultHitsPerPage, maxHitsPerPage)
	if s.rejectInvalid(w, r, err) {
		return
	}

	hits, err := s.db.GetRunHits(id, page, perPage)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hits)
}
