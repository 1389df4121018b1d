package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemoryTotal   uint64 `json:"memory_total_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// handleHealthCheck provides comprehensive health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	start := time.Now()

	checks := map[string]HealthCheck{
		"traits":   s.checkTraitsHealth(),
		"database": s.checkDatabaseHealth(r.Context()),
		"scanner":  s.checkScannerHealth(),
	}

	overallStatus := HealthStatusHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthStatusUnhealthy:
			overallStatus = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		}
	}

	response := HealthCheckResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        s.Uptime().String(),
		Checks:        checks,
		System:        s.getSystemInfo(),
		RequestID:     requestID,
	}

	statusCode := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.securityLogger.LogAuditEvent(
		requestID,
		"health_check",
		"system",
		string(overallStatus),
		map[string]any{
			"duration":    time.Since(start).String(),
			"checks":      len(checks),
			"status_code": statusCode,
		},
	)

	s.writeJSON(w, statusCode, response)
}

// handleReadiness provides readiness probe endpoint
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	ready := true
	message := "Ready"

	if len(breed.ListTraits()) == 0 {
		ready = false
		message = "No traits registered"
	}
	if db := s.checkDatabaseHealth(r.Context()); db.Status == HealthStatusUnhealthy {
		ready = false
		message = db.Message
	}

	response := map[string]any{
		"ready":          ready,
		"message":        message,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"request_id":     requestID,
	}

	statusCode := http.StatusOK
	outcome := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		outcome = "not_ready"
	}
	s.securityLogger.LogAuditEvent(requestID, "readiness_check", "system", outcome, map[string]any{
		"message": message,
	})

	s.writeJSON(w, statusCode, response)
}

// handleLiveness provides liveness probe endpoint
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"uptime":         s.Uptime().String(),
		"request_id":     middleware.GetReqID(r.Context()),
	})
}

func (s *Server) checkTraitsHealth() HealthCheck {
	start := time.Now()

	specs := breed.ListTraits()
	status := HealthStatusHealthy
	message := fmt.Sprintf("%d traits available", len(specs))
	if len(specs) == 0 {
		status = HealthStatusUnhealthy
		message = "No traits registered"
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

// checkDatabaseHealth pings the store. A disabled store is degraded, not
// unhealthy, since breeding and scanning still work without it.
func (s *Server) checkDatabaseHealth(ctx context.Context) HealthCheck {
	start := time.Now()

	status := HealthStatusHealthy
	message := "Database connection healthy"

	if s.db == nil {
		status = HealthStatusDegraded
		message = "Database disabled"
	} else {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			status = HealthStatusUnhealthy
			message = fmt.Sprintf("Database ping failed: %v", err)
		}
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func (s *Server) checkScannerHealth() HealthCheck {
	status := HealthStatusHealthy
	message := fmt.Sprintf("Scanner healthy with %d workers", s.scanner.Workers())

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
}

// getSystemInfo collects system information
func (s *Server) getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		MemoryAlloc:   m.Alloc,
		MemoryTotal:   m.TotalAlloc,
		MemorySys:     m.Sys,
		GCCycles:      m.NumGC,
	}
}
