package api

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
)

// SecurityLogger handles security-conscious logging with no raw seed exposure
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger tagged as its own component.
func NewSecurityLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "security").Str("engine_version", EngineVersion).Logger(),
	}
}

// LogScanOperation logs a scan request with seeds reduced to short hashes.
func (sl *SecurityLogger) LogScanOperation(requestID, mode string, c scan.Criteria, limit, timeoutMs int) {
	ev := sl.logger.Info().
		Str("request_id", requestID).
		Str("mode", mode).
		Str("trait", c.Trait).
		Str("server_hash", hashSeed(c.Seeds.Server)).
		Str("client_hash", hashSeed(c.Seeds.Client)).
		Uint64("nonce_start", c.NonceStart).
		Uint64("nonce_end", c.NonceEnd).
		Str("target_op", string(c.TargetOp)).
		Float64("target_val", c.TargetVal).
		Bool("predicate", c.Predicate != "").
		Int("limit", limit).
		Int("timeout_ms", timeoutMs)
	if c.BreedType != nil {
		ev = ev.Stringer("breed_type", *c.BreedType)
	}
	ev.Msg("scan_operation")
}

// LogBreedOperation logs a single breeding event.
func (sl *SecurityLogger) LogBreedOperation(requestID string, seeds *engine.Seeds, nonce uint64, breedType genetic.BreedType, generation int) {
	ev := sl.logger.Info().
		Str("request_id", requestID).
		Stringer("breed_type", breedType).
		Int("generation", generation)
	if seeds != nil {
		ev = ev.Str("server_hash", hashSeed(seeds.Server)).
			Str("client_hash", hashSeed(seeds.Client)).
			Uint64("nonce", nonce)
	}
	ev.Msg("breed_operation")
}

// LogSeedHashOperation logs seed hashing operations (only the hash, never the raw seed)
func (sl *SecurityLogger) LogSeedHashOperation(requestID, serverSeed, resultHash string) {
	sl.logger.Info().
		Str("request_id", requestID).
		Str("input_hash", hashSeed(serverSeed)).
		Str("result_hash", resultHash).
		Msg("seed_hash_operation")
}

// LogSecurityEvent logs security-related events (failed validations, suspicious activity)
func (sl *SecurityLogger) LogSecurityEvent(requestID, eventType, description string, context map[string]any, remoteAddr string) {
	sl.logger.Warn().
		Str("request_id", requestID).
		Str("type", eventType).
		Str("description", description).
		Fields(sanitizeContext(context)).
		Str("remote_addr", remoteAddr).
		Msg("security_event")
}

// LogPerformanceMetrics logs performance-related metrics for monitoring
func (sl *SecurityLogger) LogPerformanceMetrics(requestID, operation string, duration time.Duration, itemsProcessed uint64, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	sl.logger.Info().
		Str("request_id", requestID).
		Str("operation", operation).
		Dur("duration", duration).
		Uint64("items_processed", itemsProcessed).
		Str("status", status).
		Msg("performance_metrics")
}

// LogAuditEvent logs audit events for compliance and debugging
func (sl *SecurityLogger) LogAuditEvent(requestID, action, resource, outcome string, details map[string]any) {
	sl.logger.Debug().
		Str("request_id", requestID).
		Str("action", action).
		Str("resource", resource).
		Str("outcome", outcome).
		Fields(sanitizeContext(details)).
		Msg("audit_event")
}

// LogSystemStartup logs system startup information
func (sl *SecurityLogger) LogSystemStartup(addr string, config map[string]any) {
	sl.logger.Info().
		Str("addr", addr).
		Fields(sanitizeContext(config)).
		Str("git_commit", GitCommit).
		Str("build_time", BuildTime).
		Msg("system_startup")
}

// LogSystemShutdown logs system shutdown information
func (sl *SecurityLogger) LogSystemShutdown(reason string, uptime time.Duration) {
	sl.logger.Info().
		Str("reason", reason).
		Dur("uptime", uptime).
		Msg("system_shutdown")
}

// hashSeed returns the first 16 hex chars of the seed's SHA-256.
func hashSeed(seed string) string {
	if seed == "" {
		return "empty"
	}
	return engine.HashSeed(seed)[:16]
}

// sanitizeContext removes sensitive data from context maps
func sanitizeContext(context map[string]any) map[string]any {
	sanitized := make(map[string]any, len(context))
	for key, value := range context {
		switch key {
		case "server_seed", "serverSeed", "server", "client_seed", "clientSeed", "client":
			if strVal, ok := value.(string); ok {
				sanitized[key+"_hash"] = hashSeed(strVal)
			} else {
				sanitized[key+"_hash"] = fmt.Sprintf("non_string_value_%T", value)
			}
		case "private_key", "secret", "password", "token", "api_key", "authorization":
			sanitized[key] = "[REDACTED]"
		case "seeds":
			switch seeds := value.(type) {
			case engine.Seeds:
				sanitized["server_seed_hash"] = hashSeed(seeds.Server)
				sanitized["client_seed_hash"] = hashSeed(seeds.Client)
			case *engine.Seeds:
				if seeds != nil {
					sanitized["server_seed_hash"] = hashSeed(seeds.Server)
					sanitized["client_seed_hash"] = hashSeed(seeds.Client)
				}
			default:
				sanitized[key] = "[SEEDS_OBJECT]"
			}
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}
