package api

import (
	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeInvalidSeed   = "invalid_seed"
	ErrTypeInvalidNonce  = "invalid_nonce"
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"

	// Breeding errors
	ErrTypeTraitNotFound    = "trait_not_found"
	ErrTypeInvalidPredicate = "invalid_predicate"
	ErrTypeRunNotFound      = "run_not_found"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryBreed      ErrorCategory = "breed"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidSeed, ErrTypeInvalidNonce, ErrTypeInvalidParams, ErrTypeValidation:
		return CategoryValidation
	case ErrTypeTraitNotFound, ErrTypeInvalidPredicate, ErrTypeRunNotFound:
		return CategoryBreed
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// TraitsResponse lists the scannable traits
type TraitsResponse struct {
	Traits        []breed.TraitSpec `json:"traits"`
	EngineVersion string            `json:"engine_version"`
}

// PairRequest lays out two parent segments
type PairRequest struct {
	BreedType genetic.BreedType `json:"breed_type"`
	Parent1   genetic.Segment   `json:"parent1"`
	Parent2   genetic.Segment   `json:"parent2"`
}

// PairResponse carries the combined genome
type PairResponse struct {
	Genome        genetic.Genome `json:"genome"`
	EngineVersion string         `json:"engine_version"`
	Echo          PairRequest    `json:"echo"`
}

// BreedRequest runs one breeding event. Either Entropy is given directly or
// it is derived from Seeds and Nonce.
type BreedRequest struct {
	BreedType *genetic.BreedType `json:"breed_type,omitempty"` // nil picks nonce % 4
	Parent1   breed.Parent       `json:"parent1"`
	Parent2   breed.Parent       `json:"parent2"`
	Entropy   *genetic.Entropy   `json:"entropy,omitempty"`
	Seeds     *engine.Seeds      `json:"seeds,omitempty"`
	Nonce     uint64             `json:"nonce"`
	Scheme    engine.Scheme      `json:"scheme,omitempty"`
}

// BreedResponse carries the offspring and every trait measured on it
type BreedResponse struct {
	Offspring     breed.Offspring    `json:"offspring"`
	Entropy       genetic.Entropy    `json:"entropy"`
	Traits        map[string]float64 `json:"traits"`
	EngineVersion string             `json:"engine_version"`
}

// GenesisRequest derives a first-generation segment from seeds
type GenesisRequest struct {
	Seeds  engine.Seeds  `json:"seeds"`
	Nonce  uint64        `json:"nonce"`
	Scheme engine.Scheme `json:"scheme,omitempty"`
}

// GenesisResponse carries a derived segment
type GenesisResponse struct {
	DNA           genetic.Segment `json:"dna"`
	Nonce         uint64          `json:"nonce"`
	Scheme        engine.Scheme   `json:"scheme"`
	EngineVersion string          `json:"engine_version"`
}

// ScanResponse represents the complete scan response
type ScanResponse struct {
	Hits          []scan.Hit       `json:"hits"`
	Summary       scan.Summary     `json:"summary"`
	RunID         string           `json:"run_id,omitempty"`
	EngineVersion string           `json:"engine_version"`
	Echo          scan.ScanRequest `json:"echo"`
}

// StreakResponse represents a streak scan response
type StreakResponse struct {
	scan.StreakResult
	EngineVersion string `json:"engine_version"`
}

// SeedHashRequest represents a seed hashing request
type SeedHashRequest struct {
	ServerSeed string `json:"server_seed"`
}

// SeedHashResponse represents a seed hashing response
type SeedHashResponse struct {
	Hash          string `json:"hash"`
	EngineVersion string `json:"engine_version"`
}
