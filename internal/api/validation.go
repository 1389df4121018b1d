package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
)

const (
	defaultMaxNonceRange = 10_000_000
	maxLimit             = 100_000
	maxTimeoutMs         = 300_000 // 5 minutes
	defaultRunsPerPage   = 50
	maxRunsPerPage       = 100
	defaultHitsPerPage   = 100
	maxHitsPerPage       = 500
)

var validOps = []scan.TargetOp{
	scan.OpEqual, scan.OpGreater, scan.OpGreaterEqual, scan.OpLess,
	scan.OpLessEqual, scan.OpBetween, scan.OpOutside,
}

// FieldError names the request field that failed validation.
type FieldError struct {
	Type    string
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

func fieldErr(field, format string, args ...any) error {
	return typedFieldErr(ErrTypeValidation, field, format, args...)
}

func typedFieldErr(errType, field, format string, args ...any) error {
	return &FieldError{Type: errType, Field: field, Message: fmt.Sprintf(format, args...)}
}

// validateSeeds checks that both halves of a seed pair are present.
func validateSeeds(seeds engine.Seeds) error {
	if seeds.Server == "" {
		return fieldErr("seeds.server", "server seed is required")
	}
	if seeds.Client == "" {
		return fieldErr("seeds.client", "client seed is required")
	}
	return nil
}

func validateScheme(s engine.Scheme) error {
	if _, err := engine.ParseScheme(string(s)); err != nil {
		return typedFieldErr(ErrTypeInvalidParams, "scheme", "%v", err)
	}
	return nil
}

// ValidateCriteria validates the fields shared by every scan mode.
func ValidateCriteria(c *scan.Criteria, maxNonceRange uint64) error {
	if c.Trait == "" {
		return fieldErr("trait", "trait is required")
	}
	if _, ok := breed.GetTrait(c.Trait); !ok {
		return typedFieldErr(ErrTypeTraitNotFound, "trait", "trait '%s' not found", c.Trait)
	}
	if err := validateSeeds(c.Seeds); err != nil {
		return err
	}
	if err := validateScheme(c.Scheme); err != nil {
		return err
	}
	if c.BreedType != nil && !c.BreedType.Valid() {
		return fieldErr("breed_type", "breed_type %d out of range", uint8(*c.BreedType))
	}

	if c.NonceEnd < c.NonceStart {
		return typedFieldErr(ErrTypeInvalidNonce, "nonce_end", "nonce_end (%d) must be >= nonce_start (%d)", c.NonceEnd, c.NonceStart)
	}
	if c.NonceEnd-c.NonceStart >= maxNonceRange {
		return typedFieldErr(ErrTypeInvalidNonce, "nonce_end", "nonce range too large (max %d nonces)", maxNonceRange)
	}

	if c.TargetOp == "" {
		return fieldErr("target_op", "target_op is required")
	}
	if !c.TargetOp.Valid() {
		names := make([]string, len(validOps))
		for i, op := range validOps {
			names[i] = string(op)
		}
		return fieldErr("target_op", "target_op must be one of: %s", strings.Join(names, ", "))
	}
	if c.TargetOp == scan.OpBetween || c.TargetOp == scan.OpOutside {
		if c.TargetVal > c.TargetVal2 {
			return fieldErr("target_val2", "target_val must be <= target_val2 for '%s' operation", c.TargetOp)
		}
	}
	if c.Tolerance < 0 {
		return fieldErr("tolerance", "tolerance must be >= 0")
	}
	return nil
}

// ValidateScanRequest validates a scan request and returns any validation errors
func ValidateScanRequest(req *scan.ScanRequest, maxNonceRange uint64) error {
	if err := ValidateCriteria(&req.Criteria, maxNonceRange); err != nil {
		return err
	}
	if req.Limit < 0 {
		return fieldErr("limit", "limit must be >= 0")
	}
	if req.Limit > maxLimit {
		return fieldErr("limit", "limit too large (max %d)", maxLimit)
	}
	if req.TimeoutMs < 0 {
		return fieldErr("timeout_ms", "timeout_ms must be >= 0")
	}
	if req.TimeoutMs > maxTimeoutMs {
		return fieldErr("timeout_ms", "timeout_ms too large (max %d ms)", maxTimeoutMs)
	}
	return nil
}

// ValidateStreakRequest validates a streak scan request
func ValidateStreakRequest(req *scan.StreakRequest, maxNonceRange uint64) error {
	if err := ValidateCriteria(&req.Criteria, maxNonceRange); err != nil {
		return err
	}
	if req.MinLength < 0 {
		return fieldErr("min_length", "min_length must be >= 0")
	}
	if req.TopN < 0 {
		return fieldErr("top_n", "top_n must be >= 0")
	}
	return nil
}

// ValidateBreedRequest validates a breed request
func ValidateBreedRequest(req *BreedRequest) error {
	if req.BreedType != nil && !req.BreedType.Valid() {
		return fieldErr("breed_type", "breed_type %d out of range", uint8(*req.BreedType))
	}
	switch {
	case req.Entropy != nil && req.Seeds != nil:
		return fieldErr("entropy", "give either entropy or seeds, not both")
	case req.Entropy != nil:
	case req.Seeds != nil:
		if err := validateSeeds(*req.Seeds); err != nil {
			return err
		}
		if err := validateScheme(req.Scheme); err != nil {
			return err
		}
	default:
		return fieldErr("entropy", "entropy or seeds is required")
	}
	return nil
}

// ValidateGenesisRequest validates a genesis request
func ValidateGenesisRequest(req *GenesisRequest) error {
	if err := validateSeeds(req.Seeds); err != nil {
		return err
	}
	return validateScheme(req.Scheme)
}

// ValidatePairRequest validates a pair request
func ValidatePairRequest(req *PairRequest) error {
	if !req.BreedType.Valid() {
		return fieldErr("breed_type", "breed_type %d out of range", uint8(req.BreedType))
	}
	return nil
}

// ValidateSeedHashRequest validates a seed hash request
func ValidateSeedHashRequest(req *SeedHashRequest) error {
	if req.ServerSeed == "" {
		return fieldErr("server_seed", "server_seed is required")
	}
	return nil
}

// asFieldError converts any validation failure to a FieldError.
func asFieldError(err error) *FieldError {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe
	}
	return &FieldError{Type: ErrTypeValidation, Message: err.Error()}
}
