package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// DB represents the database interface
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate() error
	SaveRun(run *Run) error
	UpdateRun(run *Run) error
	SaveHits(runID string, hits []Hit) error
	GetRun(id string) (*Run, error)
	GetHits(runID string, limit, offset int) ([]Hit, error)
	ListRuns(query RunsQuery) (*RunsList, error)
	GetRunHits(runID string, page, perPage int) (*HitsPage, error)
}

// RunsQuery represents query parameters for listing runs
type RunsQuery struct {
	Trait          string `json:"trait,omitempty"`
	ServerSeedHash string `json:"server_seed_hash,omitempty"`
	ClientSeed     string `json:"client_seed,omitempty"`
	Page           int    `json:"page"`
	PerPage        int    `json:"perPage"`
}

// RunsList represents paginated runs response
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// HitsPage represents paginated hits response with delta nonce calculation
type HitsPage struct {
	Hits       []HitWithDelta `json:"hits"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalPages int            `json:"totalPages"`
}

// Run represents a persisted breeding scan. Only the server seed hash is
// kept; the raw server seed never reaches the database.
type Run struct {
	ID                string    `json:"id" db:"id"`
	Trait             string    `json:"trait" db:"trait"`
	BreedType         string    `json:"breed_type" db:"breed_type"` // empty when chosen per nonce
	Scheme            string    `json:"scheme" db:"scheme"`
	ServerSeedHash    string    `json:"server_seed_hash" db:"server_seed_hash"`
	ClientSeed        string    `json:"client_seed" db:"client_seed"`
	Parent1DNA        string    `json:"parent1_dna" db:"parent1_dna"`
	Parent1Generation int       `json:"parent1_generation" db:"parent1_generation"`
	Parent1Rarity     string    `json:"parent1_rarity" db:"parent1_rarity"`
	Parent2DNA        string    `json:"parent2_dna" db:"parent2_dna"`
	Parent2Generation int       `json:"parent2_generation" db:"parent2_generation"`
	Parent2Rarity     string    `json:"parent2_rarity" db:"parent2_rarity"`
	NonceStart        uint64    `json:"nonce_start" db:"nonce_start"`
	NonceEnd          uint64    `json:"nonce_end" db:"nonce_end"`
	TargetOp          string    `json:"target_op" db:"target_op"`
	TargetVal         float64   `json:"target_val" db:"target_val"`
	TargetVal2        float64   `json:"target_val2" db:"target_val2"`
	Tolerance         float64   `json:"tolerance" db:"tolerance"`
	Predicate         string    `json:"predicate,omitempty" db:"predicate"`
	HitLimit          int       `json:"hit_limit" db:"hit_limit"`
	TimedOut          bool      `json:"timed_out" db:"timed_out"`
	HitCount          int       `json:"hit_count" db:"hit_count"`
	TotalEvaluated    uint64    `json:"total_evaluated" db:"total_evaluated"`
	SummaryMin        *float64  `json:"summary_min" db:"summary_min"`
	SummaryMax        *float64  `json:"summary_max" db:"summary_max"`
	SummarySum        *float64  `json:"summary_sum" db:"summary_sum"`
	SummaryCount      int       `json:"summary_count" db:"summary_count"`
	EngineVersion     string    `json:"engine_version" db:"engine_version"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Hit represents one matching offspring of a run
type Hit struct {
	ID         int64   `json:"id" db:"id"`
	RunID      string  `json:"run_id" db:"run_id"`
	Nonce      uint64  `json:"nonce" db:"nonce"`
	Metric     float64 `json:"metric" db:"metric"`
	BreedType  string  `json:"breed_type" db:"breed_type"`
	DNA        string  `json:"dna" db:"dna"`
	Evolution  string  `json:"evolution" db:"evolution"`
	Generation int     `json:"generation" db:"generation"`
	Rarity     string  `json:"rarity" db:"rarity"`
}

// HitWithDelta represents a hit with calculated delta nonce
type HitWithDelta struct {
	Hit
	DeltaNonce *uint64 `json:"delta_nonce,omitempty"`
}
