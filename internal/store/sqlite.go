package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping checks the connection is usable.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *SQLiteDB) Migrate() error {
	baseMigrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			trait TEXT NOT NULL,
			breed_type TEXT NOT NULL DEFAULT '',
			scheme TEXT NOT NULL,
			server_seed_hash TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			parent1_dna TEXT NOT NULL,
			parent1_generation INTEGER NOT NULL,
			parent1_rarity TEXT NOT NULL,
			parent2_dna TEXT NOT NULL,
			parent2_generation INTEGER NOT NULL,
			parent2_rarity TEXT NOT NULL,
			nonce_start INTEGER NOT NULL,
			nonce_end INTEGER NOT NULL,
			target_op TEXT NOT NULL,
			target_val REAL NOT NULL,
			target_val2 REAL NOT NULL DEFAULT 0,
			tolerance REAL NOT NULL DEFAULT 0,
			hit_limit INTEGER NOT NULL DEFAULT 0,
			timed_out INTEGER NOT NULL DEFAULT 0,
			hit_count INTEGER NOT NULL DEFAULT 0,
			total_evaluated INTEGER NOT NULL DEFAULT 0,
			summary_min REAL,
			summary_max REAL,
			summary_sum REAL,
			summary_count INTEGER NOT NULL DEFAULT 0,
			engine_version TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS hits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			metric REAL NOT NULL,
			breed_type TEXT NOT NULL,
			dna TEXT NOT NULL,
			evolution TEXT NOT NULL,
			generation INTEGER NOT NULL,
			rarity TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
	}

	for _, migration := range baseMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("base migration failed: %w", err)
		}
	}

	// Columns added after the first schema
	alterMigrations := []string{
		`ALTER TABLE runs ADD COLUMN predicate TEXT NOT NULL DEFAULT ''`,
	}

	for _, migration := range alterMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			if !isDuplicateColumnError(err) {
				return fmt.Errorf("alter migration failed: %w", err)
			}
		}
	}

	indexMigrations := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_trait_created ON runs(trait, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(server_seed_hash, client_seed)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_run_nonce ON hits(run_id, nonce)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_run_metric ON hits(run_id, metric)`,
	}

	for _, migration := range indexMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("index migration failed: %w", err)
		}
	}

	return nil
}

// isDuplicateColumnError reports whether an ALTER failed because the column
// already exists, which happens on every migration after the first.
func isDuplicateColumnError(err error) bool {
	return strings.Contains(err.Error(), "duplicate column name")
}

const runColumns = `id, trait, breed_type, scheme, server_seed_hash, client_seed,
	parent1_dna, parent1_generation, parent1_rarity,
	parent2_dna, parent2_generation, parent2_rarity,
	nonce_start, nonce_end, target_op, target_val, target_val2, tolerance,
	predicate, hit_limit, timed_out, hit_count, total_evaluated,
	summary_min, summary_max, summary_sum, summary_count,
	engine_version, created_at`

// SaveRun saves a scan run to the database
func (s *SQLiteDB) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		run.ID, run.Trait, run.BreedType, run.Scheme, run.ServerSeedHash, run.ClientSeed,
		run.Parent1DNA, run.Parent1Generation, run.Parent1Rarity,
		run.Parent2DNA, run.Parent2Generation, run.Parent2Rarity,
		int64(run.NonceStart), int64(run.NonceEnd), run.TargetOp, run.TargetVal, run.TargetVal2, run.Tolerance,
		run.Predicate, run.HitLimit, boolToInt(run.TimedOut), run.HitCount, int64(run.TotalEvaluated),
		run.SummaryMin, run.SummaryMax, run.SummarySum, run.SummaryCount,
		run.EngineVersion, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// UpdateRun updates the outcome columns of an existing run
func (s *SQLiteDB) UpdateRun(run *Run) error {
	query := `UPDATE runs SET
		timed_out = ?, hit_count = ?, total_evaluated = ?,
		summary_min = ?, summary_max = ?, summary_sum = ?, summary_count = ?, engine_version = ?
		WHERE id = ?`

	res, err := s.db.Exec(query,
		boolToInt(run.TimedOut), run.HitCount, int64(run.TotalEvaluated),
		run.SummaryMin, run.SummaryMax, run.SummarySum, run.SummaryCount, run.EngineVersion,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// SaveHits saves multiple hits to the database
func (s *SQLiteDB) SaveHits(runID string, hits []Hit) error {
	if len(hits) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO hits
		(run_id, nonce, metric, breed_type, dna, evolution, generation, rarity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, hit := range hits {
		_, err := stmt.Exec(runID, int64(hit.Nonce), hit.Metric,
			hit.BreedType, hit.DNA, hit.Evolution, hit.Generation, hit.Rarity)
		if err != nil {
			return fmt.Errorf("failed to save hit %d: %w", hit.Nonce, err)
		}
	}

	return tx.Commit()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var nonceStart, nonceEnd, totalEvaluated int64
	var timedOutInt int
	var summaryMin, summaryMax, summarySum sql.NullFloat64

	err := row.Scan(
		&run.ID, &run.Trait, &run.BreedType, &run.Scheme, &run.ServerSeedHash, &run.ClientSeed,
		&run.Parent1DNA, &run.Parent1Generation, &run.Parent1Rarity,
		&run.Parent2DNA, &run.Parent2Generation, &run.Parent2Rarity,
		&nonceStart, &nonceEnd, &run.TargetOp, &run.TargetVal, &run.TargetVal2, &run.Tolerance,
		&run.Predicate, &run.HitLimit, &timedOutInt, &run.HitCount, &totalEvaluated,
		&summaryMin, &summaryMax, &summarySum, &run.SummaryCount,
		&run.EngineVersion, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.NonceStart = uint64(nonceStart)
	run.NonceEnd = uint64(nonceEnd)
	run.TotalEvaluated = uint64(totalEvaluated)
	run.TimedOut = timedOutInt == 1

	// Handle nullable fields
	if summaryMin.Valid {
		run.SummaryMin = &summaryMin.Float64
	}
	if summaryMax.Valid {
		run.SummaryMax = &summaryMax.Float64
	}
	if summarySum.Valid {
		run.SummarySum = &summarySum.Float64
	}

	return &run, nil
}

func scanHit(row rowScanner) (Hit, error) {
	var hit Hit
	var nonce int64
	err := row.Scan(&hit.ID, &hit.RunID, &nonce, &hit.Metric,
		&hit.BreedType, &hit.DNA, &hit.Evolution, &hit.Generation, &hit.Rarity)
	hit.Nonce = uint64(nonce)
	return hit, err
}

// GetRun retrieves a run by ID
func (s *SQLiteDB) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

const hitColumns = `id, run_id, nonce, metric, breed_type, dna, evolution, generation, rarity`

// GetHits retrieves hits for a run with pagination
func (s *SQLiteDB) GetHits(runID string, limit, offset int) ([]Hit, error) {
	query := `SELECT ` + hitColumns + `
		FROM hits WHERE run_id = ?
		ORDER BY nonce LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		hit, err := scanHit(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// ListRuns retrieves runs with pagination and filtering
func (s *SQLiteDB) ListRuns(query RunsQuery) (*RunsList, error) {
	var conditions []string
	args := []any{}

	if query.Trait != "" {
		conditions = append(conditions, "trait = ?")
		args = append(args, query.Trait)
	}
	if query.ServerSeedHash != "" {
		conditions = append(conditions, "server_seed_hash = ?")
		args = append(args, query.ServerSeedHash)
	}
	if query.ClientSeed != "" {
		conditions = append(conditions, "client_seed = ?")
		args = append(args, query.ClientSeed)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count
	var totalCount int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs "+whereClause, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	// Calculate pagination
	if query.PerPage <= 0 {
		query.PerPage = 50 // Default page size
	}
	if query.Page <= 0 {
		query.Page = 1
	}

	totalPages := (totalCount + query.PerPage - 1) / query.PerPage
	offset := (query.Page - 1) * query.PerPage

	mainQuery := `SELECT ` + runColumns + `
		FROM runs ` + whereClause + `
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	args = append(args, query.PerPage, offset)

	rows, err := s.db.Query(mainQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages,
	}, nil
}

// GetRunHits retrieves hits for a run with server-side pagination and delta nonce calculation
func (s *SQLiteDB) GetRunHits(runID string, page, perPage int) (*HitsPage, error) {
	var totalCount int
	err := s.db.QueryRow("SELECT COUNT(*) FROM hits WHERE run_id = ?", runID).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get hits count: %w", err)
	}

	if perPage <= 0 {
		perPage = 100 // Default page size
	}
	if page <= 0 {
		page = 1
	}

	totalPages := (totalCount + perPage - 1) / perPage

	hits, err := s.GetHits(runID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to query hits: %w", err)
	}

	// Delta nonce is the distance from the previous hit, which for the first
	// hit of a later page lives on the page before.
	hitsWithDelta := make([]HitWithDelta, len(hits))
	for i, hit := range hits {
		hitsWithDelta[i] = HitWithDelta{Hit: hit}

		if i > 0 {
			delta := hit.Nonce - hits[i-1].Nonce
			hitsWithDelta[i].DeltaNonce = &delta
		} else if page > 1 {
			prevHitQuery := `SELECT nonce FROM hits WHERE run_id = ? AND nonce < ? ORDER BY nonce DESC LIMIT 1`
			var prevNonce int64
			err := s.db.QueryRow(prevHitQuery, runID, int64(hit.Nonce)).Scan(&prevNonce)
			if err == nil {
				delta := hit.Nonce - uint64(prevNonce)
				hitsWithDelta[i].DeltaNonce = &delta
			}
		}
	}

	return &HitsPage{
		Hits:       hitsWithDelta,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
