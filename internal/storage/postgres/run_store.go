package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/observability"
	"retirement-sim-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, base_seed, start_year, horizon_months, paths_run, replay_mode,
	success_rate, ever_breach_probability, final_net_worth_p50,
	elapsed_ms, created_at_ms
`

// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO simulation_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		r.RunID,
		r.BaseSeed,
		r.StartYear,
		r.HorizonMonths,
		r.PathsRun,
		r.ReplayMode,
		r.SuccessRate,
		r.EverBreachProbability,
		r.FinalNetWorthP50,
		r.ElapsedMs,
		r.CreatedAtMs,
	)
	observability.RecordDBQuery("postgres", "insert_run", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		WHERE run_id = $1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	observability.RecordDBQuery("postgres", "get_run_by_id", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// GetRecent retrieves the most recent runs, ordered by created_at DESC.
func (s *RunStore) GetRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		ORDER BY created_at_ms DESC, run_id ASC
		LIMIT $1
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, limit)
	observability.RecordDBQuery("postgres", "get_recent_runs", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("get recent runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetBySeed retrieves all runs for a base seed, ordered by created_at ASC.
func (s *RunStore) GetBySeed(ctx context.Context, baseSeed int64) ([]*domain.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM simulation_runs
		WHERE base_seed = $1
		ORDER BY created_at_ms ASC, run_id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, baseSeed)
	observability.RecordDBQuery("postgres", "get_runs_by_seed", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("get runs by seed: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// scanRun scans a single row into a RunRecord.
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	err := row.Scan(
		&r.RunID,
		&r.BaseSeed,
		&r.StartYear,
		&r.HorizonMonths,
		&r.PathsRun,
		&r.ReplayMode,
		&r.SuccessRate,
		&r.EverBreachProbability,
		&r.FinalNetWorthP50,
		&r.ElapsedMs,
		&r.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// scanRuns scans all rows into RunRecords.
func scanRuns(rows pgx.Rows) ([]*domain.RunRecord, error) {
	var result []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}
