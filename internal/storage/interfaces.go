package storage

import (
	"context"

	"retirement-sim-lab/internal/domain"
)

// RunStore provides access to simulation run history.
type RunStore interface {
	// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetRecent retrieves the most recent runs, ordered by created_at DESC.
	GetRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error)

	// GetBySeed retrieves all runs for a base seed, ordered by created_at ASC.
	GetBySeed(ctx context.Context, baseSeed int64) ([]*domain.RunRecord, error)
}

// RunStatisticsStore provides access to per-run percentile points for
// cross-run analytics.
type RunStatisticsStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate
	// (run_id, metric, percentile).
	InsertBulk(ctx context.Context, points []*domain.RunStatPoint) error

	// GetByRunID retrieves all points for a run, ordered by metric then
	// percentile.
	GetByRunID(ctx context.Context, runID string) ([]*domain.RunStatPoint, error)

	// GetMetricValues retrieves one (metric, percentile) series across all
	// runs, ordered by created_at ASC.
	GetMetricValues(ctx context.Context, metric, percentile string) ([]*domain.RunStatPoint, error)
}
