package clickhouse

import (
	"context"
	"fmt"
	"time"

	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/observability"
	"retirement-sim-lab/internal/storage"
)

// RunStatisticsStore implements storage.RunStatisticsStore using ClickHouse.
type RunStatisticsStore struct {
	conn *Conn
}

// NewRunStatisticsStore creates a new RunStatisticsStore.
func NewRunStatisticsStore(conn *Conn) *RunStatisticsStore {
	return &RunStatisticsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RunStatisticsStore = (*RunStatisticsStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate
// (run_id, metric, percentile). ClickHouse MergeTree does not enforce
// uniqueness, so duplicates are checked explicitly before the batch is sent.
func (s *RunStatisticsStore) InsertBulk(ctx context.Context, points []*domain.RunStatPoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		runID      string
		metric     string
		percentile string
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" || p.Metric == "" || p.Percentile == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.RunID, p.Metric, p.Percentile}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		exists, err := s.exists(ctx, p.RunID, p.Metric, p.Percentile)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	start := time.Now()
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO run_statistics (
			run_id, metric, percentile, value, created_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, p.Metric, p.Percentile, p.Value, uint64(p.CreatedAtMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_run_statistics", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by metric then
// percentile.
func (s *RunStatisticsStore) GetByRunID(ctx context.Context, runID string) ([]*domain.RunStatPoint, error) {
	query := `
		SELECT run_id, metric, percentile, value, created_at_ms
		FROM run_statistics
		WHERE run_id = ?
		ORDER BY metric ASC, percentile ASC
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, runID)
	observability.RecordDBQuery("clickhouse", "get_statistics_by_run", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanStatPoints(rows)
}

// GetMetricValues retrieves one (metric, percentile) series across all runs,
// ordered by created_at ASC.
func (s *RunStatisticsStore) GetMetricValues(ctx context.Context, metric, percentile string) ([]*domain.RunStatPoint, error) {
	query := `
		SELECT run_id, metric, percentile, value, created_at_ms
		FROM run_statistics
		WHERE metric = ? AND percentile = ?
		ORDER BY created_at_ms ASC, run_id ASC
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, metric, percentile)
	observability.RecordDBQuery("clickhouse", "get_metric_values", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query metric values: %w", err)
	}
	defer rows.Close()

	return scanStatPoints(rows)
}

// exists checks if a point with the given key exists.
func (s *RunStatisticsStore) exists(ctx context.Context, runID, metric, percentile string) (bool, error) {
	query := `
		SELECT count(*) FROM run_statistics
		WHERE run_id = ? AND metric = ? AND percentile = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, metric, percentile).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// rowScanner matches the driver's row iteration surface.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanStatPoints scans all rows into RunStatPoints.
func scanStatPoints(rows rowScanner) ([]*domain.RunStatPoint, error) {
	var result []*domain.RunStatPoint
	for rows.Next() {
		var p domain.RunStatPoint
		var createdAtMs uint64
		if err := rows.Scan(&p.RunID, &p.Metric, &p.Percentile, &p.Value, &createdAtMs); err != nil {
			return nil, fmt.Errorf("scan stat point: %w", err)
		}
		p.CreatedAtMs = int64(createdAtMs)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stat points: %w", err)
	}
	return result, nil
}
