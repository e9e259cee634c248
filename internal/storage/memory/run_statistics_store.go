package memory

import (
	"context"
	"sort"
	"sync"

	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/storage"
)

// RunStatisticsStore is an in-memory implementation of
// storage.RunStatisticsStore.
type RunStatisticsStore struct {
	mu   sync.RWMutex
	data map[statKey]*domain.RunStatPoint
}

type statKey struct {
	runID      string
	metric     string
	percentile string
}

// NewRunStatisticsStore creates a new in-memory run statistics store.
func NewRunStatisticsStore() *RunStatisticsStore {
	return &RunStatisticsStore{
		data: make(map[statKey]*domain.RunStatPoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate
// (run_id, metric, percentile).
func (s *RunStatisticsStore) InsertBulk(_ context.Context, points []*domain.RunStatPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.RunID == "" || p.Metric == "" || p.Percentile == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check intra-batch and against existing rows before writing anything.
	seen := make(map[statKey]struct{}, len(points))
	for _, p := range points {
		k := statKey{p.RunID, p.Metric, p.Percentile}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[statKey{p.RunID, p.Metric, p.Percentile}] = &pointCopy
	}
	return nil
}

// GetByRunID retrieves all points for a run, ordered by metric then
// percentile.
func (s *RunStatisticsStore) GetByRunID(_ context.Context, runID string) ([]*domain.RunStatPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunStatPoint
	for _, p := range s.data {
		if p.RunID == runID {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Metric != result[j].Metric {
			return result[i].Metric < result[j].Metric
		}
		return result[i].Percentile < result[j].Percentile
	})

	return result, nil
}

// GetMetricValues retrieves one (metric, percentile) series across all runs,
// ordered by created_at ASC.
func (s *RunStatisticsStore) GetMetricValues(_ context.Context, metric, percentile string) ([]*domain.RunStatPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunStatPoint
	for _, p := range s.data {
		if p.Metric == metric && p.Percentile == percentile {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtMs != result[j].CreatedAtMs {
			return result[i].CreatedAtMs < result[j].CreatedAtMs
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RunStatisticsStore = (*RunStatisticsStore)(nil)
