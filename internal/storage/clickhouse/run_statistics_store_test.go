package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/storage"
)

func statPoint(runID, metric, pct string, value float64, createdAt int64) *domain.RunStatPoint {
	return &domain.RunStatPoint{
		RunID: runID, Metric: metric, Percentile: pct,
		Value: value, CreatedAtMs: createdAt,
	}
}

func TestRunStatisticsStore_InsertBulkAndGetByRunID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStatisticsStore(conn)

	points := []*domain.RunStatPoint{
		statPoint("run-1", "final_net_worth", "p50", 912345.67, 1000),
		statPoint("run-1", "final_net_worth", "p10", 150000, 1000),
		statPoint("run-1", "min_cash", "p50", 18000, 1000),
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "p10", got[0].Percentile)
	require.Equal(t, "final_net_worth", got[0].Metric)
	require.Equal(t, "min_cash", got[2].Metric)
	require.Equal(t, int64(1000), got[0].CreatedAtMs)
}

func TestRunStatisticsStore_DuplicateInBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStatisticsStore(conn)

	err := store.InsertBulk(ctx, []*domain.RunStatPoint{
		statPoint("run-1", "final_net_worth", "p50", 1, 1000),
		statPoint("run-1", "final_net_worth", "p50", 2, 1000),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStatisticsStore_DuplicateAgainstExisting(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStatisticsStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.RunStatPoint{
		statPoint("run-1", "final_net_worth", "p50", 1, 1000),
	}))

	err := store.InsertBulk(ctx, []*domain.RunStatPoint{
		statPoint("run-1", "final_net_worth", "p50", 2, 2000),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStatisticsStore_GetMetricValues(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStatisticsStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.RunStatPoint{
		statPoint("run-2", "final_net_worth", "p50", 950000, 2000),
		statPoint("run-1", "final_net_worth", "p50", 900000, 1000),
		statPoint("run-1", "min_cash", "p50", 18000, 1000),
	}))

	series, err := store.GetMetricValues(ctx, "final_net_worth", "p50")
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Equal(t, "run-1", series[0].RunID)
	require.Equal(t, "run-2", series[1].RunID)
}

func TestRunStatisticsStore_EmptyBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, NewRunStatisticsStore(conn).InsertBulk(context.Background(), nil))
}
