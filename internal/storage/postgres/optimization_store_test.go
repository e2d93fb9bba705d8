package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

func testResult(id, modelID string, createdAt time.Time) *domain.OptimizationResult {
	return &domain.OptimizationResult{
		OptimizationID: id,
		ModelID:        modelID,
		CreatedAt:      createdAt,
		TotalBudget:    100000,
		Allocation:     map[string]float64{"tv": 55000, "radio": 25000, "digital": 20000},
		Marginal:       map[string]float64{"tv": 0.011, "radio": 0.011, "digital": 0.014},
		PinnedAtMax:    []string{"digital"},
		Expected:       domain.Interval{Mean: 52000, Lower: 48000, Upper: 56000},
		Converged:      true,
		Iterations:     34,
	}
}

func TestOptimizationStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOptimizationStore(pool)
	ctx := context.Background()

	result := testResult("opt-001", "mmx1model", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	// Insert
	err := store.Insert(ctx, result)
	require.NoError(t, err)

	// GetByID
	retrieved, err := store.GetByID(ctx, "opt-001")
	require.NoError(t, err)

	assert.Equal(t, result.OptimizationID, retrieved.OptimizationID)
	assert.Equal(t, result.ModelID, retrieved.ModelID)
	assert.True(t, retrieved.CreatedAt.Equal(result.CreatedAt))
	assert.Equal(t, result.TotalBudget, retrieved.TotalBudget)
	assert.Equal(t, result.Allocation, retrieved.Allocation)
	assert.Equal(t, result.Marginal, retrieved.Marginal)
	assert.Equal(t, result.PinnedAtMax, retrieved.PinnedAtMax)
	assert.Empty(t, retrieved.PinnedAtMin)
	assert.Equal(t, result.Expected, retrieved.Expected)
	assert.Equal(t, result.Converged, retrieved.Converged)
	assert.Equal(t, result.Iterations, retrieved.Iterations)
}

func TestOptimizationStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOptimizationStore(pool)
	ctx := context.Background()

	result := testResult("opt-dup", "mmx1model", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	err := store.Insert(ctx, result)
	require.NoError(t, err)

	err = store.Insert(ctx, result)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOptimizationStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOptimizationStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOptimizationStore_ListByModelID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOptimizationStore(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	results := []*domain.OptimizationResult{
		testResult("opt-b", "mmx1model", base.Add(2*time.Hour)),
		testResult("opt-a", "mmx1model", base.Add(1*time.Hour)),
		testResult("opt-other", "mmx1other", base),
	}
	for _, r := range results {
		err := store.Insert(ctx, r)
		require.NoError(t, err)
	}

	// Only results for mmx1model, ordered by created_at ASC
	retrieved, err := store.ListByModelID(ctx, "mmx1model")
	require.NoError(t, err)

	require.Len(t, retrieved, 2)
	assert.Equal(t, "opt-a", retrieved[0].OptimizationID)
	assert.Equal(t, "opt-b", retrieved[1].OptimizationID)

	// Unknown model yields an empty result
	retrieved, err = store.ListByModelID(ctx, "mmx1missing")
	require.NoError(t, err)
	assert.Empty(t, retrieved)
}
