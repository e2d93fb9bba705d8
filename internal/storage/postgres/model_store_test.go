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

func testModel(id string, createdAt time.Time) *domain.FittedModel {
	return &domain.FittedModel{
		ModelID:   id,
		RunID:     "run-" + id,
		CreatedAt: createdAt,
		Channels: []domain.ChannelSpec{
			domain.NewChannelSpec("tv"),
			domain.NewChannelSpec("radio"),
		},
		Controls: []string{"price"},
		Config:   domain.DefaultFitConfig(),
		Summary: map[string]domain.ParameterSummary{
			"intercept": {Mean: 10, Median: 10, SD: 0.5, Q025: 9, Q975: 11, RHat: 1.001, ESS: 812},
			"beta_tv":   {Mean: 2.1, Median: 2.0, SD: 0.2, Q025: 1.7, Q975: 2.5, RHat: 1.002, ESS: 640},
		},
		Samples: map[string][]float64{
			"intercept": {9.8, 10.1, 10.2},
			"beta_tv":   {2.0, 2.1, 2.2},
		},
		NumChains:     1,
		DrawsPerChain: 3,
		Diagnostics: domain.Diagnostics{
			Converged: true,
			Strict:    true,
			MaxRHat:   1.002,
			MinESS:    640,
		},
		Scale: domain.ScaleInfo{
			TargetMean:  50000,
			TargetScale: 4000,
			SpendScale:  map[string]float64{"tv": 40000, "radio": 30000},
		},
		ChannelStats: map[string]domain.ChannelStats{
			"tv":    {MeanSpend: 40000, TotalSpend: 2080000, Carryover: 1.0 / 0.3},
			"radio": {MeanSpend: 30000, TotalSpend: 1560000, Carryover: 1.0 / 0.4},
		},
	}
}

func TestModelStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewModelStore(pool)
	ctx := context.Background()

	model := testModel("mmx1testmodel001", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	// Insert
	err := store.Insert(ctx, model)
	require.NoError(t, err)

	// GetByID
	retrieved, err := store.GetByID(ctx, "mmx1testmodel001")
	require.NoError(t, err)

	assert.Equal(t, model.ModelID, retrieved.ModelID)
	assert.Equal(t, model.RunID, retrieved.RunID)
	assert.True(t, retrieved.CreatedAt.Equal(model.CreatedAt))
	assert.Equal(t, model.Channels, retrieved.Channels)
	assert.Equal(t, model.Controls, retrieved.Controls)
	assert.Equal(t, model.Summary, retrieved.Summary)
	assert.Equal(t, model.Samples, retrieved.Samples)
	assert.Equal(t, model.NumChains, retrieved.NumChains)
	assert.Equal(t, model.DrawsPerChain, retrieved.DrawsPerChain)
	assert.Equal(t, model.Diagnostics, retrieved.Diagnostics)
	assert.Equal(t, model.Scale, retrieved.Scale)
	assert.Equal(t, model.ChannelStats, retrieved.ChannelStats)
}

func TestModelStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewModelStore(pool)
	ctx := context.Background()

	model := testModel("mmx1testmodeldup", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	// First insert should succeed
	err := store.Insert(ctx, model)
	require.NoError(t, err)

	// Second insert should return ErrDuplicateKey
	err = store.Insert(ctx, model)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestModelStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewModelStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestModelStore_ListOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewModelStore(pool)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// Insert out of order; mmx1a and mmx1z tie on created_at
	models := []*domain.FittedModel{
		testModel("mmx1c", base.Add(2*time.Hour)),
		testModel("mmx1z", base.Add(1*time.Hour)),
		testModel("mmx1a", base.Add(1*time.Hour)),
	}
	for _, m := range models {
		err := store.Insert(ctx, m)
		require.NoError(t, err)
	}

	result, err := store.List(ctx)
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.Equal(t, "mmx1a", result[0].ModelID)
	assert.Equal(t, "mmx1z", result[1].ModelID)
	assert.Equal(t, "mmx1c", result[2].ModelID)
}

func TestModelStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewModelStore(pool)
	ctx := context.Background()

	model := testModel("mmx1testmodeldel", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))

	err := store.Insert(ctx, model)
	require.NoError(t, err)

	err = store.Delete(ctx, "mmx1testmodeldel")
	require.NoError(t, err)

	_, err = store.GetByID(ctx, "mmx1testmodeldel")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again should report not found
	err = store.Delete(ctx, "mmx1testmodeldel")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestModelStore_EmptyList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewModelStore(pool)
	ctx := context.Background()

	result, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, result)
}
