package rediscache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
	"mediamix-lab/internal/storage/memory"
)

// setupTestRedis starts a Redis container and returns a connected client.
// Returns a cleanup function that must be called when done.
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := Connect(ctx, fmt.Sprintf("%s:%s", host, port.Port()))
	require.NoError(t, err)

	cleanup := func() {
		client.Close()
		_ = container.Terminate(ctx)
	}

	return client, cleanup
}

func testModel(id string) *domain.FittedModel {
	return &domain.FittedModel{
		ModelID:   id,
		RunID:     "run-" + id,
		CreatedAt: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Channels:  []domain.ChannelSpec{domain.NewChannelSpec("tv")},
		Config:    domain.DefaultFitConfig(),
		Summary: map[string]domain.ParameterSummary{
			"intercept": {Mean: 10, SD: 0.5},
		},
		Samples:       map[string][]float64{"intercept": {9.8, 10.1}},
		NumChains:     1,
		DrawsPerChain: 2,
	}
}

func TestModelCache_InsertAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, time.Minute)
	ctx := context.Background()

	m := testModel("mmx1cached")

	err := cache.Insert(ctx, m)
	require.NoError(t, err)

	got, err := cache.GetByID(ctx, "mmx1cached")
	require.NoError(t, err)
	assert.Equal(t, "mmx1cached", got.ModelID)
	assert.Equal(t, m.Samples, got.Samples)

	// Insert must have gone through to the wrapped store
	got, err = inner.GetByID(ctx, "mmx1cached")
	require.NoError(t, err)
	assert.Equal(t, "mmx1cached", got.ModelID)
}

func TestModelCache_ServesFromCache(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, time.Minute)
	ctx := context.Background()

	err := cache.Insert(ctx, testModel("mmx1cached"))
	require.NoError(t, err)

	// Remove from the wrapped store; the cached copy must still serve reads
	err = inner.Delete(ctx, "mmx1cached")
	require.NoError(t, err)

	got, err := cache.GetByID(ctx, "mmx1cached")
	require.NoError(t, err)
	assert.Equal(t, "mmx1cached", got.ModelID)
}

func TestModelCache_FallbackAndBackfill(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, time.Minute)
	ctx := context.Background()

	// Model exists only in the wrapped store
	err := inner.Insert(ctx, testModel("mmx1fallback"))
	require.NoError(t, err)

	got, err := cache.GetByID(ctx, "mmx1fallback")
	require.NoError(t, err)
	assert.Equal(t, "mmx1fallback", got.ModelID)

	// The read must have backfilled the cache
	err = inner.Delete(ctx, "mmx1fallback")
	require.NoError(t, err)

	got, err = cache.GetByID(ctx, "mmx1fallback")
	require.NoError(t, err)
	assert.Equal(t, "mmx1fallback", got.ModelID)
}

func TestModelCache_Expiry(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, 50*time.Millisecond)
	ctx := context.Background()

	err := cache.Insert(ctx, testModel("mmx1expiring"))
	require.NoError(t, err)

	err = inner.Delete(ctx, "mmx1expiring")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	// Cache entry expired and the wrapped store no longer has the model
	_, err = cache.GetByID(ctx, "mmx1expiring")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestModelCache_Delete(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, time.Minute)
	ctx := context.Background()

	err := cache.Insert(ctx, testModel("mmx1deleted"))
	require.NoError(t, err)

	err = cache.Delete(ctx, "mmx1deleted")
	require.NoError(t, err)

	_, err = cache.GetByID(ctx, "mmx1deleted")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting a missing model reports not found
	err = cache.Delete(ctx, "mmx1deleted")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestModelCache_NotFound(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, time.Minute)
	ctx := context.Background()

	_, err := cache.GetByID(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestModelCache_DuplicateInsert(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, time.Minute)
	ctx := context.Background()

	m := testModel("mmx1dup")

	err := cache.Insert(ctx, m)
	require.NoError(t, err)

	err = cache.Insert(ctx, m)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestModelCache_ListPassesThrough(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	inner := memory.NewModelStore()
	cache := NewModelCache(inner, client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Insert(ctx, testModel("mmx1a")))
	require.NoError(t, cache.Insert(ctx, testModel("mmx1b")))

	models, err := cache.List(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "mmx1a", models[0].ModelID)
	assert.Equal(t, "mmx1b", models[1].ModelID)
}
