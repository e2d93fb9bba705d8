// Package rediscache provides a Redis-backed read-through cache for the
// model store, for deployments where fitted models are read far more often
// than they are produced.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

// DefaultTTL bounds how long a cached model may outlive its backing row.
const DefaultTTL = time.Hour

const modelKeyPrefix = "mediamix:model:"

// Connect creates a Redis client and verifies the connection.
// Accepts either a redis:// URL or a bare host:port address.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// ModelCache wraps a ModelStore with a Redis read-through cache. Lookups
// check Redis first and fall back to the wrapped store, writing the result
// back under a TTL. Inserts and deletes pass through and keep the cache
// coherent. Cache writes are best effort; a Redis failure never fails the
// underlying operation.
type ModelCache struct {
	inner  storage.ModelStore
	client *redis.Client
	ttl    time.Duration
}

// NewModelCache creates a cache in front of inner. A non-positive ttl
// falls back to DefaultTTL.
func NewModelCache(inner storage.ModelStore, client *redis.Client, ttl time.Duration) *ModelCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ModelCache{inner: inner, client: client, ttl: ttl}
}

// Compile-time interface check.
var _ storage.ModelStore = (*ModelCache)(nil)

// Insert adds a new model. Returns ErrDuplicateKey if model_id exists.
func (c *ModelCache) Insert(ctx context.Context, m *domain.FittedModel) error {
	if err := c.inner.Insert(ctx, m); err != nil {
		return err
	}
	c.set(ctx, m)
	return nil
}

// GetByID retrieves a model by its ID. Returns ErrNotFound if not exists.
func (c *ModelCache) GetByID(ctx context.Context, modelID string) (*domain.FittedModel, error) {
	raw, err := c.client.Get(ctx, modelKeyPrefix+modelID).Bytes()
	if err == nil {
		var m domain.FittedModel
		if unmarshalErr := json.Unmarshal(raw, &m); unmarshalErr == nil {
			return &m, nil
		}
		// A corrupted entry is treated as a miss
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cached model: %w", err)
	}

	m, err := c.inner.GetByID(ctx, modelID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, m)
	return m, nil
}

// List retrieves all models, ordered by created_at ASC, model_id ASC.
// Listing always goes to the wrapped store.
func (c *ModelCache) List(ctx context.Context) ([]*domain.FittedModel, error) {
	return c.inner.List(ctx)
}

// Delete removes a model by its ID. Returns ErrNotFound if not exists.
func (c *ModelCache) Delete(ctx context.Context, modelID string) error {
	if err := c.inner.Delete(ctx, modelID); err != nil {
		return err
	}
	_ = c.client.Del(ctx, modelKeyPrefix+modelID).Err()
	return nil
}

// set writes a model to the cache, ignoring failures.
func (c *ModelCache) set(ctx context.Context, m *domain.FittedModel) {
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, modelKeyPrefix+m.ModelID, raw, c.ttl).Err()
}
