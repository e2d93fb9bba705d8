package memory

import (
	"context"
	"sort"
	"sync"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

// OptimizationStore is an in-memory implementation of storage.OptimizationStore.
type OptimizationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OptimizationResult // keyed by optimization_id
}

// NewOptimizationStore creates a new in-memory optimization store.
func NewOptimizationStore() *OptimizationStore {
	return &OptimizationStore{
		data: make(map[string]*domain.OptimizationResult),
	}
}

// Insert adds a new result. Returns ErrDuplicateKey if optimization_id exists.
func (s *OptimizationStore) Insert(_ context.Context, r *domain.OptimizationResult) error {
	if r == nil || r.OptimizationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.OptimizationID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[r.OptimizationID] = r.Clone()
	return nil
}

// GetByID retrieves a result by its ID. Returns ErrNotFound if not exists.
func (s *OptimizationStore) GetByID(_ context.Context, optimizationID string) (*domain.OptimizationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[optimizationID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	return r.Clone(), nil
}

// ListByModelID retrieves all results for a model, ordered by
// created_at ASC, optimization_id ASC.
func (s *OptimizationStore) ListByModelID(_ context.Context, modelID string) ([]*domain.OptimizationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OptimizationResult
	for _, r := range s.data {
		if r.ModelID == modelID {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].OptimizationID < result[j].OptimizationID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.OptimizationStore = (*OptimizationStore)(nil)
