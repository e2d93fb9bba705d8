package memory

import (
	"context"
	"sort"
	"sync"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

// ModelStore is an in-memory implementation of storage.ModelStore.
type ModelStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FittedModel // keyed by model_id
}

// NewModelStore creates a new in-memory model store.
func NewModelStore() *ModelStore {
	return &ModelStore{
		data: make(map[string]*domain.FittedModel),
	}
}

// Insert adds a new model. Returns ErrDuplicateKey if model_id exists.
func (s *ModelStore) Insert(_ context.Context, m *domain.FittedModel) error {
	if m == nil || m.ModelID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.ModelID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[m.ModelID] = m.Clone()
	return nil
}

// GetByID retrieves a model by its ID. Returns ErrNotFound if not exists.
func (s *ModelStore) GetByID(_ context.Context, modelID string) (*domain.FittedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[modelID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	return m.Clone(), nil
}

// List retrieves all models, ordered by created_at ASC, model_id ASC.
func (s *ModelStore) List(_ context.Context) ([]*domain.FittedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.FittedModel, 0, len(s.data))
	for _, m := range s.data {
		result = append(result, m.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ModelID < result[j].ModelID
	})

	return result, nil
}

// Delete removes a model by its ID. Returns ErrNotFound if not exists.
func (s *ModelStore) Delete(_ context.Context, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[modelID]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, modelID)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.ModelStore = (*ModelStore)(nil)
