package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

// SampleStore is an in-memory implementation of storage.SampleStore.
type SampleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PosteriorDraw // keyed by (model_id, parameter, chain, draw)
}

// NewSampleStore creates a new in-memory sample store.
func NewSampleStore() *SampleStore {
	return &SampleStore{
		data: make(map[string]*domain.PosteriorDraw),
	}
}

// drawKey generates a unique key for a posterior draw.
func drawKey(modelID, parameter string, chain, draw int) string {
	return fmt.Sprintf("%s|%s|%d|%d", modelID, parameter, chain, draw)
}

// InsertBatch adds multiple draws. Fails entire batch on duplicate.
func (s *SampleStore) InsertBatch(_ context.Context, draws []*domain.PosteriorDraw) error {
	if len(draws) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(draws))

	// First pass: check for duplicates (existing + intra-batch)
	for _, d := range draws {
		if d == nil || d.ModelID == "" || d.Parameter == "" {
			return storage.ErrInvalidInput
		}
		key := drawKey(d.ModelID, d.Parameter, d.Chain, d.Draw)

		// Check existing data
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		// Check intra-batch duplicate
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, d := range draws {
		key := drawKey(d.ModelID, d.Parameter, d.Chain, d.Draw)
		drawCopy := *d
		s.data[key] = &drawCopy
	}

	return nil
}

// GetByModelID retrieves all draws for a model, ordered by
// parameter ASC, chain ASC, draw ASC.
func (s *SampleStore) GetByModelID(_ context.Context, modelID string) ([]*domain.PosteriorDraw, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PosteriorDraw
	for _, d := range s.data {
		if d.ModelID == modelID {
			drawCopy := *d
			result = append(result, &drawCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Parameter != result[j].Parameter {
			return result[i].Parameter < result[j].Parameter
		}
		if result[i].Chain != result[j].Chain {
			return result[i].Chain < result[j].Chain
		}
		return result[i].Draw < result[j].Draw
	})

	return result, nil
}

// CountByModelID returns the number of stored draws for a model.
func (s *SampleStore) CountByModelID(_ context.Context, modelID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, d := range s.data {
		if d.ModelID == modelID {
			count++
		}
	}

	return count, nil
}

// Verify interface compliance at compile time.
var _ storage.SampleStore = (*SampleStore)(nil)
