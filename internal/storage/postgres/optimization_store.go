package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

// OptimizationStore implements storage.OptimizationStore using PostgreSQL.
type OptimizationStore struct {
	pool *Pool
}

// NewOptimizationStore creates a new OptimizationStore.
func NewOptimizationStore(pool *Pool) *OptimizationStore {
	return &OptimizationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OptimizationStore = (*OptimizationStore)(nil)

// Insert adds a new result. Returns ErrDuplicateKey if optimization_id exists.
func (s *OptimizationStore) Insert(ctx context.Context, r *domain.OptimizationResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal optimization result: %w", err)
	}

	query := `
		INSERT INTO optimization_results (optimization_id, model_id, created_at, total_budget, payload)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query,
		r.OptimizationID,
		r.ModelID,
		r.CreatedAt,
		r.TotalBudget,
		payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert optimization result: %w", err)
	}
	return nil
}

// GetByID retrieves a result by its ID. Returns ErrNotFound if not exists.
func (s *OptimizationStore) GetByID(ctx context.Context, optimizationID string) (*domain.OptimizationResult, error) {
	query := `
		SELECT payload
		FROM optimization_results
		WHERE optimization_id = $1
	`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, optimizationID).Scan(&payload)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get optimization result by id: %w", err)
	}

	return unmarshalResult(payload)
}

// ListByModelID retrieves all results for a model, ordered by
// created_at ASC, optimization_id ASC.
func (s *OptimizationStore) ListByModelID(ctx context.Context, modelID string) ([]*domain.OptimizationResult, error) {
	query := `
		SELECT payload
		FROM optimization_results
		WHERE model_id = $1
		ORDER BY created_at ASC, optimization_id ASC
	`

	rows, err := s.pool.Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("list optimization results: %w", err)
	}
	defer rows.Close()

	var results []*domain.OptimizationResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan optimization result row: %w", err)
		}

		r, err := unmarshalResult(payload)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimization result rows: %w", err)
	}

	return results, nil
}

// unmarshalResult decodes a JSONB payload into an OptimizationResult.
func unmarshalResult(payload []byte) (*domain.OptimizationResult, error) {
	var r domain.OptimizationResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("unmarshal optimization result payload: %w", err)
	}
	return &r, nil
}
