package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

// ModelStore implements storage.ModelStore using PostgreSQL. The full model
// snapshot lives in a JSONB payload column; model_id, run_id and created_at
// are promoted to real columns for keying and ordering.
type ModelStore struct {
	pool *Pool
}

// NewModelStore creates a new ModelStore.
func NewModelStore(pool *Pool) *ModelStore {
	return &ModelStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ModelStore = (*ModelStore)(nil)

// Insert adds a new model. Returns ErrDuplicateKey if model_id exists.
func (s *ModelStore) Insert(ctx context.Context, m *domain.FittedModel) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	query := `
		INSERT INTO fitted_models (model_id, run_id, created_at, payload)
		VALUES ($1, $2, $3, $4)
	`

	_, err = s.pool.Exec(ctx, query, m.ModelID, m.RunID, m.CreatedAt, payload)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert model: %w", err)
	}
	return nil
}

// GetByID retrieves a model by its ID. Returns ErrNotFound if not exists.
func (s *ModelStore) GetByID(ctx context.Context, modelID string) (*domain.FittedModel, error) {
	query := `
		SELECT payload
		FROM fitted_models
		WHERE model_id = $1
	`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, modelID).Scan(&payload)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get model by id: %w", err)
	}

	return unmarshalModel(payload)
}

// List retrieves all models, ordered by created_at ASC, model_id ASC.
func (s *ModelStore) List(ctx context.Context) ([]*domain.FittedModel, error) {
	query := `
		SELECT payload
		FROM fitted_models
		ORDER BY created_at ASC, model_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []*domain.FittedModel
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan model row: %w", err)
		}

		m, err := unmarshalModel(payload)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model rows: %w", err)
	}

	return models, nil
}

// Delete removes a model by its ID. Returns ErrNotFound if not exists.
func (s *ModelStore) Delete(ctx context.Context, modelID string) error {
	query := `
		DELETE FROM fitted_models
		WHERE model_id = $1
	`

	ct, err := s.pool.Exec(ctx, query, modelID)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// unmarshalModel decodes a JSONB payload into a FittedModel.
func unmarshalModel(payload []byte) (*domain.FittedModel, error) {
	var m domain.FittedModel
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("unmarshal model payload: %w", err)
	}
	return &m, nil
}
