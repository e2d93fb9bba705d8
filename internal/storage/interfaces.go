package storage

import (
	"context"

	"mediamix-lab/internal/domain"
)

// ModelStore provides access to fitted_models storage.
type ModelStore interface {
	// Insert adds a new model. Returns ErrDuplicateKey if model_id exists.
	Insert(ctx context.Context, m *domain.FittedModel) error

	// GetByID retrieves a model by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, modelID string) (*domain.FittedModel, error)

	// List retrieves all models, ordered by created_at ASC, model_id ASC.
	List(ctx context.Context) ([]*domain.FittedModel, error)

	// Delete removes a model by its ID. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, modelID string) error
}

// SampleStore provides access to posterior_draws storage.
type SampleStore interface {
	// InsertBatch adds multiple draws. Fails entire batch on duplicate
	// (model_id, parameter, chain, draw).
	InsertBatch(ctx context.Context, draws []*domain.PosteriorDraw) error

	// GetByModelID retrieves all draws for a model, ordered by
	// parameter ASC, chain ASC, draw ASC.
	GetByModelID(ctx context.Context, modelID string) ([]*domain.PosteriorDraw, error)

	// CountByModelID returns the number of stored draws for a model.
	CountByModelID(ctx context.Context, modelID string) (int64, error)
}

// OptimizationStore provides access to optimization_results storage.
type OptimizationStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if optimization_id exists.
	Insert(ctx context.Context, r *domain.OptimizationResult) error

	// GetByID retrieves a result by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, optimizationID string) (*domain.OptimizationResult, error)

	// ListByModelID retrieves all results for a model, ordered by
	// created_at ASC, optimization_id ASC.
	ListByModelID(ctx context.Context, modelID string) ([]*domain.OptimizationResult, error)
}
