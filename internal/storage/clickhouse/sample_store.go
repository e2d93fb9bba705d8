package clickhouse

import (
	"context"
	"fmt"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/storage"
)

// SampleStore implements storage.SampleStore using ClickHouse. MergeTree does
// not enforce uniqueness at insert time, so duplicates are detected with an
// explicit key scan per model before the batch is sent.
type SampleStore struct {
	conn *Conn
}

// NewSampleStore creates a new SampleStore.
func NewSampleStore(conn *Conn) *SampleStore {
	return &SampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SampleStore = (*SampleStore)(nil)

// InsertBatch adds multiple draws. Fails entire batch on duplicate
// (model_id, parameter, chain, draw).
func (s *SampleStore) InsertBatch(ctx context.Context, draws []*domain.PosteriorDraw) error {
	if len(draws) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		modelID   string
		parameter string
		chain     int
		draw      int
	}
	seen := make(map[key]struct{}, len(draws))
	models := make(map[string]struct{})
	for _, d := range draws {
		k := key{d.ModelID, d.Parameter, d.Chain, d.Draw}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		models[d.ModelID] = struct{}{}
	}

	// Check for duplicates against existing DB rows, one key scan per model.
	// Draw batches arrive one model at a time, so this is normally one query.
	for modelID := range models {
		rows, err := s.conn.Query(ctx, `
			SELECT parameter, chain, draw
			FROM posterior_draws
			WHERE model_id = ?
		`, modelID)
		if err != nil {
			return fmt.Errorf("check existing draws: %w", err)
		}

		for rows.Next() {
			var parameter string
			var chain uint16
			var draw uint32
			if err := rows.Scan(&parameter, &chain, &draw); err != nil {
				rows.Close()
				return fmt.Errorf("scan existing draw key: %w", err)
			}
			if _, exists := seen[key{modelID, parameter, int(chain), int(draw)}]; exists {
				rows.Close()
				return storage.ErrDuplicateKey
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate existing draw keys: %w", err)
		}
		rows.Close()
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO posterior_draws (
			model_id, parameter, chain, draw, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range draws {
		err = batch.Append(
			d.ModelID, d.Parameter, uint16(d.Chain), uint32(d.Draw), d.Value,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByModelID retrieves all draws for a model, ordered by
// parameter ASC, chain ASC, draw ASC.
func (s *SampleStore) GetByModelID(ctx context.Context, modelID string) ([]*domain.PosteriorDraw, error) {
	query := `
		SELECT model_id, parameter, chain, draw, value
		FROM posterior_draws
		WHERE model_id = ?
		ORDER BY parameter ASC, chain ASC, draw ASC
	`

	rows, err := s.conn.Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("query draws by model id: %w", err)
	}
	defer rows.Close()

	return scanDraws(rows)
}

// CountByModelID returns the number of stored draws for a model.
func (s *SampleStore) CountByModelID(ctx context.Context, modelID string) (int64, error) {
	query := `
		SELECT count(*) FROM posterior_draws
		WHERE model_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, modelID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count draws by model id: %w", err)
	}
	return int64(count), nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanDraws scans multiple rows into a slice.
func scanDraws(rows chRows) ([]*domain.PosteriorDraw, error) {
	var draws []*domain.PosteriorDraw

	for rows.Next() {
		var d domain.PosteriorDraw
		var chain uint16
		var draw uint32

		err := rows.Scan(&d.ModelID, &d.Parameter, &chain, &draw, &d.Value)
		if err != nil {
			return nil, fmt.Errorf("scan draw row: %w", err)
		}

		d.Chain = int(chain)
		d.Draw = int(draw)
		draws = append(draws, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draw rows: %w", err)
	}

	return draws, nil
}
