package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// SavePointStore is a PostgreSQL implementation of ports.SavePointRepository.
type SavePointStore struct {
	pool *Pool
}

// NewSavePointStore creates a new PostgreSQL save point store.
func NewSavePointStore(pool *Pool) *SavePointStore {
	return &SavePointStore{pool: pool}
}

// Compile-time interface check.
var _ ports.SavePointRepository = (*SavePointStore)(nil)

// SaveSavePoints upserts the binding's points in one batch.
func (s *SavePointStore) SaveSavePoints(ctx context.Context, binding domain.Binding, points []domain.SavePoint) error {
	if binding.ID == 0 {
		return fmt.Errorf("binding %s has no ID: %w", binding.Name, ports.ErrInvalidArgument)
	}
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO save_points (binding_id, ts, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (binding_id, ts) DO UPDATE SET value = EXCLUDED.value
		`, binding.ID, p.Timestamp.UTC(), p.Value)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save points of binding %d: %w", binding.ID, err)
	}
	return nil
}

// SavePointsBetween returns the binding's points within [start, end] (inclusive).
func (s *SavePointStore) SavePointsBetween(ctx context.Context, binding domain.Binding, start, end time.Time) ([]domain.SavePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, value
		FROM save_points
		WHERE binding_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`, binding.ID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query save points: %w", err)
	}
	defer rows.Close()

	var points []domain.SavePoint
	for rows.Next() {
		var p domain.SavePoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan save point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate save points: %w", err)
	}
	return points, nil
}
