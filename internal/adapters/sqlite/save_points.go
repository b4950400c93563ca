package sqlite

import (
	"context"
	"fmt"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// SaveSavePoints upserts the binding's values keyed by timestamp.
func (r *Repository) SaveSavePoints(ctx context.Context, binding domain.Binding, points []domain.SavePoint) error {
	if binding.ID == 0 {
		return fmt.Errorf("binding %s has no ID: %w", binding.Name, ports.ErrInvalidArgument)
	}
	const query = `
	INSERT INTO save_points (binding_id, t, value) VALUES (?, ?, ?)
	ON CONFLICT (binding_id, t) DO UPDATE SET value = excluded.value`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save point transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		if _, err := tx.ExecContext(ctx, query, binding.ID, toMillis(p.Timestamp), p.Value); err != nil {
			return fmt.Errorf("failed to insert save point of binding %d: %w", binding.ID, err)
		}
	}
	return tx.Commit()
}

// SavePointsBetween returns the binding's values within [start, end] in time order.
func (r *Repository) SavePointsBetween(ctx context.Context, binding domain.Binding, start, end time.Time) ([]domain.SavePoint, error) {
	const query = `SELECT t, value FROM save_points
	WHERE binding_id = ? AND t BETWEEN ? AND ? ORDER BY t ASC`

	rows, err := r.db.QueryContext(ctx, query, binding.ID, toMillis(start), toMillis(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query save points of binding %d: %w: %w", binding.ID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var points []domain.SavePoint
	for rows.Next() {
		var t int64
		var p domain.SavePoint
		if err := rows.Scan(&t, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan save point: %w", err)
		}
		p.Timestamp = fromMillis(t)
		points = append(points, p)
	}
	return points, rows.Err()
}
