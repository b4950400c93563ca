package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

const barColumns = `symbol, interval, t, open, high, low, close, volume`

// SaveBars upserts bars keyed by (symbol, interval, open time).
func (r *Repository) SaveBars(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	const query = `
	INSERT INTO bars (` + barColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, interval, t) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low,
		close = excluded.close, volume = excluded.volume`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bar transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Interval, toMillis(b.OpenTime),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("failed to insert bar %s %s %s: %w", b.Symbol, b.Interval, b.OpenTime.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bars: %w", err)
	}
	r.logger.Debug(ctx, "Bars saved", map[string]interface{}{"count": len(bars), "symbol": bars[0].Symbol})
	return nil
}

// NextBarAtOrAfter returns the first bar opening at or after ts.
func (r *Repository) NextBarAtOrAfter(ctx context.Context, symbol domain.Symbol, ts time.Time) (*domain.Bar, error) {
	const query = `SELECT ` + barColumns + ` FROM bars
	WHERE symbol = ? AND interval = ? AND t >= ? ORDER BY t ASC LIMIT 1`

	bar, err := scanBar(r.db.QueryRowContext(ctx, query, symbol.Name, symbol.Interval, toMillis(ts)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no %s %s bar at or after %s: %w", symbol.Name, symbol.Interval, ts.Format(time.RFC3339), ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query next bar: %w: %w", ports.ErrQueryFailed, err)
	}
	return bar, nil
}

// BarsBetween returns the bars opening within [start, end] in time order.
func (r *Repository) BarsBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) ([]*domain.Bar, error) {
	const query = `SELECT ` + barColumns + ` FROM bars
	WHERE symbol = ? AND interval = ? AND t BETWEEN ? AND ? ORDER BY t ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol.Name, symbol.Interval, toMillis(start), toMillis(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w: %w", symbol.Name, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	bars := make([]*domain.Bar, 0)
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bar rows: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no %s %s bars between %s and %s: %w", symbol.Name, symbol.Interval,
			start.Format(time.RFC3339), end.Format(time.RFC3339), ports.ErrNotFound)
	}
	return bars, nil
}

// ExtremesBetween returns the bars with the lowest low and highest high within [start, end].
// The earliest bar wins ties.
func (r *Repository) ExtremesBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) (*domain.Bar, *domain.Bar, error) {
	const lowestQuery = `SELECT ` + barColumns + ` FROM bars
	WHERE symbol = ? AND interval = ? AND t BETWEEN ? AND ? ORDER BY low ASC, t ASC LIMIT 1`
	const highestQuery = `SELECT ` + barColumns + ` FROM bars
	WHERE symbol = ? AND interval = ? AND t BETWEEN ? AND ? ORDER BY high DESC, t ASC LIMIT 1`

	args := []interface{}{symbol.Name, symbol.Interval, toMillis(start), toMillis(end)}

	lowest, err := scanBar(r.db.QueryRowContext(ctx, lowestQuery, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("no %s %s bars between %s and %s: %w", symbol.Name, symbol.Interval,
			start.Format(time.RFC3339), end.Format(time.RFC3339), ports.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query lowest bar: %w: %w", ports.ErrQueryFailed, err)
	}

	highest, err := scanBar(r.db.QueryRowContext(ctx, highestQuery, args...))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query highest bar: %w: %w", ports.ErrQueryFailed, err)
	}
	return lowest, highest, nil
}

// LastBar returns the most recent bar of the series.
func (r *Repository) LastBar(ctx context.Context, symbol domain.Symbol) (*domain.Bar, error) {
	const query = `SELECT ` + barColumns + ` FROM bars
	WHERE symbol = ? AND interval = ? ORDER BY t DESC LIMIT 1`

	bar, err := scanBar(r.db.QueryRowContext(ctx, query, symbol.Name, symbol.Interval))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no %s %s bars: %w", symbol.Name, symbol.Interval, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last bar: %w: %w", ports.ErrQueryFailed, err)
	}
	return bar, nil
}

// UpsertSymbol records a symbol and its last update time.
func (r *Repository) UpsertSymbol(ctx context.Context, symbol domain.Symbol) error {
	const query = `
	INSERT INTO symbols (name, exchange, interval, last_update) VALUES (?, ?, ?, ?)
	ON CONFLICT (name, exchange, interval) DO UPDATE SET last_update = excluded.last_update`

	if _, err := r.db.ExecContext(ctx, query, symbol.Name, symbol.Exchange, symbol.Interval, nullMillis(symbol.LastUpdate)); err != nil {
		return fmt.Errorf("failed to upsert symbol %s: %w", symbol.Name, err)
	}
	return nil
}

// FindSymbol loads a recorded symbol. Returns ErrNotFound if it was never recorded.
func (r *Repository) FindSymbol(ctx context.Context, name, exchange, interval string) (domain.Symbol, error) {
	const query = `SELECT name, exchange, interval, last_update FROM symbols
	WHERE name = ? AND exchange = ? AND interval = ?`

	var s domain.Symbol
	var lastUpdate sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, name, exchange, interval).Scan(&s.Name, &s.Exchange, &s.Interval, &lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Symbol{}, fmt.Errorf("symbol %s/%s %s: %w", exchange, name, interval, ports.ErrNotFound)
	}
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("failed to query symbol %s: %w: %w", name, ports.ErrQueryFailed, err)
	}
	s.LastUpdate = timeFromNull(lastUpdate)
	return s, nil
}

// scanBar scans a row into a domain.Bar struct.
func scanBar(s scanner) (*domain.Bar, error) {
	b := &domain.Bar{}
	var t int64
	if err := s.Scan(&b.Symbol, &b.Interval, &t, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	b.OpenTime = fromMillis(t)
	return b, nil
}
