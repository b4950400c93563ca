package clickhouse

import (
	"context"
	"fmt"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// Compile-time interface checks.
var (
	_ ports.BarRepository = (*BarStore)(nil)
	_ ports.BarWriter     = (*BarStore)(nil)
)

const barsSchema = `
	CREATE TABLE IF NOT EXISTS bars (
		symbol       LowCardinality(String),
		interval     LowCardinality(String),
		open_time_ms Int64,
		open         Float64,
		high         Float64,
		low          Float64,
		close        Float64,
		volume       Float64,
		inserted_at  DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = ReplacingMergeTree(inserted_at)
	ORDER BY (symbol, interval, open_time_ms)
	SETTINGS index_granularity = 8192
`

const barColumns = `symbol, interval, open_time_ms, open, high, low, close, volume`

// BarStore implements the bar repository on a ReplacingMergeTree table.
// Reads use FINAL so a re-imported bar replaces the older row.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// EnsureSchema creates the bars table if it does not exist.
func (s *BarStore) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, barsSchema); err != nil {
		return fmt.Errorf("create bars table: %w", err)
	}
	return nil
}

// SaveBars appends bars in one batch.
func (s *BarStore) SaveBars(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO bars (`+barColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		if b.Symbol == "" || b.Interval == "" {
			_ = batch.Abort()
			return fmt.Errorf("bar must have symbol and interval: %w", ports.ErrInvalidArgument)
		}
		err = batch.Append(b.Symbol, b.Interval, b.OpenTime.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// NextBarAtOrAfter returns the first bar opening at or after ts.
func (s *BarStore) NextBarAtOrAfter(ctx context.Context, symbol domain.Symbol, ts time.Time) (*domain.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM bars FINAL
		WHERE symbol = ? AND interval = ? AND open_time_ms >= ?
		ORDER BY open_time_ms ASC
		LIMIT 1
	`
	bar, err := s.queryOne(ctx, query, symbol.Name, symbol.Interval, ts.UnixMilli())
	if err != nil {
		return nil, err
	}
	if bar == nil {
		return nil, fmt.Errorf("no %s %s bar at or after %s: %w", symbol.Name, symbol.Interval, ts.Format(time.RFC3339), ports.ErrNotFound)
	}
	return bar, nil
}

// BarsBetween returns bars opening within [start, end] (inclusive).
func (s *BarStore) BarsBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) ([]*domain.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM bars FINAL
		WHERE symbol = ? AND interval = ? AND open_time_ms >= ? AND open_time_ms <= ?
		ORDER BY open_time_ms ASC
	`
	rows, err := s.conn.Query(ctx, query, symbol.Name, symbol.Interval, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no %s %s bars between %s and %s: %w", symbol.Name, symbol.Interval,
			start.Format(time.RFC3339), end.Format(time.RFC3339), ports.ErrNotFound)
	}
	return bars, nil
}

// ExtremesBetween returns the lowest-low and highest-high bars within [start, end].
// The earliest bar wins ties.
func (s *BarStore) ExtremesBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) (*domain.Bar, *domain.Bar, error) {
	extreme := func(order string) (*domain.Bar, error) {
		query := `
			SELECT ` + barColumns + `
			FROM bars FINAL
			WHERE symbol = ? AND interval = ? AND open_time_ms >= ? AND open_time_ms <= ?
			ORDER BY ` + order + `, open_time_ms ASC
			LIMIT 1
		`
		return s.queryOne(ctx, query, symbol.Name, symbol.Interval, start.UnixMilli(), end.UnixMilli())
	}

	lowest, err := extreme("low ASC")
	if err != nil {
		return nil, nil, err
	}
	if lowest == nil {
		return nil, nil, fmt.Errorf("no %s %s bars between %s and %s: %w", symbol.Name, symbol.Interval,
			start.Format(time.RFC3339), end.Format(time.RFC3339), ports.ErrNotFound)
	}
	highest, err := extreme("high DESC")
	if err != nil {
		return nil, nil, err
	}
	return lowest, highest, nil
}

// LastBar returns the most recent bar of the series.
func (s *BarStore) LastBar(ctx context.Context, symbol domain.Symbol) (*domain.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM bars FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY open_time_ms DESC
		LIMIT 1
	`
	bar, err := s.queryOne(ctx, query, symbol.Name, symbol.Interval)
	if err != nil {
		return nil, err
	}
	if bar == nil {
		return nil, fmt.Errorf("no %s %s bars: %w", symbol.Name, symbol.Interval, ports.ErrNotFound)
	}
	return bar, nil
}

// queryOne returns the first row of query, or nil when it has none.
func (s *BarStore) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.Bar, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bar: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	return bars[0], nil
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		var openTimeMs int64

		err := rows.Scan(
			&b.Symbol, &b.Interval, &openTimeMs,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.OpenTime = time.UnixMilli(openTimeMs).UTC()
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
