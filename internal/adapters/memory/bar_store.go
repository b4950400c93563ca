package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// Compile-time interface checks.
var (
	_ ports.BarRepository = (*BarStore)(nil)
	_ ports.BarWriter     = (*BarStore)(nil)
)

// BarStore is an in-memory bar series store.
type BarStore struct {
	mu     sync.RWMutex
	series map[string][]*domain.Bar // keyed by (symbol, interval), ordered by open time
}

// NewBarStore creates an empty bar store.
func NewBarStore() *BarStore {
	return &BarStore{series: make(map[string][]*domain.Bar)}
}

func seriesKey(symbol, interval string) string {
	return symbol + "|" + interval
}

// SaveBars inserts bars, replacing bars with the same open time.
func (s *BarStore) SaveBars(_ context.Context, bars []*domain.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Interval == "" {
			return fmt.Errorf("%w: bar must have symbol and interval", ports.ErrInvalidArgument)
		}
		key := seriesKey(b.Symbol, b.Interval)
		series := s.series[key]
		barCopy := *b

		i := sort.Search(len(series), func(i int) bool { return !series[i].OpenTime.Before(b.OpenTime) })
		if i < len(series) && series[i].OpenTime.Equal(b.OpenTime) {
			series[i] = &barCopy
			continue
		}
		series = append(series, nil)
		copy(series[i+1:], series[i:])
		series[i] = &barCopy
		s.series[key] = series
	}
	return nil
}

func (s *BarStore) get(symbol domain.Symbol) []*domain.Bar {
	return s.series[seriesKey(symbol.Name, symbol.Interval)]
}

// NextBarAtOrAfter returns the first bar opening at or after ts.
func (s *BarStore) NextBarAtOrAfter(_ context.Context, symbol domain.Symbol, ts time.Time) (*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.get(symbol)
	i := sort.Search(len(series), func(i int) bool { return !series[i].OpenTime.Before(ts) })
	if i == len(series) {
		return nil, fmt.Errorf("%w: no %s %s bar at or after %s", ports.ErrNotFound, symbol.Name, symbol.Interval, ts.Format(time.RFC3339))
	}
	barCopy := *series[i]
	return &barCopy, nil
}

// BarsBetween returns copies of the bars opening within [start, end].
func (s *BarStore) BarsBetween(_ context.Context, symbol domain.Symbol, start, end time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.get(symbol)
	i := sort.Search(len(series), func(i int) bool { return !series[i].OpenTime.Before(start) })

	var result []*domain.Bar
	for ; i < len(series) && !series[i].OpenTime.After(end); i++ {
		barCopy := *series[i]
		result = append(result, &barCopy)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no %s %s bars between %s and %s", ports.ErrNotFound,
			symbol.Name, symbol.Interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return result, nil
}

// ExtremesBetween returns the lowest-low and highest-high bars within [start, end].
func (s *BarStore) ExtremesBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) (*domain.Bar, *domain.Bar, error) {
	bars, err := s.BarsBetween(ctx, symbol, start, end)
	if err != nil {
		return nil, nil, err
	}
	lowest, highest := domain.Extremes(bars)
	return lowest, highest, nil
}

// LastBar returns the most recent bar of the series.
func (s *BarStore) LastBar(_ context.Context, symbol domain.Symbol) (*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.get(symbol)
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no %s %s bars", ports.ErrNotFound, symbol.Name, symbol.Interval)
	}
	barCopy := *series[len(series)-1]
	return &barCopy, nil
}
