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

var _ ports.SavePointRepository = (*SavePointStore)(nil)

// SavePointStore is an in-memory binding value store.
type SavePointStore struct {
	mu     sync.RWMutex
	points map[int64][]domain.SavePoint // keyed by binding ID, ordered by timestamp
}

// NewSavePointStore creates an empty save point store.
func NewSavePointStore() *SavePointStore {
	return &SavePointStore{points: make(map[int64][]domain.SavePoint)}
}

// SaveSavePoints records points for binding, replacing equal timestamps.
func (s *SavePointStore) SaveSavePoints(_ context.Context, binding domain.Binding, points []domain.SavePoint) error {
	if binding.ID == 0 {
		return fmt.Errorf("%w: binding %s has no ID", ports.ErrInvalidArgument, binding.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byTime := make(map[int64]domain.SavePoint)
	for _, p := range s.points[binding.ID] {
		byTime[p.Timestamp.UnixMilli()] = p
	}
	for _, p := range points {
		byTime[p.Timestamp.UnixMilli()] = p
	}

	merged := make([]domain.SavePoint, 0, len(byTime))
	for _, p := range byTime {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })
	s.points[binding.ID] = merged
	return nil
}

// SavePointsBetween returns the binding's points within [start, end].
func (s *SavePointStore) SavePointsBetween(_ context.Context, binding domain.Binding, start, end time.Time) ([]domain.SavePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.SavePoint
	for _, p := range s.points[binding.ID] {
		if !p.Timestamp.Before(start) && !p.Timestamp.After(end) {
			result = append(result, p)
		}
	}
	return result, nil
}
