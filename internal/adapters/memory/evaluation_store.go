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

var _ ports.EvaluationRepository = (*EvaluationStore)(nil)

// EvaluationStore is an in-memory evaluation store keyed by (type, entry, exit).
type EvaluationStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string]*domain.Evaluation
	now    func() time.Time
}

// NewEvaluationStore creates an empty evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[string]*domain.Evaluation),
		now:  time.Now,
	}
}

func evaluationKey(kind domain.IntentKind, entryID, exitID int64) string {
	return fmt.Sprintf("%s|%d|%d", kind, entryID, exitID)
}

// UpsertEvaluation inserts or replaces the evaluation for its key.
func (s *EvaluationStore) UpsertEvaluation(_ context.Context, e *domain.Evaluation) (*domain.Evaluation, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: evaluation is nil", ports.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := evaluationKey(e.Type, e.EntryID, e.ExitID)
	stored := cloneEvaluation(e)
	now := s.now().UTC()
	if existing, ok := s.data[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		s.nextID++
		stored.ID = s.nextID
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.data[key] = stored
	return cloneEvaluation(stored), nil
}

// FindEvaluationsWithExit returns evaluations of kind exiting at exitID, ordered by ID.
func (s *EvaluationStore) FindEvaluationsWithExit(_ context.Context, kind domain.IntentKind, exitID int64) ([]*domain.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Evaluation
	for _, e := range s.data {
		if e.Type == kind && e.ExitID == exitID {
			result = append(result, cloneEvaluation(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// FindEvaluations returns the evaluations of symbol and kind ordered by entry timestamp.
func (s *EvaluationStore) FindEvaluations(_ context.Context, symbol string, kind domain.IntentKind) ([]*domain.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Evaluation
	for _, e := range s.data {
		if e.Symbol == symbol && e.Type == kind {
			result = append(result, cloneEvaluation(e))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EntryTimestamp.Equal(result[j].EntryTimestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].EntryTimestamp.Before(result[j].EntryTimestamp)
	})
	return result, nil
}

func cloneEvaluation(e *domain.Evaluation) *domain.Evaluation {
	c := *e
	for _, f := range []**float64{
		&c.EntryPrice, &c.ExitPrice, &c.StopPrice, &c.ClosePrice,
		&c.HighestEntryPrice, &c.LowestEntryPrice,
		&c.HighestPriceToLowestExit, &c.LowestPriceToHighestExit,
		&c.RealizedROI, &c.HighestROI, &c.LowestROI,
	} {
		if *f != nil {
			*f = domain.Float(**f)
		}
	}
	return &c
}
