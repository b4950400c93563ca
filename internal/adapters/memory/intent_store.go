package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

var _ ports.IntentRepository = (*IntentStore)(nil)

// IntentStore is an in-memory trade intent store.
type IntentStore struct {
	mu            sync.RWMutex
	nextID        int64
	data          map[int64]*domain.TradeIntent
	nextBindingID int64
	bindings      map[string]int64 // keyed by (name, field)
}

// NewIntentStore creates an empty intent store.
func NewIntentStore() *IntentStore {
	return &IntentStore{
		data:     make(map[int64]*domain.TradeIntent),
		bindings: make(map[string]int64),
	}
}

// SaveBinding returns b with the ID registered for its (name, field), assigning one if needed.
func (s *IntentStore) SaveBinding(_ context.Context, b domain.Binding) (domain.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveBinding(b)
}

func (s *IntentStore) saveBinding(b domain.Binding) (domain.Binding, error) {
	if b.ID != 0 {
		return b, nil
	}
	if b.Name == "" || b.Field == "" {
		return domain.Binding{}, fmt.Errorf("%w: binding needs a name and field", ports.ErrInvalidArgument)
	}
	key := b.Name + "|" + string(b.Field)
	id, ok := s.bindings[key]
	if !ok {
		s.nextBindingID++
		id = s.nextBindingID
		s.bindings[key] = id
	}
	b.ID = id
	return b, nil
}

// SaveIntent stores intent, assigning IDs to it and its bindings when they have none.
func (s *IntentStore) SaveIntent(_ context.Context, intent *domain.TradeIntent) (int64, error) {
	if intent == nil {
		return 0, fmt.Errorf("%w: intent is nil", ports.ErrInvalidArgument)
	}
	if err := intent.Side.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ports.ErrInvalidArgument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for field, b := range intent.Bindings {
		b.Field = field
		saved, err := s.saveBinding(b)
		if err != nil {
			return 0, err
		}
		intent.Bindings[field] = saved
	}

	stored := cloneIntent(intent)
	if stored.ID == 0 {
		s.nextID++
		stored.ID = s.nextID
	} else if stored.ID > s.nextID {
		s.nextID = stored.ID
	}
	s.data[stored.ID] = stored
	intent.ID = stored.ID
	return stored.ID, nil
}

// FindIntents returns the intents of symbol and kind ordered by timestamp.
func (s *IntentStore) FindIntents(_ context.Context, symbol domain.Symbol, kind domain.IntentKind) ([]*domain.TradeIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeIntent
	for _, intent := range s.data {
		if intent.Kind == kind && intent.Symbol.SameMarket(symbol) && intent.Symbol.Interval == symbol.Interval {
			result = append(result, cloneIntent(intent))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func cloneIntent(t *domain.TradeIntent) *domain.TradeIntent {
	c := *t
	if t.Bindings != nil {
		c.Bindings = make(map[domain.PriceField]domain.Binding, len(t.Bindings))
		for k, v := range t.Bindings {
			c.Bindings[k] = v
		}
	}
	return &c
}
