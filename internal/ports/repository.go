package ports

import (
	"context"
	"time"

	"tradeEvaluator/internal/domain"
)

// BarRepository provides read access to a symbol's bar series.
// The symbol's Interval selects the series.
type BarRepository interface {
	// NextBarAtOrAfter returns the first bar opening at or after ts.
	// Returns ErrNotFound if there is none.
	NextBarAtOrAfter(ctx context.Context, symbol domain.Symbol, ts time.Time) (*domain.Bar, error)
	// BarsBetween returns bars opening within [start, end], ordered by open time.
	// Returns ErrNotFound if the range holds no bars.
	BarsBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) ([]*domain.Bar, error)
	// ExtremesBetween returns the bars with the lowest low and highest high within [start, end].
	// Returns ErrNotFound if the range holds no bars.
	ExtremesBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) (lowest, highest *domain.Bar, err error)
	// LastBar returns the most recent bar of the series. Returns ErrNotFound if the series is empty.
	LastBar(ctx context.Context, symbol domain.Symbol) (*domain.Bar, error)
}

// BarWriter stores bars. Existing bars with the same (symbol, interval, open time) are replaced.
type BarWriter interface {
	SaveBars(ctx context.Context, bars []*domain.Bar) error
}

// SavePointRepository provides the recorded values of bindings.
type SavePointRepository interface {
	// SavePointsBetween returns the binding's save points within [start, end], ordered by timestamp.
	SavePointsBetween(ctx context.Context, binding domain.Binding, start, end time.Time) ([]domain.SavePoint, error)
	// SaveSavePoints records values for a binding, replacing points with equal timestamps.
	SaveSavePoints(ctx context.Context, binding domain.Binding, points []domain.SavePoint) error
}

// EvaluationRepository persists evaluations keyed by (type, entry id, exit id).
type EvaluationRepository interface {
	// UpsertEvaluation inserts or updates the evaluation for its unique key and returns the stored row.
	UpsertEvaluation(ctx context.Context, e *domain.Evaluation) (*domain.Evaluation, error)
	// FindEvaluationsWithExit returns evaluations of the given type whose exit is exitID.
	FindEvaluationsWithExit(ctx context.Context, kind domain.IntentKind, exitID int64) ([]*domain.Evaluation, error)
	// FindEvaluations returns all evaluations of a symbol and type ordered by entry timestamp.
	FindEvaluations(ctx context.Context, symbol string, kind domain.IntentKind) ([]*domain.Evaluation, error)
}

// IntentRepository stores trade intents produced by strategies and indicators.
type IntentRepository interface {
	// SaveIntent stores the intent with its bindings and returns its ID.
	SaveIntent(ctx context.Context, intent *domain.TradeIntent) (int64, error)
	// FindIntents returns the intents of a symbol and kind ordered by timestamp, bindings included.
	FindIntents(ctx context.Context, symbol domain.Symbol, kind domain.IntentKind) ([]*domain.TradeIntent, error)
}

// BindingRepository registers bindings so their save points can be stored.
type BindingRepository interface {
	// SaveBinding returns b with the ID registered for its (name, field), assigning one if needed.
	SaveBinding(ctx context.Context, b domain.Binding) (domain.Binding, error)
}
