package domain

import "time"

// IntentKind tags the origin of a trade intent.
type IntentKind string

const (
	KindSetup  IntentKind = "setup"  // Produced by a strategy combining several signals
	KindSignal IntentKind = "signal" // Produced directly by a single indicator
)

// PriceField names one of the re-priceable fields of an intent.
type PriceField string

const (
	FieldPrice      PriceField = "price"
	FieldStopPrice  PriceField = "stop_price"
	FieldClosePrice PriceField = "close_price"
)

// Binding maps an intent's price field to an external time-indexed value source,
// such as an indicator line. Its values are stored as save points.
type Binding struct {
	ID    int64
	Name  string // e.g. "RSI(14)"
	Field PriceField
}

// SavePoint is one recorded value of a binding.
type SavePoint struct {
	Timestamp time.Time
	Value     float64
}

// SavePointAt returns the value of the last save point at or before ts.
// Points must be ordered by timestamp ascending.
func SavePointAt(points []SavePoint, ts time.Time) (float64, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if !points[i].Timestamp.After(ts) {
			return points[i].Value, true
		}
	}
	return 0, false
}

// TradeIntent is a proposed trade: either a Setup or a Signal.
// Zero StopPrice or ClosePrice means the intent has no such condition.
type TradeIntent struct {
	ID         int64
	Kind       IntentKind
	Symbol     Symbol
	Side       Side
	Timestamp  time.Time // Open time of the bar the intent was produced on
	PriceDate  time.Time // Instant the intent becomes actionable
	Price      float64
	StopPrice  float64
	ClosePrice float64
	Size       float64 // Normalized size, MaxPositionSize when zero
	Bindings   map[PriceField]Binding
}

// Binding returns the binding registered for field, if any.
func (t *TradeIntent) Binding(field PriceField) (Binding, bool) {
	if t.Bindings == nil {
		return Binding{}, false
	}
	b, ok := t.Bindings[field]
	return b, ok
}

// PositionSize returns the size a position opened from this intent should use.
func (t *TradeIntent) PositionSize() float64 {
	if t.Size <= 0 {
		return MaxPositionSize
	}
	return t.Size
}

// IsBuy reports whether the intent is long.
func (t *TradeIntent) IsBuy() bool {
	return t.Side == Long
}
