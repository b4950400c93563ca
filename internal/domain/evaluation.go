package domain

import "time"

// Evaluation is the reconciled outcome of one entry/exit intent pair.
// It is unique per (Type, EntryID, ExitID). Nil pointers mean "not resolved".
type Evaluation struct {
	ID      int64
	Type    IntentKind
	EntryID int64
	ExitID  int64
	Symbol  string
	Side    Side // Side of the entry intent

	EntryPrice *float64
	ExitPrice  *float64 // Confirmed through the next evaluation's entry (chaining)
	StopPrice  *float64
	ClosePrice *float64

	HighestPrice             float64
	LowestPrice              float64
	HighestEntryPrice        *float64
	LowestEntryPrice         *float64
	HighestPriceToLowestExit *float64
	LowestPriceToHighestExit *float64

	EntryTimestamp time.Time
	ExitTimestamp  time.Time

	IsEntryPriceValid bool
	IsExitPriceValid  bool
	IsStopped         bool
	IsClosed          bool
	IsAmbiguous       bool

	RealizedROI *float64
	HighestROI  *float64
	LowestROI   *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExitResolved reports whether an exit price is known for the evaluation.
func (e *Evaluation) ExitResolved() bool {
	return e.IsStopped || e.IsClosed || e.IsExitPriceValid
}
