package evaluation

import (
	"fmt"
	"math"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
	"tradeEvaluator/internal/risk"
)

// TradeStatus is the lifecycle state of one trade: awaiting entry, entered,
// then stopped or closed. Ambiguity is an orthogonal flag set when a single
// bar satisfies both exit conditions.
type TradeStatus struct {
	entry *domain.TradeIntent

	entryPrice *Price
	stopPrice  *Price
	closePrice *Price

	position  *Position
	ambiguous bool

	lowestEntryPrice  float64
	highestEntryPrice float64

	lowestBar  *domain.Bar
	highestBar *domain.Bar

	riskReward *risk.Tracker
	actions    []TradeAction
}

// NewTradeStatus prepares the status of a trade that has not been entered yet.
// Actions are stateful and must not be shared between statuses.
func NewTradeStatus(entry *domain.TradeIntent, actions ...TradeAction) *TradeStatus {
	return &TradeStatus{
		entry:             entry,
		entryPrice:        NewPrice(entry.Price),
		stopPrice:         optionalPrice(entry, domain.FieldStopPrice, entry.StopPrice),
		closePrice:        optionalPrice(entry, domain.FieldClosePrice, entry.ClosePrice),
		lowestEntryPrice:  math.Inf(1),
		highestEntryPrice: 0,
		riskReward:        risk.NewTracker(),
		actions:           actions,
	}
}

// optionalPrice returns nil when the intent neither sets nor binds the field.
func optionalPrice(entry *domain.TradeIntent, field domain.PriceField, value float64) *Price {
	if _, bound := entry.Binding(field); value <= 0 && !bound {
		return nil
	}
	return NewPrice(value)
}

// UpdateLowestHighestEntryPrice widens the entry extremes with bar. Only meaningful before entry.
func (s *TradeStatus) UpdateLowestHighestEntryPrice(bar *domain.Bar) {
	if bar.Low < s.lowestEntryPrice {
		s.lowestEntryPrice = bar.Low
	}
	if bar.High > s.highestEntryPrice {
		s.highestEntryPrice = bar.High
	}
}

// EntryExtremes returns the lowest low and highest high seen while awaiting entry.
// ok is false if no bar was observed.
func (s *TradeStatus) EntryExtremes() (lowest, highest float64, ok bool) {
	if math.IsInf(s.lowestEntryPrice, 1) {
		return 0, 0, false
	}
	return s.lowestEntryPrice, s.highestEntryPrice, true
}

// CanEnter reports whether the entry price trades within bar.
func (s *TradeStatus) CanEnter(bar *domain.Bar) bool {
	return bar.Contains(s.entryPrice.Get())
}

// EnterPosition opens the position at the entry price's current value and locks it.
func (s *TradeStatus) EnterPosition(ts time.Time) error {
	if s.position != nil {
		return fmt.Errorf("%w: trade %d already entered", ports.ErrLogic, s.entry.ID)
	}
	position, err := OpenPosition(s.entry.Side, s.entry.PositionSize(), s.entryPrice, ts, s.stopPrice, s.closePrice)
	if err != nil {
		return fmt.Errorf("failed to enter trade %d: %w", s.entry.ID, err)
	}
	s.entryPrice.Lock()
	s.entryPrice.Log(ts, "Entered position", false)
	s.position = position
	return nil
}

// CheckIsStopped reports whether the stop price trades within bar.
func (s *TradeStatus) CheckIsStopped(bar *domain.Bar) bool {
	return s.stopPrice != nil && s.stopPrice.Get() > 0 && bar.Contains(s.stopPrice.Get())
}

// CheckIsClosed reports whether the close price trades within bar.
func (s *TradeStatus) CheckIsClosed(bar *domain.Bar) bool {
	return s.closePrice != nil && s.closePrice.Get() > 0 && bar.Contains(s.closePrice.Get())
}

// CheckExit evaluates both exit conditions against bar. When both hold the
// trade is flagged ambiguous and the caller must not commit either exit.
func (s *TradeStatus) CheckExit(bar *domain.Bar) (stopped, closed bool) {
	stopped = s.CheckIsStopped(bar)
	closed = s.CheckIsClosed(bar)
	if stopped && closed {
		s.ambiguous = true
	}
	return stopped, closed
}

// RunTradeActions applies the non-exit per-bar effects in registration order.
func (s *TradeStatus) RunTradeActions(bar *domain.Bar, ts time.Time) error {
	if s.position == nil || !s.position.IsOpen() {
		return nil
	}
	for _, action := range s.actions {
		if err := action.Apply(s, bar, ts); err != nil {
			return fmt.Errorf("trade action %s failed: %w", action.Name(), err)
		}
	}
	return nil
}

// LogRiskReward records the best and worst blended ROI reachable within bar.
func (s *TradeStatus) LogRiskReward(bar *domain.Bar, ts time.Time) error {
	if s.position == nil || !s.position.IsOpen() {
		return nil
	}
	atHigh, err := s.position.ROI(bar.High)
	if err != nil {
		return err
	}
	atLow, err := s.position.ROI(bar.Low)
	if err != nil {
		return err
	}
	s.riskReward.Record(ts, math.Max(atHigh, atLow), math.Min(atHigh, atLow))
	return nil
}

// ForceStop stops the position at value, overriding any lock on the stop price.
// A stop price is attached first if the trade had none.
func (s *TradeStatus) ForceStop(value float64, ts time.Time, reason string) error {
	if s.position == nil {
		return fmt.Errorf("%w: cannot stop a trade that was never entered", ports.ErrLogic)
	}
	if s.stopPrice != nil {
		s.stopPrice.Set(value, ts, reason, true)
	} else {
		stop := NewPrice(value)
		if err := s.position.AddStopPrice(stop); err != nil {
			return err
		}
		stop.Log(ts, reason, true)
		s.stopPrice = stop
	}
	return s.position.Stop(ts)
}

// UpdateHighestLowestPrice stores the extremes of the scanned span.
func (s *TradeStatus) UpdateHighestLowestPrice(highest, lowest *domain.Bar) {
	s.highestBar = highest
	s.lowestBar = lowest
}

// HighestPrice returns the highest high of the scanned span, zero before any scan.
func (s *TradeStatus) HighestPrice() float64 {
	if s.highestBar == nil {
		return 0
	}
	return s.highestBar.High
}

// LowestPrice returns the lowest low of the scanned span, zero before any scan.
func (s *TradeStatus) LowestPrice() float64 {
	if s.lowestBar == nil {
		return 0
	}
	return s.lowestBar.Low
}

func (s *TradeStatus) Entry() *domain.TradeIntent { return s.entry }
func (s *TradeStatus) Position() *Position { return s.position }
func (s *TradeStatus) EntryPrice() *Price { return s.entryPrice }
func (s *TradeStatus) StopPrice() *Price { return s.stopPrice }
func (s *TradeStatus) ClosePrice() *Price { return s.closePrice }
func (s *TradeStatus) IsAmbiguous() bool { return s.ambiguous }
func (s *TradeStatus) IsEntered() bool { return s.position != nil }
func (s *TradeStatus) RiskReward() *risk.Tracker { return s.riskReward }

// IsExited reports whether the position was stopped or closed.
func (s *TradeStatus) IsExited() bool {
	return s.position != nil && !s.position.IsOpen()
}
