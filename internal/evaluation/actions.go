package evaluation

import (
	"fmt"
	"time"

	"tradeEvaluator/internal/domain"
)

// TradeAction is a per-bar effect on an open position that is not an exit,
// such as scaling in or out. Apply runs only on bars where neither exit triggered.
type TradeAction interface {
	Name() string
	Apply(status *TradeStatus, bar *domain.Bar, ts time.Time) error
}

// ScaleIn adds Size to the position once Price trades.
type ScaleIn struct {
	Price float64
	Size  float64
	done  bool
}

func (a *ScaleIn) Name() string { return fmt.Sprintf("scale-in %v@%v", a.Size, a.Price) }

func (a *ScaleIn) Apply(status *TradeStatus, bar *domain.Bar, _ time.Time) error {
	if a.done || !bar.Contains(a.Price) {
		return nil
	}
	a.done = true
	return status.Position().IncreaseSize(a.Size, a.Price)
}

// PartialClose removes Size from the position once Price trades.
type PartialClose struct {
	Price float64
	Size  float64
	done  bool
}

func (a *PartialClose) Name() string { return fmt.Sprintf("partial-close %v@%v", a.Size, a.Price) }

func (a *PartialClose) Apply(status *TradeStatus, bar *domain.Bar, _ time.Time) error {
	if a.done || !bar.Contains(a.Price) {
		return nil
	}
	a.done = true
	return status.Position().DecreaseSize(a.Size, a.Price)
}

// BreakEvenStop moves the stop to the break-even price and locks it once the
// position's best ROI within a bar reaches TriggerROI.
type BreakEvenStop struct {
	TriggerROI float64
	done       bool
}

func (a *BreakEvenStop) Name() string { return fmt.Sprintf("break-even-stop@%v%%", a.TriggerROI) }

func (a *BreakEvenStop) Apply(status *TradeStatus, bar *domain.Bar, ts time.Time) error {
	if a.done {
		return nil
	}
	position := status.Position()
	favourable := bar.High
	if position.Side() == domain.Short {
		favourable = bar.Low
	}
	roi, err := position.ROI(favourable)
	if err != nil {
		return err
	}
	if roi < a.TriggerROI {
		return nil
	}
	a.done = true

	breakeven := position.BreakEvenPrice()
	stop := status.StopPrice()
	if stop == nil {
		stop = NewPrice(breakeven)
		if err := position.AddStopPrice(stop); err != nil {
			return err
		}
		status.stopPrice = stop
		stop.Log(ts, "Break-even stop", true)
	} else {
		stop.Set(breakeven, ts, "Break-even stop", true)
	}
	stop.Lock()
	return nil
}
