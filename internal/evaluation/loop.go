package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
	"tradeEvaluator/internal/utils"
)

// timeUnit separates a fill from the opening of the bar that follows it.
const timeUnit = time.Second

// LoopConfig controls how a TradeLoop ends a trade.
type LoopConfig struct {
	StopAtExit    bool          // Stop an open position at the exit intent's bar close
	Timeout       time.Duration // Force-stop after this long in the market, 0 disables
	LogRiskReward bool          // Record the risk/reward history while entered
}

// DefaultLoopConfig returns the default loop configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		StopAtExit:    true,
		Timeout:       1440 * time.Minute,
		LogRiskReward: true,
	}
}

// TradeLoop drives a TradeStatus bar by bar over a symbol's series.
// It can be resumed with later end dates while the trade is still open.
type TradeLoop struct {
	entry      *domain.TradeIntent
	symbol     domain.Symbol
	config     LoopConfig
	bars       ports.BarRepository
	savePoints ports.SavePointRepository
	logger     ports.Logger

	status      *TradeStatus
	firstBar    *domain.Bar
	startDate   time.Time
	timeoutDate time.Time
	lastRunDate time.Time
	hasRun      bool
}

// NewTradeLoop prepares a scan of symbol's bars for entry, starting at the
// first bar opening at or after the entry's price date.
func NewTradeLoop(
	ctx context.Context,
	entry *domain.TradeIntent,
	symbol domain.Symbol,
	config LoopConfig,
	bars ports.BarRepository,
	savePoints ports.SavePointRepository,
	logger ports.Logger,
	actions ...TradeAction,
) (*TradeLoop, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: entry intent is required", ports.ErrInvalidArgument)
	}
	if !entry.Symbol.SameMarket(symbol) {
		return nil, fmt.Errorf("%w: evaluation symbol %s does not match intent symbol %s",
			ports.ErrInvalidArgument, symbol.Name, entry.Symbol.Name)
	}

	firstBar, err := bars.NextBarAtOrAfter(ctx, symbol, entry.PriceDate)
	if err != nil {
		return nil, fmt.Errorf("failed to find first bar for intent %d: %w", entry.ID, err)
	}

	return &TradeLoop{
		entry:      entry,
		symbol:     symbol,
		config:     config,
		bars:       bars,
		savePoints: savePoints,
		logger:     logger,
		status:     NewTradeStatus(entry, actions...),
		firstBar:   firstBar,
		startDate:  firstBar.OpenTime,
	}, nil
}

// Run scans up to the symbol's most recent bar.
func (l *TradeLoop) Run(ctx context.Context) (*TradeStatus, error) {
	last, err := l.bars.LastBar(ctx, l.symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to find last bar: %w", err)
	}
	if err := l.scanTo(ctx, last.OpenTime); err != nil {
		return nil, err
	}
	return l.status, nil
}

// RunToExit scans through the bar holding the exit intent's price date. A
// position still open afterwards is stopped at that bar's close when
// StopAtExit is set, otherwise the scan continues until the timeout.
func (l *TradeLoop) RunToExit(ctx context.Context, exit *domain.TradeIntent) (*TradeStatus, error) {
	if exit == nil {
		return nil, fmt.Errorf("%w: exit intent is required", ports.ErrInvalidArgument)
	}
	if !exit.Symbol.SameMarket(l.symbol) {
		return nil, fmt.Errorf("%w: exit symbol %s does not match %s", ports.ErrInvalidArgument, exit.Symbol.Name, l.symbol.Name)
	}
	if !exit.PriceDate.After(l.entry.PriceDate) {
		return nil, fmt.Errorf("%w: exit date %s must be after entry date %s",
			ports.ErrLogic, exit.PriceDate.Format(time.RFC3339), l.entry.PriceDate.Format(time.RFC3339))
	}
	if l.hasRun && !exit.PriceDate.After(l.lastRunDate) {
		return nil, fmt.Errorf("%w: exit date is not after the last scanned bar", ports.ErrInvalidArgument)
	}

	if err := l.scanTo(ctx, exit.PriceDate); err != nil {
		return nil, err
	}

	position := l.status.Position()
	if position == nil || !position.IsOpen() || l.status.IsAmbiguous() {
		return l.status, nil
	}

	last, err := l.LastBar(ctx)
	if err != nil {
		return nil, err
	}
	if l.config.StopAtExit {
		if err := l.stopAtClose(ctx, last, "Stopping at exit intent."); err != nil {
			return nil, err
		}
		return l.status, nil
	}

	priceDate, err := l.priceDate(ctx, last, nil)
	if err != nil {
		return nil, err
	}
	if l.shouldContinue(priceDate) {
		if err := l.Continue(ctx, l.timeoutDate); err != nil {
			return nil, err
		}
	}
	return l.status, nil
}

// Continue resumes the scan from the bar after the last scanned one through end.
func (l *TradeLoop) Continue(ctx context.Context, end time.Time) error {
	if !l.hasRun {
		return fmt.Errorf("%w: loop has not run yet", ports.ErrLogic)
	}
	if !end.After(l.lastRunDate) {
		return fmt.Errorf("%w: end date %s must be after last run date %s",
			ports.ErrInvalidArgument, end.Format(time.RFC3339), l.lastRunDate.Format(time.RFC3339))
	}
	return l.scanTo(ctx, end)
}

func (l *TradeLoop) scanTo(ctx context.Context, end time.Time) error {
	start := l.startDate
	if l.hasRun {
		next, err := l.bars.NextBarAtOrAfter(ctx, l.symbol, l.lastRunDate.Add(time.Millisecond))
		if err != nil {
			return fmt.Errorf("failed to find bar after %s: %w", l.lastRunDate.Format(time.RFC3339), err)
		}
		start = next.OpenTime
	}

	bars, err := l.bars.BarsBetween(ctx, l.symbol, start, end)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("failed to load bars: %w", err)
	}
	return l.runLoop(ctx, bars)
}

func (l *TradeLoop) runLoop(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: cannot scan an empty range", ports.ErrLogic)
	}
	for _, bar := range bars {
		if bar.Symbol != l.symbol.Name || (bar.Interval != "" && bar.Interval != l.symbol.Interval) {
			return fmt.Errorf("%w: bar %s/%s does not belong to %s/%s",
				ports.ErrInvalidArgument, bar.Symbol, bar.Interval, l.symbol.Name, l.symbol.Interval)
		}
	}

	points, err := l.loadSavePoints(ctx, bars[0].OpenTime, bars[len(bars)-1].OpenTime)
	if err != nil {
		return err
	}

	status := l.status
	var last *domain.Bar
	for i, bar := range bars {
		last = bar
		var next *domain.Bar
		if i+1 < len(bars) {
			next = bars[i+1]
		}

		if !status.IsEntered() {
			l.applyBinding(status.EntryPrice(), domain.FieldPrice, points, bar.OpenTime)
			status.UpdateLowestHighestEntryPrice(bar)
			if err := l.tryEntry(ctx, bar, next); err != nil {
				return err
			}
			continue
		}
		if status.IsExited() || status.IsAmbiguous() {
			break
		}

		if l.config.LogRiskReward {
			if err := status.LogRiskReward(bar, bar.OpenTime); err != nil {
				return err
			}
		}

		l.applyBinding(status.StopPrice(), domain.FieldStopPrice, points, bar.OpenTime)
		l.applyBinding(status.ClosePrice(), domain.FieldClosePrice, points, bar.OpenTime)
		if err := l.tryExit(ctx, bar, next); err != nil {
			return err
		}

		if status.IsExited() || status.IsAmbiguous() {
			break
		}
	}

	l.lastRunDate = last.OpenTime
	l.hasRun = true

	lowest, highest, err := l.bars.ExtremesBetween(ctx, l.symbol, l.startDate, l.lastRunDate)
	if err != nil {
		return fmt.Errorf("failed to load extremes: %w", err)
	}
	status.UpdateHighestLowestPrice(highest, lowest)
	return nil
}

func (l *TradeLoop) tryEntry(ctx context.Context, bar, next *domain.Bar) error {
	if !l.status.CanEnter(bar) {
		return nil
	}
	priceDate, err := l.priceDate(ctx, bar, next)
	if err != nil {
		return err
	}
	if err := l.status.EnterPosition(priceDate); err != nil {
		return err
	}
	if l.config.Timeout > 0 && l.timeoutDate.IsZero() {
		l.timeoutDate = priceDate.Add(l.config.Timeout)
	}

	l.logger.Debug(ctx, "Position entered", map[string]interface{}{
		"intentID": l.entry.ID,
		"price":    l.status.EntryPrice().Get(),
		"time":     priceDate,
	})
	return nil
}

func (l *TradeLoop) tryExit(ctx context.Context, bar, next *domain.Bar) error {
	position := l.status.Position()
	stopped, closed := l.status.CheckExit(bar)

	switch {
	case l.status.IsAmbiguous():
		l.logger.Warn(ctx, "Stop and close both triggered within one bar", map[string]interface{}{
			"intentID": l.entry.ID,
			"bar":      bar.OpenTime,
		})
		return nil
	case stopped || closed:
		priceDate, err := l.priceDate(ctx, bar, next)
		if err != nil {
			return err
		}
		if stopped {
			return position.Stop(priceDate)
		}
		return position.Close(priceDate)
	}

	priceDate, err := l.priceDate(ctx, bar, next)
	if err != nil {
		return err
	}
	if err := l.status.RunTradeActions(bar, priceDate); err != nil {
		return err
	}
	if l.config.Timeout > 0 && !l.timeoutDate.After(priceDate) {
		return l.stopAtClose(ctx, bar, "Trade timed out. Stopping.")
	}
	return nil
}

func (l *TradeLoop) stopAtClose(ctx context.Context, bar *domain.Bar, reason string) error {
	priceDate, err := l.priceDate(ctx, bar, nil)
	if err != nil {
		return err
	}
	if err := l.status.ForceStop(bar.Close, priceDate, reason); err != nil {
		return err
	}
	l.logger.Debug(ctx, reason, map[string]interface{}{
		"intentID": l.entry.ID,
		"price":    bar.Close,
		"time":     priceDate,
	})
	return nil
}

func (l *TradeLoop) shouldContinue(priceDate time.Time) bool {
	return !l.timeoutDate.IsZero() && l.timeoutDate.After(priceDate)
}

// priceDate is the instant just before the bar following bar opens.
// For the series' last bar it falls back to the symbol's last update.
func (l *TradeLoop) priceDate(ctx context.Context, bar, next *domain.Bar) (time.Time, error) {
	if next != nil {
		return next.OpenTime.Add(-timeUnit), nil
	}
	following, err := l.bars.NextBarAtOrAfter(ctx, l.symbol, bar.OpenTime.Add(time.Millisecond))
	if err == nil {
		return following.OpenTime.Add(-timeUnit), nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return time.Time{}, fmt.Errorf("failed to find bar after %s: %w", bar.OpenTime.Format(time.RFC3339), err)
	}
	return l.lastUpdate(bar)
}

func (l *TradeLoop) lastUpdate(last *domain.Bar) (time.Time, error) {
	if !l.symbol.LastUpdate.IsZero() {
		return l.symbol.LastUpdate, nil
	}
	interval, err := utils.IntervalDuration(l.symbol.Interval)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ports.ErrInvalidArgument, err)
	}
	return last.OpenTime.Add(interval - timeUnit), nil
}

func (l *TradeLoop) loadSavePoints(ctx context.Context, start, end time.Time) (map[domain.PriceField][]domain.SavePoint, error) {
	if len(l.entry.Bindings) == 0 {
		return nil, nil
	}
	if l.entry.Timestamp.Before(start) {
		start = l.entry.Timestamp
	}
	points := make(map[domain.PriceField][]domain.SavePoint, len(l.entry.Bindings))
	for field, binding := range l.entry.Bindings {
		series, err := l.savePoints.SavePointsBetween(ctx, binding, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load save points for %s: %w", binding.Name, err)
		}
		points[field] = series
	}
	return points, nil
}

func (l *TradeLoop) applyBinding(price *Price, field domain.PriceField, points map[domain.PriceField][]domain.SavePoint, ts time.Time) {
	if price == nil || price.IsLocked() {
		return
	}
	binding, ok := l.entry.Binding(field)
	if !ok {
		return
	}
	if value, ok := domain.SavePointAt(points[field], ts); ok && value > 0 {
		price.Set(value, ts, "Binding: "+binding.Name, false)
	}
}

// LastBar returns the last scanned bar.
func (l *TradeLoop) LastBar(ctx context.Context) (*domain.Bar, error) {
	if !l.hasRun {
		return nil, fmt.Errorf("%w: loop has not run yet", ports.ErrLogic)
	}
	return l.bars.NextBarAtOrAfter(ctx, l.symbol, l.lastRunDate)
}

func (l *TradeLoop) Status() *TradeStatus { return l.status }
func (l *TradeLoop) StartDate() time.Time { return l.startDate }
func (l *TradeLoop) TimeoutDate() time.Time { return l.timeoutDate }

// LastRunDate returns the open time of the last scanned bar, zero before any scan.
func (l *TradeLoop) LastRunDate() time.Time { return l.lastRunDate }
