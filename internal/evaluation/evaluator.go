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

// EvaluatorConfig holds the evaluator settings.
type EvaluatorConfig struct {
	// Interval of the fine-grained bars used to replay a trade.
	Interval string
}

// DefaultEvaluatorConfig replays trades on one-minute bars.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{Interval: "1m"}
}

// Evaluator reconciles a historical entry/exit pair against fine-grained bars
// and persists the outcome, backfilling earlier evaluations that exit at the
// new entry.
type Evaluator struct {
	config      EvaluatorConfig
	bars        ports.BarRepository
	savePoints  ports.SavePointRepository
	evaluations ports.EvaluationRepository
	logger      ports.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(
	config EvaluatorConfig,
	bars ports.BarRepository,
	savePoints ports.SavePointRepository,
	evaluations ports.EvaluationRepository,
	logger ports.Logger,
) *Evaluator {
	if config.Interval == "" {
		config.Interval = DefaultEvaluatorConfig().Interval
	}
	return &Evaluator{
		config:      config,
		bars:        bars,
		savePoints:  savePoints,
		evaluations: evaluations,
		logger:      logger,
	}
}

// Evaluate replays entry through exit and upserts the resulting evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, entry, exit *domain.TradeIntent) (*domain.Evaluation, error) {
	if err := assertPair(entry, exit); err != nil {
		return nil, err
	}

	evaluation := &domain.Evaluation{
		Type:    entry.Kind,
		EntryID: entry.ID,
		ExitID:  exit.ID,
		Symbol:  entry.Symbol.Name,
		Side:    entry.Side,
	}
	if err := e.realize(ctx, evaluation, entry, exit); err != nil {
		return nil, err
	}
	if err := e.keepConfirmedExit(ctx, evaluation, entry.Symbol); err != nil {
		return nil, err
	}

	stored, err := e.evaluations.UpsertEvaluation(ctx, evaluation)
	if err != nil {
		return nil, fmt.Errorf("failed to store evaluation %d/%d: %w", entry.ID, exit.ID, err)
	}

	if stored.IsEntryPriceValid {
		if err := e.completePrevious(ctx, stored, entry.Symbol); err != nil {
			return nil, err
		}
	}

	e.logger.Debug(ctx, "Evaluated trade", map[string]interface{}{
		"entryID":   entry.ID,
		"exitID":    exit.ID,
		"entered":   stored.IsEntryPriceValid,
		"ambiguous": stored.IsAmbiguous,
	})
	return stored, nil
}

func assertPair(entry, exit *domain.TradeIntent) error {
	if entry == nil {
		return fmt.Errorf("%w: entry intent is required", ports.ErrInvalidArgument)
	}
	if exit == nil {
		return fmt.Errorf("%w: exit intent for entry %d does not exist", ports.ErrInvalidArgument, entry.ID)
	}
	if entry.Kind != exit.Kind {
		return fmt.Errorf("%w: cannot pair a %s with a %s", ports.ErrInvalidArgument, entry.Kind, exit.Kind)
	}
	if !entry.Symbol.SameMarket(exit.Symbol) {
		return fmt.Errorf("%w: entry symbol %s does not match exit symbol %s",
			ports.ErrInvalidArgument, entry.Symbol.Name, exit.Symbol.Name)
	}
	if !exit.Timestamp.After(entry.Timestamp) {
		return fmt.Errorf("%w: exit %d must be newer than entry %d", ports.ErrLogic, exit.ID, entry.ID)
	}
	return nil
}

func (e *Evaluator) realize(ctx context.Context, evaluation *domain.Evaluation, entry, exit *domain.TradeIntent) error {
	fine := entry.Symbol.WithInterval(e.config.Interval)

	first, err := e.bars.NextBarAtOrAfter(ctx, entry.Symbol, entry.Timestamp.Add(time.Millisecond))
	if err != nil {
		return fmt.Errorf("failed to find bar after entry %d: %w", entry.ID, err)
	}
	end, err := e.rangeEnd(ctx, entry.Symbol, fine, exit.Timestamp)
	if err != nil {
		return err
	}

	bars, err := e.bars.BarsBetween(ctx, fine, first.OpenTime, end)
	if errors.Is(err, ports.ErrNotFound) || (err == nil && len(bars) == 0) {
		return fmt.Errorf("%w: no %s bars to scan for entry %d", ports.ErrLogic, e.config.Interval, entry.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s bars for entry %d: %w", e.config.Interval, entry.ID, err)
	}
	lowest, highest := domain.Extremes(bars)
	evaluation.HighestPrice = highest.High
	evaluation.LowestPrice = lowest.Low

	points := make(map[domain.PriceField][]domain.SavePoint, len(entry.Bindings))
	for field, binding := range entry.Bindings {
		series, err := e.savePoints.SavePointsBetween(ctx, binding, first.OpenTime, end)
		if err != nil {
			return fmt.Errorf("failed to load save points for %s: %w", binding.Name, err)
		}
		points[field] = series
	}

	lowestEntry, highestEntry := 0.0, 0.0
	var entered, stopped, closed, ambiguous bool
	var stopPrice, closePrice *float64

	for i, bar := range bars {
		entryPrice := resolveField(entry, points, domain.FieldPrice, entry.Price, bar.OpenTime)
		stopPrice = resolveField(entry, points, domain.FieldStopPrice, entry.StopPrice, bar.OpenTime)
		closePrice = resolveField(entry, points, domain.FieldClosePrice, entry.ClosePrice, bar.OpenTime)

		if !entered {
			if i == 0 || bar.Low < lowestEntry {
				lowestEntry = bar.Low
			}
			if bar.High > highestEntry {
				highestEntry = bar.High
			}
			if entryPrice != nil && bar.Contains(*entryPrice) {
				entered = true
				evaluation.EntryPrice = entryPrice
				evaluation.EntryTimestamp = bar.OpenTime
				evaluation.HighestEntryPrice = domain.Float(highestEntry)
				evaluation.LowestEntryPrice = domain.Float(lowestEntry)
			}
		}

		if entered {
			stopped = stopPrice != nil && bar.Contains(*stopPrice)
			closed = closePrice != nil && bar.Contains(*closePrice)
			if stopped || closed {
				ambiguous = stopped && closed
				evaluation.ExitTimestamp = bar.OpenTime
				break
			}
		}
	}

	evaluation.StopPrice = stopPrice
	evaluation.ClosePrice = closePrice
	evaluation.IsStopped = stopped
	evaluation.IsClosed = closed
	evaluation.IsAmbiguous = ambiguous
	evaluation.IsEntryPriceValid = entered

	return e.calcHighLowRealROI(ctx, evaluation, fine)
}

// rangeEnd is the open time of the bar after the exit bar, or the last fine
// bar when the exit sits on the most recent bar.
func (e *Evaluator) rangeEnd(ctx context.Context, symbol, fine domain.Symbol, exitTime time.Time) (time.Time, error) {
	next, err := e.bars.NextBarAtOrAfter(ctx, symbol, exitTime.Add(time.Millisecond))
	if err == nil {
		return next.OpenTime, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return time.Time{}, fmt.Errorf("failed to find bar after exit: %w", err)
	}
	last, err := e.bars.LastBar(ctx, fine)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to find last %s bar: %w", fine.Interval, err)
	}
	return last.OpenTime, nil
}

// resolveField returns the bound value as of ts when the field has a binding,
// otherwise the static value. Nil means the field has no usable price.
func resolveField(entry *domain.TradeIntent, points map[domain.PriceField][]domain.SavePoint, field domain.PriceField, static float64, ts time.Time) *float64 {
	if _, bound := entry.Binding(field); bound {
		if value, ok := domain.SavePointAt(points[field], ts); ok && value > 0 {
			return domain.Float(value)
		}
		return nil
	}
	if static > 0 {
		return domain.Float(static)
	}
	return nil
}

func (e *Evaluator) calcHighLowRealROI(ctx context.Context, evaluation *domain.Evaluation, fine domain.Symbol) error {
	if !evaluation.IsEntryPriceValid || evaluation.IsAmbiguous || evaluation.EntryPrice == nil {
		return nil
	}

	entryPrice := *evaluation.EntryPrice
	best, worst := evaluation.HighestPrice, evaluation.LowestPrice
	if evaluation.Side == domain.Short {
		best, worst = worst, best
	}
	evaluation.HighestROI = domain.Float(CalcROI(evaluation.Side, entryPrice, best))
	evaluation.LowestROI = domain.Float(CalcROI(evaluation.Side, entryPrice, worst))

	exitPrice, ok := exitPrice(evaluation)
	if !ok {
		// Resolved once a later evaluation confirms this exit.
		return nil
	}

	if err := e.calcHighestLowestPricesToExit(ctx, evaluation, fine); err != nil {
		return err
	}
	evaluation.RealizedROI = domain.Float(CalcROI(evaluation.Side, entryPrice, exitPrice))
	return nil
}

func exitPrice(evaluation *domain.Evaluation) (float64, bool) {
	switch {
	case evaluation.IsStopped && evaluation.StopPrice != nil:
		return *evaluation.StopPrice, true
	case evaluation.IsClosed && evaluation.ClosePrice != nil:
		return *evaluation.ClosePrice, true
	case evaluation.IsExitPriceValid && evaluation.ExitPrice != nil:
		return *evaluation.ExitPrice, true
	default:
		return 0, false
	}
}

// CalcROI returns the percent return from entry to exit for side, rounded to two decimals.
func CalcROI(side domain.Side, entry, exit float64) float64 {
	roi := (exit - entry) * 100 / entry
	if side == domain.Short {
		roi = -roi
	}
	return utils.Round(roi, 2)
}

// calcHighestLowestPricesToExit finds how far price went against the trade
// before its best and worst points between entry and exit.
func (e *Evaluator) calcHighestLowestPricesToExit(ctx context.Context, evaluation *domain.Evaluation, fine domain.Symbol) error {
	entryTime, exitTime := evaluation.EntryTimestamp, evaluation.ExitTimestamp
	if entryTime.IsZero() || exitTime.IsZero() {
		return fmt.Errorf("%w: evaluation entry and exit must be realized", ports.ErrLogic)
	}
	if !entryTime.Before(exitTime) {
		return nil
	}

	bars, err := e.bars.BarsBetween(ctx, fine, entryTime, exitTime)
	if err != nil {
		return fmt.Errorf("failed to load bars to exit: %w", err)
	}
	lowest, highest := domain.Extremes(bars)

	if lowest.OpenTime.After(entryTime) {
		low, _ := domain.Extremes(barsUntil(bars, highest.OpenTime))
		evaluation.LowestPriceToHighestExit = domain.Float(low.Low)
	}
	if highest.OpenTime.After(entryTime) {
		_, high := domain.Extremes(barsUntil(bars, lowest.OpenTime))
		evaluation.HighestPriceToLowestExit = domain.Float(high.High)
	}
	return nil
}

// barsUntil returns the prefix of ordered bars opening at or before end.
func barsUntil(bars []*domain.Bar, end time.Time) []*domain.Bar {
	for i, bar := range bars {
		if bar.OpenTime.After(end) {
			return bars[:i]
		}
	}
	return bars
}

// keepConfirmedExit restores the exit a later evaluation already confirmed for
// this pair, so re-evaluating it does not drop the chained exit price.
func (e *Evaluator) keepConfirmedExit(ctx context.Context, evaluation *domain.Evaluation, symbol domain.Symbol) error {
	existing, err := e.evaluations.FindEvaluationsWithExit(ctx, evaluation.Type, evaluation.ExitID)
	if err != nil {
		return fmt.Errorf("failed to find evaluations exiting at %d: %w", evaluation.ExitID, err)
	}
	for _, prev := range existing {
		if prev.EntryID != evaluation.EntryID || !prev.IsExitPriceValid {
			continue
		}
		evaluation.ExitPrice = prev.ExitPrice
		evaluation.IsExitPriceValid = true
		if !evaluation.IsStopped && !evaluation.IsClosed {
			evaluation.ExitTimestamp = prev.ExitTimestamp
		}
		return e.calcHighLowRealROI(ctx, evaluation, symbol.WithInterval(e.config.Interval))
	}
	return nil
}

// completePrevious backfills the exit of every evaluation that exits where current enters.
func (e *Evaluator) completePrevious(ctx context.Context, current *domain.Evaluation, symbol domain.Symbol) error {
	previous, err := e.evaluations.FindEvaluationsWithExit(ctx, current.Type, current.EntryID)
	if err != nil {
		return fmt.Errorf("failed to find evaluations exiting at %d: %w", current.EntryID, err)
	}

	fine := symbol.WithInterval(e.config.Interval)
	for _, prev := range previous {
		prev.ExitPrice = current.EntryPrice
		prev.IsExitPriceValid = current.IsEntryPriceValid
		if prev.IsExitPriceValid {
			if !prev.IsStopped && !prev.IsClosed {
				prev.ExitTimestamp = current.EntryTimestamp
			}
			if err := e.calcHighLowRealROI(ctx, prev, fine); err != nil {
				return err
			}
		}
		if _, err := e.evaluations.UpsertEvaluation(ctx, prev); err != nil {
			return fmt.Errorf("failed to update evaluation %d: %w", prev.ID, err)
		}
	}
	return nil
}
