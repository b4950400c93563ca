package indicators

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
	"tradeEvaluator/internal/utils"
)

// Indicator computes a value line over a bar series.
type Indicator interface {
	// Line returns one value per bar, aligned with bars. Entries before
	// RequiredDataPoints()-1 are not defined and are returned as zero.
	Line(bars []*domain.Bar) ([]float64, error)

	// RequiredDataPoints returns the number of bars needed for the first value.
	RequiredDataPoints() int

	// Name identifies the indicator and its parameters, e.g. "EMA(21)".
	Name() string
}

// Parse builds an indicator from "type:period", e.g. "ema:21" or "rsi:14".
func Parse(spec string) (Indicator, error) {
	kind, rawPeriod, ok := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), ":")
	if !ok {
		return nil, fmt.Errorf("%w: indicator %q must look like type:period", ports.ErrInvalidArgument, spec)
	}
	period, err := strconv.Atoi(rawPeriod)
	if err != nil || period < 1 {
		return nil, fmt.Errorf("%w: invalid period in indicator %q", ports.ErrInvalidArgument, spec)
	}

	switch kind {
	case "sma":
		return NewMovingAverage(period, SimpleMovingAverage), nil
	case "ema":
		return NewMovingAverage(period, ExponentialMovingAverage), nil
	case "rsi":
		return NewRSI(period), nil
	case "atr":
		return NewATR(period), nil
	default:
		return nil, fmt.Errorf("%w: unknown indicator type %q", ports.ErrInvalidArgument, kind)
	}
}

func checkLength(name string, bars []*domain.Bar, required int) error {
	if len(bars) < required {
		return fmt.Errorf("%w: not enough data (%d) to calculate %s, need %d", ports.ErrInvalidArgument, len(bars), name, required)
	}
	return nil
}

// SavePoints turns a line into save points. A value becomes known when its bar
// closes, so each point is stamped with the open time of the following bar.
func SavePoints(ind Indicator, bars []*domain.Bar) ([]domain.SavePoint, error) {
	line, err := ind.Line(bars)
	if err != nil {
		return nil, err
	}

	first := ind.RequiredDataPoints() - 1
	points := make([]domain.SavePoint, 0, len(bars)-first)
	for i := first; i < len(bars); i++ {
		ts, err := closeTime(bars, i)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.SavePoint{Timestamp: ts, Value: line[i]})
	}
	return points, nil
}

func closeTime(bars []*domain.Bar, i int) (time.Time, error) {
	if i+1 < len(bars) {
		return bars[i+1].OpenTime, nil
	}
	d, err := utils.IntervalDuration(bars[i].Interval)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ports.ErrInvalidArgument, err)
	}
	return bars[i].OpenTime.Add(d), nil
}
