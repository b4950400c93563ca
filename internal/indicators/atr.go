package indicators

import (
	"fmt"
	"math"

	"tradeEvaluator/internal/domain"
)

// ATR implements the Average True Range with Wilder's smoothing.
type ATR struct {
	period int
}

// NewATR creates an Average True Range indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string            { return fmt.Sprintf("ATR(%d)", a.period) }
func (a *ATR) RequiredDataPoints() int { return a.period + 1 }

// Line seeds the average with the first period true ranges, the first of them
// being the plain high-low range, and smooths from there.
func (a *ATR) Line(bars []*domain.Bar) ([]float64, error) {
	if err := checkLength(a.Name(), bars, a.RequiredDataPoints()); err != nil {
		return nil, err
	}
	period := float64(a.period)

	trueRange := func(i int) float64 {
		if i == 0 {
			return bars[0].High - bars[0].Low
		}
		prevClose := bars[i-1].Close
		return math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-prevClose), math.Abs(bars[i].Low-prevClose)))
	}

	var atr float64
	for i := 0; i < a.period; i++ {
		atr += trueRange(i)
	}
	atr /= period

	line := make([]float64, len(bars))
	for i := a.period; i < len(bars); i++ {
		atr = (atr*(period-1) + trueRange(i)) / period
		line[i] = atr
	}
	return line, nil
}
