package indicators

import (
	"fmt"

	"tradeEvaluator/internal/domain"
)

// RSI implements the Relative Strength Index with Wilder's smoothing.
type RSI struct {
	period int
}

// NewRSI creates an RSI over period close-to-close changes.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }

// RequiredDataPoints is one more than the period, since RSI works on changes.
func (r *RSI) RequiredDataPoints() int { return r.period + 1 }

func (r *RSI) Line(bars []*domain.Bar) ([]float64, error) {
	if err := checkLength(r.Name(), bars, r.RequiredDataPoints()); err != nil {
		return nil, err
	}
	period := float64(r.period)

	var avgGain, avgLoss float64
	for i := 1; i <= r.period; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= period
	avgLoss /= period

	line := make([]float64, len(bars))
	line[r.period] = rsiValue(avgGain, avgLoss)

	for i := r.period + 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(period-1) + gain) / period
		avgLoss = (avgLoss*(period-1) + loss) / period
		line[i] = rsiValue(avgGain, avgLoss)
	}
	return line, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // Neutral if no change
		}
		return 100
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	switch {
	case rsi > 100:
		return 100
	case rsi < 0:
		return 0
	}
	return rsi
}
