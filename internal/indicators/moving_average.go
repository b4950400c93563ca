package indicators

import (
	"fmt"

	"tradeEvaluator/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	SimpleMovingAverage      MovingAverageType = "SMA"
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverage computes SMA or EMA lines over bar closes.
type MovingAverage struct {
	period int
	kind   MovingAverageType
}

// NewMovingAverage creates a moving average of the given type.
func NewMovingAverage(period int, kind MovingAverageType) *MovingAverage {
	return &MovingAverage{period: period, kind: kind}
}

func (m *MovingAverage) Name() string            { return fmt.Sprintf("%s(%d)", m.kind, m.period) }
func (m *MovingAverage) RequiredDataPoints() int { return m.period }

// Line computes the moving average at every bar from the period-th on.
// The EMA is seeded with the SMA of the first period closes.
func (m *MovingAverage) Line(bars []*domain.Bar) ([]float64, error) {
	if m.kind != SimpleMovingAverage && m.kind != ExponentialMovingAverage {
		return nil, fmt.Errorf("unsupported moving average type: %s", m.kind)
	}
	if err := checkLength(m.Name(), bars, m.period); err != nil {
		return nil, err
	}

	line := make([]float64, len(bars))
	var window float64
	for i := 0; i < m.period; i++ {
		window += bars[i].Close
	}
	line[m.period-1] = window / float64(m.period)

	multiplier := 2.0 / float64(m.period+1)
	for i := m.period; i < len(bars); i++ {
		if m.kind == SimpleMovingAverage {
			window += bars[i].Close - bars[i-m.period].Close
			line[i] = window / float64(m.period)
			continue
		}
		line[i] = (bars[i].Close-line[i-1])*multiplier + line[i-1]
	}
	return line, nil
}
