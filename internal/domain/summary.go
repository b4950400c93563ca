package domain

import "time"

// Summary aggregates a series of evaluations.
type Summary struct {
	RunID string

	Total     int // Evaluations considered, ambiguous ones included
	Ambiguous int
	Failed    int // Entry price never traded
	Profit    int
	Loss      int

	ROI             float64 // Sum of realized ROI
	AvgROI          float64
	AvgHighestROI   float64
	AvgLowestROI    float64
	SuccessRatio    float64
	RiskRewardRatio float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	MaxDrawdown          float64 // In ROI percentage points
	AverageTradeDuration time.Duration
	EquityCurve          []EquityPoint
}

// EquityPoint is one point of the cumulative realized ROI curve.
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}
