package risk

import (
	"math"
	"time"
)

// Point is one risk/reward observation of an open position, in ROI percent.
type Point struct {
	Time   time.Time
	Reward float64 // Best return reachable within the bar
	Risk   float64 // Worst return reachable within the bar
}

// Tracker keeps the risk/reward history of a position while it is open.
type Tracker struct {
	points    []Point
	maxReward float64
	maxRisk   float64 // Most negative risk seen, as a positive magnitude
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends an observation and updates the running extremes.
func (t *Tracker) Record(ts time.Time, reward, risk float64) {
	t.points = append(t.points, Point{Time: ts, Reward: reward, Risk: risk})
	if reward > t.maxReward {
		t.maxReward = reward
	}
	if -risk > t.maxRisk {
		t.maxRisk = -risk
	}
}

// Points returns a copy of the history, oldest first.
func (t *Tracker) Points() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// MaxReward returns the highest reward observed, zero if never positive.
func (t *Tracker) MaxReward() float64 {
	return t.maxReward
}

// MaxRisk returns the largest adverse excursion observed as a positive number.
func (t *Tracker) MaxRisk() float64 {
	return t.maxRisk
}

// Ratio returns MaxReward over MaxRisk.
func (t *Tracker) Ratio() float64 {
	return Ratio(t.maxReward, t.maxRisk)
}

// Ratio divides reward by the magnitude of risk.
// A riskless positive reward yields +Inf; no reward and no risk yields 0.
func Ratio(reward, risk float64) float64 {
	risk = math.Abs(risk)
	if risk == 0 {
		if reward > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return reward / risk
}
