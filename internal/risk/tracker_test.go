package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerRecord(t *testing.T) {
	tracker := NewTracker()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tracker.Record(start, 2, -1)
	tracker.Record(start.Add(time.Minute), 5, 1)
	tracker.Record(start.Add(2*time.Minute), 3, -4)

	assert.Len(t, tracker.Points(), 3)
	assert.Equal(t, 5.0, tracker.MaxReward())
	assert.Equal(t, 4.0, tracker.MaxRisk())
	assert.InDelta(t, 1.25, tracker.Ratio(), 1e-9)
}

func TestTrackerPointsIsCopy(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(time.Now(), 1, -1)

	points := tracker.Points()
	points[0].Reward = 100

	assert.Equal(t, 1.0, tracker.Points()[0].Reward)
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name     string
		reward   float64
		risk     float64
		expected float64
	}{
		{"positive risk", 6, 2, 3},
		{"negative risk", 6, -2, 3},
		{"no reward no risk", 0, 0, 0},
		{"riskless reward", 1, 0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Ratio(tt.reward, tt.risk))
		})
	}
}
