package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalDuration(t *testing.T) {
	tests := []struct {
		interval string
		expected time.Duration
		wantErr  bool
	}{
		{"1m", time.Minute, false},
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"1M", 30 * 24 * time.Hour, false},
		{"7m", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			d, err := IntervalDuration(tt.interval)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestElapsedTime(t *testing.T) {
	d := 2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second
	assert.Equal(t, "2:3:4:5", ElapsedTime(d))
	assert.Equal(t, "0:0:0:0", ElapsedTime(0))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 133.33, Round(133.333333, 2))
	assert.Equal(t, -41.67, Round(-41.666666, 2))
	assert.Equal(t, 0.13, Round(0.125, 2))
}
