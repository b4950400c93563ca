package indicators

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEvaluator/internal/adapters/memory"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func closes(values ...float64) []*domain.Bar {
	bars := make([]*domain.Bar, len(values))
	for i, v := range values {
		bars[i] = &domain.Bar{
			Symbol:   "ETHUSDT",
			Interval: "1h",
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     v, High: v, Low: v, Close: v,
		}
	}
	return bars
}

func TestMovingAverage_Line(t *testing.T) {
	bars := closes(100, 102, 101, 103, 104)

	tests := []struct {
		name     string
		ma       *MovingAverage
		expected []float64
	}{
		{"SMA", NewMovingAverage(3, SimpleMovingAverage), []float64{0, 0, 101, 102, 102.666667}},
		{"EMA", NewMovingAverage(3, ExponentialMovingAverage), []float64{0, 0, 101, 102, 103}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := tt.ma.Line(bars)
			require.NoError(t, err)
			require.Len(t, line, len(tt.expected))
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], line[i], 1e-6, "bar %d", i)
			}
		})
	}

	_, err := NewMovingAverage(6, SimpleMovingAverage).Line(bars)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
	_, err = NewMovingAverage(3, "WMA").Line(bars)
	assert.Error(t, err)
}

func TestRSI_Line(t *testing.T) {
	tests := []struct {
		name     string
		bars     []*domain.Bar
		expected []float64
	}{
		{
			name:     "Wilder smoothing",
			bars:     closes(100, 102, 101, 103, 102, 104),
			expected: []float64{0, 0, 0, 80, 61.538462, 77.272727},
		},
		{
			name:     "All gains",
			bars:     closes(100, 102, 104, 106),
			expected: []float64{0, 0, 0, 100},
		},
		{
			name:     "No change",
			bars:     closes(100, 100, 100, 100),
			expected: []float64{0, 0, 0, 50},
		},
		{
			name:     "All losses",
			bars:     closes(106, 104, 102, 100),
			expected: []float64{0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := NewRSI(3).Line(tt.bars)
			require.NoError(t, err)
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], line[i], 1e-6, "bar %d", i)
			}
		})
	}

	_, err := NewRSI(3).Line(closes(100, 101, 102))
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestATR_Line(t *testing.T) {
	bars := closes(9, 10, 11, 12)
	ranges := [][2]float64{{8, 10}, {9, 11}, {9, 12}, {11, 13}}
	for i, r := range ranges {
		bars[i].Low, bars[i].High = r[0], r[1]
	}

	line, err := NewATR(3).Line(bars)
	require.NoError(t, err)
	assert.InDelta(t, 20.0/9.0, line[3], 1e-9)

	_, err = NewATR(4).Line(bars)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		name    string
		wantErr bool
	}{
		{input: "sma:20", name: "SMA(20)"},
		{input: "EMA:21", name: "EMA(21)"},
		{input: " rsi:14 ", name: "RSI(14)"},
		{input: "atr:14", name: "ATR(14)"},
		{input: "ema", wantErr: true},
		{input: "ema:0", wantErr: true},
		{input: "ema:x", wantErr: true},
		{input: "macd:12", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ind, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, ind.Name())
		})
	}
}

func TestSavePoints_StampedAtBarClose(t *testing.T) {
	bars := closes(100, 102, 101, 103)

	points, err := SavePoints(NewMovingAverage(2, SimpleMovingAverage), bars)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, start.Add(2*time.Hour), points[0].Timestamp)
	assert.Equal(t, 101.0, points[0].Value)
	// The last bar has no successor, its close is derived from the interval.
	assert.Equal(t, start.Add(4*time.Hour), points[2].Timestamp)
	assert.Equal(t, 102.0, points[2].Value)
}

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	intents := memory.NewIntentStore()
	savePoints := memory.NewSavePointStore()
	recorder := NewRecorder(intents, savePoints, &mockLogger{})

	bars := closes(100, 102, 101, 103, 104)
	binding, err := recorder.Record(ctx, NewMovingAverage(3, SimpleMovingAverage), domain.FieldStopPrice, bars)
	require.NoError(t, err)
	assert.NotZero(t, binding.ID)
	assert.Equal(t, "SMA(3)", binding.Name)
	assert.Equal(t, domain.FieldStopPrice, binding.Field)

	points, err := savePoints.SavePointsBetween(ctx, binding, start, start.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 101.0, points[0].Value)

	// Recording again reuses the binding and replaces its points.
	again, err := recorder.Record(ctx, NewMovingAverage(3, SimpleMovingAverage), domain.FieldStopPrice, bars)
	require.NoError(t, err)
	assert.Equal(t, binding.ID, again.ID)
	points, err = savePoints.SavePointsBetween(ctx, binding, start, start.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Len(t, points, 3)

	_, err = recorder.Record(ctx, NewRSI(14), domain.FieldPrice, bars)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}
