package evaluation

import (
	"testing"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPosition(t *testing.T, side domain.Side, size, price float64) *Position {
	t.Helper()
	p, err := OpenPosition(side, size, NewPrice(price), testStart, nil, nil)
	require.NoError(t, err)
	return p
}

func roi(t *testing.T, p *Position, price float64) float64 {
	t.Helper()
	v, err := p.ROI(price)
	require.NoError(t, err)
	return v
}

func TestOpenPositionROIIsZeroAtEntry(t *testing.T) {
	tests := []struct {
		side  domain.Side
		size  float64
		price float64
	}{
		{domain.Long, 1, 1},
		{domain.Long, 100, 2500.5},
		{domain.Short, 33.3, 0.0042},
		{domain.Short, 100, 10},
	}

	for _, tt := range tests {
		p := openPosition(t, tt.side, tt.size, tt.price)
		assert.InDelta(t, 0, roi(t, p, tt.price), 1e-12)
		assert.Equal(t, tt.price, p.BreakEvenPrice())
		assert.InDelta(t, tt.size/tt.price, p.AssetAmount(), 1e-12)
		assert.True(t, p.IsOpen())
	}
}

func TestOpenPositionValidation(t *testing.T) {
	_, err := OpenPosition(domain.Long, 0, NewPrice(1), testStart, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)

	_, err = OpenPosition(domain.Long, 10, NewPrice(0), testStart, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)

	_, err = OpenPosition(domain.Side("UP"), 10, NewPrice(1), testStart, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)

	_, err = OpenPosition(domain.Long, 101, NewPrice(1), testStart, nil, nil)
	assert.ErrorIs(t, err, ports.ErrInvariant)
}

func TestDecreaseSizeBlendsROI(t *testing.T) {
	p := openPosition(t, domain.Long, 1, 1)
	require.NoError(t, p.DecreaseSize(0.5, 2))

	assert.InDelta(t, 100, roi(t, p, 2), 1e-9)
	assert.InDelta(t, 75, roi(t, p, 1.5), 1e-9)
	assert.Equal(t, 0.5, p.UsedSize())
	assert.Equal(t, 1.0, p.TotalSize())
}

func TestDecreaseSizeKeepsBreakEven(t *testing.T) {
	p := openPosition(t, domain.Long, 100, 1)
	before := roi(t, p, 0.5)

	require.NoError(t, p.DecreaseSize(50, 0.5))

	assert.InDelta(t, before, roi(t, p, 0.5), 1e-9)
	assert.Equal(t, 1.0, p.BreakEvenPrice())
	assert.InDelta(t, 50, p.AssetAmount(), 1e-9)
}

func TestShortPartialDecrease(t *testing.T) {
	p := openPosition(t, domain.Short, 100, 1)
	require.NoError(t, p.DecreaseSize(50, 2))

	assert.InDelta(t, -100, roi(t, p, 2), 1e-9)
	assert.InDelta(t, -50, roi(t, p, 1), 1e-9)
	assert.InDelta(t, 0, roi(t, p, 0), 1e-9)
}

func TestIncreaseSizeAveragesByAsset(t *testing.T) {
	t.Run("long", func(t *testing.T) {
		p := openPosition(t, domain.Long, 10, 10)

		require.NoError(t, p.IncreaseSize(10, 5))
		assert.InDelta(t, -25, roi(t, p, 5), 1e-9)

		require.NoError(t, p.IncreaseSize(10, 20))
		assert.InDelta(t, 133.33333333333, roi(t, p, 20), 1e-9)
	})

	t.Run("short", func(t *testing.T) {
		p := openPosition(t, domain.Short, 10, 10)

		require.NoError(t, p.IncreaseSize(10, 5))
		assert.InDelta(t, 25, roi(t, p, 5), 1e-9)

		require.NoError(t, p.IncreaseSize(10, 2.5))
		assert.InDelta(t, 41.666666666667, roi(t, p, 2.5), 1e-9)
	})
}

func TestBreakEvenPrice(t *testing.T) {
	p := openPosition(t, domain.Long, 2, 1)
	require.NoError(t, p.IncreaseSize(1, 0.5))
	assert.InDelta(t, 0.75, p.BreakEvenPrice(), 1e-12)
}

func TestAssetAmount(t *testing.T) {
	p := openPosition(t, domain.Long, 1, 1)
	assert.InDelta(t, 1, p.AssetAmount(), 1e-12)

	require.NoError(t, p.IncreaseSize(1, 0.5))
	assert.InDelta(t, 3, p.AssetAmount(), 1e-12)

	require.NoError(t, p.IncreaseSize(1, 0.1))
	assert.InDelta(t, 13, p.AssetAmount(), 1e-9)

	err := p.DecreaseSize(3, 1)
	assert.ErrorIs(t, err, ports.ErrInvariant)
	assert.Contains(t, err.Error(), "position is open but no asset left")

	err = p.DecreaseSize(4, 1)
	assert.ErrorIs(t, err, ports.ErrInvariant)
	assert.Contains(t, err.Error(), "exceeds held size")
	assert.Equal(t, 3.0, p.UsedSize())
}

func TestMaxPositionSize(t *testing.T) {
	p := openPosition(t, domain.Long, 50, 1)
	require.NoError(t, p.IncreaseSize(50, 2))
	assert.Equal(t, domain.MaxPositionSize, p.UsedSize())

	err := p.IncreaseSize(0.001, 2)
	assert.ErrorIs(t, err, ports.ErrInvariant)

	p = openPosition(t, domain.Long, 60, 1)
	assert.ErrorIs(t, p.IncreaseSize(50, 1), ports.ErrInvariant)
	assert.Equal(t, 60.0, p.UsedSize())
}

func TestSizeArgumentValidation(t *testing.T) {
	p := openPosition(t, domain.Long, 50, 1)

	tests := []struct {
		name string
		call func() error
	}{
		{"increase zero size", func() error { return p.IncreaseSize(0, 1) }},
		{"increase negative price", func() error { return p.IncreaseSize(1, -1) }},
		{"decrease zero price", func() error { return p.DecreaseSize(1, 0) }},
		{"decrease negative size", func() error { return p.DecreaseSize(-1, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ports.ErrInvalidArgument)
		})
	}
}

func TestRelativeROI(t *testing.T) {
	p := openPosition(t, domain.Long, 50, 50)

	assert.InDelta(t, 10, roi(t, p, 55), 1e-9)
	relative, err := p.RelativeROI(55)
	require.NoError(t, err)
	assert.InDelta(t, 5, relative, 1e-9)
}

func TestExitROIUsesExitPrice(t *testing.T) {
	t.Run("close", func(t *testing.T) {
		p, err := OpenPosition(domain.Long, 50, NewPrice(50), testStart, NewPrice(45), NewPrice(55))
		require.NoError(t, err)
		require.NoError(t, p.Close(testStart.Add(hour)))

		exitROI, err := p.ExitROI()
		require.NoError(t, err)
		assert.InDelta(t, 10, exitROI, 1e-9)

		relative, err := p.RelativeExitROI()
		require.NoError(t, err)
		assert.InDelta(t, 5, relative, 1e-9)
		assert.True(t, p.IsClosed())
		assert.Equal(t, testStart.Add(hour), p.ExitTime())
	})

	t.Run("stop", func(t *testing.T) {
		p, err := OpenPosition(domain.Short, 100, NewPrice(10), testStart, NewPrice(11), NewPrice(8))
		require.NoError(t, err)
		require.NoError(t, p.Stop(testStart.Add(hour)))

		exitROI, err := p.ExitROI()
		require.NoError(t, err)
		assert.InDelta(t, -10, exitROI, 1e-9)
		assert.True(t, p.IsStopped())
		assert.Equal(t, domain.ExitStopped, p.ExitKind())
	})

	t.Run("blended after decrease", func(t *testing.T) {
		p, err := OpenPosition(domain.Long, 100, NewPrice(1), testStart, NewPrice(0.5), nil)
		require.NoError(t, err)
		require.NoError(t, p.DecreaseSize(50, 2))
		require.NoError(t, p.Stop(testStart.Add(hour)))

		exitROI, err := p.ExitROI()
		require.NoError(t, err)
		assert.InDelta(t, 25, exitROI, 1e-9)

		relative, err := p.RelativeExitROI()
		require.NoError(t, err)
		assert.InDelta(t, 25, relative, 1e-9)
	})
}

func TestClosedPositionRejectsROI(t *testing.T) {
	p, err := OpenPosition(domain.Long, 100, NewPrice(10), testStart, NewPrice(9), nil)
	require.NoError(t, err)
	require.NoError(t, p.Stop(testStart))

	_, err = p.ROI(10)
	assert.ErrorIs(t, err, ports.ErrClosedPosition)
	_, err = p.RelativeROI(10)
	assert.ErrorIs(t, err, ports.ErrClosedPosition)
	_, err = p.UnrealizedROI(10)
	assert.ErrorIs(t, err, ports.ErrClosedPosition)
	assert.ErrorIs(t, p.IncreaseSize(1, 1), ports.ErrClosedPosition)
	assert.ErrorIs(t, p.DecreaseSize(1, 1), ports.ErrClosedPosition)
	assert.ErrorIs(t, p.Stop(testStart), ports.ErrClosedPosition)
}

func TestExitRequiresPrice(t *testing.T) {
	p := openPosition(t, domain.Long, 100, 10)

	assert.ErrorIs(t, p.Stop(testStart), ports.ErrLogic)
	assert.ErrorIs(t, p.Close(testStart), ports.ErrLogic)
	_, err := p.ExitROI()
	assert.ErrorIs(t, err, ports.ErrLogic)

	require.NoError(t, p.AddStopPrice(NewPrice(12)))
	assert.ErrorIs(t, p.AddStopPrice(NewPrice(13)), ports.ErrLogic)
	require.NoError(t, p.Stop(testStart))

	exitROI, err := p.ExitROI()
	require.NoError(t, err)
	assert.InDelta(t, 20, exitROI, 1e-9)
}

func TestInterleavedDecreaseAndIncrease(t *testing.T) {
	p := openPosition(t, domain.Long, 50, 1)

	require.NoError(t, p.DecreaseSize(25, 2))
	assert.InDelta(t, 50, roi(t, p, 1), 1e-9)

	require.NoError(t, p.IncreaseSize(50, 4))
	assert.InDelta(t, 1.6, p.BreakEvenPrice(), 1e-12)
	assert.InDelta(t, 37.5, p.AssetAmount(), 1e-9)
	assert.Equal(t, 75.0, p.UsedSize())
	assert.Equal(t, 100.0, p.TotalSize())

	// The closed slice keeps the 25/50 weight it had when it was sold.
	assert.InDelta(t, 50, roi(t, p, 1.6), 1e-9)
	assert.InDelta(t, 125, roi(t, p, 3.2), 1e-9)

	require.NoError(t, p.DecreaseSize(25, 3.2))
	assert.InDelta(t, 125, roi(t, p, 3.2), 1e-9)
	assert.InDelta(t, 75, roi(t, p, 1.6), 1e-9)
}

func TestIncreaseAfterDecreaseKeepsClosedWeight(t *testing.T) {
	p, err := OpenPosition(domain.Long, 50, NewPrice(1), testStart, nil, NewPrice(1))
	require.NoError(t, err)
	require.NoError(t, p.DecreaseSize(25, 2))
	require.NoError(t, p.IncreaseSize(50, 1))

	assert.Equal(t, 1.0, p.BreakEvenPrice())
	assert.InDelta(t, 50, roi(t, p, 1), 1e-9)

	require.NoError(t, p.Close(testStart))
	exitROI, err := p.ExitROI()
	require.NoError(t, err)
	assert.InDelta(t, 50, exitROI, 1e-9)
}

func TestMaxPositionSizeCountsClosedSlices(t *testing.T) {
	p := openPosition(t, domain.Long, 50, 1)
	require.NoError(t, p.DecreaseSize(25, 1))

	err := p.IncreaseSize(75, 1)
	assert.ErrorIs(t, err, ports.ErrInvariant, "total allocation would reach 125")
	assert.Equal(t, 25.0, p.UsedSize())
	assert.Equal(t, 50.0, p.TotalSize())

	require.NoError(t, p.IncreaseSize(50, 1))
	assert.Equal(t, 75.0, p.UsedSize())
	assert.Equal(t, domain.MaxPositionSize, p.TotalSize())
}
