package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEvaluator/internal/ports"
)

// stubBalance returns queued balances, one per call.
type stubBalance struct {
	balances []decimal.Decimal
	calls    int
	err      error
}

func (s *stubBalance) GetAvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	b := s.balances[s.calls]
	if s.calls < len(s.balances)-1 {
		s.calls++
	}
	return b, nil
}

func balances(values ...string) *stubBalance {
	s := &stubBalance{}
	for _, v := range values {
		s.balances = append(s.balances, decimal.RequireFromString(v))
	}
	return s
}

func TestNewAllocatedAsset(t *testing.T) {
	ctx := context.Background()

	asset, err := NewAllocatedAsset(ctx, balances("1000"), "USDT", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, asset.Amount().Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "USDT", asset.Asset())

	_, err = NewAllocatedAsset(ctx, balances("100"), "USDT", decimal.NewFromInt(500))
	assert.ErrorIs(t, err, ports.ErrInvariant)

	_, err = NewAllocatedAsset(ctx, balances("100"), "USDT", decimal.Zero)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}

func TestAllocateRefreshesBalance(t *testing.T) {
	ctx := context.Background()
	balance := balances("1000", "200")

	asset, err := NewAllocatedAsset(ctx, balance, "USDT", decimal.NewFromInt(500))
	require.NoError(t, err)

	err = asset.Allocate(ctx, decimal.NewFromInt(500))
	assert.ErrorIs(t, err, ports.ErrInvariant)
	assert.True(t, asset.Amount().Equal(decimal.NewFromInt(500)), "failed allocation keeps the previous amount")

	require.NoError(t, asset.Allocate(ctx, decimal.NewFromInt(200)))
	assert.True(t, asset.Amount().Equal(decimal.NewFromInt(200)))
}

func TestAllocateBalanceError(t *testing.T) {
	boom := errors.New("exchange unavailable")
	_, err := NewAllocatedAsset(context.Background(), &stubBalance{err: boom}, "USDT", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, boom)
}

func TestRealSize(t *testing.T) {
	asset, err := NewAllocatedAsset(context.Background(), balances("1000"), "USDT", decimal.NewFromInt(200))
	require.NoError(t, err)

	tests := []struct {
		name     string
		size     float64
		expected string
		wantErr  error
	}{
		{"full size", 100, "200", nil},
		{"quarter size", 25, "50", nil},
		{"zero", 0, "", ports.ErrInvalidArgument},
		{"negative", -1, "", ports.ErrInvalidArgument},
		{"above max", 100.5, "", ports.ErrInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quantity, err := asset.RealSize(tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, quantity.Equal(decimal.RequireFromString(tt.expected)), "got %s", quantity)
		})
	}
}

func TestProportionalSize(t *testing.T) {
	asset, err := NewAllocatedAsset(context.Background(), balances("1000"), "USDT", decimal.NewFromInt(200))
	require.NoError(t, err)

	size, err := asset.ProportionalSize(decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.InDelta(t, 25.0, size, 1e-9)

	_, err = asset.ProportionalSize(decimal.NewFromInt(201))
	assert.ErrorIs(t, err, ports.ErrInvariant)

	_, err = asset.ProportionalSize(decimal.Zero)
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)

	quantity, err := asset.RealSize(size)
	require.NoError(t, err)
	assert.True(t, quantity.Equal(decimal.NewFromInt(50)))
}
