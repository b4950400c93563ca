package allocation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

var maxSize = decimal.NewFromFloat(domain.MaxPositionSize)

// AllocatedAsset reserves an amount of an account asset for a strategy and
// translates between normalized position sizes and real quantities of it.
type AllocatedAsset struct {
	balance ports.BalanceProvider
	asset   string
	amount  decimal.Decimal
}

// NewAllocatedAsset allocates amount of asset, checked against a fresh balance.
func NewAllocatedAsset(ctx context.Context, balance ports.BalanceProvider, asset string, amount decimal.Decimal) (*AllocatedAsset, error) {
	if asset == "" {
		return nil, fmt.Errorf("%w: asset is required", ports.ErrInvalidArgument)
	}
	a := &AllocatedAsset{balance: balance, asset: asset}
	if err := a.Allocate(ctx, amount); err != nil {
		return nil, err
	}
	return a, nil
}

// Allocate replaces the allocation. It fails when amount exceeds the available
// balance, which is re-fetched on every call.
func (a *AllocatedAsset) Allocate(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: allocation must be positive, got %s", ports.ErrInvalidArgument, amount)
	}
	available, err := a.balance.GetAvailableBalance(ctx, a.asset)
	if err != nil {
		return fmt.Errorf("failed to refresh %s balance: %w", a.asset, err)
	}
	if amount.GreaterThan(available) {
		return fmt.Errorf("%w: allocated %s amount %s exceeds available amount %s",
			ports.ErrInvariant, a.asset, amount, available)
	}
	a.amount = amount
	return nil
}

// RealSize converts a normalized size into a quantity of the allocated asset.
func (a *AllocatedAsset) RealSize(proportionalSize float64) (decimal.Decimal, error) {
	if proportionalSize <= 0 {
		return decimal.Zero, fmt.Errorf("%w: size must be positive, got %v", ports.ErrInvalidArgument, proportionalSize)
	}
	if proportionalSize > domain.MaxPositionSize {
		return decimal.Zero, fmt.Errorf("%w: size %v exceeds the maximum position size", ports.ErrInvariant, proportionalSize)
	}
	return a.amount.Mul(decimal.NewFromFloat(proportionalSize)).Div(maxSize), nil
}

// ProportionalSize converts a quantity of the allocated asset into a normalized size.
func (a *AllocatedAsset) ProportionalSize(realSize decimal.Decimal) (float64, error) {
	if !realSize.IsPositive() {
		return 0, fmt.Errorf("%w: size must be positive, got %s", ports.ErrInvalidArgument, realSize)
	}
	if realSize.GreaterThan(a.amount) {
		return 0, fmt.Errorf("%w: size %s exceeds the allocated amount %s", ports.ErrInvariant, realSize, a.amount)
	}
	return realSize.Div(a.amount).Mul(maxSize).InexactFloat64(), nil
}

// Amount returns the allocated quantity.
func (a *AllocatedAsset) Amount() decimal.Decimal { return a.amount }

// Asset returns the allocated asset name.
func (a *AllocatedAsset) Asset() string { return a.asset }
