package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradeEvaluator/internal/domain"
)

// KlineSource retrieves historical bars from an exchange.
type KlineSource interface {
	// GetKlinesRange fetches all bars for a symbol/interval between start and end.
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Bar, error)
}

// BalanceProvider reports spendable account balances.
// Every call fetches a fresh value; implementations must not serve stale balances.
type BalanceProvider interface {
	// GetAvailableBalance returns the available amount of asset (e.g., "USDT").
	GetAvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}
