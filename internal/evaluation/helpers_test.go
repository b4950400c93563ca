package evaluation

import (
	"context"
	"testing"
	"time"

	"tradeEvaluator/internal/adapters/memory"
	"tradeEvaluator/internal/domain"

	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const hour = time.Hour

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testSymbol(interval string) domain.Symbol {
	return domain.Symbol{Name: "ETHUSDT", Exchange: "BINANCE", Interval: interval}
}

// flatBars builds n consecutive bars trading between low and high.
func flatBars(symbol domain.Symbol, start time.Time, step time.Duration, n int, low, high float64) []*domain.Bar {
	bars := make([]*domain.Bar, n)
	for i := range bars {
		bars[i] = &domain.Bar{
			Symbol:   symbol.Name,
			Interval: symbol.Interval,
			OpenTime: start.Add(time.Duration(i) * step),
			Open:     low,
			High:     high,
			Low:      low,
			Close:    (low + high) / 2,
			Volume:   1,
		}
	}
	return bars
}

// setRange overwrites a bar's prices, closing at the midpoint.
func setRange(bar *domain.Bar, low, high float64) {
	bar.Low, bar.High, bar.Open = low, high, low
	bar.Close = (low + high) / 2
}

func saveBars(t *testing.T, store *memory.BarStore, bars []*domain.Bar) {
	t.Helper()
	require.NoError(t, store.SaveBars(context.Background(), bars))
}

func intent(id int64, side domain.Side, price float64, ts, priceDate time.Time) *domain.TradeIntent {
	return &domain.TradeIntent{
		ID:        id,
		Kind:      domain.KindSignal,
		Symbol:    testSymbol("1h"),
		Side:      side,
		Timestamp: ts,
		PriceDate: priceDate,
		Price:     price,
	}
}
