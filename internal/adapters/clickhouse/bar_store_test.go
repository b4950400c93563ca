package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"
)

var (
	testStart  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testSymbol = domain.Symbol{Name: "ETHUSDT", Exchange: "BINANCE", Interval: "1m"}
)

func minuteBar(i int, low, high float64) *domain.Bar {
	return &domain.Bar{
		Symbol:   testSymbol.Name,
		Interval: testSymbol.Interval,
		OpenTime: testStart.Add(time.Duration(i) * time.Minute),
		Open:     low,
		High:     high,
		Low:      low,
		Close:    high,
		Volume:   1,
	}
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		addr     string
		user     string
		password string
		database string
		wantErr  bool
	}{
		{name: "full", dsn: "clickhouse://bob:secret@db:9440/market", addr: "db:9440", user: "bob", password: "secret", database: "market"},
		{name: "default port", dsn: "clickhouse://localhost/market", addr: "localhost:9000", database: "market"},
		{name: "no database", dsn: "tcp://localhost:9001", addr: "localhost:9001"},
		{name: "wrong scheme", dsn: "postgres://localhost:5432/db", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.addr}, opts.Addr)
			assert.Equal(t, tt.user, opts.Auth.Username)
			assert.Equal(t, tt.password, opts.Auth.Password)
			assert.Equal(t, tt.database, opts.Auth.Database)
		})
	}
}

func TestBarStore_SaveAndQuery(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// Empty insert
	assert.NoError(t, store.SaveBars(ctx, nil))

	bars := []*domain.Bar{minuteBar(0, 100, 105), minuteBar(1, 95, 110), minuteBar(2, 98, 104), minuteBar(3, 95, 110)}
	require.NoError(t, store.SaveBars(ctx, bars))

	got, err := store.BarsBetween(ctx, testSymbol, testStart, testStart.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, testStart, got[0].OpenTime)
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
	assert.Equal(t, 105.0, got[0].High)

	next, err := store.NextBarAtOrAfter(ctx, testSymbol, testStart.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(time.Minute), next.OpenTime)

	lowest, highest, err := store.ExtremesBetween(ctx, testSymbol, testStart, testStart.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(time.Minute), lowest.OpenTime)
	assert.Equal(t, testStart.Add(time.Minute), highest.OpenTime)

	last, err := store.LastBar(ctx, testSymbol)
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(3*time.Minute), last.OpenTime)
}

func TestBarStore_ReplacesOnReimport(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveBars(ctx, []*domain.Bar{minuteBar(0, 100, 105)}))
	require.NoError(t, store.SaveBars(ctx, []*domain.Bar{minuteBar(0, 90, 120)}))

	got, err := store.BarsBetween(ctx, testSymbol, testStart, testStart)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 90.0, got[0].Low)
	assert.Equal(t, 120.0, got[0].High)
}

func TestBarStore_NotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.LastBar(ctx, testSymbol)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = store.NextBarAtOrAfter(ctx, testSymbol, testStart)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = store.BarsBetween(ctx, testSymbol, testStart, testStart.Add(time.Hour))
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, _, err = store.ExtremesBetween(ctx, testSymbol, testStart, testStart.Add(time.Hour))
	assert.ErrorIs(t, err, ports.ErrNotFound)

	err = store.SaveBars(ctx, []*domain.Bar{{OpenTime: testStart}})
	assert.ErrorIs(t, err, ports.ErrInvalidArgument)
}
