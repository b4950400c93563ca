package evaluation

import (
	"context"
	"testing"
	"time"

	"tradeEvaluator/internal/adapters/memory"
	"tradeEvaluator/internal/domain"
	"tradeEvaluator/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopFixture struct {
	bars       []*domain.Bar
	store      *memory.BarStore
	savePoints *memory.SavePointStore
	symbol     domain.Symbol
}

// newLoopFixture stores n hourly bars trading between 1 and 1.5.
// Edit bars before calling save.
func newLoopFixture(n int) *loopFixture {
	symbol := testSymbol("1h")
	return &loopFixture{
		bars:       flatBars(symbol, testStart, hour, n, 1, 1.5),
		store:      memory.NewBarStore(),
		savePoints: memory.NewSavePointStore(),
		symbol:     symbol,
	}
}

func (f *loopFixture) save(t *testing.T) {
	saveBars(t, f.store, f.bars)
}

func (f *loopFixture) at(i int) time.Time {
	return f.bars[i].OpenTime
}

func (f *loopFixture) newLoop(t *testing.T, entry *domain.TradeIntent, config LoopConfig, actions ...TradeAction) *TradeLoop {
	t.Helper()
	loop, err := NewTradeLoop(context.Background(), entry, f.symbol, config, f.store, f.savePoints, &mockLogger{}, actions...)
	require.NoError(t, err)
	return loop
}

// shortAtBar3 is a sell intent at 2 produced on bar 2 and actionable on bar 3.
func (f *loopFixture) shortAtBar3() *domain.TradeIntent {
	setRange(f.bars[3], 2, 2)
	return intent(1, domain.Short, 2, f.at(2), f.at(3).Add(-time.Second))
}

func TestTradeLoopTimeout(t *testing.T) {
	f := newLoopFixture(24)
	entry := f.shortAtBar3()
	f.save(t)

	config := DefaultLoopConfig()
	config.Timeout = 3 * hour
	loop := f.newLoop(t, entry, config)

	status, err := loop.Run(context.Background())
	require.NoError(t, err)

	position := status.Position()
	require.NotNil(t, position)
	assert.Equal(t, f.at(4).Add(-time.Second), position.EntryTime())
	assert.True(t, position.IsStopped())
	assert.Equal(t, position.EntryTime().Add(3*hour), position.ExitTime())

	history := status.StopPrice().History()
	require.Len(t, history, 1)
	assert.Equal(t, "Trade timed out. Stopping.", history[0].Reason)
	assert.True(t, history[0].Forced)
	assert.Equal(t, f.bars[6].Close, status.StopPrice().Get())
	assert.Equal(t, f.at(6), loop.LastRunDate())
	assert.Len(t, status.RiskReward().Points(), 3)
}

func TestTradeLoopRunToExitStopsAtExit(t *testing.T) {
	f := newLoopFixture(25)
	entry := f.shortAtBar3()
	setRange(f.bars[23], 1, 1)
	f.save(t)

	exit := intent(2, domain.Long, 1, f.at(23), f.at(24).Add(-time.Second))
	loop := f.newLoop(t, entry, DefaultLoopConfig())

	status, err := loop.RunToExit(context.Background(), exit)
	require.NoError(t, err)

	position := status.Position()
	require.NotNil(t, position)
	assert.True(t, position.IsStopped())
	assert.Equal(t, exit.PriceDate, position.ExitTime())

	exitROI, err := position.ExitROI()
	require.NoError(t, err)
	assert.InDelta(t, 50, exitROI, 1e-9)

	assert.Equal(t, 2.0, status.HighestPrice())
	assert.Equal(t, 1.0, status.LowestPrice())
}

func TestTradeLoopRunToExitContinuesToTimeout(t *testing.T) {
	f := newLoopFixture(40)
	entry := f.shortAtBar3()
	f.save(t)

	exit := intent(2, domain.Long, 1, f.at(23), f.at(24).Add(-time.Second))
	config := LoopConfig{StopAtExit: false, Timeout: 30 * hour, LogRiskReward: false}
	loop := f.newLoop(t, entry, config)

	status, err := loop.RunToExit(context.Background(), exit)
	require.NoError(t, err)

	position := status.Position()
	require.NotNil(t, position)
	assert.True(t, position.IsStopped())
	assert.Equal(t, position.EntryTime().Add(30*hour), position.ExitTime())
	assert.Equal(t, loop.TimeoutDate(), position.ExitTime())
	assert.Empty(t, status.RiskReward().Points())
}

func TestTradeLoopEntryDetection(t *testing.T) {
	f := newLoopFixture(10)
	setRange(f.bars[5], 4, 6)
	f.save(t)

	entry := intent(1, domain.Long, 5, testStart.Add(-hour), testStart.Add(-time.Second))
	loop := f.newLoop(t, entry, DefaultLoopConfig())

	status, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.True(t, status.IsEntered())
	assert.Equal(t, f.at(6).Add(-time.Second), status.Position().EntryTime())
	assert.True(t, status.Position().IsOpen())
	assert.Equal(t, testStart, loop.StartDate())
	assert.Equal(t, f.at(9), loop.LastRunDate())

	lowest, highest, ok := status.EntryExtremes()
	require.True(t, ok)
	assert.Equal(t, 1.0, lowest)
	assert.Equal(t, 6.0, highest)
}

func TestTradeLoopExits(t *testing.T) {
	tests := []struct {
		name       string
		exitRange  [2]float64
		wantStop   bool
		wantClose  bool
		wantROI    float64
		wantLastAt int
	}{
		{"stopped", [2]float64{2.5, 3.5}, true, false, -40, 4},
		{"closed", [2]float64{6.5, 7.5}, false, true, 40, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoopFixture(10)
			setRange(f.bars[2], 4, 6)
			setRange(f.bars[4], tt.exitRange[0], tt.exitRange[1])
			f.save(t)

			entry := intent(1, domain.Long, 5, testStart.Add(-hour), testStart.Add(-time.Second))
			entry.StopPrice = 3
			entry.ClosePrice = 7
			loop := f.newLoop(t, entry, DefaultLoopConfig())

			status, err := loop.Run(context.Background())
			require.NoError(t, err)

			position := status.Position()
			assert.Equal(t, tt.wantStop, position.IsStopped())
			assert.Equal(t, tt.wantClose, position.IsClosed())
			assert.Equal(t, f.at(5).Add(-time.Second), position.ExitTime())
			exitROI, err := position.ExitROI()
			require.NoError(t, err)
			assert.InDelta(t, tt.wantROI, exitROI, 1e-9)
			assert.Equal(t, f.at(tt.wantLastAt), loop.LastRunDate())
		})
	}
}

func TestTradeLoopEntryBarDoesNotExit(t *testing.T) {
	f := newLoopFixture(6)
	setRange(f.bars[2], 2.5, 7.5)
	f.save(t)

	entry := intent(1, domain.Long, 5, testStart.Add(-hour), testStart.Add(-time.Second))
	entry.StopPrice = 3
	entry.ClosePrice = 7
	loop := f.newLoop(t, entry, DefaultLoopConfig())

	status, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, status.IsEntered())
	assert.False(t, status.IsAmbiguous())
	assert.True(t, status.Position().IsOpen())
}

func TestTradeLoopAmbiguousExit(t *testing.T) {
	f := newLoopFixture(10)
	setRange(f.bars[2], 4, 6)
	setRange(f.bars[4], 2.5, 7.5)
	f.save(t)

	entry := intent(1, domain.Long, 5, testStart.Add(-hour), testStart.Add(-time.Second))
	entry.StopPrice = 3
	entry.ClosePrice = 7
	exit := intent(2, domain.Short, 1.2, f.at(7), f.at(8).Add(-time.Second))
	loop := f.newLoop(t, entry, DefaultLoopConfig())

	status, err := loop.RunToExit(context.Background(), exit)
	require.NoError(t, err)

	assert.True(t, status.IsAmbiguous())
	assert.False(t, status.IsExited())
	assert.True(t, status.Position().IsOpen(), "no exit is committed")
	assert.Equal(t, f.at(4), loop.LastRunDate())
}

func TestTradeLoopContinue(t *testing.T) {
	f := newLoopFixture(10)
	setRange(f.bars[2], 4, 6)
	setRange(f.bars[8], 6.5, 7.5)
	f.save(t)

	entry := intent(1, domain.Long, 5, testStart.Add(-hour), testStart.Add(-time.Second))
	entry.ClosePrice = 7
	exit := intent(2, domain.Short, 1.2, f.at(4), f.at(5).Add(-time.Second))
	loop := f.newLoop(t, entry, LoopConfig{StopAtExit: false, LogRiskReward: true})

	ctx := context.Background()
	assert.ErrorIs(t, loop.Continue(ctx, f.at(9)), ports.ErrLogic)

	status, err := loop.RunToExit(ctx, exit)
	require.NoError(t, err)
	assert.True(t, status.Position().IsOpen())
	assert.Equal(t, f.at(4), loop.LastRunDate())

	assert.ErrorIs(t, loop.Continue(ctx, f.at(4)), ports.ErrInvalidArgument)

	require.NoError(t, loop.Continue(ctx, f.at(9)))
	assert.True(t, status.Position().IsClosed())
	assert.Equal(t, f.at(9).Add(-time.Second), status.Position().ExitTime())
	assert.Equal(t, f.at(8), loop.LastRunDate())
	assert.Len(t, status.RiskReward().Points(), 6)
}

func TestTradeLoopBinding(t *testing.T) {
	f := newLoopFixture(8)
	f.save(t)

	binding := domain.Binding{ID: 7, Name: "SMA(20)", Field: domain.FieldPrice}
	require.NoError(t, f.savePoints.SaveSavePoints(context.Background(), binding, []domain.SavePoint{
		{Timestamp: f.at(0), Value: 3},
		{Timestamp: f.at(2), Value: 1.25},
		{Timestamp: f.at(4), Value: 1.4},
	}))

	entry := intent(1, domain.Long, 10, testStart.Add(-hour), testStart.Add(-time.Second))
	entry.Bindings = map[domain.PriceField]domain.Binding{domain.FieldPrice: binding}
	loop := f.newLoop(t, entry, DefaultLoopConfig())

	status, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.True(t, status.IsEntered())
	assert.Equal(t, f.at(3).Add(-time.Second), status.Position().EntryTime())
	assert.Equal(t, 1.25, status.EntryPrice().Get(), "locked after entry")
	assert.Equal(t, 1.25, status.Position().BreakEvenPrice())

	history := status.EntryPrice().History()
	require.Len(t, history, 4)
	assert.Equal(t, "Binding: SMA(20)", history[0].Reason)
	assert.Equal(t, 3.0, history[1].Value)
	assert.Equal(t, "Entered position", history[3].Reason)
}

func TestTradeLoopLastBarUsesSymbolUpdate(t *testing.T) {
	f := newLoopFixture(4)
	setRange(f.bars[3], 4, 6)
	f.save(t)

	entry := intent(1, domain.Long, 5, testStart.Add(-hour), testStart.Add(-time.Second))

	loop := f.newLoop(t, entry, DefaultLoopConfig())
	status, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.at(3).Add(hour-time.Second), status.Position().EntryTime())

	updated := f.symbol
	updated.LastUpdate = f.at(3).Add(20 * time.Minute)
	loop, err = NewTradeLoop(context.Background(), entry, updated, DefaultLoopConfig(), f.store, f.savePoints, &mockLogger{})
	require.NoError(t, err)
	status, err = loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, updated.LastUpdate, status.Position().EntryTime())
}

func TestTradeLoopErrors(t *testing.T) {
	ctx := context.Background()
	f := newLoopFixture(6)
	entry := f.shortAtBar3()
	f.save(t)

	t.Run("symbol mismatch", func(t *testing.T) {
		other := domain.Symbol{Name: "BTCUSDT", Exchange: "BINANCE", Interval: "1h"}
		_, err := NewTradeLoop(ctx, entry, other, DefaultLoopConfig(), f.store, f.savePoints, &mockLogger{})
		assert.ErrorIs(t, err, ports.ErrInvalidArgument)
	})

	t.Run("no bar after entry", func(t *testing.T) {
		late := intent(1, domain.Long, 1, f.at(5), f.at(5).Add(hour))
		_, err := NewTradeLoop(ctx, late, f.symbol, DefaultLoopConfig(), f.store, f.savePoints, &mockLogger{})
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("missing exit", func(t *testing.T) {
		_, err := f.newLoop(t, entry, DefaultLoopConfig()).RunToExit(ctx, nil)
		assert.ErrorIs(t, err, ports.ErrInvalidArgument)
	})

	t.Run("exit not after entry", func(t *testing.T) {
		exit := intent(2, domain.Long, 1, f.at(2), entry.PriceDate)
		_, err := f.newLoop(t, entry, DefaultLoopConfig()).RunToExit(ctx, exit)
		assert.ErrorIs(t, err, ports.ErrLogic)
	})

	t.Run("empty range", func(t *testing.T) {
		exit := intent(2, domain.Long, 1, f.at(2), f.at(3).Add(-time.Millisecond))
		_, err := f.newLoop(t, entry, DefaultLoopConfig()).RunToExit(ctx, exit)
		assert.ErrorIs(t, err, ports.ErrLogic)
	})

	t.Run("foreign bars", func(t *testing.T) {
		loop, err := NewTradeLoop(ctx, entry, f.symbol, DefaultLoopConfig(), relabeledBars{f.store}, f.savePoints, &mockLogger{})
		require.NoError(t, err)
		_, err = loop.Run(ctx)
		assert.ErrorIs(t, err, ports.ErrInvalidArgument)
	})
}

// relabeledBars serves bars claiming to belong to another interval.
type relabeledBars struct {
	*memory.BarStore
}

func (r relabeledBars) BarsBetween(ctx context.Context, symbol domain.Symbol, start, end time.Time) ([]*domain.Bar, error) {
	bars, err := r.BarStore.BarsBetween(ctx, symbol, start, end)
	for _, b := range bars {
		b.Interval = "4h"
	}
	return bars, err
}
