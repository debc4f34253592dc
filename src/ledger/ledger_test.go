package ledger

import (
	"errors"
	"testing"
	"time"

	"tradingbot/src/model"
	"tradingbot/src/risk"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	t0     = time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)
	btcKey = Key{Symbol: "BTCUSDT", Strategy: "RSI", Timeframe: model.Timeframe1h}
)

func newLedger(capacity int) *Ledger {
	return New(risk.Evaluator{StopLossPct: d("0.02"), TakeProfitPct: d("0.06")}, d("0.001"), capacity)
}

func TestLedger_RoundTrip(t *testing.T) {
	l := newLedger(3)

	p, err := l.Open(btcKey, model.SideLong, d("100"), t0, d("1"))
	require.NoError(t, err)
	require.True(t, d("98").Equal(p.StopLoss))
	require.True(t, d("106").Equal(p.TakeProfit))

	closed := l.CloseAll(btcKey, d("110"), t0.Add(time.Hour), model.ExitSignal)
	require.Len(t, closed, 1)
	require.True(t, d("9.79").Equal(closed[0].Profit))
	require.True(t, d("0.21").Equal(closed[0].Fees))
	require.Equal(t, model.PositionStatusClosed, closed[0].Status)
	require.Equal(t, 0, l.Count(btcKey))
}

func TestLedger_FIFO(t *testing.T) {
	l := newLedger(3)

	_, err := l.Open(btcKey, model.SideLong, d("100"), t0, d("1"))
	require.NoError(t, err)
	_, err = l.Open(btcKey, model.SideLong, d("101"), t0.Add(time.Hour), d("1"))
	require.NoError(t, err)

	// 110 triggers take profit for both; only the oldest closes per call
	first, ok := l.EvaluateAndClose(btcKey, d("110"), t0.Add(2*time.Hour))
	require.True(t, ok)
	require.True(t, d("100").Equal(first.EntryPrice))
	require.Equal(t, model.ExitTakeProfit, first.ExitReason)
	require.Equal(t, 1, l.Count(btcKey))

	second, ok := l.EvaluateAndClose(btcKey, d("110"), t0.Add(3*time.Hour))
	require.True(t, ok)
	require.True(t, d("101").Equal(second.EntryPrice))
	require.Equal(t, 0, l.Count(btcKey))

	_, ok = l.EvaluateAndClose(btcKey, d("110"), t0.Add(4*time.Hour))
	require.False(t, ok)
}

func TestLedger_EvaluateSkipsPositionsThatHold(t *testing.T) {
	l := newLedger(3)

	_, err := l.Open(btcKey, model.SideLong, d("100"), t0, d("1"))
	require.NoError(t, err)
	_, err = l.Open(btcKey, model.SideShort, d("100"), t0.Add(time.Hour), d("1"))
	require.NoError(t, err)

	// the older long is stopped out first
	p, ok := l.EvaluateAndClose(btcKey, d("93"), t0.Add(2*time.Hour))
	require.True(t, ok)
	require.Equal(t, model.SideLong, p.Side)
	require.Equal(t, model.ExitStopLoss, p.ExitReason)

	// 99 holds the short
	_, ok = l.EvaluateAndClose(btcKey, d("99"), t0.Add(3*time.Hour))
	require.False(t, ok)

	p, ok = l.EvaluateAndClose(btcKey, d("93"), t0.Add(4*time.Hour))
	require.True(t, ok)
	require.Equal(t, model.SideShort, p.Side)
	require.Equal(t, model.ExitTakeProfit, p.ExitReason)
}

func TestLedger_Capacity(t *testing.T) {
	l := newLedger(2)

	for i := 0; i < 2; i++ {
		_, err := l.Open(btcKey, model.SideLong, d("100"), t0, d("1"))
		require.NoError(t, err)
	}
	require.False(t, l.HasCapacity(btcKey))

	_, err := l.Open(btcKey, model.SideLong, d("100"), t0, d("1"))
	require.True(t, errors.Is(err, ErrCapacityExceeded))
	require.Equal(t, 2, l.Count(btcKey))

	other := Key{Symbol: "ETHUSDT", Strategy: "RSI", Timeframe: model.Timeframe1h}
	_, err = l.Open(other, model.SideLong, d("100"), t0, d("1"))
	require.NoError(t, err)
	require.Equal(t, 3, l.Total())
}

func TestLedger_OpenRejectsInvalidInput(t *testing.T) {
	l := newLedger(0)
	_, err := l.Open(btcKey, model.SideLong, d("0"), t0, d("1"))
	require.True(t, errors.Is(err, risk.ErrInvalidSizingInput))
	_, err = l.Open(btcKey, model.SideLong, d("100"), t0, d("0"))
	require.True(t, errors.Is(err, risk.ErrInvalidSizingInput))
}

func TestLedger_CloseOldestBySide(t *testing.T) {
	l := newLedger(3)

	_, err := l.Open(btcKey, model.SideShort, d("100"), t0, d("1"))
	require.NoError(t, err)
	_, err = l.Open(btcKey, model.SideLong, d("101"), t0.Add(time.Hour), d("1"))
	require.NoError(t, err)
	_, err = l.Open(btcKey, model.SideLong, d("102"), t0.Add(2*time.Hour), d("1"))
	require.NoError(t, err)

	p, ok := l.CloseOldest(btcKey, model.SideLong, d("103"), t0.Add(3*time.Hour), model.ExitSignal)
	require.True(t, ok)
	require.True(t, d("101").Equal(p.EntryPrice))
	require.Equal(t, model.ExitSignal, p.ExitReason)

	open := l.OpenPositions(btcKey)
	require.Len(t, open, 2)
	require.Equal(t, model.SideShort, open[0].Side)
	require.True(t, d("102").Equal(open[1].EntryPrice))
}

func TestLedger_ForceCloseAll(t *testing.T) {
	l := newLedger(3)
	eth := Key{Symbol: "ETHUSDT", Strategy: "RSI", Timeframe: model.Timeframe1h}

	_, _ = l.Open(btcKey, model.SideLong, d("100"), t0, d("1"))
	_, _ = l.Open(btcKey, model.SideShort, d("100"), t0, d("1"))
	_, _ = l.Open(eth, model.SideLong, d("100"), t0, d("2"))

	closed := l.ForceCloseAll(d("101"), t0.Add(time.Hour))
	require.Len(t, closed, 3)
	for _, p := range closed {
		require.Equal(t, model.ExitEndOfRun, p.ExitReason)
		require.False(t, p.IsOpen())
	}
	require.Equal(t, 0, l.Total())
	require.Empty(t, l.Keys())
}

func TestLedger_ClosedPositionNotReturned(t *testing.T) {
	l := newLedger(3)
	p, _ := l.Open(btcKey, model.SideLong, d("100"), t0, d("1"))

	closed, ok := l.EvaluateAndClose(btcKey, d("98"), t0.Add(time.Hour))
	require.True(t, ok)
	require.Same(t, p, closed)

	// the same pointer never comes back for later prices
	_, ok = l.EvaluateAndClose(btcKey, d("50"), t0.Add(2*time.Hour))
	require.False(t, ok)
	require.True(t, d("98").Equal(p.ExitPrice))
}

func TestLedger_Adopt(t *testing.T) {
	l := newLedger(3)
	l.Adopt(model.Position{Symbol: "BTCUSDT", Strategy: "RSI", Timeframe: model.Timeframe1h, Side: model.SideLong,
		EntryPrice: d("100"), Size: d("1"), StopLoss: d("98"), TakeProfit: d("106"), Status: model.PositionStatusOpen})
	l.Adopt(model.Position{Symbol: "BTCUSDT", Strategy: "RSI", Timeframe: model.Timeframe1h, Status: model.PositionStatusClosed})
	require.Equal(t, 1, l.Count(btcKey))

	p, ok := l.EvaluateAndClose(btcKey, d("106"), t0)
	require.True(t, ok)
	require.Equal(t, model.ExitTakeProfit, p.ExitReason)
}
