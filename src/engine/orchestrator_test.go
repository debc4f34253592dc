package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tradingbot/src/model"
	"tradingbot/src/risk"
	"tradingbot/src/strategy"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

type fakeMarket struct {
	mu      sync.Mutex
	candles map[string][]model.Candle
	errs    map[string]error
	calls   map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{candles: map[string][]model.Candle{}, errs: map[string]error{}, calls: map[string]int{}}
}

func marketKey(symbol string, tf model.Timeframe) string { return symbol + "|" + string(tf) }

func (m *fakeMarket) set(symbol string, tf model.Timeframe, closes ...string) {
	m.candles[marketKey(symbol, tf)] = bars(tf, closes...)
}

func (m *fakeMarket) FetchCandles(_ context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := marketKey(symbol, tf)
	m.calls[key]++
	if err := m.errs[key]; err != nil {
		return nil, err
	}
	var out []model.Candle
	for _, c := range m.candles[key] {
		if (start.IsZero() || !c.Time.Before(start)) && !c.Time.After(end) {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func bars(tf model.Timeframe, closes ...string) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		price := d(c)
		out[i] = model.Candle{Time: t0.Add(time.Duration(i) * tf.Duration()), Open: price, High: price, Low: price, Close: price, Volume: d("1")}
	}
	return out
}

type fakeStore struct {
	mu       sync.Mutex
	batches  [][]model.TradeRecord
	failures int
	always   bool
}

func (s *fakeStore) AppendTrades(ctx context.Context, trades []model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.always || s.failures > 0 {
		s.failures--
		return model.ErrTransientPersistence
	}
	s.batches = append(s.batches, append([]model.TradeRecord(nil), trades...))
	return nil
}

func (s *fakeStore) trades() []model.TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TradeRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// scripted emits fixed directions at bar indexes counted from t0.
type scripted struct {
	tf   model.Timeframe
	dirs map[int]model.Direction
}

func (s scripted) Name() string { return "Scripted" }

func (s scripted) GenerateSignals(candles []model.Candle) []model.Signal {
	out := make([]model.Signal, len(candles))
	for i, c := range candles {
		idx := int(c.Time.Sub(t0) / s.tf.Duration())
		out[i] = model.Signal{Time: c.Time, Direction: s.dirs[idx]}
	}
	return out
}

type fakeStrategies struct {
	dirs map[model.Timeframe]map[int]model.Direction
}

func (f fakeStrategies) Lookup(name string, tf model.Timeframe) (strategy.Strategy, error) {
	if name != "Scripted" {
		return nil, fmt.Errorf("%w: unknown strategy %q", model.ErrConfiguration, name)
	}
	return scripted{tf: tf, dirs: f.dirs[tf]}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

type recordingRouter struct {
	opened []model.Position
	closed []model.Position
	onOpen func()
}

func (r *recordingRouter) Open(_ context.Context, p model.Position) error {
	r.opened = append(r.opened, p)
	if r.onOpen != nil {
		r.onOpen()
	}
	return nil
}

func (r *recordingRouter) Close(_ context.Context, p model.Position) error {
	r.closed = append(r.closed, p)
	return nil
}

type memoryExceptions struct {
	mu    sync.Mutex
	items []*model.Exception
}

func (m *memoryExceptions) Create(_ context.Context, exc *model.Exception) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, exc)
	return nil
}

func testConfig() Config {
	return Config{
		MaxConcurrentPositions: 3,
		BatchFlushSize:         500,
		Workers:                2,
		MaxRetries:             3,
		RetryMinDelay:          time.Millisecond,
		RetryMaxDelay:          2 * time.Millisecond,
		MinCandles:             3,
		LiveCandleLimit:        200,
		CycleInterval:          15 * time.Minute,
	}
}

func testRisk() risk.Config {
	return risk.Config{
		RiskFraction:     d("0.1"),
		StopLossPct:      d("0.02"),
		TakeProfitPct:    d("0.06"),
		MaxDrawdownLimit: d("0.2"),
		FeeRate:          d("0.001"),
		InitialBalance:   d("10000"),
	}
}

func combo(symbol string, tf model.Timeframe) model.Combination {
	return model.Combination{Symbol: symbol, Strategy: "Scripted", Timeframe: tf}
}

func newTestOrchestrator(t *testing.T, mode Mode, cfg Config, rc risk.Config, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(cfg, mode, rc, deps)
	require.NoError(t, err)
	return o
}

func TestBacktest_ForceClosesAtEndOfRun(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "100", "101", "102", "103")
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{
		Market:     market,
		Store:      store,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: {0: model.DirectionLong}}},
		Notifier:   notifier,
	})
	defer o.Close(context.Background())

	summary, err := o.Backtest(context.Background(), []model.Combination{combo("BTCUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	trades := store.trades()
	require.Len(t, trades, 1)
	tr := trades[0]
	require.Equal(t, "backTestBot", tr.RunName)
	require.Equal(t, o.RunID(), tr.RunID)
	require.Equal(t, "long", tr.TradeType)
	require.Equal(t, string(model.ExitEndOfRun), tr.ExitReason)
	require.True(t, d("10").Equal(tr.PositionSize))
	require.True(t, d("27.97").Equal(tr.Profit), tr.Profit.String())
	require.True(t, d("2.03").Equal(tr.Fees), tr.Fees.String())
	require.Equal(t, t0.Add(4*time.Hour), tr.ExitTime)

	require.Len(t, summary.Processed, 1)
	require.Empty(t, summary.Skipped)
	require.Equal(t, 5, summary.Processed[0].Candles)
	require.True(t, d("10027.97").Equal(summary.Session.CurrentBalance))
	require.True(t, d("10027.97").Equal(summary.Session.AvailableBalance))
	require.Equal(t, 0, o.OpenPositions())
	require.Equal(t, 1, notifier.count(EventRunSummary))
}

func TestBacktest_StopLossClosesOldestFirst(t *testing.T) {
	market := newFakeMarket()
	market.set("ETHUSDT", model.Timeframe1h, "100", "100", "100", "97", "97", "97")
	store := &fakeStore{}

	dirs := map[int]model.Direction{0: model.DirectionLong, 2: model.DirectionLong}
	o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{
		Market:     market,
		Store:      store,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: dirs}},
	})
	defer o.Close(context.Background())

	summary, err := o.Backtest(context.Background(), []model.Combination{combo("ETHUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	trades := store.trades()
	require.Len(t, trades, 2)
	require.Equal(t, string(model.ExitStopLoss), trades[0].ExitReason)
	require.Equal(t, t0, trades[0].EntryTime)
	require.Equal(t, t0.Add(3*time.Hour), trades[0].ExitTime)
	require.Equal(t, string(model.ExitStopLoss), trades[1].ExitReason)
	require.Equal(t, t0.Add(2*time.Hour), trades[1].EntryTime)
	require.Equal(t, t0.Add(4*time.Hour), trades[1].ExitTime)
	require.True(t, d("9").Equal(trades[1].PositionSize), trades[1].PositionSize.String())
	require.Equal(t, 2, summary.Processed[0].Opened)
}

func TestBacktest_SignalExitThenReverse(t *testing.T) {
	market := newFakeMarket()
	market.set("SOLUSDT", model.Timeframe1h, "100", "101", "101")
	store := &fakeStore{}
	router := &recordingRouter{}

	dirs := map[int]model.Direction{0: model.DirectionLong, 1: model.DirectionShort}
	o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{
		Market:     market,
		Store:      store,
		Router:     router,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: dirs}},
	})
	defer o.Close(context.Background())

	_, err := o.Backtest(context.Background(), []model.Combination{combo("SOLUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	trades := store.trades()
	require.Len(t, trades, 2)
	require.Equal(t, "long", trades[0].TradeType)
	require.Equal(t, string(model.ExitSignal), trades[0].ExitReason)
	require.True(t, d("7.99").Equal(trades[0].Profit), trades[0].Profit.String())
	require.Equal(t, "short", trades[1].TradeType)
	require.Equal(t, string(model.ExitEndOfRun), trades[1].ExitReason)

	require.Len(t, router.opened, 2)
	// end-of-run closes are simulated only
	require.Len(t, router.closed, 1)
}

func TestBacktest_CircuitBreakerHaltsEntries(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "75", "75", "75", "75")
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	rc := testRisk()
	rc.RiskFraction = d("1")
	rc.StopLossPct = d("0.2")
	rc.TakeProfitPct = d("0.5")
	rc.MaxDrawdownLimit = d("0.1")

	dirs := map[int]model.Direction{0: model.DirectionLong, 3: model.DirectionLong}
	o := newTestOrchestrator(t, ModeBacktest, testConfig(), rc, Deps{
		Market:     market,
		Store:      store,
		Notifier:   notifier,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: dirs}},
	})
	defer o.Close(context.Background())

	summary, err := o.Backtest(context.Background(), []model.Combination{combo("BTCUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, store.trades(), 1)
	require.Equal(t, 1, summary.Processed[0].Opened)
	require.Equal(t, 1, summary.Processed[0].BreakerBlocked)
	require.False(t, summary.Session.WithinLimit)
	require.True(t, d("7482.5").Equal(summary.Session.CurrentBalance), summary.Session.CurrentBalance.String())
	require.Eventually(t, func() bool {
		return notifier.count(EventCircuitBreaker) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBacktest_CircuitBreakerKeepsManagingOpenPositions(t *testing.T) {
	market := newFakeMarket()
	// bar 0 opens at 100, bar 2 opens at 85, bar 3 stops out the first,
	// bar 4 carries a blocked entry signal, bar 5 takes profit on the second
	market.set("ETHUSDT", model.Timeframe1h, "100", "90", "85", "75", "80", "130")
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	rc := testRisk()
	rc.RiskFraction = d("0.5")
	rc.StopLossPct = d("0.2")
	rc.TakeProfitPct = d("0.5")
	rc.MaxDrawdownLimit = d("0.1")

	dirs := map[int]model.Direction{0: model.DirectionLong, 2: model.DirectionLong, 4: model.DirectionLong}
	o := newTestOrchestrator(t, ModeBacktest, testConfig(), rc, Deps{
		Market:     market,
		Store:      store,
		Notifier:   notifier,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: dirs}},
	})
	defer o.Close(context.Background())

	summary, err := o.Backtest(context.Background(), []model.Combination{combo("ETHUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	res := summary.Processed[0]
	require.Equal(t, 2, res.Opened)
	require.Equal(t, 2, res.Closed)
	require.Equal(t, 1, res.BreakerBlocked)

	trades := store.trades()
	require.Len(t, trades, 2)
	require.Equal(t, string(model.ExitStopLoss), trades[0].ExitReason)
	require.True(t, d("100").Equal(trades[0].EntryPrice))
	require.Equal(t, string(model.ExitTakeProfit), trades[1].ExitReason)
	require.True(t, d("85").Equal(trades[1].EntryPrice))
	require.True(t, trades[1].ExitTime.Equal(t0.Add(5*time.Hour)))
	require.True(t, trades[1].Profit.IsPositive())

	require.Eventually(t, func() bool {
		return notifier.count(EventCircuitBreaker) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBacktest_SlowBreakerNotifierDoesNotStallWorkers(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "75", "75", "75", "75")
	market.set("SOLUSDT", model.Timeframe1h, "10", "10", "10", "10", "10")
	store := &fakeStore{}
	notifier := &blockingNotifier{release: make(chan struct{}), entered: make(chan struct{}, 1)}

	rc := testRisk()
	rc.RiskFraction = d("1")
	rc.StopLossPct = d("0.2")
	rc.TakeProfitPct = d("0.5")
	rc.MaxDrawdownLimit = d("0.1")

	cfg := testConfig()
	cfg.Workers = 1
	o := newTestOrchestrator(t, ModeBacktest, cfg, rc, Deps{
		Market:     market,
		Store:      store,
		Notifier:   notifier,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: {0: model.DirectionLong}}},
	})

	type result struct {
		summary *Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := o.Backtest(context.Background(), []model.Combination{
			combo("BTCUSDT", model.Timeframe1h),
			combo("SOLUSDT", model.Timeframe1h),
		}, t0, t0.Add(24*time.Hour))
		done <- result{summary, err}
	}()

	<-notifier.entered
	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		close(notifier.release)
		t.Fatal("backtest stalled behind the circuit breaker notification")
	}
	close(notifier.release)
	o.Close(context.Background())

	require.NoError(t, res.err)
	summary := res.summary

	require.Len(t, summary.Processed, 2)
	require.Equal(t, 1, summary.Processed[1].BreakerBlocked)
}

// blockingNotifier parks circuit breaker events until released.
type blockingNotifier struct {
	release chan struct{}
	entered chan struct{}
}

func (n *blockingNotifier) Notify(_ context.Context, event, _, _ string) error {
	if event != EventCircuitBreaker {
		return nil
	}
	n.entered <- struct{}{}
	<-n.release
	return nil
}

func TestBacktest_GateBlocksEntries(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "100", "100")
	store := &fakeStore{}

	o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{
		Market:     market,
		Store:      store,
		Gate:       closedGate{},
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: {0: model.DirectionLong}}},
	})
	defer o.Close(context.Background())

	summary, err := o.Backtest(context.Background(), []model.Combination{combo("BTCUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Empty(t, store.trades())
	require.Equal(t, 1, summary.Processed[0].GateBlocked)
}

type closedGate struct{}

func (closedGate) TradingEnabled() bool { return false }

func TestBacktest_FlushesAtBatchSize(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "100", "100", "100")
	store := &fakeStore{}

	cfg := testConfig()
	cfg.BatchFlushSize = 2
	dirs := map[int]model.Direction{
		0: model.DirectionLong,
		1: model.DirectionShort,
		2: model.DirectionLong,
		3: model.DirectionShort,
	}
	o := newTestOrchestrator(t, ModeBacktest, cfg, testRisk(), Deps{
		Market:     market,
		Store:      store,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: dirs}},
	})
	defer o.Close(context.Background())

	summary, err := o.Backtest(context.Background(), []model.Combination{combo("BTCUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, store.batches, 2)
	require.Len(t, store.batches[0], 2)
	require.Len(t, store.batches[1], 2)
	require.Equal(t, 4, summary.Processed[0].Flushed)
}

func TestBacktest_FlushRetriesThenDrops(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "100", "100")
	dirs := map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: {0: model.DirectionLong}}

	t.Run("recovers", func(t *testing.T) {
		store := &fakeStore{failures: 2}
		o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{Market: market, Store: store, Strategies: fakeStrategies{dirs: dirs}})
		defer o.Close(context.Background())

		summary, err := o.Backtest(context.Background(), []model.Combination{combo("BTCUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, store.trades(), 1)
		require.Equal(t, 1, summary.Processed[0].Flushed)
	})

	t.Run("exhausted", func(t *testing.T) {
		store := &fakeStore{always: true}
		exceptions := &memoryExceptions{}
		o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{Market: market, Store: store, Strategies: fakeStrategies{dirs: dirs}, Exceptions: exceptions})
		defer o.Close(context.Background())

		summary, err := o.Backtest(context.Background(), []model.Combination{combo("BTCUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
		require.NoError(t, err)
		require.Empty(t, store.trades())
		require.Equal(t, 1, summary.Processed[0].Dropped)
		require.Len(t, exceptions.items, 1)
		require.Equal(t, "flush", exceptions.items[0].Method)
	})
}

func TestBacktest_SkippedCombinationsReported(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "100", "100")
	market.set("ETHUSDT", model.Timeframe1h, "100", "100")
	market.errs[marketKey("SOLUSDT", model.Timeframe1h)] = errors.New("502 bad gateway")
	store := &fakeStore{}

	o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{
		Market:     market,
		Store:      store,
		Strategies: fakeStrategies{},
	})
	defer o.Close(context.Background())

	combos := []model.Combination{
		combo("BTCUSDT", model.Timeframe1h),
		combo("ETHUSDT", model.Timeframe1h),
		combo("SOLUSDT", model.Timeframe1h),
		combo("ADAUSDT", model.Timeframe1h),
	}
	summary, err := o.Backtest(context.Background(), combos, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, summary.Processed, 1)
	require.Len(t, summary.Skipped, 3)
	require.Equal(t, "ADAUSDT", summary.Skipped[0].Combination.Symbol)
	require.Contains(t, summary.Skipped[0].Reason, model.ErrDataUnavailable.Error())
	require.Equal(t, "ETHUSDT", summary.Skipped[1].Combination.Symbol)
	require.Contains(t, summary.Skipped[1].Reason, model.ErrInsufficientHistory.Error())
	require.Equal(t, "SOLUSDT", summary.Skipped[2].Combination.Symbol)
	require.Contains(t, summary.Skipped[2].Reason, "502 bad gateway")

	// transient fetch errors are retried, missing data is not
	require.Equal(t, 3, market.calls[marketKey("SOLUSDT", model.Timeframe1h)])
	require.Contains(t, summary.Text(), "skipped SOLUSDT:Scripted:1h")
}

func TestBacktest_UnknownStrategyIsFatal(t *testing.T) {
	o := newTestOrchestrator(t, ModeBacktest, testConfig(), testRisk(), Deps{
		Market:     newFakeMarket(),
		Store:      &fakeStore{},
		Strategies: fakeStrategies{},
	})
	defer o.Close(context.Background())

	_, err := o.Backtest(context.Background(), []model.Combination{{Symbol: "BTCUSDT", Strategy: "Nope", Timeframe: model.Timeframe1h}}, t0, t0)
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestBacktest_CancellationFlushesProcessedTrades(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "101", "101", "101")
	store := &fakeStore{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := &recordingRouter{}
	router.onOpen = func() {
		if len(router.opened) == 2 {
			cancel()
		}
	}

	cfg := testConfig()
	cfg.Workers = 1
	dirs := map[int]model.Direction{0: model.DirectionLong, 1: model.DirectionShort}
	o := newTestOrchestrator(t, ModeBacktest, cfg, testRisk(), Deps{
		Market:     market,
		Store:      store,
		Router:     router,
		Strategies: fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{model.Timeframe1h: dirs}},
	})
	defer o.Close(context.Background())

	summary, err := o.Backtest(ctx, []model.Combination{combo("BTCUSDT", model.Timeframe1h)}, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, summary.Cancelled)

	// the closed long is persisted, the open short is not force-closed
	trades := store.trades()
	require.Len(t, trades, 1)
	require.Equal(t, string(model.ExitSignal), trades[0].ExitReason)
	require.Equal(t, 1, o.OpenPositions())
}

func TestRunCycle_ProcessesDueTimeframesAndCarriesPositions(t *testing.T) {
	market := newFakeMarket()
	market.set("BTCUSDT", model.Timeframe1h, "100", "100", "100", "100", "100", "100", "100", "100", "100", "100", "100", "100")
	market.set("BTCUSDT", model.Timeframe4h, "100", "100", "100", "100")
	store := &fakeStore{}

	strategies := fakeStrategies{dirs: map[model.Timeframe]map[int]model.Direction{
		model.Timeframe1h: {9: model.DirectionLong},
	}}
	cfg := testConfig()
	cfg.MinCandles = 2
	o := newTestOrchestrator(t, ModeMonitor, cfg, testRisk(), Deps{Market: market, Store: store, Strategies: strategies})

	combos := []model.Combination{combo("BTCUSDT", model.Timeframe1h), combo("BTCUSDT", model.Timeframe4h)}

	// 10:05: the 10:00 bar is still forming, so the 09:00 bar is the latest closed one
	first, err := o.RunCycle(context.Background(), combos, t0.Add(10*time.Hour+5*time.Minute))
	require.NoError(t, err)
	require.Len(t, first.Processed, 2)
	require.Equal(t, 0, first.NotDue)
	require.Equal(t, 1, first.Processed[0].Opened)
	require.Equal(t, 1, first.Processed[0].Candles)
	require.Equal(t, 1, o.OpenPositions())

	// 11:05: only the hourly stream has a fresh boundary
	second, err := o.RunCycle(context.Background(), combos, t0.Add(11*time.Hour+5*time.Minute))
	require.NoError(t, err)
	require.Len(t, second.Processed, 1)
	require.Equal(t, 1, second.NotDue)
	require.Equal(t, 1, second.Processed[0].Candles)
	require.Equal(t, 0, second.Processed[0].Opened)
	require.Equal(t, 1, o.OpenPositions())
	require.Empty(t, store.trades())

	checkpoint := o.Checkpoint()
	o.Close(context.Background())

	restored := newTestOrchestrator(t, ModeMonitor, cfg, testRisk(), Deps{
		Market:     market,
		Store:      store,
		Strategies: strategies,
		Session:    RestoreSession(o.Session().Snapshot()),
	})
	defer restored.Close(context.Background())
	restored.Restore(checkpoint)
	require.Equal(t, 1, restored.OpenPositions())
	require.Equal(t, "monitorBot", restored.RunName())

	// nothing new closed since 11:05, so the restored stream has no bars to process
	third, err := restored.RunCycle(context.Background(), combos[:1], t0.Add(11*time.Hour+10*time.Minute))
	require.NoError(t, err)
	require.Len(t, third.Processed, 1)
	require.Equal(t, 0, third.Processed[0].Candles)
}
