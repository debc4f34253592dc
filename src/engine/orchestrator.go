package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradingbot/src/audit"
	"tradingbot/src/ledger"
	"tradingbot/src/model"
	"tradingbot/src/risk"
	"tradingbot/src/strategy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeMonitor  Mode = "monitor"
	ModeLive     Mode = "live"
)

// DefaultRunName is the run label trades are persisted under for each mode.
func (m Mode) DefaultRunName() string {
	switch m {
	case ModeMonitor:
		return "monitorBot"
	case ModeLive:
		return "testBot"
	default:
		return "backTestBot"
	}
}

const (
	EventRunSummary     = "run_summary"
	EventCircuitBreaker = "circuit_breaker"
)

// MarketData returns candles for one symbol and timeframe. A zero start with a
// positive limit asks for the most recent limit bars up to end.
type MarketData interface {
	FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.Candle, error)
}

type TradeStore interface {
	AppendTrades(ctx context.Context, trades []model.TradeRecord) error
}

type StrategyResolver interface {
	Lookup(name string, tf model.Timeframe) (strategy.Strategy, error)
}

// EntryGate decides whether new positions may open.
type EntryGate interface {
	TradingEnabled() bool
}

// OrderRouter mirrors ledger transitions to an execution venue.
type OrderRouter interface {
	Open(ctx context.Context, p model.Position) error
	Close(ctx context.Context, p model.Position) error
}

type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// AlwaysEnabled is the gate used when no streak gate applies.
type AlwaysEnabled struct{}

func (AlwaysEnabled) TradingEnabled() bool { return true }

type Deps struct {
	Market     MarketData
	Store      TradeStore
	Strategies StrategyResolver
	Gate       EntryGate
	Router     OrderRouter
	Notifier   Notifier
	Exceptions audit.ExceptionRecorder
	// Session resumes a checkpointed balance; nil starts from the initial balance.
	Session *Session
}

// Orchestrator drives combinations through signal generation, risk exits,
// entries and persistence. Backtest and RunCycle must not run concurrently.
type Orchestrator struct {
	cfg       Config
	mode      Mode
	runName   string
	runID     string
	sizer     risk.PositionSizer
	evaluator risk.Evaluator
	feeRate   decimal.Decimal

	market     MarketData
	store      TradeStore
	strategies StrategyResolver
	gate       EntryGate
	router     OrderRouter
	notifier   Notifier
	exceptions audit.ExceptionRecorder
	session    *Session

	streams map[model.Combination]*stream
	log     *logger.Entry
	now     func() time.Time
}

func New(cfg Config, mode Mode, riskCfg risk.Config, deps Deps) (*Orchestrator, error) {
	if deps.Market == nil || deps.Store == nil || deps.Strategies == nil {
		return nil, fmt.Errorf("%w: market data, trade store and strategies are required", model.ErrConfiguration)
	}
	sizer, err := riskCfg.Sizer()
	if err != nil {
		return nil, err
	}
	if cfg.RunName == "" {
		cfg.RunName = mode.DefaultRunName()
	}

	o := &Orchestrator{
		cfg:        cfg,
		mode:       mode,
		runName:    cfg.RunName,
		runID:      uuid.NewString(),
		sizer:      sizer,
		evaluator:  riskCfg.Evaluator(),
		feeRate:    riskCfg.FeeRate,
		market:     deps.Market,
		store:      deps.Store,
		strategies: deps.Strategies,
		gate:       deps.Gate,
		router:     deps.Router,
		notifier:   deps.Notifier,
		exceptions: deps.Exceptions,
		session:    deps.Session,
		streams:    make(map[model.Combination]*stream),
		now:        func() time.Time { return time.Now().UTC() },
	}
	if o.gate == nil {
		o.gate = AlwaysEnabled{}
	}
	if o.session == nil {
		o.session = NewSession(riskCfg.InitialBalance, riskCfg.MaxDrawdownLimit)
	}
	o.log = logger.WithField("component", "orchestrator").
		WithField("mode", mode).
		WithField("run_name", o.runName).
		WithField("run_id", o.runID)
	o.session.OnCircuitBreak(o.circuitBroken)
	return o, nil
}

func (o *Orchestrator) RunName() string   { return o.runName }
func (o *Orchestrator) RunID() string     { return o.runID }
func (o *Orchestrator) Session() *Session { return o.session }

// Backtest replays every combination once over [start, end], closing whatever
// is still open at the final bar.
func (o *Orchestrator) Backtest(ctx context.Context, combos []model.Combination, start, end time.Time) (*Summary, error) {
	streams, err := o.prepare(combos)
	if err != nil {
		return nil, err
	}
	summary := newSummary(o.mode, o.runName, o.runID, len(combos), o.now())
	o.log.WithField("combinations", len(combos)).
		WithField("start", start.Format(time.RFC3339)).
		WithField("end", end.Format(time.RFC3339)).
		Info("backtest started")

	var g errgroup.Group
	g.SetLimit(o.cfg.workers())
	for _, st := range streams {
		st := st
		g.Go(func() error {
			o.backtestStream(ctx, st, start, end, summary)
			return nil
		})
	}
	_ = g.Wait()

	return o.complete(ctx, summary), nil
}

func (o *Orchestrator) backtestStream(ctx context.Context, st *stream, start, end time.Time, summary *Summary) {
	st.resetResult()
	st.lastDirection = model.DirectionNone
	st.lastProcessed = time.Time{}
	if err := ctx.Err(); err != nil {
		summary.skip(st.combo, err)
		return
	}

	candles, err := o.fetch(ctx, st.combo, start, end, 0)
	if err != nil {
		summary.skip(st.combo, err)
		return
	}
	if len(candles) < o.cfg.MinCandles {
		summary.skip(st.combo, fmt.Errorf("%w: %d candles, need %d", model.ErrInsufficientHistory, len(candles), o.cfg.MinCandles))
		return
	}

	signals := st.strategy.GenerateSignals(candles)
	interrupted := false
	for i, c := range candles {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		o.step(ctx, st, c, signals[i].Direction)
	}

	if !interrupted {
		last := candles[len(candles)-1]
		for _, p := range st.ledger.ForceCloseAll(last.Close, last.Time) {
			o.settle(ctx, st, p)
		}
	}
	o.flush(ctx, st)
	summary.add(st.result)
}

// RunCycle processes the combinations whose timeframe has a bar boundary in
// the cycle ending at now. Open positions carry over to the next cycle.
func (o *Orchestrator) RunCycle(ctx context.Context, combos []model.Combination, now time.Time) (*Summary, error) {
	streams, err := o.prepare(combos)
	if err != nil {
		return nil, err
	}
	summary := newSummary(o.mode, o.runName, o.runID, len(combos), o.now())

	var g errgroup.Group
	g.SetLimit(o.cfg.workers())
	for _, st := range streams {
		if st.primed && !IsDue(st.combo.Timeframe, now, o.cfg.CycleInterval) {
			summary.NotDue++
			continue
		}
		st := st
		g.Go(func() error {
			o.cycleStream(ctx, st, now, summary)
			return nil
		})
	}
	_ = g.Wait()

	return o.complete(ctx, summary), nil
}

func (o *Orchestrator) cycleStream(ctx context.Context, st *stream, now time.Time, summary *Summary) {
	st.resetResult()
	if err := ctx.Err(); err != nil {
		summary.skip(st.combo, err)
		return
	}

	candles, err := o.fetch(ctx, st.combo, time.Time{}, now, o.cfg.LiveCandleLimit)
	if err != nil {
		summary.skip(st.combo, err)
		return
	}
	candles = ClosedCandles(candles, st.combo.Timeframe, now)
	if len(candles) < o.cfg.MinCandles || len(candles) == 0 {
		summary.skip(st.combo, fmt.Errorf("%w: %d closed candles, need %d", model.ErrInsufficientHistory, len(candles), o.cfg.MinCandles))
		return
	}

	signals := st.strategy.GenerateSignals(candles)
	n := len(candles)
	if !st.primed {
		// first sight of a stream: trade only the latest bar, seeded by the bar before it
		if n >= 2 {
			st.lastDirection = signals[n-2].Direction
		}
		o.step(ctx, st, candles[n-1], signals[n-1].Direction)
		st.primed = true
	} else {
		for i, c := range candles {
			if !c.Time.After(st.lastProcessed) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			o.step(ctx, st, c, signals[i].Direction)
		}
	}

	o.flush(ctx, st)
	summary.add(st.result)
}

// step applies one closed bar: risk exit, else signal exit, then a possible entry.
func (o *Orchestrator) step(ctx context.Context, st *stream, c model.Candle, dir model.Direction) {
	st.result.Candles++

	riskExit := false
	if p, ok := st.ledger.EvaluateAndClose(st.key, c.Close, c.Time); ok {
		o.settle(ctx, st, p)
		riskExit = true
	}

	side, actionable := dir.Side()
	fresh := actionable && dir != st.lastDirection
	if fresh && !riskExit {
		if p, ok := st.ledger.CloseOldest(st.key, side.Opposite(), c.Close, c.Time, model.ExitSignal); ok {
			o.settle(ctx, st, p)
		}
	}
	if fresh {
		o.enter(ctx, st, side, c)
	}

	st.lastDirection = dir
	st.lastProcessed = c.Time

	if len(st.buffer) >= o.cfg.flushSize() {
		o.flush(ctx, st)
	}
}

func (o *Orchestrator) enter(ctx context.Context, st *stream, side model.Side, c model.Candle) {
	log := o.log.WithField("combination", st.combo.String())

	if !o.gate.TradingEnabled() {
		st.result.GateBlocked++
		log.Debug("entry skipped, trading disabled by streak gate")
		return
	}
	state := o.session.Current()
	if !state.WithinLimit {
		st.result.BreakerBlocked++
		log.WithError(ErrDrawdownLimit).Debug("entry skipped")
		return
	}
	if !st.ledger.HasCapacity(st.key) {
		st.result.CapacityBlocked++
		log.WithError(ledger.ErrCapacityExceeded).Debug("entry skipped")
		return
	}

	size, err := o.sizer.Size(c.Close, st.combo.Symbol, state.AvailableBalance)
	if err != nil {
		st.result.SizingRejected++
		log.WithError(err).Debug("entry skipped, sizing rejected")
		return
	}
	notional := c.Close.Mul(size)
	if err := o.session.Reserve(notional); err != nil {
		if errors.Is(err, ErrDrawdownLimit) {
			st.result.BreakerBlocked++
		} else {
			st.result.SizingRejected++
		}
		log.WithError(err).
			WithField("notional", notional.String()).
			Debug("entry skipped")
		return
	}

	p, err := st.ledger.Open(st.key, side, c.Close, c.Time, size)
	if err != nil {
		o.session.Release(notional)
		st.result.SizingRejected++
		log.WithError(err).Warn("entry rejected by ledger")
		return
	}
	st.result.Opened++

	log.WithField("side", side).
		WithField("price", c.Close.String()).
		WithField("size", size.String()).
		Debug("position opened")

	if o.router != nil {
		if err := o.router.Open(ctx, *p); err != nil {
			st.result.OrderErrors++
			audit.Capture(ctx, o.exceptions, "orchestrator", st.combo.String(), "router.Open", audit.LevelError, err, map[string]interface{}{
				"side":  side,
				"price": c.Close.String(),
				"size":  size.String(),
			})
		}
	}
}

func (o *Orchestrator) settle(ctx context.Context, st *stream, p *model.Position) {
	o.session.Settle(p.Notional(), p.Profit, p.Fees)
	st.buffer = append(st.buffer, model.NewTradeRecord(p, o.runName, o.runID, o.now()))
	st.result.Closed++
	st.result.NetProfit = st.result.NetProfit.Add(p.Profit)

	if o.router != nil && p.ExitReason != model.ExitEndOfRun {
		if err := o.router.Close(ctx, *p); err != nil {
			st.result.OrderErrors++
			audit.Capture(ctx, o.exceptions, "orchestrator", st.combo.String(), "router.Close", audit.LevelError, err, map[string]interface{}{
				"side":        p.Side,
				"exit_reason": p.ExitReason,
			})
		}
	}
}

// flush persists the stream buffer. It survives cancellation of ctx so that a
// shutdown still writes what was processed; an exhausted batch is dropped.
func (o *Orchestrator) flush(ctx context.Context, st *stream) {
	if len(st.buffer) == 0 {
		return
	}
	batch := st.buffer
	st.buffer = nil

	base := context.WithoutCancel(ctx)
	err := Retry(base, o.cfg.flushPolicy(), "append trades", o.log, func(ctx context.Context) error {
		return o.store.AppendTrades(ctx, batch)
	})
	if err != nil {
		st.result.Dropped += len(batch)
		o.log.WithError(err).
			WithField("combination", st.combo.String()).
			WithField("trades", len(batch)).
			Error("trade batch dropped")
		audit.Capture(base, o.exceptions, "orchestrator", st.combo.String(), "flush", audit.LevelError, err, map[string]interface{}{
			"trades": len(batch),
		})
		return
	}
	st.result.Flushed += len(batch)
}

func (o *Orchestrator) fetch(ctx context.Context, c model.Combination, start, end time.Time, limit int) ([]model.Candle, error) {
	var candles []model.Candle
	err := Retry(ctx, o.cfg.fetchPolicy(), "fetch candles", o.log.WithField("combination", c.String()), func(ctx context.Context) error {
		var err error
		candles, err = o.market.FetchCandles(ctx, c.Symbol, c.Timeframe, start, end, limit)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrDataUnavailable) || errors.Is(err, model.ErrInsufficientHistory) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrDataUnavailable, err)
	}

	candles = model.NormalizeCandles(candles)
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", model.ErrDataUnavailable, c)
	}
	return candles, nil
}

// prepare resolves a stream per combination, reusing existing ones.
func (o *Orchestrator) prepare(combos []model.Combination) ([]*stream, error) {
	out := make([]*stream, 0, len(combos))
	seen := make(map[model.Combination]bool, len(combos))
	for _, c := range combos {
		if seen[c] {
			continue
		}
		seen[c] = true

		st, err := o.streamFor(c)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (o *Orchestrator) streamFor(c model.Combination) (*stream, error) {
	if st, ok := o.streams[c]; ok {
		return st, nil
	}
	strat, err := o.strategies.Lookup(c.Strategy, c.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("combination %s: %w", c, err)
	}
	st := &stream{
		combo:    c,
		key:      ledger.KeyFor(c),
		strategy: strat,
		ledger:   ledger.New(o.evaluator, o.feeRate, o.cfg.MaxConcurrentPositions),
	}
	o.streams[c] = st
	return st, nil
}

func (o *Orchestrator) complete(ctx context.Context, summary *Summary) *Summary {
	summary.finish(o.session.Current(), ctx.Err() != nil, o.now())
	summary.Log(o.log)

	if o.notifier != nil && (o.mode == ModeBacktest || len(summary.Skipped) > 0) {
		title := fmt.Sprintf("%s summary", o.mode)
		if err := o.notifier.Notify(context.WithoutCancel(ctx), EventRunSummary, title, summary.Text()); err != nil {
			o.log.WithError(err).Warn("failed to send run summary")
		}
	}
	return summary
}

func (o *Orchestrator) circuitBroken(state SessionState) {
	if o.notifier == nil {
		return
	}
	msg := fmt.Sprintf("max drawdown %s exceeded limit %s at balance %s; new entries halted",
		state.MaxDrawdownSoFar.StringFixed(4), state.MaxDrawdownLimit.String(), state.CurrentBalance.StringFixed(2))
	if err := o.notifier.Notify(context.Background(), EventCircuitBreaker, "Circuit breaker tripped", msg); err != nil {
		o.log.WithError(err).Warn("failed to send circuit breaker notification")
	}
}

// Checkpoint captures the resumable stream state for the combinations seen so far.
func (o *Orchestrator) Checkpoint() []StreamCheckpoint {
	out := make([]StreamCheckpoint, 0, len(o.streams))
	for _, st := range o.streams {
		out = append(out, StreamCheckpoint{
			Combination:   st.combo,
			LastProcessed: st.lastProcessed,
			LastDirection: st.lastDirection,
			OpenPositions: st.ledger.OpenPositions(st.key),
		})
	}
	return out
}

// Restore seeds streams from a checkpoint. Unknown strategies are skipped with a warning.
func (o *Orchestrator) Restore(checkpoints []StreamCheckpoint) {
	for _, cp := range checkpoints {
		st, err := o.streamFor(cp.Combination)
		if err != nil {
			o.log.WithError(err).Warn("checkpointed stream not restored")
			continue
		}
		st.lastProcessed = cp.LastProcessed
		st.lastDirection = cp.LastDirection
		st.primed = !cp.LastProcessed.IsZero()
		for _, p := range cp.OpenPositions {
			st.ledger.Adopt(p)
		}
	}
}

// OpenPositions counts positions currently held across all streams.
func (o *Orchestrator) OpenPositions() int {
	n := 0
	for _, st := range o.streams {
		n += st.ledger.Total()
	}
	return n
}

// Close flushes any buffered trades and stops the session aggregator.
// Open positions are left as they are.
func (o *Orchestrator) Close(ctx context.Context) {
	for _, st := range o.streams {
		o.flush(ctx, st)
	}
	o.session.Close()
	o.log.Info("orchestrator closed")
}
