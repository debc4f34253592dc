package runner

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"tradingbot/src/cache"
	"tradingbot/src/combination"
	"tradingbot/src/connectors"
	"tradingbot/src/engine"
	"tradingbot/src/executors"
	"tradingbot/src/model"
	"tradingbot/src/notify"
	"tradingbot/src/repository"
	"tradingbot/src/server"
	"tradingbot/src/strategy"
	"tradingbot/src/streak"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options are the command line overrides of a run.
type Options struct {
	Combos     []string
	RunName    string
	Start      time.Time
	End        time.Time
	Interval   time.Duration
	StreakGate bool
	Port       string
}

// Runner builds the object graph of one command from its environment.
type Runner struct {
	Env    Env
	DB     *gorm.DB
	ReadDB *gorm.DB
	Out    io.Writer
	Log    *logrus.Entry
}

func New(env Env, db, readDB *gorm.DB, out io.Writer) *Runner {
	if readDB == nil {
		readDB = db
	}
	return &Runner{Env: env, DB: db, ReadDB: readDB, Out: out, Log: logrus.WithField("cmd", "runner")}
}

func (r *Runner) combinations(opts Options) ([]model.Combination, *strategy.Registry, error) {
	registry := strategy.Default()
	combos, err := combination.Resolve(opts.Combos, r.Env.CombinationsFile, registry)
	if err != nil {
		return nil, nil, err
	}
	return combos, registry, nil
}

func (r *Runner) orchestrator(mode engine.Mode, opts Options, registry *strategy.Registry, gate engine.EntryGate, session *engine.Session) (*engine.Orchestrator, error) {
	market, err := connectors.NewMarketData(r.Env.Connectors, repository.NewCandleRepositoryWithDB(r.DB))
	if err != nil {
		return nil, err
	}
	router, err := connectors.NewOrderRouter(r.Env.Connectors, mode)
	if err != nil {
		return nil, err
	}

	cfg := r.Env.Engine
	if opts.RunName != "" {
		cfg.RunName = opts.RunName
	}
	if opts.Interval > 0 {
		cfg.CycleInterval = opts.Interval
	}

	return engine.New(cfg, mode, r.Env.Risk, engine.Deps{
		Market:     market,
		Store:      repository.NewTradeRepositoryWithDB(r.DB),
		Strategies: registry,
		Gate:       gate,
		Router:     router,
		Notifier:   notify.FromConfig(r.Env.Notify),
		Exceptions: repository.NewExceptionRepositoryWithDB(r.DB),
		Session:    session,
	})
}

// Backtest clears the run's earlier trades, then replays [start, end).
func (r *Runner) Backtest(ctx context.Context, opts Options) (*engine.Summary, error) {
	combos, registry, err := r.combinations(opts)
	if err != nil {
		return nil, err
	}
	if !opts.Start.Before(opts.End) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", model.ErrConfiguration, opts.Start, opts.End)
	}

	orch, err := r.orchestrator(engine.ModeBacktest, opts, registry, nil, nil)
	if err != nil {
		return nil, err
	}
	defer orch.Close(context.WithoutCancel(ctx))

	if _, err := repository.NewTradeRepositoryWithDB(r.DB).Clear(ctx, orch.RunName()); err != nil {
		return nil, fmt.Errorf("clear previous trades of %s: %w", orch.RunName(), err)
	}

	summary, err := orch.Backtest(ctx, combos, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}
	if r.Out != nil {
		_, _ = io.WriteString(r.Out, summary.Text())
	}
	return summary, nil
}

// Live runs monitor or live cycles until ctx is done.
func (r *Runner) Live(ctx context.Context, mode engine.Mode, opts Options) error {
	combos, registry, err := r.combinations(opts)
	if err != nil {
		return err
	}

	runName := opts.RunName
	if runName == "" {
		runName = r.Env.Engine.RunName
	}
	if runName == "" {
		runName = mode.DefaultRunName()
	}
	opts.RunName = runName

	var (
		loader executors.CheckpointLoader
		saver  executors.CheckpointSaver
	)
	if r.Env.Cache.Enabled() {
		client, err := cache.New(ctx, r.Env.Cache)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		release, err := cache.NewRunLock(client).Acquire(ctx, runName, r.Env.Cache.LockTTL)
		if err != nil {
			return err
		}
		defer release()

		store := cache.NewCheckpointStore(client)
		loader, saver = store, store
	}

	cp, err := executors.LoadCheckpoint(ctx, loader, runName)
	if err != nil {
		return err
	}

	var session *engine.Session
	if cp != nil {
		session = engine.RestoreSession(cp.Session)
		r.Log.WithField("run_name", runName).WithField("saved_at", cp.SavedAt).Info("resuming from checkpoint")
	}

	var (
		entryGate engine.EntryGate
		loopGate  executors.Gate
	)
	notifier := notify.FromConfig(r.Env.Notify)
	if opts.StreakGate {
		gate := streak.NewGate(r.Env.Streak, repository.NewTradeRepositoryWithDB(r.ReadDB), notifier)
		if cp != nil {
			gate.Restore(cp.Streak)
		}
		entryGate, loopGate = gate, gate
	}

	orch, err := r.orchestrator(mode, opts, registry, entryGate, session)
	if err != nil {
		if session != nil {
			session.Close()
		}
		return err
	}
	if cp != nil {
		orch.Restore(cp.Streams)
	}

	loopCfg := r.Env.Executor
	if opts.Interval > 0 {
		loopCfg.LoopPeriod = opts.Interval
	}
	loop := executors.NewLoop(loopCfg, mode, combos, orch, loopGate, saver)

	if opts.Port != "" {
		go func() {
			if err := server.StartServer(ctx, opts.Port, loop); err != nil {
				r.Log.WithError(err).Error("status server stopped")
			}
		}()
	}

	return loop.StartLoop(ctx)
}

// Streak evaluates the gate once and prints the daily window.
func (r *Runner) Streak(ctx context.Context, runName string) (streak.State, error) {
	cfg := r.Env.Streak
	if runName != "" {
		cfg.RunName = runName
	}
	trades := repository.NewTradeRepositoryWithDB(r.ReadDB)
	gate := streak.NewGate(cfg, trades, nil)

	state, err := gate.Evaluate(ctx)
	if err != nil {
		return state, err
	}

	recent, err := trades.Recent(ctx, cfg.RunName, 10)
	if err != nil {
		return state, err
	}
	exceptions, err := repository.NewExceptionRepositoryWithDB(r.ReadDB).Since(ctx, time.Now().Add(-24*time.Hour), 10)
	if err != nil {
		return state, err
	}

	if r.Out != nil {
		writeStreak(r.Out, cfg, state, recent, exceptions)
	}
	return state, nil
}

func writeStreak(out io.Writer, cfg streak.Config, state streak.State, recent []model.TradeRecord, exceptions []model.Exception) {
	status := "disabled"
	if state.TradingEnabled {
		status = "enabled"
	}
	_, _ = fmt.Fprintf(out, "run %s: trading %s (%d/%d positive days, threshold %s)\n",
		cfg.RunName, status, state.PositiveDays, cfg.RequiredPositiveDays, cfg.MinProfitThreshold)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tTRADES\tPROFIT")
	for _, d := range state.Window {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", d.Date.Format("2006-01-02"), d.Trades, d.Profit.StringFixed(2))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "recent trades: %d\n", len(recent))
	for _, t := range recent {
		_, _ = fmt.Fprintf(out, "  %s %s %s %s %s\n", t.ExitTime.Format(time.RFC3339), t.Symbol, t.Strategy, t.ExitReason, t.Profit.StringFixed(2))
	}
	if len(exceptions) > 0 {
		_, _ = fmt.Fprintf(out, "exceptions in the last 24h: %d\n", len(exceptions))
	}
}

// Clear removes the trades of a run, or of every run when all is set.
func (r *Runner) Clear(ctx context.Context, runName string, all bool) (int64, error) {
	if all {
		runName = ""
	} else if runName == "" {
		return 0, fmt.Errorf("%w: clear needs --run-name or --all", model.ErrConfiguration)
	}
	n, err := repository.NewTradeRepositoryWithDB(r.DB).Clear(ctx, runName)
	if err != nil {
		return 0, err
	}
	if r.Out != nil {
		_, _ = fmt.Fprintf(r.Out, "deleted %d trades\n", n)
	}
	return n, nil
}
