package streak

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradingbot/src/model"
	"tradingbot/src/utils"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	EventStreakChanged = "streak_changed"
)

// DailyProfitSource returns realized profit per UTC day for exits in [from, to).
type DailyProfitSource interface {
	QueryDailyProfit(ctx context.Context, runName string, from, to time.Time) ([]model.DailyProfit, error)
}

type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// State is the gate's view of recent performance.
type State struct {
	TradingEnabled       bool                `json:"trading_enabled"`
	RequiredPositiveDays int                 `json:"required_positive_days"`
	MinProfitThreshold   decimal.Decimal     `json:"min_profit_threshold"`
	PositiveDays         int                 `json:"positive_days"`
	LastCheckTime        time.Time           `json:"last_check_time"`
	Window               []model.DailyProfit `json:"window"`
	History              []model.DailyProfit `json:"daily_profit_history"`
}

// Gate enables or disables new entries from the daily profit of a run.
// Only Evaluate and Restore mutate it.
type Gate struct {
	cfg      Config
	source   DailyProfitSource
	notifier Notifier
	log      *logger.Entry
	now      func() time.Time

	mu    sync.RWMutex
	state State
}

func NewGate(cfg Config, source DailyProfitSource, notifier Notifier) *Gate {
	if cfg.HistoryDays < cfg.RequiredPositiveDays {
		cfg.HistoryDays = cfg.RequiredPositiveDays
	}
	return &Gate{
		cfg:      cfg,
		source:   source,
		notifier: notifier,
		log:      logger.WithField("component", "StreakGate").WithField("runName", cfg.RunName),
		now:      time.Now,
		state: State{
			TradingEnabled:       cfg.InitialEnabled || cfg.EmergencyOverride,
			RequiredPositiveDays: cfg.RequiredPositiveDays,
			MinProfitThreshold:   cfg.MinProfitThreshold,
		},
	}
}

// TradingEnabled is polled by the trading path before opening positions.
func (g *Gate) TradingEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.TradingEnabled
}

func (g *Gate) Snapshot() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := g.state
	s.Window = append([]model.DailyProfit(nil), g.state.Window...)
	s.History = append([]model.DailyProfit(nil), g.state.History...)
	return s
}

// Restore loads a checkpointed state. Thresholds always come from the config.
func (g *Gate) Restore(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.RequiredPositiveDays = g.cfg.RequiredPositiveDays
	s.MinProfitThreshold = g.cfg.MinProfitThreshold
	if g.cfg.EmergencyOverride {
		s.TradingEnabled = true
	}
	s.History = trimHistory(s.History, g.cfg.HistoryDays)
	g.state = s
}

// Due reports whether a check interval elapsed since the last successful evaluation.
func (g *Gate) Due(now time.Time) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.LastCheckTime.IsZero() || now.Sub(g.state.LastCheckTime) >= g.cfg.CheckInterval
}

// Evaluate counts the positive days among the last RequiredPositiveDays complete
// UTC days and sets the state. A failed query leaves the state untouched.
func (g *Gate) Evaluate(ctx context.Context) (State, error) {
	now := g.now().UTC()

	if g.cfg.EmergencyOverride {
		g.apply(ctx, true, 0, nil, now)
		return g.Snapshot(), nil
	}

	days := g.cfg.RequiredPositiveDays
	today := utils.StartOfDayUTC(now)
	from := today.AddDate(0, 0, -days)

	rows, err := g.source.QueryDailyProfit(ctx, g.cfg.RunName, from, today)
	if err != nil {
		g.log.WithError(err).Error("failed to query daily profit, keeping previous state")
		return g.Snapshot(), fmt.Errorf("query daily profit: %w", err)
	}

	byDay := make(map[string]model.DailyProfit, len(rows))
	for _, r := range rows {
		key := utils.DateKey(r.Date)
		agg := byDay[key]
		agg.Profit = agg.Profit.Add(r.Profit)
		agg.Trades += r.Trades
		byDay[key] = agg
	}

	window := make([]model.DailyProfit, 0, days)
	positive := 0
	for i := days; i >= 1; i-- {
		day := today.AddDate(0, 0, -i)
		dp := byDay[utils.DateKey(day)]
		dp.Date = day
		if dp.Profit.GreaterThan(g.cfg.MinProfitThreshold) {
			positive++
		}
		window = append(window, dp)
	}

	g.apply(ctx, positive >= days, positive, window, now)
	return g.Snapshot(), nil
}

func (g *Gate) apply(ctx context.Context, enabled bool, positive int, window []model.DailyProfit, now time.Time) {
	g.mu.Lock()
	previous := g.state.TradingEnabled
	g.state.TradingEnabled = enabled
	g.state.PositiveDays = positive
	g.state.LastCheckTime = now
	if window != nil {
		g.state.Window = window
		g.state.History = trimHistory(mergeHistory(g.state.History, window), g.cfg.HistoryDays)
	}
	g.mu.Unlock()

	fields := logger.Fields{
		"enabled":      enabled,
		"positiveDays": positive,
		"requiredDays": g.cfg.RequiredPositiveDays,
		"override":     g.cfg.EmergencyOverride,
	}
	if previous == enabled {
		g.log.WithFields(fields).Debug("streak gate evaluated, state unchanged")
		return
	}

	title := "Trading disabled"
	if enabled {
		title = "Trading enabled"
	}
	message := fmt.Sprintf("%s: %d/%d positive days for %s", title, positive, g.cfg.RequiredPositiveDays, g.cfg.RunName)
	if g.cfg.EmergencyOverride {
		message = title + ": emergency override"
	}
	g.log.WithFields(fields).Warn(message)

	if g.notifier != nil {
		if err := g.notifier.Notify(ctx, EventStreakChanged, title, message); err != nil {
			g.log.WithError(err).Error("failed to notify streak change")
		}
	}
}

// Run evaluates whenever the check interval elapsed, until ctx is done.
func (g *Gate) Run(ctx context.Context) error {
	if !g.cfg.AutomationEnabled {
		g.log.Info("streak automation disabled, gate keeps its current state")
		return nil
	}

	period := g.cfg.PollPeriod
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if g.Due(g.now()) {
			_, _ = g.Evaluate(ctx)
		}

		select {
		case <-ctx.Done():
			g.log.Info("streak gate loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func mergeHistory(history, window []model.DailyProfit) []model.DailyProfit {
	byDay := make(map[string]model.DailyProfit, len(history)+len(window))
	for _, h := range history {
		byDay[utils.DateKey(h.Date)] = h
	}
	for _, w := range window {
		byDay[utils.DateKey(w.Date)] = w
	}

	out := make([]model.DailyProfit, 0, len(byDay))
	for _, v := range byDay {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func trimHistory(history []model.DailyProfit, limit int) []model.DailyProfit {
	if limit > 0 && len(history) > limit {
		return append([]model.DailyProfit(nil), history[len(history)-limit:]...)
	}
	return history
}
