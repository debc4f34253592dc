package strategy

import (
	"fmt"
	"sort"
	"strings"

	"tradingbot/src/model"
)

// Strategy turns a candle series into one signal per candle.
// Implementations are stateless between calls.
type Strategy interface {
	Name() string
	GenerateSignals(candles []model.Candle) []model.Signal
}

// Factory builds a strategy tuned for a timeframe.
type Factory func(tf model.Timeframe) Strategy

// Registry resolves strategy names used in combinations.
type Registry struct {
	factories map[string]Factory
	names     map[string]string
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}, names: map[string]string{}}
}

// Register adds a factory under its canonical name.
func (r *Registry) Register(name string, f Factory) {
	key := normalize(name)
	r.factories[key] = f
	r.names[key] = name
}

// Lookup accepts names with or without the "Strategy" suffix, in any case.
func (r *Registry) Lookup(name string, tf model.Timeframe) (Strategy, error) {
	f, ok := r.factories[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", model.ErrConfiguration, name)
	}
	return f(tf), nil
}

// Canonical returns the registered spelling of a strategy name.
func (r *Registry) Canonical(name string) (string, bool) {
	n, ok := r.names[normalize(name)]
	return n, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(n, "strategy")
}

// Default registers every built-in strategy.
func Default() *Registry {
	r := NewRegistry()
	r.Register("RSIStrategy", func(tf model.Timeframe) Strategy { return NewRSI(tf) })
	r.Register("EnhancedRSIStrategy", func(model.Timeframe) Strategy { return NewEnhancedRSI() })
	r.Register("LiveReactiveRSIStrategy", func(model.Timeframe) Strategy { return NewLiveReactiveRSI() })
	r.Register("RSIDivergenceStrategy", func(model.Timeframe) Strategy { return NewRSIDivergence() })
	r.Register("MovingAverageCrossover", func(model.Timeframe) Strategy { return NewMovingAverageCrossover() })
	r.Register("BollingerBandStrategy", func(model.Timeframe) Strategy { return NewBollinger(BollingerBreakout) })
	r.Register("BollingerMeanReversion", func(model.Timeframe) Strategy { return NewBollinger(BollingerMeanReversion) })
	r.Register("MomentumStrategy", func(model.Timeframe) Strategy { return NewMomentum() })
	r.Register("TrendFollowingStrategy", func(model.Timeframe) Strategy { return NewTrendFollowing() })
	return r
}

func toSignals(candles []model.Candle, dirs []model.Direction) []model.Signal {
	out := make([]model.Signal, len(candles))
	for i, c := range candles {
		out[i] = model.Signal{Time: c.Time, Direction: dirs[i]}
	}
	return out
}
