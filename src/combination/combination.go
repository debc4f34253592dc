package combination

import (
	"fmt"
	"sort"
	"strings"

	"tradingbot/src/model"
	"tradingbot/src/utils"

	"github.com/BurntSushi/toml"
)

var (
	DefaultSymbols = []string{
		"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT",
		"DOGEUSDT", "SOLUSDT", "DOTUSDT", "LINKUSDT", "UNIUSDT",
	}
	DefaultStrategies = []string{
		"RSIStrategy",
		"RSIDivergenceStrategy",
		"EnhancedRSIStrategy",
		"LiveReactiveRSIStrategy",
		"MovingAverageCrossover",
		"BollingerBandStrategy",
		"MomentumStrategy",
		"TrendFollowingStrategy",
	}
	DefaultTimeframes = []model.Timeframe{
		model.Timeframe15m,
		model.Timeframe30m,
		model.Timeframe1h,
		model.Timeframe2h,
		model.Timeframe4h,
		model.Timeframe1d,
	}
)

// Names resolves strategy names to their registered spelling.
type Names interface {
	Canonical(name string) (string, bool)
}

// File is the combinations file layout. The symbols × strategies × timeframes
// matrix and the explicit [[combination]] tables are both expanded.
type File struct {
	Symbols      []string            `toml:"symbols"`
	Strategies   []string            `toml:"strategies"`
	Timeframes   []model.Timeframe   `toml:"timeframes"`
	Combinations []model.Combination `toml:"combination"`
}

// Default returns the full built-in matrix.
func Default() []model.Combination {
	return Matrix(DefaultSymbols, DefaultStrategies, DefaultTimeframes)
}

func Matrix(symbols, strategies []string, timeframes []model.Timeframe) []model.Combination {
	out := make([]model.Combination, 0, len(symbols)*len(strategies)*len(timeframes))
	for _, symbol := range symbols {
		for _, name := range strategies {
			for _, tf := range timeframes {
				out = append(out, model.Combination{Symbol: symbol, Strategy: name, Timeframe: tf})
			}
		}
	}
	return out
}

// LoadFile decodes a TOML combinations file.
func LoadFile(path string) ([]model.Combination, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("%w: read combinations file %s: %v", model.ErrConfiguration, path, err)
	}
	combos := Matrix(f.Symbols, f.Strategies, f.Timeframes)
	combos = append(combos, f.Combinations...)
	if len(combos) == 0 {
		return nil, fmt.Errorf("%w: combinations file %s lists no combinations", model.ErrConfiguration, path)
	}
	return combos, nil
}

// Parse reads one "SYMBOL:STRATEGY:TIMEFRAME" override.
func Parse(s string) (model.Combination, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return model.Combination{}, fmt.Errorf("%w: combination %q must look like SYMBOL:STRATEGY:TIMEFRAME", model.ErrConfiguration, s)
	}
	tf, err := model.ParseTimeframe(parts[2])
	if err != nil {
		return model.Combination{}, err
	}
	symbol := utils.NormalizeToUSDT(parts[0])
	name := strings.TrimSpace(parts[1])
	if symbol == "" || name == "" {
		return model.Combination{}, fmt.Errorf("%w: combination %q has an empty field", model.ErrConfiguration, s)
	}
	return model.Combination{Symbol: symbol, Strategy: name, Timeframe: tf}, nil
}

// ParseList parses every override, accepting comma separated values too.
func ParseList(values []string) ([]model.Combination, error) {
	var out []model.Combination
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if strings.TrimSpace(item) == "" {
				continue
			}
			c, err := Parse(item)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// Validate canonicalizes names, rejects unknown strategies and timeframes and
// drops duplicates. Any error here is a ConfigurationError.
func Validate(combos []model.Combination, names Names) ([]model.Combination, error) {
	if len(combos) == 0 {
		return nil, fmt.Errorf("%w: no combinations to run", model.ErrConfiguration)
	}

	seen := make(map[model.Combination]bool, len(combos))
	out := make([]model.Combination, 0, len(combos))
	var unknown []string
	for _, c := range combos {
		tf, err := model.ParseTimeframe(string(c.Timeframe))
		if err != nil {
			return nil, err
		}
		name, ok := names.Canonical(c.Strategy)
		if !ok {
			unknown = append(unknown, c.Strategy)
			continue
		}
		c = model.Combination{Symbol: utils.NormalizeToUSDT(c.Symbol), Strategy: name, Timeframe: tf}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown strategies %s", model.ErrConfiguration, strings.Join(unknown, ", "))
	}
	return out, nil
}

// Resolve picks the override list, then the file, then the defaults.
func Resolve(overrides []string, path string, names Names) ([]model.Combination, error) {
	var (
		combos []model.Combination
		err    error
	)
	switch {
	case len(overrides) > 0:
		combos, err = ParseList(overrides)
	case path != "":
		combos, err = LoadFile(path)
	default:
		combos = Default()
	}
	if err != nil {
		return nil, err
	}
	return Validate(combos, names)
}
