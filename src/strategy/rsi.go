package strategy

import (
	"math"

	"tradingbot/src/indicators"
	"tradingbot/src/model"
)

// RSI trades oversold/overbought readings confirmed by trend strength,
// skipping bars with a volatility spike.
type RSI struct {
	Period      int
	Overbought  float64
	Oversold    float64
	TrendPeriod int
}

func NewRSI(tf model.Timeframe) *RSI {
	switch tf {
	case model.Timeframe4h:
		return &RSI{Period: 14, Overbought: 75, Oversold: 25, TrendPeriod: 30}
	case model.Timeframe1d:
		return &RSI{Period: 14, Overbought: 80, Oversold: 20, TrendPeriod: 50}
	default:
		return &RSI{Period: 14, Overbought: 70, Oversold: 30, TrendPeriod: 20}
	}
}

func (s *RSI) Name() string { return "RSIStrategy" }

func (s *RSI) GenerateSignals(candles []model.Candle) []model.Signal {
	closes := model.Closes(candles)
	rsi := indicators.RSI(closes, s.Period)
	trend := trendStrength(closes, s.TrendPeriod/2, s.TrendPeriod)
	vol := indicators.StdDev(indicators.PctChange(closes, 1), s.TrendPeriod)
	volLimit := indicators.SMA(vol, 20)

	dirs := make([]model.Direction, len(candles))
	for i := range candles {
		if math.IsNaN(rsi[i]) || math.IsNaN(trend[i]) {
			continue
		}
		if !math.IsNaN(vol[i]) && !math.IsNaN(volLimit[i]) && vol[i] > volLimit[i]*1.5 {
			continue
		}
		switch {
		case rsi[i] < s.Oversold && trend[i] > 0.002:
			dirs[i] = model.DirectionLong
		case rsi[i] > s.Overbought && trend[i] < -0.002:
			dirs[i] = model.DirectionShort
		}
	}
	return toSignals(candles, dirs)
}

// EnhancedRSI uses tighter thresholds without filters.
type EnhancedRSI struct {
	Period     int
	Oversold   float64
	Overbought float64
}

func NewEnhancedRSI() *EnhancedRSI {
	return &EnhancedRSI{Period: 14, Oversold: 45, Overbought: 55}
}

func (s *EnhancedRSI) Name() string { return "EnhancedRSIStrategy" }

func (s *EnhancedRSI) GenerateSignals(candles []model.Candle) []model.Signal {
	rsi := indicators.RSI(model.Closes(candles), s.Period)
	dirs := make([]model.Direction, len(candles))
	for i := range candles {
		switch {
		case math.IsNaN(rsi[i]):
		case rsi[i] < s.Oversold:
			dirs[i] = model.DirectionLong
		case rsi[i] > s.Overbought:
			dirs[i] = model.DirectionShort
		}
	}
	return toSignals(candles, dirs)
}

// LiveReactiveRSI is EnhancedRSI that stands aside when short-term volatility
// exceeds five times its average.
type LiveReactiveRSI struct {
	EnhancedRSI
	VolatilityWindow int
	VolatilityFactor float64
}

func NewLiveReactiveRSI() *LiveReactiveRSI {
	return &LiveReactiveRSI{EnhancedRSI: *NewEnhancedRSI(), VolatilityWindow: 10, VolatilityFactor: 5}
}

func (s *LiveReactiveRSI) Name() string { return "LiveReactiveRSIStrategy" }

func (s *LiveReactiveRSI) GenerateSignals(candles []model.Candle) []model.Signal {
	closes := model.Closes(candles)
	vol := indicators.StdDev(indicators.PctChange(closes, 1), s.VolatilityWindow)
	meanVol := indicators.Mean(vol)

	signals := s.EnhancedRSI.GenerateSignals(candles)
	for i := range signals {
		if !math.IsNaN(vol[i]) && !math.IsNaN(meanVol) && vol[i] > s.VolatilityFactor*meanVol {
			signals[i].Direction = model.DirectionNone
		}
	}
	return signals
}

// RSIDivergence signals when price and RSI disagree between two swing points.
type RSIDivergence struct {
	Period int
	Window int
}

func NewRSIDivergence() *RSIDivergence {
	return &RSIDivergence{Period: 14, Window: 5}
}

func (s *RSIDivergence) Name() string { return "RSIDivergenceStrategy" }

func (s *RSIDivergence) GenerateSignals(candles []model.Candle) []model.Signal {
	closes := model.Closes(candles)
	rsi := indicators.RSI(closes, s.Period)
	dirs := make([]model.Direction, len(candles))

	lastMin, lastMax := -1, -1
	for i := s.Window; i < len(closes)-s.Window; i++ {
		if math.IsNaN(rsi[i]) {
			continue
		}
		if isExtreme(closes, i, s.Window, false) {
			// lower low in price with a higher low in RSI
			if lastMin >= 0 && closes[i] < closes[lastMin] && rsi[i] > rsi[lastMin] {
				dirs[i+s.Window] = model.DirectionLong
			}
			lastMin = i
		}
		if isExtreme(closes, i, s.Window, true) {
			if lastMax >= 0 && closes[i] > closes[lastMax] && rsi[i] < rsi[lastMax] {
				dirs[i+s.Window] = model.DirectionShort
			}
			lastMax = i
		}
	}
	return toSignals(candles, dirs)
}

// isExtreme reports whether values[i] is the max (or min) of its +-window neighbourhood.
// Signals are placed window bars later, once the swing is confirmed.
func isExtreme(values []float64, i, window int, wantMax bool) bool {
	for j := i - window; j <= i+window; j++ {
		if j == i {
			continue
		}
		if wantMax && values[j] >= values[i] {
			return false
		}
		if !wantMax && values[j] <= values[i] {
			return false
		}
	}
	return true
}

// trendStrength is (sma(short)-sma(long))/sma(long).
func trendStrength(closes []float64, short, long int) []float64 {
	s := indicators.SMA(closes, short)
	l := indicators.SMA(closes, long)
	out := make([]float64, len(closes))
	for i := range closes {
		if l[i] == 0 || math.IsNaN(l[i]) || math.IsNaN(s[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (s[i] - l[i]) / l[i]
	}
	return out
}
