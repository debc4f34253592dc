package strategy

import (
	"math"

	"tradingbot/src/indicators"
	"tradingbot/src/model"
)

// MovingAverageCrossover follows the fast/slow average order with momentum confirmation.
type MovingAverageCrossover struct {
	ShortWindow int
	LongWindow  int
	MinTrend    float64
}

func NewMovingAverageCrossover() *MovingAverageCrossover {
	return &MovingAverageCrossover{ShortWindow: 8, LongWindow: 21, MinTrend: 0.001}
}

func (s *MovingAverageCrossover) Name() string { return "MovingAverageCrossover" }

func (s *MovingAverageCrossover) GenerateSignals(candles []model.Candle) []model.Signal {
	closes := model.Closes(candles)
	trend := trendStrength(closes, s.ShortWindow, s.LongWindow)
	momentum := indicators.PctChange(closes, s.ShortWindow)
	momentumMA := indicators.SMA(momentum, s.ShortWindow)

	dirs := make([]model.Direction, len(candles))
	for i := range candles {
		if math.IsNaN(trend[i]) || math.IsNaN(momentumMA[i]) {
			continue
		}
		switch {
		case trend[i] > s.MinTrend && momentum[i] > momentumMA[i]:
			dirs[i] = model.DirectionLong
		case trend[i] < -s.MinTrend && momentum[i] < momentumMA[i]:
			dirs[i] = model.DirectionShort
		}
	}
	return toSignals(candles, dirs)
}

type BollingerMode string

const (
	BollingerBreakout      BollingerMode = "breakout"
	BollingerMeanReversion BollingerMode = "mean_reversion"
)

// Bollinger trades band breaks, either with the break or against it.
type Bollinger struct {
	Mode   BollingerMode
	Period int
	Width  float64
}

func NewBollinger(mode BollingerMode) *Bollinger {
	return &Bollinger{Mode: mode, Period: 20, Width: 2}
}

func (s *Bollinger) Name() string {
	if s.Mode == BollingerMeanReversion {
		return "BollingerMeanReversion"
	}
	return "BollingerBandStrategy"
}

func (s *Bollinger) GenerateSignals(candles []model.Candle) []model.Signal {
	closes := model.Closes(candles)
	upper, _, lower := indicators.Bollinger(closes, s.Period, s.Width)

	dirs := make([]model.Direction, len(candles))
	for i, c := range closes {
		if math.IsNaN(upper[i]) {
			continue
		}
		above, below := c > upper[i], c < lower[i]
		if s.Mode == BollingerMeanReversion {
			above, below = below, above
		}
		switch {
		case above:
			dirs[i] = model.DirectionLong
		case below:
			dirs[i] = model.DirectionShort
		}
	}
	return toSignals(candles, dirs)
}

// Momentum trades rate of change beyond a threshold that is also accelerating.
type Momentum struct {
	Period    int
	Threshold float64
}

func NewMomentum() *Momentum {
	return &Momentum{Period: 14, Threshold: 0.001}
}

func (s *Momentum) Name() string { return "MomentumStrategy" }

func (s *Momentum) GenerateSignals(candles []model.Candle) []model.Signal {
	momentum := indicators.PctChange(model.Closes(candles), s.Period)
	momentumMA := indicators.SMA(momentum, s.Period)

	dirs := make([]model.Direction, len(candles))
	for i := range candles {
		if math.IsNaN(momentum[i]) || math.IsNaN(momentumMA[i]) {
			continue
		}
		switch {
		case momentum[i] > s.Threshold && momentum[i] > momentumMA[i]:
			dirs[i] = model.DirectionLong
		case momentum[i] < -s.Threshold && momentum[i] < momentumMA[i]:
			dirs[i] = model.DirectionShort
		}
	}
	return toSignals(candles, dirs)
}

// TrendFollowing rides price above both averages while they diverge.
type TrendFollowing struct {
	ShortPeriod int
	LongPeriod  int
	Threshold   float64
}

func NewTrendFollowing() *TrendFollowing {
	return &TrendFollowing{ShortPeriod: 10, LongPeriod: 30, Threshold: 0.001}
}

func (s *TrendFollowing) Name() string { return "TrendFollowingStrategy" }

func (s *TrendFollowing) GenerateSignals(candles []model.Candle) []model.Signal {
	closes := model.Closes(candles)
	short := indicators.SMA(closes, s.ShortPeriod)
	trend := trendStrength(closes, s.ShortPeriod, s.LongPeriod)

	dirs := make([]model.Direction, len(candles))
	for i, c := range closes {
		if math.IsNaN(trend[i]) {
			continue
		}
		switch {
		case trend[i] > s.Threshold && c > short[i]:
			dirs[i] = model.DirectionLong
		case trend[i] < -s.Threshold && c < short[i]:
			dirs[i] = model.DirectionShort
		}
	}
	return toSignals(candles, dirs)
}
