package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar, Time being the bar open time in UTC.
type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// NormalizeCandles sorts candles ascending by time and drops duplicates,
// keeping the last occurrence of each timestamp.
func NormalizeCandles(candles []Candle) []Candle {
	if len(candles) == 0 {
		return candles
	}

	byTime := make(map[int64]int, len(candles))
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		key := c.Time.UnixNano()
		if idx, ok := byTime[key]; ok {
			out[idx] = c
			continue
		}
		byTime[key] = len(out)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// Closes extracts close prices as floats for indicator math.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close.InexactFloat64()
	}
	return out
}
