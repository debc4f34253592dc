package engine

import (
	"time"

	"tradingbot/src/model"
)

// IsDue reports whether a timeframe has a bar boundary inside the cycle that
// ends at now. Timeframes at or below the cycle interval are due every cycle.
func IsDue(tf model.Timeframe, now time.Time, interval time.Duration) bool {
	d := tf.Duration()
	if d <= 0 {
		return false
	}
	if interval <= 0 || d <= interval {
		return true
	}
	boundary := now.UTC().Truncate(d)
	return now.Sub(boundary) < interval
}

// ClosedCandles drops bars that are still forming at now.
func ClosedCandles(candles []model.Candle, tf model.Timeframe, now time.Time) []model.Candle {
	d := tf.Duration()
	out := candles[:0:0]
	for _, c := range candles {
		if !c.Time.Add(d).After(now) {
			out = append(out, c)
		}
	}
	return out
}
