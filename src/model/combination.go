package model

import (
	"fmt"
	"strings"
	"time"
)

type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe2h  Timeframe = "2h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe2h:  2 * time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe label.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("%w: unknown timeframe %q", ErrConfiguration, s)
	}
	return tf, nil
}

// Duration returns the bar length, zero for unknown labels.
func (t Timeframe) Duration() time.Duration {
	return timeframeDurations[t]
}

// Combination is one (symbol, strategy, timeframe) stream.
type Combination struct {
	Symbol    string    `json:"symbol" toml:"symbol"`
	Strategy  string    `json:"strategy" toml:"strategy"`
	Timeframe Timeframe `json:"timeframe" toml:"timeframe"`
}

func (c Combination) String() string {
	return c.Symbol + ":" + c.Strategy + ":" + string(c.Timeframe)
}
