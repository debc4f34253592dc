package engine

import (
	"fmt"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxConcurrentPositions int           `envconfig:"MAX_CONCURRENT_POSITIONS_PER_KEY" default:"3"`
	BatchFlushSize         int           `envconfig:"BATCH_FLUSH_SIZE" default:"500"`
	Workers                int           `envconfig:"WORKERS" default:"0"` // 0 uses runtime.NumCPU
	MaxRetries             int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryMinDelay          time.Duration `envconfig:"RETRY_MIN_DELAY" default:"1s"`
	RetryMaxDelay          time.Duration `envconfig:"RETRY_MAX_DELAY" default:"10s"`
	FetchTimeout           time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	FlushTimeout           time.Duration `envconfig:"FLUSH_TIMEOUT" default:"30s"`
	MinCandles             int           `envconfig:"MIN_CANDLES" default:"100"`
	LiveCandleLimit        int           `envconfig:"LIVE_CANDLE_LIMIT" default:"200"`
	CycleInterval          time.Duration `envconfig:"CYCLE_INTERVAL" default:"15m"`
	RunName                string        `envconfig:"RUN_NAME"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

func (c Config) flushSize() int {
	if c.BatchFlushSize > 0 {
		return c.BatchFlushSize
	}
	return 500
}

func (c Config) fetchPolicy() RetryPolicy {
	return RetryPolicy{Attempts: c.MaxRetries, MinDelay: c.RetryMinDelay, MaxDelay: c.RetryMaxDelay, Timeout: c.FetchTimeout}
}

func (c Config) flushPolicy() RetryPolicy {
	return RetryPolicy{Attempts: c.MaxRetries, MinDelay: c.RetryMinDelay, MaxDelay: c.RetryMaxDelay, Timeout: c.FlushTimeout}
}
