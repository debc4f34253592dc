package cache

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr       string        `envconfig:"REDIS_ADDR"` // empty disables checkpoints
	Password   string        `envconfig:"REDIS_PASSWORD"`
	DB         int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize   int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MaxRetries int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	KeyPrefix  string        `envconfig:"REDIS_KEY_PREFIX" default:"tradingbot"`
	LockTTL    time.Duration `envconfig:"REDIS_LOCK_TTL" default:"1h"`
}

func (c Config) Enabled() bool { return c.Addr != "" }

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
