package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod        time.Duration `envconfig:"CYCLE_INTERVAL" default:"15m"`
	RunOnStart        bool          `envconfig:"RUN_ON_START" default:"true"`
	CheckpointTimeout time.Duration `envconfig:"CHECKPOINT_TIMEOUT" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
