package streak

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	AutomationEnabled    bool            `envconfig:"STREAK_AUTOMATION_ENABLED" default:"true"`
	RequiredPositiveDays int             `envconfig:"REQUIRED_POSITIVE_DAYS" default:"5"`
	MinProfitThreshold   decimal.Decimal `envconfig:"MIN_PROFIT_THRESHOLD" default:"0"`
	CheckInterval        time.Duration   `envconfig:"AUTOMATION_CHECK_INTERVAL" default:"24h"`
	PollPeriod           time.Duration   `envconfig:"STREAK_POLL_PERIOD" default:"1m"`
	EmergencyOverride    bool            `envconfig:"EMERGENCY_OVERRIDE" default:"false"`
	InitialEnabled       bool            `envconfig:"STREAK_INITIAL_ENABLED" default:"true"`
	RunName              string          `envconfig:"STREAK_RUN_NAME" default:"monitorBot"`
	HistoryDays          int             `envconfig:"STREAK_HISTORY_DAYS" default:"30"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
