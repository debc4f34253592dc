package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	RiskFraction     decimal.Decimal `envconfig:"RISK_FRACTION" default:"0.05"`
	StopLossPct      decimal.Decimal `envconfig:"STOP_LOSS_PCT" default:"0.02"`
	TakeProfitPct    decimal.Decimal `envconfig:"TAKE_PROFIT_PCT" default:"0.06"`
	MinProfitExitPct decimal.Decimal `envconfig:"MIN_PROFIT_EXIT_PCT" default:"0"` // 0 disables the early exit
	MaxDrawdownLimit decimal.Decimal `envconfig:"MAX_DRAWDOWN_LIMIT" default:"0.2"`
	FeeRate          decimal.Decimal `envconfig:"FEE_RATE" default:"0.001"`
	MinQuantities    string          `envconfig:"MIN_QUANTITIES" default:"SOL:0.1,ETH:0.01,BTC:0.001"`
	InitialBalance   decimal.Decimal `envconfig:"INITIAL_BALANCE" default:"10000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// Sizer builds the position sizer described by the config.
func (c Config) Sizer() (PositionSizer, error) {
	floors, err := ParseMinQuantities(c.MinQuantities)
	if err != nil {
		return PositionSizer{}, err
	}
	return PositionSizer{RiskFraction: c.RiskFraction, MinQuantities: floors}, nil
}

func (c Config) Evaluator() Evaluator {
	return Evaluator{
		StopLossPct:   c.StopLossPct,
		TakeProfitPct: c.TakeProfitPct,
		MinProfitPct:  c.MinProfitExitPct,
	}
}
