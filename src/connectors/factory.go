package connectors

import (
	"fmt"

	"tradingbot/src/engine"
	"tradingbot/src/model"
)

// NewMarketData picks the candle source named by MARKET_DATA_SOURCE.
// stored serves the db source.
func NewMarketData(cfg Config, stored engine.MarketData) (engine.MarketData, error) {
	switch cfg.MarketDataSource {
	case SourceBinance, "":
		return NewBinanceMarketData(cfg), nil
	case SourceGoex:
		return NewGoexMarketData(cfg), nil
	case SourceDB:
		if stored == nil {
			return nil, fmt.Errorf("%w: db market data requires a database", model.ErrConfiguration)
		}
		return stored, nil
	default:
		return nil, fmt.Errorf("%w: unknown MARKET_DATA_SOURCE %q", model.ErrConfiguration, cfg.MarketDataSource)
	}
}

// NewOrderRouter returns the router for a mode. Backtests route nothing and
// monitor runs only log.
func NewOrderRouter(cfg Config, mode engine.Mode) (engine.OrderRouter, error) {
	switch mode {
	case engine.ModeBacktest:
		return nil, nil
	case engine.ModeMonitor:
		return NewPaperRouter(), nil
	}

	switch cfg.OrderRouter {
	case RouterPaper, "":
		return NewPaperRouter(), nil
	case RouterBinance:
		return NewBinanceRouter(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown ORDER_ROUTER %q", model.ErrConfiguration, cfg.OrderRouter)
	}
}
