package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	SourceBinance = "binance"
	SourceGoex    = "goex"
	SourceDB      = "db"

	RouterPaper   = "paper"
	RouterBinance = "binance"
)

type Config struct {
	MarketDataSource  string        `envconfig:"MARKET_DATA_SOURCE" default:"binance"` // binance, goex or db
	OrderRouter       string        `envconfig:"ORDER_ROUTER" default:"paper"`         // paper or binance
	BinanceAPIKey     string        `envconfig:"BINANCE_API_KEY"`
	BinanceAPISecret  string        `envconfig:"BINANCE_API_SECRET"`
	BinanceBaseURL    string        `envconfig:"BINANCE_FUTURES_BASE_URL"`
	GoexBaseURL       string        `envconfig:"GOEX_BASE_URL"`
	RequestsPerSecond float64       `envconfig:"EXCHANGE_REQUESTS_PER_SECOND" default:"10"`
	RequestBurst      int           `envconfig:"EXCHANGE_REQUEST_BURST" default:"20"`
	HTTPTimeout       time.Duration `envconfig:"EXCHANGE_HTTP_TIMEOUT" default:"10s"`
	KlinePageSize     int           `envconfig:"KLINE_PAGE_SIZE" default:"1500"`
	QuantityDecimals  int32         `envconfig:"ORDER_QUANTITY_DECIMALS" default:"6"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
