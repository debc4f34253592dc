package connectors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tradingbot/src/model"
	"tradingbot/src/utils"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const goexMaxKlines = 1000

var goexPeriods = map[model.Timeframe]goex.KlinePeriod{
	model.Timeframe1m:  goex.KLINE_PERIOD_1MIN,
	model.Timeframe5m:  goex.KLINE_PERIOD_5MIN,
	model.Timeframe15m: goex.KLINE_PERIOD_15MIN,
	model.Timeframe30m: goex.KLINE_PERIOD_30MIN,
	model.Timeframe1h:  goex.KLINE_PERIOD_1H,
	model.Timeframe4h:  goex.KLINE_PERIOD_4H,
	model.Timeframe1d:  goex.KLINE_PERIOD_1DAY,
}

// GoexMarketData reads spot klines through goex.
type GoexMarketData struct {
	exchange goex.API
	limiter  *rate.Limiter
	log      *logger.Entry
}

func NewGoexMarketData(cfg Config) *GoexMarketData {
	endpoint := cfg.GoexBaseURL
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}
	apiConfig := &goex.APIConfig{
		HttpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Endpoint:   endpoint,
	}
	return &GoexMarketData{
		exchange: binance.NewWithConfig(apiConfig),
		limiter:  newLimiter(cfg),
		log:      logger.WithField("component", "goex_market"),
	}
}

// FetchCandles returns at most one page of klines; goex has no 2h period.
func (g *GoexMarketData) FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.Candle, error) {
	period, ok := goexPeriods[tf]
	if !ok {
		return nil, fmt.Errorf("%w: goex has no %s klines", model.ErrDataUnavailable, tf)
	}
	base, quote := utils.SplitQuote(symbol)
	if quote == "" {
		return nil, fmt.Errorf("%w: cannot split quote from %q", model.ErrDataUnavailable, symbol)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	size := limit
	if size <= 0 || size > goexMaxKlines {
		size = goexMaxKlines
	}
	const millis = 1000
	opt := goex.OptionalParameter{}
	if !start.IsZero() {
		opt = opt.Optional("startTime", start.Unix()*millis)
	}
	if !end.IsZero() {
		opt = opt.Optional("endTime", end.Unix()*millis)
	}

	pair := goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote})
	klines, err := g.exchange.GetKlineRecords(pair, period, size, opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransientFetch, err)
	}

	out := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, model.Candle{
			Time:   time.Unix(k.Timestamp, 0).UTC(),
			Open:   decimal.NewFromFloat(k.Open),
			High:   decimal.NewFromFloat(k.High),
			Low:    decimal.NewFromFloat(k.Low),
			Close:  decimal.NewFromFloat(k.Close),
			Volume: decimal.NewFromFloat(k.Vol),
		})
	}
	g.log.WithField("symbol", symbol).
		WithField("timeframe", tf).
		WithField("candles", len(out)).
		Debug("klines fetched")
	return out, nil
}
