package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tradingbot/src/model"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxKlinePage = 1500

// BinanceMarketData reads futures klines through a shared rate limiter.
type BinanceMarketData struct {
	client   *futures.Client
	limiter  *rate.Limiter
	pageSize int
	log      *logger.Entry
}

func NewBinanceMarketData(cfg Config) *BinanceMarketData {
	return &BinanceMarketData{
		client:   newFuturesClient(cfg),
		limiter:  newLimiter(cfg),
		pageSize: pageSize(cfg.KlinePageSize),
		log:      logger.WithField("component", "binance_market"),
	}
}

func newFuturesClient(cfg Config) *futures.Client {
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	client := futures.NewClient(cfg.BinanceAPIKey, cfg.BinanceAPISecret)
	client.HTTPClient = httpClient
	if cfg.BinanceBaseURL != "" {
		client.BaseURL = cfg.BinanceBaseURL
	}
	return client
}

func newLimiter(cfg Config) *rate.Limiter {
	rps, burst := cfg.RequestsPerSecond, cfg.RequestBurst
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func pageSize(n int) int {
	if n <= 0 || n > maxKlinePage {
		return maxKlinePage
	}
	return n
}

// FetchCandles pages through klines in [start, end]. A zero start with a
// positive limit returns the latest limit bars up to end.
func (b *BinanceMarketData) FetchCandles(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.Candle, error) {
	step := tf.Duration()
	if step <= 0 {
		return nil, fmt.Errorf("%w: unknown timeframe %q", model.ErrConfiguration, tf)
	}

	if start.IsZero() {
		n := limit
		if n <= 0 || n > b.pageSize {
			n = b.pageSize
		}
		return b.page(ctx, symbol, tf, time.Time{}, end, n)
	}

	var out []model.Candle
	cursor := start
	for !cursor.After(end) {
		batch, err := b.page(ctx, symbol, tf, cursor, end, b.pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < b.pageSize {
			break
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		cursor = batch[len(batch)-1].Time.Add(step)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	b.log.WithField("symbol", symbol).
		WithField("timeframe", tf).
		WithField("candles", len(out)).
		Debug("klines fetched")
	return out, nil
}

func (b *BinanceMarketData) page(ctx context.Context, symbol string, tf model.Timeframe, start, end time.Time, limit int) ([]model.Candle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	svc := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(string(tf)).
		Limit(limit)
	if !start.IsZero() {
		svc = svc.StartTime(start.UnixMilli())
	}
	if !end.IsZero() {
		svc = svc.EndTime(end.UnixMilli())
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, classifyBinanceError(err)
	}

	out := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := candleFromKline(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s kline %d: %v", model.ErrDataUnavailable, symbol, k.OpenTime, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func candleFromKline(k *futures.Kline) (model.Candle, error) {
	var c model.Candle
	var err error
	c.Time = time.UnixMilli(k.OpenTime).UTC()
	if c.Open, err = decimal.NewFromString(k.Open); err != nil {
		return c, err
	}
	if c.High, err = decimal.NewFromString(k.High); err != nil {
		return c, err
	}
	if c.Low, err = decimal.NewFromString(k.Low); err != nil {
		return c, err
	}
	if c.Close, err = decimal.NewFromString(k.Close); err != nil {
		return c, err
	}
	if c.Volume, err = decimal.NewFromString(k.Volume); err != nil {
		return c, err
	}
	return c, nil
}

// classifyBinanceError separates bad requests, which will never succeed,
// from failures worth retrying.
func classifyBinanceError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		// code 0 means the body was not an API error, usually a 5xx from a proxy
		if apiErr.Code == 0 || transientBinanceCodes[apiErr.Code] {
			return fmt.Errorf("%w: %s (%d) %s", model.ErrTransientFetch, GetErrorMsg(apiErr.Code), apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%w: %s (%d) %s", model.ErrDataUnavailable, GetErrorMsg(apiErr.Code), apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", model.ErrTransientFetch, err)
}
