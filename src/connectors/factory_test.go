package connectors

import (
	"context"
	"testing"
	"time"

	"tradingbot/src/engine"
	"tradingbot/src/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type storedCandles struct{}

func (storedCandles) FetchCandles(context.Context, string, model.Timeframe, time.Time, time.Time, int) ([]model.Candle, error) {
	return nil, nil
}

func TestNewMarketData(t *testing.T) {
	md, err := NewMarketData(Config{MarketDataSource: SourceBinance}, nil)
	require.NoError(t, err)
	require.IsType(t, &BinanceMarketData{}, md)

	md, err = NewMarketData(Config{MarketDataSource: SourceDB}, storedCandles{})
	require.NoError(t, err)
	require.IsType(t, storedCandles{}, md)

	_, err = NewMarketData(Config{MarketDataSource: SourceDB}, nil)
	require.ErrorIs(t, err, model.ErrConfiguration)

	_, err = NewMarketData(Config{MarketDataSource: "csv"}, nil)
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestNewOrderRouter(t *testing.T) {
	r, err := NewOrderRouter(Config{OrderRouter: RouterBinance}, engine.ModeBacktest)
	require.NoError(t, err)
	require.Nil(t, r)

	r, err = NewOrderRouter(Config{OrderRouter: RouterBinance}, engine.ModeMonitor)
	require.NoError(t, err)
	require.IsType(t, &PaperRouter{}, r)

	_, err = NewOrderRouter(Config{OrderRouter: RouterBinance}, engine.ModeLive)
	require.ErrorIs(t, err, model.ErrConfiguration)

	r, err = NewOrderRouter(Config{}, engine.ModeLive)
	require.NoError(t, err)
	require.IsType(t, &PaperRouter{}, r)
}

func TestPaperRouter_Counts(t *testing.T) {
	r := NewPaperRouter()
	p := model.Position{Symbol: "BTCUSDT", Side: model.SideLong, EntryPrice: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}
	require.NoError(t, r.Open(context.Background(), p))
	require.NoError(t, r.Close(context.Background(), p))
	require.NoError(t, r.Close(context.Background(), p))

	opened, closed := r.Counts()
	require.Equal(t, int64(1), opened)
	require.Equal(t, int64(2), closed)
}
