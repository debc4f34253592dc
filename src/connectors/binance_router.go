package connectors

import (
	"context"
	"errors"
	"fmt"

	"tradingbot/src/model"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var ErrInvalidQuantity = errors.New("invalid order quantity")

// BinanceRouter mirrors ledger transitions as futures market orders.
type BinanceRouter struct {
	client   *futures.Client
	limiter  *rate.Limiter
	decimals int32
	log      *logger.Entry
}

func NewBinanceRouter(cfg Config) (*BinanceRouter, error) {
	if cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "" {
		return nil, fmt.Errorf("%w: BINANCE_API_KEY and BINANCE_API_SECRET are required for live orders", model.ErrConfiguration)
	}
	decimals := cfg.QuantityDecimals
	if decimals <= 0 {
		decimals = 6
	}
	return &BinanceRouter{
		client:   newFuturesClient(cfg),
		limiter:  newLimiter(cfg),
		decimals: decimals,
		log:      logger.WithField("component", "binance_router"),
	}, nil
}

// FormatQuantity renders a size with at most decimals places and no trailing zeros.
func FormatQuantity(size decimal.Decimal, decimals int32) string {
	return size.Round(decimals).String()
}

func (r *BinanceRouter) Open(ctx context.Context, p model.Position) error {
	side := futures.SideTypeBuy
	if p.Side == model.SideShort {
		side = futures.SideTypeSell
	}
	return r.submit(ctx, p, side, false)
}

func (r *BinanceRouter) Close(ctx context.Context, p model.Position) error {
	side := futures.SideTypeSell
	if p.Side == model.SideShort {
		side = futures.SideTypeBuy
	}
	return r.submit(ctx, p, side, true)
}

func (r *BinanceRouter) submit(ctx context.Context, p model.Position, side futures.SideType, reduceOnly bool) error {
	qty := FormatQuantity(p.Size, r.decimals)
	if !p.Size.Round(r.decimals).IsPositive() {
		return fmt.Errorf("%w: %s rounds to %s", ErrInvalidQuantity, p.Size, qty)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	res, err := r.client.NewCreateOrderService().
		Symbol(p.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		ReduceOnly(reduceOnly).
		Do(ctx)
	if err != nil {
		r.log.WithError(err).
			WithField("symbol", p.Symbol).
			WithField("side", side).
			WithField("quantity", qty).
			Error("order rejected")
		return classifyBinanceError(err)
	}

	r.log.WithFields(logger.Fields{
		"symbol":      res.Symbol,
		"order_id":    res.OrderID,
		"side":        side,
		"quantity":    qty,
		"reduce_only": reduceOnly,
		"status":      res.Status,
	}).Info("market order placed")
	return nil
}
