package connectors

import (
	"context"
	"sync/atomic"

	"tradingbot/src/model"

	logger "github.com/sirupsen/logrus"
)

// PaperRouter logs the orders a live router would place.
type PaperRouter struct {
	opened atomic.Int64
	closed atomic.Int64
	log    *logger.Entry
}

func NewPaperRouter() *PaperRouter {
	return &PaperRouter{log: logger.WithField("component", "paper_router")}
}

func (r *PaperRouter) Open(_ context.Context, p model.Position) error {
	r.opened.Add(1)
	r.log.WithFields(logger.Fields{
		"symbol":      p.Symbol,
		"strategy":    p.Strategy,
		"side":        p.Side,
		"price":       p.EntryPrice.String(),
		"size":        p.Size.String(),
		"stop_loss":   p.StopLoss.String(),
		"take_profit": p.TakeProfit.String(),
	}).Info("paper entry")
	return nil
}

func (r *PaperRouter) Close(_ context.Context, p model.Position) error {
	r.closed.Add(1)
	r.log.WithFields(logger.Fields{
		"symbol":      p.Symbol,
		"strategy":    p.Strategy,
		"side":        p.Side,
		"price":       p.ExitPrice.String(),
		"exit_reason": p.ExitReason,
		"profit":      p.Profit.String(),
	}).Info("paper exit")
	return nil
}

// Counts returns the number of entries and exits seen.
func (r *PaperRouter) Counts() (opened, closed int64) {
	return r.opened.Load(), r.closed.Load()
}
