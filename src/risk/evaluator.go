package risk

import (
	"tradingbot/src/model"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Evaluator decides whether an open position must close at a price.
type Evaluator struct {
	StopLossPct   decimal.Decimal
	TakeProfitPct decimal.Decimal
	// MinProfitPct enables the early profit exit when positive.
	MinProfitPct decimal.Decimal
}

// Levels returns the stop-loss and take-profit prices for a new position.
func (e Evaluator) Levels(side model.Side, entry decimal.Decimal) (stopLoss, takeProfit decimal.Decimal) {
	if side == model.SideShort {
		return entry.Mul(one.Add(e.StopLossPct)), entry.Mul(one.Sub(e.TakeProfitPct))
	}
	return entry.Mul(one.Sub(e.StopLossPct)), entry.Mul(one.Add(e.TakeProfitPct))
}

// Evaluate checks stop-loss and take-profit first, then the minimum profit exit.
func (e Evaluator) Evaluate(p *model.Position, price decimal.Decimal) (bool, model.ExitReason) {
	switch p.Side {
	case model.SideLong:
		if price.LessThanOrEqual(p.StopLoss) {
			return true, model.ExitStopLoss
		}
		if price.GreaterThanOrEqual(p.TakeProfit) {
			return true, model.ExitTakeProfit
		}
	case model.SideShort:
		if price.GreaterThanOrEqual(p.StopLoss) {
			return true, model.ExitStopLoss
		}
		if price.LessThanOrEqual(p.TakeProfit) {
			return true, model.ExitTakeProfit
		}
	}

	if e.MinProfitPct.IsPositive() && p.EntryPrice.IsPositive() {
		pct := p.GrossProfit(price).Div(p.Notional())
		if pct.GreaterThanOrEqual(e.MinProfitPct) {
			return true, model.ExitMinProfit
		}
	}

	return false, ""
}
