package risk

import (
	"tradingbot/src/model"

	"github.com/shopspring/decimal"
)

var DefaultFeeRate = decimal.RequireFromString("0.001")

// CalculateFees returns the net profit and the total fee paid on both legs of a trade.
func CalculateFees(side model.Side, entry, exit, size, feeRate decimal.Decimal) (net, fees decimal.Decimal) {
	var gross decimal.Decimal
	if side == model.SideShort {
		gross = entry.Sub(exit).Mul(size)
	} else {
		gross = exit.Sub(entry).Mul(size)
	}

	fees = entry.Mul(size).Add(exit.Mul(size)).Mul(feeRate)
	return gross.Sub(fees), fees
}
