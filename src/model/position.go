package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "signal_exit"
	ExitMinProfit  ExitReason = "min_profit_exit"
	ExitEndOfRun   ExitReason = "end_of_run"
)

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position is a simulated or live position held by the ledger.
// StopLoss and TakeProfit are fixed at open.
type Position struct {
	Symbol     string          `json:"symbol"`
	Strategy   string          `json:"strategy"`
	Timeframe  Timeframe       `json:"timeframe"`
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	EntryTime  time.Time       `json:"entry_time"`
	Size       decimal.Decimal `json:"size"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Status     string          `json:"status"`

	ExitPrice  decimal.Decimal `json:"exit_price"`
	ExitTime   time.Time       `json:"exit_time"`
	ExitReason ExitReason      `json:"exit_reason"`
	Profit     decimal.Decimal `json:"profit"`
	Fees       decimal.Decimal `json:"fees"`
}

func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// Notional is the entry value of the position.
func (p *Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Size)
}

// GrossProfit is the profit before fees at the given price.
func (p *Position) GrossProfit(price decimal.Decimal) decimal.Decimal {
	if p.Side == SideShort {
		return p.EntryPrice.Sub(price).Mul(p.Size)
	}
	return price.Sub(p.EntryPrice).Mul(p.Size)
}
