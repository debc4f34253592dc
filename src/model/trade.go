package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is the persisted snapshot of a closed position.
type TradeRecord struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	RunName      string          `gorm:"size:50;not null;index:idx_trades_run_exit,priority:1" json:"run_name"`
	RunID        string          `gorm:"size:36;index" json:"run_id"`
	Strategy     string          `gorm:"size:100;not null" json:"strategy"`
	Symbol       string          `gorm:"size:50;not null" json:"symbol"`
	Timeframe    string          `gorm:"size:10;not null" json:"timeframe"`
	TradeType    string          `gorm:"size:10;not null" json:"trade_type"`
	EntryTime    time.Time       `gorm:"not null" json:"entry_time"`
	ExitTime     time.Time       `gorm:"not null;index:idx_trades_run_exit,priority:2" json:"exit_time"`
	EntryPrice   decimal.Decimal `gorm:"type:numeric" json:"entry_price"`
	ExitPrice    decimal.Decimal `gorm:"type:numeric" json:"exit_price"`
	PositionSize decimal.Decimal `gorm:"type:numeric" json:"position_size"`
	StopLoss     decimal.Decimal `gorm:"type:numeric" json:"stop_loss"`
	TakeProfit   decimal.Decimal `gorm:"type:numeric" json:"take_profit"`
	Profit       decimal.Decimal `gorm:"type:numeric" json:"profit"`
	Fees         decimal.Decimal `gorm:"type:numeric" json:"fees"`
	ExitReason   string          `gorm:"size:30" json:"exit_reason"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (TradeRecord) TableName() string {
	return "trades"
}

// NewTradeRecord flattens a closed position.
func NewTradeRecord(p *Position, runName, runID string, now time.Time) TradeRecord {
	return TradeRecord{
		RunName:      runName,
		RunID:        runID,
		Strategy:     p.Strategy,
		Symbol:       p.Symbol,
		Timeframe:    string(p.Timeframe),
		TradeType:    string(p.Side),
		EntryTime:    p.EntryTime.UTC(),
		ExitTime:     p.ExitTime.UTC(),
		EntryPrice:   p.EntryPrice,
		ExitPrice:    p.ExitPrice,
		PositionSize: p.Size,
		StopLoss:     p.StopLoss,
		TakeProfit:   p.TakeProfit,
		Profit:       p.Profit,
		Fees:         p.Fees,
		ExitReason:   string(p.ExitReason),
		CreatedAt:    now.UTC(),
	}
}

// DailyProfit is the realized profit of one UTC calendar day.
type DailyProfit struct {
	Date   time.Time       `json:"date"`
	Profit decimal.Decimal `json:"profit"`
	Trades int             `json:"trades"`
}
