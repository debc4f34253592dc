package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CandleRow is the stored form of a candle, one row per symbol, timeframe and open time.
type CandleRow struct {
	ID        uint            `gorm:"primaryKey"`
	Symbol    string          `json:"symbol"    gorm:"type:varchar(50);not null;uniqueIndex:ux_candles_symbol_tf_datetime,priority:1"`
	Timeframe string          `json:"timeframe" gorm:"type:varchar(10);not null;uniqueIndex:ux_candles_symbol_tf_datetime,priority:2"`
	Datetime  time.Time       `json:"datetime"  gorm:"not null;uniqueIndex:ux_candles_symbol_tf_datetime,priority:3;index:idx_candles_datetime"`
	Open      decimal.Decimal `json:"open"   gorm:"type:double precision;not null"`
	High      decimal.Decimal `json:"high"   gorm:"type:double precision;not null"`
	Low       decimal.Decimal `json:"low"    gorm:"type:double precision;not null"`
	Close     decimal.Decimal `json:"close"  gorm:"type:double precision;not null"`
	Volume    decimal.Decimal `json:"volume" gorm:"type:double precision;not null"`
}

func (CandleRow) TableName() string {
	return "candles"
}

func (r CandleRow) ToCandle() Candle {
	return Candle{
		Time:   r.Datetime.UTC(),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

func NewCandleRow(symbol string, tf Timeframe, c Candle) CandleRow {
	return CandleRow{
		Symbol:    symbol,
		Timeframe: string(tf),
		Datetime:  c.Time.UTC(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}
