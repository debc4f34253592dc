package engine

import (
	"time"

	"tradingbot/src/ledger"
	"tradingbot/src/model"
	"tradingbot/src/strategy"
)

// stream is the per-combination work unit. Exactly one worker touches it at a time.
type stream struct {
	combo    model.Combination
	key      ledger.Key
	strategy strategy.Strategy
	ledger   *ledger.Ledger

	buffer        []model.TradeRecord
	lastProcessed time.Time
	lastDirection model.Direction
	primed        bool

	result ComboResult
}

func (s *stream) resetResult() {
	s.result = ComboResult{Combination: s.combo}
}

// StreamCheckpoint is the resumable part of a live stream.
type StreamCheckpoint struct {
	Combination   model.Combination `json:"combination"`
	LastProcessed time.Time         `json:"last_processed"`
	LastDirection model.Direction   `json:"last_direction"`
	OpenPositions []model.Position  `json:"open_positions"`
}
