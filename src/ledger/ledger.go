package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"tradingbot/src/model"
	"tradingbot/src/risk"

	"github.com/shopspring/decimal"
)

var ErrCapacityExceeded = errors.New("position capacity exceeded")

// Key identifies one stream of positions. Several open positions may share a key.
type Key struct {
	Symbol    string
	Strategy  string
	Timeframe model.Timeframe
}

func KeyFor(c model.Combination) Key {
	return Key{Symbol: c.Symbol, Strategy: c.Strategy, Timeframe: c.Timeframe}
}

func (k Key) String() string {
	return k.Symbol + ":" + k.Strategy + ":" + string(k.Timeframe)
}

// Ledger owns open positions per key, oldest first.
// It is not safe for concurrent use; each worker owns its own ledger.
type Ledger struct {
	evaluator risk.Evaluator
	feeRate   decimal.Decimal
	capacity  int
	open      map[Key][]*model.Position
}

// New builds a ledger. A capacity of zero or less disables the cap.
func New(evaluator risk.Evaluator, feeRate decimal.Decimal, capacity int) *Ledger {
	return &Ledger{
		evaluator: evaluator,
		feeRate:   feeRate,
		capacity:  capacity,
		open:      make(map[Key][]*model.Position),
	}
}

// Open appends a new open position to the key with levels fixed from the entry price.
func (l *Ledger) Open(key Key, side model.Side, price decimal.Decimal, at time.Time, size decimal.Decimal) (*model.Position, error) {
	if l.capacity > 0 && len(l.open[key]) >= l.capacity {
		return nil, fmt.Errorf("%w: %s holds %d open positions", ErrCapacityExceeded, key, len(l.open[key]))
	}
	if !price.IsPositive() || !size.IsPositive() {
		return nil, fmt.Errorf("%w: price %s size %s", risk.ErrInvalidSizingInput, price, size)
	}

	stopLoss, takeProfit := l.evaluator.Levels(side, price)
	p := &model.Position{
		Symbol:     key.Symbol,
		Strategy:   key.Strategy,
		Timeframe:  key.Timeframe,
		Side:       side,
		EntryPrice: price,
		EntryTime:  at,
		Size:       size,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Status:     model.PositionStatusOpen,
	}
	l.open[key] = append(l.open[key], p)
	return p, nil
}

// EvaluateAndClose closes at most one position: the oldest one whose exit condition holds.
func (l *Ledger) EvaluateAndClose(key Key, price decimal.Decimal, at time.Time) (*model.Position, bool) {
	for i, p := range l.open[key] {
		if ok, reason := l.evaluator.Evaluate(p, price); ok {
			return l.closeAt(key, i, price, at, reason), true
		}
	}
	return nil, false
}

// CloseOldest closes the oldest open position of the given side.
func (l *Ledger) CloseOldest(key Key, side model.Side, price decimal.Decimal, at time.Time, reason model.ExitReason) (*model.Position, bool) {
	for i, p := range l.open[key] {
		if p.Side == side {
			return l.closeAt(key, i, price, at, reason), true
		}
	}
	return nil, false
}

// CloseAll drains every position of one key, oldest first.
func (l *Ledger) CloseAll(key Key, price decimal.Decimal, at time.Time, reason model.ExitReason) []*model.Position {
	var closed []*model.Position
	for len(l.open[key]) > 0 {
		closed = append(closed, l.closeAt(key, 0, price, at, reason))
	}
	return closed
}

// ForceCloseAll drains every remaining position at the given price with EndOfRun.
func (l *Ledger) ForceCloseAll(price decimal.Decimal, at time.Time) []*model.Position {
	var closed []*model.Position
	for _, key := range l.Keys() {
		closed = append(closed, l.CloseAll(key, price, at, model.ExitEndOfRun)...)
	}
	return closed
}

func (l *Ledger) closeAt(key Key, idx int, price decimal.Decimal, at time.Time, reason model.ExitReason) *model.Position {
	positions := l.open[key]
	p := positions[idx]

	remaining := make([]*model.Position, 0, len(positions)-1)
	remaining = append(remaining, positions[:idx]...)
	remaining = append(remaining, positions[idx+1:]...)
	if len(remaining) == 0 {
		delete(l.open, key)
	} else {
		l.open[key] = remaining
	}

	net, fees := risk.CalculateFees(p.Side, p.EntryPrice, price, p.Size, l.feeRate)
	p.Status = model.PositionStatusClosed
	p.ExitPrice = price
	p.ExitTime = at
	p.ExitReason = reason
	p.Profit = net
	p.Fees = fees
	return p
}

// OpenPositions returns a copy of the open list for a key, oldest first.
func (l *Ledger) OpenPositions(key Key) []model.Position {
	out := make([]model.Position, 0, len(l.open[key]))
	for _, p := range l.open[key] {
		out = append(out, *p)
	}
	return out
}

func (l *Ledger) Count(key Key) int {
	return len(l.open[key])
}

func (l *Ledger) Total() int {
	n := 0
	for _, positions := range l.open {
		n += len(positions)
	}
	return n
}

func (l *Ledger) HasCapacity(key Key) bool {
	return l.capacity <= 0 || len(l.open[key]) < l.capacity
}

// Keys lists keys with open positions in a stable order.
func (l *Ledger) Keys() []Key {
	keys := make([]Key, 0, len(l.open))
	for k := range l.open {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Adopt re-inserts a checkpointed open position at the tail of its key.
func (l *Ledger) Adopt(p model.Position) {
	if !p.IsOpen() {
		return
	}
	key := Key{Symbol: p.Symbol, Strategy: p.Strategy, Timeframe: p.Timeframe}
	pos := p
	l.open[key] = append(l.open[key], &pos)
}
