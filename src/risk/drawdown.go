package risk

import "github.com/shopspring/decimal"

// DrawdownTracker follows the balance peak and the worst relative decline from it.
type DrawdownTracker struct {
	limit       decimal.Decimal
	peak        decimal.Decimal
	current     decimal.Decimal
	maxDrawdown decimal.Decimal
}

func NewDrawdownTracker(initial, limit decimal.Decimal) *DrawdownTracker {
	t := &DrawdownTracker{limit: limit}
	t.Update(initial)
	return t
}

// Update records a new balance. Call after every balance mutation.
func (t *DrawdownTracker) Update(balance decimal.Decimal) {
	t.current = balance
	if balance.GreaterThan(t.peak) {
		t.peak = balance
	}
	if dd := t.Drawdown(); dd.GreaterThan(t.maxDrawdown) {
		t.maxDrawdown = dd
	}
}

func (t *DrawdownTracker) Drawdown() decimal.Decimal {
	if !t.peak.IsPositive() {
		return decimal.Zero
	}
	return t.peak.Sub(t.current).Div(t.peak)
}

func (t *DrawdownTracker) Peak() decimal.Decimal        { return t.peak }
func (t *DrawdownTracker) MaxDrawdown() decimal.Decimal { return t.maxDrawdown }
func (t *DrawdownTracker) Limit() decimal.Decimal       { return t.limit }

// WithinLimit reports whether new entries are still allowed.
func (t *DrawdownTracker) WithinLimit() bool {
	return t.Drawdown().LessThanOrEqual(t.limit)
}

// RestoreDrawdownTracker rebuilds a tracker from checkpointed values.
func RestoreDrawdownTracker(limit, peak, current, maxDrawdown decimal.Decimal) *DrawdownTracker {
	t := &DrawdownTracker{limit: limit, peak: peak, maxDrawdown: maxDrawdown}
	t.Update(current)
	return t
}
