package risk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidSizingInput = errors.New("invalid sizing input")

// MinQuantity is a quantity floor applied to every symbol containing Match.
type MinQuantity struct {
	Match    string
	Quantity decimal.Decimal
}

// ParseMinQuantities reads "SOL:0.1,ETH:0.01" keeping the listed order,
// which is also the lookup order.
func ParseMinQuantities(s string) ([]MinQuantity, error) {
	var out []MinQuantity
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid min quantity entry %q", item)
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid min quantity for %q: %w", parts[0], err)
		}
		if !qty.IsPositive() {
			return nil, fmt.Errorf("min quantity for %q must be positive", parts[0])
		}
		out = append(out, MinQuantity{
			Match:    strings.ToUpper(strings.TrimSpace(parts[0])),
			Quantity: qty,
		})
	}
	return out, nil
}

type PositionSizer struct {
	RiskFraction  decimal.Decimal
	MinQuantities []MinQuantity
}

// Size returns available*fraction/price, raised to the first matching
// symbol floor.
func (s PositionSizer) Size(price decimal.Decimal, symbol string, available decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: price %s", ErrInvalidSizingInput, price)
	}
	if !available.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: available balance %s", ErrInvalidSizingInput, available)
	}
	if !s.RiskFraction.IsPositive() || s.RiskFraction.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: risk fraction %s", ErrInvalidSizingInput, s.RiskFraction)
	}

	qty := available.Mul(s.RiskFraction).Div(price)

	if floor, ok := s.floorFor(symbol); ok && qty.LessThan(floor) {
		qty = floor
	}

	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: computed quantity %s", ErrInvalidSizingInput, qty)
	}
	return qty, nil
}

func (s PositionSizer) floorFor(symbol string) (decimal.Decimal, bool) {
	upper := strings.ToUpper(symbol)
	for _, mq := range s.MinQuantities {
		if strings.Contains(upper, mq.Match) {
			return mq.Quantity, true
		}
	}
	return decimal.Zero, false
}
