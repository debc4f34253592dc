package model

import "time"

type Direction int

const (
	DirectionShort Direction = -1
	DirectionNone  Direction = 0
	DirectionLong  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "none"
	}
}

// Side maps a non-neutral direction to a position side.
func (d Direction) Side() (Side, bool) {
	switch d {
	case DirectionLong:
		return SideLong, true
	case DirectionShort:
		return SideShort, true
	default:
		return "", false
	}
}

// Signal is the strategy output aligned to one candle.
type Signal struct {
	Time      time.Time
	Direction Direction
}
