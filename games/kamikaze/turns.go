/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

type TurnOrder string

const (
	OrderRandom           TurnOrder = "random"
	OrderClockwise        TurnOrder = "clockwise"
	OrderCounterclockwise TurnOrder = "counterclockwise"
)

func (o TurnOrder) valid() bool {
	switch o {
	case OrderRandom, OrderClockwise, OrderCounterclockwise:
		return true
	}
	return false
}

// NextPlayerIndex picks whose turn follows current.
//
// Random order never repeats the same player twice in a row and ignores
// direction. The fixed orders step by one seat, with direction -1 running
// them backwards.
func NextPlayerIndex(src Source, current int, order TurnOrder, count, direction int) int {
	if count <= 1 {
		return 0
	}

	if order == OrderRandom {
		next := current
		for next == current {
			next = src.IntN(count)
		}
		return next
	}

	step := direction
	if order == OrderCounterclockwise {
		step = -step
	}

	return ((current+step)%count + count) % count
}
