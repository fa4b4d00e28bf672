package market

import (
	"fmt"
	"strings"
)

// Side is a hedge-mode position side. Long and short positions on the same
// symbol are tracked independently.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Sides lists both position sides in reconciliation order.
var Sides = [...]Side{Long, Short}

func (s Side) String() string { return string(s) }

// Valid reports whether s is LONG or SHORT.
func (s Side) Valid() bool {
	return s == Long || s == Short
}

// Entry is the order direction that opens a position on this side.
func (s Side) Entry() Direction {
	if s == Short {
		return Sell
	}
	return Buy
}

// Exit is the order direction that reduces or closes a position on this side.
func (s Side) Exit() Direction {
	return s.Entry().Opposite()
}

// ParseSide accepts "long"/"short" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Long:
		return Long, nil
	case Short:
		return Short, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Direction is an order direction.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

func (d Direction) String() string { return string(d) }

func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}
