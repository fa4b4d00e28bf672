package sim

import (
	"time"

	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/market"
)

// Trade is the paper position on one (symbol, side).
type Trade struct {
	Symbol     string
	Side       market.Side
	Size       float64
	EntryPrice float64
	OpenTime   time.Time
}

// PL is the profit of closing size units at price.
func (t *Trade) PL(price, size float64) float64 {
	if t.Side == market.Short {
		return size * (t.EntryPrice - price)
	}
	return size * (price - t.EntryPrice)
}

// add averages a new fill into the position.
func (t *Trade) add(size, price float64) {
	total := t.Size + size
	t.EntryPrice = (t.EntryPrice*t.Size + price*size) / total
	t.Size = total
}

type stopOrder struct {
	ID      string
	Side    market.Side
	Kind    broker.StopKind
	Trigger float64
}

// triggered reports whether bar b trades through the order's trigger. A
// long stop-loss sits below the market, a long take-profit above it; short
// is the mirror.
func (o *stopOrder) triggered(b market.Bar) bool {
	above := o.Kind == broker.TakeProfit
	if o.Side == market.Short {
		above = !above
	}
	if above {
		return b.High >= o.Trigger
	}
	return b.Low <= o.Trigger
}
