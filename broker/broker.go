// Package broker defines the exchange connector the control loops consume
// and the order types that cross it.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/hedger/market"
	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol is a configuration error: the exchange publishes no
// trading rules for the symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Exchange is the capability the core needs from a hedge-mode derivatives
// venue. Every call is fallible; failures are returned, never panicked.
type Exchange interface {
	Name() string

	// FetchBars returns up to limit closed bars, oldest first.
	FetchBars(ctx context.Context, symbol, interval string, limit int) ([]market.Bar, error)

	// FetchBalance returns the wallet balance of the settlement asset.
	FetchBalance(ctx context.Context) (float64, error)

	// LivePosition returns the open position for (symbol, side), or nil
	// when there is none.
	LivePosition(ctx context.Context, symbol string, side market.Side) (*Position, error)

	SubmitMarketOrder(ctx context.Context, o MarketOrder) (OrderAck, error)
	SubmitStopOrder(ctx context.Context, o StopOrder) (OrderAck, error)

	// ClosePosition sends a reducing market order for qty. A position that
	// is already gone counts as closed.
	ClosePosition(ctx context.Context, symbol string, side market.Side, qty decimal.Decimal) (OrderAck, error)

	CancelAllOpenOrders(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// Position is the exchange's live report for one (symbol, side).
type Position struct {
	Symbol     string
	Side       market.Side
	Size       float64 // absolute base quantity
	EntryPrice float64
}

// Open reports whether the position has a non-zero size.
func (p *Position) Open() bool {
	return p != nil && p.Size != 0
}

// MarketOrder opens (or adds to) a position at market.
type MarketOrder struct {
	Symbol        string
	Side          market.Side
	Direction     market.Direction
	Quantity      decimal.Decimal
	ClientOrderID string
}

// StopKind distinguishes the two protective legs of a bracket.
type StopKind string

const (
	TakeProfit StopKind = "TAKE_PROFIT"
	StopLoss   StopKind = "STOP_LOSS"
)

// StopOrder is a protective trigger order that closes the whole position
// on the given side when the trigger price trades.
type StopOrder struct {
	Symbol        string
	Side          market.Side
	Direction     market.Direction
	Kind          StopKind
	TriggerPrice  decimal.Decimal
	ClientOrderID string
}

// OrderAck is the exchange's acknowledgement of an accepted order.
type OrderAck struct {
	OrderID       string
	ClientOrderID string
	Time          time.Time
}
