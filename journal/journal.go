// Package journal keeps an append-only log of trades the bot opened and
// how they ended. It is an audit trail only: position tracking lives in
// the state package and never reads from here.
package journal

import (
	"context"
	"time"

	"github.com/rustyeddy/hedger/market"
)

// Close reasons.
const (
	ReasonExchange = "exchange" // position vanished on the exchange (TP/SL or manual)
	ReasonTimeout  = "timeout"
)

// Trade is one row of the trades table. CloseTime is zero while open.
type Trade struct {
	ID          string
	Symbol      string
	Side        market.Side
	Quantity    string
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	OpenTime    time.Time
	CloseTime   time.Time
	CloseReason string
	Protected   bool
}

// Open reports whether the trade has not been closed yet.
func (t Trade) Open() bool { return t.CloseTime.IsZero() }

// BalanceSnapshot is the wallet balance observed before sizing an order.
type BalanceSnapshot struct {
	Time    time.Time
	Symbol  string
	Balance float64
}

type Journal interface {
	RecordOpen(ctx context.Context, t Trade) (string, error)
	RecordClose(ctx context.Context, symbol string, side market.Side, at time.Time, reason string) error
	RecordBalance(ctx context.Context, b BalanceSnapshot) error
	List(ctx context.Context, symbol string, limit int) ([]Trade, error)
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOpen(context.Context, Trade) (string, error) { return "", nil }

func (Nop) RecordClose(context.Context, string, market.Side, time.Time, string) error {
	return nil
}

func (Nop) RecordBalance(context.Context, BalanceSnapshot) error { return nil }

func (Nop) List(context.Context, string, int) ([]Trade, error) { return nil, nil }

func (Nop) Close() error { return nil }
