// Package sim is an in-memory hedge-mode exchange used for paper trading
// and as the exchange double in tests. Market orders fill at the newest
// known close; protective orders trigger when a later bar trades through
// them.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/market"
)

// Op names an exchange call for fault injection.
type Op string

const (
	OpFetchBars  Op = "fetch_bars"
	OpBalance    Op = "balance"
	OpPosition   Op = "position"
	OpMarket     Op = "market"
	OpTakeProfit Op = "take_profit"
	OpStopLoss   Op = "stop_loss"
	OpClose      Op = "close"
	OpCancelAll  Op = "cancel_all"
	OpLeverage   Op = "leverage"
	OpRules      Op = "rules"
)

var ErrNoPrice = errors.New("no price for symbol")

// Submission is one accepted order, kept for inspection.
type Submission struct {
	Op       Op
	Symbol   string
	Side     market.Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Time     time.Time
}

type posKey struct {
	symbol string
	side   market.Side
}

type Exchange struct {
	mu sync.Mutex

	src      BarSource
	rules    map[string]broker.Rules
	now      func() time.Time
	feeRate  float64
	balance  float64
	seq      int
	lastBar  map[string]market.Bar
	trades   map[posKey]*Trade
	stops    map[string][]*stopOrder
	leverage map[string]int
	faults   map[Op][]error
	log      []Submission
}

type Option func(*Exchange)

// WithRules sets the quantization rules served by ExchangeRules. Without
// it, rules are delegated to the bar source when it publishes them.
func WithRules(rules map[string]broker.Rules) Option {
	return func(e *Exchange) { e.rules = rules }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exchange) { e.now = now }
}

// WithFeeRate charges rate × notional on every fill.
func WithFeeRate(rate float64) Option {
	return func(e *Exchange) { e.feeRate = rate }
}

func New(src BarSource, balance float64, opts ...Option) *Exchange {
	e := &Exchange{
		src:      src,
		now:      time.Now,
		balance:  balance,
		lastBar:  make(map[string]market.Bar),
		trades:   make(map[posKey]*Trade),
		stops:    make(map[string][]*stopOrder),
		leverage: make(map[string]int),
		faults:   make(map[Op][]error),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Exchange) Name() string { return "paper" }

// FailNext makes the next call of op return err. Calls queue up.
func (e *Exchange) FailNext(op Op, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[op] = append(e.faults[op], err)
}

func (e *Exchange) faultLocked(op Op) error {
	q := e.faults[op]
	if len(q) == 0 {
		return nil
	}
	e.faults[op] = q[1:]
	return q[0]
}

func (e *Exchange) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]market.Bar, error) {
	e.mu.Lock()
	err := e.faultLocked(OpFetchBars)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	bars, err := e.src.FetchBars(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range bars {
		e.observeLocked(symbol, b)
	}
	return bars, nil
}

// Observe feeds a bar to the trigger engine without going through
// FetchBars.
func (e *Exchange) Observe(symbol string, b market.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observeLocked(symbol, b)
}

func (e *Exchange) observeLocked(symbol string, b market.Bar) {
	last, seen := e.lastBar[symbol]
	if seen && !b.Time.After(last.Time) {
		return
	}
	e.lastBar[symbol] = b

	for _, side := range market.Sides {
		t, ok := e.trades[posKey{symbol, side}]
		if !ok {
			continue
		}
		if o := e.hitLocked(symbol, side, b); o != nil {
			e.closeLocked(t, t.Size, o.Trigger)
			e.dropStopsLocked(symbol, side)
			log.Debug().
				Str("symbol", symbol).
				Str("side", string(side)).
				Str("kind", string(o.Kind)).
				Float64("price", o.Trigger).
				Msg("paper bracket triggered")
		}
	}
}

// hitLocked returns the protective order b triggers. When a bar spans both
// legs the stop-loss wins.
func (e *Exchange) hitLocked(symbol string, side market.Side, b market.Bar) *stopOrder {
	var tp *stopOrder
	for _, o := range e.stops[symbol] {
		if o.Side != side || !o.triggered(b) {
			continue
		}
		if o.Kind == broker.StopLoss {
			return o
		}
		if tp == nil {
			tp = o
		}
	}
	return tp
}

func (e *Exchange) dropStopsLocked(symbol string, side market.Side) {
	kept := e.stops[symbol][:0]
	for _, o := range e.stops[symbol] {
		if o.Side != side {
			kept = append(kept, o)
		}
	}
	e.stops[symbol] = kept
}

func (e *Exchange) closeLocked(t *Trade, size, price float64) {
	if size > t.Size {
		size = t.Size
	}
	e.balance += t.PL(price, size) - e.feeRate*size*price
	t.Size -= size
	if t.Size <= 0 {
		delete(e.trades, posKey{t.Symbol, t.Side})
	}
}

func (e *Exchange) FetchBalance(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.faultLocked(OpBalance); err != nil {
		return 0, err
	}
	return e.balance, nil
}

func (e *Exchange) LivePosition(ctx context.Context, symbol string, side market.Side) (*broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.faultLocked(OpPosition); err != nil {
		return nil, err
	}
	t, ok := e.trades[posKey{symbol, side}]
	if !ok {
		return nil, nil
	}
	return &broker.Position{Symbol: symbol, Side: side, Size: t.Size, EntryPrice: t.EntryPrice}, nil
}

func (e *Exchange) SubmitMarketOrder(ctx context.Context, o broker.MarketOrder) (broker.OrderAck, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.faultLocked(OpMarket); err != nil {
		return broker.OrderAck{}, err
	}
	if !o.Side.Valid() || o.Direction != o.Side.Entry() {
		return broker.OrderAck{}, fmt.Errorf("paper: %s order cannot open %s", o.Direction, o.Side)
	}
	if o.Quantity.Sign() <= 0 {
		return broker.OrderAck{}, fmt.Errorf("paper: quantity must be positive, got %s", o.Quantity)
	}
	bar, ok := e.lastBar[o.Symbol]
	if !ok {
		return broker.OrderAck{}, fmt.Errorf("paper: %w: %s", ErrNoPrice, o.Symbol)
	}

	qty := o.Quantity.InexactFloat64()
	k := posKey{o.Symbol, o.Side}
	if t, open := e.trades[k]; open {
		t.add(qty, bar.Close)
	} else {
		e.trades[k] = &Trade{Symbol: o.Symbol, Side: o.Side, Size: qty, EntryPrice: bar.Close, OpenTime: e.now().UTC()}
	}
	e.balance -= e.feeRate * qty * bar.Close

	return e.ackLocked(OpMarket, o.Symbol, o.Side, o.Quantity, decimal.NewFromFloat(bar.Close), o.ClientOrderID), nil
}

func (e *Exchange) SubmitStopOrder(ctx context.Context, o broker.StopOrder) (broker.OrderAck, error) {
	op := OpStopLoss
	if o.Kind == broker.TakeProfit {
		op = OpTakeProfit
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.faultLocked(op); err != nil {
		return broker.OrderAck{}, err
	}
	if !o.Side.Valid() || o.Direction != o.Side.Exit() {
		return broker.OrderAck{}, fmt.Errorf("paper: %s stop cannot close %s", o.Direction, o.Side)
	}
	if o.TriggerPrice.Sign() <= 0 {
		return broker.OrderAck{}, fmt.Errorf("paper: trigger price must be positive, got %s", o.TriggerPrice)
	}

	ack := e.ackLocked(op, o.Symbol, o.Side, decimal.Zero, o.TriggerPrice, o.ClientOrderID)
	e.stops[o.Symbol] = append(e.stops[o.Symbol], &stopOrder{
		ID:      ack.OrderID,
		Side:    o.Side,
		Kind:    o.Kind,
		Trigger: o.TriggerPrice.InexactFloat64(),
	})
	return ack, nil
}

// ClosePosition reduces the position at the newest close. Closing a side
// with no position succeeds.
func (e *Exchange) ClosePosition(ctx context.Context, symbol string, side market.Side, qty decimal.Decimal) (broker.OrderAck, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.faultLocked(OpClose); err != nil {
		return broker.OrderAck{}, err
	}

	t, ok := e.trades[posKey{symbol, side}]
	if !ok {
		return broker.OrderAck{Time: e.now().UTC()}, nil
	}
	price := t.EntryPrice
	if bar, ok := e.lastBar[symbol]; ok {
		price = bar.Close
	}
	e.closeLocked(t, qty.InexactFloat64(), price)
	return e.ackLocked(OpClose, symbol, side, qty, decimal.NewFromFloat(price), ""), nil
}

func (e *Exchange) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.faultLocked(OpCancelAll); err != nil {
		return err
	}
	delete(e.stops, symbol)
	return nil
}

func (e *Exchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.faultLocked(OpLeverage); err != nil {
		return err
	}
	if leverage <= 0 {
		return fmt.Errorf("paper: invalid leverage %d", leverage)
	}
	e.leverage[symbol] = leverage
	return nil
}

// ExchangeRules implements broker.RulesSource.
func (e *Exchange) ExchangeRules(ctx context.Context) (map[string]broker.Rules, error) {
	e.mu.Lock()
	if err := e.faultLocked(OpRules); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	rules := e.rules
	e.mu.Unlock()

	if rules != nil {
		out := make(map[string]broker.Rules, len(rules))
		for k, v := range rules {
			out[k] = v
		}
		return out, nil
	}
	if rs, ok := e.src.(broker.RulesSource); ok {
		return rs.ExchangeRules(ctx)
	}
	return nil, errors.New("paper: no exchange rules configured")
}

func (e *Exchange) ackLocked(op Op, symbol string, side market.Side, qty, price decimal.Decimal, clientID string) broker.OrderAck {
	e.seq++
	now := e.now().UTC()
	e.log = append(e.log, Submission{Op: op, Symbol: symbol, Side: side, Quantity: qty, Price: price, Time: now})
	return broker.OrderAck{OrderID: "paper-" + strconv.Itoa(e.seq), ClientOrderID: clientID, Time: now}
}

// Open seeds a live position, as if it had been opened outside the bot.
func (e *Exchange) Open(symbol string, side market.Side, size, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trades[posKey{symbol, side}] = &Trade{Symbol: symbol, Side: side, Size: size, EntryPrice: price, OpenTime: e.now().UTC()}
}

// Drop removes a live position without touching the balance, as a manual
// close or liquidation would.
func (e *Exchange) Drop(symbol string, side market.Side) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.trades, posKey{symbol, side})
}

func (e *Exchange) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

func (e *Exchange) Leverage(symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leverage[symbol]
}

// OpenOrders returns the kinds of the resting protective orders for
// symbol, sorted.
func (e *Exchange) OpenOrders(symbol string) []broker.StopKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []broker.StopKind
	for _, o := range e.stops[symbol] {
		out = append(out, o.Kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Submissions returns every accepted order in submission order.
func (e *Exchange) Submissions() []Submission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Submission(nil), e.log...)
}
