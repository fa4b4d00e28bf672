package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Rules are the quantization rules an exchange enforces for one symbol.
type Rules struct {
	StepSize decimal.Decimal // quantity increment
	TickSize decimal.Decimal // price increment
	MinQty   decimal.Decimal
	MinPrice decimal.Decimal
}

// QtyDecimals is the number of decimal places implied by the step size.
func (r Rules) QtyDecimals() int32 {
	return decimalsOf(r.StepSize)
}

// PriceDecimals is the number of decimal places implied by the tick size.
func (r Rules) PriceDecimals() int32 {
	return decimalsOf(r.TickSize)
}

func decimalsOf(d decimal.Decimal) int32 {
	// String trims trailing zeros: "0.00100000" -> "0.001" -> 3
	s := d.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return int32(len(s) - i - 1)
	}
	return 0
}

// FloorQty rounds q down to the step size, then to the step's decimals.
func (r Rules) FloorQty(q decimal.Decimal) decimal.Decimal {
	return floorTo(q, r.StepSize).Round(r.QtyDecimals())
}

// FloorPrice rounds p down to the tick size, then to the tick's decimals.
func (r Rules) FloorPrice(p decimal.Decimal) decimal.Decimal {
	return floorTo(p, r.TickSize).Round(r.PriceDecimals())
}

func floorTo(v, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// RulesSource publishes quantization rules for every tradable symbol.
type RulesSource interface {
	ExchangeRules(ctx context.Context) (map[string]Rules, error)
}

// Resolver holds the rules loaded once at startup and rounds requested
// quantities and prices to valid exchange granularity.
type Resolver struct {
	mu    sync.RWMutex
	rules map[string]Rules
}

func NewResolver(rules map[string]Rules) *Resolver {
	r := &Resolver{rules: make(map[string]Rules, len(rules))}
	for sym, rl := range rules {
		r.rules[sym] = rl
	}
	return r
}

// LoadResolver fetches the rules from src.
func LoadResolver(ctx context.Context, src RulesSource) (*Resolver, error) {
	rules, err := src.ExchangeRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exchange rules: %w", err)
	}
	return NewResolver(rules), nil
}

// Rules returns the rules for symbol or ErrUnknownSymbol.
func (r *Resolver) Rules(symbol string) (Rules, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rl, ok := r.rules[symbol]
	if !ok {
		return Rules{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return rl, nil
}

// Len is the number of symbols with rules.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Quantity rounds q down to the symbol's step size.
func (r *Resolver) Quantity(symbol string, q float64) (decimal.Decimal, error) {
	rl, err := r.Rules(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return rl.FloorQty(decimal.NewFromFloat(q)), nil
}

// Price rounds p down to the symbol's tick size.
func (r *Resolver) Price(symbol string, p float64) (decimal.Decimal, error) {
	rl, err := r.Rules(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return rl.FloorPrice(decimal.NewFromFloat(p)), nil
}
