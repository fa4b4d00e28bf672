package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/hedger/market"
)

// BarSource supplies closed bars to the paper exchange. The live connector
// satisfies it; Feed is the scripted one.
type BarSource interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) ([]market.Bar, error)
}

// Feed is a scripted bar source. Bars are served per symbol regardless of
// the requested interval.
type Feed struct {
	mu   sync.Mutex
	bars map[string][]market.Bar
}

func NewFeed() *Feed {
	return &Feed{bars: make(map[string][]market.Bar)}
}

// Set replaces the history for symbol.
func (f *Feed) Set(symbol string, bars []market.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[symbol] = append([]market.Bar(nil), bars...)
}

// Push appends one bar to symbol's history.
func (f *Feed) Push(symbol string, b market.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bars[symbol] = append(f.bars[symbol], b)
}

// FetchBars returns the newest limit bars, oldest first.
func (f *Feed) FetchBars(_ context.Context, symbol, _ string, limit int) ([]market.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("feed: no bars for %s", symbol)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return append([]market.Bar(nil), bars...), nil
}
