// Package position tracks, per symbol, whether the LONG and SHORT sides are
// open and persists every change before reporting it.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/state"
)

var (
	ErrAlreadyOpen = errors.New("side already open")
	ErrNotOpen     = errors.New("side not open")

	// ErrPersist wraps store failures. The in-memory transition has been
	// applied when it is returned.
	ErrPersist = errors.New("persist position state")
)

// Record is the entry metadata of an open side.
type Record struct {
	Side       market.Side `json:"side"`
	EntryTime  time.Time   `json:"entry_time"`
	EntryPrice float64     `json:"entry_price"`
}

// Book is the position state machine for one symbol. A side is present in
// the open set exactly while it is OPEN.
type Book struct {
	mu     sync.Mutex
	symbol string
	store  state.Store
	open   map[market.Side]Record
}

// New returns an empty book. A nil store keeps state in memory only.
func New(symbol string, store state.Store) *Book {
	return &Book{symbol: symbol, store: store, open: make(map[market.Side]Record, 2)}
}

// Load restores the book from store. On a read error the book starts
// empty and the error is returned for logging; reconciliation re-adopts
// any live positions.
func Load(ctx context.Context, symbol string, store state.Store) (*Book, error) {
	b := New(symbol, store)
	if store == nil {
		return b, nil
	}

	e, ok, err := store.Load(ctx, symbol)
	if err != nil {
		return b, fmt.Errorf("load state for %s: %w", symbol, err)
	}
	if !ok {
		return b, nil
	}

	b.restore(market.Long, e.PositionData)
	b.restore(market.Short, e.PositionData)
	return b, nil
}

// restore trusts the position data over the open flags: they are written
// together and only the data carries the entry time timeouts need.
func (b *Book) restore(side market.Side, data map[string]state.SideData) {
	d, has := data[string(side)]
	// Without an entry time the side stays CLOSED; reconciliation adopts
	// the live position with the discovery instant instead.
	if !has || d.EntryTime.IsZero() {
		return
	}
	b.open[side] = Record{Side: side, EntryTime: d.EntryTime.UTC(), EntryPrice: d.EntryPrice}
}

func (b *Book) Symbol() string { return b.symbol }

// IsOpen reports whether side is OPEN.
func (b *Book) IsOpen(side market.Side) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.open[side]
	return ok
}

// Get returns the record of an open side.
func (b *Book) Get(side market.Side) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.open[side]
	return r, ok
}

// Open moves side from CLOSED to OPEN and persists the book.
func (b *Book) Open(ctx context.Context, side market.Side, entryTime time.Time, entryPrice float64) error {
	if !side.Valid() {
		return fmt.Errorf("open %s: invalid side %q", b.symbol, side)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.open[side]; ok {
		return fmt.Errorf("open %s %s: %w", b.symbol, side, ErrAlreadyOpen)
	}
	b.open[side] = Record{Side: side, EntryTime: entryTime.UTC(), EntryPrice: entryPrice}
	return b.persistLocked(ctx)
}

// Close moves side from OPEN to CLOSED and persists the book.
func (b *Book) Close(ctx context.Context, side market.Side) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.open[side]; !ok {
		return fmt.Errorf("close %s %s: %w", b.symbol, side, ErrNotOpen)
	}
	delete(b.open, side)
	return b.persistLocked(ctx)
}

// Snapshot returns the open records, LONG first.
func (b *Book) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Record, 0, len(b.open))
	for _, side := range market.Sides {
		if r, ok := b.open[side]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Entry is the persisted form of the book.
func (b *Book) Entry() state.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entryLocked()
}

func (b *Book) entryLocked() state.Entry {
	e := state.Entry{PositionData: make(map[string]state.SideData, len(b.open))}
	for side, r := range b.open {
		e.PositionData[string(side)] = state.SideData{EntryTime: r.EntryTime, EntryPrice: r.EntryPrice}
	}
	_, e.LongOpen = b.open[market.Long]
	_, e.ShortOpen = b.open[market.Short]
	return e
}

// persistLocked runs with b.mu held so no other transition on this symbol
// can start while the write is in flight.
func (b *Book) persistLocked(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.Save(ctx, b.symbol, b.entryLocked()); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrPersist, b.symbol, err)
	}
	return nil
}
