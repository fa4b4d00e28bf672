// Package state persists each symbol's open-position record so a restarted
// process resumes with the positions it was tracking.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SideData is the entry metadata kept for an open side.
type SideData struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
}

// Entry is one symbol's persisted record. Field names match the state.json
// layout written by earlier releases.
type Entry struct {
	LongOpen     bool                `json:"long_position_open"`
	ShortOpen    bool                `json:"short_position_open"`
	PositionData map[string]SideData `json:"position_data"`
}

// ErrCorrupt is returned when a stored document cannot be parsed.
var ErrCorrupt = errors.New("state document corrupt")

// Document maps symbol to its record.
type Document map[string]Entry

// Store is symbol-keyed durable storage. Saving one symbol must never
// disturb another symbol's committed entry.
type Store interface {
	// Load returns the entry for symbol. ok is false when nothing was
	// stored for it.
	Load(ctx context.Context, symbol string) (e Entry, ok bool, err error)
	Save(ctx context.Context, symbol string, e Entry) error
	// Dump returns every stored entry.
	Dump(ctx context.Context) (Document, error)
	Close() error
}

// Open returns the backend named by kind: "file" (the default) or
// "sqlite".
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("state: unknown store type %q", kind)
}

func (e Entry) clone() Entry {
	out := Entry{LongOpen: e.LongOpen, ShortOpen: e.ShortOpen, PositionData: make(map[string]SideData, len(e.PositionData))}
	for k, v := range e.PositionData {
		v.EntryTime = v.EntryTime.UTC()
		out.PositionData[k] = v
	}
	return out
}
