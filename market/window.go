package market

import (
	"fmt"
	"sync"
	"time"
)

// WindowSize is the number of bars each control loop keeps.
const WindowSize = 400

// Window is a fixed-capacity, time-ordered buffer of the most recent bars
// for one instrument. The oldest bar is evicted once capacity is exceeded.
type Window struct {
	mu   sync.RWMutex
	cap  int
	bars []Bar
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = WindowSize
	}
	return &Window{cap: capacity, bars: make([]Bar, 0, capacity+1)}
}

// Seed replaces the window contents with the newest bars of a backfill.
// Bars must be strictly increasing in time.
func (w *Window) Seed(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return fmt.Errorf("backfill not strictly ordered at %d: %s <= %s",
				i, bars[i].Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}
	if len(bars) > w.cap {
		bars = bars[len(bars)-w.cap:]
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.bars = append(w.bars[:0], bars...)
	return nil
}

// Append adds b if it is newer than the current newest bar. It reports
// false, without changing the window, for a bar whose timestamp is equal to
// or older than the newest one.
func (w *Window) Append(b Bar) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.bars); n > 0 && !b.Time.After(w.bars[n-1].Time) {
		return false
	}
	w.bars = append(w.bars, b)
	if len(w.bars) > w.cap {
		copy(w.bars, w.bars[1:])
		w.bars = w.bars[:w.cap]
	}
	return true
}

// Last returns the newest bar.
func (w *Window) Last() (Bar, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.bars) == 0 {
		return Bar{}, false
	}
	return w.bars[len(w.bars)-1], true
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.bars)
}

func (w *Window) Cap() int { return w.cap }

// Bars returns a copy of the window contents, oldest first.
func (w *Window) Bars() []Bar {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Bar, len(w.bars))
	copy(out, w.bars)
	return out
}

// Frame converts the window to the columnar form signal generators expect.
func (w *Window) Frame() Frame {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return FrameOf(w.bars)
}
