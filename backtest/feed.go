package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/hedger/market"
)

// LoadCSV reads bars from path. See ReadCSV for the format.
func LoadCSV(path string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses rows of
//
//	time,open,high,low,close[,volume]
//
// where time is the bar open time, RFC3339 or Unix milliseconds. A header
// row ("time,...") and empty rows are skipped. Bars must be strictly
// increasing in time.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var bars []market.Bar
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}

		b, err := parseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(bars); n > 0 && !b.Time.After(bars[n-1].Time) {
			return nil, fmt.Errorf("line %d: bar %s is not after %s", line, b.Time.Format(time.RFC3339), bars[n-1].Time.Format(time.RFC3339))
		}
		bars = append(bars, b)
	}
}

func parseBarRow(row []string) (market.Bar, error) {
	if len(row) < 5 {
		return market.Bar{}, fmt.Errorf("need at least 5 columns (time,open,high,low,close), got %d", len(row))
	}

	t, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Bar{}, err
	}

	vals := make([]float64, 5)
	for i := 1; i < len(row) && i <= 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad number %q: %w", row[i], err)
		}
		vals[i-1] = v
	}
	return market.Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Replay serves historical bars as if they were live: FetchBars only
// returns bars whose interval has closed by the replay clock.
type Replay struct {
	symbol   string
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	bars []market.Bar
}

func NewReplay(symbol string, interval time.Duration, bars []market.Bar, now func() time.Time) *Replay {
	return &Replay{symbol: symbol, interval: interval, bars: bars, now: now}
}

func (r *Replay) FetchBars(_ context.Context, symbol, _ string, limit int) ([]market.Bar, error) {
	if symbol != r.symbol {
		return nil, fmt.Errorf("replay: no bars for %s", symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	end := sort.Search(len(r.bars), func(i int) bool {
		return r.bars[i].Time.Add(r.interval).After(now)
	})
	start := 0
	if limit > 0 && end > limit {
		start = end - limit
	}
	return append([]market.Bar(nil), r.bars[start:end]...), nil
}
