package market

import (
	"fmt"
	"time"
)

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ParseInterval maps an exchange kline interval ("15m", "4h", "1d") to its
// duration. Calendar-month bars are not supported.
func ParseInterval(s string) (time.Duration, error) {
	d, ok := intervals[s]
	if !ok {
		return 0, fmt.Errorf("unsupported interval: %q", s)
	}
	return d, nil
}

const week = 7 * 24 * time.Hour

var epoch = time.Unix(0, 0).UTC()

// NextClose returns the first bar-close boundary strictly after now.
// Bars shorter than a week are aligned to the Unix epoch, so 3d bars
// follow the exchange's buckets. Week bars close on Monday 00:00 UTC.
func NextClose(now time.Time, interval time.Duration) time.Time {
	now = now.UTC()
	if interval >= week {
		// Go's zero time is a Monday
		return now.Truncate(interval).Add(interval)
	}
	n := now.Sub(epoch) / interval
	return epoch.Add((n + 1) * interval)
}

// UntilNextClose is the wait from now until the next bar-close boundary
// plus margin.
func UntilNextClose(now time.Time, interval, margin time.Duration) time.Duration {
	return NextClose(now, interval).Sub(now) + margin
}
