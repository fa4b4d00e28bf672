package market

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func bars(n int, step time.Duration) []Bar {
	out := make([]Bar, n)
	for i := range out {
		px := 100 + float64(i)
		out[i] = Bar{Time: t0.Add(time.Duration(i) * step), Open: px, High: px + 1, Low: px - 1, Close: px, Volume: 10}
	}
	return out
}

func TestWindowSeedKeepsNewest(t *testing.T) {
	w := NewWindow(5)
	require.NoError(t, w.Seed(bars(8, time.Minute)))

	assert.Equal(t, 5, w.Len())
	got := w.Bars()
	assert.Equal(t, t0.Add(3*time.Minute), got[0].Time)
	assert.Equal(t, t0.Add(7*time.Minute), got[4].Time)
}

func TestWindowSeedRejectsUnordered(t *testing.T) {
	bs := bars(3, time.Minute)
	bs[2].Time = bs[1].Time

	w := NewWindow(5)
	err := w.Seed(bs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not strictly ordered")
}

func TestWindowAppendEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	require.NoError(t, w.Seed(bars(3, time.Minute)))

	ok := w.Append(Bar{Time: t0.Add(3 * time.Minute), Close: 42})
	require.True(t, ok)

	got := w.Bars()
	require.Len(t, got, 3)
	assert.Equal(t, t0.Add(time.Minute), got[0].Time)
	assert.Equal(t, 42.0, got[2].Close)
}

func TestWindowAppendDuplicateIsNoop(t *testing.T) {
	w := NewWindow(3)
	require.NoError(t, w.Seed(bars(3, time.Minute)))
	before := w.Bars()

	last, _ := w.Last()
	assert.False(t, w.Append(Bar{Time: last.Time, Close: 999}))
	assert.False(t, w.Append(Bar{Time: last.Time.Add(-time.Minute), Close: 999}))
	assert.Equal(t, before, w.Bars())
}

func TestWindowInvariantRandomAppends(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := NewWindow(16)

	for i := 0; i < 2000; i++ {
		// Mostly forward, sometimes repeat or go back.
		off := time.Duration(rng.Intn(40)-5) * time.Minute
		w.Append(Bar{Time: t0.Add(time.Duration(i)*time.Minute/2 + off)})

		got := w.Bars()
		require.LessOrEqual(t, len(got), 16)
		for j := 1; j < len(got); j++ {
			require.True(t, got[j].Time.After(got[j-1].Time), "bars must be strictly increasing")
		}
	}
}

func TestWindowFrame(t *testing.T) {
	w := NewWindow(4)
	require.NoError(t, w.Seed(bars(4, time.Hour)))

	f := w.Frame()
	assert.Equal(t, 4, f.Len())
	assert.Equal(t, []float64{100, 101, 102, 103}, f.Close)
	assert.Equal(t, []float64{101, 102, 103, 104}, f.High)
	assert.Equal(t, t0.Add(3*time.Hour), f.Time[3])

	// Frame is a copy.
	f.Close[0] = -1
	assert.Equal(t, 100.0, w.Bars()[0].Close)
}

func TestNewWindowDefaultCapacity(t *testing.T) {
	assert.Equal(t, WindowSize, NewWindow(0).Cap())
}
