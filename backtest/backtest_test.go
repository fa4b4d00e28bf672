package backtest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/bot"
	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/risk"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestReadCSV(t *testing.T) {
	in := `time,open,high,low,close,volume
2024-03-01T00:00:00Z,100,101,99,100.5,12

1709254800000,100.5,102,100,101,8
`
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, t0.Equal(bars[0].Time))
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 12.0, bars[0].Volume)
	assert.True(t, t0.Add(time.Hour).Equal(bars[1].Time))
	assert.Equal(t, 102.0, bars[1].High)
}

func TestReadCSVRejectsBadRows(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("2024-03-01T00:00:00Z,1,2,3\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = ReadCSV(strings.NewReader("2024-03-01T01:00:00Z,1,2,0,1\n2024-03-01T00:00:00Z,1,2,0,1\n"))
	assert.ErrorContains(t, err, "not after")

	_, err = ReadCSV(strings.NewReader("yesterday,1,2,0,1\n"))
	assert.ErrorContains(t, err, "bad time")
}

func flat(n int, price float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: price, High: price + 0.5, Low: price - 0.5, Close: price}
	}
	return bars
}

func TestReplayRevealsClosedBars(t *testing.T) {
	now := t0.Add(3 * time.Hour)
	r := NewReplay("BTCUSDT", time.Hour, flat(10, 100), func() time.Time { return now })

	bars, err := r.FetchBars(context.Background(), "BTCUSDT", "1h", 0)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	now = now.Add(90 * time.Minute)
	bars, err = r.FetchBars(context.Background(), "BTCUSDT", "1h", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, t0.Add(3*time.Hour).Equal(bars[0].Time))

	_, err = r.FetchBars(context.Background(), "ETHUSDT", "1h", 1)
	assert.Error(t, err)
}

// fireAt goes long once, on the bar opened at the given time.
type fireAt struct{ at time.Time }

func (fireAt) Name() string { return "fire-at" }

func (g fireAt) Generate(f market.Frame) market.Signal {
	if f.Len() == 0 || !f.Time[f.Len()-1].Equal(g.at) {
		return market.NoSignal
	}
	return market.Signal{Kind: market.GoLong, EntryPrice: 100, StopLoss: 98, TakeProfit: 104}
}

func options(maxHolding time.Duration) Options {
	return Options{
		Loop: bot.Config{
			Symbol:     "BTCUSDT",
			Interval:   "1h",
			Long:       bot.SideSettings{Enabled: true, MaxHolding: maxHolding},
			Short:      bot.SideSettings{Enabled: true, MaxHolding: maxHolding},
			Risk:       risk.Inputs{RiskPct: 0.01},
			WindowSize: 20,
		},
		Rules: broker.Rules{
			StepSize: decimal.RequireFromString("0.1"),
			TickSize: decimal.RequireFromString("0.01"),
		},
		Balance: 10_000,
		FeeRate: 0.0004,
	}
}

func TestRunTakeProfit(t *testing.T) {
	bars := flat(30, 100)
	bars[25].High = 105

	res, err := Run(context.Background(), bars, fireAt{at: bars[22].Time}, options(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trades)
	assert.Equal(t, 0, res.Unprotected)
	assert.Equal(t, map[string]int{"exchange": 1}, res.Closed)
	assert.Greater(t, res.Balance, 10_000.0)
	assert.Greater(t, res.ReturnPct(), 0.0)
	assert.True(t, bars[20].Time.Equal(res.Start))
	assert.True(t, bars[29].Time.Equal(res.End))
}

func TestRunTimeout(t *testing.T) {
	bars := flat(30, 100)

	res, err := Run(context.Background(), bars, fireAt{at: bars[22].Time}, options(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Trades)
	assert.Equal(t, map[string]int{"timeout": 1}, res.Closed)
	assert.Less(t, res.Balance, 10_000.0, "fees only")
}

func TestRunCloseEnd(t *testing.T) {
	bars := flat(30, 100)
	opt := options(0)
	opt.CloseEnd = true

	res, err := Run(context.Background(), bars, fireAt{at: bars[22].Time}, opt)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"end": 1}, res.Closed)
}

func TestRunNeedsWarmup(t *testing.T) {
	_, err := Run(context.Background(), flat(20, 100), fireAt{}, options(0))
	assert.ErrorContains(t, err, "need more than 20 bars")
}
