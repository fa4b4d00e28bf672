// Package backtest replays historical bars through a control loop running
// against the paper exchange, on a simulated clock.
package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/hedger/bot"
	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/broker/sim"
	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/position"
	"github.com/rustyeddy/hedger/strategy"
)

// Options controls a run. Loop holds the same settings a live loop gets;
// its WindowSize bars are consumed as warmup before the first evaluation.
type Options struct {
	Loop    bot.Config
	Rules   broker.Rules
	Balance float64
	FeeRate float64

	// CloseEnd closes whatever is still open at the last bar's close.
	CloseEnd bool
	Logger   *zerolog.Logger
}

// Result is a lightweight summary of a backtest run.
type Result struct {
	StartBalance float64
	Balance      float64

	Trades      int
	Unprotected int
	Closed      map[string]int // by close reason

	Start time.Time
	End   time.Time
}

// ReturnPct is the net change of the balance in percent.
func (r Result) ReturnPct() float64 {
	if r.StartBalance == 0 {
		return 0
	}
	return (r.Balance - r.StartBalance) / r.StartBalance * 100
}

// Run drives one loop over bars until every bar has been evaluated.
func Run(ctx context.Context, bars []market.Bar, gen strategy.Generator, opt Options) (Result, error) {
	cfg := opt.Loop
	iv, err := market.ParseInterval(cfg.Interval)
	if err != nil {
		return Result{}, err
	}
	window := cfg.WindowSize
	if window <= 0 {
		window = market.WindowSize
		cfg.WindowSize = window
	}
	if len(bars) <= window {
		return Result{}, fmt.Errorf("backtest: need more than %d bars, got %d", window, len(bars))
	}

	clk := &clock{now: bars[window-1].Time.Add(iv)}
	feed := NewReplay(cfg.Symbol, iv, bars, clk.Now)
	ex := sim.New(feed, opt.Balance,
		sim.WithClock(clk.Now),
		sim.WithFeeRate(opt.FeeRate),
		sim.WithRules(map[string]broker.Rules{cfg.Symbol: opt.Rules}),
	)
	rules, err := broker.LoadResolver(ctx, ex)
	if err != nil {
		return Result{}, err
	}

	tally := &tally{closed: make(map[string]int)}
	book := position.New(cfg.Symbol, nil)
	loop, err := bot.New(cfg, bot.Deps{
		Exchange:  ex,
		Rules:     rules,
		Book:      book,
		Generator: gen,
		Journal:   tally,
		Now:       clk.Now,
		Sleep:     clk.Sleep,
		Logger:    opt.Logger,
	})
	if err != nil {
		return Result{}, err
	}
	if err := loop.Start(ctx); err != nil {
		return Result{}, err
	}

	end := bars[len(bars)-1].Time.Add(iv)
	for clk.Now().Before(end) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := loop.Iterate(ctx); err != nil {
			return Result{}, fmt.Errorf("backtest at %s: %w", clk.Now().Format(time.RFC3339), err)
		}
	}
	// settle brackets triggered by the last bar
	if err := loop.Reconcile(ctx); err != nil {
		return Result{}, err
	}

	if opt.CloseEnd {
		for _, side := range market.Sides {
			live, err := ex.LivePosition(ctx, cfg.Symbol, side)
			if err != nil || !live.Open() {
				continue
			}
			qty, err := rules.Quantity(cfg.Symbol, live.Size)
			if err != nil {
				return Result{}, err
			}
			if _, err := ex.ClosePosition(ctx, cfg.Symbol, side, qty); err != nil {
				return Result{}, err
			}
			tally.closed["end"]++
		}
	}

	return Result{
		StartBalance: opt.Balance,
		Balance:      ex.Balance(),
		Trades:       tally.opens,
		Unprotected:  tally.unprotected,
		Closed:       tally.closed,
		Start:        bars[window].Time,
		End:          bars[len(bars)-1].Time,
	}, nil
}

// clock is the simulated time source: sleeping advances it.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

// tally is the journal of a run, kept in memory.
type tally struct {
	journal.Nop
	opens       int
	unprotected int
	closed      map[string]int
}

func (t *tally) RecordOpen(_ context.Context, tr journal.Trade) (string, error) {
	t.opens++
	if !tr.Protected {
		t.unprotected++
	}
	return "", nil
}

func (t *tally) RecordClose(_ context.Context, _ string, _ market.Side, _ time.Time, reason string) error {
	t.closed[reason]++
	return nil
}
