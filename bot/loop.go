// Package bot runs one control loop per instrument: it keeps the candle
// window current, evaluates the signal generator on every closed bar,
// executes brackets, and reconciles tracked positions with the exchange.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/metrics"
	"github.com/rustyeddy/hedger/notify"
	"github.com/rustyeddy/hedger/position"
	"github.com/rustyeddy/hedger/risk"
	"github.com/rustyeddy/hedger/strategy"
)

const (
	// SafetyMargin is added to every bar-close boundary so the exchange
	// has finalized the bar before it is fetched.
	SafetyMargin = 5 * time.Second

	// ErrorCooldown is the pause after an aborted iteration.
	ErrorCooldown = 60 * time.Second
)

// SideSettings is the per-side part of Config.
type SideSettings struct {
	Enabled    bool
	MaxHolding time.Duration
}

// Config is immutable for the life of a loop.
type Config struct {
	Symbol     string
	Interval   string
	Leverage   int
	Long       SideSettings
	Short      SideSettings
	Risk       risk.Inputs // Balance and prices are filled per order
	WindowSize int
}

func (c Config) side(s market.Side) SideSettings {
	if s == market.Short {
		return c.Short
	}
	return c.Long
}

// Deps are the collaborators of a loop. Notifier, Journal, Now, Sleep and
// Logger are optional.
type Deps struct {
	Exchange  broker.Exchange
	Rules     *broker.Resolver
	Book      *position.Book
	Generator strategy.Generator
	Notifier  notify.Notifier
	Journal   journal.Journal
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
	Logger    *zerolog.Logger
}

// Status is a point-in-time view of a loop.
type Status struct {
	Symbol    string
	Interval  string
	Running   bool
	LastBar   time.Time
	LastError string
	Positions []position.Record
}

type Loop struct {
	cfg      Config
	interval time.Duration
	window   *market.Window

	ex    broker.Exchange
	rules *broker.Resolver
	book  *position.Book
	gen   strategy.Generator
	note  notify.Notifier
	jrnl  journal.Journal
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   zerolog.Logger

	mu      sync.Mutex
	running bool
	lastErr string
}

func New(cfg Config, d Deps) (*Loop, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("bot: missing symbol")
	}
	iv, err := market.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", cfg.Symbol, err)
	}
	if d.Exchange == nil || d.Rules == nil || d.Book == nil || d.Generator == nil {
		return nil, fmt.Errorf("bot %s: exchange, rules, book and generator are required", cfg.Symbol)
	}

	l := &Loop{
		cfg:      cfg,
		interval: iv,
		window:   market.NewWindow(cfg.WindowSize),
		ex:       d.Exchange,
		rules:    d.Rules,
		book:     d.Book,
		gen:      d.Generator,
		note:     d.Notifier,
		jrnl:     d.Journal,
		now:      d.Now,
		sleep:    d.Sleep,
	}
	if l.note == nil {
		l.note = notify.Nop{}
	}
	if l.jrnl == nil {
		l.jrnl = journal.Nop{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.sleep == nil {
		l.sleep = sleepCtx
	}
	base := log.Logger
	if d.Logger != nil {
		base = *d.Logger
	}
	l.log = base.With().Str("symbol", cfg.Symbol).Logger()
	return l, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Loop) Symbol() string { return l.cfg.Symbol }

// Status reports the loop's current state.
func (l *Loop) Status() Status {
	l.mu.Lock()
	st := Status{Symbol: l.cfg.Symbol, Interval: l.cfg.Interval, Running: l.running, LastError: l.lastErr}
	l.mu.Unlock()

	if b, ok := l.window.Last(); ok {
		st.LastBar = b.Time
	}
	st.Positions = l.book.Snapshot()
	return st
}

func (l *Loop) setRunning(v bool) {
	l.mu.Lock()
	l.running = v
	l.mu.Unlock()
}

func (l *Loop) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		l.lastErr = ""
		return
	}
	l.lastErr = err.Error()
}

// Run starts the loop and iterates until ctx is done. It returns an error
// only when the loop cannot start; iteration failures are logged and
// retried after ErrorCooldown.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		l.setErr(err)
		l.log.Error().Err(err).Msg("loop did not start")
		return err
	}

	l.setRunning(true)
	defer l.setRunning(false)
	l.log.Info().Str("interval", l.cfg.Interval).Msg("loop started in hedge mode")

	for {
		err := l.safeIterate(ctx)
		if ctx.Err() != nil {
			l.log.Info().Msg("loop stopped")
			return nil
		}
		l.setErr(err)
		if err == nil {
			continue
		}

		metrics.LoopErrors.WithLabelValues(l.cfg.Symbol).Inc()
		l.log.Error().Err(err).Dur("cooldown", ErrorCooldown).Msg("iteration failed")
		if l.sleep(ctx, ErrorCooldown) != nil {
			l.log.Info().Msg("loop stopped")
			return nil
		}
	}
}

// Start sets leverage, checks the symbol has precision rules and fills the
// candle window.
func (l *Loop) Start(ctx context.Context) error {
	if l.cfg.Leverage > 0 {
		if err := l.ex.SetLeverage(ctx, l.cfg.Symbol, l.cfg.Leverage); err != nil {
			l.log.Warn().Err(err).Int("leverage", l.cfg.Leverage).Msg("set leverage failed")
		} else {
			l.log.Info().Int("leverage", l.cfg.Leverage).Msg("leverage set")
		}
	}

	if _, err := l.rules.Rules(l.cfg.Symbol); err != nil {
		return err
	}

	want := l.window.Cap()
	bars, err := l.ex.FetchBars(ctx, l.cfg.Symbol, l.cfg.Interval, want)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientBackfill, err)
	}
	if len(bars) < want {
		return fmt.Errorf("%w: got %d of %d bars", ErrInsufficientBackfill, len(bars), want)
	}
	if err := l.window.Seed(bars); err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientBackfill, err)
	}

	for _, side := range market.Sides {
		metrics.SetOpen(l.cfg.Symbol, string(side), l.book.IsOpen(side))
	}
	return nil
}

func (l *Loop) safeIterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("iteration panicked")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.Iterate(ctx)
}

// Iterate runs one cycle: reconcile, wait for the next closed bar, then
// evaluate and possibly execute.
func (l *Loop) Iterate(ctx context.Context) error {
	if err := l.Reconcile(ctx); err != nil {
		return err
	}

	wait := market.UntilNextClose(l.now(), l.interval, SafetyMargin)
	l.log.Debug().Dur("wait", wait).Msg("waiting for next bar")
	if err := l.sleep(ctx, wait); err != nil {
		return err
	}

	bars, err := l.ex.FetchBars(ctx, l.cfg.Symbol, l.cfg.Interval, 1)
	if err != nil {
		return fmt.Errorf("fetch bar: %w", err)
	}
	if len(bars) == 0 {
		l.log.Warn().Msg("no new bar, skipping cycle")
		return nil
	}

	bar := bars[len(bars)-1]
	if !l.window.Append(bar) {
		l.log.Info().Time("bar", bar.Time).Msg("bar already seen, skipping")
		return nil
	}

	sig := l.gen.Generate(l.window.Frame())
	metrics.Signals.WithLabelValues(l.cfg.Symbol, sig.Kind.String()).Inc()

	side, ok := sig.Side()
	if !ok {
		return nil
	}
	if !l.cfg.side(side).Enabled {
		l.log.Debug().Str("side", string(side)).Msg("signal for disabled side ignored")
		return nil
	}
	if l.book.IsOpen(side) {
		l.log.Debug().Str("side", string(side)).Msg("signal ignored, side already open")
		return nil
	}

	l.log.Info().Str("side", string(side)).
		Float64("entry", sig.EntryPrice).
		Float64("stop_loss", sig.StopLoss).
		Float64("take_profit", sig.TakeProfit).
		Msg("signal")
	return l.handle(side, l.Execute(ctx, sig))
}
