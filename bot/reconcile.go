package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/metrics"
	"github.com/rustyeddy/hedger/notify"
	"github.com/rustyeddy/hedger/position"
)

// Reconcile aligns the book with the exchange for both sides. A live
// position that is not tracked is adopted; a tracked side with no live
// position is closed; a side held longer than its maximum is closed at
// market. A failed position query aborts the pass without transitions.
func (l *Loop) Reconcile(ctx context.Context) error {
	for _, side := range market.Sides {
		live, err := l.ex.LivePosition(ctx, l.cfg.Symbol, side)
		if err != nil {
			return fmt.Errorf("live position %s: %w", side, err)
		}

		if !live.Open() {
			if l.book.IsOpen(side) {
				l.transitionClosed(ctx, side, journal.ReasonExchange)
				l.log.Info().Str("side", string(side)).Msg("position gone on exchange, tracking cleared")
			}
			continue
		}

		if !l.book.IsOpen(side) {
			l.transitionOpen(ctx, side, l.now(), live.EntryPrice, "adopt")
			l.log.Info().Str("side", string(side)).
				Float64("size", live.Size).
				Float64("entry", live.EntryPrice).
				Msg("adopted untracked exchange position")
		}
		l.enforceTimeout(ctx, side, live)
	}
	return nil
}

func (l *Loop) enforceTimeout(ctx context.Context, side market.Side, live *broker.Position) {
	rec, ok := l.book.Get(side)
	if !ok {
		return
	}
	held := l.now().Sub(rec.EntryTime)
	limit := l.cfg.side(side).MaxHolding
	if limit <= 0 || held <= limit {
		return
	}

	lg := l.log.With().Str("side", string(side)).Logger()
	lg.Info().Dur("held", held).Dur("max", limit).Msg("max holding time exceeded, closing")

	qty, err := l.rules.Quantity(l.cfg.Symbol, live.Size)
	if err != nil || qty.Sign() <= 0 {
		qty = decimal.NewFromFloat(live.Size)
	}

	// close and cancel run to completion even during shutdown
	cctx := context.WithoutCancel(ctx)
	if _, err := l.ex.ClosePosition(cctx, l.cfg.Symbol, side, qty); err != nil {
		lg.Error().Err(err).Msg("timeout close failed, retrying next iteration")
		return
	}
	if err := l.ex.CancelAllOpenOrders(cctx, l.cfg.Symbol); err != nil {
		lg.Error().Err(err).Msg("cancel open orders after timeout close failed")
	}

	l.transitionClosed(cctx, side, journal.ReasonTimeout)
	l.note.Notify(cctx, notify.Event{Kind: notify.TimeoutClose, Symbol: l.cfg.Symbol, Side: side, Held: held})
	lg.Info().Msg("position closed on timeout")
}

func (l *Loop) transitionOpen(ctx context.Context, side market.Side, at time.Time, price float64, cause string) {
	err := l.book.Open(ctx, side, at, price)
	if err != nil && !errors.Is(err, position.ErrPersist) {
		l.log.Error().Err(err).Str("side", string(side)).Msg("open transition rejected")
		return
	}
	if err != nil {
		l.log.Error().Err(err).Str("side", string(side)).Msg("state not persisted, kept in memory")
	}
	metrics.Transitions.WithLabelValues(l.cfg.Symbol, string(side), "OPEN", cause).Inc()
	metrics.SetOpen(l.cfg.Symbol, string(side), true)
}

func (l *Loop) transitionClosed(ctx context.Context, side market.Side, reason string) {
	err := l.book.Close(ctx, side)
	if err != nil && !errors.Is(err, position.ErrPersist) {
		l.log.Error().Err(err).Str("side", string(side)).Msg("close transition rejected")
		return
	}
	if err != nil {
		l.log.Error().Err(err).Str("side", string(side)).Msg("state not persisted, kept in memory")
	}
	metrics.Transitions.WithLabelValues(l.cfg.Symbol, string(side), "CLOSED", reason).Inc()
	metrics.SetOpen(l.cfg.Symbol, string(side), false)

	if err := l.jrnl.RecordClose(ctx, l.cfg.Symbol, side, l.now(), reason); err != nil {
		l.log.Warn().Err(err).Str("side", string(side)).Msg("journal close failed")
	}
}
