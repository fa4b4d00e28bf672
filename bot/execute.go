package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/hedger/broker"
	"github.com/rustyeddy/hedger/journal"
	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/metrics"
	"github.com/rustyeddy/hedger/notify"
	"github.com/rustyeddy/hedger/risk"
)

// order is a sized and quantized bracket.
type order struct {
	qty    decimal.Decimal
	tp, sl decimal.Decimal
}

// Execute sizes sig against the current balance and submits the bracket:
// market entry, then take-profit, then stop-loss. A failed entry changes
// nothing. A failed protective leg leaves the side OPEN and raises a
// critical alert; the failed leg is not retried.
func (l *Loop) Execute(ctx context.Context, sig market.Signal) error {
	side, ok := sig.Side()
	if !ok {
		return nil
	}

	balance, err := l.ex.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	if err := l.jrnl.RecordBalance(ctx, journal.BalanceSnapshot{Time: l.now().UTC(), Symbol: l.cfg.Symbol, Balance: balance}); err != nil {
		l.log.Warn().Err(err).Msg("journal balance failed")
	}

	o, err := l.size(sig, balance)
	if err != nil {
		return err
	}

	// Once the entry is sent the bracket must be completed even if
	// shutdown starts.
	bctx := context.WithoutCancel(ctx)
	lg := l.log.With().Str("side", string(side)).Logger()

	_, err = l.ex.SubmitMarketOrder(bctx, broker.MarketOrder{
		Symbol:        l.cfg.Symbol,
		Side:          side,
		Direction:     side.Entry(),
		Quantity:      o.qty,
		ClientOrderID: uuid.NewString(),
	})
	metrics.Orders.WithLabelValues(l.cfg.Symbol, string(side), "entry", metrics.Result(err)).Inc()
	if err != nil {
		return &EntryError{Symbol: l.cfg.Symbol, Side: side, Err: err}
	}
	openedAt := l.now()
	lg.Info().Str("qty", o.qty.String()).Msg("entry order accepted")

	tpErr := l.protect(bctx, side, broker.TakeProfit, o.tp)
	slErr := l.protect(bctx, side, broker.StopLoss, o.sl)
	protected := tpErr == nil && slErr == nil

	l.transitionOpen(bctx, side, openedAt, sig.EntryPrice, "order")

	if _, err := l.jrnl.RecordOpen(bctx, journal.Trade{
		Symbol:     l.cfg.Symbol,
		Side:       side,
		Quantity:   o.qty.String(),
		EntryPrice: sig.EntryPrice,
		StopLoss:   o.sl.InexactFloat64(),
		TakeProfit: o.tp.InexactFloat64(),
		OpenTime:   openedAt,
		Protected:  protected,
	}); err != nil {
		lg.Warn().Err(err).Msg("journal open failed")
	}

	if !protected {
		uerr := &UnprotectedError{Symbol: l.cfg.Symbol, Side: side, TakeProfit: tpErr, StopLoss: slErr}
		metrics.Unprotected.WithLabelValues(l.cfg.Symbol, string(side)).Inc()
		l.note.Notify(bctx, notify.Event{
			Kind:   notify.UnprotectedPosition,
			Symbol: l.cfg.Symbol,
			Side:   side,
			Err:    uerr.Unwrap().Error(),
		})
		return uerr
	}

	l.note.Notify(bctx, notify.Event{
		Kind:       notify.OrderOpened,
		Symbol:     l.cfg.Symbol,
		Side:       side,
		Quantity:   o.qty.String(),
		EntryPrice: decimal.NewFromFloat(sig.EntryPrice).String(),
		StopLoss:   o.sl.String(),
		TakeProfit: o.tp.String(),
	})
	lg.Info().Str("qty", o.qty.String()).Str("tp", o.tp.String()).Str("sl", o.sl.String()).Msg("position opened")
	return nil
}

func (l *Loop) size(sig market.Signal, balance float64) (order, error) {
	in := l.cfg.Risk
	in.Balance = balance
	in.EntryPrice = sig.EntryPrice
	in.StopPrice = sig.StopLoss

	res, err := risk.Calculate(in)
	if err != nil {
		return order{}, err
	}

	rules, err := l.rules.Rules(l.cfg.Symbol)
	if err != nil {
		return order{}, err
	}
	qty := rules.FloorQty(decimal.NewFromFloat(res.Quantity))
	if qty.Sign() <= 0 {
		return order{}, &risk.Rejection{Code: risk.NoQuantity, Msg: fmt.Sprintf("quantity %.8g rounds to %s", res.Quantity, qty)}
	}
	if rules.MinQty.Sign() > 0 && qty.LessThan(rules.MinQty) {
		return order{}, &risk.Rejection{Code: risk.BelowMinQty, Msg: fmt.Sprintf("quantity %s below minimum %s", qty, rules.MinQty)}
	}

	l.log.Debug().
		Float64("risk", res.RiskAmount).
		Float64("fee_risk", res.FeeRiskRatio).
		Str("qty", qty.String()).
		Msg("sized order")

	return order{
		qty: qty,
		tp:  rules.FloorPrice(decimal.NewFromFloat(sig.TakeProfit)),
		sl:  rules.FloorPrice(decimal.NewFromFloat(sig.StopLoss)),
	}, nil
}

func (l *Loop) protect(ctx context.Context, side market.Side, kind broker.StopKind, price decimal.Decimal) error {
	_, err := l.ex.SubmitStopOrder(ctx, broker.StopOrder{
		Symbol:        l.cfg.Symbol,
		Side:          side,
		Direction:     side.Exit(),
		Kind:          kind,
		TriggerPrice:  price,
		ClientOrderID: uuid.NewString(),
	})
	leg := "take_profit"
	if kind == broker.StopLoss {
		leg = "stop_loss"
	}
	metrics.Orders.WithLabelValues(l.cfg.Symbol, string(side), leg, metrics.Result(err)).Inc()
	if err != nil {
		l.log.Error().Err(err).Str("side", string(side)).Str("leg", leg).Str("price", price.String()).Msg("protective order failed")
	}
	return err
}

// handle logs the expected outcomes of Execute and passes through the
// ones that should abort the iteration.
func (l *Loop) handle(side market.Side, err error) error {
	if err == nil {
		return nil
	}

	var (
		rej   *risk.Rejection
		entry *EntryError
		unpro *UnprotectedError
	)
	switch {
	case errors.As(err, &rej):
		metrics.Rejections.WithLabelValues(l.cfg.Symbol, rej.Code).Inc()
		l.log.Warn().Str("side", string(side)).Str("code", rej.Code).Msg(rej.Msg)
		return nil
	case errors.As(err, &entry):
		l.log.Error().Err(entry.Err).Str("side", string(side)).Msg("entry order failed, no position opened")
		return nil
	case errors.As(err, &unpro):
		l.log.Error().Err(err).Str("side", string(side)).Bool("critical", true).Msg("position open without protection")
		return nil
	}
	return err
}
