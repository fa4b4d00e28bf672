package strategy

import (
	"fmt"

	"github.com/rustyeddy/hedger/indicators"
	"github.com/rustyeddy/hedger/market"
)

const (
	FastEMAWindow = "fast_EMA_window"
	SlowEMAWindow = "slow_EMA_window"
	ATRWindow     = "atr_window"    // optional, default 14
	ADXWindow     = "adx_window"    // optional, 0 disables the trend filter
	ADXThreshold  = "adx_threshold" // optional, default 20
)

var emaCrossParams = []string{FastEMAWindow, SlowEMAWindow, ATRMultiplier, TPSLRatio}

func init() {
	Register(NewEMACross, "ema-cross", "EMACross", "ema_cross")
}

type emaCrossSide struct {
	enabled   bool
	fast      int
	slow      int
	atrWindow int
	atrMult   float64
	tpSL      float64
	adxWindow int
	adxMin    float64
}

func parseEMACrossSide(sc SideConfig) (emaCrossSide, error) {
	if !sc.Enabled {
		return emaCrossSide{}, nil
	}
	if err := sc.Params.Require(emaCrossParams...); err != nil {
		return emaCrossSide{}, err
	}
	s := emaCrossSide{
		enabled:   true,
		fast:      sc.Params.Int(FastEMAWindow),
		slow:      sc.Params.Int(SlowEMAWindow),
		atrWindow: 14,
		atrMult:   sc.Params[ATRMultiplier],
		tpSL:      sc.Params[TPSLRatio],
		adxWindow: sc.Params.Int(ADXWindow),
		adxMin:    20,
	}
	if v, ok := sc.Params[ATRWindow]; ok {
		s.atrWindow = int(v)
	}
	if v, ok := sc.Params[ADXThreshold]; ok {
		s.adxMin = v
	}
	if s.fast <= 0 || s.fast >= s.slow {
		return emaCrossSide{}, fmt.Errorf("EMA windows need 0 < fast < slow (fast=%d slow=%d)", s.fast, s.slow)
	}
	if s.atrWindow <= 0 || s.adxWindow < 0 {
		return emaCrossSide{}, fmt.Errorf("atr_window must be positive and adx_window not negative")
	}
	if s.atrMult <= 0 || s.tpSL <= 0 {
		return emaCrossSide{}, fmt.Errorf("atr_multiplier and tp_sl_ratio must be positive")
	}
	return s, nil
}

// EMACross fires on the bar where the fast EMA crosses the slow one: LONG
// on a cross up, SHORT on a cross down. With adx_window set the cross only
// counts when ADX is at least adx_threshold and the directional indexes
// agree with it.
type EMACross struct {
	symbol string
	long   emaCrossSide
	short  emaCrossSide
}

func NewEMACross(symbol string, long, short SideConfig) (Generator, error) {
	l, err := parseEMACrossSide(long)
	if err != nil {
		return nil, fmt.Errorf("long: %w", err)
	}
	s, err := parseEMACrossSide(short)
	if err != nil {
		return nil, fmt.Errorf("short: %w", err)
	}
	return &EMACross{symbol: symbol, long: l, short: s}, nil
}

func (g *EMACross) Name() string { return "ema-cross" }

func (g *EMACross) Generate(f market.Frame) market.Signal {
	if g.long.enabled {
		if sig, ok := g.evaluate(f, g.long, market.GoLong); ok {
			return sig
		}
	}
	if g.short.enabled {
		if sig, ok := g.evaluate(f, g.short, market.GoShort); ok {
			return sig
		}
	}
	return market.NoSignal
}

func (g *EMACross) evaluate(f market.Frame, p emaCrossSide, kind market.SignalKind) (market.Signal, bool) {
	n := f.Len()
	if n < 2 {
		return market.NoSignal, false
	}

	fast, err := indicators.EMA(f.Close, p.fast)
	if err != nil {
		return market.NoSignal, false
	}
	slow, err := indicators.EMA(f.Close, p.slow)
	if err != nil {
		return market.NoSignal, false
	}
	atr, err := indicators.ATR(f.High, f.Low, f.Close, p.atrWindow)
	if err != nil {
		return market.NoSignal, false
	}
	if anyNaN(fast[n-2], slow[n-2], atr[n-1]) {
		return market.NoSignal, false
	}

	prev := fast[n-2] - slow[n-2]
	curr := fast[n-1] - slow[n-1]
	up := prev <= 0 && curr > 0
	down := prev >= 0 && curr < 0
	if (kind == market.GoLong && !up) || (kind == market.GoShort && !down) {
		return market.NoSignal, false
	}

	if p.adxWindow > 0 {
		d, err := indicators.ADX(f.High, f.Low, f.Close, p.adxWindow)
		if err != nil {
			return market.NoSignal, false
		}
		adx, plus, minus := d.ADX[n-1], d.PlusDI[n-1], d.MinusDI[n-1]
		if anyNaN(adx) || adx < p.adxMin {
			return market.NoSignal, false
		}
		if (kind == market.GoLong && plus <= minus) || (kind == market.GoShort && minus <= plus) {
			return market.NoSignal, false
		}
	}

	close := f.Close[n-1]
	dist := atr[n-1] * p.atrMult
	if kind == market.GoLong {
		return market.Signal{Kind: kind, EntryPrice: close, StopLoss: close - dist, TakeProfit: close + p.tpSL*dist}, true
	}
	return market.Signal{Kind: kind, EntryPrice: close, StopLoss: close + dist, TakeProfit: close - p.tpSL*dist}, true
}
