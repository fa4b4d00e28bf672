package strategy

import (
	"fmt"
	"math"

	"github.com/rustyeddy/hedger/indicators"
	"github.com/rustyeddy/hedger/market"
)

// Parameter names, kept compatible with existing config files.
const (
	FastRSIWindow    = "fast_RSI_window"
	SlowRSIWindow    = "slow_RSI_window"
	FastRSIThreshold = "fast_RSI_threshold"
	SlowRSIThreshold = "slow_RSI_threshold"
	ATRMultiplier    = "atr_multiplier"
	TPSLRatio        = "tp_sl_ratio"
)

var twoRSIParams = []string{FastRSIWindow, SlowRSIWindow, FastRSIThreshold, SlowRSIThreshold, ATRMultiplier, TPSLRatio}

func init() {
	Register(NewTwoRSI, "standard-two-rsi", "StandardTwoRSI", "standard_two_rsi")
}

type twoRSISide struct {
	enabled    bool
	fastWindow int
	slowWindow int
	fastThresh float64
	slowThresh float64
	atrMult    float64
	tpSL       float64
}

func parseTwoRSISide(sc SideConfig) (twoRSISide, error) {
	if !sc.Enabled {
		return twoRSISide{}, nil
	}
	if err := sc.Params.Require(twoRSIParams...); err != nil {
		return twoRSISide{}, err
	}
	s := twoRSISide{
		enabled:    true,
		fastWindow: sc.Params.Int(FastRSIWindow),
		slowWindow: sc.Params.Int(SlowRSIWindow),
		fastThresh: sc.Params[FastRSIThreshold],
		slowThresh: sc.Params[SlowRSIThreshold],
		atrMult:    sc.Params[ATRMultiplier],
		tpSL:       sc.Params[TPSLRatio],
	}
	if s.fastWindow <= 0 || s.slowWindow <= 0 {
		return twoRSISide{}, fmt.Errorf("RSI windows must be positive (fast=%d slow=%d)", s.fastWindow, s.slowWindow)
	}
	if s.atrMult <= 0 || s.tpSL <= 0 {
		return twoRSISide{}, fmt.Errorf("atr_multiplier and tp_sl_ratio must be positive")
	}
	return s, nil
}

// TwoRSI fires LONG when the fast RSI crosses up through its threshold
// while the slow RSI sits above its own, and SHORT on the mirror image.
// Stops are placed an ATR multiple away and targets at a fixed multiple of
// the stop distance.
type TwoRSI struct {
	symbol string
	long   twoRSISide
	short  twoRSISide
}

func NewTwoRSI(symbol string, long, short SideConfig) (Generator, error) {
	l, err := parseTwoRSISide(long)
	if err != nil {
		return nil, fmt.Errorf("long: %w", err)
	}
	s, err := parseTwoRSISide(short)
	if err != nil {
		return nil, fmt.Errorf("short: %w", err)
	}
	return &TwoRSI{symbol: symbol, long: l, short: s}, nil
}

func (g *TwoRSI) Name() string { return "standard-two-rsi" }

func (g *TwoRSI) Generate(f market.Frame) market.Signal {
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

func (g *TwoRSI) evaluate(f market.Frame, p twoRSISide, kind market.SignalKind) (market.Signal, bool) {
	n := f.Len()
	if n < 2 {
		return market.NoSignal, false
	}

	fast, err := indicators.RSI(f.Close, p.fastWindow)
	if err != nil {
		return market.NoSignal, false
	}
	slow, err := indicators.RSI(f.Close, p.slowWindow)
	if err != nil {
		return market.NoSignal, false
	}
	atr, err := indicators.ATR(f.High, f.Low, f.Close, p.fastWindow)
	if err != nil {
		return market.NoSignal, false
	}

	fastPrev, fastCurr, slowCurr, atrVal := fast[n-2], fast[n-1], slow[n-1], atr[n-1]
	if anyNaN(fastPrev, fastCurr, slowCurr, atrVal) {
		return market.NoSignal, false
	}

	close := f.Close[n-1]
	switch kind {
	case market.GoLong:
		if fastPrev < p.fastThresh && fastCurr > p.fastThresh && slowCurr > p.slowThresh {
			stop := close - atrVal*p.atrMult
			return market.Signal{
				Kind:       market.GoLong,
				EntryPrice: close,
				StopLoss:   stop,
				TakeProfit: close + p.tpSL*(close-stop),
			}, true
		}
	case market.GoShort:
		if fastPrev > p.fastThresh && fastCurr < p.fastThresh && slowCurr < p.slowThresh {
			stop := close + atrVal*p.atrMult
			return market.Signal{
				Kind:       market.GoShort,
				EntryPrice: close,
				StopLoss:   stop,
				TakeProfit: close - p.tpSL*(stop-close),
			}, true
		}
	}
	return market.NoSignal, false
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
