// Package risk sizes bracket orders from a fixed fraction of the account
// balance and rejects setups that cannot be traded sensibly.
package risk

import (
	"fmt"
	"math"
)

const (
	// DefaultFeeRate is the assumed round-trip taker fee as a fraction of
	// notional.
	DefaultFeeRate = 0.001

	// DefaultMaxFeeRisk caps fee / stop-distance. Above it, fees eat too
	// much of the planned risk.
	DefaultMaxFeeRisk = 0.2
)

// Rejection codes.
const (
	NoBalance      = "NO_BALANCE"
	BadEntry       = "BAD_ENTRY"
	NoStopDistance = "NO_STOP_DISTANCE"
	FeeRiskTooHigh = "FEE_RISK_TOO_HIGH"
	NoQuantity     = "NO_QUANTITY"
	BelowMinQty    = "BELOW_MIN_QTY"
)

// Rejection explains why no order was attempted. It is an expected
// outcome, not a failure.
type Rejection struct {
	Code string
	Msg  string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("order rejected (%s): %s", r.Code, r.Msg)
}

func reject(code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Inputs to Calculate.
type Inputs struct {
	Balance    float64
	RiskPct    float64 // fraction of balance risked per trade, 0.01
	EntryPrice float64
	StopPrice  float64
	FeeRate    float64 // zero means DefaultFeeRate
	MaxFeeRisk float64 // zero means DefaultMaxFeeRisk
}

// Result of a successful sizing. Quantity is unrounded; the caller
// quantizes it with the instrument's precision rules.
type Result struct {
	RiskAmount   float64
	StopDistance float64
	FeeRiskRatio float64
	Quantity     float64
}

// Calculate sizes a position so that hitting the stop loses RiskPct of
// the balance.
func Calculate(in Inputs) (Result, error) {
	if math.IsNaN(in.Balance) || in.Balance <= 0 {
		return Result{}, reject(NoBalance, "balance %.8g is not positive", in.Balance)
	}

	feeRate := in.FeeRate
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	maxFeeRisk := in.MaxFeeRisk
	if maxFeeRisk == 0 {
		maxFeeRisk = DefaultMaxFeeRisk
	}

	r := Result{RiskAmount: in.Balance * in.RiskPct}

	if math.IsNaN(in.EntryPrice) || in.EntryPrice <= 0 {
		return r, reject(BadEntry, "entry price %.8g is not positive", in.EntryPrice)
	}

	r.StopDistance = math.Abs(in.EntryPrice - in.StopPrice)
	if r.StopDistance == 0 {
		return r, reject(NoStopDistance, "entry %.8g stop %.8g", in.EntryPrice, in.StopPrice)
	}

	r.FeeRiskRatio = feeRate / (r.StopDistance / in.EntryPrice)
	if r.FeeRiskRatio > maxFeeRisk {
		return r, reject(FeeRiskTooHigh, "fee/risk %.4f exceeds %.4f", r.FeeRiskRatio, maxFeeRisk)
	}

	r.Quantity = r.RiskAmount / r.StopDistance
	if r.Quantity <= 0 {
		return r, reject(NoQuantity, "quantity %.8g is not positive", r.Quantity)
	}
	return r, nil
}
