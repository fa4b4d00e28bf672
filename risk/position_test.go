package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSizing(t *testing.T) {
	res, err := Calculate(Inputs{
		Balance:    10000,
		RiskPct:    0.01,
		EntryPrice: 100,
		StopPrice:  98,
	})
	require.NoError(t, err)

	assert.InDelta(t, 100.0, res.RiskAmount, 1e-9)
	assert.InDelta(t, 2.0, res.StopDistance, 1e-9)
	assert.InDelta(t, 50.0, res.Quantity, 1e-9)
	assert.InDelta(t, 0.05, res.FeeRiskRatio, 1e-9)
}

func TestCalculateShortSide(t *testing.T) {
	res, err := Calculate(Inputs{Balance: 5000, RiskPct: 0.02, EntryPrice: 50, StopPrice: 52})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res.Quantity, 1e-9)
}

func TestCalculateRejections(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		code string
	}{
		{"zero balance", Inputs{Balance: 0, RiskPct: 0.01, EntryPrice: 100, StopPrice: 98}, NoBalance},
		{"negative balance", Inputs{Balance: -5, RiskPct: 0.01, EntryPrice: 100, StopPrice: 98}, NoBalance},
		{"zero entry", Inputs{Balance: 1000, RiskPct: 0.01, EntryPrice: 0, StopPrice: 98}, BadEntry},
		{"negative entry", Inputs{Balance: 1000, RiskPct: 0.01, EntryPrice: -100, StopPrice: -98}, BadEntry},
		{"zero stop distance", Inputs{Balance: 1000, RiskPct: 0.01, EntryPrice: 100, StopPrice: 100}, NoStopDistance},
		{"fee dominates", Inputs{Balance: 10000, RiskPct: 0.01, EntryPrice: 100, StopPrice: 99.95, FeeRate: 0.001}, FeeRiskTooHigh},
		{"zero risk", Inputs{Balance: 1000, RiskPct: 0, EntryPrice: 100, StopPrice: 90}, NoQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.in)
			require.Error(t, err)

			var rej *Rejection
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, tt.code, rej.Code)
		})
	}
}

func TestFeeRiskRatioValue(t *testing.T) {
	res, err := Calculate(Inputs{Balance: 10000, RiskPct: 0.01, EntryPrice: 100, StopPrice: 99.95})
	require.Error(t, err)
	assert.InDelta(t, 2.0, res.FeeRiskRatio, 1e-6)
	assert.Contains(t, err.Error(), FeeRiskTooHigh)
}

func TestFeeRiskCeilingIsConfigurable(t *testing.T) {
	_, err := Calculate(Inputs{Balance: 10000, RiskPct: 0.01, EntryPrice: 100, StopPrice: 99.95, MaxFeeRisk: 3})
	assert.NoError(t, err)
}
