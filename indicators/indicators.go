// Package indicators provides technical analysis series used by the signal
// generators. Every function returns a series aligned with its input;
// positions before the warmup period hold NaN.
package indicators

import (
	"fmt"
	"math"
)

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// RSI is the Relative Strength Index with Wilder smoothing
// (alpha = 1/period). The first value is available at index period.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) <= period {
		return nil, fmt.Errorf("not enough closes: need %d, got %d", period+1, len(closes))
	}

	out := nanSeries(len(closes))
	alpha := 1.0 / float64(period)

	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain := math.Max(diff, 0)
		loss := math.Max(-diff, 0)

		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}

		if i < period {
			continue
		}
		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = 50
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out, nil
}

// ATR is the Average True Range. The first value is the mean of the first
// period true ranges and is available at index period-1; later values use
// Wilder smoothing.
func ATR(high, low, close []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	n := len(close)
	if len(high) != n || len(low) != n {
		return nil, fmt.Errorf("column length mismatch: high=%d low=%d close=%d", len(high), len(low), n)
	}
	if n < period {
		return nil, fmt.Errorf("not enough bars: need %d, got %d", period, n)
	}

	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		tr[i] = high[i] - low[i]
		if i > 0 {
			tr[i] = trueRange(high[i], low[i], close[i-1])
		}
	}

	out := nanSeries(n)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period-1] = atr

	for i := period; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out, nil
}

func trueRange(high, low, prevClose float64) float64 {
	highLow := high - low
	highClose := math.Abs(high - prevClose)
	lowClose := math.Abs(low - prevClose)

	return math.Max(highLow, math.Max(highClose, lowClose))
}

// EMA is the exponential moving average with alpha = 2/(period+1), seeded
// with the first close. The first value is reported at index period-1.
func EMA(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return nil, fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}

	out := nanSeries(len(closes))
	alpha := 2.0 / float64(period+1)
	ema := closes[0]
	for i, c := range closes {
		if i > 0 {
			ema = alpha*c + (1-alpha)*ema
		}
		if i >= period-1 {
			out[i] = ema
		}
	}
	return out, nil
}

// DMI holds the Wilder directional movement series.
type DMI struct {
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64
}

// ADX computes the Average Directional Index with Wilder smoothing. DI
// values start at index period, ADX (the mean of the first period DX
// values, then smoothed) at index 2*period-1.
func ADX(high, low, close []float64, period int) (DMI, error) {
	if period <= 0 {
		return DMI{}, fmt.Errorf("period must be positive, got %d", period)
	}
	n := len(close)
	if len(high) != n || len(low) != n {
		return DMI{}, fmt.Errorf("column length mismatch: high=%d low=%d close=%d", len(high), len(low), n)
	}
	if n < 2*period {
		return DMI{}, fmt.Errorf("not enough bars: need %d, got %d", 2*period, n)
	}

	d := DMI{PlusDI: nanSeries(n), MinusDI: nanSeries(n), ADX: nanSeries(n)}
	pf := float64(period)

	var smTR, smPlus, smMinus, dxSum, adx float64
	for i := 1; i < n; i++ {
		tr := trueRange(high[i], low[i], close[i-1])
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]

		var plusDM, minusDM float64
		if up > down && up > 0 {
			plusDM = up
		}
		if down > up && down > 0 {
			minusDM = down
		}

		if i <= period {
			smTR += tr
			smPlus += plusDM
			smMinus += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/pf + tr
			smPlus = smPlus - smPlus/pf + plusDM
			smMinus = smMinus - smMinus/pf + minusDM
		}

		plusDI, minusDI := directional(smPlus, smMinus, smTR)
		d.PlusDI[i], d.MinusDI[i] = plusDI, minusDI
		dx := directionalIndex(plusDI, minusDI)

		switch {
		case i < 2*period-1:
			dxSum += dx
		case i == 2*period-1:
			adx = (dxSum + dx) / pf
			d.ADX[i] = adx
		default:
			adx = (adx*(pf-1) + dx) / pf
			d.ADX[i] = adx
		}
	}
	return d, nil
}

func directional(smPlus, smMinus, smTR float64) (plusDI, minusDI float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100 * smPlus / smTR, 100 * smMinus / smTR
}

func directionalIndex(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}
