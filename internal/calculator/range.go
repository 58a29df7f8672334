package calculator

import (
	"math"

	"SignalSentinel/internal/model"
)

// Bollinger returns the upper, middle and lower bands: SMA(period) +/- k*std.
func Bollinger(closes []float64, period int, k float64) (upper, middle, lower []float64) {
	middle = RollingMean(closes, period)
	std := RollingStd(closes, period)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))
	for i := range closes {
		upper[i] = middle[i] + k*std[i]
		lower[i] = middle[i] - k*std[i]
	}
	return upper, middle, lower
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRange(bars []model.Candle) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		tr[i] = b.High - b.Low
		if i == 0 {
			continue
		}
		prev := bars[i-1].Close
		tr[i] = math.Max(tr[i], math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
	}
	return tr
}

// ATR is the rolling mean of the true range.
func ATR(bars []model.Candle, period int) []float64 {
	return RollingMean(TrueRange(bars), period)
}

// VWAP is the cumulative volume-weighted typical price from the series start.
func VWAP(bars []model.Candle) []float64 {
	out := nanSlice(len(bars))
	var pv, vol float64
	for i, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * b.Volume
		vol += b.Volume
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// Momentum returns close-close[lag] and the same change in percent.
func Momentum(closes []float64, lag int) (abs, pct []float64) {
	abs = nanSlice(len(closes))
	pct = nanSlice(len(closes))
	for i := lag; i < len(closes); i++ {
		abs[i] = closes[i] - closes[i-lag]
		if closes[i-lag] != 0 {
			pct[i] = abs[i] / closes[i-lag] * 100
		}
	}
	return abs, pct
}

// RateOfChange returns (close-close[period])/close[period]*100.
func RateOfChange(closes []float64, period int) []float64 {
	_, pct := Momentum(closes, period)
	return pct
}

// RollingVolatility returns rolling std / rolling mean of close in percent.
func RollingVolatility(closes []float64, period int) []float64 {
	mean := RollingMean(closes, period)
	std := RollingStd(closes, period)
	out := nanSlice(len(closes))
	for i := range closes {
		if mean[i] != 0 {
			out[i] = std[i] / mean[i] * 100
		}
	}
	return out
}

// RangeVolatility returns (high-low)/low per bar.
func RangeVolatility(bars []model.Candle) []float64 {
	out := nanSlice(len(bars))
	for i, b := range bars {
		if b.Low > 0 {
			out[i] = (b.High - b.Low) / b.Low
		}
	}
	return out
}

// Ratio divides a by b element-wise; zero or NaN denominators give NaN.
func Ratio(a, b []float64) []float64 {
	out := nanSlice(len(a))
	for i := range a {
		if b[i] != 0 && !math.IsNaN(b[i]) {
			out[i] = a[i] / b[i]
		}
	}
	return out
}
