package calculator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

func barsFromCloses(closes []float64) []model.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = model.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     open,
			High:     c * 1.002,
			Low:      c * 0.998,
			Close:    c,
			Volume:   1000,
		}
	}
	return bars
}

func TestRollingMeanAndStd(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := RollingMean(vals, 4)
	assert.True(t, math.IsNaN(mean[2]))
	assert.InDelta(t, 3.5, mean[3], 1e-12)
	assert.InDelta(t, 6.5, mean[7], 1e-12)

	std := RollingStd(vals, 8)
	// sample std of the whole set: sqrt(32/7)
	assert.InDelta(t, math.Sqrt(32.0/7.0), std[7], 1e-12)
	assert.True(t, math.IsNaN(std[6]))
}

func TestEMA_NoBiasCorrection(t *testing.T) {
	vals := []float64{10, 11, 12}
	ema := EMA(vals, 3) // alpha = 0.5
	assert.InDelta(t, 10.0, ema[0], 1e-12)
	assert.InDelta(t, 10.5, ema[1], 1e-12)
	assert.InDelta(t, 11.25, ema[2], 1e-12)
}

func TestRSI_Bounded(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	closes := make([]float64, 500)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * (1 + (r.Float64()-0.5)*0.04)
	}
	for i, v := range RSI(closes, 14) {
		if math.IsNaN(v) {
			assert.Less(t, i, 13)
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestRSI_BalancedIsFifty(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}
	rsi := RSI(closes, 14)
	assert.InDelta(t, 50.0, rsi[len(rsi)-1], 1e-9)
}

func TestRSI_Extremes(t *testing.T) {
	up := make([]float64, 20)
	flat := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
		flat[i] = 100
	}
	assert.Equal(t, 100.0, RSI(up, 14)[19])
	assert.Equal(t, 50.0, RSI(flat, 14)[19])
	assert.True(t, math.IsNaN(RSI(up, 14)[12]))
	assert.False(t, math.IsNaN(RSI(up, 14)[13]))
}

func TestTrueRangeAndATR(t *testing.T) {
	bars := []model.Candle{
		{High: 10, Low: 9, Close: 9.5},
		{High: 12, Low: 11, Close: 11.5}, // gap up: |12-9.5| = 2.5
		{High: 11, Low: 8, Close: 9},     // range 3
	}
	tr := TrueRange(bars)
	assert.Equal(t, []float64{1, 2.5, 3.5}, tr)
	atr := ATR(bars, 2)
	assert.InDelta(t, 3.0, atr[2], 1e-12)
}

func TestVWAP_Cumulative(t *testing.T) {
	bars := []model.Candle{
		{High: 3, Low: 3, Close: 3, Volume: 1},
		{High: 6, Low: 6, Close: 6, Volume: 2},
	}
	vwap := VWAP(bars)
	assert.InDelta(t, 3.0, vwap[0], 1e-12)
	assert.InDelta(t, 5.0, vwap[1], 1e-12)
}

func TestMomentumAndROC(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 110, 111, 112, 113, 114, 115, 120}
	mom, pct := Momentum(closes, MomentumLag)
	assert.True(t, math.IsNaN(mom[3]))
	assert.InDelta(t, 10.0, mom[4], 1e-12)
	assert.InDelta(t, 10.0, pct[4], 1e-12)

	roc := RateOfChange(closes, ROCPeriod)
	assert.InDelta(t, 20.0, roc[10], 1e-12)
}

func TestEnrich_WarmupAndLatest(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	series, err := Enrich("BTCUSDT", barsFromCloses(closes), DefaultParams)
	require.NoError(t, err)
	require.Equal(t, 100, series.Len())

	first := series.Indicators[0]
	assert.False(t, first.Ready())
	assert.True(t, math.IsNaN(first.RSI))

	_, latest := series.At(0)
	_, prev := series.At(1)
	assert.True(t, latest.Ready())
	assert.True(t, prev.Ready())
	assert.Greater(t, latest.EMAShort, latest.EMALong)
	assert.InDelta(t, 1.0, latest.VolumeRatio, 1e-12)
	assert.Equal(t, 100.0, latest.RSI)
}

func TestEnrich_Errors(t *testing.T) {
	_, err := Enrich("X", barsFromCloses([]float64{1, 2, 3}), DefaultParams)
	assert.Error(t, err)
	_, err = Enrich("X", barsFromCloses(make([]float64, 100)), Params{})
	assert.Error(t, err)
}
