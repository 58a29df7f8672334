package model

import "math"

// IndicatorSnapshot holds the indicator values attached to one candle.
// Values whose lookback window is not yet populated are NaN.
type IndicatorSnapshot struct {
	RSI             float64 `json:"rsi"`
	SMAShort        float64 `json:"sma_short"`
	SMALong         float64 `json:"sma_long"`
	EMAShort        float64 `json:"ema_short"`
	EMALong         float64 `json:"ema_long"`
	BBUpper         float64 `json:"bb_upper"`
	BBMiddle        float64 `json:"bb_middle"`
	BBLower         float64 `json:"bb_lower"`
	VolumeRatio     float64 `json:"volume_ratio"`
	VWAP            float64 `json:"vwap"`
	ATR             float64 `json:"atr"`
	Momentum        float64 `json:"momentum"`
	MomentumPct     float64 `json:"momentum_pct"`
	Volatility      float64 `json:"volatility"`       // rolling std/mean of close, percent
	RangeVolatility float64 `json:"range_volatility"` // (high-low)/low of the bar
	PriceROC        float64 `json:"price_roc"`
}

// Ready reports whether every indicator value is defined.
func (s IndicatorSnapshot) Ready() bool {
	for _, v := range []float64{
		s.RSI, s.SMAShort, s.SMALong, s.EMAShort, s.EMALong,
		s.BBUpper, s.BBMiddle, s.BBLower, s.VolumeRatio, s.VWAP,
		s.ATR, s.Momentum, s.MomentumPct, s.Volatility, s.RangeVolatility, s.PriceROC,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Series is a candle sequence with per-position indicators (most recent last).
type Series struct {
	Symbol     string
	Candles    []Candle
	Indicators []IndicatorSnapshot
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.Candles) }

// At returns the candle and indicators at offset from the end (0 is latest).
func (s *Series) At(offset int) (Candle, IndicatorSnapshot) {
	i := len(s.Candles) - 1 - offset
	return s.Candles[i], s.Indicators[i]
}
