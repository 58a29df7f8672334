package calculator

import (
	"errors"

	"SignalSentinel/internal/model"
)

// Fixed lookback windows of the secondary indicators.
const (
	BollingerPeriod  = 20
	BollingerK       = 2.0
	VolumePeriod     = 20
	ATRPeriod        = 14
	MomentumLag      = 4
	ROCPeriod        = 10
	VolatilityPeriod = 20
)

// Params configures the primary indicator windows.
type Params struct {
	RSIPeriod   int
	ShortPeriod int
	LongPeriod  int
}

// DefaultParams mirrors the stock configuration.
var DefaultParams = Params{RSIPeriod: 14, ShortPeriod: 5, LongPeriod: 20}

// MinBars is the smallest series Enrich accepts for these params.
func (p Params) MinBars() int {
	n := p.RSIPeriod
	for _, w := range []int{p.LongPeriod, p.ShortPeriod, BollingerPeriod, VolumePeriod, ATRPeriod, ROCPeriod} {
		if w > n {
			n = w
		}
	}
	return n + 1
}

// Enrich computes every indicator for every position of bars.
func Enrich(symbol string, bars []model.Candle, p Params) (*model.Series, error) {
	if p.RSIPeriod <= 0 || p.ShortPeriod <= 0 || p.LongPeriod <= 0 {
		return nil, errors.New("indicator periods must be positive")
	}
	if len(bars) < p.MinBars() {
		return nil, errors.New("not enough bars for indicator calculation")
	}

	closes := extractCloses(bars)
	volumes := extractVolumes(bars)

	rsi := RSI(closes, p.RSIPeriod)
	smaShort := RollingMean(closes, p.ShortPeriod)
	smaLong := RollingMean(closes, p.LongPeriod)
	emaShort := EMA(closes, p.ShortPeriod)
	emaLong := EMA(closes, p.LongPeriod)
	bbUpper, bbMiddle, bbLower := Bollinger(closes, BollingerPeriod, BollingerK)
	volRatio := Ratio(volumes, RollingMean(volumes, VolumePeriod))
	vwap := VWAP(bars)
	atr := ATR(bars, ATRPeriod)
	mom, momPct := Momentum(closes, MomentumLag)
	volatility := RollingVolatility(closes, VolatilityPeriod)
	rangeVol := RangeVolatility(bars)
	roc := RateOfChange(closes, ROCPeriod)

	snaps := make([]model.IndicatorSnapshot, len(bars))
	for i := range bars {
		snaps[i] = model.IndicatorSnapshot{
			RSI:             rsi[i],
			SMAShort:        smaShort[i],
			SMALong:         smaLong[i],
			EMAShort:        emaShort[i],
			EMALong:         emaLong[i],
			BBUpper:         bbUpper[i],
			BBMiddle:        bbMiddle[i],
			BBLower:         bbLower[i],
			VolumeRatio:     volRatio[i],
			VWAP:            vwap[i],
			ATR:             atr[i],
			Momentum:        mom[i],
			MomentumPct:     momPct[i],
			Volatility:      volatility[i],
			RangeVolatility: rangeVol[i],
			PriceROC:        roc[i],
		}
	}

	return &model.Series{Symbol: symbol, Candles: bars, Indicators: snaps}, nil
}
