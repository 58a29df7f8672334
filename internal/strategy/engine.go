package strategy

import (
	"math"

	"SignalSentinel/internal/model"
)

// Filter thresholds; both bounds are inclusive.
const (
	MinSignalStrength       = 0.65
	MinPreSignalProbability = 0.4
)

// Signal reasons.
const (
	ReasonRSIOversoldBounce   = "RSI bounce from oversold"
	ReasonRSINearOversold     = "RSI approaching oversold"
	ReasonBBLowerBounce       = "Bounce from lower Bollinger band"
	ReasonNearBBLower         = "Price near lower Bollinger band"
	ReasonRSIOverboughtBounce = "RSI bounce from overbought"
	ReasonRSINearOverbought   = "RSI approaching overbought"
	ReasonBBUpperBounce       = "Bounce from upper Bollinger band"
	ReasonNearBBUpper         = "Price near upper Bollinger band"
)

// Detection is the output of Detect.
type Detection struct {
	Signals    []model.Signal
	PreSignals []model.PreSignal
}

// Detect finds entry points on the last two bars of series. It returns
// nothing when the context is not suitable for trading or the bars are not
// ready. Pre-signals are boosted, then both sets are filtered.
func Detect(series *model.Series, mc model.MarketContext) Detection {
	var d Detection
	if !mc.SuitableForTrading || series == nil || series.Len() < 3 {
		return d
	}
	bar, ind := series.At(0)
	prevBar, prev := series.At(1)
	if !ind.Ready() || !prev.Ready() {
		return d
	}

	switch mc.Trend {
	case model.TrendUp:
		d = detectLong(series, bar, ind, prevBar, prev)
	case model.TrendDown:
		d = detectShort(series, bar, ind, prevBar, prev)
	default:
		return d
	}

	for i := range d.PreSignals {
		d.PreSignals[i].Probability = Boost(d.PreSignals[i], mc)
	}
	d.Signals = FilterSignals(d.Signals)
	d.PreSignals = FilterPreSignals(d.PreSignals)
	return d
}

func detectLong(series *model.Series, bar model.Candle, ind model.IndicatorSnapshot, prevBar model.Candle, prev model.IndicatorSnapshot) Detection {
	var d Detection
	entry := bar.Close

	if ind.RSI > 30 && prev.RSI <= 30 {
		stop := lowestLow(series, 3) * 0.998
		d.Signals = append(d.Signals, model.Signal{
			Type:       model.SignalLong,
			Strength:   0.8,
			Reason:     ReasonRSIOversoldBounce,
			Entry:      entry,
			StopLoss:   stop,
			TakeProfit: entry + 2*(entry-stop),
			Indicators: ind,
		})
	}

	if ind.RSI > 32 && ind.RSI < 45 {
		d.PreSignals = append(d.PreSignals, model.PreSignal{
			Type:         model.PreSignalLong,
			Reason:       ReasonRSINearOversold,
			CurrentPrice: entry,
			Probability:  0.4 + (45-ind.RSI)/13*0.3,
			Indicators:   ind,
		})
	}

	crossed := bar.Close > ind.BBLower && prevBar.Close <= prev.BBLower
	if crossed && ind.VolumeRatio > 1.1 {
		d.Signals = append(d.Signals, model.Signal{
			Type:       model.SignalLong,
			Strength:   0.75,
			Reason:     ReasonBBLowerBounce,
			Entry:      entry,
			StopLoss:   ind.BBLower * 0.99,
			TakeProfit: ind.BBMiddle,
			Indicators: ind,
		})
	}

	if !crossed && ind.BBLower > 0 {
		distance := (bar.Close - ind.BBLower) / ind.BBLower * 100
		if distance >= 0 && distance < 3 {
			d.PreSignals = append(d.PreSignals, model.PreSignal{
				Type:         model.PreSignalLong,
				Reason:       ReasonNearBBLower,
				CurrentPrice: entry,
				Probability:  bandProbability(distance, ind.VolumeRatio),
				Indicators:   ind,
			})
		}
	}
	return d
}

func detectShort(series *model.Series, bar model.Candle, ind model.IndicatorSnapshot, prevBar model.Candle, prev model.IndicatorSnapshot) Detection {
	var d Detection
	entry := bar.Close

	if ind.RSI < 70 && prev.RSI >= 70 {
		stop := highestHigh(series, 3) * 1.002
		d.Signals = append(d.Signals, model.Signal{
			Type:       model.SignalShort,
			Strength:   0.8,
			Reason:     ReasonRSIOverboughtBounce,
			Entry:      entry,
			StopLoss:   stop,
			TakeProfit: entry - 2*(stop-entry),
			Indicators: ind,
		})
	}

	if ind.RSI > 55 && ind.RSI < 68 {
		d.PreSignals = append(d.PreSignals, model.PreSignal{
			Type:         model.PreSignalShort,
			Reason:       ReasonRSINearOverbought,
			CurrentPrice: entry,
			Probability:  0.4 + (ind.RSI-55)/13*0.3,
			Indicators:   ind,
		})
	}

	crossed := bar.Close < ind.BBUpper && prevBar.Close >= prev.BBUpper
	if crossed && ind.VolumeRatio > 1.1 {
		d.Signals = append(d.Signals, model.Signal{
			Type:       model.SignalShort,
			Strength:   0.75,
			Reason:     ReasonBBUpperBounce,
			Entry:      entry,
			StopLoss:   ind.BBUpper * 1.01,
			TakeProfit: ind.BBMiddle,
			Indicators: ind,
		})
	}

	if !crossed && ind.BBUpper > 0 {
		distance := (ind.BBUpper - bar.Close) / ind.BBUpper * 100
		if distance >= 0 && distance < 3 {
			d.PreSignals = append(d.PreSignals, model.PreSignal{
				Type:         model.PreSignalShort,
				Reason:       ReasonNearBBUpper,
				CurrentPrice: entry,
				Probability:  bandProbability(distance, ind.VolumeRatio),
				Indicators:   ind,
			})
		}
	}
	return d
}

// bandProbability ramps from 0.7 at the band to 0.4 at 3% away.
func bandProbability(distancePct, volumeRatio float64) float64 {
	p := 0.4 + (1-distancePct/3)*0.3
	if volumeRatio > 1.1 {
		p *= 1.2
	}
	return p
}

func lowestLow(series *model.Series, n int) float64 {
	low := math.Inf(1)
	for i := 0; i < n && i < series.Len(); i++ {
		c, _ := series.At(i)
		low = math.Min(low, c.Low)
	}
	return low
}

func highestHigh(series *model.Series, n int) float64 {
	high := math.Inf(-1)
	for i := 0; i < n && i < series.Len(); i++ {
		c, _ := series.At(i)
		high = math.Max(high, c.High)
	}
	return high
}

// FilterSignals keeps signals with strength >= MinSignalStrength.
func FilterSignals(signals []model.Signal) []model.Signal {
	kept := signals[:0]
	for _, s := range signals {
		if s.Strength >= MinSignalStrength {
			kept = append(kept, s)
		}
	}
	return kept
}

// FilterPreSignals keeps pre-signals with probability >= MinPreSignalProbability
// and clamps the survivors to 1.
func FilterPreSignals(pre []model.PreSignal) []model.PreSignal {
	kept := pre[:0]
	for _, p := range pre {
		if p.Probability >= MinPreSignalProbability {
			p.Probability = math.Min(1, p.Probability)
			kept = append(kept, p)
		}
	}
	return kept
}
