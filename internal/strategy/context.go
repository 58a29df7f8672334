package strategy

import (
	"errors"
	"math"

	"SignalSentinel/internal/model"
)

// ErrNotReady is returned when the latest bars still lack indicator values.
var ErrNotReady = errors.New("indicators not ready on latest bars")

// ContextConfig holds the classifier thresholds.
type ContextConfig struct {
	MinVolume         float64
	MinVolatility     float64
	MaxVolatility     float64
	StrictSuitability bool
}

// DefaultContextConfig mirrors the stock configuration.
var DefaultContextConfig = ContextConfig{
	MinVolume:     1000,
	MinVolatility: 0.001,
	MaxVolatility: 0.05,
}

// Classify derives the market regime from the latest bar of the series.
func Classify(series *model.Series, cfg ContextConfig) (model.MarketContext, error) {
	if series == nil || series.Len() == 0 {
		return model.MarketContext{}, ErrNotReady
	}
	bar, ind := series.At(0)
	if !ind.Ready() {
		return model.MarketContext{}, ErrNotReady
	}

	mc := model.MarketContext{
		Trend:      classifyTrend(bar, ind),
		Strength:   trendStrength(ind),
		Volatility: model.LevelNormal,
		Volume:     model.LevelNormal,
		Momentum:   classifyMomentum(ind.MomentumPct),
	}

	switch {
	case ind.RangeVolatility > cfg.MaxVolatility:
		mc.Volatility = model.LevelHigh
	case ind.RangeVolatility < cfg.MinVolatility:
		mc.Volatility = model.LevelLow
	}

	switch {
	case ind.VolumeRatio > 1.5:
		mc.Volume = model.LevelHigh
	case ind.VolumeRatio < 0.5:
		mc.Volume = model.LevelLow
	}

	mc.RiskLevel = riskLevel(mc, ind)

	suitable := mc.Trend != model.TrendUndefined &&
		bar.Volume >= 0.5*cfg.MinVolume &&
		mc.RiskLevel != model.LevelHigh
	if cfg.StrictSuitability {
		suitable = suitable && mc.Volatility == model.LevelNormal && mc.Volume != model.LevelLow
	}
	mc.SuitableForTrading = suitable

	return mc, nil
}

// classifyTrend is a three-vote ensemble split two ways: two or more votes
// is an uptrend, anything less a downtrend.
func classifyTrend(bar model.Candle, ind model.IndicatorSnapshot) model.Trend {
	score := 0
	if ind.EMAShort > ind.EMALong {
		score++
	}
	if bar.Close > ind.VWAP {
		score++
	}
	if bar.Close > ind.SMALong {
		score++
	}
	if score >= 2 {
		return model.TrendUp
	}
	return model.TrendDown
}

func trendStrength(ind model.IndicatorSnapshot) float64 {
	var emaGap float64
	if ind.EMALong != 0 {
		emaGap = math.Abs(ind.EMAShort-ind.EMALong) / ind.EMALong
	}
	s := 0.4*emaGap + 0.4*math.Abs(ind.MomentumPct) + 0.2*(ind.VolumeRatio-1)
	return math.Max(0, math.Min(1, s))
}

func classifyMomentum(pct float64) model.Momentum {
	switch {
	case pct > 1.5:
		return model.MomentumStrongPositive
	case pct > 0.5:
		return model.MomentumPositive
	case pct < -1.5:
		return model.MomentumStrongNegative
	case pct < -0.5:
		return model.MomentumNegative
	default:
		return model.MomentumNeutral
	}
}

func riskLevel(mc model.MarketContext, ind model.IndicatorSnapshot) model.Level {
	factors := 0
	if mc.Volatility == model.LevelHigh {
		factors++
	}
	if math.Abs(ind.PriceROC) > 5 {
		factors++
	}
	if ind.VolumeRatio > 2 {
		factors++
	}
	switch {
	case factors >= 2:
		return model.LevelHigh
	case factors == 0:
		return model.LevelLow
	default:
		return model.LevelMedium
	}
}
