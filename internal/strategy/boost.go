package strategy

import "SignalSentinel/internal/model"

// Boost factors applied to pre-signal probability. Each matching
// condition multiplies once and the factors compound.
const (
	BoostVolume     = 1.2
	BoostMomentum   = 1.15
	BoostStrength   = 1.1
	PenaltyVolatile = 0.9
)

// Boost returns the pre-signal probability after boosts and penalties.
func Boost(p model.PreSignal, mc model.MarketContext) float64 {
	prob := p.Probability
	if p.Indicators.VolumeRatio > 1.1 {
		prob *= BoostVolume
	}
	if momentumAligned(p.Type, mc.Momentum) {
		prob *= BoostMomentum
	}
	if mc.Strength > 0.3 {
		prob *= BoostStrength
	}
	if mc.Volatility == model.LevelHigh {
		prob *= PenaltyVolatile
	}
	return prob
}

func momentumAligned(t model.PreSignalType, m model.Momentum) bool {
	switch t {
	case model.PreSignalLong:
		return m == model.MomentumPositive || m == model.MomentumStrongPositive
	case model.PreSignalShort:
		return m == model.MomentumNegative || m == model.MomentumStrongNegative
	}
	return false
}
