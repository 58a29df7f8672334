package model

import "time"

// Candle represents a single OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Trend is the direction resolved by the trend vote.
type Trend string

const (
	TrendUp        Trend = "uptrend"
	TrendDown      Trend = "downtrend"
	TrendUndefined Trend = "undefined"
)

// Level is a three-way bucket used for volatility, volume and risk.
type Level string

const (
	LevelLow    Level = "low"
	LevelNormal Level = "normal"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Momentum buckets momentum_pct.
type Momentum string

const (
	MomentumStrongNegative Momentum = "strong_negative"
	MomentumNegative       Momentum = "negative"
	MomentumNeutral        Momentum = "neutral"
	MomentumPositive       Momentum = "positive"
	MomentumStrongPositive Momentum = "strong_positive"
)

// MarketContext is the regime descriptor derived from the latest bar.
type MarketContext struct {
	Trend              Trend    `json:"trend"`
	Strength           float64  `json:"strength"`
	Volatility         Level    `json:"volatility"`
	Volume             Level    `json:"volume"`
	Momentum           Momentum `json:"momentum"`
	RiskLevel          Level    `json:"risk_level"`
	SuitableForTrading bool     `json:"suitable_for_trading"`
}
