package model

import "time"

// SignalType is the direction of a confirmed signal.
type SignalType string

const (
	SignalLong  SignalType = "long"
	SignalShort SignalType = "short"
)

// PreSignalType is the direction of an early warning.
type PreSignalType string

const (
	PreSignalLong  PreSignalType = "potential_long"
	PreSignalShort PreSignalType = "potential_short"
)

// Signal is a filtered trade setup with entry, stop and target.
type Signal struct {
	Type       SignalType        `json:"type"`
	Strength   float64           `json:"strength"`
	Reason     string            `json:"reason"`
	Entry      float64           `json:"entry"`
	StopLoss   float64           `json:"stop_loss"`
	TakeProfit float64           `json:"take_profit"`
	Indicators IndicatorSnapshot `json:"indicators"`
}

// PreSignal is a lower-confidence warning scored by probability.
type PreSignal struct {
	Type         PreSignalType     `json:"type"`
	Reason       string            `json:"reason"`
	CurrentPrice float64           `json:"current_price"`
	Probability  float64           `json:"probability"`
	Indicators   IndicatorSnapshot `json:"indicators"`
}

// AnalysisResult is produced once per symbol per cycle.
type AnalysisResult struct {
	Timestamp    time.Time         `json:"timestamp"`
	Symbol       string            `json:"symbol"`
	Context      MarketContext     `json:"context"`
	Signals      []Signal          `json:"signals"`
	PreSignals   []PreSignal       `json:"pre_signals"`
	LatestPrice  float64           `json:"latest_price"`
	LatestVolume float64           `json:"latest_volume"`
	Indicators   IndicatorSnapshot `json:"indicators"`
}
