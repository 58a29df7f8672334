package recorder

import (
	"context"

	"SignalSentinel/internal/model"
)

// Record kinds stored in the signals table.
const (
	KindSignal    = "signal"
	KindPreSignal = "pre_signal"
)

// SignalRecord is one signal or pre-signal with the context it fired in.
type SignalRecord struct {
	Symbol      string
	Kind        string
	Type        string
	Entry       float64
	StopLoss    float64
	TakeProfit  float64
	Strength    float64 // probability for pre-signals
	Reason      string
	RSI         float64
	VolumeRatio float64
	Context     model.MarketContext
}

// FromSignal builds a record for a confirmed signal.
func FromSignal(symbol string, s model.Signal, mc model.MarketContext) *SignalRecord {
	return &SignalRecord{
		Symbol:      symbol,
		Kind:        KindSignal,
		Type:        string(s.Type),
		Entry:       s.Entry,
		StopLoss:    s.StopLoss,
		TakeProfit:  s.TakeProfit,
		Strength:    s.Strength,
		Reason:      s.Reason,
		RSI:         s.Indicators.RSI,
		VolumeRatio: s.Indicators.VolumeRatio,
		Context:     mc,
	}
}

// FromPreSignal builds a record for a pre-signal.
func FromPreSignal(symbol string, p model.PreSignal, mc model.MarketContext) *SignalRecord {
	return &SignalRecord{
		Symbol:      symbol,
		Kind:        KindPreSignal,
		Type:        string(p.Type),
		Entry:       p.CurrentPrice,
		Strength:    p.Probability,
		Reason:      p.Reason,
		RSI:         p.Indicators.RSI,
		VolumeRatio: p.Indicators.VolumeRatio,
		Context:     mc,
	}
}

// Recorder persists signals and market snapshots for analysis.
type Recorder interface {
	RecordSignal(ctx context.Context, rec *SignalRecord) error
	RecordMarketSnapshot(ctx context.Context, res *model.AnalysisResult) error
	QueryRecentStats(ctx context.Context, days int) (*model.RecentStats, error)
	TrimRetention(ctx context.Context, days int) (int64, error)
	Close() error
}
