package recorder

import (
	"context"

	"SignalSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSignal(context.Context, *SignalRecord) error { return nil }
func (n *NoopRecorder) RecordMarketSnapshot(context.Context, *model.AnalysisResult) error {
	return nil
}
func (n *NoopRecorder) TrimRetention(context.Context, int) (int64, error) { return 0, nil }
func (n *NoopRecorder) Close() error                                      { return nil }

func (n *NoopRecorder) QueryRecentStats(_ context.Context, days int) (*model.RecentStats, error) {
	return emptyStats(days), nil
}

func emptyStats(days int) *model.RecentStats {
	return &model.RecentStats{
		Days: days,
		Signals: model.SignalStats{
			BySymbol: map[string]int{},
			ByType:   map[string]int{},
			Trends:   map[string]int{},
		},
		Market: model.MarketStats{
			TrendDistribution:      map[string]int{},
			VolatilityDistribution: map[string]int{},
		},
	}
}
