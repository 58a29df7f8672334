package model

import "time"

// TaskStatus describes one background task of the scheduler.
type TaskStatus struct {
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// SignalStats aggregates recorded signals over a period.
type SignalStats struct {
	TotalSignals int            `json:"total_signals"`
	BySymbol     map[string]int `json:"by_symbol"`
	ByType       map[string]int `json:"by_type"`
	AvgStrength  float64        `json:"avg_strength"`
	Trends       map[string]int `json:"trends"`
}

// MarketStats aggregates recorded market snapshots over a period.
type MarketStats struct {
	RecordsAnalyzed        int            `json:"records_analyzed"`
	TradingOpportunities   int            `json:"trading_opportunities"`
	AvgTrendStrength       float64        `json:"avg_trend_strength"`
	TrendDistribution      map[string]int `json:"trend_distribution"`
	VolatilityDistribution map[string]int `json:"volatility_distribution"`
}

// RecentStats is what the analytics sink reports for the last N days.
type RecentStats struct {
	Days    int         `json:"days"`
	Signals SignalStats `json:"signals"`
	Market  MarketStats `json:"market"`
}

// SchedulerStatus is the introspection snapshot of the scheduler.
type SchedulerStatus struct {
	Running          bool                  `json:"is_running"`
	Tasks            map[string]TaskStatus `json:"active_tasks"`
	SubscribersCount int                   `json:"subscribers_count"`
	Symbols          []string              `json:"symbols"`
	UpdateInterval   time.Duration         `json:"update_interval"`
	Stats            *RecentStats          `json:"stats,omitempty"`
	Error            string                `json:"error,omitempty"`
}
