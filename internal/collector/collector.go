package collector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"SignalSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price   float64
	Candles map[string][]model.Candle
	Err     error

	mu      sync.Mutex
	Calls   int
	Trimmed map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCandles(ctx context.Context, symbol, _ string, limit int) ([]model.Candle, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if bars, ok := m.Candles[symbol]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, limit), nil
}

// TrimRetention records the request; the mock keeps no history.
func (m *MockFetcher) TrimRetention(_ context.Context, symbol string, days int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Trimmed == nil {
		m.Trimmed = make(map[string]int)
	}
	m.Trimmed[symbol] = days
	return nil
}

func generateMockBars(basePrice float64, count int) []model.Candle {
	bars := make([]model.Candle, count)
	now := time.Now().Truncate(time.Hour)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.01*math.Sin(float64(i)/6))
		bars[i] = model.Candle{
			OpenTime: now.Add(-time.Duration(count-i) * time.Hour),
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			Volume:   1000000,
		}
	}
	return bars
}

// Collector wraps a Fetcher with a bounded timeout and a fixed request shape.
type Collector struct {
	Fetcher   Fetcher
	Timeframe string
	Limit     int
	Timeout   time.Duration
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, timeframe string, limit int, timeout time.Duration) *Collector {
	return &Collector{Fetcher: fetcher, Timeframe: timeframe, Limit: limit, Timeout: timeout}
}

// Collect fetches the most recent candles for symbol.
func (c *Collector) Collect(ctx context.Context, symbol string) ([]model.Candle, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	start := time.Now()
	bars, err := c.Fetcher.FetchCandles(ctx, symbol, c.Timeframe, c.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles from %s: %w", symbol, c.Fetcher.Name(), err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch %s candles from %s: %w", symbol, c.Fetcher.Name(), ErrNoData)
	}
	log.Debug().
		Str("symbol", symbol).
		Int("candles", len(bars)).
		Dur("took", time.Since(start)).
		Msg("fetched candles")
	return bars, nil
}

// TrimRetention forwards to the fetcher when it keeps a local history.
func (c *Collector) TrimRetention(ctx context.Context, symbol string, days int) error {
	t, ok := c.Fetcher.(RetentionTrimmer)
	if !ok {
		return nil
	}
	return t.TrimRetention(ctx, symbol, days)
}
