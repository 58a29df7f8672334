package collector

import (
	"context"
	"errors"
	"strconv"
	"time"

	"SignalSentinel/internal/model"
)

// ErrNoData is returned when a source yields an empty candle set.
var ErrNoData = errors.New("no candles returned")

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
	Name() string
}

// RetentionTrimmer is implemented by sources that keep a local candle history.
type RetentionTrimmer interface {
	TrimRetention(ctx context.Context, symbol string, days int) error
}

// TimeframeDuration converts an exchange interval such as "15m", "1h", "1d"
// or "1w" into a duration. Unknown values fall back to one hour.
func TimeframeDuration(timeframe string) time.Duration {
	if len(timeframe) < 2 {
		return time.Hour
	}
	n, err := strconv.Atoi(timeframe[:len(timeframe)-1])
	if err != nil || n <= 0 {
		return time.Hour
	}
	unit := map[byte]time.Duration{
		'm': time.Minute,
		'h': time.Hour,
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
	}[timeframe[len(timeframe)-1]]
	if unit == 0 {
		return time.Hour
	}
	return time.Duration(n) * unit
}
