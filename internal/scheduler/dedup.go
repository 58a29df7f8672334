package scheduler

import (
	"math"
	"sync"
	"time"
)

// Deduplication defaults.
const (
	DefaultDedupWindow    = 30 * time.Minute
	DefaultDedupThreshold = 0.005
)

type dedupKey struct {
	symbol string
	kind   string
}

type emission struct {
	at    time.Time
	price float64
}

// Dedup remembers the latest emission per (symbol, type). A new emission
// is a duplicate only when it is inside the window AND its price moved
// less than the threshold.
type Dedup struct {
	mu        sync.Mutex
	window    time.Duration
	threshold float64
	now       func() time.Time
	last      map[dedupKey]emission
}

func NewDedup(window time.Duration, threshold float64) *Dedup {
	return &Dedup{
		window:    window,
		threshold: threshold,
		now:       time.Now,
		last:      make(map[dedupKey]emission),
	}
}

// Allow reports whether the emission should proceed and, if so, records it.
// Suppressed emissions leave the slot untouched.
func (d *Dedup) Allow(symbol, kind string, price float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := dedupKey{symbol, kind}
	now := d.now()
	if prev, ok := d.last[key]; ok {
		recent := now.Sub(prev.at) < d.window
		if recent && priceDelta(prev.price, price) < d.threshold {
			return false
		}
	}
	d.last[key] = emission{at: now, price: price}
	return true
}

func priceDelta(prev, cur float64) float64 {
	if prev == 0 {
		return math.Inf(1)
	}
	return math.Abs(cur-prev) / math.Abs(prev)
}

func (d *Dedup) Clear() {
	d.mu.Lock()
	d.last = make(map[dedupKey]emission)
	d.mu.Unlock()
}

func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}
