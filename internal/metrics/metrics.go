// Package metrics exposes scheduler counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalsentinel"

// Delivery outcomes.
const (
	OutcomeSent        = "sent"
	OutcomeUnreachable = "unreachable"
	OutcomeFailed      = "failed"
)

// Metrics holds all Prometheus metrics of the bot.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	cycleDuration   prometheus.Histogram
	analysisFailed  *prometheus.CounterVec
	signalsEmitted  *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	subscribers     prometheus.Gauge
	cleanups        prometheus.Counter
	lastCycleUnixTS prometheus.Gauge
}

// New registers every metric on a fresh registry, so several instances can
// coexist (tests create many).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cycles_total",
			Help:      "Completed analysis cycles",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_cycle_duration_seconds",
			Help:      "Wall time of one analysis cycle including delivery",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		analysisFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Symbols that produced no analysis result",
		}, []string{"symbol"}),
		signalsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_emitted_total",
			Help:      "Signals and pre-signals that passed deduplication",
		}, []string{"symbol", "kind"}),
		duplicates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_suppressed_total",
			Help:      "Signals suppressed by the deduplication cache",
		}, []string{"symbol"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Message deliveries by outcome",
		}, []string{"outcome"}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Current subscriber count",
		}),
		cleanups: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanups_total",
			Help:      "Daily cleanup runs",
		}),
		lastCycleUnixTS: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed analysis cycle",
		}),
	}
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.lastCycleUnixTS.SetToCurrentTime()
}

func (m *Metrics) AnalysisFailed(symbol string) { m.analysisFailed.WithLabelValues(symbol).Inc() }

func (m *Metrics) SignalEmitted(symbol, kind string) {
	m.signalsEmitted.WithLabelValues(symbol, kind).Inc()
}

func (m *Metrics) DuplicateSuppressed(symbol string) { m.duplicates.WithLabelValues(symbol).Inc() }

func (m *Metrics) Delivery(outcome string) { m.deliveries.WithLabelValues(outcome).Inc() }

func (m *Metrics) SetSubscribers(n int) { m.subscribers.Set(float64(n)) }

func (m *Metrics) CleanupRan() { m.cleanups.Inc() }

// Registry returns the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
