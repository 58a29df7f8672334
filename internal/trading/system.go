// Package trading runs the per-symbol analysis pipeline:
// collect bars, enrich with indicators, classify the market and detect signals.
package trading

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/strategy"
)

// System is the analysis orchestrator used by the scheduler.
type System struct {
	Collector *collector.Collector
	Recorder  recorder.Recorder
	Params    calculator.Params
	Context   strategy.ContextConfig

	now func() time.Time
}

// NewSystem wires a System. A nil recorder disables recording.
func NewSystem(col *collector.Collector, rec recorder.Recorder, params calculator.Params, cc strategy.ContextConfig) *System {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &System{
		Collector: col,
		Recorder:  rec,
		Params:    params,
		Context:   cc,
		now:       time.Now,
	}
}

// Analyze runs one full pass for symbol. It reports false when no result
// could be produced; the cause is logged, never returned.
func (s *System) Analyze(ctx context.Context, symbol string) (*model.AnalysisResult, bool) {
	bars, err := s.Collector.Collect(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Str("symbol", symbol).Msg("collect bars cancelled")
			return nil, false
		}
		log.Error().Err(err).Str("symbol", symbol).Msg("collect bars")
		return nil, false
	}

	series, err := calculator.Enrich(symbol, bars, s.Params)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Int("bars", len(bars)).Msg("enrich indicators")
		return nil, false
	}

	mc, err := strategy.Classify(series, s.Context)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("classify market")
		return nil, false
	}

	d := strategy.Detect(series, mc)
	bar, ind := series.At(0)

	res := &model.AnalysisResult{
		Timestamp:    s.now(),
		Symbol:       symbol,
		Context:      mc,
		Signals:      d.Signals,
		PreSignals:   d.PreSignals,
		LatestPrice:  bar.Close,
		LatestVolume: bar.Volume,
		Indicators:   ind,
	}
	s.record(ctx, res)

	log.Debug().
		Str("symbol", symbol).
		Str("trend", string(mc.Trend)).
		Bool("suitable", mc.SuitableForTrading).
		Int("signals", len(res.Signals)).
		Int("pre_signals", len(res.PreSignals)).
		Msg("analysis complete")
	return res, true
}

func (s *System) record(ctx context.Context, res *model.AnalysisResult) {
	if err := s.Recorder.RecordMarketSnapshot(ctx, res); err != nil {
		log.Error().Err(err).Str("symbol", res.Symbol).Msg("record market snapshot")
	}
	for _, sig := range res.Signals {
		if err := s.Recorder.RecordSignal(ctx, recorder.FromSignal(res.Symbol, sig, res.Context)); err != nil {
			log.Error().Err(err).Str("symbol", res.Symbol).Msg("record signal")
		}
	}
	for _, pre := range res.PreSignals {
		if err := s.Recorder.RecordSignal(ctx, recorder.FromPreSignal(res.Symbol, pre, res.Context)); err != nil {
			log.Error().Err(err).Str("symbol", res.Symbol).Msg("record pre-signal")
		}
	}
}
