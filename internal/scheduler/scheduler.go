// Package scheduler drives periodic analysis, deduplicates signals and
// delivers them to subscribers in rate-limited batches.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/recorder"
)

// Task names reported by Status.
const (
	TaskAnalysis = "analysis"
	TaskCleanup  = "cleanup"
)

// Analyzer produces one analysis result per symbol.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (*model.AnalysisResult, bool)
}

// Subscribers is the view of the subscriber set the scheduler needs.
type Subscribers interface {
	Snapshot() []int64
	Remove(ctx context.Context, chatID int64) bool
	Len() int
}

// RetentionTrimmer trims locally cached market data for a symbol.
type RetentionTrimmer interface {
	TrimRetention(ctx context.Context, symbol string, days int) error
}

// Config controls the scheduler loops.
type Config struct {
	Symbols        []string
	UpdateInterval time.Duration
	// RunOnStart runs the first cycle immediately instead of after one
	// UpdateInterval.
	RunOnStart     bool
	ErrorBackoff   time.Duration
	CleanupCron    string
	RetentionDays  int
	StatsDays      int
	DedupWindow    time.Duration
	DedupThreshold float64
	Delivery       DeliveryConfig
}

// Deps are the collaborators of the scheduler. Trimmer, Recorder and
// Metrics may be nil.
type Deps struct {
	Analyzer    Analyzer
	Deliverer   Deliverer
	Subscribers Subscribers
	Recorder    recorder.Recorder
	Trimmer     RetentionTrimmer
	Metrics     *metrics.Metrics
}

// Scheduler owns the analysis loop, the cleanup task and the dedup cache.
type Scheduler struct {
	cfg         Config
	analyzer    Analyzer
	deliverer   Deliverer
	subscribers Subscribers
	recorder    recorder.Recorder
	trimmer     RetentionTrimmer
	metrics     *metrics.Metrics
	dedup       *Dedup
	cron        *cron.Cron
	now         func() time.Time
	cycle       func(ctx context.Context) error

	mu             sync.Mutex
	running        bool
	runCtx         context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	tasks          map[string]model.TaskStatus
	lastCleanupDay string
	cleanupMu      sync.Mutex
}

// New validates cfg and builds a stopped scheduler.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Analyzer == nil || deps.Deliverer == nil || deps.Subscribers == nil {
		return nil, errors.New("scheduler: analyzer, deliverer and subscribers are required")
	}
	if cfg.UpdateInterval <= 0 {
		return nil, fmt.Errorf("scheduler: update interval must be positive, got %s", cfg.UpdateInterval)
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Minute
	}
	if cfg.CleanupCron == "" {
		cfg.CleanupCron = "0 0 0 * * *"
	}
	if cfg.StatsDays <= 0 {
		cfg.StatsDays = 1
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = DefaultDedupThreshold
	}
	if cfg.Delivery.SendTimeout <= 0 {
		cfg.Delivery.SendTimeout = DefaultDeliveryConfig.SendTimeout
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Scheduler{
		cfg:         cfg,
		analyzer:    deps.Analyzer,
		deliverer:   deps.Deliverer,
		subscribers: deps.Subscribers,
		recorder:    deps.Recorder,
		trimmer:     deps.Trimmer,
		metrics:     deps.Metrics,
		dedup:       NewDedup(cfg.DedupWindow, cfg.DedupThreshold),
		cron:        cron.New(cron.WithSeconds()),
		now:         time.Now,
		tasks:       make(map[string]model.TaskStatus),
	}
	s.cycle = s.RunCycle
	if _, err := s.cron.AddFunc(cfg.CleanupCron, s.cleanupTask); err != nil {
		return nil, fmt.Errorf("register cleanup task: %w", err)
	}
	return s, nil
}

// Start launches the analysis loop and the cleanup cron. Calling it on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.tasks = map[string]model.TaskStatus{
		TaskAnalysis: {Running: true},
		TaskCleanup:  {Running: true},
	}

	s.wg.Add(1)
	go s.analysisLoop(s.runCtx)
	s.cron.Start()

	log.Info().Strs("symbols", s.cfg.Symbols).Dur("interval", s.cfg.UpdateInterval).
		Bool("run_on_start", s.cfg.RunOnStart).Msg("scheduler started")
}

// Stop cancels both tasks and waits for them to finish. Calling it on a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	cronDone := s.cron.Stop()
	s.mu.Unlock()

	s.wg.Wait()
	<-cronDone.Done()

	s.mu.Lock()
	s.tasks = make(map[string]model.TaskStatus)
	s.runCtx = nil
	s.mu.Unlock()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) analysisLoop(ctx context.Context) {
	defer s.wg.Done()
	defer s.updateTask(TaskAnalysis, func(t *model.TaskStatus) { t.Running = false })

	if !s.cfg.RunOnStart && !sleepCtx(ctx, s.cfg.UpdateInterval) {
		log.Debug().Msg("analysis loop cancelled before first cycle")
		return
	}

	for {
		err := s.safeCycle(ctx)
		if ctx.Err() != nil {
			log.Debug().Msg("analysis loop cancelled")
			return
		}

		wait := s.cfg.UpdateInterval
		if err != nil {
			log.Error().Err(err).Dur("backoff", s.cfg.ErrorBackoff).Msg("analysis cycle failed")
			wait = s.cfg.ErrorBackoff
		}
		s.updateTask(TaskAnalysis, func(t *model.TaskStatus) {
			t.LastRun = s.now()
			t.LastError = ""
			if err != nil {
				t.LastError = err.Error()
			}
		})

		if !sleepCtx(ctx, wait) {
			log.Debug().Msg("analysis loop cancelled")
			return
		}
	}
}

// safeCycle turns a panic anywhere in the cycle into an error.
func (s *Scheduler) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
			log.Error().Str("stack", string(debug.Stack())).Msg("recovered analysis cycle")
		}
	}()
	return s.cycle(ctx)
}

// RunCycle analyzes every configured symbol once, in order, and delivers
// fresh signals. A failing symbol never aborts the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	start := time.Now()
	for _, symbol := range s.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processSymbolSafe(ctx, symbol)
	}
	s.metrics.ObserveCycle(time.Since(start))
	return nil
}

func (s *Scheduler) processSymbolSafe(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("symbol", symbol).Interface("panic", r).Msg("recovered symbol processing")
		}
	}()
	s.processSymbol(ctx, symbol)
}

func (s *Scheduler) processSymbol(ctx context.Context, symbol string) {
	res, ok := s.analyzer.Analyze(ctx, symbol)
	if !ok {
		if ctx.Err() == nil {
			s.metrics.AnalysisFailed(symbol)
		}
		return
	}

	// One dedup decision per (symbol, type) per result: every item of a
	// type is judged against the state before this cycle.
	decided := make(map[string]bool)
	allow := func(kind string, price float64) bool {
		if ok, seen := decided[kind]; seen {
			return ok
		}
		ok := s.dedup.Allow(symbol, kind, price)
		decided[kind] = ok
		return ok
	}

	var signals []model.Signal
	for _, sig := range res.Signals {
		if allow(string(sig.Type), sig.Entry) {
			signals = append(signals, sig)
			s.metrics.SignalEmitted(symbol, recorder.KindSignal)
		} else {
			s.metrics.DuplicateSuppressed(symbol)
		}
	}
	var pre []model.PreSignal
	for _, p := range res.PreSignals {
		if allow(string(p.Type), p.CurrentPrice) {
			pre = append(pre, p)
			s.metrics.SignalEmitted(symbol, recorder.KindPreSignal)
		} else {
			s.metrics.DuplicateSuppressed(symbol)
		}
	}

	if len(signals) > 0 {
		log.Info().Str("symbol", symbol).Int("signals", len(signals)).Msg("delivering signals")
		s.broadcast(ctx, notifier.FormatSignals(res, signals), PriorityHigh)
	}
	if len(pre) > 0 {
		log.Info().Str("symbol", symbol).Int("pre_signals", len(pre)).Msg("delivering pre-signals")
		s.broadcast(ctx, notifier.FormatPreSignals(res, pre), PriorityLow)
	}
}

func (s *Scheduler) cleanupTask() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	s.RunCleanup(ctx)
}

// RunCleanup trims market data and analytics older than the retention
// window and clears the dedup cache. It runs at most once per calendar day
// and reports whether it ran.
func (s *Scheduler) RunCleanup(ctx context.Context) bool {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	day := s.now().Format("2006-01-02")
	if s.lastCleanupDay == day {
		log.Debug().Str("day", day).Msg("cleanup already ran today")
		return false
	}

	var lastErr error
	if s.trimmer != nil {
		for _, symbol := range s.cfg.Symbols {
			if err := s.trimmer.TrimRetention(ctx, symbol, s.cfg.RetentionDays); err != nil {
				lastErr = err
				log.Error().Err(err).Str("symbol", symbol).Msg("trim market data")
			}
		}
	}
	removed, err := s.recorder.TrimRetention(ctx, s.cfg.RetentionDays)
	if err != nil {
		lastErr = err
		log.Error().Err(err).Msg("trim analytics")
	}
	s.dedup.Clear()
	s.lastCleanupDay = day
	s.metrics.CleanupRan()

	s.updateTask(TaskCleanup, func(t *model.TaskStatus) {
		t.LastRun = s.now()
		t.LastError = ""
		if lastErr != nil {
			t.LastError = lastErr.Error()
		}
	})
	log.Info().Int64("analytics_removed", removed).Int("retention_days", s.cfg.RetentionDays).Msg("daily cleanup done")
	return true
}

func (s *Scheduler) updateTask(name string, fn func(*model.TaskStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	t := s.tasks[name]
	fn(&t)
	s.tasks[name] = t
}

// Status returns a snapshot of the scheduler. It never fails: problems are
// reported in the Error field.
func (s *Scheduler) Status(ctx context.Context) (st model.SchedulerStatus) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered status")
			st = model.SchedulerStatus{Running: s.IsRunning(), Error: fmt.Sprintf("status unavailable: %v", r)}
		}
	}()

	s.mu.Lock()
	st.Running = s.running
	st.Tasks = make(map[string]model.TaskStatus, len(s.tasks))
	for name, t := range s.tasks {
		st.Tasks[name] = t
	}
	s.mu.Unlock()

	st.SubscribersCount = s.subscribers.Len()
	st.Symbols = append([]string(nil), s.cfg.Symbols...)
	st.UpdateInterval = s.cfg.UpdateInterval
	s.metrics.SetSubscribers(st.SubscribersCount)

	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stats, err := s.recorder.QueryRecentStats(qctx, s.cfg.StatsDays)
	if err != nil {
		log.Warn().Err(err).Msg("query recent stats")
		st.Error = "stats unavailable: " + err.Error()
		return st
	}
	st.Stats = stats
	return st
}
