package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/model"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/strategy"
	"SignalSentinel/internal/subscriber"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	results map[string]*model.AnalysisResult
	calls   []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, symbol string) (*model.AnalysisResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	if symbol == "PANIC" {
		panic("boom")
	}
	res, ok := f.results[symbol]
	return res, ok
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sent struct {
	chatID int64
	text   string
}

type fakeDeliverer struct {
	mu          sync.Mutex
	sent        []sent
	retries     []int
	unreachable map[int64]bool
	failing     map[int64]bool
}

func (f *fakeDeliverer) SendWithRetry(_ context.Context, chatID int64, text string, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{chatID, text})
	f.retries = append(f.retries, maxRetries)
	switch {
	case f.unreachable[chatID]:
		return fmt.Errorf("%w: blocked", notifier.ErrUnreachable)
	case f.failing[chatID]:
		return errors.New("timeout")
	}
	return nil
}

func (f *fakeDeliverer) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeTrimmer struct {
	mu      sync.Mutex
	symbols []string
}

func (f *fakeTrimmer) TrimRetention(_ context.Context, symbol string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbol)
	return nil
}

type statsRecorder struct {
	recorder.NoopRecorder
	trims    int
	statsErr error
}

func (r *statsRecorder) TrimRetention(context.Context, int) (int64, error) {
	r.trims++
	return 3, nil
}

func (r *statsRecorder) QueryRecentStats(ctx context.Context, days int) (*model.RecentStats, error) {
	if r.statsErr != nil {
		return nil, r.statsErr
	}
	return r.NoopRecorder.QueryRecentStats(ctx, days)
}

var testDelivery = DeliveryConfig{
	High: DeliveryPolicy{BatchSize: 2},
	Low:  DeliveryPolicy{BatchSize: 1},
}

func newTestScheduler(t *testing.T, a Analyzer, d Deliverer, subs *subscriber.Set, deps Deps) *Scheduler {
	t.Helper()
	deps.Analyzer, deps.Deliverer, deps.Subscribers = a, d, subs
	s, err := New(Config{
		Symbols:        []string{"BTCUSDT", "ETHUSDT"},
		UpdateInterval: 10 * time.Millisecond,
		ErrorBackoff:   10 * time.Millisecond,
		RunOnStart:     true,
		RetentionDays:  30,
		Delivery:       testDelivery,
	}, deps)
	require.NoError(t, err)
	return s
}

func subscribers(ids ...int64) *subscriber.Set {
	s := subscriber.NewSet(nil)
	for _, id := range ids {
		s.Add(context.Background(), id)
	}
	return s
}

func longResult(symbol string, price float64) *model.AnalysisResult {
	return &model.AnalysisResult{
		Symbol:      symbol,
		LatestPrice: price,
		Context:     model.MarketContext{Trend: model.TrendUp, SuitableForTrading: true},
		Signals:     []model.Signal{{Type: model.SignalLong, Strength: 0.8, Entry: price, StopLoss: price * 0.98, TakeProfit: price * 1.04}},
		PreSignals:  []model.PreSignal{{Type: model.PreSignalLong, CurrentPrice: price, Probability: 0.5}},
	}
}

func TestDedup(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d := NewDedup(30*time.Minute, 0.005)
	d.now = func() time.Time { return now }

	assert.True(t, d.Allow("BTCUSDT", "long", 100))

	// within window and price delta < 0.5%
	now = now.Add(10 * time.Minute)
	assert.False(t, d.Allow("BTCUSDT", "long", 100.4))

	// other key is independent
	assert.True(t, d.Allow("BTCUSDT", "short", 100))
	assert.True(t, d.Allow("ETHUSDT", "long", 100))

	// within window but price moved >= 0.5%
	assert.True(t, d.Allow("BTCUSDT", "long", 100.5))

	// suppressed entries do not refresh the slot: 29m later still inside
	now = now.Add(29 * time.Minute)
	assert.False(t, d.Allow("BTCUSDT", "long", 100.5))

	// 30m after the last emission
	now = now.Add(time.Minute)
	assert.True(t, d.Allow("BTCUSDT", "long", 100.5))

	assert.Equal(t, 3, d.Len())
	d.Clear()
	assert.Zero(t, d.Len())
	assert.True(t, d.Allow("BTCUSDT", "long", 100.5))
}

func TestSplitBatches(t *testing.T) {
	ids := make([]int64, 7)
	for i := range ids {
		ids[i] = int64(i)
	}
	for size, want := range map[int]int{1: 7, 2: 4, 3: 3, 7: 1, 10: 1} {
		batches := splitBatches(ids, size)
		assert.Len(t, batches, want, "size %d", size)
		var flat []int64
		for _, b := range batches {
			assert.LessOrEqual(t, len(b), size)
			flat = append(flat, b...)
		}
		assert.Equal(t, ids, flat)
	}
	assert.Empty(t, splitBatches(nil, 3))
}

func TestBroadcast_PrunesUnreachable(t *testing.T) {
	subs := subscribers(1, 2, 3, 4, 5)
	d := &fakeDeliverer{unreachable: map[int64]bool{3: true}, failing: map[int64]bool{5: true}}
	s := newTestScheduler(t, &fakeAnalyzer{}, d, subs, Deps{})

	n := s.broadcast(context.Background(), "hello", PriorityHigh)
	assert.Equal(t, 3, n)

	var got []int64
	for _, m := range d.messages() {
		got = append(got, m.chatID)
	}
	// every recipient of the snapshot is attempted in order
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
	// only the unreachable one is pruned
	assert.Equal(t, []int64{1, 2, 4, 5}, subs.Snapshot())
}

func TestBroadcast_StopsBetweenMessagesOnCancel(t *testing.T) {
	subs := subscribers(1, 2, 3)
	d := &fakeDeliverer{}
	s := newTestScheduler(t, &fakeAnalyzer{}, d, subs, Deps{})
	s.cfg.Delivery.High = DeliveryPolicy{BatchSize: 10, MessageDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return len(d.messages()) == 1 }, time.Second, time.Millisecond)
		cancel()
	}()
	n := s.broadcast(ctx, "x", PriorityHigh)
	assert.Equal(t, 1, n)
}

func TestRunCycle_DeduplicatesAcrossCycles(t *testing.T) {
	a := &fakeAnalyzer{results: map[string]*model.AnalysisResult{
		"BTCUSDT": longResult("BTCUSDT", 100),
		"ETHUSDT": {Symbol: "ETHUSDT", LatestPrice: 10},
	}}
	d := &fakeDeliverer{}
	s := newTestScheduler(t, a, d, subscribers(7, 8), Deps{})
	ctx := context.Background()

	require.NoError(t, s.RunCycle(ctx))
	// one signal message and one pre-signal message per subscriber
	msgs := d.messages()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].text, "BTCUSDT signal")
	assert.Contains(t, msgs[2].text, "BTCUSDT pre-signal")

	require.NoError(t, s.RunCycle(ctx))
	assert.Len(t, d.messages(), 4)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "BTCUSDT", "ETHUSDT"}, a.calls)

	// a 1% move is a fresh emission
	a.results["BTCUSDT"] = longResult("BTCUSDT", 101)
	require.NoError(t, s.RunCycle(ctx))
	assert.Len(t, d.messages(), 8)
}

func TestBroadcast_RetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := map[int64]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChatID int64 `json:"chat_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		attempts[body.ChatID]++
		n := attempts[body.ChatID]
		mu.Unlock()

		switch {
		case body.ChatID == 2:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
		case body.ChatID == 1 && n == 1:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	tn := notifier.NewTelegramNotifier("TOKEN", "")
	tn.APIURL = srv.URL
	tn.RetryBase = time.Millisecond

	subs := subscribers(1, 2, 3)
	s := newTestScheduler(t, &fakeAnalyzer{}, tn, subs, Deps{})
	s.cfg.Delivery.MaxRetries = 2

	assert.Equal(t, 2, s.broadcast(context.Background(), "hi", PriorityHigh))
	mu.Lock()
	defer mu.Unlock()
	// the transient failure is retried once, the blocked chat is tried once
	assert.Equal(t, map[int64]int{1: 2, 2: 1, 3: 1}, attempts)
	assert.Equal(t, []int64{1, 3}, subs.Snapshot())
}

func TestBroadcast_PassesRetryBudget(t *testing.T) {
	d := &fakeDeliverer{}
	s := newTestScheduler(t, &fakeAnalyzer{}, d, subscribers(1, 2), Deps{})
	s.cfg.Delivery.MaxRetries = 4

	s.broadcast(context.Background(), "x", PriorityLow)
	assert.Equal(t, []int{4, 4}, d.retries)
}

func TestRunCycle_DeliversEverySignalOfOneResult(t *testing.T) {
	res := &model.AnalysisResult{
		Symbol:      "BTCUSDT",
		LatestPrice: 100,
		Signals: []model.Signal{
			{Type: model.SignalLong, Reason: strategy.ReasonRSIOversoldBounce, Strength: 0.7, Entry: 100, StopLoss: 98, TakeProfit: 104},
			{Type: model.SignalLong, Reason: strategy.ReasonBBLowerBounce, Strength: 0.8, Entry: 100, StopLoss: 98, TakeProfit: 104},
		},
	}
	a := &fakeAnalyzer{results: map[string]*model.AnalysisResult{"BTCUSDT": res}}
	d := &fakeDeliverer{}
	s := newTestScheduler(t, a, d, subscribers(1), Deps{})
	s.cfg.Symbols = []string{"BTCUSDT"}

	require.NoError(t, s.RunCycle(context.Background()))
	msgs := d.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].text, strategy.ReasonRSIOversoldBounce)
	assert.Contains(t, msgs[0].text, strategy.ReasonBBLowerBounce)

	// both are repeats on the next cycle
	require.NoError(t, s.RunCycle(context.Background()))
	assert.Len(t, d.messages(), 1)
}

type cancellingAnalyzer struct{ cancel context.CancelFunc }

func (c cancellingAnalyzer) Analyze(context.Context, string) (*model.AnalysisResult, bool) {
	c.cancel()
	return nil, false
}

func TestRunCycle_CancelledAnalysisIsNotAFailure(t *testing.T) {
	const failures = "signalsentinel_analysis_failures_total"
	m := metrics.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestScheduler(t, cancellingAnalyzer{cancel: cancel}, &fakeDeliverer{}, subscribers(), Deps{Metrics: m})

	assert.ErrorIs(t, s.RunCycle(ctx), context.Canceled)
	n, err := testutil.GatherAndCount(m.Registry(), failures)
	require.NoError(t, err)
	assert.Zero(t, n)

	// a real miss is still counted
	s.analyzer = &fakeAnalyzer{}
	require.NoError(t, s.RunCycle(context.Background()))
	n, err = testutil.GatherAndCount(m.Registry(), failures)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunCycle_SymbolFailuresDoNotAbort(t *testing.T) {
	a := &fakeAnalyzer{results: map[string]*model.AnalysisResult{"OK": longResult("OK", 5)}}
	d := &fakeDeliverer{}
	s := newTestScheduler(t, a, d, subscribers(1), Deps{})
	s.cfg.Symbols = []string{"MISSING", "PANIC", "OK"}

	require.NoError(t, s.RunCycle(context.Background()))
	assert.Equal(t, []string{"MISSING", "PANIC", "OK"}, a.calls)
	assert.Len(t, d.messages(), 2)
}

func TestRunCycle_CancelledContext(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestScheduler(t, a, &fakeDeliverer{}, subscribers(), Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RunCycle(ctx), context.Canceled)
	assert.Zero(t, a.callCount())
}

func TestScheduler_StartStop(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestScheduler(t, a, &fakeDeliverer{}, subscribers(), Deps{})
	ctx := context.Background()

	s.Start(ctx)
	s.Start(ctx)
	st := s.Status(ctx)
	assert.True(t, st.Running)
	assert.Zero(t, st.SubscribersCount)
	assert.Empty(t, st.Error)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, st.Symbols)
	assert.True(t, st.Tasks[TaskAnalysis].Running)
	assert.True(t, st.Tasks[TaskCleanup].Running)
	require.NotNil(t, st.Stats)

	require.Eventually(t, func() bool { return a.callCount() >= 4 }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}

	st = s.Status(ctx)
	assert.False(t, st.Running)
	assert.Empty(t, st.Tasks)

	// restart works after a stop
	s.Start(ctx)
	assert.True(t, s.IsRunning())
	s.Stop()
}

func TestScheduler_FirstCycleWaitsUnlessRunOnStart(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestScheduler(t, a, &fakeDeliverer{}, subscribers(), Deps{})
	s.cfg.RunOnStart = false
	s.cfg.UpdateInterval = time.Hour
	ctx := context.Background()

	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, a.callCount())
	assert.True(t, s.Status(ctx).Tasks[TaskAnalysis].LastRun.IsZero())
	s.Stop()

	s.cfg.RunOnStart = true
	s.Start(ctx)
	defer s.Stop()
	require.Eventually(t, func() bool { return a.callCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_LoopRecoversFromCyclePanic(t *testing.T) {
	s := newTestScheduler(t, &fakeAnalyzer{}, &fakeDeliverer{}, subscribers(), Deps{})
	s.cfg.ErrorBackoff = 200 * time.Millisecond

	var mu sync.Mutex
	var starts []time.Time
	s.cycle = func(context.Context) error {
		mu.Lock()
		starts = append(starts, time.Now())
		n := len(starts)
		mu.Unlock()
		if n == 1 {
			panic("cycle exploded")
		}
		return nil
	}
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool {
		return strings.Contains(s.Status(ctx).Tasks[TaskAnalysis].LastError, "cycle panic: cycle exploded")
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, s.IsRunning())
	mu.Lock()
	afterPanic, afterSuccess := starts[1].Sub(starts[0]), starts[2].Sub(starts[1])
	mu.Unlock()
	assert.GreaterOrEqual(t, afterPanic, 200*time.Millisecond)
	assert.Less(t, afterSuccess, 200*time.Millisecond)
	assert.Empty(t, s.Status(ctx).Tasks[TaskAnalysis].LastError)
}

func TestScheduler_StatusDegraded(t *testing.T) {
	rec := &statsRecorder{statsErr: errors.New("database is locked")}
	s := newTestScheduler(t, &fakeAnalyzer{}, &fakeDeliverer{}, subscribers(1, 2), Deps{Recorder: rec})

	st := s.Status(context.Background())
	assert.False(t, st.Running)
	assert.Equal(t, 2, st.SubscribersCount)
	assert.Nil(t, st.Stats)
	assert.Contains(t, st.Error, "database is locked")
}

func TestScheduler_RunCleanup(t *testing.T) {
	rec := &statsRecorder{}
	trim := &fakeTrimmer{}
	a := &fakeAnalyzer{results: map[string]*model.AnalysisResult{"BTCUSDT": longResult("BTCUSDT", 100)}}
	s := newTestScheduler(t, a, &fakeDeliverer{}, subscribers(1), Deps{Recorder: rec, Trimmer: trim})

	now := time.Date(2024, 5, 1, 0, 0, 5, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.RunCycle(ctx))
	require.Equal(t, 2, s.dedup.Len())

	assert.True(t, s.RunCleanup(ctx))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, trim.symbols)
	assert.Equal(t, 1, rec.trims)
	assert.Zero(t, s.dedup.Len())

	// same day is a no-op
	now = now.Add(50 * time.Minute)
	assert.False(t, s.RunCleanup(ctx))
	assert.Equal(t, 1, rec.trims)

	now = now.Add(24 * time.Hour)
	assert.True(t, s.RunCleanup(ctx))
	assert.Equal(t, 2, rec.trims)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{UpdateInterval: time.Second}, Deps{})
	assert.Error(t, err)

	deps := Deps{Analyzer: &fakeAnalyzer{}, Deliverer: &fakeDeliverer{}, Subscribers: subscribers()}
	_, err = New(Config{}, deps)
	assert.Error(t, err)

	_, err = New(Config{UpdateInterval: time.Second, CleanupCron: "not a cron"}, deps)
	assert.Error(t, err)
}
