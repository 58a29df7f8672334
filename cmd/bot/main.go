package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/collector"
	"SignalSentinel/internal/config"
	"SignalSentinel/internal/logging"
	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/notifier"
	"SignalSentinel/internal/recorder"
	"SignalSentinel/internal/scheduler"
	"SignalSentinel/internal/server"
	"SignalSentinel/internal/strategy"
	"SignalSentinel/internal/subscriber"
	"SignalSentinel/internal/trading"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Str("config", cfgPath).Msg("SignalSentinel starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Market data
	var fetcher collector.Fetcher
	switch cfg.Exchange.Source {
	case "yahoo":
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	case "mock":
		fetcher = &collector.MockFetcher{Price: 100}
	default:
		fetcher = collector.NewBinanceFetcher(cfg.Exchange.BaseURL, cfg.Proxy)
	}
	log.Info().Str("source", fetcher.Name()).Str("timeframe", cfg.Exchange.Timeframe).Msg("data source ready")
	col := collector.NewCollector(fetcher, cfg.Exchange.Timeframe, cfg.Exchange.CandleLimit, cfg.Exchange.FetchTimeout)

	// Analytics sink
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Warn().Err(err).Msg("create data dir")
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	defer rec.Close()

	// Subscribers
	var store subscriber.Store
	if cfg.Redis.Addr != "" {
		rs, err := subscriber.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, subscribers kept in memory only")
		} else {
			store = rs
			defer rs.Close()
		}
	}
	subs := subscriber.NewSet(store)
	if err := subs.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("load subscribers")
	}

	// Analysis pipeline
	system := trading.NewSystem(col, rec, calculator.Params{
		RSIPeriod:   cfg.Trading.RSIPeriod,
		ShortPeriod: cfg.Trading.ShortPeriod,
		LongPeriod:  cfg.Trading.LongPeriod,
	}, strategy.ContextConfig{
		MinVolume:         cfg.Trading.MinVolume,
		MinVolatility:     cfg.Trading.MinVolatility,
		MaxVolatility:     cfg.Trading.MaxVolatility,
		StrictSuitability: cfg.Trading.StrictSuitability,
	})

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Proxy)
	tn.APIURL = cfg.Telegram.APIURL
	tn.RetryBase = cfg.Delivery.RetryBackoff
	m := metrics.New()

	sched, err := scheduler.New(scheduler.Config{
		Symbols:        cfg.Trading.Symbols,
		UpdateInterval: cfg.Trading.UpdateInterval,
		RunOnStart:     cfg.Scheduler.RunOnStart,
		ErrorBackoff:   cfg.Scheduler.ErrorBackoff,
		CleanupCron:    cfg.Scheduler.CleanupCron,
		RetentionDays:  *cfg.Scheduler.RetentionDays,
		StatsDays:      cfg.Scheduler.StatsDays,
		DedupWindow:    cfg.Scheduler.DedupWindow,
		DedupThreshold: cfg.Scheduler.DedupThreshold,
		Delivery: scheduler.DeliveryConfig{
			High:        scheduler.DeliveryPolicy{BatchSize: cfg.Delivery.SignalBatchSize, MessageDelay: cfg.Delivery.SignalDelay},
			Low:         scheduler.DeliveryPolicy{BatchSize: cfg.Delivery.PreSignalBatchSize, MessageDelay: cfg.Delivery.PreSignalDelay},
			BatchPause:  cfg.Delivery.BatchPause,
			SendTimeout: cfg.Delivery.SendTimeout,
			MaxRetries:  *cfg.Delivery.MaxRetries,
		},
	}, scheduler.Deps{
		Analyzer:    system,
		Deliverer:   tn,
		Subscribers: subs,
		Recorder:    rec,
		Trimmer:     col,
		Metrics:     m,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init scheduler")
	}
	sched.Start(ctx)
	defer sched.Stop()

	// Telegram commands
	router := &notifier.Router{Subscribers: subs, Status: sched, Stats: rec, Analyzer: system, Symbols: cfg.Trading.Symbols}
	go tn.StartPolling(ctx, router.Handle)
	log.Info().Msg("telegram polling started")

	// HTTP front
	srv := server.New(cfg.HTTP.Addr, sched, m.Handler())
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Msg("SignalSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
}
