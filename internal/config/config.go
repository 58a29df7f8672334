package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Counters where zero is a
// meaningful setting are pointers, so an explicit 0 survives defaults.Set.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token" validate:"required"`
		APIURL   string `yaml:"api_url" default:"https://api.telegram.org" validate:"url"`
	} `yaml:"telegram"`
	Exchange struct {
		Source       string        `yaml:"source" default:"binance" validate:"oneof=binance yahoo mock"`
		BaseURL      string        `yaml:"base_url" default:"https://api.binance.com" validate:"url"`
		Timeframe    string        `yaml:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h 1d 1w"`
		CandleLimit  int           `yaml:"candle_limit" default:"100" validate:"gte=50,lte=1000"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" default:"15s" validate:"gt=0"`
	} `yaml:"exchange"`
	Trading struct {
		Symbols           []string      `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"SOLUSDT\",\"BNBUSDT\",\"ADAUSDT\"]" validate:"min=1,dive,required"`
		UpdateInterval    time.Duration `yaml:"update_interval" default:"50s" validate:"gte=1s"`
		RSIPeriod         int           `yaml:"rsi_period" default:"14" validate:"gte=2"`
		ShortPeriod       int           `yaml:"short_period" default:"5" validate:"gte=1"`
		LongPeriod        int           `yaml:"long_period" default:"20" validate:"gtfield=ShortPeriod"`
		MinVolume         float64       `yaml:"min_volume" default:"1000" validate:"gte=0"`
		MinVolatility     float64       `yaml:"min_volatility" default:"0.001" validate:"gte=0"`
		MaxVolatility     float64       `yaml:"max_volatility" default:"0.05" validate:"gtfield=MinVolatility"`
		StrictSuitability bool          `yaml:"strict_suitability"`
	} `yaml:"trading"`
	Scheduler struct {
		ErrorBackoff   time.Duration `yaml:"error_backoff" default:"60s" validate:"gt=0"`
		CleanupCron    string        `yaml:"cleanup_cron" default:"0 0 0 * * *"`
		RetentionDays  *int          `yaml:"retention_days" default:"30" validate:"gte=0"`
		StatsDays      int           `yaml:"stats_days" default:"1" validate:"gte=1"`
		DedupWindow    time.Duration `yaml:"dedup_window" default:"30m" validate:"gt=0"`
		DedupThreshold float64       `yaml:"dedup_threshold" default:"0.005" validate:"gt=0,lt=1"`
		RunOnStart     bool          `yaml:"run_on_start"`
	} `yaml:"scheduler"`
	Delivery struct {
		SignalBatchSize    int           `yaml:"signal_batch_size" default:"30" validate:"gte=1"`
		SignalDelay        time.Duration `yaml:"signal_delay" default:"50ms"`
		PreSignalBatchSize int           `yaml:"pre_signal_batch_size" default:"20" validate:"gte=1"`
		PreSignalDelay     time.Duration `yaml:"pre_signal_delay" default:"100ms"`
		BatchPause         time.Duration `yaml:"batch_pause" default:"1s"`
		SendTimeout        time.Duration `yaml:"send_timeout" default:"30s" validate:"gt=0"`
		MaxRetries         *int          `yaml:"max_retries" default:"2" validate:"gte=0,lte=5"`
		RetryBackoff       time.Duration `yaml:"retry_backoff" default:"1s" validate:"gt=0"`
	} `yaml:"delivery"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/signal_sentinel.db"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		Key      string `yaml:"key" default:"signalsentinel:subscribers"`
	} `yaml:"redis"`
	HTTP struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

var validate = validator.New()

// Load reads config from a YAML file, fills defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TRADING_SYMBOLS"); v != "" {
		c.Trading.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("UPDATE_INTERVAL"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("UPDATE_INTERVAL: %w", err)
		}
		c.Trading.UpdateInterval = d
	}
	if v := os.Getenv("TIMEFRAME"); v != "" {
		c.Exchange.Timeframe = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Scheduler.RunOnStart = b
	}
	return nil
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseSeconds accepts a bare number of seconds or a Go duration.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks field constraints and the cleanup cron expression.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Scheduler.CleanupCron); err != nil {
		return fmt.Errorf("scheduler.cleanup_cron: %w", err)
	}
	return nil
}
