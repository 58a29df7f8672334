package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"SignalSentinel/internal/model"
)

// SQLiteRecorder persists signals and market snapshots to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets dashboards read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			symbol         TEXT NOT NULL,
			kind           TEXT NOT NULL,
			signal_type    TEXT NOT NULL,
			entry_price    REAL,
			stop_loss      REAL,
			take_profit    REAL,
			strength       REAL,
			reason         TEXT,
			rsi            REAL,
			volume_ratio   REAL,
			trend          TEXT,
			trend_strength REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(timestamp)`,

		`CREATE TABLE IF NOT EXISTS market_snapshots (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			symbol           TEXT NOT NULL,
			price            REAL,
			volume           REAL,
			rsi              REAL,
			sma_short        REAL,
			sma_long         REAL,
			ema_short        REAL,
			ema_long         REAL,
			volume_ratio     REAL,
			volatility       REAL,
			atr              REAL,
			trend            TEXT,
			trend_strength   REAL,
			volatility_level TEXT,
			volume_level     TEXT,
			momentum         TEXT,
			risk_level       TEXT,
			suitable         INTEGER,
			signals          INTEGER,
			pre_signals      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_ts ON market_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSignal(ctx context.Context, rec *SignalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO signals
		(timestamp, symbol, kind, signal_type, entry_price, stop_loss, take_profit,
		 strength, reason, rsi, volume_ratio, trend, trend_strength)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.now().UnixMilli(), rec.Symbol, rec.Kind, rec.Type,
		rec.Entry, rec.StopLoss, rec.TakeProfit, rec.Strength, rec.Reason,
		rec.RSI, rec.VolumeRatio, string(rec.Context.Trend), rec.Context.Strength,
	)
	return err
}

func (r *SQLiteRecorder) RecordMarketSnapshot(ctx context.Context, res *model.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ind := res.Indicators
	mc := res.Context
	suitable := 0
	if mc.SuitableForTrading {
		suitable = 1
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO market_snapshots
		(timestamp, symbol, price, volume, rsi, sma_short, sma_long, ema_short, ema_long,
		 volume_ratio, volatility, atr, trend, trend_strength, volatility_level,
		 volume_level, momentum, risk_level, suitable, signals, pre_signals)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.now().UnixMilli(), res.Symbol, res.LatestPrice, res.LatestVolume,
		ind.RSI, ind.SMAShort, ind.SMALong, ind.EMAShort, ind.EMALong,
		ind.VolumeRatio, ind.Volatility, ind.ATR,
		string(mc.Trend), mc.Strength, string(mc.Volatility), string(mc.Volume),
		string(mc.Momentum), string(mc.RiskLevel), suitable,
		len(res.Signals), len(res.PreSignals),
	)
	return err
}

// QueryRecentStats aggregates the last days of records. Totals, averages and
// trends count confirmed signals only; ByType covers pre-signals too.
func (r *SQLiteRecorder) QueryRecentStats(ctx context.Context, days int) (*model.RecentStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := r.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	stats := emptyStats(days)

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(strength), 0) FROM signals WHERE timestamp > ? AND kind = ?`,
		since, KindSignal,
	).Scan(&stats.Signals.TotalSignals, &stats.Signals.AvgStrength); err != nil {
		return nil, fmt.Errorf("signal totals: %w", err)
	}

	groups := []struct {
		query string
		args  []any
		dst   map[string]int
	}{
		{`SELECT symbol, COUNT(*) FROM signals WHERE timestamp > ? AND kind = ? GROUP BY symbol`, []any{since, KindSignal}, stats.Signals.BySymbol},
		{`SELECT signal_type, COUNT(*) FROM signals WHERE timestamp > ? GROUP BY signal_type`, []any{since}, stats.Signals.ByType},
		{`SELECT trend, COUNT(*) FROM signals WHERE timestamp > ? AND kind = ? GROUP BY trend`, []any{since, KindSignal}, stats.Signals.Trends},
		{`SELECT trend, COUNT(*) FROM market_snapshots WHERE timestamp > ? GROUP BY trend`, []any{since}, stats.Market.TrendDistribution},
		{`SELECT volatility_level, COUNT(*) FROM market_snapshots WHERE timestamp > ? GROUP BY volatility_level`, []any{since}, stats.Market.VolatilityDistribution},
	}
	for _, g := range groups {
		if err := r.countBy(ctx, g.dst, g.query, g.args...); err != nil {
			return nil, err
		}
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(suitable), 0), COALESCE(AVG(trend_strength), 0)
		 FROM market_snapshots WHERE timestamp > ?`,
		since,
	).Scan(&stats.Market.RecordsAnalyzed, &stats.Market.TradingOpportunities, &stats.Market.AvgTrendStrength); err != nil {
		return nil, fmt.Errorf("market totals: %w", err)
	}

	return stats, nil
}

func (r *SQLiteRecorder) countBy(ctx context.Context, dst map[string]int, query string, args ...any) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %q: %w", query[:30], err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}

// TrimRetention deletes every record not newer than days ago. Zero days
// clears all prior records.
func (r *SQLiteRecorder) TrimRetention(ctx context.Context, days int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	var removed int64
	for _, table := range []string{"signals", "market_snapshots"} {
		res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE timestamp <= ?", cutoff)
		if err != nil {
			return removed, fmt.Errorf("trim %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
