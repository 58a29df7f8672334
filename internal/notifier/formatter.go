package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"SignalSentinel/internal/model"
)

// HelpText lists the bot commands.
const HelpText = `👋 <b>SignalSentinel</b> tracks crypto pairs and sends trade signals.

Commands:
/start - subscribe to signals
/stop - unsubscribe
/status - scheduler status and recent statistics
/stats [days] - signal and market statistics, 1 day by default
/symbols - tracked pairs with current trend
/analysis - current analysis with active signals
/help - this message`

func writeContext(b *strings.Builder, res *model.AnalysisResult) {
	mc := res.Context
	b.WriteString(fmt.Sprintf("⏰ %s\n", res.Timestamp.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("💵 Price: %.2f | Volume: %.2f\n\n", res.LatestPrice, res.LatestVolume))
	b.WriteString("🔍 <b>Market context</b>\n")
	b.WriteString(fmt.Sprintf("- Trend: %s (strength %.2f)\n", mc.Trend, mc.Strength))
	b.WriteString(fmt.Sprintf("- Volatility: %s | Volume: %s\n", mc.Volatility, mc.Volume))
	b.WriteString(fmt.Sprintf("- Momentum: %s | Risk: %s\n", mc.Momentum, mc.RiskLevel))
}

// FormatSignals renders confirmed signals for one analysis result.
func FormatSignals(res *model.AnalysisResult, signals []model.Signal) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎯 <b>%s signal</b>\n", html.EscapeString(res.Symbol)))
	writeContext(&b, res)

	for _, s := range signals {
		b.WriteString(fmt.Sprintf("\n<b>%s</b> - %s\n", strings.ToUpper(string(s.Type)), html.EscapeString(s.Reason)))
		b.WriteString(fmt.Sprintf("Entry: %.4f\n", s.Entry))
		b.WriteString(fmt.Sprintf("Stop-loss: %.4f\n", s.StopLoss))
		b.WriteString(fmt.Sprintf("Take-profit: %.4f\n", s.TakeProfit))
		b.WriteString(fmt.Sprintf("Strength: %.2f | RSI: %.1f | Vol ratio: %.2f\n",
			s.Strength, s.Indicators.RSI, s.Indicators.VolumeRatio))
	}
	return b.String()
}

// FormatPreSignals renders early warnings for one analysis result.
func FormatPreSignals(res *model.AnalysisResult, pre []model.PreSignal) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ <b>%s pre-signal</b>\n", html.EscapeString(res.Symbol)))
	writeContext(&b, res)

	for _, p := range pre {
		b.WriteString(fmt.Sprintf("\n<b>%s</b> - %s\n", strings.ToUpper(string(p.Type)), html.EscapeString(p.Reason)))
		b.WriteString(fmt.Sprintf("Price: %.4f | Probability: %.0f%%\n", p.CurrentPrice, p.Probability*100))
	}
	return b.String()
}

// FormatStatus renders the scheduler status snapshot.
func FormatStatus(st model.SchedulerStatus) string {
	var b strings.Builder
	state := "🟢 running"
	if !st.Running {
		state = "🔴 stopped"
	}
	b.WriteString(fmt.Sprintf("📊 <b>System status</b>: %s\n\n", state))
	b.WriteString(fmt.Sprintf("Subscribers: %d\n", st.SubscribersCount))
	b.WriteString(fmt.Sprintf("Symbols: %s\n", strings.Join(st.Symbols, ", ")))
	b.WriteString(fmt.Sprintf("Update interval: %s\n", st.UpdateInterval))

	if len(st.Tasks) > 0 {
		names := make([]string, 0, len(st.Tasks))
		for name := range st.Tasks {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n<b>Tasks</b>\n")
		for _, name := range names {
			task := st.Tasks[name]
			line := fmt.Sprintf("- %s: running=%v", name, task.Running)
			if !task.LastRun.IsZero() {
				line += ", last " + task.LastRun.Format("01-02 15:04")
			}
			if task.LastError != "" {
				line += ", error: " + html.EscapeString(task.LastError)
			}
			b.WriteString(line + "\n")
		}
	}

	if st.Stats != nil {
		s := st.Stats
		b.WriteString(fmt.Sprintf("\n<b>Last %d day(s)</b>\n", s.Days))
		b.WriteString(fmt.Sprintf("Analyzed: %d records\n", s.Market.RecordsAnalyzed))
		b.WriteString(fmt.Sprintf("Opportunities: %d\n", s.Market.TradingOpportunities))
		b.WriteString(fmt.Sprintf("Avg trend strength: %.2f\n", s.Market.AvgTrendStrength))
		b.WriteString(fmt.Sprintf("Signals: %d (avg strength %.2f)\n", s.Signals.TotalSignals, s.Signals.AvgStrength))
	}
	if st.Error != "" {
		b.WriteString("\n❗ " + html.EscapeString(st.Error) + "\n")
	}
	return b.String()
}

// FormatStats renders the analytics summary for /stats.
func FormatStats(s *model.RecentStats) string {
	var b strings.Builder
	period := "24 hours"
	if s.Days != 1 {
		period = fmt.Sprintf("%d days", s.Days)
	}
	b.WriteString(fmt.Sprintf("📊 <b>Statistics for %s</b>\n\n", period))
	b.WriteString(fmt.Sprintf("Signals: %d\n", s.Signals.TotalSignals))
	b.WriteString(fmt.Sprintf("Avg signal strength: %.2f\n", s.Signals.AvgStrength))
	writeCounts(&b, "By type", s.Signals.ByType)
	writeCounts(&b, "By symbol", s.Signals.BySymbol)

	b.WriteString("\n<b>Market</b>\n")
	b.WriteString(fmt.Sprintf("Analyzed: %d records\n", s.Market.RecordsAnalyzed))
	b.WriteString(fmt.Sprintf("Opportunities: %d\n", s.Market.TradingOpportunities))
	b.WriteString(fmt.Sprintf("Avg trend strength: %.2f\n", s.Market.AvgTrendStrength))
	writeCounts(&b, "Trends", s.Market.TrendDistribution)
	writeCounts(&b, "Volatility", s.Market.VolatilityDistribution)
	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("\n" + title + ":\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("- %s: %d\n", html.EscapeString(k), counts[k]))
	}
}

// FormatAnalysis renders the current analysis of every symbol together with
// its active signals.
func FormatAnalysis(symbols []string, results map[string]*model.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("📈 <b>Current market analysis</b>\n")
	for _, sym := range symbols {
		res, ok := results[sym]
		if !ok || res == nil {
			b.WriteString(fmt.Sprintf("\n%s: analysis failed\n", html.EscapeString(sym)))
			continue
		}
		b.WriteString(fmt.Sprintf("\n%s <b>%s</b> %.2f\nTrend: %s (%.2f) | RSI: %.1f\n",
			trendEmoji(res.Context.Trend), html.EscapeString(sym), res.LatestPrice,
			res.Context.Trend, res.Context.Strength, res.Indicators.RSI))
		if len(res.Signals) == 0 {
			b.WriteString("No active signals\n")
			continue
		}
		for _, s := range res.Signals {
			b.WriteString(fmt.Sprintf("%s - %s: entry %.4f, SL %.4f, TP %.4f\n",
				strings.ToUpper(string(s.Type)), html.EscapeString(s.Reason), s.Entry, s.StopLoss, s.TakeProfit))
		}
	}
	return b.String()
}

func trendEmoji(t model.Trend) string {
	switch t {
	case model.TrendUp:
		return "↗️"
	case model.TrendDown:
		return "↘️"
	default:
		return "↔️"
	}
}

// FormatSymbols lists tracked symbols with their latest analysis. A missing
// result is shown as an analysis error.
func FormatSymbols(symbols []string, results map[string]*model.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("📈 <b>Tracked pairs</b>\n")
	for _, sym := range symbols {
		res, ok := results[sym]
		if !ok || res == nil {
			b.WriteString(fmt.Sprintf("\n%s - analysis failed\n", html.EscapeString(sym)))
			continue
		}
		suitable := "❌"
		if res.Context.SuitableForTrading {
			suitable = "✅"
		}
		b.WriteString(fmt.Sprintf("\n%s %s\n   Price: %.2f\n   Trend: %s\n   Tradable: %s\n",
			trendEmoji(res.Context.Trend), html.EscapeString(sym), res.LatestPrice, res.Context.Trend, suitable))
	}
	return b.String()
}
