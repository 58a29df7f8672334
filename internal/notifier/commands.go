package notifier

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"SignalSentinel/internal/model"
)

// Subscribers is the part of the subscriber set the commands mutate.
type Subscribers interface {
	Add(ctx context.Context, chatID int64) bool
	Remove(ctx context.Context, chatID int64) bool
}

// StatusProvider reports the scheduler status.
type StatusProvider interface {
	Status(ctx context.Context) model.SchedulerStatus
}

// StatsProvider answers /stats from the analytics sink.
type StatsProvider interface {
	QueryRecentStats(ctx context.Context, days int) (*model.RecentStats, error)
}

// Bounds of the /stats period in days.
const (
	DefaultStatsDays = 1
	MaxStatsDays     = 90
)

// Analyzer runs an on-demand analysis for /symbols and /analysis.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (*model.AnalysisResult, bool)
}

// Router dispatches chat commands. Analyzer may be nil, in which case
// /symbols only lists the configured pairs. Stats may be nil.
type Router struct {
	Subscribers Subscribers
	Status      StatusProvider
	Stats       StatsProvider
	Analyzer    Analyzer
	Symbols     []string
}

// Handle implements CommandHandler.
func (r *Router) Handle(ctx context.Context, cmd Command) string {
	switch commandName(cmd.Text) {
	case "/start":
		if r.Subscribers.Add(ctx, cmd.ChatID) {
			return "✅ Subscribed to signals.\n\n" + HelpText
		}
		return "You are already subscribed."
	case "/stop":
		r.Subscribers.Remove(ctx, cmd.ChatID)
		return "You have unsubscribed. Use /start to subscribe again."
	case "/status":
		return FormatStatus(r.Status.Status(ctx))
	case "/stats":
		return r.stats(ctx, cmd.Text)
	case "/symbols":
		if r.Analyzer == nil {
			return "📈 Tracked pairs: " + strings.Join(r.Symbols, ", ")
		}
		return FormatSymbols(r.Symbols, r.analyzeAll(ctx))
	case "/analysis":
		if r.Analyzer == nil {
			return "Analysis is not available."
		}
		return FormatAnalysis(r.Symbols, r.analyzeAll(ctx))
	default:
		return HelpText
	}
}

func (r *Router) analyzeAll(ctx context.Context) map[string]*model.AnalysisResult {
	results := make(map[string]*model.AnalysisResult, len(r.Symbols))
	for _, sym := range r.Symbols {
		if res, ok := r.Analyzer.Analyze(ctx, sym); ok {
			results[sym] = res
		}
	}
	return results
}

func (r *Router) stats(ctx context.Context, text string) string {
	if r.Stats == nil {
		return "Statistics are not available."
	}
	days := DefaultStatsDays
	if fields := strings.Fields(text); len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return "Usage: /stats [days], days between 1 and " + strconv.Itoa(MaxStatsDays)
		}
		days = min(n, MaxStatsDays)
	}
	st, err := r.Stats.QueryRecentStats(ctx, days)
	if err != nil {
		log.Error().Err(err).Int("days", days).Msg("query stats for /stats")
		return "❗ Statistics are temporarily unavailable."
	}
	return FormatStats(st)
}

// commandName extracts "/cmd" from "/cmd@BotName args".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}
