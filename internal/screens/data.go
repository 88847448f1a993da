package screens

import (
	"context"

	"github.com/reflecta/reflecta/internal/models"
)

// Copy shown by the data screens.
const (
	WeeklyErrorFallback   = "Failed to load weekly summary"
	InsightsErrorFallback = "Failed to load insights"
	WeeklyEmptyTitle      = "No mood data yet"
	WeeklyEmptyBody       = "Start checking in daily to see your mood trends visualized here."
	InsightFallback       = "Keep reflecting to unlock personalized insights about your mood patterns."
	InsightsEmptyBody     = "Your weekly rhythm appears after a few check-ins."
)

// WeeklySource fetches the weekly summary.
type WeeklySource interface {
	WeeklySummary(ctx context.Context) (models.WeeklySummary, error)
}

// InsightsSource fetches the insights view.
type InsightsSource interface {
	Insights(ctx context.Context) (models.Insights, error)
}

// Options carries the optional hooks shared by the data screens.
type Options[T any] struct {
	OnChange func(State[T])
	Session  SessionObserver
}

// NewWeeklyScreen builds the weekly summary loader. An empty weeklyData
// renders the empty state rather than an error.
func NewWeeklyScreen(src WeeklySource, opts Options[models.WeeklySummary]) *Loader[models.WeeklySummary] {
	return NewLoader(LoaderConfig[models.WeeklySummary]{
		Fetch:           src.WeeklySummary,
		IsEmpty:         models.WeeklySummary.Empty,
		FallbackMessage: WeeklyErrorFallback,
		OnChange:        opts.OnChange,
		Session:         opts.Session,
	})
}

// NewInsightsScreen builds the insights loader. An empty moodDistribution
// renders the empty state rather than an error.
func NewInsightsScreen(src InsightsSource, opts Options[models.Insights]) *Loader[models.Insights] {
	return NewLoader(LoaderConfig[models.Insights]{
		Fetch:           src.Insights,
		IsEmpty:         models.Insights.Empty,
		FallbackMessage: InsightsErrorFallback,
		OnChange:        opts.OnChange,
		Session:         opts.Session,
	})
}

// InsightText returns the summary insight or the prompt shown when none exists yet.
func InsightText(summary models.WeeklySummary) string {
	if summary.Insight != "" {
		return summary.Insight
	}
	return InsightFallback
}
