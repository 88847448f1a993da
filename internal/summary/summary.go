// Package summary computes the weekly and insights views the reference
// backend serves from a user's reflections.
package summary

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/reflecta/reflecta/internal/models"
)

const (
	// WeeklyWindow is the number of calendar days the weekly summary covers, today included.
	WeeklyWindow = 7
	// InsightsWindow is the number of calendar days the insights view covers.
	InsightsWindow = 30

	baseColor      = "#6D5D8B"
	highlightColor = "#C9A24D"
)

// WindowStart returns midnight, in loc, of the first day of a window of days
// calendar days ending on the day containing now.
func WindowStart(now time.Time, loc *time.Location, days int) time.Time {
	today := startOfDay(now.In(loc))
	return today.AddDate(0, 0, -(days - 1))
}

// Weekly aggregates reflections into the weekly summary for the window ending
// on the day containing now. Reflections outside the window only feed the streak.
func Weekly(reflections []models.Reflection, now time.Time, loc *time.Location) models.WeeklySummary {
	if loc == nil {
		loc = time.UTC
	}
	start := WindowStart(now, loc, WeeklyWindow)
	end := start.AddDate(0, 0, WeeklyWindow)

	summary := models.WeeklySummary{
		WeeklyData:  []models.MoodPoint{},
		DateRange:   fmt.Sprintf("%s - %s", start.Format("Jan 2"), end.AddDate(0, 0, -1).Format("Jan 2")),
		Reflections: "0",
	}

	byDay := make(map[time.Time][]int)
	counts := make(map[int]int)
	total, n := 0, 0
	for _, r := range reflections {
		at := r.CreatedAt.In(loc)
		if at.Before(start) || !at.Before(end) {
			continue
		}
		day := startOfDay(at)
		byDay[day] = append(byDay[day], r.Mood)
		counts[r.Mood]++
		total += r.Mood
		n++
	}

	streak := Streak(reflections, now, loc)
	if streak > 0 {
		summary.Streak = plural(streak, "day")
	}
	if n == 0 {
		return summary
	}

	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		moods, ok := byDay[day]
		if !ok {
			continue
		}
		summary.WeeklyData = append(summary.WeeklyData, models.MoodPoint{
			Day:  day.Format("Mon"),
			Mood: round1(average(moods)),
		})
	}

	top := topMood(counts)
	summary.AvgMood = fmt.Sprintf("%.1f", float64(total)/float64(n))
	summary.Reflections = fmt.Sprintf("%d", n)
	if mood, ok := models.LookupMood(top); ok {
		summary.TopEmotion = mood.Label
	}
	summary.Insight = weeklyInsight(n, len(summary.WeeklyData), summary.TopEmotion, streak)
	return summary
}

// Streak counts consecutive calendar days with at least one reflection,
// ending today, or yesterday when nothing has been logged today yet.
func Streak(reflections []models.Reflection, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := make(map[time.Time]struct{}, len(reflections))
	for _, r := range reflections {
		days[startOfDay(r.CreatedAt.In(loc))] = struct{}{}
	}

	cursor := startOfDay(now.In(loc))
	if _, ok := days[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
	}
	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// Insights aggregates reflections from the trailing InsightsWindow days.
func Insights(reflections []models.Reflection, now time.Time, loc *time.Location) models.Insights {
	if loc == nil {
		loc = time.UTC
	}
	start := WindowStart(now, loc, InsightsWindow)

	byWeekday := make(map[time.Weekday][]int)
	var withNote, withoutNote []int
	for _, r := range reflections {
		at := r.CreatedAt.In(loc)
		if at.Before(start) {
			continue
		}
		byWeekday[at.Weekday()] = append(byWeekday[at.Weekday()], r.Mood)
		if strings.TrimSpace(r.Note) != "" {
			withNote = append(withNote, r.Mood)
		} else {
			withoutNote = append(withoutNote, r.Mood)
		}
	}

	insights := models.Insights{
		MoodDistribution: []models.DistributionPoint{},
		MoodUplift:       moodUplift(withNote, withoutNote),
	}
	if len(byWeekday) == 0 {
		return insights
	}

	lowest, highest := -1, -1
	for _, wd := range mondayFirst {
		moods, ok := byWeekday[wd]
		if !ok {
			continue
		}
		point := models.DistributionPoint{
			Day:   wd.String()[:3],
			Value: math.Round(average(moods) / models.MaxMood * 100),
			Color: baseColor,
		}
		insights.MoodDistribution = append(insights.MoodDistribution, point)
		idx := len(insights.MoodDistribution) - 1
		if lowest < 0 || point.Value < insights.MoodDistribution[lowest].Value {
			lowest = idx
		}
		if highest < 0 || point.Value > insights.MoodDistribution[highest].Value {
			highest = idx
		}
	}
	if len(insights.MoodDistribution) > 1 {
		insights.MoodDistribution[lowest].Color = highlightColor
	}

	peak := insights.MoodDistribution[highest].Day
	insights.AIInsight = fmt.Sprintf("Your check-ins score highest on %s. Notice what shapes those days and carry a little of it into the rest of your week.", longDay(peak))
	return insights
}

var mondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func moodUplift(withNote, withoutNote []int) models.MoodUplift {
	if len(withNote) == 0 || len(withoutNote) == 0 {
		return models.MoodUplift{
			Value:       "0%",
			Title:       "Writing and mood",
			Description: "Add a note to some check-ins and skip it on others to see how journaling relates to your mood.",
		}
	}

	noted, plain := average(withNote), average(withoutNote)
	change := math.Round((noted - plain) / plain * 100)
	value := fmt.Sprintf("%+.0f%%", change)
	if change == 0 {
		value = "0%"
	}

	title := "Journaling correlates with higher mood"
	if change < 0 {
		title = "Journaling correlates with lower mood"
	} else if change == 0 {
		title = "Journaling has no visible effect yet"
	}
	return models.MoodUplift{
		Value:       value,
		Title:       title,
		Description: fmt.Sprintf("Check-ins with a written note averaged %.1f, compared with %.1f for mood-only check-ins.", noted, plain),
	}
}

func weeklyInsight(count, days int, topEmotion string, streak int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You checked in %s across %s this week", plural(count, "time"), plural(days, "day"))
	if topEmotion != "" {
		fmt.Fprintf(&b, ", most often feeling %s", strings.ToLower(topEmotion))
	}
	b.WriteString(".")
	if streak > 1 {
		fmt.Fprintf(&b, " You're on a %d-day streak.", streak)
	}
	return b.String()
}

// topMood returns the most frequent mood; ties go to the lower id.
func topMood(counts map[int]int) int {
	top, best := 0, 0
	for mood := models.MinMood; mood <= models.MaxMood; mood++ {
		if counts[mood] > best {
			top, best = mood, counts[mood]
		}
	}
	return top
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func average(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func longDay(short string) string {
	for _, wd := range mondayFirst {
		if wd.String()[:3] == short {
			return wd.String() + "s"
		}
	}
	return short
}
