package models

import "time"

// User is the profile snapshot returned by the reflection service and cached
// alongside the session token.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the authenticated identity of the current client.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Reflection is a single mood check-in with an optional note.
type Reflection struct {
	ID        string    `json:"id"`
	Mood      int       `json:"mood"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
}

// MoodPoint is one day on the weekly mood chart.
type MoodPoint struct {
	Day  string  `json:"day"`
	Mood float64 `json:"mood"`
}

// WeeklySummary is the server-computed view of the trailing week. The display
// fields are preformatted strings and are rendered as-is.
type WeeklySummary struct {
	WeeklyData  []MoodPoint `json:"weeklyData"`
	DateRange   string      `json:"dateRange,omitempty"`
	AvgMood     string      `json:"avgMood,omitempty"`
	TopEmotion  string      `json:"topEmotion,omitempty"`
	Reflections string      `json:"reflections,omitempty"`
	Streak      string      `json:"streak,omitempty"`
	Insight     string      `json:"insight,omitempty"`
}

// Empty reports whether the summary carries no chart data.
func (s WeeklySummary) Empty() bool {
	return len(s.WeeklyData) == 0
}

// DistributionPoint is one bar of the mood distribution chart.
type DistributionPoint struct {
	Day   string  `json:"day"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// MoodUplift describes the strongest positive correlation found in the
// user's reflections.
type MoodUplift struct {
	Value       string `json:"value"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Insights is the server-computed longer-range view over reflections.
type Insights struct {
	MoodDistribution []DistributionPoint `json:"moodDistribution"`
	MoodUplift       MoodUplift          `json:"moodUplift"`
	AIInsight        string              `json:"aiInsight,omitempty"`
}

// Empty reports whether the insights carry no distribution data.
func (i Insights) Empty() bool {
	return len(i.MoodDistribution) == 0
}

// Account is the reference backend's persisted user record.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile returns the public view of the account.
func (a Account) Profile() User {
	return User{ID: a.ID, Name: a.Name, Email: a.Email}
}
