package models

import "unicode/utf8"

const (
	// MinMood and MaxMood bound the self-reported mood scale.
	MinMood = 1
	MaxMood = 5
	// MaxNoteLength is measured in characters (runes), not bytes.
	MaxNoteLength = 500
)

// Mood describes one entry of the check-in catalog.
type Mood struct {
	ID          int
	Emoji       string
	Label       string
	Description string
}

var moodCatalog = []Mood{
	{ID: 1, Emoji: "✨", Label: "Radiant", Description: "Feeling energized"},
	{ID: 2, Emoji: "🙂", Label: "Calm", Description: "Peaceful and grounded"},
	{ID: 3, Emoji: "🤔", Label: "Pensive", Description: "Thoughtful mood"},
	{ID: 4, Emoji: "🌱", Label: "Content", Description: "Satisfied and ok"},
	{ID: 5, Emoji: "☁️", Label: "Drifting", Description: "Scattered focus"},
}

// Moods returns a copy of the mood catalog ordered by id.
func Moods() []Mood {
	out := make([]Mood, len(moodCatalog))
	copy(out, moodCatalog)
	return out
}

// LookupMood returns the catalog entry for id.
func LookupMood(id int) (Mood, bool) {
	if !ValidMood(id) {
		return Mood{}, false
	}
	return moodCatalog[id-MinMood], true
}

// ValidMood reports whether mood lies in the inclusive range [MinMood, MaxMood].
func ValidMood(mood int) bool {
	return mood >= MinMood && mood <= MaxMood
}

// NoteLength returns the length of note in characters.
func NoteLength(note string) int {
	return utf8.RuneCountInString(note)
}

// ValidNote reports whether note fits within MaxNoteLength characters.
func ValidNote(note string) bool {
	return NoteLength(note) <= MaxNoteLength
}
