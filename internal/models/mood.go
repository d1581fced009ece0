package models

import (
	"strings"
	"time"
)

// MoodLevel is the coarse, ordered sentiment bucket snapshotted on every entry.
type MoodLevel string

const (
	MoodExcellent MoodLevel = "EXCELLENT"
	MoodGood      MoodLevel = "GOOD"
	MoodNeutral   MoodLevel = "NEUTRAL"
	MoodPoor      MoodLevel = "POOR"
	MoodTerrible  MoodLevel = "TERRIBLE"
)

// MoodLevels lists the closed set from best to worst
var MoodLevels = []MoodLevel{MoodExcellent, MoodGood, MoodNeutral, MoodPoor, MoodTerrible}

// ParseMoodLevel is lenient: unknown values fall back to NEUTRAL.
func ParseMoodLevel(s string) MoodLevel {
	lvl := MoodLevel(strings.ToUpper(strings.TrimSpace(s)))
	if lvl.Valid() {
		return lvl
	}
	return MoodNeutral
}

func (l MoodLevel) Valid() bool {
	switch l {
	case MoodExcellent, MoodGood, MoodNeutral, MoodPoor, MoodTerrible:
		return true
	}
	return false
}

// Score orders levels: EXCELLENT=5 ... TERRIBLE=1, 0 for anything else
func (l MoodLevel) Score() int {
	switch l {
	case MoodExcellent:
		return 5
	case MoodGood:
		return 4
	case MoodNeutral:
		return 3
	case MoodPoor:
		return 2
	case MoodTerrible:
		return 1
	}
	return 0
}

type Mood struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Level     MoodLevel `json:"level"`
	Emoji     string    `json:"emoji"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}
