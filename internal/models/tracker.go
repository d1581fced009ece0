package models

import "time"

type Goal struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Target      int        `json:"target"`
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type HabitFrequency string

const (
	HabitDaily  HabitFrequency = "DAILY"
	HabitWeekly HabitFrequency = "WEEKLY"
)

type Habit struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Frequency       HabitFrequency `json:"frequency"`
	CurrentStreak   int            `json:"current_streak"`
	BestStreak      int            `json:"best_streak"`
	LastCompletedAt *time.Time     `json:"last_completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type Achievement struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}
