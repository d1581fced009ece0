package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/amirk1998/secure-journal/internal/events"
	"github.com/amirk1998/secure-journal/internal/models"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

var trackerTopics = []events.Topic{events.TopicTrackers}

// TrackerStore persists goals, habits and achievements
type TrackerStore struct {
	b *Backend
}

func NewTrackerStore(b *Backend) *TrackerStore {
	return &TrackerStore{b: b}
}

// CreateGoal adds a goal. A target below one is raised to one.
func (s *TrackerStore) CreateGoal(ctx context.Context, g *models.Goal) (int64, error) {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return 0, fmt.Errorf("%w: goal title is required", apperrors.ErrInvalidInput)
	}
	if g.Target < 1 {
		g.Target = 1
	}

	now := s.b.now()
	g.CreatedAt, g.UpdatedAt = now, now
	g.Completed = g.Progress >= g.Target

	err := s.b.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO goals (title, description, target, progress, completed, deadline, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, g.Title, g.Description, g.Target, g.Progress, g.Completed, nullMillis(g.Deadline), toMillis(now), toMillis(now))
		if err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}
		g.ID, err = result.LastInsertId()
		return err
	}, trackerTopics...)
	if err != nil {
		return 0, err
	}
	return g.ID, nil
}

// AddProgress moves a goal forward by delta and marks it completed once the
// target is reached. Progress never drops below zero.
func (s *TrackerStore) AddProgress(ctx context.Context, id int64, delta int) (*models.Goal, error) {
	err := s.b.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE goals SET
				progress = MAX(progress + ?, 0),
				completed = (MAX(progress + ?, 0) >= target),
				updated_at = ?
			WHERE id = ?
		`, delta, delta, toMillis(s.b.now()), id)
		if err != nil {
			return fmt.Errorf("failed to update goal: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("goal %d: %w", id, apperrors.ErrNotFound)
		}
		return nil
	}, trackerTopics...)
	if err != nil {
		return nil, err
	}
	return s.GetGoal(ctx, id)
}

func (s *TrackerStore) GetGoal(ctx context.Context, id int64) (*models.Goal, error) {
	row := s.b.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("goal %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return &g, nil
}

// ListGoals returns open goals first, then by deadline
func (s *TrackerStore) ListGoals(ctx context.Context) ([]models.Goal, error) {
	rows, err := s.b.db.QueryContext(ctx, `
		SELECT `+goalColumns+` FROM goals
		ORDER BY completed, deadline IS NULL, deadline, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	goals := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *TrackerStore) DeleteGoal(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "goals", id)
}

// CreateHabit adds a habit with an empty streak
func (s *TrackerStore) CreateHabit(ctx context.Context, h *models.Habit) (int64, error) {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return 0, fmt.Errorf("%w: habit name is required", apperrors.ErrInvalidInput)
	}
	if h.Frequency == "" {
		h.Frequency = models.HabitDaily
	}
	if h.Frequency != models.HabitDaily && h.Frequency != models.HabitWeekly {
		return 0, fmt.Errorf("%w: unknown habit frequency %q", apperrors.ErrInvalidInput, h.Frequency)
	}

	h.CreatedAt = s.b.now()
	h.CurrentStreak, h.BestStreak, h.LastCompletedAt = 0, 0, nil

	err := s.b.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO habits (name, frequency, created_at) VALUES (?, ?, ?)`,
			h.Name, string(h.Frequency), toMillis(h.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to create habit: %w", err)
		}
		h.ID, err = result.LastInsertId()
		return err
	}, trackerTopics...)
	if err != nil {
		return 0, err
	}
	return h.ID, nil
}

// CompleteHabit records a completion at the given time and updates the streak
func (s *TrackerStore) CompleteHabit(ctx context.Context, id int64, at time.Time) (*models.Habit, error) {
	var h models.Habit
	err := s.b.write(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id)
		var err error
		h, err = scanHabit(row)
		if err == sql.ErrNoRows {
			return fmt.Errorf("habit %d: %w", id, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get habit: %w", err)
		}

		advanceStreak(&h, normalizeTime(at))

		_, err = tx.ExecContext(ctx,
			`UPDATE habits SET current_streak = ?, best_streak = ?, last_completed_at = ? WHERE id = ?`,
			h.CurrentStreak, h.BestStreak, nullMillis(h.LastCompletedAt), id)
		if err != nil {
			return fmt.Errorf("failed to update habit: %w", err)
		}
		return nil
	}, trackerTopics...)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *TrackerStore) ListHabits(ctx context.Context) ([]models.Habit, error) {
	rows, err := s.b.db.QueryContext(ctx, `SELECT `+habitColumns+` FROM habits ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *TrackerStore) DeleteHabit(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "habits", id)
}

// advanceStreak applies one completion. Completing twice in the same period
// changes nothing; skipping a period restarts the streak.
func advanceStreak(h *models.Habit, at time.Time) {
	period := func(t time.Time) int {
		day := int(t.Unix() / 86400)
		if h.Frequency == models.HabitWeekly {
			// epoch day 0 is a Thursday; shift so weeks start on Monday
			return (day + 3) / 7
		}
		return day
	}

	if h.LastCompletedAt != nil {
		last := period(*h.LastCompletedAt)
		now := period(at)
		switch {
		case now == last:
			return
		case now == last+1:
			h.CurrentStreak++
		case now < last:
			return
		default:
			h.CurrentStreak = 1
		}
	} else {
		h.CurrentStreak = 1
	}

	if h.CurrentStreak > h.BestStreak {
		h.BestStreak = h.CurrentStreak
	}
	h.LastCompletedAt = &at
}

// UnlockAchievement records an achievement once. It reports whether this
// call was the one that unlocked it.
func (s *TrackerStore) UnlockAchievement(ctx context.Context, a models.Achievement) (bool, error) {
	if strings.TrimSpace(a.Code) == "" {
		return false, fmt.Errorf("%w: achievement code is required", apperrors.ErrInvalidInput)
	}

	unlocked := false
	err := s.b.write(ctx, func(tx *sql.Tx) error {
		now := toMillis(s.b.now())
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO achievements (code, title, description) VALUES (?, ?, ?)`,
			a.Code, a.Title, a.Description); err != nil {
			return fmt.Errorf("failed to record achievement: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE achievements SET unlocked_at = ? WHERE code = ? AND unlocked_at IS NULL`, now, a.Code)
		if err != nil {
			return fmt.Errorf("failed to unlock achievement: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		unlocked = n > 0
		return nil
	}, trackerTopics...)
	return unlocked, err
}

func (s *TrackerStore) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	rows, err := s.b.db.QueryContext(ctx,
		`SELECT id, code, title, description, unlocked_at FROM achievements ORDER BY unlocked_at, code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	achievements := []models.Achievement{}
	for rows.Next() {
		var (
			a        models.Achievement
			unlocked sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Code, &a.Title, &a.Description, &unlocked); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.UnlockedAt = timePtr(unlocked)
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

func (s *TrackerStore) Observe(ctx context.Context) *Stream[[]models.Goal] {
	return watch(ctx, s.b, trackerTopics, s.ListGoals)
}

func (s *TrackerStore) deleteRow(ctx context.Context, table string, id int64) error {
	return s.b.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s %d: %w", strings.TrimSuffix(table, "s"), id, apperrors.ErrNotFound)
		}
		return nil
	}, trackerTopics...)
}

const goalColumns = `id, title, description, target, progress, completed, deadline, created_at, updated_at`

func scanGoal(s scanner) (models.Goal, error) {
	var (
		g                    models.Goal
		deadline             sql.NullInt64
		createdAt, updatedAt int64
	)
	err := s.Scan(&g.ID, &g.Title, &g.Description, &g.Target, &g.Progress, &g.Completed,
		&deadline, &createdAt, &updatedAt)
	if err != nil {
		return g, err
	}
	g.Deadline = timePtr(deadline)
	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	return g, nil
}

const habitColumns = `id, name, frequency, current_streak, best_streak, last_completed_at, created_at`

func scanHabit(s scanner) (models.Habit, error) {
	var (
		h         models.Habit
		frequency string
		last      sql.NullInt64
		createdAt int64
	)
	err := s.Scan(&h.ID, &h.Name, &frequency, &h.CurrentStreak, &h.BestStreak, &last, &createdAt)
	if err != nil {
		return h, err
	}
	h.Frequency = models.HabitFrequency(frequency)
	h.LastCompletedAt = timePtr(last)
	h.CreatedAt = fromMillis(createdAt)
	return h, nil
}
