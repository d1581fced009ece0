package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/amirk1998/secure-journal/internal/events"
	"github.com/amirk1998/secure-journal/internal/models"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

// DefaultMoods is the catalog seeded into an empty database
var DefaultMoods = []models.Mood{
	{Label: "Ecstatic", Level: models.MoodExcellent, Emoji: "🤩", Color: "#FFD700"},
	{Label: "Happy", Level: models.MoodGood, Emoji: "😊", Color: "#4CAF50"},
	{Label: "Calm", Level: models.MoodGood, Emoji: "😌", Color: "#81C784"},
	{Label: "Neutral", Level: models.MoodNeutral, Emoji: "😐", Color: "#9E9E9E"},
	{Label: "Sad", Level: models.MoodPoor, Emoji: "😢", Color: "#64B5F6"},
	{Label: "Anxious", Level: models.MoodPoor, Emoji: "😟", Color: "#FFB74D"},
	{Label: "Awful", Level: models.MoodTerrible, Emoji: "😞", Color: "#E57373"},
}

type MoodStore struct {
	b *Backend
}

func NewMoodStore(b *Backend) *MoodStore {
	return &MoodStore{b: b}
}

// SeedDefaults fills an empty catalog and reports how many moods were added
func (s *MoodStore) SeedDefaults(ctx context.Context) (int, error) {
	added := 0
	err := s.b.write(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM moods`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count moods: %w", err)
		}
		if count > 0 {
			return nil
		}

		now := toMillis(s.b.now())
		for _, m := range DefaultMoods {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO moods (label, level, emoji, color, created_at) VALUES (?, ?, ?, ?, ?)`,
				m.Label, string(m.Level), m.Emoji, m.Color, now); err != nil {
				return fmt.Errorf("failed to seed mood: %w", err)
			}
			added++
		}
		return nil
	}, events.TopicMoods)
	return added, err
}

// Upsert creates the mood when ID is zero and updates it otherwise. Existing
// entries keep the label and level they were written with.
func (s *MoodStore) Upsert(ctx context.Context, m *models.Mood) (int64, error) {
	m.Label = strings.TrimSpace(m.Label)
	if m.Label == "" {
		return 0, fmt.Errorf("%w: mood label is required", apperrors.ErrInvalidInput)
	}
	if !m.Level.Valid() {
		return 0, fmt.Errorf("%w: unknown mood level %q", apperrors.ErrInvalidInput, m.Level)
	}

	err := s.b.write(ctx, func(tx *sql.Tx) error {
		if m.ID == 0 {
			m.CreatedAt = s.b.now()
			result, err := tx.ExecContext(ctx,
				`INSERT INTO moods (label, level, emoji, color, created_at) VALUES (?, ?, ?, ?, ?)`,
				m.Label, string(m.Level), m.Emoji, m.Color, toMillis(m.CreatedAt))
			if err != nil {
				return fmt.Errorf("failed to create mood: %w", err)
			}
			m.ID, err = result.LastInsertId()
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE moods SET label = ?, level = ?, emoji = ?, color = ? WHERE id = ?`,
			m.Label, string(m.Level), m.Emoji, m.Color, m.ID)
		if err != nil {
			return fmt.Errorf("failed to update mood: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("mood %d: %w", m.ID, apperrors.ErrNotFound)
		}
		return nil
	}, events.TopicMoods)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (s *MoodStore) Get(ctx context.Context, id int64) (*models.Mood, error) {
	row := s.b.db.QueryRowContext(ctx,
		`SELECT id, label, level, emoji, color, created_at FROM moods WHERE id = ?`, id)
	m, err := scanMood(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mood %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mood: %w", err)
	}
	return &m, nil
}

// List returns the catalog ordered by label
func (s *MoodStore) List(ctx context.Context) ([]models.Mood, error) {
	rows, err := s.b.db.QueryContext(ctx,
		`SELECT id, label, level, emoji, color, created_at FROM moods ORDER BY label, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}
	defer rows.Close()

	moods := []models.Mood{}
	for rows.Next() {
		m, err := scanMood(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mood: %w", err)
		}
		moods = append(moods, m)
	}
	return moods, rows.Err()
}

func (s *MoodStore) Observe(ctx context.Context) *Stream[[]models.Mood] {
	return watch(ctx, s.b, []events.Topic{events.TopicMoods}, s.List)
}

// Delete removes a mood. Entries that referenced it keep their snapshot.
func (s *MoodStore) Delete(ctx context.Context, id int64) error {
	return s.b.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM moods WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete mood: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("mood %d: %w", id, apperrors.ErrNotFound)
		}
		return nil
	}, events.TopicMoods, events.TopicEntries)
}

func scanMood(s scanner) (models.Mood, error) {
	var (
		m         models.Mood
		level     string
		createdAt int64
	)
	if err := s.Scan(&m.ID, &m.Label, &level, &m.Emoji, &m.Color, &createdAt); err != nil {
		return m, err
	}
	m.Level = models.ParseMoodLevel(level)
	m.CreatedAt = fromMillis(createdAt)
	return m, nil
}
