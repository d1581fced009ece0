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

// DefaultTags is the catalog seeded into an empty database
var DefaultTags = []string{"Work", "Family", "Health", "Travel", "Gratitude"}

type TagStore struct {
	b *Backend
}

func NewTagStore(b *Backend) *TagStore {
	return &TagStore{b: b}
}

// SeedDefaults fills an empty catalog and reports how many tags were added
func (s *TagStore) SeedDefaults(ctx context.Context) (int, error) {
	added := 0
	err := s.b.write(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count tags: %w", err)
		}
		if count > 0 {
			return nil
		}

		now := toMillis(s.b.now())
		for _, label := range DefaultTags {
			if _, err := tx.ExecContext(ctx, `INSERT INTO tags (label, created_at) VALUES (?, ?)`, label, now); err != nil {
				return fmt.Errorf("failed to seed tag: %w", err)
			}
			added++
		}
		return nil
	}, events.TopicTags)
	return added, err
}

// Upsert creates or renames a tag. Labels are unique; a rename is carried
// into the tag lists of every entry using the tag.
func (s *TagStore) Upsert(ctx context.Context, t *models.Tag) (int64, error) {
	t.Label = strings.TrimSpace(t.Label)
	if t.Label == "" {
		return 0, fmt.Errorf("%w: tag label is required", apperrors.ErrInvalidInput)
	}

	err := s.b.write(ctx, func(tx *sql.Tx) error {
		if t.ID == 0 {
			t.CreatedAt = s.b.now()
			result, err := tx.ExecContext(ctx,
				`INSERT INTO tags (label, created_at) VALUES (?, ?)`, t.Label, toMillis(t.CreatedAt))
			if err != nil {
				return fmt.Errorf("failed to create tag: %w", err)
			}
			t.ID, err = result.LastInsertId()
			return err
		}

		var old string
		err := tx.QueryRowContext(ctx, `SELECT label FROM tags WHERE id = ?`, t.ID).Scan(&old)
		if err == sql.ErrNoRows {
			return fmt.Errorf("tag %d: %w", t.ID, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get tag: %w", err)
		}
		if old == t.Label {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE tags SET label = ? WHERE id = ?`, t.Label, t.ID); err != nil {
			return fmt.Errorf("failed to rename tag: %w", err)
		}
		return rewriteEntryTags(ctx, tx, t.ID, func(labels []string) []string {
			for i, l := range labels {
				if l == old {
					labels[i] = t.Label
				}
			}
			return cleanLabels(labels)
		})
	}, events.TopicTags, events.TopicEntries)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

// List returns the catalog ordered by label with usage counts
func (s *TagStore) List(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.b.db.QueryContext(ctx, `
		SELECT t.id, t.label, t.created_at, COUNT(et.entry_id)
		FROM tags t
		LEFT JOIN entry_tags et ON et.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.label, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var (
			t         models.Tag
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Label, &createdAt, &t.UsageCount); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		t.CreatedAt = fromMillis(createdAt)
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// Observe streams the catalog; usage counts follow entry writes
func (s *TagStore) Observe(ctx context.Context) *Stream[[]models.Tag] {
	return watch(ctx, s.b, []events.Topic{events.TopicTags, events.TopicEntries}, s.List)
}

// Delete removes a tag, its cross-references and its label from entry tag lists
func (s *TagStore) Delete(ctx context.Context, id int64) error {
	return s.b.write(ctx, func(tx *sql.Tx) error {
		var label string
		err := tx.QueryRowContext(ctx, `SELECT label FROM tags WHERE id = ?`, id).Scan(&label)
		if err == sql.ErrNoRows {
			return fmt.Errorf("tag %d: %w", id, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get tag: %w", err)
		}

		err = rewriteEntryTags(ctx, tx, id, func(labels []string) []string {
			kept := labels[:0]
			for _, l := range labels {
				if l != label {
					kept = append(kept, l)
				}
			}
			return kept
		})
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		return nil
	}, events.TopicTags, events.TopicEntries)
}

// rewriteEntryTags applies fn to the stored tag list of every entry linked to tagID
func rewriteEntryTags(ctx context.Context, tx *sql.Tx, tagID int64, fn func([]string) []string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT e.id, e.tags_json FROM journal_entries e
		JOIN entry_tags et ON et.entry_id = e.id
		WHERE et.tag_id = ?
	`, tagID)
	if err != nil {
		return fmt.Errorf("failed to find tagged entries: %w", err)
	}

	updated := map[int64][]string{}
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan tagged entry: %w", err)
		}
		updated[id] = fn(decodeList(raw))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for id, labels := range updated {
		if _, err := tx.ExecContext(ctx,
			`UPDATE journal_entries SET tags_json = ?, tags_flat = ? WHERE id = ?`,
			encodeList(labels), flattenTags(labels), id); err != nil {
			return fmt.Errorf("failed to rewrite entry tags: %w", err)
		}
	}
	return nil
}
