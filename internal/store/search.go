package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirk1998/secure-journal/internal/models"
)

// buildSearchQuery turns criteria into SQL. Text is not part of it: every
// row is matched after decryption with the same case folding.
func buildSearchQuery(c models.Criteria) (string, []any) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries e WHERE 1 = 1`
	var args []any

	if c.Start != nil {
		query += ` AND e.created_at >= ?`
		args = append(args, toMillis(*c.Start))
	}

	if c.End != nil {
		query += ` AND e.created_at <= ?`
		args = append(args, toMillis(*c.End))
	}

	if len(c.MoodLevels) > 0 {
		// stored levels are read leniently, so an unknown one counts as NEUTRAL
		level := `UPPER(TRIM(e.mood_level))`
		cond := level + ` IN (` + placeholders(len(c.MoodLevels)) + `)`
		neutral := false
		for _, l := range c.MoodLevels {
			l = models.ParseMoodLevel(string(l))
			neutral = neutral || l == models.MoodNeutral
			args = append(args, string(l))
		}
		if neutral {
			cond += ` OR ` + level + ` NOT IN (` + placeholders(len(models.MoodLevels)) + `)`
			for _, l := range models.MoodLevels {
				args = append(args, string(l))
			}
		}
		query += ` AND (` + cond + `)`
	}

	if c.HasMedia != nil {
		exists := `EXISTS (SELECT 1 FROM media_attachments m WHERE m.entry_id = e.id)`
		if *c.HasMedia {
			query += ` AND ` + exists
		} else {
			query += ` AND NOT ` + exists
		}
	}

	if c.Tags != "" {
		query += ` AND e.tags_flat LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(c.Tags))
	}

	if c.Pinned != nil {
		query += ` AND e.is_pinned = ?`
		args = append(args, *c.Pinned)
	}

	if c.Favorite != nil {
		query += ` AND e.is_favorite = ?`
		args = append(args, *c.Favorite)
	}

	query += ` ORDER BY e.created_at DESC, e.id DESC`
	if c.Text == "" && c.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, c.Limit)
	}
	return query, args
}

// Query runs a one-shot search, newest first
func (s *EntryStore) Query(ctx context.Context, c models.Criteria) ([]models.Entry, error) {
	query, args := buildSearchQuery(c)

	rows, err := s.b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}

	type rawEntry struct {
		entry          models.Entry
		title, content string
	}
	var raw []rawEntry
	for rows.Next() {
		e, title, content, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		raw = append(raw, rawEntry{entry: e, title: title, content: content})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	needle := strings.ToLower(c.Text)
	entries := make([]models.Entry, 0, len(raw))
	for _, r := range raw {
		e := r.entry
		if err := s.openFields(ctx, &e, r.title, r.content); err != nil {
			return nil, err
		}

		if needle != "" {
			// an unreadable entry cannot be shown to match
			if e.DecryptErr != nil || !containsFold(e.Title, e.Content, needle) {
				continue
			}
		}

		if e.Media, err = loadMedia(ctx, s.b.db, e.ID); err != nil {
			return nil, err
		}
		entries = append(entries, e)

		if c.Limit > 0 && len(entries) == c.Limit {
			break
		}
	}

	return entries, nil
}

// Search returns a live query that re-emits matching entries after every
// committed change to entries, tags or media
func (s *EntryStore) Search(ctx context.Context, c models.Criteria) *Stream[[]models.Entry] {
	return watch(ctx, s.b, entryTopics, func(ctx context.Context) ([]models.Entry, error) {
		return s.Query(ctx, c)
	})
}

// ObserveAll streams every entry, newest first
func (s *EntryStore) ObserveAll(ctx context.Context) *Stream[[]models.Entry] {
	return s.Search(ctx, models.Criteria{})
}

func containsFold(title, content, needle string) bool {
	return strings.Contains(strings.ToLower(title), needle) ||
		strings.Contains(strings.ToLower(content), needle)
}
