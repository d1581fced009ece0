package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amirk1998/secure-journal/internal/events"
	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/internal/security"
	apperrors "github.com/amirk1998/secure-journal/pkg/errors"
)

const entryColumns = `
	e.id, e.title, e.content, e.created_at, e.updated_at,
	e.mood_id, e.mood_label, e.mood_level,
	e.prompt_id, e.prompt_title, e.prompt_description,
	e.tags_json, e.secondary_emotions, e.factors,
	e.is_pinned, e.is_favorite, e.is_encrypted, e.is_synced,
	e.location_lat, e.location_lon, e.location_name,
	e.weather_temp, e.weather_condition`

// entryTopics are the tables an entry write may touch
var entryTopics = []events.Topic{events.TopicEntries, events.TopicTags, events.TopicMedia}

type EntryStore struct {
	b      *Backend
	cipher *security.Cipher
	media  *MediaVault
}

// NewEntryStore creates a new entry store
func NewEntryStore(b *Backend, cipher *security.Cipher, media *MediaVault) *EntryStore {
	return &EntryStore{b: b, cipher: cipher, media: media}
}

// Insert creates an entry and returns its id. The mood label and level are
// copied from the catalog so later catalog edits do not rewrite history.
func (s *EntryStore) Insert(ctx context.Context, e *models.Entry) (int64, error) {
	if e.MoodID == 0 {
		return 0, fmt.Errorf("%w: entry requires a mood", apperrors.ErrInvalidInput)
	}

	now := s.b.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.CreatedAt = normalizeTime(e.CreatedAt)
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	e.UpdatedAt = normalizeTime(e.UpdatedAt)
	e.Tags = cleanLabels(e.Tags)

	title, content, err := s.sealFields(ctx, e)
	if err != nil {
		return 0, err
	}
	seals, err := s.prepareMedia(ctx, 0, e)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.b.write(ctx, func(tx *sql.Tx) error {
		label, level, err := snapshotMood(ctx, tx, e.MoodID)
		if err != nil {
			return err
		}
		e.MoodLabel, e.MoodLevel = label, level

		args := append(entryArgs(e, title, content), toMillis(e.CreatedAt))
		result, err := tx.ExecContext(ctx, `
			INSERT INTO journal_entries (
				title, content, updated_at, mood_id, mood_label, mood_level,
				prompt_id, prompt_title, prompt_description,
				tags_json, tags_flat, secondary_emotions, factors,
				is_pinned, is_favorite, is_encrypted, is_synced,
				location_lat, location_lon, location_name, weather_temp, weather_condition,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get entry ID: %w", err)
		}

		if err := syncEntryTags(ctx, tx, id, e.Tags, now); err != nil {
			return err
		}
		if err := applySeals(ctx, tx, id, seals); err != nil {
			return err
		}
		return linkMedia(ctx, tx, id, e.Media)
	}, entryTopics...)
	s.media.finishSeals(seals, err == nil)
	if err != nil {
		return 0, err
	}

	e.ID = id
	e.Media, err = loadMedia(ctx, s.b.db, id)
	return id, err
}

// Update replaces the mutable fields of an existing entry. CreatedAt is kept;
// the mood snapshot is refreshed only when the mood reference changes.
func (s *EntryStore) Update(ctx context.Context, e *models.Entry) error {
	if e.ID == 0 {
		return fmt.Errorf("%w: entry has no id", apperrors.ErrInvalidInput)
	}

	now := s.b.now()
	e.UpdatedAt = now
	e.Tags = cleanLabels(e.Tags)

	title, content, err := s.sealFields(ctx, e)
	if err != nil {
		return err
	}
	seals, err := s.prepareMedia(ctx, e.ID, e)
	if err != nil {
		return err
	}

	err = s.b.write(ctx, func(tx *sql.Tx) error {
		var (
			storedMood sql.NullInt64
			label      string
			level      string
			createdAt  int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT mood_id, mood_label, mood_level, created_at FROM journal_entries WHERE id = ?`, e.ID,
		).Scan(&storedMood, &label, &level, &createdAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("entry %d: %w", e.ID, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}

		e.CreatedAt = fromMillis(createdAt)
		e.MoodLabel, e.MoodLevel = label, models.ParseMoodLevel(level)

		switch {
		case e.MoodID != 0 && e.MoodID != storedMood.Int64:
			label, level, err := snapshotMood(ctx, tx, e.MoodID)
			if err != nil {
				return err
			}
			e.MoodLabel, e.MoodLevel = label, level
		case e.MoodID == 0:
			e.MoodID = storedMood.Int64
		}

		args := append(entryArgs(e, title, content), e.ID)
		_, err = tx.ExecContext(ctx, `
			UPDATE journal_entries SET
				title = ?, content = ?, updated_at = ?, mood_id = ?, mood_label = ?, mood_level = ?,
				prompt_id = ?, prompt_title = ?, prompt_description = ?,
				tags_json = ?, tags_flat = ?, secondary_emotions = ?, factors = ?,
				is_pinned = ?, is_favorite = ?, is_encrypted = ?, is_synced = ?,
				location_lat = ?, location_lon = ?, location_name = ?, weather_temp = ?, weather_condition = ?
			WHERE id = ?
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}

		if err := syncEntryTags(ctx, tx, e.ID, e.Tags, now); err != nil {
			return err
		}

		// attachments dropped from the entry become orphans for the reclaimer
		keep := make([]any, 0, len(e.Media)+1)
		keep = append(keep, e.ID)
		query := `UPDATE media_attachments SET entry_id = NULL WHERE entry_id = ?`
		if len(e.Media) > 0 {
			query += ` AND id NOT IN (` + placeholders(len(e.Media)) + `)`
			for _, m := range e.Media {
				keep = append(keep, m.ID)
			}
		}
		if _, err := tx.ExecContext(ctx, query, keep...); err != nil {
			return fmt.Errorf("failed to release media: %w", err)
		}
		if err := applySeals(ctx, tx, e.ID, seals); err != nil {
			return err
		}
		return linkMedia(ctx, tx, e.ID, e.Media)
	}, entryTopics...)
	s.media.finishSeals(seals, err == nil)
	if err != nil {
		return err
	}

	e.Media, err = loadMedia(ctx, s.b.db, e.ID)
	return err
}

// Delete removes an entry, its tag cross-references and its media
func (s *EntryStore) Delete(ctx context.Context, id int64) error {
	var paths []string
	err := s.b.write(ctx, func(tx *sql.Tx) error {
		media, err := loadMedia(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, m := range media {
			paths = append(paths, m.FilePath)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("entry %d: %w", id, apperrors.ErrNotFound)
		}
		return nil
	}, entryTopics...)
	if err != nil {
		return err
	}

	s.media.removeFiles(paths)
	return nil
}

// GetByID retrieves an entry. A sealed entry that cannot be opened is still
// returned, with DecryptErr set.
func (s *EntryStore) GetByID(ctx context.Context, id int64) (*models.Entry, error) {
	row := s.b.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM journal_entries e WHERE e.id = ?`, id)

	e, title, content, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	if err := s.openFields(ctx, &e, title, content); err != nil {
		return nil, err
	}
	if e.Media, err = loadMedia(ctx, s.b.db, id); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EntryStore) sealFields(ctx context.Context, e *models.Entry) (string, string, error) {
	if !e.IsEncrypted {
		return e.Title, e.Content, nil
	}

	title, err := s.cipher.EncryptString(ctx, e.Title)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt title: %w", err)
	}
	content, err := s.cipher.EncryptString(ctx, e.Content)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt content: %w", err)
	}
	return title, content, nil
}

// prepareMedia writes encrypted copies of the plaintext media an encrypted
// entry lists. Plaintext entries leave their media as it is.
func (s *EntryStore) prepareMedia(ctx context.Context, entryID int64, e *models.Entry) ([]pendingSeal, error) {
	if !e.IsEncrypted || len(e.Media) == 0 {
		return nil, nil
	}
	return s.media.prepareSeals(ctx, entryID, e.Media)
}

// openFields decrypts title and content in place. Authentication failures are
// recorded on the entry; a missing key is returned as a hard error.
func (s *EntryStore) openFields(ctx context.Context, e *models.Entry, title, content string) error {
	if !e.IsEncrypted {
		e.Title, e.Content = title, content
		return nil
	}

	plainTitle, err := s.cipher.DecryptString(ctx, title)
	if err == nil {
		e.Content, err = s.cipher.DecryptString(ctx, content)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyUnavailable) {
			return err
		}
		e.Title, e.Content = "", ""
		e.DecryptErr = fmt.Errorf("entry %d: %w: %w", e.ID, apperrors.ErrDecryptionFailed, err)
		s.b.log.Warn().Int64("entry_id", e.ID).Err(err).Msg("entry could not be decrypted")
		return nil
	}

	e.Title = plainTitle
	return nil
}

func snapshotMood(ctx context.Context, tx *sql.Tx, moodID int64) (string, models.MoodLevel, error) {
	var label, level string
	err := tx.QueryRowContext(ctx, `SELECT label, level FROM moods WHERE id = ?`, moodID).Scan(&label, &level)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("%w: mood %d does not exist", apperrors.ErrConstraintViolation, moodID)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve mood: %w", err)
	}
	return label, models.ParseMoodLevel(level), nil
}

// entryArgs returns the column values shared by insert and update, in the
// order both statements list them
func entryArgs(e *models.Entry, title, content string) []any {
	var (
		promptID    sql.NullInt64
		promptTitle string
		promptDesc  string
		lat, lon    sql.NullFloat64
		place       sql.NullString
		temp        sql.NullFloat64
		condition   sql.NullString
	)
	if e.Prompt != nil {
		promptID = sql.NullInt64{Int64: e.Prompt.ID, Valid: true}
		promptTitle, promptDesc = e.Prompt.Title, e.Prompt.Description
	}
	if e.Location != nil {
		lat = sql.NullFloat64{Float64: e.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: e.Location.Longitude, Valid: true}
		place = sql.NullString{String: e.Location.Name, Valid: true}
	}
	if e.Weather != nil {
		temp = sql.NullFloat64{Float64: e.Weather.TemperatureC, Valid: true}
		condition = sql.NullString{String: e.Weather.Condition, Valid: true}
	}

	return []any{
		title, content, toMillis(e.UpdatedAt),
		sql.NullInt64{Int64: e.MoodID, Valid: e.MoodID != 0}, e.MoodLabel, string(e.MoodLevel),
		promptID, promptTitle, promptDesc,
		encodeList(e.Tags), flattenTags(e.Tags), encodeList(e.SecondaryEmotions), encodeList(e.Factors),
		e.IsPinned, e.IsFavorite, e.IsEncrypted, e.IsSynced,
		lat, lon, place, temp, condition,
	}
}

// scanEntry reads one row selected with entryColumns. Title and content are
// returned raw so the caller can open sealed values.
func scanEntry(s scanner) (models.Entry, string, string, error) {
	var (
		e                       models.Entry
		title, content          string
		createdAt, updatedAt    int64
		moodID                  sql.NullInt64
		moodLevel               string
		promptID                sql.NullInt64
		promptTitle, promptDesc string
		tags, emotions, factors string
		lat, lon, temp          sql.NullFloat64
		place, condition        sql.NullString
	)

	err := s.Scan(
		&e.ID, &title, &content, &createdAt, &updatedAt,
		&moodID, &e.MoodLabel, &moodLevel,
		&promptID, &promptTitle, &promptDesc,
		&tags, &emotions, &factors,
		&e.IsPinned, &e.IsFavorite, &e.IsEncrypted, &e.IsSynced,
		&lat, &lon, &place,
		&temp, &condition,
	)
	if err != nil {
		return e, "", "", err
	}

	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	e.MoodID = moodID.Int64
	e.MoodLevel = models.ParseMoodLevel(moodLevel)
	e.Tags = decodeList(tags)
	e.SecondaryEmotions = decodeList(emotions)
	e.Factors = decodeList(factors)
	e.Media = []models.MediaAttachment{}

	if promptID.Valid {
		e.Prompt = &models.PromptRef{ID: promptID.Int64, Title: promptTitle, Description: promptDesc}
	}
	if lat.Valid && lon.Valid {
		e.Location = &models.Location{Latitude: lat.Float64, Longitude: lon.Float64, Name: place.String}
	}
	if temp.Valid || condition.Valid {
		e.Weather = &models.Weather{TemperatureC: temp.Float64, Condition: condition.String}
	}

	return e, title, content, nil
}

// syncEntryTags makes the cross-references match labels, adding unknown
// labels to the catalog
func syncEntryTags(ctx context.Context, tx *sql.Tx, entryID int64, labels []string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to clear entry tags: %w", err)
	}

	for _, label := range labels {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (label, created_at) VALUES (?, ?)`, label, toMillis(now)); err != nil {
			return fmt.Errorf("failed to add tag: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO entry_tags (entry_id, tag_id)
			SELECT ?, id FROM tags WHERE label = ?
		`, entryID, label); err != nil {
			return fmt.Errorf("failed to link tag: %w", err)
		}
	}
	return nil
}

// linkMedia assigns attachments to an entry. An attachment owned by another
// entry is a constraint violation.
func linkMedia(ctx context.Context, tx *sql.Tx, entryID int64, media []models.MediaAttachment) error {
	for _, m := range media {
		result, err := tx.ExecContext(ctx,
			`UPDATE media_attachments SET entry_id = ? WHERE id = ? AND (entry_id IS NULL OR entry_id = ?)`,
			entryID, m.ID, entryID)
		if err != nil {
			return fmt.Errorf("failed to link media: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if n > 0 {
			continue
		}

		var owner sql.NullInt64
		err = tx.QueryRowContext(ctx, `SELECT entry_id FROM media_attachments WHERE id = ?`, m.ID).Scan(&owner)
		if err == sql.ErrNoRows {
			return fmt.Errorf("media %s: %w", m.ID, apperrors.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check media: %w", err)
		}
		return fmt.Errorf("%w: media %s belongs to entry %d", apperrors.ErrConstraintViolation, m.ID, owner.Int64)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

// Count returns the number of stored entries
func (s *EntryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}
