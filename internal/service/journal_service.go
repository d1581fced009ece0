package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/internal/store"
	"github.com/amirk1998/secure-journal/pkg/validator"
)

// Hooks receive entry lifecycle events after the write has committed.
// Their errors are logged and never reach the caller.
type Hooks interface {
	EntryCreated(ctx context.Context, e models.Entry) error
	EntryDeleted(ctx context.Context, id int64) error
}

type JournalService struct {
	entries   *store.EntryStore
	moods     *store.MoodStore
	tags      *store.TagStore
	validator *validator.Validator
	hooks     []Hooks
	log       zerolog.Logger
}

// NewJournalService creates a new journal service
func NewJournalService(
	entries *store.EntryStore,
	moods *store.MoodStore,
	tags *store.TagStore,
	log zerolog.Logger,
	hooks ...Hooks,
) *JournalService {
	return &JournalService{
		entries:   entries,
		moods:     moods,
		tags:      tags,
		validator: validator.New(),
		hooks:     hooks,
		log:       log,
	}
}

// Create validates and stores a new entry
func (s *JournalService) Create(ctx context.Context, e *models.Entry) (*models.Entry, error) {
	if err := s.validator.ValidateEntry(e); err != nil {
		s.log.Debug().Err(err).Msg("entry rejected")
		return nil, err
	}

	if _, err := s.entries.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	s.log.Info().Int64("entry_id", e.ID).Bool("encrypted", e.IsEncrypted).Msg("entry created")

	for _, h := range s.hooks {
		if err := h.EntryCreated(ctx, *e); err != nil {
			s.log.Warn().Err(err).Int64("entry_id", e.ID).Msg("entry created hook failed")
		}
	}

	return e, nil
}

// Update validates and saves an edited entry
func (s *JournalService) Update(ctx context.Context, e *models.Entry) error {
	if err := s.validator.ValidateEntry(e); err != nil {
		return err
	}

	if err := s.entries.Update(ctx, e); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	s.log.Info().Int64("entry_id", e.ID).Msg("entry updated")
	return nil
}

// Delete removes an entry together with its media
func (s *JournalService) Delete(ctx context.Context, id int64) error {
	if err := s.entries.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	s.log.Info().Int64("entry_id", id).Msg("entry deleted")

	for _, h := range s.hooks {
		if err := h.EntryDeleted(ctx, id); err != nil {
			s.log.Warn().Err(err).Int64("entry_id", id).Msg("entry deleted hook failed")
		}
	}

	return nil
}

func (s *JournalService) Get(ctx context.Context, id int64) (*models.Entry, error) {
	return s.entries.GetByID(ctx, id)
}

func (s *JournalService) Search(ctx context.Context, c models.Criteria) ([]models.Entry, error) {
	return s.entries.Query(ctx, c)
}

// Watch returns a live search; the caller must Close it
func (s *JournalService) Watch(ctx context.Context, c models.Criteria) *store.Stream[[]models.Entry] {
	return s.entries.Search(ctx, c)
}

// SaveMood validates and upserts a catalog mood
func (s *JournalService) SaveMood(ctx context.Context, m *models.Mood) (int64, error) {
	if err := s.validator.ValidateMood(m); err != nil {
		return 0, err
	}
	return s.moods.Upsert(ctx, m)
}

// SaveTag validates and upserts a catalog tag
func (s *JournalService) SaveTag(ctx context.Context, t *models.Tag) (int64, error) {
	t.Label = s.validator.SanitizeString(t.Label)
	if err := s.validator.ValidateLabel(t.Label); err != nil {
		return 0, err
	}
	return s.tags.Upsert(ctx, t)
}
