package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/amirk1998/secure-journal/internal/models"
	"github.com/amirk1998/secure-journal/pkg/errors"
)

const (
	maxTitleLen   = 255
	maxContentLen = 1048576 // 1MB
	maxLabelLen   = 50
	maxListItems  = 20
)

var (
	// Labels end up in comma-joined and pipe-joined strings, so neither may appear
	labelRegex = regexp.MustCompile(`^[^,|\x00-\x1f]+$`)

	// Mood colors are stored as #RRGGBB
	colorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// SanitizeString removes null bytes and surrounding whitespace
func (v *Validator) SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// ValidateEntryTitle validates entry title
func (v *Validator) ValidateEntryTitle(title string) error {
	title = strings.TrimSpace(title)

	if len(title) == 0 {
		return errors.NewAppError(errors.ErrInvalidInput, "title cannot be empty", 400)
	}

	if utf8.RuneCountInString(title) > maxTitleLen {
		return errors.NewAppError(errors.ErrInvalidInput, "title too long (max 255 characters)", 400)
	}

	return nil
}

// ValidateEntryContent validates entry content
func (v *Validator) ValidateEntryContent(content string) error {
	if len(content) > maxContentLen {
		return errors.NewAppError(errors.ErrInvalidInput, "content too long (max 1MB)", 400)
	}

	return nil
}

// ValidateLabel checks a tag, emotion or factor label
func (v *Validator) ValidateLabel(label string) error {
	if label == "" || utf8.RuneCountInString(label) > maxLabelLen {
		return errors.NewAppError(errors.ErrInvalidInput, "labels must be 1-50 characters", 400)
	}

	if !labelRegex.MatchString(label) {
		return errors.NewAppError(errors.ErrInvalidInput, "labels cannot contain ',' '|' or control characters", 400)
	}

	return nil
}

func (v *Validator) validateLabels(labels []string, what string) error {
	if len(labels) > maxListItems {
		return errors.NewAppError(errors.ErrInvalidInput, "too many "+what+" (max 20)", 400)
	}
	for _, l := range labels {
		if err := v.ValidateLabel(strings.TrimSpace(l)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMood validates a catalog mood before upsert
func (v *Validator) ValidateMood(m *models.Mood) error {
	m.Label = v.SanitizeString(m.Label)
	if err := v.ValidateLabel(m.Label); err != nil {
		return err
	}

	if !m.Level.Valid() {
		return errors.NewAppError(errors.ErrInvalidInput, "unknown mood level", 400)
	}

	if m.Color != "" && !colorRegex.MatchString(m.Color) {
		return errors.NewAppError(errors.ErrInvalidInput, "mood color must be #RRGGBB", 400)
	}

	return nil
}

// ValidateEntry sanitizes and validates an entry coming from the editor
func (v *Validator) ValidateEntry(e *models.Entry) error {
	e.Title = v.SanitizeString(e.Title)

	if err := v.ValidateEntryTitle(e.Title); err != nil {
		return err
	}

	if err := v.ValidateEntryContent(e.Content); err != nil {
		return err
	}

	if e.MoodID <= 0 {
		return errors.NewAppError(errors.ErrInvalidInput, "a mood must be selected", 400)
	}

	if err := v.validateLabels(e.Tags, "tags"); err != nil {
		return err
	}
	if err := v.validateLabels(e.SecondaryEmotions, "emotions"); err != nil {
		return err
	}
	if err := v.validateLabels(e.Factors, "factors"); err != nil {
		return err
	}

	if loc := e.Location; loc != nil {
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return errors.NewAppError(errors.ErrInvalidInput, "location is out of range", 400)
		}
	}

	return nil
}
