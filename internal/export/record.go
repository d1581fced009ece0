package export

import (
	"path"
	"time"

	"github.com/amirk1998/secure-journal/internal/models"
)

// Placeholder replaces the text of an entry that could not be decrypted
const Placeholder = "entry could not be decrypted"

// ListSeparator joins list-valued fields in CSV output
const ListSeparator = "|"

// Record is the flat serialization of one entry. Every key is always
// present; absent values are null or empty.
type Record struct {
	ID                int64             `json:"id"`
	Title             string            `json:"title"`
	Content           string            `json:"content"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
	Mood              string            `json:"mood"`
	MoodLevel         string            `json:"moodLevel"`
	Tags              []string          `json:"tags"`
	Media             []MediaRecord     `json:"media"`
	SecondaryEmotions []string          `json:"secondaryEmotions"`
	Factors           []string          `json:"factors"`
	Prompt            *models.PromptRef `json:"prompt"`
	Pinned            bool              `json:"pinned"`
	Favorite          bool              `json:"favorite"`
	Location          *models.Location  `json:"location"`
	Weather           *models.Weather   `json:"weather"`
	DecryptionError   *string           `json:"decryptionError"`
}

type MediaRecord struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// recordKeys is the CSV header, in Record field order
var recordKeys = []string{
	"id", "title", "content", "createdAt", "updatedAt", "mood", "moodLevel",
	"tags", "media", "secondaryEmotions", "factors", "prompt", "pinned",
	"favorite", "location", "weather", "decryptionError",
}

// toRecord flattens an entry. bundled rewrites media paths to their location
// inside the archive.
func toRecord(e models.Entry, bundled bool) Record {
	r := Record{
		ID:                e.ID,
		Title:             e.Title,
		Content:           e.Content,
		CreatedAt:         e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Mood:              e.MoodLabel,
		MoodLevel:         string(e.MoodLevel),
		Tags:              nonNil(e.Tags),
		Media:             []MediaRecord{},
		SecondaryEmotions: nonNil(e.SecondaryEmotions),
		Factors:           nonNil(e.Factors),
		Prompt:            e.Prompt,
		Pinned:            e.IsPinned,
		Favorite:          e.IsFavorite,
		Location:          e.Location,
		Weather:           e.Weather,
	}

	if e.DecryptErr != nil {
		msg := e.DecryptErr.Error()
		r.Title, r.Content = Placeholder, Placeholder
		r.DecryptionError = &msg
	}

	for _, m := range e.Media {
		p := m.FilePath
		if bundled {
			p = path.Join("media", m.ID)
		}
		r.Media = append(r.Media, MediaRecord{ID: m.ID, Type: string(m.Type), Path: p})
	}

	return r
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
