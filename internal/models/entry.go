package models

import (
	"time"
)

type Entry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"` // rich-text payload, opaque to the store
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MoodID is the catalog reference; label and level are snapshots taken at write time
	MoodID    int64     `json:"mood_id"`
	MoodLabel string    `json:"mood_label"`
	MoodLevel MoodLevel `json:"mood_level"`

	Prompt *PromptRef `json:"prompt,omitempty"`

	Media             []MediaAttachment `json:"media"`
	Tags              []string          `json:"tags"`
	SecondaryEmotions []string          `json:"secondary_emotions"`
	Factors           []string          `json:"factors"`

	IsPinned    bool `json:"is_pinned"`
	IsFavorite  bool `json:"is_favorite"`
	IsEncrypted bool `json:"is_encrypted"`
	IsSynced    bool `json:"is_synced"`

	Location *Location `json:"location,omitempty"`
	Weather  *Weather  `json:"weather,omitempty"`

	// DecryptErr is set on reads when the sealed fields could not be opened.
	// Title and Content are empty in that case; the other fields are intact.
	DecryptErr error `json:"-"`
}

// PromptRef is a denormalized copy of the writing prompt an entry answered
type PromptRef struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Name      string  `json:"name"`
}

type Weather struct {
	TemperatureC float64 `json:"temperature_c"`
	Condition    string  `json:"condition"`
}

// Criteria is the structured predicate set accepted by search.
// Nil or empty fields impose no constraint.
type Criteria struct {
	Text       string      // substring over title and content
	Start      *time.Time  // inclusive lower bound on CreatedAt
	End        *time.Time  // inclusive upper bound on CreatedAt
	MoodLevels []MoodLevel // OR within the set
	HasMedia   *bool
	Tags       string // substring over the flattened tag string
	Pinned     *bool
	Favorite   *bool
	Limit      int
}
