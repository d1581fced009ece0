package models

import (
	"fmt"
	"strings"
	"time"
)

type MediaType string

const (
	MediaPhoto MediaType = "PHOTO"
	MediaAudio MediaType = "AUDIO"
	MediaVideo MediaType = "VIDEO"
)

func ParseMediaType(s string) (MediaType, error) {
	t := MediaType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case MediaPhoto, MediaAudio, MediaVideo:
		return t, nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// TagLocationSuffix means the GCM tag is stored after the ciphertext in the file
const TagLocationSuffix = "suffix"

type MediaAttachment struct {
	ID          string    `json:"id"` // pre-generated so media can exist before its entry
	EntryID     int64     `json:"entry_id,omitempty"`
	Type        MediaType `json:"type"`
	FilePath    string    `json:"file_path"`
	Encrypted   bool      `json:"encrypted"`
	Nonce       []byte    `json:"-"`
	TagLocation string    `json:"tag_location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
