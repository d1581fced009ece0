package models

import "time"

type Tag struct {
	ID         int64     `json:"id"`
	Label      string    `json:"label"`
	UsageCount int       `json:"usage_count"` // derived from cross-references
	CreatedAt  time.Time `json:"created_at"`
}
