package models

import "time"

type NotificationStatus string

const (
	NotificationScheduled NotificationStatus = "SCHEDULED"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationFailed    NotificationStatus = "FAILED"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationScheduled, NotificationDelivered, NotificationFailed:
		return true
	}
	return false
}

// Notification is one append-only reminder delivery record
type Notification struct {
	ID        int64              `json:"id"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}
