package notifylog

import (
	"time"

	"github.com/amirk1998/secure-journal/internal/models"
)

type QueryFilters struct {
	StartTime *time.Time
	EndTime   *time.Time
	Status    models.NotificationStatus
	Limit     int
}

// Report summarizes delivery outcomes inside a monitoring window
type Report struct {
	Window    time.Duration
	Total     int
	Failed    int
	Delivered int
	Alert     bool
}
