package notifylog

import (
	"context"
	"fmt"
	"time"

	"github.com/amirk1998/secure-journal/internal/models"
)

type Monitor struct {
	logger    *Logger
	window    time.Duration
	threshold int
}

// NewMonitor creates a delivery monitor that alerts once threshold failures
// land inside window
func NewMonitor(logger *Logger, window time.Duration, threshold int) *Monitor {
	if threshold <= 0 {
		threshold = 5
	}
	return &Monitor{logger: logger, window: window, threshold: threshold}
}

// DetectFailedDeliveries checks the recent log for repeated delivery failures
func (m *Monitor) DetectFailedDeliveries(ctx context.Context) (Report, error) {
	now := m.logger.clock()
	since := now.Add(-m.window)

	records, err := m.logger.Query(ctx, QueryFilters{
		StartTime: &since,
		EndTime:   &now,
		Limit:     10000,
	})
	if err != nil {
		return Report{}, fmt.Errorf("failed to query notification log: %w", err)
	}

	report := Report{Window: m.window, Total: len(records)}
	for _, n := range records {
		switch n.Status {
		case models.NotificationFailed:
			report.Failed++
		case models.NotificationDelivered:
			report.Delivered++
		}
	}

	if report.Failed >= m.threshold {
		report.Alert = true
		m.logger.log.Warn().
			Int("failed", report.Failed).
			Int("total", report.Total).
			Dur("window", m.window).
			Msg("reminder deliveries are failing")
	}

	return report, nil
}
